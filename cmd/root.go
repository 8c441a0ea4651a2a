package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	slogxtCobra "github.com/fornellas/slogxt/cobra"
	"github.com/fornellas/slogxt/log"
)

const envPrefix = "GCS"

var logDebugPath string
var defaultLogDebugPath = ""

var logDebugFile io.WriteCloser

// Set when --log-debug-path is given; commands owning the terminal log only to it.
var logDebugFileLogger *slog.Logger

// setFlagsFromEnv sets flags not given on the command line from GCS_* variables, eg
// GCS_PORT_NAME for --port-name.
func setFlagsFromEnv(cmd *cobra.Command) error {
	// Inspired by https://github.com/spf13/viper/issues/671#issuecomment-671067523
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if setErr := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); setErr != nil {
			err = errors.Join(err, fmt.Errorf("%s_%s: %w", envPrefix, strings.ToUpper(f.Name), setErr))
		}
	})
	return err
}

// setLogger puts the logger into the command context, duplicating Debug output to
// --log-debug-path when set.
func setLogger(cmd *cobra.Command) error {
	group := "⚙️ " + cmd.CommandPath()
	logger := slogxtCobra.GetLogger(cmd.OutOrStderr()).WithGroup(group)

	if logDebugPath != "" {
		var err error
		logDebugFile, err = os.OpenFile(logDebugPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		debugFileHandler := log.NewTerminalLineHandler(logDebugFile, &log.TerminalHandlerOptions{
			HandlerOptions: slog.HandlerOptions{
				Level: slog.LevelDebug,
			},
			ForceColor: true,
		}).WithGroup(group)
		logDebugFileLogger = slog.New(debugFileHandler)
		logger = slog.New(log.NewMultiHandler(debugFileHandler, logger.Handler()))
	}

	cmd.SetContext(log.WithLogger(cmd.Context(), logger))
	return nil
}

var RootCmd = &cobra.Command{
	Use:   "gcs",
	Short: "G-Code sender for Grbl controllers",
	Long:  "Streams G-Code to Grbl over a serial port or a TCP bridge, with flow control, status polling and cancel handling. Every flag can also be set by a GCS_* environment variable, eg GCS_PORT_NAME.",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setFlagsFromEnv(cmd); err != nil {
			return err
		}
		if err := setLogger(cmd); err != nil {
			return err
		}
		return loadConfig(cmd.Context(), configPath)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logDebugFile == nil {
			return nil
		}
		err := logDebugFile.Close()
		logDebugFile = nil
		logDebugFileLogger = nil
		return err
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger := log.MustLogger(cmd.Context())
			logger.Error("Failed to display help", "err", err)
		}
		Exit(1)
	},
}

var resetFlagsFns = []func(){
	func() { slogxtCobra.Reset() },
}

// ResetFlags restores every flag default, for tests running several commands.
func ResetFlags() {
	for _, resetFlagFn := range resetFlagsFns {
		resetFlagFn()
	}
}

func init() {
	slogxtCobra.AddLoggerFlags(RootCmd)

	RootCmd.PersistentFlags().StringVar(
		&logDebugPath, "log-debug-path", defaultLogDebugPath,
		"Truncate file and write debugging logging to it.",
	)

	resetFlagsFns = append(resetFlagsFns, func() {
		logDebugPath = defaultLogDebugPath
	})
}
