package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	tuiMod "github.com/StephanGeberl/GCodeSender/tui"
)

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open Grbl connection and provide a terminal user interface.",
	Long:  "Shows live state, status and console messages, with jogging, probing and override controls. Logs go to the console view; use --log-debug-path to keep them.",
	Args:  cobra.NoArgs,
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, _ := log.MustWithAttrs(
			cmd.Context(),
			"port-name", portName,
			"address", address,
		)

		// The terminal belongs to the UI: only the debug file keeps logs.
		handler := slog.Handler(slog.DiscardHandler)
		if logDebugFileLogger != nil {
			handler = logDebugFileLogger.Handler()
		}
		ctx = log.WithLogger(ctx, slog.New(handler))
		cmd.SetContext(ctx)

		c, err := Connect(ctx, "watch-connect")
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(context.Background())) }()
		// The UI subscribes on its own.
		c.Unsubscribe("watch-connect")

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return tuiMod.NewWatch(c.Controller, level).Run(ctx)
	}),
}

func init() {
	AddControllerFlags(WatchCmd)

	RootCmd.AddCommand(WatchCmd)
}
