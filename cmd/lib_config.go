package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/viper"

	"github.com/StephanGeberl/GCodeSender/controller"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

const (
	configKeyStatusUpdateRate   = "status-update-rate"
	configKeyStatusUpdates      = "status-updates"
	configKeySingleStep         = "single-step"
	configKeyRxBufferSize       = "rx-buffer-size"
	configKeyMaxCommandLength   = "max-command-length"
	configKeyResetOnConnect     = "reset-on-connect"
	configKeyMillModeCommand    = "mill-mode-command"
	configKeyHotWireModeCommand = "hot-wire-mode-command"
	configKeyMillResetAxes      = "mill-reset-axes"
	configKeyHotWireResetAxes   = "hot-wire-reset-axes"
	configKeySafeZ              = "safe-z"
)

var configPath string
var defaultConfigPath = ""

var config = newConfig()

func newConfig() *viper.Viper {
	v := viper.New()

	options := controller.DefaultOptions()
	v.SetDefault(configKeyStatusUpdateRate, options.StatusUpdateRate)
	v.SetDefault(configKeyStatusUpdates, options.StatusUpdatesEnabled)
	v.SetDefault(configKeySingleStep, options.SingleStepMode)
	v.SetDefault(configKeyRxBufferSize, options.RxBufferSize)
	v.SetDefault(configKeyMaxCommandLength, options.MaxCommandLength)
	v.SetDefault(configKeyResetOnConnect, options.ResetOnConnect)

	firmwareConfig := grblMod.DefaultFirmwareConfig()
	v.SetDefault(configKeyMillModeCommand, firmwareConfig.MillModeCommand)
	v.SetDefault(configKeyHotWireModeCommand, firmwareConfig.HotWireModeCommand)
	v.SetDefault(configKeyMillResetAxes, formatAxes(firmwareConfig.MillResetAxes))
	v.SetDefault(configKeyHotWireResetAxes, formatAxes(firmwareConfig.HotWireResetAxes))
	v.SetDefault(configKeySafeZ, firmwareConfig.SafeZ)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// loadConfig reads path, when given, over the defaults. The format follows the file extension.
func loadConfig(ctx context.Context, path string) error {
	config = newConfig()
	if path == "" {
		return nil
	}
	log.MustLogger(ctx).Debug("Loading config", "path", path)
	config.SetConfigFile(path)
	if err := config.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %s: %w", path, err)
	}
	return nil
}

func formatAxes(axes []position.Axis) string {
	var b strings.Builder
	for _, axis := range axes {
		b.WriteString(axis.String())
	}
	return b.String()
}

// parseAxes parses axis letters, eg "XYZ".
func parseAxes(s string) ([]position.Axis, error) {
	axes := []position.Axis{}
	for _, letter := range strings.ToUpper(s) {
		axis, err := position.ParseAxis(string(letter))
		if err != nil {
			return nil, err
		}
		axes = append(axes, axis)
	}
	return axes, nil
}

func GetControllerOptions(v *viper.Viper) (controller.Options, error) {
	options := controller.Options{
		StatusUpdatesEnabled: v.GetBool(configKeyStatusUpdates),
		StatusUpdateRate:     v.GetDuration(configKeyStatusUpdateRate),
		SingleStepMode:       v.GetBool(configKeySingleStep),
		RxBufferSize:         v.GetInt(configKeyRxBufferSize),
		MaxCommandLength:     v.GetInt(configKeyMaxCommandLength),
		ResetOnConnect:       v.GetBool(configKeyResetOnConnect),
	}
	if options.StatusUpdateRate < time.Millisecond {
		return controller.Options{}, fmt.Errorf("%s: must be at least 1ms: %s", configKeyStatusUpdateRate, options.StatusUpdateRate)
	}
	if options.RxBufferSize <= 0 {
		return controller.Options{}, fmt.Errorf("%s: must be positive: %d", configKeyRxBufferSize, options.RxBufferSize)
	}
	if options.MaxCommandLength < 0 {
		return controller.Options{}, fmt.Errorf("%s: must not be negative: %d", configKeyMaxCommandLength, options.MaxCommandLength)
	}
	return options, nil
}

func GetFirmwareConfig(v *viper.Viper) (grblMod.FirmwareConfig, error) {
	millResetAxes, err := parseAxes(v.GetString(configKeyMillResetAxes))
	if err != nil {
		return grblMod.FirmwareConfig{}, fmt.Errorf("%s: %w", configKeyMillResetAxes, err)
	}
	hotWireResetAxes, err := parseAxes(v.GetString(configKeyHotWireResetAxes))
	if err != nil {
		return grblMod.FirmwareConfig{}, fmt.Errorf("%s: %w", configKeyHotWireResetAxes, err)
	}
	return grblMod.FirmwareConfig{
		MillModeCommand:    v.GetString(configKeyMillModeCommand),
		HotWireModeCommand: v.GetString(configKeyHotWireModeCommand),
		MillResetAxes:      millResetAxes,
		HotWireResetAxes:   hotWireResetAxes,
		SafeZ:              v.GetFloat64(configKeySafeZ),
	}, nil
}

// NewController builds a controller from the loaded configuration.
func NewController() (*controller.Controller, error) {
	options, err := GetControllerOptions(config)
	if err != nil {
		return nil, err
	}
	firmwareConfig, err := GetFirmwareConfig(config)
	if err != nil {
		return nil, err
	}
	return controller.New(grblMod.NewFirmware(firmwareConfig), options), nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(
		&configPath, "config", defaultConfigPath,
		fmt.Sprintf(
			"Configuration file (YAML, TOML or JSON). Keys: %s.",
			strings.Join([]string{
				configKeyStatusUpdateRate, configKeyStatusUpdates, configKeySingleStep, configKeyRxBufferSize,
				configKeyMaxCommandLength, configKeyResetOnConnect, configKeyMillModeCommand,
				configKeyHotWireModeCommand, configKeyMillResetAxes, configKeyHotWireResetAxes, configKeySafeZ,
			}, ", "),
		),
	)

	resetFlagsFns = append(resetFlagsFns, func() {
		configPath = defaultConfigPath
		config = newConfig()
	})
}
