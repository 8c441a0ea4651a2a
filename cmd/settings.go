package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/StephanGeberl/GCodeSender/controller"
)

// waitCommandComplete waits for the acknowledgement of command.
func waitCommandComplete(ctx context.Context, c *ConnectedController, command string, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.Done():
			return errors.New("disconnected")
		case event, ok := <-c.Events:
			if !ok {
				return errors.New("event subscription closed")
			}
			if line, ok := formatEvent(event, verbose); ok {
				fmt.Fprintln(w, line)
			}
			commandCompleteEvent, ok := event.(controller.CommandCompleteEvent)
			if !ok || commandCompleteEvent.Command.Command != command {
				continue
			}
			if commandCompleteEvent.Command.Error {
				return fmt.Errorf("%s: %s", command, commandCompleteEvent.Command.Response)
			}
			return nil
		}
	}
}

var SettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read Grbl settings and output them with their descriptions.",
	Args:  cobra.NoArgs,
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"port-name", portName,
			"address", address,
			"output", outputValue.String(),
		)
		cmd.SetContext(ctx)

		c, err := Connect(ctx, "settings")
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(context.Background())) }()

		// Events go to stderr, so stdout only has the settings.
		if err := c.WaitReady(ctx, cmd.ErrOrStderr()); err != nil {
			return err
		}

		logger.Info("Requesting settings")
		if err := c.ViewSettings(ctx); err != nil {
			return err
		}
		if err := waitCommandComplete(ctx, c, "$$", cmd.ErrOrStderr()); err != nil {
			return err
		}

		output, err := outputValue.WriteCloser(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, output.Close()) }()

		_, err = fmt.Fprintln(output, c.FirmwareSettings())
		return err
	}),
}

func init() {
	AddControllerFlags(SettingsCmd)
	AddOutputFlags(SettingsCmd)

	RootCmd.AddCommand(SettingsCmd)
}
