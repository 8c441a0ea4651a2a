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

var check bool
var defaultCheck = false

// waitControlState waits for a StateChangeEvent to state.
func waitControlState(ctx context.Context, c *ConnectedController, state controller.ControlState, w io.Writer) error {
	if c.ControlState() == state {
		return nil
	}
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
			if stateChangeEvent, ok := event.(controller.StateChangeEvent); ok && stateChangeEvent.State == state {
				return nil
			}
		}
	}
}

// waitStream writes progress until the stream completes, returning its outcome. A command error
// pauses the stream: with resumeOnError the stream is resumed and the error only shows in the
// outcome, otherwise the stream is canceled and the fault returned. An alarm always cancels it.
func waitStream(
	ctx context.Context, c *ConnectedController, w io.Writer, resumeOnError bool,
) (controller.StreamCompleteEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return controller.StreamCompleteEvent{}, ctx.Err()
		case <-c.Done():
			return controller.StreamCompleteEvent{}, errors.New("disconnected while streaming")
		case event, ok := <-c.Events:
			if !ok {
				return controller.StreamCompleteEvent{}, errors.New("event subscription closed")
			}
			if line, ok := formatEvent(event, verbose); ok {
				fmt.Fprintln(w, line)
			}
			switch e := event.(type) {
			case controller.ConsoleEvent:
				if e.Fault == nil || !c.IsStreaming() {
					break
				}
				commandFault := e.Fault.Kind == controller.FaultProtocol && e.Fault.Command != ""
				if commandFault && resumeOnError {
					if err := c.ResumeStreaming(ctx); err != nil {
						return controller.StreamCompleteEvent{}, err
					}
					break
				}
				if commandFault || e.Fault.Kind == controller.FaultAlarm {
					return controller.StreamCompleteEvent{}, errors.Join(
						fmt.Errorf("stream aborted: %w", e.Fault), c.CancelSend(ctx),
					)
				}
			case controller.CommandCompleteEvent:
				if e.Command.FromFile {
					fmt.Fprintln(w, formatProgress(c.StreamStats()))
				}
			case controller.StreamCompleteEvent:
				return e, nil
			}
		}
	}
}

func formatProgress(stats controller.StreamStats) string {
	percent := 100.0
	if stats.RowsInSend > 0 {
		percent = 100 * float64(stats.RowsCompleted) / float64(stats.RowsInSend)
	}
	return fmt.Sprintf("[%5.1f%%] %d/%d", percent, stats.RowsCompleted, stats.RowsInSend)
}

var StreamCmd = &cobra.Command{
	Use:   "stream path",
	Short: "Stream a G-Code file to Grbl, exiting when done.",
	Args:  cobra.ExactArgs(1),
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		path := args[0]

		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"port-name", portName,
			"address", address,
			"path", path,
			"check", check,
		)
		cmd.SetContext(ctx)

		output := cmd.OutOrStdout()

		c, err := Connect(ctx, "stream")
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(context.Background())) }()

		if err := c.WaitReady(ctx, output); err != nil {
			return err
		}

		if check {
			logger.Info("Enabling check mode")
			if err := c.ToggleCheckMode(ctx); err != nil {
				return err
			}
			if err := waitControlState(ctx, c, controller.ControlStateCheck, output); err != nil {
				return err
			}
		}

		logger.Info("Streaming")
		if err := streamFile(ctx, c.Controller, path); err != nil {
			return err
		}

		result, err := waitStream(ctx, c, output, check)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn("Interrupted, canceling")
				err = errors.Join(err, c.CancelSend(context.Background()))
			}
			return err
		}

		if check {
			logger.Info("Disabling check mode")
			if err := c.ToggleCheckMode(ctx); err != nil {
				return err
			}
		}

		if !result.Success {
			return fmt.Errorf("stream completed with errors: %s", result.Stats)
		}
		logger.Info("Done", "stats", result.Stats.String())
		return nil
	}),
}

func init() {
	AddControllerFlags(StreamCmd)

	StreamCmd.Flags().BoolVar(&check, "check", defaultCheck, "Run the file in Grbl check mode, without moving the machine")

	RootCmd.AddCommand(StreamCmd)

	resetFlagsFns = append(resetFlagsFns, func() {
		check = defaultCheck
	})
}
