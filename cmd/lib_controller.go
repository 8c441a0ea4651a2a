package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/StephanGeberl/GCodeSender/controller"
)

var readyTimeout time.Duration
var defaultReadyTimeout = 10 * time.Second

var verbose bool
var defaultVerbose = false

func AddControllerFlags(cmd *cobra.Command) {
	AddPortFlags(cmd)
	cmd.PersistentFlags().DurationVar(
		&readyTimeout, "ready-timeout", defaultReadyTimeout,
		"How long to wait for the Grbl banner after connecting",
	)
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", defaultVerbose, "Display status reports, acknowledgements and verbose console messages")
}

// ConnectedController is a controller connected with the port flags and the loaded configuration,
// with a subscription to its events opened before connecting.
type ConnectedController struct {
	*controller.Controller
	Events <-chan controller.Event
	name   string
}

func Connect(ctx context.Context, name string) (*ConnectedController, error) {
	openTransportFn, err := GetOpenTransportFn()
	if err != nil {
		return nil, err
	}

	c, err := NewController()
	if err != nil {
		return nil, err
	}

	cc := &ConnectedController{
		Controller: c,
		Events:     c.Subscribe(name, 1000),
		name:       name,
	}

	if err := c.Connect(ctx, openTransportFn); err != nil {
		c.Unsubscribe(name)
		return nil, err
	}

	return cc, nil
}

func (cc *ConnectedController) Close(ctx context.Context) error {
	err := cc.Disconnect(ctx)
	cc.Unsubscribe(cc.name)
	cc.Controller.Close()
	return err
}

// WaitReady waits for the firmware banner, writing events to w meanwhile.
func (cc *ConnectedController) WaitReady(ctx context.Context, w io.Writer) error {
	logger := log.MustLogger(ctx)
	logger.Info("Waiting for Grbl")

	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()
	for {
		if err := cc.IsReadyToReceiveCommands(); err == nil {
			logger.Info("Ready", "version", cc.FirmwareVersion())
			return nil
		} else if !errors.Is(err, controller.ErrNotReady) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cc.Done():
			return errors.New("disconnected while waiting for Grbl")
		case <-timer.C:
			return fmt.Errorf("timeout waiting for Grbl banner after %s, a soft reset may be needed", readyTimeout)
		case event, ok := <-cc.Events:
			if !ok {
				return errors.New("event subscription closed")
			}
			if line, ok := formatEvent(event, verbose); ok {
				fmt.Fprintln(w, line)
			}
		}
	}
}

// formatEvent gives the line printed for event, or false when the event is not printed.
//
//gocyclo:ignore
func formatEvent(event controller.Event, verbose bool) (string, bool) {
	switch e := event.(type) {
	case controller.ConsoleEvent:
		switch e.Type {
		case controller.ConsoleVerbose:
			return e.Message, verbose
		case controller.ConsoleError:
			return "!! " + e.Message, true
		default:
			return e.Message, true
		}
	case controller.CommandSentEvent:
		return "> " + e.Command.Command, true
	case controller.CommandCompleteEvent:
		if e.Command.Error {
			return fmt.Sprintf("< %s: %s", e.Command.Command, e.Command.Response), true
		}
		return "< " + e.Command.Response, verbose
	case controller.CommandSkippedEvent:
		return "- " + e.Command.Original, verbose
	case controller.CommandCommentEvent:
		return "; " + e.Comment, verbose
	case controller.StatusEvent:
		return e.String(), verbose
	case controller.StateChangeEvent, controller.AlarmEvent, controller.ProbeEvent, controller.StreamCompleteEvent:
		return e.String(), true
	}
	return "", false
}

func init() {
	resetFlagsFns = append(resetFlagsFns, func() {
		readyTimeout = defaultReadyTimeout
		verbose = defaultVerbose
	})
}
