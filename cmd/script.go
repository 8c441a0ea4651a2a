package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/StephanGeberl/GCodeSender/controller"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

// scriptSession backs the "gcs" package scripts import.
type scriptSession struct {
	ctx    context.Context
	c      *ConnectedController
	output io.Writer
}

func (s *scriptSession) print(a ...any) {
	fmt.Fprintln(s.output, a...)
}

func (s *scriptSession) stream(path string) error {
	if err := streamFile(s.ctx, s.c.Controller, path); err != nil {
		return err
	}
	result, err := waitStream(s.ctx, s.c, s.output, false)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("stream completed with errors: %s", result.Stats)
	}
	return nil
}

// waitIdle waits until the controller is idle and the machine stopped.
func (s *scriptSession) waitIdle() error {
	for {
		if s.c.IsIdle() && s.c.Status().State == grblMod.StateIdle {
			return nil
		}
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-s.c.Done():
			return errors.New("disconnected")
		case event, ok := <-s.c.Events:
			if !ok {
				return errors.New("event subscription closed")
			}
			if line, ok := formatEvent(event, verbose); ok {
				fmt.Fprintln(s.output, line)
			}
		}
	}
}

func (s *scriptSession) jog(axisName string, distance, feedRate float64) error {
	axis, err := position.ParseAxis(axisName)
	if err != nil {
		return err
	}
	direction := 1
	if distance < 0 {
		direction = -1
		distance = -distance
	}
	return s.c.JogMachine(s.ctx, controller.JogDirections{axis: direction}, distance, feedRate, position.UnitsMM)
}

func (s *scriptSession) override(name string) error {
	override, err := grblMod.ParseOverride(name)
	if err != nil {
		return err
	}
	return s.c.SendOverride(s.ctx, override)
}

func (s *scriptSession) action(fn func(*controller.Controller, context.Context) error) func() error {
	return func() error {
		return fn(s.c.Controller, s.ctx)
	}
}

func (s *scriptSession) exports() interp.Exports {
	return interp.Exports{
		"gcs/gcs": {
			"Print": reflect.ValueOf(s.print),
			"Send": reflect.ValueOf(func(line string) error {
				return s.c.SendLine(s.ctx, line)
			}),
			"Stream":   reflect.ValueOf(s.stream),
			"WaitIdle": reflect.ValueOf(s.waitIdle),
			"Jog":      reflect.ValueOf(s.jog),
			"Override": reflect.ValueOf(s.override),
			"Status": reflect.ValueOf(func() grblMod.ControllerStatus {
				return s.c.Status()
			}),
			"State": reflect.ValueOf(func() string {
				return s.c.ControlState().String()
			}),
			"Home":      reflect.ValueOf(s.action((*controller.Controller).PerformHomingCycle)),
			"Unlock":    reflect.ValueOf(s.action((*controller.Controller).KillAlarmLock)),
			"Cancel":    reflect.ValueOf(s.action((*controller.Controller).CancelSend)),
			"SoftReset": reflect.ValueOf(s.action((*controller.Controller).SoftReset)),
			"Zero":      reflect.ValueOf(s.action((*controller.Controller).ResetCoordinatesToZero)),
			"SetWorkPosition": reflect.ValueOf(func(axisName, expression string) error {
				axis, err := position.ParseAxis(axisName)
				if err != nil {
					return err
				}
				return s.c.SetWorkPositionExpression(s.ctx, axis, expression)
			}),
		},
	}
}

// newScriptInterpreter gives an interpreter with the standard library and the "gcs" package.
func newScriptInterpreter(session *scriptSession) (*interp.Interpreter, error) {
	interpreter := interp.New(interp.Options{
		Stdout: session.output,
		Stderr: session.output,
	})
	if err := interpreter.Use(stdlib.Symbols); err != nil {
		return nil, err
	}
	if err := interpreter.Use(session.exports()); err != nil {
		return nil, err
	}
	return interpreter, nil
}

var ScriptCmd = &cobra.Command{
	Use:   "script path",
	Short: "Execute a Go script against the connected controller.",
	Long: `The script is interpreted Go. It can import the standard library and the "gcs" package:

  gcs.Send(line string) error
  gcs.Stream(path string) error
  gcs.WaitIdle() error
  gcs.Jog(axis string, distance, feedRate float64) error
  gcs.Override(name string) error
  gcs.Home() error, gcs.Unlock() error, gcs.Cancel() error, gcs.SoftReset() error, gcs.Zero() error
  gcs.SetWorkPosition(axis, expression string) error
  gcs.Status() grbl.ControllerStatus
  gcs.State() string
  gcs.Print(a ...any)`,
	Args: cobra.ExactArgs(1),
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		path := args[0]

		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"path", path,
		)
		cmd.SetContext(ctx)

		c, err := Connect(ctx, "script")
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(context.Background())) }()

		if err := c.WaitReady(ctx, cmd.OutOrStdout()); err != nil {
			return err
		}

		interpreter, err := newScriptInterpreter(&scriptSession{
			ctx:    ctx,
			c:      c,
			output: cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}

		logger.Info("Running")
		if _, err := interpreter.EvalPathWithContext(ctx, path); err != nil {
			return err
		}

		return nil
	}),
}

func init() {
	AddControllerFlags(ScriptCmd)

	RootCmd.AddCommand(ScriptCmd)
}
