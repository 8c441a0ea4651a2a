package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/StephanGeberl/GCodeSender/controller"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

type consoleCommand struct {
	name string
	run  func(ctx context.Context, c *controller.Controller) error
}

func controllerAction(name string, fn func(*controller.Controller, context.Context) error) consoleCommand {
	return consoleCommand{
		name: name,
		run: func(ctx context.Context, c *controller.Controller) error {
			return fn(c, ctx)
		},
	}
}

var consoleActions = map[string]consoleCommand{
	"!":            controllerAction("pause", (*controller.Controller).PauseStreaming),
	"~":            controllerAction("resume", (*controller.Controller).ResumeStreaming),
	"?":            controllerAction("status", (*controller.Controller).QueryStatus),
	"^X":           controllerAction("soft reset", (*controller.Controller).SoftReset),
	"\x18":         controllerAction("soft reset", (*controller.Controller).SoftReset),
	":cancel":      controllerAction("cancel", (*controller.Controller).CancelSend),
	":home":        controllerAction("home", (*controller.Controller).PerformHomingCycle),
	":unlock":      controllerAction("unlock", (*controller.Controller).KillAlarmLock),
	":check":       controllerAction("check", (*controller.Controller).ToggleCheckMode),
	":settings":    controllerAction("settings", (*controller.Controller).ViewSettings),
	":parser":      controllerAction("parser state", (*controller.Controller).ViewParserState),
	":zero":        controllerAction("zero", (*controller.Controller).ResetCoordinatesToZero),
	":return":      controllerAction("return to home", (*controller.Controller).ReturnToHome),
	":restore":     controllerAction("restore modal state", (*controller.Controller).RestoreParserModalState),
	":mill":        controllerAction("mill", (*controller.Controller).SwitchToMill),
	":hotwire":     controllerAction("hot wire", (*controller.Controller).SwitchToHotWire),
	":spindle-on":  controllerAction("spindle on", (*controller.Controller).SwitchOnSpindle),
	":spindle-off": controllerAction("spindle off", (*controller.Controller).SwitchOffSpindle),
}

// parseConsoleLine maps a line typed at the console to what it does. Lines that are not console
// actions are sent to Grbl.
func parseConsoleLine(line string) (consoleCommand, error) {
	line = strings.TrimSpace(line)
	if command, ok := consoleActions[line]; ok {
		return command, nil
	}

	if !strings.HasPrefix(line, ":") {
		return consoleCommand{
			name: "send",
			run: func(ctx context.Context, c *controller.Controller) error {
				return c.SendLine(ctx, line)
			},
		}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":override":
		if len(fields) != 2 {
			return consoleCommand{}, errors.New("usage: :override <name>")
		}
		override, err := grblMod.ParseOverride(fields[1])
		if err != nil {
			return consoleCommand{}, err
		}
		return consoleCommand{
			name: "override " + override.String(),
			run: func(ctx context.Context, c *controller.Controller) error {
				return c.SendOverride(ctx, override)
			},
		}, nil
	case ":stream":
		if len(fields) != 2 {
			return consoleCommand{}, errors.New("usage: :stream <path>")
		}
		path := fields[1]
		return consoleCommand{
			name: "stream " + path,
			run: func(ctx context.Context, c *controller.Controller) error {
				return streamFile(ctx, c, path)
			},
		}, nil
	case ":wpos":
		if len(fields) != 3 {
			return consoleCommand{}, errors.New("usage: :wpos <axis> <expression>")
		}
		axis, err := parseAxes(fields[1])
		if err != nil || len(axis) != 1 {
			return consoleCommand{}, fmt.Errorf("invalid axis: %#v", fields[1])
		}
		expression := fields[2]
		return consoleCommand{
			name: "work position " + axis[0].String(),
			run: func(ctx context.Context, c *controller.Controller) error {
				return c.SetWorkPositionExpression(ctx, axis[0], expression)
			},
		}, nil
	}
	return consoleCommand{}, fmt.Errorf("unknown console command: %#v", fields[0])
}

// streamFile queues the file at path and starts streaming it.
func streamFile(ctx context.Context, c *controller.Controller, path string) (err error) {
	if err := c.IsReadyToStreamFile(); err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, file.Close()) }()
	if err := c.QueueStream(file); err != nil {
		return err
	}
	return c.BeginStreaming(ctx)
}

func runConsole(ctx context.Context, c *ConnectedController, input io.Reader, output io.Writer) error {
	logger := log.MustLogger(ctx)

	lineCh := make(chan string)
	scanErrCh := make(chan error, 1)
	go func() {
		defer close(lineCh)
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lineCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErrCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return errors.New("disconnected")
		case event, ok := <-c.Events:
			if !ok {
				return nil
			}
			if line, ok := formatEvent(event, verbose); ok {
				fmt.Fprintln(output, line)
			}
		case line, ok := <-lineCh:
			if !ok {
				select {
				case err := <-scanErrCh:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			command, err := parseConsoleLine(line)
			if err != nil {
				fmt.Fprintf(output, "!! %s\n", err)
				continue
			}
			logger.Debug("Console command", "command", command.name)
			if err := command.run(ctx, c.Controller); err != nil {
				fmt.Fprintf(output, "!! %s: %s\n", command.name, err)
			}
		}
	}
}

var ControlCmd = &cobra.Command{
	Use:   "control",
	Short: "Open Grbl connection and provide a line based console.",
	Long: `Lines read from stdin are sent to Grbl. Some lines are handled by the console instead:

  !  ~  ?  ^X          feed hold, resume, status query, soft reset
  :cancel              cancel the running stream or jog
  :home  :unlock       homing cycle, kill alarm lock
  :check               toggle check mode
  :settings  :parser   view settings, view parser state
  :zero  :return       reset work coordinates to zero, return to home
  :restore             re-send the tracked modal state
  :mill  :hotwire      switch machine mode
  :spindle-on  :spindle-off
  :override <name>     eg feed+10, rapid-50, toggle-flood
  :stream <path>       stream a file
  :wpos <axis> <expr>  set work position, '#' is the current value`,
	Args: cobra.NoArgs,
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, _ := log.MustWithAttrs(
			cmd.Context(),
			"port-name", portName,
			"address", address,
		)
		cmd.SetContext(ctx)

		c, err := Connect(ctx, "control")
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(context.Background())) }()

		if err := c.WaitReady(ctx, cmd.OutOrStdout()); err != nil {
			return err
		}

		return runConsole(ctx, c, cmd.InOrStdin(), cmd.OutOrStdout())
	}),
}

func init() {
	AddControllerFlags(ControlCmd)

	RootCmd.AddCommand(ControlCmd)
}
