package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/stretchr/testify/require"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
)

type fakeTransport struct {
	lines    chan string
	failures chan error

	mu       sync.Mutex
	written  []string
	realTime []byte
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{lines: make(chan string), failures: make(chan error, 1)}
}

func (f *fakeTransport) ReadLine(ctx context.Context) (string, error) {
	select {
	case line := <-f.lines:
		return line, nil
	case err := <-f.failures:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, string(p))
	return nil
}

func (f *fakeTransport) WriteRealTime(b byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.realTime = append(f.realTime, b)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.written...)
}

func (f *fakeTransport) RealTime() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte{}, f.realTime...)
}

func (f *fakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = nil
	f.realTime = nil
}

func testContext(t *testing.T) context.Context {
	return log.WithLogger(t.Context(), slog.New(slog.DiscardHandler))
}

func testOptions() Options {
	options := DefaultOptions()
	// ticks are driven by the tests
	options.StatusUpdateRate = time.Hour
	return options
}

type testController struct {
	*Controller
	transport *fakeTransport
	events    <-chan Event
}

func newTestController(t *testing.T, ctx context.Context, options Options) *testController {
	c := New(grblMod.NewFirmware(grblMod.DefaultFirmwareConfig()), options)
	transport := newFakeTransport()
	events := c.Subscribe("test", 1000)
	require.NoError(t, c.Connect(ctx, func(context.Context) (Transport, error) {
		return transport, nil
	}))
	t.Cleanup(func() {
		ctx := log.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
		require.NoError(t, c.Disconnect(ctx))
		c.Close()
	})
	return &testController{Controller: c, transport: transport, events: events}
}

// boot announces banner and acknowledges the queries sent in response to it, one at a time when
// in single step mode.
func (c *testController) boot(t *testing.T, ctx context.Context, banner string) {
	c.HandleResponse(ctx, banner)
	for {
		if _, ok := c.ActiveCommand(); !ok {
			break
		}
		c.HandleResponse(ctx, "ok")
	}
	require.NoError(t, c.IsReadyToReceiveCommands())
	c.transport.Reset()
	c.drain()
}

func (c *testController) drain() {
	for {
		select {
		case <-c.events:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

// waitEvent returns the first event of type T for which match is true.
func waitEvent[T Event](t *testing.T, events <-chan Event, match func(T) bool) T {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event := <-events:
			if e, ok := event.(T); ok && (match == nil || match(e)) {
				return e
			}
		case <-timeout:
			var zero T
			require.FailNow(t, "timeout waiting for event", "%T", zero)
			return zero
		}
	}
}

// collectUntil returns all events up to and including the n-th event of type T.
func collectUntil[T Event](t *testing.T, events <-chan Event, n int) []Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	collected := []Event{}
	for n > 0 {
		select {
		case event := <-events:
			collected = append(collected, event)
			if _, ok := event.(T); ok {
				n--
			}
		case <-timeout:
			require.FailNow(t, "timeout collecting events")
		}
	}
	return collected
}

func stateChanges(events []Event) []ControlState {
	states := []ControlState{}
	for _, event := range events {
		if e, ok := event.(StateChangeEvent); ok {
			states = append(states, e.State)
		}
	}
	return states
}

const (
	banner11 = "Grbl 1.1f ['$' for help]"
	banner09 = "Grbl 0.9j ['$' for help]"
	banner08 = "Grbl 0.8c ['$' for help]"
)

func TestControllerConnect(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())

	require.True(t, c.IsConnected())
	require.Equal(t, []byte{byte(grblMod.RealTimeCommandSoftReset)}, c.transport.RealTime())
	require.ErrorIs(t, c.IsReadyToReceiveCommands(), ErrNotReady)
	require.ErrorIs(t, c.SendLine(ctx, "G0 X1"), ErrNotReady)
	require.ErrorIs(t, c.BeginStreaming(ctx), ErrNotReady)

	c.HandleResponse(ctx, banner11)
	require.Equal(t, []string{"$$\n", "$G\n"}, c.transport.Written())
	require.Equal(t, "Grbl 1.1f", c.FirmwareVersion())
	require.True(t, c.Capabilities().Has(grblMod.CapabilityV1_1))
	require.NoError(t, c.IsReadyToReceiveCommands())

	console := waitEvent(t, c.events, func(e ConsoleEvent) bool { return e.Type == ConsoleInfo })
	require.Equal(t, "Grbl version = 1.1f", console.Message)
}

func TestControllerConnectNoReset(t *testing.T) {
	ctx := testContext(t)
	options := testOptions()
	options.ResetOnConnect = false
	c := newTestController(t, ctx, options)
	require.Empty(t, c.transport.RealTime())
}

func TestControllerReceivesFromTransport(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())

	c.transport.lines <- banner11
	require.Eventually(t, func() bool {
		return c.IsReadyToReceiveCommands() == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestControllerDisconnect(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	require.NoError(t, c.Disconnect(ctx))
	require.True(t, c.transport.IsClosed())
	require.False(t, c.IsConnected())
	require.Equal(t, ControlStateDisconnected, c.ControlState())
	require.Equal(t, "<Not connected>", c.FirmwareVersion())
	waitEvent(t, c.events, func(e StateChangeEvent) bool { return e.State == ControlStateDisconnected })
	<-c.Done()

	require.ErrorIs(t, c.SendLine(ctx, "G0 X1"), ErrNotConnected)
}

func TestControllerDisconnectAfterReadError(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)
	done := c.Done()

	c.transport.failures <- errors.New("unplugged")
	<-done
	require.False(t, c.IsConnected())
	require.True(t, c.transport.IsClosed())

	err := c.Disconnect(ctx)
	require.ErrorContains(t, err, "unplugged")
	require.NoError(t, c.Disconnect(ctx))
}

func TestControllerConnectOpensWithoutLock(t *testing.T) {
	ctx := testContext(t)
	c := New(grblMod.NewFirmware(grblMod.DefaultFirmwareConfig()), testOptions())
	defer c.Close()

	opening := make(chan struct{})
	release := make(chan struct{})
	transport := newFakeTransport()
	connectErr := make(chan error, 1)
	go func() {
		connectErr <- c.Connect(ctx, func(context.Context) (Transport, error) {
			close(opening)
			<-release
			return transport, nil
		})
	}()

	<-opening
	require.False(t, c.IsConnected())
	require.Equal(t, ControlStateDisconnected, c.ControlState())
	require.EqualError(t, c.Connect(ctx, func(context.Context) (Transport, error) {
		return newFakeTransport(), nil
	}), "controller: already connected")

	close(release)
	require.NoError(t, <-connectErr)
	require.True(t, c.IsConnected())
	require.NoError(t, c.Disconnect(ctx))
}

func TestControllerOk(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	require.NoError(t, c.SendLine(ctx, "G91 G20 G1 X1 F100 (move)"))
	require.Equal(t, []string{"G91 G20 G1 X1 F100\n"}, c.transport.Written())
	sent := waitEvent[CommandSentEvent](t, c.events, nil)
	require.Equal(t, "G91 G20 G1 X1 F100", sent.Command.Command)
	comment := waitEvent[CommandCommentEvent](t, c.events, nil)
	require.Equal(t, "move", comment.Comment)

	active, ok := c.ActiveCommand()
	require.True(t, ok)
	require.Equal(t, "G91 G20 G1 X1 F100", active.Command)

	c.HandleResponse(ctx, "ok")
	complete := waitEvent[CommandCompleteEvent](t, c.events, nil)
	require.True(t, complete.Command.Done)
	require.False(t, complete.Command.Error)
	_, ok = c.ActiveCommand()
	require.False(t, ok)

	modal := c.GcodeState()
	require.Equal(t, "G91", modal.DistanceMode)
	require.Equal(t, "G20", modal.Units)
	require.Equal(t, "G1", modal.Motion)
}

func TestControllerError(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	t.Run("active command", func(t *testing.T) {
		require.NoError(t, c.SendLine(ctx, "G0 X10"))
		c.HandleResponse(ctx, "error:9")

		console := waitEvent(t, c.events, func(e ConsoleEvent) bool { return e.Type == ConsoleError })
		require.Equal(
			t,
			"An error was detected while sending 'G0 X10': error:9 (G-code lock): "+
				"G-code commands are locked out during alarm or jog state. Streaming has been paused.",
			console.Message,
		)
		require.NotNil(t, console.Fault)
		require.Equal(t, FaultProtocol, console.Fault.Kind)
		require.Equal(t, 9, console.Fault.Code)
		require.Equal(t, "G0 X10", console.Fault.Command)

		complete := waitEvent[CommandCompleteEvent](t, c.events, nil)
		require.True(t, complete.Command.Error)
		require.Equal(t, "error:9", complete.Command.Response)
	})

	t.Run("unexpected", func(t *testing.T) {
		c.HandleResponse(ctx, "error:9")
		console := waitEvent(t, c.events, func(e ConsoleEvent) bool { return e.Type == ConsoleError })
		require.Equal(
			t,
			"An unexpected error was detected: (error:9) G-code commands are locked out during alarm or jog state.",
			console.Message,
		)
		require.Empty(t, console.Fault.Command)
	})
}

func TestControllerAlarm(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	c.HandleResponse(ctx, "ALARM:1")

	events := collectUntil[ConsoleEvent](t, c.events, 1)
	require.Len(t, events, 4)
	alarm, ok := events[0].(AlarmEvent)
	require.True(t, ok)
	require.Equal(t, 1, alarm.Alarm.Code)
	require.Equal(t, "Hard limit", alarm.Alarm.Short)
	status, ok := events[1].(StatusEvent)
	require.True(t, ok)
	require.Equal(t, grblMod.StateAlarm, status.Status.State)
	require.Equal(t, "ALARM:1 (Hard limit)", status.Status.StateString)
	require.Equal(t, StateChangeEvent{State: ControlStateIdle}, events[2])
	console := events[3].(ConsoleEvent)
	require.Equal(t, FaultAlarm, console.Fault.Kind)

	c.QueueCommands(&GcodeCommand{Command: "G0 X1"})
	err := c.BeginStreaming(ctx)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, FaultAlarm, fault.Kind)
	require.Equal(t, "File stream is disabled when GRBL is in the Alarm state.", fault.Message)
}

func TestControllerProbe(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	c.HandleResponse(ctx, "[PRB:1.000,2.000,-3.000:1]")
	probe := waitEvent[ProbeEvent](t, c.events, nil)
	require.True(t, probe.Success)
	require.Equal(t, 1.0, probe.Position.X)
	require.Equal(t, -3.0, probe.Position.Z)
	require.Equal(t, ControlStateIdle, c.ControlState())
}

func TestControllerFeedback(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	c.HandleResponse(ctx, "[GC:G0 G54 G17 G20 G91 G94 M5 M9 T0 F0 S0]")
	modal := c.GcodeState()
	require.Equal(t, "G20", modal.Units)
	require.Equal(t, "G91", modal.DistanceMode)

	c.HandleResponse(ctx, "[MSG:Caution: Unlocked]")
	console := waitEvent[ConsoleEvent](t, c.events, nil)
	require.Equal(t, ConsoleVerbose, console.Type)
	require.Equal(t, "[MSG:Caution: Unlocked]", console.Message)
}

func TestControllerSettingsAndInfo(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	c.HandleResponse(ctx, "$13=1")
	console := waitEvent[ConsoleEvent](t, c.events, nil)
	require.Equal(t, ConsoleVerbose, console.Type)
	require.Contains(t, c.FirmwareSettings(), "$13 = 1    (")

	c.HandleResponse(ctx, "<Idle|MPos:1.000,0.000,0.000|FS:0,0>")
	status := c.Status()
	require.Equal(t, position.UnitsInch, status.MachineCoord.Units)
	require.InDelta(t, 25.4, status.MachineCoord.In(position.UnitsMM).X, 1e-9)

	c.HandleResponse(ctx, "something else")
	console = waitEvent(t, c.events, func(e ConsoleEvent) bool { return e.Type == ConsoleInfo })
	require.Equal(t, "something else", console.Message)
}

func TestControllerUnparseableResponse(t *testing.T) {
	ctx := testContext(t)
	c := newTestController(t, ctx, testOptions())
	c.boot(t, ctx, banner11)

	c.HandleResponse(ctx, "<Idle|MPos:a,b>")
	console := waitEvent[ConsoleEvent](t, c.events, nil)
	require.Equal(t, ConsoleError, console.Type)
	require.Equal(t, FaultUnparseableResponse, console.Fault.Kind)

	c.HandleResponse(ctx, "<Idle|MPos:1.000,2.000,3.000>")
	require.Equal(t, 2.0, c.Status().MachineCoord.Y)
}
