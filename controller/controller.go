package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fornellas/slogxt/log"

	brokerMod "github.com/StephanGeberl/GCodeSender/broker"
	"github.com/StephanGeberl/GCodeSender/gcode"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
	"github.com/StephanGeberl/GCodeSender/position"
	workerMod "github.com/StephanGeberl/GCodeSender/worker"
)

// Transport delivers complete lines received from the firmware and accepts writes. WriteRealTime
// bypasses the queued command flow control.
type Transport interface {
	ReadLine(ctx context.Context) (string, error)
	Write(p []byte) error
	WriteRealTime(b byte) error
	Close() error
}

type OpenTransportFn func(ctx context.Context) (Transport, error)

type Options struct {
	// Poll status with '?' every StatusUpdateRate.
	StatusUpdatesEnabled bool
	StatusUpdateRate     time.Duration
	// Only send a command once the previous one was acknowledged.
	SingleStepMode bool
	// Firmware serial receive buffer size, in bytes.
	RxBufferSize int
	// Commands longer than this are refused, 0 disables the check.
	MaxCommandLength int
	// Soft reset the firmware upon connection, so it announces its version.
	ResetOnConnect bool
}

func DefaultOptions() Options {
	return Options{
		StatusUpdatesEnabled: true,
		StatusUpdateRate:     200 * time.Millisecond,
		RxBufferSize:         128,
		MaxCommandLength:     80,
		ResetOnConnect:       true,
	}
}

const (
	MachineModeMill    = "Mill"
	MachineModeHotWire = "HotWire"
)

// Controller drives a Grbl firmware: it classifies every received line, keeps the machine status,
// streams commands with flow control, polls status and sequences cancellation. Events are
// published through the embedded Broker.
//
// All state is owned by mu. The reader and poller goroutines only hand lines and ticks to the
// dispatcher goroutine.
type Controller struct {
	*brokerMod.Broker[Event]

	firmware *grblMod.Firmware

	mu      sync.Mutex
	options Options

	transport     Transport
	connecting    bool
	connCancel    context.CancelFunc
	connCtx       context.Context
	done          chan struct{}
	disconnectErr error
	pollTickCh    chan struct{}
	poller        *statusPoller

	ready            bool
	version          grblMod.Version
	capabilities     grblMod.Capabilities
	settings         *grblMod.FirmwareSettings
	status           grblMod.ControllerStatus
	modal            gcode.ModalState
	stream           *commandStream
	nextCommandID    int
	outstandingPolls int
	machineMode      string

	// single step mode to restore when leaving check mode
	checkSingleStepMode bool

	canceling          bool
	cancelAttempts     int
	cancelLastPosition *position.Position
}

func New(firmware *grblMod.Firmware, options Options) *Controller {
	c := &Controller{
		Broker:   brokerMod.NewBroker[Event](),
		firmware: firmware,
		options:  options,
		settings: grblMod.NewFirmwareSettings(),
		stream:   newCommandStream(options.RxBufferSize, options.SingleStepMode),
	}
	c.resetConnectionState()
	return c
}

func (c *Controller) resetConnectionState() {
	c.ready = false
	c.version = grblMod.Version{}
	c.capabilities = grblMod.Capabilities{}
	c.settings.Reset()
	c.status = grblMod.NewDisconnectedStatus(position.UnitsMM)
	c.status.MachineMode = c.machineMode
	c.modal = gcode.DefaultModalState()
	c.stream.end()
	c.stream.clear()
	c.outstandingPolls = 0
	c.canceling = false
	c.cancelLastPosition = nil
}

// publish drops events when there are no subscribers.
func (c *Controller) publish(event Event) {
	_ = c.Broker.Publish(event)
}

func (c *Controller) console(consoleType ConsoleType, message string, fault *Fault) {
	c.publish(ConsoleEvent{Type: consoleType, Message: message, Fault: fault})
}

func (c *Controller) dispatchStateChange(state ControlState) {
	c.publish(StateChangeEvent{State: state})
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Connection
////////////////////////////////////////////////////////////////////////////////////////////////////

// Connect opens the transport and starts processing received lines. The firmware is considered
// ready once it announces its version.
func (c *Controller) Connect(ctx context.Context, open OpenTransportFn) error {
	ctx, logger := log.MustWithGroup(ctx, "Controller")

	c.mu.Lock()
	if c.transport != nil || c.connecting {
		c.mu.Unlock()
		return errors.New("controller: already connected")
	}
	c.connecting = true
	c.mu.Unlock()

	transport, err := open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connecting = false
	if err != nil {
		return fmt.Errorf("controller: connect: %w", err)
	}

	c.resetConnectionState()
	c.transport = transport
	c.connCtx, c.connCancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.disconnectErr = nil
	c.pollTickCh = make(chan struct{}, 1)

	lineCh := make(chan string, 100)
	pollTickCh := c.pollTickCh
	workerManager := workerMod.NewWorkerManager(c.connCtx)
	workerManager.StartWorker("Reader", func(ctx context.Context) error {
		return c.readerWorker(ctx, transport, lineCh)
	})
	workerManager.StartWorker("Dispatcher", func(ctx context.Context) error {
		return c.dispatcherWorker(ctx, lineCh, pollTickCh)
	})
	go c.supervise(c.connCtx, workerManager, transport, c.done)

	logger.Info("Connected")
	c.dispatchStateChange(c.controlState())

	if c.options.ResetOnConnect {
		if err := c.writeRealTime(ctx, grblMod.RealTimeCommandSoftReset); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) readerWorker(ctx context.Context, transport Transport, lineCh chan<- string) error {
	logger := log.MustLogger(ctx)
	for {
		line, err := transport.ReadLine(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			c.mu.Lock()
			c.console(ConsoleError, fmt.Sprintf("Connection lost: %s", err), nil)
			c.mu.Unlock()
			return fmt.Errorf("controller: read error: %w", err)
		}
		logger.Debug("Received", "line", line)
		select {
		case lineCh <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) dispatcherWorker(ctx context.Context, lineCh <-chan string, pollTickCh <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-lineCh:
			c.HandleResponse(ctx, line)
		case <-pollTickCh:
			c.pollTick(ctx)
		}
	}
}

// supervise releases the connection once its workers are done, either by Disconnect or by a
// transport failure.
func (c *Controller) supervise(
	ctx context.Context, workerManager *workerMod.WorkerManager, transport Transport, done chan struct{},
) {
	logger := log.MustLogger(ctx)
	err := workerManager.Wait()

	c.mu.Lock()
	c.stopPolling()
	if closeErr := transport.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("controller: close error: %w", closeErr))
	}
	c.transport = nil
	c.connCancel()
	c.resetConnectionState()
	c.disconnectErr = err
	logger.Info("Disconnected", "err", err)
	c.dispatchStateChange(ControlStateDisconnected)
	c.mu.Unlock()

	close(done)
}

// Disconnect stops status polling and all workers, then closes the transport. If the connection
// was already lost, it returns the error that ended it.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.transport == nil {
		err := c.disconnectErr
		c.disconnectErr = nil
		c.mu.Unlock()
		return err
	}
	c.stopPolling()
	cancel := c.connCancel
	done := c.done
	c.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.disconnectErr
	c.disconnectErr = nil
	return err
}

// Done is closed when the current connection is released.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Writes
////////////////////////////////////////////////////////////////////////////////////////////////////

func (c *Controller) writeRealTime(ctx context.Context, command grblMod.RealTimeCommand) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	if command != grblMod.RealTimeCommandStatusReportQuery {
		log.MustLogger(ctx).Debug("Real time command", "command", command.String())
	}
	if err := c.transport.WriteRealTime(byte(command)); err != nil {
		return fmt.Errorf("controller: %s: %w", command, err)
	}
	return nil
}

// streamCommands sends queued commands for as long as flow control allows.
func (c *Controller) streamCommands(ctx context.Context) error {
	logger := log.MustLogger(ctx)
	for {
		command := c.stream.next()
		if command == nil {
			return nil
		}
		if command.Command == "" {
			c.stream.skipped(command)
			c.publish(CommandSkippedEvent{Command: *command})
			if command.Comment != "" {
				c.publish(CommandCommentEvent{Comment: command.Comment})
			}
			continue
		}
		logger.Debug("Sending", "command", command.Command)
		if err := c.transport.Write([]byte(command.Command + "\n")); err != nil {
			return fmt.Errorf("controller: send %#v: %w", command.Command, err)
		}
		c.stream.sent(command)
		c.publish(CommandSentEvent{Command: *command})
		if command.Comment != "" {
			c.publish(CommandCommentEvent{Comment: command.Comment})
		}
	}
}

func (c *Controller) commandComplete(ctx context.Context, response string, isError bool) *GcodeCommand {
	command := c.stream.complete(response, isError)
	if command == nil {
		return nil
	}
	if !isError {
		if err := c.modal.UpdateFromLine(command.Command); err != nil {
			log.MustLogger(ctx).Warn("Failed to update modal state", "command", command.Command, "err", err)
		}
	}
	c.publish(CommandCompleteEvent{Command: *command})
	return command
}

// checkStreamFinished ends the stream once everything was acknowledged and, when status is
// polled, the firmware is done executing.
func (c *Controller) checkStreamFinished(ctx context.Context) {
	if !c.stream.streaming || c.stream.hasPending() {
		return
	}
	if c.capabilities.Has(grblMod.CapabilityRealTime) && c.options.StatusUpdatesEnabled {
		if c.status.State != grblMod.StateIdle && c.status.State != grblMod.StateCheck {
			return
		}
	}
	success := c.stream.errors == 0
	c.stream.end()
	stats := c.stream.stats()
	log.MustLogger(ctx).Info("Stream complete", "success", success, "stats", stats.String())
	c.publish(StreamCompleteEvent{Success: success, Stats: stats})
	c.dispatchStateChange(ControlStateIdle)
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// Commands
////////////////////////////////////////////////////////////////////////////////////////////////////

func (c *Controller) createCommand(line string) (*GcodeCommand, error) {
	c.nextCommandID++
	return newCommand(c.nextCommandID, line, c.options.MaxCommandLength)
}

// CreateCommand strips comments from line and validates its length.
func (c *Controller) CreateCommand(line string) (*GcodeCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCommand(line)
}

func (c *Controller) checkReadyToSendCommands() error {
	if c.transport == nil {
		return ErrNotConnected
	}
	if !c.ready {
		return ErrNotReady
	}
	return nil
}

// SendCommandImmediately queues command ahead of any file being streamed.
func (c *Controller) SendCommandImmediately(ctx context.Context, command *GcodeCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReadyToSendCommands(); err != nil {
		return err
	}
	c.stream.queueManual(command)
	return c.streamCommands(ctx)
}

func (c *Controller) sendLines(ctx context.Context, lines ...string) error {
	if err := c.checkReadyToSendCommands(); err != nil {
		return err
	}
	commands := make([]*GcodeCommand, 0, len(lines))
	for _, line := range lines {
		command, err := c.createCommand(line)
		if err != nil {
			return err
		}
		commands = append(commands, command)
	}
	c.stream.queueManual(commands...)
	return c.streamCommands(ctx)
}

// SendLine creates and sends a command from line.
func (c *Controller) SendLine(ctx context.Context, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLines(ctx, line)
}

// QueueCommands adds commands to the file stream.
func (c *Controller) QueueCommands(commands ...*GcodeCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream.queueFile(commands...)
}

// QueueStream reads all lines of r into the file stream.
func (c *Controller) QueueStream(r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	commands, err := readFile(r, c.createCommand)
	if err != nil {
		return fmt.Errorf("controller: queue stream: %w", err)
	}
	c.stream.queueFile(commands...)
	return nil
}

// CancelCommands drops manually sent commands that were not sent yet.
func (c *Controller) CancelCommands() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream.cancelManual()
}

func (c *Controller) isReadyToStreamFile() error {
	if err := c.checkReadyToSendCommands(); err != nil {
		return err
	}
	if c.status.State == grblMod.StateAlarm {
		return &Fault{
			Kind:    FaultAlarm,
			Code:    -1,
			Message: "File stream is disabled when GRBL is in the Alarm state.",
		}
	}
	if c.stream.streaming {
		return errors.New("already streaming")
	}
	return nil
}

// BeginStreaming starts sending queued file commands.
func (c *Controller) BeginStreaming(ctx context.Context) error {
	ctx, logger := log.MustWithGroup(ctx, "Stream")

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.isReadyToStreamFile(); err != nil {
		return err
	}
	if err := c.stream.begin(); err != nil {
		return err
	}
	logger.Info("Streaming", "rows", c.stream.rowsInSend)
	if !c.capabilities.Has(grblMod.CapabilityRealTime) {
		c.dispatchStateChange(c.controlState())
	}
	return c.streamCommands(ctx)
}

func (c *Controller) pauseStreaming(ctx context.Context) error {
	if c.capabilities.Has(grblMod.CapabilityRealTime) {
		if err := c.writeRealTime(ctx, grblMod.RealTimeCommandFeedHold); err != nil {
			return err
		}
	}
	c.stream.paused = true
	if !c.capabilities.Has(grblMod.CapabilityRealTime) {
		c.dispatchStateChange(c.controlState())
	}
	return nil
}

// PauseStreaming holds the machine (when supported) and stops sending commands.
func (c *Controller) PauseStreaming(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ErrNotConnected
	}
	return c.pauseStreaming(ctx)
}

// ResumeStreaming resumes the machine (when supported) and sending commands.
func (c *Controller) ResumeStreaming(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ErrNotConnected
	}
	if c.capabilities.Has(grblMod.CapabilityRealTime) {
		if err := c.writeRealTime(ctx, grblMod.RealTimeCommandCycleStartResume); err != nil {
			return err
		}
	}
	c.stream.paused = false
	if !c.capabilities.Has(grblMod.CapabilityRealTime) {
		c.dispatchStateChange(c.controlState())
	}
	return c.streamCommands(ctx)
}

// QueryStatus requests a status report, out of the polling schedule.
func (c *Controller) QueryStatus(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capabilities.Has(grblMod.CapabilityRealTime) {
		return fmt.Errorf("status query: %w", ErrUnsupported)
	}
	return c.writeRealTime(ctx, grblMod.RealTimeCommandStatusReportQuery)
}

////////////////////////////////////////////////////////////////////////////////////////////////////
// State
////////////////////////////////////////////////////////////////////////////////////////////////////

func (c *Controller) controlState() ControlState {
	if c.transport == nil {
		return ControlStateDisconnected
	}
	if !c.capabilities.Has(grblMod.CapabilityRealTime) {
		return localControlState(c.stream.streaming, c.stream.paused)
	}
	return DeriveControlState(c.status.StateString, c.stream.streaming, c.stream.paused)
}

func (c *Controller) ControlState() ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controlState()
}

func (c *Controller) Status() grblMod.ControllerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Capabilities() grblMod.Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capabilities
}

// FirmwareVersion describes the connected firmware, eg "Grbl 1.1f".
func (c *Controller) FirmwareVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return "<Not connected>"
	}
	return "Grbl " + c.version.String()
}

func (c *Controller) FirmwareSettings() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.String()
}

// ActiveCommand returns the oldest command awaiting acknowledgement.
func (c *Controller) ActiveCommand() (GcodeCommand, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	command := c.stream.activeCommand()
	if command == nil {
		return GcodeCommand{}, false
	}
	return *command, true
}

// GcodeState is the firmware modal state, as tracked from sent commands and parser state reports.
func (c *Controller) GcodeState() gcode.ModalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modal
}

func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport != nil
}

func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.streaming
}

func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.paused
}

// IsIdle tells whether the machine is connected, not streaming and, when it reports status,
// idle.
func (c *Controller) IsIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil || c.stream.streaming {
		return false
	}
	if c.capabilities.Has(grblMod.CapabilityRealTime) {
		state := c.controlState()
		return state == ControlStateIdle || state == ControlStateCheck
	}
	return true
}

// IsReadyToReceiveCommands returns nil when commands can be sent.
func (c *Controller) IsReadyToReceiveCommands() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkReadyToSendCommands()
}

// IsReadyToStreamFile returns nil when a file can be streamed.
func (c *Controller) IsReadyToStreamFile() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isReadyToStreamFile()
}

func (c *Controller) StreamStats() StreamStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.stats()
}

func (c *Controller) SingleStepMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.singleStep
}

func (c *Controller) SetSingleStepMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream.singleStep = enabled
	c.options.SingleStepMode = enabled
}

func (c *Controller) MachineMode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machineMode
}

func (c *Controller) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", c.controlState(), c.status)
	if !c.version.IsZero() {
		fmt.Fprintf(&b, " (Grbl %s %s)", c.version, c.capabilities)
	}
	return b.String()
}
