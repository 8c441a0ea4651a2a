package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fornellas/slogxt/log"
	"go.bug.st/serial"
)

// ReadTimeout bounds each port read, so ReadLine can observe context cancellation.
const ReadTimeout = 100 * time.Millisecond

const DefaultBaudRate = 115200

var ErrClosed = errors.New("transport closed")

// PortTransport frames lines received from a serial.Port and serialises writes to it.
type PortTransport struct {
	port serial.Port

	readMu  sync.Mutex
	pending []byte

	writeMu sync.Mutex
	closed  bool
}

// NewPortTransport wraps an open port. The port read timeout is set to ReadTimeout.
func NewPortTransport(port serial.Port) (*PortTransport, error) {
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		closeErr := port.Close()
		if closeErr != nil {
			closeErr = fmt.Errorf("transport: port close error: %w", closeErr)
		}
		return nil, errors.Join(fmt.Errorf("transport: error setting read timeout: %w", err), closeErr)
	}
	return &PortTransport{port: port}, nil
}

// OpenSerialPort opens a serial port at baudRate, 8N1.
func OpenSerialPort(ctx context.Context, name string, baudRate int) (serial.Port, error) {
	logger := log.MustLogger(ctx)
	logger.Info("Opening serial port", "name", name, "baud_rate", baudRate)
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: serial port open error: %w", err)
	}
	return port, nil
}

// OpenSerial opens a serial port with OpenSerialPort and wraps it.
func OpenSerial(ctx context.Context, name string, baudRate int) (*PortTransport, error) {
	port, err := OpenSerialPort(ctx, name, baudRate)
	if err != nil {
		return nil, err
	}
	return NewPortTransport(port)
}

// DialTCP connects to a TCP to serial bridge.
func DialTCP(ctx context.Context, address string, timeout time.Duration) (*PortTransport, error) {
	port, err := DialTCPPort(ctx, address, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial error: %w", err)
	}
	return NewPortTransport(port)
}

func (t *PortTransport) takeLine() (string, bool) {
	idx := bytes.IndexByte(t.pending, '\n')
	if idx == -1 {
		return "", false
	}
	line := t.pending[:idx]
	t.pending = t.pending[idx+1:]
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return string(line), true
}

// ReadLine blocks until a complete '\n' terminated line is received, returning it without the line
// terminator.
func (t *PortTransport) ReadLine(ctx context.Context) (string, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	buf := make([]byte, 256)
	for {
		if line, ok := t.takeLine(); ok {
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("transport: read line: context error: %w", err)
		}
		n, err := t.port.Read(buf)
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			return "", fmt.Errorf("transport: read line: read error: %w", err)
		}
		t.pending = append(t.pending, buf[:n]...)
	}
}

func (t *PortTransport) write(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.closed {
		return ErrClosed
	}
	n, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("transport: write error: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("transport: write error: wrote %d bytes, expected %d", n, len(data))
	}
	return nil
}

// Write sends queued command bytes.
func (t *PortTransport) Write(p []byte) error {
	return t.write(p)
}

// WriteRealTime sends a single real time byte.
func (t *PortTransport) WriteRealTime(b byte) error {
	return t.write([]byte{b})
}

func (t *PortTransport) Close() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}
