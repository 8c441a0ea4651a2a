package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/fornellas/slogxt/log"
	"go.bug.st/serial"
)

var errNotSupported = errors.New("not supported over TCP")

// TCPPort partially implements serial.Port over a TCP connection, for serial ports tunnelled by a
// TCP to serial bridge.
type TCPPort struct {
	conn        net.Conn
	readTimeout time.Duration
}

func NewTCPPort(conn net.Conn) *TCPPort {
	return &TCPPort{conn: conn, readTimeout: serial.NoTimeout}
}

func DialTCPPort(ctx context.Context, address string, timeout time.Duration) (*TCPPort, error) {
	logger := log.MustLogger(ctx)
	logger.Info("Dialing TCP port", "address", address, "timeout", timeout)
	dialer := &net.Dialer{
		Timeout: timeout,
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewTCPPort(conn), nil
}

func (tp *TCPPort) SetMode(mode *serial.Mode) error {
	return errNotSupported
}

func (tp *TCPPort) Read(p []byte) (n int, err error) {
	deadline := time.Time{}
	if tp.readTimeout != serial.NoTimeout {
		deadline = time.Now().Add(tp.readTimeout)
	}
	if err := tp.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	return tp.conn.Read(p)
}

func (tp *TCPPort) Write(p []byte) (n int, err error) {
	return tp.conn.Write(p)
}

func (tp *TCPPort) Drain() error {
	return errNotSupported
}

func (tp *TCPPort) ResetInputBuffer() error {
	return errNotSupported
}

func (tp *TCPPort) ResetOutputBuffer() error {
	return errNotSupported
}

func (tp *TCPPort) SetDTR(dtr bool) error {
	return errNotSupported
}

func (tp *TCPPort) SetRTS(rts bool) error {
	return errNotSupported
}

func (tp *TCPPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return nil, errNotSupported
}

func (tp *TCPPort) SetReadTimeout(t time.Duration) error {
	tp.readTimeout = t
	return nil
}

func (tp *TCPPort) Close() error {
	return tp.conn.Close()
}

func (tp *TCPPort) Break(time.Duration) error {
	return errNotSupported
}
