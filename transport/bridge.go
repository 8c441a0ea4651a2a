package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/fornellas/slogxt/log"
)

// Bridge pipes bytes between conn and port until either side fails or closes, then closes both.
func Bridge(ctx context.Context, conn net.Conn, port io.ReadWriteCloser) error {
	logger := log.MustLogger(ctx)

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return errors.Join(
				fmt.Errorf("transport: failed to set TCP no delay: %w", err),
				conn.Close(),
				port.Close(),
			)
		}
	}

	errCh := make(chan error, 2)

	logger.Info("Copying I/O")
	go func() {
		_, err := io.Copy(conn, port)
		errCh <- err
	}()

	go func() {
		_, err := io.Copy(port, conn)
		errCh <- err
	}()

	var err error
	pending := 2
	select {
	case err = <-errCh:
		pending--
	case <-ctx.Done():
		err = ctx.Err()
	}
	logger.Info("Closing connection")
	err = errors.Join(err, conn.Close())
	logger.Info("Closing port")
	err = errors.Join(err, port.Close())
	logger.Info("Waiting for copy routines to return")
	// Remaining copies fail on the closed ends.
	for ; pending > 0; pending-- {
		<-errCh
	}

	return err
}
