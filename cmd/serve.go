package main

import (
	"errors"
	"fmt"
	"net"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/StephanGeberl/GCodeSender/transport"
)

var listenAddress string
var defaultListenAddress = "127.0.0.1:9999"

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a TCP server connected to a serial port.",
	Long:  "Opens serial port and a TCP server, and pipes communication between both, so other gcs commands can connect with --address. There's NO security implemented, this can only be used in secure networks at your own risk.",
	Args:  cobra.NoArgs,
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"port-name", portName,
			"baud-rate", baudRate,
			"listen-address", listenAddress,
		)
		cmd.SetContext(ctx)

		logger.Info("Listening")
		listenConfig := net.ListenConfig{}
		listener, err := listenConfig.Listen(ctx, "tcp", listenAddress)
		if err != nil {
			return fmt.Errorf("failed to listen: %s: %w", listenAddress, err)
		}
		go func() {
			<-ctx.Done()
			listener.Close()
		}()

		for {
			logger.Info("Accepting connection")
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.Is(err, net.ErrClosed) {
					return err
				}
				logger.Error("Failed to accept connection", "error", err)
				continue
			}
			connCtx, connLogger := log.MustWithGroupAttrs(
				ctx,
				"Connection",
				"LocalAddr", conn.LocalAddr(),
				"RemoteAddr", conn.RemoteAddr(),
			)
			connLogger.Info("Accepted")

			port, err := transport.OpenSerialPort(connCtx, portName, baudRate)
			if err != nil {
				connLogger.Error("Failed to open port", "error", err)
				if err := conn.Close(); err != nil {
					connLogger.Error("Failed to close connection", "error", err)
				}
				continue
			}

			if err := transport.Bridge(connCtx, conn, port); err != nil {
				connLogger.Error("Failed to handle connection", "error", err)
			}
		}
	}),
}

func init() {
	ServeCmd.PersistentFlags().StringVarP(&portName, "port-name", "p", defaultPortName, "Serial port name to open")
	if err := ServeCmd.MarkPersistentFlagRequired("port-name"); err != nil {
		panic(err)
	}
	ServeCmd.PersistentFlags().IntVarP(&baudRate, "baud-rate", "b", defaultBaudRate, "Serial port baud rate")
	ServeCmd.PersistentFlags().StringVar(&listenAddress, "listen-address", defaultListenAddress, "TCP address to listen on (host:port)")

	RootCmd.AddCommand(ServeCmd)

	resetFlagsFns = append(resetFlagsFns, func() {
		listenAddress = defaultListenAddress
	})
}
