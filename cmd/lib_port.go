package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/StephanGeberl/GCodeSender/controller"
	"github.com/StephanGeberl/GCodeSender/transport"
)

var portName string
var defaultPortName = ""

var baudRate int
var defaultBaudRate = transport.DefaultBaudRate

var address string
var defaultAddress = ""

var connectTimeout time.Duration
var defaultConnectTimeout = 5 * time.Second

func AddPortFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&portName, "port-name", "p", defaultPortName, "Serial port name to open")
	cmd.PersistentFlags().IntVarP(&baudRate, "baud-rate", "b", defaultBaudRate, "Serial port baud rate")
	cmd.PersistentFlags().StringVarP(&address, "address", "a", defaultAddress, "TCP address to connect to (host:port), eg a gcs serve bridge")
	cmd.PersistentFlags().DurationVar(&connectTimeout, "connect-timeout", defaultConnectTimeout, "TCP connection timeout")
	cmd.MarkFlagsMutuallyExclusive("port-name", "address")
}

func GetOpenTransportFn() (controller.OpenTransportFn, error) {
	if portName != "" && address != "" {
		return nil, fmt.Errorf("flags --port-name and --address can not be set simultaneously")
	}

	if portName != "" {
		return func(ctx context.Context) (controller.Transport, error) {
			portTransport, err := transport.OpenSerial(ctx, portName, baudRate)
			if err != nil {
				return nil, err
			}
			return portTransport, nil
		}, nil
	}

	if address != "" {
		return func(ctx context.Context) (controller.Transport, error) {
			portTransport, err := transport.DialTCP(ctx, address, connectTimeout)
			if err != nil {
				return nil, err
			}
			return portTransport, nil
		}, nil
	}

	return nil, fmt.Errorf("either --port-name or --address must be set")
}

func init() {
	resetFlagsFns = append(resetFlagsFns, func() {
		portName = defaultPortName
		baudRate = defaultBaudRate
		address = defaultAddress
		connectTimeout = defaultConnectTimeout
	})
}
