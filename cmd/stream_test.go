package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/stretchr/testify/require"

	"github.com/StephanGeberl/GCodeSender/controller"
	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

type pipeTransport struct {
	mu       sync.Mutex
	realTime []byte
}

func (p *pipeTransport) ReadLine(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (p *pipeTransport) Write([]byte) error {
	return nil
}

func (p *pipeTransport) WriteRealTime(b byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.realTime = append(p.realTime, b)
	return nil
}

func (p *pipeTransport) Close() error {
	return nil
}

func (p *pipeTransport) RealTime() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.realTime)
}

func newStreamingController(t *testing.T, ctx context.Context, lines string) (*ConnectedController, *pipeTransport) {
	options := controller.DefaultOptions()
	options.StatusUpdateRate = time.Hour
	options.ResetOnConnect = false
	c := controller.New(grblMod.NewFirmware(grblMod.DefaultFirmwareConfig()), options)
	cc := &ConnectedController{Controller: c, Events: c.Subscribe("test", 1000), name: "test"}
	transport := &pipeTransport{}
	require.NoError(t, c.Connect(ctx, func(context.Context) (controller.Transport, error) {
		return transport, nil
	}))
	t.Cleanup(func() {
		require.NoError(t, cc.Close(log.WithLogger(context.Background(), slog.New(slog.DiscardHandler))))
	})

	c.HandleResponse(ctx, "Grbl 1.1f ['$' for help]")
	for {
		if _, ok := c.ActiveCommand(); !ok {
			break
		}
		c.HandleResponse(ctx, "ok")
	}

	path := filepath.Join(t.TempDir(), "program.nc")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	require.NoError(t, streamFile(ctx, c, path))
	return cc, transport
}

func TestWaitStreamCancelsOnError(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.DiscardHandler))
	c, transport := newStreamingController(t, ctx, "G0 X1\nG0 X2\nG0 X3\n")

	c.HandleResponse(ctx, "ok")
	c.HandleResponse(ctx, "error:20")

	var output bytes.Buffer
	_, err := waitStream(ctx, c, &output, false)
	var fault *controller.Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, controller.FaultProtocol, fault.Kind)
	require.Equal(t, 20, fault.Code)
	require.Equal(t, "G0 X2", fault.Command)
	require.False(t, c.IsStreaming())
	require.Equal(t, "!", transport.RealTime())
	require.Contains(t, output.String(), "!! An error was detected while sending 'G0 X2'")
}

func TestWaitStreamCancelsOnAlarm(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.DiscardHandler))
	c, _ := newStreamingController(t, ctx, "G0 X1\nG0 X2\n")

	c.HandleResponse(ctx, "ALARM:1")

	_, err := waitStream(ctx, c, &bytes.Buffer{}, true)
	var fault *controller.Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, controller.FaultAlarm, fault.Kind)
	require.False(t, c.IsStreaming())
}

func TestWaitStreamResumesOnErrorInCheckMode(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.DiscardHandler))
	c, transport := newStreamingController(t, ctx, "G0 X1\nG0 X2\nG0 X3\n")

	c.HandleResponse(ctx, "ok")
	c.HandleResponse(ctx, "error:20")

	type outcome struct {
		result controller.StreamCompleteEvent
		err    error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		result, err := waitStream(ctx, c, &bytes.Buffer{}, true)
		outcomeCh <- outcome{result: result, err: err}
	}()

	require.Eventually(t, func() bool {
		return transport.RealTime() == "!~"
	}, time.Second, time.Millisecond)
	c.HandleResponse(ctx, "ok")
	c.HandleResponse(ctx, "<Check|MPos:0.000,0.000,0.000|FS:0,0>")

	select {
	case o := <-outcomeCh:
		require.NoError(t, o.err)
		require.False(t, o.result.Success)
		require.Equal(t, 3, o.result.Stats.RowsCompleted)
	case <-time.After(time.Second):
		t.Fatal("stream did not complete")
	}
}
