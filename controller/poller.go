package controller

import (
	"context"
	"time"

	"github.com/fornellas/slogxt/log"

	grblMod "github.com/StephanGeberl/GCodeSender/grbl"
)

// Outstanding polls after which a lost status report is assumed and the query is sent again.
const statusPollCeiling = 20

// statusPoller emits a tick every rate. Ticks are dropped when the previous one was not consumed
// yet.
type statusPoller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startStatusPoller(ctx context.Context, rate time.Duration, tickCh chan<- struct{}) *statusPoller {
	ctx, cancel := context.WithCancel(ctx)
	p := &statusPoller{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(rate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case tickCh <- struct{}{}:
				default:
				}
			}
		}
	}()
	return p
}

// Stop returns once no more ticks will be emitted.
func (p *statusPoller) Stop() {
	p.cancel()
	<-p.done
}

func (c *Controller) startPolling() {
	if c.poller != nil || c.transport == nil || !c.ready {
		return
	}
	if !c.options.StatusUpdatesEnabled || !c.capabilities.Has(grblMod.CapabilityRealTime) {
		return
	}
	if c.options.StatusUpdateRate <= 0 {
		return
	}
	c.outstandingPolls = 0
	c.poller = startStatusPoller(c.connCtx, c.options.StatusUpdateRate, c.pollTickCh)
}

func (c *Controller) stopPolling() {
	if c.poller == nil {
		return
	}
	c.poller.Stop()
	c.poller = nil
}

func (c *Controller) pollTick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poller == nil || c.transport == nil {
		return
	}

	if c.outstandingPolls == 0 {
		c.outstandingPolls++
		if err := c.writeRealTime(ctx, grblMod.RealTimeCommandStatusReportQuery); err != nil {
			log.MustLogger(ctx).Error("Status query failed", "err", err)
		}
		return
	}
	c.outstandingPolls++
	if c.outstandingPolls >= statusPollCeiling {
		log.MustLogger(ctx).Debug("Status report lost", "outstanding", c.outstandingPolls)
		c.outstandingPolls = 0
	}
}

// SetStatusUpdatesEnabled starts or stops status polling. Re-enabling starts with zero
// outstanding polls.
func (c *Controller) SetStatusUpdatesEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options.StatusUpdatesEnabled = enabled
	c.stopPolling()
	c.startPolling()
}

// SetStatusUpdateRate restarts status polling with the new interval.
func (c *Controller) SetStatusUpdateRate(rate time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options.StatusUpdateRate = rate
	c.stopPolling()
	c.startPolling()
}

func (c *Controller) StatusUpdatesEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options.StatusUpdatesEnabled
}

func (c *Controller) StatusUpdateRate() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options.StatusUpdateRate
}

// OutstandingPolls is the number of status queries not yet answered.
func (c *Controller) OutstandingPolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstandingPolls
}
