package client

import (
	"context"
	"time"
)

// Shutdown hook priorities. Lower runs first.
const (
	PriorityStopAccepting = 10
	PriorityCloseTransport = 50
	PriorityStopMetrics    = 60
	PriorityFlushTracing   = 100
)

// RegisterShutdownHooks registers the client's cleanup with its coordinator:
// stop taking new requests and wait for running handlers, close the
// transports, stop the metrics endpoint, then flush pending spans.
func (c *Client) RegisterShutdownHooks() {
	c.shutdown.Register(c.stopAccepting, PriorityStopAccepting, "stop accepting work")
	c.shutdown.Register(c.closeTransports, PriorityCloseTransport, "close transport")
	if c.metricsServer != nil {
		c.shutdown.Register(c.stopMetrics, PriorityStopMetrics, "stop metrics server")
	}
	if c.provider != nil {
		c.shutdown.Register(c.flushTracing, PriorityFlushTracing, "flush tracing")
	}
}

func (c *Client) stopAccepting(ctx context.Context) (int, error) {
	c.mu.Lock()
	c.accepting = false
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return 0, nil
	case <-ctx.Done():
		return 1, ctx.Err()
	}
}

func (c *Client) closeTransports(ctx context.Context) (int, error) {
	status := 0
	var firstErr error
	for _, cl := range c.closers {
		start := time.Now()
		if err := cl.close(); err != nil {
			c.log.Warn("Close failed", map[string]interface{}{
				"transport": cl.name,
				"error":     err.Error(),
			})
			status = 1
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.log.Debug("Closed", map[string]interface{}{
			"transport":   cl.name,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
	return status, firstErr
}

func (c *Client) stopMetrics(ctx context.Context) (int, error) {
	if err := c.metricsServer.Shutdown(ctx); err != nil {
		return 1, err
	}
	return 0, nil
}

func (c *Client) flushTracing(ctx context.Context) (int, error) {
	if err := c.provider.Shutdown(ctx); err != nil {
		return 1, err
	}
	return 0, nil
}
