package graceful

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Laisky/zap"

	"github.com/skybridge-ai/bedrock-gateway/common/logger"
)

// Lifecycle manager for graceful shutdown. Usage accounting runs after the
// last client byte, so shutdown has to wait for those goroutines as well as
// in-flight requests.

var (
	inFlightRequests int64
	draining         atomic.Bool

	wg sync.WaitGroup
)

// BeginRequest increments the in-flight request counter and returns a function
// to decrement it. Use with `defer` at the top of request handlers/middlewares.
func BeginRequest() func() {
	atomic.AddInt64(&inFlightRequests, 1)
	return func() {
		atomic.AddInt64(&inFlightRequests, -1)
	}
}

// GoCritical runs fn in a tracked goroutine and decrements when done.
// Use for post-response tasks that must not be dropped on shutdown, i.e. the
// usage-record and budget writes.
func GoCritical(ctx context.Context, name string, fn func(context.Context)) {
	wg.Go(func() {
		start := time.Now()
		logger.Logger.Debug("critical task start", zap.String("name", name))
		fn(ctx)
		logger.Logger.Debug("critical task done", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	})
}

// Drain waits for tracked critical tasks and in-flight requests, bounded by
// the ctx deadline. Call after http.Server.Shutdown has stopped accepting.
func Drain(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Logger.Error("graceful drain timeout",
				zap.Int64("in_flight_requests", atomic.LoadInt64(&inFlightRequests)))
			return ctx.Err()
		case <-done:
			for {
				n := atomic.LoadInt64(&inFlightRequests)
				if n == 0 {
					logger.Logger.Info("graceful drain complete")
					return nil
				}
				select {
				case <-ctx.Done():
					logger.Logger.Error("graceful drain timeout (requests not zero)", zap.Int64("in_flight_requests", n))
					return ctx.Err()
				case <-ticker.C:
				}
			}
		case <-ticker.C:
			logger.Logger.Debug("draining...",
				zap.Int64("in_flight_requests", atomic.LoadInt64(&inFlightRequests)))
		}
	}
}

// SetDraining flips the draining flag to true.
func SetDraining() { draining.Store(true) }

// IsDraining returns whether the server is currently draining; the readiness
// probe reports 503 while true so the load balancer stops sending traffic.
func IsDraining() bool { return draining.Load() }
