package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck returns a CheckFunc that reports unhealthy when the
// number of goroutines exceeds the given threshold. This is useful as a
// liveness check to detect goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck returns a CheckFunc that reports unhealthy when the maximum
// GC pause (stop-the-world) duration exceeds the given threshold. This is
// useful as a liveness check to detect memory pressure or excessively large
// heaps causing long GC pauses.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}

// Pinger is implemented by *pgxpool.Pool and *redis.Client wrappers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck returns a CheckFunc that pings a dependency.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// PoolStats is the subset of pgxpool.Stat that PoolSaturationCheck reads.
type PoolStats interface {
	AcquiredConns() int32
	MaxConns() int32
	EmptyAcquireCount() int64
}

// PoolSaturationCheck reports unhealthy when every connection of the pool
// has been busy and new acquires had to wait on each of the last threshold
// consecutive runs.
func PoolSaturationCheck[S PoolStats](stat func() S, threshold int) CheckFunc {
	var (
		lastWaits int64
		saturated int
	)
	return func(_ context.Context) error {
		s := stat()
		waits := s.EmptyAcquireCount()
		if s.MaxConns() > 0 && s.AcquiredConns() >= s.MaxConns() && waits > lastWaits {
			saturated++
		} else {
			saturated = 0
		}
		lastWaits = waits
		if saturated >= threshold {
			return errors.Errorf("connection pool saturated: %d/%d connections in use",
				s.AcquiredConns(), s.MaxConns())
		}
		return nil
	}
}
