// Package jobs holds the periodic batch work: monthly fee generation and the
// stale unverified-account reaper. Both run on independent tickers and are
// also reachable through a manual HTTP trigger for deployments without a
// resident scheduler.
package jobs

import (
	"context"
	"log"
	"time"

	"classhub/server/internal/config"
)

type runnable interface {
	Run(ctx context.Context) error
}

func StartFeeGenerationJob(ctx context.Context, cfg config.Config, gen *FeeGenerator, lease *Lease) {
	if !cfg.FeeJobEnabled {
		return
	}
	startTicker(ctx, "fee generation", cfg.FeeJobInterval, cfg.FeeJobTimeout, gen, lease)
}

func StartReaperJob(ctx context.Context, cfg config.Config, reaper *Reaper, lease *Lease) {
	if !cfg.ReaperEnabled {
		return
	}
	startTicker(ctx, "reaper", cfg.ReaperInterval, cfg.ReaperTimeout, reaper, lease)
}

func startTicker(ctx context.Context, name string, interval, timeout time.Duration, job runnable, lease *Lease) {
	if interval <= 0 {
		interval = time.Hour
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				if err := RunWithLease(tickCtx, name, job, lease); err != nil {
					log.Printf("%s job error: %v", name, err)
				}
				cancel()
			}
		}
	}()
}

// RunWithLease runs a job under the lease, skipping silently when another
// process holds it. Used by both the tickers and the manual trigger endpoint.
func RunWithLease(ctx context.Context, name string, job runnable, lease *Lease) error {
	acquired, err := lease.Acquire(ctx)
	if err != nil {
		// Losing Redis must not stop the batch work.
		log.Printf("%s job: lease acquire failed, running anyway: %v", name, err)
		acquired = true
	}
	if !acquired {
		log.Printf("%s job: lease held elsewhere, skipping run", name)
		return nil
	}
	defer lease.Release(ctx)
	return job.Run(ctx)
}
