package authcore

import (
	"context"
	"time"
)

// StartSweeper launches the background maintenance loop: pruning idle
// rate-limit windows and purging error-log rows past retention. It is a
// no-op when a sweeper is already running. The loop stops on
// [Engine.StopSweeper] or [Engine.Close].
func (e *Engine) StartSweeper() {
	if e == nil || e.limiter == nil {
		return
	}

	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	if e.sweepStop != nil {
		return
	}

	e.sweepStop = make(chan struct{})
	e.sweepDone = make(chan struct{})

	go e.sweepLoop(e.sweepStop, e.sweepDone)
}

// StopSweeper stops the background loop and waits for the in-flight pass
// to finish.
func (e *Engine) StopSweeper() {
	if e == nil {
		return
	}

	e.sweepMu.Lock()
	stop, done := e.sweepStop, e.sweepDone
	e.sweepStop, e.sweepDone = nil, nil
	e.sweepMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (e *Engine) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.config.Sweep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.sweepOnce()
		}
	}
}

func (e *Engine) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := e.limiter.SweepIdle(ctx, e.config.Sweep.RateWindowRetention)
	if err != nil {
		e.logger.Warn().Err(err).Msg("rate window sweep failed")
	} else if removed > 0 {
		e.logger.Debug().Int("removed", removed).Msg("rate window sweep")
	}

	if e.recordStore != nil {
		purged, err := e.recordStore.PurgeOlderThan(ctx, e.config.ErrorLog.Retention)
		if err != nil {
			e.logger.Warn().Err(err).Msg("error log purge failed")
		} else if purged > 0 {
			e.logger.Debug().Int64("purged", purged).Msg("error log purge")
		}
	}

	e.metricInc(MetricSweepRuns)
}
