package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/usecase"
)

// ReaperWorker periodically settles jobs stuck in RUNNING. A worker crash
// between delivery and the terminal event leaves the record RUNNING forever;
// the queue redelivers the item, but if the whole process died the refund
// still has to happen. This loop is that backstop.
type ReaperWorker struct {
	interval     time.Duration
	stalledAfter time.Duration
	jobUC        usecase.JobUseCase
	log          *zerolog.Logger
}

func NewReaperWorker(interval, stalledAfter time.Duration, jobUC usecase.JobUseCase, logger *zerolog.Logger) *ReaperWorker {
	reapLog := logger.With().Str("component", "ReaperWorker").Logger()
	return &ReaperWorker{
		interval:     interval,
		stalledAfter: stalledAfter,
		jobUC:        jobUC,
		log:          &reapLog,
	}
}

func (w *ReaperWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stalled_after", w.stalledAfter).Msg("starting reaper worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping reaper worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.jobUC.ReapStalled(ctx, w.stalledAfter)
			if err != nil {
				w.log.Error().Err(err).Msg("reaper pass failed")
			}
			if n > 0 {
				w.log.Warn().Int("count", n).Msg("stalled jobs settled")
			}
		}
	}
}
