package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type starter interface {
	Start(ctx context.Context, opts RunOptions) (<-chan Result, error)
}

// Scheduler starts a daily run at the configured hour. Settings are re-read on every
// tick, so enabling the schedule or moving the hour needs no restart.
type Scheduler struct {
	pipeline starter
	settings SettingsProvider
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	lastRun time.Time
}

func NewScheduler(pipeline *Orchestrator, settings SettingsProvider, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		settings: settings,
		logger:   logger,
		interval: time.Minute,
		now:      time.Now,
	}
}

// StartWatcher polls until ctx is done.
func (s *Scheduler) StartWatcher(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// tick reports whether a run was started.
func (s *Scheduler) tick(ctx context.Context) bool {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("scheduler could not read settings", "error", err)
		return false
	}
	if !snap.PipelineScheduleEnabled {
		return false
	}

	now := s.now()
	if now.Hour() != snap.PipelineScheduleHour || sameDay(now, s.lastRun) {
		return false
	}

	_, err = s.pipeline.Start(context.WithoutCancel(ctx), RunOptions{})
	if errors.Is(err, ErrAlreadyRunning) {
		s.logger.Info("scheduled run skipped, pipeline already running")
		s.lastRun = now
		return false
	}
	if err != nil {
		s.logger.Error("scheduled run failed to start", "error", err)
		return false
	}
	s.lastRun = now
	s.logger.Info("scheduled pipeline run started", "next", CalculateNextTime(now, snap.PipelineScheduleHour))
	return true
}

// CalculateNextTime returns the next occurrence of hour:00 strictly after now.
func CalculateNextTime(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func sameDay(a, b time.Time) bool {
	if b.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
