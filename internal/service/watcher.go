package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AlertChecker is the part of the dashboard the watcher drives.
type AlertChecker interface {
	CheckAlerts(ctx context.Context) ([]Alert, error)
}

// AlertWatcher re-evaluates the alert rules on a fixed interval so fired
// alerts reach the publishers without a client asking.
type AlertWatcher struct {
	checker  AlertChecker
	interval time.Duration
	logger   *zap.Logger
}

func NewAlertWatcher(checker AlertChecker, interval time.Duration, logger *zap.Logger) *AlertWatcher {
	if checker == nil {
		panic("checker must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertWatcher{checker: checker, interval: interval, logger: logger}
}

// Run checks once immediately and then on every tick until ctx is done.
func (w *AlertWatcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return nil
	}
	w.logger.Info("starting alert watcher", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping alert watcher")
			return nil
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *AlertWatcher) check(ctx context.Context) {
	alerts, err := w.checker.CheckAlerts(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("alert check failed", zap.Error(err))
		}
		return
	}
	for _, a := range alerts {
		w.logger.Warn("alert fired", zap.String("id", a.ID), zap.String("message", a.Message))
	}
}
