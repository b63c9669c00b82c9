package feed

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	appLog "regattacal/internal/log"
)

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Start schedules Refresh on a standard five-field cron spec, evaluated in
// loc (nil means time.Local). Each run is bounded by timeout. A tick that
// arrives while the previous run is still going is skipped.
func (s *Service) Start(spec string, loc *time.Location, timeout time.Duration) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if s.cron != nil {
		return errors.New("feed refresh already scheduled")
	}
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return err
	}

	c.Start()
	s.cron = c
	appLog.Info("feed refresh scheduled", "spec", spec, "tz", loc.String())
	return nil
}

// NextRun is the next scheduled refresh, or the zero time when not started.
func (s *Service) NextRun() time.Time {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the schedule and waits for a running refresh to finish or for
// ctx to end.
func (s *Service) Stop(ctx context.Context) {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}
