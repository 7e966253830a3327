package hybrid

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/hunterhub/hunter-ranking/pkg/logger"
)

// Start runs the auto sync scheduler until Stop. Sync jobs use ctx.
func (s *Service) Start(ctx context.Context) {
	s.cronMu.Lock()
	if s.scheduler != nil {
		s.cronMu.Unlock()
		return
	}
	cl := cronLogger{log: s.log}
	s.scheduler = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)
	s.syncCtx = ctx
	s.scheduler.Start()
	s.cronMu.Unlock()

	s.reschedule()
}

// Stop halts the scheduler and waits for a running sync to finish.
func (s *Service) Stop() {
	s.cronMu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.syncEntry = 0
	s.cronMu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
}

// AutoSyncScheduled reports whether a periodic sync is registered.
func (s *Service) AutoSyncScheduled() bool {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	return s.syncEntry != 0
}

// reschedule replaces the sync job to match the current config.
func (s *Service) reschedule() {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.scheduler == nil {
		return
	}
	if s.syncEntry != 0 {
		s.scheduler.Remove(s.syncEntry)
		s.syncEntry = 0
	}

	cfg := s.Config()
	if !cfg.AutoSync || cfg.SyncInterval <= 0 {
		return
	}
	id, err := s.scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.interval()), s.autoSync)
	if err != nil {
		s.log.Error(s.syncCtx, "auto sync not scheduled", logger.Error(err))
		return
	}
	s.syncEntry = id
	s.log.Info(s.syncCtx, "auto sync scheduled", logger.Duration("interval", cfg.interval()))
}

func (s *Service) autoSync() {
	s.cronMu.Lock()
	ctx := s.syncCtx
	s.cronMu.Unlock()

	if !s.Config().UseCloud {
		return
	}
	report, err := s.sync(ctx)
	if err != nil {
		return
	}
	s.log.Info(ctx, "auto sync finished",
		logger.Int("pushed", report.Pushed), logger.Int("failed", report.Failed), logger.Int("cleared", report.Cleared))
}

// cronLogger routes scheduler messages to the service logger.
type cronLogger struct {
	log logger.Logger
}

func (cl cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.log.Debug(context.Background(), "cron: "+msg, logger.Any("details", keysAndValues))
}

func (cl cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	cl.log.Error(context.Background(), "cron: "+msg, logger.Error(err), logger.Any("details", keysAndValues))
}
