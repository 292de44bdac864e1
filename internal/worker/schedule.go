package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"creatorpulse/internal/ports"
)

// Pruner deletes stored records older than the retention window.
type Pruner interface {
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// ScheduleConfig holds the cron cadences and per-run parameters.
type ScheduleConfig struct {
	RunSpec     string
	CleanupSpec string
	Timezone    string
	MaxDrafts   int
	ContentAge  time.Duration
	Retention   time.Duration
}

// Schedule enqueues one pipeline run per active user on a cron cadence
// and prunes old content on a second, slower one.
type Schedule struct {
	cron   *cron.Cron
	users  ports.UserDirectory
	pool   *Pool
	pruner Pruner
	logger *slog.Logger
	cfg    ScheduleConfig
}

// NewSchedule binds the user directory, pool and pruner to the
// configured cron expressions in the given timezone. A nil pruner or an
// empty cleanup expression disables the cleanup entry.
func NewSchedule(cfg ScheduleConfig, users ports.UserDirectory, pool *Pool, pruner Pruner, logger *slog.Logger) (*Schedule, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Schedule{
		cron:   cron.New(cron.WithLocation(loc)),
		users:  users,
		pool:   pool,
		pruner: pruner,
		logger: logger,
		cfg:    cfg,
	}

	ctx := context.Background()
	if _, err := s.cron.AddFunc(cfg.RunSpec, func() { s.enqueueAll(ctx) }); err != nil {
		return nil, fmt.Errorf("add cron entry %q: %w", cfg.RunSpec, err)
	}
	if pruner != nil && cfg.CleanupSpec != "" {
		if _, err := s.cron.AddFunc(cfg.CleanupSpec, func() { s.pruneOld(ctx) }); err != nil {
			return nil, fmt.Errorf("add cron entry %q: %w", cfg.CleanupSpec, err)
		}
	}
	return s, nil
}

// Start begins the cron loop; it returns immediately.
func (s *Schedule) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any enqueue in progress.
func (s *Schedule) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Schedule) enqueueAll(ctx context.Context) {
	users, err := s.users.ActiveUsers(ctx)
	if err != nil {
		s.logger.Error("cannot list active users for scheduled runs", "error", err)
		return
	}

	var dropped int
	for _, userID := range users {
		req := Request{UserID: userID, MaxDrafts: s.cfg.MaxDrafts, ContentAge: s.cfg.ContentAge}
		if !s.pool.Enqueue(req) {
			dropped++
		}
	}

	s.logger.Info("scheduled pipeline runs", "users", len(users), "dropped", dropped)
}

func (s *Schedule) pruneOld(ctx context.Context) {
	pruned, err := s.pruner.PruneOlderThan(ctx, s.cfg.Retention)
	if err != nil {
		s.logger.Error("content cleanup failed", "error", err)
		return
	}
	s.logger.Info("pruned old content", "rows", pruned, "retention", s.cfg.Retention)
}
