// Package maintenance runs the background retention sweeper that purges
// expired and long-revoked refresh records.
package maintenance

import (
	"context"
	"database/sql"
	"time"

	"github.com/moviemate/authkeeper/internal/logging"
	"github.com/moviemate/authkeeper/internal/server/repositories/repomanager"
)

// Sweeper periodically deletes refresh records that are past expiry, or
// revoked longer ago than the retention window. Live records are never
// touched, so a crash between sweeps costs nothing but disk.
type Sweeper struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	logger       logging.Logger
	startupDelay time.Duration
	interval     time.Duration
	retention    time.Duration
}

// NewSweeper constructs a Sweeper purging on the given cadence.
func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		db:           db,
		repomanager:  m,
		logger:       logger.With("component", "sweeper"),
		startupDelay: 10 * time.Second,
		interval:     interval,
		retention:    retention,
	}
}

// Run sweeps once shortly after startup, then once per interval until ctx is
// cancelled. Errors are logged and the loop keeps going: a failed sweep only
// delays cleanup.
func (s *Sweeper) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startupDelay):
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	repo := s.repomanager.RefreshRecords(s.db)
	deleted, err := repo.DeleteExpired(ctx, time.Now(), s.retention)
	if err != nil {
		s.logger.Error(ctx, "sweep failed", "error", err)
		return
	}
	s.logger.Info(ctx, "sweep complete", "deleted", deleted)
}
