// Package storage defines the run ledger interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"cnjp_news/internal/model"
)

// ErrLocked is returned when another runner holds the job lock.
var ErrLocked = errors.New("job is locked by another run")

// Storage records pipeline runs and serializes runners of the same job.
type Storage interface {
	AcquireLock(ctx context.Context, job, owner string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, job, owner string) error

	StartRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, job string, limit int) ([]model.Run, error)

	Close() error
}
