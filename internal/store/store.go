package store

import (
	"context"

	"github.com/seantiz/tickq/internal/model"
)

// DrainStats holds aggregate statistics over journaled drain sessions.
type DrainStats struct {
	Total          int            `json:"total"`
	CountByMode    map[string]int `json:"count_by_mode"`
	CountByOutcome map[string]int `json:"count_by_outcome"`
	TasksExecuted  int            `json:"tasks_executed"`
	TasksFailed    int            `json:"tasks_failed"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for the drain journal.
type Store interface {
	RecordDrain(ctx context.Context, rec *model.DrainRecord, failures []model.FailureRecord) error
	GetDrain(ctx context.Context, id string) (*model.DrainRecord, error)
	ListDrains(ctx context.Context, limit, offset int) ([]*model.DrainRecord, int, error)
	ListFailures(ctx context.Context, queue string, limit int) ([]*model.FailureRecord, error)
	GetDrainStats(ctx context.Context) (*DrainStats, error)
	Close() error
}
