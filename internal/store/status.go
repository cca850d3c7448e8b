// Package store keeps the status of pipeline runs.
package store

import (
	"context"
	"sync"
	"time"
)

// Run states.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Status is the externally visible state of one run.
type Status struct {
	Status   string         `json:"status"`
	Stage    string         `json:"stage"`
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Start    *time.Time     `json:"start_time,omitempty"`
	End      *time.Time     `json:"end_time,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Store persists run statuses.
type Store interface {
	Set(ctx context.Context, runID string, st Status) error
	Get(ctx context.Context, runID string) (Status, bool, error)
}

// Memory is a process-local Store used when Redis is not configured.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]Status
}

func NewMemory() *Memory { return &Memory{runs: map[string]Status{}} }

func (m *Memory) Set(_ context.Context, runID string, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = st
	return nil
}

func (m *Memory) Get(_ context.Context, runID string) (Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.runs[runID]
	return st, ok, nil
}
