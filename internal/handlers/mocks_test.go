package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hoopstat/analytics-engine/internal/logic"
	"github.com/hoopstat/analytics-engine/internal/models"
	"github.com/hoopstat/analytics-engine/internal/scheduler"
)

// MockJobQueue records published jobs
type MockJobQueue struct {
	mu          sync.Mutex
	Jobs        []models.Job
	Delays      []time.Duration
	EnqueueFunc func(job models.Job) (bool, error)
	DepthErr    error
	seen        map[string]bool
}

func (m *MockJobQueue) publish(job models.Job, delay time.Duration) (models.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = "job-" + string(job.Type)
	}
	if m.EnqueueFunc != nil {
		ok, err := m.EnqueueFunc(job)
		if err != nil || !ok {
			return job, ok, err
		}
	}
	if job.DedupKey != "" {
		if m.seen == nil {
			m.seen = map[string]bool{}
		}
		if m.seen[job.DedupKey] {
			return job, false, nil
		}
		m.seen[job.DedupKey] = true
	}
	m.Jobs = append(m.Jobs, job)
	m.Delays = append(m.Delays, delay)
	return job, true, nil
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job models.Job) (models.Job, bool, error) {
	return m.publish(job, 0)
}

func (m *MockJobQueue) EnqueueAfter(ctx context.Context, job models.Job, delay time.Duration) (models.Job, bool, error) {
	return m.publish(job, delay)
}

func (m *MockJobQueue) QueueDepth(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.Jobs)), m.DepthErr
}

type MockPinger struct {
	Err error
}

func (m *MockPinger) Ping(ctx context.Context) error { return m.Err }

type MockRedisPinger struct {
	Err error
}

func (m *MockRedisPinger) Ping(ctx context.Context) *redis.StatusCmd {
	if m.Err != nil {
		return redis.NewStatusResult("", m.Err)
	}
	return redis.NewStatusResult("PONG", nil)
}

// MockAnalyticsReader serves records from maps; missing keys are not found
type MockAnalyticsReader struct {
	Players     map[int64]*models.PlayerAnalyticsSnapshot
	Teams       map[int64]*models.TeamAnalyticsSnapshot
	Predictions map[int64]*models.GamePrediction
	Err         error
}

func (m *MockAnalyticsReader) LatestPlayerSnapshot(ctx context.Context, playerID int64) (*models.PlayerAnalyticsSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if s, ok := m.Players[playerID]; ok {
		return s, nil
	}
	return nil, logic.ErrNotFound
}

func (m *MockAnalyticsReader) LatestTeamSnapshot(ctx context.Context, teamID int64) (*models.TeamAnalyticsSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if s, ok := m.Teams[teamID]; ok {
		return s, nil
	}
	return nil, logic.ErrNotFound
}

func (m *MockAnalyticsReader) LatestGamePrediction(ctx context.Context, gameID int64) (*models.GamePrediction, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if p, ok := m.Predictions[gameID]; ok {
		return p, nil
	}
	return nil, logic.ErrNotFound
}

type MockGameReader struct {
	Games map[int64]models.Game
	Err   error
}

func (m *MockGameReader) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	g, ok := m.Games[gameID]
	if !ok {
		return nil, logic.ErrNotFound
	}
	return &g, nil
}

type MockSchedule struct {
	Entries []scheduler.EntryStatus
}

func (m *MockSchedule) Schedule() []scheduler.EntryStatus { return m.Entries }

var errBackend = errors.New("backend unavailable")
