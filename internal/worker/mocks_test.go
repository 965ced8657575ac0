package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/hoopstat/analytics-engine/internal/logic"
	"github.com/hoopstat/analytics-engine/internal/models"
)

// FakeStreams is an in-memory StreamClient with a single consumer group per stream
type FakeStreams struct {
	mu      sync.Mutex
	seq     int
	streams map[string][]redis.XMessage
	cursor  map[string]int
	groups  map[string]bool
	acked   map[string]bool
	read    map[string]time.Time // delivery time of pending messages
	zset    map[string]float64
	keys    map[string]interface{}
}

func NewFakeStreams() *FakeStreams {
	return &FakeStreams{
		streams: map[string][]redis.XMessage{},
		cursor:  map[string]int{},
		groups:  map[string]bool{},
		acked:   map[string]bool{},
		read:    map[string]time.Time{},
		zset:    map[string]float64{},
		keys:    map[string]interface{}{},
	}
}

func (f *FakeStreams) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("%d-0", f.seq)
	values, _ := a.Values.(map[string]interface{})
	f.streams[a.Stream] = append(f.streams[a.Stream], redis.XMessage{ID: id, Values: values})
	return redis.NewStringResult(id, nil)
}

func (f *FakeStreams) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[stream] {
		return redis.NewStatusResult("", errors.New("BUSYGROUP Consumer Group name already exists"))
	}
	f.groups[stream] = true
	return redis.NewStatusResult("OK", nil)
}

func (f *FakeStreams) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	key := a.Streams[0]
	f.mu.Lock()
	msgs := f.streams[key]
	start := f.cursor[key]
	end := len(msgs)
	if a.Count > 0 && start+int(a.Count) < end {
		end = start + int(a.Count)
	}
	out := append([]redis.XMessage(nil), msgs[start:end]...)
	f.cursor[key] = end
	for _, m := range out {
		f.read[m.ID] = time.Now()
	}
	f.mu.Unlock()

	if len(out) == 0 {
		select {
		case <-time.After(min(a.Block, 5*time.Millisecond)):
		case <-ctx.Done():
			return redis.NewXStreamSliceCmdResult(nil, ctx.Err())
		}
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: key, Messages: out}}, nil)
}

// XAutoClaim returns every pending message idle for at least MinIdle in one page
func (f *FakeStreams) XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var claimed []redis.XMessage
	now := time.Now()
	for i, m := range f.streams[a.Stream] {
		if i >= f.cursor[a.Stream] {
			break
		}
		at, pending := f.read[m.ID]
		if !pending || f.acked[m.ID] || now.Sub(at) < a.MinIdle {
			continue
		}
		f.read[m.ID] = now
		claimed = append(claimed, m)
	}
	cmd := redis.NewXAutoClaimCmd(ctx)
	cmd.SetVal(claimed, "0-0")
	return cmd
}

func (f *FakeStreams) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.acked[id] = true
		delete(f.read, id)
	}
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *FakeStreams) XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	var kept []redis.XMessage
	removed := 0
	for i, m := range f.streams[stream] {
		if drop[m.ID] {
			if i < f.cursor[stream] {
				removed++
			}
			continue
		}
		kept = append(kept, m)
	}
	f.streams[stream] = kept
	f.cursor[stream] -= removed
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *FakeStreams) XLen(ctx context.Context, stream string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.streams[stream])), nil)
}

func (f *FakeStreams) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		f.zset[m.Member.(string)] = m.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *FakeStreams) ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	max, _ := strconv.ParseFloat(opt.Max, 64)
	var due []string
	for m, score := range f.zset {
		if score <= max {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return f.zset[due[i]] < f.zset[due[j]] })
	if opt.Count > 0 && int64(len(due)) > opt.Count {
		due = due[:opt.Count]
	}
	return redis.NewStringSliceResult(due, nil)
}

func (f *FakeStreams) ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range members {
		if _, ok := f.zset[m.(string)]; ok {
			delete(f.zset, m.(string))
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *FakeStreams) ZCard(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.zset)), nil)
}

func (f *FakeStreams) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value
	return redis.NewBoolResult(true, nil)
}

// Pending returns the messages still in a stream
func (f *FakeStreams) Pending(q models.Queue) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams[streamKey(q)])
}

// RecordingQueue captures jobs instead of publishing them
type RecordingQueue struct {
	mu      sync.Mutex
	Jobs    []models.Job
	Delayed []DelayedJob
	Fail    map[int64]error // Enqueue errors by entity id
	dedup   map[string]bool
}

type DelayedJob struct {
	Job   models.Job
	Delay time.Duration
}

func (q *RecordingQueue) Enqueue(ctx context.Context, job models.Job) (models.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.EntityID != nil && q.Fail[*job.EntityID] != nil {
		return job, false, q.Fail[*job.EntityID]
	}
	q.Jobs = append(q.Jobs, job)
	return job, true, nil
}

func (q *RecordingQueue) EnqueueAfter(ctx context.Context, job models.Job, delay time.Duration) (models.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.dedup == nil {
		q.dedup = map[string]bool{}
	}
	if job.DedupKey != "" && q.dedup[job.DedupKey] {
		return job, false, nil
	}
	q.dedup[job.DedupKey] = true
	q.Delayed = append(q.Delayed, DelayedJob{Job: job, Delay: delay})
	return job, true, nil
}

// Targets returns the entity ids of queued jobs of type t
func (q *RecordingQueue) Targets(t models.JobType) []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []int64
	for _, j := range q.Jobs {
		if j.Type == t && j.EntityID != nil {
			ids = append(ids, *j.EntityID)
		}
	}
	return ids
}

// Service mocks

type MockPlayerAnalytics struct{ mock.Mock }

func (m *MockPlayerAnalytics) AggregatePlayer(ctx context.Context, playerID int64, days int) (*models.PlayerAnalyticsSnapshot, error) {
	args := m.Called(ctx, playerID, days)
	snap, _ := args.Get(0).(*models.PlayerAnalyticsSnapshot)
	return snap, args.Error(1)
}

type MockTeamAnalytics struct{ mock.Mock }

func (m *MockTeamAnalytics) AggregateTeam(ctx context.Context, teamID int64, days int) (*models.TeamAnalyticsSnapshot, error) {
	args := m.Called(ctx, teamID, days)
	snap, _ := args.Get(0).(*models.TeamAnalyticsSnapshot)
	return snap, args.Error(1)
}

type MockPredictions struct{ mock.Mock }

func (m *MockPredictions) PredictGame(ctx context.Context, gameID int64) (*models.GamePrediction, error) {
	args := m.Called(ctx, gameID)
	pred, _ := args.Get(0).(*models.GamePrediction)
	return pred, args.Error(1)
}

func (m *MockPredictions) PredictPlayers(ctx context.Context, gameID int64) (int, error) {
	args := m.Called(ctx, gameID)
	return args.Int(0), args.Error(1)
}

func (m *MockPredictions) EvaluateGame(ctx context.Context, gameID int64) (*float64, error) {
	args := m.Called(ctx, gameID)
	acc, _ := args.Get(0).(*float64)
	return acc, args.Error(1)
}

type MockMaintenance struct{ mock.Mock }

func (m *MockMaintenance) CleanupPredictions(ctx context.Context, days int) (int64, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMaintenance) ConsolidateSnapshots(ctx context.Context, days int) (int64, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMaintenance) FindIntegrityViolations(ctx context.Context) (*logic.IntegrityReport, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*logic.IntegrityReport)
	return report, args.Error(1)
}

type MockRealtime struct{ mock.Mock }

func (m *MockRealtime) ProcessGameData(ctx context.Context, gameID int64, update models.LiveGameUpdate) (*logic.RealtimeResult, error) {
	args := m.Called(ctx, gameID, update)
	res, _ := args.Get(0).(*logic.RealtimeResult)
	return res, args.Error(1)
}

// StubLeague serves games, rosters and box scores from memory
type StubLeague struct {
	Games   map[int64]models.Game
	Players []models.Player
	Teams   []models.Team
	Lines   map[int64][]models.PlayerGameRecord
}

func (s *StubLeague) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	g, ok := s.Games[gameID]
	if !ok {
		return nil, logic.ErrNotFound
	}
	return &g, nil
}

func (s *StubLeague) FinishedTeamGames(ctx context.Context, teamID int64, from, to time.Time) ([]models.Game, error) {
	return nil, nil
}

func (s *StubLeague) RecentFinishedTeamGames(ctx context.Context, teamID int64, venue models.Venue, limit int) ([]models.Game, error) {
	return nil, nil
}

func (s *StubLeague) HeadToHead(ctx context.Context, teamA, teamB int64, limit int) ([]models.Game, error) {
	return nil, nil
}

func (s *StubLeague) UpcomingGames(ctx context.Context, from, to time.Time) ([]models.Game, error) {
	var out []models.Game
	for _, g := range s.Games {
		if g.Status == models.GameScheduled && !g.DateTime.Before(from) && g.DateTime.Before(to) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *StubLeague) UpdateGameLive(ctx context.Context, gameID int64, homeScore, awayScore int, status models.GameStatus) error {
	return nil
}

func (s *StubLeague) ActivePlayers(ctx context.Context) ([]models.Player, error) {
	return s.Players, nil
}
func (s *StubLeague) ActiveTeams(ctx context.Context) ([]models.Team, error) { return s.Teams, nil }

func (s *StubLeague) TeamRoster(ctx context.Context, teamID int64) ([]models.Player, error) {
	var out []models.Player
	for _, p := range s.Players {
		if p.TeamID == teamID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *StubLeague) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return &p, nil
		}
	}
	return nil, logic.ErrNotFound
}

func (s *StubLeague) GameBoxScore(ctx context.Context, gameID int64) ([]models.PlayerGameRecord, error) {
	return s.Lines[gameID], nil
}

func (s *StubLeague) GetPlayerGameRecord(ctx context.Context, playerID, gameID int64) (*models.PlayerGameRecord, error) {
	return nil, logic.ErrNotFound
}

func (s *StubLeague) UpsertPlayerGameRecord(ctx context.Context, rec *models.PlayerGameRecord) error {
	return nil
}

// RecordingArchiver remembers archived games
type RecordingArchiver struct {
	Games []int64
	Err   error
}

func (a *RecordingArchiver) ArchiveGame(ctx context.Context, game models.Game, lines []models.PlayerGameRecord) error {
	a.Games = append(a.Games, game.ID)
	return a.Err
}

// RecordingForms remembers invalidated teams
type RecordingForms struct {
	Invalidated []int64
}

func (f *RecordingForms) Get(ctx context.Context, teamID int64, asOf time.Time) (logic.Form, bool, error) {
	return logic.Form{}, false, nil
}

func (f *RecordingForms) Set(ctx context.Context, teamID int64, asOf time.Time, form logic.Form) error {
	return nil
}

func (f *RecordingForms) Invalidate(ctx context.Context, teamIDs ...int64) error {
	f.Invalidated = append(f.Invalidated, teamIDs...)
	return nil
}
