package logic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hoopstat/analytics-engine/internal/models"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		TrendThreshold:     0.10,
		PredictionCooldown: 6 * time.Hour,
		Location:           time.UTC,
		Now:                func() time.Time { return testNow },
	}
}

// daysAgo returns an evening tip-off n days before testNow.
func daysAgo(n int) time.Time {
	d := testNow.AddDate(0, 0, -n)
	return time.Date(d.Year(), d.Month(), d.Day(), 19, 30, 0, 0, time.UTC)
}

type lineKey struct{ player, game int64 }

type dayKey struct {
	entity int64
	date   time.Time
}

type trendKey struct {
	team       int64
	start, end time.Time
	period     models.PeriodType
}

// fakeStore is an in-memory implementation of every store interface.
type fakeStore struct {
	mu sync.Mutex

	games   map[int64]*models.Game
	lines   map[lineKey]*models.PlayerGameRecord
	players map[int64]models.Player
	teams   map[int64]models.Team

	playerSnaps map[dayKey]*models.PlayerAnalyticsSnapshot
	teamSnaps   map[dayKey]*models.TeamAnalyticsSnapshot
	trends      map[trendKey]*models.TeamPerformanceTrend

	gamePreds   []*models.GamePrediction
	playerPreds map[lineKey]*models.PlayerPerformancePrediction

	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games:       make(map[int64]*models.Game),
		lines:       make(map[lineKey]*models.PlayerGameRecord),
		players:     make(map[int64]models.Player),
		teams:       make(map[int64]models.Team),
		playerSnaps: make(map[dayKey]*models.PlayerAnalyticsSnapshot),
		teamSnaps:   make(map[dayKey]*models.TeamAnalyticsSnapshot),
		trends:      make(map[trendKey]*models.TeamPerformanceTrend),
		playerPreds: make(map[lineKey]*models.PlayerPerformancePrediction),
	}
}

func (f *fakeStore) addGame(id, home, away int64, at time.Time, status models.GameStatus, hs, as int) *models.Game {
	g := &models.Game{ID: id, HomeTeamID: home, AwayTeamID: away, DateTime: at, Status: status, HomeScore: hs, AwayScore: as}
	f.games[id] = g
	return g
}

func (f *fakeStore) addPlayer(id, team int64, pos string) {
	f.players[id] = models.Player{ID: id, TeamID: team, Name: "Player", Position: pos, Active: true}
}

func (f *fakeStore) addLine(rec models.PlayerGameRecord) {
	if g, ok := f.games[rec.GameID]; ok {
		rec.GameDate = g.DateTime
	}
	r := rec
	f.lines[lineKey{rec.PlayerID, rec.GameID}] = &r
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

// GameStore

func (f *fakeStore) GetGame(_ context.Context, gameID int64) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) teamGames(teamID int64, keep func(models.Game) bool) []models.Game {
	var out []models.Game
	for _, g := range f.games {
		if g.Involves(teamID) && keep(*g) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out
}

func newestFirst(games []models.Game, limit int) []models.Game {
	out := make([]models.Game, 0, len(games))
	for i := len(games) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, games[i])
	}
	return out
}

func (f *fakeStore) FinishedTeamGames(_ context.Context, teamID int64, from, to time.Time) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teamGames(teamID, func(g models.Game) bool {
		return g.Status == models.GameFinished && !g.DateTime.Before(from) && g.DateTime.Before(to)
	}), nil
}

func (f *fakeStore) RecentFinishedTeamGames(_ context.Context, teamID int64, venue models.Venue, limit int) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	games := f.teamGames(teamID, func(g models.Game) bool {
		if g.Status != models.GameFinished {
			return false
		}
		switch venue {
		case models.VenueHome:
			return g.HomeTeamID == teamID
		case models.VenueAway:
			return g.AwayTeamID == teamID
		}
		return true
	})
	return newestFirst(games, limit), nil
}

func (f *fakeStore) HeadToHead(_ context.Context, teamA, teamB int64, limit int) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	games := f.teamGames(teamA, func(g models.Game) bool {
		return g.Status == models.GameFinished && g.Involves(teamB)
	})
	return newestFirst(games, limit), nil
}

func (f *fakeStore) UpcomingGames(_ context.Context, from, to time.Time) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Game
	for _, g := range f.games {
		if g.Status == models.GameScheduled && !g.DateTime.Before(from) && g.DateTime.Before(to) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (f *fakeStore) UpdateGameLive(_ context.Context, gameID int64, home, away int, status models.GameStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok || g.Status == models.GameFinished {
		return ErrNotFound
	}
	g.HomeScore, g.AwayScore, g.Status = home, away, status
	return nil
}

// BoxScoreReader

func (f *fakeStore) finishedLines(playerID int64, keep func(models.PlayerGameRecord, models.Game) bool) []models.PlayerGameRecord {
	var out []models.PlayerGameRecord
	for k, rec := range f.lines {
		if k.player != playerID {
			continue
		}
		g, ok := f.games[k.game]
		if !ok || g.Status != models.GameFinished {
			continue
		}
		if keep(*rec, *g) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameDate.After(out[j].GameDate) })
	return out
}

func limitLines(recs []models.PlayerGameRecord, limit int) []models.PlayerGameRecord {
	if len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

func (f *fakeStore) PlayerGameLog(_ context.Context, playerID int64, from, to time.Time) ([]models.PlayerGameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishedLines(playerID, func(_ models.PlayerGameRecord, g models.Game) bool {
		return !g.DateTime.Before(from) && g.DateTime.Before(to)
	}), nil
}

func (f *fakeStore) RecentPlayerGames(_ context.Context, playerID int64, limit int) ([]models.PlayerGameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.finishedLines(playerID, func(models.PlayerGameRecord, models.Game) bool { return true })
	return limitLines(all, limit), nil
}

func (f *fakeStore) PlayerGamesVsTeam(_ context.Context, playerID, opponentID int64, limit int) ([]models.PlayerGameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vs := f.finishedLines(playerID, func(r models.PlayerGameRecord, g models.Game) bool {
		return g.Involves(opponentID) && r.TeamID != opponentID
	})
	return limitLines(vs, limit), nil
}

// BoxScoreStore

func (f *fakeStore) GameBoxScore(_ context.Context, gameID int64) ([]models.PlayerGameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PlayerGameRecord
	for k, rec := range f.lines {
		if k.game == gameID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (f *fakeStore) GetPlayerGameRecord(_ context.Context, playerID, gameID int64) (*models.PlayerGameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.lines[lineKey{playerID, gameID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) UpsertPlayerGameRecord(_ context.Context, rec *models.PlayerGameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.games[rec.GameID]; ok && g.Status == models.GameFinished {
		return ErrGameFinished
	}
	cp := *rec
	f.lines[lineKey{rec.PlayerID, rec.GameID}] = &cp
	return nil
}

// RosterStore

func (f *fakeStore) ActivePlayers(_ context.Context) ([]models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Player
	for _, p := range f.players {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ActiveTeams(_ context.Context) ([]models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Team
	for _, t := range f.teams {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) TeamRoster(_ context.Context, teamID int64) ([]models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Player
	for _, p := range f.players {
		if p.TeamID == teamID && p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetPlayer(_ context.Context, playerID int64) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// SnapshotStore

func (f *fakeStore) UpsertPlayerSnapshot(_ context.Context, snap *models.PlayerAnalyticsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := dayKey{snap.PlayerID, snap.Date}
	cp := *snap
	if cur, ok := f.playerSnaps[k]; ok {
		cp.ID = cur.ID
	} else {
		cp.ID = f.id()
	}
	f.playerSnaps[k] = &cp
	return nil
}

func (f *fakeStore) UpsertTeamSnapshot(_ context.Context, snap *models.TeamAnalyticsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := dayKey{snap.TeamID, snap.Date}
	cp := *snap
	if cur, ok := f.teamSnaps[k]; ok {
		cp.ID = cur.ID
	} else {
		cp.ID = f.id()
	}
	f.teamSnaps[k] = &cp
	return nil
}

func (f *fakeStore) LatestPlayerSnapshot(_ context.Context, playerID int64) (*models.PlayerAnalyticsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.PlayerAnalyticsSnapshot
	for k, s := range f.playerSnaps {
		if k.entity == playerID && (best == nil || s.Date.After(best.Date)) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeStore) LatestTeamSnapshot(_ context.Context, teamID int64) (*models.TeamAnalyticsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.TeamAnalyticsSnapshot
	for k, s := range f.teamSnaps {
		if k.entity == teamID && (best == nil || s.Date.After(best.Date)) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeStore) UpsertTeamTrend(_ context.Context, t *models.TeamPerformanceTrend) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.trends[trendKey{t.TeamID, t.PeriodStart, t.PeriodEnd, t.PeriodType}] = &cp
	return nil
}

func (f *fakeStore) SnapshotKeysBefore(_ context.Context, kind models.SnapshotKind, cutoff time.Time) ([]models.SnapshotKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SnapshotKey
	if kind == models.PlayerSnapshots {
		for k, s := range f.playerSnaps {
			if k.date.Before(cutoff) {
				out = append(out, models.SnapshotKey{ID: s.ID, EntityID: k.entity, Date: k.date})
			}
		}
	} else {
		for k, s := range f.teamSnaps {
			if k.date.Before(cutoff) {
				out = append(out, models.SnapshotKey{ID: s.ID, EntityID: k.entity, Date: k.date})
			}
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteSnapshots(_ context.Context, kind models.SnapshotKind, ids []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var n int64
	if kind == models.PlayerSnapshots {
		for k, s := range f.playerSnaps {
			if drop[s.ID] {
				delete(f.playerSnaps, k)
				n++
			}
		}
	} else {
		for k, s := range f.teamSnaps {
			if drop[s.ID] {
				delete(f.teamSnaps, k)
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeStore) InvalidPlayerSnapshots(_ context.Context, minEff, maxEff float64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for k, s := range f.playerSnaps {
		if s.EfficiencyRating < minEff || s.EfficiencyRating > maxEff ||
			s.FieldGoalPercentage < 0 || s.FieldGoalPercentage > 100 {
			out = append(out, k.entity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeStore) InvalidTeamSnapshots(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for k, s := range f.teamSnaps {
		if s.WinPercentage < 0 || s.WinPercentage > 100 {
			out = append(out, k.entity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// PredictionStore

func (f *fakeStore) CreateGamePrediction(_ context.Context, pred *models.GamePrediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *pred
	f.gamePreds = append(f.gamePreds, &cp)
	return nil
}

func (f *fakeStore) GamePredictionCreatedSince(_ context.Context, gameID int64, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.gamePreds {
		if p.GameID == gameID && !p.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) LatestGamePrediction(_ context.Context, gameID int64) (*models.GamePrediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.GamePrediction
	for _, p := range f.gamePreds {
		if p.GameID == gameID && (best == nil || !p.CreatedAt.Before(best.CreatedAt)) {
			best = p
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeStore) SetPredictionAccuracy(_ context.Context, id uuid.UUID, accuracy float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.gamePreds {
		if p.ID == id {
			if p.Accuracy != nil {
				return false, nil
			}
			a := accuracy
			p.Accuracy = &a
			return true, nil
		}
	}
	return false, ErrNotFound
}

func (f *fakeStore) UpsertPlayerPrediction(_ context.Context, pred *models.PlayerPerformancePrediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *pred
	f.playerPreds[lineKey{pred.PlayerID, pred.GameID}] = &cp
	return nil
}

func (f *fakeStore) PlayerPredictionCreatedSince(_ context.Context, playerID, gameID int64, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playerPreds[lineKey{playerID, gameID}]
	return ok && !p.CreatedAt.Before(since), nil
}

func (f *fakeStore) DeletePredictionsBefore(_ context.Context, cutoff time.Time) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var games, players int64
	kept := f.gamePreds[:0]
	for _, p := range f.gamePreds {
		if p.CreatedAt.Before(cutoff) {
			games++
			continue
		}
		kept = append(kept, p)
	}
	f.gamePreds = kept
	for k, p := range f.playerPreds {
		if p.CreatedAt.Before(cutoff) {
			delete(f.playerPreds, k)
			players++
		}
	}
	return games, players, nil
}
