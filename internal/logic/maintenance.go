package logic

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

// Bounds a stored efficiency rating is expected to stay within.
const (
	MinValidEfficiency = 0.0
	MaxValidEfficiency = 50.0
)

// IntegrityReport lists entities whose latest data failed sanity checks.
type IntegrityReport struct {
	PlayerIDs []int64 `json:"player_ids"`
	TeamIDs   []int64 `json:"team_ids"`
}

func (r *IntegrityReport) Empty() bool {
	return len(r.PlayerIDs) == 0 && len(r.TeamIDs) == 0
}

type maintenanceService struct {
	snapshots   SnapshotStore
	predictions PredictionStore
	opts        Options
	logger      *zap.SugaredLogger
}

func NewMaintenanceService(snapshots SnapshotStore, predictions PredictionStore, opts Options, logger *zap.Logger) MaintenanceService {
	return &maintenanceService{
		snapshots:   snapshots,
		predictions: predictions,
		opts:        opts.withDefaults(),
		logger:      logger.Sugar(),
	}
}

// CleanupPredictions deletes game and player predictions created more than days ago.
func (s *maintenanceService) CleanupPredictions(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := s.opts.Now().AddDate(0, 0, -days)
	games, players, err := s.predictions.DeletePredictionsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete predictions: %w", err)
	}
	s.logger.Infow("Old predictions removed", "game_predictions", games, "player_predictions", players, "days", days)
	return games + players, nil
}

// ConsolidateSnapshots thins snapshots older than days down to the latest
// one per entity and ISO week.
func (s *maintenanceService) ConsolidateSnapshots(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 90
	}
	cutoff := s.opts.today().AddDate(0, 0, -days)

	var total int64
	for _, kind := range []models.SnapshotKind{models.PlayerSnapshots, models.TeamSnapshots} {
		keys, err := s.snapshots.SnapshotKeysBefore(ctx, kind, cutoff)
		if err != nil {
			return total, fmt.Errorf("%s snapshot keys: %w", kind, err)
		}
		stale := SupersededSnapshots(keys)
		if len(stale) == 0 {
			continue
		}
		n, err := s.snapshots.DeleteSnapshots(ctx, kind, stale)
		if err != nil {
			return total, fmt.Errorf("delete %s snapshots: %w", kind, err)
		}
		total += n
		s.logger.Infow("Snapshots consolidated", "kind", kind, "deleted", n, "examined", len(keys))
	}
	return total, nil
}

type weekBucket struct {
	entity int64
	year   int
	week   int
}

// SupersededSnapshots returns ids of every snapshot that is not the latest
// of its (entity, ISO week) bucket.
func SupersededSnapshots(keys []models.SnapshotKey) []int64 {
	latest := make(map[weekBucket]models.SnapshotKey, len(keys))
	for _, k := range keys {
		y, w := k.Date.ISOWeek()
		b := weekBucket{entity: k.EntityID, year: y, week: w}
		cur, ok := latest[b]
		if !ok || k.Date.After(cur.Date) || (k.Date.Equal(cur.Date) && k.ID > cur.ID) {
			latest[b] = k
		}
	}

	keep := make(map[int64]struct{}, len(latest))
	for _, k := range latest {
		keep[k.ID] = struct{}{}
	}
	var stale []int64
	for _, k := range keys {
		if _, ok := keep[k.ID]; !ok {
			stale = append(stale, k.ID)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	return stale
}

func (s *maintenanceService) FindIntegrityViolations(ctx context.Context) (*IntegrityReport, error) {
	players, err := s.snapshots.InvalidPlayerSnapshots(ctx, MinValidEfficiency, MaxValidEfficiency)
	if err != nil {
		return nil, fmt.Errorf("invalid player snapshots: %w", err)
	}
	teams, err := s.snapshots.InvalidTeamSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("invalid team snapshots: %w", err)
	}

	report := &IntegrityReport{PlayerIDs: uniqueIDs(players), TeamIDs: uniqueIDs(teams)}
	if !report.Empty() {
		s.logger.Warnw("Integrity violations found", "players", len(report.PlayerIDs), "teams", len(report.TeamIDs))
	}
	return report, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
