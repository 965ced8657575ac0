package logic

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSupersededSnapshots(t *testing.T) {
	keys := []models.SnapshotKey{
		{ID: 1, EntityID: 1, Date: day(2024, 1, 1)}, // ISO week 1
		{ID: 2, EntityID: 1, Date: day(2024, 1, 3)}, // ISO week 1, later
		{ID: 3, EntityID: 1, Date: day(2024, 1, 8)}, // ISO week 2
		{ID: 4, EntityID: 2, Date: day(2024, 1, 2)}, // other entity, same week
		{ID: 5, EntityID: 3, Date: day(2023, 1, 1)}, // ISO week 52 of 2022
		{ID: 6, EntityID: 3, Date: day(2022, 12, 27)},
	}

	got := SupersededSnapshots(keys)
	want := []int64{1, 6}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SupersededSnapshots() = %v, want %v", got, want)
	}
}

func TestConsolidateSnapshots(t *testing.T) {
	f := newFakeStore()
	ctx := context.Background()
	for _, d := range []time.Time{day(2023, 11, 6), day(2023, 11, 8), day(2023, 11, 10), day(2023, 11, 13), day(2024, 3, 14)} {
		_ = f.UpsertPlayerSnapshot(ctx, &models.PlayerAnalyticsSnapshot{PlayerID: 1, Date: d})
	}
	for _, d := range []time.Time{day(2023, 11, 7), day(2023, 11, 9)} {
		_ = f.UpsertTeamSnapshot(ctx, &models.TeamAnalyticsSnapshot{TeamID: 4, Date: d})
	}
	svc := NewMaintenanceService(f, f, testOptions(), zap.NewNop())

	deleted, err := svc.ConsolidateSnapshots(ctx, 90)
	if err != nil {
		t.Fatalf("ConsolidateSnapshots failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted %d snapshots, want 3", deleted)
	}
	if len(f.playerSnaps) != 3 {
		t.Errorf("%d player snapshots remain, want 3", len(f.playerSnaps))
	}
	if _, ok := f.playerSnaps[dayKey{1, day(2023, 11, 10)}]; !ok {
		t.Error("latest snapshot of the week was removed")
	}
	if len(f.teamSnaps) != 1 {
		t.Errorf("%d team snapshots remain, want 1", len(f.teamSnaps))
	}
}

func TestCleanupPredictions(t *testing.T) {
	f := newFakeStore()
	ctx := context.Background()
	_ = f.CreateGamePrediction(ctx, &models.GamePrediction{ID: uuid.New(), GameID: 1, CreatedAt: testNow.AddDate(0, 0, -40)})
	_ = f.CreateGamePrediction(ctx, &models.GamePrediction{ID: uuid.New(), GameID: 2, CreatedAt: testNow.AddDate(0, 0, -1)})
	_ = f.UpsertPlayerPrediction(ctx, &models.PlayerPerformancePrediction{ID: uuid.New(), PlayerID: 5, GameID: 1, CreatedAt: testNow.AddDate(0, 0, -31)})
	_ = f.UpsertPlayerPrediction(ctx, &models.PlayerPerformancePrediction{ID: uuid.New(), PlayerID: 5, GameID: 2, CreatedAt: testNow})
	svc := NewMaintenanceService(f, f, testOptions(), zap.NewNop())

	n, err := svc.CleanupPredictions(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupPredictions failed: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d predictions, want 2", n)
	}
	if len(f.gamePreds) != 1 || len(f.playerPreds) != 1 {
		t.Errorf("remaining = %d game / %d player, want 1 / 1", len(f.gamePreds), len(f.playerPreds))
	}
}

func TestFindIntegrityViolations(t *testing.T) {
	f := newFakeStore()
	ctx := context.Background()
	today := CalendarDay(testNow, time.UTC)
	snaps := []models.PlayerAnalyticsSnapshot{
		{PlayerID: 1, Date: today, EfficiencyRating: 55},
		{PlayerID: 2, Date: today, EfficiencyRating: 20, FieldGoalPercentage: 120},
		{PlayerID: 3, Date: today, EfficiencyRating: 20, FieldGoalPercentage: 45},
		{PlayerID: 4, Date: today, EfficiencyRating: -1},
	}
	for i := range snaps {
		_ = f.UpsertPlayerSnapshot(ctx, &snaps[i])
	}
	_ = f.UpsertTeamSnapshot(ctx, &models.TeamAnalyticsSnapshot{TeamID: 8, Date: today, WinPercentage: 60})
	_ = f.UpsertTeamSnapshot(ctx, &models.TeamAnalyticsSnapshot{TeamID: 9, Date: today, WinPercentage: 110})
	svc := NewMaintenanceService(f, f, testOptions(), zap.NewNop())

	report, err := svc.FindIntegrityViolations(ctx)
	if err != nil {
		t.Fatalf("FindIntegrityViolations failed: %v", err)
	}
	if !reflect.DeepEqual(report.PlayerIDs, []int64{1, 2, 4}) {
		t.Errorf("PlayerIDs = %v, want [1 2 4]", report.PlayerIDs)
	}
	if !reflect.DeepEqual(report.TeamIDs, []int64{9}) {
		t.Errorf("TeamIDs = %v, want [9]", report.TeamIDs)
	}
}
