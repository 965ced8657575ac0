package logic

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

func seedPlayerHistory(f *fakeStore) {
	f.addPlayer(1, 10, "G")
	f.addGame(1, 10, 20, daysAgo(20), models.GameFinished, 100, 90)
	f.addGame(2, 30, 10, daysAgo(5), models.GameFinished, 95, 99)
	f.addGame(3, 10, 40, daysAgo(40), models.GameFinished, 88, 80)
	f.addGame(4, 10, 20, daysAgo(2), models.GameLive, 50, 48)

	f.addLine(models.PlayerGameRecord{PlayerID: 1, GameID: 1, TeamID: 10, Points: 10, Rebounds: 5, Assists: 2, Steals: 1, Turnovers: 2, MinutesPlayed: 20,
		FieldGoalsMade: 4, FieldGoalsAttempted: 10, ThreePointersMade: 1, ThreePointersAttempted: 4, FreeThrowsMade: 1, FreeThrowsAttempted: 2})
	f.addLine(models.PlayerGameRecord{PlayerID: 1, GameID: 2, TeamID: 10, Points: 30, Rebounds: 5, Assists: 5, Steals: 2, Blocks: 1, Turnovers: 1, MinutesPlayed: 30,
		FieldGoalsMade: 12, FieldGoalsAttempted: 20, ThreePointersMade: 3, ThreePointersAttempted: 6, FreeThrowsMade: 3, FreeThrowsAttempted: 4})
	f.addLine(models.PlayerGameRecord{PlayerID: 1, GameID: 3, TeamID: 10, Points: 20, MinutesPlayed: 25,
		FieldGoalsMade: 8, FieldGoalsAttempted: 15, FreeThrowsMade: 4, FreeThrowsAttempted: 5})
	// A live game never counts toward the window.
	f.addLine(models.PlayerGameRecord{PlayerID: 1, GameID: 4, TeamID: 10, Points: 60, MinutesPlayed: 10, FieldGoalsAttempted: 1})
}

func TestAggregatePlayer_Window(t *testing.T) {
	f := newFakeStore()
	seedPlayerHistory(f)
	svc := NewPlayerAnalyticsService(f, f, testOptions(), zap.NewNop())

	snap, err := svc.AggregatePlayer(context.Background(), 1, 30)
	if err != nil {
		t.Fatalf("AggregatePlayer failed: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"points_avg", snap.PointsAvg, 20},
		{"rebounds_avg", snap.ReboundsAvg, 5},
		{"minutes_avg", snap.MinutesAvg, 25},
		{"fg_pct", snap.FieldGoalPercentage, 53.33},
		{"three_pct", snap.ThreePointPercentage, 40},
		{"ft_pct", snap.FreeThrowPercentage, 66.67},
		{"efficiency", snap.EfficiencyRating, 12.83},
		{"true_shooting", snap.TrueShootingPercentage, round2(TrueShooting(60, 45, 11))},
		{"last_10", snap.Last10GamesRating, 11.22},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.want, 0.005) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if snap.TrendDirection != models.TrendImproving {
		t.Errorf("TrendDirection = %s, want IMPROVING", snap.TrendDirection)
	}
	if !snap.Date.Equal(CalendarDay(testNow, testOptions().Location)) {
		t.Errorf("Date = %v, want today", snap.Date)
	}
}

func TestAggregatePlayer_NoGamesSkips(t *testing.T) {
	f := newFakeStore()
	f.addPlayer(7, 10, "C")
	f.addGame(1, 10, 20, daysAgo(45), models.GameFinished, 100, 90)
	f.addLine(models.PlayerGameRecord{PlayerID: 7, GameID: 1, TeamID: 10, Points: 12, MinutesPlayed: 20})
	svc := NewPlayerAnalyticsService(f, f, testOptions(), zap.NewNop())

	snap, err := svc.AggregatePlayer(context.Background(), 7, 30)
	if err != nil {
		t.Fatalf("AggregatePlayer failed: %v", err)
	}
	if snap != nil {
		t.Errorf("expected no snapshot, got %+v", snap)
	}
	if len(f.playerSnaps) != 0 {
		t.Errorf("expected nothing written, got %d snapshots", len(f.playerSnaps))
	}
}

func TestAggregatePlayer_Idempotent(t *testing.T) {
	f := newFakeStore()
	seedPlayerHistory(f)
	svc := NewPlayerAnalyticsService(f, f, testOptions(), zap.NewNop())
	ctx := context.Background()

	first, err := svc.AggregatePlayer(ctx, 1, 30)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.AggregatePlayer(ctx, 1, 30)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(f.playerSnaps) != 1 {
		t.Fatalf("expected one snapshot after two runs, got %d", len(f.playerSnaps))
	}
	if *first != *second {
		t.Errorf("runs differ:\n%+v\n%+v", first, second)
	}
}

func TestBuildPlayerSnapshot_ZeroAttempts(t *testing.T) {
	today := CalendarDay(testNow, testOptions().Location)
	window := []models.PlayerGameRecord{{PlayerID: 3, GameDate: daysAgo(1), Rebounds: 4, MinutesPlayed: 12}}

	snap := BuildPlayerSnapshot(3, today, 30, window, window, 0.10, testOptions().Location)

	if snap.FieldGoalPercentage != 0 || snap.ThreePointPercentage != 0 || snap.FreeThrowPercentage != 0 {
		t.Errorf("percentages should be 0 without attempts: %+v", snap)
	}
	if snap.TrueShootingPercentage != 0 {
		t.Errorf("TrueShootingPercentage = %v, want 0", snap.TrueShootingPercentage)
	}
	if snap.TrendDirection != models.TrendStable {
		t.Errorf("single half should be STABLE, got %s", snap.TrendDirection)
	}
}

// nightGameOptions puts the clock at 23:30 New York time with a game that
// tipped off at 20:00 local, after midnight UTC.
func nightGameOptions(t *testing.T) (Options, time.Time) {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	opts := testOptions()
	opts.Location = ny
	opts.Now = func() time.Time { return time.Date(2026, time.October, 19, 3, 30, 0, 0, time.UTC) }
	return opts, time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
}

func TestAggregatePlayer_LocalDayWindow(t *testing.T) {
	opts, tipOff := nightGameOptions(t)
	f := newFakeStore()
	f.addPlayer(1, 10, "G")
	f.addGame(1, 10, 20, tipOff, models.GameFinished, 101, 99)
	f.addLine(models.PlayerGameRecord{PlayerID: 1, GameID: 1, TeamID: 10, Points: 22, MinutesPlayed: 34, FieldGoalsMade: 8, FieldGoalsAttempted: 17})

	svc := NewPlayerAnalyticsService(f, f, opts, zap.NewNop())
	snap, err := svc.AggregatePlayer(context.Background(), 1, 30)
	if err != nil {
		t.Fatalf("AggregatePlayer failed: %v", err)
	}
	if snap == nil {
		t.Fatal("tonight's game should be inside today's window")
	}
	if want := time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC); !snap.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", snap.Date, want)
	}
	if snap.PointsAvg != 22 {
		t.Errorf("PointsAvg = %v, want 22", snap.PointsAvg)
	}
}

func TestBuildPlayerSnapshot_PercentagesBounded(t *testing.T) {
	today := CalendarDay(testNow, testOptions().Location)
	window := []models.PlayerGameRecord{{
		PlayerID: 4, GameDate: daysAgo(1), Points: 40, MinutesPlayed: 30,
		FieldGoalsMade: 12, FieldGoalsAttempted: 8,
		ThreePointersMade: 5, ThreePointersAttempted: 2,
		FreeThrowsMade: 6, FreeThrowsAttempted: 2,
	}}

	snap := BuildPlayerSnapshot(4, today, 30, window, window, 0.10, testOptions().Location)

	pcts := map[string]float64{
		"fg": snap.FieldGoalPercentage,
		"3p": snap.ThreePointPercentage,
		"ft": snap.FreeThrowPercentage,
		"ts": snap.TrueShootingPercentage,
	}
	for name, v := range pcts {
		if v < 0 || v > 100 {
			t.Errorf("%s percentage = %v, want within [0,100]", name, v)
		}
	}
	if snap.FieldGoalPercentage != 100 {
		t.Errorf("FieldGoalPercentage = %v, want 100", snap.FieldGoalPercentage)
	}
}
