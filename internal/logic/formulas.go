package logic

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hoopstat/analytics-engine/internal/models"
)

// Options carries tunables shared by the analytics services.
type Options struct {
	TrendThreshold     float64
	PredictionCooldown time.Duration
	Location           *time.Location
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TrendThreshold <= 0 {
		o.TrendThreshold = 0.10
	}
	if o.PredictionCooldown <= 0 {
		o.PredictionCooldown = 6 * time.Hour
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// today returns the current calendar day in the configured zone as a UTC midnight.
func (o Options) today() time.Time {
	return CalendarDay(o.Now(), o.Location)
}

// dayStart returns the instant a calendar-day key begins in the configured zone.
func (o Options) dayStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, o.Location)
}

// CalendarDay maps t to midnight UTC of its calendar date in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GameEfficiency is the per-minute composite for one line, scaled by 10.
func GameEfficiency(r models.PlayerGameRecord) float64 {
	if r.MinutesPlayed <= 0 {
		return 0
	}
	raw := float64(r.Points) + 1.2*float64(r.Rebounds) + 1.5*float64(r.Assists) +
		2*float64(r.Steals) + 2*float64(r.Blocks) - float64(r.Turnovers)
	return raw / float64(r.MinutesPlayed) * 10
}

// projectedEfficiency has no turnover term; projections do not forecast turnovers.
func projectedEfficiency(pts, reb, ast, stl, blk, minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return (pts + 1.2*reb + 1.5*ast + 2*stl + 2*blk) / minutes * 10
}

// ShootingPercentage returns made/attempted as a percentage, 0 when nothing was attempted.
func ShootingPercentage(made, attempted int) float64 {
	if attempted <= 0 {
		return 0
	}
	return clampPct(float64(made) / float64(attempted) * 100)
}

// TrueShooting returns pts / (2 * (FGA + 0.44 * FTA)) as a percentage.
func TrueShooting(points, fga, fta int) float64 {
	denom := 2 * (float64(fga) + 0.44*float64(fta))
	if denom <= 0 {
		return 0
	}
	return clampPct(float64(points) / denom * 100)
}

// EstimatePossessions approximates possessions from a final score.
func EstimatePossessions(score int) float64 {
	return float64(score) * 1.1
}

// ClassifyTrend compares the means of two halves with a symmetric band.
func ClassifyTrend(recent, earlier []float64, threshold float64) models.TrendDirection {
	if len(recent) == 0 || len(earlier) == 0 {
		return models.TrendStable
	}
	r, e := mean(recent), mean(earlier)
	switch {
	case r > e*(1+threshold):
		return models.TrendImproving
	case r < e*(1-threshold):
		return models.TrendDeclining
	}
	return models.TrendStable
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return clampPct(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// clampPct bounds a percentage to [0,100].
func clampPct(v float64) float64 {
	return clamp(v, 0, 100)
}
