package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

const quarters = 4

// line is a running box score for one player
type line struct {
	playerID, teamID                  int64
	pts, reb, ast, stl, blk, tov, min int
	fgm, fga, tpm, tpa, ftm, fta      int
}

func main() {
	apiURL := flag.String("api", envOr("SEED_API_URL", "http://localhost:8080/api/v1"), "ops API base URL")
	token := flag.String("token", os.Getenv("ADMIN_TOKEN"), "admin token")
	gameID := flag.Int64("game", 1, "game id to drive")
	homeTeam := flag.Int64("home-team", 1, "home team id")
	awayTeam := flag.Int64("away-team", 2, "away team id")
	homePlayers := flag.String("home-players", "1,2,3,4,5", "comma separated home player ids")
	awayPlayers := flag.String("away-players", "6,7,8,9,10", "comma separated away player ids")
	interval := flag.Duration("interval", 2*time.Second, "pause between quarters")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if *token == "" {
		sugar.Fatal("ADMIN_TOKEN or -token is required")
	}

	var lines []*line
	for _, side := range []struct {
		team int64
		ids  string
	}{{*homeTeam, *homePlayers}, {*awayTeam, *awayPlayers}} {
		ids, err := parseIDs(side.ids)
		if err != nil {
			sugar.Fatalw("Invalid player list", "error", err)
		}
		for _, id := range ids {
			lines = append(lines, &line{playerID: id, teamID: side.team})
		}
	}

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("%s/games/%d/live", strings.TrimRight(*apiURL, "/"), *gameID)

	for q := 1; q <= quarters; q++ {
		for _, l := range lines {
			l.play(rng)
		}
		status := models.GameLive
		if q == quarters {
			status = models.GameFinished
		}
		update := buildUpdate(lines, *homeTeam, status)

		if err := post(client, url, *token, update); err != nil {
			sugar.Fatalw("Live update rejected", "quarter", q, "error", err)
		}
		sugar.Infow("Posted live update",
			"game_id", *gameID,
			"quarter", q,
			"status", status,
			"home", *update.HomeScore,
			"away", *update.AwayScore,
		)
		if q < quarters {
			time.Sleep(*interval)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("bad player id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// play adds one quarter of synthetic production
func (l *line) play(rng *rand.Rand) {
	twoA := rng.Intn(5)
	twoM := rng.Intn(twoA + 1)
	threeA := rng.Intn(4)
	threeM := rng.Intn(threeA + 1)
	fta := rng.Intn(4)
	ftm := rng.Intn(fta + 1)

	l.fga += twoA + threeA
	l.fgm += twoM + threeM
	l.tpa += threeA
	l.tpm += threeM
	l.fta += fta
	l.ftm += ftm
	l.pts += 2*twoM + 3*threeM + ftm
	l.reb += rng.Intn(4)
	l.ast += rng.Intn(3)
	l.stl += rng.Intn(2)
	l.blk += rng.Intn(2)
	l.tov += rng.Intn(2)
	l.min += 6 + rng.Intn(4)
}

func buildUpdate(lines []*line, homeTeam int64, status models.GameStatus) models.LiveGameUpdate {
	var home, away int
	stats := make([]models.LivePlayerStat, 0, len(lines))
	for _, l := range lines {
		if l.teamID == homeTeam {
			home += l.pts
		} else {
			away += l.pts
		}
		stats = append(stats, models.LivePlayerStat{
			PlayerID:               l.playerID,
			TeamID:                 l.teamID,
			Points:                 intPtr(l.pts),
			Rebounds:               intPtr(l.reb),
			Assists:                intPtr(l.ast),
			Steals:                 intPtr(l.stl),
			Blocks:                 intPtr(l.blk),
			Turnovers:              intPtr(l.tov),
			MinutesPlayed:          intPtr(l.min),
			FieldGoalsMade:         intPtr(l.fgm),
			FieldGoalsAttempted:    intPtr(l.fga),
			ThreePointersMade:      intPtr(l.tpm),
			ThreePointersAttempted: intPtr(l.tpa),
			FreeThrowsMade:         intPtr(l.ftm),
			FreeThrowsAttempted:    intPtr(l.fta),
		})
	}
	return models.LiveGameUpdate{
		HomeScore:   intPtr(home),
		AwayScore:   intPtr(away),
		Status:      status,
		PlayerStats: stats,
	}
}

func intPtr(v int) *int { return &v }

func post(client *http.Client, url, token string, update models.LiveGameUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
