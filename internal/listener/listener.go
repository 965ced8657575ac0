// Package listener turns Postgres game status notifications into post-game jobs.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
	"github.com/hoopstat/analytics-engine/internal/worker"
)

// Channel is the NOTIFY channel written by the games status trigger.
const Channel = "game_status_changed"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

var statusEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hoops_game_status_events_total",
	Help: "Game status notifications received from Postgres",
}, []string{"status"})

// StatusChange is the JSON payload of a game_status_changed notification.
type StatusChange struct {
	GameID    int64             `json:"game_id"`
	OldStatus models.GameStatus `json:"old_status"`
	Status    models.GameStatus `json:"status"`
}

func ParseStatusChange(payload string) (StatusChange, error) {
	var sc StatusChange
	if err := json.Unmarshal([]byte(payload), &sc); err != nil {
		return sc, fmt.Errorf("decode status change: %w", err)
	}
	if sc.GameID <= 0 {
		return sc, fmt.Errorf("status change without game id")
	}
	if !sc.Status.Valid() {
		return sc, fmt.Errorf("status change for game %d has unknown status %q", sc.GameID, sc.Status)
	}
	return sc, nil
}

type Config struct {
	DSN           string
	Queue         worker.Enqueuer
	PostGameDelay time.Duration
	Logger        *zap.Logger
}

// Listener schedules on_game_finished whenever a game turns FINISHED.
type Listener struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func New(cfg Config) *Listener {
	return &Listener{cfg: cfg, logger: cfg.Logger.Sugar()}
}

// Run listens until ctx is cancelled. pq reconnects on its own; a nil
// notification marks a reconnect after which events may have been missed.
func (l *Listener) Run(ctx context.Context) error {
	pl := pq.NewListener(l.cfg.DSN, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Infow("Game event listener connected", "channel", Channel)
		case pq.ListenerEventDisconnected:
			l.logger.Warnw("Game event listener disconnected", "channel", Channel, "error", err)
		case pq.ListenerEventReconnected:
			l.logger.Infow("Game event listener reconnected", "channel", Channel)
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Errorw("Game event listener connection failed", "channel", Channel, "error", err)
		}
	})
	defer pl.Close()

	if err := pl.Listen(Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}

	return l.consume(ctx, pl.Notify, pl.Ping)
}

func (l *Listener) consume(ctx context.Context, notify <-chan *pq.Notification, ping func() error) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notify:
			if !ok {
				return nil
			}
			if n == nil {
				l.logger.Warnw("Game event listener resynced, status changes may have been missed", "channel", Channel)
				continue
			}
			l.handle(ctx, n.Extra)
		case <-ticker.C:
			if err := ping(); err != nil {
				l.logger.Warnw("Game event listener ping failed", "error", err)
			}
		}
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	sc, err := ParseStatusChange(payload)
	if err != nil {
		l.logger.Warnw("Ignoring game status notification", "payload", payload, "error", err)
		return
	}
	statusEvents.WithLabelValues(string(sc.Status)).Inc()

	if sc.Status != models.GameFinished || sc.OldStatus == models.GameFinished {
		l.logger.Debugw("Game status changed", "game_id", sc.GameID, "from", sc.OldStatus, "to", sc.Status)
		return
	}

	_, queued, err := worker.ScheduleGameFinished(ctx, l.cfg.Queue, sc.GameID, l.cfg.PostGameDelay)
	if err != nil {
		l.logger.Errorw("Failed to schedule post-game cascade", "game_id", sc.GameID, "error", err)
		return
	}
	l.logger.Infow("Game finished", "game_id", sc.GameID, "cascade_queued", queued, "delay", l.cfg.PostGameDelay)
}
