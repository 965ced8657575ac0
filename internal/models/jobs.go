package models

import (
	"encoding/json"
	"time"
)

// JobType names an analytics operation that runs on the work queue.
type JobType string

const (
	JobAggregatePlayer      JobType = "aggregate_player"
	JobAggregateTeam        JobType = "aggregate_team"
	JobComputeTeamTrends    JobType = "compute_team_trends"
	JobPredictGames         JobType = "predict_game"
	JobPredictPlayers       JobType = "predict_player_performance"
	JobGameFinished         JobType = "on_game_finished"
	JobRealtimeGameData     JobType = "process_realtime_game_data"
	JobCleanupPredictions   JobType = "cleanup_old_predictions"
	JobConsolidateSnapshots JobType = "consolidate_snapshots"
	JobValidateIntegrity    JobType = "validate_integrity"
)

// AllJobTypes lists every job the dispatcher understands.
var AllJobTypes = []JobType{
	JobAggregatePlayer,
	JobAggregateTeam,
	JobComputeTeamTrends,
	JobPredictGames,
	JobPredictPlayers,
	JobGameFinished,
	JobRealtimeGameData,
	JobCleanupPredictions,
	JobConsolidateSnapshots,
	JobValidateIntegrity,
}

// Queue names a broker stream. Jobs are routed by type.
type Queue string

const (
	QueueAnalytics   Queue = "analytics"
	QueuePredictions Queue = "predictions"
	QueueRealtime    Queue = "realtime"
	QueueMaintenance Queue = "maintenance"
)

var AllQueues = []Queue{QueueAnalytics, QueuePredictions, QueueRealtime, QueueMaintenance}

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	for _, known := range AllJobTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Queue returns the stream a job type is routed to.
func (t JobType) Queue() Queue {
	switch t {
	case JobPredictGames, JobPredictPlayers:
		return QueuePredictions
	case JobRealtimeGameData:
		return QueueRealtime
	case JobCleanupPredictions, JobConsolidateSnapshots, JobValidateIntegrity:
		return QueueMaintenance
	default:
		return QueueAnalytics
	}
}

// Job is the unit of work carried by the broker.
// EntityID is the player, team or game the job targets; nil fans out to all.
type Job struct {
	ID         string          `json:"id"`
	Type       JobType         `json:"type"`
	EntityID   *int64          `json:"entity_id,omitempty"`
	Days       int             `json:"days,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempt    int             `json:"attempt"`
	DedupKey   string          `json:"dedup_key,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewJob builds a job for a single entity or, with a nil id, for all of them.
func NewJob(t JobType, entityID *int64, days int) Job {
	return Job{Type: t, EntityID: entityID, Days: days}
}

// ForEntity is a convenience for jobs bound to one id.
func ForEntity(t JobType, id int64, days int) Job {
	return NewJob(t, &id, days)
}
