package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

const (
	streamPrefix = "analytics:jobs:"
	delayedKey   = "analytics:jobs:delayed"
	dedupPrefix  = "analytics:dedup:"
	groupName    = "analytics-workers"

	// dedupWindow is how long a dedup key outlives the job's due time.
	dedupWindow = 10 * time.Minute
)

// dedupNamespace scopes uuid.NewSHA1 dedup ids.
var dedupNamespace = uuid.MustParse("5c2f8f0e-6f0b-4a53-9d0c-7c1f0e3b6a11")

// Delivery is a job read from a queue that still needs an Ack.
type Delivery struct {
	Queue     models.Queue
	MessageID string
	Job       models.Job
}

// Broker moves jobs between producers and the worker pool.
type Broker interface {
	// Publish queues job now. It reports false when the job's dedup key is already taken.
	Publish(ctx context.Context, job models.Job) (models.Job, bool, error)
	// PublishAfter parks job until delay has passed.
	PublishAfter(ctx context.Context, job models.Job, delay time.Duration) (models.Job, bool, error)
	Fetch(ctx context.Context, queue models.Queue, consumer string, count int64, block time.Duration) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	// PromoteDue moves delayed jobs whose time has come onto their queues.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	// Requeue re-publishes deliveries left unacked for at least minIdle.
	Requeue(ctx context.Context, consumer string, minIdle time.Duration) (int, error)
	Depth(ctx context.Context) (map[models.Queue]int64, error)
}

// StreamClient is the part of go-redis the broker uses
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd
	XLen(ctx context.Context, stream string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisBroker keeps one stream per queue, read through a shared consumer
// group, plus a sorted set of delayed jobs scored by due time.
type RedisBroker struct {
	client StreamClient
	logger *zap.SugaredLogger
	now    func() time.Time
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(client StreamClient, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger.Sugar(), now: time.Now}
}

func streamKey(q models.Queue) string {
	return streamPrefix + string(q)
}

// DedupID derives a stable id from a caller supplied dedup key.
func DedupID(key string) string {
	return uuid.NewSHA1(dedupNamespace, []byte(key)).String()
}

// EnsureGroups creates every queue stream and its consumer group.
func (b *RedisBroker) EnsureGroups(ctx context.Context) error {
	for _, q := range models.AllQueues {
		err := b.client.XGroupCreateMkStream(ctx, streamKey(q), groupName, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create consumer group for %s: %w", q, err)
		}
	}
	return nil
}

// prepare stamps a job and claims its dedup key.
func (b *RedisBroker) prepare(ctx context.Context, job models.Job, delay time.Duration) (models.Job, bool, error) {
	if !job.Type.Valid() {
		return job, false, fmt.Errorf("unknown job type %q", job.Type)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.EnqueuedAt = b.now().UTC()

	if job.DedupKey != "" {
		ok, err := b.client.SetNX(ctx, dedupPrefix+DedupID(job.DedupKey), job.ID, delay+dedupWindow).Result()
		if err != nil {
			return job, false, fmt.Errorf("claim dedup key: %w", err)
		}
		if !ok {
			return job, false, nil
		}
	}
	return job, true, nil
}

func (b *RedisBroker) push(ctx context.Context, job models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(job.Type.Queue()),
		Values: map[string]interface{}{"job": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", job.Type, err)
	}
	return nil
}

func (b *RedisBroker) Publish(ctx context.Context, job models.Job) (models.Job, bool, error) {
	job, ok, err := b.prepare(ctx, job, 0)
	if err != nil || !ok {
		return job, false, err
	}
	if err := b.push(ctx, job); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (b *RedisBroker) PublishAfter(ctx context.Context, job models.Job, delay time.Duration) (models.Job, bool, error) {
	if delay <= 0 {
		return b.Publish(ctx, job)
	}
	job, ok, err := b.prepare(ctx, job, delay)
	if err != nil || !ok {
		return job, false, err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return job, false, fmt.Errorf("marshal job: %w", err)
	}
	due := b.now().Add(delay).UnixMilli()
	if err := b.client.ZAdd(ctx, delayedKey, redis.Z{Score: float64(due), Member: string(data)}).Err(); err != nil {
		return job, false, fmt.Errorf("schedule %s: %w", job.Type, err)
	}
	return job, true, nil
}

// PromoteDue is safe to run from several processes: only the caller whose
// ZREM removes a member publishes it.
func (b *RedisBroker) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := b.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read delayed jobs: %w", err)
	}

	promoted := 0
	for _, m := range members {
		removed, err := b.client.ZRem(ctx, delayedKey, m).Result()
		if err != nil {
			return promoted, fmt.Errorf("claim delayed job: %w", err)
		}
		if removed == 0 {
			continue
		}
		var job models.Job
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			b.logger.Errorw("dropping malformed delayed job", "error", err)
			continue
		}
		if err := b.push(ctx, job); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

func (b *RedisBroker) Fetch(ctx context.Context, queue models.Queue, consumer string, count int64, block time.Duration) ([]Delivery, error) {
	key := streamKey(queue)
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    groupName,
		Consumer: consumer,
		Streams:  []string{key, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", queue, err)
	}

	var out []Delivery
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			data, _ := msg.Values["job"].(string)
			var job models.Job
			if err := json.Unmarshal([]byte(data), &job); err != nil || !job.Type.Valid() {
				b.logger.Errorw("dropping malformed job", "queue", queue, "message_id", msg.ID, "error", err)
				_ = b.Ack(ctx, Delivery{Queue: queue, MessageID: msg.ID})
				continue
			}
			out = append(out, Delivery{Queue: queue, MessageID: msg.ID, Job: job})
		}
	}
	return out, nil
}

// Requeue claims messages a consumer read but never acked, usually because
// its process died mid-job, and publishes each again as a fresh message.
func (b *RedisBroker) Requeue(ctx context.Context, consumer string, minIdle time.Duration) (int, error) {
	requeued := 0
	for _, q := range models.AllQueues {
		start := "0-0"
		for {
			msgs, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   streamKey(q),
				Group:    groupName,
				Consumer: consumer,
				MinIdle:  minIdle,
				Start:    start,
				Count:    100,
			}).Result()
			if err != nil {
				return requeued, fmt.Errorf("claim pending %s: %w", q, err)
			}
			for _, msg := range msgs {
				if data, _ := msg.Values["job"].(string); data != "" {
					err := b.client.XAdd(ctx, &redis.XAddArgs{
						Stream: streamKey(q),
						Values: map[string]interface{}{"job": data},
					}).Err()
					if err != nil {
						return requeued, fmt.Errorf("requeue %s: %w", msg.ID, err)
					}
					requeued++
				}
				if err := b.Ack(ctx, Delivery{Queue: q, MessageID: msg.ID}); err != nil {
					return requeued, err
				}
			}
			if len(msgs) == 0 || next == "0-0" {
				break
			}
			start = next
		}
	}
	return requeued, nil
}

// Ack acknowledges and deletes the message so stream length tracks open work.
func (b *RedisBroker) Ack(ctx context.Context, d Delivery) error {
	key := streamKey(d.Queue)
	if err := b.client.XAck(ctx, key, groupName, d.MessageID).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", d.MessageID, err)
	}
	if err := b.client.XDel(ctx, key, d.MessageID).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", d.MessageID, err)
	}
	return nil
}

// Depth reports unfinished jobs per queue. Delayed jobs are not counted.
func (b *RedisBroker) Depth(ctx context.Context) (map[models.Queue]int64, error) {
	out := make(map[models.Queue]int64, len(models.AllQueues))
	for _, q := range models.AllQueues {
		n, err := b.client.XLen(ctx, streamKey(q)).Result()
		if err != nil {
			return nil, fmt.Errorf("queue length %s: %w", q, err)
		}
		out[q] = n
	}
	return out, nil
}

// Delayed returns the number of parked jobs.
func (b *RedisBroker) Delayed(ctx context.Context) (int64, error) {
	return b.client.ZCard(ctx, delayedKey).Result()
}
