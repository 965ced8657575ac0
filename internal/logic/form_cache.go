package logic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const formCacheKeyPrefix = "analytics:form:"

// Form is a team's record over its last few FINISHED games.
type Form struct {
	Wins  int
	Games int
}

// Percentage is wins/games*100, or a neutral 50 without games.
func (f Form) Percentage() float64 {
	if f.Games == 0 {
		return 50
	}
	return percentage(f.Wins, f.Games)
}

// FormCache memoises recent form per (team, as-of date).
type FormCache interface {
	Get(ctx context.Context, teamID int64, asOf time.Time) (Form, bool, error)
	Set(ctx context.Context, teamID int64, asOf time.Time, form Form) error
	Invalidate(ctx context.Context, teamIDs ...int64) error
}

// RedisFormCache keeps one hash per team with a field per as-of date.
type RedisFormCache struct {
	redis RedisClient
	ttl   time.Duration
}

func NewRedisFormCache(client RedisClient, ttl time.Duration) *RedisFormCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisFormCache{redis: client, ttl: ttl}
}

func formKey(teamID int64) string {
	return formCacheKeyPrefix + strconv.FormatInt(teamID, 10)
}

func (c *RedisFormCache) Get(ctx context.Context, teamID int64, asOf time.Time) (Form, bool, error) {
	val, err := c.redis.HGet(ctx, formKey(teamID), asOf.Format(time.DateOnly)).Result()
	if errors.Is(err, redis.Nil) {
		return Form{}, false, nil
	}
	if err != nil {
		return Form{}, false, err
	}

	wins, games, ok := strings.Cut(val, "/")
	if !ok {
		return Form{}, false, nil
	}
	w, err1 := strconv.Atoi(wins)
	g, err2 := strconv.Atoi(games)
	if err1 != nil || err2 != nil {
		return Form{}, false, nil
	}
	return Form{Wins: w, Games: g}, true, nil
}

func (c *RedisFormCache) Set(ctx context.Context, teamID int64, asOf time.Time, form Form) error {
	key := formKey(teamID)
	if err := c.redis.HSet(ctx, key, asOf.Format(time.DateOnly), fmt.Sprintf("%d/%d", form.Wins, form.Games)).Err(); err != nil {
		return err
	}
	return c.redis.Expire(ctx, key, c.ttl).Err()
}

func (c *RedisFormCache) Invalidate(ctx context.Context, teamIDs ...int64) error {
	if len(teamIDs) == 0 {
		return nil
	}
	keys := make([]string, len(teamIDs))
	for i, id := range teamIDs {
		keys[i] = formKey(id)
	}
	return c.redis.Del(ctx, keys...).Err()
}

type noopFormCache struct{}

func (noopFormCache) Get(context.Context, int64, time.Time) (Form, bool, error) {
	return Form{}, false, nil
}
func (noopFormCache) Set(context.Context, int64, time.Time, Form) error { return nil }
func (noopFormCache) Invalidate(context.Context, ...int64) error        { return nil }
