package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"audiolevel/internal/apperr"
	"audiolevel/internal/models"
)

const (
	jobKeyPrefix   = "audiolevel:job:"
	queueZSetKey   = "audiolevel:queue"
	delayedZSetKey = "audiolevel:delayed"
	countsHashKey  = "audiolevel:counts"
)

// redisStore is the Store implementation backed by a real Redis server.
// Grounded on the teacher's pattern of a single long-lived client handed
// to every component that needs durable state.
type redisStore struct {
	client *redis.Client
}

// NewRedis dials the given Redis URL and returns a Store.
func NewRedis(redisURL string) (Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return &redisStore{client: client}, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) jobKey(jobID string) string { return jobKeyPrefix + jobID }

func (s *redisStore) SaveJob(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("store: marshal job: %w", err)
	}
	if err := s.client.Set(ctx, s.jobKey(job.JobID), data, 24*time.Hour).Err(); err != nil {
		return apperr.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

func (s *redisStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	data, err := s.client.Get(ctx, s.jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, apperr.ErrJobNotFound
	}
	if err != nil {
		return nil, apperr.ErrStoreUnavailable.Wrap(err)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("store: unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *redisStore) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, s.jobKey(jobID)).Err(); err != nil {
		return apperr.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

// score encodes priority as the dominant ordering key and arrival time as
// the tiebreaker, so ZPOPMIN yields strict priority-then-FIFO order.
func score(priority models.Priority, at time.Time) float64 {
	return float64(priority)*1e13 + float64(at.UnixMilli()%1e13)
}

func (s *redisStore) Enqueue(ctx context.Context, jobID string, priority models.Priority) error {
	err := s.client.ZAdd(ctx, queueZSetKey, redis.Z{Score: score(priority, time.Now()), Member: jobID}).Err()
	if err != nil {
		return apperr.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

func (s *redisStore) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	s.promoteDueDelayed(ctx)

	deadline := time.Now().Add(timeout)
	for {
		res, err := s.client.ZPopMin(ctx, queueZSetKey, 1).Result()
		if err != nil {
			return "", false, apperr.ErrStoreUnavailable.Wrap(err)
		}
		if len(res) > 0 {
			return fmt.Sprint(res[0].Member), true, nil
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		s.promoteDueDelayed(ctx)
	}
}

// promoteDueDelayed moves delayed jobs whose backoff has elapsed back
// into the live queue. Best-effort; errors are swallowed since this is a
// housekeeping step run on every dequeue poll.
func (s *redisStore) promoteDueDelayed(ctx context.Context) {
	now := float64(time.Now().UnixMilli())
	due, err := s.client.ZRangeByScore(ctx, delayedZSetKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprint(now)}).Result()
	if err != nil || len(due) == 0 {
		return
	}
	for _, jobID := range due {
		priority := models.PriorityNormal
		if job, err := s.GetJob(ctx, jobID); err == nil {
			priority = job.Priority
		}
		s.client.ZRem(ctx, delayedZSetKey, jobID)
		s.client.ZAdd(ctx, queueZSetKey, redis.Z{Score: score(priority, time.Now()), Member: jobID})
	}
}

func (s *redisStore) Requeue(ctx context.Context, jobID string, priority models.Priority, delay time.Duration) error {
	if delay <= 0 {
		return s.Enqueue(ctx, jobID, priority)
	}
	readyAt := float64(time.Now().Add(delay).UnixMilli())
	if err := s.client.ZAdd(ctx, delayedZSetKey, redis.Z{Score: readyAt, Member: jobID}).Err(); err != nil {
		return apperr.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

func (s *redisStore) AdjustCount(ctx context.Context, state models.JobState, delta int64) error {
	if err := s.client.HIncrBy(ctx, countsHashKey, string(state), delta).Err(); err != nil {
		return apperr.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

func (s *redisStore) Counts(ctx context.Context) (QueueCounts, error) {
	vals, err := s.client.HGetAll(ctx, countsHashKey).Result()
	if err != nil {
		return QueueCounts{}, apperr.ErrStoreUnavailable.Wrap(err)
	}
	return QueueCounts{
		Waiting:   asInt64(vals[string(models.StateWaiting)]),
		Active:    asInt64(vals[string(models.StateActive)]),
		Completed: asInt64(vals[string(models.StateCompleted)]),
		Failed:    asInt64(vals[string(models.StateFailed)]),
		Delayed:   asInt64(vals[string(models.StateDelayed)]),
	}, nil
}

func (s *redisStore) IncrCounter(ctx context.Context, name string) (int64, error) {
	v, err := s.client.Incr(ctx, "audiolevel:stat:"+name).Result()
	if err != nil {
		return 0, apperr.ErrStoreUnavailable.Wrap(err)
	}
	return v, nil
}

func asInt64(s string) int64 {
	var v int64
	_, _ = fmt.Sscanf(s, "%d", &v)
	return v
}

// rateLimitScript performs the sliding-window remove+count+add+expire
// sequence as a single atomic server-side operation, closing the TOCTOU
// window a multi-call pipeline would leave open.
const rateLimitScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local maxReq = tonumber(ARGV[3])
local nonce = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count < maxReq then
  redis.call('ZADD', key, now, now .. ':' .. nonce)
  redis.call('PEXPIRE', key, window)
  return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retryAfterMs = window
if oldest[2] ~= nil then
  retryAfterMs = (tonumber(oldest[2]) + window) - now
end
return {0, retryAfterMs}
`

func (s *redisStore) CheckRateLimit(ctx context.Context, clientID string, windowMs, maxRequests int) (bool, int, error) {
	key := "audiolevel:ratelimit:" + clientID
	now := time.Now().UnixMilli()
	nonce := fmt.Sprintf("%d", time.Now().UnixNano())

	res, err := s.client.Eval(ctx, rateLimitScript, []string{key}, now, windowMs, maxRequests, nonce).Result()
	if err != nil {
		// Fail open: a dead counter must not cause a total outage.
		return true, 0, apperr.ErrStoreUnavailable.Wrap(err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return true, 0, fmt.Errorf("store: unexpected rate-limit script result")
	}
	allowed := asInt64(fmt.Sprint(vals[0])) == 1
	retryAfterMs := asInt64(fmt.Sprint(vals[1]))
	retryAfterSec := int((retryAfterMs + 999) / 1000)
	return allowed, retryAfterSec, nil
}

// PeekRateLimit trims expired entries and reports the bucket's current
// size without adding a new entry, so status polling never itself
// consumes quota.
func (s *redisStore) PeekRateLimit(ctx context.Context, clientID string, windowMs int) (int, error) {
	key := "audiolevel:ratelimit:" + clientID
	now := time.Now().UnixMilli()
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprint(now-int64(windowMs))).Err(); err != nil {
		return 0, apperr.ErrStoreUnavailable.Wrap(err)
	}
	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, apperr.ErrStoreUnavailable.Wrap(err)
	}
	return int(count), nil
}
