package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "clipforge/internal/pkg/errors"
)

// RedisQueue is a list used as a FIFO: LPUSH on enqueue, BRPOP on dequeue.
type RedisQueue struct {
	rdb        *redis.Client
	queueName  string
	popTimeout time.Duration
}

func NewRedisQueue(rdb *redis.Client, queueName string, popTimeout time.Duration) *RedisQueue {
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	return &RedisQueue{rdb: rdb, queueName: queueName, popTimeout: popTimeout}
}

// NewRedisClient builds a client and checks it answers PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "redis.ping", "failed to ping Redis")
	}
	return rdb, nil
}

func (q *RedisQueue) Push(ctx context.Context, jobID string) error {
	if err := q.rdb.LPush(ctx, q.queueName, jobID).Err(); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "queue.push", "queue push failed").
			WithField("job_id", jobID)
	}
	return nil
}

// Pop waits up to the pop timeout for a job id.
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	res, err := q.rdb.BRPop(ctx, q.popTimeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return popValue(res), nil
}

// popValue extracts the element from a BRPOP reply of [key, value].
func popValue(res []string) string {
	if len(res) < 2 {
		return ""
	}
	return res[1]
}

// Len reports how many ids are waiting in the list.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
