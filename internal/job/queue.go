package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "lupo"

// ErrEmpty is returned by Pop when a queue has nothing ready.
var ErrEmpty = errors.New("queue empty")

// RedisQueue delivers job IDs through Redis lists. Popped IDs move to a
// per-queue processing list until acknowledged, so a crashed worker's jobs
// can be recovered. Delayed retries wait in a sorted set scored by run time.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue wraps client. Keys are namespaced under prefix.
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisQueue{client: client, prefix: prefix}
}

// ReadyKey is the list of job IDs ready to run on queue.
func (q *RedisQueue) ReadyKey(queue string) string {
	return fmt.Sprintf("%s:jobs:%s", q.prefix, queue)
}

func (q *RedisQueue) processingKey(queue string) string {
	return fmt.Sprintf("%s:jobs:%s:processing", q.prefix, queue)
}

func (q *RedisQueue) delayedKey() string {
	return q.prefix + ":jobs:delayed"
}

// Push makes id ready on queue.
func (q *RedisQueue) Push(ctx context.Context, queue, id string) error {
	if err := q.client.RPush(ctx, q.ReadyKey(queue), id).Err(); err != nil {
		return fmt.Errorf("push job %s to %s: %w", id, queue, err)
	}
	return nil
}

// Pop claims the oldest ready id of queue, or returns ErrEmpty.
func (q *RedisQueue) Pop(ctx context.Context, queue string) (string, error) {
	id, err := q.client.LMove(ctx, q.ReadyKey(queue), q.processingKey(queue), "LEFT", "RIGHT").Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("pop from %s: %w", queue, err)
	}
	return id, nil
}

// Ack removes a claimed id from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, queue, id string) error {
	if err := q.client.LRem(ctx, q.processingKey(queue), 1, id).Err(); err != nil {
		return fmt.Errorf("ack job %s on %s: %w", id, queue, err)
	}
	return nil
}

// Schedule delivers id on queue once at has passed.
func (q *RedisQueue) Schedule(ctx context.Context, queue, id string, at time.Time) error {
	member := queue + "|" + id
	if err := q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(at.Unix()), Member: member}).Err(); err != nil {
		return fmt.Errorf("schedule job %s: %w", id, err)
	}
	return nil
}

// PromoteDue moves every delayed id whose time has come onto its ready
// list and returns how many moved.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read delayed jobs: %w", err)
	}

	moved := 0
	for _, member := range members {
		removed, remErr := q.client.ZRem(ctx, q.delayedKey(), member).Result()
		if remErr != nil {
			return moved, fmt.Errorf("claim delayed job %s: %w", member, remErr)
		}
		if removed == 0 {
			// another worker promoted it
			continue
		}
		queue, id, ok := strings.Cut(member, "|")
		if !ok {
			continue
		}
		if err = q.Push(ctx, queue, id); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// RecoverProcessing returns every claimed but unacknowledged id of queue
// to the ready list. Run it when no worker is consuming queue.
func (q *RedisQueue) RecoverProcessing(ctx context.Context, queue string) (int, error) {
	recovered := 0
	for {
		_, err := q.client.LMove(ctx, q.processingKey(queue), q.ReadyKey(queue), "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("recover %s: %w", queue, err)
		}
		recovered++
	}
}

// Len returns the number of ready ids on queue.
func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, q.ReadyKey(queue)).Result()
}
