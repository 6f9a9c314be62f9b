package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

var Client *redis.Client

// ErrNil is re-exported from the redis package so that callers (e.g. the
// worker pool) can check for a BLPop timeout without importing go-redis
// directly. redis.Nil is returned by BLPop when the timeout elapses and no
// item was available — it is not a real error and should be handled as a
// normal "queue empty" signal.
var ErrNil = redis.Nil

// Task represents a single unit of work for the worker.
type Task struct {
	JobID   string `json:"job_id"`
	Email   string `json:"email"`
	Attempt int    `json:"attempt"`
}

const QueueName = "tasks:verify"

// RetryQueueName is a Redis ZSET holding greylisted tasks scored by the
// unix timestamp they become eligible for retry.
const RetryQueueName = "tasks:verify:retry"

const (
	retryDelay = 15 * time.Minute
	// MaxRetryCount is the number of greylist retries a task gets before
	// the worker gives up and persists whatever verdict it last saw.
	MaxRetryCount = 3
)

// ScheduleRetry schedules task for redelivery after retryDelay, bumping
// Attempt. Callers should drop a task once Attempt reaches MaxRetryCount
// rather than scheduling another round.
func ScheduleRetry(ctx context.Context, task Task) error {
	task.Attempt++
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal retry task: %w", err)
	}

	score := float64(time.Now().Add(retryDelay).Unix())
	return Client.ZAdd(ctx, RetryQueueName, redis.Z{Score: score, Member: data}).Err()
}

// ShouldRetry reports whether task has retry attempts remaining.
func ShouldRetry(task Task) bool {
	return task.Attempt < MaxRetryCount
}

// DrainRetryQueue moves every retry-queue entry whose score has elapsed
// back onto the main work queue. Intended to run on a ticker from the
// worker pool's main loop, grounded on DevyanshuNegi's
// email_retry_queue ZRangeByScore/RPush/ZRem cycle.
func DrainRetryQueue(ctx context.Context) {
	now := time.Now().Unix()

	items, err := Client.ZRangeByScore(ctx, RetryQueueName, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		log.Printf("⚠️  Error reading retry queue: %v", err)
		return
	}

	for _, raw := range items {
		if err := Client.RPush(ctx, QueueName, raw).Err(); err != nil {
			log.Printf("⚠️  Failed to requeue retry item, leaving it in the ZSET: %v", err)
			continue
		}
		if err := Client.ZRem(ctx, RetryQueueName, raw).Err(); err != nil {
			log.Printf("⚠️  Failed to remove requeued item from retry ZSET: %v", err)
		}
	}
}

// Init connects to Redis.
func Init(addr string) error {
	Client = redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    "",
		DB:          0,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

// EnqueueBatch pushes a list of emails to the Redis queue in one go.
func EnqueueBatch(ctx context.Context, jobID string, emails []string) error {
	if len(emails) == 0 {
		return nil
	}

	const batchSize = 5000 // Safe limit for Redis RPush

	for i := 0; i < len(emails); i += batchSize {
		end := i + batchSize
		if end > len(emails) {
			end = len(emails)
		}

		// 1. Convert emails to JSON tasks
		var values []interface{}
		for _, email := range emails[i:end] {
			task := Task{JobID: jobID, Email: email}
			data, err := json.Marshal(task)
			if err != nil {
				return err
			}
			values = append(values, data)
		}

		// 2. Push to Redis
		if err := Client.RPush(ctx, QueueName, values...).Err(); err != nil {
			return fmt.Errorf("failed to enqueue batch: %w", err)
		}
	}

	return nil
}
