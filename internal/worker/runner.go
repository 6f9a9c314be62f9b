package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ahmadpiran/emailcheck/internal/model"
	"github.com/ahmadpiran/emailcheck/internal/orchestrator"
	"github.com/ahmadpiran/emailcheck/internal/queue"
	"github.com/ahmadpiran/emailcheck/internal/store"
)

// Start launches a pool of worker goroutines and blocks until every goroutine
// has exited. The caller signals shutdown by cancelling ctx.
func Start(ctx context.Context, concurrency int, orch *orchestrator.Orchestrator, opts orchestrator.Options) {
	log.Printf("👷 Starting Worker Pool with %d concurrent routines...", concurrency)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				queue.DrainRetryQueue(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup

	for i := 1; i <= concurrency; i++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			for {
				// BLPop with a short timeout instead of 0 (block forever).
				//
				// Using a non-zero timeout means the call returns periodically
				// even on an idle queue, giving us a natural checkpoint to test
				// ctx.Err() and exit the loop cleanly on shutdown.
				result, err := queue.Client.BLPop(ctx, 2*time.Second, queue.QueueName).Result()
				if err != nil {
					if ctx.Err() != nil {
						log.Printf("[Worker %d] 🛑 Shutdown signal received, exiting.", workerID)
						return
					}

					if errors.Is(err, queue.ErrNil) {
						continue
					}

					log.Printf("[Worker %d] ⚠️  BLPop error: %v — backing off 1s", workerID, err)
					select {
					case <-time.After(1 * time.Second):
					case <-ctx.Done():
						log.Printf("[Worker %d] 🛑 Shutdown during backoff, exiting.", workerID)
						return
					}
					continue
				}

				// BLPop returns a two-element slice: [queueName, payload].
				rawJSON := result[1]
				var task queue.Task
				if err := json.Unmarshal([]byte(rawJSON), &task); err != nil {
					log.Printf("[Worker %d] ❌ Malformed task (skipping): %s — %v", workerID, rawJSON, err)
					continue
				}

				processTask(ctx, workerID, task, orch, opts)
			}
		}(i)
	}

	wg.Wait()
	log.Println("👷 All workers exited. Pool shut down.")
}

// processTask runs a single verification job inside a closure so that defer
// statements (cancel, tx.Rollback) have a well-defined scope that ends when
// the task is complete, not at the end of the outer goroutine loop.
//
// A panic anywhere in this call tree must not take the worker pool down —
// one bad task getting skipped beats every in-flight job dying with it —
// so the body runs under a recover() that logs and drops the task.
func processTask(ctx context.Context, workerID int, task queue.Task, orch *orchestrator.Orchestrator, opts orchestrator.Options) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Worker %d] ❌ Recovered panic processing %s: %v", workerID, task.Email, r)
		}
	}()

	// Each job gets its own deadline derived from the orchestrator's
	// configured timeout plus headroom for a retry or two, so a single
	// slow probe can't pin a worker slot forever.
	deadline := opts.Timeout*2 + 30*time.Second
	valCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	result := orch.VerifyOne(valCtx, task.Email, opts)

	if result.Smtp != nil && result.Smtp.Classification.Kind == model.KindGreyListed && queue.ShouldRetry(task) {
		if err := queue.ScheduleRetry(ctx, task); err != nil {
			log.Printf("[Worker %d] ❌ Failed to schedule retry for %s: %v — falling through to persist as-is", workerID, task.Email, err)
		} else {
			fmt.Printf("[Worker %d] ⏳ Greylisted, scheduled retry %d/%d: %s\n", workerID, task.Attempt+1, queue.MaxRetryCount, task.Email)
			return
		}
	}

	score := scoreFor(result.Reachable)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		log.Printf("[Worker %d] ❌ Failed to marshal result for %s: %v", workerID, task.Email, err)
		return
	}

	// Use the parent ctx (not valCtx) for the DB transaction. The verification
	// timeout should not also cut off our ability to persist the result.
	tx, err := store.DB.Begin(ctx)
	if err != nil {
		log.Printf("[Worker %d] ❌ DB transaction error for %s: %v", workerID, task.Email, err)
		return
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO results (job_id, email, score, data)
		VALUES ($1, $2, $3, $4)
	`, task.JobID, task.Email, score, resultJSON)
	if err != nil {
		log.Printf("[Worker %d] ❌ Failed to insert result for %s: %v", workerID, task.Email, err)
		return
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET processed_count = processed_count + 1,
		    status = CASE WHEN processed_count + 1 >= total_count THEN 'completed' ELSE status END,
		    completed_at = CASE WHEN processed_count + 1 >= total_count THEN NOW() ELSE completed_at END
		WHERE id = $1
	`, task.JobID)
	if err != nil {
		log.Printf("[Worker %d] ❌ Failed to update job progress for %s: %v", workerID, task.Email, err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("[Worker %d] ❌ Failed to commit for %s: %v", workerID, task.Email, err)
		return
	}

	fmt.Printf("[Worker %d] ✅ Processed: %s (%s, score %d)\n", workerID, task.Email, result.Reachable, score)
}

// scoreFor maps a reachability verdict onto the 0-100 scale the results
// table and API clients already key off of.
func scoreFor(r model.Reachable) int {
	switch r {
	case model.ReachableSafe:
		return 100
	case model.ReachableRisky:
		return 60
	case model.ReachableUnknown:
		return 30
	default:
		return 0
	}
}
