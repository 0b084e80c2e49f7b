package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/outreachly/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// completedTTL keeps finished job hashes around long enough for status
// polls before Redis reclaims them.
const completedTTL = 24 * time.Hour

// Handler processes one job. A non-nil error triggers the retry policy.
type Handler func(ctx context.Context, job *Job) error

// Supervisor runs worker pools over registered queues. It owns its
// goroutines explicitly: nothing starts before Start and Stop drains
// everything.
type Supervisor struct {
	client      *Client
	concurrency int
	consumerID  string

	mu       sync.Mutex
	handlers map[string]Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSupervisor(client *Client, concurrency int) *Supervisor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Supervisor{
		client:      client,
		concurrency: concurrency,
		consumerID:  uuid.New().String(),
		handlers:    make(map[string]Handler),
	}
}

// Register binds a handler to a queue name. Must be called before Start.
func (s *Supervisor) Register(queue string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[queue] = handler
}

// Start launches the worker pool plus one retry promoter and one stall
// sweeper per registered queue.
func (s *Supervisor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	defer s.mu.Unlock()
	for queue, handler := range s.handlers {
		for i := 0; i < s.concurrency; i++ {
			s.wg.Add(1)
			go s.workerLoop(runCtx, queue, handler)
		}
		s.wg.Add(2)
		go s.promoteLoop(runCtx, queue)
		go s.sweepLoop(runCtx, queue)

		logger.Log.WithFields(map[string]interface{}{
			"queue":       queue,
			"concurrency": s.concurrency,
		}).Info("Queue workers started")
	}
}

// Stop cancels all loops and waits for in-flight jobs to finish or time
// out.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Supervisor) workerLoop(ctx context.Context, queue string, handler Handler) {
	defer s.wg.Done()

	processing := processingKey(queue, s.consumerID)
	for {
		if ctx.Err() != nil {
			return
		}

		id, err := s.client.rdb.BLMove(ctx, waitingKey(queue), processing, "RIGHT", "LEFT", 5*time.Second).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Log.WithError(err).WithField("queue", queue).Warn("Failed to fetch queue job")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		s.process(ctx, queue, id, handler)
	}
}

func (s *Supervisor) process(ctx context.Context, queue, id string, handler Handler) {
	rdb := s.client.rdb
	opts := s.client.opts
	key := jobKey(queue, id)
	processing := processingKey(queue, s.consumerID)

	fields, err := rdb.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		// Hash expired or was never written; drop the orphaned id.
		rdb.LRem(ctx, processing, 1, id)
		return
	}

	attempts, _ := strconv.Atoi(fields["attempts"])
	attempt := attempts + 1

	rdb.HSet(ctx, key, map[string]interface{}{
		"status":    StateActive,
		"attempts":  attempt,
		"progress":  0,
		"heartbeat": time.Now().UTC().Format(time.RFC3339Nano),
	})

	heartbeatDone := make(chan struct{})
	var heartbeatWG sync.WaitGroup
	heartbeatWG.Add(1)
	go func() {
		defer heartbeatWG.Done()
		ticker := time.NewTicker(opts.StallInterval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rdb.HSet(ctx, key, "heartbeat", time.Now().UTC().Format(time.RFC3339Nano))
			case <-heartbeatDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	job := &Job{
		ID:      id,
		Queue:   queue,
		Payload: json.RawMessage(fields["payload"]),
		Attempt: attempt,
		client:  s.client,
	}

	jobCtx, cancel := context.WithTimeout(ctx, opts.JobTimeout)
	runErr := handler(jobCtx, job)
	cancel()

	close(heartbeatDone)
	heartbeatWG.Wait()

	// State updates below must land even when ctx was cancelled mid-job.
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cleanupCancel()

	rdb.LRem(cleanupCtx, processing, 1, id)

	if runErr == nil {
		pipe := rdb.TxPipeline()
		pipe.HSet(cleanupCtx, key, "status", StateCompleted, "progress", 100)
		pipe.Expire(cleanupCtx, key, completedTTL)
		pipe.Exec(cleanupCtx)
		return
	}

	entry := logger.Log.WithError(runErr).WithFields(map[string]interface{}{
		"queue":   queue,
		"job_id":  id,
		"attempt": attempt,
	})

	if attempt >= opts.Attempts {
		pipe := rdb.TxPipeline()
		pipe.HSet(cleanupCtx, key, "status", StateFailed, "error", runErr.Error())
		pipe.Expire(cleanupCtx, key, completedTTL)
		pipe.Exec(cleanupCtx)
		entry.Error("Queue job failed permanently")
		return
	}

	delay := opts.BackoffFor(attempt)
	pipe := rdb.TxPipeline()
	pipe.HSet(cleanupCtx, key, "status", StateDelayed, "error", runErr.Error())
	pipe.ZAdd(cleanupCtx, delayedKey(queue), redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: id,
	})
	pipe.Exec(cleanupCtx)
	entry.WithField("retry_in", delay.String()).Warn("Queue job failed, scheduling retry")
}

// promoteLoop moves delayed jobs whose backoff has elapsed back to the
// waiting list.
func (s *Supervisor) promoteLoop(ctx context.Context, queue string) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	rdb := s.client.rdb
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := strconv.FormatInt(time.Now().UnixMilli(), 10)
		ids, err := rdb.ZRangeByScore(ctx, delayedKey(queue), &redis.ZRangeBy{
			Min: "-inf", Max: now, Count: 100,
		}).Result()
		if err != nil || len(ids) == 0 {
			continue
		}

		for _, id := range ids {
			// ZRem is the claim: only one promoter wins a given id.
			removed, err := rdb.ZRem(ctx, delayedKey(queue), id).Result()
			if err != nil || removed == 0 {
				continue
			}
			rdb.HSet(ctx, jobKey(queue, id), "status", StateWaiting)
			rdb.LPush(ctx, waitingKey(queue), id)
		}
	}
}

// sweepLoop requeues jobs whose worker stopped heartbeating, failing them
// once they have stalled too many times.
func (s *Supervisor) sweepLoop(ctx context.Context, queue string) {
	defer s.wg.Done()

	opts := s.client.opts
	ticker := time.NewTicker(opts.StallInterval)
	defer ticker.Stop()

	rdb := s.client.rdb
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var cursor uint64
		for {
			keys, next, err := rdb.Scan(ctx, cursor, processingKey(queue, "*"), 50).Result()
			if err != nil {
				break
			}
			for _, listKey := range keys {
				ids, err := rdb.LRange(ctx, listKey, 0, -1).Result()
				if err != nil {
					continue
				}
				for _, id := range ids {
					s.sweepJob(ctx, queue, listKey, id)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
}

func (s *Supervisor) sweepJob(ctx context.Context, queue, listKey, id string) {
	rdb := s.client.rdb
	opts := s.client.opts
	key := jobKey(queue, id)

	fields, err := rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return
	}
	if len(fields) == 0 {
		rdb.LRem(ctx, listKey, 1, id)
		return
	}
	if fields["status"] != StateActive {
		return
	}

	heartbeat, err := time.Parse(time.RFC3339Nano, fields["heartbeat"])
	if err == nil && time.Since(heartbeat) < opts.StallInterval {
		return
	}

	stalls, _ := strconv.Atoi(fields["stalls"])
	stalls++

	if removed, err := rdb.LRem(ctx, listKey, 1, id).Result(); err != nil || removed == 0 {
		return
	}

	if stalls > opts.MaxStalls {
		pipe := rdb.TxPipeline()
		pipe.HSet(ctx, key, "status", StateFailed, "stalls", stalls, "error", "job stalled too many times")
		pipe.Expire(ctx, key, completedTTL)
		pipe.Exec(ctx)
		logger.Log.WithFields(map[string]interface{}{
			"queue":  queue,
			"job_id": id,
		}).Error("Queue job failed after repeated stalls")
		return
	}

	rdb.HSet(ctx, key, "status", StateWaiting, "stalls", stalls)
	rdb.LPush(ctx, waitingKey(queue), id)
	logger.Log.WithFields(map[string]interface{}{
		"queue":  queue,
		"job_id": id,
		"stalls": stalls,
	}).Warn("Requeued stalled job")
}
