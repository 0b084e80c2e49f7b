package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrJobNotFound = errors.New("queue job not found")

// Job statuses stored in the per-job hash.
const (
	StateWaiting   = "waiting"
	StateDelayed   = "delayed"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Options controls retry and liveness policy for every queue served by a
// client.
type Options struct {
	Attempts      int
	BackoffBase   time.Duration
	JobTimeout    time.Duration
	StallInterval time.Duration
	MaxStalls     int
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 5 * time.Second
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 30 * time.Minute
	}
	if o.StallInterval <= 0 {
		o.StallInterval = 60 * time.Second
	}
	if o.MaxStalls <= 0 {
		o.MaxStalls = 2
	}
	return o
}

// BackoffFor returns the delay before retry number attempt, doubling from
// the base. The first retry (attempt 1) waits the base delay.
func (o Options) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return o.BackoffBase << (attempt - 1)
}

// Client is a durable job queue on Redis. Waiting jobs live in a list,
// per-job state in a hash, delayed retries in a sorted set scored by their
// ready time.
type Client struct {
	rdb  *redis.Client
	opts Options
}

func NewClient(rdb *redis.Client, opts Options) *Client {
	return &Client{rdb: rdb, opts: opts.withDefaults()}
}

func (c *Client) Options() Options {
	return c.opts
}

func waitingKey(queue string) string {
	return fmt.Sprintf("queue:{%s}:waiting", queue)
}

func delayedKey(queue string) string {
	return fmt.Sprintf("queue:{%s}:delayed", queue)
}

func jobKey(queue, id string) string {
	return fmt.Sprintf("queue:{%s}:job:%s", queue, id)
}

func processingKey(queue, consumer string) string {
	return fmt.Sprintf("queue:{%s}:processing:%s", queue, consumer)
}

// Enqueue stores the payload and makes the job visible to workers,
// returning the queue job id.
func (c *Client) Enqueue(ctx context.Context, queue string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling job payload: %w", err)
	}

	id := uuid.New().String()
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(queue, id), map[string]interface{}{
		"payload":    string(data),
		"status":     StateWaiting,
		"progress":   0,
		"attempts":   0,
		"stalls":     0,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.LPush(ctx, waitingKey(queue), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueuing job: %w", err)
	}
	return id, nil
}

// JobStatus is the externally visible state of a queued job.
type JobStatus struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Status reads the state hash of one job on the named queue.
func (c *Client) Status(ctx context.Context, queue, id string) (JobStatus, error) {
	fields, err := c.rdb.HGetAll(ctx, jobKey(queue, id)).Result()
	if err != nil {
		return JobStatus{}, err
	}
	if len(fields) == 0 {
		return JobStatus{}, ErrJobNotFound
	}

	progress, _ := strconv.Atoi(fields["progress"])
	attempts, _ := strconv.Atoi(fields["attempts"])
	return JobStatus{
		Status:   fields["status"],
		Progress: progress,
		Attempts: attempts,
		Error:    fields["error"],
	}, nil
}

// Job is one unit of work handed to a handler.
type Job struct {
	ID      string
	Queue   string
	Payload json.RawMessage
	Attempt int

	client *Client
}

// Progress records completion percentage on the job hash so status polls
// see it while the handler is still running.
func (j *Job) Progress(ctx context.Context, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return j.client.rdb.HSet(ctx, jobKey(j.Queue, j.ID), "progress", pct).Err()
}

// Unmarshal decodes the job payload into out.
func (j *Job) Unmarshal(out interface{}) error {
	return json.Unmarshal(j.Payload, out)
}
