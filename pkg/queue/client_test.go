package queue

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	opts := NewClient(nil, Options{}).Options()

	if opts.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", opts.Attempts)
	}
	if opts.BackoffBase != 5*time.Second {
		t.Errorf("expected 5s backoff base, got %s", opts.BackoffBase)
	}
	if opts.JobTimeout != 30*time.Minute {
		t.Errorf("expected 30m job timeout, got %s", opts.JobTimeout)
	}
	if opts.StallInterval != 60*time.Second {
		t.Errorf("expected 60s stall interval, got %s", opts.StallInterval)
	}
	if opts.MaxStalls != 2 {
		t.Errorf("expected 2 max stalls, got %d", opts.MaxStalls)
	}
}

func TestOptionsKeepExplicitValues(t *testing.T) {
	opts := NewClient(nil, Options{
		Attempts:      5,
		BackoffBase:   time.Second,
		JobTimeout:    time.Minute,
		StallInterval: 10 * time.Second,
		MaxStalls:     1,
	}).Options()

	if opts.Attempts != 5 || opts.BackoffBase != time.Second ||
		opts.JobTimeout != time.Minute || opts.StallInterval != 10*time.Second ||
		opts.MaxStalls != 1 {
		t.Errorf("explicit options were overridden: %+v", opts)
	}
}

func TestBackoffForDoubles(t *testing.T) {
	opts := Options{BackoffBase: 5 * time.Second}.withDefaults()

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
	}
	for _, c := range cases {
		if got := opts.BackoffFor(c.attempt); got != c.want {
			t.Errorf("BackoffFor(%d) = %s, want %s", c.attempt, got, c.want)
		}
	}
}

func TestJobUnmarshal(t *testing.T) {
	type payload struct {
		ImportID string `json:"importId"`
	}

	raw, err := json.Marshal(payload{ImportID: "imp-7"})
	if err != nil {
		t.Fatal(err)
	}
	job := &Job{ID: "q-1", Queue: "contact-import", Payload: raw}

	var decoded payload
	if err := job.Unmarshal(&decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ImportID != "imp-7" {
		t.Errorf("expected imp-7, got %q", decoded.ImportID)
	}
}

func TestQueueKeysAreScoped(t *testing.T) {
	if waitingKey("a") == waitingKey("b") {
		t.Error("waiting keys must differ per queue")
	}
	if jobKey("a", "1") == jobKey("a", "2") {
		t.Error("job keys must differ per id")
	}
	if processingKey("a", "c1") == processingKey("a", "c2") {
		t.Error("processing lists must differ per consumer")
	}
}
