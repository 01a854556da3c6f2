package core

import (
	"context"
	"encoding/json"
)

type (
	// Job is a unit of background work.
	Job struct {
		ID      string          `json:"id"`
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
		Attempt int             `json:"attempt"`
	}

	// JobHandler processes a Job. A returned error makes the queue retry the job until its retries are exhausted.
	JobHandler func(ctx context.Context, job Job) error

	// JobQueue is a work queue drained by a bounded pool of workers.
	JobQueue interface {
		// Enqueue JSON-encodes payload into a new Job of the given kind.
		Enqueue(ctx context.Context, kind string, payload interface{}) error
		// Consume starts the workers and blocks until ctx is done.
		Consume(ctx context.Context, handler JobHandler) error
		Close() error
	}
)

// Decode unmarshals the job payload into v.
func (j Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// JobMux dispatches jobs to handlers registered per kind.
type JobMux map[string]JobHandler

func (mux JobMux) Handle(ctx context.Context, job Job) error {
	h, ok := mux[job.Kind]
	if !ok {
		return NewError(ErrNotFound, "no handler for job kind "+job.Kind)
	}
	return h(ctx, job)
}
