package db

import (
	"context"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
)

// Ack removes a delivered job from the queue.
//
// Not acknowledging (worker crash, context cancel) lets the lease
// run out and the job is delivered again.
type Ack func(ctx context.Context) error

type JobInterface interface {
	// Enqueue appends an envelope to the queue.
	//
	// Returns
	//
	// - error: ErrConflict when an envelope with the same JobId is,
	// or was, in the queue.
	Enqueue(ctx context.Context, envelope domain.JobEnvelope) error

	// Pull leases the oldest deliverable envelope.
	//
	// The envelope stays invisible to other pulls until the lease
	// runs out or the Ack is called.
	//
	// Returns
	//
	// - domain.JobEnvelope: the leased envelope
	//
	// - Ack: to be called when the job's terminal event is durable
	//
	// - error: ErrMissing when nothing is deliverable now.
	Pull(ctx context.Context, lease time.Duration) (domain.JobEnvelope, Ack, error)

	// Depth counts deliverable envelopes, leased ones included.
	Depth(ctx context.Context) (int, error)
}
