package db

import (
	"context"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
)

// EventInterface is the durable, append-only log of job events.
//
// A job's stream is closed once its terminal event is in the log.
type EventInterface interface {
	// Publish appends an event to its job's stream.
	//
	// Publishing an event whose (JobId, Seq) is in the log already
	// is a no-op: re-run jobs publish the same events again and
	// the log keeps exactly one copy.
	Publish(ctx context.Context, event domain.Event) error

	// Replay reads the job's events with Seq >= fromSeq, in Seq
	// order.
	//
	// Returns
	//
	// - []domain.Event: the events, gap-free from fromSeq
	//
	// - bool: true when the stream is closed
	//
	// - error
	Replay(ctx context.Context, jobId string, fromSeq int64) ([]domain.Event, bool, error)

	// Follow replays from fromSeq and then keeps delivering new
	// events until the stream closes or ctx is done. The channel
	// is closed after the terminal event is sent.
	Follow(ctx context.Context, jobId string, fromSeq int64) (<-chan domain.Event, error)

	// Prune deletes whole streams of jobs completed before the
	// retention window. Streams of running jobs are kept whatever
	// their age.
	//
	// Returns
	//
	// - int: how many events were deleted
	//
	// - error
	Prune(ctx context.Context, retention time.Duration) (int, error)
}
