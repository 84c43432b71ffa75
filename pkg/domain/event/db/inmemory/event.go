package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
)

// New returns an EventInterface held in process memory.
//
// It keeps the same contract as the postgres one (dedupe on
// (JobId, Seq), ordered replay, follow-until-terminal) and is meant
// for tests and for running without a database.
func New() kdb.EventInterface {
	return &memEvent{
		streams:      map[string]map[int64]domain.Event{},
		pollInterval: 10 * time.Millisecond,
	}
}

type memEvent struct {
	mu           sync.Mutex
	streams      map[string]map[int64]domain.Event
	pollInterval time.Duration
}

func (m *memEvent) Publish(_ context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stream, ok := m.streams[event.JobId]
	if !ok {
		stream = map[int64]domain.Event{}
		m.streams[event.JobId] = stream
	}
	if _, ok := stream[event.Seq]; ok {
		return nil // published already
	}
	stream[event.Seq] = event
	return nil
}

func (m *memEvent) Replay(_ context.Context, jobId string, fromSeq int64) ([]domain.Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	closed := false
	events := []domain.Event{}
	for _, ev := range m.streams[jobId] {
		closed = closed || ev.Terminal()
		if ev.Seq < fromSeq {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, closed, nil
}

func (m *memEvent) Prune(_ context.Context, retention time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	pruned := 0
	for jobId, stream := range m.streams {
		for _, ev := range stream {
			if ev.Terminal() && ev.Timestamp.Before(cutoff) {
				pruned += len(stream)
				delete(m.streams, jobId)
				break
			}
		}
	}
	return pruned, nil
}

func (m *memEvent) Follow(ctx context.Context, jobId string, fromSeq int64) (<-chan domain.Event, error) {
	ch := make(chan domain.Event)

	go func() {
		defer close(ch)

		next := fromSeq
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()

		for {
			events, closed, err := m.Replay(ctx, jobId, next)
			if err != nil {
				return
			}
			for _, ev := range events {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
				next = ev.Seq + 1
				if ev.Terminal() {
					return
				}
			}
			if closed {
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
