package mock

import (
	"context"
	"errors"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
)

type EventInterface struct {
	Impl struct {
		Publish func(ctx context.Context, event domain.Event) error
		Replay  func(ctx context.Context, jobId string, fromSeq int64) ([]domain.Event, bool, error)
		Follow  func(ctx context.Context, jobId string, fromSeq int64) (<-chan domain.Event, error)
		Prune   func(ctx context.Context, retention time.Duration) (int, error)
	}
	Called struct {
		Publish uint64
		Replay  uint64
		Follow  uint64
		Prune   uint64
	}
}

var _ kdb.EventInterface = &EventInterface{}

func New() *EventInterface {
	return &EventInterface{}
}

func (m *EventInterface) Publish(ctx context.Context, event domain.Event) error {
	m.Called.Publish += 1
	if m.Impl.Publish == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Publish(ctx, event)
}

func (m *EventInterface) Replay(ctx context.Context, jobId string, fromSeq int64) ([]domain.Event, bool, error) {
	m.Called.Replay += 1
	if m.Impl.Replay == nil {
		return nil, false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Replay(ctx, jobId, fromSeq)
}

func (m *EventInterface) Follow(ctx context.Context, jobId string, fromSeq int64) (<-chan domain.Event, error) {
	m.Called.Follow += 1
	if m.Impl.Follow == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Follow(ctx, jobId, fromSeq)
}

func (m *EventInterface) Prune(ctx context.Context, retention time.Duration) (int, error) {
	m.Called.Prune += 1
	if m.Impl.Prune == nil {
		return 0, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Prune(ctx, retention)
}
