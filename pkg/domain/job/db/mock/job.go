package mock

import (
	"context"
	"errors"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db"
)

type JobInterface struct {
	Impl struct {
		Enqueue func(ctx context.Context, envelope domain.JobEnvelope) error
		Pull    func(ctx context.Context, lease time.Duration) (domain.JobEnvelope, kdb.Ack, error)
		Depth   func(ctx context.Context) (int, error)
	}
	Called struct {
		Enqueue uint64
		Pull    uint64
		Depth   uint64
	}
}

var _ kdb.JobInterface = &JobInterface{}

func New() *JobInterface {
	return &JobInterface{}
}

func (m *JobInterface) Enqueue(ctx context.Context, envelope domain.JobEnvelope) error {
	m.Called.Enqueue += 1
	if m.Impl.Enqueue == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Enqueue(ctx, envelope)
}

func (m *JobInterface) Pull(ctx context.Context, lease time.Duration) (domain.JobEnvelope, kdb.Ack, error) {
	m.Called.Pull += 1
	if m.Impl.Pull == nil {
		return domain.JobEnvelope{}, nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Pull(ctx, lease)
}

func (m *JobInterface) Depth(ctx context.Context) (int, error) {
	m.Called.Depth += 1
	if m.Impl.Depth == nil {
		return 0, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Depth(ctx)
}
