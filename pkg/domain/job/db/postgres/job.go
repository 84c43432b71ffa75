package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kpool "github.com/Lelouch-Britannia/KubePlayground/pkg/conn/db/postgres/pool"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	kdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
)

type pgJob struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.JobInterface {
	return &pgJob{pool: pool}
}

func (j *pgJob) Enqueue(ctx context.Context, envelope domain.JobEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if _, err := j.pool.Exec(
		ctx,
		`INSERT INTO "job_queue" ("job_id", "envelope") VALUES ($1, $2)`,
		envelope.JobId, payload,
	); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			if pgerr.Code == pgerrcode.UniqueViolation {
				return kerr.NewConflictCausedBy(
					fmt.Sprintf("job %s is enqueued already", envelope.JobId), err,
				)
			}
		}
		return err
	}
	return nil
}

func (j *pgJob) Pull(ctx context.Context, lease time.Duration) (domain.JobEnvelope, kdb.Ack, error) {
	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return domain.JobEnvelope{}, nil, err
	}
	defer tx.Rollback(ctx)

	var jobId string
	var payload []byte
	if err := tx.QueryRow(
		ctx,
		`
		with "next" as (
			select "job_id" from "job_queue"
			where "leased_until" is null or "leased_until" < now()
			order by "arrival"
			limit 1
			for update skip locked
		)
		update "job_queue"
		set "leased_until" = now() + $1
		where "job_id" in (select "job_id" from "next")
		returning "job_id", "envelope";
		`,
		lease,
	).Scan(&jobId, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.JobEnvelope{}, nil, kerr.NewMissing("the job queue is drained")
		}
		return domain.JobEnvelope{}, nil, err
	}

	envelope := domain.JobEnvelope{}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return domain.JobEnvelope{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.JobEnvelope{}, nil, err
	}

	ack := func(ctx context.Context) error {
		_, err := j.pool.Exec(
			ctx, `DELETE FROM "job_queue" WHERE "job_id" = $1`, jobId,
		)
		return err
	}
	return envelope, ack, nil
}

func (j *pgJob) Depth(ctx context.Context) (int, error) {
	var depth int
	if err := j.pool.QueryRow(
		ctx, `SELECT count(*) FROM "job_queue"`,
	).Scan(&depth); err != nil {
		return 0, err
	}
	return depth, nil
}
