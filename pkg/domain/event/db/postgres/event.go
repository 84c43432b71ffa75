package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kpool "github.com/Lelouch-Britannia/KubePlayground/pkg/conn/db/postgres/pool"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/utils/retry"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

type pgEvent struct {
	pool kpool.Pool

	// how long Follow waits before polling for events not written yet
	pollInterval time.Duration
}

func New(pool kpool.Pool) kdb.EventInterface {
	return &pgEvent{
		pool:         pool,
		pollInterval: 200 * time.Millisecond,
	}
}

func (e *pgEvent) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := e.pool.Exec(
		ctx,
		`INSERT INTO "job_events" ("job_id", "seq", "event") VALUES ($1, $2, $3)`,
		event.JobId, event.Seq, payload,
	); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			if pgerr.Code == pgerrcode.UniqueViolation {
				// published already, by us or an earlier attempt
				return nil
			}
		}
		return err
	}
	return nil
}

func (e *pgEvent) Replay(ctx context.Context, jobId string, fromSeq int64) ([]domain.Event, bool, error) {
	rows, err := e.pool.Query(
		ctx,
		`
		select "event" from "job_events"
		where "job_id" = $1 and $2 <= "seq"
		order by "seq";
		`,
		jobId, fromSeq,
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	events := []domain.Event{}
	closed := false
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		event := domain.Event{}
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, false, err
		}
		events = append(events, event)
		closed = closed || event.Terminal()
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	if !closed && fromSeq > 1 {
		// the terminal event may sit before fromSeq
		var terminal int
		if err := e.pool.QueryRow(
			ctx,
			`
			select count(*) from "job_events"
			where "job_id" = $1 and "event"->>'kind' = $2;
			`,
			jobId, string(domain.EventJobCompleted),
		).Scan(&terminal); err != nil {
			return nil, false, err
		}
		closed = 0 < terminal
	}

	return events, closed, nil
}

func (e *pgEvent) Follow(ctx context.Context, jobId string, fromSeq int64) (<-chan domain.Event, error) {
	ch := make(chan domain.Event)

	go func() {
		defer close(ch)

		next := fromSeq
		backoff := retry.StaticBackoff(e.pollInterval)
		for {
			events, closed, err := e.Replay(ctx, jobId, next)
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
				// terminal is behind fromSeq; nothing more will come
				return
			}

			if err := backoff(ctx); err != nil {
				return
			}
		}
	}()

	return ch, nil
}

func (e *pgEvent) Prune(ctx context.Context, retention time.Duration) (int, error) {
	tag, err := e.pool.Exec(
		ctx,
		`
		with "expired" as (
			select "job_id" from "job_events"
			where "event"->>'kind' = $1 and "recorded_at" < now() - $2
		)
		delete from "job_events"
		where "job_id" in (select "job_id" from "expired");
		`,
		string(domain.EventJobCompleted), retention,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
