package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	binderr "github.com/Lelouch-Britannia/KubePlayground/pkg/api/errors"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	eventdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
	jobdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db"
)

// DeployRequest is the body of POST .../jobs/deploy/.
type DeployRequest struct {
	OwnerKey string `json:"ownerKey"`
	Manifest string `json:"manifest"`
}

// VerifyRequest is the body of POST .../jobs/verify/.
type VerifyRequest struct {
	OwnerKey   string             `json:"ownerKey"`
	Assertions []domain.Assertion `json:"assertions"`
}

// JobReceipt tells the caller which job id to watch.
type JobReceipt struct {
	JobId       string         `json:"jobId"`
	Kind        domain.JobKind `json:"kind"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

func PostDeployHandler(jobs jobdb.JobInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := DeployRequest{}
		if err := c.Bind(&req); err != nil {
			return binderr.BadRequest("malformed request body", err)
		}

		envelope := domain.JobEnvelope{
			JobId:       uuid.NewString(),
			Kind:        domain.Deploy,
			OwnerKey:    req.OwnerKey,
			Manifest:    []byte(req.Manifest),
			SubmittedAt: time.Now(),
		}

		return enqueue(c, jobs, envelope)
	}
}

func PostVerifyHandler(jobs jobdb.JobInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := VerifyRequest{}
		if err := c.Bind(&req); err != nil {
			return binderr.BadRequest("malformed request body", err)
		}

		envelope := domain.JobEnvelope{
			JobId:       uuid.NewString(),
			Kind:        domain.Verify,
			OwnerKey:    req.OwnerKey,
			Assertions:  req.Assertions,
			SubmittedAt: time.Now(),
		}

		return enqueue(c, jobs, envelope)
	}
}

func enqueue(c echo.Context, jobs jobdb.JobInterface, envelope domain.JobEnvelope) error {
	ctx := c.Request().Context()

	if err := envelope.Validate(); err != nil {
		return binderr.BadRequest("fix the request and try again", err)
	}

	if err := jobs.Enqueue(ctx, envelope); err != nil {
		if kerr.AsConflict(err) {
			return binderr.Conflict("job id is taken", binderr.WithError(err))
		}
		return binderr.InternalServerError(err)
	}

	return c.JSON(http.StatusAccepted, JobReceipt{
		JobId:       envelope.JobId,
		Kind:        envelope.Kind,
		SubmittedAt: envelope.SubmittedAt,
	})
}

// GetReportHandler serves the terminal report of a job.
//
// While the job is running (or unknown), it responds 404.
func GetReportHandler(events eventdb.EventInterface, jobIdKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		jobId := c.Param(jobIdKey)

		stream, closed, err := events.Replay(ctx, jobId, 0)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		if !closed {
			return binderr.NotFound()
		}

		for _, ev := range stream {
			if ev.Terminal() && ev.Report != nil {
				return c.JSON(http.StatusOK, *ev.Report)
			}
		}
		return binderr.NotFound()
	}
}

// EventPage is the body of the JSON (non-websocket) replay of
// GET .../jobs/:jobId/events/.
type EventPage struct {
	Events []domain.Event `json:"events"`

	// true when the terminal event is in Events (or behind the
	// requested sequence).
	Closed bool `json:"closed"`
}

// afterSequence reads the "from_sequence" query parameter.
//
// The replied stream starts after that sequence. Without the
// parameter the stream starts from the beginning.
func afterSequence(c echo.Context) (int64, error) {
	raw := c.QueryParam("from_sequence")
	if raw == "" {
		return 0, nil
	}
	last, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, binderr.BadRequest(`"from_sequence" should be an integer`, err)
	}
	return last + 1, nil
}

func GetEventsHandler(events eventdb.EventInterface, jobIdKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		jobId := c.Param(jobIdKey)

		fromSeq, err := afterSequence(c)
		if err != nil {
			return err
		}

		stream, closed, err := events.Replay(ctx, jobId, fromSeq)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		if stream == nil {
			stream = []domain.Event{}
		}
		return c.JSON(http.StatusOK, EventPage{Events: stream, Closed: closed})
	}
}
