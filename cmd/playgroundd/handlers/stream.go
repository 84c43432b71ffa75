package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	eventdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHello is the first message a websocket client sends.
//
// FromSequence is the last sequence the client has seen, 0 when it
// has seen none; the server resumes just after it. Sequences start
// at 1, so 0 yields the whole stream.
type StreamHello struct {
	FromSequence int64 `json:"from_sequence"`
}

const helloTimeout = 10 * time.Second

// WatchEventsHandler serves the event stream of a job.
//
// Websocket clients get a live feed: replay from their StreamHello,
// then new events as they happen, then a normal close after the
// terminal event. Plain HTTP clients get the replay as JSON.
func WatchEventsHandler(events eventdb.EventInterface, jobIdKey string) echo.HandlerFunc {
	replay := GetEventsHandler(events, jobIdKey)
	return func(c echo.Context) error {
		if !websocket.IsWebSocketUpgrade(c.Request()) {
			return replay(c)
		}

		jobId := c.Param(jobIdKey)
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// Upgrade has written its own error response.
			return nil
		}
		defer conn.Close()

		streamEvents(c, conn, events, jobId)
		return nil
	}
}

func streamEvents(
	c echo.Context,
	conn *websocket.Conn,
	events eventdb.EventInterface,
	jobId string,
) {
	hello := StreamHello{}
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	if err := conn.ReadJSON(&hello); err != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(
				websocket.CloseProtocolError, "expected a from_sequence hello",
			),
			time.Now().Add(time.Second),
		)
		return
	}
	conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// notice the client going away while we only write
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ch, err := events.Follow(ctx, jobId, hello.FromSequence+1)
	if err != nil {
		c.Logger().Errorf("cannot follow events of job %s: %+v", jobId, err)
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(
				websocket.CloseInternalServerErr, "cannot follow events",
			),
			time.Now().Add(time.Second),
		)
		return
	}

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}

	// the stream is closed: the terminal event has been delivered
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job completed"),
		time.Now().Add(time.Second),
	)
}
