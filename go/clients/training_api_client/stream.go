package training_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

// SubscribeLessonEvents dials the gateway websocket for key and streams
// decoded envelopes until ctx is cancelled or the connection drops. The
// returned channel is closed when the stream ends.
func SubscribeLessonEvents(ctx context.Context, gatewayURL, token string, key models.LessonKey) (<-chan events.Envelope, error) {
	target, err := lessonEventsURL(gatewayURL, key)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token != "" {
		header.Set(AuthorizationHeader, "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial lesson events: %w", err)
	}

	out := make(chan events.Envelope, 16)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(out)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("lesson", key.String()).Msg("lesson event stream closed")
				}
				return
			}

			var env events.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Warn().Err(err).Msg("discarding malformed lesson event")
				continue
			}

			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func lessonEventsURL(gatewayURL string, key models.LessonKey) (string, error) {
	u, err := url.Parse(strings.TrimRight(gatewayURL, "/") + LessonEventsEndpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	q := keyQuery(key)
	q.Set(LessonIDParam, key.LessonID.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
