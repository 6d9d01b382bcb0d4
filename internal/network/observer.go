package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/MRamiBalles/agentia/internal/events"
)

// ErrStopTail can be returned by a Tail visit function to disconnect cleanly.
var ErrStopTail = errors.New("network: stop tail")

// Tail connects to an observer stream and calls visit for every event until
// ctx ends, the server closes the stream, or visit returns an error.
func Tail(ctx context.Context, wsURL string, visit func(events.GameEvent) error) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return oops.Wrapf(err, "dial %s", wsURL)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return nil
			}
			return oops.Wrapf(err, "read observer stream")
		}
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var e events.GameEvent
			if err := json.Unmarshal(line, &e); err != nil {
				return oops.Wrapf(err, "decode event")
			}
			if err := visit(e); err != nil {
				if errors.Is(err, ErrStopTail) {
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return nil
				}
				return err
			}
		}
	}
}
