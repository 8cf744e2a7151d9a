package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
)

// Postgres change types.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// PostgresChanges selects the row changes a channel receives.
type PostgresChanges struct {
	Event  string `json:"event"` // INSERT, UPDATE, DELETE or *
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"` // e.g. "user_id=eq.<owner>"
}

// Change is one row change delivered by the realtime feed.
type Change struct {
	Type            string
	Schema          string
	Table           string
	Record          map[string]interface{}
	OldRecord       map[string]interface{}
	CommitTimestamp string
}

// OwnerFilter returns the filter scoping a subscription to one user's rows.
func OwnerFilter(ownerID string) string {
	return "user_id=eq." + ownerID
}

type phxMessage struct {
	Topic   string      `json:"topic"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Ref     string      `json:"ref"`
	JoinRef string      `json:"join_ref,omitempty"`
}

// Realtime consumes the Phoenix-protocol change feed.
type Realtime struct {
	client    *Client
	url       string
	dialer    websocket.Dialer
	heartbeat time.Duration
}

// Realtime returns the change feed client of c.
func (c *Client) Realtime() *Realtime {
	wsURL := c.baseURL
	if strings.HasPrefix(wsURL, "https") {
		wsURL = "wss" + wsURL[5:]
	} else if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[4:]
	}
	wsURL += "/realtime/v1/websocket?apikey=" + c.anonKey + "&vsn=1.0.0"

	return &Realtime{
		client:    c,
		url:       wsURL,
		dialer:    websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		heartbeat: 30 * time.Second,
	}
}

// Listen joins channel with subs and calls handler for every change until
// ctx is cancelled or the connection fails. handler runs on the reader
// goroutine, so changes are delivered in order.
func (r *Realtime) Listen(ctx context.Context, channel string, subs []PostgresChanges, handler func(Change)) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return errors.Wrap(errors.ErrRemoteUnavailable, "realtime dial", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	ref := 0
	send := func(topic, event string, payload interface{}) (string, error) {
		writeMu.Lock()
		defer writeMu.Unlock()
		ref++
		id := strconv.Itoa(ref)
		msg := phxMessage{Topic: topic, Event: event, Payload: payload, Ref: id}
		if event == "phx_join" {
			msg.JoinRef = id
		}
		return id, conn.WriteJSON(msg)
	}

	subs = append([]PostgresChanges(nil), subs...)
	for i := range subs {
		if subs[i].Schema == "" {
			subs[i].Schema = "public"
		}
		if subs[i].Event == "" {
			subs[i].Event = "*"
		}
	}
	topic := "realtime:" + channel
	joinRef, err := send(topic, "phx_join", map[string]interface{}{
		"config":       map[string]interface{}{"postgres_changes": subs},
		"access_token": r.client.bearer(),
	})
	if err != nil {
		return errors.Wrap(errors.ErrRemoteUnavailable, "realtime join", err)
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- errors.Wrap(errors.ErrRemoteUnavailable, "realtime read", err)
				return
			}
			if err := dispatch(msg, topic, joinRef, handler); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			writeMu.Lock()
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			writeMu.Unlock()
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-ticker.C:
			if _, err := send("phoenix", "heartbeat", struct{}{}); err != nil {
				return errors.Wrap(errors.ErrRemoteUnavailable, "realtime heartbeat", err)
			}
		}
	}
}

func dispatch(msg []byte, topic, joinRef string, handler func(Change)) error {
	parsed := gjson.ParseBytes(msg)
	if parsed.Get("topic").String() != topic {
		return nil
	}

	switch parsed.Get("event").String() {
	case "phx_reply":
		if parsed.Get("ref").String() == joinRef && parsed.Get("payload.status").String() == "error" {
			return errors.Newf(errors.ErrRemoteRejected, "realtime join rejected: %s",
				parsed.Get("payload.response.reason").String())
		}
	case "postgres_changes":
		data := parsed.Get("payload.data")
		change := Change{
			Type:            data.Get("type").String(),
			Schema:          data.Get("schema").String(),
			Table:           data.Get("table").String(),
			CommitTimestamp: data.Get("commit_timestamp").String(),
		}
		decodeRecord(data.Get("record"), &change.Record)
		decodeRecord(data.Get("old_record"), &change.OldRecord)
		handler(change)
	case "system":
		if parsed.Get("payload.status").String() == "error" {
			logging.Warn("Realtime system error", map[string]interface{}{
				"topic":   topic,
				"message": parsed.Get("payload.message").String(),
			})
		}
	}
	return nil
}

func decodeRecord(raw gjson.Result, dst *map[string]interface{}) {
	if !raw.IsObject() {
		return
	}
	if err := json.Unmarshal([]byte(raw.Raw), dst); err != nil {
		logging.Debug("Dropping undecodable realtime record", map[string]interface{}{"error": err.Error()})
	}
}

// Watch runs Listen until ctx is cancelled, reconnecting with exponential
// backoff capped at 30s.
func (r *Realtime) Watch(ctx context.Context, channel string, subs []PostgresChanges, handler func(Change)) {
	backoff := time.Second
	for {
		start := time.Now()
		err := r.Listen(ctx, channel, subs, handler)
		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}
		reason := "closed by server"
		if err != nil {
			reason = err.Error()
		}
		logging.Warn("Realtime connection lost, reconnecting", map[string]interface{}{
			"channel": channel,
			"error":   reason,
			"backoff": backoff.String(),
		})
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}
