package supabase

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

// realtimeServer accepts one join and then plays back frames.
func realtimeServer(t *testing.T, joined chan<- []byte, frames func(topic, ref string) []string) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realtime/v1/websocket", r.URL.Path)
		assert.Equal(t, "anon", r.URL.Query().Get("apikey"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		joined <- msg
		join := gjson.ParseBytes(msg)
		for _, f := range frames(join.Get("topic").String(), join.Get("ref").String()) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// TestRealtime_Listen verifies the join payload and change delivery.
func TestRealtime_Listen(t *testing.T) {
	joined := make(chan []byte, 1)
	c := newTestClient(t, realtimeServer(t, joined, func(topic, ref string) []string {
		return []string{
			`{"topic":"` + topic + `","event":"phx_reply","ref":"` + ref + `","payload":{"status":"ok","response":{}}}`,
			`{"topic":"realtime:other","event":"postgres_changes","payload":{"data":{"type":"INSERT","table":"x"}}}`,
			`{"topic":"` + topic + `","event":"postgres_changes","payload":{"data":{"type":"UPDATE","schema":"public","table":"gym_records","record":{"id":"r1","date":"2024-03-02"},"old_record":{"id":"r1"},"commit_timestamp":"2024-03-02T10:00:00Z"}}}`,
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Change, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Realtime().Listen(ctx, "gym:u1", []PostgresChanges{{Table: "gym_records", Filter: OwnerFilter("u1")}}, func(ch Change) {
			changes <- ch
		})
	}()

	select {
	case msg := <-joined:
		j := gjson.ParseBytes(msg)
		assert.Equal(t, "realtime:gym:u1", j.Get("topic").String())
		assert.Equal(t, "phx_join", j.Get("event").String())
		sub := j.Get("payload.config.postgres_changes.0")
		assert.Equal(t, "*", sub.Get("event").String())
		assert.Equal(t, "public", sub.Get("schema").String())
		assert.Equal(t, "user_id=eq.u1", sub.Get("filter").String())
	case <-time.After(2 * time.Second):
		t.Fatal("join not received")
	}

	select {
	case ch := <-changes:
		assert.Equal(t, ChangeUpdate, ch.Type)
		assert.Equal(t, "gym_records", ch.Table)
		assert.Equal(t, "2024-03-02", ch.Record["date"])
		assert.Equal(t, "r1", ch.OldRecord["id"])
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

// TestRealtime_joinRejected verifies an error reply ends the listen.
func TestRealtime_joinRejected(t *testing.T) {
	joined := make(chan []byte, 1)
	c := newTestClient(t, realtimeServer(t, joined, func(topic, ref string) []string {
		return []string{`{"topic":"` + topic + `","event":"phx_reply","ref":"` + ref + `","payload":{"status":"error","response":{"reason":"unauthorized"}}}`}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.Realtime().Listen(ctx, "gym:u1", []PostgresChanges{{Table: "gym_records"}}, func(Change) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRemoteRejected), "got %v", err)
	assert.Contains(t, err.Error(), "unauthorized")
}

// TestRealtime_url verifies the websocket URL derivation.
func TestRealtime_url(t *testing.T) {
	c, err := New(Config{URL: "https://abc.supabase.co", AnonKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "wss://abc.supabase.co/realtime/v1/websocket?apikey=k&vsn=1.0.0", c.Realtime().url)
}
