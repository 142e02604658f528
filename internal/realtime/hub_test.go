package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/goalmap/internal/identity"
	"github.com/ashureev/goalmap/internal/roadmap"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func newFeedServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(16, nil)
	srv := httptest.NewServer(identity.Middleware()(NewHandler(hub, nil)))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/roadmaps?" + identity.QueryParam + "=" + userID
	before := hub.ClientCount(userID)
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	require.Eventually(t, func() bool { return hub.ClientCount(userID) > before }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) feedMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg feedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubDeliversOnlyToOwner(t *testing.T) {
	hub, srv := newFeedServer(t)
	alice := dial(t, srv, hub, "alice")
	bob := dial(t, srv, hub, "bob")

	hub.Publish(roadmap.Event{
		Type:            roadmap.EventStepToggled,
		OwnerExternalID: "alice",
		Data:            roadmap.StepToggledData{RoadmapID: 1, ID: 7, IsDone: true, Progress: "1/4"},
	})

	msg := readMessage(t, alice)
	assert.Equal(t, string(roadmap.EventStepToggled), msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
	assert.JSONEq(t, `{"roadmap_id":1,"id":7,"is_done":true,"progress":"1/4"}`, string(msg.Data))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, err := bob.Read(ctx)
	assert.Error(t, err, "bob must not receive alice's events")
}

func TestHubFansOutToEveryConnection(t *testing.T) {
	hub, srv := newFeedServer(t)
	first := dial(t, srv, hub, "carol")
	second := dial(t, srv, hub, "carol")
	require.Equal(t, 2, hub.ClientCount("carol"))

	hub.Publish(roadmap.Event{Type: roadmap.EventRoadmapDeleted, OwnerExternalID: "carol", Data: roadmap.RoadmapDeletedData{ID: 3}})

	assert.Equal(t, string(roadmap.EventRoadmapDeleted), readMessage(t, first).Type)
	assert.Equal(t, string(roadmap.EventRoadmapDeleted), readMessage(t, second).Type)
}

func TestHandlerAnswersPing(t *testing.T) {
	hub, srv := newFeedServer(t)
	conn := dial(t, srv, hub, "dave")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))

	assert.Equal(t, "pong", readMessage(t, conn).Type)
}

func TestHandlerUnregistersOnClose(t *testing.T) {
	hub, srv := newFeedServer(t)
	conn := dial(t, srv, hub, "erin")

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return hub.ClientCount("erin") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerRequiresUserID(t *testing.T) {
	_, srv := newFeedServer(t)

	resp, err := http.Get(srv.URL + "/ws/roadmaps")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPublishAfterCloseDoesNotBlock(t *testing.T) {
	hub := NewHub(1, nil)
	hub.Close()

	done := make(chan struct{})
	go func() {
		hub.Publish(roadmap.Event{Type: roadmap.EventRoadmapCreated, OwnerExternalID: "x"})
		hub.Publish(roadmap.Event{Type: roadmap.EventRoadmapCreated, OwnerExternalID: "x"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after Close")
	}
}
