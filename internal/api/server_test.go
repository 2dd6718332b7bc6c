package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/aim"
	"github.com/bryanchriswhite/FocusTracker/internal/capture"
	"github.com/bryanchriswhite/FocusTracker/internal/display"
	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
	"github.com/gorilla/websocket"
)

type staticStats aim.Stats

func (s staticStats) Stats() aim.Stats { return aim.Stats(s) }

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub()
	session := Session{
		Backend: "duplication-ring",
		Kind:    capture.HardwareAccelerated.String(),
		Region:  display.Region{Left: 800, Top: 380, Right: 1120, Bottom: 700},
	}
	srv := httptest.NewServer(NewServer(session, hub, staticStats{Frames: 7, CPS: 60}, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, hub
}

func TestHealthAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Session.Backend != "duplication-ring" || status.Session.Region.Width() != 320 {
		t.Fatalf("unexpected session %+v", status.Session)
	}
	if status.Loop.Frames != 7 || status.Loop.CPS != 60 {
		t.Fatalf("unexpected loop stats %+v", status.Loop)
	}
}

func TestCurrentTrackAndConfigWithoutData(t *testing.T) {
	srv, hub := newTestServer(t)

	for _, path := range []string{"/api/track/current", "/api/config"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}

	hub.Observe(aim.Event{Frame: &capture.Frame{Sequence: 9}, Result: tracker.Result{Index: -1}})
	resp, err := http.Get(srv.URL + "/api/track/current")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	defer resp.Body.Close()
	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != MessageTrack || msg.Sequence != 9 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestTrackStreamDeliversEvents(t *testing.T) {
	srv, hub := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/track/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("expected one subscriber")
	}

	target := tracker.DetectionBox{CenterX: 0.5, CenterY: 0.5, Height: 0.2, Confidence: 0.8}
	hub.Observe(aim.Event{
		Frame:      &capture.Frame{Sequence: 3},
		Detections: []tracker.DetectionBox{target},
		Result:     tracker.Result{Target: &target, Index: 0},
		Gated:      true,
		Armed:      true,
	})
	if err := hub.MoveBy(4, -2); err != nil {
		t.Fatalf("move: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Message
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read track: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read move: %v", err)
	}

	if first.Type != MessageTrack || first.Sequence != 3 || !first.Gated || !first.Armed || len(first.Detections) != 1 {
		t.Fatalf("unexpected track message %+v", first)
	}
	if first.Result == nil || first.Result.Target == nil || first.Result.Target.Confidence != 0.8 {
		t.Fatalf("track message lost the target: %+v", first.Result)
	}
	if second.Type != MessageMove || second.DX != 4 || second.DY != -2 {
		t.Fatalf("unexpected move message %+v", second)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)
	hub.Unsubscribe(ch) // second call is a no-op

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers")
	}
}
