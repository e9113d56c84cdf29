package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"voicenote-server-go/internal/domain/blob"
	"voicenote-server-go/internal/domain/journal"
	"voicenote-server-go/internal/domain/recorder"
	"voicenote-server-go/internal/platform/storage"
)

type testTransport struct {
	client   *websocket.Conn
	hub      *Hub
	recorder *recorder.Service
}

func newTestTransport(t *testing.T) *testTransport {
	t.Helper()

	db, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec("DELETE FROM notes").Error; err != nil {
		t.Fatalf("clean notes: %v", err)
	}
	blobs, err := blob.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	journalSvc := journal.NewService(storage.NewNoteRepository(db),
		journal.NewTrendCache(nil, "", 0, nil), nil)
	recorderSvc := recorder.NewService(journalSvc, blobs, 200*time.Millisecond, nil)
	t.Cleanup(recorderSvc.Close)

	hub := NewHub(nil)
	router := NewRouter(hub, nil, RouterOptions{})
	router.SetHandlerBuilder(func(conn *Connection, req *http.Request) (SessionHandler, error) {
		return NewRecordingHandler(conn, recorderSvc, 1, nil), nil
	})

	srv := httptest.NewServer(http.HandlerFunc(router.Handle))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return &testTransport{client: client, hub: hub, recorder: recorderSvc}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := sonic.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readReply(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg serverMessage
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	return msg
}

func loudFrame() clientMessage {
	spectrum := make([]float64, 1024)
	for i := range spectrum {
		if i%2 == 0 {
			spectrum[i] = 250
		}
	}
	spectrum[1000] = 255

	timeDomain := make([]float64, 1024)
	for i := range timeDomain {
		if i%2 == 0 {
			timeDomain[i] = 0.95
		} else {
			timeDomain[i] = -0.95
		}
	}
	return clientMessage{
		Type:       "frame",
		Spectrum:   spectrum,
		TimeDomain: timeDomain,
		SampleRate: 44100,
	}
}

func TestRecordingProtocolRoundTrip(t *testing.T) {
	client := newTestTransport(t).client

	sendJSON(t, client, clientMessage{Type: "start", Format: "webm"})
	started := readReply(t, client)
	if started.Type != "started" || started.SessionID == "" {
		t.Fatalf("start reply = %+v", started)
	}

	var last serverMessage
	frame := loudFrame()
	for i := 0; i < 12; i++ {
		sendJSON(t, client, frame)
		last = readReply(t, client)
		if last.Type != "emotion" {
			t.Fatalf("frame reply = %+v", last)
		}
	}
	if last.Label != "happy" {
		t.Fatalf("label after 12 loud frames = %q, want happy", last.Label)
	}
	if last.Frames != 12 {
		t.Fatalf("frames = %d, want 12", last.Frames)
	}

	if err := client.WriteMessage(websocket.BinaryMessage, []byte("audio-bytes")); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	sendJSON(t, client, clientMessage{Type: "stop", Title: "walk home"})
	saved := readReply(t, client)
	if saved.Type != "saved" || saved.Note == nil {
		t.Fatalf("stop reply = %+v", saved)
	}
	if saved.Note.Title != "walk home" {
		t.Errorf("note title = %q", saved.Note.Title)
	}
	if saved.Note.Emotion != "happy" {
		t.Errorf("note emotion = %q, want happy", saved.Note.Emotion)
	}
	if saved.Note.UID == "" {
		t.Error("expected note uid in saved reply")
	}
}

func TestRecordingProtocolFrameWithoutStart(t *testing.T) {
	client := newTestTransport(t).client

	sendJSON(t, client, loudFrame())
	reply := readReply(t, client)
	if reply.Type != "error" {
		t.Fatalf("reply = %+v, want error", reply)
	}
}

func TestRecordingProtocolAbort(t *testing.T) {
	client := newTestTransport(t).client

	sendJSON(t, client, clientMessage{Type: "start", Format: "webm"})
	if reply := readReply(t, client); reply.Type != "started" {
		t.Fatalf("start reply = %+v", reply)
	}

	sendJSON(t, client, clientMessage{Type: "abort"})
	if reply := readReply(t, client); reply.Type != "aborted" {
		t.Fatalf("abort reply = %+v", reply)
	}

	// A new recording can begin on the same connection.
	sendJSON(t, client, clientMessage{Type: "start", Format: "webm"})
	if reply := readReply(t, client); reply.Type != "started" {
		t.Fatalf("restart reply = %+v", reply)
	}
}

func TestRecordingProtocolUnknownType(t *testing.T) {
	client := newTestTransport(t).client

	sendJSON(t, client, clientMessage{Type: "noise"})
	reply := readReply(t, client)
	if reply.Type != "error" {
		t.Fatalf("reply = %+v, want error", reply)
	}
}

// Server-side shutdown must not abort the session from the hub goroutine:
// the read loop owns it and drops it after the connection unblocks.
func TestCloseAllAbortsInFlightRecording(t *testing.T) {
	transport := newTestTransport(t)
	client := transport.client

	sendJSON(t, client, clientMessage{Type: "start", Format: "webm"})
	if reply := readReply(t, client); reply.Type != "started" {
		t.Fatalf("start reply = %+v", reply)
	}
	if got := transport.recorder.ActiveSessions(); got != 1 {
		t.Fatalf("active sessions = %d, want 1", got)
	}

	transport.hub.CloseAll(nil)

	waitFor(t, func() bool {
		return transport.recorder.ActiveSessions() == 0
	}, "recorder session abort")
	if got := transport.hub.Count(); got != 0 {
		t.Errorf("hub count after CloseAll = %d", got)
	}
}

func TestCloseStaleReapsIdleConnection(t *testing.T) {
	transport := newTestTransport(t)

	waitFor(t, func() bool {
		return transport.hub.Count() == 1
	}, "session registration")

	// A generous timeout leaves the fresh connection alone.
	if closed := transport.hub.CloseStale(time.Hour); closed != 0 {
		t.Fatalf("closed %d sessions with nothing idle", closed)
	}

	time.Sleep(50 * time.Millisecond)
	if closed := transport.hub.CloseStale(10 * time.Millisecond); closed != 1 {
		t.Fatalf("closed = %d, want 1", closed)
	}
	if got := transport.hub.Count(); got != 0 {
		t.Errorf("hub count after reap = %d", got)
	}

	_ = transport.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := transport.client.ReadMessage(); err == nil {
		t.Error("expected read failure on reaped connection")
	}
}
