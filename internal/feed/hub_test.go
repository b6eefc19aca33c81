package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maxlink/dashboard/internal/dom"
)

type fakeController struct {
	mu       sync.Mutex
	resizes  [][2]float64
	refresh  int
	reloaded []string
}

func (f *fakeController) Resize(w, h float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]float64{w, h})
}

func (f *fakeController) RefreshAll(context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	return 0
}

func (f *fakeController) ReloadWidget(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloaded = append(f.reloaded, id)
	return nil
}

func (f *fakeController) snapshot() (resizes [][2]float64, refresh int, reloaded []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]float64(nil), f.resizes...), f.refresh, append([]string(nil), f.reloaded...)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func typeOf(t *testing.T, msg map[string]json.RawMessage) string {
	var s string
	require.NoError(t, json.Unmarshal(msg["type"], &s))
	return s
}

func setup(t *testing.T) (*dom.Document, *Hub, *fakeController, *httptest.Server) {
	doc := dom.New("dashboard")
	ctl := &fakeController{}
	hub := NewHub(doc, ctl, zaptest.NewLogger(t).Sugar(), Options{})
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return doc, hub, ctl, srv
}

func TestHub_SnapshotThenChanges(t *testing.T) {
	doc, hub, _, srv := setup(t)
	doc.SetVar("--centre-h", "300px")

	conn := dial(t, srv)
	msg := readMessage(t, conn)
	require.Equal(t, TypeSnapshot, typeOf(t, msg))

	var snap dom.Snapshot
	require.NoError(t, json.Unmarshal(msg["data"], &snap))
	assert.Equal(t, "300px", snap.Vars["--centre-h"])

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	el := doc.CreateElement("clock", "widget")
	el.SetMarkup(`<span data-slot="time"></span>`)
	require.NoError(t, doc.Root("dashboard").AppendChild(el))

	msg = readMessage(t, conn)
	require.Equal(t, TypeChange, typeOf(t, msg))
	var change dom.Change
	require.NoError(t, json.Unmarshal(msg["change"], &change))
	assert.Equal(t, dom.ChangeAppend, change.Kind)
	var st dom.ElementState
	require.NoError(t, json.Unmarshal(msg["element"], &st))
	assert.Contains(t, st.Markup, "data-slot")

	el.SetText("time", "12:00:00")
	msg = readMessage(t, conn)
	require.NoError(t, json.Unmarshal(msg["change"], &change))
	assert.Equal(t, dom.ChangeSlot, change.Kind)
	assert.Equal(t, "12:00:00", change.Value)
}

func TestHub_ForwardsEvents(t *testing.T) {
	_, hub, _, srv := setup(t)
	conn := dial(t, srv)
	readMessage(t, conn) // snapshot
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	e := cloudevents.NewEvent()
	e.SetID("1")
	e.SetSource("test")
	e.SetType("com.maxlink.widget.loaded")
	require.NoError(t, hub.OnEvent(context.Background(), e))

	msg := readMessage(t, conn)
	require.Equal(t, TypeEvent, typeOf(t, msg))
	assert.Contains(t, string(msg["data"]), "com.maxlink.widget.loaded")
}

func TestHub_Commands(t *testing.T) {
	_, _, ctl, srv := setup(t)
	conn := dial(t, srv)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Command{Type: CmdResize, Width: 1024, Height: 600}))
	require.NoError(t, conn.WriteJSON(Command{Type: CmdRefresh}))
	require.NoError(t, conn.WriteJSON(Command{Type: CmdReload, ID: "clock"}))
	require.NoError(t, conn.WriteJSON(Command{Type: "bogus"}))

	require.Eventually(t, func() bool {
		resizes, refresh, reloaded := ctl.snapshot()
		return len(resizes) == 1 && refresh == 1 && len(reloaded) == 1
	}, time.Second, 5*time.Millisecond)

	resizes, _, reloaded := ctl.snapshot()
	assert.Equal(t, [2]float64{1024, 600}, resizes[0])
	assert.Equal(t, []string{"clock"}, reloaded)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	_, hub, _, srv := setup(t)
	conn := dial(t, srv)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}
