package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/localstore"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := newTestHub()
	client := NewClient(localstore.KeyPatients)

	hub.Register(client)
	if hub.ClientCount() != 1 || hub.TopicCount(localstore.KeyPatients) != 1 {
		t.Fatalf("expected 1 client on patients, got %d/%d", hub.ClientCount(), hub.TopicCount(localstore.KeyPatients))
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount(localstore.KeyPatients) != 0 {
		t.Fatal("expected no clients after unregister")
	}
	if _, ok := <-client.Send; ok {
		t.Error("expected Send channel to be closed")
	}

	// A second unregister must not panic on the closed channel.
	hub.Unregister(client)
}

func TestHub_BroadcastOnlyToTopic(t *testing.T) {
	hub := newTestHub()
	referrals := NewClient("referrals")
	beds := NewClient(localstore.KeyHospitals)
	hub.Register(referrals)
	hub.Register(beds)

	hub.Broadcast("referrals", Event{Type: "referral.created", ResourceID: "r-1"})

	evt := receive(t, referrals)
	if evt.Type != "referral.created" || evt.Topic != "referrals" || evt.ResourceID != "r-1" {
		t.Errorf("unexpected event %+v", evt)
	}
	if evt.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled")
	}
	select {
	case <-beds.Send:
		t.Error("client on another topic received the event")
	default:
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := newTestHub()
	client := NewClient()
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{"a", "b", "a"}})
	if hub.TopicCount("a") != 1 || hub.TopicCount("b") != 1 {
		t.Fatal("expected subscriptions to a and b")
	}
	if len(client.Topics) != 2 {
		t.Errorf("expected duplicate subscription ignored, topics=%v", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{"a"}})
	if hub.TopicCount("a") != 0 || hub.TopicCount("b") != 1 {
		t.Fatal("expected only b to remain")
	}
	if len(client.Topics) != 1 || client.Topics[0] != "b" {
		t.Errorf("unexpected topics %v", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "bogus", Topics: []string{"c"}})
	if hub.TopicCount("c") != 0 {
		t.Error("unknown action must be ignored")
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := newTestHub()
	client := &Client{ID: "slow", Topics: []string{"t"}, Send: make(chan []byte, 1)}
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		hub.Broadcast("t", Event{Type: "one"})
		hub.Broadcast("t", Event{Type: "two"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
}

func TestHub_RelayForwardsStoreChanges(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()
	store := localstore.NewMemoryStore()
	stop := hub.Relay(store, localstore.KeyHospitals)

	client := NewClient(localstore.KeyHospitals)
	hub.Register(client)

	type bed struct {
		ID string `json:"id"`
	}
	col := localstore.NewCollection(localstore.Store(store), localstore.KeyHospitals, func(b bed) string { return b.ID })
	if err := col.Insert(ctx, bed{ID: "h_1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	evt := receive(t, client)
	if evt.Type != "collection.created" || evt.ResourceID != "h_1" || evt.Topic != localstore.KeyHospitals {
		t.Errorf("unexpected relayed event %+v", evt)
	}

	stop()
	_ = col.Insert(ctx, bed{ID: "h_2"})
	select {
	case <-client.Send:
		t.Error("expected no events after relay stopped")
	default:
	}
}

func TestHub_ConcurrentRegisterBroadcast(t *testing.T) {
	hub := newTestHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient("t")
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast("t", Event{Type: "x"})
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/sync/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewHandler(newTestHub(), nil).HandleConnect(c); err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail without websocket headers")
	}
}

func TestHandler_FullUpgrade(t *testing.T) {
	hub := newTestHub()
	e := echo.New()
	NewHandler(hub, []string{"http://allowed.test"}).RegisterRoutes(e.Group("/api"))

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sync/ws?topics=referrals"
	header := http.Header{"Origin": []string{"http://allowed.test"}}
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	waitFor(t, func() bool { return hub.TopicCount("referrals") == 1 })

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{localstore.KeyPatients}}); err != nil {
		t.Fatalf("send subscribe: %v", err)
	}
	waitFor(t, func() bool { return hub.TopicCount(localstore.KeyPatients) == 1 })

	hub.Broadcast(localstore.KeyPatients, Event{Type: "collection.updated", ResourceID: "p-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if received.Type != "collection.updated" || received.ResourceID != "p-1" {
		t.Errorf("unexpected event %+v", received)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	e := echo.New()
	NewHandler(newTestHub(), []string{"http://allowed.test"}).RegisterRoutes(e.Group("/api"))
	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sync/ws"
	header := http.Header{"Origin": []string{"http://evil.test"}}
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail for foreign origin")
	}
}
