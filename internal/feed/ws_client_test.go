package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedServer answers every subscribe request with an incrementing
// subscription ID and exposes the connection for pushing notifications.
type feedServer struct {
	*httptest.Server

	conn  chan *websocket.Conn
	subID atomic.Int64
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{conn: make(chan *websocket.Conn, 4)}

	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.conn <- c

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			if !strings.HasSuffix(req.Method, "Subscribe") {
				continue
			}
			resp := wsSubscribeResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Result:  fs.subID.Add(1),
			}
			if err := c.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	return fs
}

func (fs *feedServer) url() string {
	return "ws" + strings.TrimPrefix(fs.Server.URL, "http")
}

func (fs *feedServer) notify(t *testing.T, conn *websocket.Conn, method string, subID int64, result interface{}) {
	t.Helper()
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	notif := wsNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  &wsNotificationParams{Subscription: subID, Result: raw},
	}
	if err := conn.WriteJSON(notif); err != nil {
		t.Fatalf("write notification: %v", err)
	}
}

func TestClient_Connect(t *testing.T) {
	server := newFeedServer(t)
	defer server.Close()

	client, err := NewClient(context.Background(), server.url(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestClient_CandidateStream(t *testing.T) {
	server := newFeedServer(t)
	defer server.Close()

	client, err := NewClient(context.Background(), server.url(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	conn := <-server.conn
	candidates := client.Candidates()

	payload := candidatePayload{
		Mint:           "mint-1",
		Price:          0.002,
		LiquidityDepth: 60_000,
		CapturedAt:     1_700_000_000_000,
	}
	// The candidate stream was subscribed in NewClient with ID 1.
	server.notify(t, conn, "candidateNotification", 1, payload)

	select {
	case snap := <-candidates:
		if snap.Mint != "mint-1" {
			t.Errorf("expected mint-1, got %s", snap.Mint)
		}
		if snap.LiquidityDepth != 60_000 {
			t.Errorf("expected depth 60000, got %v", snap.LiquidityDepth)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for candidate")
	}
}

func TestClient_TickSubscription(t *testing.T) {
	server := newFeedServer(t)
	defer server.Close()

	client, err := NewClient(context.Background(), server.url(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	conn := <-server.conn

	ticks, err := client.Subscribe(context.Background(), "mint-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Candidate stream took ID 1, the tick subscription got ID 2.
	server.notify(t, conn, "tickNotification", 2, tickPayload{
		Price:       1.25,
		TimestampMs: 1_700_000_000_000,
		Volatility:  0.1,
	})

	select {
	case tick := <-ticks:
		if tick.Mint != "mint-1" {
			t.Errorf("expected mint-1, got %s", tick.Mint)
		}
		if tick.Price != 1.25 {
			t.Errorf("expected price 1.25, got %v", tick.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for tick")
	}
}

func TestClient_Close(t *testing.T) {
	server := newFeedServer(t)
	defer server.Close()

	client, err := NewClient(context.Background(), server.url(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close should be safe.
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestClient_SubscribeAfterClose(t *testing.T) {
	server := newFeedServer(t)
	defer server.Close()

	client, err := NewClient(context.Background(), server.url(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.Close()

	if _, err := client.Subscribe(context.Background(), "mint-1"); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestClient_CustomConfig(t *testing.T) {
	server := newFeedServer(t)
	defer server.Close()

	config := &ClientConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 1 * time.Second,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		SubscribeTimeout:  5 * time.Second,
	}

	client, err := NewClient(context.Background(), server.url(), config, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("expected PingInterval 5s, got %v", client.config.PingInterval)
	}
}
