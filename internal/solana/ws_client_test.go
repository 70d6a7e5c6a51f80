package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// signatureServer acknowledges every signatureSubscribe and, when notify is set,
// immediately pushes a signatureNotification carrying onChainErr.
func signatureServer(t *testing.T, notify bool, onChainErr interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		subID := int64(0)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}
			if req.Method != "signatureSubscribe" {
				t.Errorf("expected signatureSubscribe, got %s", req.Method)
				return
			}

			c.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  subID,
			})

			if notify {
				c.WriteJSON(map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  "signatureNotification",
					"params": map[string]interface{}{
						"subscription": subID,
						"result": map[string]interface{}{
							"context": map[string]interface{}{"slot": 5207624},
							"value":   map[string]interface{}{"err": onChainErr},
						},
					},
				})
			}
			subID++
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_SubscribeSignature(t *testing.T) {
	server := signatureServer(t, true, nil)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(ctx, "sig-1", CommitmentConfirmed)
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without notification")
		}
		if n.Signature != "sig-1" {
			t.Errorf("expected sig-1, got %s", n.Signature)
		}
		if n.Slot != 5207624 {
			t.Errorf("expected slot 5207624, got %d", n.Slot)
		}
		if n.Err != nil {
			t.Errorf("expected no error, got %v", n.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after the notification")
	}
}

func TestWSClient_SubscribeSignature_OnChainError(t *testing.T) {
	server := signatureServer(t, true, map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(ctx, "sig-err", CommitmentConfirmed)
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case n := <-ch:
		if n.Err == nil {
			t.Error("expected on-chain error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_CloseReleasesWaiters(t *testing.T) {
	server := signatureServer(t, false, nil)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	ch, err := client.SubscribeSignature(ctx, "sig-pending", CommitmentConfirmed)
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel without value")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by Close")
	}

	if _, err := client.SubscribeSignature(ctx, "late", CommitmentConfirmed); err == nil {
		t.Error("expected error after Close")
	}
}

func TestWSClient_SubscribeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		for {
			var req wsRequest
			if err := c.ReadJSON(&req); err != nil {
				return
			}
			c.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32602, "message": "Invalid param: not a signature"},
			})
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	start := time.Now()
	_, err = client.SubscribeSignature(ctx, "bogus", CommitmentConfirmed)
	if err == nil {
		t.Fatal("expected rejection")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32602 {
		t.Errorf("expected RPCError -32602, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("rejection should not wait for the subscribe timeout, took %s", elapsed)
	}
}
