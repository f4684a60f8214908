// internal/console/console_test.go
package console

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestEscape_BrightAndBase(t *testing.T) {
	if got := Escape(Red, Black); got != "\x1b[31;40m" {
		t.Fatalf("got %q", got)
	}
	if got := Escape(Bright|White, Blue); got != "\x1b[97;44m" {
		t.Fatalf("got %q", got)
	}
}

func TestConsole_ColorDisabled(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, false)

	if c.Color(Red, Black) != "" || c.Reset() != "" {
		t.Fatalf("expected no escapes when color disabled")
	}

	n := c.Printf("%s=%d", "x", 5)
	if n != 3 || buf.String() != "x=5" {
		t.Fatalf("printf wrote %d %q", n, buf.String())
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("bright_cyan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != Bright|Cyan {
		t.Fatalf("got %d", c)
	}

	if _, err := ParseColor("purple"); err == nil {
		t.Fatalf("expected error for unknown color")
	}
}

func TestHub_BroadcastsToClient(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := hub.Write([]byte("TS=1")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "TS=1" {
		t.Fatalf("got %q", msg)
	}
}
