package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe", n)
	}
}

func TestPublishFraming(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventMapCreated, Data: map[string]string{"path": "a.md"}})

	select {
	case msg := <-ch:
		want := "event: map.created\ndata: {\"path\":\"a.md\"}\n\n"
		if string(msg) != want {
			t.Errorf("msg = %q, want %q", msg, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishMapEvent_LibraryThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishMapEvent("created", "a.md")
	b.PublishMapEvent("updated", "b.md")
	b.PublishMapEvent("deleted", "c.md")
	b.PublishMapEvent("renamed", "d.md")

	time.Sleep(50 * time.Millisecond)
	var library, maps []string
	for _, msg := range drain(ch) {
		if strings.HasPrefix(msg, "event: "+EventLibraryUpdated) {
			library = append(library, msg)
		} else {
			maps = append(maps, msg)
		}
	}

	if len(maps) != 3 {
		t.Fatalf("map events = %d, want 3: %q", len(maps), maps)
	}
	for i, typ := range []string{EventMapCreated, EventMapUpdated, EventMapDeleted} {
		if !strings.HasPrefix(maps[i], "event: "+typ+"\n") {
			t.Errorf("event %d = %q, want %s", i, maps[i], typ)
		}
	}
	if len(library) != 1 {
		t.Errorf("library events = %d, want 1", len(library))
	}
}

func TestPublishMapEvent_ThrottleWindowReopens(t *testing.T) {
	b := NewBroker(30 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishMapEvent("updated", "a.md")
	time.Sleep(60 * time.Millisecond)
	b.PublishMapEvent("updated", "a.md")
	time.Sleep(20 * time.Millisecond)

	count := 0
	for _, msg := range drain(ch) {
		if strings.Contains(msg, EventLibraryUpdated) {
			count++
		}
	}
	if count != 2 {
		t.Errorf("library events = %d, want 2", count)
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}

	b.PublishMapEvent("updated", "x.md")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: map.updated") || !strings.Contains(body, `"path":"x.md"`) {
		t.Errorf("body = %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after disconnect", n)
	}
}

func TestPublishDoesNotBlockOnFullClient(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for range 100 {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d", n)
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after close", n)
	}

	b.Publish(Event{Type: EventMapUpdated})
	b.PublishMapEvent("updated", "x.md")
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
	b.Close()
}
