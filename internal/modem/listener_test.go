package modem

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"gsmtrack/internal/model"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestListenerDeliversIndicatedMessage(t *testing.T) {
	port := newFakePort()
	port.respond("AT+CMGR=5",
		"+CMGR: \"REC UNREAD\",\"+15551234\"\r\n10:00:00;17.1,83.2;17.3,83.4\r\nOK\r\n")
	port.respond("AT+CMGD=1,4", "\r\nOK\r\n")

	session := newTestSession(port)
	listener := NewListener(session, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = listener.Run(ctx)
		close(done)
	}()

	port.push("\r\n+CMTI: \"SM\",5\r\n")

	var msg model.Message
	select {
	case msg = <-listener.Messages():
	case <-time.After(2 * time.Second):
		t.Fatalf("no message delivered")
	}

	if msg.Phone != "+15551234" {
		t.Errorf("phone = %q, want +15551234", msg.Phone)
	}
	if len(msg.Points) != 2 {
		t.Errorf("expected 2 points, got %d", len(msg.Points))
	}

	waitFor(t, 2*time.Second, func() bool { return port.wrote("AT+CMGD=1,4") })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("listener did not stop on cancellation")
	}

	// The stream closes when the listener stops.
	waitFor(t, time.Second, func() bool {
		select {
		case _, open := <-listener.Messages():
			return !open
		default:
			return false
		}
	})
}

func TestListenerHandlesSplitIndication(t *testing.T) {
	port := newFakePort()
	port.respond("AT+CMGR=7",
		"+CMGR: \"REC UNREAD\",\"+2000\"\r\n09:00:00;1.5,2.5\r\nOK\r\n")
	port.respond("AT+CMGD=1,4", "\r\nOK\r\n")

	session := newTestSession(port)
	listener := NewListener(session, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = listener.Run(ctx) }()

	// The indication arrives torn across two reads.
	port.push("\r\n+CMTI: \"S")
	time.Sleep(20 * time.Millisecond)
	port.push("M\",7\r\n")

	select {
	case msg := <-listener.Messages():
		if msg.Phone != "+2000" {
			t.Errorf("phone = %q, want +2000", msg.Phone)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("split indication never decoded")
	}
}

func TestListenerSkipsUnreadableMessage(t *testing.T) {
	port := newFakePort()
	// CMGR answers with nothing parseable; no delete should follow.
	port.respond("AT+CMGR=2", "\r\nERROR\r\n")

	session := newTestSession(port)
	listener := NewListener(session, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = listener.Run(ctx) }()

	port.push("+CMTI: \"SM\",2\r\n")

	waitFor(t, 2*time.Second, func() bool { return port.wrote("AT+CMGR=2") })

	select {
	case msg := <-listener.Messages():
		t.Fatalf("unexpected message delivered: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
	if port.wrote("AT+CMGD=1,4") {
		t.Fatalf("delete must not run without a successful read")
	}
}

func TestListenerStopsWhenSessionCloses(t *testing.T) {
	port := newFakePort()
	session := newTestSession(port)
	listener := NewListener(session, time.Millisecond, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- listener.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("closing the session should stop the listener cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("listener kept running after session close")
	}
}
