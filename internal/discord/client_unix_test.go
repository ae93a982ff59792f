//go:build !windows

package discord

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"
)

// fakeDiscord listens on a discord-ipc-0 socket and answers the
// handshake like the real client does.
func fakeDiscord(t *testing.T, dir string, accept func(conn net.Conn)) {
	t.Helper()
	ln, err := net.Listen("unix", filepath.Join(dir, "discord-ipc-0"))
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accept(conn)
	}()
}

func TestConnectHandshake(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	fakeDiscord(t, dir, func(conn net.Conn) {
		op, payload, err := readFrame(conn)
		if err != nil || op != opHandshake {
			t.Errorf("Expected handshake frame, got op %d err %v", op, err)
			conn.Close()
			return
		}
		var hs handshakePayload
		if err := json.Unmarshal(payload, &hs); err != nil || hs.ClientID != "app-123" {
			t.Errorf("Unexpected handshake payload %s", payload)
		}
		// READY dispatch.
		writeFrame(conn, opFrame, map[string]any{"cmd": "DISPATCH", "evt": "READY"})
	})

	c := NewClient("app-123", testLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	if c.Events() == nil {
		t.Error("Expected events stream after connect")
	}
}

func TestConnectHandshakeRejected(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	fakeDiscord(t, dir, func(conn net.Conn) {
		readFrame(conn)
		writeFrame(conn, opClose, map[string]any{"code": 4000, "message": "Invalid Client ID"})
		conn.Close()
	})

	c := NewClient("bad-app", testLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err == nil {
		t.Error("Expected handshake rejection error")
	}
}

func TestDisconnectSurfacesOnEvents(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	serverConn := make(chan net.Conn, 1)
	fakeDiscord(t, dir, func(conn net.Conn) {
		readFrame(conn)
		writeFrame(conn, opFrame, map[string]any{"cmd": "DISPATCH", "evt": "READY"})
		serverConn <- conn
	})

	c := NewClient("app-123", testLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	// Server dies.
	(<-serverConn).Close()

	select {
	case ev := <-c.Events():
		if ev.Err == nil {
			t.Error("Expected error on disconnect event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a disconnect event")
	}
}
