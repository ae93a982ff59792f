package discord

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, opHandshake, handshakePayload{V: 1, ClientID: "app-123"}); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	op, payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if op != opHandshake {
		t.Errorf("Expected opcode %d, got %d", opHandshake, op)
	}

	var hs handshakePayload
	if err := json.Unmarshal(payload, &hs); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if hs.V != 1 || hs.ClientID != "app-123" {
		t.Errorf("Unexpected payload %+v", hs)
	}
}

func TestFrameHeaderLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, opFrame, map[string]string{}); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	raw := buf.Bytes()
	if raw[0] != 1 || raw[1] != 0 || raw[2] != 0 || raw[3] != 0 {
		t.Errorf("Expected little-endian opcode 1, got % x", raw[:4])
	}
	// Payload is "{}", length 2.
	if raw[4] != 2 || raw[5] != 0 || raw[6] != 0 || raw[7] != 0 {
		t.Errorf("Expected little-endian length 2, got % x", raw[4:8])
	}
}

func TestReadFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 0, 0, 0})       // opcode
	buf.Write([]byte{0, 0, 0xf0, 0xff}) // absurd length
	if _, _, err := readFrame(&buf); err == nil {
		t.Error("Expected error for oversized frame")
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 0})
	if _, _, err := readFrame(buf); err == nil {
		t.Error("Expected error for truncated header")
	}
}

func TestActivityPayloadShape(t *testing.T) {
	cmd := commandPayload{
		Cmd:   "SET_ACTIVITY",
		Nonce: "nonce-1",
		Args: setActivityArgs{
			PID: 42,
			Activity: &activityPayload{
				Type:    activityTypeListening,
				Details: "Deep Work",
				State:   "Focus",
				Timestamps: &timestampsPayload{
					Start: 1700000000,
				},
			},
		},
	}

	raw, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["cmd"] != "SET_ACTIVITY" {
		t.Errorf("Expected cmd SET_ACTIVITY, got %v", decoded["cmd"])
	}

	args := decoded["args"].(map[string]any)
	activity := args["activity"].(map[string]any)
	if activity["type"] != float64(activityTypeListening) {
		t.Errorf("Expected listening activity type, got %v", activity["type"])
	}
	if activity["state"] != "Focus" {
		t.Errorf("Expected state Focus, got %v", activity["state"])
	}
}

func TestClearActivityPayloadNullsActivity(t *testing.T) {
	cmd := commandPayload{
		Cmd:   "SET_ACTIVITY",
		Nonce: "nonce-2",
		Args:  setActivityArgs{PID: 42, Activity: nil},
	}

	raw, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"activity":null`)) {
		t.Errorf("Expected explicit null activity, got %s", raw)
	}
}

func TestSendActivityNotConnected(t *testing.T) {
	c := NewClient("app-123", testLogger(t))
	if err := c.ClearActivity(); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestCloseMessage(t *testing.T) {
	msg := closeMessage([]byte(`{"code":4000,"message":"Invalid Client ID"}`))
	if msg != "Invalid Client ID (code 4000)" {
		t.Errorf("Unexpected close message %q", msg)
	}

	// Non-JSON payloads fall back to the raw bytes.
	if got := closeMessage([]byte("boom")); got != "boom" {
		t.Errorf("Expected raw fallback, got %q", got)
	}
}
