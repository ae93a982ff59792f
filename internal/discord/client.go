// Package discord implements the small slice of the Discord IPC
// protocol that Rich Presence needs: socket discovery, the version
// handshake, SET_ACTIVITY frames, and disconnect detection.
package discord

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"presenced/internal/presence"
)

// IPC opcodes
const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2
)

// activityTypeListening renders the presence as "Listening to <app>".
const activityTypeListening = 2

const handshakeTimeout = 5 * time.Second

// ErrNotConnected is returned for writes without an open connection.
var ErrNotConnected = errors.New("discord: not connected")

// Client is a connection-oriented Rich Presence client. It implements
// presence.Channel; the publisher owns when to connect and reconnect.
type Client struct {
	appID string
	log   *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	events chan presence.Event
}

// NewClient creates a client for the given Discord application id.
func NewClient(appID string, log *slog.Logger) *Client {
	return &Client{appID: appID, log: log}
}

// Connect dials the Discord IPC socket and performs the handshake.
// A read pump is started that reports connection loss on Events.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := dialIPC(ctx)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if err := writeFrame(conn, opHandshake, handshakePayload{V: 1, ClientID: c.appID}); err != nil {
		conn.Close()
		return fmt.Errorf("handshake write failed: %w", err)
	}

	op, payload, err := readFrame(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake read failed: %w", err)
	}
	if op == opClose {
		conn.Close()
		return fmt.Errorf("handshake rejected: %s", closeMessage(payload))
	}

	_ = conn.SetDeadline(time.Time{})

	events := make(chan presence.Event, 1)
	c.mu.Lock()
	c.conn = conn
	c.events = events
	c.mu.Unlock()

	go c.readPump(conn, events)
	c.log.Debug("discord ipc handshake complete")
	return nil
}

// SetActivity publishes the activity. Write errors close the
// connection, which surfaces on Events via the read pump.
func (c *Client) SetActivity(a presence.Activity) error {
	return c.sendActivity(&activityPayload{
		Type:    activityTypeListening,
		Details: a.Details,
		State:   a.State,
		Timestamps: &timestampsPayload{
			Start: a.StartUnix,
		},
		Assets: &assetsPayload{
			LargeImage: a.LargeImage,
			LargeText:  a.LargeText,
			SmallImage: a.SmallImage,
			SmallText:  a.SmallText,
		},
	})
}

// ClearActivity removes the published activity.
func (c *Client) ClearActivity() error {
	return c.sendActivity(nil)
}

// Close shuts down the current connection. Safe to call repeatedly.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Events returns the notification stream for the current connection.
func (c *Client) Events() <-chan presence.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

func (c *Client) sendActivity(a *activityPayload) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	cmd := commandPayload{
		Cmd:   "SET_ACTIVITY",
		Nonce: uuid.NewString(),
		Args: setActivityArgs{
			PID:      os.Getpid(),
			Activity: a,
		},
	}
	if err := writeFrame(conn, opFrame, cmd); err != nil {
		// Wake the read pump so the publisher sees a disconnect.
		conn.Close()
		return fmt.Errorf("activity write failed: %w", err)
	}
	return nil
}

// readPump consumes frames until the connection dies. Responses to our
// own commands are discarded; the pump exists to detect disconnects
// and server-side shutdown promptly.
func (c *Client) readPump(conn net.Conn, events chan presence.Event) {
	defer close(events)
	for {
		op, payload, err := readFrame(conn)
		if err != nil {
			events <- presence.Event{Err: err}
			return
		}
		if op == opClose {
			events <- presence.Event{Err: fmt.Errorf("server closed connection: %s", closeMessage(payload))}
			return
		}
	}
}

// Wire payloads

type handshakePayload struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type commandPayload struct {
	Cmd   string          `json:"cmd"`
	Args  setActivityArgs `json:"args"`
	Nonce string          `json:"nonce"`
}

type setActivityArgs struct {
	PID      int              `json:"pid"`
	Activity *activityPayload `json:"activity"`
}

type activityPayload struct {
	Type       int                `json:"type"`
	Details    string             `json:"details,omitempty"`
	State      string             `json:"state,omitempty"`
	Timestamps *timestampsPayload `json:"timestamps,omitempty"`
	Assets     *assetsPayload     `json:"assets,omitempty"`
}

type timestampsPayload struct {
	Start int64 `json:"start,omitempty"`
}

type assetsPayload struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

func closeMessage(payload []byte) string {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Message == "" {
		return string(payload)
	}
	return fmt.Sprintf("%s (code %d)", body.Message, body.Code)
}

// Framing: little-endian opcode, little-endian payload length, then
// the JSON payload.

func writeFrame(w io.Writer, op uint32, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], op)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(body)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func readFrame(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	op := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > 1<<20 {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return op, body, nil
}
