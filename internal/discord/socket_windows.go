//go:build windows

package discord

import (
	"context"
	"errors"
	"net"
)

// Discord's IPC endpoint on Windows is the named pipe
// \\.\pipe\discord-ipc-N, which net.Dial cannot open. The publisher
// treats the error like any other connect failure and keeps backing
// off, so the daemon still runs without presence on Windows.
func dialIPC(ctx context.Context) (net.Conn, error) {
	return nil, errors.New("discord ipc is not supported on windows")
}
