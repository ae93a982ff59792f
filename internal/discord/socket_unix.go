//go:build !windows

package discord

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Subdirectories where sandboxed Discord builds place the socket.
var socketSubdirs = []string{
	"",
	"app/com.discordapp.Discord", // flatpak
	"snap.discord",               // snap
}

// dialIPC finds and dials the Discord IPC socket. Discord numbers its
// sockets discord-ipc-0 through discord-ipc-9 under the user's runtime
// directory.
func dialIPC(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	for _, dir := range socketDirs() {
		for _, sub := range socketSubdirs {
			for i := 0; i < 10; i++ {
				path := filepath.Join(dir, sub, fmt.Sprintf("discord-ipc-%d", i))
				conn, err := dialer.DialContext(ctx, "unix", path)
				if err == nil {
					return conn, nil
				}
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
			}
		}
	}
	return nil, fmt.Errorf("no discord ipc socket found")
}

func socketDirs() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return append(dirs, "/tmp")
}
