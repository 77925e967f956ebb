// Package systemd integrates the agent with the service manager.
package systemd

import (
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady sends READY=1 to systemd once startup is complete.
func NotifyReady() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		return fmt.Errorf("failed to send sd_notify: %w", err)
	}
	return nil
}

// NotifyStopping sends STOPPING=1 to systemd at the start of shutdown.
func NotifyStopping() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		return fmt.Errorf("failed to send sd_notify stopping: %w", err)
	}
	return nil
}

// IsService reports whether the process runs under systemd with a notify
// socket.
func IsService() bool {
	return os.Getenv("NOTIFY_SOCKET") != ""
}
