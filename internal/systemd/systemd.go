// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package systemd signals readiness and watchdog keep-alives to systemd.
//
// See https://www.freedesktop.org/software/systemd/man/sd_notify.html.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.astrophena.name/prodbot/internal/logger"
)

// State defines a sd-notify protocol state.
type State string

const (
	// Ready tells the service manager that service startup is finished.
	Ready State = "READY=1"
	// Stopping tells the service manager that the service is shutting down.
	Stopping State = "STOPPING=1"
	// Watchdog tells the service manager to update the watchdog timestamp.
	Watchdog State = "WATCHDOG=1"
)

// Notifier sends states to the service manager. Without NOTIFY_SOCKET in the
// environment it does nothing.
type Notifier struct {
	// Getenv looks up NOTIFY_SOCKET and WATCHDOG_USEC.
	Getenv func(string) string
	// Logf receives errors.
	Logf logger.Logf
}

// Notify sends state to systemd. Errors are logged, not returned.
func (n *Notifier) Notify(state State) {
	addr := &net.UnixAddr{
		Net:  "unixgram",
		Name: n.Getenv("NOTIFY_SOCKET"),
	}
	if addr.Name == "" {
		return
	}

	conn, err := net.DialUnix(addr.Net, nil, addr)
	if err != nil {
		n.Logf("systemd: failed when notifying: %v", err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(state)); err != nil {
		n.Logf("systemd: failed when notifying: %v", err)
	}
}

// WatchdogLoop updates the watchdog timestamp at half of the interval
// requested by systemd until ctx is canceled.
func (n *Notifier) WatchdogLoop(ctx context.Context) {
	if n.Getenv("WATCHDOG_USEC") == "" {
		return
	}

	interval, err := watchdogInterval(n.Getenv("WATCHDOG_USEC"))
	if err != nil {
		n.Logf("%v", err)
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.Notify(Watchdog)
		case <-ctx.Done():
			return
		}
	}
}

func watchdogInterval(usec string) (time.Duration, error) {
	s, err := strconv.Atoi(usec)
	if err != nil {
		return 0, fmt.Errorf("systemd: error converting WATCHDOG_USEC: %w", err)
	}
	if s <= 0 {
		return 0, errors.New("systemd: WATCHDOG_USEC must be a positive number")
	}
	return time.Duration(s) * time.Microsecond, nil
}
