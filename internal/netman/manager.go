// Package netman drives the host NetworkManager through its nmcli command
// interface. It owns no state of its own: connection profiles and link state
// live in NetworkManager and the kernel, and every operation here is a thin,
// classified wrapper over one external command.
package netman

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pifleet/wifibridge/internal/domain"
	"github.com/pifleet/wifibridge/internal/execx"
)

// Config holds the tunables for profile mutation.
type Config struct {
	// Interface is the wireless interface profiles are bound to.
	Interface string

	// CommandTimeout bounds each mutating nmcli call.
	CommandTimeout time.Duration

	// QueryTimeout bounds the profile listing call.
	QueryTimeout time.Duration

	// SettleDelay is slept between mutation steps. NetworkManager event
	// propagation is asynchronous; querying immediately after a mutation
	// can observe stale state.
	SettleDelay time.Duration
}

// Manager performs the remove/create/activate profile lifecycle.
type Manager struct {
	runner execx.Runner
	logger *slog.Logger
	iface  string

	cmdTimeout   time.Duration
	queryTimeout time.Duration
	settle       time.Duration
	sleep        func(time.Duration)
}

// NewManager creates a profile manager on top of the given runner.
func NewManager(cfg Config, runner execx.Runner, logger *slog.Logger) *Manager {
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 20 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = time.Second
	}
	return &Manager{
		runner:       runner,
		logger:       logger,
		iface:        cfg.Interface,
		cmdTimeout:   cfg.CommandTimeout,
		queryTimeout: cfg.QueryTimeout,
		settle:       cfg.SettleDelay,
		sleep:        time.Sleep,
	}
}

// SetSleep replaces the inter-step delay function (for tests).
func (m *Manager) SetSleep(fn func(time.Duration)) {
	m.sleep = fn
}

// Apply replaces and activates the named profile for the given SSID:
// remove -> settle -> create -> settle -> activate. Each step is gated on the
// previous one; a remove failure is logged and tolerated because the
// subsequent create overwrites the name anyway.
func (m *Manager) Apply(ctx context.Context, name, ssid, password string) error {
	if err := m.RemoveProfile(ctx, name); err != nil {
		m.logger.Warn("profile removal failed, continuing", "profile", name, "err", err)
	}
	m.sleep(m.settle)

	if err := m.CreateProfile(ctx, name, ssid, password); err != nil {
		return err
	}
	m.sleep(m.settle)

	return m.ActivateProfile(ctx, name)
}

// RemoveProfile deletes every stored profile whose name matches exactly.
// Absence of a match is success; the operation is idempotent.
func (m *Manager) RemoveProfile(ctx context.Context, name string) error {
	res, err := m.runner.Run(ctx, m.queryTimeout,
		"nmcli", "-t", "-f", "UUID,NAME", "connection", "show")
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}

	var uuids []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			m.logger.Warn("unparseable profile listing line", "line", line)
			continue
		}
		if parts[1] == name {
			uuids = append(uuids, parts[0])
		}
	}

	if len(uuids) == 0 {
		m.logger.Debug("no stored profile to remove", "profile", name)
		return nil
	}

	for _, uuid := range uuids {
		m.logger.Info("deleting stored profile", "profile", name, "uuid", uuid)
		if _, err := m.runner.Run(ctx, m.cmdTimeout, "nmcli", "connection", "delete", uuid); err != nil {
			return fmt.Errorf("delete profile %s: %w", uuid, err)
		}
	}
	return nil
}

// CreateProfile adds a fresh WPA-PSK profile binding name -> ssid -> iface.
// The caller removes any name collision first; NetworkManager itself permits
// duplicate names.
func (m *Manager) CreateProfile(ctx context.Context, name, ssid, password string) error {
	m.logger.Info("creating profile", "profile", name, "ssid", ssid, "iface", m.iface)
	_, err := m.runner.Run(ctx, m.cmdTimeout,
		"nmcli", "connection", "add",
		"type", "wifi",
		"con-name", name,
		"ifname", m.iface,
		"ssid", ssid,
		"--",
		"wifi-sec.key-mgmt", "wpa-psk",
		"wifi-sec.psk", password,
	)
	if err != nil {
		return domain.ErrProfileWrite{Profile: name, Err: err}
	}
	return nil
}

// ActivateProfile asks NetworkManager to bring the profile up. Success only
// means the command was accepted; the link may still be negotiating, so
// callers must confirm via the poller. Failures are classified from the
// command diagnostics.
func (m *Manager) ActivateProfile(ctx context.Context, name string) error {
	m.logger.Info("activating profile", "profile", name)
	_, err := m.runner.Run(ctx, m.cmdTimeout, "nmcli", "connection", "up", name)
	if err == nil {
		return nil
	}

	reason := domain.ReasonOther
	if ee, ok := execx.AsExecError(err); ok {
		reason = classifyActivationFailure(ee.Result.Stderr)
	}
	return domain.ErrActivationRejected{Profile: name, Reason: reason, Err: err}
}
