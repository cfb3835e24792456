package netman

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pifleet/wifibridge/internal/domain"
	"github.com/pifleet/wifibridge/internal/execx"
)

var inet4Re = regexp.MustCompile(`inet (\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

// PollerConfig holds the tunables for link-status polling.
type PollerConfig struct {
	// Interface is the wireless interface under observation.
	Interface string

	// Interval is the fixed delay between observations.
	Interval time.Duration

	// QueryTimeout bounds each individual status query.
	QueryTimeout time.Duration
}

// Poller repeatedly observes the wireless link until it is confirmed up on
// the expected profile and SSID, or a deadline passes.
type Poller struct {
	runner execx.Runner
	logger *slog.Logger
	iface  string

	interval     time.Duration
	queryTimeout time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// NewPoller creates a link-status poller on top of the given runner.
func NewPoller(cfg PollerConfig, runner execx.Runner, logger *slog.Logger) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	return &Poller{
		runner:       runner,
		logger:       logger,
		iface:        cfg.Interface,
		interval:     cfg.Interval,
		queryTimeout: cfg.QueryTimeout,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// SetClock replaces the time source and sleep function (for tests).
func (p *Poller) SetClock(now func() time.Time, sleep func(time.Duration)) {
	p.now = now
	p.sleep = sleep
}

// WaitForConnection polls until the link is confirmed or timeout elapses.
// Confirmation requires all four conditions in one observation: device state
// connected, active profile and SSID matching the targets, and an IPv4
// address present. A device can report "connected" while still attached to a
// previous profile during the transition window, which is exactly the false
// positive the conjunction exists to reject. Returns the confirmation flag
// and the last IP observed (empty if none was found).
func (p *Poller) WaitForConnection(ctx context.Context, targetSSID, targetProfile string, timeout time.Duration) (bool, string) {
	p.logger.Info("waiting for connection",
		"ssid", targetSSID,
		"profile", targetProfile,
		"timeout", timeout,
	)

	deadline := p.now().Add(timeout)
	attempt := 0
	var last domain.LinkStatus

	for p.now().Before(deadline) && ctx.Err() == nil {
		attempt++
		last = p.Observe(ctx)

		p.logger.Debug("connection check",
			"attempt", attempt,
			"state", last.DeviceState,
			"active_profile", last.ActiveProfile,
			"active_ssid", last.ActiveSSID,
			"ip", last.IPAddress,
		)

		if last.DeviceState == domain.StateConnected &&
			last.ActiveProfile == targetProfile &&
			last.ActiveSSID == targetSSID &&
			last.IPAddress != "" {
			p.logger.Info("connection confirmed",
				"attempt", attempt,
				"ssid", targetSSID,
				"profile", targetProfile,
				"ip", last.IPAddress,
			)
			return true, last.IPAddress
		}

		p.sleep(p.interval)
	}

	p.logger.Warn("connection check timed out",
		"timeout", timeout,
		"state", last.DeviceState,
		"active_profile", last.ActiveProfile,
		"active_ssid", last.ActiveSSID,
		"ip", last.IPAddress,
	)
	return false, last.IPAddress
}

// Observe takes one independent snapshot of the link. Each sub-query that
// fails leaves its field at the unknown sentinel for this snapshot; transient
// command errors never abort an observation.
func (p *Poller) Observe(ctx context.Context) domain.LinkStatus {
	st := domain.LinkStatus{DeviceState: domain.StateUnknown}

	st.DeviceState = p.deviceState(ctx)
	st.ActiveProfile = p.activeProfile(ctx)

	switch st.DeviceState {
	case domain.StateDisconnected, domain.StateUnavailable, domain.StateDeactivating, domain.StateUnknown:
		// No SSID to report in these states.
	default:
		st.ActiveSSID = p.activeSSID(ctx)
	}

	if st.DeviceState == domain.StateConnected {
		st.IPAddress = p.ipv4Address(ctx)
	}

	return st
}

func (p *Poller) deviceState(ctx context.Context) domain.DeviceState {
	res, err := p.runner.Run(ctx, p.queryTimeout,
		"nmcli", "-t", "-f", "DEVICE,STATE", "device", "status")
	if err != nil {
		p.logger.Debug("device status query failed", "err", err)
		return domain.StateUnknown
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if !strings.HasPrefix(line, p.iface+":") {
			continue
		}
		state := strings.SplitN(line, ":", 2)[1]
		if state == "" {
			return domain.StateUnknown
		}
		return domain.DeviceState(state)
	}
	return domain.StateUnknown
}

func (p *Poller) activeProfile(ctx context.Context) string {
	res, err := p.runner.Run(ctx, p.queryTimeout,
		"nmcli", "-t", "-f", "NAME,DEVICE", "connection", "show", "--active")
	if err != nil {
		p.logger.Debug("active connection query failed", "err", err)
		return ""
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 && parts[1] == p.iface {
			return parts[0]
		}
	}
	return ""
}

func (p *Poller) activeSSID(ctx context.Context) string {
	res, err := p.runner.Run(ctx, p.queryTimeout,
		"nmcli", "-t", "-f", "active,ssid", "device", "wifi", "list",
		"ifname", p.iface, "--rescan", "no")
	if err != nil {
		p.logger.Debug("ssid query failed", "err", err)
		return ""
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 && parts[0] == "yes" {
			return parts[1]
		}
	}
	return ""
}

func (p *Poller) ipv4Address(ctx context.Context) string {
	res, err := p.runner.Run(ctx, p.queryTimeout, "ip", "-4", "addr", "show", p.iface)
	if err != nil {
		p.logger.Debug("ip address query failed", "err", err)
		return ""
	}
	if m := inet4Re.FindStringSubmatch(res.Stdout); m != nil {
		return m[1]
	}
	return ""
}
