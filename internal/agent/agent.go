package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/pifleet/wifibridge/internal/bridge"
	"github.com/pifleet/wifibridge/internal/config"
	"github.com/pifleet/wifibridge/internal/domain"
	"github.com/pifleet/wifibridge/internal/execx"
	"github.com/pifleet/wifibridge/internal/httpserver"
	"github.com/pifleet/wifibridge/internal/netman"
	"github.com/pifleet/wifibridge/internal/report"
	"github.com/pifleet/wifibridge/internal/storage"
)

// Agent is the top-level application that orchestrates all subsystems: the
// provisioning listener, the NetworkManager drivers, the status API and the
// optional report webhook.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *storage.Store
	profiles *netman.Manager
	poller   *netman.Poller
	reporter *report.Reporter

	listener   *bridge.Listener
	httpServer *httpserver.Server

	agentID string
}

// New creates and wires all agent subsystems.
func New(cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	agentID, err := store.AgentID()
	if err != nil {
		return nil, fmt.Errorf("agent id: %w", err)
	}

	runner := execx.NewExecRunner()

	profiles := netman.NewManager(netman.Config{
		Interface:      cfg.Interface,
		CommandTimeout: cfg.CommandTimeout,
		SettleDelay:    cfg.SettleDelay,
	}, runner, logger)

	poller := netman.NewPoller(netman.PollerConfig{
		Interface: cfg.Interface,
		Interval:  cfg.PollInterval,
	}, runner, logger)

	a := &Agent{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		profiles: profiles,
		poller:   poller,
		agentID:  agentID,
	}

	if cfg.ReportURL != "" {
		a.reporter = report.NewReporter(cfg.ReportURL, logger)
	}

	handler := bridge.NewHandler(bridge.HandlerConfig{
		DefaultProfile: cfg.DefaultProfile,
		ConnectTimeout: cfg.ConnectTimeout,
	}, profiles, poller, logger)

	addr := net.JoinHostPort(cfg.ListenHost, strconv.Itoa(cfg.ListenPort))
	a.listener = bridge.NewListener(addr, handler, a.recordResult, logger)

	if cfg.HTTPPort > 0 {
		api := httpserver.NewAPI(agentID, store, poller, logger)
		a.httpServer = httpserver.NewServer(cfg.HTTPPort, api, cfg.HTTPSecret)
	}

	return a, nil
}

// Run executes the agent lifecycle. It blocks until the context is cancelled
// or the provisioning listener fails to bind.
func (a *Agent) Run(ctx context.Context) error {
	if os.Geteuid() != 0 {
		a.logger.Warn("not running as root, NetworkManager commands will likely fail")
	}

	a.logger.Info("agent ready",
		"version", config.Version,
		"agent_id", a.agentID,
		"iface", a.cfg.Interface,
		"listen_host", a.cfg.ListenHost,
		"listen_port", a.cfg.ListenPort,
		"default_profile", a.cfg.DefaultProfile,
	)

	if a.httpServer != nil {
		go func() {
			if err := a.httpServer.Run(); err != nil {
				a.logger.Error("status server stopped", "err", err)
			}
		}()
		defer func() {
			if err := a.httpServer.Shutdown(context.Background()); err != nil {
				a.logger.Error("status server shutdown error", "err", err)
			}
		}()
	}

	return a.listener.Run(ctx)
}

// recordResult persists and publishes the result of each finished session.
func (a *Agent) recordResult(result domain.SessionResult) {
	result.AgentID = a.agentID

	if err := a.store.SaveLastResult(&result); err != nil {
		a.logger.Warn("failed to persist session result", "err", err)
	}

	if a.reporter != nil {
		a.reporter.Publish(context.Background(), result)
	}
}
