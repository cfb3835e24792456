// Package bridge implements the agent side of the provisioning protocol: a
// sequential TCP listener and the per-connection session handler that drives
// the profile lifecycle and link confirmation.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pifleet/wifibridge/internal/domain"
	"github.com/pifleet/wifibridge/internal/netman"
)

// Handler processes one provisioning session per accepted connection.
type Handler struct {
	profiles *netman.Manager
	poller   *netman.Poller
	logger   *slog.Logger

	defaultProfile string
	connectTimeout time.Duration
	ioTimeout      time.Duration
}

// HandlerConfig holds the session tunables.
type HandlerConfig struct {
	// DefaultProfile is used by SET_WIFI requests that name no profile.
	DefaultProfile string

	// ConnectTimeout bounds the post-activation link confirmation.
	ConnectTimeout time.Duration

	// IOTimeout bounds the request read and the response write. A stalled
	// peer must not wedge the sequential accept loop forever.
	IOTimeout time.Duration
}

// NewHandler creates a session handler.
func NewHandler(cfg HandlerConfig, profiles *netman.Manager, poller *netman.Poller, logger *slog.Logger) *Handler {
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = domain.DefaultProfileName
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 45 * time.Second
	}
	if cfg.IOTimeout == 0 {
		cfg.IOTimeout = 30 * time.Second
	}
	return &Handler{
		profiles:       profiles,
		poller:         poller,
		logger:         logger,
		defaultProfile: cfg.DefaultProfile,
		connectTimeout: cfg.ConnectTimeout,
		ioTimeout:      cfg.IOTimeout,
	}
}

// Handle runs one session to completion. Exactly one response is written on
// every path, including panics, and the connection is closed by the caller.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) domain.SessionResult {
	start := time.Now()
	result := domain.SessionResult{
		SessionID:  "ps-" + uuid.New().String()[:8],
		RemoteAddr: conn.RemoteAddr().String(),
		StartedAt:  start,
	}
	logger := h.logger.With("session_id", result.SessionID, "remote", result.RemoteAddr)

	line, err := h.readRequest(conn)
	if err != nil {
		logger.Warn("failed to read request", "err", err)
		result.Outcome = domain.Outcome{Code: domain.OutcomeServerError}
	} else {
		result.Outcome = h.process(ctx, logger, line)
	}

	h.writeResponse(logger, conn, result.Outcome.Code)
	result.Duration = time.Since(start).String()

	logger.Info("session finished",
		"outcome", result.Outcome.Code,
		"ssid", result.Outcome.SSID,
		"profile", result.Outcome.Profile,
		"ip", result.Outcome.IPAddress,
		"duration", result.Duration,
	)
	return result
}

// process turns one request line into an outcome. Panics map to the server
// error outcome so a response still goes out.
func (h *Handler) process(ctx context.Context, logger *slog.Logger, line string) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during session", "panic", fmt.Sprint(r))
			out = domain.Outcome{Code: domain.OutcomeServerError}
		}
	}()

	req, err := domain.ParseRequest(line, h.defaultProfile)
	if err != nil {
		logger.Warn("rejecting request", "err", err)
		return domain.Outcome{Code: domain.OutcomeInvalidRequest}
	}

	out = domain.Outcome{SSID: req.SSID, Profile: req.ProfileName}
	logger.Info("configuring wifi", "ssid", req.SSID, "profile", req.ProfileName)

	if err := h.profiles.Apply(ctx, req.ProfileName, req.SSID, req.Password); err != nil {
		out.Code = outcomeForApplyError(err)
		logger.Warn("profile apply failed", "outcome", out.Code, "err", err)
		return out
	}

	connected, ip := h.poller.WaitForConnection(ctx, req.SSID, req.ProfileName, h.connectTimeout)
	if !connected {
		out.Code = domain.OutcomeTimeout
		out.IPAddress = ip
		return out
	}

	out.Code = domain.OutcomeSuccess
	out.IPAddress = ip
	return out
}

func outcomeForApplyError(err error) domain.OutcomeCode {
	var write domain.ErrProfileWrite
	if errors.As(err, &write) {
		return domain.OutcomeProfileWriteFailed
	}
	var rejected domain.ErrActivationRejected
	if errors.As(err, &rejected) {
		if rejected.Reason == domain.ReasonBadPassword {
			return domain.OutcomeBadPassword
		}
		return domain.OutcomeActivationFailed
	}
	return domain.OutcomeServerError
}

func (h *Handler) readRequest(conn net.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(h.ioTimeout)); err != nil {
		return "", fmt.Errorf("set read deadline: %w", err)
	}
	buf := make([]byte, domain.MaxPacketSize)
	n, err := conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("read request: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return strings.TrimSpace(string(buf[:n])), nil
}

// writeResponse sends the single wire response. Send failures are logged,
// never propagated: the session outcome is already decided.
func (h *Handler) writeResponse(logger *slog.Logger, conn net.Conn, code domain.OutcomeCode) {
	if err := conn.SetWriteDeadline(time.Now().Add(h.ioTimeout)); err != nil {
		logger.Warn("set write deadline failed", "err", err)
	}
	if _, err := conn.Write([]byte(domain.ResponseForOutcome(code))); err != nil {
		logger.Warn("failed to send response", "err", err)
	}
}
