package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pifleet/wifibridge/internal/config"
	"github.com/pifleet/wifibridge/internal/domain"
	"github.com/pifleet/wifibridge/internal/netman"
	"github.com/pifleet/wifibridge/internal/storage"
)

type response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type statusResponse struct {
	AgentID    string                `json:"agent_id"`
	Version    string                `json:"version"`
	Link       domain.LinkStatus     `json:"link"`
	LastResult *domain.SessionResult `json:"last_result,omitempty"`
}

// API holds the handlers of the status surface.
type API struct {
	agentID string
	store   *storage.Store
	poller  *netman.Poller
	logger  *slog.Logger
}

// NewAPI creates the status API.
func NewAPI(agentID string, store *storage.Store, poller *netman.Poller, logger *slog.Logger) *API {
	return &API{agentID: agentID, store: store, poller: poller, logger: logger}
}

// RegisterRoutes attaches the API to the router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/ping", a.ping)
	router.GET("/status", a.status)
}

func (a *API) ping(c *gin.Context) {
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) status(c *gin.Context) {
	last, err := a.store.LastResult()
	if err != nil {
		a.logger.Warn("failed to load last result", "err", err)
	}

	st := statusResponse{
		AgentID:    a.agentID,
		Version:    config.Version,
		Link:       a.poller.Observe(c.Request.Context()),
		LastResult: last,
	}
	c.JSON(http.StatusOK, response{Ok: true, Data: st})
}
