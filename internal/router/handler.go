package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/internal/view"
	"github.com/tamias-pos/customer-display/pkg/global"
	"github.com/tamias-pos/customer-display/pkg/models"
)

// Pinger is a backend the health check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PresenceReader lists the displays present on a cashier channel.
type PresenceReader interface {
	Presence(ctx context.Context, channel string) ([]models.Presence, error)
}

// CacheInvalidator drops the cached directory rows of a store.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, store models.Store) error
}

const defaultKeepAlive = 15 * time.Second

type HandlerOptions struct {
	// Checks maps a component name ("directory", "broker") to its health check.
	Checks map[string]Pinger
	// KeepAlive is how often an idle display stream sends a ping event.
	KeepAlive time.Duration
	Presence  PresenceReader
	Cache     CacheInvalidator
	Logger    *zap.Logger
}

type Handler struct {
	hub       *display.Hub
	checks    map[string]Pinger
	keepAlive time.Duration
	presence  PresenceReader
	cache     CacheInvalidator
	log       *zap.Logger
}

func NewHandler(hub *display.Hub, opts HandlerOptions) *Handler {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		hub:       hub,
		checks:    opts.Checks,
		keepAlive: opts.KeepAlive,
		presence:  opts.Presence,
		cache:     opts.Cache,
		log:       opts.Logger.Named("router"),
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	status := map[string]string{"status": "OK"}
	for name, check := range h.checks {
		ctx, cancel := global.GetTimer(c.Request.Context())
		err := check.Ping(ctx)
		cancel()
		if err != nil {
			h.log.Warn("health check failed", zap.String("component", name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, global.ErrorResponse("Backend connection failed", []global.ValidationError{
				{Field: name, Message: err.Error(), Code: "unavailable"},
			}))
			return
		}
		status[name] = "Connected"
	}
	status["sessions"] = strconv.Itoa(h.hub.Len())
	c.JSON(http.StatusOK, global.SuccessResponse(status))
}

// OpenDisplay serves the display page for a store code or id and starts its session.
func (h *Handler) OpenDisplay(c *gin.Context) {
	session, res := h.hub.Open(c.Request.Context(), c.Param("storeRef"))
	if !res.Found {
		c.HTML(http.StatusNotFound, view.PageTemplate, view.NotFound())
		return
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, view.PageTemplate, view.FromSnapshot(session.Snapshot()))
}

// StreamDisplay pushes a rendered screen each time the session changes and a
// ping while nothing does. A dropped stream leaves the session to the hub's
// grace period so the browser can reconnect.
func (h *Handler) StreamDisplay(c *gin.Context) {
	session := sessionFrom(c)
	updates, stop := session.Watch()
	defer h.hub.Release(session)
	defer stop()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ticker.C:
			c.SSEvent("ping", strconv.FormatInt(time.Now().Unix(), 10))
			return true
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			fragment, err := view.Fragment(view.FromSnapshot(snap))
			if err != nil {
				h.log.Error("failed to render display", zap.String("session_id", snap.SessionID), zap.Error(err))
				return false
			}
			c.SSEvent("view", fragment)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// CloseDisplay ends a session when its page is unloaded.
func (h *Handler) CloseDisplay(c *gin.Context) {
	h.hub.Close(sessionFrom(c).ID())
	c.Status(http.StatusNoContent)
}

type cashierRequest struct {
	CashierID string `json:"cashier_id" form:"cashier_id" binding:"required"`
}

func (h *Handler) SelectCashier(c *gin.Context) {
	var req cashierRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("cashier_id is required", []global.ValidationError{
			{Field: "cashier_id", Message: "cashier_id is required", Code: "required"},
		}))
		return
	}

	session := sessionFrom(c)
	err := session.SelectCashier(c.Request.Context(), req.CashierID)
	switch {
	case errors.Is(err, display.ErrUnknownCashier):
		c.JSON(http.StatusNotFound, global.NotFound("cashier_id", "Cashier not found for this store"))
		return
	case errors.Is(err, display.ErrSessionClosed):
		c.JSON(http.StatusGone, global.ErrorResponse("Display session closed", nil))
		return
	case err != nil:
		h.log.Error("failed to select cashier", zap.String("session_id", session.ID()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Failed to select cashier", nil))
		return
	}

	c.JSON(http.StatusOK, global.SuccessResponse(session.Snapshot()))
}

func (h *Handler) ClearCashier(c *gin.Context) {
	session := sessionFrom(c)
	if err := session.ClearCashier(c.Request.Context()); err != nil {
		if errors.Is(err, display.ErrSessionClosed) {
			c.JSON(http.StatusGone, global.ErrorResponse("Display session closed", nil))
			return
		}
		h.log.Error("failed to clear cashier", zap.String("session_id", session.ID()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Failed to clear cashier", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(session.Snapshot()))
}

func (h *Handler) GetStore(c *gin.Context) {
	res := h.hub.Resolve(c.Request.Context(), c.Param("storeRef"))
	if !res.Found {
		c.JSON(http.StatusNotFound, global.NotFound("storeRef", "Store not found"))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(res))
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(sessionFrom(c).Snapshot()))
}

// GetPresence lists the displays announced on the session's cashier channel.
func (h *Handler) GetPresence(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusNotImplemented, global.ErrorResponse("Presence is not tracked by this broker", nil))
		return
	}

	snap := sessionFrom(c).Snapshot()
	presences := []models.Presence{}
	if snap.Channel != "" {
		ctx, cancel := global.GetTimer(c.Request.Context())
		defer cancel()

		found, err := h.presence.Presence(ctx, snap.Channel)
		if err != nil {
			h.log.Error("failed to read presence", zap.String("channel", snap.Channel), zap.Error(err))
			c.JSON(http.StatusInternalServerError, global.ErrorResponse("Failed to read presence", nil))
			return
		}
		presences = found
	}

	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{
		"channel":  snap.Channel,
		"displays": presences,
	}))
}

// InvalidateStore drops the cached rows of a store after its staff or codes changed.
func (h *Handler) InvalidateStore(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusNotImplemented, global.ErrorResponse("Directory cache is disabled", nil))
		return
	}

	res := h.hub.Resolve(c.Request.Context(), c.Param("storeRef"))
	if !res.Found {
		c.JSON(http.StatusNotFound, global.NotFound("storeRef", "Store not found"))
		return
	}

	ctx, cancel := global.GetTimer(c.Request.Context())
	defer cancel()
	if err := h.cache.Invalidate(ctx, res.Store); err != nil {
		h.log.Error("failed to invalidate store cache", zap.String("store_id", res.Store.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Failed to invalidate store cache", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"store_id": res.Store.ID}))
}
