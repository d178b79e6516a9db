// Package httpapi serves the read-only status API over HTTP (gin).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mcwatch/internal/status"
	"mcwatch/internal/storage"
	"mcwatch/pkg/logx"
)

// Watcher is the part of the status provider the API reads.
type Watcher interface {
	Status() status.Snapshot
	Latest(ctx context.Context) (status.Latest, error)
}

// History lists past dispatches, newest first.
type History interface {
	RecentDispatches(ctx context.Context, limit int) ([]storage.DispatchRecord, error)
}

type Handler struct {
	watch   Watcher
	history History
	metrics http.Handler
	log     logx.Logger
}

// NewHandler wires the routes' dependencies. history and metrics may be nil.
func NewHandler(w Watcher, history History, metrics http.Handler, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{watch: w, history: history, metrics: metrics, log: log}
}

func (h *Handler) Healthz(c *gin.Context) {
	s := h.watch.Status()
	body := gin.H{
		"status":       "ok",
		"time":         time.Now().UTC().Format(time.RFC3339),
		"bootstrapped": s.Bootstrapped,
	}
	if s.Last != nil && s.Last.Err != "" {
		body["last_error"] = s.Last.Err
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.watch.Status())
}

func (h *Handler) Latest(c *gin.Context) {
	l, err := h.watch.Latest(c.Request.Context())
	if err != nil {
		h.log.Warn("latest: manifest fetch failed", logx.Err(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "manifest fetch failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit", "message": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	recs, err := h.history.RecentDispatches(c.Request.Context(), limit)
	if errors.Is(err, storage.ErrDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	if err != nil {
		h.log.Error("history query failed", logx.Err(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []storage.DispatchRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "dispatches": recs})
}
