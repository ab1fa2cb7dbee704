package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/swarmguard/agentmind/internal/store"
	"github.com/swarmguard/agentmind/internal/task"
)

// submitRequest is the HTTP body for POST /tasks; the gateway assigns the
// correlation id rather than trusting the caller with one, then validates,
// persists a PENDING record, and publishes a TaskEnvelope carrying it.
type submitRequest struct {
	Mandate  string `json:"mandate" binding:"required"`
	MaxTicks int    `json:"max_ticks" binding:"required,min=1"`
}

// HandleSubmit handles POST /tasks.
func (g *Gateway) HandleSubmit(c *gin.Context) {
	userID, _ := UserID(c)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	correlationID := uuid.New().String()
	now := g.now().Unix()
	rec := task.NewRecord(correlationID, userID, req.Mandate, req.MaxTicks, now)

	if err := g.Store.Create(c.Request.Context(), rec); err != nil {
		g.Logger.Error("gateway: failed to persist task record", "error", err, "correlation_id", correlationID)
		respondError(c, http.StatusInternalServerError, "failed to persist task")
		return
	}

	envelope := task.Envelope{Mandate: req.Mandate, MaxTicks: req.MaxTicks, CorrelationID: correlationID}
	data, err := json.Marshal(envelope)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to encode task envelope")
		return
	}
	if err := g.Broker.Publish(c.Request.Context(), g.InputSubject, data); err != nil {
		g.Logger.Error("gateway: failed to publish task envelope", "error", err, "correlation_id", correlationID)
		respondError(c, http.StatusServiceUnavailable, "failed to enqueue task")
		return
	}

	respondJSON(c, http.StatusAccepted, gin.H{"correlation_id": correlationID})
}

// HandleGet handles GET /tasks/:id.
func (g *Gateway) HandleGet(c *gin.Context) {
	userID, _ := UserID(c)
	id := c.Param("id")

	rec, err := g.Store.Get(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, "task not found")
			return
		}
		g.Logger.Error("gateway: failed to load task record", "error", err, "correlation_id", id)
		respondError(c, http.StatusInternalServerError, "failed to load task")
		return
	}

	respondJSON(c, http.StatusOK, recordToJSON(rec))
}

// HandleStream handles GET /tasks/:id/stream, polling the record and pushing
// an SSE event on every observed change until the task reaches a terminal
// state or the client disconnects. It is sourced from the store the
// background status subscriber keeps current.
func (g *Gateway) HandleStream(c *gin.Context) {
	userID, _ := UserID(c)
	id := c.Param("id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ticker := time.NewTicker(g.streamPollInterval())
	defer ticker.Stop()

	lastSeq := int64(-1)
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			rec, err := g.Store.Get(c.Request.Context(), id, userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					c.SSEvent("error", gin.H{"error": "task not found"})
					c.Writer.Flush()
					return
				}
				continue
			}

			if rec.Seq != lastSeq {
				lastSeq = rec.Seq
				c.SSEvent("status", recordToJSON(rec))
				c.Writer.Flush()
			}

			if rec.Status.Terminal() {
				return
			}
		}
	}
}

// HandleHealth handles GET /health: liveness plus a best-effort dependency check.
func (g *Gateway) HandleHealth(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}

	if err := g.Store.Ping(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		checks["postgres"] = err.Error()
	} else {
		checks["postgres"] = "ok"
	}

	respondJSON(c, status, gin.H{
		"status":  statusString(status),
		"service": serviceName,
		"version": version,
		"checks":  checks,
	})
}

// HandleVersion handles GET /version.
func (g *Gateway) HandleVersion(c *gin.Context) {
	respondJSON(c, http.StatusOK, gin.H{"service": serviceName, "version": version})
}

func statusString(code int) string {
	if code == http.StatusOK {
		return "healthy"
	}
	return "degraded"
}

func recordToJSON(rec task.Record) gin.H {
	return gin.H{
		"correlation_id": rec.CorrelationID,
		"mandate":        rec.Mandate,
		"max_ticks":      rec.MaxTicks,
		"status":         rec.Status.String(),
		"tick":           rec.Tick,
		"result":         rec.Result,
		"error":          rec.Error,
		"created_at":     rec.CreatedAt,
		"updated_at":     rec.UpdatedAt,
	}
}
