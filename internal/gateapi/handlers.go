package gateapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zerotype19/gekko3/internal/apperr"
	"github.com/zerotype19/gekko3/internal/gate"
	"github.com/zerotype19/gekko3/internal/metrics"
	"github.com/zerotype19/gekko3/internal/model"
)

// handleProposal is POST /v1/proposal: the Brain's one synchronous
// entry point to request a trade (spec §6). The raw body bytes, not a
// re-marshaled copy, are what get signature-verified.
func (s *Server) handleProposal(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": gate.StatusRejected, "reason": "failed to read request body"})
		return
	}

	var p model.Proposal
	if err := json.Unmarshal(rawBody, &p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": gate.StatusRejected, "reason": "malformed proposal JSON"})
		return
	}

	sig := c.GetHeader("X-GW-Signature")
	decision, err := s.gate.Evaluate(c.Request.Context(), p, rawBody, sig, time.Now())
	if err != nil {
		writeInternalError(c, err)
		return
	}

	metrics.ProposalOutcomeTotal.WithLabelValues(decision.Status, decision.Reason).Inc()

	c.JSON(statusCodeFor(decision.Status), gin.H{
		"status":   decision.Status,
		"reason":   decision.Reason,
		"order_id": decision.OrderID,
		"error":    decision.Error,
	})
}

// handleHeartbeat is POST /v1/heartbeat: a signed, best-effort liveness
// ping from the Brain.
func (s *Server) handleHeartbeat(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var payload struct {
		TimestampMs int64           `json:"timestamp_ms"`
		BrainState  json.RawMessage `json:"brain_state"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed heartbeat JSON"})
		return
	}

	sig := c.GetHeader("X-GW-Signature")
	if !s.gate.Heartbeat(rawBody, sig, payload.BrainState, time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	metrics.HeartbeatAgeSeconds.Set(0)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus is GET /v1/status: the composite view spec §4.H names
// for both human operators and monitoring.
func (s *Server) handleStatus(c *gin.Context) {
	view, err := s.gate.Status(c.Request.Context())
	if err != nil {
		writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleLock(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual lock"
	}
	c.JSON(http.StatusOK, s.gate.Lock(req.Reason))
}

func (s *Server) handleUnlock(c *gin.Context) {
	c.JSON(http.StatusOK, s.gate.Unlock())
}

func (s *Server) handleLiquidate(c *gin.Context) {
	results, err := s.gate.Liquidate(c.Request.Context())
	if err != nil {
		writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleCalendar(c *gin.Context) {
	var req struct {
		Dates []string `json:"dates" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates is required"})
		return
	}
	count, err := s.gate.UpdateCalendar(req.Dates)
	if err != nil {
		writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restricted_dates": count})
}

// statusCodeFor maps a proposal outcome onto an HTTP status per spec
// §7: approved trades are 200, execution failures after approval are
// 500 (the order attempt itself failed), and every policy/validation
// rejection is 403.
func statusCodeFor(status string) int {
	switch status {
	case gate.StatusApproved:
		return http.StatusOK
	case gate.StatusApprovedExecutionFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusForbidden
	}
}

// writeInternalError translates an apperr-tagged error into a response;
// only Evaluate/Status's own invariant-violation paths reach here; all
// a proposal's *rejections* are ordinary Decision values, not errors.
func writeInternalError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	log.Error().Err(err).Str("kind", string(kind)).Msg("internal error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": kind})
}
