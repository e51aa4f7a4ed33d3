package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"riskgraph/internal/logging"
	"riskgraph/internal/store"
)

const maxBodySize = 1 << 20 // 1MB

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleOrchestrate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	req, err := DecodeRequest(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := s.eval.Run(c.Request.Context(), *req.Transaction, *req.Customer)
	if err != nil {
		traceID := ""
		if res != nil {
			traceID = res.TraceID
		}
		logging.WithTrace(s.logger, traceID).Error("orchestration failed", "transaction_id", req.Transaction.ID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), TraceID: traceID})
		return
	}
	c.JSON(http.StatusOK, NewResponse(res.Record))
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no store configured"})
		return false
	}
	return true
}

func (s *Server) handleGetDecision(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	rec, err := s.store.GetDecision(c.Param("trace_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "decision not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleGetTrace(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	trace, err := s.store.GetTrace(c.Param("trace_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if trace == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "trace not found"})
		return
	}
	c.JSON(http.StatusOK, trace)
}

func (s *Server) handleListReviews(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	status := store.ReviewStatus(c.DefaultQuery("status", string(store.ReviewOpen)))
	if status == "ALL" {
		status = ""
	}
	cases, err := s.store.ListReviews(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if cases == nil {
		cases = []*store.ReviewCase{}
	}
	c.JSON(http.StatusOK, gin.H{"reviews": cases, "count": len(cases)})
}

func (s *Server) handleGetReview(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	rc, err := s.store.GetReview(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if rc == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "review case not found"})
		return
	}
	c.JSON(http.StatusOK, rc)
}

func (s *Server) handleResolveReview(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	var res store.Resolution
	if err := c.ShouldBindJSON(&res); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed request body: " + err.Error()})
		return
	}
	rc, err := s.store.ResolveReview(c.Param("id"), res)
	switch {
	case errors.Is(err, store.ErrInvalidResolution):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Info("review resolved", "review_id", rc.ID, "trace_id", rc.TraceID, "decision", rc.HumanDecision)
		c.JSON(http.StatusOK, rc)
	}
}
