package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/engine"
	"team-optimizer/internal/team"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errBadRequest = errors.New("bad request")

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrUnknownUnit):
		return http.StatusBadRequest, "unknown_unit"
	case errors.Is(err, engine.ErrUnknownTrait):
		return http.StatusBadRequest, "unknown_trait"
	case errors.Is(err, engine.ErrUnknownStrategy):
		return http.StatusBadRequest, "unknown_strategy"
	case errors.Is(err, engine.ErrInvalidTeamSize):
		return http.StatusBadRequest, "invalid_team_size"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, engine.ErrSearchTooLarge):
		return http.StatusUnprocessableEntity, "search_too_large"
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// bindJSON decodes an optional JSON body. An empty body leaves v untouched.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func parseCosts(s string) ([]int, error) {
	var costs []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: cost %q", errBadRequest, f)
		}
		costs = append(costs, n)
	}
	return costs, nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "units": len(s.eng.Catalog().Units())})
}

// listUnits serves GET /v1/units?q=&costs=1,2
func (s *Server) listUnits(c *gin.Context) {
	costs, err := parseCosts(c.Query("costs"))
	if err != nil {
		s.fail(c, err)
		return
	}
	units := catalog.Search(s.eng.Catalog().FilterByCost(costs), c.Query("q"))
	if units == nil {
		units = []team.Unit{}
	}
	c.JSON(http.StatusOK, gin.H{"units": units})
}

func (s *Server) listTraits(c *gin.Context) {
	cat := s.eng.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"thresholds": cat.Thresholds(),
		"headliners": cat.HeadlinerOptions(),
	})
}

type evaluateRequest struct {
	Units     []string `json:"units"`
	Headliner string   `json:"headliner"`
}

type evaluateResponse struct {
	engine.Evaluation
	Text string `json:"text"`
}

func (s *Server) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	ev, err := s.eng.Evaluate(req.Units, req.Headliner)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluateResponse{Evaluation: ev, Text: ev.Text()})
}

type searchResponse struct {
	engine.Outcome
	Text string `json:"text"`
}

// search runs a request to completion on the request's context.
func (s *Server) search(c *gin.Context) {
	var req engine.Request
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	out, err := s.eng.Run(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse{Outcome: out, Text: out.Text()})
}

func (s *Server) startJob(c *gin.Context) {
	var req engine.Request
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	// detached from the request: the job outlives it
	view, err := s.jobs.Start(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", "/v1/searches/"+view.ID)
	c.JSON(http.StatusAccepted, view)
}

func (s *Server) getJob(c *gin.Context) {
	view, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) cancelJob(c *gin.Context) {
	view, err := s.jobs.Cancel(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}
