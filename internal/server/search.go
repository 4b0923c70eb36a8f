package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marcus/taskpilot/internal/search"
	"github.com/marcus/taskpilot/internal/tasks"
)

// TaskContextResponse is the reply of POST /api/search/task-context.
type TaskContextResponse struct {
	OriginalTitle  string          `json:"originalTitle"`
	OptimizedQuery string          `json:"optimizedQuery"`
	Query          string          `json:"query"`
	Results        []search.Result `json:"results"`
	TotalResults   string          `json:"totalResults"`
	SearchTime     float64         `json:"searchTime"`
}

func (s *Server) handleTaskContext(c *gin.Context) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		NumResults  int    `json:"numResults"`
	}
	if !s.bind(c, &body) {
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		s.fail(c, tasks.Invalid("title", "title is required"))
		return
	}
	if s.deps.Search == nil {
		s.fail(c, search.ErrNotConfigured)
		return
	}

	ctx := c.Request.Context()
	query, err := s.deps.Assistant.SearchQuery(ctx, title, body.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := s.deps.Search.Search(ctx, query, body.NumResults)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, TaskContextResponse{
		OriginalTitle:  title,
		OptimizedQuery: query,
		Query:          resp.Query,
		Results:        resp.Results,
		TotalResults:   resp.TotalResults,
		SearchTime:     resp.SearchTime,
	})
}
