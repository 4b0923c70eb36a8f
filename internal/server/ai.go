package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marcus/taskpilot/internal/tasks"
)

type taskText struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    tasks.Category `json:"category"`
	Priority    tasks.Priority `json:"priority"`
	Deadline    string         `json:"deadline"`
}

type todosBody struct {
	Todos []tasks.Task `json:"todos"`
}

// bind decodes the JSON body into v, aborting with 400 on failure.
func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.badRequest(c, "body", "request body must be valid JSON")
		return false
	}
	return true
}

// bindTodos decodes a non-empty {todos: [...]} body.
func (s *Server) bindTodos(c *gin.Context) ([]tasks.Task, bool) {
	var body todosBody
	if !s.bind(c, &body) {
		return nil, false
	}
	if len(body.Todos) == 0 {
		s.badRequest(c, "todos", "todos must be a non-empty list")
		return nil, false
	}
	return body.Todos, true
}

func (s *Server) handleGenerateTasks(c *gin.Context) {
	var body struct {
		Description string `json:"description"`
	}
	if !s.bind(c, &body) {
		return
	}
	generated, err := s.deps.Assistant.GenerateTasks(c.Request.Context(), body.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": generated})
}

func (s *Server) handleClassifyTask(c *gin.Context) {
	var body taskText
	if !s.bind(c, &body) {
		return
	}
	result, err := s.deps.Assistant.ClassifyTask(c.Request.Context(), body.Title, body.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSetPriority(c *gin.Context) {
	var body taskText
	if !s.bind(c, &body) {
		return
	}
	result, err := s.deps.Assistant.SuggestPriority(c.Request.Context(), body.Title, body.Description, body.Deadline)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExecutionGuide(c *gin.Context) {
	var body taskText
	if !s.bind(c, &body) {
		return
	}
	result, err := s.deps.Assistant.ExecutionGuide(c.Request.Context(), tasks.Task{
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		Priority:    body.Priority,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCompletionMessage(c *gin.Context) {
	var body taskText
	if !s.bind(c, &body) {
		return
	}
	result, err := s.deps.Assistant.CompletionMessage(c.Request.Context(), body.Title, body.Description, body.Category)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDetectStale(c *gin.Context) {
	list, ok := s.bindTodos(c)
	if !ok {
		return
	}
	report, err := s.deps.Detector.Detect(c.Request.Context(), list, s.now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleRecommend(c *gin.Context) {
	list, ok := s.bindTodos(c)
	if !ok {
		return
	}
	set, err := s.deps.Recommender.Recommend(c.Request.Context(), list)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}
