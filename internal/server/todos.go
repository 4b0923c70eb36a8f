package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marcus/taskpilot/internal/tasks"
)

func parseFilter(c *gin.Context) (tasks.Filter, error) {
	var f tasks.Filter
	if v := c.Query("completed"); v != "" {
		done, err := strconv.ParseBool(v)
		if err != nil {
			return f, tasks.Invalid("completed", "completed must be true or false")
		}
		f.Completed = &done
	}
	if v := c.Query("category"); v != "" {
		cat, ok := tasks.ParseCategory(v)
		if !ok {
			return f, tasks.Invalid("category", "invalid category")
		}
		f.Category = cat
	}
	if v := c.Query("priority"); v != "" {
		p, ok := tasks.ParsePriority(v)
		if !ok {
			return f, tasks.Invalid("priority", "invalid priority")
		}
		f.Priority = p
	}
	return f, nil
}

func (s *Server) handleListTodos(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.deps.Store.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []tasks.Task{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetTodo(c *gin.Context) {
	t, err := s.deps.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleCreateTodo(c *gin.Context) {
	var f tasks.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		s.badRequest(c, "body", "request body must be a JSON task")
		return
	}
	t, err := s.deps.Store.Create(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdateTodo(c *gin.Context) {
	var f tasks.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		s.badRequest(c, "body", "request body must be a JSON task")
		return
	}
	t, err := s.deps.Store.Update(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTodo(c *gin.Context) {
	deleted, err := s.deps.Store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !deleted {
		s.fail(c, tasks.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleToggleTodo(c *gin.Context) {
	t, err := s.deps.Store.ToggleComplete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
