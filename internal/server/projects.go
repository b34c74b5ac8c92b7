package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kanban/internal/model"
	"kanban/internal/service"
)

type createProjectRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	Status      model.ProjectStatus `json:"status"`
	StartDate   model.Date          `json:"start_date"`
	EndDate     model.Date          `json:"end_date"`
	Color       string              `json:"color"`
}

type updateProjectRequest struct {
	Name        *string              `json:"name"`
	Description optional[string]     `json:"description"`
	Status      *model.ProjectStatus `json:"status"`
	StartDate   optional[model.Date] `json:"start_date"`
	EndDate     optional[model.Date] `json:"end_date"`
	Color       optional[string]     `json:"color"`
}

type pageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

// handleListProjects returns one page of the caller's projects.
func (s *Server) handleListProjects(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := s.perPage
	if raw := c.Query("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			perPage = n
		}
	}

	projects, total, err := s.svc.Projects.List(c.Request.Context(), currentUser(c), page, perPage)
	if err != nil {
		s.respondError(c, err)
		return
	}
	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"data": projects,
		"meta": pageMeta{CurrentPage: page, PerPage: perPage, Total: total, LastPage: lastPage},
	})
}

// handleCreateProject creates a project with its default sections.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project, err := s.svc.Projects.Create(c.Request.Context(), currentUser(c), service.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Color:       req.Color,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

// handleShowProject renders the project board.
func (s *Server) handleShowProject(c *gin.Context) {
	id, ok := parseID(c, "project")
	if !ok {
		return
	}
	project, err := s.svc.Projects.Board(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := parseID(c, "project")
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project, err := s.svc.Projects.Update(c.Request.Context(), currentUser(c), id, service.ProjectPatch{
		Name:        req.Name,
		Description: req.Description.ptr(),
		Status:      req.Status,
		StartDate:   req.StartDate.ptr(),
		EndDate:     req.EndDate.ptr(),
		Color:       req.Color.ptr(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleDeleteProject removes a project and everything in it.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := parseID(c, "project")
	if !ok {
		return
	}
	if err := s.svc.Projects.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
