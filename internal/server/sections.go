package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"kanban/internal/model"
	"kanban/internal/service"
)

type createSectionRequest struct {
	Name        string           `json:"name" binding:"required"`
	FilterType  model.FilterType `json:"filter_type"`
	FilterValue json.RawMessage  `json:"filter_value"`
	ItemLimit   *int             `json:"item_limit"`
}

type updateSectionRequest struct {
	Name        *string           `json:"name"`
	FilterType  *model.FilterType `json:"filter_type"`
	FilterValue json.RawMessage   `json:"filter_value"`
	ItemLimit   optional[int]     `json:"item_limit"`
}

type reorderRequest struct {
	OrderedIDs []uint `json:"ordered_ids" binding:"required"`
}

func (s *Server) handleListSections(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	sections, err := s.svc.Sections.List(c.Request.Context(), currentUser(c), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sections": sections})
}

func (s *Server) handleCreateSection(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	var req createSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	section, err := s.svc.Sections.Create(c.Request.Context(), currentUser(c), projectID, service.SectionInput{
		Name:        req.Name,
		FilterType:  req.FilterType,
		FilterValue: req.FilterValue,
		ItemLimit:   req.ItemLimit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"section": section})
}

// handleReorderSections sets the order of every section of the project.
func (s *Server) handleReorderSections(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sections, err := s.svc.Sections.Reorder(c.Request.Context(), currentUser(c), projectID, req.OrderedIDs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sections": sections})
}

func (s *Server) handleShowSection(c *gin.Context) {
	id, ok := parseID(c, "section")
	if !ok {
		return
	}
	section, err := s.svc.Sections.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"section": section})
}

func (s *Server) handleUpdateSection(c *gin.Context) {
	id, ok := parseID(c, "section")
	if !ok {
		return
	}
	var req updateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	section, err := s.svc.Sections.Update(c.Request.Context(), currentUser(c), id, service.SectionPatch{
		Name:        req.Name,
		FilterType:  req.FilterType,
		FilterValue: req.FilterValue,
		ItemLimit:   req.ItemLimit.ptr(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"section": section})
}

func (s *Server) handleDeleteSection(c *gin.Context) {
	id, ok := parseID(c, "section")
	if !ok {
		return
	}
	if err := s.svc.Sections.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
