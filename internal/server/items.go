package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kanban/internal/filter"
	"kanban/internal/model"
	"kanban/internal/service"
)

type createItemRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description"`
	DueDate     model.Date         `json:"due_date"`
	Status      model.ItemStatus   `json:"status"`
	Priority    model.ItemPriority `json:"priority"`
	AssignedTo  *uint              `json:"assigned_to"`
	TagIDs      []uint             `json:"tag_ids"`
}

type updateItemRequest struct {
	Title       *string              `json:"title"`
	Description optional[string]     `json:"description"`
	DueDate     optional[model.Date] `json:"due_date"`
	Status      *model.ItemStatus    `json:"status"`
	Priority    *model.ItemPriority  `json:"priority"`
	AssignedTo  optional[uint]       `json:"assigned_to"`
	TagIDs      optional[[]uint]     `json:"tag_ids"`
}

// handleListItems returns the section's visible items, narrowed by the
// status, priority, assigned_to and tags query parameters.
func (s *Server) handleListItems(c *gin.Context) {
	sectionID, ok := parseID(c, "section")
	if !ok {
		return
	}
	q, err := parseItemQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	items, err := s.svc.Items.List(c.Request.Context(), currentUser(c), sectionID, q)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"items": items})
}

func parseItemQuery(c *gin.Context) (filter.Query, error) {
	q := filter.Query{
		Status:   model.ItemStatus(c.Query("status")),
		Priority: model.ItemPriority(c.Query("priority")),
	}
	if q.Status != "" && !q.Status.Valid() {
		return q, fmt.Errorf("unknown status %q", q.Status)
	}
	if q.Priority != "" && !q.Priority.Valid() {
		return q, fmt.Errorf("unknown priority %q", q.Priority)
	}
	if raw, ok := c.GetQuery("assigned_to"); ok {
		switch raw = strings.TrimSpace(raw); strings.ToLower(raw) {
		case "null", "0":
			q.Unassigned = true
		case "":
		default:
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return q, fmt.Errorf("invalid assigned_to %q", raw)
			}
			q.AssignedTo = uint(id)
		}
	}
	for _, raw := range c.QueryArray("tags") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				return q, fmt.Errorf("invalid tag id %q", part)
			}
			q.TagIDs = append(q.TagIDs, uint(id))
		}
	}
	return q, nil
}

func (s *Server) handleCreateItem(c *gin.Context) {
	sectionID, ok := parseID(c, "section")
	if !ok {
		return
	}
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item, err := s.svc.Items.Create(c.Request.Context(), currentUser(c), sectionID, service.ItemInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"item": item})
}

// handleReorderItems sets the order of every item of the section.
func (s *Server) handleReorderItems(c *gin.Context) {
	sectionID, ok := parseID(c, "section")
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	items, err := s.svc.Items.Reorder(c.Request.Context(), currentUser(c), sectionID, req.OrderedIDs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleShowItem(c *gin.Context) {
	id, ok := parseID(c, "item")
	if !ok {
		return
	}
	item, err := s.svc.Items.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"item": item})
}

func (s *Server) handleUpdateItem(c *gin.Context) {
	id, ok := parseID(c, "item")
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item, err := s.svc.Items.Update(c.Request.Context(), currentUser(c), id, service.ItemPatch{
		Title:       req.Title,
		Description: req.Description.ptr(),
		DueDate:     req.DueDate.ptr(),
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo.ptr(),
		TagIDs:      req.TagIDs.ptr(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"item": item})
}

func (s *Server) handleDeleteItem(c *gin.Context) {
	id, ok := parseID(c, "item")
	if !ok {
		return
	}
	if err := s.svc.Items.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
