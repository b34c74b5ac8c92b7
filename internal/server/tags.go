package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createTagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

type updateTagRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (s *Server) handleListTags(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	tags, err := s.svc.Tags.List(c.Request.Context(), currentUser(c), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tags": tags})
}

func (s *Server) handleCreateTag(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tag, err := s.svc.Tags.Create(c.Request.Context(), currentUser(c), projectID, req.Name, req.Color)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"tag": tag})
}

func (s *Server) handleShowTag(c *gin.Context) {
	id, ok := parseID(c, "tag")
	if !ok {
		return
	}
	tag, err := s.svc.Tags.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tag": tag})
}

func (s *Server) handleUpdateTag(c *gin.Context) {
	id, ok := parseID(c, "tag")
	if !ok {
		return
	}
	var req updateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tag, err := s.svc.Tags.Update(c.Request.Context(), currentUser(c), id, req.Name, req.Color)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tag": tag})
}

// handleDeleteTag removes the tag and its item associations.
func (s *Server) handleDeleteTag(c *gin.Context) {
	id, ok := parseID(c, "tag")
	if !ok {
		return
	}
	if err := s.svc.Tags.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
