package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kanban/internal/model"
)

type addMemberRequest struct {
	UserID uint       `json:"user_id" binding:"required"`
	Role   model.Role `json:"role" binding:"required"`
}

type memberRoleRequest struct {
	Role model.Role `json:"role" binding:"required"`
}

type transferOwnershipRequest struct {
	NewOwnerID uint `json:"new_owner_id" binding:"required"`
}

func (s *Server) handleListMembers(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	members, err := s.svc.Members.Members(c.Request.Context(), currentUser(c), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleAddMember(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project, err := s.svc.Members.AddMember(c.Request.Context(), currentUser(c), projectID, req.UserID, req.Role)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleUpdateMemberRole(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user")
	if !ok {
		return
	}
	var req memberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project, err := s.svc.Members.UpdateMemberRole(c.Request.Context(), currentUser(c), projectID, userID, req.Role)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user")
	if !ok {
		return
	}
	project, err := s.svc.Members.RemoveMember(c.Request.Context(), currentUser(c), projectID, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleLeaveProject drops the caller's own membership.
func (s *Server) handleLeaveProject(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	if err := s.svc.Members.LeaveProject(c.Request.Context(), currentUser(c), projectID); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "you left the project"})
}

func (s *Server) handleTransferOwnership(c *gin.Context) {
	projectID, ok := parseID(c, "project")
	if !ok {
		return
	}
	var req transferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project, err := s.svc.Members.TransferOwnership(c.Request.Context(), currentUser(c), projectID, req.NewOwnerID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "ownership transferred", "project": project})
}
