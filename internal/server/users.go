package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kanban/internal/model"
	"kanban/internal/service"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Name           *string         `json:"name"`
	TelegramChatID optional[int64] `json:"telegram_chat_id"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.svc.Users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondToken(c, http.StatusCreated, user)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondToken(c, http.StatusOK, user)
}

func (s *Server) respondToken(c *gin.Context, status int, user *model.User) {
	token, expires, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, status, tokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expires, User: user})
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.svc.Users.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleUpdateMe(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.svc.Users.UpdateProfile(c.Request.Context(), currentUser(c), service.ProfilePatch{
		Name:           req.Name,
		TelegramChatID: req.TelegramChatID.ptr(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}
