// Package server exposes the kanban services over HTTP with gin.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kanban/internal/auth"
	"kanban/internal/service"
)

const userIDKey = "userID"

// Services bundles the use cases the HTTP layer calls into.
type Services struct {
	Users    *service.UserService
	Projects *service.ProjectService
	Members  *service.MembershipService
	Sections *service.SectionService
	Items    *service.ItemService
	Tags     *service.TagService
}

// Server provides HTTP handlers for the kanban backend.
type Server struct {
	engine  *gin.Engine
	svc     Services
	tokens  *auth.Tokens
	logger  *slog.Logger
	perPage int
}

// New constructs the HTTP server with routes and middleware configured.
func New(svc Services, tokens *auth.Tokens, logger *slog.Logger, perPage int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if perPage <= 0 {
		perPage = 15
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:  router,
		svc:     svc,
		tokens:  tokens,
		logger:  logger,
		perPage: perPage,
	}
	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/healthz", s.handleHealth)
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)

	authed := api.Group("", s.requireUser)
	{
		authed.GET("/user", s.handleMe)
		authed.PATCH("/user", s.handleUpdateMe)

		projects := authed.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET(":project", s.handleShowProject)
			projects.PUT(":project", s.handleUpdateProject)
			projects.DELETE(":project", s.handleDeleteProject)

			projects.GET(":project/members", s.handleListMembers)
			projects.POST(":project/members", s.handleAddMember)
			projects.PATCH(":project/members/:user", s.handleUpdateMemberRole)
			projects.DELETE(":project/members/:user", s.handleRemoveMember)
			projects.DELETE(":project/leave", s.handleLeaveProject)
			projects.POST(":project/transfer-ownership", s.handleTransferOwnership)

			projects.GET(":project/sections", s.handleListSections)
			projects.POST(":project/sections", s.handleCreateSection)
			projects.PATCH(":project/sections", s.handleReorderSections)

			projects.GET(":project/tags", s.handleListTags)
			projects.POST(":project/tags", s.handleCreateTag)
		}

		sections := authed.Group("/sections")
		{
			sections.GET(":section", s.handleShowSection)
			sections.PUT(":section", s.handleUpdateSection)
			sections.DELETE(":section", s.handleDeleteSection)
			sections.GET(":section/items", s.handleListItems)
			sections.POST(":section/items", s.handleCreateItem)
			sections.PATCH(":section/items", s.handleReorderItems)
		}

		items := authed.Group("/items")
		{
			items.GET(":item", s.handleShowItem)
			items.PUT(":item", s.handleUpdateItem)
			items.DELETE(":item", s.handleDeleteItem)
		}

		tags := authed.Group("/tags")
		{
			tags.GET(":tag", s.handleShowTag)
			tags.PUT(":tag", s.handleUpdateTag)
			tags.DELETE(":tag", s.handleDeleteTag)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireUser resolves the bearer token into the acting user id.
func (s *Server) requireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	claims, err := s.tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(userIDKey, claims.UserID)
	c.Next()
}

func currentUser(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}

// parseID converts a path parameter to a positive id with error handling.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return uint(id), true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// respondError maps a service error to its status code and a JSON payload.
// Unexpected errors are logged and reported without detail.
func (s *Server) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "this action is unauthorized"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrInvalidReorder),
		errors.Is(err, service.ErrInvalidTag),
		errors.Is(err, service.ErrInvalidNewOwner):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
		message := "internal error"
		if errors.Is(err, service.ErrTransferFailed) {
			message = service.ErrTransferFailed.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
