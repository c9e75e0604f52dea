package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/expenseflow-go/internal/rbac/domain"
	"github.com/expenseflow-go/internal/rbac/gate"
	"github.com/expenseflow-go/internal/rbac/store"
	"github.com/expenseflow-go/pkg/events"
	"github.com/expenseflow-go/pkg/logger"
)

type Handlers struct {
	store     *store.Store
	publisher events.Publisher
	logger    logger.Logger
}

func NewHandlers(s *store.Store, publisher events.Publisher, log logger.Logger) *Handlers {
	return &Handlers{
		store:     s,
		publisher: publisher,
		logger:    log,
	}
}

type RoleResponse struct {
	Role         string `json:"role"`
	Loading      bool   `json:"loading"`
	Level        int    `json:"level"`
	IsEmployee   bool   `json:"isEmployee"`
	IsManager    bool   `json:"isManager"`
	IsAdmin      bool   `json:"isAdmin"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type CheckResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *Handlers) roleResponse() RoleResponse {
	state := h.store.State()
	access := h.store.Access()
	return RoleResponse{
		Role:         string(state.Role),
		Loading:      state.Loading,
		Level:        domain.LevelOf(state.Role),
		IsEmployee:   access.IsEmployee(),
		IsManager:    access.IsManager(),
		IsAdmin:      access.IsAdmin(),
		IsSuperAdmin: access.IsSuperAdmin(),
	}
}

// Health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "rbac-agent"})
}

func (h *Handlers) Ready(c *gin.Context) {
	if h.store.Loading() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "role is loading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "service": "rbac-agent"})
}

func (h *Handlers) GetRole(c *gin.Context) {
	c.JSON(http.StatusOK, h.roleResponse())
}

func (h *Handlers) SetRole(c *gin.Context) {
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := domain.ParseRole(req.Role)
	if role == domain.RoleNone {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	h.store.SetRole(c.Request.Context(), role)
	if err := h.store.Flush(c.Request.Context()); err != nil {
		h.logger.Warn("Role persistence still pending", "error", err)
	}
	c.JSON(http.StatusOK, h.roleResponse())
}

func (h *Handlers) ClearRole(c *gin.Context) {
	h.store.ClearRole(c.Request.Context())
	if err := h.store.Flush(c.Request.Context()); err != nil {
		h.logger.Warn("Role persistence still pending", "error", err)
	}
	c.JSON(http.StatusOK, h.roleResponse())
}

func (h *Handlers) ReloadRole(c *gin.Context) {
	h.store.Load(c.Request.Context())
	c.JSON(http.StatusOK, h.roleResponse())
}

// InvalidateRole publishes role.updated, as the auth subsystem would after
// the server changes a role.
func (h *Handlers) InvalidateRole(c *gin.Context) {
	event := events.NewEventBuilder(events.RoleUpdated).Build()
	if err := h.publisher.Publish(c.Request.Context(), event); err != nil {
		h.logger.Error("Failed to publish role update", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish role update"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": event.ID})
}

// ========== Checks ==========

func (h *Handlers) CheckPermission(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	g := gate.Permission[bool]{Name: name, Child: true}
	c.JSON(http.StatusOK, CheckResponse{Allowed: g.Render(h.store)})
}

func (h *Handlers) CheckAction(c *gin.Context) {
	action, ok := domain.ParseAction(strings.ToUpper(c.Query("action")))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be one of CREATE, READ, UPDATE, DELETE"})
		return
	}

	g := gate.Action[bool]{Action: action, Resource: c.Query("resource"), Child: true}
	c.JSON(http.StatusOK, CheckResponse{Allowed: g.Render(h.store)})
}

func (h *Handlers) CheckRole(c *gin.Context) {
	var g gate.Role[bool]
	g.Child = true

	if min := c.Query("min"); min != "" {
		g.MinRole = domain.ParseRole(min)
		if g.MinRole == domain.RoleNone {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown min role"})
			return
		}
	}

	if allowed := c.Query("allowed"); allowed != "" {
		for _, name := range strings.Split(allowed, ",") {
			role := domain.ParseRole(strings.TrimSpace(name))
			if role == domain.RoleNone {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown allowed role"})
				return
			}
			g.AllowedRoles = append(g.AllowedRoles, role)
		}
	}

	c.JSON(http.StatusOK, CheckResponse{Allowed: g.Render(h.store)})
}
