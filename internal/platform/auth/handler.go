package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ALMS-backend/internal/platform/roles"
)

type Handler struct{ svc *Service }

// RegisterPublicRoutes: 認証不要のエンドポイント
func RegisterPublicRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/login", h.Login)
}

// RegisterAdminRoutes: アカウント管理（admin のみ）
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/register", h.Register)
	r.DELETE("/accounts/:id", h.DeleteAccount)
	r.PATCH("/accounts/:id", h.PatchAccount)
	r.PUT("/accounts/:id/role", h.AssignRole)
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "IDまたはパスワードが間違っています"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Login successful",
	})
}

type RegisterRequest struct {
	ID       string  `json:"id" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"` // 未指定ならグループ登録なし（= employee扱い）
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var group roles.Role
	if req.Role != nil && *req.Role != "" {
		group = roles.Role(*req.Role)
		if !roles.Valid(group) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}
	}
	email := ""
	if req.Email != nil {
		email = *req.Email
	}

	if err := h.svc.Register(c.Request.Context(), req.ID, req.Password, email, group); err != nil {
		if err == ErrAlreadyExists {
			c.JSON(http.StatusConflict, gin.H{"error": "ID already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "registered"})
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type PatchAccountRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

func (h *Handler) PatchAccount(c *gin.Context) {
	id := c.Param("id")

	var req PatchAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.svc.SetDisabled(c.Request.Context(), id, *req.Disabled); err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

type AssignRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) AssignRole(c *gin.Context) {
	id := c.Param("id")

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.svc.AssignGroup(c.Request.Context(), id, roles.Role(req.Role)); err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "role assigned"})
}
