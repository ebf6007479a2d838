package departments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/departments", h.List)
	r.POST("/departments", h.Create)
	r.GET("/departments/:id", h.Get)
	r.DELETE("/departments/:id", h.Delete)

	r.GET("/departments/:id/positions", h.ListPositions)
	r.POST("/departments/:id/positions", h.CreatePosition)
	r.DELETE("/positions/:id", h.DeletePosition)
}

func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.ListDepartments(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateDepartment(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetDepartment(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteDepartment(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListPositions(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.ListPositions(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreatePosition(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req CreatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreatePosition(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) DeletePosition(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeletePosition(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- helpers ----------

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid id"))
		return 0, false
	}
	return id, true
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var code Code = CodeInternal
	var msg string
	var api *APIError
	if errors.As(err, &api) {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
