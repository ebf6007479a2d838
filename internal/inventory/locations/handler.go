package locations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/offices", h.ListOffices)
	r.POST("/offices", h.CreateOffice)
	r.GET("/offices/:id", h.GetOffice)
	r.PUT("/offices/:id", h.UpdateOffice)
	r.DELETE("/offices/:id", h.DeleteOffice)

	r.GET("/rooms", h.ListRooms)
	r.POST("/rooms", h.CreateRoom)
	r.GET("/rooms/:id", h.GetRoom)
	r.PUT("/rooms/:id", h.UpdateRoom)
	r.DELETE("/rooms/:id", h.DeleteRoom)

	r.GET("/desks", h.ListDesks)
	r.POST("/desks", h.CreateDesk)
	r.GET("/desks/:id", h.GetDesk)
	r.DELETE("/desks/:id", h.DeleteDesk)
}

// ---------- offices ----------

func (h *Handler) ListOffices(c *gin.Context) {
	res, err := h.svc.ListOffices(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateOffice(c *gin.Context) {
	var req CreateOfficeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateOffice(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetOffice(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetOffice(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateOffice(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req UpdateOfficeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateOffice(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteOffice(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteOffice(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- rooms ----------

func (h *Handler) ListRooms(c *gin.Context) {
	officeID := queryID(c, "office_id")
	res, err := h.svc.ListRooms(c.Request.Context(), officeID)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateRoom(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetRoom(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetRoom(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateRoom(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteRoom(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- desks ----------

func (h *Handler) ListDesks(c *gin.Context) {
	res, err := h.svc.ListDesks(c.Request.Context(), queryID(c, "office_id"), queryID(c, "room_id"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateDesk(c *gin.Context) {
	var req CreateDeskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateDesk(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetDesk(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetDesk(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteDesk(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteDesk(c.Request.Context(), id); err != nil {
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

func queryID(c *gin.Context, name string) *int64 {
	if v := c.Query(name); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return &id
		}
	}
	return nil
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
