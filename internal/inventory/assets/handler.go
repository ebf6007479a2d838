package assets

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ALMS-backend/internal/platform/csvenc"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/categories", h.ListCategories)
	r.POST("/categories", h.CreateCategory)
	r.GET("/categories/:id", h.GetCategory)
	r.DELETE("/categories/:id", h.DeleteCategory)

	r.GET("/assets", h.ListAssets)
	r.POST("/assets", h.CreateAsset)
	r.GET("/assets/export", h.ExportAssets)
	r.GET("/assets/:id", h.GetAsset)
	r.PUT("/assets/:id", h.UpdateAsset)
	r.DELETE("/assets/:id", h.DeleteAsset)
}

// ---------- categories ----------

func (h *Handler) ListCategories(c *gin.Context) {
	res, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateCategory(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetCategory(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- assets ----------

func (h *Handler) ListAssets(c *gin.Context) {
	f := filterFromQuery(c)
	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  c.DefaultQuery("order", "desc"),
	}
	items, total, err := h.svc.ListAssets(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h *Handler) CreateAsset(c *gin.Context) {
	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateAsset(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetAsset(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetAsset(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateAsset(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateAsset(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteAsset(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportAssets: CSVダウンロード。?encoding=cp932 でExcel向け出力。
func (h *Handler) ExportAssets(c *gin.Context) {
	f := filterFromQuery(c)
	items, _, err := h.svc.ListAssets(c.Request.Context(), f, Page{Limit: 10000, Order: "asc"})
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}

	encoding := c.DefaultQuery("encoding", csvenc.EncodingUTF8)

	var buf bytes.Buffer
	w, err := csvenc.NewWriter(&buf, encoding)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, err.Error()))
		return
	}

	_ = w.Write([]string{"asset_id", "category", "name", "serial_number", "asset_tag", "status", "purchase_date"})
	for _, a := range items {
		_ = w.Write([]string{
			strconv.FormatInt(a.AssetID, 10),
			a.CategoryName,
			a.Name,
			a.SerialNumber,
			strDeref(a.AssetTag),
			a.Status,
			strDeref(a.PurchaseDate),
		})
	}
	w.Flush()

	c.Header("Content-Disposition", `attachment; filename="assets.csv"`)
	c.Data(http.StatusOK, csvenc.ContentType(encoding), buf.Bytes())
}

// ---------- helpers ----------

func filterFromQuery(c *gin.Context) AssetFilter {
	f := AssetFilter{
		Name:         c.Query("name"),
		SerialNumber: c.Query("serial"),
		Statuses:     c.QueryArray("status"),
	}
	if v := c.Query("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			f.CategoryID = &id
		}
	}
	return f
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid id"))
		return 0, false
	}
	return id, true
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func strDeref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
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
