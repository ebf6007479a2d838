package loans

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ALMS-backend/internal/platform/auth"
	"ALMS-backend/internal/platform/csvenc"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/loans", h.List)
	r.POST("/loans", h.Create)
	r.GET("/loans/export", h.Export)
	r.GET("/loans/target-kinds", h.TargetKinds)
	r.GET("/loans/:id", h.Get)
	r.POST("/loans/:id/return", h.Return)
}

func (h *Handler) Create(c *gin.Context) {
	actor, role := auth.ActorRole(c)

	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	// employee は target_type を見ないので空を許す
	if req.TargetType != "" && !ValidKind(TargetKind(req.TargetType)) {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "unknown target_type"))
		return
	}
	res, err := h.svc.CreateLoan(c.Request.Context(), actor, role, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Return(c *gin.Context) {
	actor, role := auth.ActorRole(c)
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.ReturnLoan(c.Request.Context(), actor, role, id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	actor, role := auth.ActorRole(c)
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), actor, role, id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	actor, role := auth.ActorRole(c)
	res, err := h.svc.List(c.Request.Context(), actor, role, filterFromQuery(c))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// TargetKinds: ロールが選択できる貸出先種別を返す。フォームの
// 選択肢の出し分け用。
func (h *Handler) TargetKinds(c *gin.Context) {
	_, role := auth.ActorRole(c)
	c.JSON(http.StatusOK, gin.H{"target_kinds": h.svc.AllowedTargetKinds(role)})
}

// Export: CSVダウンロード。?encoding=cp932 でExcel向け出力。
// 可視範囲は一覧と同じゲートが掛かる。
// バッファに書き切ってからヘッダを出す(失敗時はJSONエラーを返すため)。
func (h *Handler) Export(c *gin.Context) {
	actor, role := auth.ActorRole(c)
	encoding := c.DefaultQuery("encoding", csvenc.EncodingUTF8)

	var buf bytes.Buffer
	if err := h.svc.ExportCSV(c.Request.Context(), actor, role, filterFromQuery(c), &buf, encoding); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="loans.csv"`)
	c.Data(http.StatusOK, csvenc.ContentType(encoding), buf.Bytes())
}

// ---------- helpers ----------

func filterFromQuery(c *gin.Context) ListFilter {
	f := ListFilter{
		IncludeReturned: c.Query("include_returned") == "true",
		Sort:            c.Query("sort"),
		Direction:       c.Query("direction"),
	}
	if v := c.Query("asset_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			f.AssetID = &id
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
