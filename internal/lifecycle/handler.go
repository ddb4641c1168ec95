package lifecycle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/analysis"
	"jobboard-backend/internal/extract"
	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/server/respond"
	"jobboard-backend/internal/staging"
	"jobboard-backend/internal/tempresumes"
)

// multipartOverhead is allowed on top of the file ceiling for form framing.
const multipartOverhead = 1 << 20

// Handler exposes the temp resume lifecycle over HTTP.
type Handler struct {
	Svc            *Coordinator
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Coordinator, maxUploadBytes int64) *Handler {
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches the temp resume routes. analyzeMiddleware runs
// in front of the paid analyze route only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, analyzeMiddleware ...gin.HandlerFunc) {
	temp := rg.Group("/resumes/temp")
	temp.POST("", h.upload)
	temp.GET("/:id", h.get)
	temp.POST("/:id/analyze", append(analyzeMiddleware, h.analyze)...)
	temp.POST("/:id/save", h.save)
	temp.DELETE("/:id", h.discard)
}

type recordResponse struct {
	TempResumeID string            `json:"tempResumeId"`
	State        tempresumes.State `json:"state"`
	FileName     string            `json:"fileName"`
	ContentType  string            `json:"contentType"`
	SizeBytes    int64             `json:"sizeBytes"`
	Analysis     *analysis.Result  `json:"analysis,omitempty"`
	CreatedAt    string            `json:"createdAt"`
	ExpiresAt    string            `json:"expiresAt"`
}

func toResponse(rec tempresumes.Record) recordResponse {
	return recordResponse{
		TempResumeID: rec.ID,
		State:        rec.State(),
		FileName:     rec.FileName,
		ContentType:  rec.ContentType,
		SizeBytes:    rec.SizeBytes,
		Analysis:     rec.Analysis,
		CreatedAt:    rec.CreatedAt.UTC().Format(timeFormat),
		ExpiresAt:    rec.ExpiresAt.UTC().Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Set(middleware.TransitionKey, "upload")
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file exceeds the upload size limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	rec, err := h.Svc.Upload(c.Request.Context(), userID, staging.Upload{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.TempResumeIDKey, rec.ID)
	respond.Created(c, c.FullPath()+"/"+rec.ID, toResponse(rec))
}

func (h *Handler) get(c *gin.Context) {
	id, ok := tempResumeID(c, "")
	if !ok {
		return
	}
	rec, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(rec))
}

func (h *Handler) analyze(c *gin.Context) {
	id, ok := tempResumeID(c, "analyze")
	if !ok {
		return
	}
	outcome, err := h.Svc.Analyze(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, outcome)
}

func (h *Handler) save(c *gin.Context) {
	id, ok := tempResumeID(c, "save")
	if !ok {
		return
	}
	saved, err := h.Svc.Save(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, saved)
}

func (h *Handler) discard(c *gin.Context) {
	id, ok := tempResumeID(c, "discard")
	if !ok {
		return
	}
	if err := h.Svc.Discard(c.Request.Context(), middleware.UserIDFromContext(c), id); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"discarded": true})
}

func tempResumeID(c *gin.Context, transition string) (string, bool) {
	if transition != "" {
		c.Set(middleware.TransitionKey, transition)
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "temp resume id is required", nil)
		return "", false
	}
	c.Set(middleware.TempResumeIDKey, id)
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, staging.ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, extract.ErrUnsupportedFormat):
		respond.Error(c, http.StatusUnprocessableEntity, "unsupported_format", "this document format cannot be analyzed", nil)
	case errors.Is(err, extract.ErrEmptyContent):
		respond.Error(c, http.StatusUnprocessableEntity, "empty_content", "no text could be extracted from the document", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "temp resume not found", nil)
	case errors.Is(err, ErrInvalidState):
		respond.Error(c, http.StatusConflict, "invalid_state", "analyze the resume before saving it", nil)
	case errors.Is(err, analysis.ErrExternalService):
		respond.Error(c, http.StatusBadGateway, "external_service_error", "resume analysis service failed", nil)
	case errors.Is(err, analysis.ErrParse):
		respond.Error(c, http.StatusBadGateway, "parse_error", "resume analysis reply could not be read", nil)
	case errors.Is(err, ErrFilesystem):
		respond.Error(c, http.StatusInternalServerError, "filesystem_error", "resume storage failed", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "temp resume operation failed", nil)
	}
}
