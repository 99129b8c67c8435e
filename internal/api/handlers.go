package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"deepresearch/internal/models"
	"deepresearch/internal/pdf"
	"deepresearch/internal/service/extract"
	"deepresearch/internal/service/reports"
	"deepresearch/internal/worker"
)

// ResearchManager runs research requests on the worker pool.
type ResearchManager interface {
	Run(worker.ResearchRequest) (string, error)
}

// Extractor pulls plain text from a stored upload.
type Extractor interface {
	Extract(ctx context.Context, path, mime string) (string, error)
}

// Options carries handler defaults from the app config.
type Options struct {
	Provider string
	Model    string
	FileBase string
	FileTTL  time.Duration
}

// Handler wires HTTP routes to the reports service and the research
// worker pool.
type Handler struct {
	reports   *reports.Service
	manager   ResearchManager
	extractor Extractor
	renderer  *pdf.Renderer
	opts      Options
}

// NewHandler constructs a Handler instance.
func NewHandler(service *reports.Service, manager ResearchManager, extractor Extractor, renderer *pdf.Renderer, opts Options) *Handler {
	if opts.FileTTL <= 0 {
		opts.FileTTL = reports.DefaultUploadTTL
	}
	return &Handler{
		reports:   service,
		manager:   manager,
		extractor: extractor,
		renderer:  renderer,
		opts:      opts,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/status", h.getStatus)
	api.POST("/query", h.runQuery)
	api.POST("/uploads", h.fileUpload)
	api.GET("/reports", h.listReports)
	api.GET("/reports/:id", h.getReport)
	api.GET("/reports/:id/pdf", h.getReportPDF)
	api.POST("/reports/pdf", h.renderPDF)
}

func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Research interface
type queryRequest struct {
	Input     string  `json:"input"`
	Provider  string  `json:"provider"`
	ModelType string  `json:"model_type"`
	UploadIDs []int64 `json:"upload_ids"`
}

func (h *Handler) runQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required"})
		return
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = h.opts.Provider
	}
	modelType := strings.TrimSpace(req.ModelType)
	if modelType == "" {
		modelType = h.opts.Model
	}

	uploads, err := h.resolveUploads(c.Request.Context(), req.UploadIDs)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sql.ErrNoRows) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	query := composeQuery(input, uploads)

	report, err := h.reports.CreateReport(c.Request.Context(), input, provider, modelType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	markdown, err := h.manager.Run(worker.ResearchRequest{
		Context:  c.Request.Context(),
		Query:    query,
		Provider: provider,
		Model:    modelType,
	})
	if err != nil {
		_ = h.reports.FailReport(c.Request.Context(), report.ID, err.Error())
		if errors.Is(err, worker.ErrManagerBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if err := h.reports.CompleteReport(c.Request.Context(), report.ID, markdown); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":    markdown,
		"report_id": report.ID,
	})
}

// composeQuery appends extracted upload text to the question so the
// crew can ground its research on the provided documents.
func composeQuery(input string, uploads []*models.Upload) string {
	if len(uploads) == 0 {
		return input
	}
	var b strings.Builder
	b.WriteString(input)
	for _, u := range uploads {
		if u.ExtractedText == "" {
			continue
		}
		b.WriteString("\n\n[file content]:\n")
		b.WriteString(u.ExtractedText)
	}
	return b.String()
}

func (h *Handler) resolveUploads(ctx context.Context, uploadIDs []int64) ([]*models.Upload, error) {
	if len(uploadIDs) == 0 {
		return nil, nil
	}
	seen := make(map[int64]struct{}, len(uploadIDs))
	ids := make([]int64, 0, len(uploadIDs))
	for _, id := range uploadIDs {
		if id <= 0 {
			return nil, errors.New("invalid upload id")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return h.reports.GetUploadsByIDs(ctx, ids)
}

func (h *Handler) listReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	list, err := h.reports.ListReports(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(list) == 0 {
		list = make([]models.Report, 0)
	}
	c.JSON(http.StatusOK, gin.H{"reports": list})
}

func (h *Handler) reportFromPath(c *gin.Context) (*models.Report, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return nil, false
	}
	report, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return report, true
}

func (h *Handler) getReport(c *gin.Context) {
	report, ok := h.reportFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (h *Handler) getReportPDF(c *gin.Context) {
	report, ok := h.reportFromPath(c)
	if !ok {
		return
	}
	if report.Status != models.ReportComplete {
		c.JSON(http.StatusConflict, gin.H{"error": "report is not complete"})
		return
	}
	out, err := h.renderer.Render(report.Markdown)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", out)
}

// Ad hoc markdown to PDF interface
type renderRequest struct {
	Markdown string `json:"markdown"`
}

func (h *Handler) renderPDF(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Markdown) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "markdown is required"})
		return
	}
	out, err := h.renderer.Render(req.Markdown)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", out)
}

const (
	maxUploadBytes   = 10 << 20 // 10 MB
	uploadQuotaBytes = 50 << 20 // 50 MB across unexpired uploads
)

func (h *Handler) fileUpload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	usage, err := h.reports.UploadUsage(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "calculate usage failed"})
		return
	}
	if usage+file.Size > uploadQuotaBytes {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "storage quota exceeded"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	head := make([]byte, 512)
	n, _ := f.Read(head)
	_ = f.Close()
	mime, err := extract.Detect(file.Filename, head[:n])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filename := filepath.Base(file.Filename)
	destDir, destPath, finalName := h.getUniqueFilePath(filename)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create directory failed"})
		return
	}
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	text, err := h.extractor.Extract(c.Request.Context(), destPath, mime)
	if err != nil {
		_ = os.Remove(destPath)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uploadID, err := h.reports.RecordUpload(c.Request.Context(), finalName, destPath, mime, file.Size, text, h.opts.FileTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"upload_id": uploadID,
		"file_name": finalName,
		"size":      file.Size,
		"mime":      mime,
		"chars":     len(text),
		"used":      usage + file.Size,
		"limit":     uploadQuotaBytes,
	})
}

func (h *Handler) getFilePath(filename string) (string, string) {
	destDir := filepath.Join(h.opts.FileBase, "uploads")
	destPath := filepath.Join(destDir, filename)
	return destDir, destPath
}

func (h *Handler) getUniqueFilePath(filename string) (string, string, string) {
	destDir, destPath := h.getFilePath(filename)
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return destDir, destPath, filename
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for idx := 1; idx <= 1000; idx++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, idx, ext)
		dir, path := h.getFilePath(candidate)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return dir, path, candidate
		}
	}
	fallback := fmt.Sprintf("%s-%d%s", base, time.Now().UnixNano(), ext)
	dir, path := h.getFilePath(fallback)
	return dir, path, fallback
}
