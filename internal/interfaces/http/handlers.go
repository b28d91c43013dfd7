package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/application/service"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
	"github.com/annoworks/annotation-pipeline/internal/export"
)

const actorKey = "actor_id"

// Handlers contains all HTTP request handlers
type Handlers struct {
	annotationService service.AnnotationService
	qualityService    service.QualityService
	assignmentService service.AssignmentService
	workflowService   service.WorkflowService
	scoreService      service.ScoreService
	archiveStore      port.ArchiveStore
	exporter          *export.ExcelExporter
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	annotationService service.AnnotationService,
	qualityService service.QualityService,
	assignmentService service.AssignmentService,
	workflowService service.WorkflowService,
	scoreService service.ScoreService,
	archiveStore port.ArchiveStore,
	exporter *export.ExcelExporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		annotationService: annotationService,
		qualityService:    qualityService,
		assignmentService: assignmentService,
		workflowService:   workflowService,
		scoreService:      scoreService,
		archiveStore:      archiveStore,
		exporter:          exporter,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// annotationRequest is the payload for submit and draft endpoints
type annotationRequest struct {
	AssignmentID    int64           `json:"assignment_id" binding:"required"`
	AnnotationData  json.RawMessage `json:"annotation_data" binding:"required"`
	ConfidenceScore *float64        `json:"confidence_score"`
}

// SubmitAnnotation handles POST /api/annotations
func (h *Handlers) SubmitAnnotation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	annotation, err := h.annotationService.Submit(c.Request.Context(), service.SubmitRequest{
		AssignmentID:    req.AssignmentID,
		UserID:          actor,
		AnnotationData:  string(req.AnnotationData),
		ConfidenceScore: req.ConfidenceScore,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: annotation})
}

// SaveDraft handles POST /api/annotations/draft
func (h *Handlers) SaveDraft(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	annotation, err := h.annotationService.SaveDraft(c.Request.Context(), service.SubmitRequest{
		AssignmentID:    req.AssignmentID,
		UserID:          actor,
		AnnotationData:  string(req.AnnotationData),
		ConfidenceScore: req.ConfidenceScore,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: annotation})
}

// ReviewAnnotation handles PUT /api/annotations/:id/review
func (h *Handlers) ReviewAnnotation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Approved bool   `json:"approved"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	annotation, err := h.annotationService.Review(c.Request.Context(), service.ReviewRequest{
		AnnotationID: id,
		ReviewerID:   actor,
		Approved:     req.Approved,
		Notes:        req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: annotation})
}

// GetQualityCheck handles GET /api/quality-checks/:id
func (h *Handlers) GetQualityCheck(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	check, err := h.qualityService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: check})
}

// ListPendingQualityChecks handles GET /api/quality-checks
func (h *Handlers) ListPendingQualityChecks(c *gin.Context) {
	limit, offset := pagination(c)
	checks, err := h.qualityService.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: checks})
}

// ResolveQualityCheck handles POST /api/quality-checks/:id/resolve
func (h *Handlers) ResolveQualityCheck(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		SelectedSide string `json:"selected_side" binding:"required"`
		Notes        string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	check, err := h.qualityService.Resolve(c.Request.Context(), id, actor, req.SelectedSide, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: check})
}

// AssignTask handles POST /api/tasks/:id/assign. Omitting user_id lets the
// allocator pick the least-loaded eligible user for the assignment type.
func (h *Handlers) AssignTask(c *gin.Context) {
	taskID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		UserID         int64  `json:"user_id"`
		AssignmentType string `json:"assignment_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	assignment, err := h.assignmentService.Assign(c.Request.Context(), taskID, req.UserID,
		entity.AssignmentType(req.AssignmentType))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: assignment})
}

// AutoAssignTask handles POST /api/tasks/:id/auto-assign
func (h *Handlers) AutoAssignTask(c *gin.Context) {
	taskID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	assignments, err := h.assignmentService.AutoAssignDouble(c.Request.Context(), taskID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: assignments})
}

// RunAIAnnotation handles POST /api/tasks/:id/ai-annotate
func (h *Handlers) RunAIAnnotation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	taskID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	annotation, err := h.annotationService.RunAIAnnotation(c.Request.Context(), taskID, actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: annotation})
}

// GetWorkflow handles GET /api/tasks/:id/workflow
func (h *Handlers) GetWorkflow(c *gin.Context) {
	taskID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.workflowService.GetStatus(c.Request.Context(), taskID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// GetArchive handles GET /api/documents/:id/archive
func (h *Handlers) GetArchive(c *gin.Context) {
	documentID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	a, err := h.archiveStore.Load(documentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: a})
}

// GetArchiveHistory handles GET /api/documents/:id/history. An optional
// "field" query narrows the response to one field's entries.
func (h *Handlers) GetArchiveHistory(c *gin.Context) {
	documentID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	a, err := h.archiveStore.Load(documentID)
	if err != nil {
		h.fail(c, err)
		return
	}

	if field := c.Query("field"); field != "" {
		c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
			field: a.AnnotationRecords[field],
		}})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: a.AnnotationRecords})
}

// GetArchiveConflicts handles GET /api/documents/:id/conflicts
func (h *Handlers) GetArchiveConflicts(c *gin.Context) {
	documentID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	a, err := h.archiveStore.Load(documentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: a.FieldConflicts()})
}

// ExportArchive handles GET /api/documents/:id/archive/export
func (h *Handlers) ExportArchive(c *gin.Context) {
	documentID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	a, err := h.archiveStore.Load(documentID)
	if err != nil {
		h.fail(c, err)
		return
	}

	data, err := h.exporter.Export(a)
	if err != nil {
		h.fail(c, err)
		return
	}

	filename := fmt.Sprintf("document_%d_annotations.xlsx", documentID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GetScoreHistory handles GET /api/users/:id/scores
func (h *Handlers) GetScoreHistory(c *gin.Context) {
	userID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	limit, offset := pagination(c)
	entries, err := h.scoreService.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// actor resolves the acting user ID planted by the identity middleware
func (h *Handlers) actor(c *gin.Context) (int64, bool) {
	raw, exists := c.Get(actorKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "missing X-User-ID header"})
		return 0, false
	}
	id, err := strconv.ParseInt(raw.(string), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "invalid X-User-ID header"})
		return 0, false
	}
	return id, true
}

func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// fail maps service errors onto HTTP statuses
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrAnnotationNotFound),
		errors.Is(err, service.ErrQualityCheckNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateAssignment),
		errors.Is(err, service.ErrQualityCheckNotPending):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotAssignmentOwner),
		errors.Is(err, service.ErrNotReviewer),
		errors.Is(err, service.ErrNotAdmin):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotEnoughAnnotators),
		errors.Is(err, service.ErrNoReviewerAvailable),
		errors.Is(err, service.ErrUserNotEligible),
		errors.Is(err, service.ErrNoEligibleUser),
		errors.Is(err, service.ErrInvalidSide),
		errors.Is(err, service.ErrNoDocument):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
