package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/archive"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

var (
	// ErrAssignmentNotFound indicates the referenced assignment does not exist
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrNotAssignmentOwner indicates the acting user does not own the assignment
	ErrNotAssignmentOwner = errors.New("assignment belongs to another user")
	// ErrAnnotationNotFound indicates the referenced annotation does not exist
	ErrAnnotationNotFound = errors.New("annotation not found")
	// ErrNotReviewer indicates the acting user holds no open review-stage assignment on the task
	ErrNotReviewer = errors.New("no open review assignment for this user on the task")
	// ErrNoDocument indicates the task has no document to run AI annotation on
	ErrNoDocument = errors.New("task has no document")
)

// SubmitRequest carries one annotation submission
type SubmitRequest struct {
	AssignmentID    int64
	UserID          int64
	AnnotationData  string // serialized field -> value object
	ConfidenceScore *float64
}

// ReviewRequest carries one review decision on an annotation
type ReviewRequest struct {
	AnnotationID int64
	ReviewerID   int64
	Approved     bool
	Notes        string
}

// AnnotationService handles draft saving, submission, review and the AI
// pre-annotation stage. Submission is the pipeline's hinge: it completes the
// assignment, mirrors the payload into the document archive, triggers the
// double-blind comparison and advances the workflow.
type AnnotationService interface {
	SaveDraft(ctx context.Context, req SubmitRequest) (*entity.Annotation, error)
	Submit(ctx context.Context, req SubmitRequest) (*entity.Annotation, error)
	Review(ctx context.Context, req ReviewRequest) (*entity.Annotation, error)
	RunAIAnnotation(ctx context.Context, taskID, actorID int64) (*entity.Annotation, error)
	GetByID(ctx context.Context, id int64) (*entity.Annotation, error)
}

type annotationServiceImpl struct {
	taskRepo        port.TaskRepository
	assignmentRepo  port.AssignmentRepository
	annotationRepo  port.AnnotationRepository
	userRepo        port.UserRepository
	documentRepo    port.DocumentRepository
	archiveStore    port.ArchiveStore
	aiAnnotator     port.AIAnnotator
	docReader       port.DocumentTextReader
	qualityService  QualityService
	workflowService WorkflowService
	txManager       port.TransactionManager
	logger          Logger
}

// NewAnnotationService creates a new AnnotationService
func NewAnnotationService(
	taskRepo port.TaskRepository,
	assignmentRepo port.AssignmentRepository,
	annotationRepo port.AnnotationRepository,
	userRepo port.UserRepository,
	documentRepo port.DocumentRepository,
	archiveStore port.ArchiveStore,
	aiAnnotator port.AIAnnotator,
	docReader port.DocumentTextReader,
	qualityService QualityService,
	workflowService WorkflowService,
	txManager port.TransactionManager,
	logger Logger,
) AnnotationService {
	return &annotationServiceImpl{
		taskRepo:        taskRepo,
		assignmentRepo:  assignmentRepo,
		annotationRepo:  annotationRepo,
		userRepo:        userRepo,
		documentRepo:    documentRepo,
		archiveStore:    archiveStore,
		aiAnnotator:     aiAnnotator,
		docReader:       docReader,
		qualityService:  qualityService,
		workflowService: workflowService,
		txManager:       txManager,
		logger:          logger,
	}
}

// SaveDraft stores work-in-progress without completing the assignment.
// Drafts are versioned and mirrored into the archive like submissions, so
// the ledger shows in-flight work.
func (s *annotationServiceImpl) SaveDraft(ctx context.Context, req SubmitRequest) (*entity.Annotation, error) {
	assignment, err := s.ownedAssignment(ctx, req.AssignmentID, req.UserID)
	if err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetByID(ctx, assignment.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	annotation, err := s.annotationRepo.GetByAssignmentID(ctx, assignment.ID)
	if err != nil {
		return nil, fmt.Errorf("get annotation: %w", err)
	}

	if annotation == nil {
		annotation = &entity.Annotation{
			TaskID:           assignment.TaskID,
			TaskAssignmentID: assignment.ID,
			AnnotationData:   req.AnnotationData,
			Version:          1,
			Status:           entity.AnnotationStatusDraft,
			ConfidenceScore:  req.ConfidenceScore,
		}
		if err := s.annotationRepo.Create(ctx, annotation); err != nil {
			return nil, fmt.Errorf("create draft: %w", err)
		}
	} else {
		annotation.AnnotationData = req.AnnotationData
		annotation.ConfidenceScore = req.ConfidenceScore
		annotation.Status = entity.AnnotationStatusDraft
		annotation.SubmittedAt = nil
		annotation.Version++
		if err := s.annotationRepo.Update(ctx, annotation); err != nil {
			return nil, fmt.Errorf("update draft: %w", err)
		}
	}

	if assignment.Status == entity.AssignmentStatusAssigned {
		assignment.Status = entity.AssignmentStatusInProgress
		if err := s.assignmentRepo.Update(ctx, assignment); err != nil {
			return nil, fmt.Errorf("update assignment: %w", err)
		}
	}

	s.mirrorToArchive(ctx, task, assignment, annotation, "")

	return annotation, nil
}

// Submit finalizes an annotation. Resubmission replaces the payload in place
// and bumps the version; the archive ledger keeps the history.
func (s *annotationServiceImpl) Submit(ctx context.Context, req SubmitRequest) (*entity.Annotation, error) {
	assignment, err := s.ownedAssignment(ctx, req.AssignmentID, req.UserID)
	if err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetByID(ctx, assignment.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	var annotation *entity.Annotation
	now := time.Now()
	resubmission := false
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		annotation, err = s.annotationRepo.GetByAssignmentID(txCtx, assignment.ID)
		if err != nil {
			return fmt.Errorf("get annotation: %w", err)
		}

		if annotation == nil {
			annotation = &entity.Annotation{
				TaskID:           assignment.TaskID,
				TaskAssignmentID: assignment.ID,
				AnnotationData:   req.AnnotationData,
				Version:          1,
				Status:           entity.AnnotationStatusSubmitted,
				ConfidenceScore:  req.ConfidenceScore,
				SubmittedAt:      &now,
			}
			if err := s.annotationRepo.Create(txCtx, annotation); err != nil {
				return fmt.Errorf("create annotation: %w", err)
			}
		} else {
			resubmission = annotation.Status != entity.AnnotationStatusDraft
			annotation.AnnotationData = req.AnnotationData
			annotation.ConfidenceScore = req.ConfidenceScore
			annotation.Status = entity.AnnotationStatusSubmitted
			annotation.SubmittedAt = &now
			if resubmission {
				annotation.Version++
				annotation.ReviewerID = nil
				annotation.ReviewedAt = nil
				annotation.ReviewNotes = ""
			}
			if err := s.annotationRepo.Update(txCtx, annotation); err != nil {
				return fmt.Errorf("update annotation: %w", err)
			}
		}

		if resubmission {
			// A resubmitted annotation goes back through review, so the
			// assignment reopens instead of staying completed.
			assignment.Status = entity.AssignmentStatusInProgress
			assignment.CompletedAt = nil
		} else {
			assignment.Status = entity.AssignmentStatusCompleted
			assignment.CompletedAt = &now
		}
		if err := s.assignmentRepo.Update(txCtx, assignment); err != nil {
			return fmt.Errorf("update assignment: %w", err)
		}

		if task.BatchID == "" {
			batchID := "BATCH_" + now.Format("20060102_1504")
			batchName := "Annotation batch " + now.Format("2006-01-02 15:04")
			if err := s.taskRepo.SetBatch(txCtx, task.ID, batchID, batchName, now); err != nil {
				return fmt.Errorf("set task batch: %w", err)
			}
			task.BatchID = batchID
			task.BatchName = batchName
		} else if err := s.taskRepo.SetSubmittedAt(txCtx, task.ID, now); err != nil {
			return fmt.Errorf("stamp task submission: %w", err)
		}
		task.SubmittedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Annotation submitted",
		"task_id", task.ID,
		"assignment_id", assignment.ID,
		"user_id", req.UserID,
		"version", annotation.Version)

	s.mirrorToArchive(ctx, task, assignment, annotation, "")

	if _, err := s.qualityService.TriggerOnSubmission(ctx, task.ID); err != nil {
		s.logger.Error("Quality trigger failed", "error", err, "task_id", task.ID)
	}
	if _, err := s.workflowService.AdvanceTask(ctx, task.ID); err != nil {
		s.logger.Error("Failed to advance task after submission",
			"error", err, "task_id", task.ID)
	}

	return annotation, nil
}

// Review records an inspection or expert decision on a submitted annotation
// and completes the reviewer's corresponding assignment.
func (s *annotationServiceImpl) Review(ctx context.Context, req ReviewRequest) (*entity.Annotation, error) {
	annotation, err := s.annotationRepo.GetByID(ctx, req.AnnotationID)
	if err != nil {
		return nil, fmt.Errorf("get annotation: %w", err)
	}
	if annotation == nil {
		return nil, ErrAnnotationNotFound
	}

	task, err := s.taskRepo.GetByID(ctx, annotation.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	reviewAssignment, err := s.pendingReviewAssignment(ctx, annotation.TaskID, req.ReviewerID)
	if err != nil {
		return nil, err
	}
	if reviewAssignment == nil {
		return nil, ErrNotReviewer
	}

	now := time.Now()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		annotation.Status = entity.AnnotationStatusApproved
		if !req.Approved {
			annotation.Status = entity.AnnotationStatusRejected
		}
		annotation.ReviewerID = &req.ReviewerID
		annotation.ReviewedAt = &now
		annotation.ReviewNotes = req.Notes
		if err := s.annotationRepo.Update(txCtx, annotation); err != nil {
			return fmt.Errorf("update annotation: %w", err)
		}

		reviewAssignment.Status = entity.AssignmentStatusCompleted
		reviewAssignment.CompletedAt = &now
		if err := s.assignmentRepo.Update(txCtx, reviewAssignment); err != nil {
			return fmt.Errorf("complete review assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Annotation reviewed",
		"annotation_id", annotation.ID,
		"reviewer_id", req.ReviewerID,
		"approved", req.Approved)

	// The ledger records the review event for both outcomes.
	s.mirrorToArchive(ctx, task, reviewAssignment, annotation, req.Notes)

	if _, err := s.workflowService.AdvanceTask(ctx, task.ID); err != nil {
		s.logger.Error("Failed to advance task after review",
			"error", err, "task_id", task.ID)
	}

	return annotation, nil
}

// RunAIAnnotation extracts the document text and runs the automated
// annotator, producing the AI_ANNOTATION stage result.
func (s *annotationServiceImpl) RunAIAnnotation(ctx context.Context, taskID, actorID int64) (*entity.Annotation, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.DocumentID == nil {
		return nil, ErrNoDocument
	}

	document, err := s.documentRepo.GetByID(ctx, *task.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if document == nil {
		return nil, ErrNoDocument
	}

	fields := formFields(task.FormConfig)

	if err := s.taskRepo.UpdateStatus(ctx, taskID, entity.TaskStatusAIProcessing); err != nil {
		return nil, fmt.Errorf("mark task processing: %w", err)
	}

	text, err := s.docReader.ExtractText(ctx, document.FilePath)
	if err != nil {
		return nil, fmt.Errorf("extract document text: %w", err)
	}

	result, err := s.aiAnnotator.Annotate(ctx, text, fields)
	if err != nil {
		return nil, fmt.Errorf("ai annotation: %w", err)
	}

	data, err := json.Marshal(result.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode ai result: %w", err)
	}

	assignment, err := s.ensureAIAssignment(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	annotation := &entity.Annotation{
		TaskID:           taskID,
		TaskAssignmentID: assignment.ID,
		AnnotationData:   string(data),
		Version:          1,
		Status:           entity.AnnotationStatusSubmitted,
		ConfidenceScore:  &result.Confidence,
		SubmittedAt:      &now,
	}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.annotationRepo.GetByAssignmentID(txCtx, assignment.ID)
		if err != nil {
			return fmt.Errorf("get annotation: %w", err)
		}
		if existing != nil {
			existing.AnnotationData = annotation.AnnotationData
			existing.ConfidenceScore = annotation.ConfidenceScore
			existing.Status = entity.AnnotationStatusSubmitted
			existing.SubmittedAt = &now
			existing.Version++
			annotation = existing
			if err := s.annotationRepo.Update(txCtx, annotation); err != nil {
				return fmt.Errorf("update annotation: %w", err)
			}
		} else if err := s.annotationRepo.Create(txCtx, annotation); err != nil {
			return fmt.Errorf("create annotation: %w", err)
		}

		assignment.Status = entity.AssignmentStatusCompleted
		assignment.CompletedAt = &now
		if err := s.assignmentRepo.Update(txCtx, assignment); err != nil {
			return fmt.Errorf("complete assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("AI annotation completed",
		"task_id", taskID,
		"model", result.Model,
		"confidence", result.Confidence)

	s.mirrorToArchive(ctx, task, assignment, annotation, "")

	if _, err := s.workflowService.AdvanceTask(ctx, taskID); err != nil {
		s.logger.Error("Failed to advance task after AI annotation",
			"error", err, "task_id", taskID)
	}

	return annotation, nil
}

func (s *annotationServiceImpl) GetByID(ctx context.Context, id int64) (*entity.Annotation, error) {
	annotation, err := s.annotationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if annotation == nil {
		return nil, ErrAnnotationNotFound
	}
	return annotation, nil
}

func (s *annotationServiceImpl) ownedAssignment(ctx context.Context, assignmentID, userID int64) (*entity.TaskAssignment, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if assignment.UserID != userID {
		return nil, ErrNotAssignmentOwner
	}
	return assignment, nil
}

// pendingReviewAssignment finds the reviewer's open review-stage assignment
// on the task, checking REVIEW, INSPECTION and EXPERT_REVIEW in that order.
func (s *annotationServiceImpl) pendingReviewAssignment(ctx context.Context, taskID, reviewerID int64) (*entity.TaskAssignment, error) {
	for _, t := range []entity.AssignmentType{
		entity.AssignmentTypeReview,
		entity.AssignmentTypeInspection,
		entity.AssignmentTypeExpertReview,
	} {
		assignments, err := s.assignmentRepo.GetByTaskAndType(ctx, taskID, t)
		if err != nil {
			return nil, fmt.Errorf("get review assignments: %w", err)
		}
		for _, a := range assignments {
			if a.UserID == reviewerID && a.Status != entity.AssignmentStatusCompleted {
				return a, nil
			}
		}
	}
	return nil, nil
}

func (s *annotationServiceImpl) ensureAIAssignment(ctx context.Context, taskID, actorID int64) (*entity.TaskAssignment, error) {
	assignments, err := s.assignmentRepo.GetByTaskAndType(ctx, taskID, entity.AssignmentTypeAIAnnotation)
	if err != nil {
		return nil, fmt.Errorf("get ai assignments: %w", err)
	}
	if len(assignments) > 0 {
		return assignments[0], nil
	}

	assignment := &entity.TaskAssignment{
		TaskID:         taskID,
		UserID:         actorID,
		AssignmentType: entity.AssignmentTypeAIAnnotation,
		Status:         entity.AssignmentStatusInProgress,
	}
	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, fmt.Errorf("create ai assignment: %w", err)
	}
	return assignment, nil
}

// mirrorToArchive reflects a submission or review into the per-document
// ledger. Best-effort: ledger failures are logged, never surfaced.
func (s *annotationServiceImpl) mirrorToArchive(ctx context.Context, task *entity.Task, assignment *entity.TaskAssignment, annotation *entity.Annotation, reviewNotes string) {
	if task.DocumentID == nil {
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(annotation.AnnotationData), &fields); err != nil {
		s.logger.Error("Annotation data is not a field object, skipping archive",
			"error", err, "annotation_id", annotation.ID)
		return
	}

	user, err := s.userRepo.GetByID(ctx, assignment.UserID)
	if err != nil || user == nil {
		s.logger.Error("Failed to load user for archive",
			"error", err, "user_id", assignment.UserID)
		return
	}

	rec := archive.Record{
		TaskID:        task.ID,
		TaskName:      task.Title,
		RoleType:      assignment.AssignmentType.RoleType(),
		UserID:        user.ID,
		Username:      user.Username,
		OperationTime: time.Now(),
		Fields:        fields,
		ReviewNotes:   reviewNotes,
		Version:       annotation.Version,
	}

	fileInfo := documentFileInfo(task)
	templateInfo := taskTemplateInfo(task)

	ok := s.archiveStore.Update(ctx, *task.DocumentID, func(a *archive.Archive) {
		if fileInfo != nil {
			a.EnsureFileInfo(*fileInfo)
		}
		if templateInfo != nil {
			a.SetTemplateInfo(*templateInfo)
		}
		a.Apply(rec)
	})
	if !ok {
		s.logger.Error("Archive update failed",
			"task_id", task.ID,
			"document_id", *task.DocumentID)
	}
}

// formFields decodes the ordered field names from a task's form config
func formFields(formConfig string) []string {
	var cfg entity.FormConfig
	if json.Unmarshal([]byte(formConfig), &cfg) != nil {
		return nil
	}
	return cfg.Fields
}

func taskTemplateInfo(task *entity.Task) *archive.TemplateInfo {
	var cfg entity.FormConfig
	if json.Unmarshal([]byte(task.FormConfig), &cfg) != nil {
		return nil
	}
	return &archive.TemplateInfo{
		TemplateID:    fmt.Sprintf("template_%d", cfg.ID),
		TemplateName:  cfg.Name,
		FieldsDefined: cfg.Fields,
		Version:       "1.0",
	}
}

// documentFileInfo rebuilds the archive file section from the document index
// snapshot frozen onto the task at creation time.
func documentFileInfo(task *entity.Task) *archive.FileInfo {
	if task.DocumentIndex == "" {
		if task.DocumentID == nil {
			return nil
		}
		return &archive.FileInfo{FileID: fmt.Sprintf("doc-%d", *task.DocumentID)}
	}
	var info archive.FileInfo
	if json.Unmarshal([]byte(task.DocumentIndex), &info) != nil {
		return nil
	}
	if info.FileID == "" && task.DocumentID != nil {
		info.FileID = fmt.Sprintf("doc-%d", *task.DocumentID)
	}
	return &info
}
