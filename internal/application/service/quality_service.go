package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

var (
	// ErrQualityCheckNotFound indicates the referenced quality check does not exist
	ErrQualityCheckNotFound = errors.New("quality check not found")
	// ErrQualityCheckNotPending indicates resolution was attempted on a settled check
	ErrQualityCheckNotPending = errors.New("quality check is not pending")
	// ErrInvalidSide indicates a resolution side other than A or B
	ErrInvalidSide = errors.New("selected side must be A or B")
)

// QualityService runs the double-blind comparison and conflict resolution
type QualityService interface {
	// TriggerOnSubmission compares the two independent annotations of a task
	// once both ANNOTATION assignments are complete. It returns nil when the
	// task is not yet eligible or was already checked.
	TriggerOnSubmission(ctx context.Context, taskID int64) (*entity.QualityCheck, error)
	Resolve(ctx context.Context, checkID, resolverID int64, side, notes string) (*entity.QualityCheck, error)
	GetByID(ctx context.Context, checkID int64) (*entity.QualityCheck, error)
	ListPending(ctx context.Context, limit, offset int) ([]*entity.QualityCheck, error)
}

type qualityServiceImpl struct {
	taskRepo          port.TaskRepository
	assignmentRepo    port.AssignmentRepository
	annotationRepo    port.AnnotationRepository
	qualityCheckRepo  port.QualityCheckRepository
	userRepo          port.UserRepository
	assignmentService AssignmentService
	workflowService   WorkflowService
	scoreService      ScoreService
	notifier          port.ReviewerNotifier
	txManager         port.TransactionManager
	logger            Logger
}

// NewQualityService creates a new QualityService
func NewQualityService(
	taskRepo port.TaskRepository,
	assignmentRepo port.AssignmentRepository,
	annotationRepo port.AnnotationRepository,
	qualityCheckRepo port.QualityCheckRepository,
	userRepo port.UserRepository,
	assignmentService AssignmentService,
	workflowService WorkflowService,
	scoreService ScoreService,
	notifier port.ReviewerNotifier,
	txManager port.TransactionManager,
	logger Logger,
) QualityService {
	return &qualityServiceImpl{
		taskRepo:          taskRepo,
		assignmentRepo:    assignmentRepo,
		annotationRepo:    annotationRepo,
		qualityCheckRepo:  qualityCheckRepo,
		userRepo:          userRepo,
		assignmentService: assignmentService,
		workflowService:   workflowService,
		scoreService:      scoreService,
		notifier:          notifier,
		txManager:         txManager,
		logger:            logger,
	}
}

func (s *qualityServiceImpl) TriggerOnSubmission(ctx context.Context, taskID int64) (*entity.QualityCheck, error) {
	assignments, err := s.assignmentRepo.GetByTaskAndType(ctx, taskID, entity.AssignmentTypeAnnotation)
	if err != nil {
		return nil, fmt.Errorf("get annotation assignments: %w", err)
	}

	var completed []*entity.TaskAssignment
	for _, a := range assignments {
		if a.Status == entity.AssignmentStatusCompleted {
			completed = append(completed, a)
		}
	}
	// The comparison fires exactly when the second annotator finishes.
	if len(completed) != 2 {
		return nil, nil
	}

	existing, err := s.qualityCheckRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get existing quality check: %w", err)
	}
	if existing != nil {
		return nil, nil
	}

	annotationA, err := s.annotationRepo.GetByAssignmentID(ctx, completed[0].ID)
	if err != nil {
		return nil, fmt.Errorf("get annotation A: %w", err)
	}
	annotationB, err := s.annotationRepo.GetByAssignmentID(ctx, completed[1].ID)
	if err != nil {
		return nil, fmt.Errorf("get annotation B: %w", err)
	}
	if annotationA == nil || annotationB == nil {
		return nil, fmt.Errorf("completed assignment without annotation on task %d", taskID)
	}

	check := &entity.QualityCheck{
		TaskID:        taskID,
		AnnotatorAID:  completed[0].UserID,
		AnnotatorBID:  completed[1].UserID,
		AnnotationAID: annotationA.ID,
		AnnotationBID: annotationB.ID,
	}

	if annotationA.AnnotationData == annotationB.AnnotationData {
		now := time.Now()
		check.ComparisonResult = entity.ComparisonMatch
		check.Status = entity.QualityCheckResolved
		check.ResolutionNotes = "resolved by agreement"
		check.ResolvedAt = &now
		if err := s.qualityCheckRepo.Create(ctx, check); err != nil {
			return nil, fmt.Errorf("create quality check: %w", err)
		}
		s.logger.Info("Annotations match, quality check auto-resolved",
			"task_id", taskID, "check_id", check.ID)
		return check, nil
	}

	check.ComparisonResult = entity.ComparisonConflict
	check.Status = entity.QualityCheckPending
	check.ConflictFields = conflictFieldsJSON(annotationA.AnnotationData, annotationB.AnnotationData)
	if err := s.qualityCheckRepo.Create(ctx, check); err != nil {
		return nil, fmt.Errorf("create quality check: %w", err)
	}
	s.logger.Info("Annotation conflict detected",
		"task_id", taskID,
		"check_id", check.ID,
		"annotator_a", check.AnnotatorAID,
		"annotator_b", check.AnnotatorBID)

	s.routeConflict(ctx, check)
	return check, nil
}

// routeConflict assigns a reviewer to the conflicted task and notifies them.
// Both steps are best-effort; the pending check remains visible either way.
func (s *qualityServiceImpl) routeConflict(ctx context.Context, check *entity.QualityCheck) {
	reviewer, err := s.assignmentService.SelectReviewer(ctx)
	if err != nil {
		s.logger.Error("No reviewer for conflict", "error", err, "check_id", check.ID)
		return
	}

	if _, err := s.assignmentService.Assign(ctx, check.TaskID, reviewer.ID, entity.AssignmentTypeReview); err != nil {
		if !errors.Is(err, ErrDuplicateAssignment) {
			s.logger.Error("Failed to assign conflict reviewer",
				"error", err, "check_id", check.ID, "reviewer_id", reviewer.ID)
			return
		}
	}

	task, err := s.taskRepo.GetByID(ctx, check.TaskID)
	if err != nil || task == nil {
		s.logger.Error("Failed to load task for conflict notification",
			"error", err, "task_id", check.TaskID)
		return
	}

	notification := port.ConflictNotification{
		TaskID:         check.TaskID,
		TaskTitle:      task.Title,
		QualityCheckID: check.ID,
		ConflictFields: decodeConflictFields(check.ConflictFields),
	}
	if err := s.notifier.NotifyConflict(ctx, reviewer, notification); err != nil {
		s.logger.Error("Failed to notify reviewer",
			"error", err, "check_id", check.ID, "reviewer_id", reviewer.ID)
	}
}

func (s *qualityServiceImpl) Resolve(ctx context.Context, checkID, resolverID int64, side, notes string) (*entity.QualityCheck, error) {
	if side != "A" && side != "B" {
		return nil, ErrInvalidSide
	}

	check, err := s.qualityCheckRepo.GetByID(ctx, checkID)
	if err != nil {
		return nil, fmt.Errorf("get quality check: %w", err)
	}
	if check == nil {
		return nil, ErrQualityCheckNotFound
	}
	if check.Status != entity.QualityCheckPending {
		return nil, ErrQualityCheckNotPending
	}

	resolver, err := s.userRepo.GetByID(ctx, resolverID)
	if err != nil {
		return nil, fmt.Errorf("get resolver: %w", err)
	}
	if resolver == nil {
		return nil, ErrUserNotFound
	}

	chosenID, rejectedID := check.AnnotationAID, check.AnnotationBID
	if side == "B" {
		chosenID, rejectedID = check.AnnotationBID, check.AnnotationAID
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := time.Now()

		if err := s.settleAnnotation(txCtx, chosenID, entity.AnnotationStatusApproved, resolverID, notes, now); err != nil {
			return err
		}
		if err := s.settleAnnotation(txCtx, rejectedID, entity.AnnotationStatusRejected, resolverID,
			"superseded by quality check resolution", now); err != nil {
			return err
		}

		check.Status = entity.QualityCheckResolved
		check.ResolvedByID = &resolverID
		check.SelectedSide = side
		check.ResolutionNotes = notes
		check.ResolvedAt = &now
		if err := s.qualityCheckRepo.Update(txCtx, check); err != nil {
			return fmt.Errorf("update quality check: %w", err)
		}

		return s.completeReviewAssignment(txCtx, check.TaskID, resolverID, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Quality check resolved",
		"check_id", checkID,
		"resolver_id", resolverID,
		"side", side)

	if _, err := s.workflowService.AdvanceTask(ctx, check.TaskID); err != nil {
		s.logger.Error("Failed to advance task after resolution",
			"error", err, "task_id", check.TaskID)
	}
	if err := s.scoreService.Award(ctx, AwardRequest{
		UserID:         resolverID,
		ScoreType:      entity.ScoreReviewBonus,
		QualityCheckID: &checkID,
		Description:    "conflict resolved",
	}); err != nil {
		s.logger.Error("Failed to award review bonus",
			"error", err, "resolver_id", resolverID)
	}

	return check, nil
}

func (s *qualityServiceImpl) settleAnnotation(ctx context.Context, annotationID int64, status entity.AnnotationStatus, reviewerID int64, notes string, at time.Time) error {
	annotation, err := s.annotationRepo.GetByID(ctx, annotationID)
	if err != nil {
		return fmt.Errorf("get annotation: %w", err)
	}
	if annotation == nil {
		return fmt.Errorf("annotation %d missing", annotationID)
	}
	annotation.Status = status
	annotation.ReviewerID = &reviewerID
	annotation.ReviewedAt = &at
	annotation.ReviewNotes = notes
	if err := s.annotationRepo.Update(ctx, annotation); err != nil {
		return fmt.Errorf("update annotation: %w", err)
	}
	return nil
}

func (s *qualityServiceImpl) completeReviewAssignment(ctx context.Context, taskID, resolverID int64, at time.Time) error {
	reviews, err := s.assignmentRepo.GetByTaskAndType(ctx, taskID, entity.AssignmentTypeReview)
	if err != nil {
		return fmt.Errorf("get review assignments: %w", err)
	}
	for _, a := range reviews {
		if a.UserID != resolverID || a.Status == entity.AssignmentStatusCompleted {
			continue
		}
		a.Status = entity.AssignmentStatusCompleted
		a.CompletedAt = &at
		if err := s.assignmentRepo.Update(ctx, a); err != nil {
			return fmt.Errorf("complete review assignment: %w", err)
		}
	}
	return nil
}

func (s *qualityServiceImpl) GetByID(ctx context.Context, checkID int64) (*entity.QualityCheck, error) {
	check, err := s.qualityCheckRepo.GetByID(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if check == nil {
		return nil, ErrQualityCheckNotFound
	}
	return check, nil
}

func (s *qualityServiceImpl) ListPending(ctx context.Context, limit, offset int) ([]*entity.QualityCheck, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.qualityCheckRepo.ListPending(ctx, limit, offset)
}

// conflictFieldsJSON lists the field names whose values differ between the
// two payloads, serialized as a JSON array. Payloads that fail to decode as
// objects yield an empty list; the byte comparison already flagged them.
func conflictFieldsJSON(dataA, dataB string) string {
	var a, b map[string]json.RawMessage
	if json.Unmarshal([]byte(dataA), &a) != nil || json.Unmarshal([]byte(dataB), &b) != nil {
		return "[]"
	}

	fields := make(map[string]struct{})
	for name, valueA := range a {
		valueB, ok := b[name]
		if !ok || string(valueA) != string(valueB) {
			fields[name] = struct{}{}
		}
	}
	for name := range b {
		if _, ok := a[name]; !ok {
			fields[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out, err := json.Marshal(names)
	if err != nil {
		return "[]"
	}
	return string(out)
}

func decodeConflictFields(raw string) []string {
	var names []string
	if json.Unmarshal([]byte(raw), &names) != nil {
		return nil
	}
	return names
}
