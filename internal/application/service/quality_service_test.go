package service

import (
	"context"
	"testing"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

func completedAssignment(id, userID int64) *entity.TaskAssignment {
	return &entity.TaskAssignment{
		ID:             id,
		UserID:         userID,
		AssignmentType: entity.AssignmentTypeAnnotation,
		Status:         entity.AssignmentStatusCompleted,
	}
}

func newQualityService(
	assignmentRepo *mockAssignmentRepo,
	annotationRepo *mockAnnotationRepo,
	qualityCheckRepo *mockQualityCheckRepo,
	assignmentService AssignmentService,
	workflowService WorkflowService,
	scoreService ScoreService,
	notifier port.ReviewerNotifier,
) QualityService {
	return NewQualityService(
		&mockTaskRepo{}, assignmentRepo, annotationRepo, qualityCheckRepo, &mockUserRepo{},
		assignmentService, workflowService, scoreService,
		notifier, &mockTxManager{}, &mockLogger{})
}

func TestTriggerOnSubmission(t *testing.T) {
	t.Run("one completed annotation does not trigger", func(t *testing.T) {
		assignmentRepo := &mockAssignmentRepo{
			getByTaskAndTypeFunc: func(ctx context.Context, taskID int64, at entity.AssignmentType) ([]*entity.TaskAssignment, error) {
				return []*entity.TaskAssignment{
					completedAssignment(1, 10),
					{ID: 2, UserID: 11, AssignmentType: entity.AssignmentTypeAnnotation, Status: entity.AssignmentStatusInProgress},
				}, nil
			},
		}
		svc := newQualityService(assignmentRepo, &mockAnnotationRepo{}, &mockQualityCheckRepo{},
			&mockAssignmentService{}, &mockWorkflowService{}, &mockScoreService{}, &mockNotifier{})

		check, err := svc.TriggerOnSubmission(context.Background(), 1)
		if err != nil {
			t.Fatalf("TriggerOnSubmission() error = %v", err)
		}
		if check != nil {
			t.Errorf("check = %+v, want nil", check)
		}
	})

	t.Run("existing check is not repeated", func(t *testing.T) {
		assignmentRepo := &mockAssignmentRepo{
			getByTaskAndTypeFunc: func(ctx context.Context, taskID int64, at entity.AssignmentType) ([]*entity.TaskAssignment, error) {
				return []*entity.TaskAssignment{completedAssignment(1, 10), completedAssignment(2, 11)}, nil
			},
		}
		created := false
		qualityCheckRepo := &mockQualityCheckRepo{
			getByTaskIDFunc: func(ctx context.Context, taskID int64) (*entity.QualityCheck, error) {
				return &entity.QualityCheck{ID: 5, TaskID: taskID}, nil
			},
			createFunc: func(ctx context.Context, check *entity.QualityCheck) error {
				created = true
				return nil
			},
		}
		svc := newQualityService(assignmentRepo, &mockAnnotationRepo{}, qualityCheckRepo,
			&mockAssignmentService{}, &mockWorkflowService{}, &mockScoreService{}, &mockNotifier{})

		check, err := svc.TriggerOnSubmission(context.Background(), 1)
		if err != nil {
			t.Fatalf("TriggerOnSubmission() error = %v", err)
		}
		if check != nil || created {
			t.Error("expected existing check to suppress a new comparison")
		}
	})

	t.Run("identical payloads auto-resolve", func(t *testing.T) {
		assignmentRepo := &mockAssignmentRepo{
			getByTaskAndTypeFunc: func(ctx context.Context, taskID int64, at entity.AssignmentType) ([]*entity.TaskAssignment, error) {
				return []*entity.TaskAssignment{completedAssignment(1, 10), completedAssignment(2, 11)}, nil
			},
		}
		annotationRepo := &mockAnnotationRepo{
			getByAssignmentIDFunc: func(ctx context.Context, assignmentID int64) (*entity.Annotation, error) {
				return &entity.Annotation{ID: assignmentID * 100, AnnotationData: `{"amount":"12.50"}`}, nil
			},
		}
		var created *entity.QualityCheck
		qualityCheckRepo := &mockQualityCheckRepo{
			createFunc: func(ctx context.Context, check *entity.QualityCheck) error {
				check.ID = 1
				created = check
				return nil
			},
		}
		svc := newQualityService(assignmentRepo, annotationRepo, qualityCheckRepo,
			&mockAssignmentService{}, &mockWorkflowService{}, &mockScoreService{}, &mockNotifier{})

		check, err := svc.TriggerOnSubmission(context.Background(), 1)
		if err != nil {
			t.Fatalf("TriggerOnSubmission() error = %v", err)
		}
		if check == nil || created == nil {
			t.Fatal("expected a quality check to be created")
		}
		if created.ComparisonResult != entity.ComparisonMatch {
			t.Errorf("comparison = %s, want MATCH", created.ComparisonResult)
		}
		if created.Status != entity.QualityCheckResolved {
			t.Errorf("status = %s, want RESOLVED", created.Status)
		}
		if created.ResolvedByID != nil {
			t.Error("auto-resolved check must not carry a resolver")
		}
		if created.ResolvedAt == nil {
			t.Error("auto-resolved check must carry a resolution time")
		}
	})

	t.Run("differing payloads open a pending conflict", func(t *testing.T) {
		assignmentRepo := &mockAssignmentRepo{
			getByTaskAndTypeFunc: func(ctx context.Context, taskID int64, at entity.AssignmentType) ([]*entity.TaskAssignment, error) {
				return []*entity.TaskAssignment{completedAssignment(1, 10), completedAssignment(2, 11)}, nil
			},
		}
		annotationRepo := &mockAnnotationRepo{
			getByAssignmentIDFunc: func(ctx context.Context, assignmentID int64) (*entity.Annotation, error) {
				if assignmentID == 1 {
					return &entity.Annotation{ID: 100, AnnotationData: `{"amount":"12.50","vendor":"acme"}`}, nil
				}
				return &entity.Annotation{ID: 200, AnnotationData: `{"amount":"13.00","vendor":"acme"}`}, nil
			},
		}
		var created *entity.QualityCheck
		qualityCheckRepo := &mockQualityCheckRepo{
			createFunc: func(ctx context.Context, check *entity.QualityCheck) error {
				check.ID = 1
				created = check
				return nil
			},
		}
		var reviewAssigned bool
		var notified bool
		assignmentService := &mockAssignmentService{
			assignFunc: func(ctx context.Context, taskID, userID int64, at entity.AssignmentType) (*entity.TaskAssignment, error) {
				if at != entity.AssignmentTypeReview {
					t.Errorf("assignment type = %s, want REVIEW", at)
				}
				reviewAssigned = true
				return &entity.TaskAssignment{TaskID: taskID, UserID: userID, AssignmentType: at}, nil
			},
		}
		notifier := &mockNotifier{
			notifyConflictFunc: func(ctx context.Context, reviewer *entity.User, n port.ConflictNotification) error {
				notified = true
				if len(n.ConflictFields) != 1 || n.ConflictFields[0] != "amount" {
					t.Errorf("conflict fields = %v, want [amount]", n.ConflictFields)
				}
				return nil
			},
		}
		svc := newQualityService(assignmentRepo, annotationRepo, qualityCheckRepo,
			assignmentService, &mockWorkflowService{}, &mockScoreService{}, notifier)

		check, err := svc.TriggerOnSubmission(context.Background(), 1)
		if err != nil {
			t.Fatalf("TriggerOnSubmission() error = %v", err)
		}
		if check.ComparisonResult != entity.ComparisonConflict {
			t.Errorf("comparison = %s, want CONFLICT", check.ComparisonResult)
		}
		if check.Status != entity.QualityCheckPending {
			t.Errorf("status = %s, want PENDING", check.Status)
		}
		if created.ConflictFields != `["amount"]` {
			t.Errorf("conflict fields = %s, want [\"amount\"]", created.ConflictFields)
		}
		if !reviewAssigned || !notified {
			t.Error("conflict must route a reviewer and send a notification")
		}
	})

	t.Run("reviewer routing failure keeps the pending check", func(t *testing.T) {
		assignmentRepo := &mockAssignmentRepo{
			getByTaskAndTypeFunc: func(ctx context.Context, taskID int64, at entity.AssignmentType) ([]*entity.TaskAssignment, error) {
				return []*entity.TaskAssignment{completedAssignment(1, 10), completedAssignment(2, 11)}, nil
			},
		}
		annotationRepo := &mockAnnotationRepo{
			getByAssignmentIDFunc: func(ctx context.Context, assignmentID int64) (*entity.Annotation, error) {
				if assignmentID == 1 {
					return &entity.Annotation{ID: 100, AnnotationData: `{"n":1}`}, nil
				}
				return &entity.Annotation{ID: 200, AnnotationData: `{"n":2}`}, nil
			},
		}
		assignmentService := &mockAssignmentService{
			selectReviewerFunc: func(ctx context.Context) (*entity.User, error) {
				return nil, ErrNoReviewerAvailable
			},
		}
		svc := newQualityService(assignmentRepo, annotationRepo, &mockQualityCheckRepo{},
			assignmentService, &mockWorkflowService{}, &mockScoreService{}, &mockNotifier{})

		check, err := svc.TriggerOnSubmission(context.Background(), 1)
		if err != nil {
			t.Fatalf("TriggerOnSubmission() error = %v", err)
		}
		if check == nil || check.Status != entity.QualityCheckPending {
			t.Errorf("check = %+v, want pending conflict", check)
		}
	})
}

func TestResolve(t *testing.T) {
	pendingCheck := func() *entity.QualityCheck {
		return &entity.QualityCheck{
			ID:               1,
			TaskID:           2,
			AnnotatorAID:     10,
			AnnotatorBID:     11,
			AnnotationAID:    100,
			AnnotationBID:    200,
			ComparisonResult: entity.ComparisonConflict,
			Status:           entity.QualityCheckPending,
		}
	}

	t.Run("side A approves A and rejects B", func(t *testing.T) {
		qualityCheckRepo := &mockQualityCheckRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.QualityCheck, error) {
				return pendingCheck(), nil
			},
		}
		statuses := map[int64]entity.AnnotationStatus{}
		annotationRepo := &mockAnnotationRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.Annotation, error) {
				return &entity.Annotation{ID: id, TaskID: 2}, nil
			},
			updateFunc: func(ctx context.Context, a *entity.Annotation) error {
				statuses[a.ID] = a.Status
				return nil
			},
		}
		review := &entity.TaskAssignment{ID: 9, TaskID: 2, UserID: 50,
			AssignmentType: entity.AssignmentTypeReview, Status: entity.AssignmentStatusAssigned}
		assignmentRepo := &mockAssignmentRepo{
			getByTaskAndTypeFunc: func(ctx context.Context, taskID int64, at entity.AssignmentType) ([]*entity.TaskAssignment, error) {
				return []*entity.TaskAssignment{review}, nil
			},
		}
		advanced := false
		workflowService := &mockWorkflowService{
			advanceTaskFunc: func(ctx context.Context, taskID int64) (*entity.Task, error) {
				advanced = true
				return &entity.Task{ID: taskID}, nil
			},
		}
		var award *AwardRequest
		scoreService := &mockScoreService{
			awardFunc: func(ctx context.Context, req AwardRequest) error {
				award = &req
				return nil
			},
		}
		svc := newQualityService(assignmentRepo, annotationRepo, qualityCheckRepo,
			&mockAssignmentService{}, workflowService, scoreService, &mockNotifier{})

		check, err := svc.Resolve(context.Background(), 1, 50, "A", "A is correct")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if check.Status != entity.QualityCheckResolved || check.SelectedSide != "A" {
			t.Errorf("check = %+v, want resolved side A", check)
		}
		if statuses[100] != entity.AnnotationStatusApproved {
			t.Errorf("annotation A status = %s, want APPROVED", statuses[100])
		}
		if statuses[200] != entity.AnnotationStatusRejected {
			t.Errorf("annotation B status = %s, want REJECTED", statuses[200])
		}
		if review.Status != entity.AssignmentStatusCompleted {
			t.Error("resolver's review assignment was not completed")
		}
		if !advanced {
			t.Error("resolution must advance the workflow")
		}
		if award == nil || award.ScoreType != entity.ScoreReviewBonus || award.UserID != 50 {
			t.Errorf("award = %+v, want review bonus for user 50", award)
		}
	})

	t.Run("invalid side", func(t *testing.T) {
		svc := newQualityService(&mockAssignmentRepo{}, &mockAnnotationRepo{}, &mockQualityCheckRepo{},
			&mockAssignmentService{}, &mockWorkflowService{}, &mockScoreService{}, &mockNotifier{})
		if _, err := svc.Resolve(context.Background(), 1, 50, "C", ""); err != ErrInvalidSide {
			t.Errorf("Resolve() error = %v, want ErrInvalidSide", err)
		}
	})

	t.Run("settled check cannot be resolved again", func(t *testing.T) {
		qualityCheckRepo := &mockQualityCheckRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.QualityCheck, error) {
				check := pendingCheck()
				check.Status = entity.QualityCheckResolved
				return check, nil
			},
		}
		svc := newQualityService(&mockAssignmentRepo{}, &mockAnnotationRepo{}, qualityCheckRepo,
			&mockAssignmentService{}, &mockWorkflowService{}, &mockScoreService{}, &mockNotifier{})
		if _, err := svc.Resolve(context.Background(), 1, 50, "B", ""); err != ErrQualityCheckNotPending {
			t.Errorf("Resolve() error = %v, want ErrQualityCheckNotPending", err)
		}
	})

	t.Run("unknown check", func(t *testing.T) {
		svc := newQualityService(&mockAssignmentRepo{}, &mockAnnotationRepo{}, &mockQualityCheckRepo{},
			&mockAssignmentService{}, &mockWorkflowService{}, &mockScoreService{}, &mockNotifier{})
		if _, err := svc.Resolve(context.Background(), 404, 50, "A", ""); err != ErrQualityCheckNotFound {
			t.Errorf("Resolve() error = %v, want ErrQualityCheckNotFound", err)
		}
	})
}

func TestConflictFieldsJSON(t *testing.T) {
	tests := []struct {
		name  string
		dataA string
		dataB string
		want  string
	}{
		{
			name:  "single differing field",
			dataA: `{"amount":"1","vendor":"acme"}`,
			dataB: `{"amount":"2","vendor":"acme"}`,
			want:  `["amount"]`,
		},
		{
			name:  "missing keys on both sides",
			dataA: `{"a":1,"shared":true}`,
			dataB: `{"b":2,"shared":true}`,
			want:  `["a","b"]`,
		},
		{
			name:  "names come out sorted",
			dataA: `{"z":1,"a":1}`,
			dataB: `{"z":2,"a":2}`,
			want:  `["a","z"]`,
		},
		{
			name:  "non-object payloads yield empty list",
			dataA: `"scalar"`,
			dataB: `{"a":1}`,
			want:  `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conflictFieldsJSON(tt.dataA, tt.dataB); got != tt.want {
				t.Errorf("conflictFieldsJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}
