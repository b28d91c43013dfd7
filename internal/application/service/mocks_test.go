package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/archive"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

// Mock repositories

type mockTaskRepo struct {
	createFunc          func(ctx context.Context, task *entity.Task) error
	getByIDFunc         func(ctx context.Context, id int64) (*entity.Task, error)
	updateFunc          func(ctx context.Context, task *entity.Task) error
	updateStatusFunc    func(ctx context.Context, id int64, status entity.TaskStatus) error
	setBatchFunc        func(ctx context.Context, id int64, batchID, batchName string, submittedAt time.Time) error
	setSubmittedAtFunc  func(ctx context.Context, id int64, submittedAt time.Time) error
	listFunc            func(ctx context.Context, status entity.TaskStatus, limit, offset int) ([]*entity.Task, error)
	getByDocumentIDFunc func(ctx context.Context, documentID int64) ([]*entity.Task, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	task.ID = 1
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Task{ID: id, Title: "task", Status: entity.TaskStatusCreated}, nil
}

func (m *mockTaskRepo) Update(ctx context.Context, task *entity.Task) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, task)
	}
	return nil
}

func (m *mockTaskRepo) UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockTaskRepo) SetBatch(ctx context.Context, id int64, batchID, batchName string, submittedAt time.Time) error {
	if m.setBatchFunc != nil {
		return m.setBatchFunc(ctx, id, batchID, batchName, submittedAt)
	}
	return nil
}

func (m *mockTaskRepo) SetSubmittedAt(ctx context.Context, id int64, submittedAt time.Time) error {
	if m.setSubmittedAtFunc != nil {
		return m.setSubmittedAtFunc(ctx, id, submittedAt)
	}
	return nil
}

func (m *mockTaskRepo) List(ctx context.Context, status entity.TaskStatus, limit, offset int) ([]*entity.Task, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, status, limit, offset)
	}
	return []*entity.Task{}, nil
}

func (m *mockTaskRepo) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.Task, error) {
	if m.getByDocumentIDFunc != nil {
		return m.getByDocumentIDFunc(ctx, documentID)
	}
	return []*entity.Task{}, nil
}

type mockAssignmentRepo struct {
	createFunc            func(ctx context.Context, assignment *entity.TaskAssignment) error
	getByIDFunc           func(ctx context.Context, id int64) (*entity.TaskAssignment, error)
	getByTaskIDFunc       func(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error)
	getByTaskAndTypeFunc  func(ctx context.Context, taskID int64, assignmentType entity.AssignmentType) ([]*entity.TaskAssignment, error)
	existsFunc            func(ctx context.Context, taskID, userID int64, assignmentType entity.AssignmentType) (bool, error)
	updateFunc            func(ctx context.Context, assignment *entity.TaskAssignment) error
	countActiveByUserFunc func(ctx context.Context, userID int64, assignmentType entity.AssignmentType) (int, error)
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *entity.TaskAssignment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, assignment)
	}
	assignment.ID = 1
	return nil
}

func (m *mockAssignmentRepo) GetByID(ctx context.Context, id int64) (*entity.TaskAssignment, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockAssignmentRepo) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error) {
	if m.getByTaskIDFunc != nil {
		return m.getByTaskIDFunc(ctx, taskID)
	}
	return []*entity.TaskAssignment{}, nil
}

func (m *mockAssignmentRepo) GetByTaskAndType(ctx context.Context, taskID int64, assignmentType entity.AssignmentType) ([]*entity.TaskAssignment, error) {
	if m.getByTaskAndTypeFunc != nil {
		return m.getByTaskAndTypeFunc(ctx, taskID, assignmentType)
	}
	return []*entity.TaskAssignment{}, nil
}

func (m *mockAssignmentRepo) Exists(ctx context.Context, taskID, userID int64, assignmentType entity.AssignmentType) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, taskID, userID, assignmentType)
	}
	return false, nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, assignment *entity.TaskAssignment) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, assignment)
	}
	return nil
}

func (m *mockAssignmentRepo) CountActiveByUser(ctx context.Context, userID int64, assignmentType entity.AssignmentType) (int, error) {
	if m.countActiveByUserFunc != nil {
		return m.countActiveByUserFunc(ctx, userID, assignmentType)
	}
	return 0, nil
}

type mockAnnotationRepo struct {
	createFunc               func(ctx context.Context, annotation *entity.Annotation) error
	getByIDFunc              func(ctx context.Context, id int64) (*entity.Annotation, error)
	getByAssignmentIDFunc    func(ctx context.Context, assignmentID int64) (*entity.Annotation, error)
	getByTaskIDFunc          func(ctx context.Context, taskID int64) ([]*entity.Annotation, error)
	getSubmittedByTaskIDFunc func(ctx context.Context, taskID int64) ([]*entity.Annotation, error)
	updateFunc               func(ctx context.Context, annotation *entity.Annotation) error
}

func (m *mockAnnotationRepo) Create(ctx context.Context, annotation *entity.Annotation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, annotation)
	}
	annotation.ID = 1
	return nil
}

func (m *mockAnnotationRepo) GetByID(ctx context.Context, id int64) (*entity.Annotation, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockAnnotationRepo) GetByAssignmentID(ctx context.Context, assignmentID int64) (*entity.Annotation, error) {
	if m.getByAssignmentIDFunc != nil {
		return m.getByAssignmentIDFunc(ctx, assignmentID)
	}
	return nil, nil
}

func (m *mockAnnotationRepo) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Annotation, error) {
	if m.getByTaskIDFunc != nil {
		return m.getByTaskIDFunc(ctx, taskID)
	}
	return []*entity.Annotation{}, nil
}

func (m *mockAnnotationRepo) GetSubmittedByTaskID(ctx context.Context, taskID int64) ([]*entity.Annotation, error) {
	if m.getSubmittedByTaskIDFunc != nil {
		return m.getSubmittedByTaskIDFunc(ctx, taskID)
	}
	return []*entity.Annotation{}, nil
}

func (m *mockAnnotationRepo) Update(ctx context.Context, annotation *entity.Annotation) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, annotation)
	}
	return nil
}

type mockQualityCheckRepo struct {
	createFunc      func(ctx context.Context, check *entity.QualityCheck) error
	getByIDFunc     func(ctx context.Context, id int64) (*entity.QualityCheck, error)
	getByTaskIDFunc func(ctx context.Context, taskID int64) (*entity.QualityCheck, error)
	updateFunc      func(ctx context.Context, check *entity.QualityCheck) error
	listPendingFunc func(ctx context.Context, limit, offset int) ([]*entity.QualityCheck, error)
}

func (m *mockQualityCheckRepo) Create(ctx context.Context, check *entity.QualityCheck) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, check)
	}
	check.ID = 1
	return nil
}

func (m *mockQualityCheckRepo) GetByID(ctx context.Context, id int64) (*entity.QualityCheck, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockQualityCheckRepo) GetByTaskID(ctx context.Context, taskID int64) (*entity.QualityCheck, error) {
	if m.getByTaskIDFunc != nil {
		return m.getByTaskIDFunc(ctx, taskID)
	}
	return nil, nil
}

func (m *mockQualityCheckRepo) Update(ctx context.Context, check *entity.QualityCheck) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, check)
	}
	return nil
}

func (m *mockQualityCheckRepo) ListPending(ctx context.Context, limit, offset int) ([]*entity.QualityCheck, error) {
	if m.listPendingFunc != nil {
		return m.listPendingFunc(ctx, limit, offset)
	}
	return []*entity.QualityCheck{}, nil
}

type mockUserRepo struct {
	getByIDFunc          func(ctx context.Context, id int64) (*entity.User, error)
	getActiveByRolesFunc func(ctx context.Context, roles ...entity.Role) ([]*entity.User, error)
	updateScoreFunc      func(ctx context.Context, id int64, score int) error
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.User{ID: id, Username: "user", Role: entity.RoleAnnotator, Status: entity.UserStatusActive}, nil
}

func (m *mockUserRepo) GetActiveByRoles(ctx context.Context, roles ...entity.Role) ([]*entity.User, error) {
	if m.getActiveByRolesFunc != nil {
		return m.getActiveByRolesFunc(ctx, roles...)
	}
	return []*entity.User{}, nil
}

func (m *mockUserRepo) UpdateScore(ctx context.Context, id int64, score int) error {
	if m.updateScoreFunc != nil {
		return m.updateScoreFunc(ctx, id, score)
	}
	return nil
}

type mockDocumentRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*entity.Document, error)
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	doc.ID = 1
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Document{ID: id, FilePath: "/tmp/doc.pdf"}, nil
}

type mockScoreRepo struct {
	createFunc      func(ctx context.Context, entry *entity.ScoreEntry) error
	getByUserIDFunc func(ctx context.Context, userID int64, limit, offset int) ([]*entity.ScoreEntry, error)
}

func (m *mockScoreRepo) Create(ctx context.Context, entry *entity.ScoreEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, entry)
	}
	entry.ID = 1
	return nil
}

func (m *mockScoreRepo) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*entity.ScoreEntry, error) {
	if m.getByUserIDFunc != nil {
		return m.getByUserIDFunc(ctx, userID, limit, offset)
	}
	return []*entity.ScoreEntry{}, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// Mock infrastructure adapters

type mockArchiveStore struct {
	updateFunc func(ctx context.Context, documentID int64, mutate func(*archive.Archive)) bool
	loadFunc   func(documentID int64) (*archive.Archive, error)
}

func (m *mockArchiveStore) Update(ctx context.Context, documentID int64, mutate func(*archive.Archive)) bool {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, documentID, mutate)
	}
	mutate(archive.New())
	return true
}

func (m *mockArchiveStore) Load(documentID int64) (*archive.Archive, error) {
	if m.loadFunc != nil {
		return m.loadFunc(documentID)
	}
	return archive.New(), nil
}

func (m *mockArchiveStore) Path(documentID int64) string {
	return ""
}

type mockAIAnnotator struct {
	annotateFunc func(ctx context.Context, documentText string, fields []string) (*port.AIAnnotationResult, error)
}

func (m *mockAIAnnotator) Annotate(ctx context.Context, documentText string, fields []string) (*port.AIAnnotationResult, error) {
	if m.annotateFunc != nil {
		return m.annotateFunc(ctx, documentText, fields)
	}
	return &port.AIAnnotationResult{Fields: map[string]json.RawMessage{}, Confidence: 0.9, Model: "test"}, nil
}

type mockDocReader struct {
	extractTextFunc func(ctx context.Context, path string) (string, error)
}

func (m *mockDocReader) ExtractText(ctx context.Context, path string) (string, error) {
	if m.extractTextFunc != nil {
		return m.extractTextFunc(ctx, path)
	}
	return "document text", nil
}

type mockNotifier struct {
	notifyConflictFunc func(ctx context.Context, reviewer *entity.User, notification port.ConflictNotification) error
}

func (m *mockNotifier) NotifyConflict(ctx context.Context, reviewer *entity.User, notification port.ConflictNotification) error {
	if m.notifyConflictFunc != nil {
		return m.notifyConflictFunc(ctx, reviewer, notification)
	}
	return nil
}

// Mock application services

type mockQualityService struct {
	triggerOnSubmissionFunc func(ctx context.Context, taskID int64) (*entity.QualityCheck, error)
}

func (m *mockQualityService) TriggerOnSubmission(ctx context.Context, taskID int64) (*entity.QualityCheck, error) {
	if m.triggerOnSubmissionFunc != nil {
		return m.triggerOnSubmissionFunc(ctx, taskID)
	}
	return nil, nil
}

func (m *mockQualityService) Resolve(ctx context.Context, checkID, resolverID int64, side, notes string) (*entity.QualityCheck, error) {
	return nil, nil
}

func (m *mockQualityService) GetByID(ctx context.Context, checkID int64) (*entity.QualityCheck, error) {
	return nil, nil
}

func (m *mockQualityService) ListPending(ctx context.Context, limit, offset int) ([]*entity.QualityCheck, error) {
	return nil, nil
}

type mockWorkflowService struct {
	advanceTaskFunc func(ctx context.Context, taskID int64) (*entity.Task, error)
}

func (m *mockWorkflowService) AdvanceTask(ctx context.Context, taskID int64) (*entity.Task, error) {
	if m.advanceTaskFunc != nil {
		return m.advanceTaskFunc(ctx, taskID)
	}
	return &entity.Task{ID: taskID}, nil
}

func (m *mockWorkflowService) GetStatus(ctx context.Context, taskID int64) (*WorkflowStatus, error) {
	return nil, nil
}

func (m *mockWorkflowService) CloseTask(ctx context.Context, taskID, adminID int64) error {
	return nil
}

type mockScoreService struct {
	awardFunc func(ctx context.Context, req AwardRequest) error
}

func (m *mockScoreService) Award(ctx context.Context, req AwardRequest) error {
	if m.awardFunc != nil {
		return m.awardFunc(ctx, req)
	}
	return nil
}

func (m *mockScoreService) History(ctx context.Context, userID int64, limit, offset int) ([]*entity.ScoreEntry, error) {
	return []*entity.ScoreEntry{}, nil
}

type mockAssignmentService struct {
	assignFunc         func(ctx context.Context, taskID, userID int64, assignmentType entity.AssignmentType) (*entity.TaskAssignment, error)
	selectReviewerFunc func(ctx context.Context) (*entity.User, error)
}

func (m *mockAssignmentService) Assign(ctx context.Context, taskID, userID int64, assignmentType entity.AssignmentType) (*entity.TaskAssignment, error) {
	if m.assignFunc != nil {
		return m.assignFunc(ctx, taskID, userID, assignmentType)
	}
	return &entity.TaskAssignment{TaskID: taskID, UserID: userID, AssignmentType: assignmentType}, nil
}

func (m *mockAssignmentService) AutoAssignDouble(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error) {
	return nil, nil
}

func (m *mockAssignmentService) SelectReviewer(ctx context.Context) (*entity.User, error) {
	if m.selectReviewerFunc != nil {
		return m.selectReviewerFunc(ctx)
	}
	return &entity.User{ID: 99, Username: "reviewer", Role: entity.RoleReviewer}, nil
}

func (m *mockAssignmentService) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error) {
	return []*entity.TaskAssignment{}, nil
}
