package port

import (
	"context"
	"time"

	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	Update(ctx context.Context, task *entity.Task) error
	UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error
	SetBatch(ctx context.Context, id int64, batchID, batchName string, submittedAt time.Time) error
	SetSubmittedAt(ctx context.Context, id int64, submittedAt time.Time) error
	List(ctx context.Context, status entity.TaskStatus, limit, offset int) ([]*entity.Task, error)
	GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.Task, error)
}

// AssignmentRepository defines persistence operations for TaskAssignment
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *entity.TaskAssignment) error
	GetByID(ctx context.Context, id int64) (*entity.TaskAssignment, error)
	GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error)
	GetByTaskAndType(ctx context.Context, taskID int64, assignmentType entity.AssignmentType) ([]*entity.TaskAssignment, error)
	Exists(ctx context.Context, taskID, userID int64, assignmentType entity.AssignmentType) (bool, error)
	Update(ctx context.Context, assignment *entity.TaskAssignment) error
	CountActiveByUser(ctx context.Context, userID int64, assignmentType entity.AssignmentType) (int, error)
}

// AnnotationRepository defines persistence operations for Annotation
type AnnotationRepository interface {
	Create(ctx context.Context, annotation *entity.Annotation) error
	GetByID(ctx context.Context, id int64) (*entity.Annotation, error)
	GetByAssignmentID(ctx context.Context, assignmentID int64) (*entity.Annotation, error)
	GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Annotation, error)
	GetSubmittedByTaskID(ctx context.Context, taskID int64) ([]*entity.Annotation, error)
	Update(ctx context.Context, annotation *entity.Annotation) error
}

// QualityCheckRepository defines persistence operations for QualityCheck
type QualityCheckRepository interface {
	Create(ctx context.Context, check *entity.QualityCheck) error
	GetByID(ctx context.Context, id int64) (*entity.QualityCheck, error)
	GetByTaskID(ctx context.Context, taskID int64) (*entity.QualityCheck, error)
	Update(ctx context.Context, check *entity.QualityCheck) error
	ListPending(ctx context.Context, limit, offset int) ([]*entity.QualityCheck, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetActiveByRoles(ctx context.Context, roles ...entity.Role) ([]*entity.User, error)
	UpdateScore(ctx context.Context, id int64, score int) error
}

// DocumentRepository defines persistence operations for Document
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id int64) (*entity.Document, error)
}

// ScoreRepository defines persistence operations for ScoreEntry history rows
type ScoreRepository interface {
	Create(ctx context.Context, entry *entity.ScoreEntry) error
	GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*entity.ScoreEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
