package port

import (
	"context"
	"encoding/json"

	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

// AIAnnotationResult represents field values extracted by the AI annotator
type AIAnnotationResult struct {
	Fields     map[string]json.RawMessage
	Confidence float64
	Model      string
}

// AIAnnotator defines automated pre-annotation operations
type AIAnnotator interface {
	Annotate(ctx context.Context, documentText string, fields []string) (*AIAnnotationResult, error)
}

// ConflictNotification carries what a reviewer needs to pick up a conflict case
type ConflictNotification struct {
	TaskID         int64
	TaskTitle      string
	QualityCheckID int64
	ConflictFields []string
}

// ReviewerNotifier defines message delivery to reviewers
type ReviewerNotifier interface {
	NotifyConflict(ctx context.Context, reviewer *entity.User, notification ConflictNotification) error
}

// DocumentTextReader extracts plain text from a stored document file
type DocumentTextReader interface {
	ExtractText(ctx context.Context, path string) (string, error)
}
