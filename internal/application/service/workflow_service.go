package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

// ErrNotAdmin indicates a close was attempted by a non-administrator
var ErrNotAdmin = errors.New("only administrators may close a task")

// stage binds one assignment stage to its in-progress and completed statuses.
// REVIEW assignments created for conflict resolution gate the same stage as
// inspection; both map to the reviewer role.
type stage struct {
	types  []entity.AssignmentType
	active entity.TaskStatus
	done   entity.TaskStatus
	weight int
}

var stages = []stage{
	{[]entity.AssignmentType{entity.AssignmentTypeAIAnnotation}, entity.TaskStatusAIProcessing, entity.TaskStatusAICompleted, 10},
	{[]entity.AssignmentType{entity.AssignmentTypeAnnotation}, entity.TaskStatusAnnotating, entity.TaskStatusAnnotated, 40},
	{[]entity.AssignmentType{entity.AssignmentTypeInspection, entity.AssignmentTypeReview}, entity.TaskStatusInspecting, entity.TaskStatusInspected, 30},
	{[]entity.AssignmentType{entity.AssignmentTypeExpertReview}, entity.TaskStatusExpertReviewing, entity.TaskStatusExpertReviewed, 20},
}

// DetermineNextStatus computes where a task should sit given its assignments.
// It is a pure function: stages with no assignments are skipped, the first
// incomplete stage pins the task to that stage's in-progress status, and the
// result never moves the task backward.
func DetermineNextStatus(current entity.TaskStatus, assignments []*entity.TaskAssignment) entity.TaskStatus {
	if current == entity.TaskStatusClosed {
		return current
	}

	candidate := current
	sawAny := false
	for _, st := range stages {
		total, completed := countStage(st, assignments)
		if total == 0 {
			continue
		}
		sawAny = true
		if completed < total {
			candidate = st.active
			break
		}
		candidate = st.done
	}
	if !sawAny {
		return current
	}
	if candidate.Rank() < current.Rank() {
		return current
	}
	return candidate
}

// Progress estimates completion percent from stage weights. Empty stages
// contribute nothing; terminal tasks report 100.
func Progress(status entity.TaskStatus, assignments []*entity.TaskAssignment) int {
	if status.IsTerminal() {
		return 100
	}

	progress := 0
	for _, st := range stages {
		total, completed := countStage(st, assignments)
		if total == 0 {
			continue
		}
		progress += st.weight * completed / total
	}
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

func countStage(st stage, assignments []*entity.TaskAssignment) (total, completed int) {
	for _, a := range assignments {
		for _, t := range st.types {
			if a.AssignmentType == t {
				total++
				if a.Status == entity.AssignmentStatusCompleted {
					completed++
				}
				break
			}
		}
	}
	return total, completed
}

// WorkflowStatus is the task position plus its computed progress
type WorkflowStatus struct {
	Task        *entity.Task             `json:"task"`
	Assignments []*entity.TaskAssignment `json:"assignments"`
	Progress    int                      `json:"progress"`
}

// WorkflowService moves tasks through the staged annotation lifecycle
type WorkflowService interface {
	AdvanceTask(ctx context.Context, taskID int64) (*entity.Task, error)
	GetStatus(ctx context.Context, taskID int64) (*WorkflowStatus, error)
	CloseTask(ctx context.Context, taskID, adminID int64) error
}

type workflowServiceImpl struct {
	taskRepo       port.TaskRepository
	assignmentRepo port.AssignmentRepository
	userRepo       port.UserRepository
	scoreService   ScoreService
	logger         Logger
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	taskRepo port.TaskRepository,
	assignmentRepo port.AssignmentRepository,
	userRepo port.UserRepository,
	scoreService ScoreService,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		taskRepo:       taskRepo,
		assignmentRepo: assignmentRepo,
		userRepo:       userRepo,
		scoreService:   scoreService,
		logger:         logger,
	}
}

// AdvanceTask recomputes and persists the task status. When the task reaches
// a terminal status, every annotator who completed an ANNOTATION assignment
// receives the task completion reward.
func (s *workflowServiceImpl) AdvanceTask(ctx context.Context, taskID int64) (*entity.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	assignments, err := s.assignmentRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get assignments: %w", err)
	}

	next := DetermineNextStatus(task.Status, assignments)
	if next == task.Status {
		return task, nil
	}

	wasTerminal := task.Status.IsTerminal()
	if err := s.taskRepo.UpdateStatus(ctx, taskID, next); err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	s.logger.Info("Task advanced",
		"task_id", taskID,
		"from", string(task.Status),
		"to", string(next))
	task.Status = next

	if next.IsTerminal() && !wasTerminal {
		s.rewardAnnotators(ctx, taskID, assignments)
	}

	return task, nil
}

// GetStatus returns the task, its assignments and the weighted progress
func (s *workflowServiceImpl) GetStatus(ctx context.Context, taskID int64) (*WorkflowStatus, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	assignments, err := s.assignmentRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get assignments: %w", err)
	}

	return &WorkflowStatus{
		Task:        task,
		Assignments: assignments,
		Progress:    Progress(task.Status, assignments),
	}, nil
}

// CloseTask forces a task to CLOSED. Administrative action only.
func (s *workflowServiceImpl) CloseTask(ctx context.Context, taskID, adminID int64) error {
	admin, err := s.userRepo.GetByID(ctx, adminID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if admin == nil {
		return ErrUserNotFound
	}
	if admin.Role != entity.RoleAdmin {
		return ErrNotAdmin
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return ErrTaskNotFound
	}

	if err := s.taskRepo.UpdateStatus(ctx, taskID, entity.TaskStatusClosed); err != nil {
		return fmt.Errorf("close task: %w", err)
	}
	s.logger.Info("Task closed", "task_id", taskID, "admin_id", adminID)
	return nil
}

func (s *workflowServiceImpl) rewardAnnotators(ctx context.Context, taskID int64, assignments []*entity.TaskAssignment) {
	for _, a := range assignments {
		if a.AssignmentType != entity.AssignmentTypeAnnotation || a.Status != entity.AssignmentStatusCompleted {
			continue
		}
		if err := s.scoreService.Award(ctx, AwardRequest{
			UserID:      a.UserID,
			ScoreType:   entity.ScoreTaskCompletion,
			TaskID:      &taskID,
			Description: "task completed",
		}); err != nil {
			s.logger.Error("Failed to award task completion",
				"error", err, "user_id", a.UserID, "task_id", taskID)
		}
	}
}
