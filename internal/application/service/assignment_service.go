package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var (
	// ErrTaskNotFound indicates the referenced task does not exist
	ErrTaskNotFound = errors.New("task not found")
	// ErrUserNotFound indicates the referenced user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateAssignment indicates the (task, user, type) triple already exists
	ErrDuplicateAssignment = errors.New("assignment already exists for this task, user and type")
	// ErrNotEnoughAnnotators indicates fewer than two eligible annotators are available
	ErrNotEnoughAnnotators = errors.New("not enough active annotators for double annotation")
	// ErrNoReviewerAvailable indicates no active reviewer or expert exists
	ErrNoReviewerAvailable = errors.New("no reviewer available")
	// ErrUserNotEligible indicates the user's role or status does not fit the assignment type
	ErrUserNotEligible = errors.New("user is not eligible for this assignment type")
	// ErrNoEligibleUser indicates auto-selection found nobody who can take the assignment
	ErrNoEligibleUser = errors.New("no eligible user available for this assignment type")
)

// AssignmentService allocates annotation work to users
type AssignmentService interface {
	Assign(ctx context.Context, taskID, userID int64, assignmentType entity.AssignmentType) (*entity.TaskAssignment, error)
	AutoAssignDouble(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error)
	SelectReviewer(ctx context.Context) (*entity.User, error)
	GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error)
}

type assignmentServiceImpl struct {
	taskRepo       port.TaskRepository
	assignmentRepo port.AssignmentRepository
	userRepo       port.UserRepository
	txManager      port.TransactionManager
	logger         Logger
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	taskRepo port.TaskRepository,
	assignmentRepo port.AssignmentRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	logger Logger,
) AssignmentService {
	return &assignmentServiceImpl{
		taskRepo:       taskRepo,
		assignmentRepo: assignmentRepo,
		userRepo:       userRepo,
		txManager:      txManager,
		logger:         logger,
	}
}

// Assign binds one user to one task for one stage type. A zero userID asks
// the allocator to pick the least-loaded eligible user itself; an explicit
// user must be active and hold a role matching the assignment type.
func (s *assignmentServiceImpl) Assign(ctx context.Context, taskID, userID int64, assignmentType entity.AssignmentType) (*entity.TaskAssignment, error) {
	if !assignmentType.Valid() {
		return nil, fmt.Errorf("invalid assignment type: %s", assignmentType)
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	if userID == 0 {
		return s.assignLeastLoaded(ctx, taskID, assignmentType)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Status != entity.UserStatusActive || !assignmentType.Eligible(user.Role) {
		return nil, ErrUserNotEligible
	}

	exists, err := s.assignmentRepo.Exists(ctx, taskID, userID, assignmentType)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if exists {
		return nil, ErrDuplicateAssignment
	}

	assignment := &entity.TaskAssignment{
		TaskID:         taskID,
		UserID:         userID,
		AssignmentType: assignmentType,
		Status:         entity.AssignmentStatusAssigned,
	}
	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	s.logger.Info("Assignment created",
		"task_id", taskID,
		"user_id", userID,
		"type", string(assignmentType))
	return assignment, nil
}

// assignLeastLoaded picks the least-loaded eligible user for the stage type,
// skipping users who already hold the (task, user, type) triple.
func (s *assignmentServiceImpl) assignLeastLoaded(ctx context.Context, taskID int64, assignmentType entity.AssignmentType) (*entity.TaskAssignment, error) {
	candidates, err := s.rankByLoad(ctx, assignmentType, assignmentType.EligibleRoles()...)
	if err != nil {
		return nil, err
	}

	for _, user := range candidates {
		exists, err := s.assignmentRepo.Exists(ctx, taskID, user.ID, assignmentType)
		if err != nil {
			return nil, fmt.Errorf("check assignment: %w", err)
		}
		if exists {
			continue
		}
		assignment := &entity.TaskAssignment{
			TaskID:         taskID,
			UserID:         user.ID,
			AssignmentType: assignmentType,
			Status:         entity.AssignmentStatusAssigned,
		}
		if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
			return nil, fmt.Errorf("create assignment: %w", err)
		}
		s.logger.Info("Assignment auto-selected",
			"task_id", taskID,
			"user_id", user.ID,
			"type", string(assignmentType))
		return assignment, nil
	}
	return nil, ErrNoEligibleUser
}

// AutoAssignDouble picks the two least-loaded active annotators and creates
// an ANNOTATION assignment for each. Double annotation feeds the quality
// comparison, so two distinct users are required.
func (s *assignmentServiceImpl) AutoAssignDouble(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	candidates, err := s.rankByLoad(ctx, entity.AssignmentTypeAnnotation, entity.RoleAnnotator)
	if err != nil {
		return nil, err
	}
	if len(candidates) < 2 {
		return nil, ErrNotEnoughAnnotators
	}

	var assignments []*entity.TaskAssignment
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, user := range candidates[:2] {
			exists, err := s.assignmentRepo.Exists(txCtx, taskID, user.ID, entity.AssignmentTypeAnnotation)
			if err != nil {
				return fmt.Errorf("check assignment: %w", err)
			}
			if exists {
				s.logger.Info("Skipping duplicate auto assignment",
					"task_id", taskID, "user_id", user.ID)
				continue
			}
			assignment := &entity.TaskAssignment{
				TaskID:         taskID,
				UserID:         user.ID,
				AssignmentType: entity.AssignmentTypeAnnotation,
				Status:         entity.AssignmentStatusAssigned,
			}
			if err := s.assignmentRepo.Create(txCtx, assignment); err != nil {
				return fmt.Errorf("create assignment: %w", err)
			}
			assignments = append(assignments, assignment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Double annotation assigned",
		"task_id", taskID,
		"count", len(assignments))
	return assignments, nil
}

// SelectReviewer picks who handles a conflict: any active expert first, then
// the least-loaded active reviewer.
func (s *assignmentServiceImpl) SelectReviewer(ctx context.Context) (*entity.User, error) {
	experts, err := s.userRepo.GetActiveByRoles(ctx, entity.RoleExpert)
	if err != nil {
		return nil, fmt.Errorf("get experts: %w", err)
	}
	if len(experts) > 0 {
		return experts[0], nil
	}

	reviewers, err := s.rankByLoad(ctx, entity.AssignmentTypeReview, entity.RoleReviewer)
	if err != nil {
		return nil, err
	}
	if len(reviewers) == 0 {
		return nil, ErrNoReviewerAvailable
	}
	return reviewers[0], nil
}

// GetByTaskID lists all assignments of a task
func (s *assignmentServiceImpl) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error) {
	return s.assignmentRepo.GetByTaskID(ctx, taskID)
}

// rankByLoad orders active users of the given roles by how many unfinished
// assignments of assignmentType they carry. The repository returns users in
// first-seen order, and the sort below is stable, so ties keep that order.
func (s *assignmentServiceImpl) rankByLoad(ctx context.Context, assignmentType entity.AssignmentType, roles ...entity.Role) ([]*entity.User, error) {
	users, err := s.userRepo.GetActiveByRoles(ctx, roles...)
	if err != nil {
		return nil, fmt.Errorf("get active users: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	loads := make(map[int64]int, len(users))
	for _, user := range users {
		count, err := s.assignmentRepo.CountActiveByUser(ctx, user.ID, assignmentType)
		if err != nil {
			return nil, fmt.Errorf("count active assignments: %w", err)
		}
		loads[user.ID] = count
	}

	ranked := make([]*entity.User, len(users))
	copy(ranked, users)
	// insertion sort keeps the selection stable for equal loads
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && loads[ranked[j].ID] < loads[ranked[j-1].ID]; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked, nil
}
