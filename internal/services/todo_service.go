package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tasklit/tasklit/internal/models"
	apperrors "github.com/tasklit/tasklit/pkg/errors"
)

// ErrTodoNotFound covers both a missing record and a record owned by someone
// else; callers cannot tell the two apart.
var ErrTodoNotFound = apperrors.New("TODO_NOT_FOUND", "Todo not found", http.StatusNotFound)

// TodoService provides owner-scoped CRUD over todo items. The owner id comes
// from the authenticated session, never from the payload.
type TodoService struct {
	db *gorm.DB
}

// NewTodoService constructs a TodoService instance.
func NewTodoService(db *gorm.DB) (*TodoService, error) {
	if db == nil {
		return nil, errors.New("todo service: db is required")
	}
	return &TodoService{db: db}, nil
}

// CreateTodoInput describes the fields accepted when creating a todo.
type CreateTodoInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
}

// UpdateTodoInput enumerates mutable todo attributes.
type UpdateTodoInput struct {
	Title       *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	Completed   *bool
}

// Create stores a new todo stamped with the owner id.
func (s *TodoService) Create(ctx context.Context, userID string, input CreateTodoInput) (*models.Todo, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}

	priority, err := normalisePriority(input.Priority)
	if err != nil {
		return nil, err
	}

	todo := &models.Todo{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Priority:    priority,
		DueDate:     input.DueDate,
	}

	if err := s.db.WithContext(ctx).Create(todo).Error; err != nil {
		return nil, fmt.Errorf("todo service: create: %w", err)
	}

	return todo, nil
}

// List returns the owner's todos, newest first.
func (s *TodoService) List(ctx context.Context, userID string) ([]models.Todo, error) {
	var todos []models.Todo
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("todo service: list: %w", err)
	}
	return todos, nil
}

// Get loads a single todo owned by the user.
func (s *TodoService) Get(ctx context.Context, userID, id string) (*models.Todo, error) {
	return s.loadOwned(ctx, userID, id)
}

// Update applies partial changes to an owned todo.
func (s *TodoService) Update(ctx context.Context, userID, id string, input UpdateTodoInput) (*models.Todo, error) {
	todo, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("title cannot be empty")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		priority, err := normalisePriority(*input.Priority)
		if err != nil {
			return nil, err
		}
		updates["priority"] = priority
	}
	if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
	}
	if input.Completed != nil {
		updates["completed"] = *input.Completed
	}

	if len(updates) == 0 {
		return todo, nil
	}

	if err := s.db.WithContext(ctx).Model(todo).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("todo service: update: %w", err)
	}

	return s.loadOwned(ctx, userID, id)
}

// Toggle flips the completion flag and persists it.
func (s *TodoService) Toggle(ctx context.Context, userID, id string) (*models.Todo, error) {
	todo, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(todo).Update("completed", !todo.Completed).Error; err != nil {
		return nil, fmt.Errorf("todo service: toggle: %w", err)
	}

	todo.Completed = !todo.Completed
	return todo, nil
}

// Delete removes an owned todo.
func (s *TodoService) Delete(ctx context.Context, userID, id string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Todo{})
	if result.Error != nil {
		return fmt.Errorf("todo service: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTodoNotFound
	}
	return nil
}

func (s *TodoService) loadOwned(ctx context.Context, userID, id string) (*models.Todo, error) {
	var todo models.Todo
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&todo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("todo service: load: %w", err)
	}
	return &todo, nil
}

func normalisePriority(priority string) (string, error) {
	priority = strings.ToLower(strings.TrimSpace(priority))
	switch priority {
	case "":
		return models.PriorityMedium, nil
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return priority, nil
	default:
		return "", apperrors.NewBadRequest("priority must be low, medium, or high")
	}
}
