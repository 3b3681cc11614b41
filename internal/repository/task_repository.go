package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Fabian-Z77/StudySpace/internal/model"
)

// updatableColumns lists the columns a partial update may touch.
var updatableColumns = map[string]struct{}{
	"title":             {},
	"description":       {},
	"category_id":       {},
	"task_date":         {},
	"weekday":           {},
	"days_remaining":    {},
	"minutes_remaining": {},
	"time_unit":         {},
	"next_review_date":  {},
	"review_at":         {},
	"reminder_id":       {},
	"position":          {},
	"is_completed":      {},
	"completed_at":      {},
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ListByUser returns every task of the user ordered by position.
func (r *TaskRepository) ListByUser(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("position ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListDueOn returns the open tasks of the user that fall on the given day.
func (r *TaskRepository) ListDueOn(ctx context.Context, userID uint, day string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_date = ? AND is_completed = ?", userID, day, false).
		Order("review_at ASC, position ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// Update writes only the given columns; every other column is left as stored.
func (r *TaskRepository) Update(ctx context.Context, userID, taskID uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	for column := range fields {
		if _, ok := updatableColumns[column]; !ok {
			return fmt.Errorf("update task: column %q is not updatable", column)
		}
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, taskID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) error {
	task.IsCompleted = true
	task.CompletedAt = &completedAt
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// Delete removes a task for the given user.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// DeleteOnOrBefore removes the user's tasks dated on or before cutoff (YYYY-MM-DD).
func (r *TaskRepository) DeleteOnOrBefore(ctx context.Context, userID uint, cutoff string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND task_date <> '' AND task_date <= ?", userID, cutoff).
		Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}
