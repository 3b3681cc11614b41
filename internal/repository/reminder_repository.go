package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Fabian-Z77/StudySpace/internal/model"
)

// ReminderRepository persists scheduled alerts so they survive restarts.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Upsert inserts the reminder or replaces the stored one with the same ID, clearing any
// previous delivery state.
func (r *ReminderRepository) Upsert(ctx context.Context, reminder *model.Reminder) error {
	reminder.SentAt = nil
	reminder.LastError = ""
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"recipient", "fire_at", "title", "body", "data", "sent_at", "last_error", "updated_at"}),
	}).Create(reminder).Error
	if err != nil {
		return fmt.Errorf("upsert reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) FindByID(ctx context.Context, id string) (*model.Reminder, error) {
	var reminder model.Reminder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reminder).Error; err != nil {
		return nil, notFound(err)
	}
	return &reminder, nil
}

// ListPending returns the reminders not delivered yet, earliest first.
func (r *ReminderRepository) ListPending(ctx context.Context) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).Where("sent_at IS NULL").
		Order("fire_at ASC, id ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Reminder{}).Where("id = ?", id).
		Updates(map[string]any{"sent_at": at, "last_error": ""}).Error
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

func (r *ReminderRepository) MarkFailed(ctx context.Context, id string, cause error) error {
	err := r.db.WithContext(ctx).Model(&model.Reminder{}).Where("id = ?", id).
		Update("last_error", cause.Error()).Error
	if err != nil {
		return fmt.Errorf("mark reminder failed: %w", err)
	}
	return nil
}

// Delete removes the reminder; deleting a missing ID is not an error.
func (r *ReminderRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Reminder{}).Error; err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}
