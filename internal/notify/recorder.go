package notify

import (
	"context"
	"encoding/json"

	"reservas-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder stores each notification in notification_logs and then forwards
// it to the next notifier. The log row records whether delivery succeeded.
type Recorder struct {
	db     *gorm.DB
	next   Notifier
	logger *zap.Logger
}

func NewRecorder(db *gorm.DB, next Notifier, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, next: next, logger: logger}
}

func (r *Recorder) Notify(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	sendErr := r.next.Notify(ctx, n)

	entry := models.NotificationLog{
		MessageID:   n.ID,
		RecipientID: n.RecipientUserID,
		Email:       n.Email,
		Kind:        string(n.Kind),
		Message:     n.Message,
		Delivered:   sendErr == nil,
	}
	if n.Details != nil {
		if b, err := json.Marshal(n.Details); err == nil {
			entry.Details = datatypes.JSON(b)
		}
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		r.logger.Warn("Failed to record notification", zap.String("id", n.ID), zap.Error(err))
	}

	return sendErr
}
