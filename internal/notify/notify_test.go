package notify

import (
	"context"
	"errors"
	"testing"

	"reservas-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.NotificationLog{}))
	return db
}

func TestRecorderStoresDeliveredNotification(t *testing.T) {
	db := setupTestDB(t)
	mem := NewMemory()
	r := NewRecorder(db, mem, zap.NewNop())

	amount := 3000.0
	id := uint(9)
	err := r.Notify(context.Background(), Notification{
		RecipientUserID: 4,
		Email:           "ana@example.com",
		Kind:            KindConfirmation,
		Message:         "reservation confirmed",
		Details:         &Details{Facility: "Court 1", Amount: &amount, ReservationID: &id},
	})
	require.NoError(t, err)
	require.Len(t, mem.Sent(), 1)
	assert.NotEmpty(t, mem.Sent()[0].ID)

	var entry models.NotificationLog
	require.NoError(t, db.First(&entry).Error)
	assert.True(t, entry.Delivered)
	assert.Equal(t, "confirmation", entry.Kind)
	assert.Contains(t, string(entry.Details), `"facility":"Court 1"`)
	assert.Contains(t, string(entry.Details), `"reservation_id":9`)
}

func TestRecorderKeepsFailedDelivery(t *testing.T) {
	db := setupTestDB(t)
	mem := &Memory{Err: errors.New("broker down")}
	r := NewRecorder(db, mem, zap.NewNop())

	err := r.Notify(context.Background(), Notification{RecipientUserID: 1, Kind: KindPenalty, Message: "x"})
	assert.Error(t, err)

	var entry models.NotificationLog
	require.NoError(t, db.First(&entry).Error)
	assert.False(t, entry.Delivered)
	assert.Equal(t, "broker down", entry.Error)
}

func TestMemoryOfKind(t *testing.T) {
	m := NewMemory()
	_ = m.Notify(context.Background(), Notification{Kind: KindPayment})
	_ = m.Notify(context.Background(), Notification{Kind: KindReminder})
	_ = m.Notify(context.Background(), Notification{Kind: KindPayment})
	assert.Len(t, m.OfKind(KindPayment), 2)
	assert.Equal(t, "notify.reminder", RoutingKey(KindReminder))
}
