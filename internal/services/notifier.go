package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source=notifier.go -destination=notifier_mock.go -package=services

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// KafkaNotifier publishes user notifications to Kafka, keyed by user id so a
// user's events stay ordered within a partition.
type KafkaNotifier struct {
	writer  KafkaWriter
	timeout time.Duration
	now     func() time.Time
}

// NewKafkaNotifier creates a notifier. A nil writer disables publishing.
func NewKafkaNotifier(writer KafkaWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, timeout: 5 * time.Second, now: time.Now}
}

// Notify publishes a notification. Failures are logged and never returned.
func (n *KafkaNotifier) Notify(ctx context.Context, userID int64, kind models.NotificationKind, payload models.NotificationData) {
	msg := models.Notification{
		NotificationID: uuid.NewString(),
		Timestamp:      n.now().Unix(),
		UserID:         userID,
		Kind:           kind,
		Payload:        payload,
	}

	if n.writer == nil {
		logger.Log.Warnw("Kafka writer not configured, skipping notification",
			"notification_id", msg.NotificationID, "user_id", userID, "kind", kind)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Errorw("Failed to marshal notification", "notification_id", msg.NotificationID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: data,
	})
	if err != nil {
		logger.Log.Errorw("Failed to publish notification to Kafka",
			"notification_id", msg.NotificationID, "user_id", userID, "kind", kind, "error", err)
		return
	}
	logger.Log.Infow("Notification published to Kafka",
		"notification_id", msg.NotificationID, "user_id", userID, "kind", kind)
}
