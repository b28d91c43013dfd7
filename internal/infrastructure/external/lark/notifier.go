package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

// Config holds Lark app credentials
type Config struct {
	AppID     string
	AppSecret string
}

// Notifier implements port.ReviewerNotifier over the Lark messaging API
type Notifier struct {
	client *lark.Client
	logger *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(cfg Config, logger *zap.Logger) *Notifier {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return &Notifier{
		client: client,
		logger: logger,
	}
}

// NotifyConflict sends the reviewer a text message describing the conflict
func (n *Notifier) NotifyConflict(ctx context.Context, reviewer *entity.User, notification port.ConflictNotification) error {
	if reviewer.LarkID == "" {
		n.logger.Info("Reviewer has no Lark ID, skipping notification",
			zap.Int64("reviewer_id", reviewer.ID))
		return nil
	}

	text := fmt.Sprintf(
		"Annotation conflict on task #%d (%s).\nConflicting fields: %s\nQuality check #%d is waiting for your resolution.",
		notification.TaskID,
		notification.TaskTitle,
		fieldList(notification.ConflictFields),
		notification.QualityCheckID,
	)
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeOpenId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(reviewer.LarkID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send Lark message",
			zap.Int64("reviewer_id", reviewer.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		n.logger.Error("Lark message rejected",
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("lark message rejected: %s", resp.Msg)
	}

	n.logger.Info("Conflict notification sent",
		zap.Int64("reviewer_id", reviewer.ID),
		zap.Int64("task_id", notification.TaskID))
	return nil
}

// NoopNotifier drops notifications. Used when no Lark app is configured.
type NoopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier creates a notifier that only logs
func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

// NotifyConflict logs the conflict and returns
func (n *NoopNotifier) NotifyConflict(_ context.Context, reviewer *entity.User, notification port.ConflictNotification) error {
	n.logger.Info("Lark messaging disabled, conflict notification dropped",
		zap.Int64("reviewer_id", reviewer.ID),
		zap.Int64("task_id", notification.TaskID))
	return nil
}

func fieldList(fields []string) string {
	if len(fields) == 0 {
		return "(entire payload)"
	}
	return strings.Join(fields, ", ")
}

// Verify interface compliance
var (
	_ port.ReviewerNotifier = (*Notifier)(nil)
	_ port.ReviewerNotifier = (*NoopNotifier)(nil)
)
