package services

import (
	"context"
	"errors"

	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/logger"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

// NotificationService persists in-app notifications and fans each one out to
// the live stream and the configured IM webhook.
type NotificationService struct {
	db     *gorm.DB
	cfg    *config.NotifierConfig
	stream *NotificationStream
}

func NewNotificationService(db *gorm.DB, cfg *config.NotifierConfig, stream *NotificationStream) *NotificationService {
	return &NotificationService{db: db, cfg: cfg, stream: stream}
}

type NotificationListRequest struct {
	Page       int  `form:"page"`
	PageSize   int  `form:"page_size"`
	UnreadOnly bool `form:"unread_only"`
}

type NotificationListResponse struct {
	Total    int64                 `json:"total"`
	Unread   int64                 `json:"unread"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []models.Notification `json:"items"`
}

// Deliver is the queue processor: it writes the in-app row, pushes to any
// live stream subscriber, and posts to the IM webhook. Webhook failures are
// logged and swallowed; the in-app row is the durable record.
func (s *NotificationService) Deliver(ctx context.Context, task *NotifyTask) error {
	notification := models.Notification{
		UserID:  task.UserID,
		Message: task.Message,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return err
	}

	if s.stream != nil {
		s.stream.Publish(task.UserID, &notification)
	}

	if s.cfg != nil && s.cfg.Enabled && s.cfg.Webhook != "" {
		if err := s.sendWebhook(task.Message); err != nil {
			logger.Warnf("[Notification] Webhook delivery failed: %v", err)
		}
	}

	return nil
}

func (s *NotificationService) sendWebhook(message string) error {
	sender := webhookSenderFor(s.cfg.Type)
	return sender.SendText(s.cfg.Webhook, s.cfg.Secret, message)
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(userID uint, req *NotificationListRequest) (*NotificationListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if req.UnreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	query.Count(&total)

	var unread int64
	s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&unread)

	var items []models.Notification
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &NotificationListResponse{
		Total:    total,
		Unread:   unread,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// MarkRead flags a single notification as read. Users can only touch their
// own rows.
func (s *NotificationService) MarkRead(userID, notificationID uint) error {
	var notification models.Notification
	err := s.db.Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("notification not found")
		}
		return err
	}

	if notification.Read {
		return nil
	}
	return s.db.Model(&notification).Update("read", true).Error
}

// MarkAllRead flags every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(userID uint) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}
