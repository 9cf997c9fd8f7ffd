package services

import (
	"context"
	"fmt"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

// NotificationService delivers in-app notifications to team members
type NotificationService struct {
	notifications ports.NotificationRepository
	users         ports.UserRepository
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repos Repositories) *NotificationService {
	return &NotificationService{notifications: repos.Notifications, users: repos.Users}
}

// ListMine returns the caller's notifications, newest first
func (s *NotificationService) ListMine(ctx context.Context, identity auth.Identity, unreadOnly bool, limit int) ([]models.Notification, error) {
	return s.notifications.ListByRecipient(ctx, identity.OrganizationID(), actorUserID(ctx, s.users, identity),
		unreadOnly, utils.ClampLimit(limit, 20, constants.MaxLimit))
}

// MarkRead marks one of the caller's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, identity auth.Identity, id string) error {
	ok, err := s.notifications.MarkRead(ctx, identity.OrganizationID(), actorUserID(ctx, s.users, identity), id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError("Notificação", id)
	}
	return nil
}

// MarkAllRead marks every notification of the caller as read
func (s *NotificationService) MarkAllRead(ctx context.Context, identity auth.Identity) (int64, error) {
	return s.notifications.MarkAllRead(ctx, identity.OrganizationID(), actorUserID(ctx, s.users, identity))
}

// Notify creates a notification for recipientID
func (s *NotificationService) Notify(ctx context.Context, orgID, recipientID, notificationType, title, message string, link *string) error {
	if recipientID == "" {
		return nil
	}
	return s.notifications.Create(ctx, newNotification(orgID, recipientID, notificationType, title, message, link))
}

// NotifyPayment tells the CS owner of a student about a payment event
func (s *NotificationService) NotifyPayment(ctx context.Context, student *models.Student, notificationType string, value float64) error {
	if student == nil || student.AssignedCS == nil || *student.AssignedCS == "" {
		return nil
	}
	var title, message string
	switch notificationType {
	case constants.NotificationPaymentConfirmed:
		title = "Pagamento confirmado"
		message = fmt.Sprintf("Pagamento de R$ %.2f de %s foi confirmado", value, student.Name)
	case constants.NotificationPaymentReceived:
		title = "Pagamento recebido"
		message = fmt.Sprintf("Pagamento de R$ %.2f de %s foi recebido", value, student.Name)
	case constants.NotificationPaymentOverdue:
		title = "Pagamento em atraso"
		message = fmt.Sprintf("Pagamento de R$ %.2f de %s está em atraso", value, student.Name)
	default:
		return nil
	}
	link := "/students/" + student.ID
	return s.Notify(ctx, student.OrganizationID, *student.AssignedCS, notificationType, title, message, &link)
}
