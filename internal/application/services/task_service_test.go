package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

func TestTaskService_SendDueReminders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)
	withFrozenTime(t, now)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	assignee := "user_cs"
	leadID := "lead_1"
	earlier := now.Add(-time.Hour)
	tasks := new(mockTaskRepository)
	tasks.On("ListDueUnreminded", ctx, from, from.Add(24*time.Hour)).Return([]models.Task{
		{ID: "task_assigned", OrganizationID: "org_1", Description: "Ligar para a Ana", AssignedTo: &assignee, LeadID: &leadID, CreatedBy: "user_owner"},
		{ID: "task_done", OrganizationID: "org_1", Description: "Enviar contrato", Completed: true, CreatedBy: "user_owner"},
		{ID: "task_failing", OrganizationID: "org_1", Description: "Revisar matrícula", CreatedBy: "user_owner"},
		{ID: "task_reminded", OrganizationID: "org_1", Description: "Follow-up", RemindedAt: &earlier, CreatedBy: "user_owner"},
	}, nil).Once()
	tasks.On("MarkReminded", ctx, "task_assigned", now).Return(nil).Once()

	notifications := new(mockNotificationRepository)
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.RecipientID == "user_cs"
	})).Return(nil).Run(func(args mock.Arguments) {
		n := args.Get(1).(*models.Notification)
		assert.Equal(t, constants.NotificationTaskReminder, n.Type)
		assert.Equal(t, "Ligar para a Ana", n.Message)
		require.NotNil(t, n.Link)
		assert.Equal(t, "/leads/lead_1", *n.Link)
	}).Once()
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.RecipientID == "user_owner"
	})).Return(errors.New("deadlock found")).Once()

	repos := Repositories{Tasks: tasks, Notifications: notifications}
	svc := NewTaskService(repos, NewNotificationService(repos), Infrastructure{})

	sent, err := svc.SendDueReminders(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sent)
	tasks.AssertExpectations(t)
	notifications.AssertExpectations(t)
	tasks.AssertNotCalled(t, "MarkReminded", ctx, "task_failing", now)
}

func TestTaskService_SendDueRemindersStopsOnMarkFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	withFrozenTime(t, now)

	tasks := new(mockTaskRepository)
	tasks.On("ListDueUnreminded", ctx, mock.Anything, mock.Anything).Return([]models.Task{
		{ID: "task_1", OrganizationID: "org_1", Description: "Ligar", CreatedBy: "user_1"},
		{ID: "task_2", OrganizationID: "org_1", Description: "Ligar de novo", CreatedBy: "user_1"},
	}, nil).Once()
	tasks.On("MarkReminded", ctx, "task_1", now).Return(errors.New("connection lost")).Once()

	notifications := new(mockNotificationRepository)
	notifications.On("Create", ctx, mock.Anything).Return(nil).Once()

	repos := Repositories{Tasks: tasks, Notifications: notifications}
	svc := NewTaskService(repos, NewNotificationService(repos), Infrastructure{})

	sent, err := svc.SendDueReminders(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, sent)
	notifications.AssertExpectations(t)
}
