package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

// TaskService manages follow-up tasks and their reminders
type TaskService struct {
	tasks         ports.TaskRepository
	leads         ports.LeadRepository
	students      ports.StudentRepository
	users         ports.UserRepository
	activities    ports.ActivityRepository
	notifications *NotificationService
	tx            ports.Transactor
}

// NewTaskService creates a new TaskService
func NewTaskService(repos Repositories, notifications *NotificationService, infra Infrastructure) *TaskService {
	return &TaskService{
		tasks:         repos.Tasks,
		leads:         repos.Leads,
		students:      repos.Students,
		users:         repos.Users,
		activities:    repos.Activities,
		notifications: notifications,
		tx:            infra.Tx,
	}
}

// List returns tasks filtered by lead, assignee and completion
func (s *TaskService) List(ctx context.Context, identity auth.Identity, filter models.TaskFilter) ([]models.Task, error) {
	orgID := identity.OrganizationID()
	if filter.LeadID != "" {
		if err := s.checkLead(ctx, orgID, filter.LeadID); err != nil {
			return nil, err
		}
	}
	if filter.AssignedTo != "" {
		if err := s.checkUser(ctx, orgID, filter.AssignedTo, "assignedTo"); err != nil {
			return nil, err
		}
	}
	filter.OrganizationID = orgID
	filter.Limit = utils.ClampLimit(filter.Limit, 50, 200)
	return s.tasks.List(ctx, filter)
}

// MyTasks returns the open tasks assigned to the caller
func (s *TaskService) MyTasks(ctx context.Context, identity auth.Identity) ([]models.Task, error) {
	open := false
	return s.tasks.List(ctx, models.TaskFilter{
		OrganizationID: identity.OrganizationID(),
		AssignedTo:     actorUserID(ctx, s.users, identity),
		Completed:      &open,
		Limit:          200,
	})
}

// Create adds a task and notifies mentioned users
func (s *TaskService) Create(ctx context.Context, identity auth.Identity, input models.TaskInput) (*models.Task, error) {
	orgID := identity.OrganizationID()
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description", "Descrição é obrigatória")
	}
	if err := s.checkReferences(ctx, orgID, input); err != nil {
		return nil, err
	}

	actorID := actorUserID(ctx, s.users, identity)
	now := nowFunc()
	task := &models.Task{
		ID:               utils.GenerateID(),
		OrganizationID:   orgID,
		Description:      description,
		LeadID:           utils.NonEmptyPtr(utils.Deref(input.LeadID)),
		StudentID:        utils.NonEmptyPtr(utils.Deref(input.StudentID)),
		AssignedTo:       utils.NonEmptyPtr(utils.Deref(input.AssignedTo)),
		MentionedUserIDs: uniqueStrings(input.MentionedUserIDs),
		DueDate:          input.DueDate,
		CreatedBy:        actorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if task.AssignedTo == nil {
		task.AssignedTo = utils.NonEmptyPtr(actorID)
	}

	err := withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.tasks.Create(ctx, task); err != nil {
			return err
		}
		return s.notifyMentions(ctx, task, task.MentionedUserIDs, actorID)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Update patches a task. Newly mentioned users are notified.
func (s *TaskService) Update(ctx context.Context, identity auth.Identity, id string, input models.TaskInput) (*models.Task, error) {
	orgID := identity.OrganizationID()
	task, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, orgID, input); err != nil {
		return nil, err
	}

	if d := strings.TrimSpace(input.Description); d != "" {
		task.Description = d
	}
	if input.LeadID != nil {
		task.LeadID = utils.NonEmptyPtr(*input.LeadID)
	}
	if input.StudentID != nil {
		task.StudentID = utils.NonEmptyPtr(*input.StudentID)
	}
	if input.AssignedTo != nil {
		task.AssignedTo = utils.NonEmptyPtr(*input.AssignedTo)
	}
	if input.DueDate != nil && (task.DueDate == nil || !task.DueDate.Equal(*input.DueDate)) {
		task.DueDate = input.DueDate
		task.RemindedAt = nil
	}
	var added []string
	if input.MentionedUserIDs != nil {
		previous := map[string]bool{}
		for _, id := range task.MentionedUserIDs {
			previous[id] = true
		}
		task.MentionedUserIDs = uniqueStrings(input.MentionedUserIDs)
		for _, id := range task.MentionedUserIDs {
			if !previous[id] {
				added = append(added, id)
			}
		}
	}
	task.UpdatedAt = nowFunc()

	actorID := actorUserID(ctx, s.users, identity)
	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.tasks.Update(ctx, task); err != nil {
			return err
		}
		return s.notifyMentions(ctx, task, added, actorID)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Complete marks a task done and logs it on the lead timeline
func (s *TaskService) Complete(ctx context.Context, identity auth.Identity, id string) (*models.Task, error) {
	task, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return task, nil
	}
	now := nowFunc()
	task.Completed = true
	task.CompletedAt = &now
	task.UpdatedAt = now

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.tasks.Update(ctx, task); err != nil {
			return err
		}
		if task.LeadID == nil && task.StudentID == nil {
			return nil
		}
		activity := newActivity(task.OrganizationID, constants.ActivityTaskCompleted, fmt.Sprintf("Tarefa concluída: %s", task.Description))
		activity.LeadID = task.LeadID
		activity.StudentID = task.StudentID
		activity.UserID = utils.NonEmptyPtr(actorUserID(ctx, s.users, identity))
		return s.activities.Create(ctx, activity)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes a task
func (s *TaskService) Delete(ctx context.Context, identity auth.Identity, id string) error {
	if _, err := s.get(ctx, identity.OrganizationID(), id); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, identity.OrganizationID(), id)
}

// SendDueReminders notifies the assignees of open tasks due today and marks them reminded
func (s *TaskService) SendDueReminders(ctx context.Context) (int, error) {
	now := nowFunc()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	tasks, err := s.tasks.ListDueUnreminded(ctx, from, to)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, task := range tasks {
		if task.Completed || task.RemindedAt != nil {
			continue
		}
		recipient := utils.Deref(task.AssignedTo)
		if recipient == "" {
			recipient = task.CreatedBy
		}
		link := taskLink(task)
		if err := s.notifications.Notify(ctx, task.OrganizationID, recipient, constants.NotificationTaskReminder,
			"Lembrete de tarefa", task.Description, link); err != nil {
			log.Printf("⚠️ Failed to send reminder for task %s: %v", task.ID, err)
			continue
		}
		if err := s.tasks.MarkReminded(ctx, task.ID, now); err != nil {
			return sent, err
		}
		sent++
	}
	log.Printf("⏰ Sent %d task reminder(s)", sent)
	return sent, nil
}

func (s *TaskService) notifyMentions(ctx context.Context, task *models.Task, userIDs []string, actorID string) error {
	for _, userID := range userIDs {
		if userID == actorID {
			continue
		}
		if err := s.notifications.Notify(ctx, task.OrganizationID, userID, constants.NotificationMention,
			"Você foi mencionado em uma tarefa", task.Description, taskLink(*task)); err != nil {
			return err
		}
	}
	return nil
}

func taskLink(task models.Task) *string {
	switch {
	case task.LeadID != nil:
		link := "/leads/" + *task.LeadID
		return &link
	case task.StudentID != nil:
		link := "/students/" + *task.StudentID
		return &link
	}
	link := "/tasks"
	return &link
}

func (s *TaskService) checkReferences(ctx context.Context, orgID string, input models.TaskInput) error {
	if id := utils.Deref(input.LeadID); id != "" {
		if err := s.checkLead(ctx, orgID, id); err != nil {
			return err
		}
	}
	if id := utils.Deref(input.StudentID); id != "" {
		student, err := s.students.GetByID(ctx, orgID, id)
		if err != nil {
			return err
		}
		if student == nil {
			return apperrors.NewNotFoundError("Aluno", id)
		}
	}
	if id := utils.Deref(input.AssignedTo); id != "" {
		if err := s.checkUser(ctx, orgID, id, "assignedTo"); err != nil {
			return err
		}
	}
	for _, id := range input.MentionedUserIDs {
		user, err := s.users.GetByID(ctx, orgID, id)
		if err != nil {
			return err
		}
		if user == nil {
			return apperrors.NewValidationError("mentionedUserIds", fmt.Sprintf("Usuário mencionado não encontrado: %s", id))
		}
	}
	return nil
}

func (s *TaskService) checkLead(ctx context.Context, orgID, leadID string) error {
	lead, err := s.leads.GetByID(ctx, orgID, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		return apperrors.NewNotFoundError("Lead", leadID)
	}
	return nil
}

func (s *TaskService) checkUser(ctx context.Context, orgID, userID, field string) error {
	user, err := s.users.GetByID(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NewValidationError(field, "Usuário não encontrado")
	}
	return nil
}

func (s *TaskService) get(ctx context.Context, orgID, id string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperrors.NewNotFoundError("Tarefa", id)
	}
	return task, nil
}

func uniqueStrings(values []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
