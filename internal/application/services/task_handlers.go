package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gpus/backend/internal/domain/ports"
)

// TaskRegistrar accepts background task handlers (asynq server or inline queue)
type TaskRegistrar interface {
	Register(taskType string, h ports.TaskHandler)
}

// RegisterTaskHandlers binds every background task type to its service
func (sm *ServiceManager) RegisterTaskHandlers(r TaskRegistrar) {
	r.Register(ports.TaskAsaasWebhook, func(ctx context.Context, payload []byte) error {
		var task AsaasWebhookTask
		if err := decodeTask(ports.TaskAsaasWebhook, payload, &task); err != nil {
			return err
		}
		return sm.Payments.Process(ctx, task.WebhookID)
	})

	r.Register(ports.TaskLGPDProcess, func(ctx context.Context, payload []byte) error {
		var task LGPDProcessTask
		if err := decodeTask(ports.TaskLGPDProcess, payload, &task); err != nil {
			return err
		}
		return sm.LGPD.RunQueuedRequest(ctx, task)
	})

	r.Register(ports.TaskEmailSyncContact, func(ctx context.Context, payload []byte) error {
		var task EmailSyncTask
		if err := decodeTask(ports.TaskEmailSyncContact, payload, &task); err != nil {
			return err
		}
		_, _, err := sm.Email.UpsertContact(ctx, task)
		return err
	})

	r.Register(ports.TaskReferralCashback, func(ctx context.Context, payload []byte) error {
		var task ReferralCashbackTask
		if err := decodeTask(ports.TaskReferralCashback, payload, &task); err != nil {
			return err
		}
		return sm.Referrals.CalculateCashback(ctx, task.OrganizationID, task.LeadID)
	})
}

func decodeTask(taskType string, payload []byte, dst interface{}) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", taskType, err)
	}
	return nil
}
