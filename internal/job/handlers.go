package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"novita-orchestrator/internal/instance"
	"novita-orchestrator/internal/model"
	orcherrors "novita-orchestrator/pkg/errors"
	"novita-orchestrator/pkg/logger"
)

// monitorPollDelay is how long MONITOR_INSTANCE/MONITOR_STARTUP wait before
// re-enqueueing themselves while an instance is still starting or its
// health check is still in progress (§4.7).
var monitorPollDelay = 3 * time.Second

// InstanceAccessor is the subset of the Instance Service (C8) job handlers
// depend on.
type InstanceAccessor interface {
	GetLocalInstance(ctx context.Context, id string) (*model.Instance, error)
	UpdateInstanceState(ctx context.Context, id string, mutate func(*model.Instance)) (*model.Instance, error)
	GetOperation(instanceID string) (*model.StartupOperation, bool)
	CompleteOperation(instanceID string, status model.StartupOperationStatus, errMsg string)
	ProcessCreateInstanceJob(ctx context.Context, payload model.CreateInstancePayload) error
	StopInstance(ctx context.Context, id string) error
	ListInstances(ctx context.Context, opts model.ListInstancesOptions) ([]*model.Instance, error)
}

// UpstreamPoller is the subset of the upstream client (C2) MONITOR_* jobs use.
type UpstreamPoller interface {
	GetInstance(ctx context.Context, novitaID string) (instance.UpstreamInstanceView, error)
}

// HealthProber is the C5 contract MONITOR_* jobs use.
type HealthProber interface {
	PerformHealthChecks(ctx context.Context, portMappings []model.PortMapping, cfg model.HealthCheckConfig) model.HealthCheckResult
}

// WebhookSender is the C-level webhook delivery contract.
type WebhookSender interface {
	Deliver(ctx context.Context, url string, payload model.WebhookPayload) error
}

// Handlers bundles the C7 job-type handlers and their dependencies.
type Handlers struct {
	instances InstanceAccessor
	upstream  UpstreamPoller
	health    HealthProber
	webhook   WebhookSender
	queue     *Queue
}

// NewHandlers builds the C7 handler set and registers every job type on q.
func NewHandlers(instances InstanceAccessor, upstream UpstreamPoller, health HealthProber, webhookClient WebhookSender, q *Queue) *Handlers {
	h := &Handlers{instances: instances, upstream: upstream, health: health, webhook: webhookClient, queue: q}
	q.RegisterHandler(model.JobCreateInstance, h.handleCreateInstance)
	q.RegisterHandler(model.JobMonitorInstance, h.handleMonitorInstance)
	q.RegisterHandler(model.JobMonitorStartup, h.handleMonitorStartup)
	q.RegisterHandler(model.JobSendWebhook, h.handleSendWebhook)
	q.RegisterHandler(model.JobAutoStopCheck, h.handleAutoStopCheck)
	return h
}

func (h *Handlers) handleCreateInstance(ctx context.Context, j *model.Job) error {
	var payload model.CreateInstancePayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return fmt.Errorf("decode CREATE_INSTANCE payload: %w", err)
	}
	return h.instances.ProcessCreateInstanceJob(ctx, payload)
}

func (h *Handlers) handleSendWebhook(ctx context.Context, j *model.Job) error {
	var payload model.SendWebhookPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return fmt.Errorf("decode SEND_WEBHOOK payload: %w", err)
	}
	wp := payload.Payload
	if wp.IdempotencyKey == "" {
		wp.IdempotencyKey = j.ID
	}
	return h.webhook.Deliver(ctx, payload.URL, wp)
}

func (h *Handlers) handleMonitorInstance(ctx context.Context, j *model.Job) error {
	var payload model.MonitorPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return fmt.Errorf("decode MONITOR_INSTANCE payload: %w", err)
	}
	return h.runMonitorCycle(ctx, payload, nil)
}

func (h *Handlers) handleMonitorStartup(ctx context.Context, j *model.Job) error {
	var payload model.MonitorPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return fmt.Errorf("decode MONITOR_STARTUP payload: %w", err)
	}
	op, _ := h.instances.GetOperation(payload.InstanceID)
	return h.runMonitorCycle(ctx, payload, op)
}

// runMonitorCycle is the shared MONITOR_INSTANCE/MONITOR_STARTUP core
// (§9's "wrap, don't duplicate" resolution). op is non-nil only when called
// from the startup path, in which case phases.healthChecking is stamped when
// health checking begins and the operation is completed (phases.completed)
// and removed on success; phases.instanceStarting is not set here.
func (h *Handlers) runMonitorCycle(ctx context.Context, payload model.MonitorPayload, op *model.StartupOperation) error {
	if time.Since(payload.StartTime) > time.Duration(payload.MaxWaitTimeMs)*time.Millisecond {
		msg := fmt.Sprintf("startup timed out after %dms", payload.MaxWaitTimeMs)
		h.failMonitoredInstance(ctx, payload, op, msg)
		return nil
	}

	view, err := h.upstream.GetInstance(ctx, payload.NovitaInstanceID)
	if err != nil {
		return fmt.Errorf("monitor: poll upstream instance %s: %w", payload.NovitaInstanceID, err)
	}

	switch model.InstanceStatus(view.Status) {
	case model.StatusRunning:
		return h.handleRunning(ctx, payload, op, view)
	case model.StatusStarting, model.StatusCreated:
		if _, err := h.instances.UpdateInstanceState(ctx, payload.InstanceID, func(inst *model.Instance) {
			inst.Status = model.InstanceStatus(view.Status)
		}); err != nil {
			return fmt.Errorf("monitor: update status: %w", err)
		}
		return h.reenqueue(ctx, payload)
	case model.StatusExited, model.StatusFailed:
		h.failMonitoredInstance(ctx, payload, op, fmt.Sprintf("instance exited upstream with status %s", view.Status))
		return nil
	default:
		return h.reenqueue(ctx, payload)
	}
}

func (h *Handlers) handleRunning(ctx context.Context, payload model.MonitorPayload, op *model.StartupOperation, view instance.UpstreamInstanceView) error {
	if len(view.Ports) == 0 {
		h.completeMonitoredInstance(ctx, payload, op, nil)
		return nil
	}

	now := time.Now().UTC()
	inst, err := h.instances.UpdateInstanceState(ctx, payload.InstanceID, func(inst *model.Instance) {
		inst.Status = model.StatusHealthChecking
		inst.Config.Ports = view.Ports
		if inst.HealthCheck == nil || inst.HealthCheck.Status != "in_progress" {
			inst.HealthCheck = &model.HealthCheckState{Status: "in_progress", StartedAt: &now}
		}
	})
	if err != nil {
		return fmt.Errorf("monitor: transition to health_checking: %w", err)
	}

	if inst.HealthCheck.StartedAt != nil && inst.HealthCheck.CompletedAt == nil && len(inst.HealthCheck.Results) == 0 {
		h.emitWebhook(ctx, payload.WebhookURL, model.WebhookPayload{
			InstanceID:       payload.InstanceID,
			NovitaInstanceID: payload.NovitaInstanceID,
			Status:           "health_checking",
			Timestamp:        now.Format(time.RFC3339),
			OperationID:      payload.OperationID,
		})
		h.advancePhase(op, model.OperationHealthChecking)
	}

	cfg := model.DefaultHealthCheckConfig()
	if payload.HealthCheckConfig != nil {
		cfg = *payload.HealthCheckConfig
	}
	result := h.health.PerformHealthChecks(ctx, view.Ports, cfg)

	inst, err = h.instances.UpdateInstanceState(ctx, payload.InstanceID, func(inst *model.Instance) {
		inst.HealthCheck.Results = append(inst.HealthCheck.Results, result)
	})
	if err != nil {
		return fmt.Errorf("monitor: append health result: %w", err)
	}

	switch result.OverallStatus {
	case model.HealthHealthy:
		h.completeMonitoredInstance(ctx, payload, op, &result)
		return nil
	default:
		if time.Since(*inst.HealthCheck.StartedAt) > time.Duration(cfg.MaxWaitTimeMs)*time.Millisecond {
			msg := fmt.Sprintf("Health check timeout after %dms (max: %dms)", time.Since(*inst.HealthCheck.StartedAt).Milliseconds(), cfg.MaxWaitTimeMs)
			h.failMonitoredInstance(ctx, payload, op, msg)
			return nil
		}
		return h.reenqueue(ctx, payload)
	}
}

func (h *Handlers) completeMonitoredInstance(ctx context.Context, payload model.MonitorPayload, op *model.StartupOperation, result *model.HealthCheckResult) {
	now := time.Now().UTC()
	h.instances.UpdateInstanceState(ctx, payload.InstanceID, func(inst *model.Instance) {
		inst.Status = model.StatusReady
		inst.Timestamps.Ready = &now
		if inst.HealthCheck != nil {
			inst.HealthCheck.Status = "completed"
			inst.HealthCheck.CompletedAt = &now
		}
	})

	wp := model.WebhookPayload{
		InstanceID:       payload.InstanceID,
		NovitaInstanceID: payload.NovitaInstanceID,
		Status:           "ready",
		Timestamp:        now.Format(time.RFC3339),
		OperationID:      payload.OperationID,
	}
	if result != nil {
		wp.HealthCheckResult = result
		wp.ElapsedTimeMs = result.TotalResponseTime
	}
	h.emitWebhook(ctx, payload.WebhookURL, wp)

	if op != nil {
		h.instances.CompleteOperation(payload.InstanceID, model.OperationCompleted, "")
	}
}

func (h *Handlers) failMonitoredInstance(ctx context.Context, payload model.MonitorPayload, op *model.StartupOperation, reason string) {
	now := time.Now().UTC()
	h.instances.UpdateInstanceState(ctx, payload.InstanceID, func(inst *model.Instance) {
		inst.Status = model.StatusFailed
		inst.LastError = reason
		inst.Timestamps.Failed = &now
		if inst.HealthCheck != nil {
			inst.HealthCheck.Status = "failed"
		}
	})

	h.emitWebhook(ctx, payload.WebhookURL, model.WebhookPayload{
		InstanceID:       payload.InstanceID,
		NovitaInstanceID: payload.NovitaInstanceID,
		Status:           "failed",
		Timestamp:        now.Format(time.RFC3339),
		Error:            reason,
		OperationID:      payload.OperationID,
	})

	if op != nil {
		h.instances.CompleteOperation(payload.InstanceID, model.OperationFailed, reason)
	}
}

func (h *Handlers) advancePhase(op *model.StartupOperation, status model.StartupOperationStatus) {
	if op == nil {
		return
	}
	now := time.Now().UTC()
	op.Status = status
	op.Phases.HealthChecking = &now
}

func (h *Handlers) emitWebhook(ctx context.Context, url string, payload model.WebhookPayload) {
	if url == "" {
		return
	}
	if h.queue == nil {
		return
	}
	body, err := json.Marshal(model.SendWebhookPayload{URL: url, Payload: payload})
	if err != nil {
		logger.Warnf("failed to marshal webhook payload for instance %s: %v", payload.InstanceID, err)
		return
	}
	if _, err := h.queue.AddJob(ctx, model.JobSendWebhook, body, model.PriorityNormal, 3); err != nil {
		logger.Warnf("failed to enqueue webhook for instance %s: %v", payload.InstanceID, err)
	}
}

func (h *Handlers) reenqueue(ctx context.Context, payload model.MonitorPayload) error {
	select {
	case <-time.After(monitorPollDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal re-enqueue payload: %w", err)
	}
	jobType := model.JobMonitorInstance
	if payload.OperationID != "" {
		jobType = model.JobMonitorStartup
	}
	if _, err := h.queue.AddJob(ctx, jobType, body, model.PriorityHigh, 3); err != nil {
		return fmt.Errorf("re-enqueue %s: %w", jobType, err)
	}
	return nil
}

// handleAutoStopCheck implements §4.7/§13's idle-instance sweep: any
// `running` instance whose lastUsed (falling back to started, then
// created) exceeds the configured idle threshold is stopped.
func (h *Handlers) handleAutoStopCheck(ctx context.Context, j *model.Job) error {
	var payload model.AutoStopCheckPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return fmt.Errorf("decode AUTO_STOP_CHECK payload: %w", err)
	}
	threshold := time.Duration(payload.IdleThresholdMs) * time.Millisecond
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}

	running, err := h.instances.ListInstances(ctx, model.ListInstancesOptions{Status: model.StatusRunning})
	if err != nil {
		return fmt.Errorf("auto-stop: list running instances: %w", err)
	}

	now := time.Now().UTC()
	var stopErrs []error
	for _, inst := range running {
		lastActivity := inst.Timestamps.Created
		if inst.Timestamps.Started != nil {
			lastActivity = *inst.Timestamps.Started
		}
		if inst.Timestamps.LastUsed != nil {
			lastActivity = *inst.Timestamps.LastUsed
		}
		if now.Sub(lastActivity) < threshold {
			continue
		}
		if err := h.instances.StopInstance(ctx, inst.ID); err != nil {
			stopErrs = append(stopErrs, err)
			continue
		}
		h.emitWebhook(ctx, inst.WebhookURL, model.WebhookPayload{
			InstanceID: inst.ID,
			Status:     "stopped",
			Timestamp:  now.Format(time.RFC3339),
		})
	}

	if len(stopErrs) > 0 {
		return orcherrors.Wrap(orcherrors.KindServer, stopErrs[0], fmt.Sprintf("auto-stop: %d of %d stop requests failed", len(stopErrs), len(running)))
	}
	return nil
}
