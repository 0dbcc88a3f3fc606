package model

import "time"

// JobType discriminates the job payload shape per §4.7.
type JobType string

const (
	JobCreateInstance      JobType = "CREATE_INSTANCE"
	JobMonitorInstance     JobType = "MONITOR_INSTANCE"
	JobMonitorStartup      JobType = "MONITOR_STARTUP"
	JobSendWebhook         JobType = "SEND_WEBHOOK"
	JobMigrateSpotInstances JobType = "MIGRATE_SPOT_INSTANCES"
	JobAutoStopCheck       JobType = "AUTO_STOP_CHECK"
)

// JobStatus is the queue-owned state of a Job (§3).
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Priority orders jobs within the pending queue; higher runs first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
)

// Job is a unit of deferred work. Payload is a discriminated union encoded
// as raw JSON and decoded per-handler by Type, per §9's "tagged variant"
// design note.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     []byte          `json:"payload"`
	Status      JobStatus       `json:"status"`
	Priority    Priority        `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	NextRetryAt *time.Time      `json:"nextRetryAt,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// CreateInstancePayload is the CREATE_INSTANCE job payload (§4.7).
type CreateInstancePayload struct {
	InstanceID  string `json:"instanceId"`
	Name        string `json:"name"`
	ProductName string `json:"productName"`
	TemplateID  string `json:"templateId"`
	GPUNum      int    `json:"gpuNum"`
	RootfsSize  int    `json:"rootfsSize"`
	Region      string `json:"region"`
	WebhookURL  string `json:"webhookUrl,omitempty"`
}

// MonitorPayload is shared by MONITOR_INSTANCE and MONITOR_STARTUP (§13).
type MonitorPayload struct {
	InstanceID        string              `json:"instanceId"`
	NovitaInstanceID  string              `json:"novitaInstanceId"`
	WebhookURL        string              `json:"webhookUrl,omitempty"`
	StartTime         time.Time           `json:"startTime"`
	MaxWaitTimeMs     int64               `json:"maxWaitTime"`
	HealthCheckConfig *HealthCheckConfig  `json:"healthCheckConfig,omitempty"`
	TargetPort        int                 `json:"targetPort,omitempty"`
	OperationID       string              `json:"operationId,omitempty"`
}

// SendWebhookPayload is the SEND_WEBHOOK job payload.
type SendWebhookPayload struct {
	URL     string          `json:"url"`
	Payload WebhookPayload `json:"payload"`
}

// WebhookPayload is the shape delivered to end-user webhook URLs (§6).
type WebhookPayload struct {
	InstanceID             string      `json:"instanceId"`
	NovitaInstanceID       string      `json:"novitaInstanceId,omitempty"`
	Status                 string      `json:"status"`
	Timestamp              string      `json:"timestamp"`
	Data                   interface{} `json:"data,omitempty"`
	Error                  string      `json:"error,omitempty"`
	OperationID            string      `json:"operationId,omitempty"`
	ElapsedTimeMs          int64       `json:"elapsedTime,omitempty"`
	HealthCheckResult      interface{} `json:"healthCheckResult,omitempty"`
	HealthCheckStatus      string      `json:"healthCheckStatus,omitempty"`
	HealthCheckStartedAt   string      `json:"healthCheckStartedAt,omitempty"`
	HealthCheckCompletedAt string      `json:"healthCheckCompletedAt,omitempty"`
	IdempotencyKey         string      `json:"idempotencyKey,omitempty"`
	Provenance             *Provenance `json:"provenance,omitempty"`
}

// Provenance stamps an outgoing webhook payload with the cluster/namespace/
// pod that produced it, as reported by pkg/k8sinfo.
type Provenance struct {
	Cluster   string `json:"cluster,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Pod       string `json:"pod,omitempty"`
}

// MigrateSpotInstancesPayload is the MIGRATE_SPOT_INSTANCES payload; its only
// field is the DryRun flag — the handler always operates over the full
// upstream instance list.
type MigrateSpotInstancesPayload struct {
	DryRun bool `json:"dryRun,omitempty"`
}

// AutoStopCheckPayload is the AUTO_STOP_CHECK payload, carrying the idle
// threshold in milliseconds.
type AutoStopCheckPayload struct {
	IdleThresholdMs int64 `json:"idleThresholdMs"`
}

// MigrationResult is the §4.9 migration batch outcome.
type MigrationResult struct {
	TotalProcessed  int   `json:"totalProcessed"`
	Migrated        int   `json:"migrated"`
	Skipped         int   `json:"skipped"`
	Errors          int   `json:"errors"`
	ExecutionTimeMs int64 `json:"executionTimeMs"`
}

// JobStats is returned by the queue's getStats() operation.
type JobStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retry      int `json:"retry"`
}

// JobFilter narrows getJobs() queries.
type JobFilter struct {
	Status *JobStatus
	Type   *JobType
	Limit  int
}
