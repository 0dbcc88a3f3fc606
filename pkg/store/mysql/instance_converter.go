package mysql

import (
	"encoding/json"

	"novita-orchestrator/internal/model"
)

// ToInstanceRecord and FromInstanceRecord follow a ToXDomain/FromXDomain
// pure-function-pair pattern, translating between the GORM row shape and
// the domain model.Instance.
func ToInstanceRecord(inst *model.Instance) (*InstanceRecord, error) {
	configJSON, err := json.Marshal(inst.Config)
	if err != nil {
		return nil, err
	}
	var healthJSON []byte
	if inst.HealthCheck != nil {
		healthJSON, err = json.Marshal(inst.HealthCheck)
		if err != nil {
			return nil, err
		}
	}

	return &InstanceRecord{
		ID:          inst.ID,
		NovitaID:    inst.NovitaID,
		Name:        inst.Name,
		Status:      string(inst.Status),
		ProductID:   inst.ProductID,
		TemplateID:  inst.TemplateID,
		ConfigJSON:  string(configJSON),
		HealthJSON:  string(healthJSON),
		WebhookURL:  inst.WebhookURL,
		LastError:   inst.LastError,
		SpotStatus:  inst.SpotStatus,
		SpotReclaim: inst.SpotReclaim,
		CreatedAt:   inst.Timestamps.Created,
		StartedAt:   inst.Timestamps.Started,
		ReadyAt:     inst.Timestamps.Ready,
		FailedAt:    inst.Timestamps.Failed,
		LastUsedAt:  inst.Timestamps.LastUsed,
	}, nil
}

func FromInstanceRecord(rec *InstanceRecord) (*model.Instance, error) {
	inst := &model.Instance{
		ID:          rec.ID,
		NovitaID:    rec.NovitaID,
		Name:        rec.Name,
		Status:      model.InstanceStatus(rec.Status),
		ProductID:   rec.ProductID,
		TemplateID:  rec.TemplateID,
		WebhookURL:  rec.WebhookURL,
		LastError:   rec.LastError,
		SpotStatus:  rec.SpotStatus,
		SpotReclaim: rec.SpotReclaim,
		Timestamps: model.InstanceTimestamps{
			Created:  rec.CreatedAt,
			Started:  rec.StartedAt,
			Ready:    rec.ReadyAt,
			Failed:   rec.FailedAt,
			LastUsed: rec.LastUsedAt,
		},
	}

	if rec.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(rec.ConfigJSON), &inst.Config); err != nil {
			return nil, err
		}
	}
	if rec.HealthJSON != "" {
		var hc model.HealthCheckState
		if err := json.Unmarshal([]byte(rec.HealthJSON), &hc); err != nil {
			return nil, err
		}
		inst.HealthCheck = &hc
	}

	return inst, nil
}
