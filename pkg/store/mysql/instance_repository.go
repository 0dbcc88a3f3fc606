package mysql

import (
	"context"
	"fmt"

	"novita-orchestrator/internal/model"

	"gorm.io/gorm"
)

// InstanceRepository persists C8's Instance state with Upsert/Get/Delete/List
// (single-table, upsert-by-primary-key CRUD over a Datastore; Upsert takes
// the place of separate Create and Update methods).
type InstanceRepository struct {
	ds *Datastore
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(ds *Datastore) *InstanceRepository {
	return &InstanceRepository{ds: ds}
}

// Upsert creates or replaces the row for inst.ID.
func (r *InstanceRepository) Upsert(ctx context.Context, inst *model.Instance) error {
	rec, err := ToInstanceRecord(inst)
	if err != nil {
		return fmt.Errorf("failed to encode instance %s: %w", inst.ID, err)
	}
	return r.ds.DB(ctx).Save(rec).Error
}

// Get retrieves an instance by id, returning (nil, nil) on a miss.
func (r *InstanceRepository) Get(ctx context.Context, id string) (*model.Instance, error) {
	var rec InstanceRecord
	err := r.ds.DB(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get instance %s: %w", id, err)
	}
	return FromInstanceRecord(&rec)
}

// Delete removes the row for id.
func (r *InstanceRepository) Delete(ctx context.Context, id string) error {
	return r.ds.DB(ctx).Where("id = ?", id).Delete(&InstanceRecord{}).Error
}

// List retrieves every persisted instance, used to rebuild C8's in-memory
// state on boot (§9's restart-recovery note).
func (r *InstanceRepository) List(ctx context.Context) ([]*model.Instance, error) {
	var recs []InstanceRecord
	if err := r.ds.DB(ctx).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	out := make([]*model.Instance, 0, len(recs))
	for i := range recs {
		inst, err := FromInstanceRecord(&recs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode instance %s: %w", recs[i].ID, err)
		}
		out = append(out, inst)
	}
	return out, nil
}
