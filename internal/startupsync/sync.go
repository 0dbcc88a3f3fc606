// Package startupsync implements the Startup Sync (C10): a one-shot
// boot-time reconciliation between local instance state and what upstream
// actually has running, performed after job-queue recovery and before the
// HTTP/WS server starts accepting traffic. Follows the same ordered-steps
// boot sequence idea (a boot-time pass with its own named step), applied
// here to upstream/local reconciliation instead of provider construction.
package startupsync

import (
	"context"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/logger"
	"novita-orchestrator/pkg/upstream/novita"
)

const pageSize = 100

// Upstream is the subset of the C2 client the sync pass uses.
type Upstream interface {
	ListInstances(ctx context.Context, page, pageSize int) ([]novita.UpstreamInstance, error)
}

// InstanceAccessor is the subset of C8 the sync pass uses.
type InstanceAccessor interface {
	ListInstances(ctx context.Context, opts model.ListInstancesOptions) ([]*model.Instance, error)
	HandleInstanceNotFound(ctx context.Context, id string) error
}

// Syncer performs the boot-time reconciliation pass.
type Syncer struct {
	upstream  Upstream
	instances InstanceAccessor
}

// New builds a Syncer.
func New(upstream Upstream, instances InstanceAccessor) *Syncer {
	return &Syncer{upstream: upstream, instances: instances}
}

// Run performs the reconciliation. It is best-effort: an upstream error is
// logged and swallowed so boot can continue (§9's process step list marks
// this step non-fatal).
func (s *Syncer) Run(ctx context.Context) error {
	upstreamByNovitaID, err := s.fetchUpstreamIndex(ctx)
	if err != nil {
		logger.Warnf("startup sync: failed to list upstream instances, skipping reconciliation: %v", err)
		return nil
	}

	local, err := s.instances.ListInstances(ctx, model.ListInstancesOptions{})
	if err != nil {
		logger.Warnf("startup sync: failed to list local instances, skipping reconciliation: %v", err)
		return nil
	}

	localByNovitaID := make(map[string]bool, len(local))
	for _, inst := range local {
		if inst.NovitaID == "" {
			continue
		}
		localByNovitaID[inst.NovitaID] = true

		if !upstreamByNovitaID[inst.NovitaID] {
			logger.Warnf("startup sync: instance %s (novitaId %s) not found upstream, cleaning up local state", inst.ID, inst.NovitaID)
			if err := s.instances.HandleInstanceNotFound(ctx, inst.ID); err != nil {
				logger.Warnf("startup sync: failed to clean up instance %s: %v", inst.ID, err)
			}
		}
	}

	for novitaID := range upstreamByNovitaID {
		if !localByNovitaID[novitaID] {
			logger.Infof("startup sync: upstream instance %s has no local record, not adopting", novitaID)
		}
	}

	return nil
}

func (s *Syncer) fetchUpstreamIndex(ctx context.Context) (map[string]bool, error) {
	index := make(map[string]bool)
	page := 1
	for {
		batch, err := s.upstream.ListInstances(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		for _, inst := range batch {
			index[inst.ID] = true
		}
		if len(batch) < pageSize {
			break
		}
		page++
	}
	return index, nil
}
