package instance

import (
	"context"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/upstream/novita"
)

// UpstreamClient is the subset of *novita.Client the adapter wraps. Kept
// narrow so tests can substitute a fake at this seam too.
type UpstreamClient interface {
	CreateInstance(ctx context.Context, req novita.CreateInstanceRequest) (string, error)
	StartInstanceWithRetry(ctx context.Context, id string, maxAttempts int) (string, error)
	GetInstance(ctx context.Context, id string) (novita.UpstreamInstance, error)
	GetRegistryAuth(ctx context.Context, id string) (model.RegistryAuth, error)
}

// upstreamAdapter satisfies Upstream by translating between *novita.Client's
// wire-shaped types and C8's decoupled UpstreamCreateRequest/
// UpstreamInstanceView, so internal/instance never imports internal/job's
// or pkg/upstream/novita's request/response wire types directly.
type upstreamAdapter struct {
	client UpstreamClient
}

// NewUpstreamAdapter wraps a *novita.Client (or fake) as an Upstream.
func NewUpstreamAdapter(client UpstreamClient) Upstream {
	return &upstreamAdapter{client: client}
}

func (a *upstreamAdapter) CreateInstance(ctx context.Context, req UpstreamCreateRequest) (string, error) {
	return a.client.CreateInstance(ctx, novita.CreateInstanceRequest{
		Name:       req.Name,
		ProductID:  req.ProductID,
		GPUNum:     req.GPUNum,
		RootfsSize: req.RootfsSize,
		ImageURL:   req.ImageURL,
		ImageAuth:  req.ImageAuth,
		Ports:      req.Ports,
		Envs:       req.Envs,
	})
}

func (a *upstreamAdapter) StartInstanceWithRetry(ctx context.Context, id string, maxAttempts int) (string, error) {
	return a.client.StartInstanceWithRetry(ctx, id, maxAttempts)
}

func (a *upstreamAdapter) GetInstance(ctx context.Context, id string) (UpstreamInstanceView, error) {
	v, err := a.client.GetInstance(ctx, id)
	if err != nil {
		return UpstreamInstanceView{}, err
	}
	return UpstreamInstanceView{
		Status:          v.Status,
		Ports:           v.Ports,
		SpotStatus:      v.SpotStatus,
		SpotReclaimTime: v.SpotReclaimTime,
	}, nil
}

func (a *upstreamAdapter) GetRegistryAuth(ctx context.Context, id string) (model.RegistryAuth, error) {
	return a.client.GetRegistryAuth(ctx, id)
}
