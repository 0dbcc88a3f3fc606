package startupsync

import (
	"context"
	"errors"
	"testing"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/upstream/novita"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	instances []novita.UpstreamInstance
	err       error
}

func (f *fakeUpstream) ListInstances(ctx context.Context, page, pageSize int) ([]novita.UpstreamInstance, error) {
	if f.err != nil {
		return nil, f.err
	}
	if page > 1 {
		return nil, nil
	}
	return f.instances, nil
}

type fakeAccessor struct {
	instances    []*model.Instance
	err          error
	cleanedUpIDs []string
}

func (f *fakeAccessor) ListInstances(ctx context.Context, opts model.ListInstancesOptions) ([]*model.Instance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.instances, nil
}

func (f *fakeAccessor) HandleInstanceNotFound(ctx context.Context, id string) error {
	f.cleanedUpIDs = append(f.cleanedUpIDs, id)
	return nil
}

func TestRun_CleansUpUnmatchedLocalInstances(t *testing.T) {
	up := &fakeUpstream{instances: []novita.UpstreamInstance{{ID: "nv-1"}}}
	acc := &fakeAccessor{instances: []*model.Instance{
		{ID: "i1", NovitaID: "nv-1"},
		{ID: "i2", NovitaID: "nv-gone"},
	}}
	s := New(up, acc)

	err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"i2"}, acc.cleanedUpIDs)
}

func TestRun_DoesNotAdoptUnknownUpstreamInstances(t *testing.T) {
	up := &fakeUpstream{instances: []novita.UpstreamInstance{{ID: "nv-unknown"}}}
	acc := &fakeAccessor{}
	s := New(up, acc)

	err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Empty(t, acc.cleanedUpIDs)
}

func TestRun_UpstreamErrorIsBestEffort(t *testing.T) {
	up := &fakeUpstream{err: errors.New("upstream down")}
	acc := &fakeAccessor{}
	s := New(up, acc)

	err := s.Run(t.Context())
	assert.NoError(t, err)
}
