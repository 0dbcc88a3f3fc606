package instance

import (
	"context"
	"sync/atomic"
	"testing"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/cache"
	orcherrors "novita-orchestrator/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	createErr      error
	startErr       error
	getErr         error
	getView        UpstreamInstanceView
	createCalls    int32
	startCalls     int32
}

func (f *fakeUpstream) CreateInstance(ctx context.Context, req UpstreamCreateRequest) (string, error) {
	atomic.AddInt32(&f.createCalls, 1)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "novita-123", nil
}

func (f *fakeUpstream) StartInstanceWithRetry(ctx context.Context, id string, maxAttempts int) (string, error) {
	atomic.AddInt32(&f.startCalls, 1)
	if f.startErr != nil {
		return "", f.startErr
	}
	return "running", nil
}

func (f *fakeUpstream) GetInstance(ctx context.Context, id string) (UpstreamInstanceView, error) {
	if f.getErr != nil {
		return UpstreamInstanceView{}, f.getErr
	}
	return f.getView, nil
}

func (f *fakeUpstream) GetRegistryAuth(ctx context.Context, id string) (model.RegistryAuth, error) {
	return model.RegistryAuth{ID: id, Username: "user", Password: "pass"}, nil
}

type fakeProducts struct{}

func (fakeProducts) GetOptimalProduct(ctx context.Context, name, region string) (ProductResult, error) {
	return ProductResult{ProductID: "prod-1", Region: "AS-SGP-02"}, nil
}

type fakeTemplates struct{ auth string }

func (f fakeTemplates) GetTemplateConfiguration(ctx context.Context, id string) (model.TemplateConfiguration, error) {
	return model.TemplateConfiguration{
		ImageURL:  "registry.example.com/img:latest",
		ImageAuth: f.auth,
		Ports:     []model.TemplatePort{{Port: 8080, Type: "http"}},
	}, nil
}

type fakeJobs struct {
	mu    []enqueued
}

type enqueued struct {
	jobType model.JobType
	payload []byte
}

func (f *fakeJobs) AddJob(ctx context.Context, jobType model.JobType, payload []byte, priority model.Priority, maxAttempts int) (string, error) {
	f.mu = append(f.mu, enqueued{jobType, payload})
	return "job-1", nil
}

func newTestService(up *fakeUpstream, jobs *fakeJobs) *Service {
	return New(up, fakeProducts{}, fakeTemplates{}, jobs, cache.NewManager(nil, false), Config{DefaultRegion: "AS-SGP-02"})
}

func validCreateReq() model.CreateInstanceRequest {
	return model.CreateInstanceRequest{
		Name:        "test-instance",
		ProductName: "RTX4090",
		TemplateID:  "tmpl-1",
		GPUNum:      1,
		RootfsSize:  60,
	}
}

func TestCreateInstance_HappyPath(t *testing.T) {
	up := &fakeUpstream{}
	jobs := &fakeJobs{}
	svc := newTestService(up, jobs)

	resp, err := svc.CreateInstance(t.Context(), validCreateReq())
	require.NoError(t, err)
	assert.Equal(t, "novita-123", resp.NovitaInstanceID)
	assert.Equal(t, string(model.StatusCreating), resp.Status)
	assert.Equal(t, int32(1), up.createCalls)
	assert.Equal(t, int32(1), up.startCalls)

	require.Len(t, jobs.mu, 1)
	assert.Equal(t, model.JobMonitorInstance, jobs.mu[0].jobType)
}

func TestCreateInstance_RejectsInvalidGPUNum(t *testing.T) {
	svc := newTestService(&fakeUpstream{}, &fakeJobs{})
	req := validCreateReq()
	req.GPUNum = 0

	_, err := svc.CreateInstance(t.Context(), req)
	require.Error(t, err)
	kind, ok := orcherrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, orcherrors.KindValidation, kind)
}

func TestCreateInstance_RejectsBadWebhookScheme(t *testing.T) {
	svc := newTestService(&fakeUpstream{}, &fakeJobs{})
	req := validCreateReq()
	req.WebhookURL = "ftp://example.com/hook"

	_, err := svc.CreateInstance(t.Context(), req)
	require.Error(t, err)
}

func TestCreateInstance_UpstreamCreateFailureMarksFailed(t *testing.T) {
	up := &fakeUpstream{createErr: orcherrors.New(orcherrors.KindServer, "boom")}
	jobs := &fakeJobs{}
	svc := newTestService(up, jobs)
	req := validCreateReq()
	req.WebhookURL = "https://example.com/hook"

	_, err := svc.CreateInstance(t.Context(), req)
	require.Error(t, err)

	// Exactly one instance was registered before the failure, and it's
	// marked failed with a webhook enqueued.
	svc.mu.Lock()
	var failed *model.Instance
	for _, inst := range svc.instances {
		failed = inst
	}
	svc.mu.Unlock()
	require.NotNil(t, failed)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.NotEmpty(t, failed.LastError)

	require.Len(t, jobs.mu, 1)
	assert.Equal(t, model.JobSendWebhook, jobs.mu[0].jobType)
}

func TestStartInstance_RejectsNonExitedStatus(t *testing.T) {
	up := &fakeUpstream{}
	svc := newTestService(up, &fakeJobs{})
	inst := &model.Instance{ID: "i1", Name: "n1", NovitaID: "nv1", Status: model.StatusRunning}
	svc.putInstance(t.Context(), inst)

	_, err := svc.StartInstance(t.Context(), "i1", model.LookupByID, nil)
	require.Error(t, err)
	kind, ok := orcherrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, orcherrors.KindInstanceNotStartable, kind)
}

func TestStartInstance_RejectsWhenOperationInProgress(t *testing.T) {
	up := &fakeUpstream{}
	svc := newTestService(up, &fakeJobs{})
	inst := &model.Instance{ID: "i1", Name: "n1", NovitaID: "nv1", Status: model.StatusExited}
	svc.putInstance(t.Context(), inst)
	svc.operations["i1"] = &model.StartupOperation{OperationID: "op-1", InstanceID: "i1", Status: model.OperationMonitoring}

	_, err := svc.StartInstance(t.Context(), "i1", model.LookupByID, nil)
	require.Error(t, err)
	kind, ok := orcherrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, orcherrors.KindStartupOperationInProgress, kind)
}

func TestStartInstance_HappyPathEnqueuesMonitorStartup(t *testing.T) {
	up := &fakeUpstream{}
	jobs := &fakeJobs{}
	svc := newTestService(up, jobs)
	inst := &model.Instance{ID: "i1", Name: "n1", NovitaID: "nv1", Status: model.StatusExited, WebhookURL: "https://example.com/hook"}
	svc.putInstance(t.Context(), inst)

	resp, err := svc.StartInstance(t.Context(), "i1", model.LookupByID, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.OperationID)
	assert.Equal(t, string(model.StatusStarting), resp.Status)

	var types []model.JobType
	for _, e := range jobs.mu {
		types = append(types, e.jobType)
	}
	assert.Contains(t, types, model.JobMonitorStartup)
	assert.Contains(t, types, model.JobSendWebhook)

	_, stillInProgress := svc.GetOperation("i1")
	assert.True(t, stillInProgress)
}

func TestStartInstance_LookupByName(t *testing.T) {
	svc := newTestService(&fakeUpstream{}, &fakeJobs{})
	inst := &model.Instance{ID: "i1", Name: "my-name", NovitaID: "nv1", Status: model.StatusExited}
	svc.putInstance(t.Context(), inst)

	resp, err := svc.StartInstance(t.Context(), "my-name", model.LookupByName, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.OperationID)
}

func TestGetInstanceStatus_NotFoundUpstreamRemovesLocalState(t *testing.T) {
	up := &fakeUpstream{getErr: orcherrors.New(orcherrors.KindNotFound, "gone")}
	svc := newTestService(up, &fakeJobs{})
	inst := &model.Instance{ID: "i1", Name: "n1", NovitaID: "nv1", Status: model.StatusRunning}
	svc.putInstance(t.Context(), inst)

	_, err := svc.GetInstanceStatus(t.Context(), "i1")
	require.Error(t, err)
	kind, ok := orcherrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, orcherrors.KindNotFound, kind)

	svc.mu.Lock()
	_, stillExists := svc.instances["i1"]
	svc.mu.Unlock()
	assert.False(t, stillExists)
}

func TestGetInstanceStatus_TransientUpstreamErrorServesCached(t *testing.T) {
	up := &fakeUpstream{getErr: orcherrors.New(orcherrors.KindServer, "hiccup")}
	svc := newTestService(up, &fakeJobs{})
	inst := &model.Instance{ID: "i1", Name: "n1", NovitaID: "nv1", Status: model.StatusRunning}
	svc.putInstance(t.Context(), inst)

	got, err := svc.GetInstanceStatus(t.Context(), "i1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, got.Status)
}

func TestListInstances_FiltersByStatus(t *testing.T) {
	svc := newTestService(&fakeUpstream{}, &fakeJobs{})
	svc.putInstance(t.Context(), &model.Instance{ID: "a", Name: "a", Status: model.StatusRunning})
	svc.putInstance(t.Context(), &model.Instance{ID: "b", Name: "b", Status: model.StatusReady})
	svc.putInstance(t.Context(), &model.Instance{ID: "c", Name: "c", Status: model.StatusRunning})

	out, err := svc.ListInstances(t.Context(), model.ListInstancesOptions{Status: model.StatusRunning})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestUpdateInstanceState_InvalidatesCache(t *testing.T) {
	svc := newTestService(&fakeUpstream{}, &fakeJobs{})
	svc.putInstance(t.Context(), &model.Instance{ID: "i1", Name: "n1", Status: model.StatusRunning})
	svc.cache.Set("instance:i1", &model.Instance{ID: "i1", Status: model.StatusRunning}, 0)

	_, err := svc.UpdateInstanceState(t.Context(), "i1", func(i *model.Instance) {
		i.Status = model.StatusReady
	})
	require.NoError(t, err)

	_, ok := svc.cache.Get("instance:i1")
	assert.False(t, ok)
}
