// Package instance implements the Instance Service (C8): the
// authoritative in-memory instance state store, its public
// create/start/stop/list/status operations, and Startup Operation
// deduplication. Grounded on internal/model/task.go's Task/TaskStatus
// shape (the closest structural analogue: id, status enum,
// timestamps, error, JSON round-trip) generalized to the instance
// lifecycle graph. Durability is delegated to pkg/store/mysql, a new
// GORM-backed repository persisting every mutation alongside the
// in-memory copy.
package instance

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/cache"
	orcherrors "novita-orchestrator/pkg/errors"
	"novita-orchestrator/pkg/logger"

	"github.com/google/uuid"
)

// Upstream is the subset of the C2 client the service depends on.
type Upstream interface {
	CreateInstance(ctx context.Context, req UpstreamCreateRequest) (string, error)
	StartInstanceWithRetry(ctx context.Context, id string, maxAttempts int) (string, error)
	GetInstance(ctx context.Context, id string) (UpstreamInstanceView, error)
	GetRegistryAuth(ctx context.Context, id string) (model.RegistryAuth, error)
}

// UpstreamCreateRequest mirrors novita.CreateInstanceRequest without an
// import-cycle-prone dependency on the upstream package's wire types.
type UpstreamCreateRequest struct {
	Name       string
	ProductID  string
	GPUNum     int
	RootfsSize int
	ImageURL   string
	ImageAuth  string
	Ports      []model.TemplatePort
	Envs       []model.EnvVar
}

// UpstreamInstanceView is the upstream-shaped read C8 consumes.
type UpstreamInstanceView struct {
	Status          string
	Ports           []model.PortMapping
	SpotStatus      string
	SpotReclaimTime string
}

// ProductResolver resolves productName -> the cheapest available SKU.
type ProductResolver interface {
	GetOptimalProduct(ctx context.Context, name, region string) (ProductResult, error)
}

// ProductResult is the {product, regionUsed} pair C3 returns.
type ProductResult struct {
	ProductID string
	Region    string
}

// TemplateResolver resolves a templateId into image/ports/envs.
type TemplateResolver interface {
	GetTemplateConfiguration(ctx context.Context, id string) (model.TemplateConfiguration, error)
}

// JobEnqueuer is the subset of the C6 queue the service depends on.
type JobEnqueuer interface {
	AddJob(ctx context.Context, jobType model.JobType, payload []byte, priority model.Priority, maxAttempts int) (string, error)
}

// Config bundles the service's tunables (§6).
type Config struct {
	DefaultRegion         string
	InstanceStartupMaxWaitMs int64
	EnableNameLookup      bool
}

// Durability persists Instance state alongside the in-memory mutator, so a
// restart can rebuild s.instances instead of losing every in-flight
// instance. Grounded on pkg/store/mysql's InstanceRepository; kept as a
// narrow interface so tests never need a database.
type Durability interface {
	Upsert(ctx context.Context, inst *model.Instance) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.Instance, error)
}

// Service is the single mutex-guarded owner of instance state (C8).
type Service struct {
	mu         sync.Mutex
	instances  map[string]*model.Instance
	nameIndex  map[string]string
	operations map[string]*model.StartupOperation

	upstream   Upstream
	products   ProductResolver
	templates  TemplateResolver
	jobs       JobEnqueuer
	cache      cache.Cache
	cfg        Config
	durability Durability

	subMu       sync.Mutex
	subscribers map[string][]chan *model.Instance
}

// New builds an Instance Service.
func New(upstream Upstream, products ProductResolver, templates TemplateResolver, jobs JobEnqueuer, cacheMgr *cache.Manager, cfg Config) *Service {
	c := cacheMgr.GetCache("instance-details", cache.Options{
		Backend: cache.BackendMemory,
		MaxSize: 2000,
	})
	return &Service{
		instances:  make(map[string]*model.Instance),
		nameIndex:  make(map[string]string),
		operations: make(map[string]*model.StartupOperation),
		upstream:   upstream,
		products:   products,
		templates:  templates,
		jobs:       jobs,
		cache:      c,
		cfg:        cfg,
		subscribers: make(map[string][]chan *model.Instance),
	}
}

// SetDurability wires a persistence backend after construction, keeping
// New's signature free of an optional dependency every unit test would
// otherwise have to pass a nil for.
func (s *Service) SetDurability(d Durability) {
	s.durability = d
}

// LoadFromDurability rebuilds in-memory state from the durability backend
// at boot. Best-effort: logged and swallowed on failure, since a cold
// restart with an empty in-memory map is still a running (if memoryless)
// control plane, and startupsync's reconciliation pass will clean up
// whatever it can't account for regardless.
func (s *Service) LoadFromDurability(ctx context.Context) error {
	if s.durability == nil {
		return nil
	}
	instances, err := s.durability.List(ctx)
	if err != nil {
		logger.Warnf("instance service: failed to load persisted instances: %v", err)
		return nil
	}
	s.mu.Lock()
	for _, inst := range instances {
		s.instances[inst.ID] = inst
		if inst.Name != "" {
			s.nameIndex[inst.Name] = inst.ID
		}
	}
	s.mu.Unlock()
	logger.Infof("instance service: loaded %d persisted instances", len(instances))
	return nil
}

func (s *Service) persist(ctx context.Context, inst *model.Instance) {
	if s.durability == nil {
		return
	}
	if err := s.durability.Upsert(ctx, inst); err != nil {
		logger.Warnf("instance service: failed to persist instance %s: %v", inst.ID, err)
	}
}

func newInstanceID() string {
	return fmt.Sprintf("inst_%d_%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// CreateInstance implements §4.1's createInstance.
func (s *Service) CreateInstance(ctx context.Context, req model.CreateInstanceRequest) (*model.CreateInstanceResponse, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	region := req.Region
	if region == "" {
		region = s.cfg.DefaultRegion
	}

	product, err := s.products.GetOptimalProduct(ctx, req.ProductName, region)
	if err != nil {
		return nil, err
	}

	templateConfig, err := s.templates.GetTemplateConfiguration(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	imageAuth := ""
	if templateConfig.ImageAuth != "" {
		auth, err := s.upstream.GetRegistryAuth(ctx, templateConfig.ImageAuth)
		if err != nil {
			return nil, err
		}
		imageAuth = auth.Username + ":" + auth.Password
	}

	inst := &model.Instance{
		ID:         newInstanceID(),
		Name:       req.Name,
		Status:     model.StatusCreating,
		ProductID:  product.ProductID,
		TemplateID: req.TemplateID,
		Config: model.InstanceConfiguration{
			GPUNum:     req.GPUNum,
			RootfsSize: req.RootfsSize,
			Region:     product.Region,
			ImageURL:   templateConfig.ImageURL,
			ImageAuth:  imageAuth,
			Envs:       templateConfig.Envs,
		},
		Timestamps: model.InstanceTimestamps{Created: time.Now().UTC()},
		WebhookURL: req.WebhookURL,
	}
	s.putInstance(ctx, inst)

	novitaID, err := s.upstream.CreateInstance(ctx, UpstreamCreateRequest{
		Name:       req.Name,
		ProductID:  product.ProductID,
		GPUNum:     req.GPUNum,
		RootfsSize: req.RootfsSize,
		ImageURL:   templateConfig.ImageURL,
		ImageAuth:  imageAuth,
		Ports:      templateConfig.Ports,
		Envs:       templateConfig.Envs,
	})
	if err != nil {
		s.failInstance(ctx, inst.ID, err)
		return nil, err
	}

	s.mu.Lock()
	inst.NovitaID = novitaID
	s.mu.Unlock()
	s.invalidateCache(inst.ID)

	if _, err := s.upstream.StartInstanceWithRetry(ctx, novitaID, 3); err != nil {
		s.failInstance(ctx, inst.ID, err)
		return nil, err
	}

	s.mu.Lock()
	inst.Status = model.StatusStarting
	s.mu.Unlock()
	s.invalidateCache(inst.ID)

	payload, _ := marshalMonitorPayload(model.MonitorPayload{
		InstanceID:       inst.ID,
		NovitaInstanceID: novitaID,
		WebhookURL:       req.WebhookURL,
		StartTime:        time.Now().UTC(),
		MaxWaitTimeMs:    s.defaultMaxWait(),
	})
	if _, err := s.jobs.AddJob(ctx, model.JobMonitorInstance, payload, model.PriorityHigh, 3); err != nil {
		logger.Warnf("failed to enqueue monitor job for instance %s: %v", inst.ID, err)
	}

	return &model.CreateInstanceResponse{
		InstanceID:       inst.ID,
		NovitaInstanceID: novitaID,
		Status:           string(model.StatusCreating),
		Message:          "instance creation in progress",
	}, nil
}

func (s *Service) defaultMaxWait() int64 {
	if s.cfg.InstanceStartupMaxWaitMs > 0 {
		return s.cfg.InstanceStartupMaxWaitMs
	}
	return 10 * 60 * 1000
}

func (s *Service) failInstance(ctx context.Context, id string, cause error) {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if ok {
		now := time.Now().UTC()
		inst.Status = model.StatusFailed
		inst.LastError = cause.Error()
		inst.Timestamps.Failed = &now
	}
	s.mu.Unlock()
	s.invalidateCache(id)

	if !ok {
		return
	}
	if inst.WebhookURL != "" {
		payload, _ := marshalWebhookPayload(model.SendWebhookPayload{
			URL: inst.WebhookURL,
			Payload: model.WebhookPayload{
				InstanceID: id,
				Status:     string(model.StatusFailed),
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
				Error:      cause.Error(),
			},
		})
		if _, err := s.jobs.AddJob(ctx, model.JobSendWebhook, payload, model.PriorityNormal, 3); err != nil {
			logger.Warnf("failed to enqueue failure webhook for instance %s: %v", id, err)
		}
	}
}

func validateCreateRequest(req model.CreateInstanceRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return orcherrors.New(orcherrors.KindValidation, "name must not be empty")
	}
	if strings.TrimSpace(req.ProductName) == "" {
		return orcherrors.New(orcherrors.KindValidation, "productName must not be empty")
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		return orcherrors.New(orcherrors.KindValidation, "templateId must not be empty")
	}
	if req.GPUNum < 1 || req.GPUNum > 8 {
		return orcherrors.New(orcherrors.KindValidation, "gpuNum must be in [1,8]")
	}
	if req.RootfsSize < 10 || req.RootfsSize > 1000 {
		return orcherrors.New(orcherrors.KindValidation, "rootfsSize must be in [10,1000]")
	}
	if req.WebhookURL != "" {
		u, err := url.Parse(req.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return orcherrors.New(orcherrors.KindValidation, "webhookUrl must be an http(s) URL")
		}
	}
	return nil
}

// StartInstance implements §4.1's startInstance.
func (s *Service) StartInstance(ctx context.Context, idOrName string, lookup model.LookupKind, healthCfg *model.HealthCheckConfig) (*model.StartInstanceResponse, error) {
	inst, err := s.resolveForStart(idOrName, lookup)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if inst.Status != model.StatusExited {
		s.mu.Unlock()
		return nil, orcherrors.New(orcherrors.KindInstanceNotStartable, fmt.Sprintf("instance %s is not startable from status %s", inst.ID, inst.Status))
	}
	if op, ok := s.operations[inst.ID]; ok && !op.IsTerminal() {
		s.mu.Unlock()
		return nil, orcherrors.New(orcherrors.KindStartupOperationInProgress, fmt.Sprintf("a startup operation is already in progress for instance %s", inst.ID))
	}
	op := &model.StartupOperation{
		OperationID: uuid.NewString(),
		InstanceID:  inst.ID,
		NovitaInstanceID: inst.NovitaID,
		Status:      model.OperationInitiated,
		StartedAt:   time.Now().UTC(),
		Phases:      model.StartupPhases{StartRequested: time.Now().UTC()},
	}
	s.operations[inst.ID] = op
	s.mu.Unlock()

	status, err := s.upstream.StartInstanceWithRetry(ctx, inst.NovitaID, 3)
	if err != nil {
		s.mu.Lock()
		op.Status = model.OperationFailed
		op.Error = err.Error()
		delete(s.operations, inst.ID)
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	inst.Status = model.StatusStarting
	now := time.Now().UTC()
	op.Phases.InstanceStarting = &now
	op.Status = model.OperationMonitoring
	s.mu.Unlock()
	s.invalidateCache(inst.ID)

	if healthCfg == nil {
		defaultCfg := model.DefaultHealthCheckConfig()
		healthCfg = &defaultCfg
	}
	payload, _ := marshalMonitorPayload(model.MonitorPayload{
		InstanceID:        inst.ID,
		NovitaInstanceID:  inst.NovitaID,
		WebhookURL:        inst.WebhookURL,
		StartTime:         time.Now().UTC(),
		MaxWaitTimeMs:     s.defaultMaxWait(),
		HealthCheckConfig: healthCfg,
		OperationID:       op.OperationID,
	})
	if _, err := s.jobs.AddJob(ctx, model.JobMonitorStartup, payload, model.PriorityHigh, 3); err != nil {
		logger.Warnf("failed to enqueue monitor-startup job for instance %s: %v", inst.ID, err)
	}

	if inst.WebhookURL != "" {
		wpayload, _ := marshalWebhookPayload(model.SendWebhookPayload{
			URL: inst.WebhookURL,
			Payload: model.WebhookPayload{
				InstanceID:  inst.ID,
				Status:      "startup_initiated",
				Timestamp:   time.Now().UTC().Format(time.RFC3339),
				OperationID: op.OperationID,
			},
		})
		if _, err := s.jobs.AddJob(ctx, model.JobSendWebhook, wpayload, model.PriorityNormal, 3); err != nil {
			logger.Warnf("failed to enqueue startup_initiated webhook: %v", err)
		}
	}

	_ = status
	return &model.StartInstanceResponse{
		OperationID: op.OperationID,
		Status:      string(model.StatusStarting),
	}, nil
}

func (s *Service) resolveForStart(idOrName string, lookup model.LookupKind) (*model.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lookup == model.LookupByName {
		id, ok := s.nameIndex[idOrName]
		if !ok {
			return nil, orcherrors.New(orcherrors.KindNotFound, "no instance named "+idOrName)
		}
		return s.instances[id], nil
	}
	inst, ok := s.instances[idOrName]
	if !ok {
		return nil, orcherrors.New(orcherrors.KindNotFound, "instance not found: "+idOrName)
	}
	return inst, nil
}

// StopInstance marks an instance as stopping and returns once the local
// state transition is recorded. It issues no upstream stop call, and no
// caller in this repository issues one either.
func (s *Service) StopInstance(ctx context.Context, id string) error {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return orcherrors.New(orcherrors.KindNotFound, "instance not found: "+id)
	}
	inst.Status = model.StatusStopping
	s.mu.Unlock()
	s.invalidateCache(id)
	return nil
}

// GetInstanceStatus implements §4.1's cached-read-with-upstream-refresh.
func (s *Service) GetInstanceStatus(ctx context.Context, id string) (*model.Instance, error) {
	cacheKey := "instance:" + id
	if v, ok := s.cache.Get(cacheKey); ok {
		if inst, ok := v.(*model.Instance); ok {
			return inst.Clone(), nil
		}
	}

	s.mu.Lock()
	inst, ok := s.instances[id]
	s.mu.Unlock()
	if !ok {
		return nil, orcherrors.New(orcherrors.KindNotFound, "instance not found: "+id)
	}

	if inst.NovitaID == "" {
		s.cache.Set(cacheKey, inst.Clone(), 30*time.Second)
		return inst.Clone(), nil
	}

	view, err := s.upstream.GetInstance(ctx, inst.NovitaID)
	if err != nil {
		if kind, ok := orcherrors.KindOf(err); ok && kind == orcherrors.KindNotFound {
			if herr := s.HandleInstanceNotFound(ctx, id); herr != nil {
				logger.Warnf("failed to clean up not-found instance %s: %v", id, herr)
			}
			return nil, orcherrors.New(orcherrors.KindNotFound, "instance not found upstream: "+id)
		}
		// Transient upstream error: serve last-known state.
		return inst.Clone(), nil
	}

	s.mu.Lock()
	inst.Config.Ports = view.Ports
	inst.SpotStatus = view.SpotStatus
	inst.SpotReclaim = view.SpotReclaimTime
	snapshot := inst.Clone()
	s.mu.Unlock()

	s.cache.Set(cacheKey, snapshot, 30*time.Second)
	return snapshot, nil
}

// ListInstances implements §4.1's listInstances(opts).
func (s *Service) ListInstances(ctx context.Context, opts model.ListInstancesOptions) ([]*model.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		if opts.Status != "" && inst.Status != opts.Status {
			continue
		}
		out = append(out, inst.Clone())
	}
	if opts.Offset > 0 && opts.Offset < len(out) {
		out = out[opts.Offset:]
	} else if opts.Offset >= len(out) {
		out = nil
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// FindInstanceByName returns the instance registered under name, if any.
func (s *Service) FindInstanceByName(ctx context.Context, name string) (*model.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.nameIndex[name]
	if !ok {
		return nil, orcherrors.New(orcherrors.KindNotFound, "no instance named "+name)
	}
	return s.instances[id].Clone(), nil
}

// UpdateInstanceState applies mutate under the service's single mutator
// lock and invalidates the cached details for id (§3 invariant 5).
func (s *Service) UpdateInstanceState(ctx context.Context, id string, mutate func(*model.Instance)) (*model.Instance, error) {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return nil, orcherrors.New(orcherrors.KindNotFound, "instance not found: "+id)
	}
	mutate(inst)
	snapshot := inst.Clone()
	s.mu.Unlock()
	s.invalidateCache(id)
	s.persist(ctx, snapshot)
	return snapshot, nil
}

// HandleInstanceNotFound implements §3 invariant 6: a 404 from upstream
// for novitaId is authoritative, so the instance is removed locally.
func (s *Service) HandleInstanceNotFound(ctx context.Context, id string) error {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if ok {
		delete(s.instances, id)
		delete(s.nameIndex, inst.Name)
		delete(s.operations, id)
	}
	s.mu.Unlock()
	s.invalidateCache(id)
	if s.durability != nil {
		if err := s.durability.Delete(ctx, id); err != nil {
			logger.Warnf("instance service: failed to delete persisted instance %s: %v", id, err)
		}
	}
	return nil
}

// GetOperation returns the active Startup Operation for an instance, if any.
func (s *Service) GetOperation(instanceID string) (*model.StartupOperation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operations[instanceID]
	return op, ok
}

// CompleteOperation marks a Startup Operation terminal and removes it
// (§4.7's MONITOR_STARTUP: "operation removed on completed or failed").
func (s *Service) CompleteOperation(instanceID string, status model.StartupOperationStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operations[instanceID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	op.Status = status
	op.Error = errMsg
	op.Phases.Completed = &now
	delete(s.operations, instanceID)
}

func (s *Service) putInstance(ctx context.Context, inst *model.Instance) {
	s.mu.Lock()
	s.instances[inst.ID] = inst
	s.nameIndex[inst.Name] = inst.ID
	s.mu.Unlock()
	s.persist(ctx, inst)
}

func (s *Service) invalidateCache(id string) {
	s.cache.Delete("instance:" + id)
	s.publish(id)
	s.mu.Lock()
	var snapshot *model.Instance
	if inst, ok := s.instances[id]; ok {
		snapshot = inst.Clone()
	}
	s.mu.Unlock()
	if snapshot != nil {
		s.persist(context.Background(), snapshot)
	}
}

// Subscribe registers for status-transition snapshots of instance id,
// feeding the websocket status stream off the same invalidation hook C8
// uses for its own cache. The returned cancel func must be called when the
// subscriber disconnects to release the channel.
func (s *Service) Subscribe(id string) (<-chan *model.Instance, func()) {
	ch := make(chan *model.Instance, 8)
	s.subMu.Lock()
	s.subscribers[id] = append(s.subscribers[id], ch)
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		subs := s.subscribers[id]
		for i, c := range subs {
			if c == ch {
				s.subscribers[id] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}
	return ch, cancel
}

// publish emits the current snapshot of id to every active subscriber,
// dropping the send if a subscriber's buffer is full rather than blocking
// the mutator on a slow websocket client.
func (s *Service) publish(id string) {
	s.mu.Lock()
	inst, ok := s.instances[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	snapshot := inst.Clone()

	s.subMu.Lock()
	subs := s.subscribers[id]
	s.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// GetLocalInstance returns the local record for id without consulting
// upstream — used by job handlers that already have their own upstream
// polling loop and only need the locally-owned fields (§4.7).
func (s *Service) GetLocalInstance(ctx context.Context, id string) (*model.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, orcherrors.New(orcherrors.KindNotFound, "instance not found: "+id)
	}
	return inst.Clone(), nil
}

// ProcessCreateInstanceJob implements the §4.7 CREATE_INSTANCE job: the
// asynchronous counterpart to CreateInstance, driven by a queued payload
// rather than an inline HTTP call. It registers the instance row if one
// doesn't already exist under payload.InstanceID, then runs the same
// resolve -> create -> start -> enqueue-monitor sequence.
func (s *Service) ProcessCreateInstanceJob(ctx context.Context, payload model.CreateInstancePayload) error {
	s.mu.Lock()
	inst, ok := s.instances[payload.InstanceID]
	if !ok {
		inst = &model.Instance{
			ID:         payload.InstanceID,
			Name:       payload.Name,
			Status:     model.StatusCreating,
			Timestamps: model.InstanceTimestamps{Created: time.Now().UTC()},
			WebhookURL: payload.WebhookURL,
		}
		s.instances[inst.ID] = inst
		s.nameIndex[inst.Name] = inst.ID
	}
	s.mu.Unlock()
	s.invalidateCache(inst.ID)

	region := payload.Region
	if region == "" {
		region = s.cfg.DefaultRegion
	}

	product, err := s.products.GetOptimalProduct(ctx, payload.ProductName, region)
	if err != nil {
		s.failInstance(ctx, inst.ID, err)
		return err
	}

	templateConfig, err := s.templates.GetTemplateConfiguration(ctx, payload.TemplateID)
	if err != nil {
		s.failInstance(ctx, inst.ID, err)
		return err
	}

	imageAuth := ""
	if templateConfig.ImageAuth != "" {
		auth, err := s.upstream.GetRegistryAuth(ctx, templateConfig.ImageAuth)
		if err != nil {
			s.failInstance(ctx, inst.ID, err)
			return err
		}
		imageAuth = auth.Username + ":" + auth.Password
	}

	novitaID, err := s.upstream.CreateInstance(ctx, UpstreamCreateRequest{
		Name:       payload.Name,
		ProductID:  product.ProductID,
		GPUNum:     payload.GPUNum,
		RootfsSize: payload.RootfsSize,
		ImageURL:   templateConfig.ImageURL,
		ImageAuth:  imageAuth,
		Ports:      templateConfig.Ports,
		Envs:       templateConfig.Envs,
	})
	if err != nil {
		s.failInstance(ctx, inst.ID, err)
		return err
	}

	s.mu.Lock()
	inst.NovitaID = novitaID
	inst.ProductID = product.ProductID
	inst.TemplateID = payload.TemplateID
	inst.Config.GPUNum = payload.GPUNum
	inst.Config.RootfsSize = payload.RootfsSize
	inst.Config.Region = product.Region
	inst.Config.ImageURL = templateConfig.ImageURL
	inst.Config.ImageAuth = imageAuth
	inst.Config.Envs = templateConfig.Envs
	s.mu.Unlock()
	s.invalidateCache(inst.ID)

	if _, err := s.upstream.StartInstanceWithRetry(ctx, novitaID, 3); err != nil {
		s.failInstance(ctx, inst.ID, err)
		return err
	}

	s.mu.Lock()
	inst.Status = model.StatusStarting
	s.mu.Unlock()
	s.invalidateCache(inst.ID)

	maxWait := s.defaultMaxWait()
	monitorPayload, _ := marshalMonitorPayload(model.MonitorPayload{
		InstanceID:       inst.ID,
		NovitaInstanceID: novitaID,
		WebhookURL:       payload.WebhookURL,
		StartTime:        time.Now().UTC(),
		MaxWaitTimeMs:    maxWait,
	})
	if _, err := s.jobs.AddJob(ctx, model.JobMonitorInstance, monitorPayload, model.PriorityHigh, 3); err != nil {
		logger.Warnf("failed to enqueue monitor job for instance %s: %v", inst.ID, err)
	}
	return nil
}
