package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/cloudbox/config"
)

// Lifecycle endpoints under the compute-service namespace. All calls are
// POST with a JSON body.
const (
	createInstancePath = "/compute/v1/createInstance"
	getInstancePath    = "/compute/v1/getInstance"
	listInstancesPath  = "/compute/v1/listInstances"
	deleteInstancePath = "/compute/v1/deleteInstance"
)

const (
	// defaultImage is the container image used when neither the call
	// options nor the config specify one.
	defaultImage = "ubuntu:latest"

	// placeholderCommand keeps the container alive until a deadline or an
	// explicit destroy.
	placeholderCommand = "sleep infinity"

	// instanceDeadline is the fixed, non-configurable lifetime requested
	// for every created instance.
	instanceDeadline = time.Hour

	// instanceNamePrefix derives the record name from the remote id
	instanceNamePrefix = "instance-"
)

// Machine shape defaults applied when the config leaves a field unset
const (
	defaultVCPU         = 2
	defaultMemoryMB     = 2048
	defaultArchitecture = "amd64"
	defaultOS           = "linux"
)

// CloudProvider implements Provider against the remote compute API
type CloudProvider struct {
	logger    *zap.Logger
	cfg       *config.ComputeConfig
	transport *transport
	now       func() time.Time
}

// CloudProviderOption defines a functional option for CloudProvider
type CloudProviderOption func(*CloudProvider)

// WithHTTPClient sets the HTTP client used for remote calls
func WithHTTPClient(client Doer) CloudProviderOption {
	return func(p *CloudProvider) {
		p.transport = newTransport(p.logger, client)
	}
}

// WithClock sets the time source used for deadlines and durations
func WithClock(now func() time.Time) CloudProviderOption {
	return func(p *CloudProvider) {
		p.now = now
	}
}

// NewCloudProvider creates a CloudProvider with default implementations
// and optional overrides
func NewCloudProvider(logger *zap.Logger, cfg *config.ComputeConfig, opts ...CloudProviderOption) *CloudProvider {
	p := &CloudProvider{
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
	p.transport = newTransport(logger, nil)

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Wire shapes. Field names are exactly those the remote system defines.

type machineShape struct {
	VCPU         int    `json:"vcpu"`
	MemoryMB     int    `json:"memory_mb"`
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
}

type containerSpec struct {
	Image   string            `json:"image"`
	Command []string          `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
}

type createInstanceRequest struct {
	Machine    machineShape    `json:"machine"`
	Containers []containerSpec `json:"containers"`
	Purpose    string          `json:"purpose"`
	Deadline   string          `json:"deadline"`
}

type getInstanceRequest struct {
	ID string `json:"id"`
}

type deleteInstanceRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type instancePayload struct {
	ID              string `json:"id"`
	CommandEndpoint string `json:"command_endpoint"`
	CreatedAt       string `json:"created_at"`
}

type instanceResponse struct {
	Instance instancePayload `json:"instance"`
}

// listEntry tolerates the id either at the entry top level or nested
// under an instance object; the remote list response is inconsistent
// across call sites.
type listEntry struct {
	instancePayload
	Instance *instancePayload `json:"instance"`
}

// payload returns the usable instance payload for an entry, preferring
// the top-level id when both locations are populated.
func (e listEntry) payload() (instancePayload, bool) {
	if e.ID != "" {
		return e.instancePayload, true
	}
	if e.Instance != nil && e.Instance.ID != "" {
		return *e.Instance, true
	}
	return instancePayload{}, false
}

type listInstancesResponse struct {
	Instances []listEntry `json:"instances"`
}

// Create provisions a new instance with the configured machine shape, a
// single long-running container, and a deadline one hour out.
func (p *CloudProvider) Create(ctx context.Context, opts CreateOptions) (*Instance, error) {
	creds, err := ResolveCredentials(p.cfg)
	if err != nil {
		return nil, err
	}

	image := opts.Image
	if image == "" {
		image = p.cfg.Image
	}
	if image == "" {
		image = defaultImage
	}

	container := containerSpec{
		Image:   image,
		Command: []string{"sh", "-c", placeholderCommand},
	}
	if len(opts.Env) > 0 {
		container.Env = opts.Env
	}

	request := createInstanceRequest{
		Machine:    p.machineShape(),
		Containers: []containerSpec{container},
		Purpose:    p.cfg.Purpose,
		Deadline:   p.now().Add(instanceDeadline).UTC().Format(time.RFC3339),
	}

	var response instanceResponse
	if err := p.transport.request(ctx, creds.Token, p.cfg.BaseURL, createInstancePath, request, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	if response.Instance.ID == "" {
		return nil, &LifecycleError{Op: "create", Message: "response is missing an instance id"}
	}

	p.logger.Info("instance created",
		zap.String("instance_id", response.Instance.ID),
		zap.String("image", image))

	return p.record(response.Instance, creds.Token), nil
}

// Get fetches an instance by id. A remote 404 is reported as (nil, nil);
// absence is the one non-exceptional lifecycle outcome.
func (p *CloudProvider) Get(ctx context.Context, id string) (*Instance, error) {
	creds, err := ResolveCredentials(p.cfg)
	if err != nil {
		return nil, err
	}

	var response instanceResponse
	if err := p.transport.request(ctx, creds.Token, p.cfg.BaseURL, getInstancePath, getInstanceRequest{ID: id}, nil, &response); err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) && transportErr.NotFound() {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get instance %s: %w", id, err)
	}

	if response.Instance.ID == "" {
		return nil, &LifecycleError{Op: "get", Message: "response is missing an instance id"}
	}

	return p.record(response.Instance, creds.Token), nil
}

// List returns records for every instance carrying a usable id. Entries
// without an id in either known location are dropped. An empty result is
// not an error.
func (p *CloudProvider) List(ctx context.Context) ([]*Instance, error) {
	creds, err := ResolveCredentials(p.cfg)
	if err != nil {
		return nil, err
	}

	var response listInstancesResponse
	if err := p.transport.request(ctx, creds.Token, p.cfg.BaseURL, listInstancesPath, struct{}{}, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	records := make([]*Instance, 0, len(response.Instances))
	for _, entry := range response.Instances {
		payload, ok := entry.payload()
		if !ok {
			continue
		}
		records = append(records, p.record(payload, creds.Token))
	}

	return records, nil
}

// Destroy signals the remote system to tear down an instance. It never
// fails: the target may already be gone, and callers should not need
// failure handling for teardown, so every problem is downgraded to a
// logged warning.
func (p *CloudProvider) Destroy(ctx context.Context, id string) {
	creds, err := ResolveCredentials(p.cfg)
	if err != nil {
		p.logger.Warn("destroy skipped, no usable credentials",
			zap.String("instance_id", id),
			zap.Error(err))
		return
	}

	request := deleteInstanceRequest{ID: id, Reason: p.cfg.DestroyReason}
	if err := p.transport.request(ctx, creds.Token, p.cfg.BaseURL, deleteInstancePath, request, nil, nil); err != nil {
		p.logger.Warn("failed to destroy instance",
			zap.String("instance_id", id),
			zap.Error(err))
		return
	}

	p.logger.Info("instance destroyed", zap.String("instance_id", id))
}

func (p *CloudProvider) machineShape() machineShape {
	shape := machineShape{
		VCPU:         p.cfg.VCPU,
		MemoryMB:     p.cfg.MemoryMB,
		Architecture: p.cfg.Architecture,
		OS:           p.cfg.OS,
	}
	if shape.VCPU <= 0 {
		shape.VCPU = defaultVCPU
	}
	if shape.MemoryMB <= 0 {
		shape.MemoryMB = defaultMemoryMB
	}
	if shape.Architecture == "" {
		shape.Architecture = defaultArchitecture
	}
	if shape.OS == "" {
		shape.OS = defaultOS
	}
	return shape
}

// record maps a wire payload into the canonical record shape
func (p *CloudProvider) record(payload instancePayload, token string) *Instance {
	// Epoch zero when the remote system omits the creation timestamp
	created := time.Unix(0, 0).UTC()
	if payload.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, payload.CreatedAt); err == nil {
			created = ts
		}
	}

	container := p.cfg.TargetContainer
	if container == "" {
		container = "main-container"
	}

	return &Instance{
		ID:              payload.ID,
		Name:            instanceNamePrefix + payload.ID,
		CommandEndpoint: payload.CommandEndpoint,
		Token:           token,
		TargetContainer: container,
		CreatedAt:       created,
	}
}
