package provider

import "context"

// Fixed labels reported in info snapshots
const (
	providerTag  = "cloudbox"
	runtimeLabel = "cloud-vm"
)

// Info returns a fixed-shape snapshot of the record with no remote call.
// Status is always reported as running; no live status check is performed.
func (p *CloudProvider) Info(inst *Instance) *InstanceInfo {
	return &InstanceInfo{
		ID:         inst.ID,
		Provider:   providerTag,
		Runtime:    runtimeLabel,
		Status:     "running",
		CreatedAt:  inst.CreatedAt,
		TimeoutSec: 0,
		Metadata: InstanceMetadata{
			Name:            inst.Name,
			CommandEndpoint: inst.CommandEndpoint,
		},
	}
}

// RunCode is permanently unsupported: the capability does not exist for
// this backend, independent of input.
func (p *CloudProvider) RunCode(_ context.Context, _ *Instance, _, _ string) (*CommandResult, error) {
	return nil, &UnsupportedError{Op: "run_code"}
}

// URL is permanently unsupported for this backend
func (p *CloudProvider) URL(_ *Instance) (string, error) {
	return "", &UnsupportedError{Op: "get_url"}
}

// GetInstance returns the provider-native record backing the handle
func (p *CloudProvider) GetInstance(inst *Instance) *Instance {
	return inst
}
