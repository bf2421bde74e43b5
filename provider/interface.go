package provider

import (
	"context"
	"net/http"
	"time"
)

// Environment variables consulted as fallback credential sources
const (
	EnvToken     = "CLOUDBOX_API_TOKEN"
	EnvTokenFile = "CLOUDBOX_TOKEN_FILE"
)

// Instance is the canonical record for a remote compute instance.
//
// Records are immutable snapshots: lifecycle operations produce new
// records and never patch existing ones. The bearer token used to create
// or fetch the record is carried forward so command execution does not
// re-resolve credentials.
type Instance struct {
	ID              string
	Name            string
	CommandEndpoint string
	Token           string
	TargetContainer string
	CreatedAt       time.Time
}

// CreateOptions configures instance creation
type CreateOptions struct {
	Image string
	Env   map[string]string
}

// CommandOptions configures a single command invocation
type CommandOptions struct {
	Cwd        string
	Env        map[string]string
	Background bool
}

// CommandResult is the outcome of a command invocation. A nonzero exit
// code is data, not an error.
type CommandResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
}

// InstanceInfo is a static snapshot of an instance's reported state
type InstanceInfo struct {
	ID         string
	Provider   string
	Runtime    string
	Status     string
	CreatedAt  time.Time
	TimeoutSec int
	Metadata   InstanceMetadata
}

// InstanceMetadata echoes record identity fields in the info snapshot
type InstanceMetadata struct {
	Name            string
	CommandEndpoint string
}

// Provider defines the capability surface a sandbox backend exposes.
//
// Backends implement the full operation set; capabilities a backend does
// not have are concrete methods that deterministically fail with
// UnsupportedError rather than being omitted, so callers always see a
// uniform surface.
type Provider interface {
	// Create provisions a new instance and returns its canonical record.
	Create(ctx context.Context, opts CreateOptions) (*Instance, error)

	// Get fetches an instance by id. A remote "not found" yields
	// (nil, nil); absence is a valid outcome here, not an error.
	Get(ctx context.Context, id string) (*Instance, error)

	// List returns records for every instance carrying a usable id.
	List(ctx context.Context) ([]*Instance, error)

	// Destroy signals the remote system to tear down an instance. It is
	// best-effort cleanup and never fails; problems are logged as
	// warnings.
	Destroy(ctx context.Context, id string)

	// RunCommand executes a shell command against the record's target
	// container via its command endpoint.
	RunCommand(ctx context.Context, inst *Instance, command string, opts CommandOptions) (*CommandResult, error)

	// RunCode is not available for this backend.
	RunCode(ctx context.Context, inst *Instance, code, language string) (*CommandResult, error)

	// Info returns a fixed-shape snapshot without a remote call.
	Info(inst *Instance) *InstanceInfo

	// URL is not available for this backend.
	URL(inst *Instance) (string, error)

	// GetInstance returns the provider-native record backing a sandbox
	// handle. For this backend the record is its own native form.
	GetInstance(inst *Instance) *Instance
}

// Doer issues a single HTTP request. It is satisfied by *http.Client and
// replaced with a mock in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
