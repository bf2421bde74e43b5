package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
)

// execPath is the command path on the per-instance command service
// endpoint. Unlike the lifecycle paths, its base URL comes from the
// record, not the global config.
const execPath = "/v1/exec"

type execRequest struct {
	InstanceID string   `json:"instance_id"`
	Container  string   `json:"container"`
	Command    []string `json:"command"`
}

type execResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode *int   `json:"exit_code"`
}

// RunCommand executes a shell command against the record's target
// container. The composed string is always dispatched as sh -c. Failures
// during dispatch are wrapped as CommandError; a nonzero exit code is
// returned as data, never raised.
func (p *CloudProvider) RunCommand(ctx context.Context, inst *Instance, command string, opts CommandOptions) (*CommandResult, error) {
	if inst == nil || inst.CommandEndpoint == "" {
		return nil, &UnsupportedError{Op: "run_command"}
	}

	composed := composeShellCommand(command, opts)
	request := execRequest{
		InstanceID: inst.ID,
		Container:  inst.TargetContainer,
		Command:    []string{"sh", "-c", composed},
	}

	p.logger.Debug("running command",
		zap.String("instance_id", inst.ID),
		zap.String("container", inst.TargetContainer),
		zap.Bool("background", opts.Background))

	// Wall-clock duration includes the full round trip
	var response execResponse
	start := p.now()
	err := p.transport.request(ctx, inst.Token, inst.CommandEndpoint, execPath, request, nil, &response)
	elapsed := p.now().Sub(start)
	if err != nil {
		return nil, &CommandError{Err: err}
	}

	exitCode := 0
	if response.ExitCode != nil {
		exitCode = *response.ExitCode
	}

	return &CommandResult{
		Stdout:     decodeCommandOutput(response.Stdout),
		Stderr:     decodeCommandOutput(response.Stderr),
		ExitCode:   exitCode,
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

// composeShellCommand applies the optional composition steps in fixed
// order: environment assignments first, then the working-directory change
// joined by &&, then the detached background wrapper.
func composeShellCommand(command string, opts CommandOptions) string {
	composed := command

	if opts.Cwd != "" {
		composed = fmt.Sprintf("cd %s && %s", shellquote.Join(opts.Cwd), composed)
	}

	if len(opts.Env) > 0 {
		keys := make([]string, 0, len(opts.Env))
		for key := range opts.Env {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		assignments := make([]string, 0, len(keys))
		for _, key := range keys {
			assignments = append(assignments, fmt.Sprintf("%s=%s", key, shellquote.Join(opts.Env[key])))
		}
		composed = strings.Join(assignments, " ") + " " + composed
	}

	if opts.Background {
		composed = fmt.Sprintf("nohup sh -c %s >/dev/null 2>&1 &", shellquote.Join(composed))
	}

	return composed
}

// decodeCommandOutput decodes a base64 output stream. When the payload is
// not valid base64 the raw value is returned verbatim so an encoding
// surprise degrades instead of failing the call.
func decodeCommandOutput(value string) string {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return value
	}
	return string(decoded)
}
