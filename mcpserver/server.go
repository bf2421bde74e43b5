package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/cloudbox/config"
	"github.com/isdmx/cloudbox/provider"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	provider  provider.Provider
	mcpServer *server.MCPServer

	// instances tracks records created or fetched during this MCP session
	// so later tool calls can reference them by id. The provider itself
	// stays stateless; unknown ids fall through to the remote API.
	mu        sync.RWMutex
	instances map[string]*provider.Instance
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, prov provider.Provider) (*MCPServer, error) {
	s := &MCPServer{
		config:    cfg,
		logger:    logger,
		provider:  prov,
		instances: make(map[string]*provider.Instance),
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("compute.backend", s.config.Compute.Backend),
		zap.String("compute.base_url", s.config.Compute.BaseURL),
		zap.Int("compute.vcpu", s.config.Compute.VCPU),
		zap.Int("compute.memory_mb", s.config.Compute.MemoryMB),
		zap.String("compute.architecture", s.config.Compute.Architecture),
		zap.String("compute.os", s.config.Compute.OS),
		zap.String("compute.image", s.config.Compute.Image),
		zap.String("compute.target_container", s.config.Compute.TargetContainer),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("cloudbox", "A sandbox provider backed by a remote compute API")

	s.registerTools()

	return s, nil
}

// registerTools registers the sandbox lifecycle and command tools
func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "create_sandbox",
		Description: "Create a new cloud sandbox instance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"image": map[string]any{
					"type":        "string",
					"description": "Container image reference (optional, defaults to ubuntu:latest)",
				},
				"env": map[string]any{
					"type":        "object",
					"description": "Environment variables for the sandbox container (optional)",
				},
			},
		},
	}, s.handleCreateSandbox)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_sandbox",
		Description: "Fetch a sandbox instance by id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Instance id",
				},
			},
			Required: []string{"id"},
		},
	}, s.handleGetSandbox)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sandboxes",
		Description: "List all sandbox instances",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, s.handleListSandboxes)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "destroy_sandbox",
		Description: "Destroy a sandbox instance (best-effort, never fails)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Instance id",
				},
			},
			Required: []string{"id"},
		},
	}, s.handleDestroySandbox)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "run_command",
		Description: "Run a shell command inside a sandbox instance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Instance id",
				},
				"command": map[string]any{
					"type":        "string",
					"description": "Shell command to execute",
				},
				"cwd": map[string]any{
					"type":        "string",
					"description": "Working directory (optional)",
				},
				"env": map[string]any{
					"type":        "object",
					"description": "Environment variables for this command (optional)",
				},
				"background": map[string]any{
					"type":        "boolean",
					"description": "Run detached in the background, discarding output (optional)",
				},
			},
			Required: []string{"id", "command"},
		},
	}, s.handleRunCommand)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "sandbox_info",
		Description: "Report a static info snapshot for a sandbox instance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Instance id",
				},
			},
			Required: []string{"id"},
		},
	}, s.handleSandboxInfo)
}

// instanceJSON is the tool-facing projection of a record
type instanceJSON struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CommandEndpoint string `json:"command_endpoint,omitempty"`
	TargetContainer string `json:"target_container"`
	CreatedAt       string `json:"created_at"`
}

func instanceToJSON(inst *provider.Instance) instanceJSON {
	return instanceJSON{
		ID:              inst.ID,
		Name:            inst.Name,
		CommandEndpoint: inst.CommandEndpoint,
		TargetContainer: inst.TargetContainer,
		CreatedAt:       inst.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *MCPServer) remember(inst *provider.Instance) {
	s.mu.Lock()
	s.instances[inst.ID] = inst
	s.mu.Unlock()
}

func (s *MCPServer) forget(id string) {
	s.mu.Lock()
	delete(s.instances, id)
	s.mu.Unlock()
}

// lookup resolves an instance id from the session map, falling through to
// the remote API for ids this session has not seen.
func (s *MCPServer) lookup(ctx context.Context, id string) (*provider.Instance, error) {
	s.mu.RLock()
	inst, ok := s.instances[id]
	s.mu.RUnlock()
	if ok {
		return inst, nil
	}

	inst, err := s.provider.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("no sandbox with id %s", id)
	}
	s.remember(inst)
	return inst, nil
}

func textResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

// stringMapArgument extracts an optional object argument as a string map
func stringMapArgument(request mcp.CallToolRequest, key string) map[string]string {
	args := request.GetArguments()
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(raw))
	for k, v := range raw {
		if str, ok := v.(string); ok {
			result[k] = str
		}
	}
	return result
}

// handleCreateSandbox handles the create_sandbox tool
func (s *MCPServer) handleCreateSandbox(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("sandbox creation requested")

	opts := provider.CreateOptions{
		Image: request.GetString("image", ""),
		Env:   stringMapArgument(request, "env"),
	}

	inst, err := s.provider.Create(ctx, opts)
	if err != nil {
		s.logger.Error("sandbox creation failed", zap.Error(err))
		return errorResult("Creation failed: %v", err), nil
	}

	s.remember(inst)
	return textResult(instanceToJSON(inst))
}

// handleGetSandbox handles the get_sandbox tool
func (s *MCPServer) handleGetSandbox(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return nil, fmt.Errorf("id parameter is required: %w", err)
	}

	inst, err := s.provider.Get(ctx, id)
	if err != nil {
		s.logger.Error("sandbox lookup failed", zap.String("instance_id", id), zap.Error(err))
		return errorResult("Lookup failed: %v", err), nil
	}
	if inst == nil {
		return textResult(map[string]any{"found": false})
	}

	s.remember(inst)
	return textResult(map[string]any{"found": true, "sandbox": instanceToJSON(inst)})
}

// handleListSandboxes handles the list_sandboxes tool
func (s *MCPServer) handleListSandboxes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instances, err := s.provider.List(ctx)
	if err != nil {
		s.logger.Error("sandbox listing failed", zap.Error(err))
		return errorResult("Listing failed: %v", err), nil
	}

	result := make([]instanceJSON, 0, len(instances))
	for _, inst := range instances {
		s.remember(inst)
		result = append(result, instanceToJSON(inst))
	}

	return textResult(result)
}

// handleDestroySandbox handles the destroy_sandbox tool
func (s *MCPServer) handleDestroySandbox(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return nil, fmt.Errorf("id parameter is required: %w", err)
	}

	s.provider.Destroy(ctx, id)
	s.forget(id)

	return textResult(map[string]any{"destroyed": id})
}

// handleRunCommand handles the run_command tool
func (s *MCPServer) handleRunCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return nil, fmt.Errorf("id parameter is required: %w", err)
	}

	command, err := request.RequireString("command")
	if err != nil {
		return nil, fmt.Errorf("command parameter is required: %w", err)
	}

	inst, err := s.lookup(ctx, id)
	if err != nil {
		return errorResult("Sandbox lookup failed: %v", err), nil
	}

	opts := provider.CommandOptions{
		Cwd:        request.GetString("cwd", ""),
		Env:        stringMapArgument(request, "env"),
		Background: request.GetBool("background", false),
	}

	result, err := s.provider.RunCommand(ctx, inst, command, opts)
	if err != nil {
		s.logger.Error("command execution failed",
			zap.String("instance_id", id),
			zap.Error(err))
		return errorResult("Execution failed: %v", err), nil
	}

	s.logger.Info("command completed",
		zap.String("instance_id", id),
		zap.Int("exit_code", result.ExitCode),
		zap.Int64("duration_ms", result.DurationMS))

	return textResult(map[string]any{
		"stdout":      result.Stdout,
		"stderr":      result.Stderr,
		"exit_code":   result.ExitCode,
		"duration_ms": result.DurationMS,
	})
}

// handleSandboxInfo handles the sandbox_info tool
func (s *MCPServer) handleSandboxInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return nil, fmt.Errorf("id parameter is required: %w", err)
	}

	inst, err := s.lookup(ctx, id)
	if err != nil {
		return errorResult("Sandbox lookup failed: %v", err), nil
	}

	info := s.provider.Info(inst)
	return textResult(map[string]any{
		"id":          info.ID,
		"provider":    info.Provider,
		"runtime":     info.Runtime,
		"status":      info.Status,
		"created_at":  info.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"timeout_sec": info.TimeoutSec,
		"metadata": map[string]any{
			"name":             info.Metadata.Name,
			"command_endpoint": info.Metadata.CommandEndpoint,
		},
	})
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
