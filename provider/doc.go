// Package provider adapts a remote cloud compute API to the generic
// sandbox provider surface.
//
// The provider package resolves bearer credentials from a layered set of
// sources, translates sandbox lifecycle and command operations into the
// remote API's request and response shapes, and normalizes transport and
// application-level failures into a typed error taxonomy. Every operation
// is a single synchronous round trip; the package holds no state between
// calls and the returned records are immutable value snapshots.
//
// Usage:
//
//	p, err := provider.New(logger, cfg)
//	inst, err := p.Create(ctx, provider.CreateOptions{Image: "alpine"})
//	result, err := p.RunCommand(ctx, inst, "echo hello", provider.CommandOptions{})
package provider
