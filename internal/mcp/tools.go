package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

// Tool name constants.
const (
	ToolNameAuditPackage = "audit_package"
	ToolNameAuditTarget  = "audit_target"
	ToolNameListTargets  = "list_targets"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")
	// ErrPathNotAbsolute indicates the path is not an absolute path.
	ErrPathNotAbsolute = errors.New("path must be an absolute path")
	// ErrPackageNotFound indicates the path holds no package manifest.
	ErrPackageNotFound = errors.New("no package manifest at path")
	// ErrEmptyTarget indicates the target parameter is empty.
	ErrEmptyTarget = errors.New("target parameter is required and must not be empty")
)

// AuditPackageInput is the input schema for the audit_package tool.
type AuditPackageInput struct {
	Path    string   `json:"path"              jsonschema:"absolute path to a Swift package directory"`
	Allow   []string `json:"allow,omitempty"   jsonschema:"additional module names exempt from findings (case-sensitive)"`
	NoCache bool     `json:"no_cache,omitempty" jsonschema:"bypass the cached report for this package"`
}

// AuditTargetInput is the input schema for the audit_target tool.
type AuditTargetInput struct {
	Path   string   `json:"path"            jsonschema:"absolute path to a Swift package directory"`
	Target string   `json:"target"          jsonschema:"name of the target to audit"`
	Allow  []string `json:"allow,omitempty" jsonschema:"additional module names exempt from findings (case-sensitive)"`
}

// ListTargetsInput is the input schema for the list_targets tool.
type ListTargetsInput struct {
	Path string `json:"path" jsonschema:"absolute path to a Swift package directory"`
}

// TargetInfo is one manifest target in a list_targets response.
type TargetInfo struct {
	Name         string                `json:"name"`
	Kind         manifest.TargetKind   `json:"kind"`
	Path         string                `json:"path,omitempty"`
	Dependencies []manifest.Dependency `json:"dependencies,omitempty"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validatePackagePath checks that path is an absolute directory holding a
// package manifest.
func validatePackagePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s", ErrPathNotAbsolute, path)
	}

	_, err := os.Stat(filepath.Join(path, manifest.FileName))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPackageNotFound, path)
	}

	return nil
}

// newRunner builds an audit runner from the server defaults plus per-call
// allow-list entries.
func (s *Server) newRunner(extraAllow []string) (*audit.Runner, error) {
	allow := s.allow
	if len(extraAllow) > 0 {
		allow = append(append([]string{}, s.allow...), extraAllow...)
	}

	return audit.New(audit.Options{
		Backend: s.backend,
		Allow:   allow,
		Workers: s.workers,
		Logger:  s.logger,
		Tracer:  s.tracer,
	})
}

// handleAuditPackage processes audit_package tool calls. Reports are cached
// by package path and manifest modification time; a per-call allow-list
// bypasses the cache since it changes the result.
func (s *Server) handleAuditPackage(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input AuditPackageInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validatePackagePath(input.Path)
	if err != nil {
		return errorResult(err)
	}

	cacheable := !input.NoCache && len(input.Allow) == 0

	if cacheable {
		if report, ok := s.cache.get(input.Path); ok {
			return jsonResult(report)
		}
	}

	runner, err := s.newRunner(input.Allow)
	if err != nil {
		return errorResult(err)
	}

	report, err := runner.Run(ctx, input.Path)
	if err != nil {
		return errorResult(err)
	}

	report.Sort()

	if cacheable {
		s.cache.put(input.Path, report)
	}

	return jsonResult(report)
}

// handleAuditTarget processes audit_target tool calls.
func (s *Server) handleAuditTarget(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input AuditTargetInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validatePackagePath(input.Path)
	if err != nil {
		return errorResult(err)
	}

	if input.Target == "" {
		return errorResult(ErrEmptyTarget)
	}

	runner, err := s.newRunner(input.Allow)
	if err != nil {
		return errorResult(err)
	}

	result, err := runner.AuditTarget(ctx, input.Path, input.Target)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// handleListTargets processes list_targets tool calls.
func (s *Server) handleListTargets(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ListTargetsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validatePackagePath(input.Path)
	if err != nil {
		return errorResult(err)
	}

	pkg, err := manifest.ParseDir(ctx, input.Path, s.backend)
	if err != nil {
		return errorResult(err)
	}

	targets := make([]TargetInfo, 0, len(pkg.Targets))
	for _, target := range pkg.Targets {
		targets = append(targets, TargetInfo{
			Name:         target.Name,
			Kind:         target.Kind,
			Path:         target.Path,
			Dependencies: target.Dependencies,
		})
	}

	return jsonResult(targets)
}
