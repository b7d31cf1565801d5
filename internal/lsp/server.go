// Package lsp provides a Language Server Protocol server that publishes
// dependency-audit diagnostics for Swift package manifests.
package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/version"
)

// serverName identifies the LSP server to clients.
const serverName = "packfang"

// auditFunc runs a whole-package audit rooted at dir. Injectable for tests.
type auditFunc func(ctx context.Context, dir string) (*audit.Report, error)

// DocumentStore is a thread-safe store for document contents keyed by URI.
type DocumentStore struct {
	documents map[string]string // URI -> content.
	mu        sync.RWMutex
}

// NewDocumentStore creates a new empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]string),
	}
}

// Set stores document content for the given URI.
func (ds *DocumentStore) Set(uri, content string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.documents[uri] = content
}

// Get retrieves document content by URI.
func (ds *DocumentStore) Get(uri string) (string, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	content, ok := ds.documents[uri]

	return content, ok
}

// Delete removes document content by URI.
func (ds *DocumentStore) Delete(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	delete(ds.documents, uri)
}

// Options configures the LSP server.
type Options struct {
	// Backend selects the manifest parser backend. Empty means auto.
	Backend manifest.Backend

	// Allow lists module names exempt from audit findings.
	Allow []string

	// Logger receives server output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server publishes manifest audit diagnostics over LSP.
type Server struct {
	store   *DocumentStore
	handler protocol.Handler
	backend manifest.Backend
	logger  *slog.Logger
	runner  auditFunc
}

// NewServer creates a manifest-audit LSP server.
func NewServer(opts Options) (*Server, error) {
	runner, err := audit.New(audit.Options{
		Backend: opts.Backend,
		Allow:   opts.Allow,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		store:   NewDocumentStore(),
		backend: opts.Backend,
		logger:  logger,
		runner:  runner.Run,
	}

	srv.handler = protocol.Handler{
		Initialize:            srv.initialize,
		Initialized:           srv.initialized,
		Shutdown:              srv.shutdown,
		SetTrace:              srv.setTrace,
		TextDocumentDidOpen:   srv.didOpen,
		TextDocumentDidChange: srv.didChange,
		TextDocumentDidSave:   srv.didSave,
		TextDocumentDidClose:  srv.didClose,
	}

	return srv, nil
}

// Run starts the LSP server on stdio. It blocks until the client closes the
// connection.
func (srv *Server) Run() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	err := lspServer.RunStdio()
	if err != nil {
		return fmt.Errorf("lsp server: %w", err)
	}

	return nil
}

func (srv *Server) initialize(_ *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()
	serverVersion := version.Version

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &serverVersion,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI

	srv.store.Set(uri, params.TextDocument.Text)
	srv.publishDiagnostics(ctx, uri)

	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	if len(params.ContentChanges) > 0 {
		if change, changeOK := params.ContentChanges[0].(map[string]any); changeOK {
			if text, textOK := change["text"].(string); textOK {
				srv.store.Set(uri, text)
				srv.publishDiagnostics(ctx, uri)
			}
		}
	}

	return nil
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	if _, ok := srv.store.Get(uri); ok {
		srv.publishDiagnostics(ctx, uri)
	}

	return nil
}

func (srv *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	srv.store.Delete(params.TextDocument.URI)

	return nil
}

// publishDiagnostics recomputes and pushes diagnostics for one document.
func (srv *Server) publishDiagnostics(ctx *glsp.Context, uri string) {
	content, ok := srv.store.Get(uri)
	if !ok {
		return
	}

	diagnostics := srv.Diagnose(context.Background(), uri, content)

	ctx.Notify("textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// uriToPath converts a file URI to a filesystem path. Non-file URIs return
// an empty string.
func uriToPath(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != "file" {
		return ""
	}

	path, err := url.PathUnescape(parsed.Path)
	if err != nil {
		return ""
	}

	return filepath.FromSlash(path)
}

// isManifestURI reports whether the URI names a package manifest.
func isManifestURI(uri string) bool {
	path := uriToPath(uri)

	return path != "" && strings.EqualFold(filepath.Base(path), manifest.FileName)
}
