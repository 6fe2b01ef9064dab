// Package server exposes the sharing operations as Model Context Protocol
// tools over stdio:
//
//	share_file_public — upload a local file to GCS and return its public URL
//	check_gcs_auth    — report credential state and remediation guidance
//	list_buckets      — enumerate buckets visible to the resolved project
//
// Handlers translate tool arguments into workflow calls and serialise the
// resulting flat records as JSON text content. The wrapper around every
// handler is the outermost error boundary: a panic is logged in full and
// surfaced to the caller as a generic failure record, never as a dropped
// connection.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/tomasbasham/gcs-share/internal/share"
)

// Sharer runs the upload-and-publish workflow.
type Sharer interface {
	ShareFilePublic(ctx context.Context, path, bucketName, destName string) share.Result
}

// BucketLister enumerates visible buckets.
type BucketLister interface {
	ListBuckets(ctx context.Context) ([]string, error)
}

// authResult is the record returned by check_gcs_auth. Field names are part
// of the tool contract.
type authResult struct {
	Authenticated  bool   `json:"authenticated"`
	Message        string `json:"message"`
	ProjectID      string `json:"project_id,omitempty"`
	ActionRequired string `json:"action_required,omitempty"`
	Command        string `json:"command,omitempty"`
}

// listResult is the record returned by list_buckets.
type listResult struct {
	Success bool     `json:"success"`
	Buckets []string `json:"buckets"`
	Message string   `json:"message"`
}

// Server holds the dependencies shared across tool handlers.
type Server struct {
	sharer Sharer
	auth   share.Authenticator
	lister BucketLister
	log    zerolog.Logger

	mcp *mcpserver.MCPServer
}

// New creates a Server wired to the given workflow, authenticator and bucket
// lister.
func New(sharer Sharer, auth share.Authenticator, lister BucketLister, version string, log zerolog.Logger) *Server {
	s := &Server{
		sharer: sharer,
		auth:   auth,
		lister: lister,
		log:    log,
	}

	s.mcp = mcpserver.NewMCPServer(
		"GCS Public Share",
		version,
		mcpserver.WithInstructions("Share files publicly via Google Cloud Storage"),
	)

	shareTool := mcp.NewTool("share_file_public",
		mcp.WithDescription("Upload a file to Google Cloud Storage and make it publicly accessible. Returns the public URL of the uploaded file."),
		mcp.WithString("file_path", mcp.Required(),
			mcp.Description("Path to the local file to upload")),
		mcp.WithString("bucket_name",
			mcp.Description("Name of the GCS bucket. If not provided, ask the user for a bucket name.")),
		mcp.WithString("destination_name",
			mcp.Description("Name for the file in GCS. Defaults to the original filename.")),
	)
	s.mcp.AddTool(shareTool, s.guard("share_file_public", s.handleShareFilePublic))

	authTool := mcp.NewTool("check_gcs_auth",
		mcp.WithDescription("Check Google Cloud authentication status and get login instructions if needed."),
	)
	s.mcp.AddTool(authTool, s.guard("check_gcs_auth", s.handleCheckAuth))

	listTool := mcp.NewTool("list_buckets",
		mcp.WithDescription("List all accessible Google Cloud Storage buckets."),
	)
	s.mcp.AddTool(listTool, s.guard("list_buckets", s.handleListBuckets))

	return s
}

// ServeStdio runs the MCP protocol over the given streams until ctx is
// cancelled or the input stream closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, in, out)
}

// handlerFunc produces the record a tool serialises back to the caller.
type handlerFunc func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// guard wraps a handler with per-invocation logging and the outermost panic
// boundary. Argument errors become protocol-level tool errors; anything
// escaping a handler becomes a generic failure record.
func (s *Server) guard(name string, fn handlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		log := s.log.With().Str("tool", name).Str("invocation", uuid.New().String()).Logger()

		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("unexpected error in tool handler")
				result = textJSON(map[string]any{
					"success": false,
					"message": fmt.Sprintf("Unexpected error: %v", r),
				})
				err = nil
			}
		}()

		log.Debug().Msg("tool invoked")

		record, err := fn(ctx, req)
		if err != nil {
			log.Warn().Err(err).Msg("rejected tool request")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textJSON(record), nil
	}
}

func (s *Server) handleShareFilePublic(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	filePath, err := req.RequireString("file_path")
	if err != nil {
		return nil, err
	}
	bucketName := req.GetString("bucket_name", "")
	destName := req.GetString("destination_name", "")

	return s.sharer.ShareFilePublic(ctx, filePath, bucketName, destName), nil
}

func (s *Server) handleCheckAuth(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
	return s.checkAuth(ctx), nil
}

// checkAuth builds the auth record shared by the check_gcs_auth tool and the
// list_buckets auth gate. A fresh credential check runs every time;
// credentials can change between calls via an out-of-band login.
func (s *Server) checkAuth(ctx context.Context) authResult {
	status := s.auth.CheckAuthentication(ctx)
	if status.Authenticated {
		return authResult{
			Authenticated: true,
			Message:       fmt.Sprintf("Authenticated with Google Cloud. Project: %s", status.ProjectID),
			ProjectID:     status.ProjectID,
		}
	}

	guidance := s.auth.InitiateLogin(ctx)
	return authResult{
		Message:        guidance.Message,
		ActionRequired: guidance.ActionRequired,
		Command:        guidance.Command,
	}
}

func (s *Server) handleListBuckets(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
	if auth := s.checkAuth(ctx); !auth.Authenticated {
		return listResult{Buckets: []string{}, Message: auth.Message}, nil
	}

	buckets, err := s.lister.ListBuckets(ctx)
	if err != nil {
		return listResult{Buckets: []string{}, Message: err.Error()}, nil
	}
	if buckets == nil {
		buckets = []string{}
	}

	return listResult{
		Success: true,
		Buckets: buckets,
		Message: fmt.Sprintf("Found %d bucket(s)", len(buckets)),
	}, nil
}

func textJSON(record any) *mcp.CallToolResult {
	b, err := json.Marshal(record)
	if err != nil {
		return mcp.NewToolResultError("failed to encode result: " + err.Error())
	}
	return mcp.NewToolResultText(string(b))
}
