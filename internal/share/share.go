// Package share orchestrates the upload-and-publish workflow: validate the
// request, confirm credentials, ensure the bucket, upload the file and grant
// public read access. Each gate that fails produces a complete Result rather
// than an error, so callers always receive the flat record the tool surface
// serialises.
package share

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/tomasbasham/gcs-share/internal/bucketname"
	"github.com/tomasbasham/gcs-share/internal/gcloud"
)

// Result is the terminal value of a share attempt. Field names are part of
// the tool contract.
type Result struct {
	Success       bool   `json:"success"`
	PublicURL     string `json:"public_url,omitempty"`
	Message       string `json:"message"`
	BucketName    string `json:"bucket_name,omitempty"`
	BlobName      string `json:"blob_name,omitempty"`
	BucketCreated bool   `json:"bucket_created,omitempty"`

	// NeedsInput names a missing argument the caller must supply; NeedsAuth
	// signals that out-of-band authentication is required first.
	NeedsInput string `json:"needs_input,omitempty"`
	NeedsAuth  bool   `json:"needs_auth,omitempty"`
}

// Storage is the subset of the gateway the workflow drives.
type Storage interface {
	EnsureBucket(ctx context.Context, name, location, storageClass string) (bool, error)
	UploadFile(ctx context.Context, bucket, sourcePath, destName, contentType string) (string, error)
	MakePublic(ctx context.Context, bucket, objectName string) (string, error)
}

// Authenticator reports credential state and remediation guidance.
type Authenticator interface {
	CheckAuthentication(ctx context.Context) gcloud.AuthStatus
	InitiateLogin(ctx context.Context) gcloud.Guidance
}

// Config carries the bucket defaults applied when a bucket has to be created.
type Config struct {
	Location     string
	StorageClass string
}

// Workflow runs the share sequence against injected collaborators.
type Workflow struct {
	storage Storage
	auth    Authenticator
	fs      afero.Fs
	cfg     Config
	log     zerolog.Logger
}

// Option overrides a Workflow collaborator, primarily for tests.
type Option func(*Workflow)

// WithFs substitutes the filesystem used for local file checks.
func WithFs(fs afero.Fs) Option {
	return func(w *Workflow) { w.fs = fs }
}

// NewWorkflow creates a Workflow over the given storage and authenticator.
func NewWorkflow(storage Storage, auth Authenticator, cfg Config, log zerolog.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		storage: storage,
		auth:    auth,
		fs:      afero.NewOsFs(),
		cfg:     cfg,
		log:     log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ShareFilePublic uploads the file at path to bucketName and makes it
// publicly readable. Gates run in a fixed order and the first failure wins;
// no remote call happens until the local checks and the credential check have
// all passed. A failed step after the bucket exists leaves any partial remote
// state in place.
func (w *Workflow) ShareFilePublic(ctx context.Context, path, bucketName, destName string) Result {
	resolved, err := expandPath(path)
	if err != nil {
		return Result{Message: fmt.Sprintf("File not found: %s", path)}
	}

	info, err := w.fs.Stat(resolved)
	if err != nil {
		return Result{Message: fmt.Sprintf("File not found: %s", path)}
	}
	if info.IsDir() {
		return Result{Message: fmt.Sprintf("Path is not a file: %s", path)}
	}

	if bucketName == "" {
		return Result{
			Message:    "Bucket name is required. Please ask the user for a Google Cloud Storage bucket name.",
			NeedsInput: "bucket_name",
		}
	}

	if ok, reason := bucketname.Validate(bucketName); !ok {
		return Result{
			Message:    fmt.Sprintf("Invalid bucket name: %s", reason),
			BucketName: bucketName,
		}
	}

	if status := w.auth.CheckAuthentication(ctx); !status.Authenticated {
		guidance := w.auth.InitiateLogin(ctx)
		return Result{
			Message:    guidance.Message,
			BucketName: bucketName,
			NeedsAuth:  true,
		}
	}

	if destName == "" {
		destName = filepath.Base(resolved)
	}

	created, err := w.storage.EnsureBucket(ctx, bucketName, w.cfg.Location, w.cfg.StorageClass)
	if err != nil {
		return w.failure(bucketName, err)
	}
	if created {
		w.log.Info().Str("bucket", bucketName).Msg("created new bucket")
	}

	blobName, err := w.storage.UploadFile(ctx, bucketName, resolved, destName, "")
	if err != nil {
		return w.failure(bucketName, err)
	}

	publicURL, err := w.storage.MakePublic(ctx, bucketName, blobName)
	if err != nil {
		return w.failure(bucketName, err)
	}

	return Result{
		Success:       true,
		Message:       "File uploaded and made public successfully.",
		PublicURL:     publicURL,
		BucketName:    bucketName,
		BlobName:      blobName,
		BucketCreated: created,
	}
}

func (w *Workflow) failure(bucketName string, err error) Result {
	w.log.Error().Err(err).Str("bucket", bucketName).Msg("share failed")
	return Result{
		Message:    err.Error(),
		BucketName: bucketName,
	}
}

// expandPath resolves ~, ~user and environment-variable references and makes
// the path absolute.
func expandPath(path string) (string, error) {
	path = os.ExpandEnv(path)
	switch {
	case path == "~" || strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	case strings.HasPrefix(path, "~"):
		name, rest, _ := strings.Cut(path[1:], "/")
		u, err := user.Lookup(name)
		if err != nil {
			return "", err
		}
		path = filepath.Join(u.HomeDir, rest)
	}
	return filepath.Abs(path)
}
