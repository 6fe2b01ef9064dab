// Package storage owns the single Cloud Storage client used by the process
// and exposes the bucket and object operations the sharing workflow needs:
// existence checks, idempotent creation, whole-file upload, public-read IAM
// binding and bucket listing.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/iam/apiv1/iampb"
	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	// DefaultLocation and DefaultStorageClass apply when a bucket has to be
	// created and the caller did not say otherwise.
	DefaultLocation     = "US-EAST1"
	DefaultStorageClass = "STANDARD"

	roleObjectViewer = "roles/storage.objectViewer"

	fallbackContentType = "application/octet-stream"
)

// Error is the single failure kind returned by the Gateway. Callers display
// the message; they do not branch on structured sub-fields.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Gateway holds one Cloud Storage client and the project it resolved to. It
// is created once by the process entry point and shared for the process
// lifetime; it performs no in-process locking because every operation is an
// independent remote call.
type Gateway struct {
	client    *gcs.Client
	projectID string
	log       zerolog.Logger
}

// NewGateway creates a Gateway for projectID. opts are passed through to the
// underlying client, allowing credential injection.
func NewGateway(ctx context.Context, projectID string, log zerolog.Logger, opts ...option.ClientOption) (*Gateway, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create client: %w", err)
	}
	return &Gateway{client: client, projectID: projectID, log: log}, nil
}

// ProjectID reports the project this gateway operates in.
func (g *Gateway) ProjectID() string { return g.projectID }

// Close releases the underlying client.
func (g *Gateway) Close() error { return g.client.Close() }

// BucketExists probes the bucket's metadata. Connectivity failures propagate
// as gateway errors rather than being folded into "does not exist".
func (g *Gateway) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := g.client.Bucket(name).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gcs.ErrBucketNotExist):
		return false, nil
	default:
		return false, errorf("failed to check bucket %s: %v", name, err)
	}
}

// EnsureBucket creates the bucket if it does not already exist, with uniform
// bucket-level access enabled. It reports whether a bucket was actually
// created. A creation conflict means somebody else won the race; that is
// treated as success without creation.
func (g *Gateway) EnsureBucket(ctx context.Context, name, location, storageClass string) (bool, error) {
	if location == "" {
		location = DefaultLocation
	}
	if storageClass == "" {
		storageClass = DefaultStorageClass
	}

	exists, err := g.BucketExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		g.log.Info().Str("bucket", name).Msg("bucket already exists")
		return false, nil
	}

	attrs := &gcs.BucketAttrs{
		Location:     location,
		StorageClass: storageClass,
		UniformBucketLevelAccess: gcs.UniformBucketLevelAccess{
			Enabled: true,
		},
	}

	err = g.client.Bucket(name).Create(ctx, g.projectID, attrs)
	switch status(err) {
	case http.StatusOK:
		g.log.Info().Str("bucket", name).Str("location", location).Msg("created bucket")
		return true, nil
	case http.StatusConflict:
		g.log.Warn().Str("bucket", name).Msg("bucket already exists (conflict)")
		return false, nil
	case http.StatusForbidden:
		return false, errorf("permission denied creating bucket %s: ensure you have the storage.buckets.create permission: %v", name, err)
	default:
		return false, errorf("failed to create bucket %s: %v", name, err)
	}
}

// UploadFile copies the file at sourcePath into bucket under destName as a
// single whole-file transfer. When contentType is empty it is inferred from
// destName's extension, falling back to application/octet-stream.
func (g *Gateway) UploadFile(ctx context.Context, bucket, sourcePath, destName, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentType(destName)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return "", errorf("failed to open %s: %v", sourcePath, err)
	}
	defer f.Close()

	w := g.client.Bucket(bucket).Object(destName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", g.uploadError(bucket, err)
	}
	if err := w.Close(); err != nil {
		return "", g.uploadError(bucket, err)
	}

	g.log.Info().
		Str("source", sourcePath).
		Str("destination", fmt.Sprintf("gs://%s/%s", bucket, destName)).
		Str("content_type", contentType).
		Msg("uploaded file")
	return destName, nil
}

func (g *Gateway) uploadError(bucket string, err error) *Error {
	switch status(err) {
	case http.StatusNotFound:
		return errorf("bucket %s not found", bucket)
	case http.StatusForbidden:
		return errorf("permission denied uploading to %s: ensure you have the storage.objects.create permission: %v", bucket, err)
	default:
		return errorf("failed to upload file: %v", err)
	}
}

// MakePublic grants allUsers read access to the bucket's objects via its IAM
// policy and returns the object's public URL. Uniform bucket-level access is
// enabled first if it is not already; that change is never reverted. The
// policy write is skipped when the binding already exists, so repeated calls
// are idempotent.
func (g *Gateway) MakePublic(ctx context.Context, bucket, objectName string) (string, error) {
	b := g.client.Bucket(bucket)

	attrs, err := b.Attrs(ctx)
	if err != nil {
		return "", g.publicError(bucket, err)
	}

	if !attrs.UniformBucketLevelAccess.Enabled {
		update := gcs.BucketAttrsToUpdate{
			UniformBucketLevelAccess: &gcs.UniformBucketLevelAccess{Enabled: true},
		}
		if _, err := b.Update(ctx, update); err != nil {
			return "", g.publicError(bucket, err)
		}
		g.log.Info().Str("bucket", bucket).Msg("enabled uniform bucket-level access")
	}

	policy, err := b.IAM().V3().Policy(ctx)
	if err != nil {
		return "", g.publicError(bucket, err)
	}

	if !hasPublicReadBinding(policy) {
		policy.Bindings = append(policy.Bindings, &iampb.Binding{
			Role:    roleObjectViewer,
			Members: []string{iam.AllUsers},
		})
		if err := b.IAM().V3().SetPolicy(ctx, policy); err != nil {
			return "", g.publicError(bucket, err)
		}
		g.log.Info().Str("bucket", bucket).Msg("granted public read access")
	}

	return PublicURL(bucket, objectName), nil
}

func (g *Gateway) publicError(bucket string, err error) *Error {
	if status(err) == http.StatusForbidden {
		return errorf("permission denied setting public access on %s: ensure you have the storage.buckets.setIamPolicy permission; "+
			"note that public access may be blocked by organization policy: %v", bucket, err)
	}
	return errorf("failed to make object public: %v", err)
}

// ListBuckets enumerates the buckets visible to the resolved project, in the
// order the service returns them.
func (g *Gateway) ListBuckets(ctx context.Context) ([]string, error) {
	var names []string

	it := g.client.Buckets(ctx, g.projectID)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			if status(err) == http.StatusForbidden {
				return nil, errorf("permission denied listing buckets: ensure you have the storage.buckets.list permission: %v", err)
			}
			return nil, errorf("failed to list buckets: %v", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// PublicURL is the deterministic public address of an object. It is pure
// string construction, never queried from the service.
func PublicURL(bucket, objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectName)
}

// ContentType infers a MIME type from a file name's extension.
func ContentType(name string) string {
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		return fallbackContentType
	}
	// mime.TypeByExtension appends charset parameters for text types; the
	// bare type is what the object metadata should carry.
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

func hasPublicReadBinding(policy *iam.Policy3) bool {
	for _, binding := range policy.Bindings {
		if binding.Role != roleObjectViewer {
			continue
		}
		for _, member := range binding.Members {
			if member == iam.AllUsers {
				return true
			}
		}
	}
	return false
}

// status extracts the HTTP status code from a Cloud Storage API error. A nil
// error reports 200; non-API errors report 0 so they fall through to the
// generic branch of each classifier.
func status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
