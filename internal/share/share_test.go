package share

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasbasham/gcs-share/internal/gcloud"
	"github.com/tomasbasham/gcs-share/internal/storage"
)

// fakeStorage records calls and returns scripted outcomes.
type fakeStorage struct {
	created   bool
	ensureErr error
	uploadErr error
	publicErr error

	ensureCalls int
	uploadCalls int
	publicCalls int

	lastLocation string
	lastDest     string
}

func (f *fakeStorage) EnsureBucket(_ context.Context, name, location, storageClass string) (bool, error) {
	f.ensureCalls++
	f.lastLocation = location
	return f.created, f.ensureErr
}

func (f *fakeStorage) UploadFile(_ context.Context, bucket, sourcePath, destName, contentType string) (string, error) {
	f.uploadCalls++
	f.lastDest = destName
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return destName, nil
}

func (f *fakeStorage) MakePublic(_ context.Context, bucket, objectName string) (string, error) {
	f.publicCalls++
	if f.publicErr != nil {
		return "", f.publicErr
	}
	return storage.PublicURL(bucket, objectName), nil
}

type fakeAuth struct {
	authenticated bool
	checkCalls    int
}

func (f *fakeAuth) CheckAuthentication(context.Context) gcloud.AuthStatus {
	f.checkCalls++
	if f.authenticated {
		return gcloud.AuthStatus{Authenticated: true, ProjectID: "acme-prod", Message: "already authenticated"}
	}
	return gcloud.AuthStatus{Message: "no valid credentials found"}
}

func (f *fakeAuth) InitiateLogin(context.Context) gcloud.Guidance {
	return gcloud.Guidance{
		Message:        "You are not authenticated with Google Cloud.",
		ActionRequired: gcloud.ActionRunLogin,
		Command:        "gcloud auth login && gcloud auth application-default login",
	}
}

func newTestWorkflow(t *testing.T, st *fakeStorage, auth *fakeAuth) (*Workflow, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	w := NewWorkflow(st, auth, Config{Location: "EU", StorageClass: "STANDARD"}, zerolog.Nop(), WithFs(fs))
	return w, fs
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestShareFilePublicSuccess(t *testing.T) {
	st := &fakeStorage{created: true}
	auth := &fakeAuth{authenticated: true}
	w, fs := newTestWorkflow(t, st, auth)
	writeFile(t, fs, "/data/report.pdf", "pdf bytes")

	result := w.ShareFilePublic(context.Background(), "/data/report.pdf", "my-share-bucket", "")
	require.True(t, result.Success)
	assert.Equal(t, "https://storage.googleapis.com/my-share-bucket/report.pdf", result.PublicURL)
	assert.Equal(t, "my-share-bucket", result.BucketName)
	assert.Equal(t, "report.pdf", result.BlobName)
	assert.True(t, result.BucketCreated)
	assert.Equal(t, "EU", st.lastLocation)
}

func TestShareFilePublicExplicitDestination(t *testing.T) {
	st := &fakeStorage{}
	auth := &fakeAuth{authenticated: true}
	w, fs := newTestWorkflow(t, st, auth)
	writeFile(t, fs, "/data/report.pdf", "pdf bytes")

	result := w.ShareFilePublic(context.Background(), "/data/report.pdf", "my-share-bucket", "reports/q3.pdf")
	require.True(t, result.Success)
	assert.Equal(t, "reports/q3.pdf", st.lastDest)
	assert.False(t, result.BucketCreated)
}

func TestShareFilePublicFileNotFound(t *testing.T) {
	st := &fakeStorage{}
	auth := &fakeAuth{authenticated: true}
	w, _ := newTestWorkflow(t, st, auth)

	result := w.ShareFilePublic(context.Background(), "/data/missing.pdf", "my-share-bucket", "")
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "File not found")
	assert.Zero(t, st.ensureCalls)
	assert.Zero(t, auth.checkCalls)
}

func TestShareFilePublicDirectory(t *testing.T) {
	st := &fakeStorage{}
	auth := &fakeAuth{authenticated: true}
	w, fs := newTestWorkflow(t, st, auth)
	require.NoError(t, fs.MkdirAll("/data", 0o755))

	result := w.ShareFilePublic(context.Background(), "/data", "my-share-bucket", "")
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Path is not a file")
}

func TestShareFilePublicMissingBucketName(t *testing.T) {
	st := &fakeStorage{}
	auth := &fakeAuth{authenticated: true}
	w, fs := newTestWorkflow(t, st, auth)
	writeFile(t, fs, "/data/report.pdf", "pdf bytes")

	result := w.ShareFilePublic(context.Background(), "/data/report.pdf", "", "")
	assert.False(t, result.Success)
	assert.Equal(t, "bucket_name", result.NeedsInput)
	assert.Zero(t, st.ensureCalls)
	assert.Zero(t, auth.checkCalls)
}

func TestShareFilePublicInvalidBucketName(t *testing.T) {
	st := &fakeStorage{}
	auth := &fakeAuth{authenticated: true}
	w, fs := newTestWorkflow(t, st, auth)
	writeFile(t, fs, "/data/report.pdf", "pdf bytes")

	result := w.ShareFilePublic(context.Background(), "/data/report.pdf", "My..Bucket", "")
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Invalid bucket name")
	assert.Equal(t, "My..Bucket", result.BucketName)
	assert.Zero(t, st.ensureCalls)
}

func TestShareFilePublicNotAuthenticated(t *testing.T) {
	st := &fakeStorage{}
	auth := &fakeAuth{}
	w, fs := newTestWorkflow(t, st, auth)
	writeFile(t, fs, "/data/report.pdf", "pdf bytes")

	result := w.ShareFilePublic(context.Background(), "/data/report.pdf", "my-share-bucket", "")
	assert.False(t, result.Success)
	assert.True(t, result.NeedsAuth)
	assert.Contains(t, result.Message, "not authenticated")
	assert.Zero(t, st.ensureCalls)
}

func TestShareFilePublicGatewayErrorAborts(t *testing.T) {
	st := &fakeStorage{uploadErr: errNotFound("bucket my-share-bucket not found")}
	auth := &fakeAuth{authenticated: true}
	w, fs := newTestWorkflow(t, st, auth)
	writeFile(t, fs, "/data/report.pdf", "pdf bytes")

	result := w.ShareFilePublic(context.Background(), "/data/report.pdf", "my-share-bucket", "")
	assert.False(t, result.Success)
	assert.Equal(t, "bucket my-share-bucket not found", result.Message)
	assert.Equal(t, "my-share-bucket", result.BucketName)
	assert.Equal(t, 1, st.uploadCalls)
	assert.Zero(t, st.publicCalls)
}

type errNotFound string

func (e errNotFound) Error() string { return string(e) }

func TestExpandPath(t *testing.T) {
	t.Setenv("SHARE_TEST_DIR", "/data")
	resolved, err := expandPath("$SHARE_TEST_DIR/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/data/report.pdf", resolved)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err = expandPath("~/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "report.pdf"), resolved)

	resolved, err = expandPath("~")
	require.NoError(t, err)
	assert.Equal(t, home, resolved)
}

func TestExpandPathNamedUser(t *testing.T) {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		t.Skip("no resolvable current user")
	}

	resolved, err := expandPath("~" + u.Username + "/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(u.HomeDir, "report.pdf"), resolved)

	_, err = expandPath("~no-such-user-for-sure/report.pdf")
	assert.Error(t, err)
}
