package gcloud

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// fakeRunner scripts gcloud invocations by subcommand.
type fakeRunner struct {
	versionErr error
	account    string
	accountErr error

	loginErr error
	adcErr   error

	calls []string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, fmt.Sprint(name, args))
	switch args[0] {
	case "--version":
		return "Google Cloud SDK 502.0.0", f.versionErr
	case "config":
		return f.account, f.accountErr
	}
	return "", errors.New("unexpected command")
}

func (f *fakeRunner) Interactive(ctx context.Context, name string, args ...string) error {
	f.calls = append(f.calls, fmt.Sprint(name, args))
	if len(args) >= 2 && args[1] == "application-default" {
		return f.adcErr
	}
	return f.loginErr
}

type erroringTokenSource struct{ err error }

func (s erroringTokenSource) Token() (*oauth2.Token, error) { return nil, s.err }

func staticCredentials(project string) CredentialSource {
	return func(context.Context, ...string) (*google.Credentials, error) {
		return &google.Credentials{
			ProjectID:   project,
			TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"}),
		}, nil
	}
}

func TestCheckAuthenticationValid(t *testing.T) {
	p := NewProbe(zerolog.Nop(), WithCredentialSource(staticCredentials("acme-prod")))

	status := p.CheckAuthentication(context.Background())
	require.True(t, status.Authenticated)
	assert.Equal(t, "acme-prod", status.ProjectID)
	assert.Equal(t, "already authenticated", status.Message)
}

func TestCheckAuthenticationNoCredentials(t *testing.T) {
	p := NewProbe(zerolog.Nop(), WithCredentialSource(func(context.Context, ...string) (*google.Credentials, error) {
		return nil, errors.New("google: could not find default credentials. See https://cloud.google.com/docs/authentication/external/set-up-adc")
	}))

	status := p.CheckAuthentication(context.Background())
	assert.False(t, status.Authenticated)
	assert.Equal(t, "no valid credentials found", status.Message)
}

func TestCheckAuthenticationRefreshFailure(t *testing.T) {
	p := NewProbe(zerolog.Nop(), WithCredentialSource(func(context.Context, ...string) (*google.Credentials, error) {
		return &google.Credentials{
			TokenSource: erroringTokenSource{err: errors.New("oauth2: token expired and refresh token is not set")},
		}, nil
	}))

	status := p.CheckAuthentication(context.Background())
	assert.False(t, status.Authenticated)
	assert.Equal(t, "credentials exist but are not valid", status.Message)
}

func TestCheckAuthenticationUnexpectedFailure(t *testing.T) {
	p := NewProbe(zerolog.Nop(), WithCredentialSource(func(context.Context, ...string) (*google.Credentials, error) {
		return nil, errors.New("metadata server unreachable")
	}))

	status := p.CheckAuthentication(context.Background())
	assert.False(t, status.Authenticated)
	assert.Contains(t, status.Message, "metadata server unreachable")
}

func TestInitiateLoginGcloudMissing(t *testing.T) {
	runner := &fakeRunner{versionErr: errors.New("executable file not found in $PATH")}
	p := NewProbe(zerolog.Nop(), WithRunner(runner))

	g := p.InitiateLogin(context.Background())
	assert.Equal(t, ActionInstallGcloud, g.ActionRequired)
	assert.Contains(t, g.Message, "not installed")
	assert.Empty(t, g.Command)
}

func TestInitiateLoginActiveAccount(t *testing.T) {
	runner := &fakeRunner{account: "dev@example.com"}
	p := NewProbe(zerolog.Nop(), WithRunner(runner))

	g := p.InitiateLogin(context.Background())
	assert.Equal(t, ActionRunADCLogin, g.ActionRequired)
	assert.Contains(t, g.Message, "dev@example.com")
	assert.Equal(t, "gcloud auth application-default login", g.Command)
}

func TestInitiateLoginNoAccount(t *testing.T) {
	runner := &fakeRunner{}
	p := NewProbe(zerolog.Nop(), WithRunner(runner))

	g := p.InitiateLogin(context.Background())
	assert.Equal(t, ActionRunLogin, g.ActionRequired)
	assert.Equal(t, "gcloud auth login && gcloud auth application-default login", g.Command)
}

func TestAttemptInteractiveLoginNoTerminal(t *testing.T) {
	p := NewProbe(zerolog.Nop(),
		WithRunner(&fakeRunner{}),
		WithTerminalCheck(func() bool { return false }))

	outcome := p.AttemptInteractiveLogin(context.Background())
	assert.False(t, outcome.Success)
	assert.Equal(t, ActionManualLogin, outcome.ActionRequired)
	assert.Equal(t, "gcloud auth login", outcome.Command)
}

func TestAttemptInteractiveLoginSuccess(t *testing.T) {
	runner := &fakeRunner{}
	p := NewProbe(zerolog.Nop(),
		WithRunner(runner),
		WithTerminalCheck(func() bool { return true }))

	outcome := p.AttemptInteractiveLogin(context.Background())
	require.True(t, outcome.Success)
	assert.Equal(t, "Successfully authenticated with Google Cloud", outcome.Message)
	assert.Len(t, runner.calls, 2)
}

func TestAttemptInteractiveLoginCancelled(t *testing.T) {
	runner := &fakeRunner{loginErr: errors.New("exit status 1")}
	p := NewProbe(zerolog.Nop(),
		WithRunner(runner),
		WithTerminalCheck(func() bool { return true }))

	outcome := p.AttemptInteractiveLogin(context.Background())
	assert.False(t, outcome.Success)
	assert.Equal(t, "Login cancelled or failed", outcome.Message)
	assert.Len(t, runner.calls, 1)
}

func TestAttemptInteractiveLoginADCStepFails(t *testing.T) {
	runner := &fakeRunner{adcErr: errors.New("exit status 1")}
	p := NewProbe(zerolog.Nop(),
		WithRunner(runner),
		WithTerminalCheck(func() bool { return true }))

	outcome := p.AttemptInteractiveLogin(context.Background())
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "application default")
	assert.Equal(t, ActionRunADCLogin, outcome.ActionRequired)
}
