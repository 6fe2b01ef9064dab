// Package gcloud resolves the ambient Google Cloud credential state and, when
// credentials are missing, turns the local gcloud installation into concrete
// remediation guidance. Nothing here mutates credential state except the
// explicitly interactive login flow.
package gcloud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
)

// cloudPlatformScope covers every storage operation this process performs.
const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

const (
	// probeTimeout bounds the quick gcloud status queries (--version,
	// config get-value account).
	probeTimeout = 10 * time.Second

	// loginTimeout bounds each interactive login step; browser-based SSO can
	// legitimately take minutes.
	loginTimeout = 300 * time.Second
)

// Remediation actions reported to callers alongside guidance messages. The
// values are part of the tool contract.
const (
	ActionInstallGcloud = "install_gcloud"
	ActionRunADCLogin   = "run_adc_login"
	ActionRunLogin      = "run_login"
	ActionManualLogin   = "manual_login"
)

// AuthStatus is the outcome of a single credential check. It is produced
// fresh on every call and never cached: credentials can change between calls
// via an out-of-band gcloud login.
type AuthStatus struct {
	Authenticated bool
	ProjectID     string
	Message       string
}

// Guidance tells a caller how to become authenticated. Success is always
// false: issuing guidance means the process could not authenticate on its
// own.
type Guidance struct {
	Message        string
	ActionRequired string
	Command        string
}

// LoginOutcome is the result of an attempted interactive login.
type LoginOutcome struct {
	Success        bool
	Message        string
	ActionRequired string
	Command        string
}

// CredentialSource resolves application-default credentials. It matches the
// signature of google.FindDefaultCredentials and exists so tests can supply
// canned credentials.
type CredentialSource func(ctx context.Context, scopes ...string) (*google.Credentials, error)

// Probe answers "is this process authenticated" and "how does the user fix
// it", using the ambient credential chain and the local gcloud binary.
type Probe struct {
	runner Runner
	creds  CredentialSource
	isTTY  func() bool
	log    zerolog.Logger
}

// Option overrides a Probe collaborator, primarily for tests.
type Option func(*Probe)

func WithRunner(r Runner) Option {
	return func(p *Probe) { p.runner = r }
}

func WithCredentialSource(cs CredentialSource) Option {
	return func(p *Probe) { p.creds = cs }
}

func WithTerminalCheck(fn func() bool) Option {
	return func(p *Probe) { p.isTTY = fn }
}

// NewProbe creates a Probe wired to the real credential chain and gcloud
// binary.
func NewProbe(log zerolog.Logger, opts ...Option) *Probe {
	p := &Probe{
		runner: ExecRunner{},
		creds:  google.FindDefaultCredentials,
		isTTY: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd())
		},
		log: log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckAuthentication resolves application-default credentials and reports
// whether they are usable. An expired credential gets exactly one refresh
// attempt (performed inside the token source); a refresh failure is logged
// and reported, never retried.
func (p *Probe) CheckAuthentication(ctx context.Context) AuthStatus {
	creds, err := p.creds(ctx, cloudPlatformScope)
	if err != nil {
		if isNoCredentials(err) {
			return AuthStatus{Message: "no valid credentials found"}
		}
		return AuthStatus{Message: fmt.Sprintf("authentication check failed: %v", err)}
	}

	token, err := creds.TokenSource.Token()
	if err != nil || !token.Valid() {
		if err != nil {
			p.log.Warn().Err(err).Msg("failed to refresh credentials")
		}
		return AuthStatus{Message: "credentials exist but are not valid"}
	}

	return AuthStatus{
		Authenticated: true,
		ProjectID:     creds.ProjectID,
		Message:       "already authenticated",
	}
}

// InitiateLogin inspects the local gcloud installation and returns guidance
// for the user. It never mutates credential state.
func (p *Probe) InitiateLogin(ctx context.Context) Guidance {
	if !p.installed(ctx) {
		return Guidance{
			Message: "Google Cloud SDK (gcloud) is not installed. " +
				"Please install it from: https://cloud.google.com/sdk/docs/install",
			ActionRequired: ActionInstallGcloud,
		}
	}

	if account := p.activeAccount(ctx); account != "" {
		return Guidance{
			Message: fmt.Sprintf("You are logged into gcloud as %s, but application default "+
				"credentials may not be configured. Please run:\n"+
				"  gcloud auth application-default login\n"+
				"This will set up credentials for this application.", account),
			ActionRequired: ActionRunADCLogin,
			Command:        "gcloud auth application-default login",
		}
	}

	return Guidance{
		Message: "You are not authenticated with Google Cloud. Please run:\n" +
			"  gcloud auth login\n" +
			"This will open a browser for SSO authentication.\n\n" +
			"After logging in, also run:\n" +
			"  gcloud auth application-default login\n" +
			"to set up application credentials.",
		ActionRequired: ActionRunLogin,
		Command:        "gcloud auth login && gcloud auth application-default login",
	}
}

// AttemptInteractiveLogin runs gcloud's browser-based login followed by the
// application-default login. It requires a terminal on stdin; an MCP server
// spawned as a subprocess typically has none, in which case it fails fast
// with manual instructions.
func (p *Probe) AttemptInteractiveLogin(ctx context.Context) LoginOutcome {
	if !p.isTTY() {
		return LoginOutcome{
			Message: "Cannot run interactive login from this context. " +
				"Please run 'gcloud auth login' in your terminal manually.",
			ActionRequired: ActionManualLogin,
			Command:        "gcloud auth login",
		}
	}

	if timedOut, err := p.interactive(ctx, "auth", "login"); err != nil {
		if timedOut {
			return LoginOutcome{Message: "Login timed out after 5 minutes"}
		}
		return LoginOutcome{Message: "Login cancelled or failed"}
	}

	if timedOut, err := p.interactive(ctx, "auth", "application-default", "login"); err != nil {
		if timedOut {
			return LoginOutcome{Message: "Login timed out after 5 minutes"}
		}
		return LoginOutcome{
			Message: "Logged in to gcloud but failed to set up application default " +
				"credentials. Please run: gcloud auth application-default login",
			ActionRequired: ActionRunADCLogin,
			Command:        "gcloud auth application-default login",
		}
	}

	return LoginOutcome{
		Success: true,
		Message: "Successfully authenticated with Google Cloud",
	}
}

func (p *Probe) installed(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := p.runner.Output(ctx, "gcloud", "--version")
	return err == nil
}

func (p *Probe) activeAccount(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	account, err := p.runner.Output(ctx, "gcloud", "config", "get-value", "account")
	if err != nil {
		return ""
	}
	return account
}

// interactive runs a gcloud login step under the login timeout and reports
// whether a failure was caused by that timeout expiring.
func (p *Probe) interactive(ctx context.Context, args ...string) (timedOut bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	err = p.runner.Interactive(ctx, "gcloud", args...)
	return err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded), err
}

// isNoCredentials distinguishes "no credential material exists" from other
// resolution failures. The oauth2 library reports the former with a
// well-known message pointing at the ADC documentation.
func isNoCredentials(err error) bool {
	return strings.Contains(err.Error(), "could not find default credentials")
}
