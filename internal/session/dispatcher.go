// Package session launches interactive RDP and SSH sessions through
// external client programs. Launches are fire-and-forget: once the
// client is running, the session belongs to the operator and nothing
// here waits for or cancels it.
package session

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/keeper-security/ksm-connect/pkg/types"
)

// ErrLaunchFailed covers every way a session client can fail to come
// up: binary missing, registration rejected, process died on start.
// Callers warn for the host and continue.
var ErrLaunchFailed = errors.New("session launch failed")

// Runner starts external session programs. Run waits for the program
// to finish; Start leaves it running, detached from the caller's
// lifetime.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	Start(name string, args ...string) error
}

// execRunner runs real processes.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("command not found: %s", name)
	}
	return exec.CommandContext(ctx, name, args...).Run()
}

func (execRunner) Start(name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("command not found: %s", name)
	}

	// Deliberately not CommandContext: the session must outlive this
	// process.
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	// Reap the child if it exits while we are still around.
	go func() { _ = cmd.Wait() }()
	return nil
}

// Options names the external client programs. Zero values fall back to
// the conventional Windows RDP pair and PuTTY.
type Options struct {
	RDPClient    string // remote desktop client
	RDPRegistrar string // OS credential cache registrar
	Fullscreen   bool
	SSHClient    string // ssh terminal client
	Runner       Runner // defaults to real process execution
}

// Dispatcher turns a resolved session request into client invocations.
type Dispatcher struct {
	rdpClient    string
	rdpRegistrar string
	fullscreen   bool
	sshClient    string
	runner       Runner
}

// NewDispatcher creates a dispatcher with the given options.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.RDPClient == "" {
		opts.RDPClient = "mstsc"
	}
	if opts.RDPRegistrar == "" {
		opts.RDPRegistrar = "cmdkey"
	}
	if opts.SSHClient == "" {
		opts.SSHClient = "putty"
	}
	if opts.Runner == nil {
		opts.Runner = execRunner{}
	}

	return &Dispatcher{
		rdpClient:    opts.RDPClient,
		rdpRegistrar: opts.RDPRegistrar,
		fullscreen:   opts.Fullscreen,
		sshClient:    opts.SSHClient,
		runner:       opts.Runner,
	}
}

// Dispatch launches the session described by req. The credential is
// used for this one launch and not retained. Returned errors wrap
// ErrLaunchFailed and never contain the secret.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.SessionRequest) error {
	if req.Host == "" {
		return errors.New("host cannot be empty")
	}

	switch req.Protocol {
	case types.ProtocolRDP:
		return d.dispatchRDP(ctx, req)
	case types.ProtocolSSH:
		return d.dispatchSSH(req)
	default:
		return fmt.Errorf("unsupported protocol %q", req.Protocol)
	}
}

// dispatchRDP stages the credential in the OS credential cache under
// the TERMSRV key the desktop client reads, then starts the client.
// The cache entry is left in place afterwards, matching the client's
// own saved-credential behavior.
func (d *Dispatcher) dispatchRDP(ctx context.Context, req types.SessionRequest) error {
	err := d.runner.Run(ctx, d.rdpRegistrar,
		"/generic:TERMSRV/"+req.Host,
		"/user:"+req.Credential.Username,
		"/pass:"+req.Credential.Secret,
	)
	if err != nil {
		return fmt.Errorf("%w: credential registration via %s: %v", ErrLaunchFailed, d.rdpRegistrar, err)
	}

	args := []string{"/v:" + req.Host}
	if d.fullscreen {
		args = append(args, "/f")
	}
	if err := d.runner.Start(d.rdpClient, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunchFailed, d.rdpClient, err)
	}

	return nil
}

// dispatchSSH starts the terminal client against user@host with the
// secret passed as the client's non-interactive auth parameter.
func (d *Dispatcher) dispatchSSH(req types.SessionRequest) error {
	target := req.Credential.Username + "@" + req.Host
	if err := d.runner.Start(d.sshClient, "-ssh", target, "-pw", req.Credential.Secret); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunchFailed, d.sshClient, err)
	}

	return nil
}
