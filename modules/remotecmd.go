package modules

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/nomis52/barline/clients/sshclient"
	"github.com/nomis52/barline/markup"
	"github.com/nomis52/barline/module"
	"github.com/nomis52/barline/theme"
)

// commandRunner is the part of sshclient used by RemoteCmd.
type commandRunner interface {
	Run(ctx context.Context, command string) (string, string, error)
	Close() error
}

// RemoteCmdConfig configures a RemoteCmd module.
type RemoteCmdConfig struct {
	// Schedule is a cron expression saying when to re-run the command.
	Schedule string
	// Host is the SSH endpoint as "host:port".
	Host string
	// User is the SSH login name.
	User string
	// KeyFile is the path to the private key (PEM format).
	KeyFile string
	// Command is run remotely; the first line of its stdout is displayed.
	Command string
	// Label prefixes the output. Defaults to the host without its port.
	Label string
}

// RemoteCmd runs a command over SSH on a schedule and shows the first line of
// its output. The connection is established lazily and dropped on any
// failure, so the next update dials fresh.
type RemoteCmd struct {
	cfg     RemoteCmdConfig
	trigger module.Trigger
	connect func(ctx context.Context) (commandRunner, error)

	client commandRunner
	text   string
}

// NewRemoteCmd creates the module. It does not connect; the first update
// does.
func NewRemoteCmd(cfg RemoteCmdConfig) (*RemoteCmd, error) {
	trigger, err := module.NewCronTrigger(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Label == "" {
		if host, _, err := net.SplitHostPort(cfg.Host); err == nil {
			cfg.Label = host
		} else {
			cfg.Label = cfg.Host
		}
	}
	r := &RemoteCmd{cfg: cfg, trigger: trigger}
	r.connect = func(ctx context.Context) (commandRunner, error) {
		return sshclient.NewFromKeyFile(ctx, cfg.Host, cfg.User, cfg.KeyFile)
	}
	return r, nil
}

func (r *RemoteCmd) WaitTrigger(ctx context.Context) error {
	return r.trigger.Wait(ctx)
}

func (r *RemoteCmd) Update(ctx context.Context) error {
	if r.client == nil {
		client, err := r.connect(ctx)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", r.cfg.Host, err)
		}
		r.client = client
	}

	stdout, stderr, err := r.client.Run(ctx, r.cfg.Command)
	if err != nil {
		r.dropConnection()
		if stderr != "" {
			return fmt.Errorf("remote command on %s: %w: %s", r.cfg.Host, err, firstLine(stderr))
		}
		return fmt.Errorf("remote command on %s: %w", r.cfg.Host, err)
	}

	r.text = firstLine(stdout)
	return nil
}

func (r *RemoteCmd) Render() string {
	return markup.Fg(r.cfg.Label, theme.MainIcon) + " " + markup.Fg(r.text, theme.Foreground)
}

func (r *RemoteCmd) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *RemoteCmd) dropConnection() {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
