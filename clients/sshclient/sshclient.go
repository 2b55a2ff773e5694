// Package sshclient wraps an SSH connection for running short remote
// commands.
package sshclient

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
)

// SSHClient manages a persistent SSH connection for running multiple commands.
type SSHClient struct {
	client *ssh.Client
}

// NewFromKeyFile connects to host as user, authenticating with the private
// key (PEM format) read from keyPath. The dial is bounded by ctx.
func NewFromKeyFile(ctx context.Context, host, user, keyPath string) (*SSHClient, error) {
	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	return New(ctx, host, user, pem)
}

// New connects to host as user with the provided private key (PEM format).
func New(ctx context.Context, host, user string, privateKeyPEM []byte) (*SSHClient, error) {
	signer, err := ssh.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // NOTE: for production, use a proper callback
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", host, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, host, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", host, err)
	}

	return &SSHClient{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// Run executes a command on the remote host using a new session on the
// existing connection. If ctx is cancelled while the command is running the
// session is torn down and ctx's error is returned.
func (c *SSHClient) Run(ctx context.Context, command string) (string, string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("creating SSH session: %w", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return stdoutBuf.String(), stderrBuf.String(), ctx.Err()
	case err := <-done:
		if err != nil {
			return stdoutBuf.String(), stderrBuf.String(), fmt.Errorf("running command: %w", err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close closes the underlying SSH connection.
func (c *SSHClient) Close() error {
	return c.client.Close()
}
