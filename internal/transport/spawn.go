package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// handle is the live process a Spawner started: enough to stop it at
// Halt time. SSH sessions and local *exec.Cmd both satisfy this.
type handle interface {
	Wait() error
	io.Closer
}

// Spawner starts a worker process on a named host. localHosts identifies
// hostnames that should run via a direct os/exec fork instead of SSH —
// "localhost", "127.0.0.1", and any further names passed to NewSpawner.
type Spawner struct {
	sshConfig *ssh.ClientConfig
	sshPort   int
	localHosts map[string]bool
}

// NewSpawner builds a Spawner. keyPath is a private key file used for
// SSH auth to remote hosts; knownHostsPath is consulted as the host key
// callback, matching the standard OpenSSH client's default trust model
// rather than disabling verification.
func NewSpawner(user, keyPath, knownHostsPath string, localHosts ...string) (*Spawner, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("transport: reading ssh private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing ssh private key: %w", err)
	}
	hostKeyCallback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("transport: loading known_hosts: %w", err)
	}

	set := map[string]bool{"localhost": true, "127.0.0.1": true}
	for _, h := range localHosts {
		set[h] = true
	}

	return &Spawner{
		sshConfig: &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
		},
		sshPort:    22,
		localHosts: set,
	}, nil
}

// Spawn starts program with args on hostname: locally via os/exec if
// hostname is a known-local host, otherwise over SSH.
func (s *Spawner) Spawn(ctx context.Context, hostname, program string, args []string) (handle, error) {
	if s.localHosts[hostname] {
		cmd := exec.CommandContext(ctx, program, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("transport: local spawn of %s: %w", program, err)
		}
		return localHandle{cmd}, nil
	}
	return s.spawnRemote(ctx, hostname, program, args)
}

func (s *Spawner) spawnRemote(ctx context.Context, hostname, program string, args []string) (handle, error) {
	addr := fmt.Sprintf("%s:%d", hostname, s.sshPort)
	client, err := ssh.Dial("tcp", addr, s.sshConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: ssh dial %s: %w", addr, err)
	}
	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("transport: ssh session on %s: %w", hostname, err)
	}

	cmdLine := program
	for _, a := range args {
		cmdLine += " " + shellQuote(a)
	}
	if err := session.Start(cmdLine); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("transport: ssh start %q on %s: %w", cmdLine, hostname, err)
	}
	return remoteHandle{session: session, client: client}, nil
}

type localHandle struct {
	cmd *exec.Cmd
}

func (h localHandle) Wait() error { return h.cmd.Wait() }
func (h localHandle) Close() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

type remoteHandle struct {
	session *ssh.Session
	client  *ssh.Client
}

func (h remoteHandle) Wait() error { return h.session.Wait() }
func (h remoteHandle) Close() error {
	h.session.Close()
	return h.client.Close()
}

// shellQuote wraps a in single quotes for inclusion in a remote shell
// command line, escaping any embedded single quotes.
func shellQuote(a string) string {
	out := "'"
	for _, r := range a {
		if r == '\'' {
			out += `'\''`
			continue
		}
		out += string(r)
	}
	return out + "'"
}
