//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package remote

import (
	"bytes"
	"context"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/net/proxy"

	"github.com/daos-stack/dharness/logging"
)

const (
	defaultSSHPort        = 22
	defaultConnectTimeout = 30 * time.Second
)

// SSHConfig describes how to reach cluster nodes.
type SSHConfig struct {
	User           string        `yaml:"user,omitempty"`
	Port           int           `yaml:"port,omitempty"`
	KeyFiles       []string      `yaml:"key_files,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	KnownHosts     string        `yaml:"known_hosts,omitempty"`
	SocksProxy     string        `yaml:"socks_proxy,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

func defaultKeyFiles() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

// clientConfig builds the ssh client configuration. Missing default key
// files are skipped; explicitly configured ones must be readable.
func (cfg *SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	username := cfg.User
	if username == "" {
		cur, err := user.Current()
		if err != nil {
			return nil, errors.Wrap(err, "looking up current user")
		}
		username = cur.Username
	}

	sshCfg := &ssh.ClientConfig{
		User:            username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}
	if sshCfg.Timeout == 0 {
		sshCfg.Timeout = defaultConnectTimeout
	}

	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, FaultBadAuth(err.Error())
		}
		sshCfg.HostKeyCallback = cb
	}

	keyFiles, explicit := cfg.KeyFiles, true
	if len(keyFiles) == 0 {
		keyFiles, explicit = defaultKeyFiles(), false
	}
	var signers []ssh.Signer
	for _, kf := range keyFiles {
		data, err := os.ReadFile(kf)
		if err != nil {
			if explicit {
				return nil, FaultBadAuth(err.Error())
			}
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			if explicit {
				return nil, FaultBadAuth(errors.Wrapf(err, "parsing %s", kf).Error())
			}
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		sshCfg.Auth = append(sshCfg.Auth, ssh.PublicKeys(signers...))
	}
	if cfg.Password != "" {
		sshCfg.Auth = append(sshCfg.Auth, ssh.Password(cfg.Password))
	}
	if len(sshCfg.Auth) == 0 {
		return nil, FaultBadAuth("no private key or password available")
	}

	return sshCfg, nil
}

// SSHExecutor runs commands over SSH, reusing one connection per host.
type SSHExecutor struct {
	log    logging.Logger
	cfg    SSHConfig
	sshCfg *ssh.ClientConfig
	dialer proxy.ContextDialer

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewSSHExecutor returns an SSHExecutor for the supplied configuration.
func NewSSHExecutor(log logging.Logger, cfg SSHConfig) (*SSHExecutor, error) {
	sshCfg, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = defaultSSHPort
	}

	var dialer proxy.ContextDialer = &net.Dialer{Timeout: sshCfg.Timeout}
	if cfg.SocksProxy != "" {
		pd, err := proxy.SOCKS5("tcp", cfg.SocksProxy, nil, proxy.Direct)
		if err != nil {
			return nil, errors.Wrapf(err, "socks proxy %s", cfg.SocksProxy)
		}
		cd, ok := pd.(proxy.ContextDialer)
		if !ok {
			return nil, errors.Errorf("socks proxy %s does not support contexts", cfg.SocksProxy)
		}
		dialer = cd
	}

	return &SSHExecutor{
		log:     log,
		cfg:     cfg,
		sshCfg:  sshCfg,
		dialer:  dialer,
		clients: make(map[string]*ssh.Client),
	}, nil
}

func (e *SSHExecutor) client(ctx context.Context, host string) (*ssh.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, found := e.clients[host]; found {
		return c, nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(e.cfg.Port))
	dctx, cancel := context.WithTimeout(ctx, e.sshCfg.Timeout)
	defer cancel()

	conn, err := e.dialer.DialContext(dctx, "tcp", addr)
	if err != nil {
		return nil, FaultConnectFailed(host, err)
	}
	sc, chans, reqs, err := ssh.NewClientConn(conn, addr, e.sshCfg)
	if err != nil {
		conn.Close()
		return nil, FaultConnectFailed(host, err)
	}
	c := ssh.NewClient(sc, chans, reqs)
	e.clients[host] = c
	e.log.Debugf("ssh: connected to %s", addr)

	return c, nil
}

func (e *SSHExecutor) drop(host string, c *ssh.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, found := e.clients[host]; found && cur == c {
		delete(e.clients, host)
		c.Close()
	}
}

// Exec runs cmd on host. Cancelling the context closes the session.
func (e *SSHExecutor) Exec(ctx context.Context, host, cmd string) (*Result, error) {
	c, err := e.client(ctx, host)
	if err != nil {
		return nil, err
	}

	session, err := c.NewSession()
	if err != nil {
		e.drop(host, c)
		return nil, FaultConnectFailed(host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	e.log.Tracef("ssh %s: %s", host, cmd)
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, ctx.Err()
	}

	res := &Result{
		Host:    host,
		Command: cmd,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	var exitErr *ssh.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		res.ExitStatus = exitErr.ExitStatus()
	default:
		var missing *ssh.ExitMissingError
		if errors.As(runErr, &missing) {
			res.ExitStatus = -1
			break
		}
		e.drop(host, c)
		return nil, FaultConnectFailed(host, runErr)
	}

	return res, nil
}

// Close closes all cached connections.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for host, c := range e.clients {
		c.Close()
		delete(e.clients, host)
	}
	return nil
}
