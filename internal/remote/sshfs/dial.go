// Package sshfs binds the remote contract to SSH servers, either through the
// SFTP subsystem or through remote find and scp commands.
package sshfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/prompt"
	"github.com/yarkm13/sharewalk/internal/remote"
)

const defaultPort = "22"

// Config controls how SSH connections authenticate.
type Config struct {
	// Identity is a private key file offered before the password.
	Identity string
	// KnownHosts is checked first; hosts accepted interactively are
	// appended to it. Empty means in-memory only.
	KnownHosts string
	// Policy confirms unknown host keys.
	Policy prompt.Policy
	// Out receives host key notices.
	Out io.Writer
}

// Dialer opens authenticated SSH clients and remembers the host keys the
// user accepted during the session.
type Dialer struct {
	cfg   Config
	known ssh.HostKeyCallback

	mu       sync.Mutex
	accepted map[string]string
}

// NewDialer loads the known hosts file if there is one.
func NewDialer(cfg Config) (*Dialer, error) {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	d := &Dialer{cfg: cfg, accepted: make(map[string]string)}
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		switch {
		case err == nil:
			d.known = cb
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
	}
	return d, nil
}

// verifyHostKey accepts keys listed in known_hosts, rejects changed keys
// and asks about unknown ones.
func (d *Dialer) verifyHostKey(hostname string, remoteAddr net.Addr, key ssh.PublicKey) error {
	if d.known != nil {
		err := d.known(hostname, remoteAddr, key)
		if err == nil {
			return nil
		}
		var ke *knownhosts.KeyError
		if !errors.As(err, &ke) || len(ke.Want) > 0 {
			return fmt.Errorf("host key verification failed: %w", err)
		}
	}

	fingerprint := ssh.FingerprintSHA256(key)
	d.mu.Lock()
	stored, exists := d.accepted[hostname]
	d.mu.Unlock()
	if exists && stored == fingerprint {
		return nil
	}

	fmt.Fprintf(d.cfg.Out, "The authenticity of host '%s' can't be established.\n", hostname)
	fmt.Fprintf(d.cfg.Out, "%s key fingerprint is %s.\n", key.Type(), fingerprint)
	if d.cfg.Policy == nil || !d.cfg.Policy.Confirm("Are you sure you want to continue connecting?") {
		return errors.New("host key verification rejected by user")
	}

	d.mu.Lock()
	d.accepted[hostname] = fingerprint
	d.mu.Unlock()
	if err := d.remember(hostname, key); err != nil {
		logging.Warn("could not update known hosts", zap.String("file", d.cfg.KnownHosts), zap.Error(err))
	}
	return nil
}

func (d *Dialer) remember(hostname string, key ssh.PublicKey) error {
	if d.cfg.KnownHosts == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.cfg.KnownHosts), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(d.cfg.KnownHosts, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key))
	return err
}

// Dial connects to the locator's server. The identity file is offered
// first, then the password. Without a username the local user name is used.
func (d *Dialer) Dial(ctx context.Context, loc *locator.Locator, creds remote.Credentials) (*ssh.Client, error) {
	auths, err := d.authMethods(creds)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            auths,
		HostKeyCallback: d.verifyHostKey,
	}
	if config.User == "" {
		config.User = localUser()
	}

	addr := hostPort(loc.Server)
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, remote.Wrap(remote.ErrNoDevice, "dial", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, remote.Wrap(remote.ErrAccessDenied, "login", addr, err)
		}
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	logging.Debug("ssh session established", zap.String("server", addr), zap.String("user", config.User))
	return ssh.NewClient(c, chans, reqs), nil
}

func (d *Dialer) authMethods(creds remote.Credentials) ([]ssh.AuthMethod, error) {
	var auths []ssh.AuthMethod
	if d.cfg.Identity != "" {
		key, err := os.ReadFile(d.cfg.Identity)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) && len(creds.Password) > 0 {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, creds.Password)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if len(creds.Password) > 0 {
		auths = append(auths, ssh.Password(string(creds.Password)))
	}
	return auths, nil
}

func localUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func hostPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, defaultPort)
}

// remotePath maps share and path onto an absolute server path.
func remotePath(loc *locator.Locator) string {
	return "/" + strings.Join(loc.Segments(), "/")
}

func mapError(op, p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return remote.Wrap(remote.ErrNotFound, op, p, err)
	case errors.Is(err, fs.ErrPermission):
		return remote.Wrap(remote.ErrAccessDenied, op, p, err)
	}
	return fmt.Errorf("%s %s: %w", op, p, err)
}
