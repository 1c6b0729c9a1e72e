// Package smbfs binds the remote contract to SMB2/3 servers.
package smbfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"

	"github.com/hirochachacha/go-smb2"
	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/remote"
)

const defaultPort = "445"

// NTSTATUS codes the adapter translates.
const (
	statusNoSuchFile         = 0xC000000F
	statusAccessDenied       = 0xC0000022
	statusObjectNameNotFound = 0xC0000034
	statusObjectPathNotFound = 0xC000003A
	statusLogonFailure       = 0xC000006D
	statusAccountDisabled    = 0xC0000072
	statusNotADirectory      = 0xC0000103
	statusBadNetworkName     = 0xC00000CC
)

// Factory creates SMB connectors for the "smb" scheme.
type Factory struct{}

func (f *Factory) Accept(scheme string) bool { return scheme == "smb" }

func (f *Factory) Name() string { return "smb" }

func (f *Factory) Create(ctx context.Context, loc *locator.Locator, creds remote.Credentials) (remote.Connector, error) {
	if loc.Server == "" {
		return nil, remote.Wrap(remote.ErrUnsupported, "dial", loc.Redacted(), errors.New("workgroup browsing"))
	}
	addr := hostPort(loc.Server)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, remote.Wrap(remote.ErrNoDevice, "dial", addr, err)
	}

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     creds.Username,
			Password: string(creds.Password),
			Domain:   creds.Domain,
		},
	}
	session, err := dialer.DialContext(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, mapError("login", addr, err)
	}
	logging.Debug("smb session established", zap.String("server", addr), zap.String("user", creds.Username))

	return &Connector{
		conn:    conn,
		session: session,
		shares:  make(map[string]*smb2.Share),
	}, nil
}

func hostPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, defaultPort)
}

// Connector is one authenticated SMB session. Shares are mounted on first
// use and kept until Close.
type Connector struct {
	conn    net.Conn
	session *smb2.Session
	shares  map[string]*smb2.Share
}

func (c *Connector) mount(ctx context.Context, name string) (*smb2.Share, error) {
	key := strings.ToLower(name)
	if sh, ok := c.shares[key]; ok {
		return sh.WithContext(ctx), nil
	}
	sh, err := c.session.WithContext(ctx).Mount(name)
	if err != nil {
		return nil, mapError("mount", name, err)
	}
	c.shares[key] = sh
	return sh.WithContext(ctx), nil
}

func (c *Connector) OpenDir(ctx context.Context, loc *locator.Locator) (remote.Dir, error) {
	if loc.Share == "" {
		return &serverDir{conn: c, loc: loc}, nil
	}
	sh, err := c.mount(ctx, loc.Share)
	if err != nil {
		return nil, err
	}
	p := smbPath(loc.Path)
	if p != "" {
		fi, err := sh.Stat(p)
		if err != nil {
			return nil, mapError("stat", loc.Redacted(), err)
		}
		if !fi.IsDir() {
			return nil, remote.Wrap(remote.ErrNotDir, "opendir", loc.Redacted(), nil)
		}
	}
	return &shareDir{conn: c, loc: loc, share: loc.Share, path: p}, nil
}

func (c *Connector) Close() error {
	var errs []error
	for key, sh := range c.shares {
		errs = append(errs, sh.Umount())
		delete(c.shares, key)
	}
	errs = append(errs, c.session.Logoff(), c.conn.Close())
	return errors.Join(errs...)
}

// smbPath joins segments with the separator SMB expects. The share root is
// the empty path.
func smbPath(segs []string) string {
	return strings.Join(segs, `\`)
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + `\` + name
}

// serverDir lists the shares of a server.
type serverDir struct {
	conn *Connector
	loc  *locator.Locator
}

func (d *serverDir) Locator() *locator.Locator { return d.loc }

func (d *serverDir) Close() error { return nil }

func (d *serverDir) Entries(ctx context.Context) ([]remote.Entry, error) {
	names, err := d.conn.session.WithContext(ctx).ListSharenames()
	if err != nil {
		return nil, mapError("list shares", d.loc.Redacted(), err)
	}
	entries := make([]remote.Entry, 0, len(names))
	for _, n := range names {
		if strings.EqualFold(n, "IPC$") {
			continue
		}
		entries = append(entries, remote.Entry{Name: n, Kind: remote.KindShare})
	}
	return entries, nil
}

func (d *serverDir) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	return remote.FileInfo{FName: name, FIsDir: true}, nil
}

func (d *serverDir) Open(_ context.Context, name string) (remote.File, error) {
	return nil, remote.Wrap(remote.ErrNotFound, "open", name, errors.New("not a file"))
}

type shareDir struct {
	conn  *Connector
	loc   *locator.Locator
	share string
	path  string
}

func (d *shareDir) Locator() *locator.Locator { return d.loc }

func (d *shareDir) Close() error { return nil }

func (d *shareDir) Entries(ctx context.Context) ([]remote.Entry, error) {
	sh, err := d.conn.mount(ctx, d.share)
	if err != nil {
		return nil, err
	}
	infos, err := sh.ReadDir(d.path)
	if err != nil {
		return nil, mapError("readdir", d.loc.Redacted(), err)
	}
	entries := make([]remote.Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, remote.Entry{Name: fi.Name(), Kind: kindOf(fi)})
	}
	return entries, nil
}

func kindOf(fi fs.FileInfo) remote.Kind {
	switch {
	case fi.Mode()&fs.ModeSymlink != 0:
		return remote.KindLink
	case fi.IsDir():
		return remote.KindDir
	}
	return remote.KindFile
}

func (d *shareDir) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	sh, err := d.conn.mount(ctx, d.share)
	if err != nil {
		return nil, err
	}
	fi, err := sh.Stat(join(d.path, name))
	if err != nil {
		return nil, mapError("stat", name, err)
	}
	return fi, nil
}

func (d *shareDir) Open(ctx context.Context, name string) (remote.File, error) {
	sh, err := d.conn.mount(ctx, d.share)
	if err != nil {
		return nil, err
	}
	f, err := sh.Open(join(d.path, name))
	if err != nil {
		return nil, mapError("open", name, err)
	}
	return f, nil
}

// mapError tags an SMB error with the matching remote sentinel.
func mapError(op, path string, err error) error {
	var re *smb2.ResponseError
	if errors.As(err, &re) {
		switch re.Code {
		case statusNoSuchFile, statusObjectNameNotFound, statusObjectPathNotFound:
			return remote.Wrap(remote.ErrNotFound, op, path, err)
		case statusBadNetworkName:
			return remote.Wrap(remote.ErrNoDevice, op, path, err)
		case statusAccessDenied, statusLogonFailure, statusAccountDisabled:
			return remote.Wrap(remote.ErrAccessDenied, op, path, err)
		case statusNotADirectory:
			return remote.Wrap(remote.ErrNotDir, op, path, err)
		}
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return remote.Wrap(remote.ErrNotFound, op, path, err)
	case errors.Is(err, fs.ErrPermission):
		return remote.Wrap(remote.ErrAccessDenied, op, path, err)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
