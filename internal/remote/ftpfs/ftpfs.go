// Package ftpfs binds the remote contract to FTP servers.
package ftpfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/textproto"
	"path"
	"strings"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/remote"
)

const defaultPort = "21"

type Factory struct{}

func (f *Factory) Accept(scheme string) bool { return scheme == "ftp" }

func (f *Factory) Name() string { return "ftp" }

// Create dials and logs in. Without a username the login is anonymous.
func (f *Factory) Create(ctx context.Context, loc *locator.Locator, creds remote.Credentials) (remote.Connector, error) {
	addr := hostPort(loc.Server)
	c, err := ftp.Dial(addr, ftp.DialWithContext(ctx))
	if err != nil {
		return nil, remote.Wrap(remote.ErrNoDevice, "dial", addr, err)
	}

	user, password := creds.Username, string(creds.Password)
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	if err := c.Login(user, password); err != nil {
		_ = c.Quit()
		return nil, mapError("login", addr, err)
	}
	logging.Debug("ftp login", zap.String("server", addr), zap.String("user", user))
	return &Connector{client: c}, nil
}

func hostPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, defaultPort)
}

// Connector is one FTP control connection. FTP runs a single transfer at a
// time, so a file must be closed before the next command.
type Connector struct {
	client *ftp.ServerConn
}

// remotePath maps share and path onto an absolute server path.
func remotePath(loc *locator.Locator) string {
	return "/" + strings.Join(loc.Segments(), "/")
}

func (c *Connector) OpenDir(_ context.Context, loc *locator.Locator) (remote.Dir, error) {
	p := remotePath(loc)
	if err := c.client.ChangeDir(p); err != nil {
		return nil, mapError("cd", p, err)
	}
	return &dir{client: c.client, loc: loc, path: p}, nil
}

func (c *Connector) Close() error {
	return c.client.Quit()
}

type dir struct {
	client *ftp.ServerConn
	loc    *locator.Locator
	path   string
	// listing of the last Entries call, used by Stat
	cache map[string]*ftp.Entry
}

func (d *dir) Locator() *locator.Locator { return d.loc }

func (d *dir) Close() error { return nil }

func (d *dir) list() ([]*ftp.Entry, error) {
	raw, err := d.client.List(d.path)
	if err != nil {
		return nil, mapError("list", d.path, err)
	}
	d.cache = make(map[string]*ftp.Entry, len(raw))
	for _, e := range raw {
		d.cache[e.Name] = e
	}
	return raw, nil
}

func (d *dir) Entries(context.Context) ([]remote.Entry, error) {
	raw, err := d.list()
	if err != nil {
		return nil, err
	}
	entries := make([]remote.Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, remote.Entry{Name: e.Name, Kind: kindOf(e.Type)})
	}
	return entries, nil
}

func kindOf(t ftp.EntryType) remote.Kind {
	switch t {
	case ftp.EntryTypeFolder:
		return remote.KindDir
	case ftp.EntryTypeLink:
		return remote.KindLink
	}
	return remote.KindFile
}

func (d *dir) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	e, ok := d.cache[name]
	if !ok {
		if _, err := d.list(); err != nil {
			return nil, err
		}
		if e, ok = d.cache[name]; !ok {
			return nil, remote.Wrap(remote.ErrNotFound, "stat", path.Join(d.path, name), nil)
		}
	}
	return info(e), nil
}

func info(e *ftp.Entry) remote.FileInfo {
	return remote.FileInfo{
		FName:    e.Name,
		FSize:    int64(e.Size),
		FModTime: e.Time,
		FIsDir:   e.Type == ftp.EntryTypeFolder,
	}
}

func (d *dir) Open(_ context.Context, name string) (remote.File, error) {
	p := path.Join(d.path, name)
	size, err := d.client.FileSize(p)
	if err != nil {
		return nil, mapError("size", p, err)
	}
	fi := remote.FileInfo{FName: name, FSize: size}
	if e, ok := d.cache[name]; ok {
		fi.FModTime = e.Time
	}
	r, err := d.client.Retr(p)
	if err != nil {
		return nil, mapError("retr", p, err)
	}
	return &file{Response: r, info: fi}, nil
}

type file struct {
	*ftp.Response
	info remote.FileInfo
}

func (f *file) Stat() (fs.FileInfo, error) { return f.info, nil }

// mapError tags FTP replies with the matching remote sentinel.
func mapError(op, p string, err error) error {
	var te *textproto.Error
	if errors.As(err, &te) {
		switch te.Code {
		case ftp.StatusFileUnavailable, ftp.StatusFileActionIgnored:
			return remote.Wrap(remote.ErrNotFound, op, p, err)
		case ftp.StatusNotLoggedIn:
			return remote.Wrap(remote.ErrAccessDenied, op, p, err)
		}
	}
	return fmt.Errorf("%s %s: %w", op, p, err)
}
