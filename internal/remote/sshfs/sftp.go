package sshfs

import (
	"context"
	"errors"
	"io/fs"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/remote"
)

// SFTPFactory creates connectors for the "sftp" scheme.
type SFTPFactory struct {
	Dialer *Dialer
}

func (f *SFTPFactory) Accept(scheme string) bool { return scheme == "sftp" }

func (f *SFTPFactory) Name() string { return "sftp" }

func (f *SFTPFactory) Create(ctx context.Context, loc *locator.Locator, creds remote.Credentials) (remote.Connector, error) {
	client, err := f.Dialer.Dial(ctx, loc, creds)
	if err != nil {
		return nil, err
	}
	sc, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &sftpConnector{ssh: client, sftp: sc}, nil
}

type sftpConnector struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (c *sftpConnector) OpenDir(_ context.Context, loc *locator.Locator) (remote.Dir, error) {
	p := remotePath(loc)
	fi, err := c.sftp.Stat(p)
	if err != nil {
		return nil, mapError("stat", p, err)
	}
	if !fi.IsDir() {
		return nil, remote.Wrap(remote.ErrNotDir, "opendir", p, nil)
	}
	return &sftpDir{client: c.sftp, loc: loc, path: p}, nil
}

func (c *sftpConnector) Close() error {
	return errors.Join(c.sftp.Close(), c.ssh.Close())
}

type sftpDir struct {
	client *sftp.Client
	loc    *locator.Locator
	path   string
}

func (d *sftpDir) Locator() *locator.Locator { return d.loc }

func (d *sftpDir) Close() error { return nil }

func (d *sftpDir) Entries(context.Context) ([]remote.Entry, error) {
	infos, err := d.client.ReadDir(d.path)
	if err != nil {
		return nil, mapError("readdir", d.path, err)
	}
	entries := make([]remote.Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, remote.Entry{Name: fi.Name(), Kind: kindOf(fi.Mode())})
	}
	return entries, nil
}

func kindOf(mode fs.FileMode) remote.Kind {
	switch {
	case mode&fs.ModeSymlink != 0:
		return remote.KindLink
	case mode.IsDir():
		return remote.KindDir
	}
	return remote.KindFile
}

func (d *sftpDir) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	p := path.Join(d.path, name)
	fi, err := d.client.Stat(p)
	if err != nil {
		return nil, mapError("stat", p, err)
	}
	return fi, nil
}

func (d *sftpDir) Open(_ context.Context, name string) (remote.File, error) {
	p := path.Join(d.path, name)
	f, err := d.client.Open(p)
	if err != nil {
		return nil, mapError("open", p, err)
	}
	return f, nil
}
