// Package remote defines the contract between the shell and the protocol
// adapters: directory handles, file handles, connectors and the error
// taxonomy adapters translate their library errors into.
package remote

import (
	"context"
	"io"
	"io/fs"

	"github.com/yarkm13/sharewalk/internal/locator"
)

// Kind classifies a directory entry.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindLink
	KindShare
	KindWorkgroup
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindLink:
		return "link"
	case KindShare:
		return "share"
	case KindWorkgroup:
		return "workgroup"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Entry is one name returned by a directory listing.
type Entry struct {
	Name    string
	Kind    Kind
	Comment string
}

// IsFile reports whether the entry can be downloaded.
func (e Entry) IsFile() bool { return e.Kind == KindFile }

// IsDir reports whether the entry is a plain directory.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

// IsContainer reports whether the entry is a share, workgroup or server.
func (e Entry) IsContainer() bool {
	return e.Kind == KindShare || e.Kind == KindWorkgroup || e.Kind == KindServer
}

// Dir is an open directory handle bound to one locator.
type Dir interface {
	Locator() *locator.Locator
	// Entries lists the directory, possibly including "." and "..".
	Entries(ctx context.Context) ([]Entry, error)
	// Stat returns the metadata of the named entry. It fails with ErrNotFound
	// if the entry disappeared after it was listed.
	Stat(ctx context.Context, name string) (fs.FileInfo, error)
	// Open opens the named file for reading.
	Open(ctx context.Context, name string) (File, error)
	Close() error
}

// File is an open remote file.
type File interface {
	io.ReadCloser
	Stat() (fs.FileInfo, error)
}

// Connector is a live session against one server.
type Connector interface {
	OpenDir(ctx context.Context, loc *locator.Locator) (Dir, error)
	Close() error
}

// ConnectorFactory creates connectors for the schemes it accepts.
type ConnectorFactory interface {
	Accept(scheme string) bool
	Create(ctx context.Context, loc *locator.Locator, creds Credentials) (Connector, error)
	Name() string
}

// Credentials are handed to a factory when a connector is created.
type Credentials struct {
	Domain   string
	Username string
	Password []byte
}

// Clear wipes the password.
func (c *Credentials) Clear() {
	secureWipe(c.Password)
	c.Password = nil
}

// Empty reports whether no username or password is set.
func (c Credentials) Empty() bool {
	return c.Username == "" && len(c.Password) == 0
}

// secureWipe overwrites the slice with zeros.
func secureWipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
