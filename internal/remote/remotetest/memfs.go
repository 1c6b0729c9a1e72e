// Package remotetest provides an in-memory remote store for tests.
package remotetest

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/remote"
)

// Node is a file, directory or share in the store.
type Node struct {
	Name     string
	Kind     remote.Kind
	Comment  string
	Data     []byte
	ModTime  time.Time
	Children []*Node
}

// Dir returns a directory node.
func Dir(name string, children ...*Node) *Node {
	return &Node{Name: name, Kind: remote.KindDir, Children: children}
}

// Share returns a share node.
func Share(name, comment string, children ...*Node) *Node {
	return &Node{Name: name, Kind: remote.KindShare, Comment: comment, Children: children}
}

// File returns a file node holding data.
func File(name, data string) *Node {
	return &Node{Name: name, Kind: remote.KindFile, Data: []byte(data)}
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// Store is a remote.ConnectorFactory serving a fixed tree per server.
type Store struct {
	Scheme  string
	Servers map[string]*Node
	// Auth maps a locator key ("server/share", lower case) to the only
	// username:password pair allowed to open it.
	Auth map[string]string
	// FileAuth maps "server/share/path/name" (lower case) to the only username:password
	// pair allowed to open that file. The directory itself stays readable.
	FileAuth map[string]string
	// Vanished entries are listed but fail Stat and Open with not found.
	// Keys are "server/share/path/name".
	Vanished map[string]bool
	// Dials counts connectors created, Opens counts file opens.
	Dials int
	Opens map[string]int
	// ModTime is reported for nodes without their own.
	ModTime time.Time
}

// NewStore returns a store answering scheme "mem".
func NewStore() *Store {
	return &Store{
		Scheme:   "mem",
		Servers:  make(map[string]*Node),
		Auth:     make(map[string]string),
		FileAuth: make(map[string]string),
		Vanished: make(map[string]bool),
		Opens:    make(map[string]int),
		ModTime:  time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC),
	}
}

// AddServer registers a server whose top level holds the given nodes.
func (s *Store) AddServer(name string, children ...*Node) {
	s.Servers[strings.ToLower(name)] = &Node{Name: name, Kind: remote.KindServer, Children: children}
}

func (s *Store) Accept(scheme string) bool { return scheme == s.Scheme }

func (s *Store) Name() string { return "mem" }

func (s *Store) Create(_ context.Context, loc *locator.Locator, creds remote.Credentials) (remote.Connector, error) {
	s.Dials++
	return &conn{store: s, creds: creds.Username + ":" + string(creds.Password)}, nil
}

type conn struct {
	store *Store
	creds string
}

func (c *conn) Close() error { return nil }

func (c *conn) OpenDir(_ context.Context, loc *locator.Locator) (remote.Dir, error) {
	node, err := c.resolve(loc)
	if err != nil {
		return nil, err
	}
	if node.Kind == remote.KindFile {
		return nil, remote.Wrap(remote.ErrNotDir, "opendir", loc.Redacted(), nil)
	}
	return &dir{conn: c, loc: loc, node: node}, nil
}

func (c *conn) resolve(loc *locator.Locator) (*Node, error) {
	node, ok := c.store.Servers[strings.ToLower(loc.Server)]
	if !ok {
		return nil, remote.Wrap(remote.ErrNoDevice, "open", loc.Redacted(), nil)
	}
	if want, ok := c.store.Auth[loc.Key()]; ok && want != c.creds {
		return nil, remote.Wrap(remote.ErrAccessDenied, "open", loc.Redacted(), nil)
	}
	for _, seg := range loc.Segments() {
		if node = node.child(seg); node == nil {
			return nil, remote.Wrap(remote.ErrNotFound, "open", loc.Redacted(), nil)
		}
	}
	return node, nil
}

type dir struct {
	conn *conn
	loc  *locator.Locator
	node *Node
}

func (d *dir) Locator() *locator.Locator { return d.loc }

func (d *dir) Close() error { return nil }

func (d *dir) Entries(context.Context) ([]remote.Entry, error) {
	entries := []remote.Entry{{Name: ".", Kind: remote.KindDir}, {Name: "..", Kind: remote.KindDir}}
	for _, c := range d.node.Children {
		entries = append(entries, remote.Entry{Name: c.Name, Kind: c.Kind, Comment: c.Comment})
	}
	return entries, nil
}

func (d *dir) path(name string) string {
	return strings.Join(append([]string{d.loc.Server}, append(d.loc.Segments(), name)...), "/")
}

func (d *dir) lookup(op, name string) (*Node, error) {
	c := d.node.child(name)
	if c == nil || d.conn.store.Vanished[d.path(name)] {
		return nil, remote.Wrap(remote.ErrNotFound, op, d.path(name), nil)
	}
	return c, nil
}

func (d *dir) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	c, err := d.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return d.conn.store.info(c), nil
}

func (d *dir) Open(_ context.Context, name string) (remote.File, error) {
	c, err := d.lookup("open", name)
	if err != nil {
		return nil, err
	}
	if c.Kind != remote.KindFile {
		return nil, remote.Wrap(remote.ErrNotFound, "open", d.path(name), nil)
	}
	if want, ok := d.conn.store.FileAuth[strings.ToLower(d.path(name))]; ok && want != d.conn.creds {
		return nil, remote.Wrap(remote.ErrAccessDenied, "open", d.path(name), nil)
	}
	d.conn.store.Opens[d.path(name)]++
	return &file{Reader: bytes.NewReader(c.Data), info: d.conn.store.info(c)}, nil
}

func (s *Store) info(n *Node) remote.FileInfo {
	mt := n.ModTime
	if mt.IsZero() {
		mt = s.ModTime
	}
	return remote.FileInfo{
		FName:    n.Name,
		FSize:    int64(len(n.Data)),
		FModTime: mt,
		FIsDir:   n.Kind != remote.KindFile,
	}
}

type file struct {
	io.Reader
	info   fs.FileInfo
	closed bool
}

func (f *file) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *file) Close() error {
	f.closed = true
	return nil
}
