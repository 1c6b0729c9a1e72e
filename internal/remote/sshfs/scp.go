package sshfs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/remote"
)

// listFormat makes find print "type size mtime name", NUL terminated.
const listFormat = `%y %s %T@ %f\0`

// SCPFactory creates connectors for the "scp" scheme. Directories are
// listed with a remote find, files are fetched with "scp -f".
type SCPFactory struct {
	Dialer *Dialer
}

func (f *SCPFactory) Accept(scheme string) bool { return scheme == "scp" }

func (f *SCPFactory) Name() string { return "scp" }

func (f *SCPFactory) Create(ctx context.Context, loc *locator.Locator, creds remote.Credentials) (remote.Connector, error) {
	client, err := f.Dialer.Dial(ctx, loc, creds)
	if err != nil {
		return nil, err
	}
	return &scpConnector{client: client}, nil
}

type scpConnector struct {
	client *ssh.Client
}

func (c *scpConnector) run(cmd string) ([]byte, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stderr = &stderr
	out, err := session.Output(cmd)
	if err != nil {
		return nil, commandError(cmd, strings.TrimSpace(stderr.String()), err)
	}
	return out, nil
}

func (c *scpConnector) find(p string, args string) ([]findEntry, error) {
	out, err := c.run(fmt.Sprintf("find %s %s -printf '%s'", quote(p), args, listFormat))
	if err != nil {
		return nil, err
	}
	return parseFind(out)
}

func (c *scpConnector) OpenDir(_ context.Context, loc *locator.Locator) (remote.Dir, error) {
	p := remotePath(loc)
	self, err := c.find(p, "-maxdepth 0")
	if err != nil {
		return nil, err
	}
	if len(self) != 1 || self[0].kind != remote.KindDir {
		return nil, remote.Wrap(remote.ErrNotDir, "opendir", p, nil)
	}
	return &scpDir{conn: c, loc: loc, path: p}, nil
}

func (c *scpConnector) Close() error {
	return c.client.Close()
}

type scpDir struct {
	conn  *scpConnector
	loc   *locator.Locator
	path  string
	cache map[string]findEntry
}

func (d *scpDir) Locator() *locator.Locator { return d.loc }

func (d *scpDir) Close() error { return nil }

func (d *scpDir) Entries(context.Context) ([]remote.Entry, error) {
	found, err := d.conn.find(d.path, "-mindepth 1 -maxdepth 1")
	if err != nil {
		return nil, err
	}
	d.cache = make(map[string]findEntry, len(found))
	entries := make([]remote.Entry, 0, len(found))
	for _, e := range found {
		d.cache[e.info.FName] = e
		entries = append(entries, remote.Entry{Name: e.info.FName, Kind: e.kind})
	}
	return entries, nil
}

func (d *scpDir) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	if e, ok := d.cache[name]; ok {
		return e.info, nil
	}
	p := path.Join(d.path, name)
	found, err := d.conn.find(p, "-maxdepth 0")
	if err != nil {
		return nil, err
	}
	if len(found) != 1 {
		return nil, remote.Wrap(remote.ErrNotFound, "stat", p, nil)
	}
	return found[0].info, nil
}

// Open starts "scp -f" and reads the file header; the returned file
// streams the content.
func (d *scpDir) Open(_ context.Context, name string) (remote.File, error) {
	p := path.Join(d.path, name)
	session, err := d.conn.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	if err := session.Start("scp -p -f " + quote(p)); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start scp command: %w", err)
	}

	reader := bufio.NewReader(stdout)
	info, err := readHeader(reader, stdin)
	if err != nil {
		session.Close()
		return nil, mapMessage("open", p, err)
	}
	return &scpFile{
		session: session,
		reader:  reader,
		body:    io.LimitReader(reader, info.FSize),
		stdin:   stdin,
		info:    info,
	}, nil
}

// scpError is an error line sent by the remote scp.
type scpError string

func (e scpError) Error() string { return string(e) }

// readHeader acknowledges and parses records until the file record:
//
//	T<mtime> 0 <atime> 0
//	C<mode> <size> <name>
func readHeader(r *bufio.Reader, w io.Writer) (remote.FileInfo, error) {
	var info remote.FileInfo
	if err := ack(w); err != nil {
		return info, fmt.Errorf("failed to write initial null byte: %w", err)
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return info, fmt.Errorf("failed to read file metadata: %w", err)
		}
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			return info, fmt.Errorf("unexpected SCP metadata format: %q", line)
		}
		switch line[0] {
		case 1, 2:
			return info, scpError(line[1:])
		case 'T':
			fields := strings.Fields(line[1:])
			if len(fields) != 4 {
				return info, fmt.Errorf("unexpected SCP metadata format: %q", line)
			}
			sec, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return info, fmt.Errorf("invalid file time: %w", err)
			}
			info.FModTime = time.Unix(sec, 0)
		case 'C':
			fields := strings.SplitN(line[1:], " ", 3)
			if len(fields) != 3 {
				return info, fmt.Errorf("unexpected SCP metadata format: %q", line)
			}
			size, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return info, fmt.Errorf("invalid file size: %w", err)
			}
			info.FName, info.FSize = fields[2], size
			return info, ack(w)
		case 'D':
			return info, remote.Wrap(remote.ErrNotFound, "open", line, errors.New("is a directory"))
		default:
			return info, fmt.Errorf("unexpected SCP metadata format: %q", line)
		}
		if err := ack(w); err != nil {
			return info, fmt.Errorf("failed to acknowledge metadata: %w", err)
		}
	}
}

func ack(w io.Writer) error {
	_, err := w.Write([]byte{0})
	return err
}

type scpFile struct {
	session *ssh.Session
	reader  *bufio.Reader
	body    io.Reader
	stdin   io.WriteCloser
	info    remote.FileInfo
	read    int64
}

func (f *scpFile) Read(p []byte) (int, error) {
	n, err := f.body.Read(p)
	f.read += int64(n)
	return n, err
}

func (f *scpFile) Stat() (fs.FileInfo, error) { return f.info, nil }

// Close finishes the protocol when the whole body was read and tears the
// session down either way.
func (f *scpFile) Close() error {
	var err error
	if f.read == f.info.FSize {
		if b, rerr := f.reader.ReadByte(); rerr != nil || b != 0 {
			err = fmt.Errorf("unexpected trailing byte: %v", b)
		} else if werr := ack(f.stdin); werr != nil {
			err = fmt.Errorf("failed to send final null byte: %w", werr)
		}
	}
	_ = f.stdin.Close()
	if err == nil && f.read == f.info.FSize {
		err = f.session.Wait()
	}
	f.session.Close()
	return err
}

type findEntry struct {
	kind remote.Kind
	info remote.FileInfo
}

// parseFind parses the output of find with listFormat.
func parseFind(out []byte) ([]findEntry, error) {
	var entries []findEntry
	for _, rec := range strings.Split(string(out), "\x00") {
		if rec == "" {
			continue
		}
		fields := strings.SplitN(rec, " ", 4)
		if len(fields) != 4 {
			return nil, fmt.Errorf("unexpected find output: %q", rec)
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid file size in %q: %w", rec, err)
		}
		mtime, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid file time in %q: %w", rec, err)
		}
		kind := remote.KindFile
		switch fields[0] {
		case "d":
			kind = remote.KindDir
		case "l":
			kind = remote.KindLink
		}
		entries = append(entries, findEntry{
			kind: kind,
			info: remote.FileInfo{
				FName:    fields[3],
				FSize:    size,
				FModTime: time.Unix(int64(mtime), 0),
				FIsDir:   kind == remote.KindDir,
			},
		})
	}
	return entries, nil
}

// quote makes s a single POSIX shell word.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func commandError(cmd, stderr string, err error) error {
	if stderr == "" {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return mapMessage(cmd, "", fmt.Errorf("%w: %s", err, stderr))
}

// mapMessage classifies the messages remote commands print on failure.
func mapMessage(op, p string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No such file or directory"):
		return remote.Wrap(remote.ErrNotFound, op, p, err)
	case strings.Contains(msg, "Permission denied"):
		return remote.Wrap(remote.ErrAccessDenied, op, p, err)
	case strings.Contains(msg, "Not a directory"):
		return remote.Wrap(remote.ErrNotDir, op, p, err)
	}
	return err
}
