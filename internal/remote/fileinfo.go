package remote

import (
	"io/fs"
	"time"
)

// FileInfo is a plain fs.FileInfo for adapters whose libraries do not return
// one.
type FileInfo struct {
	FName    string
	FSize    int64
	FModTime time.Time
	FIsDir   bool
}

var _ fs.FileInfo = FileInfo{}

func (fi FileInfo) Name() string       { return fi.FName }
func (fi FileInfo) Size() int64        { return fi.FSize }
func (fi FileInfo) ModTime() time.Time { return fi.FModTime }
func (fi FileInfo) IsDir() bool        { return fi.FIsDir }
func (fi FileInfo) Sys() any           { return nil }

func (fi FileInfo) Mode() fs.FileMode {
	if fi.FIsDir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
