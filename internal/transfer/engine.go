// Package transfer streams one remote file to disk with optional bandwidth
// throttling and a progress line.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/remote"
)

// ChunkSize is the read size of the copy loop.
const ChunkSize = 1024

// Source is where files are opened from; remote.Dir satisfies it.
type Source interface {
	Locator() *locator.Locator
	Open(ctx context.Context, name string) (remote.File, error)
}

// Clock lets tests drive time.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TransferError reports a failed download together with its remote locator.
type TransferError struct {
	Locator string
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("can't get %s: %v", e.Locator, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Engine performs downloads. The zero value is usable: no throttle, no
// retries, progress discarded.
type Engine struct {
	Out io.Writer
	// Cap is the throttle limit in bytes per second; 0 disables it.
	Cap float64
	// Retries is how many more attempts a failed download gets.
	Retries int
	Clock   Clock
}

func (e *Engine) clock() Clock {
	if e.Clock == nil {
		return systemClock{}
	}
	return e.Clock
}

// Download copies name from src to localPath and returns the number of
// bytes transferred. Empty remote files are skipped, and so are files whose
// local copy already has the remote size unless overwrite is set.
func (e *Engine) Download(ctx context.Context, src Source, name, localPath string, overwrite bool) (int64, error) {
	var (
		n   int64
		err error
	)
	for attempt := 0; ; attempt++ {
		n, err = e.once(ctx, src, name, localPath, overwrite)
		if err == nil || attempt >= e.Retries || !retryable(ctx, err) {
			break
		}
		logging.Warn("download failed, retrying",
			zap.String("name", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if serr := e.clock().Sleep(ctx, time.Second*time.Duration(attempt+1)); serr != nil {
			break
		}
	}
	if err != nil {
		return n, &TransferError{Locator: src.Locator().Child(name).Redacted(), Err: err}
	}
	return n, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !remote.IsNotFound(err) && !errors.Is(err, remote.ErrAccessDenied)
}

func (e *Engine) once(ctx context.Context, src Source, name, localPath string, overwrite bool) (read int64, err error) {
	in, err := src.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return 0, err
	}
	size := fi.Size()
	if size == 0 {
		return 0, nil
	}
	if !overwrite {
		if lfi, err := os.Stat(localPath); err == nil && lfi.Mode().IsRegular() && lfi.Size() == size {
			return 0, nil
		}
	}

	out, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	p := newProgress(e.Out, name, size)
	clock := e.clock()
	start := clock.Now()
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			p.abort()
			return read, err
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				p.abort()
				return read, werr
			}
			read += int64(n)

			elapsed := clock.Now().Sub(start).Seconds()
			if elapsed > 0 {
				speed := float64(read) / elapsed
				p.update(read, speed)
				if e.Cap > 0 && speed > e.Cap {
					pause := time.Duration(speed / e.Cap * float64(time.Second))
					if err := clock.Sleep(ctx, pause); err != nil {
						p.abort()
						return read, err
					}
				}
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			p.abort()
			return read, rerr
		}
	}
	p.done(read)

	logging.Debug("download complete",
		zap.String("name", name),
		zap.Int64("bytes", read),
		zap.Duration("elapsed", clock.Now().Sub(start)))
	return read, nil
}
