// Package shell runs the command loop of a browsing session: one remote
// location, one local directory and a queue of pending tasks.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gammazero/deque"
	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/auth"
	"github.com/yarkm13/sharewalk/internal/localfs"
	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/mirror"
	"github.com/yarkm13/sharewalk/internal/prompt"
	"github.com/yarkm13/sharewalk/internal/remote"
	"github.com/yarkm13/sharewalk/internal/transfer"
)

// errQuit ends the loop without being reported.
var errQuit = errors.New("quit")

// Options configure a session.
type Options struct {
	Factories []remote.ConnectorFactory
	// Prompter reads command lines and answers. When nil one is built on
	// In and Out.
	Prompter *prompt.Prompter
	In       io.Reader
	Out      io.Writer
	// Policy decides yes/no questions; nil means asking through Prompter.
	Policy   prompt.Policy
	LocalDir string
	// Bandwidth caps downloads in bytes per second; 0 is unlimited.
	Bandwidth float64
	Retries   int
	Verbose   bool
	// Interactive sessions read a new line whenever the queue runs dry;
	// others end.
	Interactive bool
	Now         func() time.Time
	Clock       transfer.Clock
}

// Session is one client session.
type Session struct {
	out         io.Writer
	prompter    *prompt.Prompter
	policy      prompt.Policy
	broker      *auth.Broker
	client      *remote.Client
	local       *localfs.FS
	engine      *transfer.Engine
	planner     mirror.Planner
	queue       deque.Deque[mirror.Task]
	verbose     bool
	interactive bool
	now         func() time.Time

	loc *locator.Locator
	dir remote.Dir
}

// New builds a session. Nothing is opened until Open.
func New(opts Options) (*Session, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	p := opts.Prompter
	if p == nil {
		in := opts.In
		if in == nil {
			in = os.Stdin
		}
		p = prompt.New(in, out)
	}
	var policy prompt.Policy = p
	if opts.Policy != nil {
		policy = opts.Policy
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	local, err := localfs.New(opts.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open local directory: %w", err)
	}

	broker := auth.NewBroker(auth.NewCache(), p)
	return &Session{
		out:      out,
		prompter: p,
		policy:   policy,
		broker:   broker,
		client:   remote.NewClient(opts.Factories, broker),
		local:    local,
		engine: &transfer.Engine{
			Out:     out,
			Cap:     opts.Bandwidth,
			Retries: opts.Retries,
			Clock:   opts.Clock,
		},
		verbose:     opts.Verbose,
		interactive: opts.Interactive,
		now:         now,
	}, nil
}

// Open binds the session to its starting location. Failures are reported
// to the user before they are returned.
func (s *Session) Open(ctx context.Context, raw string) error {
	loc, err := locator.Parse(raw)
	if err == nil {
		loc, err = locator.Simplify(loc)
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}
	d, err := s.openDir(ctx, loc)
	if err != nil {
		s.reportOpen(loc, err)
		return err
	}
	s.loc, s.dir = loc, d
	return nil
}

// Enqueue appends command lines to the queue.
func (s *Session) Enqueue(lines ...string) {
	for _, line := range lines {
		s.queue.PushBack(mirror.Command(line))
	}
}

// Run executes queued tasks until quit, end of input, an empty queue in a
// non-interactive session or cancellation of ctx.
func (s *Session) Run(ctx context.Context) error {
	if s.dir == nil {
		return errors.New("session is not open")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var task mirror.Task
		if s.queue.Len() == 0 {
			if !s.interactive {
				return nil
			}
			line, err := s.prompter.ReadLine(s.promptText())
			if err != nil {
				fmt.Fprintln(s.out)
				return nil
			}
			task = mirror.Command(line)
		} else {
			task = s.queue.PopFront()
			if s.verbose {
				fmt.Fprintf(s.out, "[%2d] %s\n", s.queue.Len(), task)
			}
		}

		err := s.exec(ctx, task)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			logging.Debug("task failed", zap.Stringer("task", task), zap.Error(err))
			s.abandon(task)
		}
	}
}

// abandon drops the queued tasks of a frame whose descent failed.
func (s *Session) abandon(failed mirror.Task) {
	for s.queue.Len() > 0 && mirror.Abandoned(failed, s.queue.Front()) {
		dropped := s.queue.PopFront()
		logging.Debug("dropping task of failed frame", zap.Stringer("task", dropped))
	}
}

// Close releases the directory handle, the connectors and the cached
// credentials.
func (s *Session) Close() error {
	var errs []error
	if s.dir != nil {
		errs = append(errs, s.dir.Close())
		s.dir = nil
	}
	errs = append(errs, s.client.Close())
	s.broker.Close()
	return errors.Join(errs...)
}

// Location returns the current remote locator.
func (s *Session) Location() *locator.Locator { return s.loc }

// LocalDir returns the current local directory.
func (s *Session) LocalDir() string { return s.local.Dir() }

func (s *Session) promptText() string {
	u := s.loc.Redacted()
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return color.BlueString(u) + color.GreenString(">") + " "
}

func (s *Session) openDir(ctx context.Context, loc *locator.Locator) (remote.Dir, error) {
	var d remote.Dir
	err := s.broker.Retry(ctx, loc, func() error {
		var err error
		d, err = s.client.OpenDir(ctx, loc)
		return err
	})
	return d, err
}

// onDir runs op on the current directory. When op is denied the broker
// dialog runs and op is repeated on a handle reopened with the new
// credentials, since the old one stays bound to its connector.
func (s *Session) onDir(ctx context.Context, op func(remote.Dir) error) error {
	first := true
	return s.broker.Retry(ctx, s.loc, func() error {
		if !first {
			d, err := s.client.OpenDir(ctx, s.loc)
			if err != nil {
				return err
			}
			_ = s.dir.Close()
			s.dir = d
		}
		first = false
		return op(s.dir)
	})
}

// entries lists the current directory through onDir.
func (s *Session) entries(ctx context.Context) ([]remote.Entry, error) {
	var entries []remote.Entry
	err := s.onDir(ctx, func(d remote.Dir) error {
		var err error
		entries, err = d.Entries(ctx)
		return err
	})
	return entries, err
}

func (s *Session) reportOpen(loc *locator.Locator, err error) {
	switch {
	case remote.IsNotFound(err), errors.Is(err, remote.ErrNotDir):
		fmt.Fprintf(s.out, "Error: No such directory: %s!\n", loc.Redacted())
	case errors.Is(err, remote.ErrAccessDenied):
		// the broker dialog already told the user
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}
