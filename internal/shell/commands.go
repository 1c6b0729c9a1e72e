package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yarkm13/sharewalk/internal/localfs"
	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/mirror"
	"github.com/yarkm13/sharewalk/internal/remote"
)

var errNoMatch = errors.New("no match")

const helpText = `Available commands: cd <dir>, [mr]get <filename|regexp>, dget <dir>, dir, quit
                    lcd <localdir>, lmkdir <localdir>, lrmdir <localdir>, pwd, lpwd
`

// splitCommand splits a line into the lower-cased verb and the rest of the
// line. A double-quoted argument loses its quotes.
func splitCommand(line string) (verb, arg string) {
	line = strings.TrimSpace(line)
	verb, arg, _ = strings.Cut(line, " ")
	arg = strings.TrimLeft(arg, " \t")
	if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		arg = arg[1 : len(arg)-1]
	}
	return strings.ToLower(verb), arg
}

func (s *Session) exec(ctx context.Context, t mirror.Task) error {
	switch t.Op {
	case mirror.OpCommand:
		return s.command(ctx, t.Arg)
	case mirror.OpCreateLocal:
		return s.makeLocalDir(t.Arg)
	case mirror.OpEnterLocal, mirror.OpLeaveLocal:
		return s.changeLocalDir(t.Arg)
	case mirror.OpEnterRemote, mirror.OpLeaveRemote:
		return s.changeDir(ctx, t.Arg)
	case mirror.OpRecurse:
		return s.fetch(ctx, "rget", t.Arg, true)
	case mirror.OpPruneLocal:
		return s.removeLocalDir(t.Arg)
	case mirror.OpDownload:
		return s.download(ctx, t.Arg, false)
	}
	return fmt.Errorf("unknown task %d", t.Op)
}

func (s *Session) command(ctx context.Context, line string) error {
	verb, arg := splitCommand(line)
	switch verb {
	case "":
		return nil
	case "dir", "ls":
		return s.list(ctx)
	case "lmkdir":
		return s.makeLocalDir(arg)
	case "lrmdir":
		return s.removeLocalDir(arg)
	case "cd":
		return s.changeDir(ctx, arg)
	case "lcd":
		return s.changeLocalDir(arg)
	case "get", "mget", "rget":
		return s.fetch(ctx, verb, arg, false)
	case "dget":
		return s.fetchDir(ctx, arg)
	case "pwd":
		fmt.Fprintln(s.out, s.loc.Redacted())
	case "lpwd":
		fmt.Fprintln(s.out, s.local.Dir())
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprint(s.out, helpText)
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", verb)
	}
	return nil
}

func (s *Session) makeLocalDir(name string) error {
	if err := s.local.Mkdir(name); err != nil && !localfs.IsExist(err) {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}
	return nil
}

func (s *Session) removeLocalDir(name string) error {
	if err := s.local.Rmdir(name); err != nil && !localfs.IsNotEmpty(err) {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}
	return nil
}

func (s *Session) changeLocalDir(name string) error {
	if err := s.local.Chdir(name); err != nil {
		fmt.Fprintf(s.out, "Error: No such directory: %s!\n", s.local.Path(name))
		return err
	}
	return nil
}

func (s *Session) changeDir(ctx context.Context, arg string) error {
	target, err := locator.Join(s.loc, arg)
	if err != nil {
		if errors.Is(err, locator.ErrEscapesRoot) {
			fmt.Fprintf(s.out, "Error: No such directory: %s/%s!\n", strings.TrimSuffix(s.loc.Redacted(), "/"), arg)
		} else {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		return err
	}
	d, err := s.openDir(ctx, target)
	if err != nil {
		s.reportOpen(target, err)
		return err
	}
	_ = s.dir.Close()
	s.loc, s.dir = target, d
	return nil
}

// fetch implements get, mget and rget. A file whose whole name matches is
// downloaded over any local copy. Otherwise get offers every match, mget
// takes them all and rget schedules a mirror of the level. Recursion
// scheduled by rget itself (nested) mirrors every match and stays silent
// when nothing matches.
func (s *Session) fetch(ctx context.Context, verb, pattern string, nested bool) error {
	entries, err := s.entries(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}
	m := mirror.NewMatcher(pattern)
	if !nested {
		for _, e := range entries {
			if e.IsFile() && exactName(verb, pattern, m, e.Name) {
				return s.download(ctx, e.Name, true)
			}
		}
	}

	if verb == "rget" {
		plan := s.planner.Plan(entries, m, pattern)
		if len(plan) == 0 {
			if nested {
				return nil
			}
			fmt.Fprintln(s.out, "Error: No such file in this directory!")
			return errNoMatch
		}
		if mirror.Descends(plan) {
			fmt.Fprintln(s.out, s.loc.Redacted())
		}
		for i := len(plan) - 1; i >= 0; i-- {
			s.queue.PushFront(plan[i])
		}
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.IsFile() && m.Match(e.Name) {
			names = append(names, e.Name)
		}
	}
	if len(names) == 0 {
		fmt.Fprintln(s.out, "Error: No such file in this directory!")
		return errNoMatch
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		var overwrite, ok bool
		if verb == "get" {
			overwrite, ok = s.confirmGet(name)
		} else {
			overwrite, ok = s.confirmMultiGet(ctx, name, len(names) > 1)
		}
		if ok {
			_ = s.download(ctx, name, overwrite)
		}
	}
	return nil
}

// exactName reports whether name takes the single-file shortcut. For rget
// the pattern must spell the name itself, so "rget ." still mirrors a level
// holding a one-character file.
func exactName(verb, pattern string, m *mirror.Matcher, name string) bool {
	if verb == "rget" {
		return strings.EqualFold(pattern, name)
	}
	return m.Exact(name)
}

func (s *Session) confirmGet(name string) (overwrite, ok bool) {
	if !s.policy.Confirm(name + "?") {
		return false, false
	}
	if !s.local.Exists(name) {
		return false, true
	}
	if !s.policy.Confirm(fmt.Sprintf("File exists: %s! Overwrite?", name)) {
		return false, false
	}
	return true, true
}

// confirmMultiGet asks for each of several matches. A local copy of equal
// size is left to the engine, which skips it.
func (s *Session) confirmMultiGet(ctx context.Context, name string, several bool) (overwrite, ok bool) {
	if several && !s.policy.Confirm(name+"?") {
		return false, false
	}
	size, exists := s.local.Size(name)
	if !exists {
		return false, true
	}
	fi, err := s.dir.Stat(ctx, name)
	if err != nil || fi.Size() == size {
		return false, true
	}
	if !s.policy.Confirm(fmt.Sprintf("File exists: %s! Overwrite?", name)) {
		return false, false
	}
	return true, true
}

// fetchDir mirrors one directory into a local directory of the same name.
func (s *Session) fetchDir(ctx context.Context, pattern string) error {
	entries, err := s.entries(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}
	m := mirror.NewMatcher(pattern)
	var exact string
	var matches []string
	for _, e := range entries {
		if !e.IsDir() || e.Name == "." || e.Name == ".." {
			continue
		}
		if exact == "" && m.Exact(e.Name) {
			exact = e.Name
		}
		if m.Match(e.Name) {
			matches = append(matches, e.Name)
		}
	}

	name := exact
	switch {
	case name != "":
	case len(matches) == 1:
		name = matches[0]
	case len(matches) == 0:
		fmt.Fprintln(s.out, "Error: No match!")
		return errQuit
	default:
		fmt.Fprintf(s.out, "Error: Ambiguous match: %s!\n", strings.Join(matches, ", "))
		return errNoMatch
	}

	// the directory is kept even when nothing lands in it
	frame := s.planner.Frame(name, ".")
	frame = frame[:len(frame)-1]
	for i := len(frame) - 1; i >= 0; i-- {
		s.queue.PushFront(frame[i])
	}
	return nil
}

func (s *Session) download(ctx context.Context, name string, overwrite bool) error {
	err := s.onDir(ctx, func(d remote.Dir) error {
		_, err := s.engine.Download(ctx, d, name, s.local.Path(name), overwrite)
		return err
	})
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return err
}
