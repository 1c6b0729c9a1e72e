package mirror

import "github.com/yarkm13/sharewalk/internal/remote"

// Planner expands directory listings into tasks and numbers the frames.
type Planner struct {
	frames uint64
}

// Plan returns the tasks mirroring one level: a download for every matching
// file, then a frame for every matching directory, both in listing order.
// Shares and other containers are never entered.
func (p *Planner) Plan(entries []remote.Entry, m *Matcher, pattern string) []Task {
	var files, dirs []Task
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." || !m.Match(e.Name) {
			continue
		}
		switch e.Kind {
		case remote.KindFile:
			files = append(files, Task{Op: OpDownload, Arg: e.Name})
		case remote.KindDir:
			dirs = append(dirs, p.Frame(e.Name, pattern)...)
		}
	}
	return append(files, dirs...)
}

// Frame returns the tasks that mirror directory name with pattern: create
// and enter it locally, enter it remotely, recurse, come back out of both
// and drop the local directory again if nothing landed in it.
func (p *Planner) Frame(name, pattern string) []Task {
	p.frames++
	id := p.frames
	return []Task{
		{Op: OpCreateLocal, Arg: name, Frame: id},
		{Op: OpEnterLocal, Arg: name, Frame: id},
		{Op: OpEnterRemote, Arg: name, Frame: id},
		{Op: OpRecurse, Arg: pattern, Frame: id},
		{Op: OpLeaveRemote, Arg: "..", Frame: id},
		{Op: OpLeaveLocal, Arg: "..", Frame: id},
		{Op: OpPruneLocal, Arg: name, Frame: id},
	}
}

// Descends reports whether plan enters any subdirectory.
func Descends(plan []Task) bool {
	for _, t := range plan {
		if t.Op == OpEnterRemote {
			return true
		}
	}
	return false
}
