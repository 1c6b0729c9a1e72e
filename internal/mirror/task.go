// Package mirror turns one recursive get into an ordered list of primitive
// tasks. The shell pushes the list to the front of its queue, so a level is
// finished, subdirectories included, before anything queued after it runs.
package mirror

// Op is the kind of a queued task.
type Op int

const (
	// OpCommand is a raw command line typed by the user or read from a batch.
	OpCommand Op = iota
	OpCreateLocal
	OpEnterLocal
	OpEnterRemote
	OpRecurse
	OpLeaveRemote
	OpLeaveLocal
	OpPruneLocal
	OpDownload
)

// Task is one entry of the shell's queue. Tasks generated for the same
// directory share a non-zero Frame.
type Task struct {
	Op    Op
	Arg   string
	Frame uint64
}

// Command wraps a command line.
func Command(line string) Task {
	return Task{Op: OpCommand, Arg: line}
}

// String renders the task as the command line that would have the same
// effect.
func (t Task) String() string {
	switch t.Op {
	case OpCreateLocal:
		return "lmkdir " + t.Arg
	case OpEnterLocal:
		return "lcd " + t.Arg
	case OpEnterRemote:
		return "cd " + t.Arg
	case OpRecurse:
		return "rget " + t.Arg
	case OpLeaveRemote:
		return "cd .."
	case OpLeaveLocal:
		return "lcd .."
	case OpPruneLocal:
		return "lrmdir " + t.Arg
	case OpDownload:
		return "get " + t.Arg
	}
	return t.Arg
}

// Abandoned reports whether next must be dropped because failed, an earlier
// task of the same frame, did not complete. A failed local descent drops the
// whole remote visit and the matching local ascent; a failed remote descent
// drops the recursion and the remote ascent.
func Abandoned(failed, next Task) bool {
	if failed.Frame == 0 || next.Frame != failed.Frame {
		return false
	}
	switch failed.Op {
	case OpEnterLocal:
		switch next.Op {
		case OpEnterRemote, OpRecurse, OpLeaveRemote, OpLeaveLocal:
			return true
		}
	case OpEnterRemote:
		return next.Op == OpRecurse || next.Op == OpLeaveRemote
	}
	return false
}
