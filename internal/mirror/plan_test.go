package mirror

import (
	"reflect"
	"testing"

	"github.com/yarkm13/sharewalk/internal/remote"
)

func names(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.String()
	}
	return out
}

func TestPlanOrder(t *testing.T) {
	entries := []remote.Entry{
		{Name: ".", Kind: remote.KindDir},
		{Name: "..", Kind: remote.KindDir},
		{Name: "f1", Kind: remote.KindFile},
		{Name: "B", Kind: remote.KindDir},
		{Name: "c.txt", Kind: remote.KindFile},
		{Name: "IPC$", Kind: remote.KindShare},
		{Name: "D", Kind: remote.KindDir},
	}
	var p Planner
	got := names(p.Plan(entries, NewMatcher("."), "."))
	want := []string{
		"get f1", "get c.txt",
		"lmkdir B", "lcd B", "cd B", "rget .", "cd ..", "lcd ..", "lrmdir B",
		"lmkdir D", "lcd D", "cd D", "rget .", "cd ..", "lcd ..", "lrmdir D",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("plan =\n%q\nwant\n%q", got, want)
	}
}

func TestPlanFiltersAndFrames(t *testing.T) {
	entries := []remote.Entry{
		{Name: "notes.TXT", Kind: remote.KindFile},
		{Name: "image.png", Kind: remote.KindFile},
		{Name: "txtdir", Kind: remote.KindDir},
		{Name: "other", Kind: remote.KindDir},
	}
	var p Planner
	tasks := p.Plan(entries, NewMatcher("txt"), "txt")
	if got := names(tasks); !reflect.DeepEqual(got[:2], []string{"get notes.TXT", "lmkdir txtdir"}) || len(got) != 8 {
		t.Fatalf("plan = %q", got)
	}
	for _, task := range tasks[1:] {
		if task.Frame != tasks[1].Frame || task.Frame == 0 {
			t.Errorf("task %v has frame %d", task, task.Frame)
		}
	}

	second := p.Frame("x", ".")
	if second[0].Frame == tasks[1].Frame {
		t.Error("frames must not repeat")
	}
	if got := p.Plan(nil, NewMatcher("."), "."); len(got) != 0 {
		t.Errorf("empty listing planned %v", got)
	}
}

func TestAbandoned(t *testing.T) {
	var p Planner
	frame := p.Frame("d", ".")
	other := p.Frame("e", ".")

	var afterLocal, afterRemote []string
	for _, next := range frame[2:] {
		if Abandoned(frame[1], next) {
			afterLocal = append(afterLocal, next.String())
		}
	}
	for _, next := range frame[3:] {
		if Abandoned(frame[2], next) {
			afterRemote = append(afterRemote, next.String())
		}
	}
	if want := []string{"cd d", "rget .", "cd ..", "lcd .."}; !reflect.DeepEqual(afterLocal, want) {
		t.Errorf("after failed lcd dropped %q, want %q", afterLocal, want)
	}
	if want := []string{"rget .", "cd .."}; !reflect.DeepEqual(afterRemote, want) {
		t.Errorf("after failed cd dropped %q, want %q", afterRemote, want)
	}
	if Abandoned(frame[2], other[3]) {
		t.Error("tasks of another frame must survive")
	}
	if Abandoned(Command("cd x"), Command("dir")) {
		t.Error("plain commands have no frame")
	}
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		pattern, name string
		match, exact  bool
	}{
		{".", "anything", true, false},
		{"readme", "README.md", true, false},
		{"readme.md", "README.MD", true, true},
		{`\.iso$`, "debian.iso", true, false},
		{"a[b", "xa[by", true, false},
		{"a[b", "a[b", true, true},
		{"foo", "bar", false, false},
		{"", "x", true, false},
	}
	for _, tt := range tests {
		m := NewMatcher(tt.pattern)
		if got := m.Match(tt.name); got != tt.match {
			t.Errorf("Match(%q, %q) = %v", tt.pattern, tt.name, got)
		}
		if got := m.Exact(tt.name); got != tt.exact {
			t.Errorf("Exact(%q, %q) = %v", tt.pattern, tt.name, got)
		}
	}
}

func TestDescends(t *testing.T) {
	var p Planner
	files := p.Plan([]remote.Entry{{Name: "a", Kind: remote.KindFile}}, NewMatcher("."), ".")
	if Descends(files) {
		t.Error("file-only plan reported as descending")
	}
	mixed := p.Plan([]remote.Entry{{Name: "a", Kind: remote.KindFile}, {Name: "d", Kind: remote.KindDir}}, NewMatcher("."), ".")
	if !Descends(mixed) {
		t.Error("plan with a directory frame not reported as descending")
	}
}
