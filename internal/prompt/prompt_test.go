package prompt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("dir\r\ncd sub\nlast"), &out)

	for _, want := range []string{"dir", "cd sub", "last"} {
		got, err := p.ReadLine("> ")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if _, err := p.ReadLine("> "); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
	if got := out.String(); got != "> > > > " {
		t.Errorf("prompt output = %q", got)
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("y\nNo\nYES please\n\n"), &out)

	want := []bool{true, false, true, false, false}
	for i, w := range want {
		if got := p.Confirm("Overwrite?"); got != w {
			t.Errorf("answer %d = %v, want %v", i, got, w)
		}
	}
	if !strings.HasPrefix(out.String(), "Overwrite? [y/n] ") {
		t.Errorf("question output = %q", out.String())
	}
}

func TestReadSecretWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("hunter2\n"), &out)
	got, err := p.ReadSecret("password: ")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hunter2" {
		t.Errorf("secret = %q", got)
	}
}

func TestFixedPolicies(t *testing.T) {
	var yes, no Policy = AlwaysYes{}, AlwaysNo{}
	if !yes.Confirm("x") || no.Confirm("x") {
		t.Error("fixed policies answered wrong")
	}
}
