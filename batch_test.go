package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSplitCommands(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"ls", []string{"ls"}},
		{"cd docs; rget *.pdf;;quit", []string{"cd docs", "rget *.pdf", "quit"}},
		{" ; ", nil},
	}
	for _, tt := range tests {
		if got := splitCommands(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCommands(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseBatch(t *testing.T) {
	script := "# nightly mirror\nlcd /srv/mirror\n\n  cd music  \nrget .\n#quit\n"
	got, err := parseBatch(strings.NewReader(script))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"lcd /srv/mirror", "cd music", "rget ."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseBatch = %q, want %q", got, want)
	}
}

func TestLoadBatchFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "job.txt")
	if err := os.WriteFile(name, []byte("ls\nget a.txt"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := loadBatchFile(name)
	if err != nil || !reflect.DeepEqual(got, []string{"ls", "get a.txt"}) {
		t.Errorf("loadBatchFile = %q, %v", got, err)
	}
	if _, err := loadBatchFile(name + ".missing"); err == nil {
		t.Error("missing file loaded")
	}
}

func TestStartURL(t *testing.T) {
	tests := map[string]string{
		"//server/share":  "smb://server/share",
		"smb://server":    "smb://server",
		"ftp://host/pub":  "ftp://host/pub",
		"sftp://u@host/d": "sftp://u@host/d",
	}
	for in, want := range tests {
		if got := startURL(in); got != want {
			t.Errorf("startURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConnectorFactories(t *testing.T) {
	factories, err := connectorFactories(factoryConfig{})
	if err != nil {
		t.Fatal(err)
	}
	for _, scheme := range []string{"smb", "ftp", "sftp", "scp", "s3", "s3+http"} {
		served := false
		for _, f := range factories {
			if f.Accept(scheme) {
				served = true
				break
			}
		}
		if !served {
			t.Errorf("no factory for %s", scheme)
		}
	}
}
