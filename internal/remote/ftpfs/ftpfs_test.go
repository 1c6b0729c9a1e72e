package ftpfs

import (
	"errors"
	"net/textproto"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/remote"
)

func TestRemotePath(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"ftp://host", "/"},
		{"ftp://host/pub", "/pub"},
		{"ftp://host/pub/linux/iso", "/pub/linux/iso"},
	}
	for _, tt := range tests {
		if got := remotePath(locator.MustParse(tt.raw)); got != tt.want {
			t.Errorf("remotePath(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{ftp.StatusFileUnavailable, remote.ErrNotFound},
		{ftp.StatusNotLoggedIn, remote.ErrAccessDenied},
	}
	for _, tt := range tests {
		cause := &textproto.Error{Code: tt.code, Msg: "nope"}
		err := mapError("retr", "/x", cause)
		if !errors.Is(err, tt.want) {
			t.Errorf("code %d mapped to %v", tt.code, err)
		}
		var te *textproto.Error
		if !errors.As(err, &te) {
			t.Errorf("code %d: cause lost", tt.code)
		}
	}
	if err := mapError("list", "/", &textproto.Error{Code: 421}); remote.IsNotFound(err) || errors.Is(err, remote.ErrAccessDenied) {
		t.Errorf("service unavailable mapped to %v", err)
	}
}

func TestEntryInfo(t *testing.T) {
	when := time.Date(2023, 1, 2, 3, 4, 0, 0, time.UTC)
	fi := info(&ftp.Entry{Name: "a.iso", Size: 4096, Time: when, Type: ftp.EntryTypeFile})
	if fi.Name() != "a.iso" || fi.Size() != 4096 || !fi.ModTime().Equal(when) || fi.IsDir() {
		t.Errorf("info = %+v", fi)
	}
	if kindOf(ftp.EntryTypeFolder) != remote.KindDir || kindOf(ftp.EntryTypeLink) != remote.KindLink || kindOf(ftp.EntryTypeFile) != remote.KindFile {
		t.Error("entry kinds")
	}
	if hostPort("ftp.example.org") != "ftp.example.org:21" || hostPort("h:2121") != "h:2121" {
		t.Error("hostPort")
	}
}
