package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/remote"
)

// scripted answers questions from fixed lists.
type scripted struct {
	confirms []bool
	lines    []string
	asked    int
}

func (s *scripted) Confirm(string) bool {
	s.asked++
	if len(s.confirms) == 0 {
		return false
	}
	ok := s.confirms[0]
	s.confirms = s.confirms[1:]
	return ok
}

func (s *scripted) ReadLine(string) (string, error) {
	if len(s.lines) == 0 {
		return "", errors.New("no input")
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func (s *scripted) ReadSecret(p string) ([]byte, error) {
	l, err := s.ReadLine(p)
	return []byte(l), err
}

func TestCacheCaseInsensitive(t *testing.T) {
	c := NewCache()
	c.Store("FileSrv", "Public", remote.Credentials{Username: "bob", Password: []byte("pw")})

	got, ok := c.Lookup("filesrv", "PUBLIC")
	if !ok || got.Username != "bob" || string(got.Password) != "pw" {
		t.Fatalf("Lookup = %+v, %v", got, ok)
	}
	if _, ok := c.Lookup("filesrv", "other"); ok {
		t.Error("lookup of another share should miss")
	}

	got.Password[0] = 'x'
	again, _ := c.Lookup("FILESRV", "public")
	if string(again.Password) != "pw" {
		t.Error("Lookup returned the cached slice itself")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Error("Clear left entries behind")
	}
}

func TestResolveDomainHint(t *testing.T) {
	c := NewCache()
	c.Store("srv", "share", remote.Credentials{Username: "u"})
	b := NewBroker(c, nil)

	got, ok := b.Resolve("SRV", "share", "WORKGROUP")
	if !ok || got.Domain != "WORKGROUP" {
		t.Errorf("Resolve = %+v, %v", got, ok)
	}
	if _, ok := b.Resolve("srv", "", ""); ok {
		t.Error("expected no override for an uncached key")
	}
}

func TestRetryOncePerEntry(t *testing.T) {
	target := locator.MustParse("smb://srv/share/dir")
	asker := &scripted{
		confirms: []bool{true, true},
		lines:    []string{"wrong", "pw1", `CORP\bob`, "pw2"},
	}
	cache := NewCache()
	b := NewBroker(cache, asker)

	calls := 0
	err := b.Retry(context.Background(), target, func() error {
		calls++
		creds, ok := b.Resolve("srv", "share", "")
		if ok && creds.Username == "bob" && string(creds.Password) == "pw2" {
			return nil
		}
		return remote.Wrap(remote.ErrAccessDenied, "open", target.String(), nil)
	})
	if err != nil {
		t.Fatalf("Retry = %v", err)
	}
	if calls != 3 {
		t.Errorf("op ran %d times, want 3", calls)
	}
	creds, _ := cache.Lookup("srv", "share")
	if creds.Domain != "CORP" || creds.Username != "bob" {
		t.Errorf("cached %+v", creds)
	}
}

func TestRetryDeclined(t *testing.T) {
	target := locator.MustParse("smb://srv/share")
	asker := &scripted{confirms: []bool{false}}
	b := NewBroker(NewCache(), asker)

	calls := 0
	denied := remote.Wrap(remote.ErrAccessDenied, "open", "x", nil)
	err := b.Retry(context.Background(), target, func() error {
		calls++
		return denied
	})
	if !errors.Is(err, remote.ErrAccessDenied) || calls != 1 || asker.asked != 1 {
		t.Errorf("err=%v calls=%d asked=%d", err, calls, asker.asked)
	}

	other := errors.New("boom")
	calls = 0
	if err := b.Retry(context.Background(), target, func() error { calls++; return other }); err != other || calls != 1 {
		t.Errorf("non-auth error should pass through once, got %v after %d calls", err, calls)
	}
}
