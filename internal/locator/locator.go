// Package locator parses and normalises remote locators of the form
//
//	scheme://[[domain;]username[:password]@]server[/share[/path...]]
//
// Locators are treated as values: navigation builds a new locator instead of
// changing an existing one.
package locator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformed is returned when a locator string is structurally incomplete
	// or ambiguous.
	ErrMalformed = errors.New("malformed locator")
	// ErrEscapesRoot is returned when a ".." segment resolves above the server.
	ErrEscapesRoot = errors.New("locator escapes root")
)

// User holds the credential block of a locator.
type User struct {
	Domain      string
	Username    string
	Password    string
	HasPassword bool
}

// Locator is the structured address of a remote resource.
type Locator struct {
	Scheme        string
	User          *User // nil when the locator has no "@" block
	Server        string
	Share         string
	Path          []string
	TrailingSlash bool
}

// Parse splits raw into its components. It never guesses: anything that
// leaves the structure ambiguous is rejected with ErrMalformed.
func Parse(raw string) (*Locator, error) {
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || !validScheme(scheme) {
		return nil, malformed(raw, "missing scheme")
	}
	if !strings.HasPrefix(rest, "//") {
		return nil, malformed(raw, "missing //")
	}
	rest = rest[2:]
	if rest == "" {
		return nil, malformed(raw, "empty authority")
	}

	loc := &Locator{Scheme: strings.ToLower(scheme)}

	authority, tail, hasTail := strings.Cut(rest, "/")
	if at := strings.Index(authority, "@"); at >= 0 {
		loc.User = parseUser(authority[:at])
		authority = authority[at+1:]
	}
	if err := checkServer(authority); err != nil {
		return nil, malformed(raw, err.Error())
	}
	loc.Server = authority

	if !hasTail {
		return loc, nil
	}
	if loc.Server == "" {
		return nil, malformed(raw, "share without server")
	}
	if tail == "" || strings.HasSuffix(tail, "/") {
		loc.TrailingSlash = true
		tail = strings.TrimSuffix(tail, "/")
	}
	if tail != "" {
		segs := strings.Split(tail, "/")
		loc.Share = segs[0]
		loc.Path = segs[1:]
	}
	return loc, nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) *Locator {
	l, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return l
}

func parseUser(s string) *User {
	u := &User{}
	if i := strings.Index(s, ";"); i >= 0 {
		u.Domain = s[:i]
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		u.Username = s[:i]
		u.Password = s[i+1:]
		u.HasPassword = true
	} else {
		u.Username = s
	}
	return u
}

func checkServer(s string) error {
	if strings.Contains(s, ";") {
		return errors.New("domain without credentials")
	}
	if strings.Contains(s, "@") {
		return errors.New("stray @")
	}
	if host, port, ok := strings.Cut(s, ":"); ok {
		if host == "" {
			return errors.New("port without host")
		}
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return fmt.Errorf("bad port %q", port)
		}
	}
	return nil
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func malformed(raw, why string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformed, raw, why)
}

// Simplify resolves "." and ".." segments and drops empty ones. The result
// keeps a trailing slash when the input had one or ended in ".", and loses
// it when the input ended in "..".
func Simplify(l *Locator) (*Locator, error) {
	if l.Server == "." || l.Server == ".." {
		return nil, fmt.Errorf("%w: %s: server may not be %q", ErrEscapesRoot, l.Redacted(), l.Server)
	}

	segs := l.Segments()
	out := make([]string, 0, len(segs))
	trailing := l.TrailingSlash
	for i, seg := range segs {
		switch seg {
		case "", ".":
			if i == len(segs)-1 {
				trailing = true
			}
		case "..":
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: %s", ErrEscapesRoot, l.Redacted())
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}

	n := l.Clone()
	n.setSegments(out)
	n.TrailingSlash = trailing
	return n, nil
}

// Join resolves arg against l the way a shell "cd" does. Arguments that
// carry their own scheme, or start with "//", replace l entirely.
func Join(l *Locator, arg string) (*Locator, error) {
	var raw string
	switch {
	case strings.HasPrefix(arg, "//"):
		raw = l.Scheme + ":" + arg
	case hasScheme(arg):
		raw = arg
	case l.Server == "":
		raw = l.String() + arg
	default:
		raw = l.String()
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		raw += arg
	}
	n, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Simplify(n)
}

func hasScheme(s string) bool {
	scheme, rest, ok := strings.Cut(s, ":")
	return ok && validScheme(scheme) && strings.HasPrefix(rest, "//")
}

// Segments returns the share followed by the path segments.
func (l *Locator) Segments() []string {
	if l.Share == "" && len(l.Path) == 0 {
		return nil
	}
	segs := make([]string, 0, len(l.Path)+1)
	segs = append(segs, l.Share)
	return append(segs, l.Path...)
}

func (l *Locator) setSegments(segs []string) {
	if len(segs) == 0 {
		l.Share, l.Path = "", nil
		return
	}
	l.Share = segs[0]
	l.Path = append([]string(nil), segs[1:]...)
}

// PathString returns the path below the share with a leading slash, or ""
// when the locator points at a share or above.
func (l *Locator) PathString() string {
	if len(l.Path) == 0 {
		return ""
	}
	return "/" + strings.Join(l.Path, "/")
}

// Child returns a locator for the entry name inside l.
func (l *Locator) Child(name string) *Locator {
	n := l.Clone()
	n.setSegments(append(l.Segments(), name))
	n.TrailingSlash = false
	return n
}

// Clone returns a deep copy of l.
func (l *Locator) Clone() *Locator {
	n := *l
	if l.User != nil {
		u := *l.User
		n.User = &u
	}
	n.Path = append([]string(nil), l.Path...)
	return &n
}

// Key is the case-insensitive "server/share" key used for credential lookup.
func (l *Locator) Key() string {
	return Key(l.Server, l.Share)
}

// Key builds the credential cache key for a server and share.
func Key(server, share string) string {
	return strings.ToLower(server + "/" + share)
}

// String renders the locator; Parse(l.String()) yields an equal locator.
func (l *Locator) String() string {
	return l.render(false)
}

// Redacted renders the locator with the password masked.
func (l *Locator) Redacted() string {
	return l.render(true)
}

func (l *Locator) render(mask bool) string {
	var b strings.Builder
	b.WriteString(l.Scheme)
	b.WriteString("://")
	if u := l.User; u != nil {
		if u.Domain != "" {
			b.WriteString(u.Domain)
			b.WriteByte(';')
		}
		b.WriteString(u.Username)
		if u.HasPassword {
			b.WriteByte(':')
			if mask {
				b.WriteString("xxxxx")
			} else {
				b.WriteString(u.Password)
			}
		}
		b.WriteByte('@')
	}
	b.WriteString(l.Server)
	segs := l.Segments()
	if len(segs) > 0 || l.TrailingSlash {
		b.WriteByte('/')
		b.WriteString(strings.Join(segs, "/"))
	}
	if len(segs) > 0 && l.TrailingSlash {
		b.WriteByte('/')
	}
	return b.String()
}
