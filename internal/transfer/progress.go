package transfer

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var sizeSuffixes = []string{"B", "kB", "MB", "GB"}

// FormatSize renders n bytes in the largest unit that keeps the value at or
// above one, with three significant digits.
func FormatSize(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " " + sizeSuffixes[0]
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeSuffixes)-1 {
		v /= 1024
		i++
	}
	s := strconv.FormatFloat(v, 'g', 3, 64)
	if strings.Contains(s, "e") {
		s = strconv.FormatFloat(v, 'f', 0, 64)
	}
	return s + " " + sizeSuffixes[i]
}

// progressWidth is the width of the rewritable "ppp % ssssssss/s" field.
const progressWidth = 16

// progress draws one line per download and rewrites its tail with
// backspaces as the transfer advances.
type progress struct {
	w    io.Writer
	size int64
}

func newProgress(w io.Writer, name string, size int64) *progress {
	if w == nil {
		w = io.Discard
	}
	p := &progress{w: w, size: size}
	fmt.Fprintf(p.w, "%-40s\t%3d %% %*s", name, 0, progressWidth-6, "")
	return p
}

func (p *progress) update(read int64, speed float64) {
	pct := int64(0)
	if p.size > 0 {
		pct = read * 100 / p.size
	}
	fmt.Fprintf(p.w, "%s%3d %% %8s/s",
		strings.Repeat("\b", progressWidth), pct, FormatSize(int64(math.Round(speed))))
}

func (p *progress) done(read int64) {
	fmt.Fprintf(p.w, "  %s\n", FormatSize(read))
}

func (p *progress) abort() {
	fmt.Fprintln(p.w)
}
