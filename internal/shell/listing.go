package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/remote"
	"github.com/yarkm13/sharewalk/internal/transfer"
)

// list prints the current directory. Shares, workgroups and servers show
// their comment; files, directories and links show size and time.
func (s *Session) list(ctx context.Context) error {
	entries, err := s.entries(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}
	year := s.now().Year()
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.IsContainer() {
			fmt.Fprintf(s.out, "%27s %s\n", e.Name, e.Comment)
			continue
		}

		size := "dir"
		fi, err := s.dir.Stat(ctx, e.Name)
		if err != nil {
			if !remote.IsNotFound(err) {
				logging.Warn("stat failed", zap.String("name", e.Name), zap.Error(err))
			}
			if !e.IsDir() {
				size = " "
			}
			fmt.Fprintf(s.out, "%14s %s%s\n", size, strings.Repeat(" ", 13), e.Name)
			continue
		}
		if !e.IsDir() {
			size = transfer.FormatSize(fi.Size())
		}
		fmt.Fprintf(s.out, "%14s %s %s\n", size, stamp(fi.ModTime(), year), e.Name)
	}
	return nil
}

// stamp renders a modification time as "Jan 02 15:04", or "Jan 02  2006"
// outside the current year.
func stamp(t time.Time, year int) string {
	if t.Year() == year {
		return t.Format("Jan 02 15:04")
	}
	return t.Format("Jan 02") + "  " + strconv.Itoa(t.Year())
}
