package main

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// splitCommands splits a --cmd value on ';'. Empty commands are dropped.
func splitCommands(s string) []string {
	var cmds []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			cmds = append(cmds, part)
		}
	}
	return cmds
}

// parseBatch reads one command per line. Blank lines and lines starting
// with '#' are skipped.
func parseBatch(r io.Reader) ([]string, error) {
	var cmds []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmds = append(cmds, line)
	}
	return cmds, scanner.Err()
}

func loadBatchFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBatch(f)
}
