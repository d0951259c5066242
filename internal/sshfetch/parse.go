package sshfetch

import (
	"strconv"
	"strings"
)

// parseListing parses `ls -l` output into entries. Only regular files are
// kept; directories, symlinks and the "total N" header are skipped. Filenames
// containing spaces are reassembled from the trailing fields.
func parseListing(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}

		fields := strings.Fields(line)
		// -rw-r--r-- 1 owner group 15728640 Nov  1 23:59 app-01-11-2025.log
		if len(fields) < 9 {
			continue
		}
		if fields[0] == "" || fields[0][0] != '-' {
			continue
		}

		size, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			size = -1
		}

		// Rebuild the name from the original line so multiple spaces inside
		// a filename survive. The name starts after the 8th field.
		name := fieldsTail(line, 8)
		if name == "" {
			continue
		}
		entries = append(entries, Entry{Name: name, Size: size})
	}
	return entries
}

// fieldsTail returns the remainder of line after skipping n whitespace-
// separated fields.
func fieldsTail(line string, n int) string {
	rest := line
	for i := 0; i < n; i++ {
		rest = strings.TrimLeft(rest, " \t")
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = rest[idx:]
	}
	return strings.TrimLeft(rest, " \t")
}
