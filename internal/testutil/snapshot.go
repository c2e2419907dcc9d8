// Package testutil reads the template corpus under testdata: input files
// with template data and source, and snapshot files with the expected
// output.
package testutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Snapshot is an expected output with a metadata header.
type Snapshot struct {
	Description string            // what the case covers
	Info        map[string]string // all metadata fields
	Expected    string            // expected output
}

// ParseSnapshotFile parses a .snap file.
func ParseSnapshotFile(path string) (*Snapshot, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(string(content)), nil
}

// ParseSnapshot parses the content of a .snap file.
// Format: ---\n<key: value lines>\n---\n<expected output>
func ParseSnapshot(content string) *Snapshot {
	snap := &Snapshot{Info: make(map[string]string)}

	content = strings.TrimPrefix(content, "---\n")
	parts := strings.SplitN(content, "\n---\n", 2)
	if len(parts) < 2 {
		snap.Expected = content
		return snap
	}

	scanner := bufio.NewScanner(strings.NewReader(parts[0]))
	var currentKey string
	var multilineValue strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") && strings.Contains(line, ":") {
			if currentKey != "" {
				snap.Info[currentKey] = strings.TrimSpace(multilineValue.String())
			}
			idx := strings.Index(line, ":")
			currentKey = line[:idx]
			value := strings.TrimSpace(line[idx+1:])
			multilineValue.Reset()
			if strings.HasPrefix(value, "\"") {
				value = parseQuotedString(value)
			}
			multilineValue.WriteString(value)
		} else if currentKey != "" {
			if multilineValue.Len() > 0 {
				multilineValue.WriteString("\n")
			}
			multilineValue.WriteString(line)
		}
	}
	if currentKey != "" {
		snap.Info[currentKey] = strings.TrimSpace(multilineValue.String())
	}

	snap.Description = snap.Info["description"]
	snap.Expected = parts[1]
	return snap
}

// parseQuotedString handles escaped characters in quoted strings.
func parseQuotedString(s string) string {
	if len(s) < 2 {
		return s
	}
	if strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") {
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\t", "\t")
	s = strings.ReplaceAll(s, "\\\"", "\"")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}

// SnapshotPath returns the snapshot file of an input file.
func SnapshotPath(snapshotDir, inputFile string) string {
	return filepath.Join(snapshotDir, filepath.Base(inputFile)+".snap")
}
