package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// TestInput represents a parsed test input file.
type TestInput struct {
	Context  map[string]any // JSON template data
	Settings *TestSettings  // Optional $settings from context
	Template string         // Template source after ---
}

// TestSettings represents the $settings field in test inputs.
type TestSettings struct {
	Receiver       string   `json:"receiver"`
	Imports        []string `json:"imports"`
	RecursionLimit int      `json:"recursion_limit"`
	DOM            bool     `json:"dom"`
}

// ParseTestInputFile reads and parses a test input file.
func ParseTestInputFile(path string) (*TestInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTestInput(string(content))
}

// ParseTestInput parses test input content.
// Format: JSON context\n---\ntemplate
func ParseTestInput(content string) (*TestInput, error) {
	input := &TestInput{
		Context: make(map[string]any),
	}

	parts := strings.SplitN(content, "\n---\n", 2)

	if len(parts) >= 1 && strings.TrimSpace(parts[0]) != "" {
		if err := json.Unmarshal([]byte(parts[0]), &input.Context); err != nil {
			return nil, err
		}

		// $settings configures the environment and is not template data.
		if settingsRaw, ok := input.Context["$settings"]; ok {
			settingsJSON, err := json.Marshal(settingsRaw)
			if err != nil {
				return nil, err
			}
			input.Settings = &TestSettings{}
			if err := json.Unmarshal(settingsJSON, input.Settings); err != nil {
				return nil, err
			}
			delete(input.Context, "$settings")
		}
	}

	if len(parts) >= 2 {
		input.Template = parts[1]
	}

	return input, nil
}

// LoadRefs reads every file in dir into a map keyed by file name. Test
// inputs include them as partials.
func LoadRefs(dir string) (map[string]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, err
	}
	refs := make(map[string]string, len(files))
	for _, p := range files {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		refs[filepath.Base(p)] = string(content)
	}
	return refs, nil
}

// Diff returns a line diff of expected and actual, empty when they are
// equal.
func Diff(expected, actual string) string {
	if expected == actual {
		return ""
	}
	return "(-expected +actual):\n" + cmp.Diff(
		strings.SplitAfter(expected, "\n"),
		strings.SplitAfter(actual, "\n"),
	)
}
