package stache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stache-go/stache/internal/testutil"
	"github.com/stache-go/stache/loader"
)

const (
	inputDir    = "testdata/inputs"
	refsDir     = "testdata/inputs/refs"
	snapshotDir = "testdata/snapshots"
)

func renderCase(t *testing.T, sources map[string]string, name string, cfg Config, data any) string {
	t.Helper()
	env := NewEnvironment(loader.NewMap(sources), cfg)
	unit, err := env.Compile(name)
	if err != nil {
		return formatError(err)
	}
	if _, err := unit.Source("views", "T"); err != nil {
		t.Errorf("generating source: %v", err)
	}
	out, err := unit.Preview(data)
	if err != nil {
		return formatError(err)
	}
	return out + "\n"
}

func formatError(err error) string {
	return "!!!ERROR!!!\n\n" + err.Error() + "\n"
}

func TestTemplates(t *testing.T) {
	refs, err := testutil.LoadRefs(refsDir)
	if err != nil {
		t.Fatalf("failed to load refs: %v", err)
	}

	inputs, err := filepath.Glob(filepath.Join(inputDir, "*.txt"))
	if err != nil {
		t.Fatalf("failed to glob inputs: %v", err)
	}
	hbsInputs, _ := filepath.Glob(filepath.Join(inputDir, "*.hbs"))
	inputs = append(inputs, hbsInputs...)
	if len(inputs) == 0 {
		t.Fatalf("no input files found in %s", inputDir)
	}

	for _, inputPath := range inputs {
		inputName := filepath.Base(inputPath)
		t.Run(inputName, func(t *testing.T) {
			input, err := testutil.ParseTestInputFile(inputPath)
			if err != nil {
				t.Fatalf("failed to parse input: %v", err)
			}

			var cfg Config
			if s := input.Settings; s != nil {
				cfg = Config{
					Receiver:       s.Receiver,
					Imports:        s.Imports,
					RecursionLimit: s.RecursionLimit,
					DOM:            s.DOM,
				}
			}
			sources := map[string]string{inputName: input.Template}
			for name, src := range refs {
				sources[name] = src
			}

			rendered := renderCase(t, sources, inputName, cfg, input.Context)

			snapPath := testutil.SnapshotPath(snapshotDir, inputName)
			snapshot, err := testutil.ParseSnapshotFile(snapPath)
			if err != nil {
				if os.IsNotExist(err) {
					t.Fatalf("snapshot not found: %s\nActual output:\n%s", snapPath, rendered)
				}
				t.Fatalf("failed to parse snapshot: %v", err)
			}
			if diff := testutil.Diff(snapshot.Expected, rendered); diff != "" {
				t.Errorf("output mismatch\n%s", diff)
			}

			// Folding must not change what a template renders.
			cfg.NoFold = true
			if unfolded := renderCase(t, sources, inputName, cfg, input.Context); unfolded != rendered {
				t.Errorf("output differs without folding\n%s", testutil.Diff(rendered, unfolded))
			}
		})
	}
}
