package generator

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/chazu/casegen/defs"
)

// Each archive under testdata holds a defs.toml record set and the
// want.c.h it must generate. Run with UPDATE_GOLDEN=1 to rewrite want.c.h.
func TestGolden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no golden archives in testdata")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			ar, err := txtar.ParseFile(path)
			if err != nil {
				t.Fatalf("parsing archive: %v", err)
			}
			input := archiveFile(ar, "defs.toml")
			if input == nil {
				t.Fatal("archive has no defs.toml")
			}

			d, err := defs.Decode(input.Data, defs.FormatTOML)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if err := defs.Validate(d); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			opts := DefaultOptions()
			opts.Source = "defs.toml"
			res, err := Generate(d, opts)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}

			updateGolden(t, path, ar, res.Code)
			want := archiveFile(ar, "want.c.h")
			if want == nil {
				t.Fatal("archive has no want.c.h; run with UPDATE_GOLDEN=1 to create it")
			}
			if string(want.Data) != res.Code {
				t.Errorf("output differs from golden file %s.\nRun with UPDATE_GOLDEN=1 to update.\ngot:\n%s", path, res.Code)
			}
		})
	}
}

func archiveFile(ar *txtar.Archive, name string) *txtar.File {
	for i := range ar.Files {
		if ar.Files[i].Name == name {
			return &ar.Files[i]
		}
	}
	return nil
}

func updateGolden(t *testing.T, path string, ar *txtar.Archive, code string) {
	t.Helper()
	if os.Getenv("UPDATE_GOLDEN") == "" {
		return
	}
	if f := archiveFile(ar, "want.c.h"); f != nil {
		f.Data = []byte(code)
	} else {
		ar.Files = append(ar.Files, txtar.File{Name: "want.c.h", Data: []byte(code)})
	}
	if err := os.WriteFile(path, txtar.Format(ar), 0o644); err != nil {
		t.Fatalf("updating golden file: %v", err)
	}
}
