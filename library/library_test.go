package library

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

func TestSaveAndGet(t *testing.T) {
	lib := openTestLibrary(t)

	if err := lib.Save("hello", "+++."); err != nil {
		t.Fatalf("Save: %v", err)
	}

	program, err := lib.Get("hello")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if program.Source != "+++." {
		t.Errorf("source = %q, want %q", program.Source, "+++.")
	}
	if program.CreatedAt.IsZero() || program.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestSaveReplacesSource(t *testing.T) {
	lib := openTestLibrary(t)

	if err := lib.Save("p", "+"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := lib.Save("p", "++"); err != nil {
		t.Fatalf("Save (replace): %v", err)
	}

	program, err := lib.Get("p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if program.Source != "++" {
		t.Errorf("source = %q, want %q", program.Source, "++")
	}

	programs, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(programs) != 1 {
		t.Errorf("programs = %d, want 1 (save must replace, not duplicate)", len(programs))
	}
}

func TestGetMissing(t *testing.T) {
	lib := openTestLibrary(t)

	if _, err := lib.Get("nope"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("error = %v, want ErrProgramNotFound", err)
	}
}

func TestListOrdered(t *testing.T) {
	lib := openTestLibrary(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := lib.Save(name, "+"); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}

	programs, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(programs) != len(want) {
		t.Fatalf("programs = %d, want %d", len(programs), len(want))
	}
	for i, name := range want {
		if programs[i].Name != name {
			t.Errorf("programs[%d] = %q, want %q", i, programs[i].Name, name)
		}
	}
}

func TestDelete(t *testing.T) {
	lib := openTestLibrary(t)

	if err := lib.Save("gone", "+"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := lib.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := lib.Get("gone"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("Get after delete = %v, want ErrProgramNotFound", err)
	}

	if err := lib.Delete("gone"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("Delete missing = %v, want ErrProgramNotFound", err)
	}
}

func TestRunHistory(t *testing.T) {
	lib := openTestLibrary(t)

	if err := lib.RecordRun("hello", "Hello World!\n", 12*time.Millisecond); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := lib.RecordRun("hello", "Hello World!\n", 9*time.Millisecond); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := lib.RecordRun("other", "x", time.Millisecond); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := lib.Runs("hello")
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	for _, r := range runs {
		if r.Program != "hello" || r.Output != "Hello World!\n" {
			t.Errorf("unexpected run record %+v", r)
		}
	}
	if runs[0].Duration != 12*time.Millisecond && runs[1].Duration != 12*time.Millisecond {
		t.Error("durations not preserved")
	}
}
