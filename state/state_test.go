package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStateOperations(t *testing.T) {
	f := Open(filepath.Join(t.TempDir(), "nested", "state.yml"))

	t.Run("Load empty state", func(t *testing.T) {
		st, err := f.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(st) != 0 {
			t.Errorf("Load() returned non-empty state: %v", st)
		}
	})

	t.Run("Set and get", func(t *testing.T) {
		if err := f.Set(KeyLocale, "de-DE"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := f.Set("binds", 3); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := f.GetString(KeyLocale)
		if err != nil || got != "de-DE" {
			t.Errorf("GetString(locale) = %q, %v", got, err)
		}
		got, err = f.GetString("binds")
		if err != nil || got != "" {
			t.Errorf("GetString on non-string = %q, %v; want empty", got, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := f.Delete(KeyLocale); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := f.Delete("absent"); err != nil {
			t.Fatalf("Delete(absent) error = %v", err)
		}
		got, _ := f.GetString(KeyLocale)
		if got != "" {
			t.Errorf("expected locale removed, got %q", got)
		}
	})

	t.Run("Corrupt file", func(t *testing.T) {
		if err := os.WriteFile(f.Path(), []byte("locale: [unterminated"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := f.Load(); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestOpenDefaultPath(t *testing.T) {
	t.Setenv("LAUNCHER_HOME", t.TempDir())
	f := Open("")
	if filepath.Base(f.Path()) != "state.yml" {
		t.Errorf("unexpected default path %s", f.Path())
	}
}
