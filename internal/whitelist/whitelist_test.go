package whitelist

import (
	"errors"
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

const path = "/home/deck/.config/dadcam/whitelist.conf"

func TestEntriesCreatesFileWithHeader(t *testing.T) {
	fsys := afero.NewMemMapFs()
	entries, err := New(fsys, path).Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %v", entries)
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil || string(data) != header {
		t.Fatalf("unexpected file %q err=%v", data, err)
	}
}

func TestEntriesParsesLines(t *testing.T) {
	fsys := afero.NewMemMapFs()
	content := "# comment\n\nuuid = A1B2-C3D4\nSERIAL=LEXAR_CF_1\nLABEL=nope\nSERIAL=\ngarbage\n"
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := New(fsys, path).Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	want := []Entry{{UUID, "A1B2-C3D4"}, {Serial, "LEXAR_CF_1"}}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestAllowed(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(fsys, path)
	if _, err := store.Add(UUID, "A1B2"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(Serial, "CF_9"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		uuid, serial string
		want         bool
	}{
		{"A1B2", "", true},
		{"", "CF_9", true},
		{"other", "CF_9", true},
		{"a1b2", "", false},
		{"", "", false},
		{"X", "Y", false},
	}
	for _, tt := range tests {
		got, err := store.Allowed(tt.uuid, tt.serial)
		if err != nil || got != tt.want {
			t.Fatalf("Allowed(%q,%q) = %v,%v want %v", tt.uuid, tt.serial, got, err, tt.want)
		}
	}
}

func TestAddDeduplicatesAndValidates(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(fsys, path)

	added, err := store.Add("uuid", "A1B2")
	if err != nil || !added {
		t.Fatalf("first add = %v, %v", added, err)
	}
	added, err = store.Add(UUID, " A1B2 ")
	if err != nil || added {
		t.Fatalf("duplicate add = %v, %v", added, err)
	}
	if _, err := store.Add("LABEL", "x"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if _, err := store.Add(UUID, "  "); err == nil {
		t.Fatal("expected error for empty value")
	}
	data, _ := afero.ReadFile(fsys, path)
	if string(data) != header+"UUID=A1B2\n" {
		t.Fatalf("unexpected file %q", data)
	}
}

func TestAddAfterFileWithoutTrailingNewline(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, path, []byte("SERIAL=A"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := New(fsys, path)
	if _, err := store.Add(UUID, "B"); err != nil {
		t.Fatal(err)
	}
	entries, err := store.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(entries, []Entry{{Serial, "A"}, {UUID, "B"}}) {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestRemove(t *testing.T) {
	fsys := afero.NewMemMapFs()
	content := header + "UUID=A1B2\n# keep me\nSERIAL=CF_9\nUUID=A1B2"
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	store := New(fsys, path)

	removed, err := store.Remove(UUID, "A1B2")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	data, _ := afero.ReadFile(fsys, path)
	if string(data) != header+"# keep me\nSERIAL=CF_9\n" {
		t.Fatalf("unexpected file %q", data)
	}
	removed, err = store.Remove(UUID, "A1B2")
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v", removed, err)
	}
}
