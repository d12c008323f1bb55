// Package whitelist manages the allow-list of storage devices dadcam will
// ingest from. Entries are UUID=... or SERIAL=... lines; blank lines and #
// comments are ignored.
package whitelist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const header = "# dadcam drive whitelist\n"

// Kind identifies what an entry matches.
type Kind string

const (
	UUID   Kind = "UUID"
	Serial Kind = "SERIAL"
)

// ErrInvalidKind is returned for entry kinds other than UUID and SERIAL.
var ErrInvalidKind = errors.New("entry kind must be UUID or SERIAL")

// ParseKind accepts a kind name in any case.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(value))) {
	case UUID:
		return UUID, nil
	case Serial:
		return Serial, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, value)
}

// Entry is one allow-list line.
type Entry struct {
	Kind  Kind
	Value string
}

func (e Entry) String() string {
	return string(e.Kind) + "=" + e.Value
}

// Store reads and edits the whitelist file.
type Store struct {
	fs   afero.Fs
	path string
}

// New returns a store for path. A nil fsys uses the OS filesystem.
func New(fsys afero.Fs, path string) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Store{fs: fsys, path: path}
}

// Path returns the whitelist file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensure() error {
	if _, err := s.fs.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create whitelist dir: %w", err)
	}
	return afero.WriteFile(s.fs, s.path, []byte(header), 0o644)
}

// Entries returns the valid entries in file order, creating the file if needed.
func (s *Store) Entries() ([]Entry, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("read whitelist: %w", err)
	}
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if entry, ok := parseLine(scanner.Text()); ok {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

func parseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false
	}
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return Entry{}, false
	}
	kind, err := ParseKind(key)
	value = strings.TrimSpace(value)
	if err != nil || value == "" {
		return Entry{}, false
	}
	return Entry{Kind: kind, Value: value}, true
}

// Allowed reports whether either identifier matches an entry. Empty
// identifiers never match.
func (s *Store) Allowed(uuid, serial string) (bool, error) {
	entries, err := s.Entries()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Kind == UUID && uuid != "" && e.Value == uuid {
			return true, nil
		}
		if e.Kind == Serial && serial != "" && e.Value == serial {
			return true, nil
		}
	}
	return false, nil
}

// Add appends an entry unless it is already present. It reports whether the
// file changed.
func (s *Store) Add(kind Kind, value string) (bool, error) {
	entry, err := newEntry(kind, value)
	if err != nil {
		return false, err
	}
	entries, err := s.Entries()
	if err != nil {
		return false, err
	}
	for _, existing := range entries {
		if existing == entry {
			return false, nil
		}
	}
	line := entry.String() + "\n"
	if info, err := s.fs.Stat(s.path); err == nil && info.Size() > 0 {
		data, err := afero.ReadFile(s.fs, s.path)
		if err == nil && !bytes.HasSuffix(data, []byte("\n")) {
			line = "\n" + line
		}
	}
	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open whitelist: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return false, fmt.Errorf("write whitelist: %w", err)
	}
	return true, f.Close()
}

// Remove deletes every line matching the entry and reports whether one was
// found.
func (s *Store) Remove(kind Kind, value string) (bool, error) {
	entry, err := newEntry(kind, value)
	if err != nil {
		return false, err
	}
	if err := s.ensure(); err != nil {
		return false, err
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return false, fmt.Errorf("read whitelist: %w", err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	kept := lines[:0]
	removed := false
	for _, line := range lines {
		if parsed, ok := parseLine(line); ok && parsed == entry {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return false, nil
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(strings.Join(kept, "")), 0o644); err != nil {
		return false, fmt.Errorf("write whitelist: %w", err)
	}
	return true, nil
}

func newEntry(kind Kind, value string) (Entry, error) {
	parsed, err := ParseKind(string(kind))
	if err != nil {
		return Entry{}, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Entry{}, errors.New("entry value is empty")
	}
	return Entry{Kind: parsed, Value: value}, nil
}
