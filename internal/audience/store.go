package audience

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidStructure marks a configuration document rejected before
// it touches storage.
var ErrInvalidStructure = errors.New("invalid configuration structure")

// ErrUnknownPerson marks a mutation against a person that is not in
// the document.
var ErrUnknownPerson = errors.New("unknown person")

// Store persists the routing configuration as a single human-editable
// YAML document. There is no in-process cache: every operation reads
// the file fresh, so external edits take effect immediately and
// routing tolerates slightly stale reads.
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore creates a store backed by the YAML file at path.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Load reads the current document. It fails soft: any read or parse
// error yields the minimal default configuration so routing keeps
// functioning in degraded form rather than hard-failing requests.
func (s *Store) Load() *Configuration {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("config read failed, using defaults")
		}
		return Default()
	}

	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("config parse failed, using defaults")
		return Default()
	}
	if cfg.SeverityLevels == nil {
		cfg.SeverityLevels = append([]string(nil), Default().SeverityLevels...)
	}
	if cfg.Audiences == nil {
		cfg.Audiences = map[string]PersonProfile{}
	}
	return &cfg
}

// Save validates and persists the full document, replacing whatever
// was stored before (last writer wins). The write is atomic: the new
// document is written to a temp file and renamed over the old one, so
// a crash never leaves a truncated config behind.
func (s *Store) Save(cfg *Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// ── Person-level mutations ──────────────────────────────────────────────
//
// Each mutation is load → modify → save; the document is persisted on
// every call, with no batching.

// AddPerson creates an empty profile for person. Adding an existing
// person is a no-op that leaves their profile intact.
func (s *Store) AddPerson(person string) error {
	cfg := s.Load()
	if _, ok := cfg.Audiences[person]; ok {
		return nil
	}
	cfg.Audiences[person] = PersonProfile{
		Preferences: map[string]Preference{},
		Devices:     map[string][]string{},
	}
	return s.Save(cfg)
}

// SetPreferences replaces a person's per-severity preferences.
func (s *Store) SetPreferences(person string, prefs map[string]Preference) error {
	cfg := s.Load()
	profile, ok := cfg.Audiences[person]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPerson, person)
	}
	profile.Preferences = prefs
	cfg.Audiences[person] = profile
	return s.Save(cfg)
}

// SetDevices replaces a person's device lists.
func (s *Store) SetDevices(person string, devices map[string][]string) error {
	cfg := s.Load()
	profile, ok := cfg.Audiences[person]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPerson, person)
	}
	profile.Devices = devices
	cfg.Audiences[person] = profile
	return s.Save(cfg)
}

// RemovePerson deletes a person's profile.
func (s *Store) RemovePerson(person string) error {
	cfg := s.Load()
	if _, ok := cfg.Audiences[person]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPerson, person)
	}
	delete(cfg.Audiences, person)
	return s.Save(cfg)
}

// MergePeople adds empty profiles for any listed people not already in
// the document. Existing profiles are never touched. Returns the names
// actually added.
func (s *Store) MergePeople(people []string) ([]string, error) {
	cfg := s.Load()
	var added []string
	for _, person := range people {
		if _, ok := cfg.Audiences[person]; ok {
			continue
		}
		cfg.Audiences[person] = PersonProfile{
			Preferences: map[string]Preference{},
			Devices:     map[string][]string{},
		}
		added = append(added, person)
	}
	if len(added) == 0 {
		return nil, nil
	}
	return added, s.Save(cfg)
}
