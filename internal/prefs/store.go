// Package prefs is the durable store for user-chosen settings: theme,
// language, selected city, user profile, and the gamification snapshot.
// Writes land in the in-memory mirror and on disk in the same call, so a
// reader right after a writer always sees the new value. When the durable
// layer is unavailable the store degrades to memory-only for the session.
package prefs

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/observability"
)

const (
	DefaultTheme    = "dark"
	DefaultLanguage = "en"
)

// Preferences is the persisted document. All fields are best-effort JSON;
// corrupt or missing values fall back to defaults rather than erroring.
type Preferences struct {
	Theme          string                       `json:"theme"`
	Language       string                       `json:"language"`
	SelectedCityID *int                         `json:"selected_city_id"`
	UserProfile    *domain.UserProfile          `json:"user_profile,omitempty"`
	Gamification   *domain.GamificationSnapshot `json:"gamification,omitempty"`
}

// Store is the process-wide preference store.
type Store struct {
	mu      sync.Mutex
	path    string
	logger  *slog.Logger
	metrics *observability.Metrics

	prefs Preferences

	// memoryOnly flips on the first failed durable write and stays on for
	// the session; the in-memory mirror keeps working.
	memoryOnly bool
}

// Open loads the preference document at path, falling back to defaults when
// the file is missing or unreadable. Open never fails.
func Open(path string, logger *slog.Logger, metrics *observability.Metrics) *Store {
	s := &Store{
		path:    path,
		logger:  logger,
		metrics: metrics,
		prefs:   Preferences{Theme: DefaultTheme, Language: DefaultLanguage},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("preference file unreadable, using defaults", "path", path, "error", err)
		}
		return s
	}

	var loaded Preferences
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("preference file corrupt, using defaults", "path", path, "error", err)
		return s
	}

	s.prefs = normalize(loaded)
	return s
}

func normalize(p Preferences) Preferences {
	if p.Theme != "dark" && p.Theme != "light" {
		p.Theme = DefaultTheme
	}
	if len(p.Language) != 2 {
		p.Language = DefaultLanguage
	} else {
		p.Language = strings.ToLower(p.Language)
	}
	return p
}

// Theme returns the persisted theme ("dark" or "light").
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Theme
}

// SetTheme persists the theme; values other than "dark"/"light" are ignored.
func (s *Store) SetTheme(theme string) {
	if theme != "dark" && theme != "light" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.Theme = theme
	s.persistLocked()
}

// Language returns the persisted 2-letter language code.
func (s *Store) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Language
}

// SetLanguage persists a 2-letter language code; anything else resets to the default.
func (s *Store) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(lang) != 2 {
		s.prefs.Language = DefaultLanguage
	} else {
		s.prefs.Language = strings.ToLower(lang)
	}
	s.persistLocked()
}

// SelectedCityID returns the persisted selection, or nil when none is set.
// A non-nil id may reference a city not yet loaded this session; callers
// treat that as pending, not invalid.
func (s *Store) SelectedCityID() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyInt(s.prefs.SelectedCityID)
}

// SetSelectedCity records the user's or the resolver's choice. It only
// records; deciding whether to run geo-resolution belongs to the caller.
func (s *Store) SetSelectedCity(id *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.SelectedCityID = copyInt(id)
	s.persistLocked()
}

// UserProfile returns a copy of the cached profile, or nil.
func (s *Store) UserProfile() *domain.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs.UserProfile == nil {
		return nil
	}
	p := *s.prefs.UserProfile
	return &p
}

// SetUserProfile persists the profile mirror. Pass nil to clear it.
func (s *Store) SetUserProfile(p *domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.prefs.UserProfile = nil
	} else {
		cp := *p
		s.prefs.UserProfile = &cp
	}
	s.persistLocked()
}

// Gamification returns a copy of the cached gamification snapshot, or nil.
func (s *Store) Gamification() *domain.GamificationSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs.Gamification == nil {
		return nil
	}
	g := *s.prefs.Gamification
	g.Badges = append([]string(nil), g.Badges...)
	return &g
}

// SetGamification persists the gamification mirror. Pass nil to clear it.
func (s *Store) SetGamification(g *domain.GamificationSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g == nil {
		s.prefs.Gamification = nil
	} else {
		cp := *g
		cp.Badges = append([]string(nil), g.Badges...)
		s.prefs.Gamification = &cp
	}
	s.persistLocked()
}

// Clear resets all preferences to defaults and persists the empty document.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = Preferences{Theme: DefaultTheme, Language: DefaultLanguage}
	s.persistLocked()
}

// MemoryOnly reports whether durable writes have been disabled this session.
func (s *Store) MemoryOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryOnly
}

// persistLocked writes the document atomically: marshal, write a sibling temp
// file, rename over the target. The first failure switches the store to
// memory-only so a broken filesystem is logged once, not on every write.
func (s *Store) persistLocked() {
	if s.memoryOnly {
		return
	}

	data, err := json.MarshalIndent(s.prefs, "", "  ")
	if err != nil {
		s.degradeLocked(err)
		return
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.degradeLocked(err)
		return
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		s.degradeLocked(err)
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.degradeLocked(err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		s.degradeLocked(err)
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		s.degradeLocked(err)
		return
	}
}

func (s *Store) degradeLocked(err error) {
	s.memoryOnly = true
	s.metrics.PrefsMemoryOnly.Set(1)
	s.logger.Warn("preference persistence unavailable, continuing memory-only", "path", s.path, "error", err)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
