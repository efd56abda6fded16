package prefs_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/aqify/aqify-edge/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *prefs.Store {
	t.Helper()
	return prefs.Open(path, slog.Default(), observability.NewMetricsForTesting())
}

func TestOpen_MissingFileUsesDefaults(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "prefs.json"))

	assert.Equal(t, prefs.DefaultTheme, s.Theme())
	assert.Equal(t, prefs.DefaultLanguage, s.Language())
	assert.Nil(t, s.SelectedCityID())
	assert.Nil(t, s.UserProfile())
	assert.False(t, s.MemoryOnly())
}

func TestOpen_CorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := openTestStore(t, path)

	assert.Equal(t, prefs.DefaultTheme, s.Theme())
	assert.Nil(t, s.SelectedCityID())
}

func TestSetSelectedCity_ReadAfterWrite(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "prefs.json"))

	id := 3
	s.SetSelectedCity(&id)

	got := s.SelectedCityID()
	require.NotNil(t, got)
	assert.Equal(t, 3, *got)

	s.SetSelectedCity(nil)
	assert.Nil(t, s.SelectedCityID())
}

func TestSelection_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	s := openTestStore(t, path)
	id := 42
	s.SetSelectedCity(&id)
	s.SetTheme("light")
	s.SetLanguage("hi")

	reopened := openTestStore(t, path)
	got := reopened.SelectedCityID()
	require.NotNil(t, got)
	assert.Equal(t, 42, *got)
	assert.Equal(t, "light", reopened.Theme())
	assert.Equal(t, "hi", reopened.Language())
}

func TestSetTheme_RejectsUnknownValues(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "prefs.json"))

	s.SetTheme("solarized")
	assert.Equal(t, prefs.DefaultTheme, s.Theme())
}

func TestSetLanguage_NormalizesToTwoLetterCode(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "prefs.json"))

	s.SetLanguage("HI")
	assert.Equal(t, "hi", s.Language())

	s.SetLanguage("english")
	assert.Equal(t, prefs.DefaultLanguage, s.Language())
}

func TestUserProfile_ReturnsCopy(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "prefs.json"))

	cityID := 1
	s.SetUserProfile(&domain.UserProfile{ID: "u-1", Email: "u@example.com", PreferredCityID: &cityID})

	p := s.UserProfile()
	require.NotNil(t, p)
	p.Email = "mutated@example.com"

	again := s.UserProfile()
	require.NotNil(t, again)
	assert.Equal(t, "u@example.com", again.Email)
}

func TestWriteFailure_FallsBackToMemory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not bind root")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	s := openTestStore(t, filepath.Join(dir, "prefs.json"))

	id := 7
	s.SetSelectedCity(&id)

	// The write failed, but the in-memory mirror still serves the value.
	assert.True(t, s.MemoryOnly())
	got := s.SelectedCityID()
	require.NotNil(t, got)
	assert.Equal(t, 7, *got)
}

func TestClear_ResetsToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := openTestStore(t, path)

	id := 5
	s.SetSelectedCity(&id)
	s.SetUserProfile(&domain.UserProfile{ID: "u-1"})
	s.Clear()

	assert.Nil(t, s.SelectedCityID())
	assert.Nil(t, s.UserProfile())
	assert.Equal(t, prefs.DefaultTheme, s.Theme())

	reopened := openTestStore(t, path)
	assert.Nil(t, reopened.SelectedCityID())
}
