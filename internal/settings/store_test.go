package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedac/internal/config"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestGetSetDeleteRoundTrip(t *testing.T) {
	s := newStore(t)

	var out string
	ok, err := s.Get("missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(KeyBrowserExecPath, "/usr/bin/chromium"))
	ok, err = s.Get(KeyBrowserExecPath, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/usr/bin/chromium", out)

	require.NoError(t, s.Delete(KeyBrowserExecPath))
	ok, err = s.Get(KeyBrowserExecPath, &out)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again is a no-op.
	require.NoError(t, s.Delete(KeyBrowserExecPath))
}

func TestFeedSettingsDefaultsWhenAbsent(t *testing.T) {
	s := newStore(t)
	cfg, err := s.FeedSettings()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestFeedSettingsMigratesLegacyOnce(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"feedAcSetting":{"rules":[{"field":"videoDesc","keyword":"travel"}],"ruleRelation":"or","commentTexts":["nice"]}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(legacy), 0644))

	s, err := Open(dir)
	require.NoError(t, err)

	cfg, err := s.FeedSettings()
	require.NoError(t, err)
	assert.Equal(t, config.VersionV2, cfg.Version)
	require.Len(t, cfg.RuleGroups, 1)
	assert.Equal(t, []string{"nice"}, cfg.RuleGroups[0].CommentTexts)

	// Second load reads the persisted v2 form unchanged.
	again, err := s.FeedSettings()
	require.NoError(t, err)
	assert.Equal(t, cfg, again)

	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "v2"`)
}

func TestSaveFeedSettingsRejectsInvalid(t *testing.T) {
	s := newStore(t)
	bad := config.Default()
	bad.MaxCount = 0
	assert.Error(t, s.SaveFeedSettings(bad))
}

func TestAIConfig(t *testing.T) {
	s := newStore(t)

	_, ok, err := s.AIConfig()
	require.NoError(t, err)
	assert.False(t, ok)

	want := AISettings{Platform: "deepseek", APIKey: "sk-test", Model: "deepseek-chat"}
	require.NoError(t, s.Set(KeyAISettings, want))

	got, ok, err := s.AIConfig()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
