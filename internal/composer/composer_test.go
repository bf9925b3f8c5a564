package composer

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedac/internal/config"
)

func seeded(t *testing.T) *Composer {
	t.Helper()
	return New(rand.New(rand.NewSource(42)))
}

func TestSelectCommentUniform(t *testing.T) {
	c := seeded(t)
	g := config.RuleGroup{CommentTexts: []string{"a", "b", "c"}}

	counts := map[string]int{}
	for i := 0; i < 3000; i++ {
		text, err := c.SelectComment(g)
		require.NoError(t, err)
		counts[text]++
	}
	require.Len(t, counts, 3)
	for text, n := range counts {
		assert.Greater(t, n, 800, "text %q drawn too rarely", text)
	}
}

func TestSelectCommentEmpty(t *testing.T) {
	c := seeded(t)

	_, err := c.SelectComment(config.RuleGroup{})
	assert.ErrorIs(t, err, ErrNoCommentConfigured)

	_, err = c.SelectComment(config.RuleGroup{CommentTexts: []string{"", "  "}})
	assert.ErrorIs(t, err, ErrNoCommentConfigured, "blank texts do not count")
}

func TestSelectAttachmentFile(t *testing.T) {
	c := seeded(t)
	dir := t.TempDir()
	img := filepath.Join(dir, "pic.jpg")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0644))

	got, err := c.SelectAttachment(config.RuleGroup{
		CommentImagePath: img,
		CommentImageType: config.AttachmentFile,
	})
	require.NoError(t, err)
	assert.Equal(t, img, got)

	_, err = c.SelectAttachment(config.RuleGroup{
		CommentImagePath: filepath.Join(dir, "missing.jpg"),
		CommentImageType: config.AttachmentFile,
	})
	assert.Error(t, err)

	_, err = c.SelectAttachment(config.RuleGroup{
		CommentImagePath: filepath.Join(dir, "notes.txt"),
		CommentImageType: config.AttachmentFile,
	})
	assert.Error(t, err, "unsupported extension is rejected")
}

func TestSelectAttachmentFolder(t *testing.T) {
	c := seeded(t)
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.webp", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		got, err := c.SelectAttachment(config.RuleGroup{
			CommentImagePath: dir,
			CommentImageType: config.AttachmentFolder,
		})
		require.NoError(t, err)
		seen[filepath.Base(got)] = true
	}
	assert.Equal(t, map[string]bool{"a.png": true, "b.webp": true}, seen)
}

func TestSelectAttachmentFolderEmpty(t *testing.T) {
	c := seeded(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0644))

	_, err := c.SelectAttachment(config.RuleGroup{
		CommentImagePath: dir,
		CommentImageType: config.AttachmentFolder,
	})
	assert.Error(t, err)
}

func TestSelectAttachmentNone(t *testing.T) {
	c := seeded(t)
	got, err := c.SelectAttachment(config.RuleGroup{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeyDelayBounds(t *testing.T) {
	c := seeded(t)

	sawHesitation := false
	for i := 0; i < 2000; i++ {
		d := c.KeyDelay(false)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 1100*time.Millisecond)
		if d >= 400*time.Millisecond {
			sawHesitation = true
		}
	}
	assert.True(t, sawHesitation, "hesitation should occur over 2000 draws")

	for i := 0; i < 2000; i++ {
		d := c.KeyDelay(true)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 300*time.Millisecond, "no hesitation after the final character")
	}
}
