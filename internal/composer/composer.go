// Package composer turns a matched rule group's payload into a concrete
// comment: the text to type, the attachment to upload and the keystroke
// timing that makes the typing look human.
package composer

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"feedac/internal/config"
)

// ErrNoCommentConfigured means the matched group carries no comment texts.
var ErrNoCommentConfigured = errors.New("rule group has no comment texts configured")

// Allowed attachment extensions, lowercase with dot.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Composer selects comment content. The random source is injectable so
// tests can pin it.
type Composer struct {
	rng *rand.Rand
}

// New returns a composer seeded from the given source. A nil source uses
// the global one.
func New(rng *rand.Rand) *Composer {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Composer{rng: rng}
}

// SelectComment picks one of the group's comment texts uniformly at random.
func (c *Composer) SelectComment(g config.RuleGroup) (string, error) {
	texts := make([]string, 0, len(g.CommentTexts))
	for _, t := range g.CommentTexts {
		if strings.TrimSpace(t) != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return "", ErrNoCommentConfigured
	}
	return texts[c.rng.Intn(len(texts))], nil
}

// SelectAttachment resolves the group's attachment setting to one image
// path, or ("", nil) when the group has no attachment configured. In folder
// mode one eligible image is picked at random.
func (c *Composer) SelectAttachment(g config.RuleGroup) (string, error) {
	if g.CommentImagePath == "" {
		return "", nil
	}
	switch g.CommentImageType {
	case config.AttachmentFile, "":
		if !isImagePath(g.CommentImagePath) {
			return "", fmt.Errorf("attachment %q is not a supported image type", g.CommentImagePath)
		}
		if _, err := os.Stat(g.CommentImagePath); err != nil {
			return "", fmt.Errorf("attachment not readable: %w", err)
		}
		return g.CommentImagePath, nil
	case config.AttachmentFolder:
		entries, err := os.ReadDir(g.CommentImagePath)
		if err != nil {
			return "", fmt.Errorf("attachment folder not readable: %w", err)
		}
		var images []string
		for _, e := range entries {
			if e.IsDir() || !isImagePath(e.Name()) {
				continue
			}
			images = append(images, filepath.Join(g.CommentImagePath, e.Name()))
		}
		if len(images) == 0 {
			return "", fmt.Errorf("attachment folder %q contains no supported images", g.CommentImagePath)
		}
		return images[c.rng.Intn(len(images))], nil
	default:
		return "", fmt.Errorf("unknown attachment mode %q", g.CommentImageType)
	}
}

func isImagePath(p string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(p))]
}
