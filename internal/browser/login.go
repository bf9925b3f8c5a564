package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"feedac/internal/feed"
	"feedac/internal/logging"
	"feedac/internal/settings"
)

// Login runs the interactive login flow: open the feed, give the user up to
// three minutes to log in, then snapshot or clear the saved session
// depending on whether they did.
func Login(ctx context.Context, execPath string, store *settings.Store) error {
	s := NewSession(execPath, feed.NewCache(), store)

	l := launcher.New().Headless(false)
	if execPath != "" {
		l = l.Bin(execPath)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: FeedURL})
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	s.mu.Lock()
	s.browser = browser
	s.page = page
	s.mu.Unlock()

	if s.waitShown(ctx, selLoginPanel, loginPanelAppear) {
		logging.Browser("login panel shown, waiting up to %v", loginPanelClear)
		if err := s.waitGone(ctx, selLoginPanel, loginPanelClear); err != nil {
			// Snapshot anyway; saveAuthState clears stale state when
			// the user never logged in.
			logging.Get(logging.CategoryBrowser).Warn("login window elapsed: %v", err)
		}
	}

	// Let the site finish writing its session to storage.
	time.Sleep(time.Second)
	return saveAuthState(ctx, page, store)
}
