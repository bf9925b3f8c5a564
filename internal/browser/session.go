// Package browser drives the feed site with a real Chromium instance
// through the DevTools protocol. It implements the task.Driver surface.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"feedac/internal/feed"
	"feedac/internal/logging"
	"feedac/internal/settings"
)

// Session is one visible browser driving one run. Headless operation is
// deliberately unsupported: the verification challenge needs a human.
type Session struct {
	execPath string
	cache    *feed.Cache
	store    *settings.Store

	mu       sync.Mutex
	browser  *rod.Browser
	page     *rod.Page
	stopFeed context.CancelFunc
	closed   bool
}

// NewSession prepares a session. Nothing launches until Start.
func NewSession(execPath string, cache *feed.Cache, store *settings.Store) *Session {
	return &Session{execPath: execPath, cache: cache, store: store}
}

// Start launches the browser, restores the saved login, opens the feed and
// blocks until the first real item is on screen.
func (s *Session) Start(ctx context.Context) error {
	l := launcher.New().Headless(false)
	if s.execPath != "" {
		l = l.Bin(s.execPath)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return fmt.Errorf("open page: %w", err)
	}

	s.mu.Lock()
	s.browser = browser
	s.page = page
	s.closed = false
	s.mu.Unlock()

	if err := s.restoreAuth(ctx, page); err != nil {
		logging.Get(logging.CategoryBrowser).Warn("auth restore failed, continuing logged out: %v", err)
	}

	s.startFeedStream(page)

	if err := page.Context(ctx).Timeout(navigationTimeout).Navigate(FeedURL); err != nil {
		return fmt.Errorf("open feed: %w", err)
	}

	if err := s.passLoginGate(ctx, page); err != nil {
		return err
	}

	// The placeholder image detaches once real feed content is playing.
	if err := s.waitGone(ctx, selFakeVideo, feedReadyTimeout); err != nil {
		return fmt.Errorf("feed never became ready: %w", err)
	}
	logging.Browser("feed ready")
	return nil
}

// passLoginGate waits out the login panel: a short window for it to appear
// at all, then a long window for the user to log in if it did.
func (s *Session) passLoginGate(ctx context.Context, page *rod.Page) error {
	if !s.waitShown(ctx, selLoginPanel, loginPanelAppear) {
		return nil
	}
	logging.Browser("login panel shown, waiting for login")
	if err := s.waitGone(ctx, selLoginPanel, loginPanelClear); err != nil {
		return fmt.Errorf("login not completed: %w", err)
	}
	return nil
}

// startFeedStream ingests every feed-listing response into the cache for
// as long as the session lives.
func (s *Session) startFeedStream(page *rod.Page) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.stopFeed = cancel
	s.mu.Unlock()

	go func() {
		p := page.Context(ctx)
		pending := map[proto.NetworkRequestID]bool{}
		p.EachEvent(
			func(ev *proto.NetworkResponseReceived) {
				if strings.Contains(ev.Response.URL, feed.EndpointTabFeed) {
					pending[ev.RequestID] = true
				}
			},
			func(ev *proto.NetworkLoadingFinished) {
				if !pending[ev.RequestID] {
					return
				}
				delete(pending, ev.RequestID)
				res, err := proto.NetworkGetResponseBody{RequestID: ev.RequestID}.Call(p)
				if err != nil {
					logging.BrowserDebug("feed body unavailable: %v", err)
					return
				}
				raw, err := decodeBody(res)
				if err != nil {
					logging.BrowserDebug("undecodable feed body: %v", err)
					return
				}
				items, err := feed.ParseListResponse(raw)
				if err != nil {
					logging.BrowserDebug("unparseable feed payload: %v", err)
					return
				}
				s.cache.Ingest(items...)
				logging.BrowserDebug("ingested %d feed item(s), cache size %d", len(items), s.cache.Len())
			},
		)()
	}()
}

// CurrentItemID reads the id attribute off the active video element. An
// absent element or id is not an error; the caller sees an unknown item
// and skips it.
func (s *Session) CurrentItemID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	has, el, err := s.page.Context(ctx).Has(selActiveVideo)
	if err != nil || !has {
		return "", nil
	}
	attr, err := el.Attribute(attrVideoID)
	if err != nil || attr == nil {
		return "", nil
	}
	return *attr, nil
}

// Advance swipes to the next item.
func (s *Session) Advance(ctx context.Context) error {
	return s.page.Context(ctx).Keyboard.Press(input.ArrowDown)
}

// OpenComments toggles the comment panel open with the keyboard shortcut.
func (s *Session) OpenComments(ctx context.Context) error {
	return s.page.Context(ctx).Keyboard.Press(input.Key('x'))
}

// CloseComments toggles the panel closed with the keyboard shortcut.
func (s *Session) CloseComments(ctx context.Context) error {
	return s.page.Context(ctx).Keyboard.Press(input.Key('x'))
}

// CloseCommentsByButton clicks the comment icon. After a failed submission
// focus can sit in the input, where the shortcut would just type an x.
func (s *Session) CloseCommentsByButton(ctx context.Context) error {
	el, err := s.page.Context(ctx).Timeout(commentButtonWait).Element(selCommentButton)
	if err != nil {
		return s.CloseComments(ctx)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return s.CloseComments(ctx)
	}
	return nil
}

// FocusCommentInput clicks into the comment input.
func (s *Session) FocusCommentInput(ctx context.Context) error {
	el, err := s.page.Context(ctx).Timeout(commentInputTimeout).Element(selCommentInput)
	if err != nil {
		return fmt.Errorf("comment input not found: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("focus comment input: %w", err)
	}
	return nil
}

// TypeChar inserts one character at the caret. Insertion (rather than key
// simulation) handles CJK and emoji.
func (s *Session) TypeChar(ctx context.Context, ch rune) error {
	return s.page.Context(ctx).InsertText(string(ch))
}

// UploadAttachment clicks the upload button and feeds the path to the file
// chooser it opens.
func (s *Session) UploadAttachment(ctx context.Context, path string) error {
	p := s.page.Context(ctx).Timeout(fileChooserWait)
	setFiles, err := p.HandleFileDialog()
	if err != nil {
		return fmt.Errorf("intercept file chooser: %w", err)
	}
	btn, err := p.Element(selUploadButton)
	if err != nil {
		return fmt.Errorf("upload button not found: %w", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click upload button: %w", err)
	}
	if err := setFiles([]string{path}); err != nil {
		return fmt.Errorf("set attachment: %w", err)
	}
	// Give the preview time to render before submission.
	time.Sleep(2 * time.Second)
	return nil
}

// Submit sends the comment with Enter.
func (s *Session) Submit(ctx context.Context) error {
	return s.page.Context(ctx).Keyboard.Press(input.Enter)
}

// Like toggles the like state with the keyboard shortcut.
func (s *Session) Like(ctx context.Context) error {
	return s.page.Context(ctx).Keyboard.Press(input.Key('z'))
}

// CaptureResponse subscribes to network traffic, runs trigger and returns
// the body of the first response whose URL contains urlPart.
func (s *Session) CaptureResponse(ctx context.Context, urlPart string, timeout time.Duration, trigger func() error) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(ctx)
	var (
		reqID proto.NetworkRequestID
		body  []byte
		fail  error
	)
	wait := p.EachEvent(
		func(ev *proto.NetworkResponseReceived) {
			if reqID == "" && strings.Contains(ev.Response.URL, urlPart) {
				reqID = ev.RequestID
			}
		},
		func(ev *proto.NetworkLoadingFinished) bool {
			if reqID == "" || ev.RequestID != reqID {
				return false
			}
			res, err := proto.NetworkGetResponseBody{RequestID: ev.RequestID}.Call(p)
			if err != nil {
				fail = fmt.Errorf("read response body: %w", err)
				return true
			}
			body, fail = decodeBody(res)
			return true
		},
	)

	if err := trigger(); err != nil {
		return nil, err
	}
	wait()

	if fail != nil {
		return nil, fail
	}
	if body == nil {
		return nil, fmt.Errorf("no response matching %q within %v", urlPart, timeout)
	}
	return body, nil
}

// VerificationShown reports whether the anti-bot challenge appears within
// the timeout.
func (s *Session) VerificationShown(ctx context.Context, timeout time.Duration) (bool, error) {
	return s.waitShown(ctx, selVerifyPanel, timeout), nil
}

// WaitVerificationCleared waits until the challenge panel is gone.
func (s *Session) WaitVerificationCleared(ctx context.Context, timeout time.Duration) error {
	return s.waitGone(ctx, selVerifyPanel, timeout)
}

// CaptureAuthState snapshots the login session to the settings store, or
// clears the saved one when the user is logged out.
func (s *Session) CaptureAuthState(ctx context.Context) error {
	s.mu.Lock()
	page, closed := s.page, s.closed
	s.mu.Unlock()
	if page == nil || closed {
		return nil
	}
	return saveAuthState(ctx, page, s.store)
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stopFeed != nil {
		s.stopFeed()
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			return fmt.Errorf("close browser: %w", err)
		}
	}
	return nil
}

// decodeBody unwraps a captured response body; the protocol base64-encodes
// binary payloads.
func decodeBody(res *proto.NetworkGetResponseBodyResult) ([]byte, error) {
	if res.Base64Encoded {
		return base64.StdEncoding.DecodeString(res.Body)
	}
	return []byte(res.Body), nil
}

// waitShown polls for the selector to exist and be visible. Returns false
// on timeout.
func (s *Session) waitShown(ctx context.Context, sel string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		has, el, err := s.page.Context(ctx).Has(sel)
		if err == nil && has {
			if visible, err := el.Visible(); err == nil && visible {
				return true
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

// waitGone polls until the selector is absent or hidden.
func (s *Session) waitGone(ctx context.Context, sel string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		has, el, err := s.page.Context(ctx).Has(sel)
		if err != nil || !has {
			return nil
		}
		if visible, err := el.Visible(); err == nil && !visible {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("%q still present after %v", sel, timeout)
}
