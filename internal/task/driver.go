package task

import (
	"context"
	"time"
)

// Driver is the browser surface the engine drives. The production
// implementation lives in internal/browser; tests substitute a scripted
// fake.
type Driver interface {
	// Start launches the browser, opens the feed and waits until the
	// first item is on screen.
	Start(ctx context.Context) error

	// CurrentItemID returns the id of the item currently on screen.
	CurrentItemID(ctx context.Context) (string, error)

	// Advance moves to the next feed item.
	Advance(ctx context.Context) error

	// OpenComments opens the comment panel of the current item.
	OpenComments(ctx context.Context) error

	// CloseComments closes the panel via the keyboard shortcut.
	CloseComments(ctx context.Context) error

	// CloseCommentsByButton closes the panel via its close button. Used
	// after a failed submission, when the shortcut may be captured by
	// the focused input.
	CloseCommentsByButton(ctx context.Context) error

	// FocusCommentInput places the caret in the comment input.
	FocusCommentInput(ctx context.Context) error

	// TypeChar types one character into the focused input.
	TypeChar(ctx context.Context, ch rune) error

	// UploadAttachment attaches an image to the pending comment.
	UploadAttachment(ctx context.Context, path string) error

	// Submit sends the pending comment.
	Submit(ctx context.Context) error

	// Like toggles the like state of the current item.
	Like(ctx context.Context) error

	// CaptureResponse runs trigger and returns the body of the first
	// network response whose URL contains urlPart, or an error when none
	// arrives within the timeout.
	CaptureResponse(ctx context.Context, urlPart string, timeout time.Duration, trigger func() error) ([]byte, error)

	// VerificationShown reports whether an anti-bot challenge appears
	// within the timeout.
	VerificationShown(ctx context.Context, timeout time.Duration) (bool, error)

	// WaitVerificationCleared waits for a shown challenge to be resolved
	// manually. Returns an error when it is still up after the timeout.
	WaitVerificationCleared(ctx context.Context, timeout time.Duration) error

	// CaptureAuthState snapshots cookies and local storage so the next
	// run starts logged in.
	CaptureAuthState(ctx context.Context) error

	// Close tears the browser down. Safe to call more than once.
	Close() error
}
