// Package task runs the engagement loop: acquire the item on screen, decide
// whether to engage, compose and submit the comment, record the outcome and
// move on. One Runner drives one run from launch to teardown.
package task

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"feedac/internal/composer"
	"feedac/internal/config"
	"feedac/internal/feed"
	"feedac/internal/history"
	"feedac/internal/logging"
	"feedac/internal/rules"
)

var (
	// ErrStopped is returned when the run ended because Stop was called.
	ErrStopped = errors.New("task stopped by request")

	// ErrVerificationTimeout is returned when an anti-bot challenge was
	// not resolved in time. The run cannot safely continue past it.
	ErrVerificationTimeout = errors.New("verification challenge not resolved in time")
)

// Status is the lifecycle state of a runner.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLaunching Status = "launching"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// Timing of the loop. Watch time comes from the configuration; everything
// else is fixed.
const (
	commentListTimeout = 10 * time.Second
	publishTimeout     = 5 * time.Second

	verifyAppearTimeout = 3 * time.Second
	verifyClearTimeout  = 60 * time.Second

	browseMin = 2 * time.Second
	browseMax = 4 * time.Second

	advanceMin = 500 * time.Millisecond
	advanceMax = 3 * time.Second

	preSubmitMin = time.Second
	preSubmitMax = 3 * time.Second

	likeChance = 0.1
)

// Recorder is the slice of the history store the runner needs.
type Recorder interface {
	CreateRun() (history.Run, error)
	AppendRecord(runID string, r history.Record) error
	EndRun(runID, status string, commentCount int, errMsg string) error
}

// Options configures a Runner.
type Options struct {
	Driver   Driver
	Cache    *feed.Cache
	Settings config.Settings
	Judge    rules.Judge // nil disables AI groups
	Recorder Recorder

	// Sleep, Now and Rand are injectable for tests. Nil selects the real
	// clock and a seeded source.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
	Rand  *rand.Rand
}

// Runner executes one run.
type Runner struct {
	driver   Driver
	cache    *feed.Cache
	settings config.Settings
	judge    rules.Judge
	recorder Recorder
	composer *composer.Composer

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	rng   *rand.Rand

	events chan Event

	mu           sync.Mutex
	status       Status
	commentCount int
	cancel       context.CancelFunc
}

// New builds a Runner. The settings are captured here; later edits to the
// stored configuration do not affect a run in flight.
func New(opts Options) (*Runner, error) {
	if opts.Driver == nil {
		return nil, errors.New("task: driver required")
	}
	if opts.Cache == nil {
		return nil, errors.New("task: cache required")
	}
	if opts.Recorder == nil {
		return nil, errors.New("task: recorder required")
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("task: invalid configuration: %w", err)
	}

	r := &Runner{
		driver:   opts.Driver,
		cache:    opts.Cache,
		settings: opts.Settings,
		judge:    opts.Judge,
		recorder: opts.Recorder,
		sleep:    opts.Sleep,
		now:      opts.Now,
		rng:      opts.Rand,
		events:   make(chan Event, 64),
		status:   StatusIdle,
	}
	if r.sleep == nil {
		r.sleep = sleepCtx
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	r.composer = composer.New(r.rng)
	return r, nil
}

// Events is the progress stream. Events are dropped, never blocked on.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Status returns the current lifecycle state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CommentCount returns the number of comments submitted so far.
func (r *Runner) CommentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commentCount
}

// Stop requests a graceful stop. The run finishes the current step and
// ends with StatusStopped.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Runner) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Run drives the whole lifecycle and blocks until the run ends. The
// returned error is nil on completion, ErrStopped after Stop, and the
// underlying failure otherwise.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	run, err := r.recorder.CreateRun()
	if err != nil {
		r.setStatus(StatusError)
		return fmt.Errorf("create run: %w", err)
	}
	logging.Task("run %s starting, target %d comments", run.ID, r.settings.MaxCount)

	r.setStatus(StatusLaunching)
	r.emit(LevelInfo, "launching browser")
	if err := r.driver.Start(ctx); err != nil {
		err = r.normalize(err)
		r.finish(run.ID, err)
		return err
	}

	r.setStatus(StatusRunning)
	r.emit(LevelInfo, "feed ready")

	err = r.loop(ctx, run.ID)
	r.finish(run.ID, err)
	return err
}

// normalize maps context cancellation onto ErrStopped so a user stop never
// surfaces as a raw context error.
func (r *Runner) normalize(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrStopped
	}
	return err
}

// finish records the terminal state, snapshots auth and closes the browser.
func (r *Runner) finish(runID string, runErr error) {
	status, hStatus, msg := StatusCompleted, history.StatusCompleted, ""
	switch {
	case runErr == nil:
	case errors.Is(runErr, ErrStopped):
		status, hStatus = StatusStopped, history.StatusStopped
	default:
		status, hStatus = StatusError, history.StatusError
		msg = runErr.Error()
	}

	// Auth capture and close are best effort on every exit path. The
	// run context may already be cancelled, so give them their own.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.driver.CaptureAuthState(ctx); err != nil {
		logging.Get(logging.CategoryTask).Warn("auth snapshot failed: %v", err)
	}
	if err := r.driver.Close(); err != nil {
		logging.Get(logging.CategoryTask).Warn("browser close failed: %v", err)
	}

	r.mu.Lock()
	count := r.commentCount
	r.mu.Unlock()
	if err := r.recorder.EndRun(runID, hStatus, count, msg); err != nil {
		logging.Get(logging.CategoryTask).Error("failed to finalize run %s: %v", runID, err)
	}

	r.setStatus(status)
	switch status {
	case StatusCompleted:
		r.emit(LevelSuccess, "run completed: %d comment(s) submitted", count)
	case StatusStopped:
		r.emit(LevelInfo, "run stopped: %d comment(s) submitted", count)
	default:
		r.emit(LevelError, "run failed after %d comment(s): %s", count, msg)
	}
	logging.Task("run %s ended: %s, %d comment(s)", runID, status, count)

	// A Runner is single-use; closing the stream lets consumers ranging
	// over Events terminate.
	close(r.events)
}

func (r *Runner) loop(ctx context.Context, runID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return ErrStopped
		}
		if r.targetReached() {
			return nil
		}

		if _, err := r.processCurrent(ctx, runID); err != nil {
			return r.normalize(err)
		}
		// The final engagement ends the run on the item it happened on.
		if r.targetReached() {
			return nil
		}

		if err := r.driver.Advance(ctx); err != nil {
			return r.normalize(fmt.Errorf("advance feed: %w", err))
		}
		if err := r.sleep(ctx, r.between(advanceMin, advanceMax)); err != nil {
			return ErrStopped
		}
	}
}

func (r *Runner) targetReached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commentCount >= r.settings.MaxCount
}

// processCurrent handles the item on screen. A false return means the item
// was skipped; only infrastructure-level failures return an error.
func (r *Runner) processCurrent(ctx context.Context, runID string) (bool, error) {
	id, err := r.driver.CurrentItemID(ctx)
	if err != nil {
		return false, fmt.Errorf("read current item: %w", err)
	}

	if id == "" {
		r.skip(runID, feed.Item{AwemeID: "unknown"}, "", "no active video on screen")
		return false, nil
	}

	item, ok := r.cache.Take(id)
	if !ok {
		// Ads and live rooms never pass through the feed endpoint.
		r.skip(runID, feed.Item{AwemeID: id}, "", "no captured metadata")
		return false, nil
	}

	if item.AwemeType != feed.AwemeTypeVideo {
		r.skip(runID, item, "", fmt.Sprintf("unsupported content type %d", item.AwemeType))
		return false, nil
	}
	if kw, hit := rules.Blocked(item.Desc, r.settings.BlockKeywords); hit {
		r.skip(runID, item, "", fmt.Sprintf("blocked keyword %q", kw))
		return false, nil
	}
	if kw, hit := rules.Blocked(item.Author.Nickname, r.settings.AuthorBlockKeywords); hit {
		r.skip(runID, item, "", fmt.Sprintf("blocked author keyword %q", kw))
		return false, nil
	}

	group := rules.Match(ctx, r.settings.RuleGroups, item, r.judge)
	if group == nil {
		r.skip(runID, item, "", "no rule matched")
		return false, nil
	}
	r.emit(LevelInfo, "item %s matched group %q", item.AwemeID, group.Name)

	if r.settings.SimulateWatch {
		watch := r.between(
			time.Duration(r.settings.WatchTimeRange[0])*time.Second,
			time.Duration(r.settings.WatchTimeRange[1])*time.Second,
		)
		r.emit(LevelDebug, "watching item %s for %v", item.AwemeID, watch.Round(time.Second))
		if err := r.sleep(ctx, watch); err != nil {
			return false, ErrStopped
		}
	}
	if r.settings.RandomLike && r.rng.Float64() < likeChance {
		if err := r.driver.Like(ctx); err != nil {
			logging.Get(logging.CategoryTask).Warn("like failed on item %s: %v", item.AwemeID, err)
		}
	}

	return r.engage(ctx, runID, item, *group)
}

// engage runs the comment flow for a matched item.
func (r *Runner) engage(ctx context.Context, runID string, item feed.Item, group config.RuleGroup) (bool, error) {
	text, err := r.composer.SelectComment(group)
	if err != nil {
		return false, fmt.Errorf("group %q: %w", group.Name, err)
	}
	attachment, err := r.composer.SelectAttachment(group)
	if err != nil {
		r.skip(runID, item, group.Name, fmt.Sprintf("attachment unavailable: %v", err))
		return false, nil
	}

	listBody, err := r.driver.CaptureResponse(ctx, feed.EndpointCommentList, commentListTimeout, func() error {
		return r.driver.OpenComments(ctx)
	})
	if err != nil {
		if cerr := r.driver.CloseComments(ctx); cerr != nil {
			logging.Get(logging.CategoryTask).Warn("close comments failed: %v", cerr)
		}
		r.skip(runID, item, group.Name, fmt.Sprintf("comment list not captured: %v", err))
		return false, nil
	}

	// Linger over the existing comments before deciding anything; a human
	// reads the panel whether or not they end up typing.
	if err := r.sleep(ctx, r.between(browseMin, browseMax)); err != nil {
		return false, ErrStopped
	}

	if r.settings.OnlyActive {
		entries, perr := feed.ParseCommentList(listBody)
		if perr != nil {
			entries = nil
		}
		act := rules.CheckActivity(r.now(), entries)
		if !act.IsActive {
			if cerr := r.driver.CloseComments(ctx); cerr != nil {
				logging.Get(logging.CategoryTask).Warn("close comments failed: %v", cerr)
			}
			r.skip(runID, item, group.Name, "author inactive: "+act.Reason)
			return false, nil
		}
	}

	if err := r.driver.FocusCommentInput(ctx); err != nil {
		return false, fmt.Errorf("focus comment input: %w", err)
	}
	runes := []rune(text)
	for i, ch := range runes {
		if err := r.driver.TypeChar(ctx, ch); err != nil {
			return false, fmt.Errorf("type comment: %w", err)
		}
		if err := r.sleep(ctx, r.composer.KeyDelay(i == len(runes)-1)); err != nil {
			return false, ErrStopped
		}
	}
	// Settle after the last keystroke before attaching or submitting.
	if err := r.sleep(ctx, r.between(preSubmitMin, preSubmitMax)); err != nil {
		return false, ErrStopped
	}
	if attachment != "" {
		if err := r.driver.UploadAttachment(ctx, attachment); err != nil {
			// Never submit a half-built comment.
			if cerr := r.driver.CloseCommentsByButton(ctx); cerr != nil {
				logging.Get(logging.CategoryTask).Warn("close comments failed: %v", cerr)
			}
			r.skip(runID, item, group.Name, fmt.Sprintf("attachment upload failed: %v", err))
			return false, nil
		}
	}

	pubBody, err := r.driver.CaptureResponse(ctx, feed.EndpointCommentPublish, publishTimeout, func() error {
		return r.driver.Submit(ctx)
	})
	if err == nil {
		resp, perr := feed.ParsePublishResponse(pubBody)
		if perr == nil && resp.StatusCode == 0 {
			return true, r.commented(ctx, runID, item, group, text)
		}
		if perr != nil {
			err = fmt.Errorf("unreadable publish response: %w", perr)
		} else {
			err = fmt.Errorf("publish rejected with status %d", resp.StatusCode)
		}
	}

	return false, r.publishFailed(ctx, runID, item, group, err)
}

func (r *Runner) commented(ctx context.Context, runID string, item feed.Item, group config.RuleGroup, text string) error {
	r.mu.Lock()
	r.commentCount++
	count := r.commentCount
	r.mu.Unlock()

	r.record(runID, history.Record{
		AwemeID:      item.AwemeID,
		AuthorName:   item.Author.Nickname,
		Description:  item.Desc,
		MatchedGroup: group.Name,
		Action:       history.ActionCommented,
		CommentText:  text,
	})
	r.emit(LevelSuccess, "commented on item %s (%d/%d)", item.AwemeID, count, r.settings.MaxCount)

	if err := r.driver.CloseComments(ctx); err != nil {
		logging.Get(logging.CategoryTask).Warn("close comments failed: %v", err)
	}
	return nil
}

// publishFailed closes the panel and gates on the anti-bot challenge. An
// unresolved challenge is fatal for the whole run; anything else just skips
// the item. A cleared challenge does not retry the comment.
func (r *Runner) publishFailed(ctx context.Context, runID string, item feed.Item, group config.RuleGroup, cause error) error {
	r.emit(LevelWarn, "publish failed on item %s: %v", item.AwemeID, cause)
	if err := r.driver.CloseCommentsByButton(ctx); err != nil {
		logging.Get(logging.CategoryTask).Warn("close comments failed: %v", err)
	}

	shown, err := r.driver.VerificationShown(ctx, verifyAppearTimeout)
	if err != nil {
		return fmt.Errorf("verification probe: %w", err)
	}
	if shown {
		r.emit(LevelWarn, "verification challenge shown, waiting for manual resolution")
		if err := r.driver.WaitVerificationCleared(ctx, verifyClearTimeout); err != nil {
			return ErrVerificationTimeout
		}
		r.emit(LevelInfo, "verification challenge cleared")
	}

	r.skip(runID, item, group.Name, fmt.Sprintf("publish failed: %v", cause))
	return nil
}

func (r *Runner) skip(runID string, item feed.Item, groupName, reason string) {
	r.emit(LevelDebug, "skipping item %s: %s", item.AwemeID, reason)
	r.record(runID, history.Record{
		AwemeID:      item.AwemeID,
		AuthorName:   item.Author.Nickname,
		Description:  item.Desc,
		MatchedGroup: groupName,
		Action:       history.ActionSkipped,
		Detail:       reason,
	})
}

func (r *Runner) record(runID string, rec history.Record) {
	rec.At = r.now()
	if err := r.recorder.AppendRecord(runID, rec); err != nil {
		logging.Get(logging.CategoryTask).Error("failed to record item %s: %v", rec.AwemeID, err)
	}
}

// between returns a uniform duration in [min, max].
func (r *Runner) between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.rng.Int63n(int64(max-min)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
