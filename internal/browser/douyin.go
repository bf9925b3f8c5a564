package browser

import "time"

// Feed entry point. The recommend flag lands directly on the full-screen
// swipe feed.
const (
	SiteOrigin = "https://www.douyin.com"
	FeedURL    = "https://www.douyin.com/?recommend=1"
)

// Page selectors. These track the site's markup and are the first thing to
// check when the flow breaks after a frontend release.
const (
	selActiveVideo   = `[data-e2e="feed-active-video"]`
	attrVideoID      = "data-e2e-vid"
	selCommentButton = `[data-e2e="feed-active-video"] [data-e2e="feed-comment-icon"]`
	selCommentInput  = ".comment-input-inner-container"
	selUploadButton  = ".commentInput-right-ct > div > span:nth-child(2)"
	selVerifyPanel   = ".second-verify-panel"
	selLoginPanel    = "#login-panel-new"
	selFakeVideo     = ".recommend-fake-video-img"
)

// localStorage key the site sets to "1" once a user session exists.
const loginStateKey = "HasUserLogin"

const (
	navigationTimeout   = 30 * time.Second
	feedReadyTimeout    = 60 * time.Second
	commentInputTimeout = 5 * time.Second
	commentButtonWait   = 3 * time.Second
	fileChooserWait     = 5 * time.Second

	loginPanelAppear = 6 * time.Second
	loginPanelClear  = 3 * time.Minute
)
