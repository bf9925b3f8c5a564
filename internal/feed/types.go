// Package feed models the content items intercepted from the feed network
// endpoints and caches them until the task loop consumes them.
package feed

import "encoding/json"

// AwemeTypeVideo is the content type discriminator for a regular video.
// Anything else (image posts, ads, live rooms) is skipped by the task loop.
const AwemeTypeVideo = 0

// Author identifies the uploader of a feed item.
type Author struct {
	Nickname string `json:"nickname"`
	UID      string `json:"uid"`
}

// Tag is one content tag attached to a feed item.
type Tag struct {
	TagName string `json:"tag_name"`
}

// CommentEntry is one existing comment as returned by the comment-list
// endpoint. Only the creation timestamp matters for the activity heuristic.
type CommentEntry struct {
	CreateTime int64 `json:"create_time"`
}

// Item is one unit of feed content as intercepted from the feed-listing
// endpoint. Immutable once cached.
type Item struct {
	AwemeID   string `json:"aweme_id"`
	AwemeType int    `json:"aweme_type"`
	Desc      string `json:"desc"`
	Author    Author `json:"author"`
	VideoTag  []Tag  `json:"video_tag"`
	ShareURL  string `json:"share_url"`
}

// TagNames returns the tag names in order.
func (it Item) TagNames() []string {
	names := make([]string, 0, len(it.VideoTag))
	for _, t := range it.VideoTag {
		names = append(names, t.TagName)
	}
	return names
}

// ListResponse is the payload of the feed-listing endpoint.
type ListResponse struct {
	AwemeList []Item `json:"aweme_list"`
}

// CommentListResponse is the payload of the comment-listing endpoint.
type CommentListResponse struct {
	Comments []CommentEntry `json:"comments"`
}

// PublishResponse is the payload of the comment-submission endpoint.
// StatusCode 0 means the comment was accepted.
type PublishResponse struct {
	StatusCode int `json:"status_code"`
}

// ParseListResponse decodes a feed-listing payload. A payload without an
// aweme_list is not an error; it simply yields no items.
func ParseListResponse(body []byte) ([]Item, error) {
	var resp ListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.AwemeList, nil
}

// ParseCommentList decodes a comment-listing payload.
func ParseCommentList(body []byte) ([]CommentEntry, error) {
	var resp CommentListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

// ParsePublishResponse decodes a comment-submission payload.
func ParsePublishResponse(body []byte) (PublishResponse, error) {
	var resp PublishResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return PublishResponse{}, err
	}
	return resp, nil
}
