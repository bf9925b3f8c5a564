package feed

// Web API paths whose responses carry the data the engine consumes. Matched
// by substring against captured network traffic.
const (
	EndpointTabFeed        = "/aweme/v1/web/tab/feed/"
	EndpointCommentList    = "/aweme/v1/web/comment/list/"
	EndpointCommentPublish = "/aweme/v1/web/comment/publish"
)
