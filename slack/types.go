package slack

// Member is a workspace user as returned by users.list.
type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	TZ       string `json:"tz"`
	Deleted  bool   `json:"deleted"`
	IsBot    bool   `json:"is_bot"`
}

// Conversation is a channel as returned by conversations.list and
// conversations.info. Created is epoch seconds; zero when Slack omits it.
type Conversation struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsArchived bool   `json:"is_archived"`
	Created    int64  `json:"created"`
}

// Message is a single history or thread-reply entry.
type Message struct {
	TS           string     `json:"ts"`
	User         string     `json:"user"`
	Text         string     `json:"text"`
	ThreadTS     string     `json:"thread_ts"`
	ParentUserID string     `json:"parent_user_id"`
	Subtype      string     `json:"subtype"`
	ReplyCount   int        `json:"reply_count"`
	Reactions    []Reaction `json:"reactions"`
}

// Reaction aggregates one emoji on one message. Users lists everyone who
// reacted; Count is the total and can exceed len(Users) when Slack truncates.
type Reaction struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

type responseMetadata struct {
	NextCursor string `json:"next_cursor"`
}

type apiEnvelope struct {
	OK               bool             `json:"ok"`
	Error            string           `json:"error"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type usersListResponse struct {
	apiEnvelope
	Members []Member `json:"members"`
}

type conversationsListResponse struct {
	apiEnvelope
	Channels []Conversation `json:"channels"`
}

type conversationsInfoResponse struct {
	apiEnvelope
	Channel Conversation `json:"channel"`
}

type messagesResponse struct {
	apiEnvelope
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}
