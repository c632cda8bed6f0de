package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log15 "github.com/inconshreveable/log15/v3"
)

const (
	defaultBaseURL  = "https://slack.com/api"
	defaultPageSize = 200

	methodUsersList            = "users.list"
	methodConversationsList    = "conversations.list"
	methodConversationsInfo    = "conversations.info"
	methodConversationsHistory = "conversations.history"
	methodConversationsReplies = "conversations.replies"
)

// Client talks to the Slack Web API. All list methods stream results one
// page at a time through a callback so callers can persist each page before
// the next network round-trip.
type Client struct {
	token    string
	baseURL  string
	http     *http.Client
	pageSize int
	retry    retryPolicy
	log      log15.Logger
}

// Options tunes a Client. Zero values fall back to production defaults.
type Options struct {
	BaseURL     string
	PageSize    int
	MaxAttempts int
	RetryMin    time.Duration
	RetryMax    time.Duration
	HTTPClient  *http.Client
	Logger      log15.Logger
}

func NewClient(token string, opts Options) *Client {
	c := &Client{
		token:    token,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		pageSize: defaultPageSize,
		retry: retryPolicy{
			maxAttempts: defaultMaxAttempts,
			minDelay:    defaultRetryMin,
			maxDelay:    defaultRetryMax,
		},
		log: log15.New("module", "slack"),
	}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if opts.PageSize > 0 {
		c.pageSize = opts.PageSize
	}
	if opts.MaxAttempts > 0 {
		c.retry.maxAttempts = opts.MaxAttempts
	}
	if opts.RetryMin > 0 {
		c.retry.minDelay = opts.RetryMin
	}
	if opts.RetryMax > 0 {
		c.retry.maxDelay = opts.RetryMax
	}
	if opts.HTTPClient != nil {
		c.http = opts.HTTPClient
	}
	if opts.Logger != nil {
		c.log = opts.Logger
	}
	return c
}

// ListUsers pages through users.list, handing each page of members to fn.
func (c *Client) ListUsers(ctx context.Context, fn func([]Member) error) error {
	return c.paginate(ctx, func(cursor string) (string, error) {
		params := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp usersListResponse
		if err := c.get(ctx, methodUsersList, params, &resp); err != nil {
			return "", err
		}
		if err := fn(resp.Members); err != nil {
			return "", err
		}
		return resp.ResponseMetadata.NextCursor, nil
	})
}

// ListChannels pages through conversations.list filtered by the given
// comma-separated channel types.
func (c *Client) ListChannels(ctx context.Context, types string, fn func([]Conversation) error) error {
	return c.paginate(ctx, func(cursor string) (string, error) {
		params := url.Values{
			"limit": {strconv.Itoa(c.pageSize)},
			"types": {types},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp conversationsListResponse
		if err := c.get(ctx, methodConversationsList, params, &resp); err != nil {
			return "", err
		}
		if err := fn(resp.Channels); err != nil {
			return "", err
		}
		return resp.ResponseMetadata.NextCursor, nil
	})
}

// GetChannelInfo fetches metadata for one channel. Not paginated.
func (c *Client) GetChannelInfo(ctx context.Context, channelID string) (Conversation, error) {
	params := url.Values{"channel": {channelID}}
	var resp conversationsInfoResponse
	if err := c.get(ctx, methodConversationsInfo, params, &resp); err != nil {
		return Conversation{}, err
	}
	return resp.Channel, nil
}

// ListHistory pages through a channel's message history. Oldest and latest
// bound the window by message timestamp; latest may be empty for "now".
func (c *Client) ListHistory(ctx context.Context, channelID, oldest, latest string, fn func([]Message) error) error {
	return c.paginate(ctx, func(cursor string) (string, error) {
		params := url.Values{
			"channel": {channelID},
			"limit":   {strconv.Itoa(c.pageSize)},
			"oldest":  {oldest},
		}
		if latest != "" {
			params.Set("latest", latest)
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp messagesResponse
		if err := c.get(ctx, methodConversationsHistory, params, &resp); err != nil {
			return "", err
		}
		if err := fn(resp.Messages); err != nil {
			return "", err
		}
		return resp.ResponseMetadata.NextCursor, nil
	})
}

// ListReplies pages through the replies of one thread, root included.
func (c *Client) ListReplies(ctx context.Context, channelID, threadTS string, fn func([]Message) error) error {
	return c.paginate(ctx, func(cursor string) (string, error) {
		params := url.Values{
			"channel": {channelID},
			"ts":      {threadTS},
			"limit":   {strconv.Itoa(c.pageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp messagesResponse
		if err := c.get(ctx, methodConversationsReplies, params, &resp); err != nil {
			return "", err
		}
		if err := fn(resp.Messages); err != nil {
			return "", err
		}
		return resp.ResponseMetadata.NextCursor, nil
	})
}

// paginate drives one cursor loop: fetch with an empty cursor first, then
// keep passing whatever next_cursor came back until the server stops
// returning one. No assumption is made about the number of pages.
func (c *Client) paginate(ctx context.Context, page func(cursor string) (string, error)) error {
	cursor := ""
	for {
		next, err := page(cursor)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

// get performs one Web API call with retry on transient failures.
func (c *Client) get(ctx context.Context, method string, params url.Values, out any) error {
	return c.withRetry(ctx, method, func() error {
		return c.do(ctx, method, params, out)
	})
}

func (c *Client) do(ctx context.Context, method string, params url.Values, out any) error {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, method, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("slack: build request for %s: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &APIError{Method: method, Code: errCodeRateLimited, RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode >= 500 {
		return &APIError{Method: method, Code: errCodeServerError, Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Method: method, Code: fmt.Sprintf("http_%d", resp.StatusCode), Status: resp.StatusCode, permanent: true}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("slack: decode %s response: %w", method, err)
	}

	env := envelopeOf(out)
	if env != nil && !env.OK {
		return newAPIError(method, env.Error)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type enveloped interface {
	envelope() *apiEnvelope
}

func (e *apiEnvelope) envelope() *apiEnvelope { return e }

func envelopeOf(out any) *apiEnvelope {
	if e, ok := out.(enveloped); ok {
		return e.envelope()
	}
	return nil
}
