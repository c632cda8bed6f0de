package api

import (
	"time"

	"slackmirror/db"
)

type syncRequest struct {
	Channels []string `json:"channels"`
}

type syncResponse struct {
	JobID string `json:"job_id"`
}

type channelEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	Mirrored  bool   `json:"mirrored"`
}

type browseChannel struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IsPrivate bool       `json:"is_private"`
	Created   *time.Time `json:"created,omitempty"`
}

type messageEntry struct {
	TS           string          `json:"ts"`
	ChannelID    string          `json:"channel_id"`
	UserID       string          `json:"user_id,omitempty"`
	UserName     string          `json:"user_name,omitempty"`
	Text         string          `json:"text"`
	ThreadTS     string          `json:"thread_ts,omitempty"`
	ParentUserID string          `json:"parent_user_id,omitempty"`
	Subtype      string          `json:"subtype,omitempty"`
	Reactions    []reactionEntry `json:"reactions,omitempty"`
}

type reactionEntry struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	UserID string `json:"user_id,omitempty"`
}

type messagePage struct {
	Channel  *browseChannel `json:"channel,omitempty"`
	Query    string         `json:"query,omitempty"`
	Page     int            `json:"page"`
	PerPage  int            `json:"per_page"`
	Total    int64          `json:"total"`
	Messages []messageEntry `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toMessageEntries(msgs []db.Message) ([]messageEntry, error) {
	ids := make([]string, 0, len(msgs))
	timestamps := make([]string, 0, len(msgs))
	for _, m := range msgs {
		timestamps = append(timestamps, m.TS)
		if m.UserID != "" {
			ids = append(ids, m.UserID)
		}
	}
	users, err := db.UsersByID(ids)
	if err != nil {
		return nil, err
	}
	reactions, err := db.ReactionsForMessages(timestamps)
	if err != nil {
		return nil, err
	}

	out := make([]messageEntry, 0, len(msgs))
	for _, m := range msgs {
		entry := messageEntry{
			TS:           m.TS,
			ChannelID:    m.ChannelID,
			UserID:       m.UserID,
			Text:         m.Text,
			ThreadTS:     m.ThreadTS,
			ParentUserID: m.ParentUserID,
			Subtype:      m.Subtype,
		}
		if u, ok := users[m.UserID]; ok {
			entry.UserName = u.Name
		}
		for _, r := range reactions[m.TS] {
			entry.Reactions = append(entry.Reactions, reactionEntry{
				Name:   r.Name,
				Count:  r.Count,
				UserID: r.UserID,
			})
		}
		out = append(out, entry)
	}
	return out, nil
}
