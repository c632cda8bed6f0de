package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log15 "github.com/inconshreveable/log15/v3"

	"slackmirror/db"
	"slackmirror/slack"
)

// Store is the persistence surface a sync run needs. Each call covers one
// page of remote data and must commit atomically.
type Store interface {
	SaveUsers(users []db.User) error
	SaveChannel(ch db.Channel) error
	SaveMessages(msgs []db.Message, reactions []db.Reaction) error
}

// Options controls what one Syncer pulls from the workspace.
type Options struct {
	ChannelTypes string
	FetchThreads bool
	OldestTS     string
	LatestTS     string
}

// Syncer crawls the workspace and mirrors it into the store. One Run is
// one job: strictly sequential, users before channels before messages, so
// every foreign key already has its referent by the time it is written.
type Syncer struct {
	client   *slack.Client
	store    Store
	progress ProgressStore
	opts     Options
	log      log15.Logger
}

func New(client *slack.Client, store Store, progress ProgressStore, opts Options) *Syncer {
	if opts.OldestTS == "" {
		opts.OldestTS = "0"
	}
	return &Syncer{
		client:   client,
		store:    store,
		progress: progress,
		opts:     opts,
		log:      log15.New("module", "syncer"),
	}
}

// Run executes one full sync for the given channel selector. Failures in
// any phase stop the run, land in the progress record as phase "error",
// and are returned; a recovered panic is reported the same way so a
// detached worker can never take the process down. Re-running after a
// failure is safe: every write path is idempotent.
func (s *Syncer) Run(ctx context.Context, jobID string, selector []string) (err error) {
	p := Progress{Phase: PhaseStarting, Messages: make(map[string]int)}
	s.publish(ctx, jobID, &p)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
		}
		if err != nil {
			p.Phase = PhaseError
			p.Error = err.Error()
			s.publish(ctx, jobID, &p)
			s.log.Error("sync failed", "job", jobID, "err", err)
		}
	}()

	p.Phase = PhaseUsers
	s.publish(ctx, jobID, &p)
	if err = s.syncUsers(ctx, jobID, &p); err != nil {
		return err
	}

	chanMap, err := s.fetchChannelMap(ctx)
	if err != nil {
		return err
	}
	targets := ResolveChannels(selector, chanMap)
	s.log.Info("channels resolved", "job", jobID, "count", len(targets))

	p.Phase = PhaseChannels
	s.publish(ctx, jobID, &p)
	for _, cid := range targets {
		if err = s.syncChannelInfo(ctx, cid); err != nil {
			return err
		}
	}

	p.Phase = PhaseMessages
	s.publish(ctx, jobID, &p)
	for _, cid := range targets {
		if err = s.syncChannelMessages(ctx, jobID, cid, &p); err != nil {
			return err
		}
	}

	p.Phase = PhaseDone
	s.publish(ctx, jobID, &p)
	s.log.Info("sync finished", "job", jobID, "users", p.Users, "channels", len(targets))
	return nil
}

func (s *Syncer) publish(ctx context.Context, jobID string, p *Progress) {
	p.UpdatedAt = time.Now().UTC()
	if err := s.progress.Set(ctx, jobID, *p); err != nil {
		s.log.Warn("publishing progress failed", "job", jobID, "err", err)
	}
}

func (s *Syncer) syncUsers(ctx context.Context, jobID string, p *Progress) error {
	return s.client.ListUsers(ctx, func(members []slack.Member) error {
		users := make([]db.User, 0, len(members))
		for _, m := range members {
			users = append(users, db.User{
				ID:       m.ID,
				Name:     m.Name,
				RealName: m.RealName,
				Timezone: m.TZ,
			})
		}
		if err := s.store.SaveUsers(users); err != nil {
			return err
		}
		p.Users += len(users)
		s.publish(ctx, jobID, p)
		return nil
	})
}

// ChannelMap resolves between channel names and ids in both directions.
type ChannelMap struct {
	byName map[string]string
	byID   map[string]string
}

func (m *ChannelMap) IDFor(name string) (string, bool) {
	id, ok := m.byName[name]
	return id, ok
}

func (m *ChannelMap) NameFor(id string) (string, bool) {
	name, ok := m.byID[id]
	return name, ok
}

// fetchChannelMap lists every channel of the configured types. Purely an
// in-memory resolution aid; nothing is persisted here.
func (s *Syncer) fetchChannelMap(ctx context.Context) (*ChannelMap, error) {
	m := &ChannelMap{byName: make(map[string]string), byID: make(map[string]string)}
	err := s.client.ListChannels(ctx, s.opts.ChannelTypes, func(channels []slack.Conversation) error {
		for _, c := range channels {
			m.byName[c.Name] = c.ID
			m.byID[c.ID] = c.Name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ResolveChannels turns a caller-provided selector into canonical channel
// ids. "*" selects every mapped channel; names resolve through the map;
// anything unresolved is assumed to already be a raw id.
func ResolveChannels(selector []string, m *ChannelMap) []string {
	wildcard := len(selector) == 0
	for _, s := range selector {
		if strings.TrimSpace(s) == "*" {
			wildcard = true
			break
		}
	}

	if wildcard {
		ids := make([]string, 0, len(m.byID))
		for id := range m.byID {
			if strings.HasPrefix(id, "C") || strings.HasPrefix(id, "G") {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		return ids
	}

	ids := make([]string, 0, len(selector))
	for _, nameOrID := range selector {
		nameOrID = strings.TrimSpace(nameOrID)
		if nameOrID == "" {
			continue
		}
		if id, ok := m.IDFor(nameOrID); ok {
			ids = append(ids, id)
			continue
		}
		ids = append(ids, nameOrID)
	}
	return ids
}

// ParseSelector splits a comma-separated channel list from configuration.
func ParseSelector(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Syncer) syncChannelInfo(ctx context.Context, channelID string) error {
	info, err := s.client.GetChannelInfo(ctx, channelID)
	if err != nil {
		return err
	}
	return s.store.SaveChannel(db.Channel{
		ID:        info.ID,
		Name:      info.Name,
		IsPrivate: info.IsPrivate,
		Created:   epochToTime(info.Created),
	})
}

// syncChannelMessages pages through one channel's history, committing each
// page before fetching the next. Threads found on a page are pulled right
// after that page's commit, so an interrupted run never holds more than
// one uncommitted page.
func (s *Syncer) syncChannelMessages(ctx context.Context, jobID, channelID string, p *Progress) error {
	s.log.Info("fetching messages", "job", jobID, "channel", channelID)
	total := 0
	return s.client.ListHistory(ctx, channelID, s.opts.OldestTS, s.opts.LatestTS, func(page []slack.Message) error {
		msgs, reactions := shapeMessages(page, channelID)
		if err := s.store.SaveMessages(msgs, reactions); err != nil {
			return err
		}
		total += len(msgs)
		p.Messages[channelID] = total
		s.publish(ctx, jobID, p)

		if !s.opts.FetchThreads {
			return nil
		}
		for _, m := range page {
			if m.ReplyCount > 0 && m.ThreadTS != "" {
				if err := s.syncThread(ctx, channelID, m.ThreadTS); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// syncThread pulls one thread's replies. The root carries ts == thread_ts
// and is already stored by the history pass, so it is skipped here.
func (s *Syncer) syncThread(ctx context.Context, channelID, threadTS string) error {
	return s.client.ListReplies(ctx, channelID, threadTS, func(page []slack.Message) error {
		replies := make([]slack.Message, 0, len(page))
		for _, m := range page {
			if m.TS == threadTS {
				continue
			}
			replies = append(replies, m)
		}
		msgs, reactions := shapeMessages(replies, channelID)
		return s.store.SaveMessages(msgs, reactions)
	})
}

// shapeMessages maps one page of remote messages onto rows. Each reaction
// entry expands to one row per reacting user, all carrying the aggregate
// count.
func shapeMessages(page []slack.Message, channelID string) ([]db.Message, []db.Reaction) {
	msgs := make([]db.Message, 0, len(page))
	var reactions []db.Reaction
	for _, m := range page {
		msgs = append(msgs, db.Message{
			TS:           m.TS,
			ChannelID:    channelID,
			UserID:       m.User,
			Text:         m.Text,
			ThreadTS:     m.ThreadTS,
			ParentUserID: m.ParentUserID,
			Subtype:      m.Subtype,
		})
		for _, r := range m.Reactions {
			for _, uid := range r.Users {
				reactions = append(reactions, db.Reaction{
					MessageTS: m.TS,
					Name:      r.Name,
					Count:     r.Count,
					UserID:    uid,
				})
			}
		}
	}
	return msgs, reactions
}

func epochToTime(secs int64) *time.Time {
	if secs == 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}
