// Package discord runs the agent against a Discord channel. The home
// channel plays the role of the public timeline; an optional second channel
// plays "following".
package discord

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/social"
)

const (
	fetchLimit = 50
	// maxPages bounds one mention scan to maxPages*fetchLimit messages.
	maxPages = 10
)

type Config struct {
	Token              string
	ChannelID          string
	FollowingChannelID string
}

// Platform implements social.Platform over a discordgo session.
type Platform struct {
	s    *discordgo.Session
	cfg  Config
	self social.Identity

	mu        sync.Mutex
	channelOf map[string]string // message id -> channel id
	quiet     scanMark
}

// scanMark records that nothing after since mentioned the bot, up to newest.
type scanMark struct {
	since  string
	newest string
}

var _ social.Platform = (*Platform)(nil)

// Open connects to the gateway and resolves the bot's own identity.
func Open(cfg Config) (*Platform, error) {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord: token and channel id are required")
	}
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord session: %w", err)
	}

	me, err := dg.User("@me")
	if err != nil {
		_ = dg.Close()
		return nil, fmt.Errorf("failed to retrieve bot user: %w", err)
	}
	log.Info().Str("user", me.Username).Str("channel", cfg.ChannelID).Msg("discord session open")

	return &Platform{
		s:         dg,
		cfg:       cfg,
		self:      social.Identity{ID: me.ID, Handle: me.Username},
		channelOf: make(map[string]string),
	}, nil
}

func (p *Platform) Close() error { return p.s.Close() }

func (p *Platform) Self() social.Identity { return p.self }

func (p *Platform) PostContent(ctx context.Context, text string) (string, error) {
	m, err := p.s.ChannelMessageSend(p.cfg.ChannelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", social.Transport("discord send", err)
	}
	p.remember(m.ID, m.ChannelID)
	return m.ID, nil
}

func (p *Platform) PostReply(ctx context.Context, inReplyTo, text string) (string, error) {
	ch := p.channelFor(inReplyTo)
	ref := &discordgo.MessageReference{MessageID: inReplyTo, ChannelID: ch}
	m, err := p.s.ChannelMessageSendReply(ch, text, ref, discordgo.WithContext(ctx))
	if err != nil {
		return "", social.Transport("discord reply", err)
	}
	p.remember(m.ID, m.ChannelID)
	return m.ID, nil
}

// FetchMentions pages forward from sinceID. The cursor only moves on
// mentions, so a stretch of plain chatter is remembered and skipped on the
// next call with the same sinceID.
func (p *Platform) FetchMentions(ctx context.Context, sinceID string) ([]social.Mention, error) {
	msgs, err := scanAfter(p.resumeAfter(sinceID), func(after string) ([]*discordgo.Message, error) {
		return p.s.ChannelMessages(p.cfg.ChannelID, fetchLimit, "", after, "", discordgo.WithContext(ctx))
	})
	if err != nil {
		return nil, social.Transport("discord fetch mentions", err)
	}
	for _, m := range msgs {
		p.remember(m.ID, m.ChannelID)
	}
	out := mentionsFrom(msgs, p.self.ID)
	if len(out) == 0 {
		p.markQuiet(sinceID, newestID(msgs))
	}
	return out, nil
}

func (p *Platform) FetchTimeline(ctx context.Context, tab social.Tab) ([]social.Post, error) {
	ch := p.cfg.ChannelID
	if tab == social.TabFollowing && p.cfg.FollowingChannelID != "" {
		ch = p.cfg.FollowingChannelID
	}
	msgs, err := p.s.ChannelMessages(ch, fetchLimit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, social.Transport("discord fetch timeline", err)
	}
	for _, m := range msgs {
		p.remember(m.ID, m.ChannelID)
	}
	return postsFrom(msgs), nil
}

func (p *Platform) LikeContent(ctx context.Context, postID string) error {
	if err := p.s.MessageReactionAdd(p.channelFor(postID), postID, "👍", discordgo.WithContext(ctx)); err != nil {
		return social.Transport("discord react", err)
	}
	return nil
}

// FollowUser is a no-op: Discord has no follow graph for bots.
func (p *Platform) FollowUser(context.Context, string) error { return nil }

// UpdateProfile sets the home channel topic; bots cannot edit a bio.
func (p *Platform) UpdateProfile(ctx context.Context, bio string) error {
	_, err := p.s.ChannelEdit(p.cfg.ChannelID, &discordgo.ChannelEdit{Topic: bio}, discordgo.WithContext(ctx))
	if err != nil {
		return social.Transport("discord channel edit", err)
	}
	return nil
}

func (p *Platform) remember(msgID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.channelOf) > 5000 {
		clear(p.channelOf)
	}
	p.channelOf[msgID] = channelID
}

func (p *Platform) channelFor(msgID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.channelOf[msgID]; ok {
		return ch
	}
	return p.cfg.ChannelID
}

func (p *Platform) resumeAfter(since string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if since != "" && p.quiet.since == since && p.quiet.newest != "" {
		return p.quiet.newest
	}
	return since
}

func (p *Platform) markQuiet(since, newest string) {
	if newest == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet.since == since && !newerID(newest, p.quiet.newest) {
		return
	}
	p.quiet = scanMark{since: since, newest: newest}
}

// scanAfter pages forward from after until a short page, returning every
// message newest first. An empty after reads only the latest page.
func scanAfter(after string, fetch func(after string) ([]*discordgo.Message, error)) ([]*discordgo.Message, error) {
	var all []*discordgo.Message
	for range maxPages {
		page, err := fetch(after)
		if err != nil {
			return nil, err
		}
		all = append(slices.Clone(page), all...)
		if after == "" || len(page) < fetchLimit {
			break
		}
		next := newestID(page)
		if !newerID(next, after) {
			break
		}
		after = next
	}
	return all, nil
}

// newerID orders snowflakes, which are decimal strings.
func newerID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func newestID(msgs []*discordgo.Message) string {
	var id string
	for _, m := range msgs {
		if m != nil && newerID(m.ID, id) {
			id = m.ID
		}
	}
	return id
}

// mentionsFrom keeps messages that mention selfID, oldest first.
func mentionsFrom(msgs []*discordgo.Message, selfID string) []social.Mention {
	var out []social.Mention
	for _, m := range msgs {
		if m == nil || m.Author == nil || m.Author.ID == selfID {
			continue
		}
		mentioned := slices.ContainsFunc(m.Mentions, func(u *discordgo.User) bool {
			return u != nil && u.ID == selfID
		})
		if !mentioned {
			continue
		}
		out = append(out, social.Mention{
			ID:           m.ID,
			Text:         m.Content,
			AuthorID:     m.Author.ID,
			AuthorHandle: m.Author.Username,
		})
	}
	// the API answers newest first
	slices.Reverse(out)
	return out
}

func postsFrom(msgs []*discordgo.Message) []social.Post {
	out := make([]social.Post, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.Author == nil || m.Content == "" {
			continue
		}
		out = append(out, social.Post{
			ID:           m.ID,
			Text:         m.Content,
			AuthorID:     m.Author.ID,
			AuthorHandle: m.Author.Username,
			IsThread:     m.Thread != nil,
		})
	}
	return out
}
