// Package xweb drives the X web UI through a headless Chrome. Selectors are
// kept in lists so a markup change only needs a new entry, not new code.
package xweb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/social"
)

const baseURL = "https://x.com"

var (
	selUsername   = []string{`input[autocomplete="username"]`, `input[name="text"]`}
	selPassword   = []string{`input[name="password"]`, `input[type="password"]`}
	selLoginBtn   = []string{`button[data-testid="LoginForm_Login_Button"]`}
	selTextarea   = []string{`div[data-testid="tweetTextarea_0"]`, `div[role="textbox"][contenteditable="true"]`}
	selPostBtn    = []string{`button[data-testid="tweetButton"]`, `button[data-testid="tweetButtonInline"]`}
	selReplyBtn   = []string{`button[data-testid="reply"]`}
	selLikeBtn    = []string{`button[data-testid="like"]`}
	selFollowBtn  = []string{`button[data-testid$="-follow"]`}
	selBioField   = []string{`textarea[name="description"]`}
	selSaveBtn    = []string{`button[data-testid="Profile_Save_Button"]`}
	selArticle    = `article[data-testid="tweet"]`
	selTweetText  = `div[data-testid="tweetText"]`
	selStatusLink = `a[href*="/status/"]`
	selUserLink   = `div[data-testid="User-Name"] a[role="link"]`
	selTab        = `[role="tab"]`
)

var tabLabels = map[social.Tab]string{
	social.TabHome:      "For you",
	social.TabFollowing: "Following",
}

type Config struct {
	Username   string
	Password   string
	Headless   bool
	ControlURL string // attach to a running Chrome instead of launching one
	Timeout    time.Duration
}

// Platform implements social.Platform on top of one browser tab.
type Platform struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher

	mu   sync.Mutex
	page *rod.Page
}

var _ social.Platform = (*Platform)(nil)

// Open starts (or attaches to) Chrome and logs in.
func Open(ctx context.Context, cfg Config) (*Platform, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("xweb: username and password are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	p := &Platform{cfg: cfg}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		p.lnch = launcher.New().Headless(cfg.Headless)
		u, err := p.lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	p.browser = rod.New().ControlURL(controlURL)
	if err := p.browser.Connect(); err != nil {
		p.cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := p.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		p.cleanup()
		return nil, fmt.Errorf("open page: %w", err)
	}
	p.page = page

	if err := p.login(ctx); err != nil {
		p.cleanup()
		return nil, err
	}
	log.Info().Str("user", cfg.Username).Msg("x web session ready")
	return p, nil
}

// Close shuts the browser down.
func (p *Platform) Close() error {
	p.cleanup()
	return nil
}

func (p *Platform) cleanup() {
	if p.browser != nil {
		_ = p.browser.Close()
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
	}
}

func (p *Platform) Self() social.Identity {
	return social.Identity{ID: p.cfg.Username, Handle: p.cfg.Username}
}

func (p *Platform) login(ctx context.Context) error {
	pg, err := p.open(ctx, baseURL+"/i/flow/login")
	if err != nil {
		return social.Transport("x login", err)
	}
	if err := p.fill(pg, selUsername, p.cfg.Username); err != nil {
		return social.Transport("x login", err)
	}
	next, err := pg.Timeout(p.cfg.Timeout).ElementR("button", "^Next$")
	if err != nil {
		return social.Transport("x login", err)
	}
	if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return social.Transport("x login", err)
	}
	if err := p.fill(pg, selPassword, p.cfg.Password); err != nil {
		return social.Transport("x login", err)
	}
	if err := p.click(pg, selLoginBtn); err != nil {
		return social.Transport("x login", err)
	}
	return pg.WaitLoad()
}

func (p *Platform) PostContent(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.open(ctx, baseURL+"/compose/post")
	if err != nil {
		return "", social.Transport("x post", err)
	}
	if err := p.fill(pg, selTextarea, text); err != nil {
		return "", social.Transport("x post", err)
	}
	if err := p.click(pg, selPostBtn); err != nil {
		return "", social.Transport("x post", err)
	}
	// the UI does not reveal the new status id without another round trip
	return "", nil
}

func (p *Platform) PostReply(ctx context.Context, inReplyTo, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.open(ctx, statusURL(inReplyTo))
	if err != nil {
		return "", social.Transport("x reply", err)
	}
	if err := p.click(pg, selReplyBtn); err != nil {
		return "", social.Transport("x reply", err)
	}
	if err := p.fill(pg, selTextarea, text); err != nil {
		return "", social.Transport("x reply", err)
	}
	if err := p.click(pg, selPostBtn); err != nil {
		return "", social.Transport("x reply", err)
	}
	return "", nil
}

func (p *Platform) FetchMentions(ctx context.Context, sinceID string) ([]social.Mention, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.open(ctx, baseURL+"/notifications/mentions")
	if err != nil {
		return nil, social.Transport("x mentions", err)
	}
	posts, err := p.scrape(pg)
	if err != nil {
		return nil, social.Transport("x mentions", err)
	}

	var out []social.Mention
	for _, post := range posts {
		if !newerThan(post.ID, sinceID) {
			continue
		}
		out = append(out, social.Mention{
			ID:           post.ID,
			Text:         post.Text,
			AuthorID:     post.AuthorID,
			AuthorHandle: post.AuthorHandle,
		})
	}
	slices.Reverse(out)
	return out, nil
}

func (p *Platform) FetchTimeline(ctx context.Context, tab social.Tab) ([]social.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.open(ctx, baseURL+"/home")
	if err != nil {
		return nil, social.Transport("x timeline", err)
	}
	if label, ok := tabLabels[tab]; ok {
		el, err := pg.Timeout(p.cfg.Timeout).ElementR(selTab, label)
		if err != nil {
			return nil, social.Transport("x timeline", fmt.Errorf("tab %q: %w", tab, err))
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return nil, social.Transport("x timeline", err)
		}
	}
	posts, err := p.scrape(pg)
	if err != nil {
		return nil, social.Transport("x timeline", err)
	}
	return posts, nil
}

func (p *Platform) LikeContent(ctx context.Context, postID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.open(ctx, statusURL(postID))
	if err != nil {
		return social.Transport("x like", err)
	}
	return social.Transport("x like", p.click(pg, selLikeBtn))
}

// FollowUser takes a handle; the web UI has no stable numeric user id.
func (p *Platform) FollowUser(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.open(ctx, baseURL+"/"+strings.TrimPrefix(userID, "@"))
	if err != nil {
		return social.Transport("x follow", err)
	}
	return social.Transport("x follow", p.click(pg, selFollowBtn))
}

func (p *Platform) UpdateProfile(ctx context.Context, bio string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.open(ctx, baseURL+"/settings/profile")
	if err != nil {
		return social.Transport("x profile", err)
	}
	el, err := p.first(pg, selBioField)
	if err != nil {
		return social.Transport("x profile", err)
	}
	if err := el.SelectAllText(); err != nil {
		return social.Transport("x profile", err)
	}
	if err := el.Input(bio); err != nil {
		return social.Transport("x profile", err)
	}
	return social.Transport("x profile", p.click(pg, selSaveBtn))
}

func (p *Platform) open(ctx context.Context, url string) (*rod.Page, error) {
	pg := p.page.Context(ctx)
	if err := pg.Timeout(p.cfg.Timeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.Timeout(p.cfg.Timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	return pg, nil
}

// first returns the first selector in the list that matches.
func (p *Platform) first(pg *rod.Page, selectors []string) (*rod.Element, error) {
	per := p.cfg.Timeout / time.Duration(max(len(selectors), 1))
	var lastErr error
	for _, sel := range selectors {
		el, err := pg.Timeout(per).Element(sel)
		if err == nil {
			return el, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no element for %v: %w", selectors, lastErr)
}

func (p *Platform) click(pg *rod.Page, selectors []string) error {
	el, err := p.first(pg, selectors)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *Platform) fill(pg *rod.Page, selectors []string, text string) error {
	el, err := p.first(pg, selectors)
	if err != nil {
		return err
	}
	return el.Input(text)
}

func (p *Platform) scrape(pg *rod.Page) ([]social.Post, error) {
	if _, err := pg.Timeout(p.cfg.Timeout).Element(selArticle); err != nil {
		return nil, fmt.Errorf("no posts rendered: %w", err)
	}
	articles, err := pg.Elements(selArticle)
	if err != nil {
		return nil, err
	}

	out := make([]social.Post, 0, len(articles))
	for _, a := range articles {
		post, ok := parseArticle(a)
		if ok {
			out = append(out, post)
		}
	}
	return out, nil
}

func parseArticle(a *rod.Element) (social.Post, bool) {
	var post social.Post

	links, err := a.Elements(selStatusLink)
	if err != nil {
		return post, false
	}
	for _, l := range links {
		href, err := l.Attribute("href")
		if err != nil || href == nil {
			continue
		}
		if handle, id, ok := parseStatusPath(*href); ok {
			post.ID = id
			post.AuthorHandle = handle
			post.AuthorID = handle
			break
		}
	}
	if post.ID == "" {
		return post, false
	}

	if users, err := a.Elements(selUserLink); err == nil && len(users) > 0 {
		if href, err := users[0].Attribute("href"); err == nil && href != nil {
			h := strings.Trim(*href, "/")
			post.AuthorHandle, post.AuthorID = h, h
		}
	}

	if texts, err := a.Elements(selTweetText); err == nil && len(texts) > 0 {
		post.Text, _ = texts[0].Text()
	}
	if all, err := a.Text(); err == nil {
		post.IsThread = strings.Contains(all, "Show this thread")
	}
	return post, post.Text != ""
}

// parseStatusPath splits "/handle/status/123[/...]" into its parts.
func parseStatusPath(href string) (handle, id string, ok bool) {
	href = strings.TrimPrefix(href, baseURL)
	parts := strings.Split(strings.Trim(href, "/"), "/")
	if len(parts) < 3 || parts[1] != "status" || parts[0] == "" || parts[2] == "" {
		return "", "", false
	}
	for _, r := range parts[2] {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	return parts[0], parts[2], true
}

func statusURL(id string) string { return baseURL + "/i/status/" + id }

// newerThan compares numeric status ids of arbitrary length.
func newerThan(id, since string) bool {
	if since == "" {
		return true
	}
	if len(id) != len(since) {
		return len(id) > len(since)
	}
	return id > since
}
