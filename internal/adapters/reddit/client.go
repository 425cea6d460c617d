package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/selivandex/marketmood/internal/adapters/config"
	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
)

const (
	publicBaseURL = "https://www.reddit.com"
	oauthBaseURL  = "https://oauth.reddit.com"
	tokenURL      = "https://www.reddit.com/api/v1/access_token"
	deletedAuthor = "[deleted]"
)

// Client collects hot posts and their comments from configured subreddits
type Client struct {
	baseURL      string
	userAgent    string
	subreddits   []string
	postLimit    int
	commentLimit int
	http         *http.Client
	limiter      *rate.Limiter
}

// Option customizes Client
type Option func(*Client)

// WithBaseURL points the client at a different API host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the transport client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// userAgentTransport sets the User-Agent Reddit requires on every request,
// token requests included
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// NewClient creates new Reddit client. App-only OAuth is used when client
// credentials are configured, the public JSON endpoints otherwise.
func NewClient(cfg config.RedditConfig, opts ...Option) *Client {
	transport := &userAgentTransport{base: http.DefaultTransport, userAgent: cfg.UserAgent}
	plain := &http.Client{Timeout: 15 * time.Second, Transport: transport}

	c := &Client{
		baseURL:      publicBaseURL,
		userAgent:    cfg.UserAgent,
		subreddits:   cfg.Subreddits,
		postLimit:    cfg.PostLimit,
		commentLimit: cfg.CommentLimit,
		http:         plain,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
	}

	if cfg.UsesOAuth() {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, plain)
		c.http = cc.Client(tokenCtx)
		c.http.Timeout = 15 * time.Second
		c.baseURL = oauthBaseURL
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subreddits returns configured subreddits
func (c *Client) Subreddits() []string {
	return c.subreddits
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string    `json:"kind"`
	Data thingData `json:"data"`
}

type thingData struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Selftext    string          `json:"selftext"`
	Body        string          `json:"body"`
	URL         string          `json:"url"`
	Permalink   string          `json:"permalink"`
	Author      string          `json:"author"`
	CreatedUTC  float64         `json:"created_utc"`
	Score       float64         `json:"score"`
	NumComments int             `json:"num_comments"`
	Replies     json.RawMessage `json:"replies"`
}

// FetchHot fetches hot posts of a subreddit
func (c *Client) FetchHot(ctx context.Context, subreddit string) ([]models.ContentItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", c.baseURL, url.PathEscape(subreddit), c.postLimit)

	var result listing
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}

	posts := make([]models.ContentItem, 0, len(result.Data.Children))
	for _, child := range result.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		post := child.Data
		posts = append(posts, models.ContentItem{
			ID:          post.ID,
			Kind:        models.ContentKindPost,
			Subreddit:   subreddit,
			Title:       post.Title,
			Body:        post.Selftext,
			Author:      authorName(post.Author),
			URL:         post.URL,
			Engagement:  post.Score,
			NumComments: post.NumComments,
			CreatedAt:   fromUnix(post.CreatedUTC),
		})
	}

	return posts, nil
}

// FetchComments fetches the comment tree of a post flattened in
// depth-first order, up to the configured comment limit
func (c *Client) FetchComments(ctx context.Context, subreddit, postID string) ([]models.ContentItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/comments/%s.json?limit=%d&raw_json=1",
		c.baseURL, url.PathEscape(subreddit), url.PathEscape(postID), c.commentLimit)

	// Response is [post listing, comment listing]
	var result []listing
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return []models.ContentItem{}, nil
	}

	comments := make([]models.ContentItem, 0)
	c.flattenComments(result[1].Data.Children, subreddit, postID, &comments)

	return comments, nil
}

func (c *Client) flattenComments(children []thing, subreddit, postID string, out *[]models.ContentItem) {
	for _, child := range children {
		if c.commentLimit > 0 && len(*out) >= c.commentLimit {
			return
		}
		if child.Kind != "t1" {
			continue
		}

		comment := child.Data
		*out = append(*out, models.ContentItem{
			ID:         comment.ID,
			Kind:       models.ContentKindComment,
			PostID:     postID,
			Subreddit:  subreddit,
			Body:       comment.Body,
			Author:     authorName(comment.Author),
			URL:        comment.Permalink,
			Engagement: comment.Score,
			CreatedAt:  fromUnix(comment.CreatedUTC),
		})

		// Leaf comments carry "" instead of a listing
		if len(comment.Replies) > 0 && comment.Replies[0] == '{' {
			var replies listing
			if err := json.Unmarshal(comment.Replies, &replies); err == nil {
				c.flattenComments(replies.Data.Children, subreddit, postID, out)
			}
		}
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// CollectResult summarizes one collection pass
type CollectResult struct {
	Items            []models.ContentItem
	Posts            int
	Comments         int
	FailedSubreddits []string
}

// Collect fetches hot posts and their comments from every configured
// subreddit. A failing subreddit is logged and skipped; the pass fails with
// source_unavailable only when every subreddit fails.
func (c *Client) Collect(ctx context.Context) (*CollectResult, error) {
	result := &CollectResult{Items: make([]models.ContentItem, 0)}

	for _, subreddit := range c.subreddits {
		posts, err := c.FetchHot(ctx, subreddit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("failed to fetch reddit posts",
				zap.String("subreddit", subreddit),
				zap.Error(err),
			)
			result.FailedSubreddits = append(result.FailedSubreddits, subreddit)
			continue
		}

		result.Items = append(result.Items, posts...)
		result.Posts += len(posts)

		for _, post := range posts {
			comments, err := c.FetchComments(ctx, subreddit, post.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn("failed to fetch reddit comments",
					zap.String("subreddit", subreddit),
					zap.String("post_id", post.ID),
					zap.Error(err),
				)
				continue
			}
			result.Items = append(result.Items, comments...)
			result.Comments += len(comments)
		}
	}

	if len(c.subreddits) > 0 && len(result.FailedSubreddits) == len(c.subreddits) {
		return nil, apperr.New(apperr.KindSourceUnavailable, "all %d subreddits failed", len(c.subreddits))
	}

	logger.Info("reddit collection completed",
		zap.Int("posts", result.Posts),
		zap.Int("comments", result.Comments),
		zap.Strings("failed_subreddits", result.FailedSubreddits),
	)

	return result, nil
}

func authorName(author string) string {
	if author == "" {
		return deletedAuthor
	}
	return author
}

func fromUnix(ts float64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}
