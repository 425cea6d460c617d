package models

import (
	"strings"
	"time"
)

// ContentKind distinguishes posts from comments
type ContentKind string

const (
	ContentKindPost    ContentKind = "post"
	ContentKindComment ContentKind = "comment"
)

// ContentItem represents single unit of corpus text (Reddit post or comment)
type ContentItem struct {
	CreatedAt   time.Time   `json:"created_at" db:"created_utc"`
	ID          string      `json:"id" db:"id"`
	Kind        ContentKind `json:"kind" db:"kind"`
	PostID      string      `json:"post_id,omitempty" db:"post_id"` // parent post for comments
	Subreddit   string      `json:"subreddit" db:"subreddit"`
	Title       string      `json:"title,omitempty" db:"title"` // posts only
	Body        string      `json:"body" db:"body"`
	Author      string      `json:"author" db:"author"`
	URL         string      `json:"url,omitempty" db:"url"`
	Engagement  float64     `json:"engagement" db:"score"` // upvote score
	NumComments int         `json:"num_comments,omitempty" db:"num_comments"`
}

// Text returns the title/body pair joined the same way for every item
func (c ContentItem) Text() string {
	return c.Title + " " + c.Body
}

// JoinText concatenates all items into one corpus string
func JoinText(items []ContentItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Text()
	}
	return strings.Join(parts, " ")
}

// Window is a closed [Start, End] time range over the corpus
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TrailingWindow returns window of given length ending at end
func TrailingWindow(end time.Time, length time.Duration) Window {
	return Window{Start: end.Add(-length), End: end}
}
