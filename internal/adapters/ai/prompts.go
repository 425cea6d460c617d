package ai

import (
	"embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/selivandex/marketmood/pkg/models"
	"github.com/selivandex/marketmood/pkg/templates"
)

const (
	narrativeTemplate = "narrative.tmpl"
	sentimentTemplate = "sentiment.tmpl"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var fencedJSON = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// LoadPrompts parses the embedded prompt templates
func LoadPrompts() (*templates.Manager, error) {
	return templates.Load(promptFS, "prompts", narrativeTemplate, sentimentTemplate)
}

type socialPost struct {
	Platform  string `json:"platform"`
	Subreddit string `json:"subreddit,omitempty"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Upvotes   int    `json:"upvotes"`
	Comments  int    `json:"num_comments"`
}

type socialComment struct {
	Platform  string `json:"platform"`
	Subreddit string `json:"subreddit,omitempty"`
	Content   string `json:"content"`
	Upvotes   int    `json:"upvotes"`
}

type socialData struct {
	Posts    []socialPost    `json:"posts"`
	Comments []socialComment `json:"comments"`
}

// buildSocialData shapes the corpus for the narrative prompt. maxChars caps
// the accumulated text length; items past the cap are left out. 0 means no cap.
func buildSocialData(items []models.ContentItem, maxChars int) socialData {
	data := socialData{
		Posts:    []socialPost{},
		Comments: []socialComment{},
	}

	used := 0
	for _, item := range items {
		size := len(item.Title) + len(item.Body)
		if maxChars > 0 && used+size > maxChars {
			break
		}
		used += size

		switch item.Kind {
		case models.ContentKindComment:
			data.Comments = append(data.Comments, socialComment{
				Platform:  "reddit",
				Subreddit: item.Subreddit,
				Content:   item.Body,
				Upvotes:   int(item.Engagement),
			})
		default:
			data.Posts = append(data.Posts, socialPost{
				Platform:  "reddit",
				Subreddit: item.Subreddit,
				Title:     item.Title,
				Content:   item.Body,
				Upvotes:   int(item.Engagement),
				Comments:  item.NumComments,
			})
		}
	}

	return data
}

func renderNarrativePrompt(renderer templates.Renderer, items []models.ContentItem, maxChars int) (string, error) {
	prompt, err := renderer.ExecuteTemplate(narrativeTemplate, map[string]any{
		"Data": buildSocialData(items, maxChars),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render narrative prompt: %w", err)
	}
	return prompt, nil
}

func renderSentimentPrompt(renderer templates.Renderer, text string) (string, error) {
	prompt, err := renderer.ExecuteTemplate(sentimentTemplate, map[string]any{
		"Text": text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render sentiment prompt: %w", err)
	}
	return prompt, nil
}

// extractJSON extracts JSON from text (handles markdown code blocks)
func extractJSON(text string) string {
	matches := fencedJSON.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")

	var start int
	var endChar string

	// Determine which comes first: object or array
	if startObj >= 0 && (startArr < 0 || startObj < startArr) {
		start = startObj
		endChar = "}"
	} else if startArr >= 0 {
		start = startArr
		endChar = "]"
	} else {
		return strings.TrimSpace(text)
	}

	end := strings.LastIndex(text, endChar)
	if end > start {
		return strings.TrimSpace(text[start : end+1])
	}

	return strings.TrimSpace(text)
}
