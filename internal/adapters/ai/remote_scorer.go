package ai

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/models"
	"github.com/selivandex/marketmood/pkg/templates"
)

type sentimentPayload struct {
	SentimentScore *float64 `json:"sentiment_score" validate:"required,gte=-1,lte=1"`
	SentimentLabel *string  `json:"sentiment_label" validate:"required,oneof=positive negative neutral"`
	Confidence     *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
}

// RemoteScorer scores text through the completion provider. Score, label
// and confidence are returned as the provider reported them.
type RemoteScorer struct {
	completer Completer
	prompts   templates.Renderer
	validate  *validator.Validate
}

// NewRemoteScorer creates remote scorer
func NewRemoteScorer(completer Completer, prompts templates.Renderer) *RemoteScorer {
	return &RemoteScorer{
		completer: completer,
		prompts:   prompts,
		validate:  validator.New(),
	}
}

// Score implements sentiment.Scorer
func (s *RemoteScorer) Score(ctx context.Context, text string) (models.SentimentScore, error) {
	prompt, err := renderSentimentPrompt(s.prompts, text)
	if err != nil {
		return models.SentimentScore{}, apperr.Wrap(apperr.KindScoring, err, "failed to build sentiment prompt")
	}

	content, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return models.SentimentScore{}, apperr.Wrap(apperr.KindScoring, err, "sentiment provider request failed")
	}

	var payload sentimentPayload
	if err := json.Unmarshal([]byte(extractJSON(content)), &payload); err != nil {
		return models.SentimentScore{}, apperr.Wrap(apperr.KindScoring, err, "sentiment response is not valid JSON")
	}

	if payload.SentimentLabel != nil {
		label := normalizeLabel(*payload.SentimentLabel)
		payload.SentimentLabel = &label
	}

	if err := s.validate.Struct(payload); err != nil {
		return models.SentimentScore{}, apperr.Wrap(apperr.KindScoring, err, "sentiment response failed validation")
	}

	confidence := *payload.Confidence
	return models.SentimentScore{
		Score:      *payload.SentimentScore,
		Label:      models.SentimentLabel(*payload.SentimentLabel),
		Confidence: &confidence,
	}, nil
}
