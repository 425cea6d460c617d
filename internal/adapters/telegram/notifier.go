package telegram

import (
	"context"
	"embed"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/templates"
)

const (
	runCompleteTemplate = "run_complete.tmpl"
	runFailedTemplate   = "run_failed.tmpl"
	topSymbolsInMessage = 5
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Sender is the subset of *tgbotapi.BotAPI the notifier uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts pipeline run summaries to one Telegram chat
type Notifier struct {
	api             Sender
	chatID          int64
	templateManager templates.Renderer
}

// LoadTemplates parses the embedded message templates
func LoadTemplates() (*templates.Manager, error) {
	return templates.Load(templateFS, "templates", runCompleteTemplate, runFailedTemplate)
}

// NewNotifier creates new Telegram notifier
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
	)

	tm, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	return NewNotifierWithSender(bot, chatID, tm), nil
}

// NewNotifierWithSender creates notifier over an existing sender
func NewNotifierWithSender(api Sender, chatID int64, tm templates.Renderer) *Notifier {
	return &Notifier{api: api, chatID: chatID, templateManager: tm}
}

// OnRunComplete implements pipeline.RunObserver
func (n *Notifier) OnRunComplete(_ context.Context, result *pipeline.Result) {
	msg, err := n.templateManager.ExecuteTemplate(runCompleteTemplate, completeData(result))
	if err != nil {
		logger.Error("failed to render run summary", zap.Error(err))
		return
	}
	_ = n.sendMessageMarkdown(msg)
}

// OnRunFailed implements pipeline.RunObserver
func (n *Notifier) OnRunFailed(_ context.Context, runID, date string, err error) {
	data := map[string]any{
		"RunID":   runID,
		"Date":    date,
		"Kind":    string(apperr.KindOf(err)),
		"Message": escape(apperr.MessageOf(err)),
	}

	msg, renderErr := n.templateManager.ExecuteTemplate(runFailedTemplate, data)
	if renderErr != nil {
		logger.Error("failed to render run failure", zap.Error(renderErr))
		return
	}
	_ = n.sendMessageMarkdown(msg)
}

func completeData(result *pipeline.Result) map[string]any {
	a := result.Analysis
	fearGreed := decimal.NewFromFloat(a.FearGreedIndex).Round(1)

	symbols := make([]string, 0, topSymbolsInMessage)
	for i, m := range a.StockMentions {
		if i == topSymbolsInMessage {
			break
		}
		symbols = append(symbols, escape(fmt.Sprintf("%s (%d)", m.Symbol, m.Count)))
	}

	signals := make([]string, len(a.RiskIndicators.ContrarianSignals))
	for i, s := range a.RiskIndicators.ContrarianSignals {
		signals[i] = escape(s)
	}

	return map[string]any{
		"Emoji":      moodEmoji(a.FearGreedIndex),
		"Date":       result.Date,
		"FearGreed":  fearGreed.StringFixed(1),
		"Mood":       mood(a.FearGreedIndex),
		"Label":      string(a.MarketSentiment.Label),
		"Fallback":   result.Status == pipeline.StatusFallback,
		"Empty":      result.Status == pipeline.StatusEmpty,
		"Items":      result.Items,
		"TopSymbols": symbols,
		"Signals":    signals,
		"RunID":      result.RunID,
		"Duration":   result.Duration.Round(time.Millisecond).String(),
	}
}

func (n *Notifier) sendMessageMarkdown(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	_, err := n.api.Send(msg)
	if err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", n.chatID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func mood(fearGreed float64) string {
	switch {
	case fearGreed >= pipeline.ExtremeGreedThreshold:
		return "extreme greed"
	case fearGreed >= 55:
		return "greed"
	case fearGreed > 45:
		return "neutral"
	case fearGreed > pipeline.ExtremeFearThreshold:
		return "fear"
	default:
		return "extreme fear"
	}
}

func moodEmoji(fearGreed float64) string {
	if fearGreed >= 55 {
		return "📈"
	} else if fearGreed <= 45 {
		return "📉"
	}
	return "📊"
}
