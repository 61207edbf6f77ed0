package telegram

import (
	"context"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-concierge/internal/conversation"
	"ai-concierge/internal/trace"
)

const (
	startCmd     = "start"
	welcomeText  = "Hi! Send me a message and I'll do my best to help."
	userIDPrefix = "tg:"
)

// Bot forwards Telegram messages to the conversation orchestrator.
type Bot struct {
	api          *tgbotapi.BotAPI
	s            sender
	orchestrator *conversation.Orchestrator
	parseMode    string
}

func New(botToken string, orchestrator *conversation.Orchestrator, parseMode string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:          api,
		s:            botAPISender{api: api},
		orchestrator: orchestrator,
		parseMode:    parseMode,
	}, nil
}

// Start polls for updates until ctx is cancelled. Updates are handled in
// arrival order so a user's turns reach the orchestrator in send order.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() && msg.Command() == startCmd {
		b.sendMessage(msg.Chat.ID, welcomeText)
		return
	}

	userID := userIDPrefix + strconv.FormatInt(msg.From.ID, 10)
	traceID := trace.NewTraceID()
	log.Printf("Incoming message from %s (@%s) trace=%s", userID, msg.From.UserName, traceID)

	result, err := b.orchestrator.HandleTurn(ctx, userID, strings.TrimSpace(msg.Text), traceID)
	if err != nil {
		log.Printf("turn rejected for %s: %v", userID, err)
	}
	log.Printf("Reply to %s [tokens: prompt=%d, completion=%d, total=%d]",
		userID, result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)

	b.sendMessage(msg.Chat.ID, result.Text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if b.parseMode != "" {
		msg.ParseMode = b.parseMode
	}
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
