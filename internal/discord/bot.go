// Package discord is the chat transport: it turns channel messages into
// assistant calls and assistant results into replies.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"tally/internal/services"
)

const helpText = "Record an expense by typing `beneficiaries amount description`, e.g. " +
	"`bob 12.50 pizza`. Beneficiaries may be separated by spaces, commas or `+`; " +
	"leave them out to use your configured default. Add a date like `14.03.2026` " +
	"anywhere in the description to backdate. A negative amount means the named " +
	"person paid for you.\n" +
	"Commands:\n" +
	"`!undo` remove your last entry (within the undo window)\n" +
	"`!summary` balances and clearing for the open period\n" +
	"`!newperiod` close the period after a missed boundary\n" +
	"`!ping` liveness check"

type Bot struct {
	session    *discordgo.Session
	assistant  *services.Assistant
	channelID  string
	healthPort string
	startTime  time.Time
}

func NewBot(token, channelID, healthPort string, assistant *services.Assistant) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create Discord session: %w", err)
	}

	bot := &Bot{
		session:    session,
		assistant:  assistant,
		channelID:  channelID,
		healthPort: healthPort,
		startTime:  time.Now(),
	}

	session.AddHandler(bot.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	go b.startHealthServer()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open Discord connection: %w", err)
	}
	slog.Info("Discord bot connected", "channel_id", b.channelID)
	return nil
}

func (b *Bot) Stop() {
	b.session.Close()
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return // bot's own messages
	}
	if m.ChannelID != b.channelID {
		return
	}

	ctx := context.Background()
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	switch {
	case content == "!ping":
		b.reply(s, m, fmt.Sprintf("pong (up %s)", time.Since(b.startTime).Round(time.Second)))
	case content == "!help":
		b.reply(s, m, helpText)
	case content == "!undo":
		b.handleUndo(ctx, s, m)
	case content == "!summary":
		b.handleSummary(ctx, s, m)
	case content == "!newperiod":
		b.handleNewPeriod(ctx, s, m)
	case strings.HasPrefix(content, "!"):
		b.reply(s, m, "Unknown command. Try `!help`.")
	default:
		b.handleRecord(ctx, s, m, content)
	}
}

func (b *Bot) handleRecord(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	got, err := b.assistant.Record(ctx, m.ChannelID, m.Author.Username, content)
	if err != nil {
		b.replyError(ctx, s, m, "record", err)
		return
	}

	r := got.Record
	b.reply(s, m, fmt.Sprintf("Recorded in %s (row %d):\n```\n%s | %s | %s | %s | %s\n```",
		got.Ref.Period, got.Ref.Row,
		r.Date.Format("02.01.2006"), r.Description, r.Payer,
		strings.Join(r.Beneficiaries, " + "), r.Amount.StringFixed(2)))
}

func (b *Bot) handleUndo(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	removed, err := b.assistant.Undo(ctx, m.ChannelID)
	if err != nil {
		b.replyError(ctx, s, m, "undo", err)
		return
	}
	b.reply(s, m, fmt.Sprintf("Removed %q (%s).", removed.Description, removed.Amount.StringFixed(2)))
}

func (b *Bot) handleSummary(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	got, err := b.assistant.Summary(ctx)
	if err != nil {
		b.replyError(ctx, s, m, "summary", err)
		return
	}

	var text strings.Builder
	fmt.Fprintf(&text, "**%s**\n", got.Period)
	if len(got.Summary.Transfers) == 0 {
		text.WriteString("All settled.")
	} else {
		for _, tr := range got.Summary.Transfers {
			fmt.Fprintf(&text, "%s owes %s %s\n", tr.From, tr.To, tr.Amount.StringFixed(2))
		}
	}

	_, err = s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content: text.String(),
		Files: []*discordgo.File{{
			Name:        fmt.Sprintf("%s.html", got.Period),
			ContentType: "text/html",
			Reader:      bytes.NewReader(got.Document),
		}},
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to send summary document", "error", err)
	}
}

func (b *Bot) handleNewPeriod(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	closed, err := b.assistant.NewPeriod(ctx)
	if err != nil {
		b.replyError(ctx, s, m, "newperiod", err)
		return
	}
	b.reply(s, m, fmt.Sprintf("Closed %s, opened %s.", closed.ClosedPeriod, closed.OpenedPeriod))
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSend(m.ChannelID, text); err != nil {
		slog.Error("Failed to send reply", "error", err, "channel_id", m.ChannelID)
	}
}

func (b *Bot) replyError(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, op string, err error) {
	if services.IsUserError(err) {
		b.reply(s, m, err.Error())
		return
	}
	slog.ErrorContext(ctx, "Command failed", "operation", op, "error", err)
	b.reply(s, m, "Something went wrong, see the logs.")
}

// Send implements ledger.Notifier for pushes that have no triggering
// message, e.g. rollover notices from the tick loop.
func (b *Bot) Send(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		chatID = b.channelID
	}
	if _, err := b.session.ChannelMessageSend(chatID, text); err != nil {
		return fmt.Errorf("send to channel %s: %w", chatID, err)
	}
	return nil
}

// SendDocument implements ledger.Notifier.
func (b *Bot) SendDocument(ctx context.Context, chatID, name string, data []byte, caption string) error {
	if chatID == "" {
		chatID = b.channelID
	}
	msg := &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: "text/html",
			Reader:      bytes.NewReader(data),
		}},
	}
	if _, err := b.session.ChannelMessageSendComplex(chatID, msg); err != nil {
		return fmt.Errorf("send document to channel %s: %w", chatID, err)
	}
	return nil
}

func (b *Bot) startHealthServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if b.session == nil || b.session.State == nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"uptime":%q,"timestamp":%q}`,
			status, time.Since(b.startTime).String(), time.Now().Format(time.RFC3339))
	})

	addr := ":" + b.healthPort
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Health server stopped", "error", err, "addr", addr)
	}
}
