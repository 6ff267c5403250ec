package telegram

import (
	"context"
	"strings"
	"time"

	"github.com/dtroode/anonrelay-server/internal/logger"
	"github.com/dtroode/anonrelay-server/internal/model"
)

// retryDelay is the pause after a failed getUpdates call.
const retryDelay = 3 * time.Second

// relayHandler is the event surface of the relay orchestrator.
type relayHandler interface {
	HandleStart(ctx context.Context, msg model.InboundMessage) error
	HandleUserMessage(ctx context.Context, msg model.InboundMessage) error
	HandleCallback(ctx context.Context, ev model.CallbackEvent) error
	HandleOperatorReply(ctx context.Context, reply model.OperatorReply) error
	HandleOperatorCommand(ctx context.Context, cmd model.OperatorCommand) error
}

// Poller long-polls the Bot API and dispatches updates to the relay. One
// poller per bot token; updates are handled sequentially in arrival order,
// per-user serialization happens inside the relay.
type Poller struct {
	client     *Client
	relay      relayHandler
	operatorID int64
	timeout    int
	logger     *logger.Logger

	offset int64
}

func NewPoller(client *Client, relay relayHandler, operatorID int64, pollTimeout int, logger *logger.Logger) *Poller {
	return &Poller{
		client:     client,
		relay:      relay,
		operatorID: operatorID,
		timeout:    pollTimeout,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled. Poll failures are logged and retried
// after a short delay; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Telegram poller: started", "timeout", p.timeout)

	for {
		updates, err := p.client.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("Telegram poller: getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, update := range updates {
			p.offset = update.UpdateID + 1
			p.dispatch(ctx, update)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, update Update) {
	switch {
	case update.CallbackQuery != nil:
		p.handleCallback(ctx, *update.CallbackQuery)
	case update.Message != nil:
		p.handleMessage(ctx, *update.Message)
	}
}

func (p *Poller) handleCallback(ctx context.Context, query CallbackQuery) {
	if err := p.client.AnswerCallbackQuery(ctx, query.ID); err != nil {
		p.logger.Warn("Telegram poller: failed to ack callback", "error", err)
	}

	ev := model.CallbackEvent{
		From: profileOf(query.From),
		Data: query.Data,
	}
	if err := p.relay.HandleCallback(ctx, ev); err != nil {
		p.logger.Error("Telegram poller: callback handling failed",
			"user_id", query.From.ID, "error", err)
	}
}

func (p *Poller) handleMessage(ctx context.Context, msg Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}

	if msg.Chat.ID == p.operatorID {
		p.handleOperatorMessage(ctx, msg)
		return
	}

	inbound := model.InboundMessage{
		MessageID: msg.MessageID,
		From:      profileOf(*msg.From),
		Text:      msg.Text,
		Caption:   msg.Caption,
	}

	var err error
	if strings.HasPrefix(msg.Text, "/start") {
		err = p.relay.HandleStart(ctx, inbound)
	} else {
		err = p.relay.HandleUserMessage(ctx, inbound)
	}
	if err != nil {
		p.logger.Error("Telegram poller: message handling failed",
			"user_id", msg.From.ID, "message_id", msg.MessageID, "error", err)
	}
}

func (p *Poller) handleOperatorMessage(ctx context.Context, msg Message) {
	if command, args, ok := parseCommand(msg.Text); ok {
		cmd := model.OperatorCommand{
			Command: command,
			Args:    args,
		}
		if msg.ReplyToMessage != nil {
			reply := operatorReplyOf(msg)
			cmd.Reply = &reply
		}
		if err := p.relay.HandleOperatorCommand(ctx, cmd); err != nil {
			p.logger.Error("Telegram poller: operator command failed",
				"command", command, "error", err)
		}
		return
	}

	if msg.ReplyToMessage == nil {
		// A bare operator message has no routing target; ignore it.
		return
	}

	if err := p.relay.HandleOperatorReply(ctx, operatorReplyOf(msg)); err != nil {
		p.logger.Error("Telegram poller: operator reply failed",
			"message_id", msg.MessageID, "error", err)
	}
}

// parseCommand splits "/cmd@bot arg arg" into its name and raw argument tail.
func parseCommand(text string) (command, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head, tail, _ := strings.Cut(text[1:], " ")
	if head == "" {
		return "", "", false
	}
	// commands in group-style form carry a @botname suffix
	head, _, _ = strings.Cut(head, "@")

	return head, strings.TrimSpace(tail), true
}

func operatorReplyOf(msg Message) model.OperatorReply {
	reply := model.OperatorReply{
		MessageID:        msg.MessageID,
		RepliedMessageID: msg.ReplyToMessage.MessageID,
	}

	replied := msg.ReplyToMessage
	if replied.From != nil && replied.From.IsBot {
		reply.RepliedIsRelay = true
		if replied.ReplyToMessage != nil {
			reply.EchoOfMessageID = replied.ReplyToMessage.MessageID
		}
	}

	return reply
}

func profileOf(u User) model.UserProfile {
	return model.UserProfile{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}
