package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dtroode/anonrelay-server/internal/logger"
	"github.com/dtroode/anonrelay-server/internal/model"
)

const (
	// maxRecordedTextRunes bounds the text stored per forwarded message.
	maxRecordedTextRunes = 500

	callbackVerifyPrefix = "verify_"
	callbackAnswerPrefix = "answer_"
)

// Relay orchestrates the two-way anonymous channel between end users and the
// operator: it registers users on contact, gates unverified users behind
// challenges, filters keywords, forwards clean messages, and routes operator
// replies and commands.
type Relay struct {
	users        model.UserStore
	filter       *KeywordFilter
	verification *VerificationEngine
	router       *RelayRouter
	admin        *Admin
	messages     model.SentMessageStore
	welcomes     model.WelcomeStore
	challenges   model.ChallengeStore
	transport    model.Transport
	operatorID   int64
	locks        *userLocks
	logger       *logger.Logger
	now          func() time.Time
}

func NewRelay(
	users model.UserStore,
	filter *KeywordFilter,
	verification *VerificationEngine,
	router *RelayRouter,
	admin *Admin,
	messages model.SentMessageStore,
	welcomes model.WelcomeStore,
	challenges model.ChallengeStore,
	transport model.Transport,
	operatorID int64,
	logger *logger.Logger,
) *Relay {
	return &Relay{
		users:        users,
		filter:       filter,
		verification: verification,
		router:       router,
		admin:        admin,
		messages:     messages,
		welcomes:     welcomes,
		challenges:   challenges,
		transport:    transport,
		operatorID:   operatorID,
		locks:        newUserLocks(),
		logger:       logger,
		now:          time.Now,
	}
}

// HandleStart registers the user, sends the stored greeting for their
// language, and issues a verification challenge when one is required.
// The /start command itself is never forwarded to the operator.
func (r *Relay) HandleStart(ctx context.Context, msg model.InboundMessage) error {
	r.locks.Lock(msg.From.ID)
	defer r.locks.Unlock(msg.From.ID)

	user, err := r.users.Upsert(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	welcome := r.welcomeText(ctx, user.LanguageCode)
	if err := r.transport.SendMessage(ctx, user.ID, welcome); err != nil {
		r.logger.Error("Relay: failed to send welcome", "user_id", user.ID, "error", err)
	}

	if user.Blocked {
		r.notify(ctx, user.ID, blockedNotice(user.LanguageCode))
		return nil
	}

	need, err := r.verification.NeedsChallenge(ctx, user)
	if err != nil {
		return err
	}
	if need {
		return r.issueChallenge(ctx, user)
	}

	return nil
}

// HandleUserMessage processes one inbound user message through the full
// pipeline: registration, block check, verification gating, keyword filter,
// forwarding, reply-mapping, and history recording.
func (r *Relay) HandleUserMessage(ctx context.Context, msg model.InboundMessage) error {
	r.locks.Lock(msg.From.ID)
	defer r.locks.Unlock(msg.From.ID)

	user, err := r.users.Upsert(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if user.Blocked {
		r.notify(ctx, user.ID, blockedNotice(user.LanguageCode))
		return nil
	}

	// Free text from a user holding a live image-code challenge is treated
	// as an answer attempt, never relayed.
	if msg.Text != "" {
		if ch, ok := r.challenges.Get(user.ID); ok && ch.Kind == model.ChallengeImageCode && !ch.Expired(r.now()) {
			return r.resolveChallenge(ctx, user, model.ChallengeImageCode, msg.Text, true)
		}
	}

	need, err := r.verification.NeedsChallenge(ctx, user)
	if err != nil {
		return err
	}
	if need {
		return r.issueChallenge(ctx, user)
	}

	content := msg.Content()
	keyword, hit, err := r.filter.Matches(ctx, content)
	if err != nil {
		return err
	}
	if hit {
		r.notify(ctx, user.ID, keywordNotice(user.LanguageCode, keyword))
		alert := fmt.Sprintf("⚠️ Intercepted a message from %s containing blocked keyword (%s). Not forwarded.",
			describeUser(user), keyword)
		r.notify(ctx, r.operatorID, alert)
		r.logger.Info("Relay: message intercepted by keyword filter",
			"user_id", user.ID, "keyword", keyword)
		return nil
	}

	forwardedID, err := r.transport.ForwardToOperator(ctx, user.ID, msg.MessageID)
	if err != nil {
		r.logger.Error("Relay: failed to forward message",
			"user_id", user.ID, "message_id", msg.MessageID, "error", err)
		r.notify(ctx, user.ID, forwardFailedNotice(user.LanguageCode))
		return nil
	}

	if err := r.router.RecordForward(ctx, forwardedID, user.ID); err != nil {
		return err
	}

	record := model.SentMessage{
		UserID: user.ID,
		Text:   truncateText(content),
		SentAt: r.now(),
	}
	if _, err := r.messages.Append(ctx, record); err != nil {
		return fmt.Errorf("failed to record sent message: %w", err)
	}

	return nil
}

// HandleCallback processes an interactive-button press: a simple-challenge
// confirmation or an arithmetic answer choice.
func (r *Relay) HandleCallback(ctx context.Context, ev model.CallbackEvent) error {
	r.locks.Lock(ev.From.ID)
	defer r.locks.Unlock(ev.From.ID)

	user, err := r.users.Upsert(ctx, ev.From)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if user.Blocked {
		r.notify(ctx, user.ID, blockedNotice(user.LanguageCode))
		return nil
	}

	switch {
	case strings.HasPrefix(ev.Data, callbackVerifyPrefix):
		answer := strings.TrimPrefix(ev.Data, callbackVerifyPrefix)
		return r.resolveChallenge(ctx, user, model.ChallengeSimple, answer, false)
	case strings.HasPrefix(ev.Data, callbackAnswerPrefix):
		answer := strings.TrimPrefix(ev.Data, callbackAnswerPrefix)
		return r.resolveChallenge(ctx, user, model.ChallengeArithmetic, answer, true)
	default:
		r.logger.Info("Relay: unknown callback payload", "user_id", user.ID, "data", ev.Data)
		return nil
	}
}

// HandleOperatorReply routes an operator reply back to the originating user
// via the forward mapping, delivering it without a forwarding header.
func (r *Relay) HandleOperatorReply(ctx context.Context, reply model.OperatorReply) error {
	targetID, err := r.router.ResolveReplyTarget(ctx, reply)
	if errors.Is(err, model.ErrNotFound) {
		r.notify(ctx, r.operatorID, "Could not identify the target user for this reply.")
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.transport.CopyToUser(ctx, targetID, r.operatorID, reply.MessageID); err != nil {
		r.logger.Error("Relay: failed to deliver operator reply",
			"user_id", targetID, "message_id", reply.MessageID, "error", err)
		r.notify(ctx, r.operatorID, "Failed to deliver the reply to the user.")
		return nil
	}

	return nil
}

// HandleOperatorCommand executes one operator slash command and answers in
// the operator chat.
func (r *Relay) HandleOperatorCommand(ctx context.Context, cmd model.OperatorCommand) error {
	switch cmd.Command {
	case "block":
		return r.setBlockedByReply(ctx, cmd, true)
	case "unblock":
		return r.setBlockedByReply(ctx, cmd, false)
	case "info", "checkblock":
		return r.replyUserInfo(ctx, cmd)
	case "addkw":
		return r.addKeyword(ctx, cmd.Args)
	case "rmkw":
		return r.removeKeyword(ctx, cmd.Args)
	case "listkw_all":
		return r.listKeywords(ctx)
	case "listblock_all":
		return r.listBlocked(ctx)
	default:
		r.notify(ctx, r.operatorID, fmt.Sprintf("Unknown command: /%s", cmd.Command))
		return nil
	}
}

func (r *Relay) issueChallenge(ctx context.Context, user model.User) error {
	ch, err := r.verification.Issue(ctx, user.ID)
	if err != nil {
		return err
	}

	lang := user.LanguageCode
	switch ch.Kind {
	case model.ChallengeArithmetic:
		options := make([]model.Option, 0, len(ch.Options))
		for _, o := range ch.Options {
			options = append(options, model.Option{Label: o, Data: callbackAnswerPrefix + o})
		}
		if err := r.transport.SendOptions(ctx, user.ID, arithmeticPrompt(lang, ch.Prompt), options); err != nil {
			return fmt.Errorf("failed to send challenge: %w", err)
		}
	case model.ChallengeImageCode:
		if err := r.transport.SendImage(ctx, user.ID, imagePrompt(lang), ch.ImagePNG); err != nil {
			return fmt.Errorf("failed to send challenge: %w", err)
		}
	default:
		options := []model.Option{{Label: simpleButtonLabel(lang), Data: callbackVerifyPrefix + ch.Answer}}
		if err := r.transport.SendOptions(ctx, user.ID, simplePrompt(lang), options); err != nil {
			return fmt.Errorf("failed to send challenge: %w", err)
		}
	}

	return nil
}

// resolveChallenge submits an answer and notifies the user of the outcome.
// When reissue is set a fresh challenge follows a failed attempt.
func (r *Relay) resolveChallenge(ctx context.Context, user model.User, kind model.ChallengeKind, answer string, reissue bool) error {
	resolution, err := r.verification.Resolve(ctx, user.ID, kind, answer)
	if err != nil {
		return err
	}

	lang := user.LanguageCode
	switch resolution {
	case model.ResolutionVerified:
		r.notify(ctx, user.ID, verifiedNotice(lang))
		return nil
	case model.ResolutionWrongAnswer:
		r.notify(ctx, user.ID, wrongAnswerNotice(lang))
	default:
		r.notify(ctx, user.ID, challengeGoneNotice(lang))
	}

	if reissue {
		return r.issueChallenge(ctx, user)
	}
	return nil
}

func (r *Relay) setBlockedByReply(ctx context.Context, cmd model.OperatorCommand, blocked bool) error {
	user, ok := r.userFromReply(ctx, cmd)
	if !ok {
		return nil
	}

	if err := r.admin.SetUserBlocked(ctx, user.ID, blocked); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.notify(ctx, r.operatorID, fmt.Sprintf("User %d not found.", user.ID))
			return nil
		}
		return err
	}

	if blocked {
		r.notify(ctx, r.operatorID, fmt.Sprintf("🚫 Blocked %s.", describeUser(user)))
	} else {
		r.notify(ctx, r.operatorID, fmt.Sprintf("🎉 Unblocked %s.", describeUser(user)))
	}
	return nil
}

func (r *Relay) replyUserInfo(ctx context.Context, cmd model.OperatorCommand) error {
	user, ok := r.userFromReply(ctx, cmd)
	if !ok {
		return nil
	}

	status := "Active ✅"
	if user.Blocked {
		status = "Blocked 🚫"
	}
	verified := "no"
	if user.Verified {
		verified = "yes"
	}

	info := fmt.Sprintf("👤 User info\nUID: %d\nUsername: %s\nName: %s\nLanguage: %s\nStatus: %s\nVerified: %s\nLast seen: %s",
		user.ID,
		displayUsername(user.Username),
		displayName(user),
		user.LanguageCode,
		status,
		verified,
		user.LastSeenAt.UTC().Format(time.RFC3339),
	)
	r.notify(ctx, r.operatorID, info)
	return nil
}

func (r *Relay) addKeyword(ctx context.Context, args string) error {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		r.notify(ctx, r.operatorID, "Usage: /addkw <keyword> [keyword...]")
		return nil
	}

	added, existing, err := r.admin.AddKeywords(ctx, parts)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			r.notify(ctx, r.operatorID, "Usage: /addkw <keyword> [keyword...]")
			return nil
		}
		return err
	}

	var lines []string
	for _, kw := range added {
		lines = append(lines, fmt.Sprintf("✅ Added: %s", kw.Keyword))
	}
	for _, kw := range existing {
		lines = append(lines, fmt.Sprintf("ℹ️ Already present: %s", kw.Keyword))
	}
	r.notify(ctx, r.operatorID, strings.Join(lines, "\n"))
	return nil
}

func (r *Relay) removeKeyword(ctx context.Context, args string) error {
	keyword := strings.TrimSpace(args)
	if keyword == "" {
		r.notify(ctx, r.operatorID, "Usage: /rmkw <keyword>")
		return nil
	}

	err := r.filter.Remove(ctx, keyword)
	switch {
	case errors.Is(err, model.ErrNotFound):
		r.notify(ctx, r.operatorID, fmt.Sprintf("Keyword not found: %s", Normalize(keyword)))
	case errors.Is(err, model.ErrInvalidInput):
		r.notify(ctx, r.operatorID, "Usage: /rmkw <keyword>")
	case err != nil:
		return err
	default:
		r.notify(ctx, r.operatorID, fmt.Sprintf("🗑 Removed: %s", Normalize(keyword)))
	}
	return nil
}

func (r *Relay) listKeywords(ctx context.Context) error {
	keywords, err := r.filter.All(ctx)
	if err != nil {
		return err
	}

	if len(keywords) == 0 {
		r.notify(ctx, r.operatorID, "No blocked keywords.")
		return nil
	}

	lines := make([]string, 0, len(keywords)+1)
	lines = append(lines, fmt.Sprintf("🔒 Blocked keywords (%d):", len(keywords)))
	for _, kw := range keywords {
		lines = append(lines, fmt.Sprintf("• %s", kw.Keyword))
	}
	r.notify(ctx, r.operatorID, strings.Join(lines, "\n"))
	return nil
}

func (r *Relay) listBlocked(ctx context.Context) error {
	page, err := r.admin.ListUsers(ctx, model.ListUsersParams{Page: 1, PerPage: 50, BlockedOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list blocked users: %w", err)
	}

	if page.Total == 0 {
		r.notify(ctx, r.operatorID, "No blocked users.")
		return nil
	}

	lines := make([]string, 0, len(page.Users)+1)
	lines = append(lines, fmt.Sprintf("🚫 Blocked users (%d):", page.Total))
	for _, u := range page.Users {
		lines = append(lines, fmt.Sprintf("• %s", describeUser(u)))
	}
	if page.TotalPages > 1 {
		lines = append(lines, fmt.Sprintf("…and %d more.", page.Total-len(page.Users)))
	}
	r.notify(ctx, r.operatorID, strings.Join(lines, "\n"))
	return nil
}

// userFromReply resolves the target user of a reply-scoped operator command.
// A false return means the outcome was already reported to the operator.
func (r *Relay) userFromReply(ctx context.Context, cmd model.OperatorCommand) (model.User, bool) {
	if cmd.Reply == nil {
		r.notify(ctx, r.operatorID, fmt.Sprintf("/%s must be sent as a reply to a forwarded message.", cmd.Command))
		return model.User{}, false
	}

	targetID, err := r.router.ResolveReplyTarget(ctx, *cmd.Reply)
	if errors.Is(err, model.ErrNotFound) {
		r.notify(ctx, r.operatorID, "Could not identify the target user for this reply.")
		return model.User{}, false
	}
	if err != nil {
		r.logger.Error("Relay: failed to resolve reply target", "error", err)
		r.notify(ctx, r.operatorID, "Could not identify the target user for this reply.")
		return model.User{}, false
	}

	user, err := r.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.notify(ctx, r.operatorID, fmt.Sprintf("User %d not found.", targetID))
			return model.User{}, false
		}
		r.logger.Error("Relay: failed to get user", "user_id", targetID, "error", err)
		r.notify(ctx, r.operatorID, fmt.Sprintf("Failed to load user %d.", targetID))
		return model.User{}, false
	}

	return user, true
}

func (r *Relay) welcomeText(ctx context.Context, lang string) string {
	code := "en"
	if isZH(lang) {
		code = "zh"
	}

	welcome, err := r.welcomes.WelcomeByLang(ctx, code)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			r.logger.Error("Relay: failed to load welcome message", "lang", code, "error", err)
		}
		return defaultWelcome(lang)
	}
	return welcome.Content
}

// notify sends a best-effort service message; delivery failures are logged
// and never propagated.
func (r *Relay) notify(ctx context.Context, chatID int64, text string) {
	if err := r.transport.SendMessage(ctx, chatID, text); err != nil {
		r.logger.Error("Relay: failed to send notice", "chat_id", chatID, "error", err)
	}
}

func truncateText(text string) *string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) > maxRecordedTextRunes {
		text = string(runes[:maxRecordedTextRunes]) + "..."
	}
	return &text
}

func describeUser(u model.User) string {
	return fmt.Sprintf("%d (%s, %s)", u.ID, displayUsername(u.Username), displayName(u))
}

func displayUsername(username string) string {
	if username == "" {
		return "no username"
	}
	return "@" + username
}

func displayName(u model.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "unnamed"
	}
	return name
}
