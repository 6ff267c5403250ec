package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/anonrelay-server/internal/mocks"
	"github.com/dtroode/anonrelay-server/internal/model"
	"github.com/dtroode/anonrelay-server/internal/repository/memory"
	"github.com/dtroode/anonrelay-server/internal/testutil"
)

const testOperatorID = int64(999)

type relayDeps struct {
	users      *mocks.UserStore
	keywords   *mocks.KeywordStore
	forwards   *mocks.ForwardStore
	messages   *mocks.SentMessageStore
	settings   *mocks.SettingsStore
	welcomes   *mocks.WelcomeStore
	transport  *mocks.Transport
	challenges *memory.ChallengeStore
}

func newRelayDeps() *relayDeps {
	return &relayDeps{
		users:      &mocks.UserStore{},
		keywords:   &mocks.KeywordStore{},
		forwards:   &mocks.ForwardStore{},
		messages:   &mocks.SentMessageStore{},
		settings:   &mocks.SettingsStore{},
		welcomes:   &mocks.WelcomeStore{},
		transport:  &mocks.Transport{},
		challenges: memory.NewChallengeStore(),
	}
}

func newTestRelay(d *relayDeps) *Relay {
	log := testutil.MakeNoopLogger()
	filter := NewKeywordFilter(d.keywords, log)
	engine := NewVerificationEngine(d.users, d.settings, d.challenges, nil, log)
	router := NewRelayRouter(d.forwards, log)
	admin := NewAdmin(d.users, d.keywords, filter, d.messages, d.settings, d.transport, log)
	return NewRelay(d.users, filter, engine, router, admin, d.messages, d.welcomes, d.challenges, d.transport, testOperatorID, log)
}

func profile(id int64) model.UserProfile {
	return model.UserProfile{ID: id, Username: "alice", FirstName: "Alice", LanguageCode: "en"}
}

func verifiedUser(id int64) model.User {
	return model.User{ID: id, Username: "alice", FirstName: "Alice", LanguageCode: "en", Verified: true}
}

func TestRelay_HandleUserMessage_BlockedUserNeverForwarded(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	user := verifiedUser(7)
	user.Blocked = true
	d.users.On("Upsert", mock.Anything, profile(7)).Return(user, nil)
	d.transport.On("SendMessage", mock.Anything, int64(7), mock.Anything).Return(nil)

	r := newTestRelay(d)

	err := r.HandleUserMessage(ctx, model.InboundMessage{MessageID: 1, From: profile(7), Text: "hello"})
	require.NoError(t, err)
	d.transport.AssertNotCalled(t, "ForwardToOperator", mock.Anything, mock.Anything, mock.Anything)
	d.forwards.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_HandleUserMessage_KeywordIntercepted(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.users.On("Upsert", mock.Anything, profile(7)).Return(verifiedUser(7), nil)
	d.keywords.On("ListAll", mock.Anything).Return([]model.BlockedKeyword{{ID: 1, Keyword: "casino"}}, nil)
	d.transport.On("SendMessage", mock.Anything, int64(7), mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "casino")
	})).Return(nil)
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "casino")
	})).Return(nil)

	r := newTestRelay(d)

	err := r.HandleUserMessage(ctx, model.InboundMessage{MessageID: 1, From: profile(7), Text: "Visit my CASINO"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
	d.transport.AssertNotCalled(t, "ForwardToOperator", mock.Anything, mock.Anything, mock.Anything)
	d.forwards.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_HandleUserMessage_ForwardHappyPath(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.users.On("Upsert", mock.Anything, profile(7)).Return(verifiedUser(7), nil)
	d.keywords.On("ListAll", mock.Anything).Return([]model.BlockedKeyword{}, nil)
	d.transport.On("ForwardToOperator", mock.Anything, int64(7), int64(1234)).Return(int64(555), nil)
	d.forwards.On("Record", mock.Anything, int64(555), int64(7), mock.Anything).Return(int64(0), false, nil)
	d.messages.On("Append", mock.Anything, mock.MatchedBy(func(msg model.SentMessage) bool {
		return msg.UserID == 7 && msg.Text != nil && *msg.Text == "hello operator"
	})).Return(model.SentMessage{ID: 1}, nil)

	r := newTestRelay(d)

	err := r.HandleUserMessage(ctx, model.InboundMessage{MessageID: 1234, From: profile(7), Text: "hello operator"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
	d.forwards.AssertExpectations(t)
	d.messages.AssertExpectations(t)
}

func TestRelay_HandleUserMessage_RecordedTextTruncated(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.users.On("Upsert", mock.Anything, profile(7)).Return(verifiedUser(7), nil)
	d.keywords.On("ListAll", mock.Anything).Return([]model.BlockedKeyword{}, nil)
	d.transport.On("ForwardToOperator", mock.Anything, int64(7), int64(1)).Return(int64(555), nil)
	d.forwards.On("Record", mock.Anything, int64(555), int64(7), mock.Anything).Return(int64(0), false, nil)
	d.messages.On("Append", mock.Anything, mock.MatchedBy(func(msg model.SentMessage) bool {
		runes := []rune(*msg.Text)
		return len(runes) == maxRecordedTextRunes+3 && strings.HasSuffix(*msg.Text, "...")
	})).Return(model.SentMessage{ID: 1}, nil)

	r := newTestRelay(d)

	long := strings.Repeat("语", maxRecordedTextRunes+100)
	err := r.HandleUserMessage(ctx, model.InboundMessage{MessageID: 1, From: profile(7), Text: long})
	require.NoError(t, err)
	d.messages.AssertExpectations(t)
}

func TestRelay_HandleUserMessage_UnverifiedGetsChallenge(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	user := verifiedUser(7)
	user.Verified = false
	d.users.On("Upsert", mock.Anything, profile(7)).Return(user, nil)
	d.settings.On("VerificationSettings", mock.Anything).
		Return(model.VerificationSettings{Enabled: true, Kind: model.ChallengeSimple, Difficulty: model.DifficultyEasy}, nil)
	d.transport.On("SendOptions", mock.Anything, int64(7), mock.Anything, mock.MatchedBy(func(options []model.Option) bool {
		return len(options) == 1 && strings.HasPrefix(options[0].Data, callbackVerifyPrefix)
	})).Return(nil)

	r := newTestRelay(d)

	err := r.HandleUserMessage(ctx, model.InboundMessage{MessageID: 1, From: profile(7), Text: "hello"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
	d.transport.AssertNotCalled(t, "ForwardToOperator", mock.Anything, mock.Anything, mock.Anything)

	_, ok := d.challenges.Get(7)
	assert.True(t, ok)
}

func TestRelay_HandleUserMessage_ImageCodeFreeTextPrecedence(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	user := verifiedUser(7)
	user.Verified = false
	d.users.On("Upsert", mock.Anything, profile(7)).Return(user, nil)
	d.users.On("SetVerified", mock.Anything, int64(7), true).Return(nil)
	d.transport.On("SendMessage", mock.Anything, int64(7), verifiedNotice("en")).Return(nil)

	now := time.Now()
	d.challenges.Put(model.Challenge{
		ID:        uuid.New(),
		UserID:    7,
		Kind:      model.ChallengeImageCode,
		Answer:    "AB12",
		IssuedAt:  now,
		ExpiresAt: now.Add(model.SolvedChallengeTTL),
	})

	r := newTestRelay(d)

	// free text while an image challenge is live is an answer, not a message
	err := r.HandleUserMessage(ctx, model.InboundMessage{MessageID: 1, From: profile(7), Text: "ab12"})
	require.NoError(t, err)
	d.users.AssertExpectations(t)
	d.transport.AssertNotCalled(t, "ForwardToOperator", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_HandleUserMessage_ForwardFailureReported(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.users.On("Upsert", mock.Anything, profile(7)).Return(verifiedUser(7), nil)
	d.keywords.On("ListAll", mock.Anything).Return([]model.BlockedKeyword{}, nil)
	d.transport.On("ForwardToOperator", mock.Anything, int64(7), int64(1)).Return(int64(0), assert.AnError)
	d.transport.On("SendMessage", mock.Anything, int64(7), forwardFailedNotice("en")).Return(nil)

	r := newTestRelay(d)

	err := r.HandleUserMessage(ctx, model.InboundMessage{MessageID: 1, From: profile(7), Text: "hello"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
	d.forwards.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestRelay_HandleCallback_SimpleVerify(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	user := verifiedUser(7)
	user.Verified = false
	d.users.On("Upsert", mock.Anything, profile(7)).Return(user, nil)
	d.users.On("SetVerified", mock.Anything, int64(7), true).Return(nil)
	d.transport.On("SendMessage", mock.Anything, int64(7), verifiedNotice("en")).Return(nil)

	now := time.Now()
	d.challenges.Put(model.Challenge{
		ID:        uuid.New(),
		UserID:    7,
		Kind:      model.ChallengeSimple,
		Answer:    "tok4242",
		IssuedAt:  now,
		ExpiresAt: now.Add(model.SimpleChallengeTTL),
	})

	r := newTestRelay(d)

	err := r.HandleCallback(ctx, model.CallbackEvent{From: profile(7), Data: "verify_tok4242"})
	require.NoError(t, err)
	d.users.AssertExpectations(t)
	d.transport.AssertExpectations(t)
}

func TestRelay_HandleCallback_WrongArithmeticAnswerReissues(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	user := verifiedUser(7)
	user.Verified = false
	d.users.On("Upsert", mock.Anything, profile(7)).Return(user, nil)
	d.transport.On("SendMessage", mock.Anything, int64(7), wrongAnswerNotice("en")).Return(nil)
	d.settings.On("VerificationSettings", mock.Anything).
		Return(model.VerificationSettings{Enabled: true, Kind: model.ChallengeArithmetic, Difficulty: model.DifficultyEasy}, nil)
	d.transport.On("SendOptions", mock.Anything, int64(7), mock.Anything, mock.Anything).Return(nil)

	now := time.Now()
	originalID := uuid.New()
	d.challenges.Put(model.Challenge{
		ID:        originalID,
		UserID:    7,
		Kind:      model.ChallengeArithmetic,
		Answer:    "7",
		Options:   []string{"5", "6", "7", "8"},
		IssuedAt:  now,
		ExpiresAt: now.Add(model.SolvedChallengeTTL),
	})

	r := newTestRelay(d)

	err := r.HandleCallback(ctx, model.CallbackEvent{From: profile(7), Data: "answer_8"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
	d.users.AssertNotCalled(t, "SetVerified", mock.Anything, mock.Anything, mock.Anything)

	// a fresh challenge replaced the consumed one
	ch, ok := d.challenges.Get(7)
	require.True(t, ok)
	assert.NotEqual(t, originalID, ch.ID)
}

func TestRelay_HandleOperatorReply_RoutedToUser(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.forwards.On("Resolve", mock.Anything, int64(100)).Return(int64(42), nil)
	d.transport.On("CopyToUser", mock.Anything, int64(42), testOperatorID, int64(200)).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorReply(ctx, model.OperatorReply{MessageID: 200, RepliedMessageID: 100})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
}

func TestRelay_HandleOperatorReply_UnknownTarget(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.forwards.On("Resolve", mock.Anything, mock.Anything).Return(int64(0), model.ErrNotFound)
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.Anything).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorReply(ctx, model.OperatorReply{MessageID: 200, RepliedMessageID: 100})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
	d.transport.AssertNotCalled(t, "CopyToUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_HandleStart_SendsWelcomeByLanguage(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	p := model.UserProfile{ID: 7, LanguageCode: "zh-hans"}
	user := model.User{ID: 7, LanguageCode: "zh-hans", Verified: true}
	d.users.On("Upsert", mock.Anything, p).Return(user, nil)
	d.welcomes.On("WelcomeByLang", mock.Anything, "zh").
		Return(model.WelcomeMessage{Lang: "zh", Content: "你好"}, nil)
	d.transport.On("SendMessage", mock.Anything, int64(7), "你好").Return(nil)

	r := newTestRelay(d)

	err := r.HandleStart(ctx, model.InboundMessage{MessageID: 1, From: p, Text: "/start"})
	require.NoError(t, err)
	d.welcomes.AssertExpectations(t)
	d.transport.AssertExpectations(t)
	d.transport.AssertNotCalled(t, "ForwardToOperator", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_HandleStart_BlockedUserStillNotified(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	user := verifiedUser(7)
	user.Blocked = true
	d.users.On("Upsert", mock.Anything, profile(7)).Return(user, nil)
	d.welcomes.On("WelcomeByLang", mock.Anything, "en").
		Return(model.WelcomeMessage{Lang: "en", Content: "Welcome!"}, nil)
	d.transport.On("SendMessage", mock.Anything, int64(7), "Welcome!").Return(nil)
	d.transport.On("SendMessage", mock.Anything, int64(7), blockedNotice("en")).Return(nil)

	r := newTestRelay(d)

	err := r.HandleStart(ctx, model.InboundMessage{MessageID: 1, From: profile(7), Text: "/start"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
	d.transport.AssertNotCalled(t, "SendOptions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_HandleStart_FallbackWelcome(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.users.On("Upsert", mock.Anything, profile(7)).Return(verifiedUser(7), nil)
	d.welcomes.On("WelcomeByLang", mock.Anything, "en").
		Return(model.WelcomeMessage{}, model.ErrNotFound)
	d.transport.On("SendMessage", mock.Anything, int64(7), defaultWelcome("en")).Return(nil)

	r := newTestRelay(d)

	err := r.HandleStart(ctx, model.InboundMessage{MessageID: 1, From: profile(7), Text: "/start"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
}

func TestRelay_HandleOperatorCommand_AddKeywords(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.keywords.On("Add", mock.Anything, "spam", mock.Anything).
		Return(model.BlockedKeyword{ID: 1, Keyword: "spam"}, true, nil)
	d.keywords.On("Add", mock.Anything, "casino", mock.Anything).
		Return(model.BlockedKeyword{ID: 2, Keyword: "casino"}, false, nil)
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "spam") && strings.Contains(text, "casino")
	})).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorCommand(ctx, model.OperatorCommand{Command: "addkw", Args: "spam casino"})
	require.NoError(t, err)
	d.keywords.AssertExpectations(t)
	d.transport.AssertExpectations(t)
}

func TestRelay_HandleOperatorCommand_AddKeywords_Usage(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.MatchedBy(func(text string) bool {
		return strings.HasPrefix(text, "Usage:")
	})).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorCommand(ctx, model.OperatorCommand{Command: "addkw", Args: "  "})
	require.NoError(t, err)
	d.keywords.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_HandleOperatorCommand_ListKeywords(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.keywords.On("ListAll", mock.Anything).Return([]model.BlockedKeyword{
		{ID: 1, Keyword: "spam"},
		{ID: 2, Keyword: "casino"},
	}, nil)
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "spam") && strings.Contains(text, "casino")
	})).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorCommand(ctx, model.OperatorCommand{Command: "listkw_all"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
}

func TestRelay_HandleOperatorCommand_BlockByReply(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	target := verifiedUser(42)
	d.forwards.On("Resolve", mock.Anything, int64(100)).Return(int64(42), nil)
	d.users.On("GetByID", mock.Anything, int64(42)).Return(target, nil)
	d.users.On("SetBlocked", mock.Anything, int64(42), true).Return(nil)
	d.transport.On("SendMessage", mock.Anything, int64(42), blockedNotice("en")).Return(nil)
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.Anything).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorCommand(ctx, model.OperatorCommand{
		Command: "block",
		Reply:   &model.OperatorReply{MessageID: 200, RepliedMessageID: 100},
	})
	require.NoError(t, err)
	d.users.AssertExpectations(t)
	d.transport.AssertExpectations(t)
}

func TestRelay_HandleOperatorCommand_BlockWithoutReply(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.Anything).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorCommand(ctx, model.OperatorCommand{Command: "block"})
	require.NoError(t, err)
	d.users.AssertNotCalled(t, "SetBlocked", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_HandleOperatorCommand_ListBlocked(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	blocked := verifiedUser(42)
	blocked.Blocked = true
	d.users.On("List", mock.Anything, mock.MatchedBy(func(params model.ListUsersParams) bool {
		return params.BlockedOnly
	})).Return(model.UserPage{Users: []model.User{blocked}, Total: 1, Page: 1, PerPage: 50, TotalPages: 1}, nil)
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "42")
	})).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorCommand(ctx, model.OperatorCommand{Command: "listblock_all"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
}

func TestRelay_HandleOperatorCommand_Unknown(t *testing.T) {
	ctx := context.Background()
	d := newRelayDeps()
	d.transport.On("SendMessage", mock.Anything, testOperatorID, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "frobnicate")
	})).Return(nil)

	r := newTestRelay(d)

	err := r.HandleOperatorCommand(ctx, model.OperatorCommand{Command: "frobnicate"})
	require.NoError(t, err)
	d.transport.AssertExpectations(t)
}

func TestTruncateText(t *testing.T) {
	assert.Nil(t, truncateText(""))

	short := truncateText("hello")
	require.NotNil(t, short)
	assert.Equal(t, "hello", *short)

	long := truncateText(strings.Repeat("a", maxRecordedTextRunes+1))
	require.NotNil(t, long)
	assert.Equal(t, maxRecordedTextRunes+3, len([]rune(*long)))
	assert.True(t, strings.HasSuffix(*long, "..."))
}
