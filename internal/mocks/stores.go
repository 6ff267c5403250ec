// Package mocks contains testify mocks for the model interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/anonrelay-server/internal/model"
)

// UserStore is a mock of model.UserStore.
type UserStore struct {
	mock.Mock
}

func (m *UserStore) Upsert(ctx context.Context, profile model.UserProfile) (model.User, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) GetByID(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) SetVerified(ctx context.Context, id int64, verified bool) error {
	args := m.Called(ctx, id, verified)
	return args.Error(0)
}

func (m *UserStore) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	args := m.Called(ctx, id, blocked)
	return args.Error(0)
}

func (m *UserStore) List(ctx context.Context, params model.ListUsersParams) (model.UserPage, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.UserPage), args.Error(1)
}

func (m *UserStore) Counts(ctx context.Context) (model.UserCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.UserCounts), args.Error(1)
}

// KeywordStore is a mock of model.KeywordStore.
type KeywordStore struct {
	mock.Mock
}

func (m *KeywordStore) Add(ctx context.Context, keyword string, addedAt time.Time) (model.BlockedKeyword, bool, error) {
	args := m.Called(ctx, keyword, addedAt)
	return args.Get(0).(model.BlockedKeyword), args.Bool(1), args.Error(2)
}

func (m *KeywordStore) Remove(ctx context.Context, keyword string) error {
	args := m.Called(ctx, keyword)
	return args.Error(0)
}

func (m *KeywordStore) RemoveByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *KeywordStore) ListAll(ctx context.Context) ([]model.BlockedKeyword, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.BlockedKeyword), args.Error(1)
}

func (m *KeywordStore) List(ctx context.Context, params model.ListKeywordsParams) (model.KeywordPage, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.KeywordPage), args.Error(1)
}

func (m *KeywordStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// ForwardStore is a mock of model.ForwardStore.
type ForwardStore struct {
	mock.Mock
}

func (m *ForwardStore) Record(ctx context.Context, messageID, userID int64, now time.Time) (int64, bool, error) {
	args := m.Called(ctx, messageID, userID, now)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *ForwardStore) Resolve(ctx context.Context, messageID int64) (int64, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(int64), args.Error(1)
}

// SentMessageStore is a mock of model.SentMessageStore.
type SentMessageStore struct {
	mock.Mock
}

func (m *SentMessageStore) Append(ctx context.Context, msg model.SentMessage) (model.SentMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(model.SentMessage), args.Error(1)
}

func (m *SentMessageStore) ListByUser(ctx context.Context, filter model.MessageFilter) (model.MessagePage, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(model.MessagePage), args.Error(1)
}

func (m *SentMessageStore) DailyCounts(ctx context.Context, from time.Time, days int) ([]model.DayCount, error) {
	args := m.Called(ctx, from, days)
	return args.Get(0).([]model.DayCount), args.Error(1)
}

// SettingsStore is a mock of model.SettingsStore.
type SettingsStore struct {
	mock.Mock
}

func (m *SettingsStore) VerificationSettings(ctx context.Context) (model.VerificationSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.VerificationSettings), args.Error(1)
}

func (m *SettingsStore) UpdateVerificationSettings(ctx context.Context, s model.VerificationSettings) (model.VerificationSettings, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(model.VerificationSettings), args.Error(1)
}

// WelcomeStore is a mock of model.WelcomeStore.
type WelcomeStore struct {
	mock.Mock
}

func (m *WelcomeStore) WelcomeByLang(ctx context.Context, lang string) (model.WelcomeMessage, error) {
	args := m.Called(ctx, lang)
	return args.Get(0).(model.WelcomeMessage), args.Error(1)
}
