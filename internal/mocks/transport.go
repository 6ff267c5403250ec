package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/anonrelay-server/internal/model"
)

// Transport is a mock of model.Transport.
type Transport struct {
	mock.Mock
}

func (m *Transport) SendMessage(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

func (m *Transport) SendOptions(ctx context.Context, chatID int64, text string, options []model.Option) error {
	args := m.Called(ctx, chatID, text, options)
	return args.Error(0)
}

func (m *Transport) SendImage(ctx context.Context, chatID int64, caption string, png []byte) error {
	args := m.Called(ctx, chatID, caption, png)
	return args.Error(0)
}

func (m *Transport) ForwardToOperator(ctx context.Context, fromChatID, messageID int64) (int64, error) {
	args := m.Called(ctx, fromChatID, messageID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Transport) CopyToUser(ctx context.Context, userID, fromChatID, messageID int64) error {
	args := m.Called(ctx, userID, fromChatID, messageID)
	return args.Error(0)
}

// Storage is a mock of model.Storage.
type Storage struct {
	mock.Mock
}

func (m *Storage) Upload(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

func (m *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Storage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *Storage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
