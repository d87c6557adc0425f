package mocks

import (
	"context"
	"time"

	"docvault/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) UploadObject(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	args := m.Called(ctx, key, data, contentType)
	if f, ok := args.Get(0).(func(context.Context, string, []byte, string) storage.UploadResult); ok {
		return f(ctx, key, data, contentType), args.Error(1)
	}
	return args.Get(0).(storage.UploadResult), args.Error(1)
}

func (m *MockProvider) GetSignedURL(ctx context.Context, key string, expiresIn time.Duration, method string) (string, error) {
	args := m.Called(ctx, key, expiresIn, method)
	return args.String(0), args.Error(1)
}
