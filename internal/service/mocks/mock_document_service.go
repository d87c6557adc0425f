package mocks

import (
	"context"

	"docvault/internal/model"
	"docvault/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) UploadDocuments(ctx context.Context, files []service.FileUpload, input service.MetadataInput, ac model.AccessContext) ([]*model.DocumentRecord, error) {
	args := m.Called(ctx, files, input, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentService) AddDocumentVersion(ctx context.Context, id string, file service.FileUpload, ac model.AccessContext) (*model.DocumentRecord, error) {
	args := m.Called(ctx, id, file, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentService) UpdateMetadata(ctx context.Context, id string, upd service.MetadataUpdate, ac model.AccessContext) (*model.DocumentRecord, error) {
	args := m.Called(ctx, id, upd, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentService) GetDocument(ctx context.Context, id string, ac model.AccessContext) (*model.DocumentRecord, error) {
	args := m.Called(ctx, id, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, filter model.DocumentFilter, ac model.AccessContext) (*service.DocumentListResult, error) {
	args := m.Called(ctx, filter, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) GetDownloadURL(ctx context.Context, id string, version *int, ac model.AccessContext) (*service.DownloadURL, error) {
	args := m.Called(ctx, id, version, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DownloadURL), args.Error(1)
}

func (m *MockDocumentService) GetThumbnailURL(ctx context.Context, id string, version *int, ac model.AccessContext) (*service.DownloadURL, error) {
	args := m.Called(ctx, id, version, ac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DownloadURL), args.Error(1)
}
