package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvault/internal/errs"
	"docvault/internal/model"
	repoMocks "docvault/internal/repository/mocks"
	"docvault/internal/scan"
	"docvault/internal/storage"
	storeMocks "docvault/internal/storage/mocks"
	"docvault/internal/thumbnail"
)

func TestScenarios(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	front := pngBytes(t, 10, 10, 10)

	// A: one small image, public photo.
	recs := f.upload(t, owner, MetadataInput{Title: "Front", Type: model.TypePhoto, AccessLevel: model.AccessPublic},
		FileUpload{FileName: "front.png", ContentType: "image/png", Data: front})
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, 1, rec.CurrentVersion)
	require.Len(t, rec.Versions, 1)
	v1 := rec.Versions[0]
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, storage.Checksum(front), v1.Checksum)
	assert.Equal(t, "documents/doc-001/v1/front.png", v1.StorageKey)
	assert.Equal(t, "documents/doc-001/v1/thumbnails/front_thumb.png", v1.ThumbnailKey)
	_, thumbType, ok := f.store.Object(v1.ThumbnailKey)
	require.True(t, ok)
	assert.Equal(t, "image/png", thumbType)

	// B: a second version with different bytes.
	back := pngBytes(t, 12, 12, 200)
	rec, err := f.svc.AddDocumentVersion(ctx, rec.ID, FileUpload{FileName: "front.png", ContentType: "image/png", Data: back}, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.CurrentVersion)
	require.Len(t, rec.Versions, 2)
	assert.Equal(t, v1, rec.Versions[0])
	stored, _, ok := f.store.Object(v1.StorageKey)
	require.True(t, ok)
	assert.Equal(t, front, stored)

	// C: version 1 stays addressable after version 2 exists.
	dl, err := f.svc.GetDownloadURL(ctx, rec.ID, intPtr(1), stranger)
	require.NoError(t, err)
	assert.Equal(t, 1, dl.Version)
	key, method, err := f.store.VerifySignedURL(dl.URL, testNow)
	require.NoError(t, err)
	assert.Equal(t, v1.StorageKey, key)
	assert.NotEqual(t, rec.Versions[1].StorageKey, key)
	assert.Equal(t, http.MethodGet, method)
}

func TestChecksumRoundTrip(t *testing.T) {
	f := newFixture(t)
	files := []FileUpload{
		pdfFile("contract.pdf", "terms"),
		{FileName: "notes.txt", ContentType: "text/plain", Data: []byte("gutter needs repair")},
	}
	recs := f.upload(t, owner, MetadataInput{Type: model.TypeContract}, files...)
	require.Len(t, recs, 2)

	for i, rec := range recs {
		v, ok := rec.Current()
		require.True(t, ok)
		data, _, ok := f.store.Object(v.StorageKey)
		require.True(t, ok)
		assert.Equal(t, files[i].Data, data)
		assert.Equal(t, storage.Checksum(data), v.Checksum)
		assert.Equal(t, int64(len(data)), v.Size)
	}
	assert.Equal(t, "contract.pdf", recs[0].Metadata.Title)
	assert.Equal(t, "notes.txt", recs[1].Metadata.Title)
}

func TestVersionMonotonicity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.upload(t, owner, MetadataInput{}, pdfFile("a.pdf", "v1"))[0]

	for i := 2; i <= 5; i++ {
		var err error
		rec, err = f.svc.AddDocumentVersion(ctx, rec.ID, pdfFile("a.pdf", fmt.Sprintf("v%d", i)), owner)
		require.NoError(t, err)
		assert.Equal(t, i, rec.CurrentVersion)
	}
	for i, v := range rec.Versions {
		assert.Equal(t, i+1, v.Version)
		assert.Equal(t, fmt.Sprintf("documents/%s/v%d/a.pdf", rec.ID, i+1), v.StorageKey)
	}
	assert.True(t, rec.UpdatedAt.After(rec.CreatedAt))
}

func TestConcurrentVersionAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.upload(t, owner, MetadataInput{}, pdfFile("a.pdf", "v1"))[0]

	const writers = 20
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.AddDocumentVersion(ctx, rec.ID, pdfFile("a.pdf", fmt.Sprintf("writer %d", i)), owner)
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	got, err := f.svc.GetDocument(ctx, rec.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, writers+1, got.CurrentVersion)
	keys := make(map[string]struct{})
	for i, v := range got.Versions {
		assert.Equal(t, i+1, v.Version)
		keys[v.StorageKey] = struct{}{}
	}
	assert.Len(t, keys, writers+1)
}

func TestAccessEnforcement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	docs := map[model.AccessLevel]*model.DocumentRecord{}
	for _, lvl := range []model.AccessLevel{model.AccessPrivate, model.AccessRestricted, model.AccessPublic} {
		docs[lvl] = f.upload(t, owner, MetadataInput{
			AccessLevel:    lvl,
			AllowedUserIDs: []string{buyer.UserID},
			AllowedRoles:   []string{"agent"},
		}, pdfFile("d.pdf", string(lvl)))[0]
	}

	tests := []struct {
		level     model.AccessLevel
		caller    model.AccessContext
		wantRead  bool
		wantWrite bool
	}{
		{model.AccessPrivate, owner, true, true},
		{model.AccessPrivate, agent, false, false},
		{model.AccessPrivate, buyer, false, false},
		{model.AccessPrivate, stranger, false, false},
		{model.AccessRestricted, owner, true, true},
		{model.AccessRestricted, agent, true, true},
		{model.AccessRestricted, buyer, true, false},
		{model.AccessRestricted, stranger, false, false},
		{model.AccessPublic, owner, true, true},
		{model.AccessPublic, agent, true, false},
		{model.AccessPublic, buyer, true, false},
		{model.AccessPublic, stranger, true, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.level, tt.caller.UserID), func(t *testing.T) {
			id := docs[tt.level].ID

			_, err := f.svc.GetDocument(ctx, id, tt.caller)
			_, urlErr := f.svc.GetDownloadURL(ctx, id, nil, tt.caller)
			if tt.wantRead {
				assert.NoError(t, err)
				assert.NoError(t, urlErr)
			} else {
				assert.ErrorIs(t, err, errs.Forbidden)
				assert.ErrorIs(t, urlErr, errs.Forbidden)
			}

			_, err = f.svc.UpdateMetadata(ctx, id, MetadataUpdate{Description: strPtr("checked")}, tt.caller)
			if tt.wantWrite {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errs.Forbidden)
			}
		})
	}

	t.Run("listing hides unreadable documents", func(t *testing.T) {
		res, err := f.svc.ListDocuments(ctx, model.DocumentFilter{}, stranger)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Equal(t, docs[model.AccessPublic].ID, res.Items[0].ID)

		res, err = f.svc.ListDocuments(ctx, model.DocumentFilter{}, buyer)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
	})

	t.Run("role holder cannot take over a private document", func(t *testing.T) {
		id := docs[model.AccessPrivate].ID

		_, err := f.svc.AddDocumentVersion(ctx, id, pdfFile("x.pdf", "x"), agent)
		assert.ErrorIs(t, err, errs.Forbidden)

		public := model.AccessPublic
		_, err = f.svc.UpdateMetadata(ctx, id, MetadataUpdate{AccessLevel: &public, OwnerOverride: strPtr(agent.UserID)}, agent)
		assert.ErrorIs(t, err, errs.Forbidden)

		_, err = f.svc.GetDocument(ctx, id, stranger)
		assert.ErrorIs(t, err, errs.Forbidden)
		rec, err := f.svc.GetDocument(ctx, id, owner)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.CurrentVersion)
		assert.Equal(t, owner.UserID, rec.Metadata.UploadedBy)
		assert.Equal(t, model.AccessPrivate, rec.Metadata.AccessLevel)
	})

	t.Run("stranger cannot add versions", func(t *testing.T) {
		_, err := f.svc.AddDocumentVersion(ctx, docs[model.AccessPublic].ID, pdfFile("x.pdf", "x"), stranger)
		assert.ErrorIs(t, err, errs.Forbidden)
		rec, err := f.svc.GetDocument(ctx, docs[model.AccessPublic].ID, owner)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.CurrentVersion)
	})
}

func TestUploadDocuments_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		files     []FileUpload
		input     MetadataInput
		ac        model.AccessContext
		wantField string
		malicious bool
	}{
		{name: "no caller", files: []FileUpload{pdfFile("a.pdf", "x")}, ac: model.AccessContext{}, wantField: "user_id"},
		{name: "no files", ac: owner, wantField: "files"},
		{name: "empty file", files: []FileUpload{{FileName: "a.pdf", ContentType: "application/pdf"}}, ac: owner, wantField: "file"},
		{
			name:      "disallowed type",
			files:     []FileUpload{{FileName: "run.sh", ContentType: "application/x-sh", Data: []byte("#!/bin/sh")}},
			ac:        owner,
			wantField: "file",
		},
		{
			name:      "oversize",
			files:     []FileUpload{{FileName: "big.txt", ContentType: "text/plain", Data: make([]byte, 1<<20+1)}},
			ac:        owner,
			wantField: "file",
		},
		{
			name:      "malicious",
			files:     []FileUpload{{FileName: "eicar.txt", ContentType: "text/plain", Data: []byte(scan.EICAR)}},
			ac:        owner,
			wantField: "file",
			malicious: true,
		},
		{
			name:      "one bad file stops the batch",
			files:     []FileUpload{pdfFile("ok.pdf", "fine"), {FileName: "bad.txt", ContentType: "text/plain", Data: []byte("x" + scan.EICAR)}},
			ac:        owner,
			wantField: "file",
			malicious: true,
		},
		{name: "unknown type", files: []FileUpload{pdfFile("a.pdf", "x")}, input: MetadataInput{Type: "DEED"}, ac: owner, wantField: "type"},
		{name: "unknown access level", files: []FileUpload{pdfFile("a.pdf", "x")}, input: MetadataInput{AccessLevel: "SECRET"}, ac: owner, wantField: "access_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			recs, err := f.svc.UploadDocuments(context.Background(), tt.files, tt.input, tt.ac)

			require.Error(t, err)
			assert.Nil(t, recs)
			assert.ErrorIs(t, err, errs.InvalidRequest)
			assert.Equal(t, tt.wantField, errs.FieldOf(err))
			assert.Equal(t, tt.malicious, errors.Is(err, scan.ErrMalicious))

			assert.Zero(t, f.store.Len(), "nothing may reach storage")
			all, err := f.repo.Query(context.Background(), model.DocumentFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestUploadDocuments_ContentTypeSniffing(t *testing.T) {
	f := newFixture(t)
	rec := f.upload(t, owner, MetadataInput{}, FileUpload{FileName: "scan", Data: pngBytes(t, 4, 4, 1)})[0]
	v, _ := rec.Current()
	assert.Equal(t, "image/png", v.MimeType)
	assert.NotEmpty(t, v.ThumbnailKey)
}

func TestUploadDocuments_MetadataDefaults(t *testing.T) {
	f := newFixture(t)
	rec := f.upload(t, owner, MetadataInput{
		Title: "  Deed  ",
		Tags:  []string{"Closing", "closing", " ", "escrow"},
	}, pdfFile("deed.pdf", "x"))[0]

	assert.Equal(t, model.TypeOther, rec.Type)
	assert.Equal(t, model.AccessPrivate, rec.Metadata.AccessLevel)
	assert.Equal(t, "Deed", rec.Metadata.Title)
	assert.Equal(t, []string{"Closing", "escrow"}, rec.Metadata.Tags)
	assert.Equal(t, owner.UserID, rec.Metadata.UploadedBy)
	assert.Equal(t, model.StatusActive, rec.Status)
	assert.Empty(t, rec.Versions[0].ThumbnailKey)
}

type failingThumbnailer struct{}

func (failingThumbnailer) Thumbnail(context.Context, []byte, thumbnail.Spec) (thumbnail.Result, error) {
	return thumbnail.Result{}, errors.New("decoder exploded")
}

func TestUploadDocuments_ThumbnailFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, WithThumbnailer(failingThumbnailer{}))
	rec := f.upload(t, owner, MetadataInput{Type: model.TypePhoto},
		FileUpload{FileName: "porch.png", ContentType: "image/png", Data: pngBytes(t, 8, 8, 3)})[0]

	assert.Empty(t, rec.Versions[0].ThumbnailKey)
	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, 1, f.logs.FilterMessage("thumbnail skipped").Len())
}

func TestUploadDocuments_StorageFailureLeavesNoRecord(t *testing.T) {
	mStore := new(storeMocks.MockProvider)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, testConfig())

	mStore.On("UploadObject", mock.Anything, mock.Anything, mock.Anything, "application/pdf").
		Return(storage.UploadResult{}, errs.Storage("storage.S3.UploadObject", "k", errors.New("unexpected status 503")))

	_, err := svc.UploadDocuments(context.Background(), []FileUpload{pdfFile("a.pdf", "x")}, MetadataInput{}, owner)

	assert.ErrorIs(t, err, errs.StorageFailure)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "service.UploadDocuments", e.Op)
	mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mStore.AssertExpectations(t)
}

func TestUploadDocuments_ChecksumMismatch(t *testing.T) {
	mStore := new(storeMocks.MockProvider)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, testConfig())

	mStore.On("UploadObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.UploadResult{Checksum: "deadbeef"}, nil)

	_, err := svc.UploadDocuments(context.Background(), []FileUpload{pdfFile("a.pdf", "x")}, MetadataInput{}, owner)

	assert.ErrorIs(t, err, errs.StorageFailure)
	assert.Contains(t, err.Error(), "checksum mismatch")
	mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUploadDocuments_RepositoryFailure(t *testing.T) {
	mStore := new(storeMocks.MockProvider)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, testConfig())

	mStore.On("UploadObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, key string, data []byte, _ string) storage.UploadResult {
			return storage.UploadResult{StorageKey: key, Checksum: storage.Checksum(data), Size: int64(len(data))}
		}, nil)
	mRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := svc.UploadDocuments(context.Background(), []FileUpload{pdfFile("a.pdf", "x")}, MetadataInput{}, owner)

	require.Error(t, err)
	assert.Nil(t, errs.KindOf(err))
	assert.Contains(t, err.Error(), "db down")
}

func TestUploadDocuments_PartialBatchReturnsCreated(t *testing.T) {
	mStore := new(storeMocks.MockProvider)
	mRepo := new(repoMocks.MockDocumentRepository)
	ids := []string{"doc-a", "doc-b"}
	next := 0
	svc := NewDocumentService(mStore, mRepo, testConfig(), WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))

	mStore.On("UploadObject", mock.Anything, "documents/doc-a/v1/a.pdf", mock.Anything, "application/pdf").
		Return(func(_ context.Context, key string, data []byte, _ string) storage.UploadResult {
			return storage.UploadResult{StorageKey: key, Checksum: storage.Checksum(data), Size: int64(len(data))}
		}, nil).Once()
	mStore.On("UploadObject", mock.Anything, "documents/doc-b/v1/b.pdf", mock.Anything, "application/pdf").
		Return(storage.UploadResult{}, errs.Storage("storage.S3.UploadObject", "documents/doc-b/v1/b.pdf", errors.New("unexpected status 503"))).Once()
	mRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *model.DocumentRecord) bool { return r.ID == "doc-a" })).
		Return(nil).Once()

	recs, err := svc.UploadDocuments(context.Background(),
		[]FileUpload{pdfFile("a.pdf", "first"), pdfFile("b.pdf", "second")}, MetadataInput{}, owner)

	assert.ErrorIs(t, err, errs.StorageFailure)
	require.Len(t, recs, 1)
	assert.Equal(t, "doc-a", recs[0].ID)
	mStore.AssertExpectations(t)
	mRepo.AssertExpectations(t)
}

func TestAddDocumentVersion_StorageFailureLeavesNoTrace(t *testing.T) {
	mStore := new(storeMocks.MockProvider)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, testConfig())

	rec := &model.DocumentRecord{
		ID:             "doc-1",
		Metadata:       model.DocumentMetadata{UploadedBy: owner.UserID, AccessLevel: model.AccessPrivate},
		Versions:       []model.DocumentVersion{{Version: 1, StorageKey: "documents/doc-1/v1/a.pdf"}},
		CurrentVersion: 1,
	}
	mRepo.On("FindByID", mock.Anything, "doc-1").Return(rec, nil)
	mStore.On("UploadObject", mock.Anything, "documents/doc-1/v2/a.pdf", mock.Anything, "application/pdf").
		Return(storage.UploadResult{}, errs.Storage("storage.S3.UploadObject", "documents/doc-1/v2/a.pdf", errors.New("connection reset")))

	_, err := svc.AddDocumentVersion(context.Background(), "doc-1", pdfFile("a.pdf", "v2"), owner)

	assert.ErrorIs(t, err, errs.StorageFailure)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "doc-1", e.DocumentID)
	assert.Equal(t, 1, rec.CurrentVersion)
	assert.Len(t, rec.Versions, 1)
	mRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestAddDocumentVersion_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.upload(t, owner, MetadataInput{}, pdfFile("a.pdf", "v1"))[0]

	_, err := f.svc.AddDocumentVersion(ctx, "missing", pdfFile("a.pdf", "v2"), owner)
	assert.ErrorIs(t, err, errs.NotFound)

	_, err = f.svc.AddDocumentVersion(ctx, "", pdfFile("a.pdf", "v2"), owner)
	assert.ErrorIs(t, err, errs.InvalidRequest)

	_, err = f.svc.AddDocumentVersion(ctx, rec.ID, FileUpload{FileName: "e.txt", ContentType: "text/plain", Data: []byte(scan.EICAR)}, owner)
	assert.ErrorIs(t, err, errs.InvalidRequest)
	assert.ErrorIs(t, err, scan.ErrMalicious)

	got, err := f.svc.GetDocument(ctx, rec.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentVersion)
	assert.Equal(t, 1, f.store.Len())
}

func TestUpdateMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.upload(t, owner, MetadataInput{
		Title:        "Inspection",
		Description:  "initial",
		Tags:         []string{"roof"},
		AccessLevel:  model.AccessRestricted,
		AllowedRoles: []string{"agent"},
		CustomFields: map[string]string{"inspector": "ACME", "room": "attic"},
	}, pdfFile("i.pdf", "x"))[0]
	before := rec.Versions

	t.Run("partial merge", func(t *testing.T) {
		level := model.AccessRestricted
		got, err := f.svc.UpdateMetadata(ctx, rec.ID, MetadataUpdate{
			Title:        strPtr("Roof inspection"),
			Tags:         &[]string{"Roof", "ROOF", "urgent"},
			AccessLevel:  &level,
			CustomFields: map[string]string{"room": "", "score": "7"},
		}, agent)
		require.NoError(t, err)

		assert.Equal(t, "Roof inspection", got.Metadata.Title)
		assert.Equal(t, "initial", got.Metadata.Description)
		assert.Equal(t, []string{"Roof", "urgent"}, got.Metadata.Tags)
		assert.Equal(t, model.AccessRestricted, got.Metadata.AccessLevel)
		assert.Equal(t, map[string]string{"inspector": "ACME", "score": "7"}, got.Metadata.CustomFields)
		assert.Equal(t, owner.UserID, got.Metadata.UploadedBy)
		assert.Equal(t, before, got.Versions)
		assert.True(t, got.UpdatedAt.After(rec.UpdatedAt))
	})

	t.Run("owner override", func(t *testing.T) {
		got, err := f.svc.UpdateMetadata(ctx, rec.ID, MetadataUpdate{OwnerOverride: strPtr("owner-2")}, owner)
		require.NoError(t, err)
		assert.Equal(t, "owner-2", got.Metadata.UploadedBy)
		assert.Equal(t, 1, f.logs.FilterMessage("document owner overridden").Len())

		// The previous owner is now an ordinary caller.
		_, err = f.svc.GetDocument(ctx, rec.ID, owner)
		assert.ErrorIs(t, err, errs.Forbidden)
	})

	t.Run("validation", func(t *testing.T) {
		bad := model.AccessLevel("HIDDEN")
		_, err := f.svc.UpdateMetadata(ctx, rec.ID, MetadataUpdate{Title: strPtr("  ")}, agent)
		assert.Equal(t, "title", errs.FieldOf(err))
		_, err = f.svc.UpdateMetadata(ctx, rec.ID, MetadataUpdate{AccessLevel: &bad}, agent)
		assert.Equal(t, "access_level", errs.FieldOf(err))
		_, err = f.svc.UpdateMetadata(ctx, rec.ID, MetadataUpdate{OwnerOverride: strPtr("")}, agent)
		assert.Equal(t, "owner_override", errs.FieldOf(err))
		_, err = f.svc.UpdateMetadata(ctx, "missing", MetadataUpdate{}, agent)
		assert.ErrorIs(t, err, errs.NotFound)
	})
}

func TestListDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contract := f.upload(t, owner, MetadataInput{PropertyID: "p1", Type: model.TypeContract, Title: "Sale contract", Tags: []string{"Closing"}},
		pdfFile("c.pdf", "x"))[0]
	photo := f.upload(t, owner, MetadataInput{PropertyID: "p1", Type: model.TypePhoto, Title: "Kitchen", Description: "renovated in spring"},
		FileUpload{FileName: "k.png", ContentType: "image/png", Data: pngBytes(t, 4, 4, 9)})[0]
	other := f.upload(t, owner, MetadataInput{PropertyID: "p2", Type: model.TypeTitle, Title: "Title deed"},
		pdfFile("t.pdf", "x"))[0]

	ids := func(res *DocumentListResult) []string {
		var out []string
		for _, r := range res.Items {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter model.DocumentFilter
		want   []string
		total  int
	}{
		{name: "all newest first", filter: model.DocumentFilter{}, want: []string{other.ID, photo.ID, contract.ID}, total: 3},
		{name: "property", filter: model.DocumentFilter{PropertyID: "p1"}, want: []string{photo.ID, contract.ID}, total: 2},
		{name: "type", filter: model.DocumentFilter{Type: model.TypePhoto}, want: []string{photo.ID}, total: 1},
		{name: "mime", filter: model.DocumentFilter{MimeType: "APPLICATION/PDF"}, want: []string{other.ID, contract.ID}, total: 2},
		{name: "tag ignores case", filter: model.DocumentFilter{Tag: "closing"}, want: []string{contract.ID}, total: 1},
		{name: "search description", filter: model.DocumentFilter{Search: "SPRING"}, want: []string{photo.ID}, total: 1},
		{name: "and-ed filters", filter: model.DocumentFilter{PropertyID: "p2", Type: model.TypePhoto}, want: nil, total: 0},
		{name: "inclusive range", filter: model.DocumentFilter{CreatedFrom: photo.CreatedAt, CreatedTo: photo.CreatedAt}, want: []string{photo.ID}, total: 1},
		{name: "page", filter: model.DocumentFilter{Limit: 1, Offset: 1}, want: []string{photo.ID}, total: 3},
		{name: "offset past end", filter: model.DocumentFilter{Offset: 10}, want: nil, total: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.ListDocuments(ctx, tt.filter, owner)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res))
			assert.Equal(t, tt.total, res.Total)
			assert.NotNil(t, res.Items)
		})
	}

	t.Run("invalid filters", func(t *testing.T) {
		for field, filter := range map[string]model.DocumentFilter{
			"limit":        {Limit: -1},
			"offset":       {Offset: -1},
			"type":         {Type: "DEED"},
			"access_level": {AccessLevel: "SECRET"},
			"created_from": {CreatedFrom: testNow.Add(time.Hour), CreatedTo: testNow},
		} {
			_, err := f.svc.ListDocuments(ctx, filter, owner)
			assert.ErrorIs(t, err, errs.InvalidRequest, field)
			assert.Equal(t, field, errs.FieldOf(err))
		}
	})
}

func TestGetDownloadURL(t *testing.T) {
	f := newFixture(t, WithClock(func() time.Time { return testNow }))
	ctx := context.Background()
	rec := f.upload(t, owner, MetadataInput{}, pdfFile("a.pdf", "x"))[0]

	t.Run("current version by default", func(t *testing.T) {
		dl, err := f.svc.GetDownloadURL(ctx, rec.ID, nil, owner)
		require.NoError(t, err)
		assert.Equal(t, 1, dl.Version)
		assert.Equal(t, testNow.Add(15*time.Minute), dl.ExpiresAt)
		assert.True(t, strings.HasPrefix(dl.URL, "memory://docs/documents/"+rec.ID+"/v1/a.pdf?"))
	})

	t.Run("non-positive version", func(t *testing.T) {
		_, err := f.svc.GetDownloadURL(ctx, rec.ID, intPtr(0), owner)
		assert.ErrorIs(t, err, errs.InvalidRequest)
		assert.Equal(t, "version", errs.FieldOf(err))
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := f.svc.GetDownloadURL(ctx, rec.ID, intPtr(4), owner)
		assert.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := f.svc.GetDownloadURL(ctx, "missing", nil, owner)
		assert.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("no thumbnail for pdf", func(t *testing.T) {
		_, err := f.svc.GetThumbnailURL(ctx, rec.ID, nil, owner)
		assert.ErrorIs(t, err, errs.NotFound)
	})
}

func TestGetThumbnailURL(t *testing.T) {
	f := newFixture(t)
	rec := f.upload(t, owner, MetadataInput{AccessLevel: model.AccessPublic},
		FileUpload{FileName: "yard.png", ContentType: "image/png", Data: pngBytes(t, 64, 16, 4)})[0]

	dl, err := f.svc.GetThumbnailURL(context.Background(), rec.ID, intPtr(1), buyer)
	require.NoError(t, err)
	key, _, err := f.store.VerifySignedURL(dl.URL, testNow)
	require.NoError(t, err)
	assert.Equal(t, rec.Versions[0].ThumbnailKey, key)
}

func TestGetDownloadURL_SigningFailure(t *testing.T) {
	mStore := new(storeMocks.MockProvider)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, testConfig())

	rec := &model.DocumentRecord{
		ID:             "doc-1",
		Metadata:       model.DocumentMetadata{UploadedBy: owner.UserID},
		Versions:       []model.DocumentVersion{{Version: 1, StorageKey: "documents/doc-1/v1/a.pdf"}},
		CurrentVersion: 1,
	}
	mRepo.On("FindByID", mock.Anything, "doc-1").Return(rec, nil)
	mStore.On("GetSignedURL", mock.Anything, "documents/doc-1/v1/a.pdf", 15*time.Minute, http.MethodGet).
		Return("", errors.New("signing key unavailable"))

	_, err := svc.GetDownloadURL(context.Background(), "doc-1", nil, owner)
	assert.ErrorIs(t, err, errs.StorageFailure)
}

func TestRequiresCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	none := model.AccessContext{}

	_, err := f.svc.GetDocument(ctx, "x", none)
	assert.ErrorIs(t, err, errs.InvalidRequest)
	_, err = f.svc.ListDocuments(ctx, model.DocumentFilter{}, none)
	assert.ErrorIs(t, err, errs.InvalidRequest)
	_, err = f.svc.GetDownloadURL(ctx, "x", nil, none)
	assert.ErrorIs(t, err, errs.InvalidRequest)
	_, err = f.svc.UpdateMetadata(ctx, "x", MetadataUpdate{}, none)
	assert.ErrorIs(t, err, errs.InvalidRequest)
	_, err = f.svc.AddDocumentVersion(ctx, "x", pdfFile("a.pdf", "x"), none)
	assert.ErrorIs(t, err, errs.InvalidRequest)
}
