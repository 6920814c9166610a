package distribution

import (
	"bytes"
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/persistence/database"
	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/persistence/ent"
	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/storage"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/ratelimit"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/workplace"
)

var (
	publisher  = model.Identity{UserID: "pub-1", UserName: "总部", Role: constant.RolePublisher}
	publisher2 = model.Identity{UserID: "pub-2", UserName: "区域经理", Role: constant.RolePublisher}
	memberX    = model.Identity{UserID: "u-x", UserName: "X店员", Role: constant.RoleMember, WorkplaceID: "wp-x"}
	memberY    = model.Identity{UserID: "u-y", UserName: "Y店员", Role: constant.RoleMember, WorkplaceID: "wp-y"}
	memberZ    = model.Identity{UserID: "u-z", UserName: "Z店员", Role: constant.RoleMember, WorkplaceID: "wp-z"}
)

// countingProvider 包装本地存储，记录调用次数并可注入删除失败
type countingProvider struct {
	storage.IStorageProvider
	mu         sync.Mutex
	puts       int
	removes    []string
	failRemove bool
	failPut    bool
}

func (p *countingProvider) Put(ctx context.Context, r io.Reader, name string, opts storage.PutOptions) (*storage.PutResult, error) {
	p.mu.Lock()
	p.puts++
	fail := p.failPut
	p.mu.Unlock()
	if fail {
		return nil, errors.New("bucket unavailable")
	}
	return p.IStorageProvider.Put(ctx, r, name, opts)
}

func (p *countingProvider) Remove(ctx context.Context, fileID string) error {
	p.mu.Lock()
	p.removes = append(p.removes, fileID)
	fail := p.failRemove
	p.mu.Unlock()
	if fail {
		return errors.New("remove timed out")
	}
	return p.IStorageProvider.Remove(ctx, fileID)
}

func (p *countingProvider) putCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.puts
}

func (p *countingProvider) removeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.removes)
}

type fixture struct {
	svc      Service
	impl     *serviceImpl
	repo     repository.DistributionRepository
	provider *countingProvider
	db       *stdsql.DB
}

func newFixture(t *testing.T, limits ratelimit.Limits, opts Options) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, limits, opts, nil)
}

// newFixtureWithRepo 允许用 wrap 包装服务在事务外使用的仓储
func newFixtureWithRepo(t *testing.T, limits ratelimit.Limits, opts Options, wrap func(repository.DistributionRepository) repository.DistributionRepository) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := stdsql.Open("sqlite3", database.SQLiteDSN(filepath.Join(t.TempDir(), "svc.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrationService(db, "sqlite").RunMigrations(ctx))
	_, err = db.ExecContext(ctx, "INSERT INTO workplaces (id, name) VALUES (?, ?), (?, ?)",
		"wp-x", "Downtown Pharmacy", "wp-y", "Airport Pharmacy")
	require.NoError(t, err)

	drv, err := database.NewDriver(db, "sqlite", false)
	require.NoError(t, err)

	local, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	provider := &countingProvider{IStorageProvider: local}
	manager := storage.NewManager(nil)
	manager.Register(provider)

	repo := ent.NewDistributionRepo(drv)
	var svcRepo repository.DistributionRepository = repo
	if wrap != nil {
		svcRepo = wrap(repo)
	}
	svc := NewService(
		svcRepo,
		ent.NewEntTransactionManager(drv),
		manager,
		ratelimit.NewMemoryLimiter(limits),
		workplace.NewService(ent.NewWorkplaceRepo(drv)),
		nil,
		nil,
		opts,
	)
	impl := svc.(*serviceImpl)
	impl.now = func() time.Time { return time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, impl: impl, repo: repo, provider: provider, db: db}
}

func pdfContent(tag string) []byte {
	return []byte("%PDF-1.4\n% " + tag + "\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
}

func pngContent(tag string) []byte {
	header := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return append(header, []byte(tag)...)
}

func (f *fixture) publish(t *testing.T, caller model.Identity, content []byte, mimeType string, targets ...string) *model.DistributionRecord {
	t.Helper()
	rec, err := f.svc.Publish(context.Background(), &PublishRequest{
		Content:      bytes.NewReader(content),
		Filename:     "notice.pdf",
		MimeType:     mimeType,
		Size:         int64(len(content)),
		WorkplaceIDs: targets,
		Category:     constant.CategoryDocument,
		Description:  "月度通知",
	}, caller)
	require.NoError(t, err)
	return rec
}

func drain(t *testing.T, res *DownloadResult) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := res.Stream(context.Background(), &buf)
	require.NoError(t, err)
	require.NoError(t, res.Reader.Close())
	return buf.Bytes()
}

func TestTargetedReadTracking(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	content := pdfContent("scenario-a")
	rec := f.publish(t, publisher, content, "application/pdf", "wp-x", "wp-y")
	assert.Equal(t, "shared/2026/09/"+rec.Hash+".pdf", rec.StorageFileID)

	page, err := f.svc.ListForRecipient(ctx, memberX, RecipientListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.False(t, page.Records[0].ReadFor(memberX.WorkplaceID))
	assert.Equal(t, int64(1), page.UnreadCount)

	res, err := f.svc.Download(ctx, rec.ID, memberX)
	require.NoError(t, err)
	assert.Equal(t, content, drain(t, res))
	assert.Equal(t, "application/pdf", res.MimeType)
	assert.False(t, res.Record.IsRead)

	got, err := f.repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.ReadBy, 1)
	assert.Equal(t, "wp-x", got.ReadBy[0].WorkplaceID)
	assert.Equal(t, "u-x", got.ReadBy[0].ReaderID)
	assert.False(t, got.IsRead)

	res, err = f.svc.Download(ctx, rec.ID, memberY)
	require.NoError(t, err)
	drain(t, res)

	got, err = f.repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, got.ReadBy, 2)
	assert.True(t, got.IsRead)

	page, err = f.svc.ListForRecipient(ctx, memberX, RecipientListOptions{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Zero(t, page.UnreadCount)
}

func TestDedupSharesPhysicalObject(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	content := pngContent("scenario-b")

	first := f.publish(t, publisher, content, "image/png")
	second := f.publish(t, publisher2, content, "image/png")

	assert.Equal(t, 1, f.provider.putCount())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.StorageFileID, second.StorageFileID)
	assert.Equal(t, first.StoragePath, second.StoragePath)
	assert.Equal(t, "pub-1", first.UploadedBy)
	assert.Equal(t, "pub-2", second.UploadedBy)

	_, err := f.svc.DeleteOne(ctx, first.ID, publisher)
	require.NoError(t, err)
	assert.Equal(t, 0, f.provider.removeCount())

	res, err := f.svc.Download(ctx, second.ID, memberZ)
	require.NoError(t, err)
	assert.Equal(t, content, drain(t, res))

	_, err = f.svc.DeleteOne(ctx, second.ID, publisher2)
	require.NoError(t, err)
	assert.Equal(t, 1, f.provider.removeCount())

	_, _, err = f.provider.Open(ctx, first.StorageFileID)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestDedupIgnoresInactiveRecords(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	content := pdfContent("reupload")

	first := f.publish(t, publisher, content, "application/pdf")
	_, err := f.svc.DeleteOne(context.Background(), first.ID, publisher)
	require.NoError(t, err)

	second := f.publish(t, publisher, content, "application/pdf")
	assert.Equal(t, 2, f.provider.putCount())

	res, err := f.svc.Download(context.Background(), second.ID, memberX)
	require.NoError(t, err)
	assert.Equal(t, content, drain(t, res))
}

func TestGlobalRecordReadByAnyWorkplace(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	rec := f.publish(t, publisher, pdfContent("scenario-c"), "application/pdf")
	assert.True(t, rec.IsGlobal())

	for _, m := range []model.Identity{memberX, memberY, memberZ} {
		page, err := f.svc.ListForRecipient(ctx, m, RecipientListOptions{})
		require.NoError(t, err)
		require.Len(t, page.Records, 1, m.WorkplaceID)
		assert.Equal(t, int64(1), page.UnreadCount)
	}

	ack, err := f.svc.AcknowledgeRead(ctx, rec.ID, memberZ)
	require.NoError(t, err)
	assert.True(t, ack.IsRead)

	for _, m := range []model.Identity{memberX, memberY, memberZ} {
		page, err := f.svc.ListForRecipient(ctx, m, RecipientListOptions{})
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		assert.True(t, page.Records[0].ReadFor(m.WorkplaceID))
		assert.Zero(t, page.UnreadCount)
	}
}

func TestAcknowledgeReadIsIdempotent(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	rec := f.publish(t, publisher, pdfContent("idem"), "application/pdf", "wp-x", "wp-y")

	for i := 0; i < 3; i++ {
		got, err := f.svc.AcknowledgeRead(ctx, rec.ID, memberX)
		require.NoError(t, err)
		assert.Len(t, got.ReadBy, 1)
		assert.False(t, got.IsRead)
	}

	other := memberX
	other.UserID = "u-x2"
	got, err := f.svc.AcknowledgeRead(ctx, rec.ID, other)
	require.NoError(t, err)
	require.Len(t, got.ReadBy, 1)
	assert.Equal(t, "u-x", got.ReadBy[0].ReaderID)
}

func TestDeleteAllReclaimsEachObjectOnce(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()

	contents := [][]byte{pdfContent("one"), pdfContent("two"), pdfContent("three")}
	for i := 0; i < 10; i++ {
		f.publish(t, publisher, contents[i%3], "application/pdf", "wp-x")
	}
	require.Equal(t, 3, f.provider.putCount())

	res, err := f.svc.DeleteAll(ctx, publisher)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.DeletedCount)
	assert.Equal(t, 3, res.PhysicalObjectsReclaimed)
	assert.Equal(t, 3, f.provider.removeCount())

	page, err := f.svc.ListForPublisher(ctx, publisher, repository.PublisherListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	again, err := f.svc.DeleteAll(ctx, publisher)
	require.NoError(t, err)
	assert.Zero(t, again.DeletedCount)
	assert.Zero(t, again.PhysicalObjectsReclaimed)
	assert.Equal(t, 3, f.provider.removeCount())
}

func TestRemoveFailureDoesNotFailDelete(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	rec := f.publish(t, publisher, pdfContent("stuck"), "application/pdf")
	f.provider.failRemove = true

	deleted, err := f.svc.DeleteOne(ctx, rec.ID, publisher)
	require.NoError(t, err)
	assert.False(t, deleted.IsActive)
	assert.Equal(t, 1, f.provider.removeCount())

	_, err = f.svc.Get(ctx, rec.ID, memberX)
	assert.ErrorIs(t, err, constant.ErrNotFound)

	_, err = f.svc.DeleteOne(ctx, rec.ID, publisher)
	assert.ErrorIs(t, err, constant.ErrNotFound)

	res, err := f.svc.DeleteAll(ctx, publisher)
	require.NoError(t, err)
	assert.Zero(t, res.DeletedCount)
}

func TestValidationRejectsBeforePersisting(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{MaxUploadSize: 64})
	ctx := context.Background()

	tests := []struct {
		name string
		req  PublishRequest
		rule string
	}{
		{"oversized declared", PublishRequest{Content: bytes.NewReader(make([]byte, 10)), Filename: "a.pdf", MimeType: "application/pdf", Size: 65}, constant.RuleMaxSize},
		{"oversized actual", PublishRequest{Content: bytes.NewReader(bytes.Repeat([]byte("a"), 65)), Filename: "a.txt", MimeType: "text/plain"}, constant.RuleMaxSize},
		{"disallowed mime", PublishRequest{Content: strings.NewReader("<html></html>"), Filename: "a.html", MimeType: "text/html"}, constant.RuleMimeType},
		{"sniffed disallowed", PublishRequest{Content: strings.NewReader("<html><body></body></html>"), Filename: "a.bin", MimeType: "application/octet-stream"}, constant.RuleMimeType},
		{"empty", PublishRequest{Content: strings.NewReader(""), Filename: "a.txt", MimeType: "text/plain"}, constant.RuleEmptyFile},
		{"bad category", PublishRequest{Content: strings.NewReader("hi"), Filename: "a.txt", MimeType: "text/plain", Category: "memo"}, constant.RuleCategory},
		{"size mismatch", PublishRequest{Content: strings.NewReader("hi"), Filename: "a.txt", MimeType: "text/plain", Size: 5}, constant.RuleSizeMismatch},
		{"no filename", PublishRequest{Content: strings.NewReader("hi"), Filename: "../", MimeType: "text/plain"}, constant.RuleFilename},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.Publish(ctx, &req, publisher)
			require.ErrorIs(t, err, constant.ErrValidation)
			var ve *constant.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.rule, ve.Rule)
		})
	}

	assert.Zero(t, f.provider.putCount())
	stats, err := f.svc.Stats(ctx, publisher)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)
}

func TestPublishSniffsUndeclaredMimeType(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	rec, err := f.svc.Publish(context.Background(), &PublishRequest{
		Content:  bytes.NewReader(pngContent("sniff")),
		Filename: "photo",
		Category: constant.CategoryImage,
	}, publisher)
	require.NoError(t, err)
	assert.Equal(t, "image/png", rec.MimeType)
	assert.True(t, strings.HasSuffix(rec.StorageFileID, rec.Hash+".png"))
}

func TestPublishUsesWorkplaceFolder(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})

	rec := f.publish(t, publisher, pdfContent("folder-x"), "application/pdf", "wp-x")
	assert.Equal(t, "Downtown_Pharmacy/2026/09/"+rec.Hash+".pdf", rec.StorageFileID)
	assert.Equal(t, "wp-x", rec.WorkplaceID())

	unknown := f.publish(t, publisher, pdfContent("folder-unknown"), "application/pdf", "wp-404")
	assert.Equal(t, "wp-404/2026/09/"+unknown.Hash+".pdf", unknown.StorageFileID)
}

func TestPublishRateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{UploadsPerWindow: 2}, Options{})
	ctx := context.Background()

	f.publish(t, publisher, pdfContent("r1"), "application/pdf")
	f.publish(t, publisher, pdfContent("r2"), "application/pdf")

	_, err := f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(pdfContent("r3")), Filename: "r3.pdf", MimeType: "application/pdf",
	}, publisher)
	require.ErrorIs(t, err, constant.ErrRateLimited)

	// 其他发布者不受影响
	f.publish(t, publisher2, pdfContent("r4"), "application/pdf")

	stats, err := f.svc.Stats(ctx, publisher)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRecords)
}

func TestPutFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	f.provider.failPut = true

	_, err := f.svc.Publish(context.Background(), &PublishRequest{
		Content: bytes.NewReader(pdfContent("fail")), Filename: "f.pdf", MimeType: "application/pdf",
	}, publisher)
	require.ErrorIs(t, err, constant.ErrStorageBackend)

	stats, err := f.svc.Stats(context.Background(), publisher)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)
}

func TestRoleAndVisibilityChecks(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	rec := f.publish(t, publisher, pdfContent("private"), "application/pdf", "wp-x")

	_, err := f.svc.Publish(ctx, &PublishRequest{Content: strings.NewReader("x"), Filename: "x.txt"}, memberX)
	assert.ErrorIs(t, err, constant.ErrForbidden)
	_, err = f.svc.DeleteOne(ctx, rec.ID, memberX)
	assert.ErrorIs(t, err, constant.ErrForbidden)
	_, err = f.svc.DeleteAll(ctx, memberX)
	assert.ErrorIs(t, err, constant.ErrForbidden)
	_, err = f.svc.Stats(ctx, memberX)
	assert.ErrorIs(t, err, constant.ErrForbidden)
	_, err = f.svc.ListForPublisher(ctx, memberX, repository.PublisherListOptions{})
	assert.ErrorIs(t, err, constant.ErrForbidden)

	_, err = f.svc.Download(ctx, rec.ID, memberY)
	assert.ErrorIs(t, err, constant.ErrForbidden)
	_, err = f.svc.AcknowledgeRead(ctx, rec.ID, memberY)
	assert.ErrorIs(t, err, constant.ErrForbidden)
	_, err = f.svc.Get(ctx, rec.ID+99, memberX)
	assert.ErrorIs(t, err, constant.ErrNotFound)

	page, err := f.svc.ListForRecipient(ctx, memberY, RecipientListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Records)

	// 发布者下载不产生已读记录
	res, err := f.svc.Download(ctx, rec.ID, publisher)
	require.NoError(t, err)
	drain(t, res)
	got, err := f.repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ReadBy)
}

func TestUnreadCountIgnoresPageWindow(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.publish(t, publisher, pdfContent(strings.Repeat("p", i+1)), "application/pdf", "wp-x")
	}
	f.publish(t, publisher, pdfContent("other"), "application/pdf", "wp-y")

	page, err := f.svc.ListForRecipient(ctx, memberX, RecipientListOptions{
		PageQuery: repository.PageQuery{Page: 2, PageSize: 2},
	})
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(5), page.UnreadCount)

	_, err = f.svc.ListForRecipient(ctx, memberX, RecipientListOptions{Category: "memo"})
	assert.ErrorIs(t, err, constant.ErrValidation)
}

func TestStatsCountsDistinctObjects(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	shared := pdfContent("shared")
	f.publish(t, publisher, shared, "application/pdf", "wp-x")
	f.publish(t, publisher, shared, "application/pdf", "wp-y")
	f.publish(t, publisher, pdfContent("global"), "application/pdf")

	stats, err := f.svc.Stats(ctx, publisher)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.StoredObjects)
	assert.Equal(t, int64(1), stats.GlobalRecords)
	assert.Equal(t, int64(2), stats.DistinctRecipientWorkplaces)
	assert.Equal(t, int64(3), stats.ByCategory[string(constant.CategoryDocument)])
	assert.Contains(t, stats.ByCategory, string(constant.CategoryInstruction))
	assert.Equal(t, stats.TotalBytes-int64(len(shared)), stats.StoredBytes)
}

func TestFailedPublishPersistsNothing(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	_, err := f.db.ExecContext(ctx, `CREATE TRIGGER reject_target BEFORE INSERT ON distribution_targets
		WHEN NEW.workplace_id = 'wp-bad'
		BEGIN SELECT RAISE(ABORT, 'workplace rejected'); END`)
	require.NoError(t, err)

	_, err = f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(pdfContent("half")), Filename: "half.pdf", MimeType: "application/pdf",
		WorkplaceIDs: []string{"wp-x", "wp-bad"},
	}, publisher)
	require.Error(t, err)

	var records int
	require.NoError(t, f.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM distribution_records").Scan(&records))
	assert.Zero(t, records)
	var targets int
	require.NoError(t, f.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM distribution_targets").Scan(&targets))
	assert.Zero(t, targets)

	page, err := f.svc.ListForRecipient(ctx, memberX, RecipientListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Records)

	// 已写入的对象随之清理
	require.Equal(t, 1, f.provider.putCount())
	require.Equal(t, 1, f.provider.removeCount())
	_, _, err = f.provider.Open(ctx, f.provider.removes[0])
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestFailedPublishKeepsObjectSharedWithActiveRecord(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()
	content := pdfContent("shared-bytes")
	first := f.publish(t, publisher, content, "application/pdf", "wp-x")

	_, err := f.db.ExecContext(ctx, `CREATE TRIGGER reject_target BEFORE INSERT ON distribution_targets
		WHEN NEW.workplace_id = 'wp-bad'
		BEGIN SELECT RAISE(ABORT, 'workplace rejected'); END`)
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(content), Filename: "again.pdf", MimeType: "application/pdf",
		WorkplaceIDs: []string{"wp-bad"},
	}, publisher)
	require.Error(t, err)

	assert.Zero(t, f.provider.removeCount())
	res, err := f.svc.Download(ctx, first.ID, memberX)
	require.NoError(t, err)
	assert.Equal(t, content, drain(t, res))
}

func TestConcurrentAcknowledgementsMarkRecordRead(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{}, Options{})
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		rec := f.publish(t, publisher, pdfContent(fmt.Sprintf("ack-%d", round)), "application/pdf", "wp-x", "wp-y")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, who := range []model.Identity{memberX, memberY} {
			wg.Add(1)
			go func(i int, who model.Identity) {
				defer wg.Done()
				_, errs[i] = f.svc.AcknowledgeRead(ctx, rec.ID, who)
			}(i, who)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		got, err := f.repo.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Len(t, got.ReadBy, 2)
		assert.True(t, got.IsRead, "round %d", round)
	}
}

// deleteOnLookup 在去重查询返回后立即删除命中的记录，模拟删除与发布交错
type deleteOnLookup struct {
	repository.DistributionRepository
	once   sync.Once
	delete func(id uint)
}

func (r *deleteOnLookup) FindActiveByHash(ctx context.Context, hash string) (*model.DistributionRecord, error) {
	rec, err := r.DistributionRepository.FindActiveByHash(ctx, hash)
	if err == nil && rec != nil {
		r.once.Do(func() { r.delete(rec.ID) })
	}
	return rec, err
}

func TestDeleteBetweenLookupAndReuseRestoresObject(t *testing.T) {
	var hook *deleteOnLookup
	f := newFixtureWithRepo(t, ratelimit.Limits{}, Options{}, func(inner repository.DistributionRepository) repository.DistributionRepository {
		hook = &deleteOnLookup{DistributionRepository: inner}
		return hook
	})
	ctx := context.Background()
	content := pdfContent("raced")

	first, err := f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(content), Filename: "a.pdf", MimeType: "application/pdf",
		WorkplaceIDs: []string{"wp-x"},
	}, publisher)
	require.NoError(t, err)
	hook.delete = func(id uint) {
		_, err := f.svc.DeleteOne(ctx, id, publisher)
		assert.NoError(t, err)
	}

	second, err := f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(content), Filename: "b.pdf", MimeType: "application/pdf",
		WorkplaceIDs: []string{"wp-x"},
	}, publisher)
	require.NoError(t, err)
	assert.Equal(t, first.StorageFileID, second.StorageFileID)
	assert.Equal(t, 2, f.provider.putCount())
	assert.Equal(t, 1, f.provider.removeCount())

	res, err := f.svc.Download(ctx, second.ID, memberX)
	require.NoError(t, err)
	assert.Equal(t, content, drain(t, res))
}

func TestRejectedUploadDoesNotConsumeQuota(t *testing.T) {
	f := newFixture(t, ratelimit.Limits{UploadsPerWindow: 1}, Options{})
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader([]byte("MZ\x90\x00fake-binary")), Filename: "setup.exe", MimeType: "application/x-msdownload",
	}, publisher)
	var ve *constant.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, constant.RuleMimeType, ve.Rule)

	f.publish(t, publisher, pdfContent("valid"), "application/pdf")

	_, err = f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(pdfContent("third")), Filename: "c.pdf", MimeType: "application/pdf",
	}, publisher)
	assert.ErrorIs(t, err, constant.ErrRateLimited)
}

func TestOversizedDeclarationIsValidationErrorWhenWindowFull(t *testing.T) {
	content := pdfContent("fill")
	f := newFixture(t, ratelimit.Limits{BytesPerWindow: int64(len(content)) + 10}, Options{MaxUploadSize: 1 << 20})
	ctx := context.Background()
	f.publish(t, publisher, content, "application/pdf")

	_, err := f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(pdfContent("big")), Filename: "big.pdf", MimeType: "application/pdf",
		Size: 2 << 20,
	}, publisher)
	var ve *constant.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, constant.RuleMaxSize, ve.Rule)
}

func TestUndeclaredSizeChargesActualBytes(t *testing.T) {
	content := pdfContent("undeclared")
	f := newFixture(t, ratelimit.Limits{BytesPerWindow: int64(len(content)) + 10}, Options{})
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(content), Filename: "a.pdf", MimeType: "application/pdf",
	}, publisher)
	require.NoError(t, err)

	_, err = f.svc.Publish(ctx, &PublishRequest{
		Content: bytes.NewReader(pdfContent("undeclared-2")), Filename: "b.pdf", MimeType: "application/pdf",
	}, publisher)
	assert.ErrorIs(t, err, constant.ErrRateLimited)
}
