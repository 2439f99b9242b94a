package dispatcher

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/NAKAZUKA/fin-report-bot/internal/archive"
	"github.com/NAKAZUKA/fin-report-bot/internal/disclosure"
	"github.com/NAKAZUKA/fin-report-bot/internal/metrics"
	"github.com/NAKAZUKA/fin-report-bot/internal/model"
	"github.com/NAKAZUKA/fin-report-bot/internal/repository"
)

// promauto registers on the default registry, so the whole package shares
// one metrics instance.
var testMetrics = metrics.NewMetrics()

type fakeSource struct {
	fileEvents    []disclosure.Event
	messageEvents []disclosure.Event
	payload       []byte
	contentType   string
	downloads     int
}

func (f *fakeSource) FetchFileEvents(ctx context.Context, subjectCode string, count int) ([]disclosure.Event, error) {
	return f.fileEvents, nil
}

func (f *fakeSource) FetchMessageEvents(ctx context.Context, subjectCode string, count int) ([]disclosure.Event, error) {
	return f.messageEvents, nil
}

func (f *fakeSource) DownloadFile(ctx context.Context, file *disclosure.File) ([]byte, string, error) {
	f.downloads++
	return f.payload, f.contentType, nil
}

type fakeUploader struct {
	objects []string
}

func (f *fakeUploader) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	f.objects = append(f.objects, objectName)
	return "http://localhost:9000/reports/" + objectName, nil
}

type fakeMessenger struct {
	documents []string
	texts     []string
	failDocs  bool
}

func (f *fakeMessenger) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	if f.failDocs {
		return fmt.Errorf("telegram unavailable")
	}
	f.documents = append(f.documents, filename)
	return nil
}

func (f *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func testRepo(t *testing.T) *repository.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.UserCompany{},
		&model.ProcessedEvent{},
		&model.Report{},
		&model.MessageRecord{},
	))
	return repository.New(db)
}

func buildZip(t *testing.T, members map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

var testToday = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func todayFileEvent(uid string) disclosure.Event {
	return disclosure.Event{
		UID: uid,
		File: &disclosure.File{
			UID:         "f-" + uid,
			PublicURL:   "https://disclosure.example.com/" + uid,
			Description: "Годовой отчёт за 2023 год",
			Type:        disclosure.NamedRef{Name: "Годовой отчёт"},
			Attributes: map[string]string{
				"DatePub": "15.03.2024",
				"YearRep": "2023",
			},
		},
	}
}

func newTestDispatcher(t *testing.T, source *fakeSource, repo *repository.Repository,
	store *fakeUploader, messenger *fakeMessenger) *Dispatcher {
	t.Helper()

	d := New(source, repo, store, messenger, archive.NewExtractor(t.TempDir()), testMetrics, 100, false)
	d.now = func() time.Time { return testToday }
	return d
}

func TestPipelineEndToEnd(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.EnsureUser(42, "U", true))
	require.NoError(t, repo.AddUserCompany(42, "7700000000", "ПАО Тест", ""))

	source := &fakeSource{
		fileEvents:  []disclosure.Event{todayFileEvent("ev-zip")},
		payload:     buildZip(t, map[string][]byte{"report.pdf": []byte("%PDF-1.4 r"), "appendix.pdf": []byte("%PDF-1.4 a")}),
		contentType: "application/octet-stream",
	}
	store := &fakeUploader{}
	messenger := &fakeMessenger{}
	d := newTestDispatcher(t, source, repo, store, messenger)

	d.ProcessAll(context.Background())

	// Two uploads and two document relays, one per archive member
	assert.Len(t, store.objects, 2)
	assert.Len(t, messenger.documents, 2)

	processed, err := repo.IsEventProcessed("ev-zip")
	require.NoError(t, err)
	assert.True(t, processed)

	reports, err := repo.RecentReports(10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "ev-zip", reports[0].EventUID)
	assert.Equal(t, "ПАО Тест", reports[0].CompanyName)
	assert.Contains(t, reports[0].DocumentURL, "http://localhost:9000/reports/")

	// A second immediate run relays nothing new
	d.ProcessAll(context.Background())
	assert.Len(t, store.objects, 2)
	assert.Len(t, messenger.documents, 2)
}

func TestPipelineRetriesWhenRelayFails(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.EnsureUser(42, "U", true))
	require.NoError(t, repo.AddUserCompany(42, "7700000000", "ПАО Тест", ""))

	source := &fakeSource{
		fileEvents:  []disclosure.Event{todayFileEvent("ev-retry")},
		payload:     []byte("%PDF-1.4 report body"),
		contentType: "application/pdf",
	}
	store := &fakeUploader{}
	messenger := &fakeMessenger{failDocs: true}
	d := newTestDispatcher(t, source, repo, store, messenger)

	d.ProcessAll(context.Background())

	// Relay failed: the marker must not be written so the event retries
	processed, err := repo.IsEventProcessed("ev-retry")
	require.NoError(t, err)
	assert.False(t, processed)

	// Next cycle with a healthy messenger delivers the event
	messenger.failDocs = false
	d.ProcessAll(context.Background())

	assert.Len(t, messenger.documents, 1)
	processed, err = repo.IsEventProcessed("ev-retry")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestPipelineSkipsHTMLWithoutMarking(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.EnsureUser(42, "U", true))
	require.NoError(t, repo.AddUserCompany(42, "7700000000", "ПАО Тест", ""))

	source := &fakeSource{
		fileEvents:  []disclosure.Event{todayFileEvent("ev-html")},
		payload:     []byte("<!doctype html><html>страница ошибки</html>"),
		contentType: "text/html",
	}
	store := &fakeUploader{}
	messenger := &fakeMessenger{}
	d := newTestDispatcher(t, source, repo, store, messenger)

	d.ProcessAll(context.Background())

	assert.Empty(t, store.objects)
	assert.Empty(t, messenger.documents)

	// Unmarked on purpose: a later cycle may retry while the event is
	// still inside the same-day window
	processed, err := repo.IsEventProcessed("ev-html")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestPipelineRelaysMessageEvents(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.EnsureUser(42, "U", true))
	require.NoError(t, repo.AddUserCompany(42, "7700000000", "ПАО Тест", ""))

	source := &fakeSource{
		messageEvents: []disclosure.Event{{
			UID:  "msg-1",
			Date: "2024-03-15T09:30:00",
			Message: &disclosure.Message{
				Header:    "Существенный факт",
				Text:      "Раскрытие информации",
				PublicURL: "https://disclosure.example.com/msg-1",
			},
		}},
	}
	store := &fakeUploader{}
	messenger := &fakeMessenger{}
	d := newTestDispatcher(t, source, repo, store, messenger)

	d.ProcessAll(context.Background())

	require.Len(t, messenger.texts, 1)
	assert.Contains(t, messenger.texts[0], "Существенный факт")
	assert.Contains(t, messenger.texts[0], "15.03.2024")

	processed, err := repo.IsEventProcessed("msg-1")
	require.NoError(t, err)
	assert.True(t, processed)

	records, err := repo.RecentMessages(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "msg-1", records[0].EventUID)

	// Second run: filtered out as processed
	d.ProcessAll(context.Background())
	assert.Len(t, messenger.texts, 1)
}

func TestPipelineTextOnlyMode(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.EnsureUser(42, "U", true))
	require.NoError(t, repo.AddUserCompany(42, "7700000000", "ПАО Тест", ""))

	source := &fakeSource{
		fileEvents:  []disclosure.Event{todayFileEvent("ev-text")},
		payload:     []byte("%PDF-1.4 report body"),
		contentType: "application/pdf",
	}
	store := &fakeUploader{}
	messenger := &fakeMessenger{}

	d := New(source, repo, store, messenger, archive.NewExtractor(t.TempDir()), testMetrics, 100, true)
	d.now = func() time.Time { return testToday }

	d.ProcessAll(context.Background())

	// The upload still happens, but the user gets a link instead of a binary
	assert.Len(t, store.objects, 1)
	assert.Empty(t, messenger.documents)
	require.Len(t, messenger.texts, 1)
	assert.Contains(t, messenger.texts[0], "https://disclosure.example.com/ev-text")
}
