package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NAKAZUKA/fin-report-bot/internal/archive"
	"github.com/NAKAZUKA/fin-report-bot/internal/disclosure"
	"github.com/NAKAZUKA/fin-report-bot/internal/metrics"
	"github.com/NAKAZUKA/fin-report-bot/internal/model"
	"github.com/NAKAZUKA/fin-report-bot/internal/repository"
)

// EventSource fetches and downloads disclosure events
type EventSource interface {
	FetchFileEvents(ctx context.Context, subjectCode string, count int) ([]disclosure.Event, error)
	FetchMessageEvents(ctx context.Context, subjectCode string, count int) ([]disclosure.Event, error)
	DownloadFile(ctx context.Context, file *disclosure.File) ([]byte, string, error)
}

// Uploader stores delivered documents durably and returns their URL
type Uploader interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// Messenger relays documents and texts to a chat
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// Dispatcher runs the acquisition pipeline: fetch, filter, download,
// extract, upload, relay, persist, cleanup. Failures are contained at
// the event and company granularity so one bad document never aborts
// the rest of a cycle.
type Dispatcher struct {
	source     EventSource
	repo       *repository.Repository
	store      Uploader
	notifier   Messenger
	extractor  *archive.Extractor
	metrics    *metrics.Metrics
	eventCount int
	textOnly   bool
	now        func() time.Time
}

// New creates a dispatcher. When textOnly is set, subscribers receive a
// link to the source document instead of the binary.
func New(source EventSource, repo *repository.Repository, store Uploader, notifier Messenger,
	extractor *archive.Extractor, m *metrics.Metrics, eventCount int, textOnly bool) *Dispatcher {
	if eventCount <= 0 {
		eventCount = 100
	}
	return &Dispatcher{
		source:     source,
		repo:       repo,
		store:      store,
		notifier:   notifier,
		extractor:  extractor,
		metrics:    m,
		eventCount: eventCount,
		textOnly:   textOnly,
		now:        time.Now,
	}
}

// ProcessAll walks every (subscriber, watched company) pair once
func (d *Dispatcher) ProcessAll(ctx context.Context) {
	logrus.Info("Starting disclosure check cycle")

	users, err := d.repo.Subscribers()
	if err != nil {
		logrus.Errorf("Failed to load subscribers: %v", err)
		return
	}

	pairs := 0
	for _, user := range users {
		companies, err := d.repo.CompaniesFor(user.UserID)
		if err != nil {
			logrus.Errorf("Failed to load companies for user %d: %v", user.UserID, err)
			continue
		}
		pairs += len(companies)

		for _, company := range companies {
			select {
			case <-ctx.Done():
				logrus.Info("Disclosure check cycle cancelled")
				return
			default:
			}
			d.ProcessCompany(ctx, user.UserID, company)
		}
	}

	d.metrics.WatchedCompanies.Set(float64(pairs))
	logrus.Info("Disclosure check cycle completed")
}

// ProcessCompany handles one (subscriber, company) pair: file events
// first, then message events, each independently fault-isolated.
func (d *Dispatcher) ProcessCompany(ctx context.Context, chatID int64, company model.UserCompany) {
	logrus.Infof("Checking company %s (inn %s) for user %d", company.CompanyName, company.INN, chatID)
	today := d.now().UTC()

	fileEvents, err := d.source.FetchFileEvents(ctx, company.INN, d.eventCount)
	if err != nil {
		logrus.Errorf("Failed to fetch file events for %s: %v", company.INN, err)
	} else {
		for _, ev := range disclosure.SelectNewFileEvents(fileEvents, today, d.seen) {
			d.processFileEvent(ctx, chatID, company, ev)
		}
	}

	messageEvents, err := d.source.FetchMessageEvents(ctx, company.INN, d.eventCount)
	if err != nil {
		logrus.Errorf("Failed to fetch message events for %s: %v", company.INN, err)
		return
	}
	for _, ev := range disclosure.SelectNewMessageEvents(messageEvents, today, d.seen) {
		d.processMessageEvent(ctx, chatID, company, ev)
	}
}

// seen adapts the bookkeeping store to the filter's predicate. A store
// error counts as seen: skipping one cycle is preferable to a duplicate
// delivery, and the next cycle retries while the event stays in the
// same-day window.
func (d *Dispatcher) seen(uid string) bool {
	processed, err := d.repo.IsEventProcessed(uid)
	if err != nil {
		logrus.Errorf("Failed to check processed set for %s: %v", uid, err)
		return true
	}
	return processed
}

func (d *Dispatcher) processFileEvent(ctx context.Context, chatID int64, company model.UserCompany, ev disclosure.Event) {
	data, contentType, err := d.source.DownloadFile(ctx, ev.File)
	if err != nil {
		logrus.Errorf("Failed to download file for event %s: %v", ev.UID, err)
		d.metrics.RelayFailures.Inc()
		return
	}

	res := d.extractor.Extract(data, contentType, shortUID(ev.UID))
	if res.Dir != "" {
		defer d.cleanupScratch(res.Dir)
	}
	if res.Skipped {
		// Event stays unmarked so a later cycle retries while it is
		// still inside the same-day window.
		logrus.Warnf("Skipping event %s: %s", ev.UID, res.Reason)
		d.metrics.EventsSkipped.Inc()
		return
	}

	attrs := ev.File.Attributes
	caption := reportCaption(company.CompanyName, ev.File.Type.Name, attrs["YearRep"], attrs["DatePub"], ev.File.Description)

	var documentURL string
	for _, path := range res.Paths {
		fileBytes, err := os.ReadFile(path)
		if err != nil {
			logrus.Errorf("Failed to read extracted file %s: %v", path, err)
			d.metrics.RelayFailures.Inc()
			return
		}

		objectName := fmt.Sprintf("%s_%s", shortUID(ev.UID), filepath.Base(path))
		url, err := d.store.Upload(ctx, objectName, fileBytes, contentTypeFor(path))
		if err != nil {
			logrus.Errorf("Failed to upload %s for event %s: %v", objectName, ev.UID, err)
			d.metrics.RelayFailures.Inc()
			return
		}
		documentURL = url
		d.metrics.FilesUploaded.Inc()

		if err := d.relayDocument(ctx, chatID, filepath.Base(path), fileBytes, caption, ev.File.PublicURL); err != nil {
			// The marker is not written: the whole event is retried
			// next cycle, duplicate delivery beats silent loss.
			logrus.Errorf("Failed to relay %s for event %s: %v", path, ev.UID, err)
			d.metrics.RelayFailures.Inc()
			return
		}
	}

	report := &model.Report{
		EventUID:    ev.UID,
		CompanyName: company.CompanyName,
		INN:         company.INN,
		ReportType:  ev.File.Type.Name,
		ReportDate:  attrs["DatePub"],
		Description: ev.File.Description,
		DocumentURL: documentURL,
	}
	if err := d.repo.SaveReport(report); err != nil {
		logrus.Errorf("Failed to save report for event %s: %v", ev.UID, err)
	}
	if err := d.repo.MarkEventProcessed(ev.UID); err != nil {
		logrus.Errorf("Failed to mark event %s as processed: %v", ev.UID, err)
	}

	d.metrics.ReportsRelayed.Inc()
	logrus.Infof("Report %s relayed to user %d (%d files)", ev.UID, chatID, len(res.Paths))
}

func (d *Dispatcher) relayDocument(ctx context.Context, chatID int64, filename string, data []byte, caption, sourceURL string) error {
	if d.textOnly {
		text := caption
		if sourceURL != "" {
			text += fmt.Sprintf("\n🔗 <a href=%q>Открыть документ</a>", sourceURL)
		}
		return d.notifier.SendText(ctx, chatID, text)
	}
	return d.notifier.SendDocument(ctx, chatID, filename, data, caption)
}

func (d *Dispatcher) processMessageEvent(ctx context.Context, chatID int64, company model.UserCompany, ev disclosure.Event) {
	msg := ev.Message
	date := ev.Date
	if ts, err := disclosure.ParseTime(ev.Date); err == nil {
		date = ts.Format("02.01.2006")
	}

	text := messageText(company.CompanyName, msg.Title(), date, msg.PublicURL)
	if err := d.notifier.SendText(ctx, chatID, text); err != nil {
		logrus.Errorf("Failed to relay message event %s: %v", ev.UID, err)
		d.metrics.RelayFailures.Inc()
		return
	}

	record := &model.MessageRecord{
		EventUID:    ev.UID,
		CompanyName: company.CompanyName,
		INN:         company.INN,
		MessageType: msg.Title(),
		MessageDate: ev.Date,
		MessageText: msg.Text,
		MessageURL:  msg.PublicURL,
	}
	if err := d.repo.SaveMessage(record); err != nil {
		logrus.Errorf("Failed to save message for event %s: %v", ev.UID, err)
	}
	if err := d.repo.MarkEventProcessed(ev.UID); err != nil {
		logrus.Errorf("Failed to mark event %s as processed: %v", ev.UID, err)
	}

	d.metrics.MessagesRelayed.Inc()
	logrus.Infof("Message %s relayed to user %d", ev.UID, chatID)
}

// cleanupScratch removes a scratch directory unconditionally after relay
// to bound disk usage across a long-running process.
func (d *Dispatcher) cleanupScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logrus.Warnf("Failed to clean up scratch directory %s: %v", dir, err)
	}
}

func reportCaption(company, reportType, year, pubDate, description string) string {
	if year == "" {
		year = "не указано"
	}
	if description == "" {
		description = "Описание отсутствует"
	}
	return fmt.Sprintf(
		"🏢 <b>%s</b>\n📄 Тип: <b>%s</b>\n📅 Год: <b>%s</b>\n🗓 Дата публикации: <b>%s</b>\n📝 %s",
		company, reportType, year, pubDate, description,
	)
}

func messageText(company, title, date, url string) string {
	return fmt.Sprintf(
		"🏢 <b>%s</b>\n📌 <b>%s</b>\n📅 <b>%s</b>\n🔗 <a href=%q>Открыть публикацию</a>",
		company, title, date, url,
	)
}

// shortUID truncates an event uid for scratch directory and object names
func shortUID(uid string) string {
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}

func contentTypeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "application/pdf"
	}
	return "application/octet-stream"
}
