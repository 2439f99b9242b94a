package disclosure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NAKAZUKA/fin-report-bot/internal/config"
)

const (
	entityFiles    = "Files"
	entityMessages = "Messages"

	// downloadChunkSize is the ranged-download window for files served
	// through the authenticated download endpoint.
	downloadChunkSize = 10_000_000

	// browserUserAgent is required by the public download URLs, which
	// reject requests without a browser-like agent string.
	browserUserAgent = "Mozilla/5.0"
)

// Client talks to the disclosure provider API. All calls go through the
// shared gate and carry a non-expired bearer token from the cache.
type Client struct {
	baseURL  string
	login    string
	password string
	http     *http.Client
	gate     *Gate
	tokens   *TokenCache
}

// NewClient creates a provider client with a file-backed token cache
func NewClient(cfg config.DisclosureConfig, gate *Gate) *Client {
	c := &Client{
		baseURL:  cfg.BaseURL,
		login:    cfg.Login,
		password: cfg.Password,
		http:     &http.Client{Timeout: 60 * time.Second},
		gate:     gate,
	}
	c.tokens = NewTokenCache(cfg.TokenFile, c.authorize)
	return c
}

// authorize performs the login/password exchange and returns fresh credentials
func (c *Client) authorize(ctx context.Context) (Credentials, error) {
	body, err := json.Marshal(map[string]string{
		"login":    c.login,
		"password": c.password,
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("encode auth request: %w", err)
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return Credentials{}, err
	}
	defer c.gate.Release()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return Credentials{}, fmt.Errorf("new auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("auth returned status %s", resp.Status)
	}

	var raw struct {
		Token          string `json:"token"`
		ExpirationDate string `json:"expirationDate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Credentials{}, fmt.Errorf("decode auth response: %w", err)
	}
	if raw.Token == "" {
		return Credentials{}, fmt.Errorf("auth response carries no token")
	}

	cred := Credentials{Token: raw.Token}
	if exp, err := ParseTime(raw.ExpirationDate); err == nil {
		cred.ExpirationDate = &exp
	} else {
		logrus.Warnf("Auth response has unparsable expiration %q, token treated as short-lived", raw.ExpirationDate)
	}

	logrus.Infof("Disclosure API authorized, token valid until %v", cred.ExpirationDate)
	return cred, nil
}

// FetchFileEvents returns the raw file-bearing events for a subject code
func (c *Client) FetchFileEvents(ctx context.Context, subjectCode string, count int) ([]Event, error) {
	return c.fetchEvents(ctx, entityFiles, subjectCode, count)
}

// FetchMessageEvents returns the raw message-bearing events for a subject code
func (c *Client) FetchMessageEvents(ctx context.Context, subjectCode string, count int) ([]Event, error) {
	return c.fetchEvents(ctx, entityMessages, subjectCode, count)
}

func (c *Client) fetchEvents(ctx context.Context, entity, subjectCode string, count int) ([]Event, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.gate.Release()

	q := url.Values{}
	q.Set("entity", entity)
	q.Add("subjectCode[]", subjectCode)
	q.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/disclosure/events?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new events request: %w", err)
	}
	req.Header.Set("APIKey", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events returned status %s", resp.Status)
	}

	var raw []Event
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, ev := range raw {
		if ev.UID == "" {
			// Malformed record, not yet a valid event.
			continue
		}
		if ev.File != nil {
			ev.File.Attributes = flattenAttributes(ev.File.RawAttrs)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ProbeCompany returns the subject block of the newest event for a code,
// or nil when the provider knows nothing about the code.
func (c *Client) ProbeCompany(ctx context.Context, subjectCode string) (*Subject, error) {
	events, err := c.fetchEvents(ctx, entityFiles, subjectCode, 1)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if ev.Subject != nil {
			return ev.Subject, nil
		}
	}
	return nil, nil
}

// DownloadFile fetches the raw bytes of a disclosure file, preferring the
// authenticated ranged endpoint and falling back to the public URL. It
// returns the payload and the content type the provider reported, which
// downstream sniffing treats as a hint only.
func (c *Client) DownloadFile(ctx context.Context, file *File) ([]byte, string, error) {
	if file == nil || (file.UID == "" && file.PublicURL == "") {
		return nil, "", fmt.Errorf("file has neither uid nor public url")
	}

	if file.UID != "" {
		data, contentType, err := c.downloadByUID(ctx, file.UID)
		if err == nil {
			return data, contentType, nil
		}
		logrus.Warnf("Ranged download of file %s failed: %v, falling back to public url", file.UID, err)
	}

	if file.PublicURL == "" {
		return nil, "", fmt.Errorf("download by uid failed and no public url present")
	}
	return c.downloadByPublicURL(ctx, file.PublicURL)
}

func (c *Client) downloadByUID(ctx context.Context, fileUID string) ([]byte, string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, "", err
	}

	fileURL := c.baseURL + "/disclosure/download/files/" + fileUID

	totalSize, contentType, err := c.headFile(ctx, fileURL, token)
	if err != nil {
		return nil, "", err
	}

	if totalSize <= 0 {
		data, err := c.getRange(ctx, fileURL, token, "")
		return data, contentType, err
	}

	logrus.Infof("Downloading file %s (%d bytes)", fileUID, totalSize)

	var buf bytes.Buffer
	buf.Grow(int(totalSize))
	for downloaded := int64(0); downloaded < totalSize; {
		start := downloaded
		end := start + downloadChunkSize - 1
		if end > totalSize-1 {
			end = totalSize - 1
		}

		chunk, err := c.getRange(ctx, fileURL, token, fmt.Sprintf("bytes=%d-%d", start, end))
		if err != nil {
			return nil, "", fmt.Errorf("range %d-%d: %w", start, end, err)
		}
		if len(chunk) == 0 {
			return nil, "", fmt.Errorf("empty chunk at offset %d", start)
		}

		buf.Write(chunk)
		downloaded += int64(len(chunk))
	}

	if int64(buf.Len()) != totalSize {
		logrus.Warnf("Downloaded size %d does not match Content-Length %d", buf.Len(), totalSize)
	}
	return buf.Bytes(), contentType, nil
}

func (c *Client) headFile(ctx context.Context, fileURL, token string) (int64, string, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return 0, "", err
	}
	defer c.gate.Release()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fileURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("new head request: %w", err)
	}
	req.Header.Set("APIKey", token)
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("head request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, "", fmt.Errorf("file not found by uid")
	}
	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("head returned status %s", resp.Status)
	}

	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return size, resp.Header.Get("Content-Type"), nil
}

func (c *Client) getRange(ctx context.Context, fileURL, token, rangeHeader string) ([]byte, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.gate.Release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new download request: %w", err)
	}
	req.Header.Set("APIKey", token)
	req.Header.Set("User-Agent", browserUserAgent)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("download returned status %s", resp.Status)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Client) downloadByPublicURL(ctx context.Context, publicURL string) ([]byte, string, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, "", err
	}
	defer c.gate.Release()

	// No APIKey here: the public URL is served by a different host that
	// only wants a browser-like agent. Redirects are followed.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, publicURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new public download request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("public download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("public download returned status %s", resp.Status)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, "", fmt.Errorf("read public download body: %w", err)
	}
	return buf.Bytes(), resp.Header.Get("Content-Type"), nil
}

// flattenAttributes turns the provider's [{name, value}] list into a lookup map
func flattenAttributes(attrs []Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a.Value
	}
	return m
}

// ParseTime parses the provider's timestamps, which come with or
// without a zone designator depending on the endpoint.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format %q", s)
}
