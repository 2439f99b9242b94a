package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Notifier sends messages and documents to Telegram users via the Bot API
type Notifier struct {
	apiURL   string
	botToken string
	client   *http.Client
}

// NewNotifier registers the bot token
func NewNotifier(botToken string) *Notifier {
	return &Notifier{
		apiURL:   "https://api.telegram.org",
		botToken: botToken,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// SendText posts an HTML-formatted text message to a chat
func (n *Notifier) SendText(ctx context.Context, chatID int64, text string) error {
	if n.botToken == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return n.do(req)
}

// SendDocument posts a document with an HTML caption to a chat
func (n *Notifier) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	if n.botToken == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if err := w.WriteField("caption", caption); err != nil {
		return fmt.Errorf("write caption field: %w", err)
	}
	if err := w.WriteField("parse_mode", "HTML"); err != nil {
		return fmt.Errorf("write parse_mode field: %w", err)
	}

	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("create document part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write document part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendDocument", n.apiURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return n.do(req)
}

func (n *Notifier) do(req *http.Request) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error: %s: %s", resp.Status, string(detail))
	}
	return nil
}
