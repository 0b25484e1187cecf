// Package gmail implements the message transport on the Gmail API: unread
// messages are fetched with their attachments downloaded to disk, replies are
// sent on the original thread, and consumed messages lose their UNREAD label.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	userID      = "me"
	unreadLabel = "UNREAD"
)

// Config holds the configuration for the Gmail transport.
type Config struct {
	DownloadDir  string
	Query        string
	ReplySubject string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DownloadDir:  "downloads",
		Query:        "is:unread",
		ReplySubject: "Re: Invoice Reconciliation",
	}
}

// Transport talks to one Gmail mailbox.
type Transport struct {
	service *gmail.Service
	logger  *slog.Logger
	config  Config
}

// NewTransport creates a transport over an authorized HTTP client.
func NewTransport(ctx context.Context, client *http.Client, config Config, logger *slog.Logger, opts ...option.ClientOption) (*Transport, error) {
	defaults := DefaultConfig()
	if config.DownloadDir == "" {
		config.DownloadDir = defaults.DownloadDir
	}
	if config.Query == "" {
		config.Query = defaults.Query
	}
	if config.ReplySubject == "" {
		config.ReplySubject = defaults.ReplySubject
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	if err := os.MkdirAll(config.DownloadDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	return &Transport{service: service, config: config, logger: logger}, nil
}

// FetchUnread lists up to limit unread messages and loads each one. Document
// and archive attachments are downloaded; other attachments are listed with
// an empty path.
func (t *Transport) FetchUnread(ctx context.Context, limit int) ([]model.InboundMessage, error) {
	resp, err := t.service.Users.Messages.List(userID).
		Q(t.config.Query).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("list messages", err)
	}

	messages := make([]model.InboundMessage, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := t.fetchMessage(ctx, ref.Id)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	t.logger.Debug("Fetched unread messages", "count", len(messages))
	return messages, nil
}

func (t *Transport) fetchMessage(ctx context.Context, id string) (model.InboundMessage, error) {
	full, err := t.service.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return model.InboundMessage{}, classify("get message "+id, err)
	}

	msg := model.InboundMessage{
		ID:       full.Id,
		ThreadID: full.ThreadId,
		Snippet:  full.Snippet,
		Sender:   "Unknown",
		Subject:  "No Subject",
	}
	if full.Payload == nil {
		return msg, nil
	}

	for _, h := range full.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			msg.Sender = h.Value
		case "subject":
			msg.Subject = h.Value
		}
	}

	for _, part := range attachmentParts(full.Payload) {
		att := model.Attachment{
			Filename: part.Filename,
			Kind:     model.AttachmentKindOf(part.Filename),
		}
		if att.Kind != model.KindOther {
			path, err := t.download(ctx, full.Id, part)
			if err != nil {
				t.logger.Warn("Failed to download attachment",
					"message_id", full.Id,
					"filename", part.Filename,
					"error", err)
			}
			att.Path = path
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	return msg, nil
}

// attachmentParts walks nested multipart payloads in order and returns the
// parts that carry a filename.
func attachmentParts(part *gmail.MessagePart) []*gmail.MessagePart {
	if part == nil {
		return nil
	}
	var out []*gmail.MessagePart
	if part.Filename != "" {
		out = append(out, part)
	}
	for _, child := range part.Parts {
		out = append(out, attachmentParts(child)...)
	}
	return out
}

func (t *Transport) download(ctx context.Context, messageID string, part *gmail.MessagePart) (string, error) {
	if part.Body == nil {
		return "", fmt.Errorf("attachment %s has no body", part.Filename)
	}

	data := part.Body.Data
	if data == "" && part.Body.AttachmentId != "" {
		body, err := t.service.Users.Messages.Attachments.Get(userID, messageID, part.Body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return "", classify("get attachment", err)
		}
		data = body.Data
	}
	if data == "" {
		return "", fmt.Errorf("attachment %s is empty", part.Filename)
	}

	content, err := decodeBase64URL(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode attachment %s: %w", part.Filename, err)
	}

	dir := filepath.Join(t.config.DownloadDir, safeName(messageID))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}
	path := filepath.Join(dir, safeName(part.Filename))
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}

	return path, nil
}

// Reply sends body as HTML on threadID.
func (t *Transport) Reply(ctx context.Context, threadID, to, body string) error {
	raw, err := buildMessage(to, t.config.ReplySubject, body)
	if err != nil {
		return common.Permanent(err)
	}

	_, err = t.service.Users.Messages.Send(userID, &gmail.Message{Raw: raw, ThreadId: threadID}).Context(ctx).Do()
	if err != nil {
		return classify("send reply", err)
	}

	t.logger.Info("Reply sent", "to", to, "thread_id", threadID)
	return nil
}

// SendNew starts a conversation and returns its thread id.
func (t *Transport) SendNew(ctx context.Context, to, subject, body string) (string, error) {
	raw, err := buildMessage(to, subject, body)
	if err != nil {
		return "", common.Permanent(err)
	}

	sent, err := t.service.Users.Messages.Send(userID, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", classify("send message", err)
	}

	t.logger.Info("Message sent", "to", to, "thread_id", sent.ThreadId)
	return sent.ThreadId, nil
}

// MarkConsumed removes the UNREAD label.
func (t *Transport) MarkConsumed(ctx context.Context, messageID string) error {
	_, err := t.service.Users.Messages.Modify(userID, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{unreadLabel},
	}).Context(ctx).Do()
	if err != nil {
		return classify("mark message read", err)
	}
	return nil
}

// classify maps API failures onto retry semantics: throttling and server
// errors are retried, other client errors are not.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("gmail %s: %w: %w", op, common.ErrRateLimit, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("gmail %s: %w: %w", op, common.ErrTransport, err)
		default:
			return common.Permanent(fmt.Errorf("gmail %s: %w", op, err))
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("gmail %s: %w: %w", op, common.ErrTransport, err)
}

func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "attachment"
	}
	return name
}
