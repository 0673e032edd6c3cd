package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Telegram Bot API client covering the calls the relay
// needs: long polling plus send/copy/edit/delete and forum topic creation.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type RequestError struct {
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "telegram request failed"
	}
	desc := strings.TrimSpace(e.Description)
	if desc != "" {
		if e.StatusCode > 0 {
			return fmt.Sprintf("telegram http %d: %s", e.StatusCode, desc)
		}
		return "telegram: " + desc
	}
	body := strings.TrimSpace(e.Body)
	if e.StatusCode > 0 {
		if body != "" {
			return fmt.Sprintf("telegram http %d: %s", e.StatusCode, body)
		}
		return fmt.Sprintf("telegram http %d", e.StatusCode)
	}
	if body != "" {
		return "telegram: " + body
	}
	return "telegram request failed"
}

// IsNotFound reports whether err is the API's "message not found" family of
// rejections (edit or delete target already gone).
func IsNotFound(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	desc := strings.ToLower(strings.TrimSpace(reqErr.Description))
	return strings.Contains(desc, "not found")
}

func IsPollTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telegram %s: encode request: %w", method, err)
		}
		reader = bytes.NewReader(b)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var parsed apiResponse
	_ = json.Unmarshal(raw, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.OK {
		return &RequestError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   parsed.ErrorCode,
			Description: parsed.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	if out != nil && len(parsed.Result) > 0 {
		if err := json.Unmarshal(parsed.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

type getUpdatesRequest struct {
	Offset  int64 `json:"offset,omitempty"`
	Timeout int   `json:"timeout"`
}

// GetUpdates long-polls for updates and returns the next offset to poll
// with. The offset only advances past updates actually returned.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var updates []Update
	if err := c.call(reqCtx, "getUpdates", getUpdatesRequest{Offset: offset, Timeout: secs}, &updates); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

type sendMessageRequest struct {
	ChatID           int64  `json:"chat_id"`
	MessageThreadID  int64  `json:"message_thread_id,omitempty"`
	Text             string `json:"text"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

// SendText posts a plain text message. threadID targets a forum topic inside
// a supergroup and is ignored for private chats; replyTo anchors the message
// to an earlier one when non-zero.
func (c *Client) SendText(ctx context.Context, chatID, threadID int64, text string, replyTo int64) (int64, error) {
	if strings.TrimSpace(text) == "" {
		text = "(empty)"
	}
	var sent Message
	err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:           chatID,
		MessageThreadID:  threadID,
		Text:             text,
		ReplyToMessageID: replyTo,
	}, &sent)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

type copyMessageRequest struct {
	ChatID          int64 `json:"chat_id"`
	FromChatID      int64 `json:"from_chat_id"`
	MessageID       int64 `json:"message_id"`
	MessageThreadID int64 `json:"message_thread_id,omitempty"`
}

type messageIDResult struct {
	MessageID int64 `json:"message_id"`
}

// CopyMessage re-posts an existing message into toChatID without a forward
// header and returns the new message id.
func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID, messageID, threadID int64) (int64, error) {
	var out messageIDResult
	err := c.call(ctx, "copyMessage", copyMessageRequest{
		ChatID:          toChatID,
		FromChatID:      fromChatID,
		MessageID:       messageID,
		MessageThreadID: threadID,
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

type editMessageTextRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		text = "(empty)"
	}
	return c.call(ctx, "editMessageText", editMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}, nil)
}

type deleteMessageRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", deleteMessageRequest{
		ChatID:    chatID,
		MessageID: messageID,
	}, nil)
}

type createForumTopicRequest struct {
	ChatID int64  `json:"chat_id"`
	Name   string `json:"name"`
}

// CreateForumTopic opens a new topic in a forum supergroup and returns its
// thread id. Not idempotent: calling twice with the same name creates two
// topics.
func (c *Client) CreateForumTopic(ctx context.Context, chatID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unnamed"
	}
	var topic ForumTopic
	if err := c.call(ctx, "createForumTopic", createForumTopicRequest{ChatID: chatID, Name: name}, &topic); err != nil {
		return 0, err
	}
	return topic.MessageThreadID, nil
}
