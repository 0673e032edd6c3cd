package relay

import "context"

// Transport is the subset of the Telegram Bot API the relay drives. It is
// satisfied by *telegram.Client; tests substitute a fake.
type Transport interface {
	// SendText posts text into chatID (threadID targets a forum topic, 0 for
	// none; replyTo anchors to an earlier message, 0 for none) and returns
	// the new message id.
	SendText(ctx context.Context, chatID, threadID int64, text string, replyTo int64) (int64, error)
	// CopyMessage re-posts fromChatID/messageID into toChatID and returns
	// the new message id.
	CopyMessage(ctx context.Context, toChatID, fromChatID, messageID, threadID int64) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	// CreateForumTopic opens a topic in the staff group. Not idempotent.
	CreateForumTopic(ctx context.Context, chatID int64, name string) (int64, error)
}
