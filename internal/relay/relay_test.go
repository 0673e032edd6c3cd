package relay

import (
	"context"
	"fmt"
	"sync"
)

// fakeTransport records every outbound call and hands out sequential ids,
// standing in for the Bot API in tests.
type fakeTransport struct {
	mu            sync.Mutex
	nextMessageID int64
	nextTopicID   int64

	sends   []sendCall
	copies  []copyCall
	edits   []editCall
	deletes []deleteCall
	topics  []string

	sendErr   error
	createErr error
}

type sendCall struct {
	ChatID   int64
	ThreadID int64
	Text     string
	ReplyTo  int64
	SentID   int64
}

type copyCall struct {
	ToChatID   int64
	FromChatID int64
	MessageID  int64
	ThreadID   int64
	CopiedID   int64
}

type editCall struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type deleteCall struct {
	ChatID    int64
	MessageID int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextMessageID: 100, nextTopicID: 41}
}

func (f *fakeTransport) SendText(_ context.Context, chatID, threadID int64, text string, replyTo int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextMessageID++
	call := sendCall{ChatID: chatID, ThreadID: threadID, Text: text, ReplyTo: replyTo, SentID: f.nextMessageID}
	f.sends = append(f.sends, call)
	return call.SentID, nil
}

func (f *fakeTransport) CopyMessage(_ context.Context, toChatID, fromChatID, messageID, threadID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMessageID++
	call := copyCall{ToChatID: toChatID, FromChatID: fromChatID, MessageID: messageID, ThreadID: threadID, CopiedID: f.nextMessageID}
	f.copies = append(f.copies, call)
	return call.CopiedID, nil
}

func (f *fakeTransport) EditMessageText(_ context.Context, chatID, messageID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deleteCall{ChatID: chatID, MessageID: messageID})
	return nil
}

func (f *fakeTransport) CreateForumTopic(_ context.Context, _ int64, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextTopicID++
	f.topics = append(f.topics, name)
	return f.nextTopicID, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends) + len(f.copies) + len(f.edits) + len(f.deletes) + len(f.topics)
}

var _ Transport = (*fakeTransport)(nil)

func errTransport(msg string) error { return fmt.Errorf("transport: %s", msg) }
