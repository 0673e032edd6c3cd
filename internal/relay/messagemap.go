package relay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Saipa12/TgZamirBor/internal/fsstore"
)

// UserRef identifies a message on the private-chat side of the relay.
type UserRef struct {
	ChatID    int64
	MessageID int64
}

type crossingKey struct {
	chatID    int64
	messageID int64
}

// MessageMap is the two-way mapping between a message in a user's private
// chat and its mirrored counterpart in the staff group. The two directions
// are mirror images: every insert writes both under one lock and persists
// them in the same document, so a crash can never leave one side ahead of
// the other. Entries are never removed, even when the underlying message is
// deleted.
type MessageMap struct {
	mu          sync.Mutex
	userToGroup map[crossingKey]int64
	groupToUser map[int64]UserRef

	path string
}

type crossingRecord struct {
	ChatID         int64 `json:"chat_id"`
	UserMessageID  int64 `json:"user_message_id"`
	GroupMessageID int64 `json:"group_message_id"`
}

type messageMapState struct {
	UserToGroup []crossingRecord `json:"user_to_group"`
	GroupToUser []crossingRecord `json:"group_to_user"`
}

func NewMessageMap(path string) *MessageMap {
	return &MessageMap{
		userToGroup: make(map[crossingKey]int64),
		groupToUser: make(map[int64]UserRef),
		path:        path,
	}
}

// Load replaces in-memory state with the persisted document. Decode failure
// is an error for the caller to escalate, never silently treated as empty.
func (m *MessageMap) Load() error {
	var state messageMapState
	found, err := fsstore.ReadJSON(m.path, &state)
	if err != nil {
		return fmt.Errorf("load message map: %w", err)
	}
	if !found {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.userToGroup = make(map[crossingKey]int64, len(state.UserToGroup))
	for _, rec := range state.UserToGroup {
		m.userToGroup[crossingKey{rec.ChatID, rec.UserMessageID}] = rec.GroupMessageID
	}
	m.groupToUser = make(map[int64]UserRef, len(state.GroupToUser))
	for _, rec := range state.GroupToUser {
		m.groupToUser[rec.GroupMessageID] = UserRef{ChatID: rec.ChatID, MessageID: rec.UserMessageID}
	}
	return nil
}

// Record inserts the crossing in both directions and persists the pair.
// Both tables mutate and serialize together under the lock.
func (m *MessageMap) Record(chatID, userMessageID, groupMessageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userToGroup[crossingKey{chatID, userMessageID}] = groupMessageID
	m.groupToUser[groupMessageID] = UserRef{ChatID: chatID, MessageID: userMessageID}
	return m.saveLocked()
}

// GroupFor resolves a user-side message to its group counterpart.
func (m *MessageMap) GroupFor(chatID, userMessageID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.userToGroup[crossingKey{chatID, userMessageID}]
	return id, ok
}

// UserFor resolves a group-side message to its user counterpart.
func (m *MessageMap) UserFor(groupMessageID int64) (UserRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.groupToUser[groupMessageID]
	return ref, ok
}

func (m *MessageMap) saveLocked() error {
	state := messageMapState{
		UserToGroup: make([]crossingRecord, 0, len(m.userToGroup)),
		GroupToUser: make([]crossingRecord, 0, len(m.groupToUser)),
	}
	for key, groupID := range m.userToGroup {
		state.UserToGroup = append(state.UserToGroup, crossingRecord{
			ChatID:         key.chatID,
			UserMessageID:  key.messageID,
			GroupMessageID: groupID,
		})
	}
	for groupID, ref := range m.groupToUser {
		state.GroupToUser = append(state.GroupToUser, crossingRecord{
			ChatID:         ref.ChatID,
			UserMessageID:  ref.MessageID,
			GroupMessageID: groupID,
		})
	}
	// Stable order keeps the file diffable across rewrites.
	sort.Slice(state.UserToGroup, func(i, j int) bool {
		a, b := state.UserToGroup[i], state.UserToGroup[j]
		if a.ChatID != b.ChatID {
			return a.ChatID < b.ChatID
		}
		return a.UserMessageID < b.UserMessageID
	})
	sort.Slice(state.GroupToUser, func(i, j int) bool {
		return state.GroupToUser[i].GroupMessageID < state.GroupToUser[j].GroupMessageID
	})
	if err := fsstore.WriteJSONAtomic(m.path, state, fsstore.FileOptions{}); err != nil {
		return fmt.Errorf("save message map: %w", err)
	}
	return nil
}
