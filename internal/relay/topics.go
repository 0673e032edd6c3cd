package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/Saipa12/TgZamirBor/internal/fsstore"
)

// TopicRegistry maps a user's display-name key to the forum topic dedicated
// to them, and a topic back to the owning private chat. State is a cache over
// the topics file; every mutation is written through before it is visible to
// other events.
//
// The key is the rendered display name, not the user id, so two users whose
// names render identically share one topic. That matches the deployed
// behavior and is left as is.
type TopicRegistry struct {
	mu      sync.Mutex
	topics  map[string]int64
	clients map[int64]int64

	path    string
	groupID int64
	creator TopicCreator
}

// TopicCreator is the single transport call the registry needs.
type TopicCreator interface {
	CreateForumTopic(ctx context.Context, chatID int64, name string) (int64, error)
}

type topicState struct {
	Topics  map[string]int64 `json:"topics"`
	Clients map[int64]int64  `json:"clients"`
}

func NewTopicRegistry(path string, groupID int64, creator TopicCreator) *TopicRegistry {
	return &TopicRegistry{
		topics:  make(map[string]int64),
		clients: make(map[int64]int64),
		path:    path,
		groupID: groupID,
		creator: creator,
	}
}

// Load replaces in-memory state with the persisted document. A missing file
// is a fresh start; a file that fails to decode is an error the caller must
// treat as fatal, not as empty state.
func (r *TopicRegistry) Load() error {
	var state topicState
	found, err := fsstore.ReadJSON(r.path, &state)
	if err != nil {
		return fmt.Errorf("load topic state: %w", err)
	}
	if !found {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = make(map[string]int64, len(state.Topics))
	for name, id := range state.Topics {
		r.topics[name] = id
	}
	r.clients = make(map[int64]int64, len(state.Clients))
	for id, chat := range state.Clients {
		r.clients[id] = chat
	}
	return nil
}

// Resolve returns the topic for userKey, creating it on first contact. The
// registry lock is held across the create call: topic creation is not
// idempotent at the transport, so two concurrent first messages from the
// same key must not both miss the lookup.
func (r *TopicRegistry) Resolve(ctx context.Context, userKey string, chatID int64) (topicID int64, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.topics[userKey]; ok {
		return id, false, nil
	}

	id, err := r.creator.CreateForumTopic(ctx, r.groupID, userKey)
	if err != nil {
		return 0, false, fmt.Errorf("create topic for %q: %w", userKey, err)
	}
	r.topics[userKey] = id
	r.clients[id] = chatID
	if err := r.saveLocked(); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ChatFor returns the private chat that owns topicID.
func (r *TopicRegistry) ChatFor(topicID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chatID, ok := r.clients[topicID]
	return chatID, ok
}

func (r *TopicRegistry) saveLocked() error {
	state := topicState{Topics: r.topics, Clients: r.clients}
	if err := fsstore.WriteJSONAtomic(r.path, state, fsstore.FileOptions{}); err != nil {
		return fmt.Errorf("save topic state: %w", err)
	}
	return nil
}
