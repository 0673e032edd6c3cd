package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Saipa12/TgZamirBor/internal/telegram"
)

const (
	welcomeSentinel  = "#done"
	mediaPlaceholder = "[media]"
)

// Config carries the deployment identity the router needs.
type Config struct {
	// GroupID is the staff forum supergroup every conversation is mirrored
	// into.
	GroupID int64
	// BotID is the bot's own user id, used to recognize replies to
	// bot-authored messages in the group.
	BotID int64
	// Greeting is the text sent on /start before the welcome media replay.
	Greeting string
}

// Router consumes transport updates, classifies each into exactly one event
// kind, and drives the topic registry and message map to produce outbound
// relay calls. Each update is handled independently; the shared tables do
// their own locking, so HandleUpdate is safe to call concurrently.
type Router struct {
	cfg       Config
	transport Transport
	topics    *TopicRegistry
	messages  *MessageMap
	welcome   *WelcomeSet
	logger    *slog.Logger
}

func NewRouter(cfg Config, transport Transport, topics *TopicRegistry, messages *MessageMap, welcome *WelcomeSet, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:       cfg,
		transport: transport,
		topics:    topics,
		messages:  messages,
		welcome:   welcome,
		logger:    logger,
	}
}

type eventKind int

const (
	eventIgnore eventKind = iota
	eventWelcomeCapture
	eventWelcomeFreeze
	eventStart
	eventPrivateMessage
	eventGroupReply
	eventEdit
	eventDelete
)

func (k eventKind) String() string {
	switch k {
	case eventWelcomeCapture:
		return "welcome_capture"
	case eventWelcomeFreeze:
		return "welcome_freeze"
	case eventStart:
		return "start"
	case eventPrivateMessage:
		return "private_message"
	case eventGroupReply:
		return "group_reply"
	case eventEdit:
		return "edit"
	case eventDelete:
		return "delete"
	default:
		return "ignore"
	}
}

// event is the classified form of an update: one kind, decided once, plus
// the message it applies to.
type event struct {
	kind    eventKind
	msg     *telegram.Message
	private bool
}

// HandleUpdate classifies and dispatches one inbound update. Transport and
// persistence failures fail the event, never the process; mapping misses
// inside handlers are expected and resolve to no-ops.
func (r *Router) HandleUpdate(ctx context.Context, u telegram.Update) error {
	ev := r.classify(u)
	if ev.kind == eventIgnore {
		return nil
	}

	logger := r.logger.With(
		"event_id", uuid.NewString(),
		"event_kind", ev.kind.String(),
		"chat_id", ev.msg.Chat.ID,
		"message_id", ev.msg.MessageID,
	)
	logger.Debug("relay_event")

	switch ev.kind {
	case eventWelcomeCapture:
		r.welcome.Append(ev.msg.MessageID)
		logger.Info("welcome_media_captured")
		return nil
	case eventWelcomeFreeze:
		if err := r.welcome.Freeze(); err != nil {
			return err
		}
		logger.Info("welcome_media_frozen", "count", len(r.welcome.IDs()))
		return nil
	case eventStart:
		return r.handleStart(ctx, logger, ev.msg)
	case eventPrivateMessage:
		return r.handlePrivateMessage(ctx, logger, ev.msg)
	case eventGroupReply:
		return r.handleGroupReply(ctx, logger, ev.msg)
	case eventEdit:
		return r.handleEdit(ctx, logger, ev)
	case eventDelete:
		return r.handleDelete(ctx, logger, ev)
	default:
		return nil
	}
}

// classify decides exactly one handling mode per update. Priority order:
// welcome capture gate (group side only), private commands, private relay,
// group reply relay, edits, deletes; anything else is ignored.
func (r *Router) classify(u telegram.Update) event {
	if edited := u.EditedMessage; edited != nil && edited.Chat != nil {
		private := strings.EqualFold(edited.Chat.Type, "private")
		if private || edited.Chat.ID == r.cfg.GroupID {
			return event{kind: eventEdit, msg: edited, private: private}
		}
		return event{kind: eventIgnore}
	}

	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return event{kind: eventIgnore}
	}

	private := strings.EqualFold(msg.Chat.Type, "private")
	inGroup := msg.Chat.ID == r.cfg.GroupID
	cmd := normalizeSlashCommand(firstWord(msg.Text))

	if inGroup && r.welcome.Capturing() {
		// The capture gate suppresses all other group relay logic; the
		// private feed is independent and unaffected.
		if msg.MessageThreadID == 0 && len(msg.Photo) > 0 {
			return event{kind: eventWelcomeCapture, msg: msg}
		}
		if msg.MessageThreadID == 0 && strings.TrimSpace(msg.Text) == welcomeSentinel {
			return event{kind: eventWelcomeFreeze, msg: msg}
		}
		return event{kind: eventIgnore}
	}

	switch {
	case private && cmd == "/start":
		return event{kind: eventStart, msg: msg, private: true}
	case (private || inGroup) && cmd == "/delete":
		return event{kind: eventDelete, msg: msg, private: private}
	case private:
		return event{kind: eventPrivateMessage, msg: msg, private: true}
	case inGroup && msg.MessageThreadID != 0 && msg.ReplyTo != nil &&
		msg.ReplyTo.From != nil && msg.ReplyTo.From.ID == r.cfg.BotID:
		return event{kind: eventGroupReply, msg: msg}
	default:
		return event{kind: eventIgnore}
	}
}

// handleStart greets the user and replays the frozen welcome media in
// original capture order via the copy primitive.
func (r *Router) handleStart(ctx context.Context, logger *slog.Logger, msg *telegram.Message) error {
	chatID := msg.Chat.ID
	if _, err := r.transport.SendText(ctx, chatID, 0, r.cfg.Greeting, 0); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}
	// Only a frozen set replays; a capture still in progress has nothing
	// official to show yet.
	var media []int64
	if !r.welcome.Capturing() {
		media = r.welcome.IDs()
	}
	for _, id := range media {
		if _, err := r.transport.CopyMessage(ctx, chatID, r.cfg.GroupID, id, 0); err != nil {
			return fmt.Errorf("copy welcome media %d: %w", id, err)
		}
	}
	logger.Info("start_welcomed", "media_count", len(media))
	return nil
}

// handlePrivateMessage mirrors a user's message into their topic. Replies
// are anchored to the group counterpart of the replied-to message; when the
// replied-to message is bot-authored and never crossed the boundary, it is
// backfilled into the topic first and the new text anchors to that copy.
func (r *Router) handlePrivateMessage(ctx context.Context, logger *slog.Logger, msg *telegram.Message) error {
	chatID := msg.Chat.ID
	userKey := telegram.DisplayName(msg.From)
	if userKey == "" {
		logger.Debug("relay_skip", "reason", "no_user_key")
		return nil
	}

	topicID, created, err := r.topics.Resolve(ctx, userKey, chatID)
	if err != nil {
		return err
	}
	if created {
		logger.Info("topic_created", "topic_id", topicID, "user_key", userKey)
	}

	var anchor int64
	if reply := msg.ReplyTo; reply != nil {
		if groupID, ok := r.messages.GroupFor(chatID, reply.MessageID); ok {
			anchor = groupID
		} else {
			// The replied-to message is bot-authored and has no group-side
			// counterpart yet. Mirror it into the topic so the reply chain
			// stays readable, then anchor the new text to the copy.
			copied, err := r.transport.CopyMessage(ctx, r.cfg.GroupID, chatID, reply.MessageID, topicID)
			if err != nil {
				return fmt.Errorf("backfill reply target: %w", err)
			}
			anchor = copied
			logger.Info("reply_target_backfilled", "topic_id", topicID, "copied_message_id", copied)
		}
	}

	text := relayText(msg)
	sent, err := r.transport.SendText(ctx, r.cfg.GroupID, topicID, text, anchor)
	if err != nil {
		return fmt.Errorf("relay to topic %d: %w", topicID, err)
	}
	if err := r.messages.Record(chatID, msg.MessageID, sent); err != nil {
		return err
	}
	logger.Info("relayed_to_group", "topic_id", topicID, "group_message_id", sent)
	return nil
}

// handleGroupReply routes a staff reply inside a topic back to the topic's
// owner, anchored to the user-side counterpart when one is known.
func (r *Router) handleGroupReply(ctx context.Context, logger *slog.Logger, msg *telegram.Message) error {
	clientChat, ok := r.topics.ChatFor(msg.MessageThreadID)
	if !ok {
		logger.Debug("relay_skip", "reason", "unknown_topic", "topic_id", msg.MessageThreadID)
		return nil
	}

	var anchor int64
	if ref, ok := r.messages.UserFor(msg.ReplyTo.MessageID); ok {
		anchor = ref.MessageID
	}

	sent, err := r.transport.SendText(ctx, clientChat, 0, relayText(msg), anchor)
	if err != nil {
		return fmt.Errorf("relay to chat %d: %w", clientChat, err)
	}
	if err := r.messages.Record(clientChat, sent, msg.MessageID); err != nil {
		return err
	}
	logger.Info("relayed_to_user", "client_chat_id", clientChat, "user_message_id", sent)
	return nil
}

// handleEdit propagates an edit to the counterpart message. No counterpart
// means the crossing predates tracked state; the edit is silently dropped
// with no transport call and no persistence write.
func (r *Router) handleEdit(ctx context.Context, logger *slog.Logger, ev event) error {
	msg := ev.msg
	var targetChat, targetMessage int64
	if ev.private {
		groupID, ok := r.messages.GroupFor(msg.Chat.ID, msg.MessageID)
		if !ok {
			logger.Debug("edit_skip", "reason", "no_counterpart")
			return nil
		}
		targetChat, targetMessage = r.cfg.GroupID, groupID
	} else {
		ref, ok := r.messages.UserFor(msg.MessageID)
		if !ok {
			logger.Debug("edit_skip", "reason", "no_counterpart")
			return nil
		}
		targetChat, targetMessage = ref.ChatID, ref.MessageID
	}

	if err := r.transport.EditMessageText(ctx, targetChat, targetMessage, relayText(msg)); err != nil {
		if telegram.IsNotFound(err) {
			logger.Debug("edit_skip", "reason", "counterpart_gone", "error", err.Error())
			return nil
		}
		return fmt.Errorf("edit counterpart: %w", err)
	}
	logger.Info("edit_propagated", "target_chat_id", targetChat, "target_message_id", targetMessage)
	return nil
}

// handleDelete deletes the counterpart of the message the /delete command
// replies to. A /delete that replies to nothing, or targets a message with
// no recorded crossing, is a no-op.
func (r *Router) handleDelete(ctx context.Context, logger *slog.Logger, ev event) error {
	msg := ev.msg
	if msg.ReplyTo == nil {
		logger.Debug("delete_skip", "reason", "not_a_reply")
		return nil
	}

	var targetChat, targetMessage int64
	if ev.private {
		groupID, ok := r.messages.GroupFor(msg.Chat.ID, msg.ReplyTo.MessageID)
		if !ok {
			logger.Debug("delete_skip", "reason", "no_counterpart")
			return nil
		}
		targetChat, targetMessage = r.cfg.GroupID, groupID
	} else {
		ref, ok := r.messages.UserFor(msg.ReplyTo.MessageID)
		if !ok {
			logger.Debug("delete_skip", "reason", "no_counterpart")
			return nil
		}
		targetChat, targetMessage = ref.ChatID, ref.MessageID
	}

	if err := r.transport.DeleteMessage(ctx, targetChat, targetMessage); err != nil {
		if telegram.IsNotFound(err) {
			logger.Debug("delete_skip", "reason", "counterpart_gone", "error", err.Error())
			return nil
		}
		return fmt.Errorf("delete counterpart: %w", err)
	}
	logger.Info("delete_propagated", "target_chat_id", targetChat, "target_message_id", targetMessage)
	return nil
}

func relayText(msg *telegram.Message) string {
	text := strings.TrimSpace(telegram.TextOrCaption(msg))
	if text == "" {
		return mediaPlaceholder
	}
	return text
}

func firstWord(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " \n\t"); i >= 0 {
		return text[:i]
	}
	return text
}

func normalizeSlashCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || !strings.HasPrefix(cmd, "/") {
		return ""
	}
	// Allow "/cmd@BotName" variants by stripping "@...".
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}
