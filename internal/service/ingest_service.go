package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/unibox/internal/models"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/maheshrc27/unibox/internal/realtime"
	"github.com/maheshrc27/unibox/internal/repository"
	"github.com/maheshrc27/unibox/internal/vault"
)

// IngestService turns a canonical event into conversation/message records.
// Safe under arbitrary concurrent invocation including duplicate in-flight
// deliveries of the same message.
type IngestService interface {
	IngestMessage(ctx context.Context, platformTag string, event *platform.CanonicalEvent) (*models.Message, error)
}

type ingestService struct {
	accounts      repository.PlatformAccountRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	adapters      platform.Registry
	vault         *vault.Vault
	hub           *realtime.Hub
}

func NewIngestService(
	accounts repository.PlatformAccountRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	adapters platform.Registry,
	v *vault.Vault,
	hub *realtime.Hub) IngestService {
	return &ingestService{
		accounts:      accounts,
		conversations: conversations,
		messages:      messages,
		adapters:      adapters,
		vault:         v,
		hub:           hub,
	}
}

func (s *ingestService) IngestMessage(ctx context.Context, platformTag string, event *platform.CanonicalEvent) (*models.Message, error) {
	adapter, ok := s.adapters.Get(platformTag)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}

	account, err := s.resolveAccount(ctx, platformTag, event)
	if err != nil {
		return nil, err
	}
	if account == nil {
		slog.Warn("ingest: no platform account for event, dropping",
			"platform", platformTag, "message_id", event.MessageID)
		return nil, ErrUnknownAccount
	}

	conversation, err := s.resolveConversation(ctx, account, adapter, event)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve conversation: %w", err)
	}

	// Cheap pre-check; the unique constraint on platform_message_id is the
	// real idempotency boundary for concurrent duplicates.
	exists, err := s.messages.ExistsByPlatformMessageID(ctx, event.MessageID)
	if err != nil {
		return nil, err
	}
	if exists {
		slog.Debug("ingest: message already stored, skipping",
			"platform", platformTag, "message_id", event.MessageID)
		return nil, ErrDuplicateMessage
	}

	mediaURL := event.MediaURL
	if mediaURL == "" && event.MediaID != "" {
		mediaURL = s.resolveMedia(ctx, account, adapter, event.MediaID)
	}

	sentAt := event.Timestamp
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	senderName := event.SenderName
	if senderName == "" {
		senderName = event.SenderID
	}

	incoming := !event.IsEcho
	message := &models.Message{
		ConversationID:    conversation.ID,
		PlatformAccountID: account.ID,
		PlatformMessageID: event.MessageID,
		MessageType:       models.NormalizeMessageType(event.MessageType),
		Content:           event.Text,
		MediaURL:          mediaURL,
		SenderID:          event.SenderID,
		SenderName:        senderName,
		IsIncoming:        incoming,
		IsRead:            !incoming,
		SentAt:            sentAt,
		ReceivedAt:        time.Now(),
		Metadata:          models.Metadata{},
	}
	if !incoming {
		message.ReadAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	id, err := s.messages.Create(ctx, message)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateMessage) {
			// A concurrent delivery won the insert race.
			return nil, ErrDuplicateMessage
		}
		return nil, fmt.Errorf("ingest: store message: %w", err)
	}
	message.ID = id

	unread := message.IsIncoming && !message.IsRead
	if err := s.conversations.RegisterMessage(ctx, conversation.ID, message.SentAt, unread); err != nil {
		return nil, fmt.Errorf("ingest: update conversation: %w", err)
	}

	// Non-blocking side effect after the writes committed.
	s.hub.Broadcast(account.UserID, realtime.EventNewMessage, map[string]interface{}{
		"message": map[string]interface{}{
			"id":              message.ID,
			"conversation_id": conversation.ID,
			"platform":        platformTag,
			"sender_name":     message.SenderName,
			"content":         message.Content,
			"message_type":    message.MessageType,
			"media_url":       message.MediaURL,
			"is_incoming":     message.IsIncoming,
			"sent_at":         message.SentAt.Format(time.RFC3339),
		},
	})

	slog.Info("ingest: stored message",
		"platform", platformTag, "message_id", event.MessageID, "conversation_id", conversation.ID)
	return message, nil
}

// resolveAccount matches the event to a connected account. Instagram and
// Messenger events name the page/business id as sender or recipient; WhatsApp
// deployments run a single active account.
func (s *ingestService) resolveAccount(ctx context.Context, platformTag string, event *platform.CanonicalEvent) (*models.PlatformAccount, error) {
	switch platformTag {
	case models.PlatformInstagram, models.PlatformMessenger:
		candidates := make([]string, 0, 2)
		if event.RecipientID != "" {
			candidates = append(candidates, event.RecipientID)
		}
		if event.SenderID != "" {
			candidates = append(candidates, event.SenderID)
		}
		return s.accounts.FindByPlatformUserID(ctx, platformTag, candidates)
	case models.PlatformWhatsApp:
		return s.accounts.FindActiveByPlatform(ctx, models.PlatformWhatsApp)
	default:
		return nil, ErrUnsupportedPlatform
	}
}

// resolveConversation get-or-creates the conversation keyed by the explicit
// conversation id when present, else the sender id.
func (s *ingestService) resolveConversation(ctx context.Context, account *models.PlatformAccount, adapter platform.Adapter, event *platform.CanonicalEvent) (*models.Conversation, error) {
	key := event.ConversationID
	if key == "" {
		key = event.SenderID
	}
	if key == "" {
		return nil, errors.New("event carries neither conversation id nor sender id")
	}

	participantID := event.SenderID
	if event.IsEcho {
		participantID = event.RecipientID
	}
	if participantID == "" {
		participantID = "unknown"
	}

	participantName := event.SenderName
	participantAvatar := ""
	if participantName == "" && !event.IsEcho {
		// Best effort display enrichment; ingestion proceeds without it.
		if profile := s.lookupProfile(ctx, account, adapter, participantID); profile != nil {
			participantName = profile.Name
			participantAvatar = profile.Avatar
		}
	}
	if participantName == "" {
		participantName = participantID
	}

	conv := &models.Conversation{
		PlatformAccountID:      account.ID,
		PlatformConversationID: key,
		ParticipantID:          participantID,
		ParticipantName:        participantName,
		ParticipantAvatar:      participantAvatar,
		LastMessageAt:          time.Now(),
		Metadata:               models.Metadata{},
	}

	resolved, created, err := s.conversations.GetOrCreate(ctx, conv)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("ingest: created conversation",
			"platform", account.Platform, "platform_conversation_id", key)
	}
	return resolved, nil
}

func (s *ingestService) lookupProfile(ctx context.Context, account *models.PlatformAccount, adapter platform.Adapter, userID string) *platform.UserProfile {
	token, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		slog.Error("ingest: token decryption failed", "account_id", account.ID, "error", err.Error())
		return nil
	}

	profile, err := adapter.GetUserProfile(ctx, userID, token)
	if err != nil {
		slog.Debug("ingest: profile lookup failed", "user_id", userID, "error", err.Error())
		return nil
	}
	return profile
}

func (s *ingestService) resolveMedia(ctx context.Context, account *models.PlatformAccount, adapter platform.Adapter, mediaID string) string {
	resolver, ok := adapter.(platform.MediaResolver)
	if !ok {
		return ""
	}

	token, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		slog.Error("ingest: token decryption failed", "account_id", account.ID, "error", err.Error())
		return ""
	}

	url, err := resolver.ResolveMediaURL(ctx, mediaID, token)
	if err != nil {
		slog.Debug("ingest: media url resolution failed", "media_id", mediaID, "error", err.Error())
		return ""
	}
	return url
}
