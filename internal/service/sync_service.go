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

// SyncStats aggregates one reconciliation run.
type SyncStats struct {
	ConversationsSeen int `json:"conversations_seen"`
	MessagesSeen      int `json:"messages_seen"`
	NewMessages       int `json:"new_messages"`
	Errors            int `json:"errors"`
}

// SyncService pulls conversations and messages from platforms as a backstop
// for missed or incomplete push delivery.
type SyncService interface {
	SyncAccount(ctx context.Context, account *models.PlatformAccount) (*SyncStats, error)
}

type syncService struct {
	accounts      repository.PlatformAccountRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	adapters      platform.Registry
	vault         *vault.Vault
	hub           *realtime.Hub
	fetchLimit    int
}

func NewSyncService(
	accounts repository.PlatformAccountRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	adapters platform.Registry,
	v *vault.Vault,
	hub *realtime.Hub) SyncService {
	return &syncService{
		accounts:      accounts,
		conversations: conversations,
		messages:      messages,
		adapters:      adapters,
		vault:         v,
		hub:           hub,
		fetchLimit:    50,
	}
}

func (s *syncService) SyncAccount(ctx context.Context, account *models.PlatformAccount) (*SyncStats, error) {
	stats := &SyncStats{}

	adapter, ok := s.adapters.Get(account.Platform)
	if !ok {
		return stats, ErrUnsupportedPlatform
	}

	// Decryption happens once, up front, outside any storage transaction.
	token, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		return stats, fmt.Errorf("sync: account %d: %w", account.ID, err)
	}

	remote, err := adapter.FetchConversations(ctx, AccountRef(account), token, s.fetchLimit)
	if err != nil {
		return stats, fmt.Errorf("sync: account %d: fetch conversations: %w", account.ID, err)
	}

	for _, rc := range remote {
		stats.ConversationsSeen++
		if err := s.syncConversation(ctx, account, adapter, token, rc, stats); err != nil {
			// Isolated per-conversation failure: count, log, continue.
			stats.Errors++
			slog.Error("sync: conversation failed",
				"account_id", account.ID, "conversation", rc.ID, "error", err.Error())
		}
	}

	now := time.Now()
	if err := s.accounts.SetLastSyncAt(ctx, account.ID, now); err != nil {
		slog.Info(err.Error())
	}

	if stats.NewMessages > 0 {
		s.hub.Broadcast(account.UserID, realtime.EventSyncUpdate, map[string]interface{}{
			"platform":     account.Platform,
			"status":       "completed",
			"new_messages": stats.NewMessages,
		})
	}

	slog.Info("sync: run completed", "account_id", account.ID, "platform", account.Platform,
		"conversations", stats.ConversationsSeen, "messages", stats.MessagesSeen,
		"new", stats.NewMessages, "errors", stats.Errors)
	return stats, nil
}

func (s *syncService) syncConversation(ctx context.Context, account *models.PlatformAccount, adapter platform.Adapter, token string, rc platform.RemoteConversation, stats *SyncStats) error {
	other := platform.OtherParticipant(rc.Participants, account.PlatformUserID)

	participantID := other.ID
	if participantID == "" {
		participantID = "unknown"
	}
	participantName := other.Name
	if participantName == "" {
		participantName = other.Username
	}
	if participantName == "" {
		participantName = participantID
	}

	conversation, _, err := s.conversations.GetOrCreate(ctx, &models.Conversation{
		PlatformAccountID:      account.ID,
		PlatformConversationID: rc.ID,
		ParticipantID:          participantID,
		ParticipantName:        participantName,
		LastMessageAt:          time.Now(),
		Metadata:               models.Metadata{},
	})
	if err != nil {
		return err
	}

	remoteMessages, err := adapter.FetchMessages(ctx, rc.ID, token, s.fetchLimit)
	if err != nil {
		return err
	}

	for _, rm := range remoteMessages {
		stats.MessagesSeen++

		exists, err := s.messages.ExistsByPlatformMessageID(ctx, rm.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		// Pull data carries no echo flag; a message is incoming when its
		// sender is not the account's own platform id.
		incoming := rm.From.ID != account.PlatformUserID

		msgType, mediaURL := models.MessageTypeText, ""
		if len(rm.Attachments) > 0 {
			msgType = rm.Attachments[0].Type
			mediaURL = rm.Attachments[0].URL
		}

		senderName := rm.From.Name
		if senderName == "" {
			senderName = rm.From.Username
		}
		if senderName == "" {
			senderName = rm.From.ID
		}

		sentAt := parseRemoteTime(rm.CreatedTime)

		message := &models.Message{
			ConversationID:    conversation.ID,
			PlatformAccountID: account.ID,
			PlatformMessageID: rm.ID,
			MessageType:       msgType,
			Content:           rm.Text,
			MediaURL:          mediaURL,
			SenderID:          rm.From.ID,
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

		if _, err := s.messages.Create(ctx, message); err != nil {
			if errors.Is(err, repository.ErrDuplicateMessage) {
				continue
			}
			return err
		}

		if err := s.conversations.RegisterMessage(ctx, conversation.ID, sentAt, incoming); err != nil {
			return err
		}
		stats.NewMessages++
	}

	return nil
}

// parseRemoteTime parses Graph created_time values tolerantly; unparsable
// timestamps fall back to ingestion time.
func parseRemoteTime(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05-0700", // Graph offset without colon
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Now()
}

// AccountRef is the identifier the platform expects for account-scoped API
// calls: the Instagram business account id from connect-time metadata, the
// page id for Messenger, the phone number id for WhatsApp.
func AccountRef(account *models.PlatformAccount) string {
	if account.Platform == models.PlatformInstagram {
		if igID := account.Metadata.GetString("ig_account_id"); igID != "" {
			return igID
		}
	}
	return account.PlatformUserID
}
