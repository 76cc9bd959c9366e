package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/unibox/internal/models"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/maheshrc27/unibox/internal/realtime"
	"github.com/maheshrc27/unibox/internal/repository"
	"github.com/maheshrc27/unibox/internal/vault"
)

// MessageService covers the user-facing operations on stored conversations:
// listing, read-state transitions and outbound sends.
type MessageService interface {
	ListConversations(ctx context.Context, userID int64) ([]*models.Conversation, error)
	ListMessages(ctx context.Context, userID, conversationID int64, limit int) ([]*models.Message, error)
	MarkMessageRead(ctx context.Context, userID, messageID int64) error
	MarkConversationRead(ctx context.Context, userID, conversationID int64) error
	SetConversationArchived(ctx context.Context, userID, conversationID int64, archived bool) error
	SendMessage(ctx context.Context, userID, conversationID int64, text, messageType, mediaURL string) (*models.Message, error)
}

type messageService struct {
	accounts      repository.PlatformAccountRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	adapters      platform.Registry
	vault         *vault.Vault
	hub           *realtime.Hub
}

func NewMessageService(
	accounts repository.PlatformAccountRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	adapters platform.Registry,
	v *vault.Vault,
	hub *realtime.Hub) MessageService {
	return &messageService{
		accounts:      accounts,
		conversations: conversations,
		messages:      messages,
		adapters:      adapters,
		vault:         v,
		hub:           hub,
	}
}

func (s *messageService) ListConversations(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	return s.conversations.ListByUserID(ctx, userID)
}

func (s *messageService) ListMessages(ctx context.Context, userID, conversationID int64, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if _, _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversationID(ctx, conversationID, limit)
}

func (s *messageService) MarkMessageRead(ctx context.Context, userID, messageID int64) error {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message == nil {
		return ErrMessageNotFound
	}

	account, err := s.accounts.GetByID(ctx, message.PlatformAccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if account.UserID != userID {
		return ErrNotOwner
	}

	changed, err := s.messages.MarkRead(ctx, messageID, time.Now())
	if err != nil {
		return err
	}
	if !changed {
		// Already read; unread_count was adjusted the first time.
		return nil
	}

	if message.IsIncoming {
		if err := s.conversations.DecrementUnread(ctx, message.ConversationID); err != nil {
			return err
		}
	}

	s.notifyPlatformRead(ctx, account, message)

	s.hub.Broadcast(userID, realtime.EventMessageRead, map[string]interface{}{
		"message_id":      message.ID,
		"conversation_id": message.ConversationID,
	})
	return nil
}

func (s *messageService) MarkConversationRead(ctx context.Context, userID, conversationID int64) error {
	conversation, account, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	marked, err := s.messages.MarkConversationRead(ctx, conversationID, time.Now())
	if err != nil {
		return err
	}
	if marked == 0 {
		return nil
	}

	if err := s.conversations.ResetUnread(ctx, conversationID); err != nil {
		return err
	}

	s.notifyPlatformRead(ctx, account, &models.Message{
		ConversationID: conversation.ID,
		SenderID:       conversation.ParticipantID,
	})

	s.hub.Broadcast(userID, realtime.EventMessageRead, map[string]interface{}{
		"conversation_id": conversationID,
		"marked":          marked,
	})
	return nil
}

func (s *messageService) SetConversationArchived(ctx context.Context, userID, conversationID int64, archived bool) error {
	if _, _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.conversations.SetArchived(ctx, conversationID, archived)
}

func (s *messageService) SendMessage(ctx context.Context, userID, conversationID int64, text, messageType, mediaURL string) (*models.Message, error) {
	conversation, account, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	adapter, ok := s.adapters.Get(account.Platform)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}

	token, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		return nil, err
	}

	messageType = models.NormalizeMessageType(messageType)

	var platformMessageID string
	if messageType == models.MessageTypeText || mediaURL == "" {
		messageType = models.MessageTypeText
		platformMessageID, err = adapter.SendText(ctx, conversation.ParticipantID, text, AccountRef(account), token)
	} else {
		platformMessageID, err = adapter.SendMedia(ctx, conversation.ParticipantID, messageType, mediaURL, text, AccountRef(account), token)
	}
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	now := time.Now()
	message := &models.Message{
		ConversationID:    conversation.ID,
		PlatformAccountID: account.ID,
		PlatformMessageID: platformMessageID,
		MessageType:       messageType,
		Content:           text,
		MediaURL:          mediaURL,
		SenderID:          account.PlatformUserID,
		SenderName:        account.PlatformUsername,
		IsIncoming:        false,
		IsRead:            true,
		ReadAt:            sql.NullTime{Time: now, Valid: true},
		SentAt:            now,
		ReceivedAt:        now,
		Metadata:          models.Metadata{},
	}

	id, err := s.messages.Create(ctx, message)
	if err != nil {
		// The webhook echo may have landed first; the send itself succeeded.
		if Recoverable(err) {
			slog.Debug("send: echo already ingested", "platform_message_id", platformMessageID)
			return message, nil
		}
		return nil, err
	}
	message.ID = id

	if err := s.conversations.RegisterMessage(ctx, conversation.ID, now, false); err != nil {
		return nil, err
	}

	s.hub.Broadcast(userID, realtime.EventNewMessage, map[string]interface{}{
		"message": map[string]interface{}{
			"id":              message.ID,
			"conversation_id": conversation.ID,
			"platform":        account.Platform,
			"sender_name":     message.SenderName,
			"content":         message.Content,
			"message_type":    message.MessageType,
			"media_url":       message.MediaURL,
			"is_incoming":     false,
			"sent_at":         now.Format(time.RFC3339),
		},
	})
	return message, nil
}

func (s *messageService) ownedConversation(ctx context.Context, userID, conversationID int64) (*models.Conversation, *models.PlatformAccount, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if conversation == nil {
		return nil, nil, ErrConversationNotFound
	}

	account, err := s.accounts.GetByID(ctx, conversation.PlatformAccountID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, ErrAccountNotFound
	}
	if account.UserID != userID {
		return nil, nil, ErrNotOwner
	}
	return conversation, account, nil
}

// notifyPlatformRead reports the read state upstream for platforms that
// support it. Best effort only.
func (s *messageService) notifyPlatformRead(ctx context.Context, account *models.PlatformAccount, message *models.Message) {
	adapter, ok := s.adapters.Get(account.Platform)
	if !ok {
		return
	}
	notifier, ok := adapter.(platform.ReadNotifier)
	if !ok {
		return
	}

	token, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		slog.Error("read notify: token decryption failed", "account_id", account.ID, "error", err.Error())
		return
	}

	if err := notifier.NotifyRead(ctx, message.PlatformMessageID, message.SenderID, AccountRef(account), token); err != nil {
		slog.Debug("read notify failed", "account_id", account.ID, "error", err.Error())
	}
}
