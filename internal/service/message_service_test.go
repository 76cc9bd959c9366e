package service

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/unibox/internal/models"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/maheshrc27/unibox/internal/realtime"
	"github.com/stretchr/testify/require"
)

// notifyingAdapter records upstream read receipts.
type notifyingAdapter struct {
	fakeAdapter
	notified []string
}

func (a *notifyingAdapter) NotifyRead(ctx context.Context, messageID, participantID, accountRef, token string) error {
	a.notified = append(a.notified, messageID)
	return nil
}

func seedConversationWithMessage(t *testing.T, accounts *fakeAccountRepo, conversations *fakeConversationRepo, messages *fakeMessageRepo) (*models.Conversation, *models.Message) {
	t.Helper()

	conv, _, err := conversations.GetOrCreate(context.Background(), &models.Conversation{
		PlatformAccountID:      1,
		PlatformConversationID: "t_100",
		ParticipantID:          "555",
		ParticipantName:        "Jordan",
		LastMessageAt:          time.Now(),
	})
	require.NoError(t, err)

	msg := &models.Message{
		ConversationID:    conv.ID,
		PlatformAccountID: 1,
		PlatformMessageID: "mid.1",
		MessageType:       models.MessageTypeText,
		Content:           "hello",
		SenderID:          "555",
		IsIncoming:        true,
		SentAt:            time.Now(),
		ReceivedAt:        time.Now(),
	}
	id, err := messages.Create(context.Background(), msg)
	require.NoError(t, err)
	msg.ID = id

	require.NoError(t, conversations.RegisterMessage(context.Background(), conv.ID, msg.SentAt, true))
	return conv, msg
}

func TestMarkMessageReadClearsUnread(t *testing.T) {
	accounts := newFakeAccountRepo(instagramTestAccount())
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	hub := realtime.NewHub()
	adapter := &notifyingAdapter{fakeAdapter: fakeAdapter{platformTag: models.PlatformInstagram}}

	conv, msg := seedConversationWithMessage(t, accounts, conversations, messages)
	require.Equal(t, 1, conv.UnreadCount)

	_, events := hub.Subscribe(7)

	svc := NewMessageService(accounts, conversations, messages,
		platform.Registry{models.PlatformInstagram: adapter}, testVault(), hub)

	require.NoError(t, svc.MarkMessageRead(context.Background(), 7, msg.ID))

	stored := messages.byPlatformID("mid.1")
	require.True(t, stored.IsRead)
	require.True(t, stored.ReadAt.Valid)
	require.Zero(t, conversations.byPlatformID(1, "t_100").UnreadCount)
	require.Equal(t, []string{"mid.1"}, adapter.notified)

	select {
	case evt := <-events:
		require.Equal(t, realtime.EventMessageRead, evt["type"])
	case <-time.After(time.Second):
		t.Fatal("expected message_read broadcast")
	}

	// Second mark is a no-op: no double decrement, no second receipt.
	require.NoError(t, svc.MarkMessageRead(context.Background(), 7, msg.ID))
	require.Len(t, conversations.decrements, 1)
	require.Len(t, adapter.notified, 1)
}

func TestMarkMessageReadOwnership(t *testing.T) {
	accounts := newFakeAccountRepo(instagramTestAccount())
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()

	_, msg := seedConversationWithMessage(t, accounts, conversations, messages)

	svc := NewMessageService(accounts, conversations, messages,
		platform.Registry{}, testVault(), realtime.NewHub())

	err := svc.MarkMessageRead(context.Background(), 99, msg.ID)
	require.ErrorIs(t, err, ErrNotOwner)
	require.False(t, messages.byPlatformID("mid.1").IsRead)
}

func TestMarkConversationRead(t *testing.T) {
	accounts := newFakeAccountRepo(instagramTestAccount())
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	hub := realtime.NewHub()

	conv, _ := seedConversationWithMessage(t, accounts, conversations, messages)

	second := &models.Message{
		ConversationID:    conv.ID,
		PlatformAccountID: 1,
		PlatformMessageID: "mid.2",
		IsIncoming:        true,
		SentAt:            time.Now(),
		ReceivedAt:        time.Now(),
	}
	_, err := messages.Create(context.Background(), second)
	require.NoError(t, err)
	require.NoError(t, conversations.RegisterMessage(context.Background(), conv.ID, second.SentAt, true))

	svc := NewMessageService(accounts, conversations, messages,
		platform.Registry{models.PlatformInstagram: &fakeAdapter{platformTag: models.PlatformInstagram}}, testVault(), hub)

	require.NoError(t, svc.MarkConversationRead(context.Background(), 7, conv.ID))

	require.True(t, messages.byPlatformID("mid.1").IsRead)
	require.True(t, messages.byPlatformID("mid.2").IsRead)
	require.Zero(t, conversations.byPlatformID(1, "t_100").UnreadCount)
}

func TestSetConversationArchived(t *testing.T) {
	accounts := newFakeAccountRepo(instagramTestAccount())
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()

	conv, _ := seedConversationWithMessage(t, accounts, conversations, messages)

	svc := NewMessageService(accounts, conversations, messages,
		platform.Registry{}, testVault(), realtime.NewHub())

	require.NoError(t, svc.SetConversationArchived(context.Background(), 7, conv.ID, true))
	require.True(t, conversations.byPlatformID(1, "t_100").IsArchived)

	require.NoError(t, svc.SetConversationArchived(context.Background(), 7, conv.ID, false))
	require.False(t, conversations.byPlatformID(1, "t_100").IsArchived)

	err := svc.SetConversationArchived(context.Background(), 42, conv.ID, true)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestSendMessagePersistsEcho(t *testing.T) {
	accounts := newFakeAccountRepo(instagramTestAccount())
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	hub := realtime.NewHub()

	conv, _ := seedConversationWithMessage(t, accounts, conversations, messages)

	var sentTo, sentText string
	adapter := &fakeAdapter{
		platformTag: models.PlatformInstagram,
		sendTextFn: func(recipientID, text string) (string, error) {
			sentTo, sentText = recipientID, text
			return "mid.sent.1", nil
		},
	}

	_, events := hub.Subscribe(7)

	svc := NewMessageService(accounts, conversations, messages,
		platform.Registry{models.PlatformInstagram: adapter}, testVault(), hub)

	sent, err := svc.SendMessage(context.Background(), 7, conv.ID, "thanks for reaching out", "", "")
	require.NoError(t, err)
	require.Equal(t, "555", sentTo)
	require.Equal(t, "thanks for reaching out", sentText)
	require.Equal(t, "mid.sent.1", sent.PlatformMessageID)
	require.False(t, sent.IsIncoming)
	require.True(t, sent.IsRead)

	stored := messages.byPlatformID("mid.sent.1")
	require.NotNil(t, stored)

	// Outbound sends never bump the unread counter.
	require.Equal(t, 1, conversations.byPlatformID(1, "t_100").UnreadCount)

	select {
	case evt := <-events:
		require.Equal(t, realtime.EventNewMessage, evt["type"])
	case <-time.After(time.Second):
		t.Fatal("expected new_message broadcast")
	}
}

func TestSendMessageToleratesEchoAlreadyIngested(t *testing.T) {
	accounts := newFakeAccountRepo(instagramTestAccount())
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()

	conv, _ := seedConversationWithMessage(t, accounts, conversations, messages)

	adapter := &fakeAdapter{
		platformTag: models.PlatformInstagram,
		sendTextFn: func(recipientID, text string) (string, error) {
			// Simulate the webhook echo landing before our insert.
			_, err := messages.Create(context.Background(), &models.Message{
				ConversationID:    conv.ID,
				PlatformAccountID: 1,
				PlatformMessageID: "mid.sent.2",
				SentAt:            time.Now(),
				ReceivedAt:        time.Now(),
			})
			return "mid.sent.2", err
		},
	}

	svc := NewMessageService(accounts, conversations, messages,
		platform.Registry{models.PlatformInstagram: adapter}, testVault(), realtime.NewHub())

	sent, err := svc.SendMessage(context.Background(), 7, conv.ID, "hi again", "", "")
	require.NoError(t, err)
	require.Equal(t, "mid.sent.2", sent.PlatformMessageID)
}

func TestSendMessageInactiveAccount(t *testing.T) {
	account := instagramTestAccount()
	account.IsActive = false
	accounts := newFakeAccountRepo(account)
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()

	conv, _ := seedConversationWithMessage(t, accounts, conversations, messages)

	svc := NewMessageService(accounts, conversations, messages,
		platform.Registry{}, testVault(), realtime.NewHub())

	_, err := svc.SendMessage(context.Background(), 7, conv.ID, "hello?", "", "")
	require.ErrorIs(t, err, ErrAccountInactive)
}

func TestListMessagesChecksOwnership(t *testing.T) {
	accounts := newFakeAccountRepo(instagramTestAccount())
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()

	conv, _ := seedConversationWithMessage(t, accounts, conversations, messages)

	svc := NewMessageService(accounts, conversations, messages,
		platform.Registry{}, testVault(), realtime.NewHub())

	listed, err := svc.ListMessages(context.Background(), 7, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = svc.ListMessages(context.Background(), 42, conv.ID, 0)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.ListMessages(context.Background(), 7, 9999, 0)
	require.ErrorIs(t, err, ErrConversationNotFound)
}
