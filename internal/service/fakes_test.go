package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maheshrc27/unibox/internal/models"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/maheshrc27/unibox/internal/vault"
)

const testVaultKey = "0123456789abcdef"

func testVault() *vault.Vault {
	v, err := vault.New(testVaultKey)
	if err != nil {
		panic(err)
	}
	return v
}

func encryptedToken(token string) string {
	out, err := testVault().Encrypt(token)
	if err != nil {
		panic(err)
	}
	return out
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []*models.PlatformAccount
	lastSync map[int64]time.Time
}

func newFakeAccountRepo(accounts ...*models.PlatformAccount) *fakeAccountRepo {
	return &fakeAccountRepo{accounts: accounts, lastSync: make(map[int64]time.Time)}
}

func (r *fakeAccountRepo) Create(ctx context.Context, pa *models.PlatformAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pa.ID = int64(len(r.accounts) + 1)
	r.accounts = append(r.accounts, pa)
	return pa.ID, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) FindByPlatformUserID(ctx context.Context, platformTag string, candidates []string) (*models.PlatformAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Platform != platformTag {
			continue
		}
		for _, c := range candidates {
			if a.PlatformUserID == c {
				return a, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) FindActiveByPlatform(ctx context.Context, platformTag string) (*models.PlatformAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Platform == platformTag && a.IsActive {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ListActive(ctx context.Context) ([]*models.PlatformAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PlatformAccount
	for _, a := range r.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PlatformAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.PlatformAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PlatformAccount
	for _, a := range r.accounts {
		if !a.IsActive || !a.TokenExpiresAt.Valid {
			continue
		}
		exp := a.TokenExpiresAt.Time
		if !exp.Before(from) && exp.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) RotateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			a.AccessToken = accessToken
			if refreshToken != "" {
				a.RefreshToken = refreshToken
			}
			a.TokenExpiresAt.Time = expiresAt
			a.TokenExpiresAt.Valid = true
			return nil
		}
	}
	return errors.New("account not found")
}

func (r *fakeAccountRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, a := range r.accounts {
		if a.IsActive && a.TokenExpiresAt.Valid && a.TokenExpiresAt.Time.Before(now) {
			a.IsActive = false
			count++
		}
	}
	return count, nil
}

func (r *fakeAccountRepo) Deactivate(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			a.IsActive = false
			return nil
		}
	}
	return errors.New("account not found")
}

func (r *fakeAccountRepo) SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSync[id] = syncedAt
	return nil
}

type registerCall struct {
	conversationID  int64
	incrementUnread bool
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[string]*models.Conversation
	registerCalls []registerCall
	unreadResets  []int64
	decrements    []int64
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]*models.Conversation)}
}

func convKey(accountID int64, platformConversationID string) string {
	return fmt.Sprintf("%d:%s", accountID, platformConversationID)
}

func (r *fakeConversationRepo) GetOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := convKey(conv.PlatformAccountID, conv.PlatformConversationID)
	if existing, ok := r.conversations[key]; ok {
		return existing, false, nil
	}
	r.nextID++
	stored := *conv
	stored.ID = r.nextID
	r.conversations[key] = &stored
	return &stored, true, nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeConversationRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	return nil, nil
}

func (r *fakeConversationRepo) RegisterMessage(ctx context.Context, id int64, lastMessageAt time.Time, incrementUnread bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerCalls = append(r.registerCalls, registerCall{conversationID: id, incrementUnread: incrementUnread})
	for _, c := range r.conversations {
		if c.ID == id {
			if lastMessageAt.After(c.LastMessageAt) {
				c.LastMessageAt = lastMessageAt
			}
			if incrementUnread {
				c.UnreadCount++
			}
		}
	}
	return nil
}

func (r *fakeConversationRepo) DecrementUnread(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decrements = append(r.decrements, id)
	for _, c := range r.conversations {
		if c.ID == id && c.UnreadCount > 0 {
			c.UnreadCount--
		}
	}
	return nil
}

func (r *fakeConversationRepo) ResetUnread(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreadResets = append(r.unreadResets, id)
	for _, c := range r.conversations {
		if c.ID == id {
			c.UnreadCount = 0
		}
	}
	return nil
}

func (r *fakeConversationRepo) SetArchived(ctx context.Context, id int64, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.ID == id {
			c.IsArchived = archived
		}
	}
	return nil
}

func (r *fakeConversationRepo) byPlatformID(accountID int64, platformConversationID string) *models.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conversations[convKey(accountID, platformConversationID)]
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages map[string]*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*models.Message)}
}

func (r *fakeMessageRepo) Create(ctx context.Context, m *models.Message) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.PlatformMessageID]; ok {
		return 0, ErrDuplicateMessage
	}
	r.nextID++
	stored := *m
	stored.ID = r.nextID
	r.messages[m.PlatformMessageID] = &stored
	return stored.ID, nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) ExistsByPlatformMessageID(ctx context.Context, platformMessageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.messages[platformMessageID]
	return ok, nil
}

func (r *fakeMessageRepo) ListByConversationID(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, id int64, readAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			if m.IsRead {
				return false, nil
			}
			m.IsRead = true
			m.ReadAt.Time = readAt
			m.ReadAt.Valid = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMessageRepo) MarkConversationRead(ctx context.Context, conversationID int64, readAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var marked int64
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.IsIncoming && !m.IsRead {
			m.IsRead = true
			m.ReadAt.Time = readAt
			m.ReadAt.Valid = true
			marked++
		}
	}
	return marked, nil
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *fakeMessageRepo) byPlatformID(platformMessageID string) *models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[platformMessageID]
}

// fakeAdapter satisfies platform.Adapter with overridable behavior per test.
type fakeAdapter struct {
	platformTag      string
	conversations    []platform.RemoteConversation
	messagesByConv   map[string][]platform.RemoteMessage
	fetchMessagesErr map[string]error
	sendTextFn       func(recipientID, text string) (string, error)
	profileFn        func(userID string) (*platform.UserProfile, error)
	sentMedia        []string
}

func (a *fakeAdapter) Platform() string { return a.platformTag }

func (a *fakeAdapter) VerifySignature(body []byte, signatureHeader string) bool { return true }

func (a *fakeAdapter) ParseWebhookEvent(body []byte) (*platform.CanonicalEvent, error) {
	return nil, nil
}

func (a *fakeAdapter) FetchConversations(ctx context.Context, accountRef, token string, limit int) ([]platform.RemoteConversation, error) {
	return a.conversations, nil
}

func (a *fakeAdapter) FetchMessages(ctx context.Context, conversationID, token string, limit int) ([]platform.RemoteMessage, error) {
	if err := a.fetchMessagesErr[conversationID]; err != nil {
		return nil, err
	}
	return a.messagesByConv[conversationID], nil
}

func (a *fakeAdapter) SendText(ctx context.Context, recipientID, text, accountRef, token string) (string, error) {
	if a.sendTextFn != nil {
		return a.sendTextFn(recipientID, text)
	}
	return "sent." + recipientID, nil
}

func (a *fakeAdapter) SendMedia(ctx context.Context, recipientID, mediaType, mediaURL, caption, accountRef, token string) (string, error) {
	a.sentMedia = append(a.sentMedia, mediaURL)
	return "sent.media." + recipientID, nil
}

func (a *fakeAdapter) GetUserProfile(ctx context.Context, userID, token string) (*platform.UserProfile, error) {
	if a.profileFn != nil {
		return a.profileFn(userID)
	}
	return nil, errors.New("no profile")
}
