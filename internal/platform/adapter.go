// Package platform hides the wire formats of the upstream messaging APIs
// behind a uniform adapter capability set. One implementation exists per
// platform; shared pipeline code never branches on platform name beyond
// selecting the adapter from the registry.
package platform

import (
	"context"
	"time"
)

// CanonicalEvent is the platform-agnostic shape of one inbound message,
// produced by ParseWebhookEvent.
type CanonicalEvent struct {
	Platform       string
	ConversationID string
	MessageID      string
	SenderID       string
	SenderName     string
	RecipientID    string
	Text           string
	MediaURL       string
	MediaID        string
	MessageType    string
	IsEcho         bool
	Timestamp      time.Time
}

// Participant identifies one party of a remote conversation.
type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RemoteConversation is a conversation as returned by a platform pull API.
type RemoteConversation struct {
	ID           string
	Participants []Participant
	UpdatedTime  string
}

// RemoteMessage is a message as returned by a platform pull API. CreatedTime
// stays a string; timestamps from pull APIs are parsed tolerantly downstream.
type RemoteMessage struct {
	ID          string
	Text        string
	From        Participant
	CreatedTime string
	Attachments []Attachment
}

// Attachment is a normalized media attachment.
type Attachment struct {
	Type string
	URL  string
}

// UserProfile is best-effort participant display data.
type UserProfile struct {
	Name   string
	Avatar string
}

// Adapter is the per-platform capability set.
type Adapter interface {
	Platform() string

	// VerifySignature checks the X-Hub-Signature-256 header against the raw
	// request body in constant time.
	VerifySignature(body []byte, signatureHeader string) bool

	// ParseWebhookEvent walks the raw payload and returns the contained
	// message, or (nil, nil) when the payload carries none (for example a
	// delivery-status-only event).
	ParseWebhookEvent(body []byte) (*CanonicalEvent, error)

	FetchConversations(ctx context.Context, accountRef, token string, limit int) ([]RemoteConversation, error)
	FetchMessages(ctx context.Context, conversationID, token string, limit int) ([]RemoteMessage, error)

	// SendText and SendMedia return the platform-native message id.
	SendText(ctx context.Context, recipientID, text, accountRef, token string) (string, error)
	SendMedia(ctx context.Context, recipientID, mediaType, mediaURL, caption, accountRef, token string) (string, error)

	GetUserProfile(ctx context.Context, userID, token string) (*UserProfile, error)
}

// MediaResolver is implemented by adapters whose webhooks carry opaque media
// ids instead of URLs (WhatsApp).
type MediaResolver interface {
	ResolveMediaURL(ctx context.Context, mediaID, token string) (string, error)
}

// ReadNotifier is implemented by adapters that can report read state back to
// the platform. Best effort: callers log and move on when it fails.
// WhatsApp keys the receipt on the message id, Messenger on the conversation
// partner; both are passed so each implementation picks what it needs.
type ReadNotifier interface {
	NotifyRead(ctx context.Context, messageID, participantID, accountRef, token string) error
}

// CredentialValidator is implemented by adapters whose accounts connect with
// directly supplied credentials instead of an OAuth exchange (WhatsApp).
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, accountRef, token string) (*PhoneNumberInfo, error)
}

// Registry maps platform tags to adapters.
type Registry map[string]Adapter

func (r Registry) Get(platform string) (Adapter, bool) {
	a, ok := r[platform]
	return a, ok
}
