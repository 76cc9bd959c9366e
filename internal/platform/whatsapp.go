package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/maheshrc27/unibox/internal/models"
)

// whatsappAdapter integrates the WhatsApp Business Cloud API. accountRef is
// the WhatsApp phone number id. Push delivery is the primary source of truth
// for WhatsApp; there is no conversation listing API, so pull reconciliation
// is a no-op.
type whatsappAdapter struct {
	graph *GraphClient
}

func NewWhatsAppAdapter(graph *GraphClient) Adapter {
	return &whatsappAdapter{graph: graph}
}

func (a *whatsappAdapter) Platform() string {
	return models.PlatformWhatsApp
}

func (a *whatsappAdapter) VerifySignature(body []byte, signatureHeader string) bool {
	return a.graph.VerifySignature(body, signatureHeader)
}

type whatsappMedia struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
}

type whatsappWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
					Image    *whatsappMedia `json:"image"`
					Video    *whatsappMedia `json:"video"`
					Audio    *whatsappMedia `json:"audio"`
					Document *whatsappMedia `json:"document"`
					Sticker  *whatsappMedia `json:"sticker"`
					Location *struct {
						Latitude  float64 `json:"latitude"`
						Longitude float64 `json:"longitude"`
						Name      string  `json:"name"`
					} `json:"location"`
				} `json:"messages"`
				Statuses []json.RawMessage `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (a *whatsappAdapter) ParseWebhookEvent(body []byte) (*CanonicalEvent, error) {
	var payload whatsappWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("whatsapp: malformed webhook payload: %w", err)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			v := change.Value
			if len(v.Messages) == 0 {
				// Status-only deliveries (sent/delivered/read/failed) carry
				// no message to ingest.
				continue
			}

			msg := v.Messages[0]
			event := &CanonicalEvent{
				Platform:    models.PlatformWhatsApp,
				MessageID:   msg.ID,
				SenderID:    msg.From,
				RecipientID: v.Metadata.DisplayPhoneNumber,
				MessageType: models.NormalizeMessageType(msg.Type),
				Timestamp:   whatsappTimestamp(msg.Timestamp),
			}

			for _, contact := range v.Contacts {
				if contact.WaID == msg.From {
					event.SenderName = contact.Profile.Name
				}
			}

			switch msg.Type {
			case "text":
				event.Text = msg.Text.Body
			case "image":
				applyWhatsAppMedia(event, msg.Image)
			case "video":
				applyWhatsAppMedia(event, msg.Video)
			case "audio":
				applyWhatsAppMedia(event, msg.Audio)
			case "document":
				applyWhatsAppMedia(event, msg.Document)
			case "sticker":
				applyWhatsAppMedia(event, msg.Sticker)
			case "location":
				if msg.Location != nil {
					event.Text = fmt.Sprintf("%s (%f, %f)", msg.Location.Name, msg.Location.Latitude, msg.Location.Longitude)
				}
			}

			return event, nil
		}
	}
	return nil, nil
}

func applyWhatsAppMedia(event *CanonicalEvent, media *whatsappMedia) {
	if media == nil {
		return
	}
	event.MediaID = media.ID
	event.Text = media.Caption
}

func whatsappTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	seconds, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(seconds, 0)
}

func (a *whatsappAdapter) FetchConversations(ctx context.Context, accountRef, token string, limit int) ([]RemoteConversation, error) {
	// Webhook-based platform; nothing to pull.
	return nil, nil
}

func (a *whatsappAdapter) FetchMessages(ctx context.Context, conversationID, token string, limit int) ([]RemoteMessage, error) {
	return nil, nil
}

func (a *whatsappAdapter) SendText(ctx context.Context, recipientID, text, accountRef, token string) (string, error) {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipientID,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return a.sendMessage(ctx, accountRef, token, body)
}

func (a *whatsappAdapter) SendMedia(ctx context.Context, recipientID, mediaType, mediaURL, caption, accountRef, token string) (string, error) {
	if mediaType == models.MessageTypeFile {
		mediaType = "document"
	}

	mediaObject := map[string]string{"link": mediaURL}
	if caption != "" && (mediaType == "image" || mediaType == "video" || mediaType == "document") {
		mediaObject["caption"] = caption
	}

	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipientID,
		"type":              mediaType,
		mediaType:           mediaObject,
	}
	return a.sendMessage(ctx, accountRef, token, body)
}

func (a *whatsappAdapter) sendMessage(ctx context.Context, accountRef, token string, body interface{}) (string, error) {
	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := a.graph.Post(ctx, accountRef+"/messages", token, body, &result); err != nil {
		return "", fmt.Errorf("whatsapp: send message: %w", err)
	}
	if len(result.Messages) == 0 {
		return "", fmt.Errorf("whatsapp: send message: no message id in response")
	}
	return result.Messages[0].ID, nil
}

// NotifyRead reports a message as read back to WhatsApp.
func (a *whatsappAdapter) NotifyRead(ctx context.Context, messageID, participantID, accountRef, token string) error {
	return a.MarkMessageRead(ctx, messageID, accountRef, token)
}

// MarkMessageRead reports a message as read back to WhatsApp.
func (a *whatsappAdapter) MarkMessageRead(ctx context.Context, messageID, accountRef, token string) error {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	if err := a.graph.Post(ctx, accountRef+"/messages", token, body, nil); err != nil {
		return fmt.Errorf("whatsapp: mark message read: %w", err)
	}
	return nil
}

// PhoneNumberInfo is the validation result for WhatsApp Business credentials.
type PhoneNumberInfo struct {
	PhoneNumberID      string `json:"id"`
	VerifiedName       string `json:"verified_name"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	QualityRating      string `json:"quality_rating"`
}

// ValidateCredentials checks a phone number id / access token pair by
// fetching the phone number record.
func (a *whatsappAdapter) ValidateCredentials(ctx context.Context, phoneNumberID, token string) (*PhoneNumberInfo, error) {
	params := url.Values{}
	params.Set("fields", "id,verified_name,display_phone_number,quality_rating")

	var info PhoneNumberInfo
	if err := a.graph.Get(ctx, phoneNumberID, token, params, &info); err != nil {
		return nil, fmt.Errorf("whatsapp: validate credentials: %w", err)
	}
	return &info, nil
}

// ResolveMediaURL exchanges an inbound media id for a downloadable URL.
func (a *whatsappAdapter) ResolveMediaURL(ctx context.Context, mediaID, token string) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	if err := a.graph.Get(ctx, mediaID, token, nil, &result); err != nil {
		return "", fmt.Errorf("whatsapp: resolve media url: %w", err)
	}
	return result.URL, nil
}

// GetUserProfile: WhatsApp exposes no profile lookup; the display name comes
// from webhook contact blocks. Best effort: echo the phone number.
func (a *whatsappAdapter) GetUserProfile(ctx context.Context, userID, token string) (*UserProfile, error) {
	return &UserProfile{Name: userID}, nil
}
