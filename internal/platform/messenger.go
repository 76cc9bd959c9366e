package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/maheshrc27/unibox/internal/models"
)

// messengerAdapter integrates Facebook Messenger through the Graph API.
// accountRef is the Facebook page id.
type messengerAdapter struct {
	graph *GraphClient
}

func NewMessengerAdapter(graph *GraphClient) Adapter {
	return &messengerAdapter{graph: graph}
}

func (a *messengerAdapter) Platform() string {
	return models.PlatformMessenger
}

func (a *messengerAdapter) VerifySignature(body []byte, signatureHeader string) bool {
	return a.graph.VerifySignature(body, signatureHeader)
}

type messengerWebhookPayload struct {
	Entry []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Recipient struct {
				ID string `json:"id"`
			} `json:"recipient"`
			Timestamp int64 `json:"timestamp"`
			Message   *struct {
				Mid         string          `json:"mid"`
				Text        string          `json:"text"`
				IsEcho      bool            `json:"is_echo"`
				Attachments []rawAttachment `json:"attachments"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

func (a *messengerAdapter) ParseWebhookEvent(body []byte) (*CanonicalEvent, error) {
	var payload messengerWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("messenger: malformed webhook payload: %w", err)
	}

	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			// Delivery/read/postback events carry no message.
			if event.Message == nil || event.Message.Mid == "" {
				continue
			}

			attachments := normalizeAttachments(event.Message.Attachments)
			msgType, mediaURL := eventTypeAndMedia(attachments)

			return &CanonicalEvent{
				Platform:    models.PlatformMessenger,
				MessageID:   event.Message.Mid,
				SenderID:    event.Sender.ID,
				RecipientID: event.Recipient.ID,
				Text:        event.Message.Text,
				MediaURL:    mediaURL,
				MessageType: msgType,
				IsEcho:      event.Message.IsEcho,
				Timestamp:   metaTimestamp(event.Timestamp),
			}, nil
		}
	}
	return nil, nil
}

func (a *messengerAdapter) FetchConversations(ctx context.Context, accountRef, token string, limit int) ([]RemoteConversation, error) {
	params := url.Values{}
	params.Set("fields", "id,participants,updated_time,message_count,unread_count")
	params.Set("limit", strconv.Itoa(limit))

	items, err := a.graph.GetPaged(ctx, accountRef+"/conversations", token, params, limit)
	if err != nil {
		return nil, fmt.Errorf("messenger: fetch conversations: %w", err)
	}
	return decodeConversations(items), nil
}

func (a *messengerAdapter) FetchMessages(ctx context.Context, conversationID, token string, limit int) ([]RemoteMessage, error) {
	params := url.Values{}
	params.Set("fields", "id,message,from,created_time,attachments,sticker")
	params.Set("limit", strconv.Itoa(limit))

	items, err := a.graph.GetPaged(ctx, conversationID+"/messages", token, params, limit)
	if err != nil {
		return nil, fmt.Errorf("messenger: fetch messages: %w", err)
	}
	return decodeMessages(items), nil
}

func (a *messengerAdapter) SendText(ctx context.Context, recipientID, text, accountRef, token string) (string, error) {
	body := map[string]interface{}{
		"recipient":      map[string]string{"id": recipientID},
		"message":        map[string]string{"text": text},
		"messaging_type": "RESPONSE",
	}
	return a.sendMessage(ctx, accountRef, token, body)
}

func (a *messengerAdapter) SendMedia(ctx context.Context, recipientID, mediaType, mediaURL, caption, accountRef, token string) (string, error) {
	body := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type":    mediaType,
				"payload": map[string]string{"url": mediaURL},
			},
		},
		"messaging_type": "RESPONSE",
	}
	return a.sendMessage(ctx, accountRef, token, body)
}

func (a *messengerAdapter) sendMessage(ctx context.Context, accountRef, token string, body interface{}) (string, error) {
	var result struct {
		MessageID string `json:"message_id"`
	}
	if err := a.graph.Post(ctx, accountRef+"/messages", token, body, &result); err != nil {
		return "", fmt.Errorf("messenger: send message: %w", err)
	}
	return result.MessageID, nil
}

// NotifyRead sends the mark_seen sender action for a conversation partner.
func (a *messengerAdapter) NotifyRead(ctx context.Context, messageID, participantID, accountRef, token string) error {
	body := map[string]interface{}{
		"recipient":     map[string]string{"id": participantID},
		"sender_action": "mark_seen",
	}
	if err := a.graph.Post(ctx, accountRef+"/messages", token, body, nil); err != nil {
		return fmt.Errorf("messenger: mark seen: %w", err)
	}
	return nil
}

func (a *messengerAdapter) GetUserProfile(ctx context.Context, userID, token string) (*UserProfile, error) {
	params := url.Values{}
	params.Set("fields", "id,name,first_name,last_name,profile_pic")

	var result struct {
		Name       string `json:"name"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		ProfilePic string `json:"profile_pic"`
	}
	if err := a.graph.Get(ctx, userID, token, params, &result); err != nil {
		return nil, fmt.Errorf("messenger: fetch user profile: %w", err)
	}

	name := result.Name
	if name == "" {
		name = result.FirstName + " " + result.LastName
	}
	return &UserProfile{Name: name, Avatar: result.ProfilePic}, nil
}
