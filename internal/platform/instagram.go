package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/maheshrc27/unibox/internal/models"
)

// instagramAdapter integrates Instagram Direct Messages through the Graph
// API. accountRef is the Instagram business account id.
type instagramAdapter struct {
	graph *GraphClient
}

func NewInstagramAdapter(graph *GraphClient) Adapter {
	return &instagramAdapter{graph: graph}
}

func (a *instagramAdapter) Platform() string {
	return models.PlatformInstagram
}

func (a *instagramAdapter) VerifySignature(body []byte, signatureHeader string) bool {
	return a.graph.VerifySignature(body, signatureHeader)
}

type instagramWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				ThreadID string `json:"thread_id"`
				Mid      string `json:"mid"`
				From     struct {
					ID       string `json:"id"`
					Username string `json:"username"`
				} `json:"from"`
				To struct {
					ID string `json:"id"`
				} `json:"to"`
				Message struct {
					Text   string `json:"text"`
					IsEcho bool   `json:"is_echo"`
				} `json:"message"`
				Attachments []rawAttachment `json:"attachments"`
				Timestamp   int64           `json:"timestamp"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (a *instagramAdapter) ParseWebhookEvent(body []byte) (*CanonicalEvent, error) {
	var payload instagramWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("instagram: malformed webhook payload: %w", err)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			v := change.Value
			if v.Mid == "" {
				continue
			}

			attachments := normalizeAttachments(v.Attachments)
			msgType, mediaURL := eventTypeAndMedia(attachments)

			return &CanonicalEvent{
				Platform:       models.PlatformInstagram,
				ConversationID: v.ThreadID,
				MessageID:      v.Mid,
				SenderID:       v.From.ID,
				SenderName:     v.From.Username,
				RecipientID:    v.To.ID,
				Text:           v.Message.Text,
				MediaURL:       mediaURL,
				MessageType:    msgType,
				IsEcho:         v.Message.IsEcho,
				Timestamp:      metaTimestamp(v.Timestamp),
			}, nil
		}
	}
	return nil, nil
}

type graphConversation struct {
	ID           string `json:"id"`
	Participants struct {
		Data []Participant `json:"data"`
	} `json:"participants"`
	UpdatedTime string `json:"updated_time"`
}

type graphMessage struct {
	ID          string      `json:"id"`
	Message     string      `json:"message"`
	From        Participant `json:"from"`
	CreatedTime string      `json:"created_time"`
	Attachments struct {
		Data []rawAttachment `json:"data"`
	} `json:"attachments"`
}

func (a *instagramAdapter) FetchConversations(ctx context.Context, accountRef, token string, limit int) ([]RemoteConversation, error) {
	params := url.Values{}
	params.Set("fields", "id,participants,updated_time")
	params.Set("limit", strconv.Itoa(limit))

	items, err := a.graph.GetPaged(ctx, accountRef+"/conversations", token, params, limit)
	if err != nil {
		return nil, fmt.Errorf("instagram: fetch conversations: %w", err)
	}
	return decodeConversations(items), nil
}

func (a *instagramAdapter) FetchMessages(ctx context.Context, conversationID, token string, limit int) ([]RemoteMessage, error) {
	params := url.Values{}
	params.Set("fields", "id,message,from,created_time,attachments")
	params.Set("limit", strconv.Itoa(limit))

	items, err := a.graph.GetPaged(ctx, conversationID+"/messages", token, params, limit)
	if err != nil {
		return nil, fmt.Errorf("instagram: fetch messages: %w", err)
	}
	return decodeMessages(items), nil
}

func (a *instagramAdapter) SendText(ctx context.Context, recipientID, text, accountRef, token string) (string, error) {
	body := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
	return a.sendMessage(ctx, accountRef, token, body)
}

func (a *instagramAdapter) SendMedia(ctx context.Context, recipientID, mediaType, mediaURL, caption, accountRef, token string) (string, error) {
	body := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type":    mediaType,
				"payload": map[string]string{"url": mediaURL},
			},
		},
	}
	return a.sendMessage(ctx, accountRef, token, body)
}

func (a *instagramAdapter) sendMessage(ctx context.Context, accountRef, token string, body interface{}) (string, error) {
	var result struct {
		MessageID string `json:"message_id"`
	}
	if err := a.graph.Post(ctx, accountRef+"/messages", token, body, &result); err != nil {
		return "", fmt.Errorf("instagram: send message: %w", err)
	}
	return result.MessageID, nil
}

func (a *instagramAdapter) GetUserProfile(ctx context.Context, userID, token string) (*UserProfile, error) {
	params := url.Values{}
	params.Set("fields", "id,username,name,profile_pic")

	var result struct {
		Name       string `json:"name"`
		Username   string `json:"username"`
		ProfilePic string `json:"profile_pic"`
	}
	if err := a.graph.Get(ctx, userID, token, params, &result); err != nil {
		return nil, fmt.Errorf("instagram: fetch user profile: %w", err)
	}

	name := result.Name
	if name == "" {
		name = result.Username
	}
	return &UserProfile{Name: name, Avatar: result.ProfilePic}, nil
}

func decodeConversations(items []json.RawMessage) []RemoteConversation {
	out := make([]RemoteConversation, 0, len(items))
	for _, item := range items {
		var gc graphConversation
		if err := json.Unmarshal(item, &gc); err != nil || gc.ID == "" {
			continue
		}
		out = append(out, RemoteConversation{
			ID:           gc.ID,
			Participants: gc.Participants.Data,
			UpdatedTime:  gc.UpdatedTime,
		})
	}
	return out
}

func decodeMessages(items []json.RawMessage) []RemoteMessage {
	out := make([]RemoteMessage, 0, len(items))
	for _, item := range items {
		var gm graphMessage
		if err := json.Unmarshal(item, &gm); err != nil || gm.ID == "" {
			continue
		}
		out = append(out, RemoteMessage{
			ID:          gm.ID,
			Text:        gm.Message,
			From:        gm.From,
			CreatedTime: gm.CreatedTime,
			Attachments: normalizeAttachments(gm.Attachments.Data),
		})
	}
	return out
}
