package platform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInstagramParseWebhookEvent(t *testing.T) {
	adapter := NewInstagramAdapter(NewGraphClient("secret", "v21.0"))

	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "17841400000000000",
			"changes": [{
				"field": "messages",
				"value": {
					"thread_id": "t_100",
					"mid": "mid.abc123",
					"from": {"id": "555", "username": "customer_a"},
					"to": {"id": "17841400000000000"},
					"message": {"text": "hello there"},
					"timestamp": 1717000000
				}
			}]
		}]
	}`)

	event, err := adapter.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, "instagram", event.Platform)
	require.Equal(t, "t_100", event.ConversationID)
	require.Equal(t, "mid.abc123", event.MessageID)
	require.Equal(t, "555", event.SenderID)
	require.Equal(t, "customer_a", event.SenderName)
	require.Equal(t, "17841400000000000", event.RecipientID)
	require.Equal(t, "hello there", event.Text)
	require.Equal(t, "text", event.MessageType)
	require.False(t, event.IsEcho)
	require.Equal(t, time.Unix(1717000000, 0), event.Timestamp)
}

func TestInstagramParseSkipsNonMessageChanges(t *testing.T) {
	adapter := NewInstagramAdapter(NewGraphClient("secret", "v21.0"))

	body := []byte(`{
		"entry": [{
			"changes": [{"field": "comments", "value": {"mid": "mid.1"}}]
		}]
	}`)

	event, err := adapter.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.Nil(t, event)
}

func TestInstagramParseMalformedPayload(t *testing.T) {
	adapter := NewInstagramAdapter(NewGraphClient("secret", "v21.0"))

	_, err := adapter.ParseWebhookEvent([]byte(`{"entry": "not-an-array"}`))
	require.Error(t, err)
}

func TestMessengerParseWebhookEvent(t *testing.T) {
	adapter := NewMessengerAdapter(NewGraphClient("secret", "v21.0"))

	body := []byte(`{
		"object": "page",
		"entry": [{
			"messaging": [{
				"sender": {"id": "999"},
				"recipient": {"id": "page_1"},
				"timestamp": 1717000000000,
				"message": {
					"mid": "m_abc",
					"attachments": [{"type": "image", "payload": {"url": "https://cdn.example.com/a.jpg"}}]
				}
			}]
		}]
	}`)

	event, err := adapter.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, "messenger", event.Platform)
	require.Equal(t, "m_abc", event.MessageID)
	require.Equal(t, "999", event.SenderID)
	require.Equal(t, "page_1", event.RecipientID)
	require.Equal(t, "image", event.MessageType)
	require.Equal(t, "https://cdn.example.com/a.jpg", event.MediaURL)
	require.Equal(t, time.UnixMilli(1717000000000), event.Timestamp)
}

func TestMessengerParseEchoFlag(t *testing.T) {
	adapter := NewMessengerAdapter(NewGraphClient("secret", "v21.0"))

	body := []byte(`{
		"entry": [{
			"messaging": [{
				"sender": {"id": "page_1"},
				"recipient": {"id": "999"},
				"message": {"mid": "m_echo", "text": "reply from page", "is_echo": true}
			}]
		}]
	}`)

	event, err := adapter.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.True(t, event.IsEcho)
}

func TestMessengerParseDeliveryEventHasNoMessage(t *testing.T) {
	adapter := NewMessengerAdapter(NewGraphClient("secret", "v21.0"))

	body := []byte(`{
		"entry": [{
			"messaging": [{
				"sender": {"id": "999"},
				"recipient": {"id": "page_1"},
				"delivery": {"watermark": 1717000000000}
			}]
		}]
	}`)

	event, err := adapter.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.Nil(t, event)
}

func TestWhatsAppParseTextMessage(t *testing.T) {
	adapter := NewWhatsAppAdapter(NewGraphClient("secret", "v21.0"))

	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [{
				"value": {
					"metadata": {"display_phone_number": "15550001111", "phone_number_id": "phone_1"},
					"contacts": [{"wa_id": "15557772222", "profile": {"name": "Jordan"}}],
					"messages": [{
						"id": "wamid.xyz",
						"from": "15557772222",
						"timestamp": "1717000000",
						"type": "text",
						"text": {"body": "order status?"}
					}]
				}
			}]
		}]
	}`)

	event, err := adapter.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, "whatsapp", event.Platform)
	require.Equal(t, "wamid.xyz", event.MessageID)
	require.Equal(t, "15557772222", event.SenderID)
	require.Equal(t, "Jordan", event.SenderName)
	require.Equal(t, "15550001111", event.RecipientID)
	require.Equal(t, "order status?", event.Text)
	require.Equal(t, time.Unix(1717000000, 0), event.Timestamp)
}

func TestWhatsAppParseStatusOnlyPayload(t *testing.T) {
	adapter := NewWhatsAppAdapter(NewGraphClient("secret", "v21.0"))

	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"metadata": {"phone_number_id": "phone_1"},
					"statuses": [{"id": "wamid.xyz", "status": "delivered"}]
				}
			}]
		}]
	}`)

	event, err := adapter.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.Nil(t, event)
}

func TestWhatsAppParseImageMessage(t *testing.T) {
	adapter := NewWhatsAppAdapter(NewGraphClient("secret", "v21.0"))

	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"metadata": {"display_phone_number": "15550001111"},
					"messages": [{
						"id": "wamid.img",
						"from": "15557772222",
						"timestamp": "1717000000",
						"type": "image",
						"image": {"id": "media_77", "caption": "receipt"}
					}]
				}
			}]
		}]
	}`)

	event, err := adapter.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, "image", event.MessageType)
	require.Equal(t, "media_77", event.MediaID)
	require.Equal(t, "receipt", event.Text)
	require.Empty(t, event.MediaURL)
}

func TestNormalizeAttachments(t *testing.T) {
	var raw []rawAttachment
	require.NoError(t, json.Unmarshal([]byte(`[
		{"type": "image", "payload": {"url": "https://cdn.example.com/a.jpg"}},
		{"type": "fallback", "file_url": "https://cdn.example.com/doc.pdf"},
		{"type": "fallback"}
	]`), &raw))

	out := normalizeAttachments(raw)
	require.Len(t, out, 2)
	require.Equal(t, Attachment{Type: "image", URL: "https://cdn.example.com/a.jpg"}, out[0])
	require.Equal(t, Attachment{Type: "file", URL: "https://cdn.example.com/doc.pdf"}, out[1])
}

func TestOtherParticipant(t *testing.T) {
	participants := []Participant{
		{ID: "own", Name: "Page"},
		{ID: "555", Name: "Customer"},
	}

	require.Equal(t, "555", OtherParticipant(participants, "own").ID)
	require.Equal(t, "own", OtherParticipant(participants[:1], "").ID)
	require.Empty(t, OtherParticipant(nil, "own").ID)
}
