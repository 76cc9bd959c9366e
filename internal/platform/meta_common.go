package platform

import (
	"time"

	"github.com/maheshrc27/unibox/internal/models"
)

// rawAttachment is the attachment shape shared by Instagram and Messenger
// webhook payloads and pull APIs.
type rawAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
	ImageData struct {
		URL string `json:"url"`
	} `json:"image_data"`
	FileURL string `json:"file_url"`
}

func (a rawAttachment) url() string {
	if a.Payload.URL != "" {
		return a.Payload.URL
	}
	if a.ImageData.URL != "" {
		return a.ImageData.URL
	}
	return a.FileURL
}

// normalizeAttachments maps provider attachments onto the fixed enum. Unknown
// attachment types with a URL become files; without one they degrade to text.
func normalizeAttachments(raw []rawAttachment) []Attachment {
	var out []Attachment
	for _, a := range raw {
		mapped := models.NormalizeMessageType(a.Type)
		if mapped == models.MessageTypeText {
			if a.url() == "" {
				continue
			}
			mapped = models.MessageTypeFile
		}
		out = append(out, Attachment{Type: mapped, URL: a.url()})
	}
	return out
}

// eventTypeAndMedia derives the canonical message type and media URL from
// normalized attachments; no attachments means a text message.
func eventTypeAndMedia(attachments []Attachment) (string, string) {
	if len(attachments) == 0 {
		return models.MessageTypeText, ""
	}
	return attachments[0].Type, attachments[0].URL
}

// metaTimestamp converts the numeric timestamps Meta sends (milliseconds for
// messaging events, seconds elsewhere) to time.Time. Zero means absent.
func metaTimestamp(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	if ts > 1e12 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}

// OtherParticipant picks the participant that is not the platform's own
// account from a conversation participant list.
func OtherParticipant(participants []Participant, ownID string) Participant {
	for _, p := range participants {
		if p.ID != ownID {
			return p
		}
	}
	if len(participants) > 0 {
		return participants[0]
	}
	return Participant{}
}
