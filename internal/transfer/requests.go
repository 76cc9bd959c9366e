package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type SendMessageRequest struct {
	ConversationID int64  `json:"conversation_id"`
	Text           string `json:"text"`
	MessageType    string `json:"message_type"`
	MediaURL       string `json:"media_url"`
}

type MarkReadRequest struct {
	MessageID      int64 `json:"message_id"`
	ConversationID int64 `json:"conversation_id"`
}

type ArchiveConversationRequest struct {
	ConversationID int64 `json:"conversation_id"`
	Archived       bool  `json:"archived"`
}

type ConnectWhatsAppRequest struct {
	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"business_account_id"`
	AccessToken       string `json:"access_token"`
}

type DisconnectAccountRequest struct {
	AccountID int64 `json:"account_id"`
}
