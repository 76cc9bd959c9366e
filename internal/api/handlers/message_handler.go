package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/unibox/internal/service"
	"github.com/maheshrc27/unibox/internal/transfer"
)

type MessageHandler struct {
	s service.MessageService
}

func NewMessageHandler(s service.MessageService) *MessageHandler {
	return &MessageHandler{s: s}
}

func (h *MessageHandler) ListConversations(c *fiber.Ctx) error {
	userID := GetUserID(c)

	conversations, err := h.s.ListConversations(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list conversations",
		})
	}
	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	userID := GetUserID(c)

	conversationID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation id",
		})
	}
	limit := c.QueryInt("limit", 50)

	messages, err := h.s.ListMessages(c.Context(), userID, int64(conversationID), limit)
	if err != nil {
		return statusForServiceError(c, err, "Unable to list messages")
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.MarkReadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	var err error
	switch {
	case req.MessageID != 0:
		err = h.s.MarkMessageRead(c.Context(), userID, req.MessageID)
	case req.ConversationID != 0:
		err = h.s.MarkConversationRead(c.Context(), userID, req.ConversationID)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message_id or conversation_id is required",
		})
	}
	if err != nil {
		return statusForServiceError(c, err, "Unable to mark as read")
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *MessageHandler) Archive(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.ArchiveConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	if req.ConversationID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation_id is required",
		})
	}

	if err := h.s.SetConversationArchived(c.Context(), userID, req.ConversationID, req.Archived); err != nil {
		return statusForServiceError(c, err, "Unable to archive conversation")
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	if req.ConversationID == 0 || (req.Text == "" && req.MediaURL == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation_id and text or media_url are required",
		})
	}

	message, err := h.s.SendMessage(c.Context(), userID, req.ConversationID, req.Text, req.MessageType, req.MediaURL)
	if err != nil {
		return statusForServiceError(c, err, "Unable to send message")
	}
	return c.JSON(fiber.Map{"message": message})
}

func statusForServiceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotOwner):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrAccountInactive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
	}
}
