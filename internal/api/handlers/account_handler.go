package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/unibox/internal/service"
	"github.com/maheshrc27/unibox/internal/transfer"
)

type AccountHandler struct {
	s service.AccountService
}

func NewAccountHandler(s service.AccountService) *AccountHandler {
	return &AccountHandler{s: s}
}

func (h *AccountHandler) List(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}
	return c.JSON(fiber.Map{"accounts": accounts})
}

func (h *AccountHandler) ConnectWhatsApp(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.ConnectWhatsAppRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	account, err := h.s.ConnectWhatsApp(c.Context(), userID, req.PhoneNumberID, req.BusinessAccountID, req.AccessToken)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"account": account})
}

func (h *AccountHandler) Disconnect(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.DisconnectAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.s.Disconnect(c.Context(), userID, req.AccountID); err != nil {
		return statusForServiceError(c, err, "Unable to disconnect account")
	}
	return c.SendStatus(fiber.StatusOK)
}
