package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/unibox/configs"
	"github.com/maheshrc27/unibox/internal/models"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/maheshrc27/unibox/internal/repository"
	"github.com/maheshrc27/unibox/internal/service"
)

type WebhookHandler struct {
	cfg      config.Config
	adapters platform.Registry
	events   repository.WebhookEventRepository
	ingest   service.IngestService
}

func NewWebhookHandler(cfg config.Config, adapters platform.Registry, events repository.WebhookEventRepository, ingest service.IngestService) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, adapters: adapters, events: events, ingest: ingest}
}

// Verify answers the platform's GET challenge-response subscription check.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	platformTag := c.Params("platform")
	if _, ok := h.adapters.Get(platformTag); !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.cfg.WebhookVerifyToken != "" && token == h.cfg.WebhookVerifyToken {
		slog.Info("webhook verified", "platform", platformTag)
		return c.SendString(challenge)
	}

	slog.Warn("webhook verification failed", "platform", platformTag)
	return c.Status(fiber.StatusForbidden).SendString("Verification failed")
}

// Receive runs the POST state machine:
// received → signature-verify → {rejected | logged} → parsed → {ingested | dropped}.
// A 2xx goes back to the platform for every verified delivery except
// transient infra failures; non-2xx would trigger an unbounded retry storm
// for payloads that can never succeed.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	platformTag := c.Params("platform")
	adapter, ok := h.adapters.Get(platformTag)
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}

	// fasthttp reuses request buffers; the payload outlives this handler in
	// the audit row.
	body := append([]byte(nil), c.Body()...)
	signature := c.Get("X-Hub-Signature-256")

	if !adapter.VerifySignature(body, signature) {
		slog.Warn("webhook signature verification failed", "platform", platformTag)
		return c.Status(fiber.StatusForbidden).SendString("Invalid signature")
	}

	headers := models.Metadata{}
	for key, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	// Durability floor: the verified payload is logged before any parsing so
	// a crash mid-pipeline cannot lose it.
	eventID, err := h.events.Create(c.Context(), &models.WebhookEvent{
		Platform:  platformTag,
		EventType: deriveEventType(body),
		Payload:   body,
		Headers:   headers,
		Status:    models.WebhookStatusPending,
	})
	if err != nil {
		// Transient infra failure: let the platform retry.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event log unavailable"})
	}

	event, err := adapter.ParseWebhookEvent(body)
	if err != nil {
		slog.Error("webhook payload unparsable", "platform", platformTag, "error", err.Error())
		if mErr := h.events.MarkFailed(c.Context(), eventID, err.Error()); mErr != nil {
			slog.Info(mErr.Error())
		}
		// Acknowledge: a malformed payload never becomes parsable on retry.
		return c.JSON(fiber.Map{"status": "success"})
	}

	if event == nil {
		// Status-only or unrecognized payload; nothing to ingest.
		if mErr := h.events.MarkProcessed(c.Context(), eventID); mErr != nil {
			slog.Info(mErr.Error())
		}
		return c.JSON(fiber.Map{"status": "success"})
	}

	if _, err := h.ingest.IngestMessage(c.Context(), platformTag, event); err != nil && !service.Recoverable(err) {
		slog.Error("webhook ingestion failed", "platform", platformTag,
			"message_id", event.MessageID, "error", err.Error())
		if mErr := h.events.MarkFailed(c.Context(), eventID, err.Error()); mErr != nil {
			slog.Info(mErr.Error())
		}
		return c.JSON(fiber.Map{"status": "success"})
	}

	if err := h.events.MarkProcessed(c.Context(), eventID); err != nil {
		slog.Info(err.Error())
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// deriveEventType labels the audit row with the payload's object field.
func deriveEventType(body []byte) string {
	var probe struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Object == "" {
		return "unknown"
	}
	return probe.Object
}
