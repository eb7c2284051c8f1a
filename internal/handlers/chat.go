package handlers

import (
	"encoding/base64"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"lifetracker/internal/models"
	"lifetracker/internal/services"
)

// ChatHandler handles conversation turns
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type chatRequest struct {
	SessionID     string `json:"session_id"`
	Message       string `json:"message"`
	AudioBase64   string `json:"audio_base64"`
	AudioMimeType string `json:"audio_mime_type"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	ReplyText string `json:"reply_text"`
}

// Respond processes one conversation turn, from text or recorded audio
// POST /api/chat
func (h *ChatHandler) Respond(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Message == "" && req.AudioBase64 == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Either message or audio_base64 is required",
		})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.chatService.NewSessionID()
	}

	var reply string
	if req.AudioBase64 != "" {
		audioBytes, decodeErr := base64.StdEncoding.DecodeString(req.AudioBase64)
		if decodeErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "audio_base64 is not valid base64",
			})
		}
		mimeType := req.AudioMimeType
		if mimeType == "" {
			mimeType = "audio/wav"
		}
		reply, err = h.chatService.RespondAudio(c.Context(), user.ID, sessionID, audioBytes, mimeType)
	} else {
		reply, err = h.chatService.Respond(c.Context(), user.ID, sessionID, req.Message)
	}

	if err != nil {
		return h.turnError(c, err)
	}

	return c.JSON(chatResponse{SessionID: sessionID, ReplyText: reply})
}

// ClearSession drops the in-memory transcript for a session
// DELETE /api/chat/:sessionId
func (h *ChatHandler) ClearSession(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	h.chatService.ClearSession(c.Params("sessionId"))
	return c.JSON(fiber.Map{"message": "Session cleared"})
}

// turnError maps turn-level failures to user-visible responses. The
// transcript was left untouched, so the client can simply resend.
func (h *ChatHandler) turnError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrTranscriptionFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Could not understand the audio. Please try again.",
		})
	case errors.Is(err, models.ErrModelUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "The assistant is temporarily unavailable. Please resend your message.",
		})
	case errors.Is(err, models.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		log.Printf("❌ [CHAT] Unexpected turn error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Something went wrong. Can you try again?",
		})
	}
}
