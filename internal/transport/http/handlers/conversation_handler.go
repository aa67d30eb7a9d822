package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/partsmarket/internal/service"
	"github.com/vedran77/partsmarket/internal/transport/http/middleware"
	"github.com/vedran77/partsmarket/pkg/validator"
)

type ConversationHandler struct {
	conversations *service.ConversationService
	messages      *service.MessageService
}

func NewConversationHandler(conversations *service.ConversationService, messages *service.MessageService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, messages: messages}
}

func (h *ConversationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	conv, err := h.conversations.Resolve(r.Context(), userID, input.UserID)
	if err != nil {
		writeServiceError(w, "resolve conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.conversations.List(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, "list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

// With looks up the conversation with another user without creating it.
func (h *ConversationHandler) With(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID, ok := uuidParam(w, r, "userID", "user")
	if !ok {
		return
	}

	conv, err := h.conversations.Find(r.Context(), userID, otherID)
	if err != nil {
		writeServiceError(w, "find conversation", err)
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := uuidParam(w, r, "id", "conversation")
	if !ok {
		return
	}

	msgs, err := h.messages.History(r.Context(), userID, convID)
	if err != nil {
		writeServiceError(w, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, ok := uuidParam(w, r, "id", "conversation")
	if !ok {
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateMessage(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messages.Send(r.Context(), userID, convID, input.Content)
	if err != nil {
		writeServiceError(w, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// SendTo sends to a recipient, resolving the conversation on the way.
func (h *ConversationHandler) SendTo(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		RecipientID uuid.UUID `json:"recipient_id"`
		Content     string    `json:"content"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.RecipientID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "recipient_id is required")
		return
	}
	if errs := validator.ValidateMessage(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messages.SendTo(r.Context(), userID, input.RecipientID, input.Content)
	if err != nil {
		writeServiceError(w, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
