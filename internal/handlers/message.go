package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/murmurnet/murmur/internal/models"
)

// CreateChatHandler opens a conversation. With a single userId it returns
// the 1:1 chat with that user, creating it when absent; with a name and a
// member list it creates a group chat.
func (h *Handler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID   `json:"userId"`
		Name   string      `json:"name"`
		Users  []uuid.UUID `json:"users"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if len(req.Users) > 0 {
		if req.Name == "" {
			respondError(w, http.StatusBadRequest, "Group chats need a name.")
			return
		}
		chat, err := h.store.CreateGroupChat(r.Context(), req.Name, callerID, req.Users)
		if err != nil {
			h.internalError(w, err, "create group chat")
			return
		}
		respondJSON(w, http.StatusCreated, chat)
		return
	}

	if req.UserID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "A chat needs a user or a member list.")
		return
	}
	other, err := h.store.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		h.internalError(w, err, "get user")
		return
	}
	if other == nil {
		respondError(w, http.StatusNotFound, "User not found.")
		return
	}

	chat, err := h.store.CreateDirectChat(r.Context(), callerID, req.UserID)
	if err != nil {
		h.internalError(w, err, "create chat")
		return
	}
	respondJSON(w, http.StatusOK, chat)
}

// ListChatsHandler returns the caller's chats, latest activity first.
func (h *Handler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}
	chats, err := h.store.ListChatsForUser(r.Context(), callerID)
	if err != nil {
		h.internalError(w, err, "list chats")
		return
	}
	if chats == nil {
		chats = []*models.Chat{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

// GetMessagesHandler returns a chat's history; participants only.
func (h *Handler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, mux.Vars(r), "chatId")
	if !ok {
		return
	}

	member, err := h.store.IsChatMember(r.Context(), chatID, callerID)
	if err != nil {
		h.internalError(w, err, "check membership")
		return
	}
	if !member {
		respondError(w, http.StatusForbidden, "You are not a participant in this chat.")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), chatID)
	if err != nil {
		h.internalError(w, err, "list messages")
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// SendMessageHandler persists a message and fans it out to the other
// participants' live sessions.
func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		ChatID         uuid.UUID `json:"chatId"`
		Text           string    `json:"text"`
		Attachment     []byte    `json:"attachment"`
		AttachmentMIME string    `json:"attachmentMime"`
		AttachmentName string    `json:"attachmentName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	chat, err := h.store.GetChatByID(r.Context(), req.ChatID)
	if err != nil {
		h.internalError(w, err, "get chat")
		return
	}
	if chat == nil {
		respondError(w, http.StatusNotFound, "Chat not found.")
		return
	}

	member, err := h.store.IsChatMember(r.Context(), req.ChatID, callerID)
	if err != nil {
		h.internalError(w, err, "check membership")
		return
	}
	if !member {
		respondError(w, http.StatusForbidden, "You are not a participant in this chat.")
		return
	}

	msg := &models.Message{
		ChatID:         req.ChatID,
		SenderID:       callerID,
		Text:           req.Text,
		Attachment:     req.Attachment,
		AttachmentMIME: req.AttachmentMIME,
		AttachmentName: req.AttachmentName,
	}
	if err := models.ValidateMessage(msg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		h.internalError(w, err, "create message")
		return
	}

	sender, err := h.store.GetUserByID(r.Context(), callerID)
	senderName := ""
	if err == nil && sender != nil {
		senderName = sender.Name
	}
	h.dispatcher.DispatchMessage(r.Context(), msg, chat, senderName)

	respondJSON(w, http.StatusCreated, msg)
}

// DeleteMessageHandler removes a message; only its sender may.
func (h *Handler) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := identity(w, r)
	if !ok {
		return
	}
	messageID, ok := pathID(w, mux.Vars(r), "id")
	if !ok {
		return
	}

	msg, err := h.store.GetMessageByID(r.Context(), messageID)
	if err != nil {
		h.internalError(w, err, "get message")
		return
	}
	if msg == nil {
		respondError(w, http.StatusNotFound, "Message not found.")
		return
	}
	if msg.SenderID != callerID {
		respondError(w, http.StatusForbidden, "Only the sender can delete a message.")
		return
	}

	if err := h.store.DeleteMessage(r.Context(), messageID); err != nil {
		h.internalError(w, err, "delete message")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Message deleted."})
}
