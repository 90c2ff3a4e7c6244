package rest

import (
	"net/http"

	"github.com/bwise1/sosedi/internal/projection"
	"github.com/bwise1/sosedi/util"
	"github.com/bwise1/sosedi/util/tracing"
	"github.com/bwise1/sosedi/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (api *API) ChatRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodGet, "/", Handler(api.ListChats))
		r.Method(http.MethodPost, "/private", Handler(api.StartPrivateChat))
		// live channel; the token may also be passed as ?token=
		r.Method(http.MethodGet, "/ws", Handler(api.ChatSocket))
		r.Method(http.MethodGet, "/{chatID}", Handler(api.GetChat))
		r.Method(http.MethodDelete, "/{chatID}", Handler(api.DeleteChat))
		r.Method(http.MethodGet, "/{chatID}/messages", Handler(api.GetChatMessages))
		r.Method(http.MethodPost, "/{chatID}/messages", Handler(api.SendChatMessage))
		r.Method(http.MethodPost, "/{chatID}/read", Handler(api.MarkChatRead))
	})

	return mux
}

type startChatRequest struct {
	UserID uuid.UUID `json:"userId"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// chatListItem adds the other participant's display name to private chats.
type chatListItem struct {
	projection.ChatView
	OtherUserName string `json:"otherUserName,omitempty"`
}

func (api *API) ListChats(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	chats, err := api.Deps.Chat.List(r.Context(), userID)
	if err != nil {
		return fromError(err, "unable to get chats", &tc)
	}

	items := make([]chatListItem, 0, len(chats))
	for _, v := range projection.Chats(chats, userID) {
		item := chatListItem{ChatView: v}
		if v.OtherUserID != nil {
			if other, err := api.Deps.Feed.GetUser(r.Context(), *v.OtherUserID); err == nil {
				item.OtherUserName = other.FullName()
			}
		}
		items = append(items, item)
	}
	return success("Chats retrieved successfully", items)
}

func (api *API) StartPrivateChat(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	var req startChatRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	chat, err := api.Deps.Chat.FindOrCreatePrivate(r.Context(), userID, req.UserID)
	if err != nil {
		return fromError(err, "failed to start chat", &tc)
	}
	return success("Chat ready", projection.Chat(chat, userID))
}

func (api *API) GetChat(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "chatID")
	if err != nil {
		return fromError(err, "invalid chat id", &tc)
	}

	chat, err := api.Deps.Chat.Get(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to get chat", &tc)
	}
	return success("Chat retrieved successfully", projection.ChatWithMessages(chat, userID))
}

func (api *API) DeleteChat(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "chatID")
	if err != nil {
		return fromError(err, "invalid chat id", &tc)
	}

	if err := api.Deps.Chat.Delete(r.Context(), id, userID); err != nil {
		return fromError(err, "failed to delete chat", &tc)
	}
	return success("Chat deleted successfully", nil)
}

// GetChatMessages marks the chat read for the caller, then returns its history.
func (api *API) GetChatMessages(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "chatID")
	if err != nil {
		return fromError(err, "invalid chat id", &tc)
	}

	if _, err := api.Deps.Chat.MarkRead(r.Context(), id, userID); err != nil {
		return fromError(err, "failed to mark chat read", &tc)
	}
	messages, err := api.Deps.Chat.Messages(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to get messages", &tc)
	}
	return success("Messages retrieved successfully", messages)
}

func (api *API) SendChatMessage(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "chatID")
	if err != nil {
		return fromError(err, "invalid chat id", &tc)
	}

	var req sendMessageRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	msg, err := api.Deps.Chat.AppendMessage(r.Context(), id, userID, req.Text)
	if err != nil {
		return fromError(err, "failed to send message", &tc)
	}
	return created("Message sent", msg)
}

func (api *API) MarkChatRead(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "chatID")
	if err != nil {
		return fromError(err, "invalid chat id", &tc)
	}

	n, err := api.Deps.Chat.MarkRead(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to mark chat read", &tc)
	}
	return success("Chat marked as read", map[string]int{"marked": n})
}

// ChatSocket hands the connection to the websocket manager; it writes its
// own response.
func (api *API) ChatSocket(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	api.Deps.WebSocket.HandleConnections(w, r, userID)
	return nil
}
