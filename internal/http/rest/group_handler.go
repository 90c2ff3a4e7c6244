package rest

import (
	"net/http"

	"github.com/bwise1/sosedi/internal/feed"
	"github.com/bwise1/sosedi/internal/projection"
	"github.com/bwise1/sosedi/util"
	"github.com/bwise1/sosedi/util/tracing"
	"github.com/bwise1/sosedi/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

func (api *API) GroupRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)

		// Query Params: ?lat=..&lng=..&radius=1000&limit=20
		r.Method(http.MethodGet, "/", Handler(api.GetNearbyGroups))
		r.Method(http.MethodPost, "/", Handler(api.CreateGroup))
		r.Method(http.MethodGet, "/{groupID}", Handler(api.GetGroupByID))
		// Only the author may update or delete
		r.Method(http.MethodPut, "/{groupID}", Handler(api.UpdateGroup))
		r.Method(http.MethodDelete, "/{groupID}", Handler(api.DeleteGroup))
		r.Method(http.MethodPost, "/{groupID}/join", Handler(api.JoinGroup))
		r.Method(http.MethodPost, "/{groupID}/leave", Handler(api.LeaveGroup))
		// Members only
		r.Method(http.MethodPost, "/{groupID}/posts", Handler(api.CreateGroupPost))
		r.Method(http.MethodPost, "/{groupID}/chat", Handler(api.OpenGroupChat))
	})

	return mux
}

func (api *API) GetNearbyGroups(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	q, err := nearbyQuery(r)
	if err != nil {
		return fromError(err, "invalid query", &tc)
	}

	groups, err := api.Deps.Feed.NearbyGroups(r.Context(), userID, q)
	if err != nil {
		return fromError(err, "unable to get groups", &tc)
	}
	return success("Groups retrieved successfully", groups)
}

func (api *API) CreateGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, ok := userFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no user in context"), "unable to get user from context", values.NotAuthorised, &tc)
	}

	var req feed.GroupInput
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "Invalid request payload", values.BadRequestBody, &tc)
	}

	group, err := api.Deps.Feed.CreateGroup(r.Context(), user, req)
	if err != nil {
		return fromError(err, "Failed to create group", &tc)
	}
	return created("Group created successfully", group)
}

func (api *API) GetGroupByID(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "groupID")
	if err != nil {
		return fromError(err, "invalid group id", &tc)
	}

	group, err := api.Deps.Feed.GetGroup(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to get group", &tc)
	}
	return success("Group retrieved successfully", group)
}

func (api *API) UpdateGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "groupID")
	if err != nil {
		return fromError(err, "invalid group id", &tc)
	}

	var req feed.GroupPatch
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "Invalid request payload", values.BadRequestBody, &tc)
	}

	group, err := api.Deps.Feed.UpdateGroup(r.Context(), id, userID, req)
	if err != nil {
		return fromError(err, "failed to update group", &tc)
	}
	return success("Group updated successfully", group)
}

func (api *API) DeleteGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "groupID")
	if err != nil {
		return fromError(err, "invalid group id", &tc)
	}

	if err := api.Deps.Feed.DeleteGroup(r.Context(), id, userID); err != nil {
		return fromError(err, "failed to delete group", &tc)
	}
	return success("Group deleted successfully", nil)
}

func (api *API) JoinGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "groupID")
	if err != nil {
		return fromError(err, "invalid group id", &tc)
	}

	group, err := api.Deps.Relations.JoinGroup(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to join group", &tc)
	}
	return success("Successfully joined the group", projection.Group(group, userID))
}

func (api *API) LeaveGroup(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "groupID")
	if err != nil {
		return fromError(err, "invalid group id", &tc)
	}

	group, err := api.Deps.Relations.LeaveGroup(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to leave group", &tc)
	}
	return success("Successfully left the group", projection.Group(group, userID))
}

func (api *API) CreateGroupPost(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, ok := userFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no user in context"), "unable to get user from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "groupID")
	if err != nil {
		return fromError(err, "invalid group id", &tc)
	}

	var req feed.GroupPostInput
	image, err := api.decodeInput(w, r, &tc, &req, imageFormField, "groups")
	if err != nil {
		return fromError(err, "unable to decode request", &tc)
	}
	req.ImagePath = image

	post, err := api.Deps.Feed.AddGroupPost(r.Context(), id, user, req)
	if err != nil {
		return fromError(err, "failed to publish group post", &tc)
	}
	return created("Group post created successfully", post)
}

func (api *API) OpenGroupChat(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "groupID")
	if err != nil {
		return fromError(err, "invalid group id", &tc)
	}

	chat, err := api.Deps.Chat.OpenGroupChat(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to open group chat", &tc)
	}
	return success("Group chat opened successfully", projection.Chat(chat, userID))
}
