package rest

import (
	"net/http"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/feed"
	"github.com/bwise1/sosedi/internal/projection"
	"github.com/bwise1/sosedi/util"
	"github.com/bwise1/sosedi/util/tracing"
	"github.com/bwise1/sosedi/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

func (api *API) UserRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireIdentity)
		r.Method(http.MethodPost, "/profile", Handler(api.SaveProfile))
		r.Method(http.MethodPut, "/profile", Handler(api.SaveProfile))
	})

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodGet, "/profile", Handler(api.GetProfile))
		r.Method(http.MethodDelete, "/profile", Handler(api.DeleteAccount))
		r.Method(http.MethodGet, "/nearby", Handler(api.GetNearbyUsers))
		r.Method(http.MethodPost, "/avatar", Handler(api.UploadAvatar))
		r.Method(http.MethodGet, "/{userID}", Handler(api.GetUserByID))
	})

	return mux
}

func (api *API) GetProfile(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, ok := userFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no user in context"), "unable to get user from context", values.NotAuthorised, &tc)
	}
	return success("User profile retrieved successfully", projection.User(user))
}

// SaveProfile creates the caller's profile on first call and updates it after.
func (api *API) SaveProfile(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, ok := identityFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no identity in context"), "unable to get identity from context", values.NotAuthorised, &tc)
	}

	var req feed.ProfileInput
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	_, lookupErr := api.Deps.Feed.UserByAuthUID(r.Context(), id.UID)
	isNew := apperr.KindOf(lookupErr) == apperr.NotFound

	user, err := api.Deps.Feed.SaveProfile(r.Context(), id.UID, id.Phone, req)
	if err != nil {
		return fromError(err, "failed to save user profile", &tc)
	}
	if isNew {
		return created("User profile created successfully", projection.User(user))
	}
	return success("User profile updated successfully", projection.User(user))
}

func (api *API) DeleteAccount(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	if err := api.Deps.Feed.DeleteUser(r.Context(), userID); err != nil {
		return fromError(err, "failed to delete account", &tc)
	}
	return success("Account deleted successfully", nil)
}

func (api *API) GetNearbyUsers(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	q, err := nearbyQuery(r)
	if err != nil {
		return fromError(err, "invalid query", &tc)
	}

	users, err := api.Deps.Feed.NearbyUsers(r.Context(), userID, q)
	if err != nil {
		return fromError(err, "unable to get nearby users", &tc)
	}
	return success("Nearby users retrieved successfully", users)
}

func (api *API) UploadAvatar(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	if !isMultipart(r) {
		return respondWithError(errors.New("not multipart"), "avatar must be sent as multipart/form-data", values.BadRequestBody, &tc)
	}

	var form struct{}
	ref, err := api.decodeInput(w, r, &tc, &form, avatarFormField, "avatars")
	if err != nil {
		return fromError(err, "failed to upload avatar", &tc)
	}
	if ref == "" {
		return respondWithError(errors.New("missing file"), "avatar file is required", values.BadRequestBody, &tc)
	}

	user, err := api.Deps.Feed.SetAvatar(r.Context(), userID, ref)
	if err != nil {
		return fromError(err, "failed to update avatar", &tc)
	}
	return success("Avatar uploaded successfully", projection.User(user))
}

func (api *API) GetUserByID(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := idParam(r, "userID")
	if err != nil {
		return fromError(err, "invalid user id", &tc)
	}
	user, err := api.Deps.Feed.GetUser(r.Context(), id)
	if err != nil {
		return fromError(err, "failed to get user", &tc)
	}
	return success("User retrieved successfully", projection.User(user))
}
