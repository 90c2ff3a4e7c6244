package rest

import (
	"net/http"

	"github.com/bwise1/sosedi/internal/feed"
	"github.com/bwise1/sosedi/util"
	"github.com/bwise1/sosedi/util/tracing"
	"github.com/bwise1/sosedi/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

func (api *API) PostRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodGet, "/", Handler(api.GetNearbyPosts))
		r.Method(http.MethodPost, "/", Handler(api.CreatePost))
		r.Method(http.MethodGet, "/{postID}", Handler(api.GetPost))
		r.Method(http.MethodPut, "/{postID}", Handler(api.UpdatePost))
		r.Method(http.MethodDelete, "/{postID}", Handler(api.DeletePost))
		r.Method(http.MethodPost, "/{postID}/like", Handler(api.TogglePostLike))
		r.Method(http.MethodPost, "/{postID}/comments", Handler(api.CommentOnPost))
	})

	return mux
}

func (api *API) GetNearbyPosts(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	q, err := nearbyQuery(r)
	if err != nil {
		return fromError(err, "invalid query", &tc)
	}

	posts, err := api.Deps.Feed.NearbyPosts(r.Context(), userID, q)
	if err != nil {
		return fromError(err, "unable to get posts", &tc)
	}
	return success("Posts retrieved successfully", posts)
}

func (api *API) CreatePost(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, ok := userFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no user in context"), "unable to get user from context", values.NotAuthorised, &tc)
	}

	var req feed.PostInput
	image, err := api.decodeInput(w, r, &tc, &req, imageFormField, "posts")
	if err != nil {
		return fromError(err, "unable to decode request", &tc)
	}
	req.ImagePath = image

	post, err := api.Deps.Feed.CreatePost(r.Context(), user, req)
	if err != nil {
		return fromError(err, "failed to create post", &tc)
	}
	return created("Post created successfully", post)
}

func (api *API) GetPost(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "postID")
	if err != nil {
		return fromError(err, "invalid post id", &tc)
	}

	post, err := api.Deps.Feed.GetPost(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to get post", &tc)
	}
	return success("Post retrieved successfully", post)
}

func (api *API) UpdatePost(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "postID")
	if err != nil {
		return fromError(err, "invalid post id", &tc)
	}

	var req feed.PostPatch
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	post, err := api.Deps.Feed.UpdatePost(r.Context(), id, userID, req)
	if err != nil {
		return fromError(err, "failed to update post", &tc)
	}
	return success("Post updated successfully", post)
}

func (api *API) DeletePost(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "postID")
	if err != nil {
		return fromError(err, "invalid post id", &tc)
	}

	if err := api.Deps.Feed.DeletePost(r.Context(), id, userID); err != nil {
		return fromError(err, "failed to delete post", &tc)
	}
	return success("Post deleted successfully", nil)
}

func (api *API) TogglePostLike(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "postID")
	if err != nil {
		return fromError(err, "invalid post id", &tc)
	}

	res, err := api.Deps.Relations.ToggleLike(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to toggle like", &tc)
	}
	return success("Like toggled successfully", res)
}

func (api *API) CommentOnPost(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, ok := userFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no user in context"), "unable to get user from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "postID")
	if err != nil {
		return fromError(err, "invalid post id", &tc)
	}

	var req feed.CommentInput
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	comment, err := api.Deps.Feed.AddComment(r.Context(), id, user, req)
	if err != nil {
		return fromError(err, "failed to add comment", &tc)
	}
	return created("Comment added successfully", comment)
}
