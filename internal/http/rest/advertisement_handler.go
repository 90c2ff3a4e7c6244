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

func (api *API) AdvertisementRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		// Query Params: ?lat=..&lng=..&radius=500&limit=20&type=sale|free
		r.Method(http.MethodGet, "/", Handler(api.GetNearbyAdvertisements))
		r.Method(http.MethodPost, "/", Handler(api.CreateAdvertisement))
		r.Method(http.MethodGet, "/{adID}", Handler(api.GetAdvertisement))
		r.Method(http.MethodPut, "/{adID}", Handler(api.UpdateAdvertisement))
		r.Method(http.MethodDelete, "/{adID}", Handler(api.DeleteAdvertisement))
		r.Method(http.MethodPost, "/{adID}/interest", Handler(api.ToggleAdvertisementInterest))
	})

	return mux
}

func (api *API) GetNearbyAdvertisements(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	q, err := nearbyQuery(r)
	if err != nil {
		return fromError(err, "invalid query", &tc)
	}

	ads, err := api.Deps.Feed.NearbyAdvertisements(r.Context(), userID, q)
	if err != nil {
		return fromError(err, "unable to get advertisements", &tc)
	}
	return success("Advertisements retrieved successfully", ads)
}

func (api *API) CreateAdvertisement(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, ok := userFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no user in context"), "unable to get user from context", values.NotAuthorised, &tc)
	}

	var req feed.AdvertisementInput
	image, err := api.decodeInput(w, r, &tc, &req, imageFormField, "advertisements")
	if err != nil {
		return fromError(err, "unable to decode request", &tc)
	}
	req.ImagePath = image

	ad, err := api.Deps.Feed.CreateAdvertisement(r.Context(), user, req)
	if err != nil {
		return fromError(err, "failed to create advertisement", &tc)
	}
	return created("Advertisement created successfully", ad)
}

func (api *API) GetAdvertisement(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "adID")
	if err != nil {
		return fromError(err, "invalid advertisement id", &tc)
	}

	ad, err := api.Deps.Feed.GetAdvertisement(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to get advertisement", &tc)
	}
	return success("Advertisement retrieved successfully", ad)
}

func (api *API) UpdateAdvertisement(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "adID")
	if err != nil {
		return fromError(err, "invalid advertisement id", &tc)
	}

	var req feed.AdvertisementPatch
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	ad, err := api.Deps.Feed.UpdateAdvertisement(r.Context(), id, userID, req)
	if err != nil {
		return fromError(err, "failed to update advertisement", &tc)
	}
	return success("Advertisement updated successfully", ad)
}

func (api *API) DeleteAdvertisement(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "adID")
	if err != nil {
		return fromError(err, "invalid advertisement id", &tc)
	}

	if err := api.Deps.Feed.DeleteAdvertisement(r.Context(), id, userID); err != nil {
		return fromError(err, "failed to delete advertisement", &tc)
	}
	return success("Advertisement deleted successfully", nil)
}

func (api *API) ToggleAdvertisementInterest(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "adID")
	if err != nil {
		return fromError(err, "invalid advertisement id", &tc)
	}

	res, err := api.Deps.Relations.ToggleInterest(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to toggle interest", &tc)
	}
	return success("Interest toggled successfully", res)
}
