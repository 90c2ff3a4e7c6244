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

func (api *API) EventRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodGet, "/", Handler(api.GetNearbyEvents))
		r.Method(http.MethodPost, "/", Handler(api.CreateEvent))
		r.Method(http.MethodGet, "/{eventID}", Handler(api.GetEvent))
		r.Method(http.MethodPut, "/{eventID}", Handler(api.UpdateEvent))
		r.Method(http.MethodDelete, "/{eventID}", Handler(api.DeleteEvent))
		r.Method(http.MethodPost, "/{eventID}/join", Handler(api.JoinEvent))
		r.Method(http.MethodPost, "/{eventID}/leave", Handler(api.LeaveEvent))
	})

	return mux
}

func (api *API) GetNearbyEvents(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	q, err := nearbyQuery(r)
	if err != nil {
		return fromError(err, "invalid query", &tc)
	}

	events, err := api.Deps.Feed.NearbyEvents(r.Context(), userID, q)
	if err != nil {
		return fromError(err, "unable to get events", &tc)
	}
	return success("Events retrieved successfully", events)
}

func (api *API) CreateEvent(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, ok := userFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no user in context"), "unable to get user from context", values.NotAuthorised, &tc)
	}

	var req feed.EventInput
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	event, err := api.Deps.Feed.CreateEvent(r.Context(), user, req)
	if err != nil {
		return fromError(err, "failed to create event", &tc)
	}
	return created("Event created successfully", event)
}

func (api *API) GetEvent(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "eventID")
	if err != nil {
		return fromError(err, "invalid event id", &tc)
	}

	event, err := api.Deps.Feed.GetEvent(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to get event", &tc)
	}
	return success("Event retrieved successfully", event)
}

func (api *API) UpdateEvent(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "eventID")
	if err != nil {
		return fromError(err, "invalid event id", &tc)
	}

	var req feed.EventPatch
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	event, err := api.Deps.Feed.UpdateEvent(r.Context(), id, userID, req)
	if err != nil {
		return fromError(err, "failed to update event", &tc)
	}
	return success("Event updated successfully", event)
}

func (api *API) DeleteEvent(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "eventID")
	if err != nil {
		return fromError(err, "invalid event id", &tc)
	}

	if err := api.Deps.Feed.DeleteEvent(r.Context(), id, userID); err != nil {
		return fromError(err, "failed to delete event", &tc)
	}
	return success("Event deleted successfully", nil)
}

func (api *API) JoinEvent(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "eventID")
	if err != nil {
		return fromError(err, "invalid event id", &tc)
	}

	event, err := api.Deps.Relations.JoinEvent(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to join event", &tc)
	}
	return success("Successfully joined the event", projection.Event(event, userID))
}

func (api *API) LeaveEvent(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	id, err := idParam(r, "eventID")
	if err != nil {
		return fromError(err, "invalid event id", &tc)
	}

	event, err := api.Deps.Relations.LeaveEvent(r.Context(), id, userID)
	if err != nil {
		return fromError(err, "failed to leave event", &tc)
	}
	return success("Successfully left the event", projection.Event(event, userID))
}
