package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bwise1/sosedi/config"
	deps "github.com/bwise1/sosedi/internal/debs"
	"github.com/bwise1/sosedi/internal/metrics"
	"github.com/bwise1/sosedi/util/values"
	"github.com/go-chi/chi/v5"
)

const (
	defaultIdleTimeout    = time.Minute
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultShutdownPeriod = 30 * time.Second
)

type Handler func(w http.ResponseWriter, r *http.Request) *ServerResponse

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h(w, r)
	if resp == nil {
		// the handler wrote the response itself
		return
	}
	respByte, err := json.Marshal(resp)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to marshal server response")
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

type API struct {
	Server *http.Server
	Config *config.Config
	Deps   *deps.Dependencies
}

func (api *API) Serve() error {
	api.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", api.Config.Port),
		IdleTimeout:  defaultIdleTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		Handler:      api.Routes(),
	}
	return api.Server.ListenAndServe()
}

// Routes builds the full HTTP surface.
func (api *API) Routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(RequestTracing)
	mux.Use(Metrics)

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, []byte(`{"status":"ok"}`), http.StatusOK)
	})
	mux.Handle("/metrics", metrics.Handler())
	if api.Config.UploadDir != "" && !api.Config.UseCloudinary() {
		mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(api.Config.UploadDir))))
	}

	mux.Mount("/users", api.UserRoutes())
	mux.Mount("/posts", api.PostRoutes())
	mux.Mount("/groups", api.GroupRoutes())
	mux.Mount("/advertisements", api.AdvertisementRoutes())
	mux.Mount("/events", api.EventRoutes())
	mux.Mount("/chats", api.ChatRoutes())

	return mux
}

func (api *API) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownPeriod)
	defer cancel()
	return api.Server.Shutdown(ctx)
}
