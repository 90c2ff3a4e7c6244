package rest

import (
	"mime"
	"net/http"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/feed"
	"github.com/bwise1/sosedi/internal/geo"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/util"
	"github.com/bwise1/sosedi/util/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"github.com/pkg/errors"
)

const (
	maxUploadSize   = 10 << 20
	imageFormField  = "image"
	avatarFormField = "avatar"
)

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func idParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := util.ParseID(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.InvalidInput, err, name+" is not a valid id")
	}
	return id, nil
}

// nearbyQuery reads lat, lng, radius, limit and type from the query string.
func nearbyQuery(r *http.Request) (feed.Query, error) {
	q := r.URL.Query()
	if !util.NotBlank(q.Get("lat")) || !util.NotBlank(q.Get("lng")) {
		return feed.Query{}, apperr.E(apperr.InvalidInput, "Latitude and longitude are required")
	}
	center, err := geo.ParseLatLng(q.Get("lat"), q.Get("lng"))
	if err != nil {
		return feed.Query{}, err
	}
	radius, err := util.OptionalFloat(q.Get("radius"))
	if err != nil {
		return feed.Query{}, apperr.Wrap(apperr.InvalidInput, err, "radius must be a number")
	}
	limit, err := util.OptionalInt(q.Get("limit"))
	if err != nil {
		return feed.Query{}, apperr.Wrap(apperr.InvalidInput, err, "limit must be an integer")
	}
	return feed.Query{Center: center, Radius: radius, Limit: limit, Type: model.AdType(q.Get("type"))}, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// decodeInput fills dst from a JSON body or a multipart form. For multipart
// requests an attached file under field is stored in folder and its
// reference returned.
func (api *API) decodeInput(w http.ResponseWriter, r *http.Request, tc *tracing.Context, dst interface{}, field, folder string) (string, error) {
	if !isMultipart(r) {
		if err := util.DecodeJSONBody(tc, r.Body, dst); err != nil {
			return "", apperr.Wrap(apperr.InvalidInput, err, "unable to decode request")
		}
		return "", nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return "", apperr.Wrap(apperr.InvalidInput, err, "unable to parse form")
	}
	if err := formDecoder.Decode(dst, r.MultipartForm.Value); err != nil {
		return "", apperr.Wrap(apperr.InvalidInput, err, "unable to decode form")
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidInput, err, "unable to read "+field)
	}
	defer file.Close()

	ref, err := api.Deps.Blobs.Save(r.Context(), header.Filename, file, folder)
	if err != nil {
		return "", errors.Wrap(err, "store upload")
	}
	return ref, nil
}
