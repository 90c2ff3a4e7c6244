package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwise1/sosedi/internal/geo"
)

func TestAddress(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{"label", http.StatusOK, `{"features":[{"properties":{"label":"Tverskaya 1, Moscow"}}]}`, "Tverskaya 1, Moscow", false},
		{"assembled", http.StatusOK, `{"features":[{"properties":{"street":"Arbat","housenumber":"10","locality":"Moscow"}}]}`, "Arbat, 10, Moscow", false},
		{"nothing there", http.StatusOK, `{"features":[]}`, "", false},
		{"upstream error", http.StatusUnauthorized, `{"error":"bad key"}`, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != reverseEndpoint {
					t.Errorf("path = %s", r.URL.Path)
				}
				q := r.URL.Query()
				if q.Get("point.lat") != "55.7558" || q.Get("point.lon") != "37.6176" || q.Get("api_key") != "k" {
					t.Errorf("query = %s", r.URL.RawQuery)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL, "k")
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Address(context.Background(), geo.Point{Lng: 37.6176, Lat: 55.7558})
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v; wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("got %q; want %q", got, tc.want)
			}
		})
	}
}
