// Package geocoder resolves coordinates to a human readable address using a
// Pelias compatible reverse geocoding API (Stadia Maps by default).
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwise1/sosedi/internal/geo"
	"github.com/google/go-querystring/query"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL  = "https://api.stadiamaps.com"
	reverseEndpoint = "/geocoding/v1/reverse"
)

// Geocoder is what the profile flow needs: one address line for a point.
type Geocoder interface {
	Address(ctx context.Context, p geo.Point) (string, error)
}

type Client struct {
	BaseURL    *url.URL
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse geocoder base url")
	}
	return &Client{
		BaseURL: u,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}, nil
}

type reverseQuery struct {
	PointLat float64  `url:"point.lat"`
	PointLon float64  `url:"point.lon"`
	Size     int      `url:"size,omitempty"`
	Layers   []string `url:"layers,omitempty,comma"`
	Lang     string   `url:"lang,omitempty"`
}

type featureCollection struct {
	Features []struct {
		Properties struct {
			Label       string `json:"label"`
			Name        string `json:"name"`
			Street      string `json:"street"`
			HouseNumber string `json:"housenumber"`
			Locality    string `json:"locality"`
		} `json:"properties"`
	} `json:"features"`
}

// Address returns the label of the closest address feature, or "" when the
// service knows nothing at p.
func (c *Client) Address(ctx context.Context, p geo.Point) (string, error) {
	reqURL, err := c.buildURL(reverseEndpoint, reverseQuery{
		PointLat: p.Lat,
		PointLon: p.Lng,
		Size:     1,
		Layers:   []string{"address", "street", "venue"},
	})
	if err != nil {
		return "", errors.Wrap(err, "build reverse geocode URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "create reverse geocode request")
	}

	var result featureCollection
	if err := c.do(req, &result); err != nil {
		return "", errors.Wrap(err, "execute reverse geocode request")
	}
	if len(result.Features) == 0 {
		return "", nil
	}

	props := result.Features[0].Properties
	if props.Label != "" {
		return props.Label, nil
	}
	parts := []string{}
	for _, s := range []string{props.Street, props.HouseNumber, props.Locality} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return props.Name, nil
	}
	return strings.Join(parts, ", "), nil
}

func (c *Client) buildURL(endpoint string, queryParams interface{}) (string, error) {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint")
	}
	u := c.BaseURL.ResolveReference(rel)

	q := u.Query()
	if c.APIKey != "" {
		q.Set("api_key", c.APIKey)
	}

	if queryParams != nil {
		v, err := query.Values(queryParams)
		if err != nil {
			return "", errors.Wrap(err, "encode query parameters")
		}
		for k, vals := range v {
			for _, val := range vals {
				q.Add(k, val)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute HTTP request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}
