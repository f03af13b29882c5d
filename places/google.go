package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"safemap/apperrors"
	"safemap/metrics"

	"github.com/apex/log"
)

// Google Places nearby search statuses this client distinguishes.
const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// GoogleClient queries the Google Places nearby search API.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogleClient builds a Places client. The API key is required; a
// missing key is a configuration error, not a lookup failure.
func NewGoogleClient(apiKey, baseURL string) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing places API key", apperrors.ErrBadConfig)
	}
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/place"
	}
	return &GoogleClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type nearbyResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Name     string `json:"name"`
		Vicinity string `json:"vicinity"`
		Geometry *struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedPhoneNumber string   `json:"formatted_phone_number"`
		Rating               *float64 `json:"rating"`
		PlaceID              string   `json:"place_id"`
	} `json:"results"`
}

// NearbySearch performs a single-shot category search around a point.
func (g *GoogleClient) NearbySearch(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("radius", fmt.Sprintf("%d", radiusMeters))
	q.Set("type", category)
	q.Set("keyword", category+" station")
	q.Set("key", g.apiKey)

	u := g.baseURL + "/nearbysearch/json?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building places request: %w", err)
	}

	metrics.PlacesRequestsTotal.Inc()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		metrics.PlacesFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: places request: %v", apperrors.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.PlacesFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: places responded %d", apperrors.ErrServiceUnavailable, resp.StatusCode)
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.PlacesFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: decoding places response: %v", apperrors.ErrServiceUnavailable, err)
	}

	switch body.Status {
	case statusOK:
		// Fall through to result mapping.
	case statusZeroResults:
		return nil, nil
	case "REQUEST_DENIED", "INVALID_REQUEST":
		metrics.PlacesFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: places status %s: %s", apperrors.ErrBadConfig, body.Status, body.ErrorMessage)
	default:
		metrics.PlacesFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: places status %s: %s", apperrors.ErrServiceUnavailable, body.Status, body.ErrorMessage)
	}

	candidates := make([]Candidate, 0, len(body.Results))
	for _, r := range body.Results {
		c := Candidate{
			Name:     r.Name,
			Vicinity: r.Vicinity,
			Phone:    r.FormattedPhoneNumber,
			Rating:   r.Rating,
			PlaceID:  r.PlaceID,
		}
		if r.Geometry != nil {
			c.Latitude = r.Geometry.Location.Lat
			c.Longitude = r.Geometry.Location.Lng
			c.HasLocation = true
		}
		candidates = append(candidates, c)
	}

	log.Debugf("Places nearby search returned %d candidates", len(candidates))
	return candidates, nil
}
