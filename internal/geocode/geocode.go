// Package geocode talks to a Nominatim compatible HTTP API. Every failure
// (transport, status, decoding, empty result) is logged and reported to the
// caller as "not found".
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
)

// Kind selects the structured search field used by Search.
type Kind string

// Supported category searches.
const (
	KindCity     Kind = "city"
	KindTown     Kind = "town"
	KindVillage  Kind = "village"
	KindPostcode Kind = "postcode"
)

// ParseKind validates a category command name.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindCity, KindTown, KindVillage, KindPostcode:
		return k, true
	default:
		return "", false
	}
}

// Result is a single resolved location.
type Result struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// Geocoder resolves free text and coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (Result, bool)
	Reverse(ctx context.Context, lat, lon float64) (string, bool)
	Search(ctx context.Context, kind Kind, name string) (Result, bool)
}

// Client is the Nominatim implementation of Geocoder.
type Client struct {
	searchURL  string
	reverseURL string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a geocoding client from configuration.
func NewClient(cfg config.GeocoderConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		searchURL:  cfg.SearchURL,
		reverseURL: cfg.ReverseURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "geocoder"),
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves an address or place name to its best match.
func (c *Client) Geocode(ctx context.Context, text string) (Result, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, false
	}
	params := url.Values{}
	params.Set("q", text)
	return c.search(ctx, params, text)
}

// Search runs a structured search: city, town and village match the city
// field, postcode matches postalcode.
func (c *Client) Search(ctx context.Context, kind Kind, name string) (Result, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, false
	}
	params := url.Values{}
	switch kind {
	case KindCity, KindTown, KindVillage:
		params.Set("city", name)
	case KindPostcode:
		params.Set("postalcode", name)
	default:
		c.logger.Warn("Unsupported search kind", "kind", kind)
		return Result{}, false
	}
	return c.search(ctx, params, name)
}

func (c *Client) search(ctx context.Context, params url.Values, fallback string) (Result, bool) {
	params.Set("format", "json")
	params.Set("limit", "1")

	var places []place
	if err := c.getJSON(ctx, c.searchURL, params, &places); err != nil {
		c.logger.ErrorContext(ctx, "Geocoding error", "error", err, "query", fallback)
		return Result{}, false
	}
	if len(places) == 0 {
		c.logger.InfoContext(ctx, "Geocoding returned no results", "query", fallback)
		return Result{}, false
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		c.logger.ErrorContext(ctx, "Geocoding returned invalid latitude", "error", err, "lat", p.Lat)
		return Result{}, false
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		c.logger.ErrorContext(ctx, "Geocoding returned invalid longitude", "error", err, "lon", p.Lon)
		return Result{}, false
	}

	address := p.DisplayName
	if address == "" {
		address = fallback
	}
	return Result{Latitude: lat, Longitude: lon, Address: address}, true
}

// Reverse resolves coordinates to a display address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, bool) {
	params := url.Values{}
	params.Set("lat", FormatCoord(lat))
	params.Set("lon", FormatCoord(lon))
	params.Set("format", "json")

	var p place
	if err := c.getJSON(ctx, c.reverseURL, params, &p); err != nil {
		c.logger.ErrorContext(ctx, "Reverse geocoding error", "error", err, "lat", lat, "lon", lon)
		return "", false
	}
	if p.DisplayName == "" {
		c.logger.InfoContext(ctx, "Reverse geocoding returned no address", "lat", lat, "lon", lon)
		return "", false
	}
	return p.DisplayName, true
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geocoding service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("geocoding service returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	c.logger.DebugContext(ctx, "Geocoding request completed", "endpoint", endpoint, "duration", time.Since(start))
	return nil
}

// FormatCoord renders a coordinate the way it is stored and sent to the API.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
