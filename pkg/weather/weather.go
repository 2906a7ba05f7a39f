// Package weather implements the get_weather tool on top of the Open-Meteo
// geocoding and forecast APIs. No API key is needed.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-pivoice/internal/httpc"
	"github.com/teslashibe/go-pivoice/pkg/tool"
)

// Default endpoints and timeout.
const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com"
	DefaultForecastURL  = "https://api.open-meteo.com"
	DefaultTimeout      = 6 * time.Second
)

// ErrNoMatch is returned by Geocode when the place name resolves to nothing.
var ErrNoMatch = errors.New("weather: no geocoding match")

// Place is the best geocoding match for a name.
type Place struct {
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Label formats the place as "Name (CC)", or just the name without a country.
func (p Place) Label() string {
	if p.CountryCode != "" {
		return fmt.Sprintf("%s (%s)", p.Name, p.CountryCode)
	}
	return p.Name
}

// Conditions are the current observations at a coordinate.
// A nil field means the forecast omitted that reading.
type Conditions struct {
	TemperatureC *float64 `json:"temperature_2m"`
	WindMPS      *float64 `json:"wind_speed_10m"`
	Time         *string  `json:"time"`
}

// Config holds client configuration.
type Config struct {
	GeocodingURL string
	ForecastURL  string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Option is a functional option for the client.
type Option func(*Config)

// WithGeocodingURL overrides the geocoding base URL.
func WithGeocodingURL(u string) Option {
	return func(c *Config) { c.GeocodingURL = u }
}

// WithForecastURL overrides the forecast base URL.
func WithForecastURL(u string) Option {
	return func(c *Config) { c.ForecastURL = u }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Config) { c.HTTPClient = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Client talks to Open-Meteo.
type Client struct {
	geoURL      string
	forecastURL string
	http        *http.Client
	logger      *slog.Logger
}

// NewClient creates a weather client.
func NewClient(opts ...Option) *Client {
	cfg := Config{
		GeocodingURL: DefaultGeocodingURL,
		ForecastURL:  DefaultForecastURL,
		Timeout:      DefaultTimeout,
		Logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		geoURL:      strings.TrimSuffix(cfg.GeocodingURL, "/"),
		forecastURL: strings.TrimSuffix(cfg.ForecastURL, "/"),
		http:        httpc.Or(cfg.HTTPClient, cfg.Timeout),
		logger:      cfg.Logger.With("component", "weather"),
	}
}

// Geocode resolves a place name to its single best match.
func (c *Client) Geocode(ctx context.Context, location string) (Place, error) {
	q := url.Values{}
	q.Set("name", location)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var body struct {
		Results []Place `json:"results"`
	}
	if err := c.getJSON(ctx, c.geoURL+"/v1/search?"+q.Encode(), &body); err != nil {
		return Place{}, fmt.Errorf("geocode: %w", err)
	}
	if len(body.Results) == 0 {
		return Place{}, ErrNoMatch
	}

	p := body.Results[0]
	if p.Name == "" {
		p.Name = location
	}
	return p, nil
}

// Current fetches the current temperature and wind speed at a place.
func (c *Client) Current(ctx context.Context, p Place) (Conditions, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(p.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(p.Longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m,wind_speed_10m")
	q.Set("timezone", "auto")

	var body struct {
		Current Conditions `json:"current"`
	}
	if err := c.getJSON(ctx, c.forecastURL+"/v1/forecast?"+q.Encode(), &body); err != nil {
		return Conditions{}, fmt.Errorf("forecast: %w", err)
	}
	return body.Current, nil
}

// GetWeather runs the full lookup and always returns a well-formed result.
func (c *Client) GetWeather(ctx context.Context, location string) tool.Result {
	place, err := c.Geocode(ctx, location)
	if errors.Is(err, ErrNoMatch) {
		return tool.Failure("Unknown location: %s", location)
	}
	if err != nil {
		c.logger.Warn("geocoding failed", "location", location, "error", err)
		return tool.FromError(err)
	}

	cond, err := c.Current(ctx, place)
	if err != nil {
		c.logger.Warn("forecast failed", "location", place.Label(), "error", err)
		return tool.FromError(err)
	}

	temp, wind, at := orNil(cond.TemperatureC), orNil(cond.WindMPS), orNil(cond.Time)
	c.logger.Debug("weather lookup",
		"location", place.Label(),
		"temperature_c", temp,
		"wind_mps", wind,
	)

	return tool.Success(map[string]any{
		"location":      place.Label(),
		"temperature_c": temp,
		"wind_mps":      wind,
		"time":          at,
	})
}

// orNil unwraps p, keeping a missing reading as JSON null.
func orNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Tool returns the get_weather declaration bound to this client.
func (c *Client) Tool() tool.Definition {
	return tool.Definition{
		Name:        tool.GetWeather,
		Description: "Get current weather for a given city (temperature and wind).",
		Params: []tool.Param{{
			Name:        "location",
			Type:        tool.TypeString,
			Description: "City name like 'Tokyo' or 'New York'.",
			Required:    true,
		}},
		Handler: func(ctx context.Context, args tool.Args) tool.Result {
			return c.GetWeather(ctx, args.String("location"))
		},
	}
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
