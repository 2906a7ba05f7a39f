package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeteo struct {
	geocode  string
	forecast string
	status   int

	geoCalls      atomic.Int32
	forecastCalls atomic.Int32
	lastForecast  atomic.Value
}

func (f *fakeMeteo) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/search":
			f.geoCalls.Add(1)
			assert.Equal(t, "1", r.URL.Query().Get("count"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			if f.status != 0 {
				w.WriteHeader(f.status)
			}
			_, _ = w.Write([]byte(f.geocode))
		case "/v1/forecast":
			f.forecastCalls.Add(1)
			f.lastForecast.Store(r.URL.Query())
			_, _ = w.Write([]byte(f.forecast))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(WithGeocodingURL(srv.URL), WithForecastURL(srv.URL+"/"))
}

func TestGetWeatherUnknownLocation(t *testing.T) {
	f := &fakeMeteo{geocode: `{"generationtime_ms":0.5}`}
	c := newTestClient(f.server(t))

	res := c.GetWeather(context.Background(), "Nowhereistan")

	assert.False(t, res.OK)
	assert.Equal(t, "Unknown location: Nowhereistan", res.Error)
	assert.EqualValues(t, 1, f.geoCalls.Load())
	assert.Zero(t, f.forecastCalls.Load())
}

func TestGetWeatherTokyo(t *testing.T) {
	f := &fakeMeteo{
		geocode:  `{"results":[{"name":"Tokyo","country_code":"JP","latitude":35.6,"longitude":139.7}]}`,
		forecast: `{"current":{"temperature_2m":21.0,"wind_speed_10m":3.5,"time":"2024-01-01T00:00"}}`,
	}
	c := newTestClient(f.server(t))

	res := c.GetWeather(context.Background(), "Tokyo")

	require.True(t, res.OK, res.Error)
	assert.Equal(t, map[string]any{
		"ok":            true,
		"location":      "Tokyo (JP)",
		"temperature_c": 21.0,
		"wind_mps":      3.5,
		"time":          "2024-01-01T00:00",
	}, res.Map())

	q := f.lastForecast.Load().(url.Values)
	assert.Equal(t, []string{"35.6"}, q["latitude"])
	assert.Equal(t, []string{"139.7"}, q["longitude"])
	assert.Equal(t, []string{"temperature_2m,wind_speed_10m"}, q["current"])
	assert.Equal(t, []string{"auto"}, q["timezone"])
}

func TestGetWeatherLabelWithoutCountry(t *testing.T) {
	f := &fakeMeteo{
		geocode:  `{"results":[{"name":"Atlantis","latitude":1,"longitude":2}]}`,
		forecast: `{"current":{"temperature_2m":10,"wind_speed_10m":1,"time":"t"}}`,
	}
	c := newTestClient(f.server(t))

	res := c.GetWeather(context.Background(), "atlantis")
	require.True(t, res.OK)
	assert.Equal(t, "Atlantis", res.Payload["location"])
}

func TestGetWeatherMissingReadingsAreNull(t *testing.T) {
	f := &fakeMeteo{
		geocode:  `{"results":[{"name":"Reykjavik","country_code":"IS","latitude":64.1,"longitude":-21.9}]}`,
		forecast: `{"current":{"wind_speed_10m":0}}`,
	}
	c := newTestClient(f.server(t))

	res := c.GetWeather(context.Background(), "Reykjavik")
	require.True(t, res.OK, res.Error)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"location":"Reykjavik (IS)","temperature_c":null,"wind_mps":0,"time":null}`, string(out))
}

func TestGetWeatherHTTPErrorIsContained(t *testing.T) {
	f := &fakeMeteo{geocode: `rate limited`, status: http.StatusTooManyRequests}
	c := newTestClient(f.server(t))

	res := c.GetWeather(context.Background(), "Paris")

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "HTTP 429")
	assert.Zero(t, f.forecastCalls.Load())
}

func TestGetWeatherBadForecastJSON(t *testing.T) {
	f := &fakeMeteo{
		geocode:  `{"results":[{"name":"Oslo","country_code":"NO","latitude":59.9,"longitude":10.7}]}`,
		forecast: `{"current":`,
	}
	c := newTestClient(f.server(t))

	res := c.GetWeather(context.Background(), "Oslo")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "forecast")
}

func TestGetWeatherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	res := NewClient(WithGeocodingURL(addr)).GetWeather(context.Background(), "Rome")
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}

func TestToolDefinition(t *testing.T) {
	def := NewClient().Tool()
	assert.EqualValues(t, "get_weather", def.Name)
	schema := def.Schema()
	assert.Equal(t, []string{"location"}, schema["required"])
}
