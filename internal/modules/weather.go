package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/status"
)

var weatherIcons = map[string]rune{
	"01d": '\U000F0599',
	"01n": '\U000F0594',
	"02d": '\U000F0595',
	"02n": '\U000F0F31',
	"03d": '\U000F0590',
	"03n": '\U000F0590',
	"04d": '\U000F0590',
	"04n": '\U000F0590',
	"09d": '\U000F0597',
	"09n": '\U000F0597',
	"10d": '\U000F0596',
	"10n": '\U000F0596',
	"11d": '\U000F0593',
	"11n": '\U000F0593',
	"13d": '\U000F0598',
	"13n": '\U000F0598',
	"50d": '\U000F0591',
	"50n": '\U000F0591',
}

const weatherDefaultIcon = '\U000F0590'

type geoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type weatherReport struct {
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// Weather reports current conditions for the device's location.
// Location is resolved once from the public IP and cached; conditions
// come from OpenWeatherMap.
type Weather struct {
	apiKey     string
	ipstackKey string
	units      string
	interval   time.Duration

	client *http.Client

	// Test seams.
	checkIPURL string
	ipstackURL string
	owmURL     string

	location *geoLocation
}

// NewWeather creates the weather block.
func NewWeather(cfg config.WeatherConfig) *Weather {
	units := cfg.Units
	if units == "" {
		units = "metric"
	}
	interval := cfg.UpdateInterval.Duration()
	if interval <= 0 {
		interval = 20 * time.Minute
	}
	return &Weather{
		apiKey:     cfg.OpenWeatherMapKey,
		ipstackKey: cfg.IPStackKey,
		units:      units,
		interval:   interval,
		client:     &http.Client{Timeout: 10 * time.Second},
		checkIPURL: "http://checkip.amazonaws.com",
		ipstackURL: "http://api.ipstack.com",
		owmURL:     "http://api.openweathermap.org/data/2.5/weather",
	}
}

// Name implements Block.
func (w *Weather) Name() string { return "weather" }

// Update implements Block.
func (w *Weather) Update(ctx context.Context, _ time.Time) (status.BlockOutput, NextUpdate, error) {
	next := After(w.interval)

	if w.location == nil {
		loc, err := w.geolocate(ctx)
		if err != nil {
			return status.BlockOutput{}, next, err
		}
		w.location = loc
	}

	report, err := w.fetchReport(ctx)
	if err != nil {
		return status.BlockOutput{}, next, err
	}
	if len(report.Weather) == 0 {
		return status.BlockOutput{}, next, &ParseError{Block: w.Name(), Output: "weather report", Err: fmt.Errorf("empty conditions list")}
	}

	icon, ok := weatherIcons[report.Weather[0].Icon]
	if !ok {
		icon = weatherDefaultIcon
	}

	return status.BlockOutput{
		Name:          w.Name(),
		Icon:          icon,
		Text:          fmt.Sprintf("%d°", int(math.Round(report.Main.Temp))),
		SecondaryText: sentenceCase(report.Weather[0].Description),
		Attention:     status.AttentionNormal,
	}, next, nil
}

// geolocate resolves the device's coordinates from its public IP.
func (w *Weather) geolocate(ctx context.Context) (*geoLocation, error) {
	ip, err := w.getBody(ctx, w.checkIPURL)
	if err != nil {
		return nil, fmt.Errorf("%w: public ip lookup: %v", ErrUnavailable, err)
	}

	u := fmt.Sprintf("%s/%s?access_key=%s&format=1",
		w.ipstackURL, strings.TrimSpace(string(ip)), url.QueryEscape(w.ipstackKey))
	body, err := w.getBody(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: ipstack: %v", ErrUnavailable, err)
	}

	var loc geoLocation
	if err := json.Unmarshal(body, &loc); err != nil {
		return nil, &ParseError{Block: w.Name(), Output: string(body), Err: err}
	}
	return &loc, nil
}

func (w *Weather) fetchReport(ctx context.Context) (*weatherReport, error) {
	u := fmt.Sprintf("%s?lat=%g&lon=%g&appid=%s&units=%s",
		w.owmURL, w.location.Latitude, w.location.Longitude,
		url.QueryEscape(w.apiKey), w.units)

	body, err := w.getBody(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: openweathermap: %v", ErrUnavailable, err)
	}

	var report weatherReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, &ParseError{Block: w.Name(), Output: string(body), Err: err}
	}
	return &report, nil
}

func (w *Weather) getBody(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func sentenceCase(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
