package fetcher

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const entsoeTimeLayout = "200601021504"

// EIC area codes for the supported bidding zones.
var areaCodes = map[string]string{
	"DE": "10Y1001A1001A83F",
	"FR": "10YFR-RTE------C",
	"IT": "10YIT-GRTN-----B",
	"ES": "10YES-REE------0",
	"NL": "10YNL----------L",
	"BE": "10YBE----------2",
	"AT": "10YAT-APG------L",
	"PL": "10YPL-AREA-----S",
	"SE": "10YSE-1--------K",
	"NO": "10YNO-0--------C",
}

// EntsoeOptions parameterise the Transparency Platform client.
type EntsoeOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Entsoe fetches actual load documents from the ENTSO-E Transparency Platform.
type Entsoe struct {
	opts    EntsoeOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewEntsoe constructs an ENTSO-E client.
func NewEntsoe(opts EntsoeOptions, logger zerolog.Logger) *Entsoe {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://web-api.tp.entsoe.eu/api"
	}

	return &Entsoe{
		opts:    opts,
		logger:  logger.With().Str("component", "entsoe_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchActualLoad retrieves realised system load (documentType A65,
// processType A16) for a country over [from, to], hourly or sub-hourly
// resolution depending on the zone.
func (e *Entsoe) FetchActualLoad(ctx context.Context, country string, from, to time.Time) ([]LoadPoint, error) {
	if e.opts.APIKey == "" {
		return nil, errors.New("entsoe api key not configured")
	}

	area, ok := areaCodes[strings.ToUpper(country)]
	if !ok {
		return nil, fmt.Errorf("invalid country code %q (available: %s)", country, strings.Join(supportedCountries(), ", "))
	}

	from = from.UTC()
	to = to.UTC()

	params := url.Values{}
	params.Set("securityToken", e.opts.APIKey)
	params.Set("documentType", "A65")
	params.Set("processType", "A16")
	params.Set("outBiddingZone_Domain", area)
	params.Set("periodStart", from.Format(entsoeTimeLayout))
	params.Set("periodEnd", to.Format(entsoeTimeLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")
	if ua := strings.TrimSpace(e.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	e.logger.Debug().Str("country", country).Time("from", from).Time("to", to).Msg("fetching actual load")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, payload)
	}

	points, err := parseLoadDocument(payload)
	if err != nil {
		return nil, err
	}

	// The platform returns whole document periods; trim to the request.
	filtered := points[:0]
	for _, p := range points {
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		filtered = append(filtered, p)
	}

	if len(filtered) == 0 {
		return nil, fmt.Errorf("no load data available for %s between %s and %s",
			country, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	e.logger.Info().Str("country", country).Int("points", len(filtered)).Msg("actual load fetched")
	return filtered, nil
}

type loadDocument struct {
	TimeSeries []struct {
		Period []struct {
			TimeInterval struct {
				Start string `xml:"start"`
			} `xml:"timeInterval"`
			Resolution string `xml:"resolution"`
			Point      []struct {
				Position int     `xml:"position"`
				Quantity float64 `xml:"quantity"`
			} `xml:"Point"`
		} `xml:"Period"`
	} `xml:"TimeSeries"`
}

func parseLoadDocument(payload []byte) ([]LoadPoint, error) {
	var doc loadDocument
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse load document: %w", err)
	}

	var points []LoadPoint
	for _, series := range doc.TimeSeries {
		for _, period := range series.Period {
			start, err := parseIntervalStart(period.TimeInterval.Start)
			if err != nil {
				return nil, err
			}

			step, err := parseResolution(period.Resolution)
			if err != nil {
				return nil, err
			}

			for _, point := range period.Point {
				points = append(points, LoadPoint{
					Timestamp: start.Add(time.Duration(point.Position-1) * step).UTC(),
					LoadMW:    point.Quantity,
				})
			}
		}
	}
	return points, nil
}

// parseIntervalStart accepts the platform's minute-precision timestamps
// (2025-06-01T00:00Z) as well as full RFC3339.
func parseIntervalStart(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04Z07:00", time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse period start %q", value)
}

func parseResolution(resolution string) (time.Duration, error) {
	switch resolution {
	case "PT15M":
		return 15 * time.Minute, nil
	case "PT30M":
		return 30 * time.Minute, nil
	case "PT60M":
		return time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported resolution %q", resolution)
	}
}

type acknowledgementDocument struct {
	Reason struct {
		Code string `xml:"code"`
		Text string `xml:"text"`
	} `xml:"Reason"`
}

func parseAPIError(status int, payload []byte) error {
	var ack acknowledgementDocument
	if err := xml.Unmarshal(payload, &ack); err == nil && ack.Reason.Text != "" {
		return fmt.Errorf("entsoe api error (%d): %s", status, ack.Reason.Text)
	}
	if len(payload) > 0 {
		return fmt.Errorf("entsoe api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("entsoe api error (%d)", status)
}

func supportedCountries() []string {
	countries := make([]string, 0, len(areaCodes))
	for code := range areaCodes {
		countries = append(countries, code)
	}
	sort.Strings(countries)
	return countries
}

var _ LoadFetcher = (*Entsoe)(nil)
