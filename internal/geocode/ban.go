package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Result is a confident geocoding hit.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	BrandName string  `json:"brand_name,omitempty"`
}

// communeCenterScore is assigned to commune-centre fallback positions: below
// a street-level hit, above the rejection threshold.
const communeCenterScore = 0.6

// Client geocodes against the BAN address API with a commune-centre fallback
// through the geo API. All outbound calls share one rate limiter.
type Client struct {
	banBaseURL     string
	communeBaseURL string
	threshold      float64
	httpClient     *http.Client
	limiter        *rate.Limiter
}

// NewClient builds a geocoding client from config.
func NewClient(cfg Config) *Client {
	return &Client{
		banBaseURL:     strings.TrimRight(cfg.BANBaseURL, "/"),
		communeBaseURL: strings.TrimRight(cfg.CommuneAPIBaseURL, "/"),
		threshold:      cfg.ScoreThreshold,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

type banResponse struct {
	Features []banFeature `json:"features"`
}

type banFeature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
	Properties struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"properties"`
}

type searchQuery struct {
	q        string
	cityCode string
	typ      string
}

// Geocode resolves an address to coordinates. A match below the confidence
// threshold counts as no match; (nil, nil) means the address could not be
// resolved at all, including through the commune-centre fallback. An error is
// returned only when every attempted call failed at the transport level.
func (c *Client) Geocode(ctx context.Context, address, cityCode, cityName string) (*Result, error) {
	address = FixEncoding(address)
	cityName = FixEncoding(cityName)

	commercial := ExtractCommercialInfo(address)

	// An address that is just the commune name (or nearly empty) will never
	// score well on /search; go straight to the commune centre.
	if cityCode != "" && isJustCityName(address, cityName) {
		if r, err := c.communeCenter(ctx, cityCode, cityName); err == nil && r != nil {
			r.BrandName = commercial.BrandName
			return r, nil
		}
	}

	normalized := NormalizeAddress(address)

	var strategies []searchQuery
	for _, v := range commercial.Variations {
		if len(commercial.Variations) > 1 || commercial.BrandName != "" {
			strategies = append(strategies,
				searchQuery{q: v, cityCode: cityCode},
				searchQuery{q: v + ", " + cityName, cityCode: cityCode},
			)
		}
	}
	if IsLieuDit(address) {
		strategies = append(strategies,
			searchQuery{q: address + " " + cityName, cityCode: cityCode},
			searchQuery{q: address + ", " + cityName},
		)
	}
	strategies = append(strategies,
		searchQuery{q: normalized, cityCode: cityCode, typ: "housenumber"},
		searchQuery{q: normalized + ", " + cityName, cityCode: cityCode},
		searchQuery{q: normalized, cityCode: cityCode},
		searchQuery{q: address, cityCode: cityCode},
		searchQuery{q: normalized},
		searchQuery{q: address + " " + cityName},
	)

	var lastErr error
	attempted := 0
	for _, s := range strategies {
		if strings.TrimSpace(s.q) == "" || strings.TrimSpace(s.q) == "," {
			continue
		}
		attempted++
		result, err := c.search(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if result != nil {
			result.BrandName = commercial.BrandName
			return result, nil
		}
	}

	if cityCode != "" && cityName != "" {
		r, err := c.communeCenter(ctx, cityCode, cityName)
		if err != nil {
			lastErr = err
		} else if r != nil {
			r.BrandName = commercial.BrandName
			return r, nil
		}
	}

	if attempted > 0 && lastErr != nil {
		return nil, fmt.Errorf("geocoding unavailable: %w", lastErr)
	}
	return nil, nil
}

// search runs one /search query. Returns nil when the top hit is below the
// confidence threshold or there is no hit at all.
func (c *Client) search(ctx context.Context, q searchQuery) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q.q)
	params.Set("limit", "1")
	if q.cityCode != "" {
		params.Set("citycode", q.cityCode)
	}
	if q.typ != "" {
		params.Set("type", q.typ)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.banBaseURL+"/search/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("address search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("address search returned HTTP %d", resp.StatusCode)
	}

	var banResp banResponse
	if err := json.NewDecoder(resp.Body).Decode(&banResp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	if len(banResp.Features) == 0 {
		return nil, nil
	}
	f := banResp.Features[0]
	if f.Properties.Score < c.threshold || len(f.Geometry.Coordinates) < 2 {
		return nil, nil
	}

	return &Result{
		Latitude:  f.Geometry.Coordinates[1],
		Longitude: f.Geometry.Coordinates[0],
		Label:     f.Properties.Label,
		Score:     f.Properties.Score,
	}, nil
}

// communeCenter falls back to the commune's official centre point.
func (c *Client) communeCenter(ctx context.Context, cityCode, cityName string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/communes/%s?fields=centre&format=json", c.communeBaseURL, url.PathEscape(cityCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commune centre request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("commune centre returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Centre struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"centre"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding commune centre: %w", err)
	}
	if len(body.Centre.Coordinates) < 2 {
		return nil, nil
	}

	return &Result{
		Latitude:  body.Centre.Coordinates[1],
		Longitude: body.Centre.Coordinates[0],
		Label:     "Centre de " + cityName,
		Score:     communeCenterScore,
	}, nil
}

func isJustCityName(address, cityName string) bool {
	a := strings.TrimSpace(address)
	if a == "" || len(a) < 5 {
		return true
	}
	return cityName != "" && strings.EqualFold(a, strings.TrimSpace(cityName))
}
