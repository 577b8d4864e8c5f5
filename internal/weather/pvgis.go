package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PVGISTimeLayout is the timestamp format of PVGIS hourly series (UTC).
const PVGISTimeLayout = "20060102:1504"

// PVGISClient fetches hourly plane-of-array series from the JRC PVGIS seriescalc API.
type PVGISClient struct {
	BaseURL     string
	RadDatabase string
	UserAgent   string
	HTTPClient  *http.Client
}

// NewPVGISClient creates a client with a bounded request timeout.
func NewPVGISClient(baseURL string, timeout time.Duration) *PVGISClient {
	if baseURL == "" {
		baseURL = "https://re.jrc.ec.europa.eu/api/v5_3/"
	}
	return &PVGISClient{
		BaseURL:     baseURL,
		RadDatabase: "PVGIS-SARAH3",
		UserAgent:   "pvyield-simulator",
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

func (c *PVGISClient) Name() string { return "pvgis" }

// StatusError is returned for non-2xx PVGIS responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pvgis returned %d: %s", e.StatusCode, e.Message)
}

type pvgisResponse struct {
	Outputs struct {
		Hourly []pvgisHour `json:"hourly"`
	} `json:"outputs"`
}

type pvgisHour struct {
	Time      string  `json:"time"`
	GbI       float64 `json:"Gb(i)"`
	GdI       float64 `json:"Gd(i)"`
	GrI       float64 `json:"Gr(i)"`
	SunHeight float64 `json:"H_sun"`
	T2m       float64 `json:"T2m"`
	WS10m     float64 `json:"WS10m"`
}

// URL builds the seriescalc request. PVGIS measures aspect from south (east negative),
// so the compass azimuth is shifted by 180°.
func (c *PVGISClient) URL(req Request) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	q.Set("startyear", strconv.Itoa(req.YearStart))
	q.Set("endyear", strconv.Itoa(req.YearEnd))
	q.Set("angle", strconv.FormatFloat(req.TiltDeg, 'f', -1, 64))
	q.Set("aspect", strconv.FormatFloat(req.AzimuthDeg-180, 'f', -1, 64))
	q.Set("components", "1")
	q.Set("pvcalculation", "0")
	q.Set("outputformat", "json")
	q.Set("raddatabase", c.RadDatabase)
	return strings.TrimRight(c.BaseURL, "/") + "/seriescalc?" + q.Encode()
}

// Fetch downloads and decodes one hourly series.
func (c *PVGISClient) Fetch(ctx context.Context, req Request) (*Series, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(req), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &msg) != nil || msg.Message == "" {
			msg.Message = strings.TrimSpace(string(body))
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg.Message}
	}

	var parsed pvgisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return parsed.series(req)
}

func (p pvgisResponse) series(req Request) (*Series, error) {
	hours := p.Outputs.Hourly
	if len(hours) == 0 {
		return nil, fmt.Errorf("response contains no hourly data")
	}
	n := len(hours)
	s := &Series{
		Times:            make([]time.Time, n),
		Step:             time.Hour,
		POADirect:        make([]float64, n),
		POASkyDiffuse:    make([]float64, n),
		POAGroundDiffuse: make([]float64, n),
		TiltDeg:          req.TiltDeg,
		AzimuthDeg:       req.AzimuthDeg,
		TempAir:          make([]float64, n),
		WindSpeed:        make([]float64, n),
	}
	for i, h := range hours {
		t, err := time.ParseInLocation(PVGISTimeLayout, h.Time, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing time %q: %w", h.Time, err)
		}
		s.Times[i] = t
		s.POADirect[i] = h.GbI
		s.POASkyDiffuse[i] = h.GdI
		s.POAGroundDiffuse[i] = h.GrI
		s.TempAir[i] = h.T2m
		s.WindSpeed[i] = h.WS10m
	}
	return s, nil
}
