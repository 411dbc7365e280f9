package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"
	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Geocoder is the forward-geocoding seam. A zero-result lookup returns an
// unresolved GeoResult with a nil error; only transport-level failures
// return an error.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (domain.GeoResult, error)
}

// NominatimGeocoder resolves free-text locations against a Nominatim
// instance. The public instance allows at most one request per second, so
// every call goes through the limiter.
type NominatimGeocoder struct {
	client      *resty.Client
	baseURL     string
	email       string
	countryBias string
	limiter     *rate.Limiter
	maxAttempts int
}

// NominatimConfig holds configuration for the Nominatim client.
type NominatimConfig struct {
	BaseURL     string
	UserAgent   string
	Email       string
	CountryBias string
	RatePerSec  float64
	MaxAttempts int
	Timeout     time.Duration
}

// NewNominatimGeocoder creates a new Nominatim geocoder client.
func NewNominatimGeocoder(cfg *NominatimConfig) *NominatimGeocoder {
	client := resty.New()
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "india-job-map"
	}
	client.SetHeader("User-Agent", userAgent)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}

	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &NominatimGeocoder{
		client:      client,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		email:       cfg.Email,
		countryBias: cfg.CountryBias,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), 1),
		maxAttempts: maxAttempts,
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves one query with the configured country bias appended.
func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (domain.GeoResult, error) {
	biased := query
	if g.countryBias != "" && !strings.Contains(strings.ToLower(query), strings.ToLower(g.countryBias)) {
		biased = query + ", " + g.countryBias
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return domain.GeoResult{}, err
		}

		var results []nominatimResult
		httpResp, err := g.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"q":      biased,
				"format": "json",
				"limit":  "1",
				"email":  g.email,
			}).
			SetResult(&results).
			Get(g.baseURL + "/search")

		if err != nil {
			lastErr = fmt.Errorf("failed to call geocoder: %v: %w", err, domain.ErrTransientUpstream)
			continue
		}

		status := httpResp.StatusCode()
		if status == 429 || status >= 500 {
			lastErr = fmt.Errorf("geocoder returned HTTP %d: %w", status, domain.ErrTransientUpstream)
			continue
		}
		if status != 200 {
			return domain.GeoResult{}, fmt.Errorf("geocoder returned HTTP %d", status)
		}

		if len(results) == 0 {
			return domain.GeoResult{Resolved: false}, nil
		}

		lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
		lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
		if latErr != nil || lonErr != nil {
			return domain.GeoResult{}, fmt.Errorf("geocoder returned unparseable coordinates for %q", query)
		}

		return domain.GeoResult{
			Lat:        lat,
			Lon:        lon,
			Resolved:   true,
			Method:     domain.ResolutionNominatim,
			ResolvedAt: time.Now(),
		}, nil
	}

	return domain.GeoResult{}, lastErr
}

// seedCities are well-known locations resolved without a geocoder call.
// Keys must already be in normalized form.
var seedCities = map[string][2]float64{
	"bengaluru": {12.9716, 77.5946},
	"bangalore": {12.9716, 77.5946},
	"mumbai":    {19.0760, 72.8777},
	"delhi":     {28.7041, 77.1025},
	"new delhi": {28.6139, 77.2090},
	"hyderabad": {17.3850, 78.4867},
	"chennai":   {13.0827, 80.2707},
	"pune":      {18.5204, 73.8567},
	"kolkata":   {22.5726, 88.3639},
	"gurgaon":   {28.4595, 77.0266},
	"gurugram":  {28.4595, 77.0266},
	"noida":     {28.5355, 77.3910},
	"ahmedabad": {23.0225, 72.5714},
	"jaipur":    {26.9124, 75.7873},
	"kochi":     {9.9312, 76.2673},
}

// GeoCache is the persistent resolver cache seam.
// *repository.GeoCacheRepository is the production implementation.
type GeoCache interface {
	Get(ctx context.Context, normalizedText string) (*domain.GeoCacheEntry, error)
	Put(ctx context.Context, entry *domain.GeoCacheEntry) error
	SeedMissing(ctx context.Context, entries []domain.GeoCacheEntry) error
}

// LocationResolver turns raw location text into coordinates. Lookups go
// seed table, persistent cache, then live geocoder; concurrent requests for
// the same normalized text collapse into one upstream call.
type LocationResolver struct {
	cache    GeoCache
	geocoder Geocoder
	group    singleflight.Group
	logger   *logger.Logger
}

// NewLocationResolver creates a new location resolver.
func NewLocationResolver(cache GeoCache, geocoder Geocoder, log *logger.Logger) *LocationResolver {
	return &LocationResolver{
		cache:    cache,
		geocoder: geocoder,
		logger:   log,
	}
}

func (r *LocationResolver) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return r.logger
}

// SeedCache inserts the built-in city table into the persistent cache
// without overwriting live-resolved entries.
func (r *LocationResolver) SeedCache(ctx context.Context) error {
	now := time.Now()
	entries := make([]domain.GeoCacheEntry, 0, len(seedCities))
	for text, coords := range seedCities {
		entries = append(entries, domain.GeoCacheEntry{
			NormalizedText: text,
			Lat:            coords[0],
			Lon:            coords[1],
			Resolved:       true,
			Definitive:     true,
			Method:         domain.ResolutionSeed,
			ResolvedAt:     now,
		})
	}
	return r.cache.SeedMissing(ctx, entries)
}

// Resolve maps raw location text to a GeoResult. An unresolved result with
// a nil error means the location is definitively unknown; the caller keeps
// the record and excludes the pin from the served set.
func (r *LocationResolver) Resolve(ctx context.Context, rawText string) (domain.GeoResult, error) {
	normalized := NormalizeLocation(rawText)
	if normalized == "" {
		return domain.GeoResult{Resolved: false}, nil
	}

	entry, err := r.cache.Get(ctx, normalized)
	if err == nil && (entry.Resolved || entry.Definitive) {
		return entry.Result(), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.GeoResult{}, fmt.Errorf("failed to read geo cache: %w", err)
	}

	result, err, _ := r.group.Do(normalized, func() (interface{}, error) {
		return r.resolveLive(ctx, normalized, entry)
	})
	if err != nil {
		return domain.GeoResult{}, err
	}
	return result.(domain.GeoResult), nil
}

func (r *LocationResolver) resolveLive(ctx context.Context, normalized string, cached *domain.GeoCacheEntry) (domain.GeoResult, error) {
	geo, err := r.geocoder.Geocode(ctx, normalized)
	if err != nil {
		// Transient failures are not cached so later cycles retry.
		return domain.GeoResult{}, err
	}

	now := time.Now()
	newEntry := domain.GeoCacheEntry{
		NormalizedText: normalized,
		Lat:            geo.Lat,
		Lon:            geo.Lon,
		Resolved:       geo.Resolved,
		Method:         geo.Method,
		ResolvedAt:     now,
	}

	// A zero-result answer is the geocoder's verdict, not a failure; cache
	// it definitively so the same text never costs another upstream call.
	newEntry.Definitive = true
	if !geo.Resolved {
		attempts := 1
		if cached != nil {
			attempts = cached.FailedAttempts + 1
		}
		newEntry.FailedAttempts = attempts
		newEntry.Method = ""
		r.log(ctx).WithFields(logger.Fields{
			"location": normalized,
		}).Info("Location not found by geocoder")
	}

	if err := r.cache.Put(ctx, &newEntry); err != nil {
		r.log(ctx).WithError(err).Warn("Failed to write geo cache entry")
	}

	return geo, nil
}

// locationLabels are leading labels stripped from raw location text.
var locationLabels = []string{"location:", "locations:", "based in", "office:"}

// NormalizeLocation canonicalizes raw location text for cache keys and
// identity buckets: lowercase, diacritics folded, labels stripped,
// whitespace collapsed.
func NormalizeLocation(raw string) string {
	text := strings.ToLower(strings.TrimSpace(raw))

	for _, label := range locationLabels {
		text = strings.TrimSpace(strings.TrimPrefix(text, label))
	}

	text = foldDiacritics(text)

	// Collapse runs of whitespace and drop stray surrounding punctuation
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	text = strings.Join(fields, " ")
	return strings.Trim(text, " .,;|-")
}

// foldDiacritics strips combining marks so "Bengalūru" and "Bengaluru"
// share one cache entry.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
