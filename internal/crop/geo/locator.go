package geo

import (
	"context"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
	"go.uber.org/zap"
)

type point struct{ lat, lng float64 }

// stateCentroids holds approximate centers of Indian states and union territories.
var stateCentroids = map[string]point{
	"andaman and nicobar islands": {11.7401, 92.6586},
	"andhra pradesh":              {15.9129, 79.7400},
	"arunachal pradesh":           {28.2180, 94.7278},
	"assam":                       {26.2006, 92.9376},
	"bihar":                       {25.0961, 85.3131},
	"chandigarh":                  {30.7333, 76.7794},
	"chhattisgarh":                {21.2787, 81.8661},
	"dadra and nagar haveli":      {20.1809, 72.8311},
	"daman and diu":               {20.3974, 72.8328},
	"delhi":                       {28.7041, 77.1025},
	"goa":                         {15.2993, 74.1240},
	"gujarat":                     {22.2587, 71.1924},
	"haryana":                     {29.0588, 76.0856},
	"himachal pradesh":            {31.1048, 77.1734},
	"jammu and kashmir":           {33.7782, 76.5762},
	"jharkhand":                   {23.6102, 85.2799},
	"karnataka":                   {15.3173, 75.7139},
	"kerala":                      {10.8505, 76.2711},
	"ladakh":                      {34.1526, 77.5771},
	"lakshadweep":                 {10.5667, 72.6417},
	"madhya pradesh":              {22.9734, 78.6569},
	"maharashtra":                 {19.7515, 75.7139},
	"manipur":                     {24.6637, 93.9063},
	"meghalaya":                   {25.4670, 91.3662},
	"mizoram":                     {23.1645, 92.9376},
	"nagaland":                    {26.1584, 94.5624},
	"odisha":                      {20.9517, 85.0985},
	"puducherry":                  {11.9416, 79.8083},
	"punjab":                      {31.1471, 75.3412},
	"rajasthan":                   {27.0238, 74.2179},
	"sikkim":                      {27.5330, 88.5122},
	"tamil nadu":                  {11.1271, 78.6569},
	"telangana":                   {18.1124, 79.0193},
	"tripura":                     {23.9408, 91.9882},
	"uttar pradesh":               {26.8467, 80.9462},
	"uttarakhand":                 {30.0668, 79.0193},
	"west bengal":                 {22.9868, 87.8550},
}

// Geocoder resolves a state name to coordinates through an external service.
type Geocoder func(state string) (lat, lng float64, err error)

// GoogleGeocoder returns a Geocoder backed by the Google Geocoding API.
// The key is process-global in the underlying library.
func GoogleGeocoder(apiKey string) Geocoder {
	geocoder.ApiKey = apiKey
	return func(state string) (float64, float64, error) {
		loc, err := geocoder.Geocoding(geocoder.Address{State: state, Country: "India"})
		if err != nil {
			return 0, 0, err
		}
		return loc.Latitude, loc.Longitude, nil
	}
}

// Locator resolves state centroids from the built-in table, falling back to an
// optional Geocoder. Fallback results, including misses, are cached.
type Locator struct {
	fallback Geocoder
	log      *zap.Logger

	mu    sync.Mutex
	cache map[string]*point
}

// NewLocator creates a Locator. fallback may be nil.
func NewLocator(fallback Geocoder, log *zap.Logger) *Locator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{
		fallback: fallback,
		log:      log.With(zap.String("component", "geo")),
		cache:    make(map[string]*point),
	}
}

// Locate implements crop.Locator.
func (l *Locator) Locate(ctx context.Context, state string) (float64, float64, bool) {
	key := strings.ToLower(strings.TrimSpace(state))
	if key == "" {
		return 0, 0, false
	}
	if p, ok := stateCentroids[key]; ok {
		return p.lat, p.lng, true
	}
	if l.fallback == nil || ctx.Err() != nil {
		return 0, 0, false
	}

	l.mu.Lock()
	p, cached := l.cache[key]
	l.mu.Unlock()
	if cached {
		if p == nil {
			return 0, 0, false
		}
		return p.lat, p.lng, true
	}

	// The lookup runs unlocked; concurrent misses for one state may both call out.
	lat, lng, err := l.fallback(state)
	if err != nil {
		l.log.Debug("geocoding failed", zap.String("state", state), zap.Error(err))
		l.store(key, nil)
		return 0, 0, false
	}
	l.store(key, &point{lat, lng})
	return lat, lng, true
}

func (l *Locator) store(key string, p *point) {
	l.mu.Lock()
	l.cache[key] = p
	l.mu.Unlock()
}
