package visit

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the geographic origin of a visit. Zero-value fields mean the
// lookup could not place the address.
type Location struct {
	Country string
	City    string
}

// GeoResolver maps a source address to a location. Misses are not errors:
// resolvers return a zero Location and the recorder fills in "Unknown".
type GeoResolver interface {
	Lookup(ip string) Location
}

// MaxMindResolver resolves addresses against a MaxMind GeoIP2/GeoLite2
// city database.
type MaxMindResolver struct {
	reader *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMindResolver, error) {
	const op = "visit.OpenMaxMind"

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open geoip database: %w", op, err)
	}

	return &MaxMindResolver{reader: reader}, nil
}

func (r *MaxMindResolver) Lookup(ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}
	}

	rec, err := r.reader.City(parsed)
	if err != nil {
		return Location{}
	}

	return Location{
		Country: rec.Country.IsoCode,
		City:    rec.City.Names["en"],
	}
}

func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}

// NoopResolver is used when no geo database is configured: every lookup
// misses and visits are recorded with "Unknown" geography.
type NoopResolver struct{}

func (NoopResolver) Lookup(string) Location {
	return Location{}
}
