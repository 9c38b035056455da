package enrich

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Enricher annotates IP addresses with GeoLite2 country and ASN data for
// the operator log. Both databases are optional; whatever is missing is
// simply left out of the annotation.
type Enricher struct {
	countryDB *geoip2.Reader
	asnDB     *geoip2.Reader
}

// New loads GeoLite2-Country.mmdb and GeoLite2-ASN.mmdb from dir when
// present. A missing directory or missing files are not errors.
func New(dir string) *Enricher {
	e := &Enricher{}
	if dir == "" {
		return e
	}

	if p := filepath.Join(dir, "GeoLite2-Country.mmdb"); fileExists(p) {
		if db, err := geoip2.Open(p); err == nil {
			e.countryDB = db
		}
	}
	if p := filepath.Join(dir, "GeoLite2-ASN.mmdb"); fileExists(p) {
		if db, err := geoip2.Open(p); err == nil {
			e.asnDB = db
		}
	}
	return e
}

// Describe returns a short "DE AS3320 Deutsche Telekom AG" style string,
// or "" when nothing is known about the address.
func (e *Enricher) Describe(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	var parts []string
	if e.countryDB != nil {
		if rec, err := e.countryDB.Country(parsed); err == nil && rec.Country.IsoCode != "" {
			parts = append(parts, rec.Country.IsoCode)
		}
	}
	if e.asnDB != nil {
		if rec, err := e.asnDB.ASN(parsed); err == nil && rec.AutonomousSystemNumber != 0 {
			parts = append(parts, fmt.Sprintf("AS%d %s", rec.AutonomousSystemNumber, rec.AutonomousSystemOrganization))
		}
	}
	return strings.Join(parts, " ")
}

// Close releases the mmdb readers.
func (e *Enricher) Close() {
	if e.countryDB != nil {
		e.countryDB.Close()
	}
	if e.asnDB != nil {
		e.asnDB.Close()
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
