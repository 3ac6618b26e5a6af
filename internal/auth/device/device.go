// Package device turns the raw User-Agent and client IP of a request into
// the facts stored on a session.
package device

import (
	"net"
	"strings"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
)

const unknown = "Unknown"

const (
	TypeDesktop = "Desktop"
	TypeMobile  = "Mobile"
	TypeTablet  = "Tablet"
	TypeBot     = "Bot"
)

// Locator maps an IP to a place. GeoIP implements it.
type Locator interface {
	Locate(ip net.IP) (city, country string, ok bool)
}

// Resolver builds DeviceInfo values. A nil Locator reports every location
// as unknown.
type Resolver struct {
	Locator Locator
}

// Resolve parses userAgent and looks up ip.
func (r *Resolver) Resolve(userAgent, ip string) domain.DeviceInfo {
	info := domain.DeviceInfo{
		Browser:    unknown,
		OS:         unknown,
		DeviceType: TypeDesktop,
		IPAddress:  ip,
		Location:   unknown,
	}

	if strings.TrimSpace(userAgent) != "" {
		ua := useragent.New(userAgent)
		info.Browser = browser(ua)
		info.OS = operatingSystem(ua)
		info.DeviceType = deviceType(ua, userAgent)
	}

	if r != nil && r.Locator != nil {
		if parsed := net.ParseIP(ip); parsed != nil {
			if city, country, ok := r.Locator.Locate(parsed); ok {
				info.Location = location(city, country)
			}
		}
	}
	return info
}

func browser(ua *useragent.UserAgent) string {
	name, version := ua.Browser()
	return joinOrUnknown(name, version)
}

func operatingSystem(ua *useragent.UserAgent) string {
	os := ua.OSInfo()
	return joinOrUnknown(os.Name, os.Version)
}

func deviceType(ua *useragent.UserAgent, raw string) string {
	switch {
	case ua.Bot():
		return TypeBot
	case strings.Contains(raw, "iPad"), strings.Contains(raw, "Tablet"),
		strings.Contains(raw, "Android") && !strings.Contains(raw, "Mobile"):
		return TypeTablet
	case ua.Mobile():
		return TypeMobile
	default:
		return TypeDesktop
	}
}

func joinOrUnknown(name, version string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return unknown
	}
	return strings.TrimSpace(name + " " + strings.TrimSpace(version))
}

func location(city, country string) string {
	if city == "" {
		city = unknown
	}
	if country == "" {
		return city
	}
	return city + ", " + country
}

// GeoIP looks addresses up in a MaxMind City database.
type GeoIP struct {
	db *geoip2.Reader
}

// OpenGeoIP opens the mmdb file at path.
func OpenGeoIP(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIP{db: db}, nil
}

func (g *GeoIP) Locate(ip net.IP) (string, string, bool) {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return "", "", false
	}
	rec, err := g.db.City(ip)
	if err != nil {
		return "", "", false
	}
	country := rec.Country.IsoCode
	if country == "" {
		return "", "", false
	}
	return rec.City.Names["en"], country, true
}

func (g *GeoIP) Close() error { return g.db.Close() }
