package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the socket peer address. Forwarding headers are ignored;
// use a ClientIPResolver with trusted proxies behind a load balancer.
func ClientIP(r *http.Request) string {
	return peerAddr(r)
}

// ClientIPResolver derives the client address from X-Forwarded-For, but only
// when the socket peer is one of Trusted. Hops are read right to left and the
// first address outside Trusted is the client.
type ClientIPResolver struct {
	Trusted []netip.Prefix
}

// NewClientIPResolver parses trusted proxy CIDRs. A bare address is taken as a
// single host.
func NewClientIPResolver(proxies []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
			}
			res.Trusted = append(res.Trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		addr = addr.Unmap()
		res.Trusted = append(res.Trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return res, nil
}

// ClientIP implements KeyExtractor.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := peerAddr(r)
	if c == nil || !c.trusted(peer) {
		return peer
	}

	forwarded := r.Header.Get("X-Forwarded-For")
	if strings.TrimSpace(forwarded) == "" {
		forwarded = r.Header.Get("X-Real-IP")
	}
	hops := strings.Split(forwarded, ",")

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			// A malformed hop was written by something we do not trust.
			return client
		}
		client = addr.Unmap().String()
		if !c.trusted(client) {
			return client
		}
	}
	return client
}

func (c *ClientIPResolver) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.Trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
