package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// PublicServers are queried when the system resolver cannot answer.
var PublicServers = []string{
	"1.1.1.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.8.8",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"208.67.222.222",         // Cisco OpenDNS
}

var ErrNoAddress = errors.New("no addresses found")

// Resolver looks names up with the system resolver first and races the
// fallback servers if that fails.
type Resolver struct {
	Fallback      []string
	LocalTimeout  time.Duration
	RemoteTimeout time.Duration

	// lookup replaces net.Resolver.LookupHost, per server ("" is local)
	lookup func(ctx context.Context, server, host string) ([]string, error)
}

func NewResolver() *Resolver {
	return &Resolver{
		Fallback:      PublicServers,
		LocalTimeout:  time.Second,
		RemoteTimeout: 2 * time.Second,
		lookup:        lookupHost,
	}
}

// Lookup resolves host to a single address, preferring IPv4. IP literals
// are returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	local, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	ips, err := r.lookup(local, "", host)
	cancel()
	if err == nil {
		var ip string
		if ip, err = pick(ips); err == nil {
			return ip, nil
		}
	}

	if len(r.Fallback) == 0 {
		return "", fmt.Errorf("resolve %s: %w", host, err)
	}
	return r.race(ctx, host)
}

// race returns the first answer any fallback server gives.
func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, r.RemoteTimeout)
	defer cancel()

	results := make(chan result, len(r.Fallback))
	for _, server := range r.Fallback {
		go func(server string) {
			ips, err := r.lookup(ctx, server, host)
			if err != nil {
				results <- result{err: err}
				return
			}
			ip, err := pick(ips)
			results <- result{ip: ip, err: err}
		}(server)
	}

	failures := 0
	for range r.Fallback {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: all %d fallback servers failed", host, failures)
}

// DialContext resolves the host part of addr and dials the result. It fits
// websocket.Dialer.NetDialContext.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func pick(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", ErrNoAddress
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

func lookupHost(ctx context.Context, server, host string) ([]string, error) {
	if server == "" {
		return net.DefaultResolver.LookupHost(ctx, host)
	}

	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(trimBrackets(server), "53"))
		},
	}
	return r.LookupHost(ctx, host)
}

func trimBrackets(s string) string {
	if len(s) > 1 && s[0] == '[' && s[len(s)-1] == ']' {
		return s[1 : len(s)-1]
	}
	return s
}
