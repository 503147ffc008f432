package utils

import (
	"net"
	"strings"
)

var tunnelPrefixes = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// cgnat is 100.64.0.0/10, used by carrier NATs and overlay VPNs.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// RestrictedNetwork reports whether this host looks like it sits behind a
// VPN tunnel or a carrier-grade NAT, where direct media paths usually fail
// and a TURN relay should be used.
func RestrictedNetwork() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isTunnel(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if inCGNAT(addr) {
				return true
			}
		}
	}
	return false
}

func isTunnel(name string) bool {
	name = strings.ToLower(name)
	for _, p := range tunnelPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func inCGNAT(addr net.Addr) bool {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	return ip != nil && cgnat.Contains(ip)
}
