package netutil

import (
	"errors"
	"net"
	"strings"
)

// ErrNoInterface is returned when no usable IPv4 interface is up.
var ErrNoInterface = errors.New("netutil: no suitable IPv4 interface found")

// Kind classifies how an interface reaches the LAN. Classification is
// heuristic (name patterns first, address ranges second) and only feeds
// interface priority and status display, never correctness.
type Kind string

const (
	KindWifi     Kind = "wifi"
	KindEthernet Kind = "ethernet"
	KindHotspot  Kind = "hotspot"
	KindCellular Kind = "cellular"
	KindPrivate  Kind = "private"
	KindUnknown  Kind = "unknown"
)

// priority orders kinds for picking the interface to advertise. Wi-Fi and
// ethernet beat tethered links; unknown is the last resort.
var priority = []Kind{KindWifi, KindEthernet, KindPrivate, KindHotspot, KindCellular, KindUnknown}

// Interface is one up, non-loopback IPv4 interface.
type Interface struct {
	Name string
	IP   net.IP
	Mask net.IPMask
	Kind Kind
}

var (
	hotspotPatterns  = []string{"ap", "hotspot", "tether", "rndis", "ncm"}
	cellularPatterns = []string{"rmnet", "ccmni", "cellular", "mobile", "wwan"}
	wifiPatterns     = []string{"wlan", "wifi", "wl", "ath"}
	ethernetPatterns = []string{"eth", "en0", "en1", "lan"}
)

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// classify guesses the interface kind. Wi-Fi patterns are checked before
// ethernet ones so that "wlan0" is not caught by the "lan" substring.
func classify(name string, ip net.IP) Kind {
	lower := strings.ToLower(name)
	switch {
	case matchesAny(lower, hotspotPatterns):
		return KindHotspot
	case matchesAny(lower, cellularPatterns):
		return KindCellular
	case matchesAny(lower, wifiPatterns):
		return KindWifi
	case matchesAny(lower, ethernetPatterns):
		return KindEthernet
	}
	return classifyByIP(ip)
}

func classifyByIP(ip net.IP) Kind {
	s := ip.String()
	switch {
	// Android and Windows hotspots hand out these ranges.
	case strings.HasPrefix(s, "192.168.43.") || strings.HasPrefix(s, "192.168.137."):
		return KindHotspot
	case strings.HasPrefix(s, "10.") || strings.HasPrefix(s, "172.") || strings.HasPrefix(s, "192.168."):
		return KindPrivate
	}
	return KindUnknown
}

// Interfaces returns every up, non-loopback interface with an IPv4
// address, skipping link-local assignments.
func Interfaces() []Interface {
	var out []Interface
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ip, ipn, ok := ipv4Net(a)
			if !ok || ip.IsLinkLocalUnicast() {
				continue
			}
			out = append(out, Interface{
				Name: ifi.Name,
				IP:   ip,
				Mask: ipn.Mask,
				Kind: classify(ifi.Name, ip),
			})
			break
		}
	}
	return out
}

func ipv4Net(a net.Addr) (net.IP, *net.IPNet, bool) {
	switch v := a.(type) {
	case *net.IPNet:
		if ip := v.IP.To4(); ip != nil {
			return ip, v, true
		}
	case *net.IPAddr:
		if ip := v.IP.To4(); ip != nil {
			_, n, _ := net.ParseCIDR(ip.String() + "/32")
			return ip, n, true
		}
	}
	return nil, nil, false
}

// Best picks the interface to advertise in beacons, by kind priority.
func Best() (Interface, error) {
	ifaces := Interfaces()
	if len(ifaces) == 0 {
		return Interface{}, ErrNoInterface
	}
	for _, kind := range priority {
		for _, ifi := range ifaces {
			if ifi.Kind == kind {
				return ifi, nil
			}
		}
	}
	return ifaces[0], nil
}

// OutboundIP asks the kernel which source address would be used for an
// outbound packet. No traffic is sent; Dial on UDP only resolves a route.
func OutboundIP() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}

// LocalIP returns the best address to advertise, falling back to the
// outbound route and finally loopback. Always returns something usable
// in a beacon.
func LocalIP() string {
	if ifi, err := Best(); err == nil {
		return ifi.IP.String()
	}
	if ip, err := OutboundIP(); err == nil {
		return ip.String()
	}
	return "127.0.0.1"
}

// BroadcastAddr computes the directed broadcast address of a subnet.
func BroadcastAddr(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil || len(mask) != net.IPv4len {
		return net.IPv4bcast
	}
	out := make(net.IP, net.IPv4len)
	for i := range out {
		out[i] = ip4[i] | ^mask[i]
	}
	return out
}

// SubnetBroadcast returns the directed broadcast address for the best
// interface, or the limited broadcast address when nothing better exists.
func SubnetBroadcast() net.IP {
	ifi, err := Best()
	if err != nil {
		return net.IPv4bcast
	}
	return BroadcastAddr(ifi.IP, ifi.Mask)
}
