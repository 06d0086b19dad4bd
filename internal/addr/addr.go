package addr

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Kind tags the payload a Destination carries.
type Kind int

const (
	KindIPv4 Kind = iota
	KindIPv6
	KindDomain
)

// MaxDomainLength is the longest domain name this module will parse or
// encode. ATYP 0x03's length field is one byte, so anything longer than
// 255 could not be framed; this module additionally caps at 253 octets,
// the longest name RFC 1035 actually allows.
const MaxDomainLength = 253

// MalformedAddress reports a parse failure, with the byte offset of the
// input that caused it so logs can point at the exact problem.
type MalformedAddress struct {
	Input  string
	Offset int
	Reason string
}

func (e *MalformedAddress) Error() string {
	return fmt.Sprintf("malformed address %q at offset %d: %s", e.Input, e.Offset, e.Reason)
}

// Destination identifies a target endpoint: an IP literal or a domain
// name, always paired with a 16-bit port. Values are immutable; every
// transformation (normalization, punycode encoding) returns a new value.
type Destination struct {
	kind   Kind
	ip     net.IP // set when kind is KindIPv4 or KindIPv6
	domain string // set when kind is KindDomain, original UTF-8 preserved
	port   uint16
}

// NewIP constructs an IP-literal Destination. The IP's 4-in-6 form is
// normalized away so KindIPv4 and KindIPv6 stay distinct tags.
func NewIP(ip net.IP, port uint16) Destination {
	if v4 := ip.To4(); v4 != nil {
		return Destination{kind: KindIPv4, ip: v4, port: port}
	}
	return Destination{kind: KindIPv6, ip: ip.To16(), port: port}
}

// NewDomain constructs a domain Destination, preserving the original
// UTF-8 spelling of name.
func NewDomain(name string, port uint16) (Destination, error) {
	if len(name) == 0 {
		return Destination{}, &MalformedAddress{Input: name, Offset: 0, Reason: "empty domain"}
	}
	if len(name) > MaxDomainLength {
		return Destination{}, &MalformedAddress{Input: name, Offset: MaxDomainLength, Reason: "domain too long"}
	}
	return Destination{kind: KindDomain, domain: name, port: port}, nil
}

// Kind reports which tag this Destination carries.
func (d Destination) Kind() Kind { return d.kind }

// Port returns the destination port.
func (d Destination) Port() uint16 { return d.port }

// IP returns the IP literal payload; only meaningful when Kind is
// KindIPv4 or KindIPv6.
func (d Destination) IP() net.IP { return d.ip }

// Domain returns the original UTF-8 domain payload; only meaningful when
// Kind is KindDomain.
func (d Destination) Domain() string { return d.domain }

// IsIP reports whether this Destination is an IP literal.
func (d Destination) IsIP() bool { return d.kind == KindIPv4 || d.kind == KindIPv6 }

// ASCIIHost returns the host portion of this Destination encoded the way
// the wire needs it: dotted-quad/colon-hex for IP literals, and the
// punycode (IDNA ToASCII) form for domains containing non-ASCII labels.
// Domains that are already all-ASCII pass through unchanged.
func (d Destination) ASCIIHost() (string, error) {
	switch d.kind {
	case KindIPv4, KindIPv6:
		return d.ip.String(), nil
	case KindDomain:
		if isASCII(d.domain) {
			return d.domain, nil
		}
		ascii, err := idna.Lookup.ToASCII(d.domain)
		if err != nil {
			return "", &MalformedAddress{Input: d.domain, Offset: 0, Reason: "idna: " + err.Error()}
		}
		return ascii, nil
	default:
		return "", &MalformedAddress{Input: "", Offset: 0, Reason: "unset destination"}
	}
}

// NormalizedHost returns the lowercase, IDNA-normalized comparison key
// used by the ACL engine for domain matching. IP literals return their
// canonical textual form.
func (d Destination) NormalizedHost() (string, error) {
	switch d.kind {
	case KindIPv4, KindIPv6:
		return d.ip.String(), nil
	case KindDomain:
		norm, err := idna.Lookup.ToUnicode(d.domain)
		if err != nil {
			// Fall back to a plain lowercase compare key; ACL matching must
			// never fail, only dial-time parsing may.
			return strings.ToLower(d.domain), nil
		}
		return strings.ToLower(norm), nil
	default:
		return "", &MalformedAddress{Input: "", Offset: 0, Reason: "unset destination"}
	}
}

// HostPort renders the textual "host:port" form used by HTTP CONNECT
// targets and by net.Dial.
func (d Destination) HostPort() (string, error) {
	host, err := d.ASCIIHost()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(int(d.port))), nil
}

// String implements fmt.Stringer for logging.
func (d Destination) String() string {
	hp, err := d.HostPort()
	if err != nil {
		return "<invalid destination>"
	}
	return hp
}

// Equal reports whether two Destinations carry the same tag and payload.
func (d Destination) Equal(o Destination) bool {
	if d.kind != o.kind || d.port != o.port {
		return false
	}
	switch d.kind {
	case KindIPv4, KindIPv6:
		return d.ip.Equal(o.ip)
	case KindDomain:
		return d.domain == o.domain
	default:
		return true
	}
}

// ParseHostPort parses the "host:port" form used by HTTP CONNECT targets
// and ACL probe inputs. A bare host with no port is rejected; callers
// that want a default port (e.g. HTTP's 80) must append it first.
func ParseHostPort(hostport string) (Destination, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Destination{}, &MalformedAddress{Input: hostport, Offset: 0, Reason: err.Error()}
	}
	port, err := parsePort(portStr)
	if err != nil {
		return Destination{}, &MalformedAddress{Input: hostport, Offset: len(host) + 1, Reason: err.Error()}
	}
	if ip := net.ParseIP(host); ip != nil {
		return NewIP(ip, port), nil
	}
	return NewDomain(host, port)
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	return uint16(n), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
