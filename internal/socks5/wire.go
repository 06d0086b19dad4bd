package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/connectlab/sockshub/internal/addr"
)

// Protocol constants. Values are the ones github.com/txthinking/socks5
// already defines; MethodNoneAcceptable is RFC 1928's fixed 0xFF
// sentinel, which the library has no named constant for.
const (
	Version byte = 0x05

	MethodNoAuth              = txsocks5.MethodNone
	MethodUserPass            = txsocks5.MethodUsernamePassword
	MethodNoneAcceptable byte = 0xff

	CmdConnect = txsocks5.CmdConnect
	CmdBind    = txsocks5.CmdBind
	CmdUDP     = txsocks5.CmdUDP

	RepSuccess            = txsocks5.RepSuccess
	RepGeneralFailure     = txsocks5.RepServerFailure
	RepRuleDenied         = txsocks5.RepNotAllowed
	RepNetworkUnreachable = txsocks5.RepNetworkUnreachable
	RepHostUnreachable    = txsocks5.RepHostUnreachable
	RepConnectionRefused  = txsocks5.RepConnectionRefused
	RepTTLExpired         = txsocks5.RepTTLExpired
	RepCommandNotSupport  = txsocks5.RepCommandNotSupported
	RepAddrTypeNotSupport = txsocks5.RepAddressNotSupported
)

// Auth carries optional SOCKS5 username/password credentials. An empty
// Username means "no authentication configured" on either side.
type Auth struct {
	Username string
	Password string
}

// WriteGreeting writes the client's method-selection message. NoAuth is
// always offered; UserPass is offered only when auth.Username is
// non-empty.
func WriteGreeting(w io.Writer, auth Auth) error {
	methods := []byte{txsocks5.MethodNone}
	if auth.Username != "" {
		methods = append(methods, txsocks5.MethodUsernamePassword)
	}
	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(w); err != nil {
		return fmt.Errorf("write greeting: %w", err)
	}
	return nil
}

// ReadGreeting reads the client's method-selection message and returns
// the offered methods.
func ReadGreeting(r io.Reader) ([]byte, error) {
	neg, err := txsocks5.NewNegotiationRequestFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	return neg.Methods, nil
}

// WriteMethodSelection writes the server's chosen method (or
// MethodNoneAcceptable when nothing offered is usable).
func WriteMethodSelection(w io.Writer, method byte) error {
	if _, err := txsocks5.NewNegotiationReply(method).WriteTo(w); err != nil {
		return fmt.Errorf("write method selection: %w", err)
	}
	return nil
}

// ReadMethodSelection reads the server's method-selection reply and
// returns the chosen method.
func ReadMethodSelection(r io.Reader) (byte, error) {
	neg, err := txsocks5.NewNegotiationReplyFrom(r)
	if err != nil {
		return 0, fmt.Errorf("read method selection: %w", err)
	}
	return neg.Method, nil
}

// WriteUserPassRequest writes the RFC 1929 subnegotiation request.
func WriteUserPassRequest(w io.Writer, auth Auth) error {
	if len(auth.Username) > 255 || len(auth.Password) > 255 {
		return fmt.Errorf("socks5 userpass: credential longer than 255 octets")
	}
	if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password)).WriteTo(w); err != nil {
		return fmt.Errorf("write userpass request: %w", err)
	}
	return nil
}

// ReadUserPassRequest reads the RFC 1929 subnegotiation request.
func ReadUserPassRequest(r io.Reader) (username, password string, err error) {
	req, err := txsocks5.NewUserPassNegotiationRequestFrom(r)
	if err != nil {
		return "", "", fmt.Errorf("read userpass request: %w", err)
	}
	return string(req.Uname), string(req.Passwd), nil
}

// WriteUserPassStatus writes the RFC 1929 subnegotiation reply.
func WriteUserPassStatus(w io.Writer, success bool) error {
	status := txsocks5.UserPassStatusFailure
	if success {
		status = txsocks5.UserPassStatusSuccess
	}
	if _, err := txsocks5.NewUserPassNegotiationReply(status).WriteTo(w); err != nil {
		return fmt.Errorf("write userpass status: %w", err)
	}
	return nil
}

// ReadUserPassStatus reads the RFC 1929 subnegotiation reply and reports
// whether STATUS was success.
func ReadUserPassStatus(r io.Reader) (bool, error) {
	rep, err := txsocks5.NewUserPassNegotiationReplyFrom(r)
	if err != nil {
		return false, fmt.Errorf("read userpass status: %w", err)
	}
	return rep.Status == txsocks5.UserPassStatusSuccess, nil
}

// ReadRequest reads a CONNECT/BIND/UDP request and returns the command
// and destination. A request carrying an ATYP the library itself
// refuses to parse fails with the library's error, wrapped; callers that
// want to reply RepAddrTypeNotSupport check the ATYP byte with
// IsSupportedATYP before calling ReadRequest.
func ReadRequest(r io.Reader) (cmd byte, dst addr.Destination, err error) {
	req, err := txsocks5.NewRequestFrom(r)
	if err != nil {
		return 0, addr.Destination{}, fmt.Errorf("read request: %w", err)
	}
	dst, err = destFromWire(req.Atyp, req.DstAddr, req.DstPort)
	if err != nil {
		return req.Cmd, addr.Destination{}, err
	}
	return req.Cmd, dst, nil
}

// WriteRequest writes a CONNECT/BIND/UDP request for dst.
func WriteRequest(w io.Writer, cmd byte, dst addr.Destination) error {
	atyp, rawAddr, rawPort, err := wireFromDest(dst)
	if err != nil {
		return err
	}
	if _, err := txsocks5.NewRequest(cmd, atyp, rawAddr, rawPort).WriteTo(w); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// ReadReply reads a server reply and returns the REP code and bound
// address.
func ReadReply(r io.Reader) (rep byte, bnd addr.Destination, err error) {
	reply, err := txsocks5.NewReplyFrom(r)
	if err != nil {
		return 0, addr.Destination{}, fmt.Errorf("read reply: %w", err)
	}
	bnd, err = destFromWire(reply.Atyp, reply.BndAddr, reply.BndPort)
	if err != nil {
		return reply.Rep, addr.Destination{}, err
	}
	return reply.Rep, bnd, nil
}

// WriteReply writes a server reply with the given REP code and bound
// address.
func WriteReply(w io.Writer, rep byte, bnd addr.Destination) error {
	atyp, rawAddr, rawPort, err := wireFromDest(bnd)
	if err != nil {
		return err
	}
	if _, err := txsocks5.NewReply(rep, atyp, rawAddr, rawPort).WriteTo(w); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// IsSupportedATYP reports whether b is one of the three ATYP values this
// hub (and the underlying library) knows how to decode. The SOCKS5
// front-end peeks the ATYP byte before handing the rest of the request
// to ReadRequest so it can reply RepAddrTypeNotSupport instead of
// dropping the connection when the peer sends something else.
func IsSupportedATYP(b byte) bool {
	switch b {
	case txsocks5.ATYPIPv4, txsocks5.ATYPIPv6, txsocks5.ATYPDomain:
		return true
	default:
		return false
	}
}

// UnsupportedAddrType reports an ATYP value neither this package nor the
// underlying library's Request/Reply parser understands.
type UnsupportedAddrType struct {
	Atyp byte
}

func (e *UnsupportedAddrType) Error() string {
	return fmt.Sprintf("unsupported ATYP 0x%02x", e.Atyp)
}

func destFromWire(atyp byte, rawAddr, rawPort []byte) (addr.Destination, error) {
	if len(rawPort) != 2 {
		return addr.Destination{}, fmt.Errorf("malformed port field")
	}
	port := binary.BigEndian.Uint16(rawPort)
	switch atyp {
	case txsocks5.ATYPIPv4, txsocks5.ATYPIPv6:
		return addr.NewIP(net.IP(rawAddr), port), nil
	case txsocks5.ATYPDomain:
		return addr.NewDomain(string(rawAddr), port)
	default:
		return addr.Destination{}, &UnsupportedAddrType{Atyp: atyp}
	}
}

func wireFromDest(d addr.Destination) (atyp byte, rawAddr, rawPort []byte, err error) {
	rawPort = make([]byte, 2)
	binary.BigEndian.PutUint16(rawPort, d.Port())

	switch d.Kind() {
	case addr.KindIPv4:
		return txsocks5.ATYPIPv4, d.IP().To4(), rawPort, nil
	case addr.KindIPv6:
		return txsocks5.ATYPIPv6, d.IP().To16(), rawPort, nil
	case addr.KindDomain:
		host, err := d.ASCIIHost()
		if err != nil {
			return 0, nil, nil, err
		}
		if len(host) > 255 {
			return 0, nil, nil, &addr.MalformedAddress{Input: host, Offset: 255, Reason: "domain too long for ATYP 0x03"}
		}
		return txsocks5.ATYPDomain, []byte(host), rawPort, nil
	default:
		return 0, nil, nil, &addr.MalformedAddress{Reason: "unset destination"}
	}
}
