// Package tunnelproto defines the binary handshake that opens a tunnel
// session and the byte-stream view of the WebSocket carrying it.
//
// Handshake record, version 0 (multi-byte integers are big-endian):
//
//	version    1 byte   must be 0
//	credential 16 bytes UUID
//	optlen     1 byte
//	options    optlen bytes, opaque, ignored by the server
//	command    1 byte   1 = TCP stream
//	port       2 bytes
//	addrtype   1 byte   1 = IPv4, 2 = domain, 3 = IPv6
//	address    4 bytes | 1-byte length + name | 16 bytes
//
// Bytes following the record are the first payload of the stream. A
// successful session answers with the two-byte reply {version, 0}.
package tunnelproto

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/uuid"
	"golang.org/x/crypto/cryptobyte"

	"github.com/koltyakov/wsedge/internal/domain"
)

const (
	Version0 uint8 = 0

	CommandTCP uint8 = 1

	AddrIPv4   uint8 = 1
	AddrDomain uint8 = 2
	AddrIPv6   uint8 = 3
)

// MaxHandshakeSize is the largest possible version 0 record.
const MaxHandshakeSize = 1 + 16 + 1 + 255 + 1 + 2 + 1 + 1 + 255

// ErrIncomplete means buf ends before the record does.
var ErrIncomplete = errors.New("incomplete handshake")

// Handshake is a decoded handshake record.
type Handshake struct {
	Version     uint8
	Credential  uuid.UUID
	Options     []byte
	Command     uint8
	Port        uint16
	AddressType uint8
	Address     string
}

// Destination returns the address the client asked for.
func (h Handshake) Destination() domain.Endpoint {
	return domain.Endpoint{Host: h.Address, Port: h.Port}
}

// ParseHandshake decodes the record at the start of buf and returns it with
// the number of bytes consumed. It returns [ErrIncomplete] when more bytes
// are needed; any other error wraps [domain.ErrProtocol].
func ParseHandshake(buf []byte) (Handshake, int, error) {
	var h Handshake
	s := cryptobyte.String(buf)

	if !s.ReadUint8(&h.Version) {
		return h, 0, ErrIncomplete
	}
	if h.Version != Version0 {
		return h, 0, fmt.Errorf("%w: unsupported version %d", domain.ErrProtocol, h.Version)
	}
	var cred []byte
	if !s.ReadBytes(&cred, len(h.Credential)) {
		return h, 0, ErrIncomplete
	}
	copy(h.Credential[:], cred)

	var opts cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&opts) {
		return h, 0, ErrIncomplete
	}
	if len(opts) > 0 {
		h.Options = append([]byte(nil), opts...)
	}

	if !s.ReadUint8(&h.Command) {
		return h, 0, ErrIncomplete
	}
	if h.Command != CommandTCP {
		return h, 0, fmt.Errorf("%w: unsupported command %d", domain.ErrProtocol, h.Command)
	}
	if !s.ReadUint16(&h.Port) || !s.ReadUint8(&h.AddressType) {
		return h, 0, ErrIncomplete
	}

	switch h.AddressType {
	case AddrIPv4:
		var b [4]byte
		if !s.CopyBytes(b[:]) {
			return h, 0, ErrIncomplete
		}
		h.Address = netip.AddrFrom4(b).String()
	case AddrIPv6:
		var b [16]byte
		if !s.CopyBytes(b[:]) {
			return h, 0, ErrIncomplete
		}
		h.Address = netip.AddrFrom16(b).String()
	case AddrDomain:
		var name cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&name) {
			return h, 0, ErrIncomplete
		}
		if len(name) == 0 {
			return h, 0, fmt.Errorf("%w: empty domain name", domain.ErrProtocol)
		}
		h.Address = string(name)
	default:
		return h, 0, fmt.Errorf("%w: unknown address type %d", domain.ErrProtocol, h.AddressType)
	}

	return h, len(buf) - len(s), nil
}

// AppendHandshake appends the encoding of h to b. AddressType is derived
// from Address when left zero.
func AppendHandshake(b []byte, h Handshake) ([]byte, error) {
	addrType := h.AddressType
	ip, ipErr := netip.ParseAddr(h.Address)
	if addrType == 0 {
		switch {
		case ipErr == nil && ip.Is4():
			addrType = AddrIPv4
		case ipErr == nil:
			addrType = AddrIPv6
		default:
			addrType = AddrDomain
		}
	}
	command := h.Command
	if command == 0 {
		command = CommandTCP
	}

	bld := cryptobyte.NewBuilder(b)
	bld.AddUint8(h.Version)
	bld.AddBytes(h.Credential[:])
	bld.AddUint8LengthPrefixed(func(c *cryptobyte.Builder) {
		c.AddBytes(h.Options)
	})
	bld.AddUint8(command)
	bld.AddUint16(h.Port)
	bld.AddUint8(addrType)
	switch addrType {
	case AddrIPv4:
		if ipErr != nil || !ip.Is4() {
			return nil, fmt.Errorf("address %q is not IPv4", h.Address)
		}
		a := ip.As4()
		bld.AddBytes(a[:])
	case AddrIPv6:
		if ipErr != nil {
			return nil, fmt.Errorf("address %q is not an IP", h.Address)
		}
		a := ip.As16()
		bld.AddBytes(a[:])
	case AddrDomain:
		if h.Address == "" {
			return nil, errors.New("empty domain name")
		}
		bld.AddUint8LengthPrefixed(func(c *cryptobyte.Builder) {
			c.AddBytes([]byte(h.Address))
		})
	default:
		return nil, fmt.Errorf("unknown address type %d", addrType)
	}
	return bld.Bytes()
}

// Reply returns the success reply for a record of the given version.
func Reply(version uint8) []byte {
	return []byte{version, 0}
}
