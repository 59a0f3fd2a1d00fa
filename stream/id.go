package stream

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// IDSize is the length of a stream id in bytes.
const IDSize = 8

// ID is an 8-byte AVB stream identifier.
type ID [IDSize]byte

// MAC is a 6-byte Ethernet address.
type MAC [6]byte

// DefaultDestination is the IEEE 1722 reserved multicast base address.
var DefaultDestination = MAC{0x91, 0xE0, 0xF0, 0x00, 0x0e, 0x80}

// String formats the id as colon separated octets.
func (id ID) String() string {
	return colonHex(id[:])
}

// Hex formats the id as 16 lowercase hex characters, the form used on the
// control channel.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether all octets are zero.
func (id ID) IsZero() bool {
	return id == ID{}
}

// ParseID accepts either 16 hex characters or 8 colon separated octets.
func ParseID(s string) (ID, error) {
	var id ID
	if err := parseOctets(strings.TrimSpace(s), id[:]); err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// String formats the address as colon separated octets.
func (m MAC) String() string {
	return colonHex(m[:])
}

// IsMulticast reports whether the group bit is set.
func (m MAC) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// Offset returns a copy of m with n added to the last octet.
func (m MAC) Offset(n int) MAC {
	out := m
	out[5] += byte(n)
	return out
}

// ParseMAC accepts either 12 hex characters or 6 colon separated octets.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	if err := parseOctets(strings.TrimSpace(s), m[:]); err != nil {
		return MAC{}, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	return m, nil
}

func colonHex(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

func parseOctets(s string, dst []byte) error {
	if strings.ContainsAny(s, ":-") {
		parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '-' })
		if len(parts) != len(dst) {
			return fmt.Errorf("want %d octets, got %d", len(dst), len(parts))
		}
		for i, p := range parts {
			if len(p) != 2 {
				return fmt.Errorf("octet %q", p)
			}
			if _, err := hex.Decode(dst[i:i+1], []byte(p)); err != nil {
				return err
			}
		}
		return nil
	}
	if len(s) != len(dst)*2 {
		return fmt.Errorf("want %d hex chars, got %d", len(dst)*2, len(s))
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}
