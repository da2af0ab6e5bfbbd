package util

import (
	"fmt"
	"net"
)

// MacAddress is a 48-bit link-layer address. Unlike net.HardwareAddr it is
// comparable, so it can be used inside map keys.
type MacAddress [6]byte

// ParseMAC parses a colon, dash or dot separated EUI-48 address.
func ParseMAC(s string) (MacAddress, error) {
	var mac MacAddress
	hw, err := net.ParseMAC(s)
	if err != nil {
		return mac, err
	}
	if len(hw) != len(mac) {
		return mac, fmt.Errorf("invalid MAC address %q: not EUI-48", s)
	}
	copy(mac[:], hw)
	return mac, nil
}

// MustParseMAC is ParseMAC for constants and tests; it panics on bad input.
func MustParseMAC(s string) MacAddress {
	mac, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

// String returns the lower-case colon form, e.g. "00:11:22:aa:bb:cc".
func (m MacAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}

// IsZero reports whether m is 00:00:00:00:00:00.
func (m MacAddress) IsZero() bool {
	return m == MacAddress{}
}

// MarshalText implements encoding.TextMarshaler.
func (m MacAddress) MarshalText() ([]byte, error) {
	if m.IsZero() {
		return []byte{}, nil
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text is the zero
// address.
func (m *MacAddress) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*m = MacAddress{}
		return nil
	}
	mac, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = mac
	return nil
}
