package nodeconfig

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseMAC parses a colon-separated MAC address ("de:dc:ce:00:00:01")
// into the [6]byte form message.NewDevice expects.
func ParseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("nodeconfig: %q is not a 6-octet MAC address", s)
	}
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return mac, fmt.Errorf("nodeconfig: invalid octet %q in MAC %q", p, s)
		}
		mac[i] = b[0]
	}
	return mac, nil
}
