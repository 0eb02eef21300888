// Package chain validates the on-chain identities the raffle API accepts.
package chain

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Format names how identities are checked.
type Format string

const (
	// FormatNeo accepts Neo N3 base58 addresses and 0x-prefixed script hashes.
	FormatNeo Format = "neo"
	// FormatOpaque accepts any non-blank identity.
	FormatOpaque Format = "opaque"
)

// ParseFormat maps a configured name to a Format. Empty selects FormatNeo.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatNeo:
		return FormatNeo, nil
	case FormatOpaque:
		return FormatOpaque, nil
	default:
		return "", fmt.Errorf("unknown address format %q", s)
	}
}

// Normalize validates id under f and returns its canonical spelling. For
// FormatNeo a script hash is rewritten to its base58 address.
func (f Format) Normalize(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("empty address")
	}
	if f != FormatNeo {
		return id, nil
	}
	u, err := ParseAddress(id)
	if err != nil {
		return "", err
	}
	return address.Uint160ToString(u), nil
}

// ParseAddress decodes a base58 address or a 0x-prefixed little-endian
// script hash.
func ParseAddress(s string) (util.Uint160, error) {
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		u, err := util.Uint160DecodeStringLE(hex)
		if err != nil {
			return util.Uint160{}, fmt.Errorf("invalid script hash %q: %w", s, err)
		}
		return u, nil
	}
	u, err := address.StringToUint160(s)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return u, nil
}

// NewAddress returns the address of a freshly generated key.
func NewAddress() (string, error) {
	pk, err := keys.NewPrivateKey()
	if err != nil {
		return "", err
	}
	return pk.Address(), nil
}
