package raffle

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// prng is a ChaCha20 keystream keyed by the oracle randomness with a zero
// nonce. The same seed yields the same sequence everywhere.
type prng struct {
	cipher *chacha20.Cipher
	buf    [8]byte
}

func newPRNG(seed Seed) *prng {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// key and nonce sizes are fixed by the types above
		panic(err)
	}
	return &prng{cipher: c}
}

func (p *prng) uint64() uint64 {
	var zero [8]byte
	p.cipher.XORKeyStream(p.buf[:], zero[:])
	return binary.LittleEndian.Uint64(p.buf[:])
}

// between returns a uniform value in [0, upper] using rejection sampling.
func (p *prng) between(upper uint32) uint32 {
	span := uint64(upper) + 1
	threshold := -span % span
	for {
		v := p.uint64()
		if v >= threshold {
			return uint32(v % span)
		}
	}
}

// Pick draws m distinct ticket indices out of [0, n) with a partial
// Fisher-Yates shuffle over a virtual array v[i] = i. Only displaced slots
// are kept in swap, so memory is O(m) regardless of n.
func Pick(seed Seed, n, m uint32) ([]uint32, error) {
	if m > n {
		return nil, ErrTooManyWinners
	}
	rng := newPRNG(seed)
	swap := make(map[uint32]uint32, m)
	at := func(i uint32) uint32 {
		if v, ok := swap[i]; ok {
			return v
		}
		return i
	}

	winners := make([]uint32, 0, m)
	for k := uint32(0); k < m; k++ {
		upper := n - 1 - k
		j := rng.between(upper)
		winners = append(winners, at(j))
		swap[j] = at(upper)
	}
	return winners, nil
}
