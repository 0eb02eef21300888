package raffle

import (
	"fmt"
	"strings"
)

// Identity is an account address on the host chain. The engine treats it as
// opaque; address validation happens at the transport boundary.
type Identity string

// AssetKind discriminates the Asset union.
type AssetKind string

const (
	// AssetCoin is a native fungible coin.
	AssetCoin AssetKind = "coin"
	// AssetToken is a contract-issued fungible token.
	AssetToken AssetKind = "token"
	// AssetNFT is a single non-fungible token.
	AssetNFT AssetKind = "nft"
)

// Coin is an amount of a native denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount Amount `json:"amount"`
}

// NewCoin builds a coin from a uint64 amount.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: NewAmount(amount)}
}

func (c Coin) Equal(o Coin) bool {
	return c.Denom == o.Denom && c.Amount.Equal(o.Amount)
}

func (c Coin) String() string {
	return c.Amount.String() + c.Denom
}

// Asset is a closed union over the supported asset kinds. Only the fields
// belonging to Kind are meaningful.
type Asset struct {
	Kind AssetKind `json:"kind"`

	// AssetCoin
	Denom string `json:"denom,omitempty"`
	// AssetToken contract or AssetNFT collection
	Address string `json:"address,omitempty"`
	// AssetNFT
	TokenID string `json:"token_id,omitempty"`
	// AssetCoin and AssetToken
	Amount Amount `json:"amount"`
}

// CoinAsset wraps a native coin.
func CoinAsset(c Coin) Asset {
	return Asset{Kind: AssetCoin, Denom: c.Denom, Amount: c.Amount}
}

// TokenAsset is an amount of a fungible token contract.
func TokenAsset(address string, amount Amount) Asset {
	return Asset{Kind: AssetToken, Address: address, Amount: amount}
}

// NFTAsset is a single token of a collection.
func NFTAsset(collection, tokenID string) Asset {
	return Asset{Kind: AssetNFT, Address: collection, TokenID: tokenID}
}

// Validate checks the fields required by the asset kind.
func (a Asset) Validate() error {
	switch a.Kind {
	case AssetCoin:
		if strings.TrimSpace(a.Denom) == "" || a.Amount.IsZero() {
			return fmt.Errorf("%w: coin needs denom and positive amount", ErrInvalidAsset)
		}
	case AssetToken:
		if strings.TrimSpace(a.Address) == "" || a.Amount.IsZero() {
			return fmt.Errorf("%w: token needs address and positive amount", ErrInvalidAsset)
		}
	case AssetNFT:
		if strings.TrimSpace(a.Address) == "" || strings.TrimSpace(a.TokenID) == "" {
			return fmt.Errorf("%w: nft needs collection and token id", ErrInvalidAsset)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAsset, a.Kind)
	}
	return nil
}

// key identifies the asset for duplicate detection.
func (a Asset) key() string {
	switch a.Kind {
	case AssetCoin:
		return "coin/" + a.Denom
	case AssetToken:
		return "token/" + a.Address
	default:
		return "nft/" + a.Address + "/" + a.TokenID
	}
}

// Matches reports whether the asset is issued under the given denom, token
// contract or collection address.
func (a Asset) Matches(token string) bool {
	switch a.Kind {
	case AssetCoin:
		return a.Denom == token
	default:
		return a.Address == token
	}
}

func (a Asset) String() string {
	switch a.Kind {
	case AssetCoin:
		return a.Amount.String() + a.Denom
	case AssetToken:
		return a.Amount.String() + " " + a.Address
	case AssetNFT:
		return a.Address + "#" + a.TokenID
	default:
		return string(a.Kind)
	}
}

func allUnique(assets []Asset) bool {
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		k := a.key()
		if _, ok := seen[k]; ok {
			return false
		}
		seen[k] = struct{}{}
	}
	return true
}

// Transfer is an instruction for the host ledger. An empty From means the
// engine's own escrow account.
type Transfer struct {
	From  Identity `json:"from,omitempty"`
	To    Identity `json:"to"`
	Asset Asset    `json:"asset"`
}
