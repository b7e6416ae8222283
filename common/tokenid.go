package common

import "fmt"

// TokenId uniquely identifies a managed ERC-20 twin across the system:
// the EVM chain it lives on plus its contract address. Native tokens use
// the zero address on their chain's id.
type TokenId struct {
	ChainId uint64
	Address EVMAddress
}

// NewTokenId builds a TokenId, the canonical constructor used everywhere a
// (chain, address) pair is turned into a map/set key.
func NewTokenId(chainId uint64, address EVMAddress) TokenId {
	return TokenId{ChainId: chainId, Address: address}
}

// IsNative reports whether this token id represents a chain's native asset.
func (t TokenId) IsNative() bool {
	return t.Address.IsNative()
}

func (t TokenId) String() string {
	return fmt.Sprintf("%d:%s", t.ChainId, t.Address.Hex())
}

// Less provides the BTree key order used when the orchestrator needs a
// stable iteration order across TokenIds (spec.md §5: "iterates in BTree
// key order").
func (t TokenId) Less(other TokenId) bool {
	if t.ChainId != other.ChainId {
		return t.ChainId < other.ChainId
	}
	return t.Address.Hex() < other.Address.Hex()
}
