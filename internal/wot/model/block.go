// Package model defines domain models for the web-of-trust blockchain.
package model

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Block is a blockchain block, either on the canonical chain or on a side
// chain. MonetaryMass and UDTime are derived and assigned when the block is
// inserted on the main chain.
type Block struct {
	Number       int64  `json:"number"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previousHash"`
	Currency     string `json:"currency"`
	Issuer       string `json:"issuer"`
	Signature    string `json:"signature"`
	Nonce        int64  `json:"nonce"`
	Time         int64  `json:"time"`
	MedianTime   int64  `json:"medianTime"`
	PowMin       int64  `json:"powMin"`
	MembersCount int64  `json:"membersCount"`
	UnitBase     int64  `json:"unitbase"`
	Dividend     *int64 `json:"dividend,omitempty"`

	// Parameters is only carried by the root block.
	Parameters *Parameters `json:"parameters,omitempty"`

	Identities     []Identity      `json:"identities,omitempty"`
	Joiners        []Membership    `json:"joiners,omitempty"`
	Actives        []Membership    `json:"actives,omitempty"`
	Leavers        []Membership    `json:"leavers,omitempty"`
	Revoked        []Revocation    `json:"revoked,omitempty"`
	Excluded       []string        `json:"excluded,omitempty"`
	Certifications []Certification `json:"certifications,omitempty"`
	Transactions   []Transaction   `json:"transactions,omitempty"`

	Fork  bool `json:"fork"`
	Wrong bool `json:"wrong"`

	MonetaryMass int64 `json:"monetaryMass"`
	UDTime       int64 `json:"udTime"`
}

// HasDividend reports whether the block emits a universal dividend.
func (b *Block) HasDividend() bool {
	return b.Dividend != nil && *b.Dividend > 0
}

// FollowsBlock reports whether b is the immediate successor of prev.
func (b *Block) FollowsBlock(prev *Block) bool {
	if prev == nil {
		return b.Number == 0
	}
	return b.Number == prev.Number+1 && b.PreviousHash == prev.Hash
}

// ComputeHash derives the content hash of the block header as uppercase hex
// of the double-SHA256 of the raw serialization.
func (b *Block) ComputeHash() string {
	digest := chainhash.DoubleHashB([]byte(b.RawHeader()))
	return strings.ToUpper(hex.EncodeToString(digest))
}

// RawHeader serializes the fields sealed by the proof of work.
func (b *Block) RawHeader() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Number: %d\n", b.Number)
	fmt.Fprintf(&sb, "PreviousHash: %s\n", b.PreviousHash)
	fmt.Fprintf(&sb, "Currency: %s\n", b.Currency)
	fmt.Fprintf(&sb, "Issuer: %s\n", b.Issuer)
	fmt.Fprintf(&sb, "Nonce: %d\n", b.Nonce)
	fmt.Fprintf(&sb, "Time: %d\n", b.Time)
	fmt.Fprintf(&sb, "MedianTime: %d\n", b.MedianTime)
	fmt.Fprintf(&sb, "PoWMin: %d\n", b.PowMin)
	fmt.Fprintf(&sb, "MembersCount: %d\n", b.MembersCount)
	fmt.Fprintf(&sb, "UnitBase: %d\n", b.UnitBase)
	if b.Dividend != nil {
		fmt.Fprintf(&sb, "UniversalDividend: %d\n", *b.Dividend)
	}
	fmt.Fprintf(&sb, "Transactions: %d\n", len(b.Transactions))
	fmt.Fprintf(&sb, "Certifications: %d\n", len(b.Certifications))
	return sb.String()
}

// Ref identifies a block by number and hash.
type Ref struct {
	Number int64  `json:"number"`
	Hash   string `json:"hash,omitempty"`
}

// Ref returns the (number, hash) reference of the block.
func (b *Block) Ref() Ref {
	return Ref{Number: b.Number, Hash: b.Hash}
}
