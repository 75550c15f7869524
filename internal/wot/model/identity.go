package model

// Identity is a declared identity: a public key bound to a unique identifier,
// signed by the key owner at a given block.
type Identity struct {
	Pubkey    string `json:"pubkey"`
	UID       string `json:"uid"`
	Buid      string `json:"buid"`
	Signature string `json:"signature"`

	// Materialized state, maintained by the chain context.
	Member     bool  `json:"member"`
	WasMember  bool  `json:"wasMember"`
	Revoked    bool  `json:"revoked"`
	Leaving    bool  `json:"leaving"`
	CurrentMSN int64 `json:"currentMSN"`
	WrittenOn  int64 `json:"writtenOn"`
}

// MembershipType distinguishes joining from leaving memberships.
type MembershipType string

const (
	MembershipIn  MembershipType = "IN"
	MembershipOut MembershipType = "OUT"
)

// Membership is a membership document written into a block: a member joining,
// renewing (active) or leaving.
type Membership struct {
	Pubkey      string         `json:"pubkey"`
	Type        MembershipType `json:"type"`
	UID         string         `json:"uid"`
	Buid        string         `json:"buid"`
	Signature   string         `json:"signature"`
	BlockNumber int64          `json:"blockNumber"`
	BlockHash   string         `json:"blockHash"`
	// WrittenOn is the number of the block that carried the document.
	WrittenOn int64 `json:"writtenOn"`
}

// Revocation cancels an identity.
type Revocation struct {
	Pubkey    string `json:"pubkey"`
	Signature string `json:"signature"`
}

// Certification is an assertion of trust from one identity to another,
// written at a given block.
type Certification struct {
	From        string `json:"from"`
	To          string `json:"to"`
	BlockNumber int64  `json:"blockNumber"`
	Signature   string `json:"signature"`
	// Timestamp is the median time of the block the certification was
	// written into, used for expiry computations.
	Timestamp int64 `json:"timestamp"`
	WrittenOn int64 `json:"writtenOn"`
	Expired   bool  `json:"expired"`
}

// Link is the WoT edge materialized from a written certification.
type Link struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Timestamp int64  `json:"timestamp"`
	WrittenOn int64  `json:"writtenOn"`
	Obsolete  bool   `json:"obsolete"`
}
