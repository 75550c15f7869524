package model

import "github.com/go-playground/validator/v10"

// Parameters are the currency-level consensus parameters. They are persisted
// from the root block and loaded back on startup.
type Parameters struct {
	Currency string `json:"currency" validate:"required"`
	// ForkSize is the maximum rewind depth at which a side block is still
	// admitted.
	ForkSize int64 `json:"forksize" validate:"gt=0"`
	// AvgGenTime is the target number of seconds between blocks.
	AvgGenTime int64 `json:"avgGenTime" validate:"gt=0"`
	// MSValidity is the lifetime of a membership in seconds.
	MSValidity int64 `json:"msValidity" validate:"gt=0"`
	// SigValidity is the lifetime of a certification in seconds.
	SigValidity int64 `json:"sigValidity" validate:"gt=0"`
	// DT is the number of seconds between universal dividend emissions.
	DT int64 `json:"dt" validate:"gt=0"`
	// UD0 is the amount of the first universal dividend.
	UD0 int64 `json:"ud0" validate:"gte=0"`
	// PowZeroMin is the floor proof-of-work difficulty.
	PowZeroMin int64 `json:"powZeroMin" validate:"gte=0"`
	// PowDelay throttles self-issued blocks, in seconds.
	PowDelay int64 `json:"powDelay" validate:"gte=0"`
	// Participate enables proof-of-work generation.
	Participate bool `json:"participate"`
	// SelfPubkey is the node's own key, empty when the node has none.
	SelfPubkey string `json:"selfPubkey,omitempty"`
}

// DefaultParameters returns the parameter set used when no root block has
// been persisted yet.
func DefaultParameters(currency string) Parameters {
	return Parameters{
		Currency:    currency,
		ForkSize:    100,
		AvgGenTime:  300,
		MSValidity:  31557600,
		SigValidity: 31557600,
		DT:          86400,
		UD0:         100,
		PowZeroMin:  3,
		PowDelay:    0,
	}
}

// Validate checks the parameter ranges.
func (p Parameters) Validate() error {
	return validator.New().Struct(p)
}
