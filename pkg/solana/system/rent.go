package system

import (
	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana/binary"
)

const (
	// RentSize is the serialized size of the Rent sysvar.
	RentSize = 8 + 8 + 1

	// AccountStorageOverhead is the number of bytes each account is charged
	// for on top of its data.
	//
	// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L34
	AccountStorageOverhead = 128

	DefaultLamportsPerByteYear = 1_000_000_000 / 100 * 365 / (1024 * 1024)
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50
)

var ErrInvalidRentSize = errors.New("invalid rent account size")

// Rent mirrors the Rent sysvar.
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L12
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent returns the cluster default rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance is the minimum lamports an account with dataLen bytes must
// hold to be rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	bytes := uint64(AccountStorageOverhead + dataLen)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports covers the minimum balance for dataLen.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}

func (r Rent) Marshal() []byte {
	res := make([]byte, RentSize)

	var offset int
	binary.PutUint64(res[offset:], r.LamportsPerByteYear, &offset)
	binary.PutFloat64(res[offset:], r.ExemptionThreshold, &offset)
	binary.PutUint8(res[offset:], r.BurnPercent, &offset)

	return res
}

func (r *Rent) Unmarshal(data []byte) error {
	if len(data) != RentSize {
		return ErrInvalidRentSize
	}

	var offset int
	binary.GetUint64(data[offset:], &r.LamportsPerByteYear, &offset)
	binary.GetFloat64(data[offset:], &r.ExemptionThreshold, &offset)
	binary.GetUint8(data[offset:], &r.BurnPercent, &offset)

	return nil
}
