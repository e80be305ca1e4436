package escrow

import (
	"github.com/code-payments/code-escrow/pkg/ledger"
)

// closeEscrowAccount moves every lamport held by the escrow record into
// destination and zeroes the record's data. Closing an already closed record
// is a no-op. The refunded amount is returned.
func closeEscrowAccount(destination, escrowAccount *ledger.AccountInfo) (uint64, error) {
	refund := escrowAccount.Lamports

	total := destination.Lamports + refund
	if total < destination.Lamports {
		return 0, ErrAmountOverflow
	}

	destination.Lamports = total
	escrowAccount.Lamports = 0

	for i := range escrowAccount.Data {
		escrowAccount.Data[i] = 0
	}

	return refund, nil
}
