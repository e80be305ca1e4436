package escrow

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/metrics"
)

const (
	metricsStructName = "escrow.program"

	escrowInitializedEventName = "EscrowInitialized"
	escrowExchangedEventName   = "EscrowExchanged"
)

func recordEscrowInitializedEvent(ctx context.Context, escrow, initializer ed25519.PublicKey, expectedAmount uint64) {
	metrics.RecordEvent(ctx, escrowInitializedEventName, map[string]interface{}{
		"escrow":          base58.Encode(escrow),
		"initializer":     base58.Encode(initializer),
		"expected_amount": expectedAmount,
	})
}

func recordEscrowExchangedEvent(ctx context.Context, escrow, taker ed25519.PublicKey, amountX, amountY uint64) {
	metrics.RecordEvent(ctx, escrowExchangedEventName, map[string]interface{}{
		"escrow":   base58.Encode(escrow),
		"taker":    base58.Encode(taker),
		"amount_x": amountX,
		"amount_y": amountY,
	})
}
