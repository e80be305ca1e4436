package escrow

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/metrics"
)

// Program is the escrow program. It is deployed to a ledger.Ledger under a
// program ID of the caller's choosing.
type Program struct {
	log  *logrus.Entry
	conf *conf
}

func NewProgram(configProvider ConfigProvider) *Program {
	return &Program{
		log:  logrus.StandardLogger().WithField("type", "escrow/program"),
		conf: configProvider(),
	}
}

// Process implements ledger.Program.Process
func (p *Program) Process(ctx context.Context, invoker ledger.Invoker, programID ed25519.PublicKey, accounts []*ledger.AccountInfo, data []byte) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Process")
	defer tracer.End()

	err := p.process(ctx, invoker, programID, accounts, data)
	if err != nil {
		tracer.OnError(err)
	}
	return err
}

func (p *Program) process(ctx context.Context, invoker ledger.Invoker, programID ed25519.PublicKey, accounts []*ledger.AccountInfo, data []byte) error {
	var ix Instruction
	if err := ix.Unmarshal(data); err != nil {
		return err
	}

	log := p.log.WithFields(logrus.Fields{
		"program": base58.Encode(programID),
		"command": ix.Command.String(),
		"amount":  ix.Amount,
	})

	switch ix.Command {
	case CommandInitEscrow:
		log.Debug("Instruction: Init Escrow")
		return p.processInitEscrow(ctx, log, invoker, programID, accounts, ix.Amount)
	case CommandExchange:
		log.Debug("Instruction: Exchange Escrow")
		return p.processExchange(ctx, log, invoker, programID, accounts, ix.Amount)
	}

	return ErrInvalidInstruction
}
