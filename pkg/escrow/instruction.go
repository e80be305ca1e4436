package escrow

import (
	"github.com/code-payments/code-escrow/pkg/solana/binary"
)

// Command selects the escrow operation an instruction performs.
type Command uint8

const (
	// CommandInitEscrow records a new trade. The amount is the quantity of
	// asset Y the initializer expects to receive.
	CommandInitEscrow Command = iota

	// CommandExchange completes a trade. The amount is the quantity of asset X
	// the taker expects the custody account to hold.
	CommandExchange
)

const InstructionSize = 1 + 8

// Instruction is the decoded instruction payload: a one byte command tag
// followed by a little endian u64 amount.
type Instruction struct {
	Command Command
	Amount  uint64
}

func (c Command) String() string {
	switch c {
	case CommandInitEscrow:
		return "init_escrow"
	case CommandExchange:
		return "exchange"
	}
	return "unknown"
}

func (i *Instruction) Marshal() []byte {
	b := make([]byte, InstructionSize)

	var offset int
	binary.PutUint8(b, uint8(i.Command), &offset)
	binary.PutUint64(b[offset:], i.Amount, &offset)

	return b
}

// Unmarshal decodes exactly InstructionSize bytes. Any other length or an
// unknown command fails with ErrInvalidInstruction.
func (i *Instruction) Unmarshal(data []byte) error {
	if len(data) != InstructionSize {
		return ErrInvalidInstruction
	}

	var offset int
	var command uint8
	binary.GetUint8(data, &command, &offset)

	switch Command(command) {
	case CommandInitEscrow, CommandExchange:
	default:
		return ErrInvalidInstruction
	}

	i.Command = Command(command)
	binary.GetUint64(data[offset:], &i.Amount, &offset)
	return nil
}
