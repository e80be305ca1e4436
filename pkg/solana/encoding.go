package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana/shortvec"
)

// Legacy wire format:
//
//	transaction: compact array of 64 byte signatures, message
//	message:     3 header bytes, compact array of 32 byte account keys,
//	             32 byte recent blockhash, compact array of instructions
//	instruction: program index, compact array of account indexes,
//	             compact array of data

func (t Transaction) Marshal() []byte {
	var b bytes.Buffer

	writeLen(&b, len(t.Signatures))
	for _, s := range t.Signatures {
		b.Write(s[:])
	}
	b.Write(t.Message.Marshal())

	return b.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	d := newDecoder(b)

	t.Signatures = make([]Signature, d.readLen("signatures"))
	for i := range t.Signatures {
		d.readFull(t.Signatures[i][:], "signature")
	}
	if d.err != nil {
		return d.err
	}

	return t.Message.Unmarshal(d.remaining())
}

func (m Message) Marshal() []byte {
	var b bytes.Buffer

	b.Write([]byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly})

	writeLen(&b, len(m.Accounts))
	for _, a := range m.Accounts {
		b.Write(a)
	}

	b.Write(m.RecentBlockhash[:])

	writeLen(&b, len(m.Instructions))
	for _, ix := range m.Instructions {
		b.WriteByte(ix.ProgramIndex)
		writeCompactBytes(&b, ix.Accounts)
		writeCompactBytes(&b, ix.Data)
	}

	return b.Bytes()
}

// Unmarshal decodes a legacy message. Versioned messages, trailing bytes and
// indexes outside of the account list are rejected.
func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}

	// Versioned messages set the high bit of the first byte.
	if b[0]&0x80 != 0 {
		return errors.New("versioned messages not supported")
	}

	d := newDecoder(b)

	m.Header = Header{
		NumSignatures:     d.readByte("num signatures"),
		NumReadonlySigned: d.readByte("num readonly signatures"),
		NumReadOnly:       d.readByte("num readonly"),
	}

	m.Accounts = make([]ed25519.PublicKey, d.readLen("accounts"))
	for i := range m.Accounts {
		m.Accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		d.readFull(m.Accounts[i], "account")
	}

	d.readFull(m.RecentBlockhash[:], "recent blockhash")

	m.Instructions = make([]CompiledInstruction, d.readLen("instructions"))
	for i := range m.Instructions {
		ix := &m.Instructions[i]
		ix.ProgramIndex = d.readByte("program index")
		ix.Accounts = d.readCompactBytes("instruction accounts")
		ix.Data = d.readCompactBytes("instruction data")
	}

	if err := d.finish(); err != nil {
		return err
	}

	for i, ix := range m.Instructions {
		if int(ix.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("program index out of range: %d:%d", i, ix.ProgramIndex)
		}
		for _, index := range ix.Accounts {
			if int(index) >= len(m.Accounts) {
				return errors.Errorf("account index out of range: %d:%d", i, index)
			}
		}
	}

	return nil
}

// Every length written here is bounded by MaxTransactionSize, well within
// the compact-u16 range.
func writeLen(b *bytes.Buffer, n int) {
	_, _ = shortvec.EncodeLen(b, n)
}

func writeCompactBytes(b *bytes.Buffer, v []byte) {
	writeLen(b, len(v))
	b.Write(v)
}

// decoder reads wire-format fields, keeping the first error so that a decode
// can be written as a straight sequence of reads.
type decoder struct {
	r   *bytes.Reader
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{r: bytes.NewReader(b)}
}

func (d *decoder) fail(err error, field string) {
	if d.err == nil {
		d.err = errors.Wrapf(err, "failed to read %s", field)
	}
}

func (d *decoder) readByte(field string) byte {
	if d.err != nil {
		return 0
	}

	v, err := d.r.ReadByte()
	if err != nil {
		d.fail(err, field)
	}
	return v
}

func (d *decoder) readFull(dst []byte, field string) {
	if d.err != nil {
		return
	}

	if _, err := io.ReadFull(d.r, dst); err != nil {
		d.fail(err, field)
	}
}

// readLen reads a compact-u16 length. Lengths larger than the unread input
// cannot be satisfied and fail before anything is allocated for them.
func (d *decoder) readLen(field string) int {
	if d.err != nil {
		return 0
	}

	n, err := shortvec.DecodeLen(d.r)
	if err != nil {
		d.fail(err, field+" length")
		return 0
	}
	if n > d.r.Len() {
		d.fail(io.ErrUnexpectedEOF, field)
		return 0
	}
	return n
}

func (d *decoder) readCompactBytes(field string) []byte {
	v := make([]byte, d.readLen(field))
	d.readFull(v, field)
	return v
}

func (d *decoder) remaining() []byte {
	rest := make([]byte, d.r.Len())
	_, _ = d.r.Read(rest)
	return rest
}

func (d *decoder) finish() error {
	if d.err == nil && d.r.Len() > 0 {
		d.err = errors.Errorf("%d trailing bytes", d.r.Len())
	}
	return d.err
}
