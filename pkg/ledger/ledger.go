package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	pgutil "github.com/code-payments/code-escrow/pkg/database/postgres"
	"github.com/code-payments/code-escrow/pkg/ledger/account"
	"github.com/code-payments/code-escrow/pkg/metrics"
	"github.com/code-payments/code-escrow/pkg/retry"
	"github.com/code-payments/code-escrow/pkg/retry/backoff"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
	sync_util "github.com/code-payments/code-escrow/pkg/sync"
)

const (
	metricsStructName = "ledger"

	transactionProcessedEventName = "LedgerTransactionProcessed"
	transactionDurationMetricName = "Ledger.TransactionDuration"
)

var (
	ErrAccountNotFound        = errors.New("ledger account not found")
	ErrProgramAlreadyDeployed = errors.New("program already deployed")
)

// Ledger is an in-process execution environment for programs. Transactions are
// executed atomically against a working set of accounts and committed to the
// underlying account.Store only when every instruction succeeds.
type Ledger struct {
	log   *logrus.Entry
	conf  *conf
	store account.Store
	locks *sync_util.StripedLock

	programsMu sync.RWMutex
	programs   map[string]Program
}

// New returns a Ledger backed by store, with the native system and token
// programs deployed and the rent sysvar populated.
func New(ctx context.Context, store account.Store, configProvider ConfigProvider) (*Ledger, error) {
	conf := configProvider()

	l := &Ledger{
		log:      logrus.StandardLogger().WithField("type", "ledger/ledger"),
		conf:     conf,
		store:    store,
		locks:    sync_util.NewStripedLock(uint(conf.accountLockStripes.Get(ctx))),
		programs: make(map[string]Program),
	}

	if err := l.Deploy(ctx, system.SystemAccount, newSystemProgram()); err != nil {
		return nil, errors.Wrap(err, "error deploying system program")
	}
	if err := l.Deploy(ctx, token.ProgramKey, newTokenProgram()); err != nil {
		return nil, errors.Wrap(err, "error deploying token program")
	}

	if err := l.initializeRent(ctx); err != nil {
		return nil, errors.Wrap(err, "error initializing rent sysvar")
	}

	return l, nil
}

// Deploy registers program under programID and creates its executable account
// if it does not already exist.
func (l *Ledger) Deploy(ctx context.Context, programID ed25519.PublicKey, program Program) error {
	if len(programID) != ed25519.PublicKeySize {
		return errors.New("invalid program id")
	}

	address := base58.Encode(programID)
	if l.getProgram(programID) != nil {
		return ErrProgramAlreadyDeployed
	}

	err := l.update(ctx, programID, func(acc *Account) error {
		if acc.Executable {
			return nil
		}
		if acc.Lamports > 0 || len(acc.Data) > 0 {
			return errors.Errorf("account %s exists and is not a program", address)
		}

		acc.Owner = NativeLoader
		acc.Lamports = 1
		acc.Executable = true
		return nil
	})
	if err != nil {
		return err
	}

	l.programsMu.Lock()
	defer l.programsMu.Unlock()

	if _, ok := l.programs[address]; ok {
		return ErrProgramAlreadyDeployed
	}
	l.programs[address] = program

	l.log.WithField("program", address).Debug("program deployed")
	return nil
}

// Submit executes a signed transaction. Either every instruction succeeds and
// all account changes are committed, or nothing is written and a
// *solana.TransactionError describing the failure is returned.
func (l *Ledger) Submit(ctx context.Context, txn *solana.Transaction) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Submit")
	defer tracer.End()

	start := time.Now()

	err := l.submit(ctx, txn)

	signature := base58.Encode(txn.Signature())
	tracer.AddAttribute("signature", signature)

	log := l.log.WithFields(logrus.Fields{
		"method":    "Submit",
		"signature": signature,
	})

	eventKvs := map[string]interface{}{
		"signature":    signature,
		"instructions": len(txn.Message.Instructions),
		"success":      err == nil,
	}

	var txErr *solana.TransactionError
	if errors.As(err, &txErr) {
		eventKvs["error"] = string(txErr.ErrorKey())
		if status, err := txErr.JSONString(); err == nil {
			eventKvs["status"] = status
		}
		if ie := txErr.InstructionError(); ie != nil {
			eventKvs["instruction_index"] = ie.Index
			eventKvs["instruction_error"] = string(ie.ErrorKey())
		}
	}

	if err != nil {
		log.WithError(err).Info("transaction failed")
		tracer.OnError(err)
	} else {
		log.Debug("transaction processed")
	}

	metrics.RecordEvent(ctx, transactionProcessedEventName, eventKvs)
	metrics.RecordDuration(ctx, transactionDurationMetricName, time.Since(start))

	return err
}

// SubmitRaw decodes a wire-format transaction and submits it. Transactions
// that are oversized, cannot be decoded or carry no signatures fail with
// SanitizeFailure.
func (l *Ledger) SubmitRaw(ctx context.Context, raw []byte) error {
	if len(raw) > solana.MaxTransactionSize {
		l.log.WithField("size", len(raw)).Debug("transaction exceeds max size")
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	var txn solana.Transaction
	if err := txn.Unmarshal(raw); err != nil {
		l.log.WithError(err).Debug("failed to decode transaction")
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if len(txn.Signatures) == 0 {
		l.log.Debug("transaction has no signatures")
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	return l.Submit(ctx, &txn)
}

func (l *Ledger) submit(ctx context.Context, txn *solana.Transaction) error {
	if err := txn.Message.Sanitize(); err != nil {
		l.log.WithError(err).Debug("message failed sanitization")
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	if err := txn.VerifySignatures(); err != nil {
		l.log.WithError(err).Debug("signature verification failed")
		return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	keys := make([][]byte, len(txn.Message.Accounts))
	for i, key := range txn.Message.Accounts {
		keys[i] = key
	}
	unlock := l.locks.LockKeys(keys...)
	defer unlock()

	return l.retryCommit(ctx, func() error {
		return l.execute(ctx, txn)
	})
}

func (l *Ledger) execute(ctx context.Context, txn *solana.Transaction) error {
	ws, err := l.loadWorkingSet(ctx, txn.Message.Accounts)
	if err != nil {
		return err
	}

	for i, compiled := range txn.Message.Instructions {
		programID := txn.Message.Accounts[compiled.ProgramIndex]
		if !ws.exists(programID) {
			return solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
		}
		if !ws.get(programID).Executable || l.getProgram(programID) == nil {
			return solana.NewTransactionError(solana.TransactionErrorInvalidProgramForExecution)
		}

		ix, err := txn.Message.DecompileInstruction(i)
		if err != nil {
			return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
		}

		infos := make([]*AccountInfo, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			infos[j] = &AccountInfo{
				Account:    ws.get(meta.PublicKey),
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
			}
		}

		e := &executor{ledger: l}
		if err := e.process(ctx, ix.Program, infos, ix.Data); err != nil {
			return solana.TransactionErrorFromInstructionError(solana.NewInstructionError(i, err))
		}
	}

	return ws.commit(ctx, l.store)
}

// GetAccount returns the committed state of an account.
func (l *Ledger) GetAccount(ctx context.Context, publicKey ed25519.PublicKey) (*Account, error) {
	record, err := l.store.Get(ctx, base58.Encode(publicKey))
	if err == account.ErrAccountNotFound {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}

	return fromRecord(record)
}

// GetProgramAccounts returns every committed account owned by program.
func (l *Ledger) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*Account, error) {
	records, err := l.store.GetAllByOwner(ctx, base58.Encode(program))
	if err == account.ErrAccountNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	res := make([]*Account, len(records))
	for i, record := range records {
		res[i], err = fromRecord(record)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// GetBalance returns the lamport balance of an account, which is zero for
// accounts that do not exist.
func (l *Ledger) GetBalance(ctx context.Context, publicKey ed25519.PublicKey) (uint64, error) {
	acc, err := l.GetAccount(ctx, publicKey)
	if err == ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

// Airdrop credits lamports to an address, creating a system account if needed.
func (l *Ledger) Airdrop(ctx context.Context, publicKey ed25519.PublicKey, lamports uint64) error {
	return l.update(ctx, publicKey, func(acc *Account) error {
		if acc.Lamports+lamports < acc.Lamports {
			return errors.New("lamport overflow")
		}
		acc.Lamports += lamports
		return nil
	})
}

// SetAccount overwrites the state of an account outside of any transaction.
// It is intended for genesis setup and tests.
func (l *Ledger) SetAccount(ctx context.Context, acc *Account) error {
	if acc.Executable {
		return errors.New("program accounts must be deployed")
	}

	if len(acc.PublicKey) != ed25519.PublicKeySize || len(acc.Owner) != ed25519.PublicKeySize {
		return errors.New("invalid account keys")
	}

	return l.update(ctx, acc.PublicKey, func(existing *Account) error {
		if existing.Executable {
			return errors.New("cannot overwrite a program account")
		}

		*existing = *acc.Clone()
		return nil
	})
}

// Rent returns the rent parameters published in the rent sysvar.
func (l *Ledger) Rent(ctx context.Context) (system.Rent, error) {
	var rent system.Rent

	acc, err := l.GetAccount(ctx, system.RentSysVar)
	if err != nil {
		return rent, errors.Wrap(err, "error getting rent sysvar")
	}

	if err := rent.Unmarshal(acc.Data); err != nil {
		return rent, err
	}
	return rent, nil
}

func (l *Ledger) initializeRent(ctx context.Context) error {
	rent := system.Rent{
		LamportsPerByteYear: l.conf.rentLamportsPerByteYear.Get(ctx),
		ExemptionThreshold:  l.conf.rentExemptionThreshold.Get(ctx),
		BurnPercent:         uint8(l.conf.rentBurnPercent.Get(ctx)),
	}

	return l.update(ctx, system.RentSysVar, func(acc *Account) error {
		data := rent.Marshal()
		if bytes.Equal(acc.Data, data) && acc.IsOwnedBy(system.SysvarOwner) {
			return nil
		}

		acc.Owner = system.SysvarOwner
		acc.Data = data
		acc.Lamports = rent.MinimumBalance(len(data))
		return nil
	})
}

func (l *Ledger) update(ctx context.Context, publicKey ed25519.PublicKey, fn func(acc *Account) error) error {
	unlock := l.locks.LockKeys(publicKey)
	defer unlock()

	return l.retryCommit(ctx, func() error {
		ws, err := l.loadWorkingSet(ctx, []ed25519.PublicKey{publicKey})
		if err != nil {
			return err
		}

		if err := fn(ws.get(publicKey)); err != nil {
			return err
		}

		return ws.commit(ctx, l.store)
	})
}

// retryCommit re-runs action while its commit loses a version race against a
// writer outside this process, backing off between attempts.
func (l *Ledger) retryCommit(ctx context.Context, action retry.Action) error {
	attempts, err := retry.Retry(
		action,
		retry.RetriableWhen(isRetriableCommitError),
		retry.Limit(uint(l.conf.maxCommitAttempts.Get(ctx))),
		retry.BackoffWithJitter(
			ctx,
			backoff.BinaryExponential(l.conf.commitBackoff.Get(ctx)),
			l.conf.maxCommitBackoff.Get(ctx),
			0.2,
		),
	)
	if attempts > 1 {
		l.log.WithFields(logrus.Fields{
			"attempts": attempts,
			"success":  err == nil,
		}).Debug("commit retried after version conflict")
	}
	return err
}

func (l *Ledger) getProgram(programID ed25519.PublicKey) Program {
	l.programsMu.RLock()
	defer l.programsMu.RUnlock()

	return l.programs[base58.Encode(programID)]
}

func isRetriableCommitError(err error) bool {
	return errors.Is(err, account.ErrStaleVersion) || pgutil.IsSerializationFailure(err)
}
