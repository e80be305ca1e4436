package ledger

import (
	"time"

	"github.com/code-payments/code-escrow/pkg/config"
	"github.com/code-payments/code-escrow/pkg/config/env"
	"github.com/code-payments/code-escrow/pkg/config/memory"
	"github.com/code-payments/code-escrow/pkg/config/wrapper"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

const (
	envConfigPrefix = "LEDGER_"

	RentLamportsPerByteYearConfigEnvName = envConfigPrefix + "RENT_LAMPORTS_PER_BYTE_YEAR"
	defaultRentLamportsPerByteYear       = system.DefaultLamportsPerByteYear

	RentExemptionThresholdConfigEnvName = envConfigPrefix + "RENT_EXEMPTION_THRESHOLD"
	defaultRentExemptionThreshold       = system.DefaultExemptionThreshold

	RentBurnPercentConfigEnvName = envConfigPrefix + "RENT_BURN_PERCENT"
	defaultRentBurnPercent       = system.DefaultBurnPercent

	AccountLockStripesConfigEnvName = envConfigPrefix + "ACCOUNT_LOCK_STRIPES"
	defaultAccountLockStripes       = 1024

	MaxCommitAttemptsConfigEnvName = envConfigPrefix + "MAX_COMMIT_ATTEMPTS"
	defaultMaxCommitAttempts       = 3

	CommitBackoffConfigEnvName = envConfigPrefix + "COMMIT_BACKOFF"
	defaultCommitBackoff       = 5 * time.Millisecond

	MaxCommitBackoffConfigEnvName = envConfigPrefix + "MAX_COMMIT_BACKOFF"
	defaultMaxCommitBackoff       = 100 * time.Millisecond
)

type conf struct {
	rentLamportsPerByteYear config.Uint64
	rentExemptionThreshold  config.Float64
	rentBurnPercent         config.Uint64
	accountLockStripes      config.Uint64
	maxCommitAttempts       config.Uint64
	commitBackoff           config.Duration
	maxCommitBackoff        config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			rentLamportsPerByteYear: env.NewUint64Config(RentLamportsPerByteYearConfigEnvName, defaultRentLamportsPerByteYear),
			rentExemptionThreshold:  env.NewFloat64Config(RentExemptionThresholdConfigEnvName, defaultRentExemptionThreshold),
			rentBurnPercent:         env.NewUint64Config(RentBurnPercentConfigEnvName, defaultRentBurnPercent),
			accountLockStripes:      env.NewUint64Config(AccountLockStripesConfigEnvName, defaultAccountLockStripes),
			maxCommitAttempts:       env.NewUint64Config(MaxCommitAttemptsConfigEnvName, defaultMaxCommitAttempts),
			commitBackoff:           env.NewDurationConfig(CommitBackoffConfigEnvName, defaultCommitBackoff),
			maxCommitBackoff:        env.NewDurationConfig(MaxCommitBackoffConfigEnvName, defaultMaxCommitBackoff),
		}
	}
}

// TestOverrides are the ledger settings tests may pin.
type TestOverrides struct {
	Rent               system.Rent
	AccountLockStripes uint64
}

// WithTestOverrides returns configuration with fixed values, falling back to
// the defaults for anything left unset.
func WithTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		rent := overrides.Rent
		if rent.LamportsPerByteYear == 0 {
			rent = system.DefaultRent()
		}

		stripes := overrides.AccountLockStripes
		if stripes == 0 {
			stripes = defaultAccountLockStripes
		}

		return &conf{
			rentLamportsPerByteYear: wrapper.NewUint64Config(memory.NewConfig(rent.LamportsPerByteYear), defaultRentLamportsPerByteYear),
			rentExemptionThreshold:  wrapper.NewFloat64Config(memory.NewConfig(rent.ExemptionThreshold), defaultRentExemptionThreshold),
			rentBurnPercent:         wrapper.NewUint64Config(memory.NewConfig(uint64(rent.BurnPercent)), defaultRentBurnPercent),
			accountLockStripes:      wrapper.NewUint64Config(memory.NewConfig(stripes), defaultAccountLockStripes),
			maxCommitAttempts:       wrapper.NewUint64Config(memory.NewConfig(uint64(defaultMaxCommitAttempts)), defaultMaxCommitAttempts),
			commitBackoff:           wrapper.NewDurationConfig(memory.NewConfig(time.Millisecond), defaultCommitBackoff),
			maxCommitBackoff:        wrapper.NewDurationConfig(memory.NewConfig(10*time.Millisecond), defaultMaxCommitBackoff),
		}
	}
}
