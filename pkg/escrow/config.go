package escrow

import (
	"github.com/code-payments/code-escrow/pkg/config"
	"github.com/code-payments/code-escrow/pkg/config/env"
	"github.com/code-payments/code-escrow/pkg/config/memory"
	"github.com/code-payments/code-escrow/pkg/config/wrapper"
)

const (
	envConfigPrefix = "ESCROW_PROGRAM_"

	CheckCustodyOwnerConfigEnvName = envConfigPrefix + "CHECK_CUSTODY_OWNER"
	defaultCheckCustodyOwner       = false
)

type conf struct {
	checkCustodyOwner config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			checkCustodyOwner: env.NewBoolConfig(CheckCustodyOwnerConfigEnvName, defaultCheckCustodyOwner),
		}
	}
}

type testOverrides struct {
	checkCustodyOwner bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			checkCustodyOwner: wrapper.NewBoolConfig(memory.NewConfig(overrides.checkCustodyOwner), defaultCheckCustodyOwner),
		}
	}
}
