package rerank

import (
	"fmt"
	"strings"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

// Provider names accepted by New. The set is closed.
const (
	ProviderNone   = "none"
	ProviderLocal  = "local"
	ProviderHosted = "hosted"
)

// FactoryConfig selects and configures a reranker.
type FactoryConfig struct {
	Provider string
	Hosted   HostedConfig
	Local    LocalConfig
}

// New constructs the configured reranker. Unknown providers fail here,
// never during a retrieve call.
func New(cfg FactoryConfig) (Reranker, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return &NoOp{}, nil
	case ProviderLocal:
		return NewLocal(cfg.Local)
	case ProviderHosted:
		return NewHosted(cfg.Hosted)
	default:
		return nil, derrors.New(derrors.ErrCodeUnknownProvider,
			fmt.Sprintf("unknown rerank provider %q (want %s, %s or %s)",
				cfg.Provider, ProviderNone, ProviderLocal, ProviderHosted), nil)
	}
}
