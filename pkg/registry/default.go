package registry

import (
	"github.com/auditcore/auditcore/pkg/adapter"
	"github.com/auditcore/auditcore/pkg/llmclient"
)

// Default returns a Registry pre-populated with every adapter this module
// ships. llmClient may be nil; the AI-assisted adapter then reports itself
// NOT_INSTALLED rather than being omitted, so list_tools() still surfaces it.
func Default(llmClient llmclient.Client) *Registry {
	r := New()
	r.Register("slither", func() adapter.Adapter { return adapter.NewSlither() })
	r.Register("mythril", func() adapter.Adapter { return adapter.NewMythril() })
	r.Register("echidna", func() adapter.Adapter { return adapter.NewEchidna() })
	r.Register("certora", func() adapter.Adapter { return adapter.NewCertora() })
	r.Register("solhint", func() adapter.Adapter { return adapter.NewSolhint() })
	r.Register("auditgpt", func() adapter.Adapter { return adapter.NewAuditGPT(llmClient) })
	return r
}
