package execution

import "context"

// PaperProvider fills every child order at its reference price without
// touching any backend. Dry runs use it so the whole engine path runs
// end to end with zero capital at stake.
type PaperProvider struct {
	name string
}

// NewPaperProvider creates a paper-fill provider.
func NewPaperProvider(name string) *PaperProvider {
	return &PaperProvider{name: name}
}

// Name implements Provider.
func (p *PaperProvider) Name() string { return p.name }

// Submit implements Provider.
func (p *PaperProvider) Submit(ctx context.Context, req SubmitRequest) (*SubmitReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &SubmitReceipt{Price: req.RefPrice, Size: req.Size}, nil
}
