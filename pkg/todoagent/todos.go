package todoagent

import (
	"context"
	"errors"

	"github.com/harunnryd/todoagent/pkg/store"
)

// ListTodos opens the configured store, reads every todo and closes it again.
// No model is built.
func ListTodos(ctx context.Context, cfg Config, providers *ProviderRegistry) (_ []store.Record, err error) {
	if providers == nil {
		providers = DefaultProviderRegistry()
	}
	s, err := providers.BuildStore(ctx, cfg.Store.Driver, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, s.Close()) }()
	return s.SelectAll(ctx)
}
