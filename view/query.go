package view

import (
	"context"

	"github.com/xdbsoft/potato/api"
)

// Query sends the compiled view of s and its parameters to the store. Store
// errors are returned as is.
func Query(ctx context.Context, store api.Store, s Spec) (api.ViewResult, error) {
	q := api.ViewQuery{
		Design: s.DesignDocument(),
		View:   s.name,
		Views: map[string]api.ViewDefinition{
			s.name: {
				Map:    s.MapFunction(),
				Reduce: s.ReduceFunction(),
			},
		},
		Params: s.Params(),
	}
	if s.opts.ListName != "" {
		q.List = s.opts.ListName
		q.Lists = map[string]string{s.opts.ListName: s.opts.ListSource}
	}
	return store.QueryView(ctx, q)
}
