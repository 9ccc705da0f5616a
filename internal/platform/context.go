package platform

import "context"

type noRefreshKey struct{}

// WithoutRefresh marks ctx so that a 401 on requests made with it is
// returned as is instead of triggering a credential refresh.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRefreshKey{}, true)
}

// RefreshDisabled reports whether ctx was marked by WithoutRefresh.
func RefreshDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRefreshKey{}).(bool)
	return v
}
