package middleware

import "context"

type tenantKey struct{}

// TenantFromContext returns the tenant schema resolved by TenantContext, or "".
func TenantFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return tenant
}

func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}
