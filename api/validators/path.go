package validators

import (
	"regexp"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
)

var tenantPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ParseTenant validates a tenant schema name taken from the URL.
func ParseTenant(raw string) (string, error) {
	tenant := strings.ToLower(strings.TrimSpace(raw))
	if tenant == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "tenant schema required")
	}
	if !tenantPattern.MatchString(tenant) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid tenant schema").WithDetails(map[string]any{"tenant_schema": raw})
	}
	return tenant, nil
}

func ParsePathInt64(raw, field string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a positive integer").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}
