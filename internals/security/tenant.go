package security

import (
	"sentinel/pkg/apperror"

	"github.com/google/uuid"
)

// TenantOwned is implemented by every resource that belongs to exactly one tenant.
type TenantOwned interface {
	OwnerTenantID() uuid.UUID
}

// ValidateTenantOwnership reports whether the requesting tenant owns the resource.
func ValidateTenantOwnership(resourceTenantID, requestingTenantID uuid.UUID) bool {
	return resourceTenantID == requestingTenantID
}

// FilterByTenant keeps the items owned by tenantID, preserving their order.
func FilterByTenant[T TenantOwned](items []T, tenantID uuid.UUID) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if ValidateTenantOwnership(it.OwnerTenantID(), tenantID) {
			out = append(out, it)
		}
	}
	return out
}

// RequireOwnership turns an ownership mismatch into a forbidden error.
func RequireOwnership(op string, resourceTenantID, requestingTenantID uuid.UUID) error {
	if ValidateTenantOwnership(resourceTenantID, requestingTenantID) {
		return nil
	}
	return &apperror.Error{
		Kind:    apperror.Forbidden,
		Op:      op,
		Message: "resource does not belong to tenant",
	}
}
