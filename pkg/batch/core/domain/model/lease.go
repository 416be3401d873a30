package model

import (
	"fmt"
	"time"

	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
)

// LeaseStatus is the state of a tenant lease.
type LeaseStatus string

const (
	LeaseStatusActive   LeaseStatus = "ACTIVE"
	LeaseStatusReleased LeaseStatus = "RELEASED"
	LeaseStatusExpired  LeaseStatus = "EXPIRED"
)

// Lease is exclusive ownership of processing for one (tenant, lock kind).
type Lease struct {
	TenantID  string
	BatchID   string
	LockKind  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Status    LeaseStatus
	Holder    string
}

// NewLease builds an ACTIVE lease valid from now until now+ttl.
func NewLease(tenantID, batchID, lockKind, holder string, now time.Time, ttl time.Duration) *Lease {
	return &Lease{
		TenantID:  tenantID,
		BatchID:   batchID,
		LockKind:  lockKind,
		CreatedAt: now.UTC(),
		ExpiresAt: clock.ExpiresAt(now, ttl),
		Status:    LeaseStatusActive,
		Holder:    holder,
	}
}

// IsExpiredAt reports whether the lease no longer counts at now.
// An expired lease is absent whatever its status says.
func (l *Lease) IsExpiredAt(now time.Time) bool {
	return clock.IsExpired(l.ExpiresAt, now)
}

// String is used in log lines.
func (l *Lease) String() string {
	return fmt.Sprintf("lease{tenant=%s kind=%s batch=%s expires=%s status=%s}",
		l.TenantID, l.LockKind, l.BatchID, l.ExpiresAt.Format(time.RFC3339), l.Status)
}
