// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/estate-registry/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// Transactor runs fn inside a single database transaction carried by the context passed to fn
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// CompanyRepository defines operations for tenants
type CompanyRepository interface {
	Repository[models.Company, models.CompanyFilter]
	BySlug(ctx context.Context, slug string) (*models.Company, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	ByUIDPrefix(ctx context.Context, prefix string) (*models.Company, error)
	SlugsWithBase(ctx context.Context, base string) ([]string, error)
	// PrefixHolder returns the id of the company that holds or once held prefix, 0 when none did
	PrefixHolder(ctx context.Context, prefix string) (uint, error)
	// ReservePrefix records prefix in the company's prefix history; it returns ErrDuplicate when another company owns it
	ReservePrefix(ctx context.Context, companyID uint, prefix string, retired bool) error
	// UpdatePrefix reserves prefix, retires the previous one and stores it on the company
	UpdatePrefix(ctx context.Context, companyID uint, prefix string, override bool) error
	UpdateAPIKeyHash(ctx context.Context, companyID uint, hash string) error
	SetActive(ctx context.Context, companyID uint, active bool) error
	Delete(ctx context.Context, companyID uint) error
}

// CompanySequenceRepository defines the counter row operations used by the allocator
type CompanySequenceRepository interface {
	// LockForUpdate creates the (company, kind) row when missing and returns it locked until the transaction ends
	LockForUpdate(ctx context.Context, companyID uint, kind models.CounterKind) (*models.CompanySequence, error)
	// Get creates the row when missing and returns it without locking
	Get(ctx context.Context, companyID uint, kind models.CounterKind) (*models.CompanySequence, error)
	// CompareAndSwap moves last_value from expected to next; it returns ErrConcurrentUpdate when the row moved
	CompareAndSwap(ctx context.Context, sequenceID uint, expected, next int64) error
	// RaiseTo sets last_value to floor when floor is higher and returns the value before and after
	RaiseTo(ctx context.Context, companyID uint, kind models.CounterKind, floor int64) (before, after int64, err error)
	ByCompany(ctx context.Context, companyID uint) ([]*models.CompanySequence, error)
	SetLockTimeout(ctx context.Context, timeoutMillis int64) error
}

// SequencedMemberRepository is implemented by every repository whose rows carry a company sequence number
type SequencedMemberRepository interface {
	Kind() models.CounterKind
	MaxSequenceNumber(ctx context.Context, companyID uint) (int64, error)
	SequenceStats(ctx context.Context, companyID uint) (*models.SequenceStats, error)
	ListUnnumbered(ctx context.Context, companyID uint) ([]models.SequencedRef, error)
	ListMissingUID(ctx context.Context, companyID uint) ([]models.SequencedRef, error)
	AssignSequence(ctx context.Context, id uint, sequenceNumber int64, uid string) error
	AssignUID(ctx context.Context, id uint, uid string) error
	UIDTaken(ctx context.Context, uid string, exceptID uint) (bool, error)
}

// ClientUserRepository defines operations for clients
type ClientUserRepository interface {
	Repository[models.ClientUser, models.ClientUserFilter]
	SequencedMemberRepository
	ByCompanyAndID(ctx context.Context, companyID, id uint) (*models.ClientUser, error)
	ByCompanyAndEmail(ctx context.Context, companyID uint, email string) (*models.ClientUser, error)
}

// MarketerUserRepository defines operations for marketers
type MarketerUserRepository interface {
	Repository[models.MarketerUser, models.MarketerUserFilter]
	SequencedMemberRepository
	ByCompanyAndID(ctx context.Context, companyID, id uint) (*models.MarketerUser, error)
	ByCompanyAndEmail(ctx context.Context, companyID uint, email string) (*models.MarketerUser, error)
}

// AdminRepository defines operations for platform admins
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	TouchLastLogin(ctx context.Context, adminID uint) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByCompany(ctx context.Context, companyID uint, limit, offset int) ([]*models.AuditLog, error)
}
