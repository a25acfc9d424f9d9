package testing

import (
	"fmt"
	"math/rand"

	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCompany inserts an active company with the given prefix and its counters at zero
func (tf *TestFixtures) CreateTestCompany(name, prefix string) (*models.Company, error) {
	slug := fmt.Sprintf("%s-%d", businessflow.Slugify(name), rand.Intn(100000))
	company := &models.Company{
		UUID:           uuid.New(),
		Name:           name,
		Slug:           slug,
		UIDPrefix:      utils.ToPtr(prefix),
		PrefixOverride: utils.ToPtr(false),
		IsActive:       utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(company).Error; err != nil {
		return nil, fmt.Errorf("failed to create test company: %w", err)
	}
	history := &models.CompanyPrefixHistory{CompanyID: company.ID, Prefix: prefix}
	if err := tf.DB.DB.Create(history).Error; err != nil {
		return nil, fmt.Errorf("failed to record test company prefix: %w", err)
	}

	for _, kind := range models.CounterKinds() {
		seq := &models.CompanySequence{CompanyID: company.ID, Kind: kind}
		if err := tf.DB.DB.Create(seq).Error; err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", kind, err)
		}
	}

	return company, nil
}

// SetCounter moves a counter directly, bypassing the allocator
func (tf *TestFixtures) SetCounter(companyID uint, kind models.CounterKind, value int64) error {
	return tf.DB.DB.Model(&models.CompanySequence{}).
		Where("company_id = ? AND kind = ?", companyID, kind).
		Update("last_value", value).Error
}

// CreateLegacyClient inserts a client without a sequence number or UID, as rows from before numbering existed
func (tf *TestFixtures) CreateLegacyClient(companyID uint, sequenceNumber *int64) (*models.ClientUser, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	client := &models.ClientUser{
		UUID:                  uuid.New(),
		CompanyID:             companyID,
		FullName:              "Legacy Client",
		Email:                 fmt.Sprintf("legacy.%d@example.com", rand.Intn(1000000000)),
		PasswordHash:          utils.ToPtr(string(hashedPassword)),
		CompanySequenceNumber: sequenceNumber,
		IsActive:              utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(client).Error; err != nil {
		return nil, fmt.Errorf("failed to create legacy client: %w", err)
	}
	return client, nil
}

// CreateTestMarketer inserts a numbered marketer
func (tf *TestFixtures) CreateTestMarketer(companyID uint, sequenceNumber int64, uid string) (*models.MarketerUser, error) {
	marketer := &models.MarketerUser{
		UUID:                  uuid.New(),
		CompanyID:             companyID,
		FullName:              "Test Marketer",
		Email:                 fmt.Sprintf("marketer.%d@example.com", rand.Intn(1000000000)),
		CompanySequenceNumber: utils.ToPtr(sequenceNumber),
		CompanyUID:            utils.ToPtr(uid),
		IsActive:              utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(marketer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test marketer: %w", err)
	}
	return marketer, nil
}
