package businessflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memberFlows struct {
	clients   ClientFlow
	marketers MarketerFlow
}

func newTestMemberFlows(f *registryFixture) memberFlows {
	alloc := newTestAllocator(f, defaultTestAllocationConfig)
	return memberFlows{
		clients:   NewClientFlow(f.clients, f.marketers, f.audits, alloc, bcrypt.MinCost, nil),
		marketers: NewMarketerFlow(f.marketers, f.audits, alloc, bcrypt.MinCost, nil),
	}
}

func TestRegisterClient_AssignsNextIdentifier(t *testing.T) {
	f := newRegistryFixture(true)
	id := f.companies.add("Lamba Property Limited", utils.ToPtr("LPL"), true)
	f.sequences.set(id, models.CounterKindClient, 4)
	flows := newTestMemberFlows(f)

	client, err := flows.clients.Register(context.Background(), id, &dto.RegisterClientRequest{
		FullName: " Jane Doe ",
		Email:    "Jane@Example.com",
		Password: utils.ToPtr("correct horse battery"),
	}, NewClientMetadata("10.0.0.2", "test"))
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", client.FullName)
	assert.Equal(t, "jane@example.com", client.Email)
	assert.Equal(t, int64(5), *client.CompanySequenceNumber)
	assert.Equal(t, "LPL-CLT005", *client.CompanyUID)

	stored := f.clients.all()
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*stored[0].PasswordHash), []byte("correct horse battery")))
	assert.Equal(t, []string{models.AuditActionClientRegistered}, f.audits.actions())
}

func TestRegisterClient_FailureDoesNotConsumeNumber(t *testing.T) {
	f := newRegistryFixture(true)
	id := f.companies.add("Acme", utils.ToPtr("ACM"), true)
	flows := newTestMemberFlows(f)
	ctx := context.Background()

	_, err := flows.clients.Register(ctx, id, &dto.RegisterClientRequest{FullName: "First", Email: "first@example.com"}, nil)
	require.NoError(t, err)

	_, err = flows.clients.Register(ctx, id, &dto.RegisterClientRequest{FullName: "Again", Email: "FIRST@example.com"}, nil)
	assert.True(t, IsMemberEmailExists(err))

	missingMarketer := uint(77)
	_, err = flows.clients.Register(ctx, id, &dto.RegisterClientRequest{FullName: "Second", Email: "second@example.com", MarketerID: &missingMarketer}, nil)
	assert.True(t, IsMarketerOfOtherCompany(err))

	assert.Equal(t, int64(1), f.sequences.value(id, models.CounterKindClient))

	next, err := flows.clients.Register(ctx, id, &dto.RegisterClientRequest{FullName: "Second", Email: "second@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ACM-CLT002", *next.CompanyUID)

	assert.Equal(t, []string{
		models.AuditActionClientRegistered,
		models.AuditActionClientFailed,
		models.AuditActionClientFailed,
		models.AuditActionClientRegistered,
	}, f.audits.actions())
}

func TestRegisterClient_LaggingCounterIsAConflict(t *testing.T) {
	f := newRegistryFixture(true)
	id := f.companies.add("Acme", utils.ToPtr("ACM"), true)
	seedClient(t, f, id, utils.ToPtr(int64(1)), "ACM-CLT001")
	flows := newTestMemberFlows(f)

	_, err := flows.clients.Register(context.Background(), id, &dto.RegisterClientRequest{FullName: "New", Email: "new@example.com"}, nil)
	require.Error(t, err)
	assert.True(t, IsMemberConflict(err))
	assert.Equal(t, "CLIENT_CONFLICT", BusinessCode(err))
	assert.Equal(t, int64(0), f.sequences.value(id, models.CounterKindClient))
}

func TestRegisterClient_Validation(t *testing.T) {
	f := newRegistryFixture(true)
	id := f.companies.add("Acme", utils.ToPtr("ACM"), true)
	flows := newTestMemberFlows(f)
	ctx := context.Background()

	_, err := flows.clients.Register(ctx, id, &dto.RegisterClientRequest{FullName: " ", Email: "a@example.com"}, nil)
	assert.True(t, IsMemberValidation(err))

	_, err = flows.clients.Register(ctx, id, &dto.RegisterClientRequest{FullName: "Name", Email: ""}, nil)
	assert.True(t, IsMemberValidation(err))

	_, err = flows.clients.Register(ctx, 0, &dto.RegisterClientRequest{FullName: "Name", Email: "a@example.com"}, nil)
	assert.True(t, IsInvalidTenant(err))
}

// countingAllocator records how often the wrapped allocator was asked for a number
type countingAllocator struct {
	SequenceAllocator
	mu    sync.Mutex
	calls int
}

func (c *countingAllocator) WithAllocation(ctx context.Context, companyID uint, kind models.CounterKind, fn func(context.Context, *Allocation) error) (*Allocation, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.SequenceAllocator.WithAllocation(ctx, companyID, kind, fn)
}

func TestRegisterMember_PasswordIsHashedBeforeAllocation(t *testing.T) {
	f := newRegistryFixture(true)
	id := f.companies.add("Acme", utils.ToPtr("ACM"), true)
	alloc := &countingAllocator{SequenceAllocator: newTestAllocator(f, defaultTestAllocationConfig)}
	clients := NewClientFlow(f.clients, f.marketers, f.audits, alloc, bcrypt.MinCost, nil)
	marketers := NewMarketerFlow(f.marketers, f.audits, alloc, bcrypt.MinCost, nil)
	ctx := context.Background()

	// bcrypt rejects passwords longer than 72 bytes
	tooLong := utils.ToPtr(strings.Repeat("x", 73))

	_, err := clients.Register(ctx, id, &dto.RegisterClientRequest{FullName: "Jane", Email: "jane@example.com", Password: tooLong}, nil)
	assert.Equal(t, "PASSWORD_HASH_FAILED", BusinessCode(err))
	_, err = marketers.Register(ctx, id, &dto.RegisterMarketerRequest{FullName: "Sam", Email: "sam@example.com", Password: tooLong}, nil)
	assert.Equal(t, "PASSWORD_HASH_FAILED", BusinessCode(err))

	assert.Zero(t, alloc.calls, "no counter row is touched when hashing fails")
	assert.Zero(t, f.sequences.lockCalls)
	assert.Equal(t, int64(0), f.sequences.value(id, models.CounterKindClient))

	client, err := clients.Register(ctx, id, &dto.RegisterClientRequest{FullName: "Jane", Email: "jane@example.com", Password: utils.ToPtr("long enough secret")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ACM-CLT001", *client.CompanyUID)
	assert.Equal(t, 1, alloc.calls)
}

func TestRegisterClient_WithMarketerOfSameCompany(t *testing.T) {
	f := newRegistryFixture(true)
	acme := f.companies.add("Acme", utils.ToPtr("ACM"), true)
	other := f.companies.add("Other Realty", utils.ToPtr("OR"), true)
	flows := newTestMemberFlows(f)
	ctx := context.Background()

	marketer, err := flows.marketers.Register(ctx, acme, &dto.RegisterMarketerRequest{FullName: "Mark", Email: "mark@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ACM-MKT001", *marketer.CompanyUID)

	client, err := flows.clients.Register(ctx, acme, &dto.RegisterClientRequest{FullName: "Cli", Email: "cli@example.com", MarketerID: &marketer.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, marketer.ID, *client.MarketerID)

	_, err = flows.clients.Register(ctx, other, &dto.RegisterClientRequest{FullName: "Cli", Email: "cli@example.com", MarketerID: &marketer.ID}, nil)
	assert.True(t, IsMarketerOfOtherCompany(err))

	list, err := flows.clients.List(ctx, acme, &dto.ListMembersRequest{MarketerID: &marketer.ID})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestRegisterClient_ConcurrentRegistrations(t *testing.T) {
	const workers = 20

	f := newRegistryFixture(true)
	id := f.companies.add("Lamba Property Limited", utils.ToPtr("LPL"), true)
	flows := newTestMemberFlows(f)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := flows.clients.Register(context.Background(), id, &dto.RegisterClientRequest{
				FullName: fmt.Sprintf("Client %d", i),
				Email:    fmt.Sprintf("client%d@example.com", i),
			}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := flows.clients.List(context.Background(), id, &dto.ListMembersRequest{PageRequest: dto.PageRequest{PageSize: 100}})
	require.NoError(t, err)
	require.Len(t, list.Items, workers)
	for i, c := range list.Items {
		assert.Equal(t, fmt.Sprintf("LPL-CLT%03d", i+1), *c.CompanyUID)
	}
	assert.Equal(t, int64(workers), f.sequences.value(id, models.CounterKindClient))
}

func TestGetMember_ScopedToCompany(t *testing.T) {
	f := newRegistryFixture(true)
	acme := f.companies.add("Acme", utils.ToPtr("ACM"), true)
	other := f.companies.add("Other Realty", utils.ToPtr("OR"), true)
	flows := newTestMemberFlows(f)
	ctx := context.Background()

	client, err := flows.clients.Register(ctx, acme, &dto.RegisterClientRequest{FullName: "Cli", Email: "cli@example.com"}, nil)
	require.NoError(t, err)
	marketer, err := flows.marketers.Register(ctx, acme, &dto.RegisterMarketerRequest{FullName: "Mark", Email: "mark@example.com"}, nil)
	require.NoError(t, err)

	got, err := flows.clients.Get(ctx, acme, client.ID)
	require.NoError(t, err)
	assert.Equal(t, client.CompanyUID, got.CompanyUID)

	_, err = flows.clients.Get(ctx, other, client.ID)
	assert.True(t, IsClientNotFound(err))

	_, err = flows.marketers.Get(ctx, other, marketer.ID)
	assert.True(t, IsMarketerNotFound(err))

	list, err := flows.marketers.List(ctx, acme, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Pagination.Total)
}
