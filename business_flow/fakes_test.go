package businessflow

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/repository"
	"github.com/google/uuid"
)

// snapshotter is implemented by every fake that takes part in rollbacks
type snapshotter interface {
	snapshot() (restore func())
}

type fakeTxKey struct{}

// fakeTransactor runs one transaction at a time and restores every registered fake when fn fails.
// With serialize off, transactions run concurrently and nothing is rolled back.
type fakeTransactor struct {
	serialize bool
	mu        sync.Mutex
	stores    []snapshotter
}

func newFakeTransactor(serialize bool, stores ...snapshotter) *fakeTransactor {
	return &fakeTransactor{serialize: serialize, stores: stores}
}

func (t *fakeTransactor) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	txCtx := context.WithValue(ctx, fakeTxKey{}, true)
	if !t.serialize {
		return fn(txCtx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	restores := make([]func(), 0, len(t.stores))
	for _, s := range t.stores {
		restores = append(restores, s.snapshot())
	}
	if err := fn(txCtx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// fakeCompanyRepo

type fakeCompanyRepo struct {
	mu        sync.Mutex
	companies map[uint]*models.Company
	nextID    uint
	// prefix history: prefix -> owning company
	prefixes map[string]uint
}

func newFakeCompanyRepo() *fakeCompanyRepo {
	return &fakeCompanyRepo{
		companies: make(map[uint]*models.Company),
		prefixes:  make(map[string]uint),
	}
}

// add stores a company with a derived slug and returns its id
func (r *fakeCompanyRepo) add(name string, prefix *string, active bool) uint {
	c := &models.Company{
		UUID:      uuid.New(),
		Name:      name,
		Slug:      Slugify(name),
		UIDPrefix: prefix,
		IsActive:  &active,
	}
	_ = r.Save(context.Background(), c)
	return c.ID
}

func (r *fakeCompanyRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[uint]models.Company, len(r.companies))
	for id, c := range r.companies {
		saved[id] = *c
	}
	nextID := r.nextID
	prefixes := maps.Clone(r.prefixes)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.companies = make(map[uint]*models.Company, len(saved))
		for id, c := range saved {
			c := c
			r.companies[id] = &c
		}
		r.nextID = nextID
		r.prefixes = prefixes
	}
}

func (r *fakeCompanyRepo) find(match func(*models.Company) bool) *models.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.companies))
	for id := range r.companies {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		c := r.companies[uint(id)]
		if match(c) {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (r *fakeCompanyRepo) ByID(_ context.Context, id uint) (*models.Company, error) {
	return r.find(func(c *models.Company) bool { return c.ID == id }), nil
}

func (r *fakeCompanyRepo) ByFilter(_ context.Context, filter models.CompanyFilter, _ string, limit, offset int) ([]*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Company
	for _, c := range r.companies {
		if companyMatches(c, filter) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func companyMatches(c *models.Company, f models.CompanyFilter) bool {
	if f.ID != nil && c.ID != *f.ID {
		return false
	}
	if f.Name != nil && c.Name != *f.Name {
		return false
	}
	if f.Slug != nil && c.Slug != *f.Slug {
		return false
	}
	if f.IsActive != nil && c.Active() != *f.IsActive {
		return false
	}
	return true
}

func (r *fakeCompanyRepo) Save(_ context.Context, c *models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.companies {
		if other.Name == c.Name || other.Slug == c.Slug || (c.UIDPrefix != nil && other.Prefix() == *c.UIDPrefix) {
			return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicate)
		}
	}
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.companies[c.ID] = &cp
	return nil
}

func (r *fakeCompanyRepo) SaveBatch(ctx context.Context, cs []*models.Company) error {
	for _, c := range cs {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCompanyRepo) Count(ctx context.Context, filter models.CompanyFilter) (int64, error) {
	cs, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(cs)), nil
}

func (r *fakeCompanyRepo) Exists(ctx context.Context, filter models.CompanyFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeCompanyRepo) BySlug(_ context.Context, slug string) (*models.Company, error) {
	return r.find(func(c *models.Company) bool { return c.Slug == slug }), nil
}

func (r *fakeCompanyRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Company, error) {
	return r.find(func(c *models.Company) bool { return c.UUID == id }), nil
}

func (r *fakeCompanyRepo) ByUIDPrefix(_ context.Context, prefix string) (*models.Company, error) {
	return r.find(func(c *models.Company) bool { return c.Prefix() == prefix }), nil
}

func (r *fakeCompanyRepo) SlugsWithBase(_ context.Context, base string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.companies {
		if c.Slug == base || strings.HasPrefix(c.Slug, base+"-") {
			out = append(out, c.Slug)
		}
	}
	return out, nil
}

func (r *fakeCompanyRepo) update(id uint, fn func(*models.Company)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[id]
	if !ok {
		return fmt.Errorf("company %d not found", id)
	}
	fn(c)
	return nil
}

func (r *fakeCompanyRepo) PrefixHolder(ctx context.Context, prefix string) (uint, error) {
	r.mu.Lock()
	owner, ok := r.prefixes[prefix]
	r.mu.Unlock()
	if ok {
		return owner, nil
	}
	c, _ := r.ByUIDPrefix(ctx, prefix)
	if c == nil {
		return 0, nil
	}
	return c.ID, nil
}

func (r *fakeCompanyRepo) ReservePrefix(_ context.Context, companyID uint, prefix string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.prefixes[prefix]; ok && owner != companyID {
		return fmt.Errorf("prefix %q belongs to company %d: %w", prefix, owner, repository.ErrDuplicate)
	}
	r.prefixes[prefix] = companyID
	return nil
}

func (r *fakeCompanyRepo) UpdatePrefix(ctx context.Context, companyID uint, prefix string, override bool) error {
	r.mu.Lock()
	for id, other := range r.companies {
		if id != companyID && other.Prefix() == prefix {
			r.mu.Unlock()
			return fmt.Errorf("failed to update prefix: %w", repository.ErrDuplicate)
		}
	}
	r.mu.Unlock()
	if err := r.ReservePrefix(ctx, companyID, prefix, false); err != nil {
		return err
	}
	return r.update(companyID, func(c *models.Company) {
		c.UIDPrefix = &prefix
		c.PrefixOverride = &override
	})
}

func (r *fakeCompanyRepo) UpdateAPIKeyHash(_ context.Context, companyID uint, hash string) error {
	return r.update(companyID, func(c *models.Company) { c.APIKeyHash = &hash })
}

func (r *fakeCompanyRepo) SetActive(_ context.Context, companyID uint, active bool) error {
	return r.update(companyID, func(c *models.Company) { c.IsActive = &active })
}

func (r *fakeCompanyRepo) Delete(_ context.Context, companyID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.companies, companyID)
	maps.DeleteFunc(r.prefixes, func(_ string, owner uint) bool { return owner == companyID })
	return nil
}

// fakeSequenceRepo

type sequenceKey struct {
	companyID uint
	kind      models.CounterKind
}

type fakeSequenceRepo struct {
	mu     sync.Mutex
	rows   map[sequenceKey]*models.CompanySequence
	nextID uint

	// casFailures forces that many CompareAndSwap calls to report a conflict
	casFailures  int
	casCalls     int
	lockTimeouts []int64
	// lockFailures forces that many LockForUpdate calls to time out waiting for the row
	lockFailures int
	lockCalls    int
}

func newFakeSequenceRepo() *fakeSequenceRepo {
	return &fakeSequenceRepo{rows: make(map[sequenceKey]*models.CompanySequence)}
}

func (r *fakeSequenceRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[sequenceKey]models.CompanySequence, len(r.rows))
	for k, row := range r.rows {
		saved[k] = *row
	}
	nextID := r.nextID
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rows = make(map[sequenceKey]*models.CompanySequence, len(saved))
		for k, row := range saved {
			row := row
			r.rows[k] = &row
		}
		r.nextID = nextID
	}
}

// set places a counter at value, creating it when missing
func (r *fakeSequenceRepo) set(companyID uint, kind models.CounterKind, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.row(companyID, kind).LastValue = value
}

func (r *fakeSequenceRepo) value(companyID uint, kind models.CounterKind) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[sequenceKey{companyID, kind}]; ok {
		return row.LastValue
	}
	return 0
}

// row must be called with mu held
func (r *fakeSequenceRepo) row(companyID uint, kind models.CounterKind) *models.CompanySequence {
	k := sequenceKey{companyID, kind}
	row, ok := r.rows[k]
	if !ok {
		r.nextID++
		row = &models.CompanySequence{ID: r.nextID, CompanyID: companyID, Kind: kind}
		r.rows[k] = row
	}
	return row
}

func (r *fakeSequenceRepo) LockForUpdate(ctx context.Context, companyID uint, kind models.CounterKind) (*models.CompanySequence, error) {
	r.mu.Lock()
	r.lockCalls++
	if r.lockFailures > 0 {
		r.lockFailures--
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to load sequence for company %d (%s): %w", companyID, kind, repository.ErrLockTimeout)
	}
	r.mu.Unlock()
	return r.Get(ctx, companyID, kind)
}

func (r *fakeSequenceRepo) Get(_ context.Context, companyID uint, kind models.CounterKind) (*models.CompanySequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.row(companyID, kind)
	return &cp, nil
}

func (r *fakeSequenceRepo) CompareAndSwap(_ context.Context, sequenceID uint, expected, next int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casCalls++
	if r.casFailures > 0 {
		r.casFailures--
		return repository.ErrConcurrentUpdate
	}
	for _, row := range r.rows {
		if row.ID != sequenceID {
			continue
		}
		if row.LastValue != expected {
			return repository.ErrConcurrentUpdate
		}
		row.LastValue = next
		return nil
	}
	return fmt.Errorf("sequence %d not found", sequenceID)
}

func (r *fakeSequenceRepo) RaiseTo(_ context.Context, companyID uint, kind models.CounterKind, floor int64) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.row(companyID, kind)
	before := row.LastValue
	if floor > row.LastValue {
		row.LastValue = floor
	}
	return before, row.LastValue, nil
}

func (r *fakeSequenceRepo) ByCompany(_ context.Context, companyID uint) ([]*models.CompanySequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CompanySequence
	for k, row := range r.rows {
		if k.companyID == companyID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (r *fakeSequenceRepo) SetLockTimeout(_ context.Context, timeoutMillis int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockTimeouts = append(r.lockTimeouts, timeoutMillis)
	return nil
}

// fakeMembers backs both client and marketer repositories

type memberFields[T any] struct {
	id        func(*T) *uint
	companyID func(*T) uint
	email     func(*T) string
	seq       func(*T) **int64
	uid       func(*T) **string
}

type fakeMembers[T any, F any] struct {
	mu     sync.Mutex
	kind   models.CounterKind
	rows   []*T
	nextID uint
	fields memberFields[T]
	match  func(*T, F) bool
}

func (r *fakeMembers[T, F]) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make([]T, len(r.rows))
	for i, row := range r.rows {
		saved[i] = *row
	}
	nextID := r.nextID
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rows = make([]*T, len(saved))
		for i := range saved {
			row := saved[i]
			r.rows[i] = &row
		}
		r.nextID = nextID
	}
}

func (r *fakeMembers[T, F]) Kind() models.CounterKind {
	return r.kind
}

func (r *fakeMembers[T, F]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.rows))
	for i, row := range r.rows {
		out[i] = *row
	}
	return out
}

func (r *fakeMembers[T, F]) first(match func(*T) bool) *T {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if match(row) {
			cp := *row
			return &cp
		}
	}
	return nil
}

func (r *fakeMembers[T, F]) ByID(_ context.Context, id uint) (*T, error) {
	return r.first(func(row *T) bool { return *r.fields.id(row) == id }), nil
}

func (r *fakeMembers[T, F]) ByFilter(_ context.Context, filter F, _ string, limit, offset int) ([]*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*T
	for _, row := range r.rows {
		if r.match(row, filter) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := *r.fields.seq(out[i]), *r.fields.seq(out[j])
		switch {
		case si == nil && sj == nil:
			return *r.fields.id(out[i]) < *r.fields.id(out[j])
		case si == nil:
			return false
		case sj == nil:
			return true
		default:
			return *si < *sj
		}
	})
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMembers[T, F]) Save(_ context.Context, entity *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if r.fields.companyID(row) == r.fields.companyID(entity) && r.fields.email(row) == r.fields.email(entity) {
			return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicate)
		}
		if seq, other := *r.fields.seq(entity), *r.fields.seq(row); seq != nil && other != nil &&
			*seq == *other && r.fields.companyID(row) == r.fields.companyID(entity) {
			return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicate)
		}
		if uid, other := *r.fields.uid(entity), *r.fields.uid(row); uid != nil && other != nil && *uid == *other {
			return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicate)
		}
	}
	r.nextID++
	*r.fields.id(entity) = r.nextID
	cp := *entity
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeMembers[T, F]) SaveBatch(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMembers[T, F]) Count(ctx context.Context, filter F) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeMembers[T, F]) Exists(ctx context.Context, filter F) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeMembers[T, F]) ByCompanyAndID(_ context.Context, companyID, id uint) (*T, error) {
	return r.first(func(row *T) bool {
		return r.fields.companyID(row) == companyID && *r.fields.id(row) == id
	}), nil
}

func (r *fakeMembers[T, F]) ByCompanyAndEmail(_ context.Context, companyID uint, email string) (*T, error) {
	return r.first(func(row *T) bool {
		return r.fields.companyID(row) == companyID && r.fields.email(row) == email
	}), nil
}

func (r *fakeMembers[T, F]) MaxSequenceNumber(_ context.Context, companyID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var highest int64
	for _, row := range r.rows {
		if seq := *r.fields.seq(row); r.fields.companyID(row) == companyID && seq != nil && *seq > highest {
			highest = *seq
		}
	}
	return highest, nil
}

func (r *fakeMembers[T, F]) SequenceStats(ctx context.Context, companyID uint) (*models.SequenceStats, error) {
	highest, _ := r.MaxSequenceNumber(ctx, companyID)
	stats := &models.SequenceStats{CompanyID: companyID, Kind: r.kind, MaxSequence: highest}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if r.fields.companyID(row) != companyID {
			continue
		}
		stats.EntityCount++
		seq, uid := *r.fields.seq(row), *r.fields.uid(row)
		switch {
		case seq == nil:
			stats.UnnumberedRows++
		case uid == nil:
			stats.NumberedCount++
			stats.MissingUIDs++
		default:
			stats.NumberedCount++
		}
	}
	return stats, nil
}

func (r *fakeMembers[T, F]) refs(companyID uint, match func(seq *int64, uid *string) bool) []models.SequencedRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SequencedRef
	for _, row := range r.rows {
		seq, uid := *r.fields.seq(row), *r.fields.uid(row)
		if r.fields.companyID(row) == companyID && match(seq, uid) {
			out = append(out, models.SequencedRef{ID: *r.fields.id(row), SequenceNumber: seq})
		}
	}
	return out
}

func (r *fakeMembers[T, F]) ListUnnumbered(_ context.Context, companyID uint) ([]models.SequencedRef, error) {
	return r.refs(companyID, func(seq *int64, _ *string) bool { return seq == nil }), nil
}

func (r *fakeMembers[T, F]) ListMissingUID(_ context.Context, companyID uint) ([]models.SequencedRef, error) {
	out := r.refs(companyID, func(seq *int64, uid *string) bool { return seq != nil && uid == nil })
	sort.Slice(out, func(i, j int) bool { return *out[i].SequenceNumber < *out[j].SequenceNumber })
	return out, nil
}

func (r *fakeMembers[T, F]) mutate(id uint, fn func(*T)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if *r.fields.id(row) == id {
			fn(row)
			return nil
		}
	}
	return fmt.Errorf("row %d not found", id)
}

func (r *fakeMembers[T, F]) AssignSequence(_ context.Context, id uint, sequenceNumber int64, uid string) error {
	return r.mutate(id, func(row *T) {
		*r.fields.seq(row) = &sequenceNumber
		*r.fields.uid(row) = &uid
	})
}

func (r *fakeMembers[T, F]) AssignUID(_ context.Context, id uint, uid string) error {
	return r.mutate(id, func(row *T) { *r.fields.uid(row) = &uid })
}

func (r *fakeMembers[T, F]) UIDTaken(_ context.Context, uid string, exceptID uint) (bool, error) {
	row := r.first(func(row *T) bool {
		other := *r.fields.uid(row)
		return other != nil && *other == uid && *r.fields.id(row) != exceptID
	})
	return row != nil, nil
}

func newFakeClientRepo() *fakeMembers[models.ClientUser, models.ClientUserFilter] {
	return &fakeMembers[models.ClientUser, models.ClientUserFilter]{
		kind: models.CounterKindClient,
		fields: memberFields[models.ClientUser]{
			id:        func(c *models.ClientUser) *uint { return &c.ID },
			companyID: func(c *models.ClientUser) uint { return c.CompanyID },
			email:     func(c *models.ClientUser) string { return c.Email },
			seq:       func(c *models.ClientUser) **int64 { return &c.CompanySequenceNumber },
			uid:       func(c *models.ClientUser) **string { return &c.CompanyUID },
		},
		match: func(c *models.ClientUser, f models.ClientUserFilter) bool {
			if c.CompanyID != f.CompanyID {
				return false
			}
			if f.MarketerID != nil && (c.MarketerID == nil || *c.MarketerID != *f.MarketerID) {
				return false
			}
			return f.Email == nil || c.Email == *f.Email
		},
	}
}

func newFakeMarketerRepo() *fakeMembers[models.MarketerUser, models.MarketerUserFilter] {
	return &fakeMembers[models.MarketerUser, models.MarketerUserFilter]{
		kind: models.CounterKindMarketer,
		fields: memberFields[models.MarketerUser]{
			id:        func(m *models.MarketerUser) *uint { return &m.ID },
			companyID: func(m *models.MarketerUser) uint { return m.CompanyID },
			email:     func(m *models.MarketerUser) string { return m.Email },
			seq:       func(m *models.MarketerUser) **int64 { return &m.CompanySequenceNumber },
			uid:       func(m *models.MarketerUser) **string { return &m.CompanyUID },
		},
		match: func(m *models.MarketerUser, f models.MarketerUserFilter) bool {
			if m.CompanyID != f.CompanyID {
				return false
			}
			return f.Email == nil || m.Email == *f.Email
		},
	}
}

// fakeAuditRepo

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (r *fakeAuditRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := append([]models.AuditLog(nil), r.logs...)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.logs = saved
	}
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.logs))
	for i, l := range r.logs {
		out[i] = l.Action
	}
	return out
}

func (r *fakeAuditRepo) ByID(_ context.Context, id uint) (*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			cp := l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAuditRepo) ByFilter(_ context.Context, filter models.AuditLogFilter, _ string, _, _ int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, l := range r.logs {
		if filter.Action != nil && l.Action != *filter.Action {
			continue
		}
		if filter.CompanyID != nil && (l.CompanyID == nil || *l.CompanyID != *filter.CompanyID) {
			continue
		}
		cp := l
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAuditRepo) Save(_ context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uint(len(r.logs) + 1)
	r.logs = append(r.logs, *entry)
	return nil
}

func (r *fakeAuditRepo) SaveBatch(ctx context.Context, entries []*models.AuditLog) error {
	for _, e := range entries {
		_ = r.Save(ctx, e)
	}
	return nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

func (r *fakeAuditRepo) Exists(ctx context.Context, filter models.AuditLogFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeAuditRepo) ListByCompany(ctx context.Context, companyID uint, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{CompanyID: &companyID}, "", limit, offset)
}

// fakeAdminRepo

type fakeAdminRepo struct {
	mu     sync.Mutex
	admins []models.Admin
}

func (r *fakeAdminRepo) ByID(_ context.Context, id uint) (*models.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAdminRepo) ByFilter(_ context.Context, filter models.AdminFilter, _ string, _, _ int) ([]*models.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Admin
	for _, a := range r.admins {
		if filter.Username != nil && a.Username != *filter.Username {
			continue
		}
		cp := a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAdminRepo) Save(_ context.Context, admin *models.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if a.Username == admin.Username {
			return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicate)
		}
	}
	admin.ID = uint(len(r.admins) + 1)
	r.admins = append(r.admins, *admin)
	return nil
}

func (r *fakeAdminRepo) SaveBatch(ctx context.Context, admins []*models.Admin) error {
	for _, a := range admins {
		if err := r.Save(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAdminRepo) Count(ctx context.Context, filter models.AdminFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

func (r *fakeAdminRepo) Exists(ctx context.Context, filter models.AdminFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeAdminRepo) ByUsername(ctx context.Context, username string) (*models.Admin, error) {
	out, _ := r.ByFilter(ctx, models.AdminFilter{Username: &username}, "", 1, 0)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *fakeAdminRepo) TouchLastLogin(_ context.Context, adminID uint) error {
	return nil
}

// registryFixture wires every flow against in-memory repositories

type registryFixture struct {
	companies *fakeCompanyRepo
	sequences *fakeSequenceRepo
	clients   *fakeMembers[models.ClientUser, models.ClientUserFilter]
	marketers *fakeMembers[models.MarketerUser, models.MarketerUserFilter]
	audits    *fakeAuditRepo
	tx        *fakeTransactor
}

func newRegistryFixture(serialize bool) *registryFixture {
	f := &registryFixture{
		companies: newFakeCompanyRepo(),
		sequences: newFakeSequenceRepo(),
		clients:   newFakeClientRepo(),
		marketers: newFakeMarketerRepo(),
		audits:    &fakeAuditRepo{},
	}
	f.tx = newFakeTransactor(serialize, f.companies, f.sequences, f.clients, f.marketers, f.audits)
	return f
}
