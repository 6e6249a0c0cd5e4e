package repository

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ghostbadfame/CRM-Chase-local/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process Store used by the test suites. Documents pass through a BSON round trip on every write so they
// come back the way the Mongo driver would return them: UTC times at
// millisecond precision.
//
// Transactions are serialized and roll back by restoring a snapshot taken
// when they began. Writes outside a transaction wait for any open one to
// finish, so a rollback never discards them.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	users    map[string]models.User // by email
	leads    map[string]models.Lead // by leadNo
	partners map[string]models.ChannelPartner
	remarks  map[models.EntityKind][]models.Remark
	counters map[models.EntityKind]int64
	opLogs   []models.OperationLog
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		leads:    make(map[string]models.Lead),
		partners: make(map[string]models.ChannelPartner),
		remarks:  make(map[models.EntityKind][]models.Remark),
		counters: make(map[models.EntityKind]int64),
	}
}

type txKey struct{}

type memorySnapshot struct {
	users    map[string]models.User
	leads    map[string]models.Lead
	partners map[string]models.ChannelPartner
	remarks  map[models.EntityKind][]models.Remark
	counters map[models.EntityKind]int64
	opLogs   []models.OperationLog
}

func (m *MemoryStore) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := memorySnapshot{
		users:    make(map[string]models.User, len(m.users)),
		leads:    make(map[string]models.Lead, len(m.leads)),
		partners: make(map[string]models.ChannelPartner, len(m.partners)),
		remarks:  make(map[models.EntityKind][]models.Remark, len(m.remarks)),
		counters: make(map[models.EntityKind]int64, len(m.counters)),
		opLogs:   append([]models.OperationLog(nil), m.opLogs...),
	}
	for k, v := range m.users {
		snap.users[k] = v
	}
	for k, v := range m.leads {
		snap.leads[k] = v
	}
	for k, v := range m.partners {
		snap.partners[k] = v
	}
	for k, v := range m.remarks {
		snap.remarks[k] = append([]models.Remark(nil), v...)
	}
	for k, v := range m.counters {
		snap.counters[k] = v
	}
	return snap
}

func (m *MemoryStore) restore(snap memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = snap.users
	m.leads = snap.leads
	m.partners = snap.partners
	m.remarks = snap.remarks
	m.counters = snap.counters
	m.opLogs = snap.opLogs
}

// WithTransaction runs fn while holding the transaction lock. Any error from
// fn discards every write fn made. Nested calls join the outer transaction.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// writeLock holds txMu for a write made outside a transaction. Writes inside
// one already run under it.
func (m *MemoryStore) writeLock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

// clone copies in to out through BSON.
func clone(in, out interface{}) error {
	raw, err := bson.Marshal(in)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

// applySet returns doc with the $set body applied, decoded into out.
func applySet(doc interface{}, set bson.M, out interface{}) error {
	var m bson.M
	if err := clone(doc, &m); err != nil {
		return err
	}
	for k, v := range set {
		m[k] = v
	}
	return clone(m, out)
}

func sameDocument(a, b interface{}) bool {
	ra, errA := bson.Marshal(a)
	rb, errB := bson.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

func (m *MemoryStore) NextSequence(ctx context.Context, kind models.EntityKind) (int64, error) {
	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[kind]++
	return m.counters[kind], nil
}

func (m *MemoryStore) SeedSequence(ctx context.Context, kind models.EntityKind, floor int64) error {
	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counters[kind] < floor {
		m.counters[kind] = floor
	}
	return nil
}

func (m *MemoryStore) CountEntities(ctx context.Context, kind models.EntityKind) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch kind {
	case models.KindLead:
		return int64(len(m.leads)), nil
	case models.KindChannelPartner:
		return int64(len(m.partners)), nil
	case models.KindEmployee:
		return int64(len(m.users)), nil
	}
	return 0, fmt.Errorf("unknown entity kind %q", kind)
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (m *MemoryStore) InsertUser(ctx context.Context, user *models.User) error {
	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.Email]; exists {
		return fmt.Errorf("%w: users.email %s", ErrDuplicateKey, user.Email)
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	var stored models.User
	if err := clone(user, &stored); err != nil {
		return err
	}
	m.users[user.Email] = stored
	return nil
}

func (m *MemoryStore) CountUsersByRole(ctx context.Context, role models.UserRole) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) FindLeadByContact(ctx context.Context, contact string) (*models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, lead := range m.leads {
		if lead.Contact == contact {
			l := lead
			return &l, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindLeadByNo(ctx context.Context, leadNo string) (*models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lead, ok := m.leads[leadNo]
	if !ok {
		return nil, nil
	}
	return &lead, nil
}

func (m *MemoryStore) leadContactTaken(contact, exceptLeadNo string) bool {
	for no, lead := range m.leads {
		if no != exceptLeadNo && lead.Contact == contact {
			return true
		}
	}
	return false
}

func (m *MemoryStore) InsertLead(ctx context.Context, lead *models.Lead) error {
	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.leads[lead.LeadNo]; exists {
		return fmt.Errorf("%w: leads.leadNo %s", ErrDuplicateKey, lead.LeadNo)
	}
	if m.leadContactTaken(lead.Contact, "") {
		return fmt.Errorf("%w: leads.contact %s", ErrDuplicateKey, lead.Contact)
	}
	if lead.ID.IsZero() {
		lead.ID = primitive.NewObjectID()
	}
	var stored models.Lead
	if err := clone(lead, &stored); err != nil {
		return err
	}
	m.leads[lead.LeadNo] = stored
	return nil
}

func (m *MemoryStore) UpdateLead(ctx context.Context, leadNo string, set bson.M) (*models.Lead, error) {
	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.leads[leadNo]
	if !ok {
		return nil, nil
	}
	var updated models.Lead
	if err := applySet(current, set, &updated); err != nil {
		return nil, err
	}
	if updated.Contact != current.Contact && m.leadContactTaken(updated.Contact, leadNo) {
		return nil, fmt.Errorf("%w: leads.contact %s", ErrDuplicateKey, updated.Contact)
	}
	m.leads[leadNo] = updated
	return &updated, nil
}

// BulkUpdateLeads counts only leads whose stored document actually changed,
// matching the driver's ModifiedCount.
func (m *MemoryStore) BulkUpdateLeads(ctx context.Context, filter models.LeadFilter, patch models.LeadPatch) (int64, error) {
	set := patch.SetDoc()
	if len(set) == 0 {
		return 0, nil
	}

	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	var modified int64
	for no, lead := range m.leads {
		if !filter.Matches(&lead) {
			continue
		}
		var updated models.Lead
		if err := applySet(lead, set, &updated); err != nil {
			return modified, err
		}
		if sameDocument(lead, updated) {
			continue
		}
		m.leads[no] = updated
		modified++
	}
	return modified, nil
}

func (m *MemoryStore) ListLeads(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	leads := []models.Lead{}
	for _, lead := range m.leads {
		if filter.Matches(&lead) {
			leads = append(leads, lead)
		}
	}
	sort.Slice(leads, func(i, j int) bool {
		if !leads[i].CreatedAt.Equal(leads[j].CreatedAt) {
			return leads[i].CreatedAt.After(leads[j].CreatedAt)
		}
		return leads[i].LeadNo > leads[j].LeadNo
	})
	return leads, nil
}

func (m *MemoryStore) FindChannelPartnerByContact(ctx context.Context, contact string) (*models.ChannelPartner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, partner := range m.partners {
		if partner.Contact == contact {
			p := partner
			return &p, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindChannelPartnerByNo(ctx context.Context, channelPartnerNo string) (*models.ChannelPartner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	partner, ok := m.partners[channelPartnerNo]
	if !ok {
		return nil, nil
	}
	return &partner, nil
}

func (m *MemoryStore) partnerContactTaken(contact, exceptNo string) bool {
	for no, partner := range m.partners {
		if no != exceptNo && partner.Contact == contact {
			return true
		}
	}
	return false
}

func (m *MemoryStore) InsertChannelPartner(ctx context.Context, partner *models.ChannelPartner) error {
	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.partners[partner.ChannelPartnerNo]; exists {
		return fmt.Errorf("%w: channelPartners.channelPartnerNo %s", ErrDuplicateKey, partner.ChannelPartnerNo)
	}
	if m.partnerContactTaken(partner.Contact, "") {
		return fmt.Errorf("%w: channelPartners.contact %s", ErrDuplicateKey, partner.Contact)
	}
	if partner.ID.IsZero() {
		partner.ID = primitive.NewObjectID()
	}
	var stored models.ChannelPartner
	if err := clone(partner, &stored); err != nil {
		return err
	}
	m.partners[partner.ChannelPartnerNo] = stored
	return nil
}

func (m *MemoryStore) UpdateChannelPartner(ctx context.Context, channelPartnerNo string, set bson.M) (*models.ChannelPartner, error) {
	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.partners[channelPartnerNo]
	if !ok {
		return nil, nil
	}
	var updated models.ChannelPartner
	if err := applySet(current, set, &updated); err != nil {
		return nil, err
	}
	if updated.Contact != current.Contact && m.partnerContactTaken(updated.Contact, channelPartnerNo) {
		return nil, fmt.Errorf("%w: channelPartners.contact %s", ErrDuplicateKey, updated.Contact)
	}
	m.partners[channelPartnerNo] = updated
	return &updated, nil
}

func (m *MemoryStore) ListChannelPartners(ctx context.Context, filter models.ChannelPartnerFilter) ([]models.ChannelPartner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	partners := []models.ChannelPartner{}
	for _, partner := range m.partners {
		if filter.Matches(&partner) {
			partners = append(partners, partner)
		}
	}
	sort.Slice(partners, func(i, j int) bool {
		if !partners[i].CreatedAt.Equal(partners[j].CreatedAt) {
			return partners[i].CreatedAt.After(partners[j].CreatedAt)
		}
		return partners[i].ChannelPartnerNo > partners[j].ChannelPartnerNo
	})
	return partners, nil
}

func (m *MemoryStore) InsertRemark(ctx context.Context, kind models.EntityKind, remark *models.Remark) error {
	if _, err := remarkCollection(kind); err != nil {
		return err
	}

	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	if remark.ID.IsZero() {
		remark.ID = primitive.NewObjectID()
	}
	var stored models.Remark
	if err := clone(remark, &stored); err != nil {
		return err
	}
	m.remarks[kind] = append(m.remarks[kind], stored)
	return nil
}

func (m *MemoryStore) ListRemarks(ctx context.Context, kind models.EntityKind, parentNo string) ([]models.Remark, error) {
	if _, err := remarkCollection(kind); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	remarks := []models.Remark{}
	for _, r := range m.remarks[kind] {
		if r.ParentNo == parentNo {
			remarks = append(remarks, r)
		}
	}
	sort.SliceStable(remarks, func(i, j int) bool {
		return remarks[i].CreatedAt.Before(remarks[j].CreatedAt)
	})
	return remarks, nil
}

func (m *MemoryStore) InsertOperationLog(ctx context.Context, log *models.OperationLog) error {
	defer m.writeLock(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	m.opLogs = append(m.opLogs, *log)
	return nil
}

// OperationLogs returns a copy of the recorded audit entries.
func (m *MemoryStore) OperationLogs() []models.OperationLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.OperationLog(nil), m.opLogs...)
}

func (m *MemoryStore) Status(ctx context.Context) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		UsersCollection:                 map[string]interface{}{"count": len(m.users)},
		LeadsCollection:                 map[string]interface{}{"count": len(m.leads)},
		LeadRemarksCollection:           map[string]interface{}{"count": len(m.remarks[models.KindLead])},
		ChannelPartnersCollection:       map[string]interface{}{"count": len(m.partners)},
		ChannelPartnerRemarksCollection: map[string]interface{}{"count": len(m.remarks[models.KindChannelPartner])},
		CountersCollection:              map[string]interface{}{"count": len(m.counters)},
		ApiOperationLogsCollection:      map[string]interface{}{"count": len(m.opLogs)},
	}, nil
}
