package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// seedEmployee stores an account and returns the session that refers to it.
func seedEmployee(t *testing.T, store repository.UserStore, username, email, empNo string, role models.UserRole) *models.ActingUser {
	t.Helper()
	user := &models.User{Username: username, Email: email, EmpNo: empNo, Role: role}
	if err := store.InsertUser(context.Background(), user); err != nil {
		t.Fatalf("InsertUser(%s) error: %v", email, err)
	}
	return &models.ActingUser{
		ID:       user.ID.Hex(),
		Email:    user.Email,
		Username: user.Username,
		EmpNo:    user.EmpNo,
		Role:     user.Role,
	}
}

func newLedger(t *testing.T) (*service.LedgerService, *repository.MemoryStore, *models.ActingUser) {
	t.Helper()
	store := repository.NewMemoryStore()
	actor := seedEmployee(t, store, "Asha", "asha@example.com", "EMP001", models.UserRoleBASIC)
	return service.NewLedgerService(store, utils.FixedClock{At: fixedNow}, utils.NewMetrics()), store, actor
}

func partnerRequest(contact string) *models.ChannelPartnerCreateRequest {
	return &models.ChannelPartnerCreateRequest{
		FullName: "Ravi Kumar",
		Contact:  contact,
		Address:  "4 Park Street",
		City:     "Pune",
		UserType: "Architect",
		Remark:   "Met at the design expo",
	}
}

func partnerUpdate(contact string) *models.ChannelPartnerUpdateRequest {
	return &models.ChannelPartnerUpdateRequest{
		FullName: "Ravi Kumar",
		Contact:  contact,
		Address:  "4 Park Street",
		City:     "Pune",
		UserType: "Architect",
		Remark:   "Called back",
	}
}

func leadRequest(contact string) *models.LeadCreateRequest {
	return &models.LeadCreateRequest{
		FullName:     "Meera Nair",
		Contact:      contact,
		Address:      "12 MG Road",
		City:         "Kochi",
		LeadSource:   "Walk-in",
		ActualSource: "Showroom",
		SiteStage:    "Plastering",
		SalesPerson:  "Asha",
		Remark:       "Wants an L-shaped kitchen",
	}
}

func TestCreateChannelPartnerNumbersSequentially(t *testing.T) {
	ledger, _, actor := newLedger(t)
	ctx := context.Background()

	first, remark, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest("9123456780"))
	if err != nil {
		t.Fatalf("CreateChannelPartner() error: %v", err)
	}
	if first.ChannelPartnerNo != "CP001" {
		t.Errorf("first number = %s, want CP001", first.ChannelPartnerNo)
	}
	if first.FollowupDate != nil {
		t.Errorf("new partner followupDate = %v, want nil", first.FollowupDate)
	}
	if first.LastDate == nil || !first.LastDate.Equal(fixedNow) {
		t.Errorf("lastDate = %v, want %v", first.LastDate, fixedNow)
	}

	if remark.ParentNo != "CP001" || remark.ParentID != first.ID {
		t.Errorf("remark parent = %s/%s, want CP001/%s", remark.ParentNo, remark.ParentID.Hex(), first.ID.Hex())
	}
	if remark.EmpName != "Asha" || remark.EmpNo != "EMP001" {
		t.Errorf("remark author = %s/%s, want Asha/EMP001", remark.EmpName, remark.EmpNo)
	}
	if remark.FollowUpDate != nil {
		t.Errorf("remark followUpDate = %v, want nil", remark.FollowUpDate)
	}

	second, _, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest("9123456781"))
	if err != nil {
		t.Fatalf("second CreateChannelPartner() error: %v", err)
	}
	if second.ChannelPartnerNo != "CP002" {
		t.Errorf("second number = %s, want CP002", second.ChannelPartnerNo)
	}
}

func TestCreateChannelPartnerDuplicateContactWritesNothing(t *testing.T) {
	ledger, store, actor := newLedger(t)
	ctx := context.Background()

	if _, _, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest("9123456780")); err != nil {
		t.Fatal(err)
	}
	_, _, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest("9123456780"))
	if !utils.IsKind(err, utils.KindDuplicateEntity) {
		t.Fatalf("duplicate create = %v, want DuplicateEntity", err)
	}

	if n, _ := store.CountEntities(ctx, models.KindChannelPartner); n != 1 {
		t.Errorf("partner count = %d, want 1", n)
	}
	status, _ := store.Status(ctx)
	if got := status[repository.ChannelPartnerRemarksCollection].(map[string]interface{})["count"]; got != 1 {
		t.Errorf("remark count = %v, want 1", got)
	}

	next, _, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest("9123456781"))
	if err != nil {
		t.Fatal(err)
	}
	if next.ChannelPartnerNo != "CP002" {
		t.Errorf("number after rejected duplicate = %s, want CP002", next.ChannelPartnerNo)
	}
}

func TestCreateLeadDefaults(t *testing.T) {
	ledger, _, actor := newLedger(t)

	lead, remark, err := ledger.CreateLead(context.Background(), actor, leadRequest("9876543210"))
	if err != nil {
		t.Fatalf("CreateLead() error: %v", err)
	}
	if lead.LeadNo != "LD001" {
		t.Errorf("leadNo = %s, want LD001", lead.LeadNo)
	}
	if lead.Status != models.LeadStatusPending {
		t.Errorf("status = %q, want pending", lead.Status)
	}
	if lead.FollowupDate == nil || !lead.FollowupDate.Equal(fixedNow) {
		t.Errorf("followupDate = %v, want %v", lead.FollowupDate, fixedNow)
	}
	if remark.FollowUpDate == nil || !remark.FollowUpDate.Equal(fixedNow) {
		t.Errorf("remark followUpDate = %v, want %v", remark.FollowUpDate, fixedNow)
	}
	if remark.Remark != "Wants an L-shaped kitchen" {
		t.Errorf("remark text = %q", remark.Remark)
	}
}

func TestUpdateLeadRecordsPostUpdateFollowup(t *testing.T) {
	ledger, _, actor := newLedger(t)
	ctx := context.Background()

	if _, _, err := ledger.CreateLead(ctx, actor, leadRequest("9876543210")); err != nil {
		t.Fatal(err)
	}

	next := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	lead, remark, err := ledger.UpdateLead(ctx, actor, "LD001", &models.LeadUpdateRequest{
		Status:       strPtr(models.LeadStatusDone),
		FollowupDate: strPtr("2024-03-20"),
		Remark:       "Site measured",
	})
	if err != nil {
		t.Fatalf("UpdateLead() error: %v", err)
	}
	if lead.Status != models.LeadStatusDone || !lead.FollowupDate.Equal(next) {
		t.Errorf("updated lead = status %q followup %v", lead.Status, lead.FollowupDate)
	}
	if lead.FullName != "Meera Nair" {
		t.Errorf("absent field changed: fullName = %q", lead.FullName)
	}
	if remark.FollowUpDate == nil || !remark.FollowUpDate.Equal(next) {
		t.Errorf("remark followUpDate = %v, want %v", remark.FollowUpDate, next)
	}

	// a remark-only update keeps the follow-up and snapshots it again
	_, remark, err = ledger.UpdateLead(ctx, actor, "LD001", &models.LeadUpdateRequest{Remark: "No answer"})
	if err != nil {
		t.Fatal(err)
	}
	if !remark.FollowUpDate.Equal(next) {
		t.Errorf("remark-only update followUpDate = %v, want %v", remark.FollowUpDate, next)
	}

	remarks, err := ledger.ListRemarks(ctx, actor, models.KindLead, "LD001")
	if err != nil {
		t.Fatal(err)
	}
	if len(remarks) != 3 {
		t.Errorf("remark count = %d, want 3", len(remarks))
	}
}

func TestUpdateChannelPartnerSetsFollowupAndLastDate(t *testing.T) {
	store := repository.NewMemoryStore()
	actor := seedEmployee(t, store, "Asha", "asha@example.com", "EMP001", models.UserRoleBASIC)
	ctx := context.Background()

	created := service.NewLedgerService(store, utils.FixedClock{At: fixedNow}, nil)
	if _, _, err := created.CreateChannelPartner(ctx, actor, partnerRequest("9123456780")); err != nil {
		t.Fatal(err)
	}

	later := fixedNow.Add(26 * time.Hour)
	ledger := service.NewLedgerService(store, utils.FixedClock{At: later}, nil)

	req := partnerUpdate("9123456780")
	req.Firm = "Kumar Associates"
	req.FollowupDate = strPtr("2024-03-22")
	partner, remark, err := ledger.UpdateChannelPartner(ctx, actor, "CP001", req)
	if err != nil {
		t.Fatalf("UpdateChannelPartner() error: %v", err)
	}

	followup := time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)
	if partner.FollowupDate == nil || !partner.FollowupDate.Equal(followup) {
		t.Errorf("followupDate = %v, want %v", partner.FollowupDate, followup)
	}
	if !partner.LastDate.Equal(later) {
		t.Errorf("lastDate = %v, want %v", partner.LastDate, later)
	}
	if partner.Firm != "Kumar Associates" {
		t.Errorf("firm = %q", partner.Firm)
	}
	if !remark.FollowUpDate.Equal(followup) || !remark.CreatedAt.Equal(later) {
		t.Errorf("remark = followup %v created %v", remark.FollowUpDate, remark.CreatedAt)
	}

	// without a followupDate the previous one is kept
	partner, _, err = ledger.UpdateChannelPartner(ctx, actor, "CP001", partnerUpdate("9123456780"))
	if err != nil {
		t.Fatal(err)
	}
	if !partner.FollowupDate.Equal(followup) {
		t.Errorf("followupDate cleared to %v", partner.FollowupDate)
	}
}

func TestLedgerErrors(t *testing.T) {
	ledger, _, actor := newLedger(t)
	ctx := context.Background()

	if _, _, err := ledger.CreateLead(ctx, actor, leadRequest("9876543210")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ledger.CreateLead(ctx, actor, leadRequest("9876543211")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest("9123456780")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest("9123456781")); err != nil {
		t.Fatal(err)
	}

	unknown := &models.ActingUser{ID: "x", Email: "ghost@example.com", Role: models.UserRoleBASIC}
	badLead := leadRequest("12345")

	tests := []struct {
		name string
		call func() error
		want utils.ErrorKind
	}{
		{"create lead without session", func() error {
			_, _, err := ledger.CreateLead(ctx, nil, leadRequest("9000000001"))
			return err
		}, utils.KindNotAuthenticated},
		{"create lead for unknown account", func() error {
			_, _, err := ledger.CreateLead(ctx, unknown, leadRequest("9000000001"))
			return err
		}, utils.KindNotAuthenticated},
		{"create lead with invalid contact", func() error {
			_, _, err := ledger.CreateLead(ctx, actor, badLead)
			return err
		}, utils.KindValidation},
		{"create duplicate lead", func() error {
			_, _, err := ledger.CreateLead(ctx, actor, leadRequest("9876543210"))
			return err
		}, utils.KindDuplicateEntity},
		{"update lead without number", func() error {
			_, _, err := ledger.UpdateLead(ctx, actor, "", &models.LeadUpdateRequest{Remark: "x"})
			return err
		}, utils.KindMissingIdentifier},
		{"missing number is reported before the session", func() error {
			_, _, err := ledger.UpdateLead(ctx, nil, "", &models.LeadUpdateRequest{Remark: "x"})
			return err
		}, utils.KindMissingIdentifier},
		{"update unknown lead", func() error {
			_, _, err := ledger.UpdateLead(ctx, actor, "LD404", &models.LeadUpdateRequest{Remark: "x"})
			return err
		}, utils.KindNotFound},
		{"update lead onto taken contact", func() error {
			_, _, err := ledger.UpdateLead(ctx, actor, "LD002", &models.LeadUpdateRequest{Contact: strPtr("9876543210"), Remark: "x"})
			return err
		}, utils.KindDuplicateEntity},
		{"update lead with bad date", func() error {
			_, _, err := ledger.UpdateLead(ctx, actor, "LD001", &models.LeadUpdateRequest{FollowupDate: strPtr("someday"), Remark: "x"})
			return err
		}, utils.KindValidation},
		{"update partner without number", func() error {
			_, _, err := ledger.UpdateChannelPartner(ctx, actor, "", partnerUpdate("9123456780"))
			return err
		}, utils.KindMissingIdentifier},
		{"update unknown partner", func() error {
			_, _, err := ledger.UpdateChannelPartner(ctx, actor, "CP404", partnerUpdate("9123456780"))
			return err
		}, utils.KindNotFound},
		{"update partner onto taken contact", func() error {
			_, _, err := ledger.UpdateChannelPartner(ctx, actor, "CP002", partnerUpdate("9123456780"))
			return err
		}, utils.KindDuplicateEntity},
		{"get unknown lead", func() error {
			_, err := ledger.GetLead(ctx, actor, "LD404")
			return err
		}, utils.KindNotFound},
		{"list without session", func() error {
			_, err := ledger.ListChannelPartners(ctx, nil, models.ChannelPartnerFilter{})
			return err
		}, utils.KindNotAuthenticated},
		{"remarks without number", func() error {
			_, err := ledger.ListRemarks(ctx, actor, models.KindLead, "")
			return err
		}, utils.KindMissingIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !utils.IsKind(err, tt.want) {
				t.Errorf("got %v, want %s", err, tt.want)
			}
		})
	}
}

func TestRestrictedAccountCannotWrite(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	user := &models.User{Username: "Old", Email: "old@example.com", EmpNo: "EMP009", Role: models.UserRoleBASIC, Restricted: true}
	if err := store.InsertUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	actor := &models.ActingUser{ID: user.ID.Hex(), Email: user.Email, Role: user.Role}

	ledger := service.NewLedgerService(store, utils.FixedClock{At: fixedNow}, nil)
	_, _, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest("9123456780"))
	if !utils.IsKind(err, utils.KindNotAuthenticated) {
		t.Fatalf("restricted create = %v, want NotAuthenticated", err)
	}
	if n, _ := store.CountEntities(ctx, models.KindChannelPartner); n != 0 {
		t.Errorf("partner count = %d, want 0", n)
	}
}

func TestConcurrentCreatesGetDistinctGapFreeNumbers(t *testing.T) {
	ledger, _, actor := newLedger(t)
	ctx := context.Background()

	const n = 20
	numbers := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			partner, _, err := ledger.CreateChannelPartner(ctx, actor, partnerRequest(fmt.Sprintf("91234%05d", i)))
			errs[i] = err
			if err == nil {
				numbers[i] = partner.ChannelPartnerNo
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d error: %v", i, err)
		}
	}
	sort.Strings(numbers)
	for i, got := range numbers {
		if want := models.FormatSequenceNo(models.KindChannelPartner, int64(i+1)); got != want {
			t.Errorf("numbers[%d] = %s, want %s (all: %v)", i, got, want, numbers)
			break
		}
	}
}

// failingRemarks rejects every remark write so the surrounding transaction
// must roll back.
type failingRemarks struct {
	*repository.MemoryStore
}

func (failingRemarks) InsertRemark(ctx context.Context, kind models.EntityKind, remark *models.Remark) error {
	return errors.New("remark collection unavailable")
}

func TestRemarkFailureRollsBackEntity(t *testing.T) {
	store := repository.NewMemoryStore()
	actor := seedEmployee(t, store, "Asha", "asha@example.com", "EMP001", models.UserRoleBASIC)
	ctx := context.Background()

	broken := service.NewLedgerService(failingRemarks{store}, utils.FixedClock{At: fixedNow}, nil)
	_, _, err := broken.CreateLead(ctx, actor, leadRequest("9876543210"))
	if !utils.IsKind(err, utils.KindPersistence) {
		t.Fatalf("CreateLead() = %v, want PersistenceError", err)
	}
	var apiErr *utils.ApiError
	if !errors.As(err, &apiErr) || !apiErr.Retryable() {
		t.Errorf("persistence failure should be retryable: %v", err)
	}

	if n, _ := store.CountEntities(ctx, models.KindLead); n != 0 {
		t.Errorf("lead count after failed remark = %d, want 0", n)
	}

	ledger := service.NewLedgerService(store, utils.FixedClock{At: fixedNow}, nil)
	lead, _, err := ledger.CreateLead(ctx, actor, leadRequest("9876543210"))
	if err != nil {
		t.Fatalf("retry CreateLead() error: %v", err)
	}
	if lead.LeadNo != "LD001" {
		t.Errorf("number after rollback = %s, want LD001", lead.LeadNo)
	}
}

func TestLeadsDueToday(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	asha := seedEmployee(t, store, "Asha", "asha@example.com", "EMP001", models.UserRoleBASIC)
	admin := seedEmployee(t, store, "Admin", "admin@example.com", "EMP002", models.UserRoleADMIN)

	ledger := service.NewLedgerService(store, utils.FixedClock{At: fixedNow}, nil)
	mine := leadRequest("9000000001")
	theirs := leadRequest("9000000002")
	theirs.SalesPerson = "Ravi"
	for _, req := range []*models.LeadCreateRequest{mine, theirs} {
		if _, _, err := ledger.CreateLead(ctx, admin, req); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ledger.LeadsDueToday(ctx, asha)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SalesPerson != "Asha" {
		t.Errorf("basic user sees %d leads: %+v", len(got), got)
	}

	got, err = ledger.LeadsDueToday(ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("admin sees %d leads, want 2", len(got))
	}

	tomorrow := service.NewLedgerService(store, utils.FixedClock{At: fixedNow.AddDate(0, 0, 1)}, nil)
	got, err = tomorrow.LeadsDueToday(ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("leads due tomorrow = %d, want 0", len(got))
	}
}

func TestUpdateLeadCorrectsLeadSource(t *testing.T) {
	ledger, _, actor := newLedger(t)
	ctx := context.Background()

	if _, _, err := ledger.CreateLead(ctx, actor, leadRequest("9876543210")); err != nil {
		t.Fatal(err)
	}

	lead, _, err := ledger.UpdateLead(ctx, actor, "LD001", &models.LeadUpdateRequest{
		LeadSource: strPtr("Referral"),
		Remark:     "Source corrected",
	})
	if err != nil {
		t.Fatalf("UpdateLead() error: %v", err)
	}
	if lead.LeadSource != "Referral" || lead.ActualSource != "Showroom" {
		t.Errorf("sources = %q/%q, want Referral/Showroom", lead.LeadSource, lead.ActualSource)
	}

	_, _, err = ledger.UpdateLead(ctx, actor, "LD001", &models.LeadUpdateRequest{
		LeadSource: strPtr(""),
		Remark:     "Blank source",
	})
	if !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("blank leadSource = %v, want ValidationError", err)
	}
}
