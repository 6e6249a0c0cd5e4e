package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/utils"
)

// AuthService signs employees in and manages their accounts.
type AuthService struct {
	store repository.Store
	clock utils.Clock
}

// NewAuthService wires the service. clock defaults to the wall clock.
func NewAuthService(store repository.Store, clock utils.Clock) *AuthService {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &AuthService{store: store, clock: clock}
}

// Login checks the credentials and returns a signed session token.
// Unknown emails and wrong passwords share one error so callers cannot probe
// for accounts.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if req == nil {
		return nil, utils.CreateBadRequestError("request body required")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, utils.CreatePersistenceError("failed to load user", err)
	}
	if user == nil || !utils.VerifyPassword(req.Password, user.Password) {
		utils.Logger.Info().Str("email", email).Msg("login rejected: bad credentials")
		return nil, utils.NewApiError(utils.KindNotAuthenticated, "invalid email or password", http.StatusUnauthorized, "INVALID_CREDENTIALS")
	}
	if user.Restricted {
		utils.Logger.Info().Str("email", email).Msg("login rejected: account restricted")
		return nil, utils.NewApiError(utils.KindForbidden, "account is restricted", http.StatusForbidden, "ACCOUNT_RESTRICTED")
	}

	token, err := utils.GenerateToken(user, s.clock.Now())
	if err != nil {
		return nil, utils.CreatePersistenceError("failed to sign token", err)
	}

	utils.Logger.Info().Str("email", email).Str("empNo", user.EmpNo).Msg("login succeeded")
	return &models.LoginResponse{
		Token: token,
		User: models.ActingUser{
			ID:       user.ID.Hex(),
			Email:    user.Email,
			Username: user.Username,
			EmpNo:    user.EmpNo,
			UserType: user.UserType,
			Role:     user.Role,
		},
	}, nil
}

// CreateEmployee registers a new employee. Only administrators may call it.
func (s *AuthService) CreateEmployee(ctx context.Context, actor *models.ActingUser, req *models.NewEmployeeRequest) (*models.User, error) {
	if actor == nil || actor.Email == "" {
		return nil, utils.CreateUnauthorizedError()
	}
	if !actor.IsAdmin() {
		return nil, utils.CreateForbiddenError()
	}
	if req == nil {
		return nil, utils.CreateBadRequestError("request body required")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:          req.Username,
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		UserType:          req.UserType,
		Role:              req.Role,
		Contact:           req.Contact,
		AltContact:        req.AltContact,
		Address:           req.Address,
		City:              req.City,
		GovtID:            req.GovtID,
		ReportingManager:  req.ReportingManager,
		ReferenceEmployee: req.ReferenceEmployee,
	}
	if err := s.insertEmployee(ctx, user, req.Password); err != nil {
		return nil, err
	}

	utils.Logger.Info().
		Str("empNo", user.EmpNo).
		Str("createdBy", actor.Email).
		Msg("employee created")
	return user, nil
}

func (s *AuthService) insertEmployee(ctx context.Context, user *models.User, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return utils.CreatePersistenceError("failed to hash password", err)
	}
	now := s.clock.Now()
	user.Password = hash
	user.CreatedAt = now
	user.UpdatedAt = now

	const duplicate = "employee with this email already exists"
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.store.FindUserByEmail(ctx, user.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return utils.CreateDuplicateEntityError(duplicate)
		}
		n, err := s.store.NextSequence(ctx, models.KindEmployee)
		if err != nil {
			return err
		}
		user.EmpNo = models.FormatSequenceNo(models.KindEmployee, n)
		return s.store.InsertUser(ctx, user)
	})
	return storeError(err, duplicate)
}

// EnsureAdminAccount creates the bootstrap administrator when no
// administrator exists yet.
func (s *AuthService) EnsureAdminAccount(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	count, err := s.store.CountUsersByRole(ctx, models.UserRoleADMIN)
	if err != nil {
		return utils.CreatePersistenceError("failed to count administrators", err)
	}
	if count > 0 {
		return nil
	}

	admin := &models.User{
		Username: "admin",
		Email:    strings.ToLower(strings.TrimSpace(email)),
		UserType: "admin",
		Role:     models.UserRoleADMIN,
	}
	if err := s.insertEmployee(ctx, admin, password); err != nil {
		return err
	}
	utils.Logger.Info().Str("email", admin.Email).Str("empNo", admin.EmpNo).Msg("default administrator created")
	return nil
}

// SeedCounters raises each sequence counter to at least the number of
// existing records so numbers never collide with rows written before the
// counters existed.
func SeedCounters(ctx context.Context, store repository.CounterStore) error {
	for _, kind := range []models.EntityKind{models.KindLead, models.KindChannelPartner, models.KindEmployee} {
		count, err := store.CountEntities(ctx, kind)
		if err != nil {
			return err
		}
		if err := store.SeedSequence(ctx, kind, count); err != nil {
			return err
		}
		utils.Logger.Debug().Str("kind", string(kind)).Int64("floor", count).Msg("counter seeded")
	}
	return nil
}
