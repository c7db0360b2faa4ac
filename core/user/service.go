package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

// SystemUsername is the reserved account that automated annotations (linter
// comments) are authored under. It cannot log in.
const SystemUsername = "checker"

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleStudent}
	}
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

// System returns the reserved checker account, creating it on first use.
// The account stays inactive so it never authenticates.
func (svc *Service) System(ctx context.Context) (User, error) {
	usr, err := svc.GetByUsername(ctx, SystemUsername)
	if err == nil {
		return usr, nil
	}
	if err != ErrNotFound {
		return User{}, err
	}

	now := time.Now().UTC()
	usr = User{
		Name:      "Checker",
		Username:  SystemUsername,
		IsActive:  false,
		Roles:     []string{RoleStaff},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = usr.SetPassword(uuid.New().String()); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Authenticate checks the given credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, uname, password string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return User{}, err
	}
	if err = usr.CheckPassword(password); err != nil {
		return User{}, ErrNotFound
	}
	now := time.Now().UTC()
	if err = svc.repo.UpdateLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = now
	return usr, nil
}
