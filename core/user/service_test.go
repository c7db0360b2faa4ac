package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

func setup(t *testing.T) *user.Service {
	t.Helper()

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db, err := dummydb.Open()
	require.NoError(t, err)
	return user.NewService(dummydb.NewUserRepository(db))
}

func TestService_Create_defaultsToStudentRole(t *testing.T) {
	svc := setup(t)

	usr, err := svc.Create(context.Background(), user.NewUser{
		Name:     "Asha Bakari",
		Username: "asha",
		Password: "S3cretPassw0rd!",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsStudent())
	assert.False(t, usr.IsManager())
}

func TestService_Authenticate(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, user.NewUser{
		Name:     "Juma Hassan",
		Username: "juma",
		Email:    "juma@test.local",
		Password: "S3cretPassw0rd!",
	})
	require.NoError(t, err)

	// by username
	usr, err := svc.Authenticate(ctx, "juma", "S3cretPassw0rd!")
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())

	// by email
	_, err = svc.Authenticate(ctx, "juma@test.local", "S3cretPassw0rd!")
	require.NoError(t, err)

	// wrong password is indistinguishable from a missing user
	_, err = svc.Authenticate(ctx, "juma", "wrong")
	assert.Equal(t, user.ErrNotFound, err)

	_, err = svc.Authenticate(ctx, "nobody", "S3cretPassw0rd!")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestNewUser_Validate_uniqueness(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, user.NewUser{
		Name:     "Neema Juma",
		Username: "neema",
		Email:    "neema@test.local",
		Password: "S3cretPassw0rd!",
	})
	require.NoError(t, err)

	nu := user.NewUser{
		Name:            "Neema Imposter",
		Username:        "neema",
		Email:           "other@test.local",
		Password:        "S3cretPassw0rd!",
		PasswordConfirm: "S3cretPassw0rd!",
	}
	err = nu.Validate(svc)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "username", vErr.Fields[0].Field)
}

func TestNewUser_Validate_passwordPolicy(t *testing.T) {
	svc := setup(t)

	tests := []struct {
		name string
		pwd  string
	}{
		{"too short", "Ab1!"},
		{"all numeric", "1234567890"},
		{"similar to username", "pendo_mushi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := user.NewUser{
				Name:            "Pendo Mushi",
				Username:        "pendo_mushi",
				Email:           "pendo@test.local",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := nu.Validate(svc)
			var vErrs validator.ValidationErrors
			require.ErrorAs(t, err, &vErrs)
		})
	}
}

func TestNewUser_Validate_rejectsUnknownRoles(t *testing.T) {
	svc := setup(t)

	nu := user.NewUser{
		Name:            "Zuri Owner",
		Username:        "zuri",
		Password:        "S3cretPassw0rd!",
		PasswordConfirm: "S3cretPassw0rd!",
		Roles:           []string{"superuser"},
	}
	err := nu.Validate(svc)
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
}
