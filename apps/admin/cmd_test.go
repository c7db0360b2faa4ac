package main

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/exercise"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/storage/database"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

func TestMain(m *testing.M) {
	logger = log.New(ioutil.Discard, "", 0)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	m.Run()
}

func newTestCLI(t *testing.T) *commandLine {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	return &commandLine{
		usrSvc: user.NewService(dummydb.NewUserRepository(db)),
		exSvc:  exercise.NewService(dummydb.NewExerciseRepository(db)),
	}
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_cli_help(t *testing.T) {
	cli := newTestCLI(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: []string{"admin"}},
		{name: "unknown command", args: []string{"admin", "frobnicate"}},
		{name: "migrate without command", args: []string{"admin", "migrate"}},
		{name: "adduser without flags", args: []string{"admin", "adduser"}},
		{name: "addexercise without subject", args: []string{"admin", "addexercise"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, cli.run(tt.args), errHelp)
		})
	}
}

func Test_cli_migrate(t *testing.T) {
	cli := newTestCLI(t)

	var gotCommand string
	var gotArgs []string
	orig := migrateRunFunc
	migrateRunFunc = func(db *database.DB, command string, args ...string) error {
		gotCommand = command
		gotArgs = args
		return nil
	}
	t.Cleanup(func() { migrateRunFunc = orig })

	require.NoError(t, cli.run([]string{"admin", "migrate", "up-to", "5"}))
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, []string{"5"}, gotArgs)
}

func Test_cli_addUser(t *testing.T) {
	ctx := context.Background()

	t.Run("student", func(t *testing.T) {
		cli := newTestCLI(t)
		mockPassword(t, "S3cretPassw0rd!")

		require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "Pendo Mushi", "-username", "pendo"}))

		usr, err := cli.usrSvc.GetByUsername(ctx, "pendo")
		require.NoError(t, err)
		assert.Equal(t, "Pendo Mushi", usr.Name)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
		assert.NoError(t, usr.CheckPassword("S3cretPassw0rd!"))
	})

	t.Run("admin gets all roles", func(t *testing.T) {
		cli := newTestCLI(t)
		mockPassword(t, "S3cretPassw0rd!")

		require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "Head Teacher", "-username", "mkuu", "-admin"}))

		usr, err := cli.usrSvc.GetByUsername(ctx, "mkuu")
		require.NoError(t, err)
		assert.Equal(t, user.AllRoles, usr.Roles)
	})

	t.Run("empty password", func(t *testing.T) {
		cli := newTestCLI(t)
		mockPassword(t, "")

		assert.ErrorIs(t, cli.run([]string{"admin", "adduser", "-name", "X Y", "-username", "xyz"}), errHelp)
	})

	t.Run("duplicate username", func(t *testing.T) {
		cli := newTestCLI(t)
		mockPassword(t, "S3cretPassw0rd!")

		require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "First", "-username", "jina"}))
		err := cli.run([]string{"admin", "adduser", "-name", "Second", "-username", "jina"})

		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func Test_cli_addExercise(t *testing.T) {
	ctx := context.Background()

	t.Run("with due date", func(t *testing.T) {
		cli := newTestCLI(t)

		due := "2026-12-31T23:59:59Z"
		require.NoError(t, cli.run([]string{"admin", "addexercise", "-subject", "Binary Search", "-due", due, "-order", "3"}))

		exs, err := cli.exSvc.QueryAll(ctx)
		require.NoError(t, err)
		require.Len(t, exs, 1)
		assert.Equal(t, "Binary Search", exs[0].Subject)
		assert.Equal(t, 3, exs[0].Order)
		require.True(t, exs[0].DueDate.Valid)
		want, _ := time.Parse(time.RFC3339, due)
		assert.True(t, exs[0].DueDate.Time.Equal(want))
	})

	t.Run("bad due date", func(t *testing.T) {
		cli := newTestCLI(t)

		err := cli.run([]string{"admin", "addexercise", "-subject", "Hashing", "-due", "tomorrow"})
		assert.Error(t, err)
	})
}
