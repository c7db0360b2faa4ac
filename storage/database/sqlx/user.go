package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (repo userRepository) row(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unrow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email.String,
		IsActive:     row.IsActive,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin.Time,
	}
}

var userColumns = []string{
	"id", "name", "username", "email", "is_active", "roles",
	"password_hash", "created_at", "updated_at", "last_login",
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	pred := sq.Or{sq.Eq{"username": username}}
	if email != "" {
		pred = append(pred, sq.Eq{"email": email})
	}
	builder := psql.Select("username", "email").From(`"user"`).Where(pred)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		builder = builder.Where(sq.NotEq{"id": ids})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(err, "building user uniqueness query")
	}

	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if row.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.row(usr)
	query, args, err := psql.Insert(`"user"`).
		Columns(userColumns...).
		Values(
			row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles,
			row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin,
		).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unrow(row), nil
}

func (repo userRepository) getUser(ctx context.Context, pred interface{}) (user.User, error) {
	query, args, err := psql.Select(userColumns...).From(`"user"`).Where(pred).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user query")
	}
	var row userRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.unrow(row), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"username": username})
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, sq.Or{sq.Eq{"username": username}, sq.Eq{"email": username}})
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	query, args, err := psql.Select(userColumns...).From(`"user"`).
		OrderBy(core.DBOrdering{Field: "created_at", Ascending: true}.String()).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unrow(row))
	}
	return users, nil
}

func (repo userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query, args, err := psql.Update(`"user"`).
		Set("last_login", at.UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building last-login update")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "updating last login")
	}
	return nil
}
