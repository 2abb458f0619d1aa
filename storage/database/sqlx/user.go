package sqlxrepos

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/user"
)

const userColumns = "id, name, username, email, is_active, roles, created_at, updated_at"

type userRepository struct {
	conn
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{conn{db: db}}
}

// userRow scans the roles array, which User does not map.
type userRow struct {
	user.User
	Roles pq.StringArray `db:"roles"`
}

func (r userRow) toUser() user.User {
	usr := r.User
	usr.Roles = []string(r.Roles)
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	return usr
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string) error {
	var rows []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	q := "SELECT username, email FROM users WHERE username = $1 OR email = $2"
	if err := repo.exec().SelectContext(ctx, &rows, q, username, email); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && r.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (name, username, email, is_active, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := repo.exec().GetContext(ctx, &usr.ID, q,
		usr.Name, usr.Username, usr.Email, usr.IsActive, pq.Array(usr.Roles), usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		return user.User{}, trapConstraintErr(err, map[string]error{
			"uq_users_username": user.ErrUsernameExists,
			"uq_users_email":    user.ErrEmailExists,
		})
	}
	return usr, nil
}

var userOrderingColumns = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			where.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", "%"+filter.Search+"%")
		}
		if len(filter.Roles) > 0 {
			prefixes := make([]string, len(filter.Roles))
			for i, r := range filter.Roles {
				prefixes[i] = r + "%"
			}
			where.add("EXISTS (SELECT 1 FROM unnest(roles) AS r WHERE r LIKE ANY (?))", pq.Array(prefixes))
		}
		if filter.IsActive != nil {
			where.add("is_active = ?", *filter.IsActive)
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "username", Ascending: true}}
	}
	q := "SELECT " + userColumns + " FROM users" + where.String() + orderBy(ordering, userOrderingColumns, "id")

	var rows []userRow
	if err := repo.exec().SelectContext(ctx, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	q := "SELECT " + userColumns + " FROM users WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &row, q, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var row userRow
	q := "SELECT " + userColumns + " FROM users WHERE username = $1 OR email = $1 LIMIT 1"
	if err := repo.exec().GetContext(ctx, &row, q, username); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.exec().ExecContext(ctx, "DELETE FROM users WHERE id::text = ANY ($1)", pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}
