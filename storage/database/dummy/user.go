package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/user"
)

type userRepository struct {
	conn
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{conn{db: db}}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string) error {
	return repo.read(func(t *tables) error {
		for _, usr := range t.users {
			if username != "" && usr.Username == username {
				return user.ErrUsernameExists
			}
			if email != "" && usr.Email == email {
				return user.ErrEmailExists
			}
		}
		return nil
	})
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.write(func(t *tables) error {
		usr.ID = uuid.New().String()
		usr.Roles = append([]string(nil), usr.Roles...)
		t.users[usr.ID] = usr
		return nil
	})
	return usr, err
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.read(func(t *tables) error {
		for _, usr := range t.users {
			if matchUser(usr, filter) {
				users = append(users, usr)
			}
		}
		return nil
	})
	sortUsers(users, ordering)
	return users, err
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var usr user.User
	err := repo.read(func(t *tables) error {
		var ok bool
		if usr, ok = t.users[id]; !ok {
			return user.ErrNotFound
		}
		return nil
	})
	return usr, err
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var usr user.User
	err := repo.read(func(t *tables) error {
		for _, u := range t.users {
			if u.Username == username || u.Email == username {
				usr = u
				return nil
			}
		}
		return user.ErrNotFound
	})
	return usr, err
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	return repo.write(func(t *tables) error {
		for _, id := range ids {
			t.deleteUser(id)
		}
		return nil
	})
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	// users with search keyword matching any Name, Username or Email ?
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(usr.Username), search) ||
			strings.Contains(strings.ToLower(usr.Email), search) ||
			strings.Contains(strings.ToLower(usr.Name), search)) {
			return false
		}
	}
	// users with any of the specified roles
	if len(filter.Roles) > 0 {
		var found bool
		for _, r := range filter.Roles {
			if usr.RoleStartsWith(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	return true
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "username", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := userField(users[i], ord.Field), userField(users[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return users[i].ID < users[j].ID
	})
}

func userField(usr user.User, field string) string {
	switch field {
	case "name":
		return usr.Name
	case "email":
		return usr.Email
	case "created_at":
		return usr.CreatedAt.Format("20060102150405.000000")
	default:
		return usr.Username
	}
}
