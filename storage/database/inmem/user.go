package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/user"
)

type userRepository struct {
	conn
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{conn{db: db}}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.tables().users))
	for _, u := range repo.tables().users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	defer repo.rlock()()

	for _, usr := range repo.query() {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	defer repo.lock()()

	usr.ID = uuid.New().String()
	repo.tables().users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	defer repo.rlock()()

	users := repo.query()
	if filter != nil && !filter.IsEmpty() {
		filtered := users[:0]
		for _, usr := range users {
			if matchesFilter(usr, filter) {
				filtered = append(filtered, usr)
			}
		}
		users = filtered
	}

	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		sort.SliceStable(users, func(a, b int) bool {
			if ord.Ascending {
				return userFieldLess(users[a], users[b], ord.Field)
			}
			return userFieldLess(users[b], users[a], ord.Field)
		})
	}
	return users, nil
}

func matchesFilter(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), s) &&
			!strings.Contains(usr.Username, s) &&
			!strings.Contains(usr.Email, s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && (usr.IsActive == nil || *usr.IsActive != *filter.IsActive) {
		return false
	}
	if filter.IsSubscribed != nil && usr.IsSubscribed != *filter.IsSubscribed {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func userFieldLess(a, b user.User, field string) bool {
	switch field {
	case "name":
		return a.Name < b.Name
	case "username":
		return a.Username < b.Username
	case "email":
		return a.Email < b.Email
	case "last_login":
		return a.LastLogin.Before(b.LastLogin)
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	defer repo.rlock()()

	if filter.ID != "" {
		if usr, ok := repo.tables().users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	var uname, email string
	switch {
	case filter.Username != "":
		uname = filter.Username
	case filter.Email != "":
		email = filter.Email
	case len(filter.UsernameOrEmail) > 0:
		uname = filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
	default:
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.query() {
		if (uname != "" && usr.Username == uname) || (email != "" && usr.Email == email) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	defer repo.lock()()

	if _, ok := repo.tables().users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.tables().users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	defer repo.lock()()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.tables().users[id]; ok {
			repo.tables().deleteUserProgress(id)
			delete(repo.tables().users, id)
			cnt++
		}
	}
	return cnt, nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}
