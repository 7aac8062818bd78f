package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/user"
)

const userColumns = `id, name, username, email, is_active, is_subscribed, roles, password_hash, created_at, updated_at, last_login`

var userOrderFields = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	IsSubscribed bool           `db:"is_subscribed"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo userRepository) toRow(usr user.User) userRow {
	isActive := true
	if usr.IsActive != nil {
		isActive = *usr.IsActive
	}
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		IsActive:     isActive,
		IsSubscribed: usr.IsSubscribed,
		Roles:        roles,
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    nullTime(usr.CreatedAt),
		UpdatedAt:    nullTime(usr.UpdatedAt),
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsSubscribed: row.IsSubscribed,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time.UTC(),
		UpdatedAt:    row.UpdatedAt.Time.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
	usr.SetActive(row.IsActive)
	return usr
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := `SELECT ` + userColumns + ` FROM "user" WHERE (username = ? OR email = ?)`
	args := []interface{}{nullString(username), nullString(email)}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	q, args, err := sqlx.In(q+` LIMIT 1`, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	exe := repo.getExec(exec)
	var row userRow
	if err = exe.GetContext(ctx, &row, exe.Rebind(q), args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if username != "" && row.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)
	_, err := repo.getExec(exec).NamedExecContext(ctx, `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :is_active, :is_subscribed, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, "(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)")
			args = append(args, val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, "EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ?)")
				args = append(args, role+"%")
			}
			where = append(where, "("+strings.Join(roleConds, " OR ")+")")
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if filter.IsSubscribed != nil {
			where = append(where, "is_subscribed = ?")
			args = append(args, *filter.IsSubscribed)
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= ?")
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= ?")
			args = append(args, filter.CreatedTo.UTC())
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := userOrderFields[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "created_at ASC")
	}
	q += " ORDER BY " + strings.Join(orderList, ", ")

	exe := repo.getExec(exec)
	var rows []userRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		cond string
		args []interface{}
	)

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, args = "id = ?", []interface{}{filter.ID}
	case filter.Username != "":
		cond, args = "username = ?", []interface{}{filter.Username}
	case filter.Email != "":
		cond, args = "email = ?", []interface{}{filter.Email}
	case len(filter.UsernameOrEmail) > 0:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		cond, args = "(username = ? OR email = ?)", []interface{}{uname, email}
	default:
		return user.User{}, user.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row userRow
	q := fmt.Sprintf(`SELECT %s FROM "user" WHERE %s LIMIT 1`, userColumns, cond)
	if err := exe.GetContext(ctx, &row, exe.Rebind(q), args...); err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.toRow(usr)
	res, err := repo.getExec(exec).NamedExecContext(ctx, `
		UPDATE "user" SET
			name = :name, username = :username, email = :email, is_active = :is_active,
			is_subscribed = :is_subscribed, roles = :roles, password_hash = :password_hash,
			updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = expectOne(res, user.ErrNotFound, "updating user"); err != nil {
		return user.User{}, err
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

// DeleteUsersByID removes users; their progress goes with them (ON DELETE CASCADE).
func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}
