package sqlite3

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/JB-SelfCompany/mailvault/internal/storage/types"
)

type TableUsers struct {
	db                   *sql.DB
	writer               *Writer
	createUser           *sql.Stmt
	selectUserByUsername *sql.Stmt
	selectUserByID       *sql.Stmt
	updateUserPassword   *sql.Stmt
	countUsers           *sql.Stmt
}

const usersSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id			INTEGER PRIMARY KEY AUTOINCREMENT,
		username	TEXT NOT NULL UNIQUE,
		password	TEXT NOT NULL,
		created_at	INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at	INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
`

const insertUserStmt = `
	INSERT INTO users (username, password) VALUES ($1, $2)
	RETURNING id, created_at, updated_at
`

const selectUserByUsernameStmt = `
	SELECT id, username, password, created_at, updated_at FROM users
	WHERE username = $1
`

const selectUserByIDStmt = `
	SELECT id, username, password, created_at, updated_at FROM users
	WHERE id = $1
`

const updateUserPasswordStmt = `
	UPDATE users SET password = $1, updated_at = strftime('%s', 'now') WHERE id = $2
`

const countUsersStmt = `
	SELECT COUNT(*) FROM users
`

func NewTableUsers(db *sql.DB, writer *Writer) (*TableUsers, error) {
	t := &TableUsers{
		db:     db,
		writer: writer,
	}
	_, err := db.Exec(usersSchema)
	if err != nil {
		return nil, fmt.Errorf("db.Exec: %w", err)
	}
	t.createUser, err = db.Prepare(insertUserStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(insertUserStmt): %w", err)
	}
	t.selectUserByUsername, err = db.Prepare(selectUserByUsernameStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectUserByUsernameStmt): %w", err)
	}
	t.selectUserByID, err = db.Prepare(selectUserByIDStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectUserByIDStmt): %w", err)
	}
	t.updateUserPassword, err = db.Prepare(updateUserPasswordStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(updateUserPasswordStmt): %w", err)
	}
	t.countUsers, err = db.Prepare(countUsersStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(countUsersStmt): %w", err)
	}
	return t, nil
}

// UserCreate inserts a user with an already-hashed password.
func (t *TableUsers) UserCreate(username, passwordHash string) (*types.User, error) {
	user := &types.User{
		Username:     username,
		PasswordHash: passwordHash,
	}
	var created, updated int64
	err := t.writer.Do(func() error {
		return t.createUser.QueryRow(username, passwordHash).Scan(&user.ID, &created, &updated)
	})
	if err != nil {
		return nil, fmt.Errorf("createUser.QueryRow: %w", err)
	}
	user.CreatedAt = time.Unix(created, 0)
	user.UpdatedAt = time.Unix(updated, 0)
	return user, nil
}

func (t *TableUsers) UserByUsername(username string) (*types.User, error) {
	return scanUser(t.selectUserByUsername.QueryRow(username))
}

func (t *TableUsers) UserByID(id int64) (*types.User, error) {
	return scanUser(t.selectUserByID.QueryRow(id))
}

func (t *TableUsers) UserUpdatePassword(id int64, passwordHash string) error {
	return t.writer.Do(func() error {
		_, err := t.updateUserPassword.Exec(passwordHash, id)
		if err != nil {
			return fmt.Errorf("updateUserPassword.Exec: %w", err)
		}
		return nil
	})
}

func (t *TableUsers) UserCount() (int64, error) {
	var count int64
	if err := t.countUsers.QueryRow().Scan(&count); err != nil {
		return 0, fmt.Errorf("countUsers.QueryRow: %w", err)
	}
	return count, nil
}

func scanUser(row *sql.Row) (*types.User, error) {
	var user types.User
	var created, updated int64
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &created, &updated)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = time.Unix(created, 0)
	user.UpdatedAt = time.Unix(updated, 0)
	return &user, nil
}
