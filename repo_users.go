package auth

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// securityColumns are the account fields the Auther mutates. Persist writes
// exactly these, nothing else, guarded by the version column.
var securityColumns = []string{
	"login_failed_count",
	"is_blocked",
	"blocked_until",
	"last_login_date",
	"refresh_token",
	"refresh_token_expiry",
	"version",
	"updated_at",
}

// Users is the bun-backed credential store. It layers the CredentialStore
// contract the core needs over the generic repository.
type Users interface {
	repository.Repository[*User]
	CredentialStore
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users           = (*users)(nil)
	_ CredentialStore = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.findBy(ctx, "email", email)
}

func (a *users) FindByUsername(ctx context.Context, username string) (*User, error) {
	return a.findBy(ctx, "username", username)
}

func (a *users) findBy(ctx context.Context, column, value string) (*User, error) {
	record := &User{}

	err := a.db.NewSelect().
		Model(record).
		Relation("Roles").
		Relation("Claims").
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return record, nil
}

// VerifyPassword checks the plaintext against the stored hash. The hash
// never leaves the store layer.
func (a *users) VerifyPassword(user *User, plaintext string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return ComparePasswordAndHash(plaintext, user.PasswordHash) == nil
}

// CreateAccount hashes the password and inserts the record. The caller owns
// duplicate checks; unique constraints are the backstop.
func (a *users) CreateAccount(ctx context.Context, user *User, plaintext string) error {
	hash, err := HashPassword(plaintext)
	if err != nil {
		return err
	}

	prepareUserDefaults(user)
	user.PasswordHash = hash

	_, err = a.Repository.Create(ctx, user)
	return err
}

func (a *users) AssignRole(ctx context.Context, user *User, role UserRole) error {
	assignment := &RoleAssignment{
		ID:     uuid.New(),
		UserID: user.ID,
		Role:   role,
	}

	if _, err := a.db.NewInsert().Model(assignment).Exec(ctx); err != nil {
		return err
	}

	user.Roles = append(user.Roles, assignment)
	return nil
}

// Persist writes the mutated security columns in one statement. The version
// check rejects writes based on a stale read so parallel attempts against
// the same account serialize instead of losing updates; callers re-read and
// replay on NewConcurrentUpdateError.
func (a *users) Persist(ctx context.Context, user *User) error {
	readVersion := user.Version
	user.Version = readVersion + 1
	now := time.Now()
	user.UpdatedAt = &now

	res, err := a.db.NewUpdate().
		Model(user).
		Column(securityColumns...).
		Where("?TableAlias.id = ?", user.ID).
		Where("?TableAlias.version = ?", readVersion).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)

	if err != nil {
		user.Version = readVersion
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		user.Version = readVersion
		return err
	}

	if rows == 0 {
		user.Version = readVersion
		return NewConcurrentUpdateError(user.ID.String())
	}

	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
