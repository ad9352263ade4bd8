package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/config"
	"github.com/Mishari713/BMS/database"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/openlibrary"
	"github.com/Mishari713/BMS/patch"
	"github.com/Mishari713/BMS/policy"
	"github.com/Mishari713/BMS/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeLookup struct {
	info openlibrary.BookInfo
	err  error
}

func (f *fakeLookup) FindByName(context.Context, string) (openlibrary.BookInfo, error) {
	return f.info, f.err
}

type fixture struct {
	db      *gorm.DB
	users   UserService
	books   BookService
	auth    AuthService
	tokens  *auth.TokenService
	catalog *fakeLookup
}

func newFixture(t *testing.T, scope string) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedRoles(db, zap.NewNop().Sugar()))

	log := zap.NewNop()
	tokens := auth.NewTokenService(config.JWTConfig{Secret: "s", Expiration: time.Hour, CookieName: "bms"}, nil)
	users := NewUserService(repositories.NewUserRepository(db), repositories.NewRoleRepository(db), log)
	catalog := &fakeLookup{}
	return &fixture{
		db:      db,
		users:   users,
		books:   NewBookService(repositories.NewBookRepository(db), users, catalog, log),
		auth:    NewAuthService(users, tokens, auth.NewMemorySessionGate(), scope, nil, log),
		tokens:  tokens,
		catalog: catalog,
	}
}

func (f *fixture) signup(t *testing.T, username string, roles ...string) *models.User {
	t.Helper()
	require.NoError(t, f.users.Create(&SignupRequest{
		Username: username,
		Email:    username + "@email.com",
		Password: "password1",
		Role:     roles,
	}))
	u, err := f.users.FindByUsername(username)
	require.NoError(t, err)
	return u
}

func principalOf(u *models.User) policy.Principal {
	return policy.Principal{Username: u.Username, Roles: u.RoleNames()}
}

func assertAppError(t *testing.T, err error, kind apperrors.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.From(err)
	assert.Equal(t, kind, appErr.Kind)
	assert.Equal(t, message, appErr.Message)
}

func TestUserCreate(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)

	u := f.signup(t, "Alice", "AUTHOR", "bogus")
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@email.com", u.Email)
	assert.ElementsMatch(t, []models.RoleName{models.RoleAuthor, models.RoleUser}, u.RoleNames())
	assert.NotEqual(t, "password1", u.PasswordHash)

	plain := f.signup(t, "bob")
	assert.Equal(t, []models.RoleName{models.RoleUser}, plain.RoleNames())

	err := f.users.Create(&SignupRequest{Username: "ALICE", Email: "other@email.com", Password: "password1"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: Username is already taken!")

	err = f.users.Create(&SignupRequest{Username: "carol", Email: "Alice@Email.com", Password: "password1"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: Email is already in use!")

	err = f.users.Create(&SignupRequest{Username: "dave", Email: "dave@email.com", Password: "123"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindBadRequest))
}

func TestUserFind(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	u := f.signup(t, "alice")

	found, err := f.users.FindByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)

	_, err = f.users.FindByID(999)
	assertAppError(t, err, apperrors.KindNotFound, "User id: 999 doesn't exists")

	_, err = f.users.FindByUsername("ghost")
	assertAppError(t, err, apperrors.KindNotFound, "Username: ghost doesn't exists")

	all, err := f.users.FindAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUserUpdate(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	admin := principalOf(f.signup(t, "root", "admin"))
	u := f.signup(t, "alice")
	f.signup(t, "bob")

	updated, err := f.users.Update(admin, u.ID, patch.Patch{"email": "New@Email.com", "roles": []any{"author"}, "password": "changed1"})
	require.NoError(t, err)
	assert.Equal(t, "new@email.com", updated.Email)
	assert.Equal(t, "alice", updated.Username)
	assert.Equal(t, []models.RoleName{models.RoleAuthor}, updated.RoleNames())
	assert.True(t, auth.CheckPassword(updated.PasswordHash, "changed1"))

	_, err = f.users.Update(admin, u.ID, patch.Patch{"username": "bob"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: Username is already taken!")

	_, err = f.users.Update(admin, u.ID, patch.Patch{"id": float64(42)})
	assertAppError(t, err, apperrors.KindBadRequest, fmt.Sprintf("User id is not allowed in request body - %d", u.ID))

	_, err = f.users.Update(admin, u.ID, patch.Patch{"password": "a"})
	assertAppError(t, err, apperrors.KindBadRequest, "Field 'password' size must be between 6 and 40")

	_, err = f.users.Update(admin, 999, patch.Patch{"email": "x@email.com"})
	assertAppError(t, err, apperrors.KindNotFound, "User id: 999 doesn't exists")

	_, err = f.users.Update(principalOf(u), u.ID, patch.Patch{"email": "x@email.com"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestUserDeleteCascades(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	admin := principalOf(f.signup(t, "root", "admin"))
	u := f.signup(t, "alice", "author")
	_, err := f.books.Create(&BookRequest{Title: "T", Author: "A", Description: "D", Username: "alice"})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(admin, u.ID))

	_, err = f.books.FindByTitle("t")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	err = f.users.Delete(admin, u.ID)
	assertAppError(t, err, apperrors.KindNotFound, fmt.Sprintf("User id: %d doesn't exists", u.ID))
}

func TestFindOrCreateOAuth2(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	f.signup(t, "janedoe")

	u, err := f.users.FindOrCreateOAuth2(auth.OAuth2Identity{Email: "Jane@Gmail.com", Name: "Jane Doe"}, "google")
	require.NoError(t, err)
	assert.Equal(t, "jane", u.Username)
	assert.Equal(t, "jane@gmail.com", u.Email)
	assert.Equal(t, models.AuthProvider("GOOGLE"), u.Provider)
	assert.Equal(t, models.OAuth2Password, u.PasswordHash)
	assert.Equal(t, []models.RoleName{models.RoleUser}, u.RoleNames())

	again, err := f.users.FindOrCreateOAuth2(auth.OAuth2Identity{Email: "jane@gmail.com"}, "google")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestBookCreateAndFind(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	f.signup(t, "alice", "author")

	book, err := f.books.Create(&BookRequest{Title: "Title A", Author: "Auth A", Description: "Desc", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "title a", book.Title)
	assert.Equal(t, "auth a", book.AuthorName)

	found, err := f.books.FindByTitle("title a")
	require.NoError(t, err)
	assert.Equal(t, book.ID, found.ID)
	assert.Equal(t, "alice", found.OwnerUsername())

	byAuthor, err := f.books.FindAllByAuthorName("auth a")
	require.NoError(t, err)
	assert.Len(t, byAuthor, 1)

	_, err = f.books.Create(&BookRequest{Title: "title a", Author: "x", Description: "y", Username: "alice"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: A book with this title already exists.")

	_, err = f.books.Create(&BookRequest{Title: "other", Author: "x", Description: "y", Username: "ghost"})
	assertAppError(t, err, apperrors.KindNotFound, "Username: ghost doesn't exists")

	_, err = f.books.FindByID(404)
	assertAppError(t, err, apperrors.KindNotFound, "Book id : 404 doesn't exists")
	_, err = f.books.FindByTitle("missing")
	assertAppError(t, err, apperrors.KindNotFound, "Book title : missing doesn't exists")
}

func TestBookUpdateAndDelete(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	owner := principalOf(f.signup(t, "alice", "author"))
	other := principalOf(f.signup(t, "bob", "author"))
	admin := principalOf(f.signup(t, "root", "admin"))
	book, err := f.books.Create(&BookRequest{Title: "title a", Author: "auth a", Description: "d", Username: "alice"})
	require.NoError(t, err)

	updated, err := f.books.Update(owner, book.ID, patch.Patch{"title": "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "auth a", updated.AuthorName)

	_, err = f.books.Update(owner, book.ID, patch.Patch{"id": float64(99)})
	assertAppError(t, err, apperrors.KindBadRequest, fmt.Sprintf("Book id is not allowed in request body - %d", book.ID))

	_, err = f.books.Update(other, book.ID, patch.Patch{"title": "stolen"})
	assertAppError(t, err, apperrors.KindUnauthorized, policy.OwnerOnlyMessage)

	_, err = f.books.Update(other, 999, patch.Patch{"title": "x"})
	assertAppError(t, err, apperrors.KindNotFound, "Book id : 999 doesn't exists")

	reloaded, err := f.books.FindByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", reloaded.Title)
	assert.Equal(t, "alice", reloaded.OwnerUsername())

	cased, err := f.books.Update(owner, book.ID, patch.Patch{"title": "New Title", "authorName": "Frank"})
	require.NoError(t, err)
	assert.Equal(t, "new title", cased.Title)
	assert.Equal(t, "frank", cased.AuthorName)

	byTitle, err := f.books.FindByTitle("New Title")
	require.NoError(t, err)
	assert.Equal(t, book.ID, byTitle.ID)
	byAuthor, err := f.books.FindAllByAuthorName("FRANK")
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, book.ID, byAuthor[0].ID)

	_, err = f.books.Create(&BookRequest{Title: "NEW TITLE", Author: "x", Description: "d", Username: "alice"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: A book with this title already exists.")

	other2, err := f.books.Create(&BookRequest{Title: "second", Author: "x", Description: "d", Username: "alice"})
	require.NoError(t, err)
	_, err = f.books.Update(owner, other2.ID, patch.Patch{"title": "NEW title"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: A book with this title already exists.")

	err = f.books.Delete(other, book.ID)
	assertAppError(t, err, apperrors.KindUnauthorized, policy.OwnerOnlyMessage)
	require.NoError(t, f.books.Delete(admin, book.ID))
	_, err = f.books.FindByID(book.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestFindInOpenLibrary(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)

	f.catalog.info = openlibrary.BookInfo{Title: "Dune", Author: "Frank Herbert"}
	info, err := f.books.FindInOpenLibrary(context.Background(), "dune")
	require.NoError(t, err)
	assert.Equal(t, "Dune", info.Title)

	f.catalog.err = openlibrary.ErrNotFound
	_, err = f.books.FindInOpenLibrary(context.Background(), "zzz")
	assertAppError(t, err, apperrors.KindBadRequest, "No book found in Open Library for 'zzz'")

	f.catalog.err = errors.New("timeout")
	_, err = f.books.FindInOpenLibrary(context.Background(), "dune")
	assertAppError(t, err, apperrors.KindInternal, apperrors.InternalMessage)
}

func TestSignInSessionGate(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	ctx := context.Background()
	f.signup(t, "alice")
	f.signup(t, "bob")

	err := f.auth.SignOut(ctx, "")
	assertAppError(t, err, apperrors.KindBadRequest, "Error: No active session detected")

	token, err := f.auth.SignIn(ctx, &SigninRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = f.auth.SignIn(ctx, &SigninRequest{Username: "alice", Password: "password1"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: Only 1 active session is allowed")
	_, err = f.auth.SignIn(ctx, &SigninRequest{Username: "bob", Password: "password1"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: Only 1 active session is allowed")

	require.NoError(t, f.auth.SignOut(ctx, token))
	_, err = f.tokens.Validate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	_, err = f.auth.SignIn(ctx, &SigninRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
}

func TestSignInFailureReleasesGate(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	ctx := context.Background()
	f.signup(t, "alice")

	_, err := f.auth.SignIn(ctx, &SigninRequest{Username: "alice", Password: "wrong-pass"})
	assertAppError(t, err, apperrors.KindUnauthorized, "Invalid username or password")

	_, err = f.auth.SignIn(ctx, &SigninRequest{Username: "ghost", Password: "whatever"})
	assertAppError(t, err, apperrors.KindUnauthorized, "Invalid username or password")

	_, err = f.auth.SignIn(ctx, &SigninRequest{Username: "alice", Password: "password1"})
	assert.NoError(t, err)
}

func TestSignInRejectsOAuth2Account(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	_, err := f.users.FindOrCreateOAuth2(auth.OAuth2Identity{Email: "g@gmail.com", Name: "G User"}, "google")
	require.NoError(t, err)

	_, err = f.auth.SignIn(context.Background(), &SigninRequest{Username: "guser", Password: models.OAuth2Password})
	assertAppError(t, err, apperrors.KindBadRequest, "This account uses OAuth2 login. Please sign in with Google.")
}

func TestSignInPerUserScope(t *testing.T) {
	f := newFixture(t, auth.SessionScopeUser)
	ctx := context.Background()
	f.signup(t, "alice")
	f.signup(t, "bob")

	aliceToken, err := f.auth.SignIn(ctx, &SigninRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	_, err = f.auth.SignIn(ctx, &SigninRequest{Username: "bob", Password: "password1"})
	require.NoError(t, err)
	_, err = f.auth.SignIn(ctx, &SigninRequest{Username: "alice", Password: "password1"})
	assertAppError(t, err, apperrors.KindBadRequest, "Error: Only 1 active session is allowed")

	err = f.auth.SignOut(ctx, "")
	assertAppError(t, err, apperrors.KindBadRequest, "Error: No active session detected")
	require.NoError(t, f.auth.SignOut(ctx, aliceToken))
}

func TestOAuth2Login(t *testing.T) {
	f := newFixture(t, auth.SessionScopeGlobal)
	ctx := context.Background()
	token, err := f.auth.OAuth2Login(ctx, auth.OAuth2Identity{Email: "new@gmail.com", Name: "New Person"}, "google")
	require.NoError(t, err)

	claims, err := f.tokens.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "newperson", claims.Username)
}
