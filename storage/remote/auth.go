package remote

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type AuthEvent string

const (
	SignedIn     AuthEvent = "SIGNED_IN"
	SignedOut    AuthEvent = "SIGNED_OUT"
	UserSignedUp AuthEvent = "USER_SIGNED_UP"
)

type (
	AuthUser struct {
		ID     string // auth account
		Email  string
		UserID string // users.id
	}

	AuthSession struct {
		ID          string
		AccessToken string
		ExpiresAt   time.Time
		User        AuthUser
	}

	// AuthListener receives auth state changes; sess is nil on SignedOut.
	AuthListener func(event AuthEvent, sess *AuthSession)

	Auth interface {
		SignInWithPassword(ctx context.Context, email, password string) (AuthSession, error)
		SignUp(ctx context.Context, email, password, userID string) (AuthSession, error)
		// CreateAccount registers an account for userID without signing anyone in.
		CreateAccount(ctx context.Context, email, password, userID string) (AuthUser, error)
		// UpdatePassword replaces the secret of the accounts of userID. It reports how many
		// accounts it changed.
		UpdatePassword(ctx context.Context, userID, password string) (int, error)
		// SignOut revokes the current access token.
		SignOut(ctx context.Context) error
		GetSession(ctx context.Context) (AuthSession, bool)
		OnAuthStateChange(fn AuthListener) (unsubscribe func())
	}
)

var (
	BcryptCost = bcrypt.DefaultCost // mockable
	NowFunc    = time.Now           // mockable

	errBadCredentials = NewError(CodeInvalidCredentials, "invalid login credentials", nil)
)

type tokenClaims struct {
	jwt.StandardClaims
	Email  string `json:"email"`
	UserID string `json:"user_id"`
}

// passwordAuth keeps accounts in TableAccounts and sign-ins in TableSessions of the
// very client it authenticates against.
type passwordAuth struct {
	tables Tables
	secret []byte
	ttl    time.Duration

	dummyOnce sync.Once
	dummyHash []byte

	mu        sync.RWMutex
	current   *AuthSession
	listeners map[int]AuthListener
	nextID    int
}

var _ Auth = (*passwordAuth)(nil) // interface compliance check

// NewAuth returns the Auth sub-interface over tables. secret signs access tokens.
func NewAuth(tables Tables, secret []byte, ttl time.Duration) Auth {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &passwordAuth{
		tables:    tables,
		secret:    secret,
		ttl:       ttl,
		listeners: make(map[int]AuthListener),
	}
}

// dummy is compared against when the account does not exist so that unknown emails
// cost one bcrypt comparison like known ones.
func (a *passwordAuth) dummy() []byte {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("quizmaster-dummy-password"), BcryptCost)
	})
	return a.dummyHash
}

func (a *passwordAuth) SignInWithPassword(ctx context.Context, email, password string) (AuthSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	// always one lookup and one comparison, known email or not
	hash := a.dummy()
	var account Row
	row, err := a.tables.Single(ctx, TableAccounts, Eq{"email": email})
	switch {
	case err == nil:
		account = row
		hash = []byte(String(row["encrypted_password"]))
	case !IsNoRows(err):
		return AuthSession{}, errors.Wrap(err, "looking up account")
	}

	cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if account == nil || cmpErr != nil {
		return AuthSession{}, errBadCredentials
	}

	sess, err := a.issue(ctx, AuthUser{
		ID:     String(account["id"]),
		Email:  email,
		UserID: String(account["user_id"]),
	})
	if err != nil {
		return AuthSession{}, err
	}
	a.setCurrent(&sess)
	a.notify(SignedIn, &sess)
	return sess, nil
}

func (a *passwordAuth) SignUp(ctx context.Context, email, password, userID string) (AuthSession, error) {
	usr, err := a.CreateAccount(ctx, email, password, userID)
	if err != nil {
		return AuthSession{}, err
	}
	sess, err := a.issue(ctx, usr)
	if err != nil {
		return AuthSession{}, err
	}
	a.notify(UserSignedUp, &sess)
	return sess, nil
}

func (a *passwordAuth) CreateAccount(ctx context.Context, email, password, userID string) (AuthUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AuthUser{}, NewError(CodeNotNull, "email and password are required", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return AuthUser{}, errors.Wrap(err, "hashing password")
	}
	row, err := a.tables.Insert(ctx, TableAccounts, Row{
		"id":                 uuid.New().String(),
		"email":              email,
		"encrypted_password": string(hash),
		"user_id":            userID,
		"created_at":         NowFunc().UTC(),
	})
	if err != nil {
		return AuthUser{}, errors.Wrap(err, "creating account")
	}
	return AuthUser{ID: String(row["id"]), Email: email, UserID: userID}, nil
}

func (a *passwordAuth) UpdatePassword(ctx context.Context, userID, password string) (int, error) {
	if userID == "" || password == "" {
		return 0, NewError(CodeNotNull, "user id and password are required", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return 0, errors.Wrap(err, "hashing password")
	}
	rows, err := a.tables.Update(ctx, TableAccounts, Row{"encrypted_password": string(hash)}, Eq{"user_id": userID})
	if err != nil {
		return 0, errors.Wrap(err, "updating account")
	}
	return len(rows), nil
}

func (a *passwordAuth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	curr := a.current
	a.current = nil
	a.mu.Unlock()
	if curr == nil {
		return nil
	}

	a.notify(SignedOut, nil)
	_, err := a.tables.Update(ctx, TableSessions, Row{"revoked_at": NowFunc().UTC()}, Eq{"id": curr.ID})
	if err != nil {
		return errors.Wrap(err, "revoking session")
	}
	return nil
}

// GetSession returns the current session while its token is valid. It never does I/O.
func (a *passwordAuth) GetSession(_ context.Context) (AuthSession, bool) {
	a.mu.RLock()
	curr := a.current
	a.mu.RUnlock()
	if curr == nil {
		return AuthSession{}, false
	}
	if _, err := a.verify(curr.AccessToken); err != nil {
		a.mu.Lock()
		if a.current == curr {
			a.current = nil
		}
		a.mu.Unlock()
		a.notify(SignedOut, nil)
		return AuthSession{}, false
	}
	return *curr, true
}

func (a *passwordAuth) OnAuthStateChange(fn AuthListener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *passwordAuth) issue(ctx context.Context, usr AuthUser) (AuthSession, error) {
	now := NowFunc().UTC()
	sess := AuthSession{
		ID:        uuid.New().String(),
		ExpiresAt: now.Add(a.ttl),
		User:      usr,
	}
	claims := tokenClaims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: sess.ExpiresAt.Unix(),
		},
		Email:  usr.Email,
		UserID: usr.UserID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return AuthSession{}, errors.Wrap(err, "signing access token")
	}
	sess.AccessToken = token

	if _, err = a.tables.Insert(ctx, TableSessions, Row{
		"id":         sess.ID,
		"account_id": usr.ID,
		"created_at": now,
		"expires_at": sess.ExpiresAt,
	}); err != nil {
		return AuthSession{}, errors.Wrap(err, "recording session")
	}
	return sess, nil
}

func (a *passwordAuth) verify(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, NewError(CodeInvalidToken, "invalid access token", err)
	}
	return claims, nil
}

func (a *passwordAuth) setCurrent(sess *AuthSession) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = sess
}

func (a *passwordAuth) notify(event AuthEvent, sess *AuthSession) {
	a.mu.RLock()
	fns := make([]AuthListener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(event, sess)
	}
}
