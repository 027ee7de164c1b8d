package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nutriscan/backend/internal/domain"
)

const (
	accountsCollection = "accounts"
	minPasswordLength  = 6
)

// account is the stored email/password identity
type account struct {
	UID          string    `json:"uid" firestore:"uid"`
	Email        string    `json:"email" firestore:"email"`
	DisplayName  string    `json:"displayName" firestore:"displayName"`
	PasswordHash string    `json:"passwordHash" firestore:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
}

// Claims are the ID token claims accepted by interactive sign-in
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// DirectoryConfig configures token verification
type DirectoryConfig struct {
	// TokenSecret is the HS256 key for interactive ID tokens.
	// Interactive sign-in is disabled when empty.
	TokenSecret string
	Issuer      string
	Audience    string
}

// Directory is the process-wide identity service: email/password accounts
// stored in the document store, and verification of ID tokens issued by an
// external sign-in page
type Directory struct {
	docs     domain.DocumentStore
	secret   []byte
	issuer   string
	audience string
	logger   *zap.Logger

	createMu sync.Mutex
}

// NewDirectory creates a Directory
func NewDirectory(docs domain.DocumentStore, cfg DirectoryConfig, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		docs:     docs,
		secret:   []byte(cfg.TokenSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   logger.Named("identity"),
	}
}

func authErr(code domain.AuthErrorCode, err error) error {
	return &domain.AuthError{Code: code, Err: err}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", authErr(domain.AuthInvalidEmail, fmt.Errorf("invalid email %q", email))
	}
	return email, nil
}

// VerifyIDToken validates an HS256 ID token and returns its principal
func (d *Directory) VerifyIDToken(ctx context.Context, idToken string) (*domain.Principal, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, authErr(domain.AuthPopupClosed, nil)
	}
	if len(d.secret) == 0 {
		return nil, authErr(domain.AuthUnauthorizedDomain, errors.New("interactive sign-in is not configured"))
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if d.issuer != "" {
		opts = append(opts, jwt.WithIssuer(d.issuer))
	}
	if d.audience != "" {
		opts = append(opts, jwt.WithAudience(d.audience))
	}

	token, err := jwt.ParseWithClaims(idToken, &Claims{}, func(_ *jwt.Token) (any, error) {
		return d.secret, nil
	}, opts...)
	if err != nil {
		return nil, authErr(domain.AuthInvalidCredential, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, authErr(domain.AuthInvalidCredential, errors.New("token has no subject"))
	}

	return &domain.Principal{
		UID:         claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		PhotoURL:    claims.Picture,
	}, nil
}

// IssueIDToken signs an ID token for p, valid for ttl
func (d *Directory) IssueIDToken(p domain.Principal, ttl time.Duration) (string, error) {
	if len(d.secret) == 0 {
		return "", errors.New("identity: token secret is not configured")
	}

	now := time.Now()
	claims := Claims{
		Email:   p.Email,
		Name:    p.DisplayName,
		Picture: p.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UID,
			Issuer:    d.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if d.audience != "" {
		claims.Audience = jwt.ClaimStrings{d.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
}

// SignIn checks an email/password pair
func (d *Directory) SignIn(ctx context.Context, email, password string) (*domain.Principal, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	acct, err := d.loadAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, authErr(domain.AuthWrongPassword, nil)
	}

	return &domain.Principal{UID: acct.UID, Email: acct.Email, DisplayName: acct.DisplayName}, nil
}

// CreateAccount registers a new email/password account
func (d *Directory) CreateAccount(ctx context.Context, email, password string) (*domain.Principal, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, authErr(domain.AuthWeakPassword, fmt.Errorf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, authErr(domain.AuthInternal, err)
	}

	d.createMu.Lock()
	defer d.createMu.Unlock()

	if _, err := d.loadAccount(ctx, email); err == nil {
		return nil, authErr(domain.AuthEmailInUse, nil)
	} else if domain.AuthCode(err) != domain.AuthUserNotFound {
		return nil, err
	}

	acct := account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := d.docs.Put(ctx, accountsCollection, email, acct); err != nil {
		return nil, authErr(domain.AuthInternal, err)
	}

	d.logger.Info("account created", zap.String("uid", acct.UID))
	return &domain.Principal{UID: acct.UID, Email: acct.Email}, nil
}

func (d *Directory) loadAccount(ctx context.Context, email string) (*account, error) {
	doc, err := d.docs.Get(ctx, accountsCollection, email)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, authErr(domain.AuthUserNotFound, nil)
	}
	if err != nil {
		return nil, authErr(domain.AuthInternal, err)
	}

	var acct account
	if err := doc.DataTo(&acct); err != nil {
		return nil, authErr(domain.AuthInternal, err)
	}
	return &acct, nil
}
