package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"CardArena/logger"
	usermodel "CardArena/module/user/model"
)

// DefaultTokenMaxAge is how far in the past a signed token's timestamp may
// lie before it is rejected.
const DefaultTokenMaxAge = 24 * time.Hour

var (
	ErrBadCredential = errors.New("credential rejected")
	ErrTokenExpired  = errors.New("signed token expired")
)

// UserLookup is the slice of the user store the verifier needs.
type UserLookup interface {
	ActiveByAuthCode(ctx context.Context, code string) (*usermodel.User, error)
	ActiveByID(ctx context.Context, id int64) (*usermodel.User, error)
}

// Strategy verifies one credential format. Implementations fail closed:
// any parse or lookup problem is an error, never a panic.
type Strategy interface {
	Name() string
	Verify(ctx context.Context, credential string) (*usermodel.User, error)
}

// Verifier tries its strategies in order; the first success wins.
type Verifier struct {
	strategies []Strategy
}

func NewVerifier(users UserLookup, secret []byte) *Verifier {
	return &Verifier{strategies: []Strategy{
		&codeStrategy{users: users},
		&signedTokenStrategy{users: users, secret: secret, maxAge: DefaultTokenMaxAge, now: time.Now},
	}}
}

func (v *Verifier) Verify(ctx context.Context, credential string) (*usermodel.User, error) {
	if credential == "" {
		return nil, ErrBadCredential
	}
	for _, s := range v.strategies {
		u, err := s.Verify(ctx, credential)
		if err == nil {
			return u, nil
		}
		logger.Debug("auth strategy miss: " + s.Name() + ": " + err.Error())
	}
	return nil, ErrBadCredential
}

// codeStrategy treats the credential as the user's opaque auth code.
type codeStrategy struct {
	users UserLookup
}

func (s *codeStrategy) Name() string { return "auth_code" }

func (s *codeStrategy) Verify(ctx context.Context, credential string) (*usermodel.User, error) {
	return s.users.ActiveByAuthCode(ctx, credential)
}

// signedTokenStrategy verifies the legacy cookie token of the form
// "userId:timestamp:signature" where signature is the hex HMAC-SHA256 of
// "userId:timestamp" under the shared secret.
type signedTokenStrategy struct {
	users  UserLookup
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func (s *signedTokenStrategy) Name() string { return "signed_token" }

func (s *signedTokenStrategy) Verify(ctx context.Context, credential string) (*usermodel.User, error) {
	parts := strings.Split(credential, ":")
	if len(parts) != 3 {
		return nil, errors.New("token is not id:timestamp:signature")
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse user id")
	}
	issuedAt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse timestamp")
	}
	if s.now().Unix()-issuedAt > int64(s.maxAge/time.Second) {
		return nil, ErrTokenExpired
	}

	expected := sign(s.secret, parts[0], parts[1])
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return nil, errors.New("signature mismatch")
	}
	return s.users.ActiveByID(ctx, userID)
}

// SignToken issues a legacy signed token for userID stamped at ts. The
// login handler uses it; tests build fixtures with it.
func SignToken(secret []byte, userID int64, ts time.Time) string {
	id := strconv.FormatInt(userID, 10)
	stamp := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("%s:%s:%s", id, stamp, sign(secret, id, stamp))
}

func sign(secret []byte, id, stamp string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id + ":" + stamp))
	return hex.EncodeToString(mac.Sum(nil))
}
