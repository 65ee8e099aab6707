package security

import (
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Options controls signing and TTL for service tokens.
type Options struct {
	Secret []byte
	TTL    time.Duration // defaults to 2h
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, TTL: 2 * time.Hour}
}

// Generate issues an HS256 service token for userID.
func Generate(opts Options, userID int64) (token string, expireAt time.Time, err error) {
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates a service token, returning the subject user
// id. Only the HMAC family is accepted.
func Verify(opts Options, token string) (int64, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return 0, errors.New("claims type mismatch")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, errors.Wrap(err, "missing subject")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "subject is not a user id")
	}
	return userID, nil
}
