package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neuropath/rtcore/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewJWTVerifier("s3cret", "neuropath")
	tok, err := v.Sign(Identity{UserID: "n1", Email: "n@example.org", Role: model.RoleNeurologist}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "n1" || id.Role != model.RoleNeurologist {
		t.Fatalf("identity = %+v", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewJWTVerifier("s3cret", "")
	other := NewJWTVerifier("other", "")

	wrongKey, _ := other.Sign(Identity{UserID: "u1", Role: model.RolePatient}, time.Hour)
	expired, _ := v.Sign(Identity{UserID: "u1", Role: model.RolePatient}, -time.Hour)
	badRole, _ := v.Sign(Identity{UserID: "u1", Role: "wizard"}, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "u1", Role: model.RolePatient}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"wrong key": wrongKey,
		"expired":   expired,
		"bad role":  badRole,
		"alg none":  none,
		"garbage":   "abc.def.ghi",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want invalid token", err)
			}
		})
	}

	if _, err := v.Verify(""); !errors.Is(err, ErrNoToken) {
		t.Fatalf("empty token err = %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	if got := TokenFromRequest(r); got != "q" {
		t.Fatalf("query token = %q", got)
	}
	r.Header.Set("Authorization", "Bearer h")
	if got := TokenFromRequest(r); got != "h" {
		t.Fatalf("header token = %q", got)
	}
}
