package identity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/clock"
	"github.com/frahmantamala/loan-desk/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIdentity(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Identity Suite")
}

const secret = "0123456789abcdef0123456789abcdef"

var _ = Describe("TokenIssuer", func() {
	var (
		clk    *clock.Manual
		issuer *identity.TokenIssuer
	)

	BeforeEach(func() {
		clk = clock.NewManual(time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC))
		issuer = identity.NewTokenIssuer(secret, "loan-desk", time.Hour, identity.WithClock(clk))
	})

	It("round-trips the user id through the subject claim", func() {
		token, err := issuer.Issue("alice")
		Expect(err).NotTo(HaveOccurred())

		claims, err := issuer.Validate(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.UserID()).To(Equal("alice"))
		Expect(claims.Issuer).To(Equal("loan-desk"))
	})

	It("refuses to issue for a blank user", func() {
		_, err := issuer.Issue(" ")
		Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
	})

	It("reports expiry separately", func() {
		token, err := issuer.Issue("alice")
		Expect(err).NotTo(HaveOccurred())

		clk.Advance(time.Hour + time.Second)
		_, err = issuer.Validate(token)
		Expect(errors.Is(err, internal.ErrTokenExpired)).To(BeTrue())
	})

	It("rejects tokens signed with another secret", func() {
		other := identity.NewTokenIssuer("ffffffffffffffffffffffffffffffff", "loan-desk", time.Hour, identity.WithClock(clk))
		token, err := other.Issue("alice")
		Expect(err).NotTo(HaveOccurred())

		_, err = issuer.Validate(token)
		Expect(errors.Is(err, internal.ErrInvalidToken)).To(BeTrue())
	})

	It("rejects tokens from another issuer", func() {
		other := identity.NewTokenIssuer(secret, "someone-else", time.Hour, identity.WithClock(clk))
		token, err := other.Issue("alice")
		Expect(err).NotTo(HaveOccurred())

		_, err = issuer.Validate(token)
		Expect(errors.Is(err, internal.ErrInvalidToken)).To(BeTrue())
	})

	It("rejects the none algorithm", func() {
		claims := jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "loan-desk",
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		Expect(err).NotTo(HaveOccurred())

		_, err = issuer.Validate(token)
		Expect(errors.Is(err, internal.ErrInvalidToken)).To(BeTrue())
	})

	It("rejects garbage", func() {
		_, err := issuer.Validate("not-a-token")
		Expect(errors.Is(err, internal.ErrInvalidToken)).To(BeTrue())
	})
})
