package ws

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/errors"
)

const defaultGrantTTL = 12 * time.Hour

var ErrInvalidGrant = errors.New(errors.CodeUnauthenticated,
	errors.WithReason("invalid_grant"),
	errors.WithMessagef("player grant is invalid"))

type GrantsConfig struct {
	// Secret signs the grants, HS256.
	Secret string
	// TTL is the lifetime of a grant, 12h when zero.
	TTL time.Duration
	Now func() time.Time
}

// Grants issues and verifies the tokens that tie a websocket client to one
// player of one channel.
type Grants struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGrants(c GrantsConfig) *Grants {
	g := &Grants{
		secret: []byte(c.Secret),
		ttl:    c.TTL,
		now:    c.Now,
	}

	if g.ttl <= 0 {
		g.ttl = defaultGrantTTL
	}
	if g.now == nil {
		g.now = time.Now
	}

	return g
}

type grantClaims struct {
	jwt.RegisteredClaims
	Community string `json:"community"`
	Channel   string `json:"channel"`
}

// Issue returns a grant for user to play in channel.
func (g *Grants) Issue(community domain.CommunityID, channel domain.ChannelID, user domain.UserID) (string, error) {
	now := g.now()
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
		Community: string(community),
		Channel:   string(channel),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", errors.Internal(err)
	}

	return token, nil
}

// Verify checks token was issued for channel and returns the player it names.
func (g *Grants) Verify(token string, community domain.CommunityID, channel domain.ChannelID) (domain.UserID, error) {
	var claims grantClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return "", ErrInvalidGrant.With(errors.WithCause(err))
	}

	if claims.Subject == "" || claims.Community != string(community) || claims.Channel != string(channel) {
		return "", ErrInvalidGrant.With(errors.WithMessagef("player grant is for another channel"))
	}

	return domain.UserID(claims.Subject), nil
}
