package middleware

import (
	"log"
	"net/url"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	adapter "github.com/gwatts/gin-adapter"
)

// JWT validates bearer tokens issued by the identity provider. Requests
// without a valid token never reach the handler.
func JWT(domain, audience string) (gin.HandlerFunc, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
	)
	if err != nil {
		return nil, err
	}

	m := jwtmiddleware.New(jwtValidator.ValidateToken)
	return adapter.Wrap(m.CheckJWT), nil
}

// AuthIDKey overrides the token subject when set on the Gin context. Test
// servers use it to stand in for the JWT layer.
const AuthIDKey = "auth_id"

// GetAuthID extracts the subject claim from the validated token in the Gin
// context.
func GetAuthID(c *gin.Context) (string, bool) {
	if v, ok := c.Get(AuthIDKey); ok {
		return v.(string), true
	}

	claims, exists := c.Request.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !exists {
		log.Printf("No user claims found in context")
		return "", false
	}

	return claims.RegisteredClaims.Subject, true
}
