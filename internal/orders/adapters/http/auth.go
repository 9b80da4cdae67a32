package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/dejobratic/storefront/internal/apikey"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/gin-gonic/gin"
)

const (
	identityKey      = "identity"
	guestEmailHeader = "X-Guest-Email"
	guestPhoneHeader = "X-Guest-Phone"
	guestNameHeader  = "X-Guest-Name"
)

// Authenticator resolves a bearer API key to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*domain.User, error)
}

// authenticate sets the caller identity when an Authorization header is
// present. Requests without one proceed anonymously.
func (h *Handler) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}

	key, ok := apikey.FromHeader(header)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid authorization header format", Code: "unauthenticated"})
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), key)
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "api key rejected", "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid API key", Code: "unauthenticated"})
		return
	}

	c.Set(identityKey, domain.UserIdentity(*user))
	c.Next()
}

func requireUser(c *gin.Context) {
	if !identityFrom(c).IsRegistered() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "authentication required", Code: "unauthenticated"})
		return
	}
	c.Next()
}

func requireAdmin(c *gin.Context) {
	id := identityFrom(c)
	if !id.IsRegistered() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "authentication required", Code: "unauthenticated"})
		return
	}
	if !id.IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "admin access required", Code: "unauthorized"})
		return
	}
	c.Next()
}

func identityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(domain.Identity); ok {
			return id
		}
	}
	return domain.Identity{}
}

// callerIdentity returns the authenticated user or, for anonymous requests,
// a guest identity built from the supplied contact.
func callerIdentity(c *gin.Context, guest *guestContactRequest) domain.Identity {
	if id := identityFrom(c); id.IsRegistered() {
		return id
	}
	if guest != nil {
		return domain.GuestIdentity(guest.toDomain())
	}
	return domain.Identity{}
}

// guestFromHeaders reads the guest contact used to authorize GET requests.
func guestFromHeaders(c *gin.Context) *guestContactRequest {
	email := strings.TrimSpace(c.GetHeader(guestEmailHeader))
	phone := strings.TrimSpace(c.GetHeader(guestPhoneHeader))
	if email == "" && phone == "" {
		return nil
	}
	return &guestContactRequest{Email: email, Phone: phone, Name: strings.TrimSpace(c.GetHeader(guestNameHeader))}
}

func sessionMeta(c *gin.Context) domain.SessionMeta {
	return domain.SessionMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
