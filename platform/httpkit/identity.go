package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is what the auth middleware established about the caller.
// Handlers read the caller through this interface instead of digging gin
// context keys out themselves, so role checks (customer, hauler, ops) stay
// in one place.
type Identity interface {
	UserID() uuid.UUID
	Roles() []string
	// HasRole reports whether the caller carries the given role, e.g.
	// "hauler" or "ops".
	HasRole(role string) bool
	IsAuthenticated() bool
}

type callerIdentity struct {
	userID        uuid.UUID
	roles         []string
	authenticated bool
}

func (i *callerIdentity) UserID() uuid.UUID { return i.userID }

func (i *callerIdentity) Roles() []string { return i.roles }

func (i *callerIdentity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *callerIdentity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity reads the caller the auth middleware stored on the request.
// A request that never passed the middleware yields an unauthenticated
// identity rather than an error, so public routes can share handlers.
func GetIdentity(c *gin.Context) Identity {
	rawID, hasUser := c.Get(ContextUserIDKey)
	rawRoles, hasRoles := c.Get(ContextRolesKey)

	if !hasUser {
		return &callerIdentity{}
	}
	uid, ok := rawID.(uuid.UUID)
	if !ok {
		return &callerIdentity{}
	}

	var roles []string
	if hasRoles {
		roles, _ = rawRoles.([]string)
	}
	return &callerIdentity{userID: uid, roles: roles, authenticated: true}
}

// MustGetIdentity is GetIdentity for routes behind the auth middleware:
// an unauthenticated caller gets a 401 and the handler chain stops.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
