package server

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	auditcontext "github.com/smallbiznis/creatorpay/internal/auditcontext"
)

const (
	headerActorType = "X-Actor-Type"
	headerActorID   = "X-Actor-Id"

	actorContextKey = "actor"
)

// Actor is the authenticated principal as asserted by the fronting identity
// layer. This service trusts the gateway's headers; it performs authorization,
// not authentication.
type Actor struct {
	Type string
	ID   string
}

func (a Actor) subject() string {
	if a.Type == string(auditdomain.ActorTypeSystem) {
		return "system"
	}
	return fmt.Sprintf("user:%s", a.ID)
}

// ActorContext resolves the acting principal from gateway headers and stamps
// it into the request context for audit and authorization.
func (s *Server) ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorType := strings.TrimSpace(c.GetHeader(headerActorType))
		actorID := strings.TrimSpace(c.GetHeader(headerActorID))

		var actor Actor
		switch actorType {
		case string(auditdomain.ActorTypeSystem):
			actor = Actor{Type: string(auditdomain.ActorTypeSystem)}
		case string(auditdomain.ActorTypeUser), "":
			if actorID != "" {
				parsed, err := snowflake.ParseString(actorID)
				if err != nil || parsed == 0 {
					AbortWithError(c, ErrUnauthorized)
					return
				}
				actor = Actor{Type: string(auditdomain.ActorTypeUser), ID: parsed.String()}
			}
		default:
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if actor.Type != "" {
			c.Set(actorContextKey, actor)
			ctx := auditcontext.WithActor(c.Request.Context(), actor.Type, actor.ID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

// ActorRequired rejects requests that carry no principal.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := s.actorFromContext(c); !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) actorFromContext(c *gin.Context) (Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return Actor{}, false
	}
	actor, ok := value.(Actor)
	if !ok || actor.Type == "" {
		return Actor{}, false
	}
	return actor, true
}

func (s *Server) requireAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := s.actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor.subject(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
