package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

// Service answers whether an actor may perform an action on an object.
// Actors are "system" or "user:<snowflake>"; user roles come from the
// user_roles table and are synced into casbin grouping policies on demand.
type Service interface {
	Authorize(ctx context.Context, actor string, object string, action string) error
}
