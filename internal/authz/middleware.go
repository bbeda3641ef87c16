package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/shared"
)

type actorContextKey struct{}

// ContextWithActor stores the resolved actor in the request context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the resolved actor from the request context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Middleware wires authorization enforcement for HTTP handlers. The session
// identifies the user; the Service supplies the resolved snapshot. Handlers
// downstream read the Actor from the request context and pass it explicitly
// into the scoped accessors.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// WithActor resolves the session user's permissions and stashes the actor
// in the request context. Anonymous requests pass through without an actor;
// enforcement happens in the Require* wrappers.
func (m Middleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.sessionUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		perms, err := m.Service.Resolve(r.Context(), userID)
		if err != nil {
			// Fail closed: the request proceeds with an empty snapshot and
			// every permission check denies.
			if m.Logger != nil {
				m.Logger.Error("resolve permissions", slog.String("user_id", userID.String()), slog.Any("error", err))
			}
			perms = EmptyPermissions()
		}
		ctx := ContextWithActor(r.Context(), Actor{UserID: userID, Permissions: perms})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireView rejects requests from users without visibility on the module.
func (m Middleware) RequireView(module string) func(http.Handler) http.Handler {
	return m.require(func(actor Actor) bool {
		return actor.Permissions.CanView(module)
	})
}

// RequireAction rejects requests from users without the action grant.
func (m Middleware) RequireAction(module string, action Action) func(http.Handler) http.Handler {
	return m.require(func(actor Actor) bool {
		return actor.Can(module, action)
	})
}

// RequireSuperAdmin rejects requests from non-super-admin users.
func (m Middleware) RequireSuperAdmin() func(http.Handler) http.Handler {
	return m.require(func(actor Actor) bool {
		return actor.Permissions.IsSuperAdmin
	})
}

func (m Middleware) require(allowed func(Actor) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !allowed(actor) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) sessionUserID(r *http.Request) (uuid.UUID, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return uuid.UUID{}, false
	}
	raw := sess.User()
	if raw == "" {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return uuid.UUID{}, false
	}
	return id, true
}
