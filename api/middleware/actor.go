package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/api/validators"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorNameHeader = "X-Actor-Name"
)

type contextKey string

const ctxActor contextKey = "actor"

// Actor reads the staff identity headers into the request context so
// controllers can attribute transitions. Authentication happens upstream;
// requests without the header pass through with no actor.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(actorIDHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			actorID, err := uuid.Parse(raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ref := &outbox.ActorRef{
				ActorID: actorID,
				Name:    validators.SanitizeString(r.Header.Get(actorNameHeader), 120),
			}
			ctx := context.WithValue(r.Context(), ctxActor, ref)
			if logg != nil {
				ctx = logg.WithActorID(ctx, actorID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the actor set by the Actor middleware, or nil.
func ActorFromContext(ctx context.Context) *outbox.ActorRef {
	if ctx == nil {
		return nil
	}
	if ref, ok := ctx.Value(ctxActor).(*outbox.ActorRef); ok {
		return ref
	}
	return nil
}

// ActorIDFromContext returns the actor id as a string, or "".
func ActorIDFromContext(ctx context.Context) string {
	if ref := ActorFromContext(ctx); ref != nil {
		return ref.ActorID.String()
	}
	return ""
}
