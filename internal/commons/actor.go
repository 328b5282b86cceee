package commons

import (
	"context"
	"net/http"
	"strconv"
)

// UserIDHeader carries the authenticated caller id set by the gateway in
// front of this service.
const UserIDHeader = "X-User-ID"

type actorKey struct{}

func WithActor(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func ActorFrom(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(actorKey{}).(uint)
	return id, ok && id > 0
}

// RequireActor rejects requests without a valid caller id.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		id, err := strconv.ParseUint(raw, 10, 64)
		if raw == "" || err != nil || id == 0 {
			WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
				Status:  http.StatusUnauthorized,
				Code:    "UNAUTHENTICATED",
				Message: UserIDHeader + " header must carry a positive user id",
			}, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), uint(id))))
	})
}
