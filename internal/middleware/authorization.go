package middleware

import (
	"errors"
	"net/http"

	"farmazia/internal/repository"

	"go.uber.org/zap"
)

// RequireFarmProfile ensures the authenticated account has completed farm
// setup before reaching seller-only endpoints
func RequireFarmProfile(sellers repository.SellerRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				logger.Warn("User id not found in context")
				respondWithError(w, http.StatusForbidden, "farm profile required")
				return
			}

			if _, err := sellers.GetByID(r.Context(), userID); err != nil {
				if errors.Is(err, repository.ErrSellerNotFound) {
					logger.Warn("Account without farm profile attempted a seller endpoint",
						zap.String("user_id", userID),
					)
					respondWithError(w, http.StatusForbidden, "farm profile required")
					return
				}
				logger.Error("Failed to check farm profile", zap.Error(err))
				respondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
