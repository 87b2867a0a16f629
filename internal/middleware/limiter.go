package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"printlink-be/internal/apperr"
	"printlink-be/internal/ratelimit"
	"printlink-be/internal/utils"

	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Redemption / payment (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Signed gateway callbacks
	limitCallback = rate.Limit(50)
	burstCallback = 100

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200
)

// callbackPaths are posted by the payment gateway or its redirect and carry
// their own digest, so one gateway IP must not share the strict bucket.
var callbackPaths = map[string]bool{
	"/payments/webhook": true,
	"/payments/return":  true,
	"/payments/failure": true,
}

// RateLimitMiddleware buckets requests per caller identity and tier.
func RateLimitMiddleware(visitors *ratelimit.Keyed, internalKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, burst, tier := resolveRateTier(r, internalKey)

			var identity string
			if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
				identity = "user:" + userID
			} else {
				ip, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					ip = r.RemoteAddr
				}
				identity = "ip:" + ip
			}

			key := fmt.Sprintf("%s:%s", identity, tier)
			if !visitors.Allow(key, limit, burst) {
				w.Header().Set("Retry-After", retryAfter(limit))
				utils.WriteJSONError(w, http.StatusText(http.StatusTooManyRequests), string(apperr.CodeRateLimited), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolveRateTier determines which rate limit policy applies to the request.
func resolveRateTier(r *http.Request, internalKey string) (rate.Limit, int, string) {
	if internalKey != "" && r.Header.Get("X-Service-Auth") == internalKey {
		return limitInternal, burstInternal, "internal"
	}

	if callbackPaths[r.URL.Path] {
		return limitCallback, burstCallback, "callback"
	}

	if r.URL.Path == "/orders/redeem" || strings.HasPrefix(r.URL.Path, "/payments/") {
		return limitStrict, burstStrict, "strict"
	}

	return limitGeneral, burstGeneral, "general"
}

// retryAfter is the whole seconds until one more token is available.
func retryAfter(limit rate.Limit) string {
	if limit <= 0 {
		return "60"
	}
	secs := int(math.Ceil(1/float64(limit) - 1e-9))
	return strconv.Itoa(max(secs, 1))
}
