package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/courtline/courtline-api/utils/cache"
	"github.com/courtline/courtline-api/utils/response"
)

const (
	maxFailedAttempts = 5
	attemptWindow     = 15 * time.Minute
	lockoutDuration   = 15 * time.Minute
)

// BruteForceProtection applies Redis-backed login lockouts per IP
type BruteForceProtection struct {
	redisCache *cache.RedisCache
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{
		redisCache: redisCache,
	}
}

// CheckLockout middleware rejects requests from locked-out IPs
func (b *BruteForceProtection) CheckLockout() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		lockKey := fmt.Sprintf("login:lock:%s", ip)

		locked, err := b.redisCache.Exists(c.Context(), lockKey)
		if err != nil {
			// If Redis is down, allow the request.
			// Don't block legitimate users due to cache issues.
			return c.Next()
		}

		if locked {
			ttl, _ := b.redisCache.TTL(c.Context(), lockKey)
			retryAfter := int(ttl.Seconds())
			if retryAfter < 0 {
				retryAfter = 60
			}

			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return response.RateLimitExceeded(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
		}

		return c.Next()
	}
}

// RecordFailedAttempt records a failed login attempt and locks the IP
// after too many failures inside the window.
func (b *BruteForceProtection) RecordFailedAttempt(c *fiber.Ctx, ip string) error {
	ctx := c.Context()
	attemptKey := fmt.Sprintf("login:attempts:%s", ip)
	lockKey := fmt.Sprintf("login:lock:%s", ip)

	attempts, err := b.redisCache.Increment(ctx, attemptKey)
	if err != nil {
		// If Redis is down, just return without blocking
		return nil
	}

	if attempts == 1 {
		b.redisCache.Expire(ctx, attemptKey, attemptWindow)
	}

	if attempts >= maxFailedAttempts {
		b.redisCache.Set(ctx, lockKey, "1", lockoutDuration)
		b.redisCache.Delete(ctx, attemptKey)
	}

	return nil
}

// ClearAttempts resets the failure counter after a successful login
func (b *BruteForceProtection) ClearAttempts(c *fiber.Ctx, ip string) {
	b.redisCache.Delete(c.Context(), fmt.Sprintf("login:attempts:%s", ip))
}
