package middleware

import (
	"net/http"
	"strconv"

	"caixapdv/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewLimiter builds a per-IP limiter from a formatted rate ("20-M",
// "1000-H"). Counters live in Redis so every replica shares them; with a
// nil client they fall back to process memory.
func NewLimiter(rate string, rdb *redis.Client, prefix string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	var store limiter.Store
	if rdb != nil {
		store, err = sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix, MaxRetry: 3})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix})
	}
	return limiter.New(store, r), nil
}

// RateLimit rejects requests over the limiter's budget with 429.
func RateLimit(l *limiter.Limiter, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		lctx, err := l.Get(c.Request.Context(), ip)
		if err != nil {
			// Fail open: a limiter outage must not take the API down
			log.Error().Err(err).Str("ip", ip).Msg("rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		if lctx.Reached {
			log.Warn().Str("ip", ip).Int64("limit", lctx.Limit).Msg("rate limit exceeded")
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(message))
			return
		}
		c.Next()
	}
}
