package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

func DBCheck(db *gorm.DB) Check {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func RedisCheck(rdb *redis.Client) Check {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// Health reports each dependency as "connected" or "error" and answers 503
// when any check fails. Error details stay in the server.
func Health(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		body := gin.H{}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				body[name] = "error"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "connected"
		}
		body["ok"] = status == http.StatusOK
		c.JSON(status, body)
	}
}
