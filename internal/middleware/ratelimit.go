package middleware

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/taskquest/taskquest-api/internal/request"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultRateLimit allows five requests per second per client IP.
const DefaultRateLimit = "5-S"

// RateLimit builds rate-limiting middleware backed by Redis, keyed on the
// client IP. The rate uses the limiter formatted notation ("5-S", "100-M").
func RateLimit(redisClient *redis.Client, formattedRate string) (func(http.Handler) http.Handler, error) {
	if formattedRate == "" {
		formattedRate = DefaultRateLimit
	}
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, err
	}
	store, err := redisstore.NewStore(redisClient)
	if err != nil {
		return nil, err
	}

	instance := limiter.New(store, rate)
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(func(r *http.Request) string {
		return request.ClientIP(r)
	}))
	return mw.Handler, nil
}
