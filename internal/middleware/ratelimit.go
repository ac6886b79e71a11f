package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "proposal_review_limiter"

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix})
}

// NewRedisStore builds a limiter store shared by every API instance.
func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "rate limit: parse redis url")
	}
	store, err := sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{Prefix: rateLimitPrefix})
	if err != nil {
		return nil, errors.Wrap(err, "rate limit: redis store")
	}
	return store, nil
}

type RateLimitConfig struct {
	// Rate in ulule format, e.g. "10-M" for ten requests per minute.
	Rate   string
	Store  limiter.Store
	KeyFn  func(c *fiber.Ctx) string
	Logger logrus.FieldLogger
}

// RateLimit rejects requests over the configured rate with 429. Limiter
// failures let the request through.
func RateLimit(cfg RateLimitConfig) (fiber.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, errors.Wrapf(err, "rate limit: invalid rate %q", cfg.Rate)
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.KeyFn == nil {
		cfg.KeyFn = func(c *fiber.Ctx) string { return c.IP() }
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	lim := limiter.New(cfg.Store, rate)

	return func(c *fiber.Ctx) error {
		ctx, err := lim.Get(c.UserContext(), cfg.KeyFn(c))
		if err != nil {
			cfg.Logger.WithError(err).Warn("rate limiter unavailable")
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))

		if ctx.Reached {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests, try again later"})
		}
		return c.Next()
	}, nil
}
