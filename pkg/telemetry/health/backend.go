package health

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mercator-hq/webdis/pkg/config"
)

// NewBackendClient returns a single-connection client used only for
// readiness pings.
func NewBackendClient(cfg *config.Config, tlsConfig *tls.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.BackendAddress(),
		Username:     cfg.RedisAuth.Username,
		Password:     cfg.RedisAuth.Password,
		DB:           cfg.Database,
		TLSConfig:    tlsConfig,
		Protocol:     2,
		DialTimeout:  cfg.Pool.ConnectTimeout,
		ReadTimeout:  cfg.Pool.IOTimeout,
		WriteTimeout: cfg.Pool.IOTimeout,
		PoolSize:     1,
		MaxRetries:   -1,
	})
}

// BackendCheck pings the backend store.
func BackendCheck(client redis.UniversalClient) CheckFunc {
	return func(ctx context.Context) error {
		pong, err := client.Ping(ctx).Result()
		if err != nil {
			return fmt.Errorf("ping backend: %w", err)
		}
		if pong != "PONG" {
			return fmt.Errorf("ping backend: unexpected reply %q", pong)
		}
		return nil
	}
}
