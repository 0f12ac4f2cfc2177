package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/awsclient"
	"github.com/aelexs/jellyfin-bff/internal/bff/adapter"
	"github.com/aelexs/jellyfin-bff/internal/bff/app"
	"github.com/aelexs/jellyfin-bff/internal/bff/port"
	"github.com/aelexs/jellyfin-bff/internal/config"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/edge"
	"github.com/aelexs/jellyfin-bff/internal/jellyfin"
	"github.com/aelexs/jellyfin-bff/internal/redis"
	"github.com/aelexs/jellyfin-bff/internal/server"
	"github.com/aelexs/jellyfin-bff/internal/session"
)

// setup is the BFF composition root. It loads the signing secret, creates
// the upstream and limiter clients, and mounts the API and the gated pages.
func setup(ctx context.Context, deps server.SetupDeps) (server.Mounted, error) {
	cfg := deps.Config
	logger := deps.Logger

	// 1. Signing secret, loaded once and injected.
	keyStore, err := createKeyStore(ctx, cfg, logger)
	if err != nil {
		return server.Mounted{}, fmt.Errorf("bff setup: create key store: %w", err)
	}

	// 2. Token codec + the one shared resolver.
	codec := auth.NewCodec(auth.CodecConfig{
		KeyStore: keyStore,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Clock:    domain.RealClock{},
	})
	resolver := session.NewResolver(codec)

	// 3. Upstream client.
	upstream := jellyfin.New(jellyfin.Config{
		BaseURL:        cfg.JellyfinBaseURL(),
		AuthTimeout:    cfg.Jellyfin.AuthTimeout,
		CatalogTimeout: cfg.Jellyfin.CatalogTimeout,
		RateLimit:      cfg.Jellyfin.RateLimit,
		RateBurst:      cfg.Jellyfin.RateBurst,
		ClientName:     cfg.Jellyfin.Client,
		Device:         cfg.Jellyfin.Device,
		DeviceID:       cfg.Jellyfin.DeviceID,
		Version:        cfg.Jellyfin.Version,
		Logger:         logger,
	})

	// 4. Login limiter (environment-dependent).
	limiter, closeLimiter, err := createLoginLimiter(ctx, cfg, logger)
	if err != nil {
		return server.Mounted{}, fmt.Errorf("bff setup: create login limiter: %w", err)
	}

	// 5. App services.
	authSvc := app.NewAuthService(app.AuthServiceConfig{
		Upstream: upstream,
		Codec:    codec,
		Limiter:  limiter,
		Logger:   logger,
	})
	mediaSvc := app.NewMediaService(upstream, logger)

	// 6. HTTP surface: /api/* authenticates per route, pages go through the
	// gatekeeper.
	proxies, err := port.ParseTrustedProxies(cfg.Web.TrustedProxies)
	if err != nil {
		closeLimiter()
		return server.Mounted{}, fmt.Errorf("bff setup: %w: web.trusted_proxies: %w", domain.ErrConfigRequired, err)
	}
	api := port.NewAPIRouter(port.RouterConfig{
		Auth:     port.NewAuthHandler(authSvc, session.Cookies{Secure: cfg.IsProd()}, logger),
		Media:    port.NewMediaHandler(mediaSvc, logger),
		Sessions: resolver,
	})
	pages := edge.New(edge.Config{
		Resolver: resolver,
		Next:     edge.NewStaticSite(cfg.Web.StaticDir),
		Logger:   logger,
	})

	root := http.NewServeMux()
	root.Handle("/api/", api)
	root.Handle("/", pages)

	logger.InfoContext(ctx, "bff initialized",
		slog.String("jellyfin_url", cfg.JellyfinBaseURL()),
		slog.String("static_dir", cfg.Web.StaticDir),
		slog.Bool("secure_cookies", cfg.IsProd()),
	)

	return server.Mounted{
		Handler: port.Wrap(logger, proxies, root),
		Close:   closeLimiter,
	}, nil
}

// createKeyStore resolves the HS256 secret in order: inline config, AWS
// Secrets Manager, then an ephemeral local-only secret. Anything else fails.
func createKeyStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*auth.StaticKeyStore, error) {
	switch {
	case !cfg.Auth.JWTSecret.IsEmpty():
		return auth.NewStaticKeyStore([]byte(cfg.Auth.JWTSecret.Expose()), cfg.Auth.KeyID)

	case cfg.Auth.SecretID != "":
		sm, err := awsclient.NewSecretsManager(ctx, awsclient.Config{
			Endpoint: cfg.AWS.Endpoint,
			Region:   cfg.AWS.Region,
			Timeout:  domain.SecretsManagerTimeout,
		})
		if err != nil {
			return nil, err
		}
		secret, err := adapter.NewSigningSecretSource(sm).Load(ctx, cfg.Auth.SecretID)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "signing secret loaded from secrets manager", slog.String("key_id", cfg.Auth.KeyID))
		return auth.NewStaticKeyStore(secret.Expose(), cfg.Auth.KeyID)

	case cfg.AllowsDevSecret():
		logger.WarnContext(ctx, "using ephemeral signing secret; sessions will not survive a restart",
			slog.String("key_id", cfg.Auth.KeyID))
		return auth.NewEphemeralKeyStore(cfg.Auth.KeyID)
	}
	return nil, fmt.Errorf("%w: no signing secret configured", domain.ErrConfigRequired)
}

// createLoginLimiter returns the Redis limiter when REDIS_ADDR is set and a
// no-op limiter otherwise. The returned func releases the Redis pool.
func createLoginLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app.LoginLimiter, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.InfoContext(ctx, "login rate limiter disabled (no redis configured)")
		return adapter.NoopLimiter{}, func() {}, nil
	}

	client := redis.NewClient(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, domain.RedisTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis", slog.String("error", err.Error()))
		}
	}
	return adapter.NewLoginLimiter(client.RDB, cfg.Login.RateLimit, cfg.Login.RateWindow), closeFn, nil
}
