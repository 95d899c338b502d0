package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/pmorrisey/njord/internal"
	"github.com/pmorrisey/njord/internal/commerce"
	"github.com/pmorrisey/njord/internal/crypto"
	"github.com/pmorrisey/njord/internal/events"
	"github.com/pmorrisey/njord/internal/handler"
	"github.com/pmorrisey/njord/internal/journal"
	"github.com/pmorrisey/njord/internal/payment"
	"github.com/pmorrisey/njord/internal/routes"
	"github.com/pmorrisey/njord/internal/session"
	"github.com/pmorrisey/njord/internal/settlement"
	"github.com/pmorrisey/njord/internal/shipping"
	"github.com/pmorrisey/njord/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Session cookie encryption.
	key, err := crypto.DecodeKeyBase64(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}
	encryptor, err := crypto.NewAESEncryptor(key)
	if err != nil {
		return fmt.Errorf("encryptor initialization failed: %w", err)
	}

	// Settlement journal. Without a database it stays in memory and
	// failure records do not survive a restart.
	settlementJournal := journal.Journal(journal.NewMemoryJournal())
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("Connecting to database")
		sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer sqlDB.Close()
		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		logger.Info().Msg("Running database migrations")
		if err := internal.RunMigrations(sqlDB); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		settlementJournal = journal.NewPostgresJournal(pool)
	} else {
		logger.Warn().Msg("No DATABASE_URL, settlement journal is in-memory only")
	}

	// Settlement events. Optional; absent config degrades to no-op.
	publisher := events.Publisher(events.NopPublisher{})
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("njord-checkout"))
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Drain() //nolint:errcheck
		publisher = events.NewNATSPublisher(nc, logger)
		logger.Info().Str("url", cfg.NATSURL).Msg("Settlement events enabled")
	} else {
		logger.Warn().Msg("No NATS_URL, settlement events disabled")
	}

	// Session storage. Redis keeps sessions server-side behind an opaque
	// ID cookie; otherwise the whole session rides in an encrypted
	// cookie. Both survive the gateway redirect.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		defer redisClient.Close()
		logger.Info().Msg("Server-side sessions enabled")
	} else {
		logger.Info().Msg("No REDIS_URL, using encrypted cookie sessions")
	}
	storeFactory := newStoreFactory(cfg, encryptor, redisClient)

	// Payment gateway.
	stripeCfg := payment.StripeConfig{
		APIKey:         cfg.Stripe.SecretKey,
		TimeoutSeconds: cfg.Stripe.TimeoutSeconds,
	}
	payments, err := payment.NewStripeProvider(stripeCfg, logger)
	if err != nil {
		return fmt.Errorf("stripe provider initialization failed: %w", err)
	}
	logger.Info().Bool("test_mode", stripeCfg.IsTestMode()).Msg("Payment provider initialized")

	// Commerce backend.
	backend, err := commerce.NewRESTClient(commerce.RESTConfig{
		BaseURL:        cfg.Commerce.BaseURL,
		ConsumerKey:    cfg.Commerce.ConsumerKey,
		ConsumerSecret: cfg.Commerce.ConsumerSecret,
		TimeoutSeconds: cfg.Commerce.TimeoutSeconds,
	}, logger)
	if err != nil {
		return fmt.Errorf("commerce client initialization failed: %w", err)
	}

	// Shipping rates.
	freeAbove := decimal.Zero
	if cfg.Shipping.FreeShippingAbove != "" {
		freeAbove, err = decimal.NewFromString(cfg.Shipping.FreeShippingAbove)
		if err != nil {
			return fmt.Errorf("invalid FREE_SHIPPING_ABOVE: %w", err)
		}
	}
	rates := shipping.NewFlatRateProvider(defaultFlatRates(), freeAbove)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	engine, err := settlement.NewEngine(settlement.Config{
		Payments: payments,
		Commerce: backend,
		Journal:  settlementJournal,
		Events:   publisher,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("settlement engine initialization failed: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	routes.Register(e, routes.Deps{
		Checkout: handler.NewCheckoutHandler(engine, backend, rates, storeFactory, cfg.Shipping.Currency, logger),
		Operator: handler.NewOperatorHandler(settlementJournal, logger),
	})

	// Serve until interrupted, then drain in-flight requests.
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("Server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// newStoreFactory picks the session backend. Redis stores the session
// server-side keyed by an opaque ID cookie; the fallback seals the whole
// session into an encrypted cookie.
func newStoreFactory(cfg *internal.Config, enc crypto.Encryptor, redisClient *redis.Client) handler.StoreFactory {
	if redisClient == nil {
		return func(c echo.Context) session.Store {
			return session.NewCookieStore(c, enc, cfg.SecureCookies)
		}
	}

	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	return func(c echo.Context) session.Store {
		var id string
		if cookie, err := c.Cookie(session.SessionIDCookieName); err == nil && cookie.Value != "" {
			id = cookie.Value
		} else {
			id, _ = session.GenerateSessionID()
			c.SetCookie(&http.Cookie{
				Name:     session.SessionIDCookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   cfg.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		return session.NewRedisStore(redisClient, id, ttl)
	}
}

func defaultFlatRates() []shipping.FlatRate {
	return []shipping.FlatRate{
		{MethodID: "flat_rate_standard", Label: "Standard shipping", Cost: decimal.NewFromInt(30), DaysMin: 2, DaysMax: 5},
		{MethodID: "flat_rate_express", Label: "Express shipping", Cost: decimal.NewFromInt(79), DaysMin: 1, DaysMax: 2},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
