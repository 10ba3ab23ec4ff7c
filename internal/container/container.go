package container

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog/browser/internal/browser"
	"catalog/browser/internal/client"
	"catalog/browser/internal/config"
	"catalog/browser/internal/listing"
	"catalog/browser/internal/mutation"
	"catalog/browser/internal/proxy"
	"catalog/browser/internal/queue"
	"catalog/browser/internal/repository"
	"catalog/browser/internal/service"
	"catalog/browser/internal/state"
	"catalog/browser/internal/urlstate"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const proxyProbeTimeout = 5 * time.Second

// CatalogStore is a backing store able to both list and mutate categories.
type CatalogStore interface {
	listing.Source
	mutation.Mutator
}

// Container holds all initialized components
type Container struct {
	Config  *config.Config
	Session string

	Store     CatalogStore
	Engine    *listing.Engine
	Address   *urlstate.Adapter
	Mutations *mutation.Coordinator
	Browser   *browser.Browser
	Bus       queue.Bus // nil when redis is disabled

	Service *service.Service

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config, out io.Writer) (*Container, error) {
	container := &Container{
		Config:  cfg,
		Session: cfg.Browser.Session,
	}
	if container.Session == "" {
		container.Session = uuid.NewString()
	}
	log.Infof("🪪 Session id: %s", container.Session)

	store, err := container.newStore(ctx)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Store = store

	addressStore := state.NewMemoryAddressStore(cfg.Browser.Address)
	var publisher mutation.Publisher
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		container.redis = rdb

		// Test connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		addressStore, err = restoreAddress(ctx, state.NewRedisAddressStore(rdb, container.Session), cfg.Browser.Address)
		if err != nil {
			container.Close()
			return nil, err
		}

		bus := queue.NewRedisBus(rdb, cfg.Redis)
		container.Bus = bus
		publisher = bus
	}

	container.Engine = listing.NewEngine(store)
	container.Address = urlstate.NewAdapter(addressStore)
	container.Mutations = mutation.NewCoordinator(store, container.Engine, publisher, container.Session)
	container.Browser = browser.New(container.Address, container.Engine, container.Mutations)
	container.Service = service.NewService(container.Browser, container.Address, container.Session, out)

	return container, nil
}

func (c *Container) newStore(ctx context.Context) (CatalogStore, error) {
	cfg := c.Config

	switch cfg.Catalog.Source {
	case config.SourcePostgres:
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		c.db = db

		if err := db.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Infof("✅ Connected to database %s on %s", cfg.Database.Name, cfg.Database.Host)
		return repository.NewCategoryRepository(db), nil

	default:
		healthURL := strings.TrimSuffix(cfg.Catalog.BaseURL, "/") + "/health"
		proxies := proxy.NewSupplier(ctx, cfg.Catalog.Proxies, proxy.HealthProbe(healthURL, proxyProbeTimeout))
		log.Infof("🌐 Using catalog API at %s", cfg.Catalog.BaseURL)
		return client.NewCatalogClient(cfg.Catalog, proxies), nil
	}
}

// restoreAddress seeds an empty persisted address with initial, so a
// configured start location applies only to new sessions.
func restoreAddress(ctx context.Context, store state.AddressStore, initial string) (state.AddressStore, error) {
	current, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore address: %w", err)
	}
	if current == "" && initial != "" {
		if err := store.Save(ctx, initial); err != nil {
			return nil, fmt.Errorf("failed to seed address: %w", err)
		}
	}
	if current != "" {
		log.Infof("🔖 Restored address %q", current)
	}
	return store, nil
}

// Run drives the session from in and, when redis is enabled, applies
// changes broadcast by other sessions. It returns once the session ends.
func (c *Container) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return c.Service.Run(ctx, in)
	})

	if c.Bus != nil {
		g.Go(func() error {
			return c.Bus.Listen(ctx, c.Service.HandleChange)
		})
	}

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.Engine != nil {
		c.Engine.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis client: %v", err)
		}
	}

	log.Info("Container shut down successfully")
	return nil
}
