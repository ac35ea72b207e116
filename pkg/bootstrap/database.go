package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/pebble"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"logworker/internal/config"
	"logworker/internal/constants"
	"logworker/internal/logger"
	"logworker/internal/store"
	"logworker/pkg/health"
	"logworker/pkg/migrations"
)

// Databases holds the clients the configured backends need; unused ones stay nil.
type Databases struct {
	Redis    redis.UniversalClient
	Postgres *sql.DB
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
	Pebble   *pebble.DB
}

// StoreClients exposes the subset store.New consumes.
func (d *Databases) StoreClients() store.Clients {
	return store.Clients{
		Mongo:    d.MongoDB,
		Postgres: d.Postgres,
		Redis:    d.Redis,
		Pebble:   d.Pebble,
	}
}

// RegisterCheckers adds a health checker for every open client.
func (d *Databases) RegisterCheckers(registry *health.CheckerRegistry) {
	if d.Redis != nil {
		registry.Register(health.NewRedisChecker(d.Redis))
	}
	if d.Postgres != nil {
		registry.Register(health.NewPostgreSQLChecker(d.Postgres))
	}
	if d.Mongo != nil {
		registry.Register(health.NewMongoDBChecker(d.Mongo))
	}
	if d.Pebble != nil {
		registry.Register(health.NewPebbleChecker(d.Pebble))
	}
}

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// Requirements reports which clients the storage backend, broker and dead-letter sink need.
type Requirements struct {
	Redis, Postgres, Mongo, Pebble bool
}

func RequirementsFor(cfg *config.Config) Requirements {
	return Requirements{
		Redis: cfg.Storage.Backend == constants.StorageBackendRedis ||
			cfg.Broker.Type == constants.BrokerTypeRedis ||
			cfg.DeadLetter.Type == constants.DeadLetterRedis,
		Postgres: cfg.Storage.Backend == constants.StorageBackendPostgres,
		Mongo:    cfg.Storage.Backend == constants.StorageBackendMongoDB,
		Pebble:   cfg.Storage.Backend == constants.StorageBackendPebble,
	}
}

// Connect opens every required client. On failure the clients opened so far are closed.
func (dc *DatabaseConnector) Connect(ctx context.Context) (*Databases, error) {
	req := RequirementsFor(dc.Config)
	dbs := &Databases{}

	fail := func(err error) (*Databases, error) {
		for _, closeErr := range dc.ShutdownDatabases(ctx, dbs) {
			dc.Logger.Warnw("Failed to close client after init error", "error", closeErr)
		}
		return nil, err
	}

	if req.Redis {
		rdb, err := dc.InitRedis(ctx)
		if err != nil {
			return fail(err)
		}
		dbs.Redis = rdb
	}
	if req.Postgres {
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return fail(err)
		}
		dbs.Postgres = db
	}
	if req.Mongo {
		client, err := dc.InitMongoDB(ctx)
		if err != nil {
			return fail(err)
		}
		dbs.Mongo = client
		dbs.MongoDB = client.Database(dc.mongoDatabaseName())
		if err := migrations.EnsureMongoCollection(ctx, dbs.MongoDB, dc.collectionName()); err != nil {
			return fail(fmt.Errorf("failed to prepare MongoDB collection: %w", err))
		}
	}
	if req.Pebble {
		db, err := dc.InitPebble()
		if err != nil {
			return fail(err)
		}
		dbs.Pebble = db
	}

	return dbs, nil
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (redis.UniversalClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, dc.Config.Database.Redis.Port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	pg := dc.Config.Database.Postgres
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pg.User, pg.Password, pg.Host, pg.Port, pg.DBName, pg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dc.Config.Database.RunMigrations {
		if err := migrations.MigratePostgres(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		version, dirty, err := migrations.PostgresVersion(db)
		if err == nil {
			dc.Logger.Infow("PostgreSQL migrations applied", "version", version, "dirty", dirty)
		}
	}

	dc.Logger.Info("PostgreSQL connected successfully")
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	mongoOpts := options.Client().ApplyURI(dc.Config.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Info("MongoDB connected successfully")
	return mongoClient, nil
}

func (dc *DatabaseConnector) InitPebble() (*pebble.DB, error) {
	dir := dc.Config.Storage.Pebble.Dir
	if dir == "" {
		dir = constants.DefaultPebbleDir
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dir, err)
	}

	dc.Logger.Infow("Pebble opened successfully", "dir", dir)
	return db, nil
}

func (dc *DatabaseConnector) mongoDatabaseName() string {
	if name := dc.Config.Database.MongoDB.Database; name != "" {
		return name
	}
	return constants.DefaultMongoDBName
}

func (dc *DatabaseConnector) collectionName() string {
	if name := dc.Config.Storage.Collection; name != "" {
		return name
	}
	return constants.DefaultCollection
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, dbs *Databases) []error {
	var errs []error
	if dbs == nil {
		return errs
	}

	if dbs.Redis != nil {
		if err := dbs.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if dbs.Postgres != nil {
		if err := dbs.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	if dbs.Mongo != nil {
		if err := dbs.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	if dbs.Pebble != nil {
		if err := dbs.Pebble.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pebble close error: %w", err))
		}
	}

	return errs
}
