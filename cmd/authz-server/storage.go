package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/uselagoon/keycloak-authz/internal/authzstore"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage/redisstore"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage/sqlstore"
	"github.com/uselagoon/keycloak-authz/internal/realm"
)

// StorageFlags select and configure the map storage backend.
type StorageFlags struct {
	StorageBackend string `kong:"default='chm',enum='chm,mysql,redis',env='STORAGE_BACKEND',help='Map storage backend (chm, mysql, redis)'"`
	DBAddress      string `kong:"env='DB_ADDRESS',help='MySQL DB Address (host[:port])'"`
	DBDatabase     string `kong:"default='keycloak',env='DB_DATABASE',help='MySQL DB Database Name'"`
	DBPassword     string `kong:"env='DB_PASSWORD',help='MySQL DB Password'"`
	DBUsername     string `kong:"default='keycloak',env='DB_USERNAME',help='MySQL DB Username'"`
	RedisAddress   string `kong:"default='localhost:6379',env='REDIS_ADDRESS',help='Redis Address (host:port)'"`
	RedisPassword  string `kong:"env='REDIS_PASSWORD',help='Redis Password'"`
	RedisDB        int    `kong:"default=0,env='REDIS_DB',help='Redis Database Number'"`
	RedisPrefix    string `kong:"default='keycloak',env='REDIS_PREFIX',help='Redis Key Prefix'"`
}

// stores are the authorization and realm stores sharing one backend.
type stores struct {
	authz *authzstore.Store
	realm *realm.Store
	// closers release the backend connections after the stores are closed.
	closers []func() error
}

func (s *stores) Close() error {
	errs := []error{s.authz.Close(), s.realm.Close()}
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func migrated[V mapstorage.Entity](
	ctx context.Context,
	schema *mapstorage.Schema[V],
	db *sqlx.DB,
) (*sqlstore.Backend[V], error) {
	b := sqlstore.New(schema, db)
	if err := b.Migrate(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (f *StorageFlags) openMySQL(ctx context.Context) (*stores, error) {
	if f.DBAddress == "" {
		return nil, fmt.Errorf("mysql storage requires a DB address")
	}
	dbConf := mysql.NewConfig()
	dbConf.Addr = f.DBAddress
	dbConf.DBName = f.DBDatabase
	dbConf.Net = "tcp"
	dbConf.Passwd = f.DBPassword
	dbConf.User = f.DBUsername
	db, err := sqlstore.Connect(ctx, dbConf.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to DB: %v", err)
	}
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	servers, err := migrated(ctx, authzstore.ResourceServerSchema, db)
	check(err)
	resources, err := migrated(ctx, authzstore.ResourceSchema, db)
	check(err)
	scopes, err := migrated(ctx, authzstore.ScopeSchema, db)
	check(err)
	policies, err := migrated(ctx, authzstore.PolicySchema, db)
	check(err)
	realms, err := migrated(ctx, realm.RealmSchema, db)
	check(err)
	roles, err := migrated(ctx, realm.RoleSchema, db)
	check(err)
	clients, err := migrated(ctx, realm.ClientSchema, db)
	check(err)
	groups, err := migrated(ctx, realm.GroupSchema, db)
	check(err)
	users, err := migrated(ctx, realm.UserSchema, db)
	check(err)
	if len(errs) > 0 {
		_ = db.Close()
		return nil, errors.Join(errs...)
	}
	return &stores{
		authz:   authzstore.New(servers, resources, scopes, policies),
		realm:   realm.New(realms, roles, clients, groups, users),
		closers: []func() error{db.Close},
	}, nil
}

func (f *StorageFlags) openRedis(ctx context.Context) (*stores, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.RedisAddress,
		Password: f.RedisPassword,
		DB:       f.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("couldn't connect to redis: %v", err)
	}
	return &stores{
		authz: authzstore.New(
			redisstore.New(authzstore.ResourceServerSchema, client, f.RedisPrefix),
			redisstore.New(authzstore.ResourceSchema, client, f.RedisPrefix),
			redisstore.New(authzstore.ScopeSchema, client, f.RedisPrefix),
			redisstore.New(authzstore.PolicySchema, client, f.RedisPrefix)),
		realm: realm.New(
			redisstore.New(realm.RealmSchema, client, f.RedisPrefix),
			redisstore.New(realm.RoleSchema, client, f.RedisPrefix),
			redisstore.New(realm.ClientSchema, client, f.RedisPrefix),
			redisstore.New(realm.GroupSchema, client, f.RedisPrefix),
			redisstore.New(realm.UserSchema, client, f.RedisPrefix)),
		closers: []func() error{client.Close},
	}, nil
}

// open connects to the configured backend and returns the stores persisted
// in it.
func (f *StorageFlags) open(ctx context.Context, log *slog.Logger) (*stores, error) {
	log.Info("opening storage", slog.String("backend", f.StorageBackend))
	switch f.StorageBackend {
	case "mysql":
		return f.openMySQL(ctx)
	case "redis":
		return f.openRedis(ctx)
	default:
		return &stores{
			authz: authzstore.NewInMemory(),
			realm: realm.NewInMemory(),
		}, nil
	}
}
