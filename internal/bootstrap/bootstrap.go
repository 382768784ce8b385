// Package bootstrap assembles the registry console services from
// configuration. cmd/server and cmd/registryctl share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jacksonlee411/registry-console/internal/config"
	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/internal/server"
	activityports "github.com/jacksonlee411/registry-console/modules/activity/domain/ports"
	activitypersistence "github.com/jacksonlee411/registry-console/modules/activity/infrastructure/persistence"
	activityservices "github.com/jacksonlee411/registry-console/modules/activity/services"
	iamports "github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	iamtypes "github.com/jacksonlee411/registry-console/modules/iam/domain/types"
	"github.com/jacksonlee411/registry-console/modules/iam/infrastructure/kratos"
	iampersistence "github.com/jacksonlee411/registry-console/modules/iam/infrastructure/persistence"
	iamservices "github.com/jacksonlee411/registry-console/modules/iam/services"
	registryports "github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	registrytypes "github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	registrypersistence "github.com/jacksonlee411/registry-console/modules/registry/infrastructure/persistence"
	registryservices "github.com/jacksonlee411/registry-console/modules/registry/services"
	"github.com/jacksonlee411/registry-console/pkg/authz"
)

// Stack is every long-lived service of the console.
type Stack struct {
	Catalog          *registryservices.Catalog
	Activity         *activityservices.Recorder
	Gate             *iamservices.AccessGate
	Roles            *iamservices.RoleService
	Profiles         *iamservices.ProfileService
	Provisioner      *iamservices.Provisioner
	IdentityProvider iamports.IdentityProvider
	Sessions         server.SessionStore

	closers []func(context.Context) error
}

type iamStore interface {
	iamports.RoleStore
	iamports.ProfileStore
}

// Open connects the configured stores and builds the services. Close must
// be called when Open succeeds.
func Open(ctx context.Context, cfg config.Config) (_ *Stack, err error) {
	st := &Stack{}
	defer func() {
		if err != nil {
			_ = st.Close(context.Background())
		}
	}()

	mode, err := cfg.AuthzModeValue()
	if err != nil {
		return nil, err
	}
	modelText := ""
	if cfg.AuthzModelPath != "" {
		b, err := os.ReadFile(cfg.AuthzModelPath)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: authz model: %w", err)
		}
		modelText = string(b)
	}
	authorizer, err := authz.NewInMemoryAuthorizer(modelText, mode)
	if err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	if cfg.StoreDriver == config.DriverPostgres || (cfg.StoreDriver == config.DriverMongo && cfg.DatabaseURL != "") {
		pool, err = pgxpool.New(ctx, cfg.DatabaseDSN())
		if err != nil {
			return nil, fmt.Errorf("bootstrap: postgres: %w", err)
		}
		st.closers = append(st.closers, func(context.Context) error { pool.Close(); return nil })
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap: postgres ping: %w", err)
		}
	}

	var (
		documents registryports.DocumentStore
		people    iamStore
		entries   activityports.EntryStore
	)
	if pool != nil {
		people = iampersistence.NewPGStore(pool)
		entries = activitypersistence.NewPGStore(pool)
		st.Sessions = server.NewPGSessionStore(pool)
	} else {
		people = iampersistence.NewMemoryStore()
		entries = activitypersistence.NewMemoryStore()
		st.Sessions = server.NewMemorySessionStore()
	}

	schemas, err := registrytypes.BuiltinSchemas()
	if err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case config.DriverMongo:
		ms, err := registrypersistence.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: mongo: %w", err)
		}
		st.closers = append(st.closers, ms.Close)
		for _, s := range schemas {
			if err := ms.EnsureIndexes(ctx, s.Collection, s.Filterable); err != nil {
				return nil, fmt.Errorf("bootstrap: mongo indexes for %s: %w", s.Name, err)
			}
		}
		documents = ms
	case config.DriverPostgres:
		documents = registrypersistence.NewPGStore(pool)
	default:
		documents = registrypersistence.NewMemoryStore()
	}
	logging.Info(logging.CatConfig, "stores ready", "driver", cfg.StoreDriver, "iam_postgres", pool != nil)

	st.Activity = activityservices.NewRecorder(entries)
	st.Gate = iamservices.NewAccessGate(people, authorizer)
	st.Roles = iamservices.NewRoleService(people, st.Gate, st.Activity)
	st.Profiles = iamservices.NewProfileService(people, people, st.Activity)
	st.Provisioner = iamservices.NewProvisioner(people, people)

	st.Catalog, err = registryservices.NewCatalog(schemas, documents, func(s registrytypes.Schema) []registryservices.Option {
		var mirror registryservices.Mirror
		if cfg.CacheDir != "" && s.PersistMirror {
			mirror = registryservices.NewFileMirror(cfg.CacheDir, s.Name)
		}
		return []registryservices.Option{
			registryservices.WithAuditor(st.Activity),
			registryservices.WithCache(registryservices.NewRegistryCache(s, mirror)),
		}
	})
	if err != nil {
		return nil, err
	}

	st.IdentityProvider, err = identityProvider(cfg)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func identityProvider(cfg config.Config) (iamports.IdentityProvider, error) {
	if len(cfg.DevAccounts) > 0 {
		p := iamservices.NewStaticIdentityProvider()
		for _, acct := range cfg.DevAccounts {
			email, password, ok := strings.Cut(acct, ":")
			if !ok || strings.TrimSpace(email) == "" || password == "" {
				return nil, fmt.Errorf("bootstrap: dev account %q must be email:password", acct)
			}
			p.Add(iamtypes.Identity{Email: strings.TrimSpace(email)}, password)
		}
		logging.Warn(logging.CatConfig, "static identity provider enabled", "accounts", len(cfg.DevAccounts))
		return p, nil
	}
	if strings.TrimSpace(cfg.KratosPublicURL) == "" {
		return nil, errors.New("bootstrap: kratos_public_url or dev_accounts required")
	}
	c, err := kratos.New(cfg.KratosPublicURL)
	if err != nil {
		return nil, err
	}
	return kratos.NewIdentityProvider(c), nil
}

// SeedAccess creates the system roles that do not exist yet.
func (st *Stack) SeedAccess(ctx context.Context) (int, error) {
	return st.Roles.SeedDefaults(ctx)
}

func (st *Stack) HandlerOptions(cfg config.Config) server.HandlerOptions {
	return server.HandlerOptions{
		AllowlistPath:    cfg.AllowlistPath,
		Catalog:          st.Catalog,
		Activity:         st.Activity,
		Gate:             st.Gate,
		Roles:            st.Roles,
		Profiles:         st.Profiles,
		Provisioner:      st.Provisioner,
		IdentityProvider: st.IdentityProvider,
		Sessions:         st.Sessions,
		SessionTTL:       cfg.SessionTTL(),
	}
}

func (st *Stack) Close(ctx context.Context) error {
	var errs []error
	for i := len(st.closers) - 1; i >= 0; i-- {
		if err := st.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	st.closers = nil
	return errors.Join(errs...)
}
