package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"jobboard-messaging/internal/auth"
	"jobboard-messaging/internal/config"
	"jobboard-messaging/internal/integrations/identity"
	"jobboard-messaging/internal/integrations/paramstore"
	"jobboard-messaging/internal/integrations/profilecache"
	"jobboard-messaging/internal/repository"
	"jobboard-messaging/internal/usecase"
)

// App is the wired object graph shared by the Lambda API and the gateway.
type App struct {
	Service  *usecase.Service
	Verifier auth.Verifier
	Profiles usecase.ProfileSource

	closers []func()
}

// Close releases pools and clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadAWSConfig and newParamStore are replaced in tests.
var (
	loadAWSConfig = func(ctx context.Context) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	}
	newParamStore = func(awsCfg aws.Config, prefix string) (*paramstore.Client, error) {
		return paramstore.New(awsssm.NewFromConfig(awsCfg), paramstore.WithPrefix(prefix))
	}
)

// Build wires the service graph described by cfg. cfg is not modified;
// settings read from Parameter Store are applied to a copy.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	resolved := *cfg
	cfg = &resolved
	a := &App{}

	var awsCfg aws.Config
	if cfg.Store.Backend == config.BackendDynamoDB || cfg.UsesParameterStore() {
		var err error
		if awsCfg, err = loadAWSConfig(ctx); err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
	}

	var params *paramstore.Client
	if cfg.UsesParameterStore() {
		var err error
		if params, err = newParamStore(awsCfg, cfg.Auth.ParamPrefix); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		if err := resolveParams(ctx, params, cfg); err != nil {
			return nil, err
		}
	}

	store, err := buildStore(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}

	profiles, err := a.buildProfiles(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Profiles = profiles

	if a.Verifier, err = buildVerifier(cfg, params); err != nil {
		a.Close()
		return nil, err
	}

	a.Service, err = usecase.NewService(store, profiles,
		usecase.WithTypingExpiry(cfg.Typing.Expiry),
		usecase.WithServiceLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create service: %w", err)
	}
	return a, nil
}

func buildStore(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (usecase.ConversationStore, error) {
	if cfg.Store.Backend == config.BackendMemory {
		logger.Warn("using in-memory conversation store; data is lost on restart")
		return repository.NewMemoryStore(logger), nil
	}
	client, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Store.Table,
		repository.WithPollInterval(cfg.Store.PollInterval),
		repository.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create dynamodb store: %w", err)
	}
	return client, nil
}

func (a *App) buildProfiles(ctx context.Context, cfg *config.Config, logger *slog.Logger) (usecase.ProfileSource, error) {
	var profiles usecase.ProfileSource
	if cfg.Identity.DatabaseURL == "" {
		logger.Warn("no identity database configured; every participant will show as unknown")
		profiles = identity.NewStaticDirectory()
	} else {
		pool, err := identity.Connect(ctx, cfg.Identity.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		dir, err := identity.NewDirectory(pool, logger)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		profiles = dir
	}

	if cfg.Cache.RedisURL == "" {
		return profiles, nil
	}
	rdb, err := profilecache.Connect(ctx, cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	cache, err := profilecache.New(profiles, rdb,
		profilecache.WithTTL(cfg.Cache.TTL),
		profilecache.WithMissingTTL(cfg.Cache.MissingTTL),
		profilecache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return cache, nil
}

// resolveParams reads every *_param setting except the JWT secret in one
// batched call and stores the values in cfg. The JWT secret is read lazily by
// the verifier.
func resolveParams(ctx context.Context, params *paramstore.Client, cfg *config.Config) error {
	type target struct {
		name string
		dst  *string
	}
	var targets []target
	if cfg.Identity.DatabaseURLParam != "" {
		targets = append(targets, target{cfg.Identity.DatabaseURLParam, &cfg.Identity.DatabaseURL})
	}
	if cfg.Cache.RedisURLParam != "" {
		targets = append(targets, target{cfg.Cache.RedisURLParam, &cfg.Cache.RedisURL})
	}
	if len(targets) == 0 {
		return nil
	}

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.name)
	}
	values, err := params.GetParameters(ctx, names...)
	if err != nil {
		return fmt.Errorf("app: resolve parameters: %w", err)
	}
	for _, t := range targets {
		*t.dst = strings.TrimSpace(values[t.name])
	}
	return nil
}

func buildVerifier(cfg *config.Config, params *paramstore.Client) (auth.Verifier, error) {
	if cfg.Auth.JWTSecretParam == "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return v, nil
	}
	v, err := auth.NewParamVerifier(params, params.Path(cfg.Auth.JWTSecretParam))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return v, nil
}
