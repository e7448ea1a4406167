// mcp-gateway is the agentic MCP orchestration gateway: an HTTP/SSE
// server that lets staff chat with an LLM wired to a fleet of MCP
// tool servers, gated by an admin-managed ACL policy.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarsy-labs/mcp-gateway/pkg/acl"
	"github.com/tarsy-labs/mcp-gateway/pkg/agent"
	"github.com/tarsy-labs/mcp-gateway/pkg/api"
	"github.com/tarsy-labs/mcp-gateway/pkg/breaker"
	"github.com/tarsy-labs/mcp-gateway/pkg/cache"
	"github.com/tarsy-labs/mcp-gateway/pkg/config"
	"github.com/tarsy-labs/mcp-gateway/pkg/database"
	"github.com/tarsy-labs/mcp-gateway/pkg/llm"
	"github.com/tarsy-labs/mcp-gateway/pkg/location"
	"github.com/tarsy-labs/mcp-gateway/pkg/mcp"
	"github.com/tarsy-labs/mcp-gateway/pkg/ratelimit"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
	"github.com/tarsy-labs/mcp-gateway/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v (continuing with existing environment)", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	slog.Info("starting mcp-gateway", "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	breakers := breaker.NewRegistry()

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}
	pool, err := database.NewPool(ctx, dbCfg)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()
	slog.Info("connected to postgres", "host", dbCfg.Host, "database", dbCfg.Database)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("connect to mongo: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			slog.Error("mongo disconnect failed", "error", err)
		}
	}()
	mongoDB := mongoClient.Database(cfg.MongoDatabase)
	slog.Info("connected to mongo", "database", cfg.MongoDatabase)

	var redisClient *redis.Client
	if cfg.CacheURL != "" {
		opts, err := redis.ParseURL(cfg.CacheURL)
		if err != nil {
			log.Fatalf("parse CACHE_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable at startup, falling back to in-memory cache/rate-limit", "error", err)
			redisClient = nil
		}
	} else {
		slog.Warn("CACHE_URL not set, running with in-memory cache and rate limiter fallback")
	}

	users := store.NewPgUserStore(pool)
	authStore := store.NewPgAuthStore(pool)

	sessions, err := store.NewMongoSessionStore(ctx, mongoDB)
	if err != nil {
		log.Fatalf("init session store: %v", err)
	}
	aclConfigs := store.NewMongoAclConfigStore(mongoDB)

	if err := acl.LoadSeed(ctx, aclConfigs, cfg.ACLSeedPath); err != nil {
		log.Fatalf("load ACL seed: %v", err)
	}

	userCache := cache.New(redisClient, "acl:user", config.UserCacheTTL)
	aclCache := cache.New(redisClient, "acl:config", config.ACLCacheTTL)
	evaluator := acl.New(users, aclConfigs, userCache, aclCache)
	admin := acl.NewAdmin(evaluator, aclConfigs)

	toolsCache := cache.New(redisClient, "tools:user", 5*time.Minute)
	bridge := mcp.New(breakers, toolsCache)

	mcpServers := make([]mcp.ServerConfig, 0, len(cfg.MCPServers))
	for _, s := range cfg.MCPServers {
		mcpServers = append(mcpServers, mcp.ServerConfig{ID: s.ID, URL: s.URL})
	}
	if err := bridge.Initialize(ctx, mcpServers); err != nil {
		log.Fatalf("initialize MCP bridge: %v", err)
	}

	claudeBreaker := breakers.GetOrCreate(breaker.Config{
		Name:             "claude-api",
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		IsTransient:      llm.IsTransient,
	})
	llmClient := llm.New(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Breaker: claudeBreaker,
	})

	locations, err := config.LoadLocations(cfg.LocationsPath)
	if err != nil {
		log.Fatalf("load locations: %v", err)
	}
	resolver := location.New(locations)

	responseCache := cache.New(redisClient, "responses", 0)
	ag := agent.New(llmClient, bridge, evaluator, sessions, responseCache, resolver)

	limiter, err := ratelimit.New(redisClient)
	if err != nil {
		log.Fatalf("init rate limiter: %v", err)
	}

	srv := api.NewServer(ag, sessions, users, authStore, admin, bridge, breakers, limiter, cfg.RateLimitEnabled)

	addr := ":" + getEnv("HTTP_PORT", "8080")
	slog.Info("listening", "addr", addr, "debug", cfg.Debug)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("http server: %v", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}
}
