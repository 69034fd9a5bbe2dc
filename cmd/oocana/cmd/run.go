package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/inputstore"
	"github.com/oocana-go/oocana/internal/domain/runtimegraph"
	domsession "github.com/oocana-go/oocana/internal/domain/session"
	"github.com/oocana-go/oocana/internal/domain/workerpool"
	applicationsession "github.com/oocana-go/oocana/internal/application/session"
	"github.com/oocana-go/oocana/internal/infrastructure/broker"
	"github.com/oocana-go/oocana/internal/infrastructure/cache"
	"github.com/oocana-go/oocana/internal/infrastructure/llm"
	"github.com/oocana-go/oocana/internal/infrastructure/persistence/postgres"
	"github.com/oocana-go/oocana/internal/infrastructure/reporter"
	"github.com/oocana-go/oocana/internal/infrastructure/scheduler"
)

var (
	runToNode          string
	runFromNode        string
	searchPaths        []string
	injectFlags        []string
	useCache           bool
	brokerAddr         string
	taskAPIURL         string
	taskTimeoutSeconds int
	maxConcurrentSpawn int64
	reportToConsole    bool
	sessionDBDSN       string
	cacheBackendKind   string
	redisAddr          string
	redisPassword      string
)

var runCmd = &cobra.Command{
	Use:   "run <flow-path>",
	Short: "Compose and run a flow to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runToNode, "run-to-node", "", "stop after this node and its upstream closure")
	runCmd.Flags().StringVar(&runFromNode, "run-from-node", "", "resume from this node using its cached input bundle")
	runCmd.Flags().StringSliceVar(&searchPaths, "search-paths", nil, "additional package search roots for block/flow refs")
	runCmd.Flags().StringSliceVar(&injectFlags, "inject", nil, "dev-only block ref overrides, name=path")
	runCmd.Flags().BoolVar(&useCache, "cache", true, "save and consult the run-from-node cache")
	runCmd.Flags().StringVar(&brokerAddr, "broker-addr", "127.0.0.1:0", "address the worker broker listens on")
	runCmd.Flags().StringVar(&taskAPIURL, "task-api-url", os.Getenv("OOCANA_TASK_API_URL"), "remote task API base URL for spawn.remote nodes")
	runCmd.Flags().IntVar(&taskTimeoutSeconds, "task-timeout", 0, "bounds a remote task submission in addition to the node's own timeout")
	runCmd.Flags().Int64Var(&maxConcurrentSpawn, "max-concurrent-spawns", 0, "cap on worker processes in flight at once (0 = unbounded)")
	runCmd.Flags().BoolVar(&reportToConsole, "report-to-console", true, "print each session event as a JSON line")
	runCmd.Flags().StringVar(&sessionDBDSN, "session-db", os.Getenv("OOCANA_SESSION_DB_DSN"), "optional Postgres DSN recording session history")
	runCmd.Flags().StringVar(&cacheDir, "cache-dir", defaultCacheDir(), "directory holding cached run snapshots")
	runCmd.Flags().StringVar(&cacheBackendKind, "cache-backend", "file", "run-from-node cache backend: file or redis")
	runCmd.Flags().StringVar(&redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address when --cache-backend=redis")
	runCmd.Flags().StringVar(&redisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "redis password when --cache-backend=redis")
}

func runRun(cmd *cobra.Command, args []string) error {
	flowPath := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cacheBackend, err := openCacheBackend()
	if err != nil {
		return err
	}

	injections, err := parseInjections(injectFlags)
	if err != nil {
		return err
	}

	var rep scheduler.Reporter
	if reportToConsole {
		rep = reporter.NewConsole(os.Stdout)
	}

	var sessionStore *postgres.SessionStore
	if sessionDBDSN != "" {
		pool, err := pgxPoolFromDSN(ctx, sessionDBDSN)
		if err != nil {
			return fmt.Errorf("connecting to session db: %w", err)
		}
		defer pool.Close()
		sessionStore = postgres.NewSessionStore(pool)
	}

	builtins := map[string]broker.BuiltinWorker{}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		builtins["llm"] = llm.NewBuiltinWorker(llm.NewAnthropicClient(apiKey))
	} else if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		builtins["llm"] = llm.NewBuiltinWorker(llm.NewOpenAIClient(apiKey))
	}

	spawner := broker.Spawner(broker.DefaultSpawner)
	if taskAPIURL != "" {
		remote := broker.NewRemoteClient(taskAPIURL, os.Getenv("OOMOL_TOKEN"), time.Duration(taskTimeoutSeconds)*time.Second)
		spawner = broker.RouteSpawner(broker.DefaultSpawner, remote.Spawn)
	}

	cfg := applicationsession.Config{
		FlowPath:           flowPath,
		SearchPaths:        searchPaths,
		Injections:         injections,
		RunToNode:          flow.NodeId(runToNode),
		RunFromNode:        flow.NodeId(runFromNode),
		Cache:              cacheBackend,
		UseCache:           useCache,
		BrokerAddr:         brokerAddr,
		Spawn:              spawner,
		Registry:           workerpool.New(),
		Builtins:           builtins,
		Reporter:           rep,
		MaxConcurrentSpawn: maxConcurrentSpawn,
	}

	if sessionStore != nil {
		return runWithSessionStore(ctx, cfg, flowPath, sessionStore)
	}

	result, runErr := applicationsession.Run(ctx, cfg)
	if runErr != nil {
		return runErr
	}
	fmt.Printf("session %s completed\n", result.SessionID)
	return nil
}

// runWithSessionStore wraps applicationsession.Run with a Start/Finish
// bracket against the optional Postgres session history mirror
// independent of the in-session Reporter stream.
func runWithSessionStore(ctx context.Context, cfg applicationsession.Config, flowPath string, store *postgres.SessionStore) error {
	cfg.SessionID = domsession.NewSessionID()
	if err := store.Start(ctx, cfg.SessionID, flowPath); err != nil {
		fmt.Fprintf(os.Stderr, "session store: %v\n", err)
	}

	result, runErr := applicationsession.Run(ctx, cfg)

	status := "completed"
	if runErr != nil {
		status = "failed"
	}
	if err := store.Finish(ctx, cfg.SessionID, status, runErr); err != nil {
		fmt.Fprintf(os.Stderr, "session store: %v\n", err)
	}

	if runErr != nil {
		return runErr
	}
	fmt.Printf("session %s completed\n", result.SessionID)
	return nil
}

// openCacheBackend builds the run-from-node cache backend the --cache-
// backend flag names: the default local file store, or a Redis-backed
// one for deployments that want the cache shared across machines.
func openCacheBackend() (inputstore.CacheBackend, error) {
	switch cacheBackendKind {
	case "", "file":
		backend, err := cache.NewFileBackend(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("opening cache at %s: %w", cacheDir, err)
		}
		return backend, nil
	case "redis":
		redisCache, err := cache.NewRedisCache(redisAddr, redisPassword, 0)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", redisAddr, err)
		}
		return cache.NewInputStoreBackend(redisCache, 24*time.Hour), nil
	default:
		return nil, fmt.Errorf("unknown --cache-backend %q (want file or redis)", cacheBackendKind)
	}
}

func parseInjections(flags []string) (runtimegraph.Injections, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	out := runtimegraph.Injections{}
	for _, f := range flags {
		name, path, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("--inject %q: expected name=path", f)
		}
		out[name] = path
	}
	return out, nil
}
