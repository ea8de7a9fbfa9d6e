package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/kenaz/cache"
	"github.com/aukilabs/kenaz/featureflag"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/aukilabs/kenaz/modules/algiz"
	"github.com/aukilabs/kenaz/modules/ansuz"
	"github.com/aukilabs/kenaz/modules/tiwaz"
	"github.com/aukilabs/kenaz/stimulus"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Kenaz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "kenaz_info",
		Help:        "Kenaz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr           string        `cli:""        env:"KENAZ_ADDR"             help:"Listening address for client connections."`
	AdminAddr      string        `cli:""        env:"KENAZ_ADMIN_ADDR"       help:"Admin listening address."`
	EntropyKey     string        `cli:""        env:"KENAZ_ENTROPY_KEY"      help:"The hex-encoded 32-byte entropy key the stimulus generators derive from."`
	EntropyKeyFile string        `cli:""        env:"KENAZ_ENTROPY_KEY_FILE" help:"The file that contains the hex-encoded entropy key."`
	DataDir        string        `cli:""        env:"KENAZ_DATA_DIR"         help:"The directory where user accounts are stored."`
	LogLevel       string        `cli:""        env:"KENAZ_LOG_LEVEL"        help:"Log level (debug|info|warning|error)."`
	LogIndent      bool          `cli:""        env:"KENAZ_LOG_INDENT"       help:"Indent logs."`
	SessionTimeout time.Duration `cli:",hidden" env:"KENAZ_SESSION_TIMEOUT"  help:"Time until a test session without heartbeats is released."`
	RegionTTL      time.Duration `cli:",hidden" env:"KENAZ_REGION_TTL"       help:"Time until recorded stimulus regions expire."`
	Redis          redisConfig   `cli:",hidden" env:"-"                      help:"Redis region cache configuration."`
	Events         eventsConfig  `cli:",hidden" env:"-"                      help:"Event pusher configuration."`
	FeatureFlags   []string      `cli:",hidden" env:"KENAZ_FEATURE_FLAGS"    help:"Comma separated feature flags"`
	Version        bool          `cli:""        env:"-"                      help:"Show version."`
	Help           bool          `cli:""        env:"-"                      help:"Show help."`
}

type redisConfig struct {
	Addr     string `cli:",hidden" env:"KENAZ_REDIS_ADDR"     help:"Redis address. When empty the region cache is in-memory."`
	Password string `cli:",hidden" env:"KENAZ_REDIS_PASSWORD" help:"Redis password."`
	DB       int    `cli:",hidden" env:"KENAZ_REDIS_DB"       help:"Redis database number."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"KENAZ_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"KENAZ_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"KENAZ_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"KENAZ_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:           ":4000",
		AdminAddr:      ":18190",
		DataDir:        "./data",
		LogLevel:       logs.InfoLevel.String(),
		SessionTimeout: models.DefaultSessionTimeout,
		RegionTTL:      cache.DefaultTTL,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the Kenaz fingerprint stimulus server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	entropy, err := loadEntropy(conf)
	if err != nil {
		logs.Fatal(errors.New("error loading entropy key").Wrap(err))
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "kenaz",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)

	regions, err := newRegionStore(ctx, conf, flags)
	if err != nil {
		logs.Fatal(errors.New("error setting up the region cache").Wrap(err))
	}
	defer regions.Close()

	users := &models.UserStore{DataDir: conf.DataDir}
	sessions := &models.SessionStore{Timeout: conf.SessionTimeout}

	guard := modules.Guard(kenazhttp.SessionGuard(sessions, flags))
	nonces := stimulus.TimeNonce{}

	surfaces := []modules.Module{
		&tiwaz.Module{
			Entropy: entropy,
			Nonces:  nonces,
			Regions: regions,
			Users:   users,
			Flags:   flags,
			Guard:   guard,
			TTL:     conf.RegionTTL,
		},
		&ansuz.Module{
			Entropy: entropy,
			Nonces:  nonces,
			Regions: regions,
			Users:   users,
			Flags:   flags,
			Guard:   guard,
			TTL:     conf.RegionTTL,
		},
		&algiz.Module{
			Entropy: entropy,
			Nonces:  nonces,
			Users:   users,
			Flags:   flags,
			Guard:   guard,
		},
	}

	service := chi.NewRouter()

	service.Get("/health", kenazhttp.HandleHealthCheck)
	service.Get("/ready", kenazhttp.HandleReadyCheck(func() bool { return true }))
	service.Get("/version", kenazhttp.HandleVersion(version))

	service.Post("/register", kenazhttp.HandleRegister(users))
	service.Post("/login", kenazhttp.HandleLogin(users))
	service.Post("/session/acquire", kenazhttp.HandleAcquireSession(users, sessions))
	service.Post("/session/heartbeat", kenazhttp.HandleSessionHeartbeat(sessions))
	service.Post("/session/release", kenazhttp.HandleReleaseSession(sessions))
	service.Post("/fingerprint", kenazhttp.HandleStoreFingerprint(users, guard))
	service.Post("/stability", kenazhttp.HandleRecordStability(users, flags, guard))

	surfaceNames := make([]string, 0, len(surfaces))
	for _, m := range surfaces {
		service.Route(m.Prefix(), m.Mount)
		surfaceNames = append(surfaceNames, m.Name())
	}

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	admin := http.NewServeMux()
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", kenazhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("data_dir", conf.DataDir).
		WithTag("surfaces", strings.Join(surfaceNames, ",")).
		Info("starting kenaz server")

	kenazhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(
			kenazhttp.HandleWithCORS(service),
			kenazhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: admin},
	)
}

func newRegionStore(ctx context.Context, conf config, flags featureflag.FeatureFlag) (cache.Store, error) {
	if flags.IsSet(featureflag.FlagDisableUploadVerification) {
		return cache.NewNullStore(), nil
	}
	if conf.Redis.Addr != "" {
		return cache.NewRedisStore(ctx, conf.Redis.Addr, conf.Redis.Password, conf.Redis.DB)
	}
	return cache.NewMemoryStore(), nil
}

func loadEntropy(conf config) ([]byte, error) {
	key := conf.EntropyKey

	if len(conf.EntropyKeyFile) != 0 {
		if len(key) != 0 {
			return nil, errors.New("have to specify either entropy key or entropy key file, not both")
		}

		keyBytes, err := os.ReadFile(conf.EntropyKeyFile)
		if err != nil {
			return nil, errors.New("error loading entropy key from file").
				WithTag("file_name", conf.EntropyKeyFile).
				Wrap(err)
		}
		key = string(keyBytes)
	}

	key = strings.TrimPrefix(strings.TrimSpace(key), "0x")

	if len(key) == 0 {
		return nil, errors.New("entropy key is empty")
	}

	entropy, err := hex.DecodeString(key)
	if err != nil {
		return nil, errors.New("entropy key is not valid hex").Wrap(err)
	}
	if len(entropy) != 32 {
		return nil, errors.Newf("entropy key must be 32 bytes, got %d", len(entropy))
	}
	return entropy, nil
}
