package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapling-labs/arbor/featureflag"
	"github.com/sapling-labs/arbor/growth"
	arborhttp "github.com/sapling-labs/arbor/http"
	"github.com/sapling-labs/arbor/models"
	"github.com/sapling-labs/arbor/smoketest"
	"github.com/sapling-labs/arbor/treegen"
	"github.com/segmentio/encoding/json"
)

var (
	// The arbor version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "arbor_info",
		Help:        "Arbor information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr              string        `cli:""        env:"ARBOR_ADDR"                help:"Listening address for tree requests."`
	AdminAddr         string        `cli:""        env:"ARBOR_ADMIN_ADDR"          help:"Admin listening address."`
	PublicEndpoint    string        `cli:""        env:"ARBOR_PUBLIC_ENDPOINT"     help:"The public endpoint where this arbor server is reachable."`
	LogLevel          string        `cli:""        env:"ARBOR_LOG_LEVEL"           help:"Log level (debug|info|warning|error)."`
	LogIndent         bool          `cli:""        env:"ARBOR_LOG_INDENT"          help:"Indent logs."`
	SeedStructureFile string        `cli:""        env:"ARBOR_SEED_STRUCTURE_FILE" help:"YAML file overriding the default growth parameters."`
	Seed              string        `cli:""        env:"ARBOR_SEED"                help:"Seed of the tree generated by a one-shot run."`
	Name              string        `cli:""        env:"ARBOR_NAME"                help:"Name of the tree generated by a one-shot run."`
	MeshOutput        string        `cli:""        env:"ARBOR_MESH_OUTPUT"         help:"Writes the tree mesh to this OBJ file and exits."`
	SkeletonOutput    string        `cli:""        env:"ARBOR_SKELETON_OUTPUT"     help:"Writes the tree skeleton to this JSON file and exits."`
	Subdivisions      int           `cli:""        env:"ARBOR_SUBDIVISIONS"        help:"Points inserted per branch when smoothing."`
	RingSegments      int           `cli:""        env:"ARBOR_RING_SEGMENTS"       help:"Vertices per branch ring."`
	MaxIterations     int           `cli:",hidden" env:"ARBOR_MAX_ITERATIONS"      help:"Maximum iteration count a request can ask for."`
	ShutdownTimeout   time.Duration `cli:",hidden" env:"ARBOR_SHUTDOWN_TIMEOUT"    help:"Time given to in-flight generations when stopping."`
	FeatureFlags      []string      `cli:",hidden" env:"ARBOR_FEATURE_FLAGS"       help:"Comma separated feature flags"`
	Events            eventsConfig  `cli:",hidden" env:"-"                         help:"Event pusher configuration."`
	Version           bool          `cli:""        env:"-"                         help:"Show version."`
	Help              bool          `cli:""        env:"-"                         help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"ARBOR_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"ARBOR_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"ARBOR_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"ARBOR_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:            ":4000",
		AdminAddr:       ":18190",
		PublicEndpoint:  "http://localhost:4000",
		LogLevel:        logs.InfoLevel.String(),
		Seed:            "0",
		RingSegments:    16,
		MaxIterations:   arborhttp.DefaultMaxIterations,
		ShutdownTimeout: arborhttp.DefaultShutdownTimeout,
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
		Help("Grows procedural trees and serves their meshes.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "arbor",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	seedStructure, err := loadSeedStructure(conf.SeedStructureFile)
	if err != nil {
		logs.Fatal(err)
	}

	opts := treegen.Options{
		Flags:        featureflag.New(conf.FeatureFlags),
		Subdivisions: conf.Subdivisions,
		RingSegments: conf.RingSegments,
	}

	if conf.MeshOutput != "" || conf.SkeletonOutput != "" {
		if err := generateOnce(ctx, conf, seedStructure, opts); err != nil {
			logs.Fatal(err)
		}
		return
	}

	var service http.ServeMux
	trees := arborhttp.TreeHandler{
		SeedStructure: seedStructure,
		Options:       opts,
		MaxIterations: conf.MaxIterations,
	}
	trees.Register(&service)
	service.HandleFunc("/health", arborhttp.HandleHealthCheck)
	service.HandleFunc("/ready", arborhttp.HandleReadyCheck(&trees, func() bool {
		return ctx.Err() == nil
	}))
	service.HandleFunc("/version", arborhttp.HandleVersion(arborhttp.NewVersionInfo(version, &trees)))
	service.HandleFunc("POST /smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Arbor %s", version),
		Transport: metrics.HTTPTransport(http.DefaultTransport),
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logs.WithTag("from_endpoint", res.FromEndpoint).
				WithTag("to_endpoint", res.ToEndpoint).
				WithTag("seed", res.Seed).
				WithTag("latency_ms", res.LatencyMilliSec).
				WithTag("vertices", res.Vertices).
				WithTag("triangles", res.Triangles).
				WithTag("error", res.Error).
				Info("smoke test finished")
			return nil
		},
	}))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", arborhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("feature_flags", opts.Flags.Strings()).
		WithTag("iterations", seedStructure.IterationsCount).
		Info("starting arbor server")

	go func() {
		seed, _ := strconv.ParseUint(conf.Seed, 10, 64)
		if err := trees.WarmUp(ctx, seed); err != nil {
			logs.Warn(err)
		}
	}()

	arborhttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			arborhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func loadSeedStructure(filename string) (growth.SeedStructure, error) {
	if filename == "" {
		return growth.DefaultSeedStructure(), nil
	}

	f, err := os.Open(filename)
	if err != nil {
		return growth.SeedStructure{}, errors.New("opening seed structure file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	defer f.Close()

	s, err := growth.LoadSeedStructure(f)
	if err != nil {
		return growth.SeedStructure{}, errors.New("loading seed structure failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	return s, nil
}

func generateOnce(ctx context.Context, conf config, s growth.SeedStructure, opts treegen.Options) error {
	seed, _ := strconv.ParseUint(conf.Seed, 10, 64)
	tree := models.NewTreeIdentity(conf.Name, seed)

	res, err := treegen.Generate(ctx, tree, s, opts)
	if err != nil {
		return err
	}

	if conf.MeshOutput != "" {
		if err := writeFile(conf.MeshOutput, res.Mesh.WriteOBJ); err != nil {
			return err
		}
	}

	if conf.SkeletonOutput != "" {
		if err := writeFile(conf.SkeletonOutput, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Skeleton)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(filename string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.New("creating output directory failed").
			WithTag("file_name", filename).
			Wrap(err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return errors.New("creating output file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}

	if err := write(f); err != nil {
		f.Close()
		return errors.New("writing output file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}

	if err := f.Close(); err != nil {
		return errors.New("closing output file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}

	logs.WithTag("file_name", filename).Info("output written")
	return nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if _, err := strconv.ParseUint(conf.Seed, 10, 64); err != nil {
		return errors.New("invalid seed").
			WithTag("seed", conf.Seed).
			Wrap(err)
	}

	if conf.Subdivisions < 0 {
		return errors.New("subdivisions can't be negative").
			WithTag("subdivisions", conf.Subdivisions)
	}

	if conf.RingSegments < 3 {
		return errors.New("a ring needs at least 3 segments").
			WithTag("ring_segments", conf.RingSegments)
	}

	if conf.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout can't be negative").
			WithTag("shutdown_timeout", conf.ShutdownTimeout)
	}

	if conf.MaxIterations < 0 {
		return errors.New("max iterations can't be negative").
			WithTag("max_iterations", conf.MaxIterations)
	}

	return nil
}
