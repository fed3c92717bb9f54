package main

import (
	"context"
	"flag"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"NightRunners/internal/authority"
	"NightRunners/internal/logging"
	"NightRunners/internal/netcode"
	"NightRunners/internal/session"
)

// demoSpawner logs throttled waves instead of spawning pursuers.
type demoSpawner struct{}

func (demoSpawner) RequestSpawns(count int, aggression float64) {
	log := logging.WithComponent("demo")
	log.Info().
		Int("count", count).
		Float64("aggression", aggression).
		Msg("spawn wave")
}

func main() {
	addr := flag.String("addr", ":8080", "address for the dev authority (e.g., 127.0.0.1:8080)")
	configPath := flag.String("config", "configs/session.json", "path to session tuning JSON")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logJSON := flag.Bool("log-json", false, "emit JSON logs instead of console output")
	demo := flag.Bool("demo", false, "run a demo mission session against the authority")
	authorityURL := flag.String("authority", "", "remote authority base URL for the demo session (default: the local authority)")
	caCert := flag.String("ca-cert", "", "CA certificate for HTTPS authority connections")

	maxHeat := flag.Float64("tension-max-heat", math.NaN(), "override heat saturation point")
	maxTime := flag.Float64("tension-max-time", math.NaN(), "override time saturation point in seconds")
	weightHeat := flag.Float64("tension-weight-heat", math.NaN(), "override heat signal weight")
	weightTime := flag.Float64("tension-weight-time", math.NaN(), "override time signal weight")
	weightAlert := flag.Float64("tension-weight-alert", math.NaN(), "override alert signal weight")
	spawnInterval := flag.Float64("spawn-interval", math.NaN(), "override base seconds between waves")
	spawnMaxActive := flag.Int("spawn-max-active", -1, "override concurrent pursuer cap")
	syncInterval := flag.Float64("sync-interval", math.NaN(), "override seconds between snapshot pushes")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, JSONOutput: *logJSON})
	log := logging.WithComponent("main")

	cfg, err := session.LoadTuning(*configPath, session.DefaultConfig())
	if err != nil {
		log.Warn().Err(err).Msg("session tuning load failed; using defaults")
	}
	if !math.IsNaN(*maxHeat) {
		cfg.Tension.MaxHeat = *maxHeat
	}
	if !math.IsNaN(*maxTime) {
		cfg.Tension.MaxTime = *maxTime
	}
	if !math.IsNaN(*weightHeat) {
		cfg.Tension.WeightHeat = *weightHeat
	}
	if !math.IsNaN(*weightTime) {
		cfg.Tension.WeightTime = *weightTime
	}
	if !math.IsNaN(*weightAlert) {
		cfg.Tension.WeightAlert = *weightAlert
	}
	if !math.IsNaN(*spawnInterval) {
		cfg.Spawn.BaseInterval = *spawnInterval
	}
	if *spawnMaxActive >= 1 {
		cfg.Spawn.MaxActive = *spawnMaxActive
	}
	if !math.IsNaN(*syncInterval) {
		cfg.Sync.SyncInterval = *syncInterval
	}
	cfg = session.SanitizeConfig(cfg)

	srv := authority.NewServer()

	if *demo {
		go runDemoSession(cfg, *addr, *authorityURL, *caCert)
	}

	if err := srv.Start(*addr); err != nil {
		log.Fatal().Err(err).Msg("authority server failed")
	}
}

func runDemoSession(cfg session.Config, addr, authorityURL, caCert string) {
	log := logging.WithComponent("demo")

	baseURL := authorityURL
	var httpClient *http.Client
	if baseURL == "" {
		baseURL = "http://" + addr
		if len(addr) > 0 && addr[0] == ':' {
			baseURL = "http://127.0.0.1" + addr
		}
	} else if strings.HasPrefix(baseURL, "https://") {
		c, err := netcode.BuildHTTP2Client(caCert)
		if err != nil {
			log.Error().Err(err).Msg("http2 client setup failed")
			return
		}
		httpClient = c
	}

	cfg.MissionID = "demo-mission"
	cfg.ValidationEnabled = false

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := session.New(cfg, session.Deps{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		Spawner:    demoSpawner{},
		OnTerminated: func(reason string) {
			log.Warn().Str("reason", reason).Msg("demo mission terminated")
			stop()
		},
	})
	s.SetAuthToken("demo-token")
	s.Players().Update(netcode.PlayerState{PlayerID: "demo-driver"})
	s.Start(ctx)
	defer s.Close()

	// Drip some pressure so the tension curve is visible in the logs.
	s.AddHeat(5)
	s.RaiseAlert(0.3)

	<-ctx.Done()
}
