// Command goal-distance estimates the distance and angle of the goal from a
// depth stream and publishes them to the message hub.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/goal-distance/internal/config"
	"github.com/banshee-data/goal-distance/internal/frames"
	"github.com/banshee-data/goal-distance/internal/goal"
	"github.com/banshee-data/goal-distance/internal/goaldb"
	"github.com/banshee-data/goal-distance/internal/hub"
	"github.com/banshee-data/goal-distance/internal/monitoring"
	"github.com/banshee-data/goal-distance/internal/runner"
	"github.com/banshee-data/goal-distance/internal/units"
	"github.com/banshee-data/goal-distance/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to a tuning JSON file (see config/tuning.defaults.json)")
	source        = flag.String("source", "synthetic", "Frame source: synthetic")
	hubAddr       = flag.String("hub", "", "Hub address (overrides config)")
	localAddr     = flag.String("local", "", "Local bind address (overrides config)")
	seed          = flag.Int64("seed", -1, "RANSAC seed; 0 seeds from the clock, -1 uses the config value")
	dbPath        = flag.String("db", "", "Record published estimates to this SQLite file")
	unitsFlag     = flag.String("units", units.Metres, "Display units for log output ("+units.GetValidUnitsString()+")")
	statsInterval = flag.Duration("stats-interval", -1, "Interval between stats lines; 0 disables, -1 uses the config value")
	verbose       = flag.Bool("verbose", false, "Log every estimate")
	showVersion   = flag.Bool("version", false, "Print version and exit")

	// Synthetic source
	synthDistance = flag.Float64("synthetic-distance", 2.5, "Synthetic target distance in metres")
	synthTilt     = flag.Float64("synthetic-tilt", 15, "Synthetic target tilt in degrees")
	synthNoise    = flag.Float64("synthetic-noise", 0.002, "Synthetic depth noise standard deviation in metres")
	synthOutliers = flag.Float64("synthetic-outliers", 0, "Fraction of synthetic pixels replaced by outliers")
	synthFail     = flag.Int("synthetic-fail-every", 0, "Mark every Nth synthetic frame set corrupt (0 disables)")
	synthFrames   = flag.Int("synthetic-frames", 0, "Stop after this many synthetic frame sets (0 = unlimited)")
)

// options is everything run needs, resolved from flags and the tuning file.
type options struct {
	tuning        *config.TuningConfig
	session       hub.SessionConfig
	seed          int64
	statsInterval time.Duration
	units         string
	dbPath        string
	source        string
	synthetic     frames.SyntheticConfig
	sockets       hub.UDPSocketFactory
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("goal-distance"))
		return
	}

	opts, err := resolveOptions()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	monitoring.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("goal-distance %s starting (source=%s, hub=%s)", version.Version, opts.source, opts.session.HubAddr)
	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("goal-distance: %v", err)
		os.Exit(1)
	}
	log.Print("goal-distance stopped")
}

func resolveOptions() (options, error) {
	tuning := config.EmptyTuningConfig()
	if *configFile != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configFile); err != nil {
			return options{}, err
		}
	}
	if !units.IsValid(*unitsFlag) {
		return options{}, fmt.Errorf("invalid units %q, must be one of %s", *unitsFlag, units.GetValidUnitsString())
	}

	opts := options{
		tuning:        tuning,
		session:       tuning.SessionConfig(),
		seed:          tuning.GetRansacSeed(),
		statsInterval: tuning.GetStatsInterval(),
		units:         *unitsFlag,
		dbPath:        *dbPath,
		source:        *source,
		sockets:       hub.NewRealUDPSocketFactory(),
	}
	if *hubAddr != "" {
		opts.session.HubAddr = *hubAddr
	}
	if *localAddr != "" {
		opts.session.LocalAddr = *localAddr
	}
	if *seed >= 0 {
		opts.seed = *seed
	}
	if *statsInterval >= 0 {
		opts.statsInterval = *statsInterval
	}

	synth := frames.DefaultSyntheticConfig()
	synth.Distance = *synthDistance
	synth.TiltDegrees = *synthTilt
	synth.NoiseStdDev = *synthNoise
	synth.OutlierFraction = *synthOutliers
	synth.FailEvery = *synthFail
	synth.MaxFrames = *synthFrames
	opts.synthetic = synth
	return opts, nil
}

func openSource(opts options) (frames.Source, error) {
	switch opts.source {
	case "synthetic":
		in := opts.synthetic.Intrinsics
		if w, h := opts.tuning.GetImageWidth(), opts.tuning.GetImageHeight(); w != in.Width || h != in.Height {
			return nil, fmt.Errorf("synthetic stream is %dx%d but the config expects %dx%d", in.Width, in.Height, w, h)
		}
		return frames.NewSyntheticSource(opts.synthetic)
	default:
		return nil, fmt.Errorf("unknown frame source %q", opts.source)
	}
}

func run(ctx context.Context, opts options) error {
	estCfg := opts.tuning.EstimatorConfig()
	if err := estCfg.Validate(); err != nil {
		return err
	}
	est := goal.NewEstimator(estCfg, opts.seed)

	src, err := openSource(opts)
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}

	session, err := hub.OpenSession(opts.sockets, opts.session)
	if err != nil {
		src.Stop()
		return fmt.Errorf("open hub session: %w", err)
	}

	rcfg := runner.Config{StatsInterval: opts.statsInterval, Units: opts.units}
	if opts.dbPath != "" {
		db, err := goaldb.Open(opts.dbPath)
		if err != nil {
			session.Close()
			src.Stop()
			return fmt.Errorf("open estimate database: %w", err)
		}
		defer db.Close()

		runID, err := db.StartRun(opts.source)
		if err != nil {
			session.Close()
			src.Stop()
			return err
		}
		defer func() {
			if err := db.FinishRun(runID); err != nil {
				log.Printf("finish run %s: %v", runID, err)
			}
		}()
		log.Printf("recording estimates to %s as run %s", opts.dbPath, runID)
		rcfg.Recorder = db
		rcfg.RunID = runID
	}

	return runner.New(frames.NewAcquirer(src), est, session, rcfg).Run(ctx)
}
