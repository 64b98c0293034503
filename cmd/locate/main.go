// Command locate runs a robust position estimation over a recorded
// reading set and prints (and optionally stores) the result.
//
// Readings come from a scenario JSON file (see cmd/tools/gen-readings)
// or from a sqlite store written by an earlier -record run.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/radiolocate/internal/config"
	"github.com/banshee-data/radiolocate/internal/db"
	"github.com/banshee-data/radiolocate/internal/scenario"
	"github.com/banshee-data/radiolocate/internal/version"
	"github.com/banshee-data/radiolocate/reading"
	"github.com/banshee-data/radiolocate/robust"
)

func main() {
	var (
		inputPath        = flag.String("input", "", "scenario JSON file to load readings from")
		dbPath           = flag.String("db", "", "sqlite store path (for -record, or as reading source with -scenario)")
		scenarioName     = flag.String("scenario", "", "scenario name when loading from or recording to the store")
		configPath       = flag.String("config", "", "tuning config JSON (defaults apply when omitted)")
		methodName       = flag.String("method", "", "robust method: ransac, lmeds, msac, prosac, promeds (default from config)")
		mode             = flag.String("mode", "auto", "estimation mode: auto, ranging, rssi, mixed, sequential")
		dims             = flag.Int("dims", 0, "position dimensionality override (0 = from scenario)")
		estimatePower    = flag.Bool("estimate-power", false, "estimate equivalent transmitted power (rssi/mixed/sequential)")
		estimatePathLoss = flag.Bool("estimate-pathloss", false, "estimate path-loss exponent (rssi/mixed/sequential)")
		seed             = flag.Int64("seed", 0, "random seed override (0 = from config)")
		record           = flag.Bool("record", false, "record readings and result to the sqlite store")
		verbose          = flag.Bool("verbose", false, "enable estimator diagnostics on stderr")
		showVersion      = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("locate", version.String())
		return
	}

	if *verbose {
		robust.SetLogWriters(os.Stderr, os.Stderr)
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		tuning = loaded
	}

	method := tuning.GetMethod()
	if *methodName != "" {
		m, err := robust.ParseMethod(*methodName)
		if err != nil {
			log.Fatalf("method: %v", err)
		}
		method = m
	}
	randomSeed := tuning.GetRandomSeed()
	if *seed != 0 {
		randomSeed = *seed
	}

	readings, scen, err := loadReadings(*inputPath, *dbPath, *scenarioName)
	if err != nil {
		log.Fatalf("readings: %v", err)
	}
	if len(readings) == 0 {
		log.Fatal("no readings loaded")
	}

	dimensionality := readings[0].Position.Dims()
	if scen != nil {
		dimensionality = scen.Dims
	}
	if *dims != 0 {
		dimensionality = *dims
	}

	cfg := robust.Config{
		Method:                     method,
		Dims:                       dimensionality,
		Confidence:                 tuning.GetConfidence(),
		MaxIterations:              tuning.GetMaxIterations(),
		ProgressDelta:              tuning.GetProgressDelta(),
		StopThreshold:              tuning.GetStopThreshold(),
		DisableRefinement:          tuning.GetDisableRefinement(),
		KeepCovariance:             tuning.GetKeepCovariance(),
		InitialTransmittedPowerdBm: tuning.GetInitialTransmittedPowerdBm(),
		InitialPathLossExponent:    tuning.GetInitialPathLossExponent(),
		EstimateTransmittedPower:   *estimatePower,
		EstimatePathLossExponent:   *estimatePathLoss,
		RandomSeed:                 randomSeed,
	}

	result, err := runEstimate(resolveMode(*mode, readings), cfg, tuning, readings)
	if err != nil {
		log.Fatalf("estimate: %v", err)
	}

	fmt.Printf("method:     %s\n", method)
	fmt.Printf("position:   %s\n", formatPoint(result.position))
	if result.hasPower {
		fmt.Printf("power:      %.3f dBm\n", result.powerdBm)
	}
	if result.hasPathLoss {
		fmt.Printf("path loss:  %.3f\n", result.pathLoss)
	}
	fmt.Printf("inliers:    %d/%d\n", result.numInliers, len(readings))
	fmt.Printf("iterations: %d\n", result.iterations)
	if scen != nil && len(scen.TruePosition) == dimensionality {
		truth := reading.Point(scen.TruePosition)
		fmt.Printf("error:      %.6f\n", result.position.DistanceTo(truth))
	}

	if *record {
		if *dbPath == "" || *scenarioName == "" {
			log.Fatal("-record requires -db and -scenario")
		}
		store, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer store.Close()
		if *inputPath != "" {
			if err := store.InsertReadings(*scenarioName, readings); err != nil {
				log.Fatalf("store readings: %v", err)
			}
		}
		if err := store.InsertEstimate(db.EstimateRecord{
			Scenario:    *scenarioName,
			Method:      method.String(),
			Position:    result.position,
			PowerdBm:    result.powerdBm,
			PathLoss:    result.pathLoss,
			NumInliers:  result.numInliers,
			NumReadings: len(readings),
			Iterations:  result.iterations,
		}); err != nil {
			log.Fatalf("store estimate: %v", err)
		}
	}
}

type estimateResult struct {
	position    reading.Point
	powerdBm    float64
	hasPower    bool
	pathLoss    float64
	hasPathLoss bool
	numInliers  int
	iterations  int
}

// loadReadings pulls readings from the scenario file or the sqlite store.
func loadReadings(inputPath, dbPath, scenarioName string) ([]reading.Reading, *scenario.File, error) {
	if inputPath != "" {
		f, err := scenario.Load(inputPath)
		if err != nil {
			return nil, nil, err
		}
		return f.ToReadings(), f, nil
	}
	if dbPath != "" && scenarioName != "" {
		store, err := db.NewDB(dbPath)
		if err != nil {
			return nil, nil, err
		}
		defer store.Close()
		readings, err := store.ListReadings(scenarioName)
		return readings, nil, err
	}
	return nil, nil, fmt.Errorf("need -input, or -db with -scenario")
}

// resolveMode maps "auto" to the mode implied by the reading components.
func resolveMode(mode string, readings []reading.Reading) string {
	if mode != "auto" {
		return mode
	}
	allDistance, allRSSI := true, true
	for _, r := range readings {
		allDistance = allDistance && r.HasDistance
		allRSSI = allRSSI && r.HasRSSI
	}
	switch {
	case allDistance && allRSSI:
		return "mixed"
	case allDistance:
		return "ranging"
	case allRSSI:
		return "rssi"
	}
	return "ranging"
}

func runEstimate(mode string, cfg robust.Config, tuning *config.TuningConfig, readings []reading.Reading) (*estimateResult, error) {
	switch mode {
	case "ranging":
		cfg.Threshold = tuning.GetRangingThreshold()
		e, err := robust.NewRangingEstimator(cfg)
		if err != nil {
			return nil, err
		}
		if err := e.SetReadings(readings); err != nil {
			return nil, err
		}
		if err := e.Estimate(); err != nil {
			return nil, err
		}
		return &estimateResult{
			position:   e.EstimatedPosition(),
			numInliers: e.Inliers().NumInliers,
			iterations: e.Iterations(),
		}, nil

	case "rssi":
		cfg.Threshold = tuning.GetRSSIThreshold()
		e, err := robust.NewRSSIEstimator(cfg)
		if err != nil {
			return nil, err
		}
		if err := e.SetReadings(readings); err != nil {
			return nil, err
		}
		if err := e.Estimate(); err != nil {
			return nil, err
		}
		return &estimateResult{
			position:    e.EstimatedPosition(),
			powerdBm:    e.EstimatedTransmittedPowerdBm(),
			hasPower:    cfg.EstimateTransmittedPower,
			pathLoss:    e.EstimatedPathLossExponent(),
			hasPathLoss: cfg.EstimatePathLossExponent,
			numInliers:  e.Inliers().NumInliers,
			iterations:  e.Iterations(),
		}, nil

	case "mixed":
		cfg.Threshold = tuning.GetRSSIThreshold()
		e, err := robust.NewMixedEstimator(cfg)
		if err != nil {
			return nil, err
		}
		if err := e.SetReadings(readings); err != nil {
			return nil, err
		}
		if err := e.Estimate(); err != nil {
			return nil, err
		}
		return &estimateResult{
			position:    e.EstimatedPosition(),
			powerdBm:    e.EstimatedTransmittedPowerdBm(),
			hasPower:    cfg.EstimateTransmittedPower,
			pathLoss:    e.EstimatedPathLossExponent(),
			hasPathLoss: cfg.EstimatePathLossExponent,
			numInliers:  e.Inliers().NumInliers,
			iterations:  e.Iterations(),
		}, nil

	case "sequential":
		rangingCfg := cfg
		rangingCfg.Threshold = tuning.GetRangingThreshold()
		rssiCfg := cfg
		rssiCfg.Threshold = tuning.GetRSSIThreshold()
		e, err := robust.NewSequentialEstimator(robust.SequentialConfig{
			Ranging: rangingCfg,
			RSSI:    rssiCfg,
		})
		if err != nil {
			return nil, err
		}
		if err := e.SetReadings(readings); err != nil {
			return nil, err
		}
		if err := e.Estimate(); err != nil {
			return nil, err
		}
		return &estimateResult{
			position:    e.EstimatedPosition(),
			powerdBm:    e.EstimatedTransmittedPowerdBm(),
			hasPower:    true,
			pathLoss:    e.EstimatedPathLossExponent(),
			hasPathLoss: cfg.EstimatePathLossExponent,
			numInliers:  e.RangingInliers().NumInliers,
			iterations:  0,
		}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

func formatPoint(p reading.Point) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
