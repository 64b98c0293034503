// Command gen-readings produces synthetic scenario files for exercising
// the estimators: receivers on a ring around a true emitter position,
// gaussian measurement noise, and an optional fraction of gross outliers.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/radiolocate/internal/scenario"
	"github.com/banshee-data/radiolocate/internal/version"
	"github.com/banshee-data/radiolocate/reading"
)

func main() {
	var (
		output      = flag.String("output", "scenario.json", "output scenario file")
		name        = flag.String("name", "", "scenario name (default: generated)")
		mode        = flag.String("mode", "ranging", "reading kind: ranging, rssi, mixed")
		dims        = flag.Int("dims", 2, "position dimensionality (2 or 3)")
		count       = flag.Int("count", 12, "number of receivers")
		radius      = flag.Float64("radius", 50, "receiver ring radius around the emitter")
		truePos     = flag.String("position", "0,0", "true emitter position, comma separated")
		frequency   = flag.Float64("frequency", 2.4e9, "carrier frequency in Hz")
		powerdBm    = flag.Float64("power", 20, "true equivalent transmitted power in dBm")
		pathLoss    = flag.Float64("pathloss", reading.DefaultPathLossExponent, "true path-loss exponent")
		noise       = flag.Float64("noise", 0.1, "measurement noise stddev (meters for ranging, dB for rssi)")
		outlierFrac = flag.Float64("outliers", 0, "fraction of readings corrupted into gross outliers")
		seed        = flag.Int64("seed", 0, "random seed (0 = time-based)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("gen-readings", version.String())
		return
	}

	if *dims != 2 && *dims != 3 {
		log.Fatalf("dims must be 2 or 3, got %d", *dims)
	}
	emitter, err := parsePoint(*truePos, *dims)
	if err != nil {
		log.Fatalf("position: %v", err)
	}
	if *outlierFrac < 0 || *outlierFrac >= 1 {
		log.Fatalf("outlier fraction must be in [0, 1), got %g", *outlierFrac)
	}

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))

	f := &scenario.File{
		Name:        *name,
		Dims:        *dims,
		FrequencyHz: *frequency,
	}
	if f.Name == "" {
		f.Name = fmt.Sprintf("%s-%dd-%d", *mode, *dims, *count)
	}
	f.TruePosition = append([]float64(nil), emitter...)
	if *mode == "rssi" || *mode == "mixed" {
		p := *powerdBm
		f.TruePowerdBm = &p
		n := *pathLoss
		f.TruePathLoss = &n
	}

	numOutliers := int(math.Round(*outlierFrac * float64(*count)))
	for i := 0; i < *count; i++ {
		receiver := ringPosition(emitter, *radius, i, *count, *dims, rng)
		dist := receiver.DistanceTo(emitter)

		sr := scenario.Reading{
			SourceID: "src_" + uuid.NewString(),
			Position: receiver,
		}
		corrupt := i < numOutliers

		if *mode == "ranging" || *mode == "mixed" {
			d := dist + rng.NormFloat64()*(*noise)
			if corrupt {
				d = dist * (3 + rng.Float64()*5)
			}
			sr.Distance = &d
			sr.DistanceStdDev = *noise
		}
		if *mode == "rssi" || *mode == "mixed" {
			k := reading.PathLossConstant(*frequency)
			v := reading.ExpectedRSSI(*powerdBm, *pathLoss, k, dist) + rng.NormFloat64()*(*noise)
			if corrupt {
				v -= 30 + rng.Float64()*30
			}
			sr.RSSIdBm = &v
			sr.RSSIStdDev = *noise
		}
		if sr.Distance == nil && sr.RSSIdBm == nil {
			log.Fatalf("unknown mode %q", *mode)
		}
		f.Readings = append(f.Readings, sr)
	}

	// Outliers were generated first; shuffle so they are not clustered.
	rng.Shuffle(len(f.Readings), func(i, j int) {
		f.Readings[i], f.Readings[j] = f.Readings[j], f.Readings[i]
	})

	if err := scenario.Save(*output, f); err != nil {
		log.Fatalf("save: %v", err)
	}
	log.Printf("wrote %s: %d readings (%d outliers), seed %d", *output, *count, numOutliers, s)
}

// ringPosition places receiver i evenly on a circle around the emitter,
// with a small radial jitter so 3D layouts are not coplanar-degenerate.
func ringPosition(emitter reading.Point, radius float64, i, count, dims int, rng *rand.Rand) reading.Point {
	angle := 2 * math.Pi * float64(i) / float64(count)
	p := make(reading.Point, dims)
	p[0] = emitter[0] + radius*math.Cos(angle)
	p[1] = emitter[1] + radius*math.Sin(angle)
	if dims == 3 {
		p[2] = emitter[2] + radius*0.3*(rng.Float64()*2-1)
	}
	return p
}

func parsePoint(s string, dims int) (reading.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != dims {
		return nil, fmt.Errorf("want %d coordinates, got %d", dims, len(parts))
	}
	p := make(reading.Point, dims)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
		p[i] = v
	}
	return p, nil
}
