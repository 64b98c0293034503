package robust

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/radiolocate/reading"
)

// SequentialConfig configures the two passes of a SequentialEstimator.
// The ranging pass fixes the position; the RSSI pass then estimates
// transmission parameters with the position pinned. Dimensionality must
// agree between the passes.
type SequentialConfig struct {
	// Ranging configures the position pass. Transmission flags are
	// ignored there.
	Ranging Config

	// RSSI configures the transmission pass. Its position-estimation
	// flag and initial position are overridden by the orchestrator;
	// when neither transmission parameter is enabled, transmitted-power
	// estimation is enabled by default.
	RSSI Config
}

// SequentialEstimator decouples position estimation from transmitted
// power and path-loss estimation: distances are generally better
// conditioned for position, and RSSI conditions well on a fixed
// position. Both passes run their own robust consensus; failure of
// either pass fails the whole estimation and leaves no partial result.
type SequentialEstimator struct {
	cfg           SequentialConfig
	readings      []reading.Reading
	qualityScores []float64
	listener      Listener
	locked        bool

	hasResult          bool
	estimatedPosition  reading.Point
	positionCovariance *mat.SymDense
	estimatedPowerdBm  float64
	powerVariance      float64
	hasPowerVariance   bool
	estimatedPathLoss  float64
	pathLossVariance   float64
	hasPathLossVar     bool
	combinedCovariance *mat.SymDense
	rangingInliers     *InliersData
	rssiInliers        *InliersData
}

// NewSequentialEstimator builds a sequential position-then-power
// estimator. Readings must carry both distance and RSSI components.
func NewSequentialEstimator(cfg SequentialConfig) (*SequentialEstimator, error) {
	cfg.Ranging = cfg.Ranging.withDefaults(DefaultRangingThreshold)
	cfg.RSSI = cfg.RSSI.withDefaults(DefaultRSSIThreshold)
	if !cfg.RSSI.EstimateTransmittedPower && !cfg.RSSI.EstimatePathLossExponent {
		cfg.RSSI.EstimateTransmittedPower = true
	}
	if cfg.RSSI.Dims != cfg.Ranging.Dims {
		return nil, fmt.Errorf("%w: pass dimensionalities differ (%d vs %d)",
			ErrInvalidConfig, cfg.Ranging.Dims, cfg.RSSI.Dims)
	}
	if err := cfg.Ranging.validate(); err != nil {
		return nil, err
	}
	// The RSSI pass is validated with the pin applied, since the pinned
	// position is only known after the ranging pass runs.
	probe := cfg.RSSI
	probe.DisablePositionEstimation = false
	if err := probe.validate(); err != nil {
		return nil, err
	}
	return &SequentialEstimator{cfg: cfg}, nil
}

// Method returns the consensus method of the position pass.
func (e *SequentialEstimator) Method() Method { return e.cfg.Ranging.Method }

// IsLocked reports whether an estimation is currently in progress.
func (e *SequentialEstimator) IsLocked() bool { return e.locked }

// MinReadings returns the larger of the two passes' minimums.
func (e *SequentialEstimator) MinReadings() int {
	rangingMin := e.cfg.Ranging.Dims + 1
	rssiMin := 1 // threshold row count for the pinned pass
	if e.cfg.RSSI.EstimateTransmittedPower {
		rssiMin++
	}
	if e.cfg.RSSI.EstimatePathLossExponent {
		rssiMin++
	}
	if rssiMin > rangingMin {
		return rssiMin
	}
	return rangingMin
}

// SetReadings replaces the observation set. Every reading must carry
// both a distance and an RSSI component.
func (e *SequentialEstimator) SetReadings(readings []reading.Reading) error {
	if e.locked {
		return ErrLocked
	}
	e.readings = readings
	return nil
}

// SetQualityScores supplies quality scores, forwarded to both passes
// when their methods sample in quality order.
func (e *SequentialEstimator) SetQualityScores(scores []float64) error {
	if e.locked {
		return ErrLocked
	}
	e.qualityScores = scores
	return nil
}

// SetListener installs the estimation event listener. Only start and end
// events fire at the orchestrator level.
func (e *SequentialEstimator) SetListener(l Listener) error {
	if e.locked {
		return ErrLocked
	}
	e.listener = l
	return nil
}

// IsReady reports whether Estimate can run.
func (e *SequentialEstimator) IsReady() bool {
	if len(e.readings) < e.MinReadings() {
		return false
	}
	needScores := e.cfg.Ranging.Method.usesQualityScores() || e.cfg.RSSI.Method.usesQualityScores()
	if needScores && len(e.qualityScores) != len(e.readings) {
		return false
	}
	dims := e.cfg.Ranging.Dims
	for _, r := range e.readings {
		if !r.HasDistance || !r.HasRSSI || r.Validate(dims) != nil {
			return false
		}
	}
	return true
}

// Estimate runs the ranging pass, pins its position for the RSSI pass,
// and combines the two results. Nothing is committed unless both passes
// succeed.
func (e *SequentialEstimator) Estimate() error {
	if e.locked {
		return ErrLocked
	}
	if !e.IsReady() {
		return ErrNotReady
	}
	e.locked = true
	defer func() {
		if e.listener != nil {
			e.listener.OnEstimateEnd(e)
		}
		e.locked = false
	}()
	if e.listener != nil {
		e.listener.OnEstimateStart(e)
	}

	// Pass 1: position from the ranging components.
	ranging, err := NewRangingEstimator(e.cfg.Ranging)
	if err != nil {
		return err
	}
	rangingReadings := make([]reading.Reading, len(e.readings))
	for i, r := range e.readings {
		rangingReadings[i] = r.RangingOnly()
	}
	if err := ranging.SetReadings(rangingReadings); err != nil {
		return err
	}
	if err := ranging.SetQualityScores(e.qualityScores); err != nil {
		return err
	}
	if err := ranging.Estimate(); err != nil {
		return fmt.Errorf("position pass: %w", err)
	}

	// Pass 2: transmission parameters with the position pinned.
	rssiCfg := e.cfg.RSSI
	rssiCfg.DisablePositionEstimation = true
	rssiCfg.InitialPosition = ranging.EstimatedPosition()
	rssi, err := NewRSSIEstimator(rssiCfg)
	if err != nil {
		return err
	}
	rssiReadings := make([]reading.Reading, len(e.readings))
	for i, r := range e.readings {
		rssiReadings[i] = r.RSSIOnly()
	}
	if err := rssi.SetReadings(rssiReadings); err != nil {
		return err
	}
	if err := rssi.SetQualityScores(e.qualityScores); err != nil {
		return err
	}
	if err := rssi.Estimate(); err != nil {
		return fmt.Errorf("transmission pass: %w", err)
	}

	// Commit atomically now that both passes succeeded.
	e.estimatedPosition = ranging.EstimatedPosition()
	e.positionCovariance = ranging.EstimatedPositionCovariance()
	e.estimatedPowerdBm = rssi.EstimatedTransmittedPowerdBm()
	e.powerVariance, e.hasPowerVariance = rssi.EstimatedTransmittedPowerVariance()
	e.estimatedPathLoss = rssi.EstimatedPathLossExponent()
	e.pathLossVariance, e.hasPathLossVar = rssi.EstimatedPathLossExponentVariance()
	e.rangingInliers = ranging.Inliers()
	e.rssiInliers = rssi.Inliers()
	e.combinedCovariance = e.assembleCombinedCovariance()
	e.hasResult = true
	return nil
}

// assembleCombinedCovariance builds the block-diagonal covariance over
// [position, power?, path-loss?]. Cross-terms between the position and
// transmission blocks are zero: the two estimations are independent.
// Returns nil unless the position covariance and every enabled
// transmission variance are available.
func (e *SequentialEstimator) assembleCombinedCovariance() *mat.SymDense {
	if e.positionCovariance == nil {
		return nil
	}
	if e.cfg.RSSI.EstimateTransmittedPower && !e.hasPowerVariance {
		return nil
	}
	if e.cfg.RSSI.EstimatePathLossExponent && !e.hasPathLossVar {
		return nil
	}

	dims := e.cfg.Ranging.Dims
	size := dims
	if e.cfg.RSSI.EstimateTransmittedPower {
		size++
	}
	if e.cfg.RSSI.EstimatePathLossExponent {
		size++
	}

	combined := mat.NewSymDense(size, nil)
	for i := 0; i < dims; i++ {
		for j := i; j < dims; j++ {
			combined.SetSym(i, j, e.positionCovariance.At(i, j))
		}
	}
	offset := dims
	if e.cfg.RSSI.EstimateTransmittedPower {
		combined.SetSym(offset, offset, e.powerVariance)
		offset++
	}
	if e.cfg.RSSI.EstimatePathLossExponent {
		combined.SetSym(offset, offset, e.pathLossVariance)
	}
	return combined
}

// HasResult reports whether a fully completed run has been committed.
func (e *SequentialEstimator) HasResult() bool { return e.hasResult }

// EstimatedPosition returns the position from the ranging pass, or nil.
func (e *SequentialEstimator) EstimatedPosition() reading.Point {
	return e.estimatedPosition.Clone()
}

// EstimatedPositionCovariance returns the ranging pass covariance block.
func (e *SequentialEstimator) EstimatedPositionCovariance() *mat.SymDense {
	return e.positionCovariance
}

// EstimatedTransmittedPowerdBm returns the transmission pass power.
func (e *SequentialEstimator) EstimatedTransmittedPowerdBm() float64 {
	return e.estimatedPowerdBm
}

// EstimatedTransmittedPowerVariance returns the power variance, when
// available.
func (e *SequentialEstimator) EstimatedTransmittedPowerVariance() (float64, bool) {
	return e.powerVariance, e.hasPowerVariance
}

// EstimatedPathLossExponent returns the transmission pass path-loss
// exponent.
func (e *SequentialEstimator) EstimatedPathLossExponent() float64 {
	return e.estimatedPathLoss
}

// EstimatedPathLossExponentVariance returns the path-loss variance, when
// available.
func (e *SequentialEstimator) EstimatedPathLossExponentVariance() (float64, bool) {
	return e.pathLossVariance, e.hasPathLossVar
}

// CombinedCovariance returns the block-diagonal covariance over position
// and transmission parameters, or nil when either block is unavailable.
func (e *SequentialEstimator) CombinedCovariance() *mat.SymDense {
	return e.combinedCovariance
}

// RangingInliers returns the inlier data of the position pass.
func (e *SequentialEstimator) RangingInliers() *InliersData { return e.rangingInliers }

// RSSIInliers returns the inlier data of the transmission pass.
func (e *SequentialEstimator) RSSIInliers() *InliersData { return e.rssiInliers }
