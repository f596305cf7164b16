package drift

// KalmanFilter is a scalar Kalman filter over the raw sync-error signal
// (microseconds). It uses a fixed measurement-noise variance and a small
// process-noise term, plus a "forget factor" that gently inflates the
// posterior variance each update so the filter keeps tracking slow drift
// instead of converging to overconfidence.
type KalmanFilter struct {
	measurementVarianceUS2 float64
	processStdDevUS        float64
	forgetFactor           float64

	mean     float64
	variance float64
	seeded   bool
}

// NewKalmanFilter constructs the sync-error filter with the fixed tuning
// used throughout the engine: 5ms measurement noise, 0.01 process-noise
// standard deviation, 1.001 forget factor.
func NewKalmanFilter() *KalmanFilter {
	const measurementStdDevUS = 5000.0
	return &KalmanFilter{
		measurementVarianceUS2: measurementStdDevUS * measurementStdDevUS,
		processStdDevUS:        0.01,
		forgetFactor:           1.001,
		variance:               measurementStdDevUS * measurementStdDevUS,
	}
}

// Update feeds a new raw error observation (microseconds) and returns the
// updated posterior mean.
func (k *KalmanFilter) Update(rawErrorUS float64) float64 {
	if !k.seeded {
		k.mean = rawErrorUS
		k.seeded = true
		return k.mean
	}

	// Predict: inflate variance by the forget factor and add process noise.
	predictedVariance := k.variance*k.forgetFactor + k.processStdDevUS*k.processStdDevUS

	// Update: standard scalar Kalman gain against fixed measurement noise.
	gain := predictedVariance / (predictedVariance + k.measurementVarianceUS2)
	k.mean += gain * (rawErrorUS - k.mean)
	k.variance = (1 - gain) * predictedVariance

	return k.mean
}

// Mean returns the current posterior mean without consuming an observation.
func (k *KalmanFilter) Mean() float64 {
	return k.mean
}

// Reset clears the filter back to an unseeded state, used when the
// corrector re-anchors.
func (k *KalmanFilter) Reset() {
	k.mean = 0
	k.variance = 5000.0 * 5000.0
	k.seeded = false
}
