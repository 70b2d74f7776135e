package score

import "math"

// npWindowSeconds is the rolling window used for normalized power
const npWindowSeconds = 30

// Extract derives the scalar training metrics from a validated activity
func Extract(v Validated, cfg Config) Metrics {
	stream, profile := v.stream, v.profile

	np := NormalizedPower(stream.Samples)
	wkg := np / profile.WeightKg
	intensity := np / profile.FTPWatts
	minutes := float64(stream.DurationSeconds) / 60

	drift, hrAvailable := AerobicDecoupling(stream.Samples, stream.DurationSeconds)

	return Metrics{
		NormalizedPower:    np,
		WattsPerKg:         wkg,
		PowerScore:         PowerScore(wkg, cfg.wrWkgBenchmark),
		IntensityFactor:    intensity,
		IntensityScore:     clamp(intensity, 0, 1),
		DurationMinutes:    minutes,
		VolumeScore:        VolumeScore(minutes, cfg.volumeLogDivisor),
		DecouplingDrift:    drift,
		HeartRateAvailable: hrAvailable,
	}
}

// NormalizedPower weights sustained efforts over short spikes.
// Power is resampled to 1 Hz by holding the last reading, smoothed with a
// 30 second rolling mean, raised to the 4th power, averaged and 4th-rooted.
// Less than a full window of data falls back to the arithmetic mean.
// Work grows with the number of power changes, not with elapsed seconds.
func NormalizedPower(samples []Sample) float64 {
	runs := powerRuns(samples)
	if len(runs) == 0 {
		return 0
	}
	n := runs[len(runs)-1].end
	if n < npWindowSeconds {
		var total float64
		var start int64
		for _, r := range runs {
			total += r.value * float64(r.end-start)
			start = r.end
		}
		return total / float64(n)
	}

	// lo and hi are the oldest and newest second of the window.
	lo := runCursor{runs: runs}
	hi := runCursor{runs: runs}
	var sum float64
	for i := 0; i < npWindowSeconds; i++ {
		if i > 0 {
			hi.advance(1)
		}
		sum += hi.value()
	}

	var totalFourth, count float64
	for {
		if lo.idx == hi.idx {
			// Every window ending inside this run is flat.
			v := hi.value()
			k := runs[hi.idx].end - hi.pos
			totalFourth += float64(k) * math.Pow(v, 4)
			count += float64(k)
			lo.advance(k - 1)
			hi.advance(k - 1)
			sum = v * npWindowSeconds
		} else {
			totalFourth += math.Pow(sum/npWindowSeconds, 4)
			count++
		}
		if hi.pos == n-1 {
			break
		}
		out := lo.value()
		lo.advance(1)
		hi.advance(1)
		sum += hi.value() - out
	}

	return math.Pow(totalFourth/count, 0.25)
}

// powerRun is a constant stretch of the 1 Hz power series ending before end,
// counted in seconds from the first power reading
type powerRun struct {
	value float64
	end   int64
}

// powerRuns compresses the held 1 Hz power series from the first power
// reading to the last sample into runs of constant power
func powerRuns(samples []Sample) []powerRun {
	first := -1
	for i, s := range samples {
		if s.Power != nil {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}

	start := int64(samples[first].TimeOffset)
	current := *samples[first].Power
	var runs []powerRun
	var prevEnd int64
	for _, s := range samples[first+1:] {
		if s.Power == nil || *s.Power == current {
			continue
		}
		at := int64(s.TimeOffset) - start
		if at > prevEnd {
			runs = append(runs, powerRun{value: current, end: at})
			prevEnd = at
		}
		current = *s.Power
	}
	end := int64(samples[len(samples)-1].TimeOffset) - start + 1
	if end <= prevEnd {
		return runs
	}
	return append(runs, powerRun{value: current, end: end})
}

// runCursor walks the 1 Hz series one run at a time
type runCursor struct {
	runs []powerRun
	idx  int
	pos  int64
}

func (c *runCursor) value() float64 { return c.runs[c.idx].value }

func (c *runCursor) advance(k int64) {
	c.pos += k
	for c.idx < len(c.runs)-1 && c.pos >= c.runs[c.idx].end {
		c.idx++
	}
}

// PowerScore normalizes watts/kg against the world-record benchmark
func PowerScore(wkg, benchmark float64) float64 {
	return clamp(wkg/benchmark, 0, 1)
}

// VolumeScore gives diminishing credit for very long sessions
func VolumeScore(minutes, divisor float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return clamp(math.Log1p(minutes)/divisor, 0, 1)
}

// AerobicDecoupling calculates the fractional loss of power per heartbeat
// between the first and second half of the activity, split at the temporal
// midpoint. Improving efficiency is reported as 0. ok is false when either half
// has no heart rate or no power samples, in which case drift is 0 and must not
// be penalized. Zero watts are readings: a second half at 0 W drifts by 1.
func AerobicDecoupling(samples []Sample, durationSeconds int) (drift float64, ok bool) {
	mid := float64(durationSeconds) / 2

	var first, second []Sample
	for _, s := range samples {
		if float64(s.TimeOffset) < mid {
			first = append(first, s)
		} else {
			second = append(second, s)
		}
	}

	firstRatio, firstOK := powerPerBeat(first)
	secondRatio, secondOK := powerPerBeat(second)
	if !firstOK || !secondOK {
		return 0, false
	}
	if firstRatio <= 0 {
		return 0, true
	}

	drift = (firstRatio - secondRatio) / firstRatio
	if drift < 0 {
		drift = 0
	}
	return drift, true
}

// powerPerBeat is mean(power) / mean(heart rate) over one half. ok is false
// when the half has no power or no positive heart-rate samples.
func powerPerBeat(samples []Sample) (ratio float64, ok bool) {
	var powerSum, hrSum float64
	var powerCount, hrCount int

	for _, s := range samples {
		if s.Power != nil {
			powerSum += *s.Power
			powerCount++
		}
		if s.HeartRate != nil && *s.HeartRate > 0 {
			hrSum += *s.HeartRate
			hrCount++
		}
	}

	if powerCount == 0 || hrCount == 0 {
		return 0, false
	}

	return (powerSum / float64(powerCount)) / (hrSum / float64(hrCount)), true
}

// clamp limits v to [lo, hi]. NaN collapses to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
