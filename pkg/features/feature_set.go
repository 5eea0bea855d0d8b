package features

// FeatureSet is the per-frame description of (a prefix of) a track.
// All the per-frame slices except MFCCFrames are aligned with FrameStarts.
type FeatureSet struct {
	SampleRate int
	Config     Config

	FrameStarts       []int
	SpectralCentroids []float64
	RMS               []float64

	// Onsets are timestamps in seconds, in non-decreasing order.
	Onsets []float64

	// MFCCFrames holds the cepstral coefficients of every
	// Config.MFCCStride-th analysis frame.
	MFCCFrames [][]float64

	// SkippedFrames counts the frames dropped due to extraction errors.
	SkippedFrames int

	// Synthetic is true for placeholder features.
	Synthetic bool
}

func (fs *FeatureSet) NumFrames() int {
	return len(fs.FrameStarts)
}

// MFCCFramePeriod is the time distance (in seconds) between consecutive
// MFCCFrames.
func (fs *FeatureSet) MFCCFramePeriod() float64 {
	return fs.Config.MFCCFramePeriod(fs.SampleRate)
}
