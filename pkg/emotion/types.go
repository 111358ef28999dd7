package emotion

import (
	"math"
	"time"
)

// Modality identifies one sensing channel contributing to a fused state.
type Modality string

const (
	ModalityText   Modality = "text"
	ModalityVisual Modality = "visual"
	ModalityAudio  Modality = "audio"
)

// Emotion is a discrete emotion label produced by a classifier.
type Emotion string

const (
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionAnxious   Emotion = "anxious"
	EmotionSurprised Emotion = "surprised"
	EmotionNeutral   Emotion = "neutral"
	EmotionExcited   Emotion = "excited"
	EmotionHopeless  Emotion = "hopeless"
	EmotionDepressed Emotion = "depressed"
	EmotionPanicked  Emotion = "panicked"
)

// Point is a single face landmark in normalized [0,1] image coordinates.
// Z is optional depth supplied by some detectors and is ignored by the
// geometric classifier.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// LandmarkFrame holds the named landmark groups for one detected face at one
// instant. Frames are produced by an external detector and treated as
// immutable once constructed.
type LandmarkFrame struct {
	LeftEye      []Point `json:"left_eye"`
	RightEye     []Point `json:"right_eye"`
	Mouth        []Point `json:"mouth"`
	LeftEyebrow  []Point `json:"left_eyebrow"`
	RightEyebrow []Point `json:"right_eyebrow"`
}

// AcousticFeatureVector holds the scalar features extracted from one audio
// segment by an external feature extractor.
type AcousticFeatureVector struct {
	PitchMean        float64   `json:"pitch_mean"`
	PitchVariation   float64   `json:"pitch_variation"`
	Energy           float64   `json:"energy"`
	Tempo            float64   `json:"tempo"`
	SpectralCentroid float64   `json:"spectral_centroid"`
	ZeroCrossingRate float64   `json:"zero_crossing_rate"`
	Timbre           []float64 `json:"timbre,omitempty"`
}

// EmotionEstimate is the typed result of a single classifier invocation.
// Estimates are never mutated after creation.
type EmotionEstimate struct {
	PrimaryEmotion Emotion             `json:"primary_emotion"`
	Intensity      int                 `json:"intensity"`  // 1..10
	Confidence     float64             `json:"confidence"` // 0..1
	Breakdown      map[Emotion]float64 `json:"breakdown,omitempty"`
	RiskHint       float64             `json:"risk_hint"` // 0..1
}

// ModalityReport wraps an estimate with its originating modality and method.
type ModalityReport struct {
	Modality      Modality        `json:"modality"`
	Estimate      EmotionEstimate `json:"estimate"`
	RawFeatureRef string          `json:"raw_feature_ref,omitempty"`
	Method        string          `json:"method"`
	Timestamp     time.Time       `json:"timestamp"`
}

// FusedEmotionState is the weighted combination of the per-modality reports
// for one turn, with full provenance.
type FusedEmotionState struct {
	Estimate    EmotionEstimate      `json:"estimate"`
	Provenance  []ModalityReport     `json:"provenance"`
	WeightsUsed map[Modality]float64 `json:"weights_used"`
}

// clamp bounds x to [lo, hi]. NaN collapses to lo so that no NaN ever
// crosses a component boundary.
func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampIntensity(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}
