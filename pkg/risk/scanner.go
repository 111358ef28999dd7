package risk

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// BlendWeights controls how the keyword score and the AI analysis score
// combine into the text risk score.
type BlendWeights struct {
	Keyword float64
	AI      float64
}

// DefaultBlendWeights returns the production blend: keyword evidence
// dominates because it is deterministic and auditable.
func DefaultBlendWeights() BlendWeights {
	return BlendWeights{Keyword: 0.6, AI: 0.4}
}

// ScanResult is the outcome of one text scan, including the phrases that
// matched so that downstream audit records can explain the score.
type ScanResult struct {
	KeywordScore    float64  `json:"keyword_score"`
	MatchedHighRisk []string `json:"matched_high_risk,omitempty"`
	MatchedModerate []string `json:"matched_moderate,omitempty"`
	MatchedWarnings []string `json:"matched_warnings,omitempty"`
}

// Scanner computes keyword-based text risk from the tiered lexicon. It is
// pure and safe for concurrent use.
type Scanner struct {
	lexicon *Lexicon
	tiers   TierWeights
	blend   BlendWeights
	logger  *logrus.Logger
}

// NewScanner builds a scanner; nil lexicon and zero weight structs fall
// back to the defaults.
func NewScanner(lexicon *Lexicon, tiers TierWeights, blend BlendWeights, logger *logrus.Logger) *Scanner {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if tiers == (TierWeights{}) {
		tiers = DefaultTierWeights()
	}
	if blend == (BlendWeights{}) {
		blend = DefaultBlendWeights()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		lexicon: lexicon,
		tiers:   tiers,
		blend:   blend,
		logger:  logger,
	}
}

// Scan matches the lexicon against the text and accumulates the tier
// weights per hit, clamped to [0,1]. Empty text scores zero.
func (s *Scanner) Scan(text string) ScanResult {
	result := ScanResult{}
	if text == "" {
		return result
	}

	lowered := strings.ToLower(text)

	var score float64
	for _, phrase := range s.lexicon.HighRisk {
		if strings.Contains(lowered, phrase) {
			score += s.tiers.HighRisk
			result.MatchedHighRisk = append(result.MatchedHighRisk, phrase)
		}
	}
	for _, phrase := range s.lexicon.ModerateRisk {
		if strings.Contains(lowered, phrase) {
			score += s.tiers.ModerateRisk
			result.MatchedModerate = append(result.MatchedModerate, phrase)
		}
	}
	for _, phrase := range s.lexicon.WarningSigns {
		if strings.Contains(lowered, phrase) {
			score += s.tiers.WarningSigns
			result.MatchedWarnings = append(result.MatchedWarnings, phrase)
		}
	}

	result.KeywordScore = clamp(score, 0, 1)

	if len(result.MatchedHighRisk) > 0 {
		s.logger.WithFields(logrus.Fields{
			"keyword_score":  result.KeywordScore,
			"high_risk_hits": len(result.MatchedHighRisk),
		}).Warn("High-risk phrases detected in text")
	}

	return result
}

// TextRisk blends the keyword score with the AI analysis score. A nil AI
// score means the collaborator was unavailable, not that it scored zero;
// the keyword score then stands alone.
func (s *Scanner) TextRisk(keywordScore float64, aiScore *float64) float64 {
	if aiScore == nil {
		return clamp(keywordScore, 0, 1)
	}
	return clamp(s.blend.Keyword*keywordScore+s.blend.AI*(*aiScore), 0, 1)
}
