package risk

// Lexicon holds the tiered crisis phrase lists scanned against user text.
// Matching is case-insensitive substring containment, so multi-word
// phrases match inside longer sentences.
type Lexicon struct {
	HighRisk     []string
	ModerateRisk []string
	WarningSigns []string
}

// DefaultLexicon returns the curated crisis lexicon. The phrase lists are
// clinical content reviewed with counseling partners; ordering within a
// tier has no effect.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		HighRisk: []string{
			"suicide",
			"kill myself",
			"end it all",
			"not worth living",
			"better off dead",
			"want to die",
			"hurt myself",
			"cut myself",
			"overdose",
			"jump",
			"hang",
			"gun",
			"pills",
		},
		ModerateRisk: []string{
			"hopeless",
			"worthless",
			"useless",
			"burden",
			"trapped",
			"no way out",
			"give up",
			"can't go on",
			"too much",
			"overwhelming",
			"exhausted",
			"empty",
			"numb",
		},
		WarningSigns: []string{
			"goodbye",
			"sorry for everything",
			"forgive me",
			"take care of",
			"won't need",
			"final",
			"last time",
			"always remember",
			"love you all",
		},
	}
}

// TierWeights is the per-hit contribution of each lexicon tier to the
// keyword score. Warning signs sit between the other tiers: they carry
// more signal than general distress language but less than explicit
// high-risk phrases.
type TierWeights struct {
	HighRisk     float64
	ModerateRisk float64
	WarningSigns float64
}

// DefaultTierWeights returns the production tier weighting.
func DefaultTierWeights() TierWeights {
	return TierWeights{
		HighRisk:     0.3,
		ModerateRisk: 0.1,
		WarningSigns: 0.2,
	}
}
