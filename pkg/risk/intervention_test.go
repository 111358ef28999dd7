package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manas-server/pkg/emotion"
)

func assessmentWithCategory(category Category) Assessment {
	return Assessment{
		ID:       "a-1",
		TurnID:   "turn-1",
		Category: category,
	}
}

func TestSelectEmergencyProtocol(t *testing.T) {
	selector := NewSelector(nil, testLogger())

	for _, category := range []Category{CategoryCritical, CategoryHigh} {
		plan := selector.Select(assessmentWithCategory(category), emotion.EmotionSad)

		assert.Equal(t, ProtocolEmergency, plan.Protocol)
		assert.True(t, plan.FollowUpRequired)
		assert.Equal(t, "continuous", plan.MonitoringCadence)
		assert.NotEmpty(t, plan.Actions)
		assert.NotEmpty(t, plan.SafetyPlan)
		require.NotEmpty(t, plan.Contacts)
	}
}

func TestEmergencyContactDirectory(t *testing.T) {
	selector := NewSelector(nil, testLogger())

	plan := selector.Select(assessmentWithCategory(CategoryCritical), emotion.EmotionSad)

	names := make(map[string]string, len(plan.Contacts))
	for _, contact := range plan.Contacts {
		names[contact.Name] = contact.Number
	}

	assert.Equal(t, "91-22-27546669", names["AASRA"])
	assert.Equal(t, "112", names["Emergency Services"])
	assert.Equal(t, "108", names["Medical Emergency"])
}

func TestSelectSupportProtocol(t *testing.T) {
	selector := NewSelector(nil, testLogger())

	plan := selector.Select(assessmentWithCategory(CategoryModerate), emotion.EmotionAnxious)

	assert.Equal(t, ProtocolSupport, plan.Protocol)
	assert.True(t, plan.FollowUpRequired)
	assert.Equal(t, "weekly", plan.MonitoringCadence)
	assert.NotEmpty(t, plan.CopingStrategies)
	assert.NotEmpty(t, plan.EscalationTriggers)
	assert.Empty(t, plan.Contacts)
}

func TestSelectPreventiveProtocol(t *testing.T) {
	selector := NewSelector(nil, testLogger())

	for _, category := range []Category{CategoryLow, CategoryMinimal} {
		plan := selector.Select(assessmentWithCategory(category), emotion.EmotionHappy)

		assert.Equal(t, ProtocolPreventive, plan.Protocol)
		assert.False(t, plan.FollowUpRequired)
		assert.NotEmpty(t, plan.WellnessActivities)
		assert.NotEmpty(t, plan.EarlyWarningSigns)
	}
}

func TestSelectIdempotent(t *testing.T) {
	selector := NewSelector(nil, testLogger())
	assessment := assessmentWithCategory(CategoryCritical)

	first := selector.Select(assessment, emotion.EmotionSad)
	second := selector.Select(assessment, emotion.EmotionSad)

	assert.Equal(t, first, second)

	// Mutating a returned plan must not leak into later selections.
	first.Contacts[0].Number = "tampered"
	third := selector.Select(assessment, emotion.EmotionSad)
	assert.NotEqual(t, "tampered", third.Contacts[0].Number)
}

func TestRecommendationMatchesEmotion(t *testing.T) {
	selector := NewSelector(nil, testLogger())

	sad := selector.Select(assessmentWithCategory(CategoryLow), emotion.EmotionSad)
	anxious := selector.Select(assessmentWithCategory(CategoryLow), emotion.EmotionAnxious)
	unknown := selector.Select(assessmentWithCategory(CategoryLow), emotion.Emotion("bored"))

	assert.NotEmpty(t, sad.Recommendation)
	assert.NotEmpty(t, anxious.Recommendation)
	assert.NotEmpty(t, unknown.Recommendation)
	assert.NotEqual(t, sad.Recommendation, anxious.Recommendation)
}
