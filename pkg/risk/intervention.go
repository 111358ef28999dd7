package risk

import (
	"github.com/sirupsen/logrus"

	"manas-server/pkg/emotion"
)

// Protocol names the intervention track selected for an assessment.
type Protocol string

const (
	ProtocolEmergency  Protocol = "emergency"
	ProtocolSupport    Protocol = "support"
	ProtocolPreventive Protocol = "preventive"
)

// Contact is one entry of the emergency contact directory.
type Contact struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	Hours  string `json:"hours"`
}

// DefaultEmergencyContacts returns the India helpline directory bundled
// with the engine. Deployments outside India override this via config.
func DefaultEmergencyContacts() []Contact {
	return []Contact{
		{Name: "AASRA", Number: "91-22-27546669", Hours: "24/7"},
		{Name: "Sneha India", Number: "044-24640050", Hours: "24/7"},
		{Name: "Vandrevala Foundation", Number: "1860-2662-345", Hours: "24/7"},
		{Name: "iCall", Number: "022-25521111", Hours: "10 AM - 8 PM"},
		{Name: "Connecting Trust", Number: "040-67138888", Hours: "24/7"},
		{Name: "Emergency Services", Number: "112", Hours: "24/7"},
		{Name: "Police", Number: "100", Hours: "24/7"},
		{Name: "Medical Emergency", Number: "108", Hours: "24/7"},
	}
}

// Plan is the intervention bundle returned for one assessment. Fields not
// relevant to the selected protocol are left empty.
type Plan struct {
	Protocol          Protocol  `json:"protocol"`
	Actions           []string  `json:"actions"`
	Contacts          []Contact `json:"contacts,omitempty"`
	FollowUpRequired  bool      `json:"follow_up_required"`
	MonitoringCadence string    `json:"monitoring_cadence,omitempty"`

	SafetyPlan         []string `json:"safety_plan,omitempty"`
	CopingStrategies   []string `json:"coping_strategies,omitempty"`
	EscalationTriggers []string `json:"escalation_triggers,omitempty"`
	WellnessActivities []string `json:"wellness_activities,omitempty"`
	EarlyWarningSigns  []string `json:"early_warning_signs,omitempty"`

	Recommendation string `json:"recommendation,omitempty"`
}

// Selector maps an assessment to its intervention plan. Selection is
// stateless and idempotent: the same assessment always yields the same
// plan, and every returned slice is a fresh copy.
type Selector struct {
	contacts []Contact
	logger   *logrus.Logger
}

// NewSelector builds a selector with the given contact directory, falling
// back to the bundled one when empty.
func NewSelector(contacts []Contact, logger *logrus.Logger) *Selector {
	if len(contacts) == 0 {
		contacts = DefaultEmergencyContacts()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Selector{
		contacts: contacts,
		logger:   logger,
	}
}

// Select picks the protocol for the assessment's category and fills in the
// protocol content. The primary emotion only shapes the recommendation
// line, never the protocol choice.
func (s *Selector) Select(assessment Assessment, primary emotion.Emotion) Plan {
	var plan Plan
	switch assessment.Category {
	case CategoryCritical, CategoryHigh:
		plan = s.emergencyPlan()
	case CategoryModerate:
		plan = s.supportPlan()
	default:
		plan = s.preventivePlan()
	}

	plan.Recommendation = recommendationFor(primary)

	s.logger.WithFields(logrus.Fields{
		"turn_id":  assessment.TurnID,
		"category": assessment.Category,
		"protocol": plan.Protocol,
	}).Info("Intervention protocol selected")

	return plan
}

func (s *Selector) emergencyPlan() Plan {
	return Plan{
		Protocol: ProtocolEmergency,
		Actions: []string{
			"Stay with the person or keep them engaged in conversation",
			"Connect to a crisis helpline immediately",
			"Remove access to means of self-harm where possible",
			"Contact a trusted adult, family member or counselor",
			"If there is immediate danger, call emergency services",
		},
		Contacts:          append([]Contact(nil), s.contacts...),
		FollowUpRequired:  true,
		MonitoringCadence: "continuous",
		SafetyPlan: []string{
			"Identify personal warning signs",
			"List internal coping strategies that have helped before",
			"Name people and places that provide distraction",
			"Name people to ask for help",
			"Keep crisis helpline numbers saved and visible",
			"Make the environment safe",
		},
	}
}

func (s *Selector) supportPlan() Plan {
	return Plan{
		Protocol: ProtocolSupport,
		Actions: []string{
			"Acknowledge the feelings without judgment",
			"Encourage talking to a trusted person",
			"Share helpline information for later use",
			"Suggest a check-in with a counselor this week",
		},
		FollowUpRequired:  true,
		MonitoringCadence: "weekly",
		CopingStrategies: []string{
			"Slow breathing: four counts in, hold four, four counts out",
			"Grounding: name five things you can see, four you can touch",
			"Write down the thought and one kinder alternative",
			"Short walk or light movement",
			"Reach out to one friend today",
		},
		EscalationTriggers: []string{
			"Talk of self-harm or death",
			"Giving away possessions or saying goodbye",
			"Sudden calm after a period of distress",
			"Withdrawal from all activities and people",
		},
	}
}

func (s *Selector) preventivePlan() Plan {
	return Plan{
		Protocol:         ProtocolPreventive,
		FollowUpRequired: false,
		Actions: []string{
			"Reinforce existing healthy routines",
			"Encourage regular sleep and meal schedules",
			"Suggest keeping up social connections",
		},
		WellnessActivities: []string{
			"Daily journaling for a few minutes",
			"Regular physical activity",
			"Mindfulness or meditation practice",
			"Creative hobbies like music or drawing",
			"Time outdoors",
		},
		EarlyWarningSigns: []string{
			"Sleep changes lasting more than a week",
			"Loss of interest in usual activities",
			"Increasing irritability or isolation",
			"Falling grades or missed commitments",
		},
	}
}

// recommendationFor attaches one therapeutic suggestion matched to the
// dominant emotion. Unknown emotions fall back to a neutral line.
func recommendationFor(primary emotion.Emotion) string {
	switch primary {
	case emotion.EmotionSad, emotion.EmotionDepressed, emotion.EmotionHopeless:
		return "Try a mood-lifting activity you usually enjoy, and consider talking to someone you trust about how you feel."
	case emotion.EmotionAnxious, emotion.EmotionPanicked:
		return "Try a short breathing exercise to settle your body, then break what worries you into one small next step."
	case emotion.EmotionAngry:
		return "Step away from the trigger for a few minutes and release the energy physically, like a brisk walk."
	case emotion.EmotionHappy, emotion.EmotionExcited:
		return "Savor this moment. Noting down what went well today helps it last."
	case emotion.EmotionSurprised:
		return "Take a moment to process what happened before deciding how to respond."
	default:
		return "Check in with yourself about what you need right now, whether rest, company or activity."
	}
}
