package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// MechanismType names the psychological lever behind an ad hook.
type MechanismType string

const (
	MechanismCuriosity            MechanismType = "Curiosity"
	MechanismPatternInterrupt     MechanismType = "PatternInterrupt"
	MechanismProblemCallout       MechanismType = "ProblemCallout"
	MechanismMythBuster           MechanismType = "MythBuster"
	MechanismSocialProof          MechanismType = "SocialProof"
	MechanismOutcomeVisualization MechanismType = "OutcomeVisualization"
	MechanismUrgency              MechanismType = "Urgency"
	MechanismIdentity             MechanismType = "Identity"
)

// Mechanisms lists the hook mechanisms in the order the provider is asked for them.
var Mechanisms = []MechanismType{
	MechanismCuriosity,
	MechanismPatternInterrupt,
	MechanismProblemCallout,
	MechanismMythBuster,
	MechanismSocialProof,
	MechanismOutcomeVisualization,
	MechanismUrgency,
	MechanismIdentity,
}

// Framework is the copywriting structure of a primary text.
type Framework string

const (
	FrameworkPAS  Framework = "PAS"
	FrameworkAIDA Framework = "AIDA"
	FrameworkBAB  Framework = "BAB"
)

// Frameworks lists the primary text frameworks in request order.
var Frameworks = []Framework{FrameworkPAS, FrameworkAIDA, FrameworkBAB}

// HeadlineAngle is the persuasion angle of a headline.
type HeadlineAngle string

const (
	AngleBenefit     HeadlineAngle = "Benefit"
	AngleCuriosity   HeadlineAngle = "Curiosity"
	AngleOutcome     HeadlineAngle = "Outcome"
	AngleUrgency     HeadlineAngle = "Urgency"
	AngleSocialProof HeadlineAngle = "SocialProof"
)

// HeadlineAngles lists the headline angles in request order.
var HeadlineAngles = []HeadlineAngle{AngleBenefit, AngleCuriosity, AngleOutcome, AngleUrgency, AngleSocialProof}

// Expected cardinalities requested from the provider. They are hints and are
// never enforced when decoding.
const (
	ExpectedHooks        = 8
	ExpectedPrimaryTexts = 3
	ExpectedShortForms   = 2
	ExpectedHeadlines    = 5
	ExpectedDescriptions = 3
)

// CopyPackage is the structured marketing copy returned by the provider.
type CopyPackage struct {
	Assumptions        []string          `json:"assumptions"`
	Hooks              []Hook            `json:"hooks"`
	PrimaryTexts       []PrimaryText     `json:"primaryTexts"`
	ShortForms         []ShortForm       `json:"shortForms"`
	Headlines          []Headline        `json:"headlines"`
	Descriptions       []Description     `json:"descriptions"`
	CTARecommendations CTARecommendation `json:"ctaRecommendations"`
}

// Hook is a scroll-stopping opening line.
type Hook struct {
	MechanismType string `json:"type"`
	Text          string `json:"text"`
}

// Mechanism maps the provider's spelling ("Pattern Interrupt", "Myth-Buster")
// onto the MechanismType enumeration.
func (h Hook) Mechanism() (MechanismType, bool) {
	return matchEnum(h.MechanismType, Mechanisms)
}

// PrimaryText is a long-form ad body written in one framework.
type PrimaryText struct {
	Framework string `json:"framework"`
	Content   string `json:"content"`
}

// Kind maps the framework label onto the Framework enumeration.
func (p PrimaryText) Kind() (Framework, bool) {
	return matchEnum(p.Framework, Frameworks)
}

// ShortForm is a Stories/Reels sized variation.
type ShortForm struct {
	Content string `json:"content"`
}

// Headline is a short ad headline.
type Headline struct {
	Angle string `json:"angle"`
	Text  string `json:"text"`
}

// AngleKind maps the angle label ("Benefit-led", "Social Proof") onto the
// HeadlineAngle enumeration.
func (h Headline) AngleKind() (HeadlineAngle, bool) {
	return matchEnum(strings.TrimSuffix(strings.TrimSpace(h.Angle), "-led"), HeadlineAngles)
}

// Description is a link description.
type Description struct {
	Text string `json:"text"`
}

// CTAOption is one call-to-action button recommendation.
type CTAOption struct {
	Button    string `json:"button"`
	Rationale string `json:"rationale"`
}

// CTARecommendation pairs the primary and secondary CTA with funnel guidance.
type CTARecommendation struct {
	Primary        CTAOption `json:"primary"`
	Secondary      CTAOption `json:"secondary"`
	FunnelGuidance string    `json:"funnelGuidance"`
}

func matchEnum[T ~string](raw string, known []T) (T, bool) {
	want := enumKey(raw)
	if want == "" {
		return "", false
	}
	for _, k := range known {
		if enumKey(string(k)) == want {
			return k, true
		}
	}
	return "", false
}

var enumSeparators = strings.NewReplacer(" ", "", "-", "", "_", "")

func enumKey(s string) string {
	// Casers carry state, so one is built per call.
	return cases.Fold().String(enumSeparators.Replace(strings.TrimSpace(s)))
}
