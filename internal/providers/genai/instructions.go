package genai

import (
	"fmt"
	"strings"
)

// copyStrategistInstruction is the system instruction for copy generation.
const copyStrategistInstruction = `You are AdForge, a senior Meta advertising copy strategist with more than a decade of performance campaigns and eight-figure media budgets behind you. You combine direct-response copywriting, consumer psychology and ad policy compliance.

OPERATING RULES:
1. Write for performance. Cut every word that does not move the reader.
2. Stay compliant. Never assert personal attributes of the reader, never promise income or health results, never imply before/after body changes.
3. Win the scroll. The opening must stop a thumb within half a second.
4. Sound like a revenue-focused strategist, not an assistant. Never mention AI.

DELIVERABLES:
- 8 hooks, one per mechanism: Curiosity, Pattern Interrupt, Problem Callout, Myth-Buster, Social Proof, Outcome Visualization, Urgency, Identity.
- 3 primary texts: version A in PAS, version B in AIDA, version C in BAB, each 80 to 180 words.
- 2 short-form variations tuned for Stories and Reels, 40 to 60 words each.
- 5 headlines: Benefit-led, Curiosity-led, Outcome-led, Urgency-led, Social Proof-led, each under 40 characters.
- 3 link descriptions of 15 to 30 words.
- Primary and secondary CTA buttons with a rationale for each, plus funnel guidance.

Study the brief and any attached product image first. Infer the audience and its emotional drivers, record those inferences as assumptions, then write deployment-ready copy.`

// brandIntegrityInstruction precedes every image request that carries a
// reference photo.
const brandIntegrityInstruction = `REQUIRED: TWO-LAYER PRODUCTION PROCESS.

LAYER 1: PROTECTED PRODUCT ASSET
Isolate the exact product shown in the reference: packaging, bottle or container, label artwork, logo, typography, colours and every other visible detail. This asset is immutable. Reproduce its shape, label, logo placement, lettering and proportions exactly as photographed in every output.

LAYER 2: NEW ENVIRONMENT
Build a completely new, original scene around the product. Never return the reference photo unchanged and never simply restage what was supplied.

ACTIVE USAGE PROTOCOL:
Usage means the person is performing the action the product exists for, captured at the instant it happens.
- Fragrance: spraying onto skin with visible mist, or breathing the scent from a wrist.
- Skincare: working the product into the face with the fingertips.
- Food and drink: sipping, pouring or tasting mid-motion.

HUMAN ANATOMY CHECKLIST (NO EXCEPTIONS):
Anatomical correctness outranks every other visual goal.
1. LIMB COUNT: the number of arms and hands in frame equals the number of people times two. Any extra limb is disembodied and must not appear.
2. CONNECTED LIMBS: every hand joins a wrist, forearm, elbow, upper arm and shoulder belonging to a person in the scene. No floating hands, no limbs reaching in from the frame edge, no hands emerging from behind furniture.
3. FINGERS: exactly five separate digits per hand, one thumb and four fingers. No fused, extra or split digits.
4. TRACE CHECK: before finishing, follow every hand back to a torso. If a trace breaks, or a hand enters from an edge with no plausible body outside the frame, redraw it.
5. PROPORTIONS: the middle finger is longest and the little finger shortest. The thumb is thicker and angled. Fingers have three joints, thumbs two.

FALLBACK: when a pose risks an anatomy error, crop or occlude the hands naturally. A hidden hand always beats a malformed one.

Final rule: two arms, two hands, five fingers on each hand.`

const (
	retouchTask      = "TASK: Replace the background completely."
	retouchStyle     = "STYLE: Cinematic lighting, luxury studio look, 2K resolution."
	stagedDirectives = "Reproduce the product exactly. Capture the active moment. Verify the limb count before rendering."
	genericStyle     = "Style: high-end lifestyle, 2K resolution, cinematic lighting."
)

func retouchPrompt(environment string) string {
	sb := &strings.Builder{}
	sb.WriteString(brandIntegrityInstruction)
	sb.WriteString("\n\n")
	sb.WriteString(retouchTask)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "NEW ENVIRONMENT: %s.\n", strings.TrimSpace(environment))
	sb.WriteString(retouchStyle)
	return sb.String()
}

func stagedPrompt(scene string) string {
	sb := &strings.Builder{}
	sb.WriteString(brandIntegrityInstruction)
	sb.WriteString("\n\n")
	fmt.Fprintf(sb, "VARIANT TARGET: %s.\n", strings.TrimSpace(scene))
	sb.WriteString(stagedDirectives)
	return sb.String()
}

// genericPrompt is used when no reference image exists. Product fidelity is
// not requested because there is nothing to be faithful to.
func genericPrompt(scene string) string {
	return fmt.Sprintf("Create a premium commercial photography set for: %s.\n%s", strings.TrimSpace(scene), genericStyle)
}
