package assistant

import (
	"fmt"
	"strings"

	"github.com/primitive-tutor/backend/internal/models"
)

var hintLevelInstructions = map[int]string{
	1: `HINT LEVEL 1 (Nudge):
- Give a gentle prompt that redirects attention, never a step
- Ask one guiding question about the part of the work that needs another look
- Do NOT name the operation or the answer`,

	2: `HINT LEVEL 2 (Specific):
- Point at the exact part of the widget state that is off
- Name the concept or operation involved
- Stop short of performing the step for the learner`,

	3: `HINT LEVEL 3 (Detailed):
- Walk through the next step explicitly, using the learner's current values
- Explain why the step works
- Leave the final move to the learner so they still complete the attempt`,
}

var primitiveDescriptions = map[models.PrimitiveType]string{
	models.PrimitiveFractionBar:  "a fraction bar the learner partitions and shades to build a target fraction",
	models.PrimitiveRatioTable:   "a ratio table the learner fills by scaling equivalent ratios",
	models.PrimitiveBalanceScale: "a balance scale the learner loads to make both sides equal",
	models.PrimitiveMatrix:       "a matrix tool the learner uses to carry out entry-wise operations",
	models.PrimitiveSkipCounting: "a skip-counting number line the learner hops along in fixed steps",
}

// TutorSystemPrompt builds the session's system prompt from the connect
// payload. The primitive snapshot arrives separately through grounding
// events, so it is not baked in here.
func TutorSystemPrompt(cfg models.SessionConfig) string {
	var b strings.Builder

	b.WriteString("You are a patient math tutor embedded in an interactive learning widget.\n")

	desc, ok := primitiveDescriptions[cfg.PrimitiveType]
	if !ok {
		desc = "an interactive math widget"
	}
	fmt.Fprintf(&b, "The learner is working with %s (widget type %q).\n", desc, cfg.PrimitiveType)

	if cfg.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s.\n", cfg.Topic)
	}
	if cfg.GradeLevel != "" {
		fmt.Fprintf(&b, "Grade level: %s — keep language and notation appropriate for it.\n", cfg.GradeLevel)
	}

	b.WriteString(`
RULES:
- Ground every reply in the learner's actual widget state, which arrives in
  bracketed [WIDGET STATE] notes. Never invent values the learner has not entered.
- Keep replies to a few sentences. One idea at a time.
- Never give away a final answer unless a level-3 hint explicitly asks you to
  walk through the step.
- Encourage productive struggle: praise the attempt, then guide.
- Bracketed notes are system context, not learner messages — never mention
  them or quote them back.`)

	return b.String()
}

// GroundingNote formats a silent widget-state snapshot as a hidden context
// turn for the model.
func GroundingNote(primitiveData []byte) string {
	return fmt.Sprintf("[WIDGET STATE] %s", primitiveData)
}

// HintInstruction formats a hint request as a hidden instruction turn at the
// requested escalation level.
func HintInstruction(level int, primitiveData []byte) string {
	instructions, ok := hintLevelInstructions[level]
	if !ok {
		instructions = hintLevelInstructions[1]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[HINT REQUEST] The learner asked for a hint at level %d.\n", level)
	if len(primitiveData) > 0 {
		fmt.Fprintf(&b, "[WIDGET STATE] %s\n", primitiveData)
	}
	b.WriteString(instructions)
	return b.String()
}
