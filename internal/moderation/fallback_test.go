package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackTransformNeutralizesAggressiveClause(t *testing.T) {
	out := FallbackTransform("hello idiot, call me at 555-123-4567")
	assert.Equal(t, "I would like to keep this discussion constructive, call me at [phone number removed - please use the company directory].", out)
}

func TestFallbackTransformDeterministic(t *testing.T) {
	in := "hey guys, this stuff sucks! call 555-123-4567 or mail bob@corp.com"
	first := FallbackTransform(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, FallbackTransform(in))
	}
}

func TestFallbackTransformLexicalNormalization(t *testing.T) {
	assert.Equal(t, "Hello team, going to be late.", FallbackTransform("hey guys, gonna be late"))
	assert.Equal(t, "Yes alright, thank you.", FallbackTransform("yeah ok, thx"))
	assert.Equal(t, "Need it as soon as possible.", FallbackTransform("need it asap"))
	assert.Equal(t, "Follow up with me on material.", FallbackTransform("get back to me on stuff"))
	assert.Equal(t, "Somewhat want to skip this one.", FallbackTransform("kinda wanna skip this one"))
}

func TestFallbackTransformMasksContacts(t *testing.T) {
	out := FallbackTransform("reach me at 555-867-5309")
	assert.Contains(t, out, "[phone number removed - please use the company directory]")
	assert.NotContains(t, out, "555")

	out = FallbackTransform("send it to alice.smith+dev@example.co.uk please")
	assert.Contains(t, out, "[mailto: address masked]")
	assert.NotContains(t, out, "alice")
}

func TestFallbackTransformPhoneFormats(t *testing.T) {
	for _, in := range []string{
		"call 555-123-4567",
		"call (555) 123-4567",
		"call 555.123.4567",
		"call +1 555 123 4567",
	} {
		out := FallbackTransform(in)
		assert.Contains(t, out, "[phone number removed - please use the company directory]", "input %q", in)
	}
}

func TestFallbackTransformAggressionOnlyHitsItsClause(t *testing.T) {
	out := FallbackTransform("you are an idiot, the report is due friday")
	assert.Contains(t, out, "I would like to keep this discussion constructive")
	assert.Contains(t, out, "the report is due friday")
}

func TestFallbackTransformWholeSentenceAggression(t *testing.T) {
	out := FallbackTransform("this is garbage. see you tomorrow.")
	assert.Contains(t, out, "I would like to keep this discussion constructive.")
	assert.Contains(t, out, "See you tomorrow.")
}

func TestFallbackTransformNormalization(t *testing.T) {
	assert.Equal(t, "Fine.", FallbackTransform("   fine   "))
	assert.Equal(t, "Done already.", FallbackTransform("done already"))
	assert.Equal(t, "Really? Yes. Fine!", FallbackTransform("really? yes. fine!"))
}

func TestFallbackTransformEmptyAndBlank(t *testing.T) {
	assert.Equal(t, "", FallbackTransform(""))
	assert.Equal(t, "   ", FallbackTransform("   "))
}

func TestDetectAggression(t *testing.T) {
	assert.True(t, detectAggression("you are so stupid"))
	assert.True(t, detectAggression("SHUT UP"))
	assert.False(t, detectAggression("the deadline is tight"))
	// substring inside a word must not match
	assert.False(t, detectAggression("the idiomatic solution"))
}
