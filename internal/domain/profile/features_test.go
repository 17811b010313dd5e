package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplexity(t *testing.T) {
	assert.Zero(t, Complexity("   "))
	simple := Complexity("Take it. Go now.")
	dense := Complexity("Pharmacokinetic concentrations will be characterized using noncompartmental methodologies across all participating investigational sites")
	assert.Less(t, simple, dense)
	assert.LessOrEqual(t, dense, 1.0)
}

func TestFormality(t *testing.T) {
	assert.Equal(t, 0.5, Formality("dose the patient"))
	assert.Equal(t, 1.0, Formality("Subjects shall be dosed as specified"))
	assert.Equal(t, 0.0, Formality("we could maybe dose"))
	assert.InDelta(t, 0.5, Formality("must, might"), 1e-9)
}

func TestKeyPhrases(t *testing.T) {
	got := KeyPhrases("Study drug administered orally with food every morning during treatment")
	assert.Equal(t, []string{"study drug", "drug administered", "administered orally", "orally with", "with food"}, got)
	assert.Empty(t, KeyPhrases("a b c d"))
}

func TestIdentifyDomain(t *testing.T) {
	assert.Equal(t, "oncology", IdentifyDomain("Tumor assessments every 8 weeks"))
	assert.Equal(t, "cardiology", IdentifyDomain("Blood pressure measured at rest"))
	assert.Equal(t, "regulatory", IdentifyDomain("Compliance with ICH E6"))
	assert.Equal(t, DomainGeneral, IdentifyDomain("Participants will be contacted"))
}

func TestPhraseSet(t *testing.T) {
	s := NewPhraseSet("  Every   Morning ", "", "twice daily")
	assert.True(t, s.Has("every morning"))
	assert.Len(t, s, 2)
	assert.Equal(t, []string{"every morning", "twice daily"}, s.Sorted())
	s.Remove("EVERY MORNING")
	assert.False(t, s.Has("every morning"))
}
