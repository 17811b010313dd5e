package corpus

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

const successText = `Official Title: A Phase III Randomized Study of XR-1234 in Patients with Metastatic Breast Cancer
Sponsor: Acme Pharma
The study was completed and the trial was successful. The compound was approved after review.
All subjects gave informed consent and each visit shall follow the schedule.
Primary endpoint: overall survival at 24 months assessed by central review.
The target enrollment was reached in every country.`

const failureText = `Official Title: A Phase II Study of AB-5678 in Patients with Advanced Lung Disease
The trial was terminated after the interim review because the treatment failed to show benefit.
Dosing was adjusted and subjects were seen at visits throughout the study period while investigators
collected data on tumor measurements and laboratory values across all sites.`

func intPtr(v int) *int { return &v }

func TestScenarioE_SuccessScores(t *testing.T) {
	w := DefaultScoreWeights()

	good, err := Parse("success", successText, &Metadata{AmendmentCount: intPtr(0)})
	require.NoError(t, err)
	bad, err := Parse("failure", failureText, &Metadata{AmendmentCount: intPtr(12)})
	require.NoError(t, err)

	gs := Score(good, w)
	bs := Score(bad, w)
	assert.Greater(t, gs.Total, 0.7)
	assert.Less(t, bs.Total, 0.4)
	assert.InDelta(t, 0.785, gs.Total, 1e-9)
	assert.InDelta(t, 0.39, bs.Total, 1e-9)

	ga := Assess(good, w)
	assert.True(t, ga.HighPerformer())
	assert.Contains(t, ga.SuccessFactors, FactorClearObjectives)
	assert.Contains(t, ga.SuccessFactors, FactorRegulatoryCompliance)
	assert.Equal(t, []string{"shall"}, ga.ClearLanguage)
	assert.Empty(t, ga.RiskFactors)

	ba := Assess(bad, w)
	assert.True(t, ba.LowPerformer())
	assert.Contains(t, ba.RiskFactors, RiskComplexDesign)
	assert.Empty(t, ba.SuccessFactors)
}

func TestParse_Extraction(t *testing.T) {
	r, err := Parse("doc-1", successText, nil)
	require.NoError(t, err)

	assert.Equal(t, "doc-1", r.ID)
	assert.Equal(t, "A Phase III Randomized Study of XR-1234 in Patients with Metastatic Breast Cancer", r.Title)
	assert.Equal(t, "Phase III", r.Phase)
	assert.Equal(t, "oncology", r.TherapeuticArea)
	assert.Equal(t, "XR-1234", r.Compound)
	assert.Equal(t, "Metastatic Breast Cancer", r.Indication)
	assert.Equal(t, "Acme Pharma", r.Sponsor)
	assert.Equal(t, "Randomized Trial", r.StudyType)
	assert.Equal(t, StatusCompleted, r.CompletionStatus)
	assert.Equal(t, "1.0", r.Version)
	assert.Equal(t, []string{"primary: overall survival at 24 months assessed by central review"}, r.Endpoints)
	assert.Equal(t, 0, r.AmendmentCount)
	assert.Equal(t, successText, r.Text())
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("ab cd", 3))
	assert.Equal(t, "a", truncate("aé", 2))
	assert.Equal(t, "aé", truncate("aéb", 3))
	assert.Equal(t, "", truncate("éé", 1))
}

func TestParse_LongMultibyteTitleStaysValidUTF8(t *testing.T) {
	title := "a" + strings.Repeat("é", 150)
	r, err := Parse("doc-utf8", "Official Title: "+title+"\n"+successText, nil)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(r.Title))
	assert.LessOrEqual(t, len(r.Title), maxTitleLength)
	assert.Equal(t, "a"+strings.Repeat("é", 99), r.Title)
}

func TestParse_TooShort(t *testing.T) {
	_, err := Parse("short", "Phase I dose escalation.", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDocumentUnparseable))

	_, err = Parse("blank", strings.Repeat(" ", 500), nil)
	assert.True(t, errors.IsCode(err, errors.CodeDocumentUnparseable))
}

func TestParse_Fallbacks(t *testing.T) {
	text := strings.Repeat("This document describes general procedures for the site staff. ", 5)
	r, err := Parse("plain", text, nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseUnknown, r.Phase)
	assert.Equal(t, AreaGeneral, r.TherapeuticArea)
	assert.Equal(t, StatusUnknown, r.CompletionStatus)
	assert.Equal(t, "Unknown Compound", r.Compound)
	assert.Nil(t, r.OriginalDate)
	assert.Zero(t, r.DevelopmentDuration())
}

func TestParse_AreaTieUsesPriorityOrder(t *testing.T) {
	// one oncology hit, one respiratory hit
	r, err := Parse("tie", failureText, nil)
	require.NoError(t, err)
	assert.Equal(t, "oncology", r.TherapeuticArea)
	assert.Equal(t, "Phase II", r.Phase)
	assert.Equal(t, StatusTerminated, r.CompletionStatus)
}

func TestParse_DatesAmendmentsSections(t *testing.T) {
	text := `CLINICAL STUDY PROTOCOL
Version 3.1
Original Protocol Date: 2019-03-01
1. Introduction to the study
2. Study Objectives and Design
Amendment 1 (global: revised dosing schedule)
Amendment 2: local site update
Latest revision dated 15 March 2020 and reviewed by the committee for a phase 2 study in asthma.
The protocol text continues with background material for the investigators.`

	r, err := Parse("dated", text, nil)
	require.NoError(t, err)

	assert.Equal(t, "3.1", r.Version)
	require.NotNil(t, r.OriginalDate)
	require.NotNil(t, r.CurrentDate)
	assert.Equal(t, time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), *r.OriginalDate)
	assert.Equal(t, time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC), *r.CurrentDate)
	assert.Greater(t, r.DevelopmentDuration(), 365*24*time.Hour)

	require.Len(t, r.Amendments, 2)
	assert.Equal(t, Amendment{Number: "1", Description: "global: revised dosing schedule", Scope: "global"}, r.Amendments[0])
	assert.Equal(t, "local", r.Amendments[1].Scope)
	assert.Equal(t, 2, r.AmendmentCount)

	assert.Contains(t, r.Sections, "CLINICAL STUDY PROTOCOL")
	assert.Contains(t, r.Sections, "1. Introduction to the study")
	assert.Equal(t, "respiratory", r.TherapeuticArea)
}

func TestParse_AmendmentIndicatorFallback(t *testing.T) {
	text := strings.Repeat("This protocol amendment changes the visit schedule for all participants. ", 4)
	r, err := Parse("ind", text, nil)
	require.NoError(t, err)
	assert.Empty(t, r.Amendments)
	assert.Equal(t, 4, r.AmendmentCount)
}

func TestParse_MetadataOverrides(t *testing.T) {
	meta, err := ParseMetadata([]byte(`
title: Sidecar Title
phase: Phase IV
therapeutic_area: cardiology
approval_status: Approved
original_date: "2020-01-01"
current_date: "2020-06-01"
amendments:
  - number: "1"
    description: eligibility change
    scope: global
`))
	require.NoError(t, err)

	r, err := Parse("meta", failureText, meta)
	require.NoError(t, err)
	assert.Equal(t, "Sidecar Title", r.Title)
	assert.Equal(t, "Phase IV", r.Phase)
	assert.Equal(t, "cardiology", r.TherapeuticArea)
	assert.Equal(t, "approved", r.ApprovalStatus)
	assert.Equal(t, 1, r.AmendmentCount)
	assert.Equal(t, 152*24*time.Hour, r.DevelopmentDuration())

	b := Score(r, DefaultScoreWeights())
	assert.Equal(t, 0.9, b.Approval)
}

func TestParseMetadata_Invalid(t *testing.T) {
	_, err := ParseMetadata([]byte("title: [unterminated"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDocumentUnparseable))
}

func TestAmendmentScore(t *testing.T) {
	cases := map[int]float64{0: 0.9, 1: 0.7, 2: 0.7, 3: 0.5, 5: 0.5, 6: 0.3, 12: 0.3}
	for n, want := range cases {
		assert.Equal(t, want, AmendmentScore(n), "amendments=%d", n)
	}
}

func TestIndicatorScore_Clamped(t *testing.T) {
	assert.Equal(t, 0.9, indicatorScore(10, 0, 0.5))
	assert.Equal(t, 0.1, indicatorScore(0, 10, 0.5))
	assert.InDelta(t, 0.6, indicatorScore(2, 1, 0.5), 1e-9)
}

func TestScore_InRange(t *testing.T) {
	texts := []string{successText, failureText, strings.Repeat("as needed regular appropriate failed ", 20)}
	for _, txt := range texts {
		r, err := Parse("x", txt, nil)
		require.NoError(t, err)
		b := Score(r, DefaultScoreWeights())
		for _, v := range []float64{b.Approval, b.Amendment, b.Timeline, b.Compliance, b.Recruitment, b.Total} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}
