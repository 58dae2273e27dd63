package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicInterestAndVerdict(t *testing.T) {
	tests := []struct {
		name          string
		transcript    string
		wantQualified bool
		minInterest   int
		maxInterest   int
	}{
		{"very interested with appointment", "Yes, I'm very interested, let's schedule for Friday at 6 PM", true, 7, 10},
		{"decline and removal", "Not interested, please remove me from your list", false, 1, 3},
		{"plain interest", "User: I'm interested in hearing more.", true, 7, 7},
		{"decline then later booking", "User: no thanks. AI: Can I send info? User: Actually, sure, let's schedule a call Tuesday.", true, 7, 10},
		{"neutral chatter", "User: who is this? AI: Sam from Bright Solar. User: okay.", false, 0, 0},
		{"pricing request", "User: how much would it cost for my roof?", true, 7, 10},
		{"softened decline very", "User: Honestly I'm not very interested.", false, 1, 3},
		{"softened decline super", "User: We are not super interested at this time.", false, 1, 3},
		{"softened decline all that", "User: I'm not all that interested, sorry.", false, 1, 3},
		{"no longer interested", "User: We're no longer interested in solar.", false, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := Heuristic(tt.transcript)
			require.NotNil(t, facts.IsQualified)
			assert.Equal(t, tt.wantQualified, *facts.IsQualified)
			assert.Equal(t, SourceFallback, facts.Source)
			if tt.maxInterest == 0 {
				assert.Nil(t, facts.InterestLevel)
				return
			}
			require.NotNil(t, facts.InterestLevel)
			assert.GreaterOrEqual(t, *facts.InterestLevel, tt.minInterest)
			assert.LessOrEqual(t, *facts.InterestLevel, tt.maxInterest)
		})
	}
}

func TestHeuristicSoftenedDeclineSetsSignal(t *testing.T) {
	for _, transcript := range []string{"I'm not very interested", "not too interested right now", "they aren't really interested"} {
		assert.True(t, DetectSignals(transcript).Declined, transcript)
	}
	assert.False(t, DetectSignals("I'm very interested").Declined)
}

func TestHeuristicFields(t *testing.T) {
	transcript := `AI: What budget are you working with?
User: Our budget is around $15,000 and we'd like to start next month.
User: Email me at Dana.Reyes@Example.com or call 555-867-5309.`

	facts := Heuristic(transcript)
	require.NotNil(t, facts.Budget)
	assert.Equal(t, "$15,000", *facts.Budget)
	require.NotNil(t, facts.Timeline)
	assert.Equal(t, "next month", *facts.Timeline)
	require.NotNil(t, facts.Email)
	assert.Equal(t, "dana.reyes@example.com", *facts.Email)
	require.NotNil(t, facts.Phone)
	assert.Equal(t, "555-867-5309", *facts.Phone)
}

func TestHeuristicBudgetUnsure(t *testing.T) {
	facts := Heuristic("User: I'm not sure about budget yet.")
	assert.Nil(t, facts.Budget)
}

func TestHeuristicTimelineListOrder(t *testing.T) {
	facts := Heuristic("User: We need it asap, ideally next week.")
	require.NotNil(t, facts.Timeline)
	assert.Equal(t, "next week", *facts.Timeline)
}

func TestQualifiesThresholdBoundary(t *testing.T) {
	assert.True(t, Qualifies(Facts{InterestLevel: ptr(6)}, Signals{}))
	assert.False(t, Qualifies(Facts{InterestLevel: ptr(5)}, Signals{}))
	assert.True(t, Qualifies(Facts{InterestLevel: ptr(5)}, Signals{AppointmentScheduled: true}))
	assert.True(t, Qualifies(Facts{InterestLevel: ptr(5)}, Signals{ContactVolunteered: true}))
	assert.True(t, Qualifies(Facts{}, Signals{PricingRequested: true}))
	assert.False(t, Qualifies(Facts{InterestLevel: ptr(8)}, Signals{RemovalRequested: true}))
	assert.False(t, Qualifies(Facts{InterestLevel: ptr(3)}, Signals{ContactVolunteered: true}))
	assert.True(t, Qualifies(Facts{InterestLevel: ptr(2)}, Signals{Declined: true, CallbackRequested: true}))
	assert.False(t, Qualifies(Facts{}, Signals{}))
}
