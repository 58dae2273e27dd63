package leads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/callcrm-ai-platform/internal/brief"
	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

type stubAssignee struct {
	id    string
	err   error
	calls int
}

func (s *stubAssignee) DefaultAssignee(context.Context, string, string) (string, error) {
	s.calls++
	return s.id, s.err
}

func TestMergeCreatesQualifiedLead(t *testing.T) {
	repo := NewInMemoryRepository()
	assignee := &stubAssignee{id: "user-7"}
	m := NewMerger(repo, nil, WithAssigneeResolver(assignee))

	lead, created, err := m.Merge(context.Background(), MergeInput{
		OrgID: "org-1",
		Phone: "(555) 010-2000",
		Facts: extraction.Facts{Name: strp("Maria Lopez"), InterestLevel: intp(8), City: strp("Austin")},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "+15550102000", lead.Phone)
	assert.Equal(t, StatusQualified, lead.QualificationStatus)
	assert.Equal(t, TierHot, lead.QualityTier)
	assert.Equal(t, 80, lead.Score)
	assert.Equal(t, 1, lead.CallAttempts)
	assert.Equal(t, "user-7", lead.AssignedTo)
	assert.Equal(t, "ai_call", lead.Source)
	require.Len(t, lead.Notes, 1)
	assert.Contains(t, lead.Notes[0].Content, "interest 8/10")
}

func TestMergeKeepsUntouchedCustomFields(t *testing.T) {
	repo := NewInMemoryRepository()
	m := NewMerger(repo, nil)
	ctx := context.Background()

	_, _, err := m.Merge(ctx, MergeInput{
		OrgID: "org-1", Phone: "+15550102000",
		Facts: extraction.Facts{InterestLevel: intp(6), Street: strp("12 Elm St"), City: strp("Austin"), State: strp("TX")},
	})
	require.NoError(t, err)

	lead, created, err := m.Merge(ctx, MergeInput{
		OrgID: "org-1", Phone: "+15550102000",
		Facts: extraction.Facts{InterestLevel: intp(7), Budget: strp("$20,000")},
	})
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, map[string]any{"street": "12 Elm St", "city": "Austin", "state": "TX"}, lead.CustomFields["address"])
	qual, ok := lead.CustomFields["qualification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "$20,000", qual["budget"])
	assert.Equal(t, "$20,000", lead.Budget)
	assert.Equal(t, 2, lead.CallAttempts)
	assert.Len(t, lead.Notes, 2)
}

func TestMergeOverlaysOnlyMentionedFields(t *testing.T) {
	repo := NewInMemoryRepository()
	m := NewMerger(repo, nil)
	ctx := context.Background()

	_, _, err := m.Merge(ctx, MergeInput{OrgID: "org-1", Phone: "+15550102000",
		Facts: extraction.Facts{Name: strp("Maria"), Email: strp("maria@example.com"), InterestLevel: intp(9)}})
	require.NoError(t, err)

	lead, _, err := m.Merge(ctx, MergeInput{OrgID: "org-1", Phone: "+15550102000",
		Facts: extraction.Facts{Company: strp("Sunrise Bakery")}})
	require.NoError(t, err)
	assert.Equal(t, "Maria", lead.Name)
	assert.Equal(t, "maria@example.com", lead.Email)
	assert.Equal(t, "Sunrise Bakery", lead.Company)
	assert.Equal(t, 9, lead.InterestLevel, "interest is kept when the call did not rate it")
}

func TestMergeResetsStatusToQualified(t *testing.T) {
	repo := NewInMemoryRepository()
	m := NewMerger(repo, nil)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, "org-1", "+15550102000", func(*Lead) (*Lead, error) {
		return &Lead{QualificationStatus: "disqualified", InterestLevel: 2}, nil
	})
	require.NoError(t, err)

	lead, created, err := m.Merge(ctx, MergeInput{OrgID: "org-1", Phone: "+15550102000",
		Facts: extraction.Facts{InterestLevel: intp(5)}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, StatusQualified, lead.QualificationStatus)
	assert.Equal(t, TierWarm, lead.QualityTier)
}

func TestMergeCapsNotesKeepingNewest(t *testing.T) {
	m := NewMerger(NewInMemoryRepository(), nil, WithNotesCap(3))
	var lead *Lead
	for i := 1; i <= 5; i++ {
		var err error
		lead, _, err = m.Merge(context.Background(), MergeInput{
			OrgID: "org-1", Phone: "+15550102000", CallID: "call-" + string(rune('0'+i)),
			Facts: extraction.Facts{InterestLevel: intp(6)},
		})
		require.NoError(t, err)
	}
	require.Len(t, lead.Notes, 3)
	assert.Equal(t, "call-3", lead.Notes[0].CallID)
	assert.Equal(t, "call-5", lead.Notes[2].CallID)
}

func TestMergeRerunForSameCallReplacesNote(t *testing.T) {
	m := NewMerger(NewInMemoryRepository(), nil)
	ctx := context.Background()

	first, _, err := m.Merge(ctx, MergeInput{OrgID: "org-1", Phone: "+15550102000", CallID: "call-1",
		Facts: extraction.Facts{InterestLevel: intp(6)}})
	require.NoError(t, err)
	noteID := first.Notes[0].ID

	lead, created, err := m.Merge(ctx, MergeInput{OrgID: "org-1", Phone: "+15550102000", CallID: "call-1",
		Facts: extraction.Facts{InterestLevel: intp(9)}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, lead.CallAttempts)
	require.Len(t, lead.Notes, 1)
	assert.Equal(t, noteID, lead.Notes[0].ID)
	assert.Contains(t, lead.Notes[0].Content, "interest 9/10")

	lead, _, err = m.Merge(ctx, MergeInput{OrgID: "org-1", Phone: "+15550102000", CallID: "call-2",
		Facts: extraction.Facts{InterestLevel: intp(7)}})
	require.NoError(t, err)
	assert.Equal(t, 2, lead.CallAttempts)
	assert.Len(t, lead.Notes, 2)
}

func TestMergeRecordsBriefDetails(t *testing.T) {
	at := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	b := &brief.Brief{
		Executive: brief.ExecutiveSummary{Outcome: "appointment_scheduled", Priority: "high"},
		Calendar: brief.Calendar{Appointments: []brief.Appointment{{
			Date: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), ScheduledAt: &at, DayText: "friday",
			TimeText: "6 PM", Type: "consultation", Confirmed: true,
		}}},
		Actions:         brief.ActionItems{MissingInfo: []brief.MissingItem{{Field: "Budget", Question: "?"}}},
		Recommendations: brief.Recommendations{NextBestAction: "Confirm the appointment", WinProbability: 70},
	}
	lead, _, err := NewMerger(NewInMemoryRepository(), nil).Merge(context.Background(), MergeInput{
		OrgID: "org-1", Phone: "+15550102000", Facts: extraction.Facts{InterestLevel: intp(9)}, Brief: b,
	})
	require.NoError(t, err)
	require.NotNil(t, lead.NextCallAt)
	assert.Equal(t, at, *lead.NextCallAt)

	appt := lead.CustomFields["appointment"].(map[string]any)
	assert.Equal(t, "2026-10-16", appt["date"])
	assert.Equal(t, true, appt["confirmed"])
	assert.Contains(t, lead.Notes[0].Content, "Missing: Budget")
}

func TestMergeValidatesKey(t *testing.T) {
	m := NewMerger(NewInMemoryRepository(), nil)
	_, _, err := m.Merge(context.Background(), MergeInput{Phone: "+15550102000"})
	assert.ErrorIs(t, err, ErrMissingOrgID)
	_, _, err = m.Merge(context.Background(), MergeInput{OrgID: "org-1"})
	assert.ErrorIs(t, err, ErrMissingPhone)
}

func TestMergeFallsBackToFactsPhone(t *testing.T) {
	lead, _, err := NewMerger(NewInMemoryRepository(), nil).Merge(context.Background(), MergeInput{
		OrgID: "org-1", Facts: extraction.Facts{Phone: strp("+1 555 010 2000")},
	})
	require.NoError(t, err)
	assert.Equal(t, "+15550102000", lead.Phone)
}

func TestMergeToleratesAssigneeFailure(t *testing.T) {
	assignee := &stubAssignee{err: errors.New("db down")}
	lead, _, err := NewMerger(NewInMemoryRepository(), nil, WithAssigneeResolver(assignee)).Merge(
		context.Background(), MergeInput{OrgID: "org-1", Phone: "+15550102000"})
	require.NoError(t, err)
	assert.Empty(t, lead.AssignedTo)
	assert.Equal(t, 1, assignee.calls)
}

func TestConcurrentMergesKeepEveryNote(t *testing.T) {
	repo := NewInMemoryRepository()
	m := NewMerger(repo, nil, WithNotesCap(100))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Merge(context.Background(), MergeInput{OrgID: "org-1", Phone: "+15550102000",
				Facts: extraction.Facts{InterestLevel: intp(7)}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	lead, err := repo.FindByPhone(context.Background(), "org-1", "+15550102000")
	require.NoError(t, err)
	assert.Len(t, lead.Notes, 20)
	assert.Equal(t, 20, lead.CallAttempts)
	assert.Equal(t, 0, m.locks.size())
}

func TestTierFor(t *testing.T) {
	cases := map[int]QualityTier{10: TierHot, 7: TierHot, 6: TierWarm, 5: TierWarm, 4: TierCool, 3: TierCool, 2: TierCold, 0: TierCold}
	for interest, want := range cases {
		assert.Equal(t, want, TierFor(interest), "interest %d", interest)
	}
}

func TestSnapshotReadsAddressCity(t *testing.T) {
	lead := &Lead{Name: "Maria", Budget: "$5k", CallAttempts: 2, CustomFields: map[string]any{
		"address": map[string]any{"city": "Austin"},
	}}
	snap := lead.Snapshot()
	assert.Equal(t, "Austin", snap.City)
	assert.Equal(t, "$5k", snap.Budget)
	assert.Equal(t, 2, snap.PreviousCalls)
	assert.Equal(t, brief.LeadSnapshot{}, (*Lead)(nil).Snapshot())
}
