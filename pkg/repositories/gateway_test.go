//go:build integration

package repositories

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/testhelpers"
)

func setupGateway(t *testing.T) (*PostgresGateway, uuid.UUID) {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	clientID := uuid.New()

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = testDB.DB.Exec(ctx, "DELETE FROM brief_feedback WHERE brief_id IN (SELECT id FROM briefs WHERE client_id = $1)", clientID)
		_, _ = testDB.DB.Exec(ctx, "DELETE FROM briefs WHERE client_id = $1", clientID)
		_, _ = testDB.DB.Exec(ctx, "DELETE FROM brief_attachments WHERE owner_id = $1", clientID)
	})

	return NewPostgresGateway(testDB.DB, "http://localhost:3480"), clientID
}

func newDraft(clientID uuid.UUID, title string) *models.Brief {
	deadline := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	return &models.Brief{
		ClientID:    clientID,
		Title:       title,
		Budget:      "$5,000",
		Deadline:    &deadline,
		Category:    models.BriefCategoryDesign,
		Description: "A logo refresh",
		Status:      models.BriefStatusDraft,
	}
}

func TestPostgresGateway_CreateGetKeepsPresetID(t *testing.T) {
	gw, clientID := setupGateway(t)
	ctx := context.Background()

	brief := newDraft(clientID, "Logo refresh")
	brief.ID = uuid.New()
	preset := brief.ID

	id, err := gw.CreateBrief(ctx, brief)
	require.NoError(t, err)
	assert.Equal(t, preset, id)

	got, err := gw.GetBrief(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Logo refresh", got.Title)
	assert.Equal(t, models.BriefStatusDraft, got.Status)
	assert.Equal(t, models.BriefCategoryDesign, got.Category)
	require.NotNil(t, got.Deadline)
	assert.Equal(t, "2026-06-30", got.Deadline.Format("2006-01-02"))
	assert.Empty(t, got.Feedback)

	_, err = gw.CreateBrief(ctx, brief)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestPostgresGateway_GetMissing(t *testing.T) {
	gw, _ := setupGateway(t)

	_, err := gw.GetBrief(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresGateway_UpdateAppendsFeedback(t *testing.T) {
	gw, clientID := setupGateway(t)
	ctx := context.Background()

	id, err := gw.CreateBrief(ctx, newDraft(clientID, "Landing page"))
	require.NoError(t, err)

	status := models.BriefStatusChangesRequested
	err = gw.UpdateBrief(ctx, id, &models.BriefPatch{
		Status: &status,
		AppendFeedback: []models.FeedbackItem{
			{Message: "add target audience detail", FromReviewer: "Agency"},
		},
	})
	require.NoError(t, err)

	title := "Landing page v2"
	resubmitted := models.BriefStatusSubmitted
	require.NoError(t, gw.UpdateBrief(ctx, id, &models.BriefPatch{Title: &title, Status: &resubmitted}))

	got, err := gw.GetBrief(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.BriefStatusSubmitted, got.Status)
	assert.Equal(t, "Landing page v2", got.Title)
	assert.Equal(t, "A logo refresh", got.Description, "unpatched fields are unchanged")
	require.Len(t, got.Feedback, 1, "feedback survives later updates")
	assert.Equal(t, "add target audience detail", got.Feedback[0].Message)
	assert.Equal(t, "Agency", got.Feedback[0].FromReviewer)

	err = gw.UpdateBrief(ctx, uuid.New(), &models.BriefPatch{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresGateway_UpdateExpectStatus(t *testing.T) {
	gw, clientID := setupGateway(t)
	ctx := context.Background()

	id, err := gw.CreateBrief(ctx, newDraft(clientID, "Landing page"))
	require.NoError(t, err)

	draft := models.BriefStatusDraft
	submitted := models.BriefStatusSubmitted
	published := models.BriefStatusPublished
	require.NoError(t, gw.UpdateBrief(ctx, id, &models.BriefPatch{Status: &submitted, ExpectStatus: &draft}))
	require.NoError(t, gw.UpdateBrief(ctx, id, &models.BriefPatch{Status: &published, ExpectStatus: &submitted}))

	// A writer still holding the submitted copy must not move it back.
	err = gw.UpdateBrief(ctx, id, &models.BriefPatch{
		Status:         &submitted,
		ExpectStatus:   &submitted,
		AppendFeedback: []models.FeedbackItem{{Message: "stale", FromReviewer: "Agency"}},
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := gw.GetBrief(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.BriefStatusPublished, got.Status)
	assert.Empty(t, got.Feedback, "feedback is not appended on conflict")

	err = gw.UpdateBrief(ctx, uuid.New(), &models.BriefPatch{Status: &published, ExpectStatus: &submitted})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresGateway_ListForClientAndByStatus(t *testing.T) {
	gw, clientID := setupGateway(t)
	ctx := context.Background()

	first, err := gw.CreateBrief(ctx, newDraft(clientID, "First"))
	require.NoError(t, err)
	_, err = gw.CreateBrief(ctx, newDraft(clientID, "Second"))
	require.NoError(t, err)
	_, err = gw.CreateBrief(ctx, newDraft(uuid.New(), "Someone else's"))
	require.NoError(t, err)

	mine, err := gw.ListBriefsForClient(ctx, clientID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	published := models.BriefStatusPublished
	require.NoError(t, gw.UpdateBrief(ctx, first, &models.BriefPatch{Status: &published}))

	listed, err := gw.ListBriefsByStatus(ctx, models.BriefStatusPublished)
	require.NoError(t, err)
	var found bool
	for _, b := range listed {
		if b.ID == first {
			found = true
		}
		assert.Equal(t, models.BriefStatusPublished, b.Status)
	}
	assert.True(t, found)
}

func TestPostgresGateway_UpsertQuestionResponseOverwrites(t *testing.T) {
	gw, _ := setupGateway(t)
	ctx := context.Background()
	draftID := uuid.New()

	suggestion := "Grow bookings"
	require.NoError(t, gw.UpsertQuestionResponse(ctx, &models.QuestionResponse{
		BriefDraftID: draftID, QuestionID: "objectives_goal", Response: "first",
	}))
	require.NoError(t, gw.UpsertQuestionResponse(ctx, &models.QuestionResponse{
		BriefDraftID: draftID, QuestionID: "objectives_goal", Response: "Grow bookings",
		AISuggestedResponse: &suggestion, WasSuggestionUsed: true,
	}))

	// concurrent saves of distinct questions
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for _, qid := range []string{"audience_primary", "audience_needs", "timeline_deadline", "budget_range"} {
		wg.Add(1)
		go func(qid string) {
			defer wg.Done()
			errs <- gw.UpsertQuestionResponse(ctx, &models.QuestionResponse{BriefDraftID: draftID, QuestionID: qid, Response: qid})
		}(qid)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	responses, err := gw.GetQuestionResponses(ctx, draftID)
	require.NoError(t, err)
	assert.Len(t, responses, 5, "same key overwrites instead of inserting")

	for _, r := range responses {
		if r.QuestionID == "objectives_goal" {
			assert.Equal(t, "Grow bookings", r.Response)
			assert.True(t, r.WasSuggestionUsed)
			require.NotNil(t, r.AISuggestedResponse)
			assert.Equal(t, suggestion, *r.AISuggestedResponse)
		}
	}
}

func TestPostgresGateway_Attachments(t *testing.T) {
	gw, clientID := setupGateway(t)
	ctx := context.Background()

	url, err := gw.AttachFile(ctx, clientID, &models.Attachment{
		FileName: "moodboard.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:3480/api/attachments/"), url)

	id := uuid.MustParse(strings.TrimPrefix(url, "http://localhost:3480/api/attachments/"))
	got, err := gw.GetAttachment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, clientID, got.OwnerID)
	assert.Equal(t, "moodboard.png", got.FileName)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got.Data)

	_, err = gw.GetAttachment(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
