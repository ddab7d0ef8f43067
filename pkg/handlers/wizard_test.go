package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services"
)

func TestWizardHandler_FullFlow(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/wizard", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var state services.WizardState
	decodeData(t, rec, &state)
	assert.Equal(t, models.QuestionCategoryObjectives, state.CurrentCategory)
	assert.Len(t, state.Questions, 3)

	base := "/api/wizard/" + state.DraftID.String()

	rec = f.do(t, http.MethodPut, base+"/responses/objectives_goal", SaveResponseRequest{Response: "New logo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &state)
	assert.Equal(t, "New logo", state.Responses["objectives_goal"].Response)

	rec = f.do(t, http.MethodPut, base+"/responses/not_a_question", SaveResponseRequest{Response: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.registry.Close()
	rec = f.do(t, http.MethodPost, base+"/responses/objectives_problem/use-suggestion", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &state)
	assert.True(t, state.Responses["objectives_problem"].WasSuggestionUsed)

	rec = f.do(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &state)
	assert.Equal(t, models.QuestionCategoryAudience, state.CurrentCategory)

	rec = f.do(t, http.MethodPost, base+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary SummaryResponse
	decodeData(t, rec, &summary)
	assert.Equal(t, "Summary of the brief.", summary.Summary)
	assert.True(t, summary.State.ReadyToSubmit)

	rec = f.do(t, http.MethodPost, base+"/submit", SubmitWizardRequest{Title: "", Category: models.BriefCategoryDesign})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/submit", SubmitWizardRequest{Title: "Bakery logo", Category: models.BriefCategoryDesign})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var brief BriefResponse
	decodeData(t, rec, &brief)
	assert.Equal(t, state.DraftID, brief.ID)
	assert.Equal(t, models.BriefStatusSubmitted, brief.Status)
	assert.Equal(t, "Summary of the brief.", brief.Description)
}

func TestWizardHandler_SummaryUnavailableIs502(t *testing.T) {
	f := newAPIFixture(t)
	f.provider.summaryErr = errors.New("rate limited")

	rec := f.do(t, http.MethodPost, "/api/wizard", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var state services.WizardState
	decodeData(t, rec, &state)

	rec = f.do(t, http.MethodPost, "/api/wizard/"+state.DraftID.String()+"/summary", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "suggestion_unavailable", decodeError(t, rec)["error"])
}

func TestWizardHandler_UnknownDraft(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/wizard/8d0f6a52-9d0c-4a8e-9a7e-3b1c2f7e4a10", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/wizard/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevisionHandler_BeginAndResubmit(t *testing.T) {
	f := newAPIFixture(t)
	brief := f.brief(models.BriefStatusChangesRequested, "add target audience detail")
	base := "/api/briefs/" + brief.ID.String() + "/revision"

	rec := f.do(t, http.MethodPost, base, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rev RevisionResponse
	decodeData(t, rec, &rev)
	assert.Equal(t, brief.ID, rev.BriefID)
	require.Len(t, rev.Feedback, 1)
	assert.Equal(t, "add target audience detail", rev.Feedback[0].Message)
	assert.Equal(t, "Bakery logo", rev.Fields.Title)
	assert.Equal(t, brief.ID, rev.Wizard.DraftID)

	desc := "For young parents in the neighbourhood."
	rec = f.do(t, http.MethodPut, base+"/fields", UpdateRevisionFieldsRequest{Description: &desc})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, base+"/resubmit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out BriefResponse
	decodeData(t, rec, &out)
	assert.Equal(t, brief.ID, out.ID)
	assert.Equal(t, models.BriefStatusSubmitted, out.Status)
	assert.Equal(t, desc, out.Description)
	assert.Len(t, out.Feedback, 1)

	rec = f.do(t, http.MethodPost, base+"/resubmit", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "session closed")
}

func TestRevisionHandler_BeginWrongStatus(t *testing.T) {
	f := newAPIFixture(t)
	draft := f.brief(models.BriefStatusDraft)

	rec := f.do(t, http.MethodPost, "/api/briefs/"+draft.ID.String()+"/revision", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWizardHandler_PublishedBriefAnswersAreReadOnly(t *testing.T) {
	f := newAPIFixture(t)
	published := f.brief(models.BriefStatusPublished)

	rec := f.do(t, http.MethodPut, "/api/wizard/"+published.ID.String()+"/responses/objectives_goal",
		SaveResponseRequest{Response: "Changed after publishing"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "action_not_allowed", decodeError(t, rec)["error"])
}
