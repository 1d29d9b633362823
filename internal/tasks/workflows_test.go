package tasks

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func TestScrapeCourtWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	var a *Activities
	args := ScrapeCourtArgs{CourtCode: "oblsud--kln", Article: "207.3", SubType: "Первая инстанция"}
	env.OnActivity(a.ScrapeCourt, mock.Anything, args).Return(nil).Once()

	env.ExecuteWorkflow(ScrapeCourtWorkflow, args)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestScrapeCourtWorkflow_NoActivityRetry(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	var a *Activities
	args := ScrapeCourtArgs{CourtCode: "oblsud--kln", Article: "207.3", SubType: "Первая инстанция"}
	// A storage failure runs the activity exactly once and fails the
	// workflow; the next roster cycle picks the court up again.
	env.OnActivity(a.ScrapeCourt, mock.Anything, args).Return(eris.New("store down")).Once()

	env.ExecuteWorkflow(ScrapeCourtWorkflow, args)
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestScrapeAllArticlesWorkflow_FansOutMatrix(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ScrapeCourtWorkflow)

	var a *Activities
	inputs := ScrapeInputs{
		Articles: []string{"207.3", "280"},
		SubTypes: []string{"Первая инстанция"},
	}
	env.OnActivity(a.ListScrapeInputs, mock.Anything).Return(inputs, nil).Once()
	for _, article := range inputs.Articles {
		args := ScrapeCourtArgs{CourtCode: "oblsud--kln", Article: article, SubType: "Первая инстанция"}
		env.OnActivity(a.ScrapeCourt, mock.Anything, args).Return(nil).Once()
	}

	env.ExecuteWorkflow(ScrapeAllArticlesWorkflow, ScrapeAllArticlesArgs{CourtCode: "oblsud--kln"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestScrapeAllArticlesWorkflow_OneFailureLeavesRestRunning(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ScrapeCourtWorkflow)

	var a *Activities
	inputs := ScrapeInputs{
		Articles: []string{"207.3", "280"},
		SubTypes: []string{"Первая инстанция"},
	}
	env.OnActivity(a.ListScrapeInputs, mock.Anything).Return(inputs, nil).Once()
	env.OnActivity(a.ScrapeCourt, mock.Anything,
		ScrapeCourtArgs{CourtCode: "oblsud--kln", Article: "207.3", SubType: "Первая инстанция"}).
		Return(eris.New("scrape failed with error_type=captcha_failed")).Once()
	env.OnActivity(a.ScrapeCourt, mock.Anything,
		ScrapeCourtArgs{CourtCode: "oblsud--kln", Article: "280", SubType: "Первая инстанция"}).
		Return(nil).Once()

	env.ExecuteWorkflow(ScrapeAllArticlesWorkflow, ScrapeAllArticlesArgs{CourtCode: "oblsud--kln"})
	require.True(t, env.IsWorkflowCompleted())
	// The failed run stays recorded on its own session and child workflow;
	// the parent and the remaining runs finish cleanly.
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestBatchTickWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.BatchTick, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(BatchTickWorkflow)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestCleanSessionsWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.CleanSessions, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(CleanSessionsWorkflow)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}
