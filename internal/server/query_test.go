package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/pipeline"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeQueries struct {
	gameID string
	days   int
	limit  int
	err    error
}

func (f *fakeQueries) GameStatistics(_ context.Context, gameID string, days int) (domain.GameStatistics, error) {
	f.gameID, f.days = gameID, days
	return domain.GameStatistics{GameID: gameID, Days: days, TotalMatches: 12, AvgKills: 4.5}, f.err
}

func (f *fakeQueries) DailyTrends(_ context.Context, gameID string, days int) ([]domain.DailyTrend, error) {
	f.gameID, f.days = gameID, days
	return []domain.DailyTrend{{Date: "2024-06-29", Matches: 3}, {Date: "2024-06-30", Matches: 5}}, f.err
}

func (f *fakeQueries) TopPlayers(_ context.Context, gameID string, days, limit int) ([]domain.TopPlayer, error) {
	f.gameID, f.days, f.limit = gameID, days, limit
	return nil, f.err
}

func (f *fakeQueries) AllGamesComparison(_ context.Context, days int) ([]domain.GameComparison, error) {
	f.days = days
	return []domain.GameComparison{{GameID: "dota2", TotalMatches: 7}}, f.err
}

func (f *fakeQueries) GameTrendsComparison(_ context.Context, days int) ([]domain.GameTrendPoint, error) {
	f.days = days
	return []domain.GameTrendPoint{}, f.err
}

func (f *fakeQueries) Forecasts(_ context.Context, gameID string) ([]domain.Forecast, error) {
	f.gameID = gameID
	return []domain.Forecast{{
		ForecastID:      "forecast_dota2_player_count_20240701",
		GameID:          gameID,
		ForecastDate:    time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		PredictedMetric: "player_count",
		PredictedValue:  1000,
		ConfidenceLower: 800,
		ConfidenceUpper: 1200,
		ModelVersion:    "1.0",
	}}, f.err
}

type fakeRunner struct {
	triggers []string
	err      error
}

func (f *fakeRunner) Trigger(trigger string) error {
	if f.err != nil {
		return f.err
	}
	f.triggers = append(f.triggers, trigger)
	return nil
}

func (f *fakeRunner) RecentRuns(_ context.Context, limit int) ([]domain.PipelineRun, error) {
	return []domain.PipelineRun{{RunID: "run1", TriggeredBy: pipeline.TriggerManual, Status: domain.RunStatusSucceeded, MatchesLoaded: limit}}, nil
}

func newTestServer(t *testing.T, q *fakeQueries, r *fakeRunner) *httptest.Server {
	t.Helper()
	path, handler := newQueryServer(q, r, zerolog.Nop()).Handler()
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, procedure string, params map[string]any) (*structpb.Struct, error) {
	t.Helper()
	msg, err := structpb.NewStruct(params)
	require.NoError(t, err)
	client := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+procedure)
	res, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func TestGetGameStatisticsPassesParams(t *testing.T) {
	q := &fakeQueries{}
	srv := newTestServer(t, q, &fakeRunner{})

	res, err := call(t, srv, ProcedureGetGameStatistics, map[string]any{"game_id": "dota2", "days": 7})
	require.NoError(t, err)

	assert.Equal(t, "dota2", q.gameID)
	assert.Equal(t, 7, q.days)
	assert.Equal(t, "dota2", res.Fields["game_id"].GetStringValue())
	assert.Equal(t, 12.0, res.Fields["total_matches"].GetNumberValue())
	assert.Equal(t, 4.5, res.Fields["avg_kills"].GetNumberValue())
}

func TestListResultsComeBackAsItems(t *testing.T) {
	q := &fakeQueries{}
	srv := newTestServer(t, q, &fakeRunner{})

	res, err := call(t, srv, ProcedureGetDailyTrends, map[string]any{"game_id": "all", "days": "14"})
	require.NoError(t, err)
	assert.Equal(t, 14, q.days)

	list := res.Fields["items"].GetListValue().GetValues()
	require.Len(t, list, 2)
	assert.Equal(t, "2024-06-29", list[0].GetStructValue().Fields["date"].GetStringValue())

	res, err = call(t, srv, ProcedureGetForecasts, map[string]any{"game_id": "dota2"})
	require.NoError(t, err)
	forecast := res.Fields["items"].GetListValue().GetValues()[0].GetStructValue()
	assert.Equal(t, 800.0, forecast.Fields["confidence_interval_lower"].GetNumberValue())
	assert.Equal(t, "2024-07-01T00:00:00Z", forecast.Fields["forecast_date"].GetStringValue())
}

func TestEmptyResultIsEmptyList(t *testing.T) {
	q := &fakeQueries{}
	srv := newTestServer(t, q, &fakeRunner{})

	res, err := call(t, srv, ProcedureGetTopPlayers, map[string]any{"limit": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, q.limit)
	assert.Empty(t, q.gameID)

	items, ok := res.Fields["items"]
	require.True(t, ok)
	require.NotNil(t, items.GetListValue())
	assert.Empty(t, items.GetListValue().GetValues())
}

func TestQueryErrorIsInternalWithoutDetails(t *testing.T) {
	q := &fakeQueries{err: errors.New("database is locked")}
	srv := newTestServer(t, q, &fakeRunner{})

	_, err := call(t, srv, ProcedureGetAllGamesComparison, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	assert.NotContains(t, err.Error(), "locked")
}

func TestRunPipeline(t *testing.T) {
	r := &fakeRunner{}
	srv := newTestServer(t, &fakeQueries{}, r)

	res, err := call(t, srv, ProcedureRunPipeline, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "started", res.Fields["status"].GetStringValue())
	assert.Equal(t, []string{pipeline.TriggerManual}, r.triggers)

	r.err = pipeline.ErrAlreadyRunning
	_, err = call(t, srv, ProcedureRunPipeline, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, connect.CodeAborted, connect.CodeOf(err))
}

func TestListPipelineRuns(t *testing.T) {
	srv := newTestServer(t, &fakeQueries{}, &fakeRunner{})

	res, err := call(t, srv, ProcedureListPipelineRuns, map[string]any{"limit": 5})
	require.NoError(t, err)
	runs := res.Fields["items"].GetListValue().GetValues()
	require.Len(t, runs, 1)
	assert.Equal(t, "run1", runs[0].GetStructValue().Fields["run_id"].GetStringValue())
	assert.Equal(t, 5.0, runs[0].GetStructValue().Fields["matches_loaded"].GetNumberValue())
}

func TestPlainJSONPost(t *testing.T) {
	q := &fakeQueries{}
	srv := newTestServer(t, q, &fakeRunner{})

	res, err := srv.Client().Post(srv.URL+ProcedureGetGameTrendsComparison, "application/json", bytes.NewBufferString(`{"days": 90}`))
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, []any{}, decoded["items"])
	assert.Equal(t, 90, q.days)
}
