package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gamestats-pipeline/internal/analytics"
	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/pipeline"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const QueryServicePath = "/gamestats.v1.QueryService/"

const (
	ProcedureGetGameStatistics       = QueryServicePath + "GetGameStatistics"
	ProcedureGetDailyTrends          = QueryServicePath + "GetDailyTrends"
	ProcedureGetTopPlayers           = QueryServicePath + "GetTopPlayers"
	ProcedureGetAllGamesComparison   = QueryServicePath + "GetAllGamesComparison"
	ProcedureGetGameTrendsComparison = QueryServicePath + "GetGameTrendsComparison"
	ProcedureGetForecasts            = QueryServicePath + "GetForecasts"
	ProcedureRunPipeline             = QueryServicePath + "RunPipeline"
	ProcedureListPipelineRuns        = QueryServicePath + "ListPipelineRuns"
)

type queries interface {
	GameStatistics(ctx context.Context, gameID string, days int) (domain.GameStatistics, error)
	DailyTrends(ctx context.Context, gameID string, days int) ([]domain.DailyTrend, error)
	TopPlayers(ctx context.Context, gameID string, days, limit int) ([]domain.TopPlayer, error)
	AllGamesComparison(ctx context.Context, days int) ([]domain.GameComparison, error)
	GameTrendsComparison(ctx context.Context, days int) ([]domain.GameTrendPoint, error)
	Forecasts(ctx context.Context, gameID string) ([]domain.Forecast, error)
}

type runner interface {
	Trigger(trigger string) error
	RecentRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error)
}

// QueryServer exposes the dashboard queries and the manual run trigger.
// Messages are google.protobuf.Struct so clients may speak JSON or binary.
// Requests carry optional game_id, days and limit; list results come back
// under "items".
type QueryServer struct {
	queries queries
	runner  runner
	logger  zerolog.Logger
}

func NewQueryServer(analyticsService *analytics.Service, scheduler *pipeline.Scheduler, logger zerolog.Logger) *QueryServer {
	return newQueryServer(analyticsService, scheduler, logger)
}

func newQueryServer(q queries, r runner, logger zerolog.Logger) *QueryServer {
	return &QueryServer{
		queries: q,
		runner:  r,
		logger:  logger.With().Str("component", "query_server").Logger(),
	}
}

type (
	request  = connect.Request[structpb.Struct]
	response = connect.Response[structpb.Struct]
)

// Handler returns the path prefix and the handler serving every procedure.
func (s *QueryServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithInterceptors(s.logCalls())}, opts...)

	procedures := map[string]func(context.Context, *request) (*response, error){
		ProcedureGetGameStatistics:       s.GetGameStatistics,
		ProcedureGetDailyTrends:          s.GetDailyTrends,
		ProcedureGetTopPlayers:           s.GetTopPlayers,
		ProcedureGetAllGamesComparison:   s.GetAllGamesComparison,
		ProcedureGetGameTrendsComparison: s.GetGameTrendsComparison,
		ProcedureGetForecasts:            s.GetForecasts,
		ProcedureRunPipeline:             s.RunPipeline,
		ProcedureListPipelineRuns:        s.ListPipelineRuns,
	}

	mux := http.NewServeMux()
	for procedure, unary := range procedures {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, unary, opts...))
	}
	return QueryServicePath, mux
}

func (s *QueryServer) GetGameStatistics(ctx context.Context, req *request) (*response, error) {
	stats, err := s.queries.GameStatistics(ctx, stringParam(req, "game_id"), intParam(req, "days"))
	if err != nil {
		return nil, s.internal(ctx, "game statistics", err)
	}
	return s.respond(ctx, stats)
}

func (s *QueryServer) GetDailyTrends(ctx context.Context, req *request) (*response, error) {
	trends, err := s.queries.DailyTrends(ctx, stringParam(req, "game_id"), intParam(req, "days"))
	if err != nil {
		return nil, s.internal(ctx, "daily trends", err)
	}
	return s.respond(ctx, items(trends))
}

func (s *QueryServer) GetTopPlayers(ctx context.Context, req *request) (*response, error) {
	players, err := s.queries.TopPlayers(ctx, stringParam(req, "game_id"), intParam(req, "days"), intParam(req, "limit"))
	if err != nil {
		return nil, s.internal(ctx, "top players", err)
	}
	return s.respond(ctx, items(players))
}

func (s *QueryServer) GetAllGamesComparison(ctx context.Context, req *request) (*response, error) {
	games, err := s.queries.AllGamesComparison(ctx, intParam(req, "days"))
	if err != nil {
		return nil, s.internal(ctx, "games comparison", err)
	}
	return s.respond(ctx, items(games))
}

func (s *QueryServer) GetGameTrendsComparison(ctx context.Context, req *request) (*response, error) {
	points, err := s.queries.GameTrendsComparison(ctx, intParam(req, "days"))
	if err != nil {
		return nil, s.internal(ctx, "game trends", err)
	}
	return s.respond(ctx, items(points))
}

func (s *QueryServer) GetForecasts(ctx context.Context, req *request) (*response, error) {
	forecasts, err := s.queries.Forecasts(ctx, stringParam(req, "game_id"))
	if err != nil {
		return nil, s.internal(ctx, "forecasts", err)
	}
	return s.respond(ctx, items(forecasts))
}

// RunPipeline starts a run in the background. A run already in progress is
// reported as Aborted.
func (s *QueryServer) RunPipeline(ctx context.Context, _ *request) (*response, error) {
	err := s.runner.Trigger(pipeline.TriggerManual)
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		return nil, connect.NewError(connect.CodeAborted, err)
	}
	if err != nil {
		return nil, s.internal(ctx, "pipeline trigger", err)
	}
	zerolog.Ctx(ctx).Info().Msg("manual pipeline run started")
	return s.respond(ctx, map[string]string{"status": "started"})
}

func (s *QueryServer) ListPipelineRuns(ctx context.Context, req *request) (*response, error) {
	runs, err := s.runner.RecentRuns(ctx, intParam(req, "limit"))
	if err != nil {
		return nil, s.internal(ctx, "pipeline runs", err)
	}
	return s.respond(ctx, items(runs))
}

// items wraps a list so it can travel as a Struct. A nil list becomes [].
func items[T any](list []T) map[string][]T {
	if list == nil {
		list = []T{}
	}
	return map[string][]T{"items": list}
}

func (s *QueryServer) respond(ctx context.Context, v any) (*response, error) {
	msg, err := toStruct(v)
	if err != nil {
		return nil, s.internal(ctx, "response encoding", err)
	}
	return connect.NewResponse(msg), nil
}

// internal logs the cause and hides it from the caller.
func (s *QueryServer) internal(ctx context.Context, what string, err error) error {
	zerolog.Ctx(ctx).Error().Err(err).Str("query", what).Msg("query failed")
	return connect.NewError(connect.CodeInternal, fmt.Errorf("failed to load %s", what))
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to convert response: %w", err)
	}
	return out, nil
}

func stringParam(req *request, name string) string {
	return req.Msg.GetFields()[name].GetStringValue()
}

// intParam accepts JSON numbers and numeric strings; anything else is 0 and
// falls through to the query's default.
func intParam(req *request, name string) int {
	v := req.Msg.GetFields()[name]
	switch v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return int(v.GetNumberValue())
	case *structpb.Value_StringValue:
		if n, err := strconv.Atoi(v.GetStringValue()); err == nil {
			return n
		}
	}
	return 0
}

// logCalls times every procedure with the request-scoped logger, falling back
// to the server's own when the middleware did not attach one.
func (s *QueryServer) logCalls() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
				ctx = s.logger.WithContext(ctx)
			}
			start := time.Now()
			res, err := next(ctx, req)

			event := zerolog.Ctx(ctx).Debug()
			if err != nil {
				event = zerolog.Ctx(ctx).Warn().Str("code", connect.CodeOf(err).String())
			}
			event.Str("procedure", req.Spec().Procedure).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("rpc handled")
			return res, err
		}
	}
}
