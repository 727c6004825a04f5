package usecases

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/pkg/logger"
)

// RouteResolver obtains an executable route from the aggregator
type RouteResolver struct {
	aggregator Aggregator
	validate   *validator.Validate
	timeout    Timeouts
}

func NewRouteResolver(aggregator Aggregator, timeouts Timeouts) *RouteResolver {
	return &RouteResolver{
		aggregator: aggregator,
		validate:   validator.New(),
		timeout:    timeouts,
	}
}

// ResolveRoute quotes a route and checks it is structurally executable.
// The route content is not otherwise inspected.
func (r *RouteResolver) ResolveRoute(ctx context.Context, req entities.RouteRequest) (*entities.Route, error) {
	ctx, cancel := withTimeout(ctx, r.timeout.Aggregator)
	defer cancel()

	route, err := r.aggregator.Quote(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainerrors.ErrNoRouteFound, err)
	}
	if route == nil || len(route.Steps) == 0 {
		return nil, fmt.Errorf("%w: aggregator returned no steps", domainerrors.ErrNoRouteFound)
	}
	if err := r.validate.Struct(route); err != nil {
		return nil, fmt.Errorf("%w: route not executable: %w", domainerrors.ErrNoRouteFound, err)
	}

	logger.Info(ctx, "Route resolved",
		zap.String("route_id", route.ID),
		zap.Int("steps", len(route.Steps)),
		zap.Uint64("from_chain", req.SourceChainID),
		zap.Uint64("to_chain", req.DestChainID),
	)
	return route, nil
}
