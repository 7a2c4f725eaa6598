package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kubev2v/contentmap-filter/internal/store"
	"github.com/kubev2v/contentmap-filter/pkg/attribute"
	"github.com/kubev2v/contentmap-filter/pkg/dialect"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"github.com/kubev2v/contentmap-filter/pkg/filter"
	"github.com/kubev2v/contentmap-filter/pkg/rule"
	"github.com/kubev2v/contentmap-filter/pkg/scheduler"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

// FilterService parses rules, compiles them against the stored attribute
// catalog and runs the statements on the store.
type FilterService struct {
	store     *store.Store
	dialect   dialect.Dialect
	resolvers []string
	workers   int
	log       *zap.SugaredLogger

	// loads shares one catalog read between concurrent compilations.
	loads singleflight.Group
}

func NewFilterService(st *store.Store, d dialect.Dialect, resolvers []string, workers int) *FilterService {
	return &FilterService{
		store:     st,
		dialect:   d,
		resolvers: resolvers,
		workers:   max(workers, 1),
		log:       zap.S().Named("filter_service"),
	}
}

// Compile compiles one rule. An empty rule selects every visible object.
func (s *FilterService) Compile(ctx context.Context, text string, req filter.Request) (*statement.Statement, error) {
	ctx = withRequestID(ctx)
	compiler, err := s.compiler(ctx)
	if err != nil {
		return nil, err
	}
	return s.compile(ctx, compiler, text, req)
}

// CompileAll compiles texts concurrently against one catalog snapshot. The
// statements are returned in the order of texts.
func (s *FilterService) CompileAll(ctx context.Context, texts []string, req filter.Request) ([]*statement.Statement, error) {
	compiler, err := s.compiler(ctx)
	if err != nil {
		return nil, err
	}

	sched := scheduler.NewScheduler[*statement.Statement](min(s.workers, max(len(texts), 1)))
	defer sched.Close()

	futures := make([]*scheduler.Future[*statement.Statement], 0, len(texts))
	for _, text := range texts {
		futures = append(futures, sched.AddWork(func(ctx context.Context) (*statement.Statement, error) {
			return s.compile(withRequestID(ctx), compiler, text, req)
		}))
	}

	stmts := make([]*statement.Statement, 0, len(texts))
	for i, f := range futures {
		select {
		case r := <-f.C():
			if r.Err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, r.Err)
			}
			stmts = append(stmts, r.Data)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return stmts, nil
}

// Query compiles text and returns the matching objects.
func (s *FilterService) Query(ctx context.Context, text string, req filter.Request) ([]store.Object, error) {
	ctx = withRequestID(ctx)
	req.Count = false
	req.Subquery = false

	stmt, err := s.Compile(ctx, text, req)
	if err != nil {
		return nil, err
	}
	return s.store.Objects().Query(ctx, stmt)
}

// Count compiles text and returns the number of distinct matching objects.
func (s *FilterService) Count(ctx context.Context, text string, req filter.Request) (int64, error) {
	ctx = withRequestID(ctx)
	req.Count = true
	req.Subquery = false
	req.Sort = nil

	stmt, err := s.Compile(ctx, text, req)
	if err != nil {
		return 0, err
	}
	return s.store.Objects().Count(ctx, stmt)
}

// Attributes returns the registered attribute types matching f.
func (s *FilterService) Attributes(ctx context.Context, f *store.CatalogQueryFilter) ([]*attribute.Attribute, error) {
	catalog, err := s.store.Catalog().Load(ctx, f)
	if err != nil {
		return nil, err
	}
	return catalog.Attributes(), nil
}

func (s *FilterService) compiler(ctx context.Context) (*filter.Compiler, error) {
	v, err, shared := s.loads.Do("catalog", func() (any, error) {
		return s.store.Catalog().Load(ctx, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attribute catalog: %w", err)
	}
	if shared {
		s.log.Debugw("shared attribute catalog load", "request_id", store.RequestID(ctx))
	}
	return filter.NewCompiler(s.dialect, v.(attribute.MapCatalog)), nil
}

func (s *FilterService) compile(ctx context.Context, compiler *filter.Compiler, text string, req filter.Request) (*statement.Statement, error) {
	log := s.log.With("request_id", store.RequestID(ctx))

	expr, err := s.parse(text)
	if err != nil {
		log.Debugw("rule rejected", "rule", text, "error", err)
		return nil, err
	}

	stmt, err := compiler.Compile(expr, req)
	if err != nil {
		log.Debugw("compilation failed", "rule", text, "error", err)
		return nil, err
	}

	log.Debugw("rule compiled", "rule", text, "dialect", compiler.Dialect().Name(), "sql", stmt.SQL, "args", len(stmt.Args))
	return stmt, nil
}

// withRequestID tags ctx with a new request id unless it carries one.
func withRequestID(ctx context.Context) context.Context {
	if store.RequestID(ctx) != "" {
		return ctx
	}
	return store.WithRequestID(ctx, uuid.NewString())
}

func (s *FilterService) parse(text string) (expression.Expression, error) {
	tree, err := rule.Parse(text, rule.WithResolvers(s.resolvers...))
	if err != nil {
		return nil, err
	}
	return tree.Expression()
}
