// Package wiring assembles a runnable riskgraph from configuration: AWS
// clients, evidence adapters, reasoning backend, store, engine, gateway and
// the HTTP and MCP front ends.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"riskgraph/internal/api"
	"riskgraph/internal/config"
	"riskgraph/internal/decision"
	"riskgraph/internal/evidence"
	"riskgraph/internal/gateway"
	"riskgraph/internal/logging"
	"riskgraph/internal/mcp"
	"riskgraph/internal/orchestrate"
	"riskgraph/internal/reasoning"
	"riskgraph/internal/signal"
	"riskgraph/internal/store"
)

// MemoryDBPath selects the in-process store instead of SQLite.
const MemoryDBPath = ":memory:"

// App holds every assembled component. Close releases the store.
type App struct {
	Config   config.Config
	Store    store.Store
	Backend  reasoning.Backend
	Policies *evidence.KnowledgeBase
	Threats  *evidence.WebSearch
	Engine   *orchestrate.Engine
	Gateway  *gateway.Gateway
	API      *api.Server
	MCP      *mcp.Server

	ownsStore bool
}

type options struct {
	retrieve evidence.RetrieveAPI
	converse reasoning.ConverseAPI
	backend  reasoning.Backend
	store    store.Store
	logger   *slog.Logger
	version  string

	ownsStore bool
}

func (o *options) log(component string) *slog.Logger {
	if o.logger == nil {
		return logging.New(component)
	}
	return o.logger.With("component", component)
}

// Option overrides a component that Build would otherwise create.
type Option func(*options)

// WithRetrieveClient supplies the Bedrock Agent Runtime client.
func WithRetrieveClient(c evidence.RetrieveAPI) Option {
	return func(o *options) { o.retrieve = c }
}

// WithConverseClient supplies the Bedrock Runtime client.
func WithConverseClient(c reasoning.ConverseAPI) Option {
	return func(o *options) { o.converse = c }
}

// WithBackend replaces the Bedrock reasoning backend entirely.
func WithBackend(b reasoning.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithStore replaces the configured store. The caller keeps ownership.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithLogger sets the base logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// Build assembles the application described by cfg. AWS clients are created
// from the default credential chain only when a component needs one and no
// override was given.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := loadAWSClients(ctx, cfg, o); err != nil {
		return nil, err
	}

	corpus, err := evidence.LoadPolicyCorpus(cfg.PolicyCorpus)
	if err != nil {
		return nil, err
	}
	kb := evidence.NewKnowledgeBase(o.retrieve, cfg.AWS.KnowledgeBaseID, corpus,
		evidence.WithKnowledgeBaseLogger(o.log("evidence.kb")))

	searchOpts := []evidence.SearchOption{evidence.WithSearchLogger(o.log("evidence.web"))}
	if cfg.Search.BaseURL != "" {
		searchOpts = append(searchOpts, evidence.WithBaseURL(cfg.Search.BaseURL))
	}
	if cfg.Search.Timeout > 0 {
		searchOpts = append(searchOpts, evidence.WithTimeout(cfg.Search.Timeout))
	}
	web := evidence.NewWebSearch(cfg.Search.APIKey, cfg.Search.AllowedDomains, searchOpts...)

	backend := o.backend
	if backend == nil {
		if o.converse == nil {
			return nil, errors.New("wiring: no reasoning backend or Bedrock Runtime client")
		}
		backend = reasoning.NewBedrock(o.converse, cfg.AWS.ModelID,
			reasoning.WithMaxTokens(cfg.AWS.MaxTokens),
			reasoning.WithBedrockLogger(o.log("reasoning.bedrock")))
	}

	st := o.store
	if st == nil {
		st, err = OpenStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		o.ownsStore = true
	}

	engineOpts := []orchestrate.EngineOption{
		orchestrate.WithLogger(o.log("orchestrate")),
		orchestrate.WithStore(st),
		orchestrate.WithRunTimeout(cfg.Pipeline.RunTimeout),
		orchestrate.WithConfidenceThreshold(cfg.Pipeline.ConfidenceThreshold),
		orchestrate.WithAmountMultiplier(cfg.Pipeline.AmountMultiplier),
		orchestrate.WithMaxResults(cfg.Pipeline.MaxResults),
		orchestrate.WithMaxParallel(cfg.Pipeline.MaxParallel),
	}
	if cfg.Pipeline.PromptDir != "" {
		prompts, err := orchestrate.LoadPrompts(cfg.Pipeline.PromptDir)
		if err != nil {
			return nil, o.closeOnError(st, err)
		}
		engineOpts = append(engineOpts, orchestrate.WithPrompts(prompts))
	}
	eng, err := orchestrate.NewEngine(backend, kb, web, engineOpts...)
	if err != nil {
		return nil, o.closeOnError(st, err)
	}

	var primary gateway.Primary = gateway.LocalPrimary{Evaluator: eng}
	if cfg.Gateway.PrimaryURL != "" {
		primary = gateway.NewHTTPPrimary(cfg.Gateway.PrimaryURL, cfg.Gateway.Timeout)
	}
	gw := gateway.New(primary, decision.Controller{Detector: signal.NewDetector(cfg.Pipeline.AmountMultiplier)},
		gateway.WithStore(st), gateway.WithLogger(o.log("gateway")))

	app := &App{
		Config:   cfg,
		Store:    st,
		Backend:  backend,
		Policies: kb,
		Threats:  web,
		Engine:   eng,
		Gateway:  gw,
		API:      api.NewServer(eng, st, api.WithServerLogger(o.log("api"))),
		MCP:      mcp.NewServer(gw, st, o.version),

		ownsStore: o.ownsStore,
	}
	if !kb.Configured() {
		o.log("riskgraph").Warn("knowledge base not configured, internal evidence is mocked")
	}
	if !web.Configured() {
		o.log("riskgraph").Warn("search API key not set, external evidence disabled")
	}
	return app, nil
}

// Close releases the store when Build opened it.
func (a *App) Close() error {
	if a == nil || !a.ownsStore {
		return nil
	}
	return a.Store.Close()
}

func loadAWSClients(ctx context.Context, cfg config.Config, o *options) error {
	needRetrieve := o.retrieve == nil && cfg.AWS.KnowledgeBaseID != ""
	needConverse := o.converse == nil && o.backend == nil
	if !needRetrieve && !needConverse {
		return nil
	}
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	awsCfg, err := awsconfig.LoadDefaultConfig(loadCtx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	if needRetrieve {
		o.retrieve = bedrockagentruntime.NewFromConfig(awsCfg)
	}
	if needConverse {
		o.converse = bedrockruntime.NewFromConfig(awsCfg)
	}
	return nil
}

// OpenStore opens the SQLite store at path, or an in-memory store for
// MemoryDBPath. An empty path selects store.DefaultDBPath.
func OpenStore(path string) (store.Store, error) {
	if path == MemoryDBPath {
		return store.NewMemStore(), nil
	}
	if path == "" {
		path = store.DefaultDBPath
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// closeOnError closes st unless it was supplied by the caller.
func (o *options) closeOnError(st store.Store, err error) error {
	if o.ownsStore {
		_ = st.Close()
	}
	return err
}
