// Package potato maps typed documents onto a CouchDB database: views compiled
// from their type, validation, lifecycle callbacks and revision bookkeeping.
package potato

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xdbsoft/potato/api"
	"github.com/xdbsoft/potato/couchdb"
	"github.com/xdbsoft/potato/lifecycle"
	"github.com/xdbsoft/potato/metrics"
	"github.com/xdbsoft/potato/view"
)

// Instrumenter observes view queries and mutations. It never alters results.
type Instrumenter interface {
	ObserveView(design, view string, d time.Duration, err error)
	ObserveMutation(operation, docType, outcome string)
}

type options struct {
	logger       *zap.SugaredLogger
	registry     *lifecycle.Registry
	models       []*lifecycle.Model
	instrumenter Instrumenter
	httpClient   *http.Client
}

// Option configures a Database
type Option func(*options)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry replaces the model registry. Models given with WithModels are
// added to it.
func WithRegistry(r *lifecycle.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

func WithModels(models ...*lifecycle.Model) Option {
	return func(o *options) {
		o.models = append(o.models, models...)
	}
}

func WithInstrumenter(i Instrumenter) Option {
	return func(o *options) {
		o.instrumenter = i
	}
}

// WithHTTPClient sets the client used by Open to reach the server
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// Database is the entry point of the mapper. It is safe for concurrent use as
// long as documents are not shared between goroutines.
type Database struct {
	name         string
	store        api.Store
	registry     *lifecycle.Registry
	engine       *lifecycle.Engine
	logger       *zap.SugaredLogger
	instrumenter Instrumenter
}

var _ api.Database = (*Database)(nil)

type named interface {
	Name() string
}

// New checks that the store is reachable and returns a Database using it
func New(ctx context.Context, store api.Store, opts ...Option) (*Database, error) {

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}
	if o.registry == nil {
		o.registry = lifecycle.NewRegistry()
	}
	for _, m := range o.models {
		o.registry.Register(m)
	}

	name := ""
	if n, ok := store.(named); ok {
		name = n.Name()
	}

	info, err := store.Info(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, unavailableError{Database: name}
		}
		return nil, unavailableError{Database: name, cause: err}
	}
	if info.Name != "" {
		name = info.Name
	}

	return &Database{
		name:         name,
		store:        store,
		registry:     o.registry,
		engine:       lifecycle.NewEngine(store, o.registry, o.logger),
		logger:       o.logger,
		instrumenter: o.instrumenter,
	}, nil
}

// Open connects to the database described by cfg. The models and the log
// level of cfg apply unless overridden by opts.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Database, error) {

	dbURL, err := cfg.DatabaseURL()
	if err != nil {
		return nil, err
	}

	defaults := []Option{WithRegistry(cfg.registry())}
	if cfg.LogLevel != "" {
		logger, err := NewLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		defaults = append(defaults, WithLogger(logger))
	}
	opts = append(defaults, opts...)

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []couchdb.Option
	if o.httpClient != nil {
		clientOpts = append(clientOpts, couchdb.WithHTTPClient(o.httpClient))
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, couchdb.WithTimeout(cfg.Timeout))
	}
	client, err := couchdb.New(dbURL, clientOpts...)
	if err != nil {
		return nil, configurationError(err.Error())
	}

	return New(ctx, client, opts...)
}

func (db *Database) Name() string {
	return db.name
}

// Registry holds the models of the database
func (db *Database) Registry() *lifecycle.Registry {
	return db.registry
}

func (db *Database) Info(ctx context.Context) (api.DatabaseInfo, error) {
	return db.store.Info(ctx)
}

// View queries the view described by s. Returned documents are attached to
// the database.
func (db *Database) View(ctx context.Context, s view.Spec) (*view.Result, error) {

	start := time.Now()
	res, err := view.Query(ctx, db.store, s)
	elapsed := time.Since(start)

	if db.instrumenter != nil {
		db.instrumenter.ObserveView(s.DesignDocument(), s.ViewName(), elapsed, err)
	}
	if db.logger.Level().Enabled(zapcore.DebugLevel) {
		db.logger.Debugf("view query: %s#%s (%.1fms)", s.Type(), s.ViewName(), float64(elapsed.Microseconds())/1000)
	}
	if err != nil {
		return nil, err
	}

	result := s.Process(res)
	for _, doc := range result.Documents {
		doc.SetDatabase(db)
	}
	return result, nil
}

// Save validates then creates or updates doc. It returns false, with the
// document errors filled, when the document is invalid.
func (db *Database) Save(ctx context.Context, doc *api.Document) (bool, error) {
	return db.save(ctx, doc, true)
}

// SaveWithoutValidation creates or updates doc, skipping validation
func (db *Database) SaveWithoutValidation(ctx context.Context, doc *api.Document) (bool, error) {
	return db.save(ctx, doc, false)
}

// SaveStrict is Save where an invalid document is an error of type
// *ValidationFailedError.
func (db *Database) SaveStrict(ctx context.Context, doc *api.Document) error {

	ok, err := db.Save(ctx, doc)
	if err != nil {
		return err
	}
	if !ok {
		return &ValidationFailedError{Type: doc.Type(), Messages: doc.Errors().FullMessages()}
	}
	return nil
}

func (db *Database) save(ctx context.Context, doc *api.Document, validate bool) (bool, error) {

	if !doc.IsDirty() {
		doc.SetDatabase(db)
		return true, nil
	}

	operation := "update"
	if doc.IsNew() {
		operation = "create"
	}

	ok, err := db.engine.Save(ctx, doc, validate)
	db.observe(operation, doc.Type(), ok, err)
	if err != nil || !ok {
		return ok, err
	}
	doc.SetDatabase(db)
	return true, nil
}

// Destroy deletes doc. The document keeps its attributes but loses its id,
// its revision and its link to the database.
func (db *Database) Destroy(ctx context.Context, doc *api.Document) error {

	err := db.engine.Destroy(ctx, doc)
	db.observe("destroy", doc.Type(), err == nil, err)
	if err != nil {
		return err
	}
	doc.SetDatabase(nil)
	return nil
}

// Load returns the document with the given id, nil when there is none
func (db *Database) Load(ctx context.Context, id string) (*api.Document, error) {

	if id == "" {
		return nil, ErrMissingID
	}

	m, err := db.store.Get(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	doc := api.FromMap(m)
	doc.SetDatabase(db)
	return doc, nil
}

func (db *Database) observe(operation, docType string, ok bool, err error) {
	if db.instrumenter == nil {
		return
	}
	outcome := metrics.OutcomeOK
	switch {
	case err != nil && IsConflict(err):
		outcome = metrics.OutcomeConflict
	case err != nil:
		outcome = metrics.OutcomeError
	case !ok:
		outcome = metrics.OutcomeInvalid
	}
	db.instrumenter.ObserveMutation(operation, docType, outcome)
}
