// Package engine is the process-wide facade: it owns the optional
// DataSource/GenerativeData/GenerativeModel/VP-tree slots a host program
// drives through explicit operations, rather than exposing them as package
// globals. Grounded on the teacher's DB/Config/Open functional-options
// facade (pkg/sqvect/sqvect.go, no longer present after adaptation) and on
// its mutex-guarded single-instance store shape.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/datasource"
	"github.com/cran/ganGenerativeData/pkg/density"
	"github.com/cran/ganGenerativeData/pkg/distance"
	"github.com/cran/ganGenerativeData/pkg/model"
	"github.com/cran/ganGenerativeData/pkg/normalize"
	"github.com/cran/ganGenerativeData/pkg/progress"
	"github.com/cran/ganGenerativeData/pkg/vptree"
)

// Config configures a new Engine. The zero Config is valid: it yields a
// NopLogger and a console-free progress sink.
type Config struct {
	Logger   Logger
	Progress progress.Sink
	// NearestNeighbors is the default k used by density estimation and
	// record completion when an operation does not specify its own.
	NearestNeighbors int
}

// Option customises an Engine beyond Config at construction time.
type Option func(*Engine)

// WithLogger overrides the engine's logger after Open.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine is the mutex-guarded facade over the engine's process-wide
// optional state. A nil slot means "not loaded yet"; callers discover that
// through the Err* sentinels rather than a nil-pointer panic.
type Engine struct {
	mu sync.Mutex

	logger   Logger
	progress progress.Sink
	k        int

	ds    *datasource.DataSource
	gd    *datasource.GenerativeData
	gm    *model.GenerativeModel
	tree  *vptree.Tree
	maskP []float32 // last NanIndexed mask the cached tree was built against
}

// Open constructs an Engine; it never touches disk itself (no on-disk index
// is ever created), it only configures a new in-memory session.
func Open(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		logger:   cfg.Logger,
		progress: cfg.Progress,
		k:        cfg.NearestNeighbors,
	}
	if e.logger == nil {
		e.logger = NopLogger()
	}
	if e.progress == nil {
		e.progress = progress.Nop{}
	}
	if e.k <= 0 {
		e.k = 10
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewDataSource replaces the current data source with an empty one over
// the given columns.
func (e *Engine) NewDataSource(types []column.Type, names []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ds, err := datasource.New(types, names)
	if err != nil {
		return wrapError("ds_new", err)
	}
	e.ds = ds
	e.gd = nil
	e.tree = nil
	e.logger.Info("data source created", "columns", len(types))
	return nil
}

// AddRow appends one raw text row to the data source.
func (e *Engine) AddRow(values []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ds == nil {
		return wrapError("ds_add_row", ErrNoDataSource)
	}
	return wrapError("ds_add_row", e.ds.AddValueRow(values))
}

// Normalize normalises the active NUMERICAL columns of the current data
// source, recomputing min/max when calculateMinMax is true.
func (e *Engine) Normalize(calculateMinMax bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ds == nil {
		return wrapError("ds_normalize", ErrNoDataSource)
	}
	return wrapError("ds_normalize", normalize.Normalize(e.ds, calculateMinMax))
}

// SetColumnsActive toggles which columns participate in feature vectors.
func (e *Engine) SetColumnsActive(indices []int, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ds == nil {
		return wrapError("ds_set_columns_active", ErrNoDataSource)
	}
	return wrapError("ds_set_columns_active", e.ds.SetColumnsActive(indices, active))
}

// Materialize builds the GenerativeData view of the current data source
// (STRING columns one-hot encoded into NUMERICAL_ARRAY) and rebuilds its
// normalised-row cache. Invalidates any previously built index.
func (e *Engine) Materialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ds == nil {
		return wrapError("gd_materialize", ErrNoDataSource)
	}
	gd, err := datasource.NewGenerativeData(e.ds)
	if err != nil {
		return wrapError("gd_materialize", err)
	}
	rows, err := e.ds.AllNormalizedRows()
	if err != nil {
		return wrapError("gd_materialize", err)
	}
	if err := gd.AddNormalizedRows(rows); err != nil {
		return wrapError("gd_materialize", err)
	}
	gd.BuildNormalizedNumberVectorVector()
	e.gd = gd
	e.tree = nil
	e.logger.Info("generative data materialized", "dimension", gd.Dimension(), "rows", gd.NormalizedSize())
	return nil
}

// BuildIndex builds (or rebuilds) the VP-tree over the current generative
// data, under an Lp distance chosen by kind:
//   - "l1": L1
//   - "l2": L2
//   - "l2nan": L2, NaN dimensions skipped per comparison
//   - "l2nan_indexed": L2, NaN dimensions fixed by mask
//
// mask is only consulted for "l2nan_indexed"; a rebuild is skipped when an
// indexed tree already exists for an identical mask pattern.
func (e *Engine) BuildIndex(ctx context.Context, kind string, mask []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return wrapError("index_build", e.buildIndexLocked(ctx, kind, mask))
}

// buildIndexLocked does the actual (re)build; the caller must already hold
// e.mu. Factored out of BuildIndex so operations that need to rebuild an
// L2DistanceNanIndexed tree as a sub-step (KNearestNeighbors, CompleteRecord)
// can do so without recursively locking a non-reentrant mutex.
func (e *Engine) buildIndexLocked(ctx context.Context, kind string, mask []float32) error {
	if e.gd == nil {
		return ErrNoGenerativeData
	}

	if kind == "l2nan_indexed" && e.tree != nil && e.tree.IsBuilt() && distance.SamePattern(e.maskP, mask) {
		e.logger.Debug("index_build skipped, mask pattern unchanged")
		return nil
	}

	dist, err := distanceFunc(kind, mask)
	if err != nil {
		return err
	}

	tree := vptree.New(dist)
	adapter := datasource.Adapter{DS: &e.gd.DataSource}
	if err := tree.Build(ctx, adapter, dist, sinkAdapter{e.progress}); err != nil {
		return err
	}
	e.tree = tree
	e.maskP = nil
	if kind == "l2nan_indexed" {
		e.maskP = append([]float32(nil), mask...)
	}
	e.logger.Info("index built", "kind", kind, "rows", e.gd.NormalizedSize())
	return nil
}

func distanceFunc(kind string, mask []float32) (vptree.Func, error) {
	switch kind {
	case "l1":
		return distance.L1, nil
	case "l2":
		return distance.L2, nil
	case "l2nan":
		return distance.L2Nan, nil
	case "l2nan_indexed":
		ni := distance.NewNanIndexed(mask)
		return ni.Distance, nil
	default:
		return nil, fmt.Errorf("unknown distance kind %q", kind)
	}
}

type sinkAdapter struct{ sink progress.Sink }

func (s sinkAdapter) Report(done, total int) { s.sink.Report(done, total) }

// Search returns the k nearest rows to target under the currently built
// index.
func (e *Engine) Search(target []float32, k int) ([]vptree.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tree == nil || !e.tree.IsBuilt() {
		return nil, wrapError("index_search", ErrNoIndex)
	}
	res, err := e.tree.Search(target, k)
	return res, wrapError("index_search", err)
}

// TestIndex validates the built tree's search against brute-force linear
// search over [begin, end).
func (e *Engine) TestIndex(begin, end, k int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tree == nil || !e.tree.IsBuilt() {
		return wrapError("index_test", ErrNoIndex)
	}
	return wrapError("index_test", e.tree.Test(begin, end, k))
}

// CalculateDensities fills the density column for every row of the
// current generative data, using the currently built index and the
// engine's default k (or override, if k > 0).
func (e *Engine) CalculateDensities(ctx context.Context, k int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gd == nil {
		return wrapError("density_calculate", ErrNoGenerativeData)
	}
	if e.tree == nil || !e.tree.IsBuilt() {
		return wrapError("density_calculate", ErrNoIndex)
	}
	if k <= 0 {
		k = e.k
	}
	return wrapError("density_calculate", density.CalculateDensityValues(ctx, e.gd, e.tree, k, sinkAdapter{e.progress}))
}

// DensityOf estimates the density of a raw (not yet normalised) feature
// row not already present in the index.
func (e *Engine) DensityOf(raw []float32, k int) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gd == nil {
		return 0, wrapError("density_of", ErrNoGenerativeData)
	}
	if e.tree == nil {
		return 0, wrapError("density_of", ErrNoIndex)
	}
	if k <= 0 {
		k = e.k
	}
	d, err := density.CalculateDensityValue(e.gd, e.tree, k, raw)
	return d, wrapError("density_of", err)
}

// Quantile returns the percent-th quantile of the density distribution.
func (e *Engine) Quantile(percent float32) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gd == nil {
		return 0, wrapError("density_quantile", ErrNoGenerativeData)
	}
	return density.Quantile(e.gd, percent), nil
}

// InverseQuantile returns the percentage of rows at or below value.
func (e *Engine) InverseQuantile(value float32) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gd == nil {
		return 0, wrapError("density_inverse_quantile", ErrNoGenerativeData)
	}
	return density.InverseQuantile(e.gd, value), nil
}

// KNearestNeighbors implements gd_k_nearest_neighbors(record, k, use_tree):
// it normalises record into an L2DistanceNanIndexed mask, rebuilds the
// index against that mask if needed (spec.md's mandatory select/rebuild
// step), then searches and denormalises the k nearest rows.
func (e *Engine) KNearestNeighbors(ctx context.Context, record density.Record, k int, useTree bool) ([]density.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gd == nil {
		return nil, wrapError("knn", ErrNoGenerativeData)
	}
	if k <= 0 {
		k = e.k
	}

	mask, err := density.NormalizeRecord(e.gd, record)
	if err != nil {
		return nil, wrapError("knn", err)
	}
	if err := e.buildIndexLocked(ctx, "l2nan_indexed", mask); err != nil {
		return nil, wrapError("knn", err)
	}

	out, err := density.KNearestNeighbors(e.gd, e.tree, k, record, useTree)
	return out, wrapError("knn", err)
}

// CompleteRecord implements gd_complete(record, use_tree): it normalises
// record into an L2DistanceNanIndexed mask, rebuilds the index against that
// mask if needed, then imputes every column missing from (or "NA" in)
// record from its single nearest neighbor.
func (e *Engine) CompleteRecord(ctx context.Context, record density.Record, useTree bool) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gd == nil {
		return nil, wrapError("record_complete", ErrNoGenerativeData)
	}

	mask, err := density.NormalizeRecord(e.gd, record)
	if err != nil {
		return nil, wrapError("record_complete", err)
	}
	if err := e.buildIndexLocked(ctx, "l2nan_indexed", mask); err != nil {
		return nil, wrapError("record_complete", err)
	}

	out, err := density.Complete(e.gd, e.tree, record, useTree)
	return out, wrapError("record_complete", err)
}

// LoadModel installs gm as the current trained model (e.g. after Read).
func (e *Engine) LoadModel(gm *model.GenerativeModel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gm = gm
}

// Model returns the currently loaded model, or ErrNoModel.
func (e *Engine) Model() (*model.GenerativeModel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gm == nil {
		return nil, wrapError("model_get", ErrNoModel)
	}
	return e.gm, nil
}

// DataSource exposes the current data source, or ErrNoDataSource.
func (e *Engine) DataSource() (*datasource.DataSource, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ds == nil {
		return nil, wrapError("ds_get", ErrNoDataSource)
	}
	return e.ds, nil
}

// GenerativeData exposes the current generative data, or ErrNoGenerativeData.
func (e *Engine) GenerativeData() (*datasource.GenerativeData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gd == nil {
		return nil, wrapError("gd_get", ErrNoGenerativeData)
	}
	return e.gd, nil
}

// WriteDataSource serialises the current data source (ds_write).
func (e *Engine) WriteDataSource(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ds == nil {
		return wrapError("ds_write", ErrNoDataSource)
	}
	return wrapError("ds_write", e.ds.Write(w))
}

// ReadDataSource replaces the current data source with one deserialised
// from r (ds_read). Invalidates any materialized generative data and index.
func (e *Engine) ReadDataSource(r io.Reader) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ds := &datasource.DataSource{}
	if err := ds.Read(r); err != nil {
		return wrapError("ds_read", err)
	}
	e.ds = ds
	e.gd = nil
	e.tree = nil
	return nil
}

// WriteGenerativeData serialises the current generative data (gd_write).
func (e *Engine) WriteGenerativeData(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gd == nil {
		return wrapError("gd_write", ErrNoGenerativeData)
	}
	return wrapError("gd_write", e.gd.Write(w))
}

// ReadGenerativeData replaces the current generative data with one
// deserialised from r (gd_read). Invalidates any previously built index.
func (e *Engine) ReadGenerativeData(r io.Reader) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	gd := &datasource.GenerativeData{}
	if err := gd.Read(r); err != nil {
		return wrapError("gd_read", err)
	}
	gd.BuildNormalizedNumberVectorVector()
	e.gd = gd
	e.tree = nil
	return nil
}

// SaveModel writes the current model (gm_write), embedding the current data
// source as its DataSource snapshot when the model does not already carry
// one, to path.
func (e *Engine) SaveModel(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gm == nil {
		return wrapError("model_save", ErrNoModel)
	}
	if e.gm.Source == nil {
		if e.ds == nil {
			return wrapError("model_save", ErrNoDataSource)
		}
		e.gm.Source = e.ds
	}
	var buf bytes.Buffer
	if err := e.gm.Write(&buf); err != nil {
		return wrapError("model_save", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return wrapError("model_save", err)
	}
	return nil
}

// LoadModelFile reads a model snapshot (gm_read) from path, installs its
// embedded DataSource as the current data source, and writes its trained
// blobs back out to modelName's sidecar files for an external trainer to
// consume, per spec.md §6.
func (e *Engine) LoadModelFile(path, modelName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		return wrapError("model_load", err)
	}
	gm := &model.GenerativeModel{}
	if err := gm.Read(bytes.NewReader(data)); err != nil {
		return wrapError("model_load", err)
	}
	if err := gm.Trained.WriteBlobs(modelName); err != nil {
		return wrapError("model_load", err)
	}
	e.gm = gm
	e.ds = gm.Source
	e.gd = nil
	e.tree = nil
	return nil
}

// Clear drops all loaded state back to empty.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ds = nil
	e.gd = nil
	e.gm = nil
	e.tree = nil
	e.maskP = nil
}
