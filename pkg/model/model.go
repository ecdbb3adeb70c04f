// Package model holds the trained-model container: hyperparameters plus
// opaque trained-weight blobs written by an external trainer to sibling
// files. Grounded on original_source/src/generativeModel.h.
package model

import (
	"bytes"
	"errors"
	"os"

	"github.com/cran/ganGenerativeData/pkg/datasource"
	"github.com/cran/ganGenerativeData/pkg/wire"
)

// ErrInvalidTypeID is returned when a serialized blob's leading type tag
// does not match this model kind, most likely because it is actually a
// DataSource or GenerativeData snapshot.
var ErrInvalidTypeID = errors.New("model: invalid type id")

// ErrMissingDataSource is returned by Write when the model's embedded
// DataSource snapshot has not been set.
var ErrMissingDataSource = errors.New("model: missing data source snapshot")

const (
	dataFileExtension  = "data-00000-of-00001"
	indexFileExtension = "index"
	typeID             = "ae82c484-a137-4a86-beef-441b75ed9096"
)

// Hyperparameters are the knobs a training run is configured with; the
// engine itself never interprets them, only stores and round-trips them
// for whatever external trainer produced the blobs.
type Hyperparameters struct {
	TrainingIterations     int32
	InitializationIterations int32
	HiddenLayerUnits       int32
	LearningRate           float32
	Dropout                float32
}

// TrainedModel is the opaque weight payload a trainer produces, persisted
// as two sibling files next to the model's metadata file:
// "<name>.data-00000-of-00001" and "<name>.index".
type TrainedModel struct {
	Data  []byte
	Index []byte
}

func dataPath(modelName string) string  { return modelName + "." + dataFileExtension }
func indexPath(modelName string) string { return modelName + "." + indexFileExtension }

// ReadBlobs loads the two sidecar files for modelName; modelName is the
// path prefix of both files.
func (tm *TrainedModel) ReadBlobs(modelName string) error {
	data, err := os.ReadFile(dataPath(modelName))
	if err != nil {
		return err
	}
	index, err := os.ReadFile(indexPath(modelName))
	if err != nil {
		return err
	}
	tm.Data = data
	tm.Index = index
	return nil
}

// WriteBlobs persists the two sidecar files for modelName.
func (tm *TrainedModel) WriteBlobs(modelName string) error {
	if err := os.WriteFile(dataPath(modelName), tm.Data, 0o644); err != nil {
		return err
	}
	return os.WriteFile(indexPath(modelName), tm.Index, 0o644)
}

func (tm *TrainedModel) write(w *bytes.Buffer) error {
	if err := wire.WriteVecByte(w, tm.Data); err != nil {
		return err
	}
	return wire.WriteVecByte(w, tm.Index)
}

func (tm *TrainedModel) read(r *bytes.Reader) error {
	data, err := wire.ReadVecByte(r)
	if err != nil {
		return err
	}
	index, err := wire.ReadVecByte(r)
	if err != nil {
		return err
	}
	tm.Data, tm.Index = data, index
	return nil
}

// GenerativeModel bundles hyperparameters, the DataSource snapshot they were
// trained against, and the trained-weight blobs a trainer produced, per
// spec.md §6's GenerativeModel record layout.
type GenerativeModel struct {
	Hyperparameters
	Source  *datasource.DataSource
	Trained TrainedModel
}

// Write serialises the hyperparameters, the embedded DataSource snapshot
// and the trained blobs, in that order, per spec.md §6.
func (gm *GenerativeModel) Write(w *bytes.Buffer) error {
	if gm.Source == nil {
		return ErrMissingDataSource
	}
	if err := wire.WriteString(w, typeID); err != nil {
		return err
	}
	if err := wire.WriteI32(w, 1); err != nil {
		return err
	}
	if err := wire.WriteI32(w, gm.TrainingIterations); err != nil {
		return err
	}
	if err := wire.WriteI32(w, gm.InitializationIterations); err != nil {
		return err
	}
	if err := wire.WriteI32(w, gm.HiddenLayerUnits); err != nil {
		return err
	}
	if err := wire.WriteF32(w, gm.LearningRate); err != nil {
		return err
	}
	if err := wire.WriteF32(w, gm.Dropout); err != nil {
		return err
	}
	if err := gm.Source.Write(w); err != nil {
		return err
	}
	return gm.Trained.write(w)
}

// Read deserialises hyperparameters, the embedded DataSource snapshot and
// trained blobs from r.
func (gm *GenerativeModel) Read(r *bytes.Reader) error {
	gotID, err := wire.ReadString(r)
	if err != nil {
		return err
	}
	if gotID != typeID {
		return ErrInvalidTypeID
	}
	if _, err := wire.ReadI32(r); err != nil { // version, unused for now
		return err
	}
	if gm.TrainingIterations, err = wire.ReadI32(r); err != nil {
		return err
	}
	if gm.InitializationIterations, err = wire.ReadI32(r); err != nil {
		return err
	}
	if gm.HiddenLayerUnits, err = wire.ReadI32(r); err != nil {
		return err
	}
	if gm.LearningRate, err = wire.ReadF32(r); err != nil {
		return err
	}
	if gm.Dropout, err = wire.ReadF32(r); err != nil {
		return err
	}
	source := &datasource.DataSource{}
	if err := source.Read(r); err != nil {
		return err
	}
	gm.Source = source
	return gm.Trained.read(r)
}
