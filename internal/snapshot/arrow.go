// Package snapshot reads and writes feature-matrix snapshots as Arrow IPC
// files: one string ID column plus one float64 column per feature, in the
// documented column order. This is the handoff format between the upstream
// data pipeline and the scoring core.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
)

const idColumn = "id"

func schema() *arrow.Schema {
	fields := make([]arrow.Field, 0, models.FeatureCount+1)
	fields = append(fields, arrow.Field{Name: idColumn, Type: arrow.BinaryTypes.String})
	for _, name := range models.FeatureNames {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64})
	}
	return arrow.NewSchema(fields, nil)
}

// Write stores IDs and feature rows as a single-record Arrow IPC file.
func Write(path string, ids []string, features [][]float64) error {
	if len(ids) != len(features) {
		return fmt.Errorf("%w: %d ids for %d rows", graph.ErrShape, len(ids), len(features))
	}

	sc := schema()
	builder := array.NewRecordBuilder(memory.DefaultAllocator, sc)
	defer builder.Release()

	idb := builder.Field(0).(*array.StringBuilder)
	for i, row := range features {
		if len(row) != models.FeatureCount {
			return fmt.Errorf("%w: row %d has width %d, want %d",
				graph.ErrShape, i, len(row), models.FeatureCount)
		}
		idb.Append(ids[i])
		for j, v := range row {
			builder.Field(j + 1).(*array.Float64Builder).Append(v)
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(sc))
	if err != nil {
		return fmt.Errorf("open ipc writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("write record: %w", err)
	}
	return w.Close()
}

// Read loads IDs and feature rows from an Arrow IPC file written by Write.
// The column set and order must match the documented feature contract.
func Read(path string) (ids []string, features [][]float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, nil, fmt.Errorf("open ipc reader: %w", err)
	}
	defer r.Close()

	want := schema()
	if !r.Schema().Equal(want) {
		return nil, nil, fmt.Errorf("%w: snapshot schema %v does not match feature contract",
			graph.ErrShape, r.Schema())
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read record: %w", err)
		}

		idCol := rec.Column(0).(*array.String)
		featCols := make([]*array.Float64, models.FeatureCount)
		for j := 0; j < models.FeatureCount; j++ {
			featCols[j] = rec.Column(j + 1).(*array.Float64)
		}

		for i := 0; i < int(rec.NumRows()); i++ {
			row := make([]float64, models.FeatureCount)
			for j := range row {
				row[j] = featCols[j].Value(i)
			}
			ids = append(ids, idCol.Value(i))
			features = append(features, row)
		}
	}

	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("%w: empty snapshot", graph.ErrShape)
	}
	return ids, features, nil
}
