package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "population.arrow")

	ids := []string{"2000433", "2001036", "2001566"}
	features := make([][]float64, len(ids))
	for i := range features {
		row := make([]float64, models.FeatureCount)
		for j := range row {
			row[j] = float64(i*models.FeatureCount+j) * 0.25
		}
		features[i] = row
	}

	if err := Write(path, ids, features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotIDs, gotFeatures, err := Read(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gotIDs) != len(ids) {
		t.Fatalf("read %d ids, want %d", len(gotIDs), len(ids))
	}
	for i := range ids {
		if gotIDs[i] != ids[i] {
			t.Errorf("id[%d] = %q, want %q", i, gotIDs[i], ids[i])
		}
		for j := range features[i] {
			if gotFeatures[i][j] != features[i][j] {
				t.Errorf("feature[%d][%d] = %f, want %f", i, j, gotFeatures[i][j], features[i][j])
			}
		}
	}
}

func TestWrite_Rejections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.arrow")

	err := Write(path, []string{"a", "b"}, [][]float64{make([]float64, models.FeatureCount)})
	if !errors.Is(err, graph.ErrShape) {
		t.Errorf("expected ErrShape for id/row mismatch, got %v", err)
	}

	err = Write(path, []string{"a"}, [][]float64{{1, 2, 3}})
	if !errors.Is(err, graph.ErrShape) {
		t.Errorf("expected ErrShape for narrow row, got %v", err)
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, _, err := Read(filepath.Join(t.TempDir(), "nope.arrow")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRead_WrongFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.arrow")
	if err := os.WriteFile(path, []byte("not an arrow file"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := Read(path); err == nil {
		t.Error("expected error for non-arrow file")
	}
}
