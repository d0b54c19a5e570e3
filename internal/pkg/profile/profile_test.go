package profile

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestValidateLength(t *testing.T) {
	err := Validate("heat_demand", make([]float64, HoursPerYear-1), HoursPerYear)
	assert.ErrorContains(t, err, "length 8759, want 8760")

	var verr *ValidationError
	assert.Assert(t, errors.As(err, &verr))
	assert.Equal(t, verr.Field, "heat_demand")

	assert.NilError(t, Validate("heat_demand", make([]float64, HoursPerYear), HoursPerYear))
}

func TestValidateNonFinite(t *testing.T) {
	s := []float64{1, math.NaN(), 3}
	assert.ErrorContains(t, Validate("solar", s, 3), "non-finite value at hour 1")
}

func TestValidateNonNegative(t *testing.T) {
	s := []float64{1, 2, -0.5, 4}
	assert.ErrorContains(t, ValidateNonNegative("elec_demand", s, 4), "negative value at hour 2")
	assert.NilError(t, ValidateNonNegative("elec_demand", []float64{0, 1, 2, 3}, 4))
}

func TestPeakAndTotal(t *testing.T) {
	s := []float64{1, 5, 2}
	assert.Equal(t, Peak(s), 5.0)
	assert.Equal(t, Peak(nil), 0.0)
	assert.Equal(t, Total(s), 8.0)
}

func TestRotate(t *testing.T) {
	s := []float64{0, 1, 2, 3, 4}
	assert.DeepEqual(t, Rotate(s, 2), []float64{2, 3, 4, 0, 1})
	assert.DeepEqual(t, Rotate(s, -1), []float64{4, 0, 1, 2, 3})
	assert.DeepEqual(t, Rotate(s, 5), s)
	assert.DeepEqual(t, s, []float64{0, 1, 2, 3, 4})
}

func TestReadCSVColumn(t *testing.T) {
	in := "# solar yield\nhour,swgdn\n0,100\n1,250\n2,0\n"
	s, err := ReadCSV(strings.NewReader(in), Options{Column: "swgdn", Scale: 0.001, Comment: '#', Quiet: true})
	assert.NilError(t, err)
	assert.DeepEqual(t, s, []float64{0.1, 0.25, 0})
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2\n"), Options{Column: "c", Quiet: true})
	assert.ErrorContains(t, err, `column "c" not found`)
}

func TestReadCSVBadValue(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a\n1\nx\n"), Options{Quiet: true})
	assert.ErrorContains(t, err, "row 2")
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wind.csv")
	assert.NilError(t, os.WriteFile(path, []byte("speed\n3\n12.5\n25\n"), 0o644))

	s, err := LoadCSV(path, Options{Shift: 1, Quiet: true})
	assert.NilError(t, err)
	assert.DeepEqual(t, s, []float64{12.5, 25, 3})

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), Options{Quiet: true})
	assert.Assert(t, os.IsNotExist(err))
}
