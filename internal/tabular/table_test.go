package tabular

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/common/errors"
)

func TestRead(t *testing.T) {
	input := "\xEF\xBB\xBFStudentID, CGPA,PlacementTraining\nS1,8.5,Yes\nS2, 6.1,No\n"

	tbl, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"StudentID", "CGPA", "PlacementTraining"}, tbl.Header)
	assert.Equal(t, 2, tbl.Len())

	recs := tbl.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "S1", recs[0]["StudentID"])
	assert.Equal(t, "8.5", recs[0]["CGPA"])
	assert.Equal(t, "6.1", recs[1]["CGPA"])
	assert.Equal(t, "No", recs[1]["PlacementTraining"])
}

func TestRead_HeaderOnly(t *testing.T) {
	tbl, err := Read(strings.NewReader("CGPA,PlacementTraining\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.Empty(t, tbl.Records())
}

func TestRead_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "  \n\n"},
		{"ragged row", "a,b\n1,2\n3\n"},
		{"duplicate header", "a,a\n1,2\n"},
		{"blank header", "a,,c\n1,2,3\n"},
		{"bare quote", "a,b\n\"1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeParse), "got %v", err)
		})
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeIO))
}

func TestWithTempFile_RemovesOnEveryPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	var seen string
	err := WithTempFile(dir, strings.NewReader("a,b\n1,2\n"), func(path string) error {
		seen = path
		tbl, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, tbl.Len())
		return nil
	})
	require.NoError(t, err)
	_, statErr := os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr))

	boom := stderrors.New("pipeline failed")
	err = WithTempFile(dir, strings.NewReader("x"), func(path string) error {
		seen = path
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, statErr = os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr))

	assert.Panics(t, func() {
		_ = WithTempFile(dir, strings.NewReader("x"), func(path string) error {
			seen = path
			panic("handler bug")
		})
	})
	_, statErr = os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
