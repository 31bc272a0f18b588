package report

import (
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/domain/sop"
)

func TestFloatsJSONEncodesNonFiniteAsNull(t *testing.T) {
	b, err := json.Marshal(Floats{1.5, math.NaN(), math.Inf(1), -2})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5,null,null,-2]`, string(b))

	var back Floats
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back, 4)
	assert.True(t, math.IsNaN(back[1]))
	assert.Equal(t, -2.0, back[3])
}

func TestTableJSONAndCells(t *testing.T) {
	tbl := Table{Name: "t", Columns: []string{"name", "value", "ok"}}
	tbl.Append("a", math.Inf(-1), true)
	tbl.Append("b", 0.25, false)

	b, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"t","title":"","columns":["name","value","ok"],"rows":[["a","-Inf",true],["b",0.25,false]]}`, string(b))

	assert.Equal(t, "NaN", Cell(math.NaN()))
	assert.Equal(t, "3", Cell(3))
	assert.Equal(t, "True", Cell(true))
	assert.Equal(t, "", Cell(nil))
	assert.Panics(t, func() { tbl.Append("too few") })
}

func TestItemsReplaceByName(t *testing.T) {
	it := NewItems(KindSampleSummary, "study", sop.PlatformMS, "GenericMS")
	assert.Equal(t, "Sample Summary", it.Title)

	it.AddTable(Table{Name: TableSampleSummary, Title: "first"})
	it.AddTable(Table{Name: TableSampleSummary, Title: "second"})
	require.Len(t, it.Tables, 1)
	got, ok := it.Table(TableSampleSummary)
	require.True(t, ok)
	assert.Equal(t, "second", got.Title)

	it.Set("b", 2)
	it.Set("a", 1)
	assert.Equal(t, []string{"a", "b"}, it.Keys())
}

func TestValidateRequiresSchemaContents(t *testing.T) {
	it := NewItems(KindMultivariate, "study", sop.PlatformMS, "GenericMS")
	err := Validate(it)
	require.Error(t, err)
	assert.Contains(t, err.Error(), TableExplainedVariance)

	for _, name := range Schemas[KindMultivariate].Tables {
		it.AddTable(Table{Name: name})
	}
	for _, name := range Schemas[KindMultivariate].Figures {
		it.AddFigure(Figure{Name: name})
	}
	assert.NoError(t, Validate(it))

	_, err = ParseKind("nope")
	assert.Error(t, err)
	k, err := ParseKind("final")
	require.NoError(t, err)
	assert.Equal(t, KindFinal, k)
}

func TestMergePrefixesNames(t *testing.T) {
	final := NewItems(KindFinal, "study", sop.PlatformMS, "GenericMS")
	part := NewItems(KindSampleSummary, "study", sop.PlatformMS, "GenericMS")
	part.AddTable(Table{Name: TableSampleSummary})
	part.AddFigure(Figure{Name: FigureTIC})
	part.Set("samples", 10)
	part.Warn("%d excluded", 2)

	final.Merge(part)
	_, ok := final.Table("sample_summary/" + TableSampleSummary)
	assert.True(t, ok)
	_, ok = final.Figure("sample_summary/" + FigureTIC)
	assert.True(t, ok)
	assert.Equal(t, 10, final.Values["sample_summary/samples"])
	assert.Equal(t, []string{"2 excluded"}, final.Warnings)
}

func TestRewritePaths(t *testing.T) {
	dir := t.TempDir()
	it := NewItems(KindFeatureSummary, "study", sop.PlatformMS, "GenericMS")
	it.AddFigure(Figure{Name: "abs", Path: filepath.Join(dir, "graphics", "report_featureSummary", "tic.json")})
	it.AddFigure(Figure{Name: "rel", Path: "graphics/other.json"})
	it.AddFigure(Figure{Name: "none"})

	require.NoError(t, it.RewritePaths(dir))
	var paths []string
	for _, f := range it.Figures {
		paths = append(paths, f.Path)
	}
	if diff := cmp.Diff([]string{"graphics/report_featureSummary/tic.json", "graphics/other.json", ""}, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}
