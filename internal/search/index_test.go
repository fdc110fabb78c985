package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natija-hub/results-engine/internal/domain/record"
)

func testRecords() []*record.StudentRecord {
	return []*record.StudentRecord{
		{ID: "r1", StudentID: "10001", Name: "أحمد محمد علي", StageID: "secondary", Region: "القاهرة", SchoolName: "مدرسة النصر الثانوية", StoredAverage: 91.5},
		{ID: "r2", StudentID: "10002", Name: "محمد أحمد", StageID: "secondary", Region: "الجيزة", SchoolName: "مدرسة المستقبل", StoredAverage: 85},
		{ID: "r3", StudentID: "10023", Name: "فاطمة السيد", StageID: "preparatory", Region: "القاهرة", SchoolName: "مدرسة النصر الإعدادية", StoredAverage: 77.25},
		{ID: "r4", StudentID: "20001", Name: "محمود حسن", StageID: "secondary", Region: "القاهرة", StoredAverage: 55},
		{ID: "r5", StudentID: "10001", Name: "أحمد سمير", StageID: "preparatory", Region: "الجيزة", SchoolName: "مدرسة المستقبل", StoredAverage: 62},
	}
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex()
	ix.Build(testRecords())
	return ix
}

func TestIndexBuildBumpsVersion(t *testing.T) {
	ix := NewIndex()
	assert.Equal(t, int64(0), ix.Version())

	ix.Build(testRecords())
	assert.Equal(t, int64(1), ix.Version())
	assert.Equal(t, 5, ix.Count())

	ix.Build(testRecords()[:2])
	assert.Equal(t, int64(2), ix.Version())
	assert.Equal(t, 2, ix.Count())
}

func TestLookupNumericRoutesToIDPrefix(t *testing.T) {
	ix := buildTestIndex(t)

	cands := ix.Lookup("1000", record.Filter{}, Fields{})
	ids := candidateStudentIDs(cands)
	assert.ElementsMatch(t, []string{"10001", "10001", "10002"}, ids)
	for _, c := range cands {
		assert.Equal(t, MatchSubstring, c.Kind)
	}
}

func TestLookupExactIDKind(t *testing.T) {
	ix := buildTestIndex(t)

	cands := ix.Lookup("10002", record.Filter{}, Fields{})
	require.Len(t, cands, 1)
	assert.Equal(t, MatchExactID, cands[0].Kind)
	assert.Equal(t, "r2", cands[0].Record.ID)
}

func TestLookupArabicDigits(t *testing.T) {
	ix := buildTestIndex(t)

	cands := ix.Lookup("١٠٠٠٢", record.Filter{}, Fields{})
	require.Len(t, cands, 1)
	assert.Equal(t, "10002", cands[0].Record.StudentID)
}

func TestLookupNameMatching(t *testing.T) {
	ix := buildTestIndex(t)

	// Query with hamza variant matches records indexed without it.
	cands := ix.Lookup("أحمد", record.Filter{}, Fields{})
	names := make([]string, 0, len(cands))
	for _, c := range cands {
		names = append(names, c.Record.Name)
	}
	assert.ElementsMatch(t, []string{"أحمد محمد علي", "محمد أحمد", "أحمد سمير"}, names)
}

func TestLookupMultiTokenIntersection(t *testing.T) {
	ix := buildTestIndex(t)

	cands := ix.Lookup("احمد محمد", record.Filter{}, Fields{})
	ids := candidateRecordIDs(cands)
	assert.ElementsMatch(t, []string{"r1", "r2"}, ids)
}

func TestLookupKindClassification(t *testing.T) {
	ix := buildTestIndex(t)

	kinds := map[string]MatchKind{}
	for _, c := range ix.Lookup("محمد احمد", record.Filter{}, Fields{}) {
		kinds[c.Record.ID] = c.Kind
	}
	assert.Equal(t, MatchExactName, kinds["r2"])
	assert.Equal(t, MatchSubstring, kinds["r1"])
}

func TestLookupPrefixKind(t *testing.T) {
	ix := buildTestIndex(t)

	kinds := map[string]MatchKind{}
	for _, c := range ix.Lookup("احمد مح", record.Filter{}, Fields{}) {
		kinds[c.Record.ID] = c.Kind
	}
	assert.Equal(t, MatchNamePrefix, kinds["r1"])
}

func TestLookupRespectsFilter(t *testing.T) {
	ix := buildTestIndex(t)

	cands := ix.Lookup("احمد", record.Filter{StageID: "preparatory"}, Fields{})
	require.Len(t, cands, 1)
	assert.Equal(t, "r5", cands[0].Record.ID)
}

func TestLookupRespectsFieldSet(t *testing.T) {
	ix := buildTestIndex(t)

	assert.Empty(t, ix.Lookup("10001", record.Filter{}, Fields{Name: true}))
	assert.Empty(t, ix.Lookup("احمد", record.Filter{}, Fields{StudentID: true}))
}

func TestLookupShortQueryYieldsNothing(t *testing.T) {
	ix := buildTestIndex(t)

	assert.Empty(t, ix.Lookup("م", record.Filter{}, Fields{}))
	assert.Empty(t, ix.Lookup(" ", record.Filter{}, Fields{}))
}

func TestBrowseOrdersBySeatingNumber(t *testing.T) {
	ix := buildTestIndex(t)

	all := ix.Browse(record.Filter{StageID: "secondary"})
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.StudentID
	}
	assert.Equal(t, []string{"10001", "10002", "20001"}, ids)
}

func TestByStudentIDReturnsAllScopes(t *testing.T) {
	ix := buildTestIndex(t)

	// 10001 exists in two stage scopes.
	recs := ix.ByStudentID("10001")
	assert.Len(t, recs, 2)

	assert.Empty(t, ix.ByStudentID("99999"))
}

func TestSchoolsMatching(t *testing.T) {
	ix := buildTestIndex(t)

	schools := ix.SchoolsMatching(Normalize("النصر"), record.Filter{}, 10)
	assert.ElementsMatch(t,
		[]string{"مدرسة النصر الثانوية", "مدرسة النصر الإعدادية"}, schools)

	// Prefix matches sort before substring matches.
	schools = ix.SchoolsMatching(Normalize("مدرسه"), record.Filter{}, 2)
	assert.Len(t, schools, 2)
}

func candidateStudentIDs(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Record.StudentID
	}
	return out
}

func candidateRecordIDs(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Record.ID
	}
	return out
}
