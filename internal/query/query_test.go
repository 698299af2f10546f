package query

import (
	"testing"

	"assettrack-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() []models.AssetRecord {
	return []models.AssetRecord{
		{ID: "1", Model: "Catalyst 9300", SerialNumber: "FCW001", Site: "LDN01", Country: "UK", Status: models.StatusNormal},
		{ID: "2", Model: "Catalyst 9300", SerialNumber: "FCW002", Site: "LDN01", Country: "UK", Status: models.StatusRMARequested},
		{ID: "3", Model: "PowerEdge R740", SerialNumber: "SVC003", Site: "NYC02", Country: "US", Status: models.StatusNormal},
		{ID: "4", Model: "PowerEdge R740", SerialNumber: "SVC004", Site: "NYC02", Country: "US", Status: models.StatusNormal},
		{ID: "5", Model: "ThinkPad X1", SerialNumber: "5CD005", Site: "FRA03", Country: "Germany", Status: models.StatusRMARequested, Comments: "screen flicker"},
	}
}

func TestFilterAllPassesEverything(t *testing.T) {
	records := fixture()
	assert.Equal(t, records, Filter(records, "", StatusAll))
	assert.Equal(t, records, Filter(records, "", ""))
}

func TestFilterByStatusAndTerm(t *testing.T) {
	records := fixture()

	rma := Filter(records, "", string(models.StatusRMARequested))
	require.Len(t, rma, 2)

	// Term matches across fields, case-insensitively.
	assert.Len(t, Filter(records, "catalyst", StatusAll), 2)
	assert.Len(t, Filter(records, "svc00", StatusAll), 2)
	assert.Len(t, Filter(records, "germany", StatusAll), 1)
	assert.Len(t, Filter(records, "flicker", StatusAll), 1)

	// Term and status combine.
	both := Filter(records, "catalyst", string(models.StatusRMARequested))
	require.Len(t, both, 1)
	assert.Equal(t, "2", both[0].ID)

	assert.Empty(t, Filter(records, "no such thing", StatusAll))
}

func TestPaginate(t *testing.T) {
	records := fixture()

	page1 := Paginate(records, 2, 1)
	require.Len(t, page1, 2)
	assert.Equal(t, "1", page1[0].ID)

	page3 := Paginate(records, 2, 3)
	require.Len(t, page3, 1)
	assert.Equal(t, "5", page3[0].ID)

	assert.Empty(t, Paginate(records, 2, 4))
	assert.Empty(t, Paginate(records, 0, 1))
	assert.Empty(t, Paginate(records, 2, 0))
}

func TestAggregateCounts(t *testing.T) {
	sum := Aggregate(fixture())

	assert.Equal(t, 5, sum.Total)

	total := 0
	for _, b := range sum.ByStatus {
		total += b.Count
	}
	assert.Equal(t, 5, total)

	require.Len(t, sum.ByStatus, 2)
	assert.Equal(t, Bucket{Key: "Normal", Count: 3}, sum.ByStatus[0])
	assert.Equal(t, Bucket{Key: "RMARequested", Count: 2}, sum.ByStatus[1])

	require.Len(t, sum.BySite, 3)
	// LDN01 and NYC02 tie at 2; LDN01 was seen first, so it sorts first.
	assert.Equal(t, "LDN01", sum.BySite[0].Key)
	assert.Equal(t, "NYC02", sum.BySite[1].Key)
	assert.Equal(t, "FRA03", sum.BySite[2].Key)

	require.Len(t, sum.ByModelAndStatus, 3)
	catalyst := sum.ByModelAndStatus[0]
	assert.Equal(t, "Catalyst 9300", catalyst.Model)
	assert.Equal(t, 2, catalyst.Total)
	require.Len(t, catalyst.ByStatus, 2)
}

func TestAggregateSkipsEmptyCountry(t *testing.T) {
	sum := Aggregate([]models.AssetRecord{
		{ID: "1", Model: "X", Site: "A", Status: models.StatusNormal},
		{ID: "2", Model: "X", Site: "A", Country: "UK", Status: models.StatusNormal},
	})
	require.Len(t, sum.ByCountry, 1)
	assert.Equal(t, "UK", sum.ByCountry[0].Key)
}
