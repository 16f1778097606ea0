package trustnet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/fundscrape/models"
)

// sectorHTML renders a sectors page with one row per name.
func sectorHTML(names ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body>
<div class="table-responsive"><table><tr><td>Unrelated</td></tr></table></div>
<div class="table-responsive"><table>
<thead><tr><th>Name</th><th>1 m</th><th>3 m</th><th>6 m</th><th>1 y</th><th>3 y</th><th>5 y</th></tr></thead>
<tbody>`)
	for i, n := range names {
		fmt.Fprintf(&b, "<tr><td> %s </td><td>%d.5%%</td><td>-1.25%%</td><td>3%%</td><td>-</td><td>10.0%%</td><td>20.1%%</td></tr>\n", n, i)
	}
	b.WriteString(`<tr><td>short row</td><td>1%</td></tr>
</tbody></table></div></body></html>`)
	return b.String()
}

func TestExtractSectorRows(t *testing.T) {
	rows, err := ExtractSectorRows(sectorHTML("Global", "UK All Companies"), DefaultSelectors())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.SectorResult{
		Name: "Global",
		M1:   models.Some(0.5),
		M3:   models.Some(-1.25),
		M6:   models.Some(3.0),
		Y1:   models.None[float64](),
		Y3:   models.Some(10.0),
		Y5:   models.Some(20.1),
	}, rows[0])
	assert.Equal(t, "UK All Companies", rows[1].Name)
	assert.Equal(t, models.Some(1.5), rows[1].M1)
}

func TestExtractSectorRowsNoTable(t *testing.T) {
	rows, err := ExtractSectorRows(`<div class="table-responsive">nothing</div>`, DefaultSelectors())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExtractSectorRowsBadSelector(t *testing.T) {
	sel := DefaultSelectors()
	sel.SectorsTable = "[[["
	_, err := ExtractSectorRows("<p></p>", sel)
	assert.True(t, models.HasCode(err, models.ErrCodeInvalidInput))
}

func newSectorsOpener(page *fakePage) *fakeOpener {
	o := newFakeOpener()
	o.pages[DefaultSelectors().SectorsURL] = func() *fakePage { return page }
	return o
}

func TestScrapeSectorsPaginates(t *testing.T) {
	page := &fakePage{
		htmls:   []string{sectorHTML("A", "B"), sectorHTML("C"), sectorHTML("D")},
		buttons: []string{"1", "2", "3"},
	}
	rows, err := ScrapeSectors(context.Background(), newSectorsOpener(page), DefaultSelectors(), "18/10/26 09:00")
	require.NoError(t, err)

	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
		assert.Equal(t, "18/10/26 09:00", r.Timestamp)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, names)
	assert.Equal(t, []string{"2", "3"}, page.clicks)
	assert.True(t, page.closed)
}

func TestScrapeSectorsStopsOnEmptyPage(t *testing.T) {
	page := &fakePage{
		htmls:   []string{sectorHTML("A"), "<html></html>", sectorHTML("C")},
		buttons: []string{"2", "3"},
	}
	rows, err := ScrapeSectors(context.Background(), newSectorsOpener(page), DefaultSelectors(), "ts")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{"2"}, page.clicks)
}

func TestScrapeSectorsPageCeiling(t *testing.T) {
	var htmls, buttons []string
	for i := 1; i <= MaxSectorPages+5; i++ {
		htmls = append(htmls, sectorHTML(fmt.Sprintf("S%d", i)))
		buttons = append(buttons, fmt.Sprint(i))
	}
	page := &fakePage{htmls: htmls, buttons: buttons}
	rows, err := ScrapeSectors(context.Background(), newSectorsOpener(page), DefaultSelectors(), "ts")
	require.NoError(t, err)
	assert.Len(t, rows, MaxSectorPages)
	assert.Len(t, page.clicks, MaxSectorPages-1)
}

func TestScrapeSectorsClickFailureKeepsRows(t *testing.T) {
	page := &fakePage{
		htmls:    []string{sectorHTML("A", "B")},
		buttons:  []string{"2"},
		clickErr: errors.New("element detached"),
	}
	rows, err := ScrapeSectors(context.Background(), newSectorsOpener(page), DefaultSelectors(), "ts")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestScrapeSectorsLoadFailure(t *testing.T) {
	o := newFakeOpener()
	o.fail[DefaultSelectors().SectorsURL] = models.NewScrapeError(models.ErrCodeNavigation, "down", nil)
	_, err := ScrapeSectors(context.Background(), o, DefaultSelectors(), "ts")
	assert.True(t, models.HasCode(err, models.ErrCodeNavigation))
}
