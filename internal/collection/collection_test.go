package collection

import (
	"fmt"
	"sort"
	"strings"
	"testing"
)

type entry struct {
	name   string
	kind   string
	master bool
}

func matchEntry(e entry, term string) bool {
	return strings.Contains(strings.ToLower(e.name), term) ||
		strings.Contains(strings.ToLower(e.kind), term)
}

func manyEntries(n int) []entry {
	rows := make([]entry, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, entry{name: fmt.Sprintf("provider-%02d", i), kind: "openai-compatible"})
	}
	return rows
}

func TestEmptyCollection(t *testing.T) {
	c := New(Config[entry]{Size: 10, Match: matchEntry})

	if got := c.VisiblePage(); got != nil {
		t.Fatalf("VisiblePage on empty collection = %v, want nil", got)
	}
	pager := c.Pager()
	if pager.Visible {
		t.Fatal("pager visible on empty collection")
	}
	if pager.Label != "Page 1 / 1" {
		t.Fatalf("pager label = %q, want %q", pager.Label, "Page 1 / 1")
	}
}

func TestResetStartsClean(t *testing.T) {
	c := New(Config[entry]{Size: 10, Match: matchEntry})
	c.Reset(manyEntries(25))
	c.Search("provider-1")
	c.ChangePage(0)

	c.Reset(manyEntries(25))

	if c.Term() != "" {
		t.Fatalf("term after Reset = %q, want empty", c.Term())
	}
	if c.Page() != 1 {
		t.Fatalf("page after Reset = %d, want 1", c.Page())
	}
	if len(c.Filtered()) != 25 {
		t.Fatalf("filtered after Reset = %d rows, want 25", len(c.Filtered()))
	}
}

func TestSearchFiltersSubsetAndRestores(t *testing.T) {
	rows := []entry{
		{name: "openai-main", kind: "openai-compatible"},
		{name: "gpt-mirror", kind: "openai-compatible"},
		{name: "gemini-flash", kind: "gemini-compatible"},
		{name: "MY-GPT-BACKUP", kind: "openai-compatible"},
	}
	c := New(Config[entry]{Size: 10, Match: matchEntry})
	c.Reset(rows)

	c.Search("  GPT ")

	filtered := c.Filtered()
	if len(filtered) != 2 {
		t.Fatalf("filtered = %d rows, want 2", len(filtered))
	}
	for _, row := range filtered {
		if !strings.Contains(strings.ToLower(row.name), "gpt") {
			t.Fatalf("filtered row %q does not match the term", row.name)
		}
		found := false
		for _, orig := range rows {
			if orig == row {
				found = true
			}
		}
		if !found {
			t.Fatalf("filtered row %q is not part of the dataset", row.name)
		}
	}

	c.Search("")
	if len(c.Filtered()) != len(rows) {
		t.Fatalf("blank search keeps %d rows, want %d", len(c.Filtered()), len(rows))
	}
}

func TestSearchResetsToFirstPage(t *testing.T) {
	c := New(Config[entry]{Size: 10, Match: matchEntry})
	c.Reset(manyEntries(25))
	c.ChangePage(2)
	if c.Page() != 3 {
		t.Fatalf("page before search = %d, want 3", c.Page())
	}

	c.Search("provider")

	if c.Page() != 1 {
		t.Fatalf("page after search = %d, want 1", c.Page())
	}
}

func TestPagesConcatenateToFiltered(t *testing.T) {
	c := New(Config[entry]{Size: 10, Match: matchEntry})
	c.Reset(manyEntries(25))

	var walked []entry
	walked = append(walked, c.VisiblePage()...)
	for c.Pager().NextEnabled {
		c.ChangePage(1)
		walked = append(walked, c.VisiblePage()...)
	}

	filtered := c.Filtered()
	if len(walked) != len(filtered) {
		t.Fatalf("walked %d rows, filtered holds %d", len(walked), len(filtered))
	}
	for i := range walked {
		if walked[i] != filtered[i] {
			t.Fatalf("row %d: walked %q, filtered %q", i, walked[i].name, filtered[i].name)
		}
	}
}

func TestPagerAcrossTwentyFiveRows(t *testing.T) {
	c := New(Config[entry]{Size: 10, Match: matchEntry})
	c.Reset(manyEntries(25))

	pager := c.Pager()
	if !pager.Visible {
		t.Fatal("pager hidden with three pages of rows")
	}
	if pager.Label != "Page 1 / 3" {
		t.Fatalf("label = %q, want %q", pager.Label, "Page 1 / 3")
	}
	if pager.PrevEnabled {
		t.Fatal("prev enabled on first page")
	}
	if !pager.NextEnabled {
		t.Fatal("next disabled on first page of three")
	}

	c.ChangePage(1)
	c.ChangePage(1)
	pager = c.Pager()
	if pager.Page != 3 || pager.NextEnabled {
		t.Fatalf("after two steps: page %d nextEnabled %v, want page 3 disabled", pager.Page, pager.NextEnabled)
	}
	if len(c.VisiblePage()) != 5 {
		t.Fatalf("last page holds %d rows, want 5", len(c.VisiblePage()))
	}
}

func TestChangePageIgnoresOutOfRange(t *testing.T) {
	c := New(Config[entry]{Size: 10, Match: matchEntry})
	c.Reset(manyEntries(25))

	c.ChangePage(-1)
	if c.Page() != 1 {
		t.Fatalf("page after backward step from first = %d, want 1", c.Page())
	}
	c.ChangePage(7)
	if c.Page() != 1 {
		t.Fatalf("page after oversized step = %d, want 1", c.Page())
	}
	c.ChangePage(2)
	c.ChangePage(1)
	if c.Page() != 3 {
		t.Fatalf("page after forward steps = %d, want 3", c.Page())
	}
	c.ChangePage(1)
	if c.Page() != 3 {
		t.Fatalf("page after step past the end = %d, want 3", c.Page())
	}
}

func TestReplaceKeepsTermAndClampsPage(t *testing.T) {
	c := New(Config[entry]{Size: 10, Match: matchEntry})
	c.Reset(manyEntries(25))
	c.Search("provider")
	c.ChangePage(2)
	if c.Page() != 3 {
		t.Fatalf("page before Replace = %d, want 3", c.Page())
	}

	c.Replace(manyEntries(12))

	if c.Term() != "provider" {
		t.Fatalf("term after Replace = %q, want %q", c.Term(), "provider")
	}
	if c.Page() != 2 {
		t.Fatalf("page after Replace = %d, want clamped 2", c.Page())
	}

	c.Replace([]entry{{name: "solo", kind: "gemini-compatible"}})
	if len(c.Filtered()) != 0 {
		t.Fatalf("filtered after non-matching Replace = %d rows, want 0", len(c.Filtered()))
	}
	if c.Page() != 1 {
		t.Fatalf("page after non-matching Replace = %d, want 1", c.Page())
	}
	if c.Pager().Visible {
		t.Fatal("pager visible with no filtered rows")
	}
}

func TestPrepareRunsOnACopy(t *testing.T) {
	input := []entry{
		{name: "beta"},
		{name: "main", master: true},
		{name: "alpha"},
	}
	c := New(Config[entry]{
		Size:  10,
		Match: matchEntry,
		Prepare: func(rows []entry) []entry {
			sort.SliceStable(rows, func(i, j int) bool {
				return rows[i].master && !rows[j].master
			})
			return rows
		},
	})
	c.Reset(input)

	if input[0].name != "beta" {
		t.Fatalf("caller slice reordered, first row = %q", input[0].name)
	}
	data := c.Data()
	if !data[0].master {
		t.Fatalf("first stored row = %q, want the master row", data[0].name)
	}
	if data[1].name != "beta" || data[2].name != "alpha" {
		t.Fatalf("non-master order changed: %q, %q", data[1].name, data[2].name)
	}
}

func TestDefaultPageSize(t *testing.T) {
	c := New(Config[entry]{Match: matchEntry})
	c.Reset(manyEntries(15))

	if got := c.Pager().TotalPages; got != 2 {
		t.Fatalf("total pages = %d, want 2 with the default size", got)
	}
	if got := len(c.VisiblePage()); got != DefaultPageSize {
		t.Fatalf("visible rows = %d, want %d", got, DefaultPageSize)
	}
}
