package debugui

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/google/uuid"
	"github.com/plus3/scripthost/script"
)

// InstanceBrowser lists every live instance in a sortable, filterable table
// and remembers the selected one.
type InstanceBrowser struct {
	selected          uuid.UUID
	filterText        string
	sortColumn        int
	sortAscending     bool
	maxEntriesPerPage int
	currentPage       int
}

func NewInstanceBrowser(maxEntriesPerPage int) *InstanceBrowser {
	return &InstanceBrowser{sortAscending: true, maxEntriesPerPage: maxEntriesPerPage}
}

// Selected returns the selected instance if it still exists.
func (ib *InstanceBrowser) Selected(c *script.Controller) (*script.Instance, bool) {
	if ib.selected == uuid.Nil {
		return nil, false
	}
	return c.Lookup(ib.selected)
}

func (ib *InstanceBrowser) Render(c *script.Controller) {
	if !imgui.BeginV("Instance Browser", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	imgui.InputTextWithHint("##search", "Search...", &ib.filterText, imgui.InputTextFlagsNone, nil)
	imgui.SameLine()
	if imgui.Button("Clear Filter") {
		ib.filterText = ""
	}

	rows := filterRows(c.Stats().Instances, ib.filterText)

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("InstanceTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Instance")
		imgui.TableSetupColumn("State")
		imgui.TableSetupColumn("Coroutines")
		imgui.TableSetupColumn("Avg Update")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			ib.sortColumn = int(spec.ColumnIndex())
			ib.sortAscending = spec.SortDirection() == imgui.SortDirectionAscending
			sortSpecs.SetSpecsDirty(false)
		}
		sortRows(rows, ib.sortColumn, ib.sortAscending)

		startIdx := min(ib.currentPage*ib.maxEntriesPerPage, len(rows))
		endIdx := min(startIdx+ib.maxEntriesPerPage, len(rows))
		for _, row := range rows[startIdx:endIdx] {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			label := fmt.Sprintf("%s@%s##%s", row.Name, row.Object, row.ID)
			if imgui.SelectableBoolV(label, ib.selected == row.ID, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				ib.selected = row.ID
			}

			imgui.TableNextColumn()
			imgui.Text(row.State.String())

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.Coroutines))

			imgui.TableNextColumn()
			imgui.Text(row.AvgUpdate.String())
		}

		imgui.EndTable()
	}

	if len(rows) > ib.maxEntriesPerPage {
		totalPages := (len(rows) + ib.maxEntriesPerPage - 1) / ib.maxEntriesPerPage
		imgui.Text(fmt.Sprintf("Page %d / %d (%d instances)", ib.currentPage+1, totalPages, len(rows)))
		imgui.SameLine()
		if imgui.Button("Prev") && ib.currentPage > 0 {
			ib.currentPage--
		}
		imgui.SameLine()
		if imgui.Button("Next") && ib.currentPage < totalPages-1 {
			ib.currentPage++
		}
	} else {
		imgui.Text(fmt.Sprintf("Total: %d instances", len(rows)))
	}

	imgui.End()
}

// filterRows keeps the instances whose name, object or state contains text,
// ignoring case.
func filterRows(rows []script.InstanceStats, text string) []script.InstanceStats {
	if text == "" {
		return rows
	}
	text = strings.ToLower(text)
	filtered := make([]script.InstanceStats, 0, len(rows))
	for _, row := range rows {
		haystack := strings.ToLower(row.Name + " " + row.Object.String() + " " + row.State.String())
		if strings.Contains(haystack, text) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// sortRows orders rows by the browser column index.
func sortRows(rows []script.InstanceStats, column int, ascending bool) {
	slices.SortStableFunc(rows, func(a, b script.InstanceStats) int {
		var c int
		switch column {
		case 1:
			c = cmp.Compare(a.State, b.State)
		case 2:
			c = cmp.Compare(a.Coroutines, b.Coroutines)
		case 3:
			c = cmp.Compare(a.AvgUpdate, b.AvgUpdate)
		default:
			c = cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.Object, b.Object))
		}
		if !ascending {
			return -c
		}
		return c
	})
}

// slowest returns up to n instances with the highest average update time.
func slowest(instances []script.InstanceStats, n int) []script.InstanceStats {
	out := slices.Clone(instances)
	sortRows(out, 3, false)
	return out[:min(n, len(out))]
}
