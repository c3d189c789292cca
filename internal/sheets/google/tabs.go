package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"budget/internal/core"
	applog "budget/internal/log"
	ports "budget/internal/sheets"

	"google.golang.org/api/googleapi"
)

// ListTabs returns every worksheet of the spreadsheet in sheet order.
func (c *Client) ListTabs(ctx context.Context) ([]core.Tab, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list tabs of %s: %w", c.spreadsheetID, err)
	}

	tabs := make([]core.Tab, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s == nil || s.Properties == nil {
			continue
		}
		tabs = append(tabs, core.Tab{
			SourceID: strconv.FormatInt(s.Properties.SheetId, 10),
			Title:    s.Properties.Title,
		})
	}
	c.logger.InfoContext(ctx, "Listed spreadsheet tabs",
		applog.FieldSpreadsheet, c.spreadsheetID,
		"tabs", len(tabs))
	return tabs, nil
}

// FetchPeriod reads the expense, resident and grocery cells of one tab with
// a single batch request.
func (c *Client) FetchPeriod(ctx context.Context, tab core.Tab) (core.RawPeriod, error) {
	if c.svc == nil {
		return core.RawPeriod{}, errors.New("sheets service not initialized")
	}
	raw := core.RawPeriod{SourceID: tab.SourceID, Label: tab.Title}

	ranges := []string{
		a1(tab.Title, c.layout.ExpensesA1),
		a1(tab.Title, c.layout.ResidentsA1),
	}
	if period, ok := core.ParsePeriodAt(tab.Title, c.now()); ok {
		if cells, ok := c.layout.GroceryA1(period); ok {
			ranges = append(ranges, a1(tab.Title, cells))
		}
	}

	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		if isMissingTab(err) {
			return core.RawPeriod{}, fmt.Errorf("%w: %s", ports.ErrTabNotFound, tab.Title)
		}
		return core.RawPeriod{}, fmt.Errorf("read %s: %w", tab.Title, err)
	}
	if len(resp.ValueRanges) != len(ranges) {
		return core.RawPeriod{}, fmt.Errorf("read %s: got %d ranges, want %d", tab.Title, len(resp.ValueRanges), len(ranges))
	}

	for _, row := range resp.ValueRanges[0].Values {
		cells := toStrings(row)
		if len(cells) == 0 {
			continue
		}
		raw.ExpensePairs = append(raw.ExpensePairs, core.LabelValue{
			Label: cells[0],
			Value: safeGet(cells, 1),
		})
	}
	raw.ResidentLabels = flatten(resp.ValueRanges[1].Values)
	if len(ranges) > 2 {
		raw.GroceryCells = flatten(resp.ValueRanges[2].Values)
	}

	c.logger.DebugContext(ctx, "Fetched period tab",
		applog.FieldSourceID, tab.SourceID,
		applog.FieldLabel, tab.Title,
		"expense_rows", len(raw.ExpensePairs))
	return raw, nil
}

// a1 qualifies a cell range with a quoted sheet title.
func a1(title, cells string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cells
}

func isMissingTab(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func flatten(rows [][]interface{}) []string {
	var out []string
	for _, row := range rows {
		out = append(out, toStrings(row)...)
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
