// Package report merges guest results with storage metadata and renders
// them as markdown tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/weiihann/guestbench/harness"
	"github.com/weiihann/guestbench/metadata"
)

// Entry is one bench result with the storage descriptors sharing its name.
type Entry struct {
	Name    string                 `json:"name"`
	Value   uint64                 `json:"value"`
	Storage []metadata.StorageInfo `json:"storage,omitempty"`
}

// Report is the rendered view of one guest run.
type Report struct {
	Guest     string                 `json:"guest"`
	Target    harness.Target         `json:"target"`
	Unit      string                 `json:"unit"`
	Entries   []Entry                `json:"entries"`
	Unmatched []metadata.StorageInfo `json:"unmatched_storage,omitempty"`
}

// Merge pairs each result with the descriptors whose name matches. Result
// order is kept. Descriptors matching no result are kept in Unmatched in
// input order.
func Merge(out *harness.Output, infos []metadata.StorageInfo) *Report {
	byName := make(map[string][]metadata.StorageInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = append(byName[info.Name], info)
	}

	rep := &Report{
		Guest:   out.Guest,
		Target:  out.Target,
		Unit:    out.Unit,
		Entries: make([]Entry, 0, len(out.Results)),
	}

	matched := make(map[string]bool, len(out.Results))

	for _, r := range out.Results {
		rep.Entries = append(rep.Entries, Entry{
			Name:    r.Name,
			Value:   r.Value,
			Storage: byName[r.Name],
		})
		matched[r.Name] = true
	}

	for _, info := range infos {
		if !matched[info.Name] {
			rep.Unmatched = append(rep.Unmatched, info)
		}
	}

	return rep
}

// Generate writes markdown tables for rep. A report with no entries still
// renders its header and an empty results table.
func Generate(w io.Writer, rep *Report) error {
	if rep == nil {
		return fmt.Errorf("no report to render")
	}

	cheapest := findCheapest(rep.Entries)

	// Header.
	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Guest: **%s** (%s), unit: %s\n", rep.Guest, rep.Target, rep.Unit)
	fmt.Fprintln(w)

	// Results table.
	fmt.Fprintln(w, "| Bench | Value | Relative | Storage |")
	fmt.Fprintln(w, "|-------|-------|----------|---------|")

	for _, e := range rep.Entries {
		relative := 1.0
		if cheapest > 0 && e.Value > 0 {
			relative = float64(e.Value) / float64(cheapest)
		}

		fmt.Fprintf(w, "| %s | %s | %.2fx | %s |\n",
			e.Name,
			formatValue(e.Value, rep.Unit),
			relative,
			storageLabels(e.Storage),
		)
	}

	// Storage details.
	var rows []metadata.StorageInfo
	for _, e := range rep.Entries {
		rows = append(rows, e.Storage...)
	}

	rows = append(rows, rep.Unmatched...)
	if len(rows) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Storage | Bench | Prefix | Max Values | Max Size |")
	fmt.Fprintln(w, "|---------|-------|--------|------------|----------|")

	for _, s := range rows {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			s.Label(),
			s.Name,
			orDash(s.Prefix),
			formatBound(s.MaxValues),
			formatSize(s.MaxSize),
		)
	}

	return nil
}

// GenerateJSON writes rep as JSON to w.
func GenerateJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(rep)
}

func findCheapest(entries []Entry) uint64 {
	cheapest := uint64(math.MaxUint64)
	for _, e := range entries {
		if e.Value > 0 && e.Value < cheapest {
			cheapest = e.Value
		}
	}

	if cheapest == math.MaxUint64 {
		return 0
	}

	return cheapest
}

func storageLabels(infos []metadata.StorageInfo) string {
	if len(infos) == 0 {
		return "-"
	}

	labels := make([]string, len(infos))
	for i, s := range infos {
		labels[i] = s.Label()
	}

	return strings.Join(labels, ", ")
}

func formatValue(v uint64, unit string) string {
	switch unit {
	case "ns":
		return formatNs(v)
	case "":
		return formatCount(v)
	default:
		return formatCount(v) + " " + unit
	}
}

func formatNs(ns uint64) string {
	switch {
	case ns < 1_000:
		return fmt.Sprintf("%dns", ns)
	case ns < 1_000_000:
		return fmt.Sprintf("%.2fµs", float64(ns)/1e3)
	case ns < 1_000_000_000:
		return fmt.Sprintf("%.2fms", float64(ns)/1e6)
	default:
		return fmt.Sprintf("%.2fs", float64(ns)/1e9)
	}
}

func formatCount(n uint64) string {
	units := []string{"", "k", "M", "G", "T"}
	size := float64(n)
	unit := 0

	for size >= 1000 && unit < len(units)-1 {
		size /= 1000
		unit++
	}

	if unit == 0 {
		return fmt.Sprintf("%d", n)
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + units[unit]
}

func formatBound(v *uint32) string {
	if v == nil {
		return "unbounded"
	}

	return fmt.Sprintf("%d", *v)
}

func formatSize(v *uint32) string {
	if v == nil {
		return "unbounded"
	}

	return formatBytes(uint64(*v))
}

func formatBytes(b uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
