package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"basic-cleaning/models"
)

const reportWidth = 55

// PrintCleaningReport writes a boxed summary of a cleaning run to w
func PrintCleaningReport(w io.Writer, report *models.InsightReport) {
	border := strings.Repeat("═", reportWidth)
	thin := strings.Repeat("─", reportWidth)

	fmt.Fprintf(w, "\n╔%s╗\n", border)
	fmt.Fprintf(w, "║%s║\n", center("BASIC CLEANING SUMMARY", reportWidth))
	fmt.Fprintf(w, "╚%s╝\n", border)

	fmt.Fprintf(w, "\n ROWS\n%s\n", thin)
	fmt.Fprintf(w, "  Rows Read               : %d\n", report.Stats.RowsRead)
	fmt.Fprintf(w, "  Rows Kept               : %d\n", report.Stats.RowsKept)
	fmt.Fprintf(w, "  Dropped (out of range)  : %d\n", report.Stats.DroppedOutOfRange)
	fmt.Fprintf(w, "  Dropped (missing price) : %d\n", report.Stats.DroppedMissingPrice)
	fmt.Fprintf(w, "  Empty last_review       : %d\n", report.Stats.NullLastReview)
	fmt.Fprintf(w, "  Date Layout             : %s\n", report.Stats.DateLayout)

	fmt.Fprintf(w, "\n PRICES\n%s\n", thin)
	fmt.Fprintf(w, "  Average Price/Night     : $%.2f\n", report.AveragePrice)
	fmt.Fprintf(w, "  Minimum Price/Night     : $%.2f\n", report.MinPrice)
	fmt.Fprintf(w, "  Maximum Price/Night     : $%.2f\n", report.MaxPrice)
	if report.MostExpensive != "" {
		fmt.Fprintf(w, "  Most Expensive          : %s\n", truncate(report.MostExpensive, 30))
	}

	if len(report.ListingsByGroup) > 0 {
		fmt.Fprintf(w, "\n LISTINGS PER NEIGHBOURHOOD GROUP\n%s\n", thin)
		type groupCount struct {
			group string
			count int
		}
		groups := make([]groupCount, 0, len(report.ListingsByGroup))
		for g, n := range report.ListingsByGroup {
			groups = append(groups, groupCount{g, n})
		}
		// count descending, then name for a stable listing
		sort.Slice(groups, func(i, j int) bool {
			if groups[i].count != groups[j].count {
				return groups[i].count > groups[j].count
			}
			return groups[i].group < groups[j].group
		})
		for _, gc := range groups {
			fmt.Fprintf(w, "  %-25s %6d\n", truncate(gc.group, 24)+":", gc.count)
		}
	}

	if report.Artifact != "" {
		fmt.Fprintf(w, "\n ARTIFACT\n%s\n", thin)
		fmt.Fprintf(w, "  %s\n", report.Artifact)
	}

	fmt.Fprintf(w, "\n%s\n\n", border)
}

func center(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	pad := (width - len(runes)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-len(runes)-pad)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
