package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"
)

type report struct {
	models         []string
	variants       []requestVariant
	resultsByModel map[string]map[string]testResult
	totalRequests  int
	failedCount    int
	skippedCount   int
}

// buildReport groups raw results by model and variant.
func buildReport(models []string, variants []requestVariant, results []testResult) report {
	byModel := make(map[string]map[string]testResult, len(models))
	for _, model := range models {
		byModel[model] = make(map[string]testResult)
	}

	failed := 0
	skipped := 0
	for _, res := range results {
		if res.Model == "" {
			continue
		}
		modelMap, ok := byModel[res.Model]
		if !ok {
			modelMap = make(map[string]testResult)
			byModel[res.Model] = modelMap
		}
		modelMap[res.Variant] = res
		if res.Skipped {
			skipped++
			continue
		}
		if !res.Success {
			failed++
		}
	}

	return report{
		models:         models,
		variants:       variants,
		resultsByModel: byModel,
		totalRequests:  len(results),
		failedCount:    failed,
		skippedCount:   skipped,
	}
}

// renderReport prints the probe matrix and summaries to stdout.
func renderReport(rep report) {
	if len(rep.models) == 0 || len(rep.variants) == 0 {
		fmt.Println("nothing to report")
		return
	}

	fmt.Println()
	fmt.Println("=== Bedrock Gateway Smoke Matrix ===")
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Variant")
	for _, model := range rep.models {
		fmt.Fprintf(tw, "\t%s", model)
	}
	fmt.Fprintln(tw)

	for _, variant := range rep.variants {
		fmt.Fprintf(tw, "%s", variant.Header)
		for _, model := range rep.models {
			entry := rep.resultsByModel[model]
			fmt.Fprintf(tw, "\t%s", formatMatrixCell(entry[variant.Key]))
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()

	fmt.Println()

	passed := rep.totalRequests - rep.failedCount - rep.skippedCount
	fmt.Printf("Totals  | Requests: %d | Passed: %d | Failed: %d | Skipped: %d\n",
		rep.totalRequests,
		passed,
		rep.failedCount,
		rep.skippedCount,
	)

	failures, skips := gatherOutcomes(rep)
	if len(failures) > 0 {
		fmt.Println()
		fmt.Println("Failures:")
		for _, res := range failures {
			fmt.Printf("- %s / %s: %s\n", res.Model, res.Label, clip(res.ErrorReason, 200))
		}
	}
	if len(skips) > 0 {
		fmt.Println()
		fmt.Println("Skipped (unsupported combinations):")
		for _, res := range skips {
			fmt.Printf("- %s / %s: %s\n", res.Model, res.Label, clip(res.ErrorReason, 200))
		}
	}

	fmt.Println()
}

func formatMatrixCell(res testResult) string {
	if res.Model == "" {
		return "-"
	}

	duration := res.Duration.Truncate(10 * time.Millisecond)
	switch {
	case res.Success:
		return fmt.Sprintf("PASS %.2fs", duration.Seconds())
	case res.Skipped:
		reason := res.ErrorReason
		if reason == "" {
			reason = "skipped"
		}
		return "SKIP " + clip(reason, 32)
	default:
		reason := res.ErrorReason
		if reason == "" {
			reason = duration.String()
		}
		return "FAIL " + clip(reason, 32)
	}
}

// gatherOutcomes collects failures and skips in a stable model-then-label
// order for the summary lists.
func gatherOutcomes(rep report) (failures, skips []testResult) {
	for _, model := range rep.models {
		entry := rep.resultsByModel[model]
		for _, variant := range rep.variants {
			res, ok := entry[variant.Key]
			if !ok || res.Model == "" {
				continue
			}
			if res.Skipped {
				skips = append(skips, res)
				continue
			}
			if !res.Success {
				failures = append(failures, res)
			}
		}
	}

	byModelThenLabel := func(items []testResult) func(i, j int) bool {
		return func(i, j int) bool {
			if items[i].Model == items[j].Model {
				return items[i].Label < items[j].Label
			}
			return items[i].Model < items[j].Model
		}
	}
	sort.Slice(failures, byModelThenLabel(failures))
	sort.Slice(skips, byModelThenLabel(skips))

	return failures, skips
}
