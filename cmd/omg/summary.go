package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"omg/internal/bootstrap"
	"omg/internal/dedup"
	"omg/internal/reflection"
)

var (
	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	summaryLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#9aa5b1"))
	summaryWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
)

func printBootstrapSummary(r bootstrap.Result) {
	fmt.Println(summaryTitle.Render("bootstrap summary"))
	fmt.Printf("%s %d\n", summaryLabel.Render("batches processed:"), r.BatchesProcessed)
	fmt.Printf("%s %d\n", summaryLabel.Render("batches retried:  "), r.BatchesRetried)
	fmt.Printf("%s %d\n", summaryLabel.Render("nodes written:    "), r.NodesWritten)
	for _, w := range r.QualityWarnings {
		fmt.Println(summaryWarn.Render("  ! " + w))
	}
}

func printReflectionSummary(r reflection.Result) {
	fmt.Println(summaryTitle.Render("reflection summary"))
	fmt.Printf("%s %d\n", summaryLabel.Render("clusters processed:"), r.ClustersProcessed)
	fmt.Printf("%s %d\n", summaryLabel.Render("clusters skipped:  "), r.ClustersSkipped)
	fmt.Printf("%s %d\n", summaryLabel.Render("reflection nodes:  "), r.ReflectionNodesWritten)
	fmt.Printf("%s %d\n", summaryLabel.Render("nodes archived:    "), r.NodesArchived)
	fmt.Printf("%s %d\n", summaryLabel.Render("nodes patched:     "), r.NodesPatched)
}

func printLiteralSummary(r dedup.LiteralResult) {
	fmt.Println(summaryTitle.Render("literal dedup summary"))
	fmt.Printf("%s %d\n", summaryLabel.Render("clusters submitted:"), r.ClustersSubmitted)
	fmt.Printf("%s %d\n", summaryLabel.Render("merges executed:   "), r.MergesExecuted)
	fmt.Printf("%s %d\n", summaryLabel.Render("merge errors:      "), r.MergeErrors)
}

func printSemanticSummary(r dedup.SemanticResult) {
	fmt.Println(summaryTitle.Render("semantic dedup summary"))
	if r.Disabled {
		fmt.Println(summaryWarn.Render("  semantic dedup is disabled in config"))
		return
	}
	fmt.Printf("%s %d\n", summaryLabel.Render("blocks submitted:  "), r.BlocksSubmitted)
	fmt.Printf("%s %d\n", summaryLabel.Render("merges executed:   "), r.MergesExecuted)
	fmt.Printf("%s %d\n", summaryLabel.Render("merge errors:      "), r.MergeErrors)
}

func printDanglingLinks(lines []string) {
	if len(lines) == 0 {
		fmt.Println(summaryTitle.Render("index validation: no dangling links"))
		return
	}
	fmt.Println(summaryWarn.Render(fmt.Sprintf("index validation: %d dangling link(s)", len(lines))))
	fmt.Println(strings.Join(lines, "\n"))
}
