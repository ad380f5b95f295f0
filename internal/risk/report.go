package risk

import (
	"fmt"
	"strings"
	"time"
)

// GenerateReport renders a Markdown risk report for a scored transaction,
// optionally including a query assessment.
func GenerateReport(tx Assessment, query *QueryAssessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Risk Assessment Report\nGenerated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	b.WriteString("## Transaction Risk Analysis\n")
	fmt.Fprintf(&b, "- **Risk Score:** %d/100\n", tx.Score)
	fmt.Fprintf(&b, "- **Risk Level:** %s\n", tx.Level)
	fmt.Fprintf(&b, "- **Recommended Action:** %s\n\n", tx.RecommendedAction)

	b.WriteString("### Risk Flags:\n")
	for _, flag := range tx.Flags {
		fmt.Fprintf(&b, "- %s\n", flag)
	}

	if query != nil {
		b.WriteString("\n## Query Risk Analysis\n")
		fmt.Fprintf(&b, "- **Risk Score:** %d/100\n", query.Score)
		fmt.Fprintf(&b, "- **Risk Level:** %s\n", query.Level)
		alert := "No"
		if query.RequiresAlert {
			alert = "Yes"
		}
		fmt.Fprintf(&b, "- **Alert Required:** %s\n\n", alert)

		b.WriteString("### Keywords Detected:\n")
		for _, kw := range query.KeywordsFound {
			fmt.Fprintf(&b, "- %s\n", kw)
		}
	}

	return b.String()
}
