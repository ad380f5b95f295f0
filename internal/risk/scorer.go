package risk

import (
	"fmt"
	"strings"
)

const (
	LevelLow    = "LOW"
	LevelMedium = "MEDIUM"
	LevelHigh   = "HIGH"
)

// Transaction is the scorer's read-only input. Zero values contribute no
// risk, so a partially populated transaction is valid.
type Transaction struct {
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Country      string  `json:"country"`
	Count24h     int     `json:"count_24h"`
	CustomerType string  `json:"customer_type"`
	IsCash       bool    `json:"is_cash"`
}

// Assessment is an immutable scoring result. Flags are in rule-evaluation
// order, not sorted.
type Assessment struct {
	Score             int      `json:"risk_score"`
	Level             string   `json:"risk_level"`
	Flags             []string `json:"flags"`
	RecommendedAction string   `json:"recommended_action"`
}

// QueryAssessment is the free-text variant. RequiresAlert is set when the
// score reaches the alert band; the audit layer turns it into an alert record.
type QueryAssessment struct {
	Score         int      `json:"risk_score"`
	Level         string   `json:"risk_level"`
	Flags         []string `json:"flags"`
	KeywordsFound []string `json:"keywords_found"`
	RequiresAlert bool     `json:"requires_alert"`
}

// ScoreTransaction evaluates the weighted rule set against a transaction.
// Pure function: identical input yields identical output.
func ScoreTransaction(tx Transaction) Assessment {
	score := 0
	flags := []string{}

	if tx.Amount >= highValueThreshold {
		score += highValueWeight
		flags = append(flags, fmt.Sprintf("High-value transaction: $%s", formatAmount(tx.Amount)))
	} else if tx.Amount >= mediumValueThreshold {
		score += mediumValueWeight
		flags = append(flags, fmt.Sprintf("Medium-value transaction: $%s", formatAmount(tx.Amount)))
	}

	if tx.Count24h > veryHighVelocityThreshold {
		score += veryHighVelocityWeight
		flags = append(flags, fmt.Sprintf("Very high velocity: %d transactions/24h", tx.Count24h))
	} else if tx.Count24h > highVelocityThreshold {
		score += highVelocityWeight
		flags = append(flags, fmt.Sprintf("High velocity: %d transactions/24h", tx.Count24h))
	}

	if isHighRiskCountry(tx.Country) {
		score += jurisdictionWeight
		flags = append(flags, fmt.Sprintf("High-risk jurisdiction: %s", tx.Country))
	}

	if tx.IsCash {
		score += cashWeight
		flags = append(flags, "Cash transaction")
	}

	if tx.CustomerType == "corporate" && tx.Amount < smallCorporateCutoff {
		score += smallCorporateWeight
		flags = append(flags, "Unusual small corporate transaction")
	}

	if score > 100 {
		score = 100
	}

	var level, action string
	switch {
	case score >= transactionHighBand:
		level = LevelHigh
		action = "Enhanced Due Diligence Required"
	case score >= transactionMediumBand:
		level = LevelMedium
		action = "Standard Due Diligence Required"
	default:
		level = LevelLow
		action = "Normal Processing"
	}

	return Assessment{
		Score:             score,
		Level:             level,
		Flags:             flags,
		RecommendedAction: action,
	}
}

// AnalyzeQuery scans free text case-insensitively against both keyword
// tiers. Each distinct keyword counts once even if repeated; a keyword that
// is a substring of another matched keyword still counts on its own.
func AnalyzeQuery(query string) QueryAssessment {
	lower := strings.ToLower(query)

	score := 0
	found := []string{}

	for _, kw := range HighRiskKeywords {
		if strings.Contains(lower, kw) {
			score += highKeywordWeight
			found = append(found, kw)
		}
	}

	for _, kw := range MediumRiskKeywords {
		if strings.Contains(lower, kw) {
			score += mediumKeywordWeight
			found = append(found, kw)
		}
	}

	flags := []string{}
	if len(found) > 0 {
		flags = append(flags, "Risk keywords detected: "+strings.Join(found, ", "))
	}

	if score > 100 {
		score = 100
	}

	var level string
	alert := false
	switch {
	case score >= queryHighBand:
		level = LevelHigh
		alert = true
	case score >= queryMediumBand:
		level = LevelMedium
	default:
		level = LevelLow
	}

	return QueryAssessment{
		Score:         score,
		Level:         level,
		Flags:         flags,
		KeywordsFound: found,
		RequiresAlert: alert,
	}
}

// formatAmount renders an amount with comma-grouped thousands and two
// decimals, e.g. 55000 -> "55,000.00".
func formatAmount(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)

	dot := strings.IndexByte(s, '.')
	intPart, fracPart := s[:dot], s[dot:]

	neg := false
	if strings.HasPrefix(intPart, "-") {
		neg = true
		intPart = intPart[1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
		if len(intPart) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(intPart); i += 3 {
		b.WriteString(intPart[i : i+3])
		if i+3 < len(intPart) {
			b.WriteByte(',')
		}
	}
	b.WriteString(fracPart)

	return b.String()
}
