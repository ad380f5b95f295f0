package risk

// Static rule tables for AML/KYC risk scoring. Order matters: flags and
// keyword matches are reported in table order.

var HighRiskCountries = []string{
	"Afghanistan", "Iran", "North Korea", "Syria", "Yemen",
	"Myanmar", "Cuba", "Sudan", "Venezuela",
}

// Each match contributes +15 to a query's risk score.
var HighRiskKeywords = []string{
	"sanction", "terrorist", "terrorism", "fraud", "laundering",
	"money laundering", "shell company", "offshore", "pep",
	"politically exposed", "blacklist", "watchlist",
}

// Each match contributes +8 to a query's risk score.
var MediumRiskKeywords = []string{
	"cash", "cryptocurrency", "bitcoin", "anonymous", "bearer",
	"structuring", "smurfing", "layering", "placement",
}

const (
	highKeywordWeight   = 15
	mediumKeywordWeight = 8

	highValueThreshold   = 50000
	mediumValueThreshold = 10000
	highValueWeight      = 35
	mediumValueWeight    = 20

	veryHighVelocityThreshold = 20
	highVelocityThreshold     = 10
	veryHighVelocityWeight    = 30
	highVelocityWeight        = 15

	jurisdictionWeight     = 25
	cashWeight             = 15
	smallCorporateWeight   = 10
	smallCorporateCutoff   = 1000
)

// Transaction level bands. Query scoring uses its own bands (see scorer.go);
// the two sets are intentionally different.
const (
	transactionHighBand   = 70
	transactionMediumBand = 40

	queryHighBand   = 50
	queryMediumBand = 25
)

func isHighRiskCountry(country string) bool {
	for _, c := range HighRiskCountries {
		if c == country {
			return true
		}
	}
	return false
}
