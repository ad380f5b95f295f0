package risk

import (
	"reflect"
	"testing"
)

func TestScoreTransaction_HighRiskScenario(t *testing.T) {
	tx := Transaction{
		Amount:       55000,
		Currency:     "USD",
		Country:      "Iran",
		Count24h:     15,
		CustomerType: "individual",
		IsCash:       true,
	}

	got := ScoreTransaction(tx)

	// 35 (amount) + 15 (velocity) + 25 (jurisdiction) + 15 (cash)
	if got.Score != 90 {
		t.Fatalf("expected score 90, got %d", got.Score)
	}
	if got.Level != LevelHigh {
		t.Fatalf("expected HIGH, got %s", got.Level)
	}
	if got.RecommendedAction != "Enhanced Due Diligence Required" {
		t.Fatalf("unexpected action: %s", got.RecommendedAction)
	}

	wantFlags := []string{
		"High-value transaction: $55,000.00",
		"High velocity: 15 transactions/24h",
		"High-risk jurisdiction: Iran",
		"Cash transaction",
	}
	if !reflect.DeepEqual(got.Flags, wantFlags) {
		t.Fatalf("unexpected flags: %v", got.Flags)
	}
}

func TestScoreTransaction_Bands(t *testing.T) {
	tests := []struct {
		name      string
		tx        Transaction
		wantScore int
		wantLevel string
	}{
		{
			name:      "empty transaction",
			tx:        Transaction{},
			wantScore: 0,
			wantLevel: LevelLow,
		},
		{
			name:      "medium value only",
			tx:        Transaction{Amount: 10000},
			wantScore: 20,
			wantLevel: LevelLow,
		},
		{
			name:      "high threshold wins over medium",
			tx:        Transaction{Amount: 50000},
			wantScore: 35,
			wantLevel: LevelLow,
		},
		{
			name:      "very high velocity excludes high velocity",
			tx:        Transaction{Count24h: 21},
			wantScore: 30,
			wantLevel: LevelLow,
		},
		{
			name:      "velocity boundary not triggered at 10",
			tx:        Transaction{Count24h: 10},
			wantScore: 0,
			wantLevel: LevelLow,
		},
		{
			name:      "small corporate transaction",
			tx:        Transaction{Amount: 500, CustomerType: "corporate"},
			wantScore: 10,
			wantLevel: LevelLow,
		},
		{
			name:      "corporate above cutoff not flagged",
			tx:        Transaction{Amount: 1000, CustomerType: "corporate"},
			wantScore: 0,
			wantLevel: LevelLow,
		},
		{
			name:      "medium band",
			tx:        Transaction{Amount: 12000, Country: "Syria"},
			wantScore: 45,
			wantLevel: LevelMedium,
		},
		{
			name:      "clamped at 100",
			tx:        Transaction{Amount: 60000, Country: "North Korea", Count24h: 25, IsCash: true},
			wantScore: 100,
			wantLevel: LevelHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreTransaction(tt.tx)
			if got.Score != tt.wantScore {
				t.Fatalf("expected score %d, got %d", tt.wantScore, got.Score)
			}
			if got.Level != tt.wantLevel {
				t.Fatalf("expected level %s, got %s", tt.wantLevel, got.Level)
			}
		})
	}
}

func TestScoreTransaction_Idempotent(t *testing.T) {
	tx := Transaction{Amount: 25000, Country: "Cuba", Count24h: 12, IsCash: true}
	first := ScoreTransaction(tx)
	second := ScoreTransaction(tx)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("scoring the same transaction twice produced different results")
	}
}

func TestAnalyzeQuery_TerroristFinancingScenario(t *testing.T) {
	got := AnalyzeQuery("What are the requirements for terrorist financing detection?")

	if got.Score != 15 {
		t.Fatalf("expected score 15, got %d", got.Score)
	}
	if got.Level != LevelLow {
		t.Fatalf("expected LOW, got %s", got.Level)
	}
	if got.RequiresAlert {
		t.Fatal("expected no alert below the alert band")
	}
	if !reflect.DeepEqual(got.KeywordsFound, []string{"terrorist"}) {
		t.Fatalf("unexpected keywords: %v", got.KeywordsFound)
	}
}

func TestAnalyzeQuery_OverlappingKeywordsBothCount(t *testing.T) {
	// "money laundering" contains "laundering"; both tiers entries match.
	got := AnalyzeQuery("Suspicious money laundering patterns")

	if got.Score != 30 {
		t.Fatalf("expected score 30, got %d", got.Score)
	}
	if got.Level != LevelMedium {
		t.Fatalf("expected MEDIUM, got %s", got.Level)
	}
	if !reflect.DeepEqual(got.KeywordsFound, []string{"laundering", "money laundering"}) {
		t.Fatalf("unexpected keywords: %v", got.KeywordsFound)
	}
}

func TestAnalyzeQuery_AlertThreshold(t *testing.T) {
	// terrorist + laundering + money laundering + offshore = 60
	got := AnalyzeQuery("Offshore terrorist money laundering networks")

	if got.Score != 60 {
		t.Fatalf("expected score 60, got %d", got.Score)
	}
	if got.Level != LevelHigh {
		t.Fatalf("expected HIGH, got %s", got.Level)
	}
	if !got.RequiresAlert {
		t.Fatal("expected alert at score >= 50")
	}
}

func TestAnalyzeQuery_RepeatedKeywordCountsOnce(t *testing.T) {
	got := AnalyzeQuery("fraud fraud fraud")
	if got.Score != 15 {
		t.Fatalf("expected score 15, got %d", got.Score)
	}
}

func TestAnalyzeQuery_CaseInsensitive(t *testing.T) {
	got := AnalyzeQuery("CRYPTOCURRENCY transfers via Bitcoin")
	// cryptocurrency + bitcoin, medium tier
	if got.Score != 16 {
		t.Fatalf("expected score 16, got %d", got.Score)
	}
	if got.RequiresAlert {
		t.Fatal("expected no alert")
	}
}

func TestAnalyzeQuery_ClampedAt100(t *testing.T) {
	got := AnalyzeQuery("sanction terrorist fraud laundering offshore pep blacklist watchlist shell company")
	if got.Score != 100 {
		t.Fatalf("expected score clamped to 100, got %d", got.Score)
	}
	if !got.RequiresAlert {
		t.Fatal("expected alert")
	}
}

func TestAnalyzeQuery_NoKeywords(t *testing.T) {
	got := AnalyzeQuery("What are the KYC documentation requirements?")
	if got.Score != 0 || got.Level != LevelLow || got.RequiresAlert {
		t.Fatalf("expected zero assessment, got %+v", got)
	}
	if len(got.Flags) != 0 {
		t.Fatalf("expected no flags, got %v", got.Flags)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.5, "999.50"},
		{1000, "1,000.00"},
		{55000, "55,000.00"},
		{1234567.89, "1,234,567.89"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Fatalf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
