package processors

import "testing"

func TestComputeFeesDeterministic(t *testing.T) {
	profile := Profile{Name: "bold", PercentFee: 0.029, FixedFee: 30}

	cases := []struct {
		amount int64
		fee    int64
	}{
		{5000, 175},  // 145 + 30
		{10000, 320}, // 290 + 30
		{1, 30},      // 0.029 rounds to 0
		{100, 33},    // 2.9 rounds to 3
		{50, 31},     // 1.45 rounds to 1
	}
	for _, tc := range cases {
		got := computeFees(profile, tc.amount)
		if got.Fee != tc.fee {
			t.Fatalf("amount %d: expected fee %d, got %d", tc.amount, tc.fee, got.Fee)
		}
		if got.Net+got.Fee != got.Gross {
			t.Fatalf("amount %d: net %d + fee %d != gross %d", tc.amount, got.Net, got.Fee, got.Gross)
		}
		if got.Processor != "bold" || got.FeePercent != 0.029 {
			t.Fatalf("breakdown must carry processor metadata: %+v", got)
		}
	}
}

func TestComputeFeesRoundsTiesHalfUp(t *testing.T) {
	// 50 * 0.05 = 2.5, exactly at the midpoint.
	profile := Profile{Name: "test", PercentFee: 0.05, FixedFee: 0}
	got := computeFees(profile, 50)
	if got.Fee != 3 {
		t.Fatalf("midpoint must round half up, got %d", got.Fee)
	}
}

func TestProfileSupportsCurrency(t *testing.T) {
	profile := Profile{Currencies: []string{"COP", "USD"}}
	if !profile.SupportsCurrency("cop") {
		t.Fatalf("currency match must be case insensitive")
	}
	if profile.SupportsCurrency("EUR") {
		t.Fatalf("unsupported currency must not match")
	}
}
