package billing

import "testing"

func TestTokenUsage_Add(t *testing.T) {
	var total TokenUsage
	total.Add(TokenUsage{TotalTokens: 30, InputTokens: 20, OutputTokens: 10})
	total.Add(TokenUsage{TotalTokens: 15, InputTokens: 10, OutputTokens: 5})

	if total.TotalTokens != 45 || total.InputTokens != 30 || total.OutputTokens != 15 {
		t.Errorf("total = %+v, want {45 30 15}", total)
	}
	if total.TotalTokens != total.InputTokens+total.OutputTokens {
		t.Errorf("total != input + output: %+v", total)
	}
}

func TestBillItem_NormalizedName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Paracetamol 500MG", "paracetamol 500mg"},
		{"collapses whitespace", "  Livi   300mg  Tab ", "livi 300mg tab"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BillItem{ItemName: tt.in}.NormalizedName()
			if got != tt.want {
				t.Errorf("NormalizedName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizePageType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pharmacy", PageTypePharmacy},
		{"pharmacy charges", PageTypePharmacy},
		{"Final Bill", PageTypeFinalBill},
		{"summary page", PageTypeFinalBill},
		{"Bill Detail", PageTypeBillDetail},
		{"something else", PageTypeBillDetail},
		{"", PageTypeBillDetail},
	}
	for _, tt := range tests {
		if got := NormalizePageType(tt.in); got != tt.want {
			t.Errorf("NormalizePageType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
