package calculator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/vaulterr"
)

func amounts(shares []Share) []string {
	out := make([]string, len(shares))
	for i, s := range shares {
		out[i] = s.Amount.StringFixed(2)
	}
	return out
}

func TestSplitEntry(t *testing.T) {
	tests := []struct {
		name         string
		total        string
		participants []string
		weights      map[string]string
		want         []string
		wantErr      bool
	}{
		{
			name:         "three equal participants",
			total:        "90.00",
			participants: []string{"alice", "bob", "carol"},
			want:         []string{"30.00", "30.00", "30.00"},
		},
		{
			name:         "remainder goes to first participant",
			total:        "100.00",
			participants: []string{"alice", "bob", "carol"},
			want:         []string{"33.34", "33.33", "33.33"},
		},
		{
			name:         "two cents of remainder",
			total:        "0.05",
			participants: []string{"alice", "bob", "carol"},
			want:         []string{"0.02", "0.02", "0.01"},
		},
		{
			name:         "single participant",
			total:        "12.34",
			participants: []string{"alice"},
			want:         []string{"12.34"},
		},
		{
			name:         "weighted split",
			total:        "100.00",
			participants: []string{"alice", "bob"},
			weights:      map[string]string{"alice": "2", "bob": "1"},
			want:         []string{"66.67", "33.33"},
		},
		{
			name:         "fractional weights",
			total:        "10.00",
			participants: []string{"alice", "bob", "carol"},
			weights:      map[string]string{"alice": "0.5", "bob": "0.25", "carol": "0.25"},
			want:         []string{"5.00", "2.50", "2.50"},
		},
		{
			name:         "empty participants",
			total:        "10.00",
			participants: []string{},
			wantErr:      true,
		},
		{
			name:         "zero amount",
			total:        "0",
			participants: []string{"alice"},
			wantErr:      true,
		},
		{
			name:         "negative amount",
			total:        "-5.00",
			participants: []string{"alice"},
			wantErr:      true,
		},
		{
			name:         "sub-cent amount",
			total:        "10.001",
			participants: []string{"alice"},
			wantErr:      true,
		},
		{
			name:         "one cent among two",
			total:        "0.01",
			participants: []string{"alice", "bob"},
			wantErr:      true,
		},
		{
			name:         "weight too small for total",
			total:        "0.10",
			participants: []string{"alice", "bob", "carol"},
			weights:      map[string]string{"alice": "100", "bob": "100", "carol": "1"},
			wantErr:      true,
		},
		{
			name:         "duplicate participant",
			total:        "10.00",
			participants: []string{"alice", "alice"},
			wantErr:      true,
		},
		{
			name:         "missing weight",
			total:        "10.00",
			participants: []string{"alice", "bob"},
			weights:      map[string]string{"alice": "1"},
			wantErr:      true,
		},
		{
			name:         "zero weight",
			total:        "10.00",
			participants: []string{"alice", "bob"},
			weights:      map[string]string{"alice": "1", "bob": "0"},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var weights map[string]decimal.Decimal
			if tt.weights != nil {
				weights = make(map[string]decimal.Decimal)
				for k, v := range tt.weights {
					weights[k] = decimal.RequireFromString(v)
				}
			}

			shares, err := SplitEntry(decimal.RequireFromString(tt.total), "USD", tt.participants, weights)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitEntry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !vaulterr.IsValidation(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				return
			}

			got := amounts(shares)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d shares, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("share %d = %s, want %s", i, got[i], tt.want[i])
				}
				if shares[i].Participant != tt.participants[i] {
					t.Errorf("share %d participant = %s, want %s", i, shares[i].Participant, tt.participants[i])
				}
			}
		})
	}
}

func TestSplitEntry_EmptyParticipantsSentinel(t *testing.T) {
	_, err := SplitEntry(decimal.NewFromInt(10), "USD", nil, nil)
	if !errors.Is(err, vaulterr.ErrEmptyParticipants) {
		t.Fatalf("expected ErrEmptyParticipants, got %v", err)
	}
}

// Every total from 0.01 to 20.00 split among 1..9 participants must sum back
// exactly, or be rejected when there are fewer cents than participants.
func TestSplitEntry_SumsExactly(t *testing.T) {
	for cents := int64(1); cents <= 2000; cents += 7 {
		total := decimal.New(cents, -2)
		for n := 1; n <= 9; n++ {
			participants := make([]string, n)
			for i := range participants {
				participants[i] = fmt.Sprintf("user-%d", i)
			}

			shares, err := SplitEntry(total, "USD", participants, nil)
			if cents < int64(n) {
				if !vaulterr.IsValidation(err) {
					t.Fatalf("SplitEntry(%s, %d) error = %v, want ValidationError", total, n, err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("SplitEntry(%s, %d) error = %v", total, n, err)
			}
			sum := decimal.Zero
			for _, s := range shares {
				if !s.Amount.IsPositive() {
					t.Fatalf("SplitEntry(%s, %d) gave %s a share of %s", total, n, s.Participant, s.Amount)
				}
				sum = sum.Add(s.Amount)
			}
			if !sum.Equal(total) {
				t.Fatalf("SplitEntry(%s, %d) sums to %s", total, n, sum)
			}
		}
	}
}

func TestSplitEntry_WeightedSumsExactly(t *testing.T) {
	participants := []string{"a", "b", "c"}
	weights := map[string]decimal.Decimal{
		"a": decimal.RequireFromString("1"),
		"b": decimal.RequireFromString("3"),
		"c": decimal.RequireFromString("7"),
	}
	for cents := int64(100); cents <= 5000; cents += 13 {
		total := decimal.New(cents, -2)
		shares, err := SplitEntry(total, "USD", participants, weights)
		if err != nil {
			t.Fatalf("SplitEntry(%s) error = %v", total, err)
		}
		sum := decimal.Zero
		for _, s := range shares {
			sum = sum.Add(s.Amount)
		}
		if !sum.Equal(total) {
			t.Fatalf("weighted SplitEntry(%s) sums to %s", total, sum)
		}
	}
}

func TestSplitEntry_ZeroDecimalCurrency(t *testing.T) {
	shares, err := SplitEntry(decimal.NewFromInt(1000), "JPY", []string{"a", "b", "c"}, nil)
	if err != nil {
		t.Fatalf("SplitEntry() error = %v", err)
	}
	want := []int64{334, 333, 333}
	for i, s := range shares {
		if !s.Amount.Equal(decimal.NewFromInt(want[i])) {
			t.Errorf("share %d = %s, want %d", i, s.Amount, want[i])
		}
	}
}

func TestValidateExplicit(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name    string
		total   string
		shares  []Share
		wantErr bool
	}{
		{"exact sum", "50.00", []Share{{"a", d("20.00")}, {"b", d("30.00")}}, false},
		{"short by a cent", "50.00", []Share{{"a", d("20.00")}, {"b", d("29.99")}}, true},
		{"over by a cent", "50.00", []Share{{"a", d("20.01")}, {"b", d("30.00")}}, true},
		{"zero share", "50.00", []Share{{"a", d("50.00")}, {"b", d("0")}}, true},
		{"duplicate participant", "50.00", []Share{{"a", d("25.00")}, {"a", d("25.00")}}, true},
		{"sub-cent share", "50.00", []Share{{"a", d("25.005")}, {"b", d("24.995")}}, true},
		{"no shares", "50.00", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExplicit(d(tt.total), "USD", tt.shares)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateExplicit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !vaulterr.IsValidation(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}
