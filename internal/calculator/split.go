package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/internal/vaulterr"
)

// Share is one participant's calculated portion of an entry.
type Share struct {
	Participant string
	Amount      decimal.Decimal
}

// SplitEntry divides total among participants so that the shares sum to total
// exactly in the currency's minor unit.
//
// With no weights every participant gets total/N. With weights each
// participant gets floor(total × weight / Σweights). In both modes the
// leftover minor units are handed out one at a time starting from the first
// participant, in the order given. A split that would leave any participant
// with a zero share is rejected.
func SplitEntry(total decimal.Decimal, currency string, participants []string, weights map[string]decimal.Decimal) ([]Share, error) {
	if len(participants) == 0 {
		return nil, &vaulterr.ValidationError{Reason: "must have at least one participant", Err: vaulterr.ErrEmptyParticipants}
	}
	if err := checkUnique(participants); err != nil {
		return nil, err
	}
	totalMinor, err := positiveMinor(total, currency)
	if err != nil {
		return nil, err
	}

	var parts []int64
	if len(weights) == 0 {
		parts = equalParts(totalMinor, len(participants))
	} else {
		parts, err = weightedParts(totalMinor, participants, weights)
		if err != nil {
			return nil, err
		}
	}

	shares := make([]Share, len(participants))
	for i, p := range participants {
		if parts[i] == 0 {
			return nil, vaulterr.InvalidAmount("%s is too small to split among %d participants",
				money.Format(total, currency), len(participants))
		}
		shares[i] = Share{Participant: p, Amount: money.FromMinor(parts[i], currency)}
	}
	return shares, nil
}

// ValidateExplicit checks caller-provided shares: every amount positive and
// representable in the currency, no participant twice, and an exact sum.
func ValidateExplicit(total decimal.Decimal, currency string, shares []Share) error {
	if len(shares) == 0 {
		return &vaulterr.ValidationError{Reason: "must have at least one split", Err: vaulterr.ErrEmptyParticipants}
	}
	totalMinor, err := positiveMinor(total, currency)
	if err != nil {
		return err
	}

	names := make([]string, len(shares))
	var sum int64
	for i, s := range shares {
		names[i] = s.Participant
		minor, err := positiveMinor(s.Amount, currency)
		if err != nil {
			return vaulterr.InvalidAmount("split for %s: %s", s.Participant, reasonOf(err))
		}
		sum += minor
	}
	if err := checkUnique(names); err != nil {
		return err
	}
	if sum != totalMinor {
		return vaulterr.InvalidAmount("splits sum to %s, entry total is %s",
			money.Format(money.FromMinor(sum, currency), currency),
			money.Format(total, currency))
	}
	return nil
}

func equalParts(total int64, n int) []int64 {
	base := total / int64(n)
	remainder := total % int64(n)

	parts := make([]int64, n)
	for i := range parts {
		parts[i] = base
		if int64(i) < remainder {
			parts[i]++
		}
	}
	return parts
}

func weightedParts(total int64, participants []string, weights map[string]decimal.Decimal) ([]int64, error) {
	sumWeights := decimal.Zero
	for _, p := range participants {
		w, ok := weights[p]
		if !ok {
			return nil, vaulterr.Validation("missing weight for participant %s", p)
		}
		if !w.IsPositive() {
			return nil, vaulterr.Validation("weight for participant %s must be positive", p)
		}
		sumWeights = sumWeights.Add(w)
	}
	if len(weights) != len(participants) {
		return nil, vaulterr.Validation("weights name %d participants, expected %d", len(weights), len(participants))
	}

	parts := make([]int64, len(participants))
	totalDec := decimal.NewFromInt(total)
	var allocated int64
	for i, p := range participants {
		// QuoRem at precision 0 truncates, which is floor for positive values.
		q, _ := totalDec.Mul(weights[p]).QuoRem(sumWeights, 0)
		parts[i] = q.IntPart()
		allocated += parts[i]
	}

	for i := 0; allocated < total; i = (i + 1) % len(parts) {
		parts[i]++
		allocated++
	}
	return parts, nil
}

func positiveMinor(amount decimal.Decimal, currency string) (int64, error) {
	if !amount.IsPositive() {
		return 0, vaulterr.InvalidAmount("amount must be positive, got %s", amount)
	}
	minor, err := money.ToMinor(amount, currency)
	if err != nil {
		return 0, vaulterr.InvalidAmount("%v", err)
	}
	return minor, nil
}

func checkUnique(participants []string) error {
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p == "" {
			return vaulterr.Validation("participant id cannot be empty")
		}
		if seen[p] {
			return vaulterr.Validation("participant %s listed more than once", p)
		}
		seen[p] = true
	}
	return nil
}

func reasonOf(err error) string {
	if v, ok := err.(*vaulterr.ValidationError); ok {
		return v.Reason
	}
	return fmt.Sprint(err)
}
