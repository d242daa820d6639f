package calculator

import "sort"

// EntryForBalance is an entry reduced to what balance calculation needs.
// Amounts are in minor units of a single currency.
type EntryForBalance struct {
	PaidBy string
	Total  int64
	Shares map[string]int64
}

// MemberBalance represents the balance information for one trip member.
type MemberBalance struct {
	UserID     string
	NetBalance int64 // Positive = owed money, Negative = owes money
	TotalPaid  int64
	TotalOwed  int64
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount int64
}

// SettlementForBalance is a split that has already been paid to the entry's payer.
type SettlementForBalance struct {
	FromUserID string
	ToUserID   string
	Amount     int64
}

// CalculateTripBalances computes balances across a trip's entries and settled splits.
//
// Algorithm:
//   - For each entry: payer contributed +total, each participant owes their share
//   - For each settlement: payer's balance improves, receiver's balance decreases
//   - Aggregate: net_balance = total_paid - total_owed
//   - Debt list: simplified using greedy matching of largest debtor to largest creditor
//
// Members are returned sorted by user ID.
func CalculateTripBalances(entries []EntryForBalance, settlements []SettlementForBalance) ([]MemberBalance, []DebtEdge) {
	balances := make(map[string]*MemberBalance)
	get := func(id string) *MemberBalance {
		b, ok := balances[id]
		if !ok {
			b = &MemberBalance{UserID: id}
			balances[id] = b
		}
		return b
	}

	for _, e := range entries {
		if e.PaidBy == "" {
			continue
		}
		get(e.PaidBy).TotalPaid += e.Total
		for participant, share := range e.Shares {
			get(participant).TotalOwed += share
		}
	}

	for _, s := range settlements {
		get(s.FromUserID).TotalPaid += s.Amount
		get(s.ToUserID).TotalOwed += s.Amount
	}

	memberBalances := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.TotalPaid - b.TotalOwed
		memberBalances = append(memberBalances, *b)
	}
	sort.Slice(memberBalances, func(i, j int) bool {
		return memberBalances[i].UserID < memberBalances[j].UserID
	})

	return memberBalances, simplifyDebts(memberBalances)
}

func simplifyDebts(members []MemberBalance) []DebtEdge {
	type party struct {
		id     string
		amount int64
	}
	var creditors, debtors []party
	for _, m := range members {
		switch {
		case m.NetBalance > 0:
			creditors = append(creditors, party{m.UserID, m.NetBalance})
		case m.NetBalance < 0:
			debtors = append(debtors, party{m.UserID, -m.NetBalance})
		}
	}
	byAmount := func(ps []party) {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].amount > ps[j].amount })
	}
	byAmount(creditors)
	byAmount(debtors)

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)
		edges = append(edges, DebtEdge{From: debtors[i].id, To: creditors[j].id, Amount: amount})

		debtors[i].amount -= amount
		creditors[j].amount -= amount
		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}
	return edges
}
