package reconcile

import (
	"errors"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/shopspring/decimal"
)

var errNoAmountOrBalance = errors.New("row has neither an amount nor a balance")

// Delta is the signed movement of a transaction: credit minus debit.
func Delta(tx domain.Transaction) decimal.Decimal {
	d := decimal.Zero
	if tx.Credit != nil {
		d = d.Add(tx.Credit.Amount)
	}
	if tx.Debit != nil {
		d = d.Sub(tx.Debit.Amount)
	}
	return d
}

// ChainCheck is the outcome of re-walking an already built ledger.
type ChainCheck struct {
	// Breaks holds the indexes of transactions whose printed balance does
	// not follow from the previous one.
	Breaks []int

	// Derived is opening + Σcredit − Σdebit.
	Derived decimal.Decimal
}

// OK reports whether the chain has no breaks.
func (c ChainCheck) OK() bool { return len(c.Breaks) == 0 }

// VerifyChain re-validates a ledger, typically after transactions from
// several extracted sections were merged and re-sorted. After a break the
// walk continues from the printed balance so one bad row is reported once.
func VerifyChain(opening decimal.Decimal, txs []domain.Transaction, tol decimal.Decimal) ChainCheck {
	check := ChainCheck{Derived: opening}
	running := opening
	for i, tx := range txs {
		delta := Delta(tx)
		check.Derived = check.Derived.Add(delta)
		running = running.Add(delta)
		if !domain.WithinTolerance(running, tx.Balance.Amount, tol) {
			check.Breaks = append(check.Breaks, i)
			running = tx.Balance.Amount
		}
	}
	return check
}
