package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
)

// Field aliases accepted in structured model output. The first entry is
// the canonical name used in report paths.
var (
	aliasAccountNumber = []string{"account_number", "account_no", "account", "accountNumber"}
	aliasAccountName   = []string{"account_name", "account_type", "accountName"}
	aliasCurrency      = []string{"currency", "currency_code"}
	aliasOpening       = []string{"opening_balance", "balance_brought_forward", "openingBalance"}
	aliasClosing       = []string{"closing_balance", "balance_carried_forward", "closingBalance"}
	aliasDate          = []string{"date", "transaction_date", "booking_date", "value_date"}
	aliasDescription   = []string{"description", "details", "narrative", "merchant"}
	aliasDebit         = []string{"debit", "withdrawal", "money_out", "paid_out"}
	aliasCredit        = []string{"credit", "deposit", "money_in", "paid_in"}
	aliasAmount        = []string{"amount", "value"}
	aliasBalance       = []string{"balance", "balance_after", "running_balance"}
)

// ValidateStructure checks a decoded model reply against the expected
// statement schema and returns every problem found.
func ValidateStructure(v any) []string {
	root, ok := v.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("result must be an object, got %s", typeName(v))}
	}

	var problems []string
	for _, key := range []string{"bank_name", "statement_period", "accounts"} {
		if _, ok := root[key]; !ok {
			problems = append(problems, "missing required field: "+key)
		}
	}
	if p, ok := root["statement_period"]; ok {
		period, isMap := p.(map[string]any)
		if !isMap {
			problems = append(problems, "statement_period must be an object")
		} else if _, hasStart := period["start_date"]; !hasStart {
			problems = append(problems, "statement_period must include start_date and end_date")
		} else if _, hasEnd := period["end_date"]; !hasEnd {
			problems = append(problems, "statement_period must include start_date and end_date")
		}
	}
	if a, ok := root["accounts"]; ok {
		if _, isList := a.([]any); !isList {
			problems = append(problems, "accounts must be a list")
		}
	}
	return problems
}

func adaptStructured(v any, lines *lineCounter, report *FieldReport) partial {
	var p partial
	switch root := v.(type) {
	case nil:
		return p
	case []any:
		p.accounts = groupFlat(root, "transactions", lines, report)
	case map[string]any:
		p.meta = structuredMetadata(root, report)
		switch {
		case root["accounts"] != nil:
			list, ok := root["accounts"].([]any)
			if !ok {
				report.fail("accounts", "unexpected type %s", typeName(root["accounts"]))
				break
			}
			for i, item := range list {
				path := fmt.Sprintf("accounts[%d]", i)
				m, ok := item.(map[string]any)
				if !ok {
					report.fail(path, "unexpected type %s", typeName(item))
					continue
				}
				p.accounts = append(p.accounts, accountFromMap(m, path, lines, report))
			}
		case root["transactions"] != nil:
			list, ok := root["transactions"].([]any)
			if !ok {
				report.fail("transactions", "unexpected type %s", typeName(root["transactions"]))
				break
			}
			p.accounts = groupFlat(list, "transactions", lines, report)
			// Top-level header fields apply when the flat list has one account.
			if len(p.accounts) == 1 {
				header := accountHeader(root, "", report, false)
				p.accounts[0].fillFrom(header)
			}
		default:
			report.fail("accounts", "missing")
		}
	default:
		report.fail("$", "unexpected type %s", typeName(v))
	}
	return p
}

func structuredMetadata(root map[string]any, report *FieldReport) Metadata {
	var meta Metadata
	if name, conf, ok := lookupText(root, []string{"bank_name", "bank"}); ok && name != "" {
		meta.BankNames = append(meta.BankNames, Candidate{Text: name, Rank: rankStructured})
		report.ok("bank_name", conf)
	} else {
		report.fail("bank_name", "missing")
	}

	switch period := root["statement_period"].(type) {
	case map[string]any:
		if start, conf, ok := lookupText(period, []string{"start_date", "start", "from"}); ok && start != "" {
			meta.PeriodStarts = append(meta.PeriodStarts, Candidate{Text: start, Rank: rankStructured})
			report.ok("statement_period.start_date", conf)
		} else {
			report.fail("statement_period.start_date", "missing")
		}
		if end, conf, ok := lookupText(period, []string{"end_date", "end", "to"}); ok && end != "" {
			meta.PeriodEnds = append(meta.PeriodEnds, Candidate{Text: end, Rank: rankStructured})
			report.ok("statement_period.end_date", conf)
		} else {
			report.fail("statement_period.end_date", "missing")
		}
	case string:
		if start, end, ok := splitPeriod(period); ok {
			meta.PeriodStarts = append(meta.PeriodStarts, Candidate{Text: start, Rank: rankStructured})
			meta.PeriodEnds = append(meta.PeriodEnds, Candidate{Text: end, Rank: rankStructured})
			report.ok("statement_period", 0.8)
		} else {
			report.fail("statement_period", "unrecognised period %q", period)
		}
	case nil:
		report.fail("statement_period", "missing")
	default:
		report.fail("statement_period", "unexpected type %s", typeName(period))
	}
	return meta
}

func accountHeader(m map[string]any, path string, report *FieldReport, strict bool) AccountCandidate {
	a := AccountCandidate{Source: SourceStructured}
	fields := []struct {
		aliases []string
		dst     *string
	}{
		{aliasAccountNumber, &a.AccountNumberText},
		{aliasAccountName, &a.AccountNameText},
		{aliasCurrency, &a.CurrencyText},
		{aliasOpening, &a.OpeningBalanceText},
		{aliasClosing, &a.ClosingBalanceText},
	}
	for _, f := range fields {
		text, conf, ok := lookupText(m, f.aliases)
		fieldPath := joinPath(path, f.aliases[0])
		switch {
		case ok:
			*f.dst = text
			if strict {
				report.ok(fieldPath, conf)
			}
		case strict:
			report.fail(fieldPath, "missing")
		}
	}
	return a
}

func accountFromMap(m map[string]any, path string, lines *lineCounter, report *FieldReport) AccountCandidate {
	a := accountHeader(m, path, report, true)
	raw, ok := m["transactions"]
	if !ok || raw == nil {
		report.fail(path+".transactions", "missing")
		return a
	}
	list, ok := raw.([]any)
	if !ok {
		report.fail(path+".transactions", "unexpected type %s", typeName(raw))
		return a
	}
	for i, item := range list {
		rowPath := fmt.Sprintf("%s.transactions[%d]", path, i)
		tx, ok := item.(map[string]any)
		if !ok {
			report.fail(rowPath, "unexpected type %s", typeName(item))
			continue
		}
		a.Rows = append(a.Rows, rowFromMap(tx, lines.next()))
	}
	return a
}

// groupFlat splits a flat transaction list into accounts keyed by the
// account fields carried on each row, preserving first-seen order.
func groupFlat(list []any, path string, lines *lineCounter, report *FieldReport) []AccountCandidate {
	var accounts []AccountCandidate
	index := map[string]int{}
	for i, item := range list {
		rowPath := fmt.Sprintf("%s[%d]", path, i)
		tx, ok := item.(map[string]any)
		if !ok {
			report.fail(rowPath, "unexpected type %s", typeName(item))
			continue
		}
		header := accountHeader(tx, rowPath, report, false)
		key := header.AccountNumberText + "\x00" + header.CurrencyText
		pos, seen := index[key]
		if !seen {
			header.OpeningBalanceText, header.ClosingBalanceText = "", ""
			accounts = append(accounts, header)
			pos = len(accounts) - 1
			index[key] = pos
		}
		accounts[pos].Rows = append(accounts[pos].Rows, rowFromMap(tx, lines.next()))
	}
	return accounts
}

func rowFromMap(m map[string]any, line int) domain.CandidateRow {
	row := domain.CandidateRow{SourceLineIndex: line}
	row.DateText, _, _ = lookupText(m, aliasDate)
	row.DescriptionText, _, _ = lookupText(m, aliasDescription)
	row.DebitText, _, _ = lookupText(m, aliasDebit)
	row.CreditText, _, _ = lookupText(m, aliasCredit)
	row.AmountText, _, _ = lookupText(m, aliasAmount)
	row.BalanceText, _, _ = lookupText(m, aliasBalance)
	if page, _, ok := lookupText(m, []string{"page"}); ok {
		row.Page, _ = strconv.Atoi(page)
	}
	return row
}

// lookupText returns the first alias present in m as text, with a
// confidence that drops for values that are not already strings or exact
// numbers.
func lookupText(m map[string]any, aliases []string) (string, float64, bool) {
	for _, key := range aliases {
		v, ok := m[key]
		if !ok {
			continue
		}
		if text, conf, ok := textOf(v); ok {
			return text, conf, true
		}
	}
	return "", 0, false
}

func textOf(v any) (string, float64, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), 1, true
	case json.Number:
		return x.String(), 1, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), 0.9, true
	case int:
		return strconv.Itoa(x), 1, true
	case int64:
		return strconv.FormatInt(x, 10), 1, true
	default:
		return "", 0, false
	}
}

func joinPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
