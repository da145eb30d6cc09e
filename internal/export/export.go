// Package export renders processing results as JSON, YAML, CSV or XLSX.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrNoStatement is returned by the tabular formats for a failed result.
var ErrNoStatement = errors.New("result has no statement")

// ParseFormat reads a --format flag value or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("ParseFormat: unknown format %q", s)
}

// Write renders res in format f. JSON and YAML carry the full envelope;
// CSV and XLSX carry the statement's transactions.
func Write(w io.Writer, f Format, res pipeline.Result) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatYAML:
		return WriteYAML(w, res)
	case FormatCSV, FormatXLSX:
		if res.Data == nil {
			return ErrNoStatement
		}
		if f == FormatCSV {
			return WriteCSV(w, *res.Data)
		}
		return WriteXLSX(w, *res.Data)
	}
	return fmt.Errorf("Write: unknown format %q", f)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("WriteJSON: %w", err)
	}
	return nil
}

// WriteYAML writes v as block-style YAML with the same keys and number
// literals as its JSON form.
func WriteYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("WriteYAML: encode json: %w", err)
	}

	// JSON is valid YAML; decoding into a node keeps "850.50" as written.
	var node yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		return fmt.Errorf("WriteYAML: decode: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("WriteYAML: encode: %w", err)
	}
	return enc.Close()
}

// blockStyle clears the flow and quoting styles decoded from JSON. The
// encoder still quotes strings that would otherwise read back as another type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// TransactionRow is one flattened transaction for tabular output.
type TransactionRow struct {
	BankName      string `csv:"bank_name"`
	AccountNumber string `csv:"account_number"`
	AccountName   string `csv:"account_name"`
	Currency      string `csv:"currency"`
	Date          string `csv:"date"`
	Description   string `csv:"description"`
	Debit         string `csv:"debit"`
	Credit        string `csv:"credit"`
	Balance       string `csv:"balance"`
	Note          string `csv:"note"`
}

// Rows flattens a statement, accounts in order.
func Rows(st domain.Statement) []TransactionRow {
	var rows []TransactionRow
	for _, a := range st.Accounts {
		for _, tx := range a.Transactions {
			rows = append(rows, TransactionRow{
				BankName:      st.BankName,
				AccountNumber: a.AccountNumber,
				AccountName:   a.AccountName,
				Currency:      a.Currency,
				Date:          tx.Date.String(),
				Description:   tx.Description,
				Debit:         optionalMoney(tx.Debit),
				Credit:        optionalMoney(tx.Credit),
				Balance:       tx.Balance.String(),
				Note:          tx.Note(),
			})
		}
	}
	return rows
}

func optionalMoney(m *domain.Money) string {
	if m == nil {
		return ""
	}
	return m.String()
}
