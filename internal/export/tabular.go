package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

const (
	transactionsSheet = "Transactions"
	accountsSheet     = "Accounts"
)

// WriteCSV writes one row per transaction with a header line.
func WriteCSV(w io.Writer, st domain.Statement) error {
	rows := Rows(st)
	if rows == nil {
		rows = []TransactionRow{}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with a Transactions sheet and an Accounts
// summary sheet.
func WriteXLSX(w io.Writer, st domain.Statement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("WriteXLSX: rename sheet: %w", err)
	}
	header := []any{"Bank", "Account Number", "Account Name", "Currency", "Date", "Description", "Debit", "Credit", "Balance", "Note"}
	if err := setRow(f, transactionsSheet, 1, header); err != nil {
		return err
	}
	for i, r := range Rows(st) {
		row := []any{r.BankName, r.AccountNumber, r.AccountName, r.Currency, r.Date, r.Description, r.Debit, r.Credit, r.Balance, r.Note}
		if err := setRow(f, transactionsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(accountsSheet); err != nil {
		return fmt.Errorf("WriteXLSX: add sheet: %w", err)
	}
	if err := setRow(f, accountsSheet, 1, []any{"Account Number", "Account Name", "Currency", "Opening Balance", "Closing Balance", "Transactions", "Note"}); err != nil {
		return err
	}
	for i, a := range st.Accounts {
		row := []any{a.AccountNumber, a.AccountName, a.Currency, a.OpeningBalance.String(), a.ClosingBalance.String(), len(a.Transactions), strings.Join(a.Notes, "; ")}
		if err := setRow(f, accountsSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("WriteXLSX: write %s row %d: %w", sheet, row, err)
	}
	return nil
}
