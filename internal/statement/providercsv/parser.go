package providercsv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	enc "github.com/MrJamesThe3rd/payflow/internal/encoding"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/statement"
)

// Parser reads one provider's settlement exports. The header row is
// located by matching column names, so preamble lines above it are skipped.
type Parser struct {
	profile Profile
}

func NewParser(p Profile) *Parser {
	return &Parser{profile: p}
}

func (p *Parser) Parse(r io.Reader) ([]statement.Line, error) {
	utf8r, err := enc.NewUTF8Reader(r, p.profile.Encoding)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	// Windows-1258 spells most Vietnamese letters with combining marks.
	data = norm.NFC.Bytes(data)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = p.profile.Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		rows     [][]string
		lineNums []int
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		// Blank lines are skipped by the reader, so record indexes drift
		// from file lines.
		line, _ := reader.FieldPos(0)
		rows = append(rows, row)
		lineNums = append(lineNums, line)
	}

	cols, headerIdx, ok := findHeader(&p.profile, rows)
	if !ok {
		return nil, fmt.Errorf("not a %s export: expected columns %s",
			p.profile.Name, strings.Join(p.profile.requiredCols(), ", "))
	}

	return parseRows(&p.profile, cols, rows[headerIdx+1:], lineNums[headerIdx+1:])
}

// colIndex maps column names to their index in the row.
type colIndex map[string]int

// findHeader returns the first row carrying every column the profile needs.
// Names are compared case-insensitively.
func findHeader(p *Profile, rows [][]string) (colIndex, int, bool) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			if name != "" {
				cols[name] = i
			}
		}

		if hasCols(p, cols) {
			return cols, rowIdx, true
		}
	}

	return nil, 0, false
}

func hasCols(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[strings.ToLower(name)]; !ok {
			return false
		}
	}

	return true
}

func (c colIndex) get(name string) int {
	if name == "" {
		return -1
	}

	idx, ok := c[strings.ToLower(name)]
	if !ok {
		return -1
	}

	return idx
}

// parseRows turns data rows into lines. Rows without a transaction id are
// totals or footers and are skipped. lineNums holds the 1-based file line
// of each row, used for Line.Row and error messages.
func parseRows(p *Profile, cols colIndex, rows [][]string, lineNums []int) ([]statement.Line, error) {
	var (
		txIdx       = cols.get(p.TxCol)
		amountIdx   = cols.get(p.AmountCol)
		currencyIdx = cols.get(p.CurrencyCol)
		statusIdx   = cols.get(p.StatusCol)
		dateIdx     = cols.get(p.DateCol)
	)

	var lines []statement.Line

	for i, row := range rows {
		rowNum := lineNums[i]

		txID := cellValue(row, txIdx)
		if txID == "" {
			continue
		}

		amount, err := parseAmount(cellValue(row, amountIdx), p.Numbers)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid amount %q", rowNum, cellValue(row, amountIdx))
		}

		currency := p.Currency
		if currencyIdx >= 0 {
			currency, err = payment.ParseCurrency(cellValue(row, currencyIdx))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", rowNum, err)
			}
		}

		raw := cellValue(row, statusIdx)

		status, ok := p.Statuses[strings.ToLower(raw)]
		if !ok {
			return nil, fmt.Errorf("row %d: unknown status %q", rowNum, raw)
		}

		lines = append(lines, statement.Line{
			Row:           rowNum,
			TransactionID: txID,
			Amount:        amount,
			Currency:      currency,
			Status:        status,
			Date:          parseDate(row, dateIdx, p.DateLayout),
		})
	}

	return lines, nil
}

// parseDate returns the zero time for missing or unparseable cells. The
// date is informational only.
func parseDate(row []string, idx int, layout string) time.Time {
	s := cellValue(row, idx)
	if s == "" || layout == "" {
		return time.Time{}
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}
	}

	return t
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
