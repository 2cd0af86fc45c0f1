// Package ofx imports OFX/QFX statements as single-sided ledger transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	// Banks emit Info/Warn/Error where ofxgo insists on upper case.
	severityTag = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// SGML exports sometimes drop the closing bracket of a bare tag line.
	unclosedTag = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	// Posting date some banks prefix to the payee, e.g. "01/15 COFFEE".
	leadingDate = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
)

// cardPrefixes are processor boilerplate stripped from the start of payees.
var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"DEBIT PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
}

// placeholderNames carry no payee information; the memo is used instead.
var placeholderNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// Statement is the result of parsing one file.
type Statement struct {
	// AccountNumbers are the institution's account numbers found in the
	// file, sorted and de-duplicated.
	AccountNumbers []string
	Transactions   []model.Transaction
	Skipped        int
}

// Parser reads OFX and QFX files.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// statementList is a bank or card statement reduced to what the importer
// needs.
type statementList struct {
	number string
	unit   string
	lines  []ofxgo.Transaction
}

// Parse reads a statement file and books every non-zero line as a
// transaction with one entry on accountID. Money leaving the account is a
// credit and money arriving a debit; the offsetting side is left for rules.
func (p *Parser) Parse(ctx context.Context, r io.Reader, accountID string) (*Statement, error) {
	lists, err := readStatements(r)
	if err != nil {
		return nil, err
	}

	stmt := &Statement{}
	for _, list := range lists {
		if list.number != "" && !slices.Contains(stmt.AccountNumbers, list.number) {
			stmt.AccountNumbers = append(stmt.AccountNumbers, list.number)
		}
		for i := range list.lines {
			txn, ok := bookLine(&list.lines[i], accountID, list.unit)
			if !ok {
				stmt.Skipped++
				continue
			}
			stmt.Transactions = append(stmt.Transactions, txn)
		}
	}
	slices.Sort(stmt.AccountNumbers)

	slog.InfoContext(ctx, "Parsed OFX statement",
		"statements", len(lists),
		"transactions", len(stmt.Transactions),
		"skipped", stmt.Skipped)
	return stmt, nil
}

func readStatements(r io.Reader) ([]statementList, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(sanitize(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var lists []statementList
	for _, msg := range resp.Bank {
		if s, ok := msg.(*ofxgo.StatementResponse); ok && s.BankTranList != nil {
			lists = append(lists, statementList{
				number: string(s.BankAcctFrom.AcctID),
				unit:   unitOf(s.CurDef),
				lines:  s.BankTranList.Transactions,
			})
		}
	}
	for _, msg := range resp.CreditCard {
		if s, ok := msg.(*ofxgo.CCStatementResponse); ok && s.BankTranList != nil {
			lists = append(lists, statementList{
				number: string(s.CCAcctFrom.AcctID),
				unit:   unitOf(s.CurDef),
				lines:  s.BankTranList.Transactions,
			})
		}
	}
	return lists, nil
}

func sanitize(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityTag.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTag.ReplaceAllString(content, "$1>")
}

func unitOf(cur ofxgo.CurrSymbol) string {
	if ok, _ := cur.Valid(); !ok {
		return model.DefaultUnit
	}
	return cur.String()
}

// bookLine converts one statement line; zero amounts are not booked.
func bookLine(line *ofxgo.Transaction, accountID, unit string) (model.Transaction, bool) {
	amount, err := decimal.NewFromString(line.TrnAmt.FloatString(2))
	if err != nil || amount.IsZero() {
		return model.Transaction{}, false
	}

	side := model.Debit
	if amount.IsNegative() {
		side = model.Credit
	}

	payee := payeeName(line)
	txn := model.Transaction{
		Date:        line.DtPosted.Time,
		Description: payee,
		Reference:   string(line.FiTID),
		Entries: []model.Entry{{
			AccountID:   accountID,
			Type:        side,
			Amount:      amount.Abs(),
			Unit:        unit,
			Description: payee,
		}},
	}
	if line.CheckNum != "" {
		txn.Notes = "check " + string(line.CheckNum)
	}
	return txn, true
}

// payeeName picks the most descriptive name on a line: PAYEE, then NAME, then
// MEMO when NAME is a placeholder. Card processor prefixes and a leading
// MM/DD are removed.
func payeeName(line *ofxgo.Transaction) string {
	if line.Payee != nil && line.Payee.Name != "" {
		return string(line.Payee.Name)
	}

	name := strings.TrimSpace(string(line.Name))
	if line.Memo != "" && placeholderNames[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(line.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}
	return leadingDate.ReplaceAllString(name, "")
}
