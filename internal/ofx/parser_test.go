package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ofxHeader = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

`

const signon = `<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240601090000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
`

// checkingStatement has a card purchase, a payroll deposit, a zero-amount
// fee reversal and a check.
const checkingStatement = ofxHeader + `<OFX>
` + signon + `<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>7
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>021000021
<ACCTID>000555123
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240501000000[0:GMT]
<DTEND>20240531000000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240503100000[0:GMT]
<TRNAMT>-18.25
<FITID>CHK-0503-1
<NAME>POS PURCHASE CORNER GROCERY
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240515100000[0:GMT]
<TRNAMT>2400.00
<FITID>CHK-0515-1
<NAME>ACME PAYROLL
</STMTTRN>
<STMTTRN>
<TRNTYPE>OTHER
<DTPOSTED>20240516100000[0:GMT]
<TRNAMT>0.00
<FITID>CHK-0516-1
<NAME>FEE REVERSAL
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240520100000[0:GMT]
<TRNAMT>-900.00
<FITID>CHK-0520-1
<CHECKNUM>311
<NAME>CHECK 311
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>3100.00
<DTASOF>20240531000000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const cardStatement = ofxHeader + `<OFX>
` + signon + `<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>8
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>EUR
<CCACCTFROM>
<ACCTID>5500000000000004
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240501000000[0:GMT]
<DTEND>20240531000000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240507100000[0:GMT]
<TRNAMT>-62.40
<FITID>CC-0507-1
<NAME>PAYMENT
<MEMO>RAIL TICKETS
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240525100000[0:GMT]
<TRNAMT>500.00
<FITID>CC-0525-1
<NAME>THANK YOU FOR YOUR PAYMENT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-62.40
<DTASOF>20240531000000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantNumbers []string
		wantBooked  int
		wantSkipped int
		expectError bool
	}{
		{name: "checking statement", data: checkingStatement, wantNumbers: []string{"000555123"}, wantBooked: 3, wantSkipped: 1},
		{name: "card statement", data: cardStatement, wantNumbers: []string{"5500000000000004"}, wantBooked: 2},
		{name: "leading blank lines", data: "\n\n  " + cardStatement, wantNumbers: []string{"5500000000000004"}, wantBooked: 2},
		{name: "not ofx", data: "date,amount\n2024-05-01,10", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := NewParser().Parse(context.Background(), strings.NewReader(tt.data), "checking")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNumbers, stmt.AccountNumbers)
			assert.Len(t, stmt.Transactions, tt.wantBooked)
			assert.Equal(t, tt.wantSkipped, stmt.Skipped)
		})
	}
}

func TestParse_CheckingLines(t *testing.T) {
	stmt, err := NewParser().Parse(context.Background(), strings.NewReader(checkingStatement), "checking")
	require.NoError(t, err)
	require.Len(t, stmt.Transactions, 3)

	purchase := stmt.Transactions[0]
	assert.Equal(t, "CORNER GROCERY", purchase.Description)
	assert.Equal(t, "CHK-0503-1", purchase.Reference)
	assert.Equal(t, time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC), purchase.Date.UTC())
	assert.False(t, purchase.IsBalanced)
	require.Len(t, purchase.Entries, 1)
	entry := purchase.Entries[0]
	assert.Equal(t, "checking", entry.AccountID)
	assert.Equal(t, model.Credit, entry.Type)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("18.25")))
	assert.Equal(t, "USD", entry.Unit)

	payroll := stmt.Transactions[1]
	assert.Equal(t, model.Debit, payroll.Entries[0].Type)
	assert.True(t, payroll.Entries[0].Amount.Equal(decimal.RequireFromString("2400")))

	assert.Equal(t, "check 311", stmt.Transactions[2].Notes)
}

func TestParse_CardLines(t *testing.T) {
	stmt, err := NewParser().Parse(context.Background(), strings.NewReader(cardStatement), "card")
	require.NoError(t, err)
	require.Len(t, stmt.Transactions, 2)

	tickets := stmt.Transactions[0]
	assert.Equal(t, "RAIL TICKETS", tickets.Description)
	assert.Equal(t, "EUR", tickets.Entries[0].Unit)
	assert.Equal(t, "card", tickets.Entries[0].AccountID)
	assert.Equal(t, model.Credit, tickets.Entries[0].Type)
	assert.Equal(t, model.Debit, stmt.Transactions[1].Entries[0].Type)
}

func TestPayeeName(t *testing.T) {
	tests := []struct {
		name string
		line ofxgo.Transaction
		want string
	}{
		{name: "payee aggregate wins", line: ofxgo.Transaction{
			Name: "SQ *BLUE DOOR", Payee: &ofxgo.Payee{Name: "Blue Door Cafe"},
		}, want: "Blue Door Cafe"},
		{name: "card prefix", line: ofxgo.Transaction{Name: "CHECK CARD HARDWARE DEPOT"}, want: "HARDWARE DEPOT"},
		{name: "lower case prefix", line: ofxgo.Transaction{Name: "Visa Purchase Bookshop"}, want: "Bookshop"},
		{name: "leading posting date", line: ofxgo.Transaction{Name: "05/14 CITY PARKING"}, want: "CITY PARKING"},
		{name: "placeholder uses memo", line: ofxgo.Transaction{Name: "DEBIT", Memo: " WATER UTILITY "}, want: "WATER UTILITY"},
		{name: "placeholder without memo", line: ofxgo.Transaction{Name: "CREDIT"}, want: "CREDIT"},
		{name: "surrounding space", line: ofxgo.Transaction{Name: "  LIBRARY FINES  "}, want: "LIBRARY FINES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payeeName(&tt.line))
		})
	}
}

func TestBookLine(t *testing.T) {
	var amount ofxgo.Amount
	_, ok := amount.SetString("75.10")
	require.True(t, ok)

	txn, ok := bookLine(&ofxgo.Transaction{
		TrnAmt:   amount,
		FiTID:    "DEP1",
		Name:     "REFUND",
		DtPosted: ofxgo.Date{Time: time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)},
	}, "travel", "EUR")
	require.True(t, ok)
	assert.Equal(t, model.Debit, txn.Entries[0].Type)
	assert.Equal(t, "EUR", txn.Entries[0].Unit)
	assert.Equal(t, "DEP1", txn.Reference)

	_, ok = bookLine(&ofxgo.Transaction{FiTID: "ZERO"}, "travel", "EUR")
	assert.False(t, ok)
}
