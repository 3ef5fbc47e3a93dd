package compliance

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKeyword(t *testing.T) {
	cases := map[string]Keyword{
		"STOP":                KeywordStop,
		"  stop  ":            KeywordStop,
		"Unsubscribe":         KeywordStop,
		"quit":                KeywordStop,
		"CANCEL":              KeywordStop,
		"end.":                KeywordStop,
		"Start":               KeywordStart,
		"please stop texting": KeywordNone,
		"hello":               KeywordNone,
		"":                    KeywordNone,
	}
	for body, want := range cases {
		assert.Equal(t, want, ClassifyKeyword(body), "body %q", body)
	}
}

func TestMemoryLedger_OptOutOptInIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	require.NoError(t, l.OptOut(ctx, "t1", "+15125550101"))
	require.NoError(t, l.OptOut(ctx, "t1", "+15125550101"))

	out, err := l.IsOptedOut(ctx, "t1", "+15125550101")
	require.NoError(t, err)
	assert.True(t, out)

	out, err = l.IsOptedOut(ctx, "t2", "+15125550101")
	require.NoError(t, err)
	assert.False(t, out)

	require.NoError(t, l.OptIn(ctx, "t1", "+15125550101"))
	out, _ = l.IsOptedOut(ctx, "t1", "+15125550101")
	assert.False(t, out)

	assert.ErrorIs(t, l.OptOut(ctx, "", "+1"), ErrInvalidArgument)
}

func TestFilterRecipients(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.OptOut(ctx, "t1", "+15125550102"))

	kept, excluded, err := FilterRecipients(ctx, l, "t1", []string{"+15125550101", "+15125550102", "+15125550103"})
	require.NoError(t, err)
	assert.Equal(t, []string{"+15125550101", "+15125550103"}, kept)
	assert.Equal(t, 1, excluded)
}

// passthrough lets slice arguments reach the mock the way pgx accepts them.
type passthrough struct{}

func (passthrough) ConvertValue(v any) (driver.Value, error) { return v, nil }

func TestPostgresLedger_OptedOutAmong(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthrough{}))
	require.NoError(t, err)
	defer db.Close()
	l := NewPostgresLedger(db)

	mock.ExpectQuery(`SELECT phone FROM opt_outs WHERE tenant_id = \$1 AND phone = ANY\(\$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"phone"}).AddRow("+15125550102"))

	res, err := l.OptedOutAmong(context.Background(), "t1", []string{"+15125550101", "+15125550102"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"+15125550102": true}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_OptOutUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	l := NewPostgresLedger(db)

	mock.ExpectExec(`INSERT INTO opt_outs .* ON CONFLICT \(tenant_id, phone\) DO NOTHING`).
		WithArgs("t1", "+15125550101").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, l.OptOut(context.Background(), "t1", "+15125550101"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
