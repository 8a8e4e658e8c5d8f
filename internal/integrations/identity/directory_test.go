package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"jobboard-messaging/internal/domain"
)

// fakeRow scans a fixed set of column values.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = r.values[i].(string)
		case **string:
			if r.values[i] == nil {
				*ptr = nil
				continue
			}
			v := r.values[i].(string)
			*ptr = &v
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

type fakeDB struct {
	row     fakeRow
	gotSQL  string
	gotArgs []any
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.gotSQL = sql
	f.gotArgs = args
	return f.row
}

func newTestDirectory(t *testing.T, db *fakeDB) *Directory {
	t.Helper()
	d, err := NewDirectory(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return d
}

func TestGetUserProfile_Found(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{"U1", "Ada Lovelace", "https://img/ada.png"}}}
	d := newTestDirectory(t, db)

	p, err := d.GetUserProfile(context.Background(), " U1 ")
	require.NoError(t, err)
	require.Equal(t, &domain.UserProfile{ID: "U1", FullName: "Ada Lovelace", Avatar: "https://img/ada.png"}, p)
	require.Equal(t, profileQuery, db.gotSQL)
	require.Equal(t, []any{"U1"}, db.gotArgs)
}

func TestGetUserProfile_NullAvatar(t *testing.T) {
	d := newTestDirectory(t, &fakeDB{row: fakeRow{values: []any{"U2", "Bo Diddley", nil}}})

	p, err := d.GetUserProfile(context.Background(), "U2")
	require.NoError(t, err)
	require.Empty(t, p.Avatar)
}

func TestGetUserProfile_NotFound(t *testing.T) {
	d := newTestDirectory(t, &fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	p, err := d.GetUserProfile(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestGetUserProfile_QueryError(t *testing.T) {
	d := newTestDirectory(t, &fakeDB{row: fakeRow{err: errors.New("connection reset")}})

	_, err := d.GetUserProfile(context.Background(), "U1")
	require.ErrorContains(t, err, "identity: GetUserProfile: connection reset")
}

func TestGetUserProfile_BlankIDSkipsQuery(t *testing.T) {
	db := &fakeDB{}
	d := newTestDirectory(t, db)

	p, err := d.GetUserProfile(context.Background(), "  ")
	require.NoError(t, err)
	require.Nil(t, p)
	require.Empty(t, db.gotSQL)
}

func TestNewDirectory_NilDB(t *testing.T) {
	_, err := NewDirectory(nil, nil)
	require.Error(t, err)
}

func TestStaticDirectory(t *testing.T) {
	d := NewStaticDirectory(domain.UserProfile{ID: "U1", FullName: "Ada"})
	d.Put(domain.UserProfile{ID: "U2", FullName: "Bo"})

	p, err := d.GetUserProfile(context.Background(), "U2")
	require.NoError(t, err)
	require.Equal(t, "Bo", p.FullName)

	p, err = d.GetUserProfile(context.Background(), "U9")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestNormalizeDSN(t *testing.T) {
	require.Equal(t, "postgresql://u:p@h/db", normalizeDSN(" postgresql+asyncpg://u:p@h/db "))
	require.Equal(t, "postgres://u@h/db", normalizeDSN("postgres+pgx://u@h/db"))
	require.Equal(t, "postgres://u@h/db", normalizeDSN("postgres://u@h/db"))
}
