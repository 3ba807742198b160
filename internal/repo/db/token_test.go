package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	md "github.com/gomarket-app/backend/internal/models"
	"github.com/gomarket-app/backend/internal/repo"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenColumns = []string{
	"id", "user_id", "jti", "token_hash", "status", "replaced_by",
	"expires_at", "ip", "user_agent", "created_at", "updated_at",
}

func tokenRow(t *md.RefreshToken) *sqlmock.Rows {
	return sqlmock.NewRows(tokenColumns).AddRow(
		t.ID, t.UserID, t.JTI, t.TokenHash, t.Status, t.ReplacedBy,
		t.ExpiresAt, t.IP, t.UserAgent, t.CreatedAt, t.UpdatedAt,
	)
}

func newTestToken(status md.TokenStatus, expiresAt time.Time) *md.RefreshToken {
	now := time.Now()
	return &md.RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		JTI:       uuid.New(),
		TokenHash: "a3f5b8c2d1e4f7a9b0c3d6e9f2a5b8c1d4e7f0a3b6c9d2e5f8a1b4c7d0e3f6a9",
		Status:    status,
		ExpiresAt: expiresAt,
		IP:        "192.168.1.1",
		UserAgent: "test-user-agent",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_CreateToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := &Repository{conn: sqlxDB}

	token := newTestToken(md.TokenStatusActive, time.Now().Add(time.Hour))

	tests := []struct {
		name        string
		mock        func()
		expectedErr error
	}{
		{
			name: "Success",
			mock: func() {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(tokenRotateOutFingerprintQ)).
					WithArgs(token.JTI, token.UserID, token.IP, token.UserAgent).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(tokenCreateQ)).
					WithArgs(token.UserID, token.JTI, token.TokenHash, token.ExpiresAt, token.IP, token.UserAgent).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
			expectedErr: nil,
		},
		{
			name: "DuplicateJTI",
			mock: func() {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(tokenRotateOutFingerprintQ)).
					WithArgs(token.JTI, token.UserID, token.IP, token.UserAgent).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta(tokenCreateQ)).
					WithArgs(token.UserID, token.JTI, token.TokenHash, token.ExpiresAt, token.IP, token.UserAgent).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
				mock.ExpectRollback()
			},
			expectedErr: repo.ErrAlreadyExists,
		},
		{
			name: "RotateOutError",
			mock: func() {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(tokenRotateOutFingerprintQ)).
					WithArgs(token.JTI, token.UserID, token.IP, token.UserAgent).
					WillReturnError(errors.New("database error"))
				mock.ExpectRollback()
			},
			expectedErr: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mock()

			err := r.CreateToken(context.Background(), token)
			if tt.expectedErr != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedErr.Error(), err.Error())
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_GetTokenByJTI(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := &Repository{conn: sqlxDB}

	token := newTestToken(md.TokenStatusActive, time.Now().Add(time.Hour))

	tests := []struct {
		name        string
		mock        func()
		expected    *md.RefreshToken
		expectedErr error
	}{
		{
			name: "Success",
			mock: func() {
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIQ)).
					WithArgs(token.JTI).
					WillReturnRows(tokenRow(token))
			},
			expected: token,
		},
		{
			name: "NotFound",
			mock: func() {
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIQ)).
					WithArgs(token.JTI).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: repo.ErrNotFound,
		},
		{
			name: "DatabaseError",
			mock: func() {
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIQ)).
					WithArgs(token.JTI).
					WillReturnError(errors.New("database error"))
			},
			expectedErr: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mock()

			res, err := r.GetTokenByJTI(context.Background(), token.JTI)
			if tt.expectedErr != nil {
				assert.Nil(t, res)
				assert.Equal(t, tt.expectedErr.Error(), err.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected.JTI, res.JTI)
				assert.Equal(t, tt.expected.TokenHash, res.TokenHash)
				assert.Equal(t, tt.expected.Status, res.Status)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_GetActiveTokenByFingerprint(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := &Repository{conn: sqlxDB}

	token := newTestToken(md.TokenStatusActive, time.Now().Add(time.Hour))

	tests := []struct {
		name        string
		mock        func()
		expected    *md.RefreshToken
		expectedErr error
	}{
		{
			name: "Success",
			mock: func() {
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetActiveByFingerprintQ)).
					WithArgs(token.UserID, token.IP, token.UserAgent).
					WillReturnRows(tokenRow(token))
			},
			expected: token,
		},
		{
			// Rotated, revoked and expired records are filtered in SQL, so
			// the driver reports no rows for them.
			name: "NoActiveHead",
			mock: func() {
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetActiveByFingerprintQ)).
					WithArgs(token.UserID, token.IP, token.UserAgent).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: repo.ErrNotFound,
		},
		{
			name: "DatabaseError",
			mock: func() {
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetActiveByFingerprintQ)).
					WithArgs(token.UserID, token.IP, token.UserAgent).
					WillReturnError(errors.New("database error"))
			},
			expectedErr: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mock()

			res, err := r.GetActiveTokenByFingerprint(
				context.Background(), token.UserID, token.IP, token.UserAgent,
			)
			if tt.expectedErr != nil {
				assert.Nil(t, res)
				assert.Equal(t, tt.expectedErr.Error(), err.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected.JTI, res.JTI)
				assert.Equal(t, md.TokenStatusActive, res.Status)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_RotateToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := &Repository{conn: sqlxDB}

	old := newTestToken(md.TokenStatusActive, time.Now().Add(time.Hour))
	next := newTestToken(md.TokenStatusActive, time.Now().Add(time.Hour))
	next.UserID = old.UserID

	tests := []struct {
		name        string
		presented   string
		mock        func()
		wantOld     bool
		expectedErr error
	}{
		{
			name:      "Success",
			presented: old.TokenHash,
			mock: func() {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIForUpdateQ)).
					WithArgs(old.JTI).
					WillReturnRows(tokenRow(old))
				mock.ExpectExec(regexp.QuoteMeta(tokenCreateQ)).
					WithArgs(next.UserID, next.JTI, next.TokenHash, next.ExpiresAt, next.IP, next.UserAgent).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec(regexp.QuoteMeta(tokenRotateQ)).
					WithArgs(next.JTI, old.JTI).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			wantOld: true,
		},
		{
			name:      "UnknownJTI",
			presented: old.TokenHash,
			mock: func() {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIForUpdateQ)).
					WithArgs(old.JTI).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			expectedErr: repo.ErrNotFound,
		},
		{
			name:      "HashMismatch",
			presented: "deadbeef",
			mock: func() {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIForUpdateQ)).
					WithArgs(old.JTI).
					WillReturnRows(tokenRow(old))
				mock.ExpectRollback()
			},
			expectedErr: repo.ErrNotFound,
		},
		{
			name:      "AlreadyRotated",
			presented: old.TokenHash,
			mock: func() {
				rotated := *old
				rotated.Status = md.TokenStatusRotated
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIForUpdateQ)).
					WithArgs(old.JTI).
					WillReturnRows(tokenRow(&rotated))
				mock.ExpectRollback()
			},
			wantOld:     true,
			expectedErr: repo.ErrTokenReused,
		},
		{
			name:      "Revoked",
			presented: old.TokenHash,
			mock: func() {
				revoked := *old
				revoked.Status = md.TokenStatusRevoked
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIForUpdateQ)).
					WithArgs(old.JTI).
					WillReturnRows(tokenRow(&revoked))
				mock.ExpectRollback()
			},
			wantOld:     true,
			expectedErr: repo.ErrTokenReused,
		},
		{
			name:      "Expired",
			presented: old.TokenHash,
			mock: func() {
				expired := *old
				expired.ExpiresAt = time.Now().Add(-time.Hour)
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIForUpdateQ)).
					WithArgs(old.JTI).
					WillReturnRows(tokenRow(&expired))
				mock.ExpectRollback()
			},
			wantOld:     true,
			expectedErr: repo.ErrTokenExpired,
		},
		{
			name:      "LostRace",
			presented: old.TokenHash,
			mock: func() {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(tokenGetByJTIForUpdateQ)).
					WithArgs(old.JTI).
					WillReturnRows(tokenRow(old))
				mock.ExpectExec(regexp.QuoteMeta(tokenCreateQ)).
					WithArgs(next.UserID, next.JTI, next.TokenHash, next.ExpiresAt, next.IP, next.UserAgent).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec(regexp.QuoteMeta(tokenRotateQ)).
					WithArgs(next.JTI, old.JTI).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantOld:     true,
			expectedErr: repo.ErrTokenReused,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mock()

			res, err := r.RotateToken(context.Background(), old.JTI, tt.presented, next)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}

			if tt.wantOld {
				require.NotNil(t, res)
				assert.Equal(t, old.JTI, res.JTI)
			} else {
				assert.Nil(t, res)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_RevokeToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := &Repository{conn: sqlxDB}

	jti := uuid.New()

	tests := []struct {
		name        string
		mock        func()
		expectedErr error
	}{
		{
			name: "Success",
			mock: func() {
				mock.ExpectExec(regexp.QuoteMeta(tokenRevokeQ)).
					WithArgs(jti).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "AlreadyDeadIsNoop",
			mock: func() {
				mock.ExpectExec(regexp.QuoteMeta(tokenRevokeQ)).
					WithArgs(jti).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(tokenExistsQ)).
					WithArgs(jti).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
		},
		{
			name: "NotFound",
			mock: func() {
				mock.ExpectExec(regexp.QuoteMeta(tokenRevokeQ)).
					WithArgs(jti).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(tokenExistsQ)).
					WithArgs(jti).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			expectedErr: repo.ErrNotFound,
		},
		{
			name: "DatabaseError",
			mock: func() {
				mock.ExpectExec(regexp.QuoteMeta(tokenRevokeQ)).
					WithArgs(jti).
					WillReturnError(errors.New("database error"))
			},
			expectedErr: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mock()

			err := r.RevokeToken(context.Background(), jti)
			if tt.expectedErr != nil {
				assert.Equal(t, tt.expectedErr.Error(), err.Error())
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_RevokeUserTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := &Repository{conn: sqlxDB}

	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(tokenRevokeAllQ)).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.NoError(t, r.RevokeUserTokens(context.Background(), userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteStaleTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	r := &Repository{conn: sqlxDB}

	tests := []struct {
		name        string
		mock        func()
		expected    int64
		expectedErr error
	}{
		{
			name: "Success",
			mock: func() {
				mock.ExpectExec(regexp.QuoteMeta(tokenDeleteStaleQ)).
					WithArgs(sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 5))
			},
			expected: 5,
		},
		{
			name: "DatabaseError",
			mock: func() {
				mock.ExpectExec(regexp.QuoteMeta(tokenDeleteStaleQ)).
					WithArgs(sqlmock.AnyArg()).
					WillReturnError(errors.New("database error"))
			},
			expectedErr: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mock()

			n, err := r.DeleteStaleTokens(context.Background(), time.Hour)
			if tt.expectedErr != nil {
				assert.Equal(t, tt.expectedErr.Error(), err.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, n)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
