package postgres

import (
	"encoding/hex"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"vidshare/internal/domain"
)

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func uuidOrEmpty(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuidBytesToString(u.Bytes)
}

func uuidBytesToString(b [16]byte) string {
	var buf [36]byte
	hex.Encode(buf[0:8], b[0:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], b[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], b[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], b[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:36], b[10:16])
	return string(buf[:])
}

// parseUUID reports ok=false for ids that cannot name a row, so lookups can
// answer ErrNotFound without a round trip.
func parseUUID(id string) (pgtype.UUID, bool) {
	var u pgtype.UUID
	if err := u.Scan(id); err != nil {
		return pgtype.UUID{}, false
	}
	return u, true
}

func pgErrorCode(err error) (string, string) {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return pgerr.Code, pgerr.ConstraintName
	}
	return "", ""
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func notFoundIfMissingFK(err error) error {
	if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
		return domain.ErrNotFound
	}
	return nil
}
