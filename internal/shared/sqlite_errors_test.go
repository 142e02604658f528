//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestSQLiteErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
		unique   bool
		fk       bool
	}{
		{"nil", nil, false, false, false},
		{"busy", errors.New("exec: SQLITE_BUSY"), true, false, false},
		{"locked", fmt.Errorf("commit: %w", errors.New("database is locked (5)")), true, false, false},
		{"unique", errors.New("constraint failed: UNIQUE constraint failed: users.external_id (2067)"), false, true, false},
		{"fk", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), false, false, true},
		{"other", errors.New("no such table: steps"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSQLiteConflictError(tt.err); got != tt.conflict {
				t.Errorf("IsSQLiteConflictError() = %v, want %v", got, tt.conflict)
			}
			if got := IsSQLiteUniqueError(tt.err); got != tt.unique {
				t.Errorf("IsSQLiteUniqueError() = %v, want %v", got, tt.unique)
			}
			if got := IsSQLiteForeignKeyError(tt.err); got != tt.fk {
				t.Errorf("IsSQLiteForeignKeyError() = %v, want %v", got, tt.fk)
			}
		})
	}
}
