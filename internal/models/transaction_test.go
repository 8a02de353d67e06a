package models

import (
	"testing"
	"time"
)

func TestDirection(t *testing.T) {
	tests := []struct {
		name      string
		record    TransactionRecord
		accountId int64
		want      string
	}{
		{
			name:      "deposit is incoming",
			record:    TransactionRecord{TransactionType: TransactionTypeDeposit},
			accountId: 1,
			want:      "+",
		},
		{
			name:      "withdrawal is outgoing",
			record:    TransactionRecord{TransactionType: TransactionTypeWithdrawal},
			accountId: 1,
			want:      "-",
		},
		{
			name: "transfer from the viewed account",
			record: TransactionRecord{
				TransactionType: TransactionTypeTransfer,
				FromAccount:     &AccountRef{Id: 1},
				ToAccount:       &AccountRef{Id: 2},
			},
			accountId: 1,
			want:      "-",
		},
		{
			name: "transfer into the viewed account",
			record: TransactionRecord{
				TransactionType: TransactionTypeTransfer,
				FromAccount:     &AccountRef{Id: 1},
				ToAccount:       &AccountRef{Id: 2},
			},
			accountId: 2,
			want:      "+",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Direction(tt.accountId); got != tt.want {
				t.Errorf("Direction(%d) = %q, want %q", tt.accountId, got, tt.want)
			}
		})
	}
}

func TestTimeDisplay(t *testing.T) {
	record := TransactionRecord{CreatedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)}
	if got := record.TimeDisplay(); got != "2025-03-14 09:26:53" {
		t.Errorf("TimeDisplay() = %q", got)
	}
}
