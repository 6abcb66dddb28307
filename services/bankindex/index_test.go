package bankindex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"lendcore/core/events"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return db
}

var usdt = common.HexToAddress("0x00000000000000000000000000000000000000c2")

func TestIndexRecordsAndFilters(t *testing.T) {
	db := setupTestDB(t)
	idx, err := New(db, nil)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	idx.Emit(events.BankListed{Underlying: usdt, Wrapped: common.HexToAddress("0x01"), Index: 0})
	idx.Emit(events.CollateralPut{PositionID: 1, Token: common.HexToAddress("0x02"), Amount: big.NewInt(10)})
	idx.Emit(events.Borrow{PositionID: 1, Bank: usdt, Amount: big.NewInt(3), Shares: big.NewInt(3)})
	idx.Emit(events.Borrow{PositionID: 2, Bank: usdt, Amount: big.NewInt(4), Shares: big.NewInt(4)})
	idx.Emit(events.Executed{PositionID: 1, ExecutionID: "exec-1", Spell: "household"})

	ctx := context.Background()
	all, err := idx.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}
	for i, entry := range all {
		if entry.Sequence != uint64(i+1) {
			t.Fatalf("entry %d has sequence %d", i, entry.Sequence)
		}
	}

	pos1, err := idx.List(ctx, Filter{PositionID: 1})
	if err != nil {
		t.Fatalf("list position: %v", err)
	}
	if len(pos1) != 3 || pos1[2].Event.Type != events.TypeExecute {
		t.Fatalf("unexpected position 1 events: %+v", pos1)
	}
	if pos1[1].Event.Attributes["amount"] != "3" {
		t.Fatalf("attributes not round-tripped: %+v", pos1[1].Event.Attributes)
	}

	borrows, err := idx.List(ctx, Filter{Type: events.TypeBorrow, Bank: usdt.Hex()})
	if err != nil {
		t.Fatalf("list borrows: %v", err)
	}
	if len(borrows) != 2 {
		t.Fatalf("expected 2 borrows, got %d", len(borrows))
	}
	listed, err := idx.List(ctx, Filter{Bank: usdt.Hex(), Type: events.TypeBankListed})
	if err != nil || len(listed) != 1 {
		t.Fatalf("bank listing should be indexed by underlying: %v %v", listed, err)
	}

	page, err := idx.List(ctx, Filter{AfterSeq: 3, Limit: 1})
	if err != nil || len(page) != 1 || page[0].Sequence != 4 {
		t.Fatalf("unexpected page: %+v err=%v", page, err)
	}
}

func TestIndexResumesSequence(t *testing.T) {
	db := setupTestDB(t)
	first, err := New(db, nil)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	first.Emit(events.Borrow{PositionID: 1, Bank: usdt})
	first.Emit(events.Repay{PositionID: 1, Bank: usdt})

	second, err := New(db, nil)
	if err != nil {
		t.Fatalf("reopen index: %v", err)
	}
	if err := second.Record(context.Background(), events.Repay{PositionID: 1, Bank: usdt}); err != nil {
		t.Fatalf("record: %v", err)
	}
	all, _ := second.List(context.Background(), Filter{})
	if len(all) != 3 || all[2].Sequence != 3 {
		t.Fatalf("sequence did not resume: %+v", all)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open("  ", nil); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
