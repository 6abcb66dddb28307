package bankindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lendcore/core/events"
	"lendcore/core/types"
)

const defaultLimit = 100

const maxLimit = 1000

// Index persists committed bank events so positions can be audited after
// the fact. It satisfies events.Emitter.
type Index struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	seq uint64
}

// Open connects to dsn. postgres:// and postgresql:// URLs (or key=value
// strings starting with host=) use Postgres; anything else is treated as a
// SQLite path or URI.
func Open(dsn string, log *slog.Logger) (*Index, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("bankindex: dsn required")
	}
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.HasPrefix(dsn, "host="):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("bankindex: open: %w", err)
	}
	return New(db, log)
}

// New migrates db and resumes the sequence counter.
func New(db *gorm.DB, log *slog.Logger) (*Index, error) {
	if db == nil {
		return nil, errors.New("bankindex: db required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("bankindex: migrate: %w", err)
	}
	var last struct{ Max uint64 }
	if err := db.Model(&EventRecord{}).Select("COALESCE(MAX(sequence), 0) AS max").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("bankindex: resume sequence: %w", err)
	}
	return &Index{db: db, logger: log, now: time.Now, seq: last.Max}, nil
}

// Emit records evt, logging failures since emitters cannot report them.
func (i *Index) Emit(evt events.Event) {
	if err := i.Record(context.Background(), evt); err != nil {
		i.logger.Error("bankindex: record event", "type", evt.EventType(), "error", err)
	}
}

// Record stores evt and returns the assigned sequence number.
func (i *Index) Record(ctx context.Context, evt events.Event) error {
	flat := events.Flatten(evt)
	if flat == nil {
		return nil
	}
	attrs, err := json.Marshal(flat.Attributes)
	if err != nil {
		return err
	}
	var positionID uint64
	if raw := flat.Attr("positionId"); raw != "" {
		if positionID, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return fmt.Errorf("bankindex: position id %q: %w", raw, err)
		}
	}
	bank := flat.Attr("bank")
	if bank == "" {
		bank = flat.Attr("underlying")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	rec := EventRecord{
		ID:          uuid.New(),
		Sequence:    i.seq + 1,
		Type:        flat.Type,
		PositionID:  positionID,
		Bank:        bank,
		ExecutionID: flat.Attr("executionId"),
		Attributes:  string(attrs),
		CreatedAt:   i.now().UTC(),
	}
	if err := i.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("bankindex: insert: %w", err)
	}
	i.seq = rec.Sequence
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	PositionID uint64
	Type       string
	Bank       string
	AfterSeq   uint64
	Limit      int
}

// Entry is an indexed event.
type Entry struct {
	Sequence  uint64       `json:"sequence"`
	Event     *types.Event `json:"event"`
	CreatedAt time.Time    `json:"createdAt"`
}

// List returns matching events in commit order.
func (i *Index) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := i.db.WithContext(ctx).Model(&EventRecord{})
	if f.PositionID != 0 {
		q = q.Where("position_id = ?", f.PositionID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Bank != "" {
		q = q.Where("bank = ?", strings.ToLower(f.Bank))
	}
	if f.AfterSeq != 0 {
		q = q.Where("sequence > ?", f.AfterSeq)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	var rows []EventRecord
	if err := q.Order("sequence ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("bankindex: list: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("bankindex: decode row %d: %w", row.Sequence, err)
		}
		out = append(out, Entry{
			Sequence:  row.Sequence,
			Event:     &types.Event{Type: row.Type, Attributes: attrs},
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (i *Index) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
