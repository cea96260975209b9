// Package sqlstore implements the graph store on relational tables through
// GORM. Postgres is the production dialect; sqlite serves local runs.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	"github.com/yungbote/mdr-backend/internal/pkg/dbctx"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

var _ graphstore.Store = (*Store)(nil)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, baseLog *logger.Logger) *Store {
	return &Store{db: db, log: baseLog.With("store", "sqlstore")}
}

// Migrate creates the tables and the partial unique index that allows one
// open version edge per root.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate graph store: %w", err)
	}
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_mdr_edge_single_open
		ON mdr_version_edge (kind, root_uid)
		WHERE end_date IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_mdr_edge_single_open: %w", err)
	}
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx graphstore.Tx) error) error {
	if fn == nil {
		return nil
	}
	if s == nil || s.db == nil {
		return errors.New("sqlstore: nil db")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.newTxn(ctx, tx, false))
	})
}

func (s *Store) View(ctx context.Context, fn func(tx graphstore.Tx) error) error {
	if fn == nil {
		return nil
	}
	if s == nil || s.db == nil {
		return errors.New("sqlstore: nil db")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.newTxn(ctx, tx, true))
	})
}

func (s *Store) newTxn(ctx context.Context, tx *gorm.DB, readOnly bool) *txn {
	return &txn{
		dbc:      dbctx.Context{Ctx: ctx, Tx: tx},
		postgres: tx.Dialector != nil && tx.Dialector.Name() == "postgres",
		readOnly: readOnly,
	}
}

type txn struct {
	dbc      dbctx.Context
	postgres bool
	readOnly bool
}

func (t *txn) db() *gorm.DB { return t.dbc.DB(nil) }

func (t *txn) writable(op string) error {
	if t.readOnly {
		return fmt.Errorf("sqlstore: %s in read-only view", op)
	}
	return nil
}

func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w: %v", op, graphstore.ErrDuplicate, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%s: %w: %v", op, graphstore.ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (t *txn) InsertRoot(root library.Root) error {
	if err := t.writable("insert root"); err != nil {
		return err
	}
	row := rootRow{Kind: string(root.Kind), UID: root.UID, CreatedAt: root.CreatedAt.UTC()}
	return translate("insert root", t.db().Create(&row).Error)
}

func (t *txn) GetRoot(ref library.RootRef) (*library.Root, error) {
	var rows []rootRow
	if err := t.db().
		Where("kind = ? AND uid = ?", string(ref.Kind), ref.UID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, translate("get root", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &library.Root{Kind: library.Kind(rows[0].Kind), UID: rows[0].UID, CreatedAt: rows[0].CreatedAt.UTC()}, nil
}

func (t *txn) ListRoots(kind library.Kind) ([]library.Root, error) {
	var rows []rootRow
	if err := t.db().Where("kind = ?", string(kind)).Order("uid ASC").Find(&rows).Error; err != nil {
		return nil, translate("list roots", err)
	}
	out := make([]library.Root, 0, len(rows))
	for _, r := range rows {
		out = append(out, library.Root{Kind: library.Kind(r.Kind), UID: r.UID, CreatedAt: r.CreatedAt.UTC()})
	}
	return out, nil
}

// LockRoot issues SELECT ... FOR UPDATE on postgres. sqlite serializes
// writers at the database level, so the plain select is enough there.
func (t *txn) LockRoot(ref library.RootRef) error {
	q := t.db().Where("kind = ? AND uid = ?", string(ref.Kind), ref.UID)
	if t.postgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []rootRow
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return translate("lock root", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("lock root %s: %w", ref, graphstore.ErrMissing)
	}
	return nil
}

func (t *txn) InsertValue(v library.Value) error {
	if err := t.writable("insert value"); err != nil {
		return err
	}
	row, err := toValueRow(v)
	if err != nil {
		return err
	}
	return translate("insert value", t.db().Create(&row).Error)
}

func (t *txn) GetValue(id string) (*library.Value, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var rows []valueRow
	if err := t.db().Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, translate("get value", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	v, err := rows[0].toDomain()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *txn) ListValues(ref library.RootRef) ([]library.Value, error) {
	var rows []valueRow
	if err := t.db().
		Where("kind = ? AND root_uid = ?", string(ref.Kind), ref.UID).
		Order("ordinal ASC").
		Find(&rows).Error; err != nil {
		return nil, translate("list values", err)
	}
	out := make([]library.Value, 0, len(rows))
	for _, r := range rows {
		v, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (t *txn) InsertEdge(e library.VersionEdge) error {
	if err := t.writable("insert edge"); err != nil {
		return err
	}
	row := toEdgeRow(e)
	return translate("insert edge", t.db().Create(&row).Error)
}

func (t *txn) CloseEdge(id string, end time.Time) (bool, error) {
	if err := t.writable("close edge"); err != nil {
		return false, err
	}
	res := t.db().
		Model(&versionEdgeRow{}).
		Where("id = ? AND end_date IS NULL", id).
		Update("end_date", end.UTC())
	if res.Error != nil {
		return false, translate("close edge", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *txn) ListEdges(ref library.RootRef) ([]library.VersionEdge, error) {
	var rows []versionEdgeRow
	if err := t.db().
		Where("kind = ? AND root_uid = ?", string(ref.Kind), ref.UID).
		Order("major ASC, minor ASC, start_date ASC").
		Find(&rows).Error; err != nil {
		return nil, translate("list edges", err)
	}
	out := make([]library.VersionEdge, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	library.SortEdges(out)
	return out, nil
}

func (t *txn) GetPointers(ref library.RootRef) (library.Pointers, error) {
	var rows []pointerRow
	if err := t.db().
		Where("kind = ? AND root_uid = ?", string(ref.Kind), ref.UID).
		Find(&rows).Error; err != nil {
		return nil, translate("get pointers", err)
	}
	out := make(library.Pointers, len(rows))
	for _, r := range rows {
		out[library.PointerKind(r.Pointer)] = r.ValueID
	}
	return out, nil
}

func (t *txn) SetPointer(ref library.RootRef, kind library.PointerKind, valueID string) error {
	if err := t.writable("set pointer"); err != nil {
		return err
	}
	if valueID == "" {
		err := t.db().
			Where("kind = ? AND root_uid = ? AND pointer = ?", string(ref.Kind), ref.UID, string(kind)).
			Delete(&pointerRow{}).Error
		return translate("clear pointer", err)
	}
	row := pointerRow{Kind: string(ref.Kind), RootUID: ref.UID, Pointer: string(kind), ValueID: valueID}
	err := t.db().
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "root_uid"}, {Name: "pointer"}},
			DoUpdates: clause.AssignmentColumns([]string{"value_id"}),
		}).
		Create(&row).Error
	return translate("set pointer", err)
}

func (t *txn) InsertLink(l library.Link) error {
	if err := t.writable("insert link"); err != nil {
		return err
	}
	row, err := toLinkRow(l)
	if err != nil {
		return err
	}
	return translate("insert link", t.db().Create(&row).Error)
}

func (t *txn) listLinks(op string, where string, args ...any) ([]library.Link, error) {
	var rows []linkRow
	if err := t.db().Where(where, args...).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, translate(op, err)
	}
	out := make([]library.Link, 0, len(rows))
	for _, r := range rows {
		l, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (t *txn) ListLinksFrom(valueID string) ([]library.Link, error) {
	return t.listLinks("list links from", "from_value_id = ?", valueID)
}

func (t *txn) ListLinksTo(ref library.RootRef) ([]library.Link, error) {
	return t.listLinks("list links to", "to_kind = ? AND to_root_uid = ?", string(ref.Kind), ref.UID)
}

func (t *txn) SupersedeLink(id string, at time.Time) (bool, error) {
	if err := t.writable("supersede link"); err != nil {
		return false, err
	}
	res := t.db().
		Model(&linkRow{}).
		Where("id = ? AND superseded_at IS NULL", id).
		Update("superseded_at", at.UTC())
	if res.Error != nil {
		return false, translate("supersede link", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *txn) DeleteLink(id string) error {
	if err := t.writable("delete link"); err != nil {
		return err
	}
	return translate("delete link", t.db().Where("id = ?", id).Delete(&linkRow{}).Error)
}

func (t *txn) ensureCounter(kind library.Kind) error {
	row := uidCounterRow{Kind: string(kind), Value: 0}
	err := t.db().
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "kind"}}, DoNothing: true}).
		Create(&row).Error
	return translate("ensure uid counter", err)
}

func (t *txn) NextSequence(kind library.Kind) (int64, error) {
	if err := t.writable("next sequence"); err != nil {
		return 0, err
	}
	if err := t.ensureCounter(kind); err != nil {
		return 0, err
	}
	if err := t.db().
		Model(&uidCounterRow{}).
		Where("kind = ?", string(kind)).
		Update("value", gorm.Expr("value + 1")).Error; err != nil {
		return 0, translate("increment uid counter", err)
	}
	return t.CurrentSequence(kind)
}

func (t *txn) SetSequenceFloor(kind library.Kind, n int64) error {
	if err := t.writable("set sequence floor"); err != nil {
		return err
	}
	if err := t.ensureCounter(kind); err != nil {
		return err
	}
	err := t.db().
		Model(&uidCounterRow{}).
		Where("kind = ? AND value < ?", string(kind), n).
		Update("value", n).Error
	return translate("raise uid counter", err)
}

func (t *txn) CurrentSequence(kind library.Kind) (int64, error) {
	var rows []uidCounterRow
	if err := t.db().Where("kind = ?", string(kind)).Limit(1).Find(&rows).Error; err != nil {
		return 0, translate("read uid counter", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Value, nil
}
