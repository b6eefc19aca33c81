package discovery

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/maxlink/dashboard/internal/layout"
	"github.com/maxlink/dashboard/internal/widget"
)

// Table lists widgets from the dashboard_widget table:
//
//	CREATE TABLE dashboard_widget (
//	  widget_id  VARCHAR(64) PRIMARY KEY,
//	  pos_top    VARCHAR(16) NULL,
//	  pos_left   VARCHAR(16) NULL,
//	  width      VARCHAR(16) NULL,
//	  height     VARCHAR(16) NULL,
//	  z_index    INT NULL,
//	  config     JSON NULL,
//	  sort_order INT NOT NULL DEFAULT 0,
//	  enabled    BOOLEAN NOT NULL DEFAULT TRUE
//	);
type Table struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

// NewTable returns a lister backed by db.
func NewTable(db *sqlx.DB, log *zap.SugaredLogger) *Table {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Table{db: db, log: log}
}

const (
	listQuery   = `SELECT widget_id, pos_top, pos_left, width, height, z_index, config FROM dashboard_widget WHERE enabled = TRUE ORDER BY sort_order, widget_id`
	existsQuery = `SELECT 1 FROM dashboard_widget WHERE widget_id = ? AND enabled = TRUE LIMIT 1`
)

type widgetRow struct {
	ID     string         `db:"widget_id"`
	Top    sql.NullString `db:"pos_top"`
	Left   sql.NullString `db:"pos_left"`
	Width  sql.NullString `db:"width"`
	Height sql.NullString `db:"height"`
	ZIndex sql.NullInt64  `db:"z_index"`
	Config sql.NullString `db:"config"`
}

func (t *Table) ListWidgets(ctx context.Context) []widget.Descriptor {
	var rows []widgetRow
	if err := t.db.SelectContext(ctx, &rows, listQuery); err != nil {
		t.log.Warnw("widget table query failed", "err", err)
		return nil
	}

	out := make([]widget.Descriptor, 0, len(rows))
	for _, r := range rows {
		d, err := r.descriptor()
		if err != nil {
			t.log.Warnw("widget row skipped", "widget", r.ID, "err", err)
			continue
		}
		out = append(out, d)
	}
	return out
}

func (t *Table) WidgetExists(ctx context.Context, id string) bool {
	var one int
	err := t.db.GetContext(ctx, &one, existsQuery, id)
	return err == nil
}

func (r widgetRow) descriptor() (widget.Descriptor, error) {
	d := widget.Descriptor{ID: r.ID}
	if r.Top.Valid || r.Left.Valid {
		d.Position = &layout.Position{Top: r.Top.String, Left: r.Left.String}
	}
	if r.Width.Valid || r.Height.Valid {
		d.Size = &layout.Size{Width: r.Width.String, Height: r.Height.String}
	}
	if r.ZIndex.Valid {
		z := int(r.ZIndex.Int64)
		d.ZIndex = &z
	}
	if r.Config.Valid && r.Config.String != "" {
		if err := json.Unmarshal([]byte(r.Config.String), &d.Config); err != nil {
			return widget.Descriptor{}, err
		}
	}
	return d, nil
}
