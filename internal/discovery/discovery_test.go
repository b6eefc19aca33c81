package discovery

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maxlink/dashboard/internal/asset"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := StaticIDs("clock", "uptime")

	got := s.ListWidgets(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, "clock", got[0].ID)

	got[0].ID = "mutated"
	assert.Equal(t, "clock", s.ListWidgets(ctx)[0].ID)

	assert.True(t, s.WidgetExists(ctx, "uptime"))
	assert.False(t, s.WidgetExists(ctx, "ghost"))
}

func TestManifest_Parse(t *testing.T) {
	fsys := fstest.MapFS{
		DefaultManifest: {Data: []byte(`
widgets:
  - clock
  - id: uptime
    position: {top: "20%", left: "80%"}
    size: {width: "260px"}
    z_index: 2
    config:
      refreshInterval: 500
  - clock
  - ../escape
`)},
	}
	m := NewManifest(asset.NewFS(fsys), "", zaptest.NewLogger(t).Sugar())

	got := m.ListWidgets(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "clock", got[0].ID)
	assert.Nil(t, got[0].Position)

	up := got[1]
	assert.Equal(t, "uptime", up.ID)
	require.NotNil(t, up.Position)
	assert.Equal(t, "20%", up.Position.Top)
	assert.Equal(t, "260px", up.Size.Width)
	require.NotNil(t, up.ZIndex)
	assert.Equal(t, 2, *up.ZIndex)
	assert.Equal(t, 500, up.Config["refreshInterval"])

	assert.True(t, m.WidgetExists(context.Background(), "uptime"))
}

func TestManifest_JSON(t *testing.T) {
	fsys := fstest.MapFS{
		"widgets/manifest.json": {Data: []byte(`{"widgets": ["logo", {"id": "clock", "z_index": 1}]}`)},
	}
	m := NewManifest(asset.NewFS(fsys), "widgets/manifest.json", nil)
	got := m.ListWidgets(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, 1, *got[1].ZIndex)
}

func TestManifest_FailuresDegradeToEmpty(t *testing.T) {
	ctx := context.Background()

	missing := NewManifest(asset.NewFS(fstest.MapFS{}), "", nil)
	assert.Empty(t, missing.ListWidgets(ctx))

	broken := NewManifest(asset.NewFS(fstest.MapFS{
		DefaultManifest: {Data: []byte("widgets: [unclosed")},
	}), "", nil)
	assert.Empty(t, broken.ListWidgets(ctx))

	noKey := NewManifest(asset.NewFS(fstest.MapFS{
		DefaultManifest: {Data: []byte("other: 1")},
	}), "", nil)
	assert.Empty(t, noKey.ListWidgets(ctx))
}

func TestValidate_DropsWidgetsWithoutScript(t *testing.T) {
	fsys := fstest.MapFS{
		"widgets/logo/logo.html":   {Data: []byte("<img>")},
		"widgets/logo/logo.js":     {Data: []byte("//")},
		"widgets/ghost/ghost.html": {Data: []byte("<div>")},
	}
	src := asset.NewFS(fsys)
	v := Validate(StaticIDs("logo", "ghost"), src, asset.Paths{}, zaptest.NewLogger(t).Sugar())

	got := v.ListWidgets(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "logo", got[0].ID)

	assert.True(t, v.WidgetExists(context.Background(), "logo"))
	assert.False(t, v.WidgetExists(context.Background(), "ghost"))
	assert.False(t, v.WidgetExists(context.Background(), "../logo"))
}

func TestValidate_EmptyInner(t *testing.T) {
	v := Validate(StaticIDs(), asset.NewFS(fstest.MapFS{}), asset.Paths{}, nil)
	assert.Empty(t, v.ListWidgets(context.Background()))
}

func newMockTable(t *testing.T) (*Table, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTable(sqlx.NewDb(db, "sqlmock"), zaptest.NewLogger(t).Sugar()), mock
}

func TestTable_ListWidgets(t *testing.T) {
	tbl, mock := newMockTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(listQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"widget_id", "pos_top", "pos_left", "width", "height", "z_index", "config"}).
			AddRow("clock", "10%", "50%", nil, nil, 3, `{"format":"24h"}`).
			AddRow("uptime", nil, nil, nil, nil, nil, nil).
			AddRow("broken", nil, nil, nil, nil, nil, `{not json`))

	got := tbl.ListWidgets(context.Background())
	require.Len(t, got, 2)

	assert.Equal(t, "clock", got[0].ID)
	require.NotNil(t, got[0].Position)
	assert.Equal(t, "50%", got[0].Position.Left)
	assert.Nil(t, got[0].Size)
	assert.Equal(t, 3, *got[0].ZIndex)
	assert.Equal(t, "24h", got[0].Config["format"])

	assert.Equal(t, "uptime", got[1].ID)
	assert.Nil(t, got[1].Position)
	assert.Nil(t, got[1].ZIndex)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_QueryErrorDegrades(t *testing.T) {
	tbl, mock := newMockTable(t)
	mock.ExpectQuery(regexp.QuoteMeta(listQuery)).WillReturnError(errors.New("connection refused"))

	assert.Empty(t, tbl.ListWidgets(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_WidgetExists(t *testing.T) {
	tbl, mock := newMockTable(t)
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WithArgs("clock").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	assert.True(t, tbl.WidgetExists(context.Background(), "clock"))
	assert.False(t, tbl.WidgetExists(context.Background(), "ghost"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
