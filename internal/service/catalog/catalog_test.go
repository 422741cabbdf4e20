package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/lightdash/internal/domain"
)

func TestCompileProject_WithDbtCatalog(t *testing.T) {
	f := newFixture(true)
	ctx := ctxWithPrincipal("dev")

	summary, err := f.svc.CompileProject(ctx, projectUUID)
	require.NoError(t, err)

	assert.Equal(t, projectUUID, summary.ProjectUUID)
	assert.Equal(t, 2, summary.Explores)
	assert.Equal(t, 3, summary.Metrics)
	assert.Equal(t, fixedNow, summary.CompiledAt)
	assert.Positive(t, summary.Dimensions)

	stored, err := f.explores.Get(ctx, projectUUID, "orders")
	require.NoError(t, err)
	assert.Equal(t, fixedNow, stored.CompiledAt)
	date, ok := stored.Explore.FindField("orders_order_date")
	require.True(t, ok)
	assert.Equal(t, domain.DimensionTypeDate, date.(domain.Dimension).Type)
	_, ok = stored.Explore.FindField("customers_first_name")
	assert.True(t, ok)
}

func TestCompileProject_FallsBackToWarehouseSchema(t *testing.T) {
	f := newFixture(false)
	var requested []domain.TableRef
	f.warehouse.CatalogFn = func(_ context.Context, refs []domain.TableRef) (domain.WarehouseCatalog, error) {
		requested = refs
		wc := domain.WarehouseCatalog{}
		for _, col := range []string{"order_id", "customer_id", "amount"} {
			wc.Add("dev", "public", "orders", col, "integer")
		}
		wc.Add("dev", "public", "orders", "order_date", "timestamp without time zone")
		wc.Add("dev", "public", "customers", "customer_id", "integer")
		wc.Add("dev", "public", "customers", "first_name", "text")
		return wc, nil
	}

	_, err := f.svc.CompileProject(ctxWithPrincipal("dev"), projectUUID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.TableRef{
		{Database: "dev", Schema: "public", Table: "orders"},
		{Database: "dev", Schema: "public", Table: "customers"},
	}, requested)

	stored, err := f.explores.Get(context.Background(), projectUUID, "orders")
	require.NoError(t, err)
	date, _ := stored.Explore.FindField("orders_order_date")
	assert.Equal(t, domain.DimensionTypeTimestamp, date.(domain.Dimension).Type)
}

func TestCompileProject_Errors(t *testing.T) {
	t.Run("no principal", func(t *testing.T) {
		f := newFixture(true)
		_, err := f.svc.CompileProject(context.Background(), projectUUID)
		var ad *domain.AccessDeniedError
		require.ErrorAs(t, err, &ad)
	})

	t.Run("not allowed to compile", func(t *testing.T) {
		f := newFixture(true)
		f.auth.CanPerformFn = func(_ context.Context, _ domain.ContextPrincipal, action domain.Action, _ domain.ResourceContext) (bool, error) {
			return action == domain.ActionView, nil
		}
		_, err := f.svc.CompileProject(ctxWithPrincipal("vera"), projectUUID)
		var ad *domain.AccessDeniedError
		require.ErrorAs(t, err, &ad)
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(true)
		_, err := f.svc.CompileProject(ctxWithPrincipal("dev"), "missing")
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("missing manifest", func(t *testing.T) {
		f := newFixture(true)
		delete(f.artifacts.Files, "s3://dbt/manifest.json")
		_, err := f.svc.CompileProject(ctxWithPrincipal("dev"), projectUUID)
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Contains(t, err.Error(), "read manifest")
	})

	t.Run("corrupt catalog", func(t *testing.T) {
		f := newFixture(true)
		f.artifacts.Files["s3://dbt/catalog.json"] = []byte("{not json")
		_, err := f.svc.CompileProject(ctxWithPrincipal("dev"), projectUUID)
		var pe *domain.ParseError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("strict attach without schema keeps previous explores", func(t *testing.T) {
		f := newFixture(false)
		f.warehouse.CatalogFn = func(context.Context, []domain.TableRef) (domain.WarehouseCatalog, error) {
			return domain.WarehouseCatalog{}, nil
		}
		require.NoError(t, f.explores.ReplaceAll(context.Background(), projectUUID, []domain.Explore{{Name: "previous"}}, fixedNow))

		_, err := f.svc.CompileProject(ctxWithPrincipal("dev"), projectUUID)
		var me *domain.MissingCatalogEntryError
		require.ErrorAs(t, err, &me)

		_, err = f.explores.Get(context.Background(), projectUUID, "previous")
		assert.NoError(t, err)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(true)
		f.explores.ReplaceErr = errTest
		_, err := f.svc.CompileProject(ctxWithPrincipal("dev"), projectUUID)
		require.ErrorIs(t, err, errTest)
	})
}

func TestListAndGetExplores(t *testing.T) {
	f := newFixture(true)
	ctx := ctxWithPrincipal("dev")
	_, err := f.svc.CompileProject(ctx, projectUUID)
	require.NoError(t, err)

	summaries, total, err := f.svc.ListExplores(ctx, projectUUID, domain.PageRequest{PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, summaries, 1)

	explore, err := f.svc.GetExplore(ctx, projectUUID, "customers")
	require.NoError(t, err)
	assert.Equal(t, "customers", explore.Explore.BaseTable)

	_, err = f.svc.GetExplore(ctx, projectUUID, "payments")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	f.auth.CanPerformFn = func(context.Context, domain.ContextPrincipal, domain.Action, domain.ResourceContext) (bool, error) {
		return false, nil
	}
	_, _, err = f.svc.ListExplores(ctx, projectUUID, domain.PageRequest{})
	var ad *domain.AccessDeniedError
	require.ErrorAs(t, err, &ad)
}

func TestGetMetric(t *testing.T) {
	f := newFixture(true)
	ctx := ctxWithPrincipal("dev")
	_, err := f.svc.CompileProject(ctx, projectUUID)
	require.NoError(t, err)

	t.Run("table default time dimension", func(t *testing.T) {
		m, err := f.svc.GetMetric(ctx, projectUUID, "orders", "total_revenue", "")
		require.NoError(t, err)
		assert.Equal(t, "orders", m.Table)
		require.NotNil(t, m.TimeDimension)
		assert.Equal(t, domain.TimeDimensionConfig{Table: "orders", Field: "order_date", Interval: domain.TimeFrameDay}, *m.TimeDimension)
	})

	t.Run("metric default wins", func(t *testing.T) {
		m, err := f.svc.GetMetric(ctx, projectUUID, "orders", "monthly_revenue", "")
		require.NoError(t, err)
		assert.Equal(t, domain.TimeFrameMonth, m.TimeDimension.Interval)
	})

	t.Run("override replaces interval", func(t *testing.T) {
		m, err := f.svc.GetMetric(ctx, projectUUID, "orders", "monthly_revenue", domain.TimeFrameWeek)
		require.NoError(t, err)
		assert.Equal(t, domain.TimeFrameWeek, m.TimeDimension.Interval)
	})

	t.Run("joined table metric without time dimension", func(t *testing.T) {
		m, err := f.svc.GetMetric(ctx, projectUUID, "orders", "customer_count", domain.TimeFrameWeek)
		require.NoError(t, err)
		assert.Equal(t, "customers", m.Table)
		assert.Nil(t, m.TimeDimension)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := f.svc.GetMetric(ctx, projectUUID, "orders", "nope", "")
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}
