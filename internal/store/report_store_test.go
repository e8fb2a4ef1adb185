package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/inspectreport/internal/db"
	"github.com/vbonduro/inspectreport/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func sampleReport() *domain.ReportData {
	return &domain.ReportData{
		Location:  "Depot 4",
		Timestamp: "2026-10-17T09:30:00Z",
		Inspections: []domain.InspectionRecord{
			{PhotoNo: "S01", Location: "Front gate", Comments: "Hinge rusted\nPaint flaking"},
			{PhotoNo: "S02", Location: "Loading bay", Comments: "Clear", PhotoDataURL: "data:image/jpeg;base64,AAAA", PhotoKey: "item_1_x.jpg"},
		},
	}
}

func TestReportStoreRoundTrip(t *testing.T) {
	store := NewReportStore(openTestDB(t), 0)
	ctx := context.Background()

	want := sampleReport()
	require.NoError(t, store.Save(ctx, domain.StorageKey, want))

	got, err := store.Load(ctx, domain.StorageKey)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.Location, got.Location)
	require.Len(t, got.Inspections, len(want.Inspections))
	for i := range want.Inspections {
		assert.Equal(t, want.Inspections[i].Location, got.Inspections[i].Location)
		assert.Equal(t, want.Inspections[i].Comments, got.Inspections[i].Comments)
	}
	assert.Equal(t, want, got)
}

func TestReportStoreOverwrites(t *testing.T) {
	store := NewReportStore(openTestDB(t), 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.StorageKey, sampleReport()))
	require.NoError(t, store.Save(ctx, domain.StorageKey, &domain.ReportData{Location: "Yard"}))

	got, err := store.Load(ctx, domain.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "Yard", got.Location)
	assert.Empty(t, got.Inspections)
}

func TestReportStoreLoadMissing(t *testing.T) {
	store := NewReportStore(openTestDB(t), 0)

	got, err := store.Load(context.Background(), domain.StorageKey)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReportStoreDelete(t *testing.T) {
	store := NewReportStore(openTestDB(t), 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.StorageKey, sampleReport()))
	require.NoError(t, store.Delete(ctx, domain.StorageKey))

	got, err := store.Load(ctx, domain.StorageKey)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, store.Delete(ctx, domain.StorageKey))
}

func TestReportStoreQuota(t *testing.T) {
	store := NewReportStore(openTestDB(t), 512)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.StorageKey, sampleReport()))

	big := sampleReport()
	big.Inspections[0].Comments = strings.Repeat("x", 1024)
	err := store.Save(ctx, domain.StorageKey, big)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	got, err := store.Load(ctx, domain.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), got)
}

func TestReportStoreCorruptBlob(t *testing.T) {
	d := openTestDB(t)
	_, err := d.Exec("INSERT INTO kv_store (key, value) VALUES (?, ?)", domain.StorageKey, "{not json")
	require.NoError(t, err)

	_, err = NewReportStore(d, 0).Load(context.Background(), domain.StorageKey)
	assert.Error(t, err)
}

func TestReportStoreRevision(t *testing.T) {
	store := NewReportStore(openTestDB(t), 0)
	ctx := context.Background()

	rev, err := store.Revision(ctx, domain.RevisionKey)
	require.NoError(t, err)
	assert.Zero(t, rev)

	for want := int64(1); want <= 3; want++ {
		rev, err = store.BumpRevision(ctx, domain.RevisionKey)
		require.NoError(t, err)
		assert.Equal(t, want, rev)
	}

	// Deleting the report leaves the counter alone.
	require.NoError(t, store.Save(ctx, domain.StorageKey, sampleReport()))
	require.NoError(t, store.Delete(ctx, domain.StorageKey))
	rev, err = store.Revision(ctx, domain.RevisionKey)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rev)
}
