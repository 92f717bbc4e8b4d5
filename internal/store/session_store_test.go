package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"riftcal/internal/model"
)

// openTestStore creates an in-memory SQLite store for testing.
func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, dialect, err := Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := InitDB(ctx, db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	// Running InitDB twice must be harmless.
	if err := InitDB(ctx, db); err != nil {
		t.Fatalf("InitDB (second run): %v", err)
	}
	return NewSQLStore(db, dialect)
}

func sampleSession() model.Session {
	return model.Session{
		Name:       "Varsity Practice",
		TeamID:     "team-7",
		Location:   "Gym A",
		StartDate:  model.Date(2024, time.January, 1),
		EndDate:    model.Date(2024, time.March, 31),
		StartTime:  "17:00",
		EndTime:    "18:30",
		DaysOfWeek: []string{"monday", " Miércoles "},
		Cadence:    model.CadenceBiweekly,
		CancelledDates: []time.Time{
			model.Date(2024, time.January, 15),
			model.Date(2024, time.January, 15),
			model.Date(2024, time.February, 19),
		},
	}
}

func TestSQLStore_SaveAssignsIDAndRoundTrips(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	saved, err := st.Save(ctx, sampleSession())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := st.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Varsity Practice" || got.TeamID != "team-7" || got.Location != "Gym A" {
		t.Errorf("unexpected fields: %+v", got)
	}
	if !got.StartDate.Equal(model.Date(2024, time.January, 1)) || !got.EndDate.Equal(model.Date(2024, time.March, 31)) {
		t.Errorf("dates = %v..%v", got.StartDate, got.EndDate)
	}
	if got.StartTime != "17:00" || got.EndTime != "18:30" {
		t.Errorf("times = %s-%s", got.StartTime, got.EndTime)
	}
	if !reflect.DeepEqual(got.DaysOfWeek, []string{"monday", "Miércoles"}) {
		t.Errorf("DaysOfWeek = %q", got.DaysOfWeek)
	}
	if got.Cadence != model.CadenceBiweekly {
		t.Errorf("Cadence = %q", got.Cadence)
	}
	wantCancelled := []time.Time{model.Date(2024, time.January, 15), model.Date(2024, time.February, 19)}
	if !reflect.DeepEqual(got.CancelledDates, wantCancelled) {
		t.Errorf("CancelledDates = %v, want %v", got.CancelledDates, wantCancelled)
	}
}

func TestSQLStore_SaveUpdatesExisting(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	saved, err := st.Save(ctx, sampleSession())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved.Name = "Renamed"
	saved.Cadence = ""
	saved.CancelledDates = nil
	updated, err := st.Save(ctx, saved)
	if err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	if updated.Name != "Renamed" || updated.Cadence != model.CadenceNone {
		t.Errorf("updated = %+v", updated)
	}
	if len(updated.CancelledDates) != 0 {
		t.Errorf("CancelledDates = %v, want none", updated.CancelledDates)
	}

	all, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("List returned %d sessions, want 1", len(all))
	}
}

func TestSQLStore_GetByIDNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLStore_ListOrderAndCancelledDates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	later := sampleSession()
	later.Name = "Spring"
	later.StartDate = model.Date(2024, time.April, 1)
	later.EndDate = model.Date(2024, time.May, 31)
	later.CancelledDates = []time.Time{model.Date(2024, time.April, 8)}

	earlier := sampleSession()
	earlier.Name = "Winter"

	if _, err := st.Save(ctx, later); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Save(ctx, earlier); err != nil {
		t.Fatal(err)
	}

	all, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Winter" || all[1].Name != "Spring" {
		t.Fatalf("List order = %+v", all)
	}
	if len(all[0].CancelledDates) != 2 || len(all[1].CancelledDates) != 1 {
		t.Errorf("cancelled dates = %v / %v", all[0].CancelledDates, all[1].CancelledDates)
	}
}

func TestSQLStore_ListEmpty(t *testing.T) {
	st := openTestStore(t)
	all, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("List = %v, want empty", all)
	}
}

func TestSQLStore_Delete(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	saved, err := st.Save(ctx, sampleSession())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.GetByID(ctx, saved.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetByID after delete error = %v", err)
	}
	if err := st.Delete(ctx, saved.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLStore_AddRemoveCancelledDate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	sess := sampleSession()
	sess.CancelledDates = nil
	saved, err := st.Save(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}

	day := time.Date(2024, time.January, 22, 17, 0, 0, 0, time.UTC)
	if err := st.AddCancelledDate(ctx, saved.ID, day); err != nil {
		t.Fatalf("AddCancelledDate: %v", err)
	}
	if err := st.AddCancelledDate(ctx, saved.ID, day); err != nil {
		t.Fatalf("AddCancelledDate (duplicate): %v", err)
	}
	got, _ := st.GetByID(ctx, saved.ID)
	if !reflect.DeepEqual(got.CancelledDates, []time.Time{model.Date(2024, time.January, 22)}) {
		t.Errorf("CancelledDates = %v", got.CancelledDates)
	}

	if err := st.RemoveCancelledDate(ctx, saved.ID, day); err != nil {
		t.Fatalf("RemoveCancelledDate: %v", err)
	}
	got, _ = st.GetByID(ctx, saved.ID)
	if len(got.CancelledDates) != 0 {
		t.Errorf("CancelledDates = %v, want none", got.CancelledDates)
	}

	if err := st.AddCancelledDate(ctx, "missing", day); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("AddCancelledDate(missing) error = %v", err)
	}
	if err := st.RemoveCancelledDate(ctx, "missing", day); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("RemoveCancelledDate(missing) error = %v", err)
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y IN (?, ?)"
	if got := rebind(DialectSQLite, q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)"
	if got := rebind(DialectPostgres, q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
