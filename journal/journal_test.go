package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/payfill/classify"
	"github.com/hazyhaar/payfill/fill"
	"github.com/hazyhaar/payfill/inject"
	"github.com/hazyhaar/payfill/settings"
)

func setup(t *testing.T) *Journal {
	t.Helper()
	db := settings.OpenMemory(t)
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	return New(db, nil)
}

func report(id string, started time.Time) fill.Report {
	return fill.Report{
		ID:              id,
		PageURL:         "https://checkout.stripe.com/",
		Forced:          true,
		SettingsVersion: 3,
		Processor:       "stripe",
		Candidates:      4,
		Fields: []fill.FieldResult{
			{Index: 0, Tag: "input", Name: "cardnumber", Type: classify.CardNumber, Outcome: inject.Filled},
			{Index: 2, Tag: "input", Name: "postal", Type: classify.Zip, Outcome: inject.SkippedEmpty},
		},
		StartedAt: started,
		Duration:  12 * time.Millisecond,
	}
}

func TestRecordAndGet(t *testing.T) {
	j := setup(t)
	ctx := context.Background()
	started := time.UnixMilli(1_700_000_000_123)

	j.Record(ctx, report("scn_1", started))

	got, err := j.Get(ctx, "scn_1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started = %v, want %v", got.StartedAt, started)
	}
	if got.Duration != 12*time.Millisecond {
		t.Errorf("duration = %v", got.Duration)
	}
	if !got.Forced || got.SettingsVersion != 3 || got.Processor != "stripe" || got.Candidates != 4 {
		t.Errorf("report = %+v", got)
	}
	if len(got.Fields) != 2 || got.Fields[1].Outcome != inject.SkippedEmpty {
		t.Errorf("fields = %+v", got.Fields)
	}
	if got.Filled() != 1 {
		t.Errorf("filled = %d", got.Filled())
	}
}

func TestGet_NotFound(t *testing.T) {
	j := setup(t)
	if _, err := j.Get(context.Background(), "scn_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	j := setup(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)
	for i, id := range []string{"scn_a", "scn_b", "scn_c"} {
		j.Record(ctx, report(id, base.Add(time.Duration(i)*time.Second)))
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "scn_c" || got[1].ID != "scn_b" {
		t.Errorf("recent = %v", ids(got))
	}

	all, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("recent(0) = %d rows", len(all))
	}
}

func TestCleanup(t *testing.T) {
	j := setup(t)
	ctx := context.Background()
	j.Record(ctx, report("scn_old", time.Now().Add(-48*time.Hour)))
	j.Record(ctx, report("scn_new", time.Now()))

	n, err := j.Cleanup(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := j.Get(ctx, "scn_old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old scan still present: %v", err)
	}
}

func TestRecord_ClosedDBDoesNotPanic(t *testing.T) {
	j := setup(t)
	j.db.Close()
	j.Record(context.Background(), report("scn_1", time.Now()))
}

func ids(reps []fill.Report) []string {
	out := make([]string, len(reps))
	for i, r := range reps {
		out[i] = r.ID
	}
	return out
}
