package latest

import (
	"errors"
	"testing"
	"time"
)

func TestFindLatest(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		name     string
		strategy Strategy
		infos    []Info
		want     int
	}{
		{"revision", ByRevision(), []Info{{Revision: "1.0"}, {Revision: "1.10"}, {Revision: "1.9"}}, 1},
		{"lexico", ByLexico(), []Info{{Revision: "1.0"}, {Revision: "1.10"}, {Revision: "1.9"}}, 2},
		{"time", ByTime(), []Info{{Revision: "2.0", Published: day(1)}, {Revision: "1.0", Published: day(5)}}, 1},
		{"tie keeps first", ByRevision(), []Info{{Revision: "1.0"}, {Revision: "1.0"}}, 0},
		{"empty", ByRevision(), nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindLatest(tt.strategy, tt.infos)
			if err != nil {
				t.Fatalf("FindLatest() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FindLatest() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTime_NotEnoughInformation(t *testing.T) {
	_, err := FindLatest(ByTime(), []Info{{Revision: "1.0"}, {Revision: "2.0", Published: time.Now()}})
	if !errors.Is(err, ErrNotEnoughInformation) {
		t.Fatalf("FindLatest() error = %v, want ErrNotEnoughInformation", err)
	}
}

func TestSort(t *testing.T) {
	infos := []Info{{Revision: "1.2"}, {Revision: "1.0"}, {Revision: "1.1"}}
	if err := Sort(ByRevision(), infos); err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"1.0", "1.1", "1.2"} {
		if infos[i].Revision != want {
			t.Errorf("infos[%d] = %s, want %s", i, infos[i].Revision, want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{Revision, Lexico, Time} {
		if _, err := r.Get(name); err != nil {
			t.Errorf("Get(%q) error = %v", name, err)
		}
	}
	if _, err := r.Get("latest-whatever"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Get() error = %v, want ErrUnknownStrategy", err)
	}
}
