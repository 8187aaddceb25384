package watch

import "testing"

func TestSplitRange(t *testing.T) {
	cases := []struct {
		name      string
		from      uint64
		to        uint64
		batchSize uint64
		want      []BlockRange
	}{
		{
			name: "single batch", from: 10, to: 15, batchSize: 100,
			want: []BlockRange{{From: 10, To: 15}},
		},
		{
			name: "exact multiple", from: 0, to: 9, batchSize: 5,
			want: []BlockRange{{From: 0, To: 4}, {From: 5, To: 9}},
		},
		{
			name: "remainder batch", from: 0, to: 10, batchSize: 4,
			want: []BlockRange{{From: 0, To: 3}, {From: 4, To: 7}, {From: 8, To: 10}},
		},
		{
			name: "single block", from: 7, to: 7, batchSize: 2000,
			want: []BlockRange{{From: 7, To: 7}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitRange(tc.from, tc.to, tc.batchSize)
			if err != nil {
				t.Fatalf("SplitRange: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d ranges, want %d: %v", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("range %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSplitRangeErrors(t *testing.T) {
	if _, err := SplitRange(0, 10, 0); err == nil {
		t.Fatal("zero batch size accepted")
	}
	if _, err := SplitRange(10, 5, 100); err == nil {
		t.Fatal("inverted range accepted")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := t.TempDir() + "/checkpoint.json"
	store := NewCheckpointStore(path, true)

	if _, found, err := store.Load(); err != nil || found {
		t.Fatalf("fresh store Load = found %v, err %v", found, err)
	}

	if err := store.Save(12345); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cp, found, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("checkpoint missing after Save")
	}
	if cp.LastProcessedBlock != 12345 {
		t.Fatalf("LastProcessedBlock = %d, want 12345", cp.LastProcessedBlock)
	}
}

func TestCheckpointDisabled(t *testing.T) {
	path := t.TempDir() + "/checkpoint.json"
	store := NewCheckpointStore(path, false)

	if err := store.Save(99); err != nil {
		t.Fatalf("disabled Save: %v", err)
	}
	if _, found, err := store.Load(); err != nil || found {
		t.Fatalf("disabled Load = found %v, err %v", found, err)
	}
}
