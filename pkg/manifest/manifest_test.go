package manifest

import "testing"

func TestDecodeRequiresTopLevelScalars(t *testing.T) {
	_, err := Decode([]byte(`{"romm_id":"1","file_id":"2","fs_name":"a.nsp","url":"http://x/y","total_size":10}`))
	if err == nil {
		t.Fatalf("expected error for missing part_size")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := Manifest{
		RommId: "1", FileId: "2", FsName: "a.nsp", Url: "http://x/y",
		TotalSize: 9000, PartSize: 4000,
		Parts: []Part{
			{Index: 0, Size: 4000, Done: true},
			{Index: 1, Size: 4000},
			{Index: 2, Size: 1000},
		},
	}
	data, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalSize != m.TotalSize || len(got.Parts) != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	m := Manifest{TotalSize: 9000, PartSize: 4000, Parts: []Part{
		{Index: 0, Size: 4000}, {Index: 1, Size: 4000}, {Index: 2, Size: 1000},
	}}
	if err := Validate(m); err != nil {
		t.Fatalf("expected valid manifest, got %v", err)
	}
	bad := m
	bad.Parts[1].Size = 3999
	if err := Validate(bad); err == nil {
		t.Fatalf("expected error for undersized intermediate part")
	}
}

// Scenario 3 from §8: resume after crash.
func TestPlanResumeScenario3(t *testing.T) {
	m := Manifest{
		RommId: "r", FileId: "f", FsName: "title.nsp", Url: "http://x/y",
		TotalSize: 9000, PartSize: 4000,
		Parts: []Part{
			{Index: 0, Size: 4000, Done: true},
			{Index: 1, Size: 4000},
			{Index: 2, Size: 1000},
		},
	}
	observed := []Observed{{0, 4000}, {1, 1200}}
	plan := PlanResume(m, observed)

	if len(plan.ValidParts) != 1 || plan.ValidParts[0] != 0 {
		t.Fatalf("expected valid=[0], got %v", plan.ValidParts)
	}
	if plan.PartialIndex != 1 || plan.PartialBytes != 1200 {
		t.Fatalf("expected partial index 1 with 1200 bytes, got %d/%d", plan.PartialIndex, plan.PartialBytes)
	}
	if plan.BytesHave != 5200 {
		t.Fatalf("expected bytesHave=5200, got %d", plan.BytesHave)
	}
	if plan.BytesNeed != 3800 {
		t.Fatalf("expected bytesNeed=3800, got %d", plan.BytesNeed)
	}
}

func TestPlanResumeIdempotent(t *testing.T) {
	m := Manifest{TotalSize: 9000, PartSize: 4000, Parts: []Part{
		{Index: 0, Size: 4000}, {Index: 1, Size: 4000}, {Index: 2, Size: 1000},
	}}
	observed := []Observed{{0, 4000}, {1, 1200}}
	a := PlanResume(m, observed)
	b := PlanResume(m, observed)
	if a.BytesHave != b.BytesHave || a.PartialIndex != b.PartialIndex || a.PartialBytes != b.PartialBytes {
		t.Fatalf("plan not idempotent: %+v vs %+v", a, b)
	}
}

func TestCompatible(t *testing.T) {
	m := Manifest{RommId: "r1", FileId: "f1", Url: "http://x/y", TotalSize: 100, PartSize: 50}
	if !Compatible(m, "r1", "f1", "http://other/z", 100, 50) {
		t.Fatalf("expected compatible when strong ids match (url ignored)")
	}
	if Compatible(m, "r2", "f1", "http://x/y", 100, 50) {
		t.Fatalf("expected incompatible rom id mismatch")
	}
	noId := Manifest{Url: "http://x/y", TotalSize: 100, PartSize: 50}
	if !Compatible(noId, "", "", "http://x/y", 100, 50) {
		t.Fatalf("expected compatible via URL when no strong id present")
	}
	if Compatible(noId, "", "", "http://other", 100, 50) {
		t.Fatalf("expected incompatible URL mismatch when no strong id present")
	}
}
