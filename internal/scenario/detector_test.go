package scenario

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"salescomposer/internal/domain"
)

func calc(cladding string, members []string, options ...string) domain.CalcSummary {
	return domain.CalcSummary{
		Dimensions: domain.Dimensions{L: 6, W: 3, H: 2.4},
		Materials:  domain.Materials{Cladding: cladding, Members: members},
		Options:    options,
	}
}

func TestDetectPriceAndFoilboard(t *testing.T) {
	d := New()
	ctx := d.Detect("too expensive compared to foilboard", calc("corrugated", nil))

	if !Has(ctx, PriceObjection) {
		t.Fatalf("expected %s in %v", PriceObjection, ctx.DetectedScenarios)
	}
	if !Has(ctx, FoilboardComparison) {
		t.Fatalf("expected %s in %v", FoilboardComparison, ctx.DetectedScenarios)
	}
	if got := d.DetectCompetitor("too expensive compared to foilboard"); got != CompetitorFoilboard {
		t.Fatalf("DetectCompetitor = %q, want %q", got, CompetitorFoilboard)
	}
	if diff := cmp.Diff([]string{"corrugated"}, ctx.Materials); diff != "" {
		t.Fatalf("materials mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectTags(t *testing.T) {
	tests := []struct {
		name    string
		notes   string
		options []string
		want    []string
	}{
		{"blank notes", "   ", nil, []string{NoNotesDefault}},
		{"roof only", "just the ROOF please", nil, []string{RoofOnly}},
		{"walls mention", "walls get hot in summer", nil, []string{HotWorkshop, WallsOnly}},
		{"roof and walls", "roof and walls", nil, nil},
		{"roof option", "", []string{"roof"}, []string{NoNotesDefault, PartialTreatment}},
		{"two options", "", []string{"roof", "walls"}, []string{NoNotesDefault}},
		{"batts", "already has batts", nil, []string{FibreglassComparison}},
		{"anti-con", "quoted anti con blanket, long term", nil, []string{AnticonComparison, LongevityConcern}},
		{"damp leak", "damp and rain gets in, storm damage", nil, []string{CondensationConcern, LeakConcern, StructuralConcern}},
		{"generic competitor", "comparing another competitor", nil, []string{CompetitorGeneric}},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.notes, calc("corrugated", nil, tt.options...)).DetectedScenarios
			if len(got) == 0 {
				got = nil
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("tags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectCompetitorPriority(t *testing.T) {
	tests := []struct {
		notes string
		want  string
	}{
		{"foilboard vs anticon vs batts", CompetitorFoilboard},
		{"anti-con or fibreglass", CompetitorAntiConBlanket},
		{"fibreglass quote", CompetitorFibreglassBatts},
		{"a batt in the wall", CompetitorFibreglassBatts},
		{"combat", ""},
		{"", ""},
	}
	d := New()
	for _, tt := range tests {
		if got := d.DetectCompetitor(tt.notes); got != tt.want {
			t.Fatalf("DetectCompetitor(%q) = %q, want %q", tt.notes, got, tt.want)
		}
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	d := New()
	in := calc("corrugated", []string{"top_hat", "", "c_channel"}, "roof")
	first := d.Detect("hot workshop, condensation on the roof, comparing foilboard", in)
	for i := 0; i < 20; i++ {
		again := d.Detect("hot workshop, condensation on the roof, comparing foilboard", in)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
	if diff := cmp.Diff([]string{"corrugated", "top_hat", "c_channel"}, first.Materials); diff != "" {
		t.Fatalf("materials mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectDoesNotAliasOptions(t *testing.T) {
	in := calc("corrugated", nil, "roof")
	ctx := New().Detect("", in)
	ctx.Options[0] = "walls"
	if in.Options[0] != "roof" {
		t.Fatal("Detect must not share the caller's options slice")
	}
}
