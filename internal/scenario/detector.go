// Package scenario tags customer notes with a fixed vocabulary of concerns.
package scenario

import (
	"regexp"
	"slices"
	"strings"

	"salescomposer/internal/domain"
)

const (
	NoNotesDefault       = "no_notes_default"
	PriceObjection       = "price_objection"
	FoilboardComparison  = "foilboard_comparison"
	FibreglassComparison = "fibreglass_comparison"
	AnticonComparison    = "anticon_comparison"
	HotWorkshop          = "hot_workshop"
	CondensationConcern  = "condensation_concern"
	LeakConcern          = "leak_concern"
	StructuralConcern    = "structural_concern"
	RoofOnly             = "roof_only"
	WallsOnly            = "walls_only"
	PartialTreatment     = "partial_treatment"
	LongevityConcern     = "longevity_concern"
	CompetitorGeneric    = "competitor_generic"
)

const (
	CompetitorFoilboard       = "foilboard"
	CompetitorAntiConBlanket  = "anti_con_blanket"
	CompetitorFibreglassBatts = "fibreglass_batts"
	CompetitorGenericTag      = "generic"
)

var (
	rePrice      = regexp.MustCompile(`(price|expensive|budget|cost)`)
	reFoilboard  = regexp.MustCompile(`foilboard`)
	reFibreglass = regexp.MustCompile(`(fibreglass|batts?\b)`)
	reAnticon    = regexp.MustCompile(`(anti[- ]?con|anticon)`)
	reHot        = regexp.MustCompile(`(hot|summer|heat|workshop)`)
	reDamp       = regexp.MustCompile(`(condensation|moisture|damp)`)
	reLeak       = regexp.MustCompile(`(leak|water|rain)`)
	reStructural = regexp.MustCompile(`(wind|storm|structural|strength)`)
	reRoofWord   = regexp.MustCompile(`\broof\b`)
	reWallPrefix = regexp.MustCompile(`\bwall`)
	rePartial    = regexp.MustCompile(`partial`)
	reLongevity  = regexp.MustCompile(`(durability|long term|forever|lifetime)`)
	reCompetitor = regexp.MustCompile(`(competitor|comparing|other option)`)
	reBatts      = regexp.MustCompile(`\bbatts?\b`)
)

// Detector is stateless; the zero value is ready to use.
type Detector struct{}

func New() Detector {
	return Detector{}
}

// Detect builds the scenario context for one request. Tags are appended in a
// fixed order so identical inputs always yield identical output.
func (Detector) Detect(notes string, calc domain.CalcSummary) domain.ScenarioContext {
	n := strings.ToLower(notes)
	options := append([]string(nil), calc.Options...)
	tags := make([]string, 0, 4)

	add := func(ok bool, tag string) {
		if ok {
			tags = append(tags, tag)
		}
	}

	add(strings.TrimSpace(n) == "", NoNotesDefault)
	add(rePrice.MatchString(n), PriceObjection)
	add(reFoilboard.MatchString(n), FoilboardComparison)
	add(reFibreglass.MatchString(n), FibreglassComparison)
	add(reAnticon.MatchString(n), AnticonComparison)
	add(reHot.MatchString(n), HotWorkshop)
	add(reDamp.MatchString(n), CondensationConcern)
	add(reLeak.MatchString(n), LeakConcern)
	add(reStructural.MatchString(n), StructuralConcern)

	mentionsRoof := reRoofWord.MatchString(n)
	mentionsWall := reWallPrefix.MatchString(n)
	add(mentionsRoof && !mentionsWall, RoofOnly)
	add(mentionsWall && !mentionsRoof, WallsOnly)
	add(rePartial.MatchString(n) || singleSurfaceOption(options), PartialTreatment)

	add(reLongevity.MatchString(n), LongevityConcern)
	add(reCompetitor.MatchString(n), CompetitorGeneric)

	return domain.ScenarioContext{
		CustomerNotes:     notes,
		Materials:         calc.MaterialList(),
		Options:           options,
		DetectedScenarios: tags,
	}
}

// DetectCompetitor returns the first named competitor in priority order, or "".
func (Detector) DetectCompetitor(notes string) string {
	n := strings.ToLower(notes)
	switch {
	case strings.Contains(n, "foilboard"):
		return CompetitorFoilboard
	case strings.Contains(n, "anti-con") || strings.Contains(n, "anticon"):
		return CompetitorAntiConBlanket
	case strings.Contains(n, "fibreglass") || reBatts.MatchString(n):
		return CompetitorFibreglassBatts
	}
	return ""
}

func singleSurfaceOption(options []string) bool {
	return len(options) == 1 && (options[0] == "roof" || options[0] == "walls")
}

// Has reports whether tag appears in the context's detected scenarios.
func Has(ctx domain.ScenarioContext, tag string) bool {
	return slices.Contains(ctx.DetectedScenarios, tag)
}
