package calculator

import (
	"math"
	"sort"

	"github.com/mmynk/paladium/internal/models"
)

// ConflictThreshold is the agreement percentage below which a tag counts as
// disputed.
const ConflictThreshold = 80

// Agreement summarizes how the annotators of one image agree.
type Agreement struct {
	// Tags are ordered by count, most popular first. Tags with equal
	// counts keep the order in which they were first seen.
	Tags            []models.Tag
	TotalAnnotators int
	HasConflict     bool
}

// TagAgreement computes tag statistics from one tag list per annotator.
//
// A tag's percentage is count/annotators*100 rounded half to even. An image
// has a conflict when more than one annotator classified it and any tag falls
// below ConflictThreshold.
func TagAgreement(annotations [][]string) Agreement {
	total := len(annotations)

	counts := make(map[string]int)
	var order []string
	for _, tags := range annotations {
		for _, name := range tags {
			if _, seen := counts[name]; !seen {
				order = append(order, name)
			}
			counts[name]++
		}
	}

	tags := make([]models.Tag, 0, len(order))
	for _, name := range order {
		tags = append(tags, models.Tag{
			Name:       name,
			Count:      counts[name],
			Percentage: Percentage(counts[name], total),
		})
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Count > tags[j].Count
	})

	agreement := Agreement{Tags: tags, TotalAnnotators: total}
	if total > 1 {
		for _, tag := range tags {
			if tag.Percentage < ConflictThreshold {
				agreement.HasConflict = true
				break
			}
		}
	}
	return agreement
}

// Percentage returns part/whole*100 rounded half to even, or 0 when whole is 0.
func Percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.RoundToEven(float64(part) / float64(whole) * 100)
}

// Progress is how far an annotator is through the images assigned to them.
type Progress struct {
	Total      int
	Classified int
	Remaining  int

	// Percentage is rounded to two decimals.
	Percentage float64
}

// AnnotatorProgress computes progress from the number of images visible to an
// annotator and the number they have classified.
func AnnotatorProgress(total, classified int) Progress {
	p := Progress{
		Total:      total,
		Classified: classified,
		Remaining:  total - classified,
	}
	if total > 0 {
		p.Percentage = math.Round(float64(classified)/float64(total)*100*100) / 100
	}
	return p
}
