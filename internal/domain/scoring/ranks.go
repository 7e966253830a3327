package scoring

// HunterRank is one of the twelve result tiers, 1 being the best.
type HunterRank struct {
	Title  string `json:"rank"`
	Number int    `json:"number"`
	Total  int    `json:"total"`
}

var tierTitles = [...]string{
	"ハンター・オブ・ザ・オリジン",
	"ハンター・ゼロ",
	"ゴッドハンター",
	"アルティメットハンター",
	"ベテランハンター",
	"スキルドハンター",
	"アマチュアハンター",
	"ルーキーハンター",
	"ミスティーハンター",
	"スロウリーハンター",
	"スリーピーハンター",
	"リラックスハンター",
}

// Inclusive upper bounds of tiers 1..11; anything above is tier 12.
var (
	reflexBoundsMS    = []float64{200, 249, 299, 349, 399, 449, 499, 599, 699, 799, 899}
	targetBoundsSec   = []float64{0.5, 0.7, 0.9, 1.1, 1.3, 1.5, 1.7, 2.0, 2.3, 2.6, 2.9}
	sequenceBoundsSec = []float64{15, 22, 29, 37, 44, 52, 59, 74, 89, 104, 119}
)

// ReflexRank classifies an average reaction time in milliseconds.
func ReflexRank(avgMS float64) HunterRank { return tier(avgMS, reflexBoundsMS) }

// TargetRank classifies an average target reaction time in seconds.
func TargetRank(avgSec float64) HunterRank { return tier(avgSec, targetBoundsSec) }

// SequenceRank classifies a sequence completion time in seconds.
func SequenceRank(sec float64) HunterRank { return tier(sec, sequenceBoundsSec) }

func tier(v float64, bounds []float64) HunterRank {
	n := len(tierTitles)
	for i, b := range bounds {
		if v <= b {
			n = i + 1
			break
		}
	}
	return HunterRank{Title: tierTitles[n-1], Number: n, Total: len(tierTitles)}
}
