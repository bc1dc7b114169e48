package advisory

import "farmadvisory/internal/types"

// ClassifySeason maps a calendar month to the Kericho highland season.
//
//	3-5   LongRains
//	6-8   CoolDry
//	9-11  ShortRains
//	12,1,2 Dry
//
// Months outside 1..12 fall through to Dry; the engine rejects them before
// calling.
func ClassifySeason(month int) types.Season {
	switch {
	case month >= 3 && month <= 5:
		return types.SeasonLongRains
	case month >= 6 && month <= 8:
		return types.SeasonCoolDry
	case month >= 9 && month <= 11:
		return types.SeasonShortRains
	default:
		return types.SeasonDry
	}
}
