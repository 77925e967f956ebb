package risk

import (
	"github.com/goodtune/taglock/internal/storage"
)

// FeatureCount is the dimensionality of the model input vector.
const FeatureCount = 12

// categoryCodes is the stable numeric encoding used when handing a
// category to the model. Unknown categories map to OTHER.
var categoryCodes = map[storage.AppCategory]float64{
	storage.CategoryGame:         0,
	storage.CategoryNews:         1,
	storage.CategoryOther:        2,
	storage.CategoryProductivity: 3,
	storage.CategorySocial:       4,
	storage.CategoryVideo:        5,
}

// CategoryCode returns the numeric encoding for a category.
func CategoryCode(c storage.AppCategory) float64 {
	if code, ok := categoryCodes[c]; ok {
		return code
	}
	return categoryCodes[storage.CategoryOther]
}

// Features flattens a usage event into the fixed-order vector the model
// consumes. Durations are converted from milliseconds to minutes.
func Features(ev storage.UsageEvent) []float64 {
	return []float64{
		float64(ev.DayOfWeek),
		float64(ev.HourOfDay),
		float64(ev.SessionDurationMS) / 60000,
		float64(ev.TimeSinceLastUseMS) / 60000,
		float64(ev.DailyAppLaunches),
		float64(ev.TotalDailyScreenTimeMS) / 60000,
		float64(ev.CumulativeDailyScreenTimeMS) / 60000,
		CategoryCode(ev.Category),
		boolFeature(isBedtimeHour(ev.HourOfDay)),
		boolFeature(ev.HourOfDay >= 6 && ev.HourOfDay <= 9),
		boolFeature(ev.HourOfDay >= 18 && ev.HourOfDay <= 22),
		boolFeature(ev.DayOfWeek == 1 || ev.DayOfWeek == 7),
	}
}

func isBedtimeHour(hour int) bool {
	return hour >= 22 || hour <= 2
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
