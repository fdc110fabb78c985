package record

// Band is a named grade category derived from a percentage average.
type Band string

// The fixed banding policy, inclusive lower bounds. This is the only
// banding in the system: record-level grades, aggregate distributions, and
// the ad hoc calculator all derive bands through BandFor.
const (
	BandExcellent  Band = "excellent"
	BandVeryGood   Band = "very_good"
	BandGood       Band = "good"
	BandAcceptable Band = "acceptable"
	BandWeak       Band = "weak"
)

// BandFor maps an average on the 0-100 scale to its grade band.
func BandFor(average float64) Band {
	switch {
	case average >= 90:
		return BandExcellent
	case average >= 80:
		return BandVeryGood
	case average >= 70:
		return BandGood
	case average >= 60:
		return BandAcceptable
	default:
		return BandWeak
	}
}

// Bands returns all bands in display order, best first. Grade
// distributions iterate this slice so their ordering is deterministic.
func Bands() []Band {
	return []Band{BandExcellent, BandVeryGood, BandGood, BandAcceptable, BandWeak}
}

// ArabicLabel returns the band label shown to portal users.
func (b Band) ArabicLabel() string {
	switch b {
	case BandExcellent:
		return "ممتاز"
	case BandVeryGood:
		return "جيد جداً"
	case BandGood:
		return "جيد"
	case BandAcceptable:
		return "مقبول"
	case BandWeak:
		return "ضعيف"
	default:
		return string(b)
	}
}

// EnglishLabel returns the English display label for the band.
func (b Band) EnglishLabel() string {
	switch b {
	case BandExcellent:
		return "Excellent"
	case BandVeryGood:
		return "Very Good"
	case BandGood:
		return "Good"
	case BandAcceptable:
		return "Acceptable"
	case BandWeak:
		return "Weak"
	default:
		return string(b)
	}
}

// IsValid reports whether the band is one of the five known categories.
func (b Band) IsValid() bool {
	switch b {
	case BandExcellent, BandVeryGood, BandGood, BandAcceptable, BandWeak:
		return true
	default:
		return false
	}
}
