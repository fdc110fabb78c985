package stage

// allGovernorates is the full governorate list used by the nationwide stages.
var allGovernorates = []string{
	"القاهرة", "الجيزة", "القليوبية", "الإسكندرية", "البحيرة", "المنوفية",
	"الغربية", "كفر الشيخ", "الدقهلية", "دمياط", "الشرقية", "الإسماعيلية",
	"بورسعيد", "السويس", "شمال سيناء", "جنوب سيناء", "المنيا", "أسيوط",
	"سوهاج", "قنا", "الأقصر", "أسوان", "البحر الأحمر", "الوادي الجديد",
	"مطروح", "الفيوم", "بني سويف",
}

// Defaults returns the stage reference data the portal seeds an empty store
// with: the five Egyptian certificate stages.
func Defaults() []*Stage {
	return []*Stage{
		{
			ID:           "primary",
			Name:         "الشهادة الابتدائية",
			NameEN:       "Primary Certificate",
			Description:  "نتائج الشهادة الابتدائية",
			Icon:         "✏️",
			Color:        "#8b5cf6",
			Regions:      cloneRegions(allGovernorates[:20]),
			DisplayOrder: 0,
			IsActive:     true,
		},
		{
			ID:           "preparatory",
			Name:         "الشهادة الإعدادية",
			NameEN:       "Preparatory Certificate",
			Description:  "نتائج الشهادة الإعدادية لجميع المحافظات",
			Icon:         "📚",
			Color:        "#10b981",
			Regions:      cloneRegions(allGovernorates),
			DisplayOrder: 1,
			IsActive:     true,
		},
		{
			ID:           "secondary",
			Name:         "الثانوية العامة",
			NameEN:       "General Secondary Certificate",
			Description:  "نتائج الثانوية العامة (المسار العلمي والأدبي)",
			Icon:         "🎓",
			Color:        "#3b82f6",
			Regions:      cloneRegions(allGovernorates),
			DisplayOrder: 2,
			IsActive:     true,
		},
		{
			ID:           "azhar-secondary",
			Name:         "الثانوية الأزهرية",
			NameEN:       "Al-Azhar Secondary Certificate",
			Description:  "نتائج الثانوية الأزهرية (العلمي والأدبي)",
			Icon:         "🕌",
			Color:        "#f59e0b",
			Regions:      cloneRegions(allGovernorates[:18]),
			DisplayOrder: 3,
			IsActive:     true,
		},
		{
			ID:           "technical",
			Name:         "الدبلومات الفنية",
			NameEN:       "Technical Diplomas",
			Description:  "نتائج الدبلومات الفنية (صناعي، تجاري، زراعي، فندقي)",
			Icon:         "🔧",
			Color:        "#ef4444",
			Regions:      cloneRegions(allGovernorates[:19]),
			DisplayOrder: 4,
			IsActive:     true,
		},
	}
}

func cloneRegions(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}
