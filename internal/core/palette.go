package core

// Palette holds the fallback category colors, assigned by position.
var Palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#64748B",
}

// FallbackColor returns the palette entry for a category at index i.
func FallbackColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// FillColors assigns FallbackColor(i) to every category without a color.
func FillColors(cats []Category) []Category {
	for i := range cats {
		if cats[i].Color == "" {
			cats[i].Color = FallbackColor(i)
		}
	}
	return cats
}
