package conditions

// conditionTexts maps Open-Meteo WMO weather codes to display text.
var conditionTexts = map[int]string{
	0:  "晴朗",
	1:  "晴间多云",
	2:  "多云",
	3:  "阴",
	45: "雾",
	48: "霾",
	51: "小雨",
	53: "中雨",
	55: "大雨",
	56: "冻雨",
	57: "冻雨",
	61: "小雨",
	63: "中雨",
	65: "大雨",
	66: "冻雨",
	67: "冻雨",
	71: "小雪",
	73: "中雪",
	75: "大雪",
	77: "雪粒",
	80: "阵雨",
	81: "阵雨",
	82: "强阵雨",
	85: "阵雪",
	86: "阵雪",
}

// ConditionText returns the display text for a weather code, or "未知" for
// codes outside the table.
func ConditionText(code int) string {
	if text, ok := conditionTexts[code]; ok {
		return text
	}
	return "未知"
}

// compassBuckets are the 8 compass points plus 360 as a second north bucket.
// Ordered so the lowest degree wins distance ties.
var compassBuckets = []struct {
	degrees int
	text    string
}{
	{0, "北"},
	{45, "东北"},
	{90, "东"},
	{135, "东南"},
	{180, "南"},
	{225, "西南"},
	{270, "西"},
	{315, "西北"},
	{360, "北"},
}

// WindDirectionText maps wind direction in degrees to the nearest compass
// point by plain absolute distance over {0,45,...,315,360}. Both 0 and 360
// map to north.
func WindDirectionText(degrees float64) string {
	best := compassBuckets[0]
	bestDist := abs(degrees - float64(best.degrees))
	for _, b := range compassBuckets[1:] {
		if d := abs(degrees - float64(b.degrees)); d < bestDist {
			best = b
			bestDist = d
		}
	}
	return best.text
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// windLevelThresholds are Beaufort-style upper bounds in m/s. The wind level
// is the index of the first threshold the speed falls below.
var windLevelThresholds = []float64{0.3, 1.6, 3.4, 5.5, 8.0, 10.8, 13.9, 17.2, 20.8, 24.5, 28.5, 32.7}

// WindLevel converts a wind speed in km/h to a level 0-12.
func WindLevel(speedKmh float64) int {
	speedMps := speedKmh / 3.6
	for level, threshold := range windLevelThresholds {
		if speedMps < threshold {
			return level
		}
	}
	return 12
}
