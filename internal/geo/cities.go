package geo

import (
	"strings"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
)

// cityCoordinates covers the municipalities and provincial capitals the
// upstream geocoder is known to miss for Chinese-language queries.
var cityCoordinates = map[string]models.ResolvedLocation{
	"北京":   {Name: "北京", Latitude: 39.9042, Longitude: 116.4074},
	"上海":   {Name: "上海", Latitude: 31.2304, Longitude: 121.4737},
	"天津":   {Name: "天津", Latitude: 39.1256, Longitude: 117.1902},
	"重庆":   {Name: "重庆", Latitude: 29.4316, Longitude: 106.9123},
	"广州":   {Name: "广州", Latitude: 23.1291, Longitude: 113.2644},
	"深圳":   {Name: "深圳", Latitude: 22.5431, Longitude: 114.0579},
	"杭州":   {Name: "杭州", Latitude: 30.2741, Longitude: 120.1551},
	"成都":   {Name: "成都", Latitude: 30.5728, Longitude: 104.0668},
	"武汉":   {Name: "武汉", Latitude: 30.5928, Longitude: 114.3055},
	"西安":   {Name: "西安", Latitude: 34.3416, Longitude: 108.9398},
	"南京":   {Name: "南京", Latitude: 32.0603, Longitude: 118.7969},
	"昆明":   {Name: "昆明", Latitude: 25.0389, Longitude: 102.7183},
	"呼和浩特": {Name: "呼和浩特", Latitude: 40.8181, Longitude: 111.7626},
	"拉萨":   {Name: "拉萨", Latitude: 29.6524, Longitude: 91.1735},
	"乌鲁木齐": {Name: "乌鲁木齐", Latitude: 43.8256, Longitude: 87.6168},
	"银川":   {Name: "银川", Latitude: 38.4681, Longitude: 106.2328},
	"西宁":   {Name: "西宁", Latitude: 36.6171, Longitude: 101.7782},
	"南宁":   {Name: "南宁", Latitude: 22.8170, Longitude: 108.3661},
	"济南":   {Name: "济南", Latitude: 36.6683, Longitude: 117.0203},
	"石家庄":  {Name: "石家庄", Latitude: 38.0428, Longitude: 114.5149},
	"哈尔滨":  {Name: "哈尔滨", Latitude: 45.8038, Longitude: 126.5349},
	"长春":   {Name: "长春", Latitude: 43.8256, Longitude: 125.3245},
	"沈阳":   {Name: "沈阳", Latitude: 41.8057, Longitude: 123.4315},
	"郑州":   {Name: "郑州", Latitude: 34.8074, Longitude: 113.4668},
	"合肥":   {Name: "合肥", Latitude: 31.8206, Longitude: 117.2272},
	"福州":   {Name: "福州", Latitude: 26.0745, Longitude: 119.3062},
	"南昌":   {Name: "南昌", Latitude: 28.6827, Longitude: 115.8595},
	"长沙":   {Name: "长沙", Latitude: 28.2278, Longitude: 112.9388},
	"贵阳":   {Name: "贵阳", Latitude: 26.5783, Longitude: 106.7078},
	"海口":   {Name: "海口", Latitude: 20.0440, Longitude: 110.3593},
	"兰州":   {Name: "兰州", Latitude: 36.0580, Longitude: 103.8235},
}

// cityAliases maps province/region names (and oddly-suffixed inputs) to a
// representative city present in cityCoordinates.
var cityAliases = map[string]string{
	"重庆":  "重庆市",
	"西藏":  "拉萨",
	"内蒙":  "呼和浩特",
	"新疆":  "乌鲁木齐",
	"内蒙古": "呼和浩特",
	"广西":  "南宁",
	"宁夏":  "银川",
	"青海":  "西宁",
}

// StripSuffix removes the administrative "市" suffix from a city name so that
// "北京市" and "北京" resolve and archive identically.
func StripSuffix(city string) string {
	return strings.ReplaceAll(city, "市", "")
}

// Normalize strips the administrative suffix and applies the alias table.
// This is the canonical pre-lookup form for resolution and historical queries.
func Normalize(city string) string {
	normalized := StripSuffix(city)
	if alias, ok := cityAliases[normalized]; ok {
		return alias
	}
	return normalized
}
