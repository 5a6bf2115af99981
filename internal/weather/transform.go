package weather

import (
	"fmt"
	"math"
	"time"
)

type conditionPayload struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type currentResponse struct {
	Name  string `json:"name"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Visibility *float64 `json:"visibility"`
	Clouds     struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain *struct {
		OneH float64 `json:"1h"`
	} `json:"rain"`
	Weather  []conditionPayload `json:"weather"`
	Timezone int                `json:"timezone"`
	Sys      struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

type forecastItem struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []conditionPayload `json:"weather"`
}

type forecastResponse struct {
	City struct {
		Timezone int `json:"timezone"`
	} `json:"city"`
	List []forecastItem `json:"list"`
}

type geocodingResult struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

const (
	hourlyEntries = 8
	dailyEntries  = 5
	// msToKmh converts wind speed from m/s to km/h.
	msToKmh = 3.6
)

func firstCondition(items []conditionPayload) conditionPayload {
	if len(items) == 0 {
		return conditionPayload{}
	}
	return items[0]
}

func transformCurrent(r *currentResponse, now time.Time) *Snapshot {
	zone := time.FixedZone("", r.Timezone)
	cond := firstCondition(r.Weather)

	visibility := 10000.0
	if r.Visibility != nil {
		visibility = *r.Visibility
	}
	precipitation := 0.0
	if r.Rain != nil {
		precipitation = r.Rain.OneH
	}

	sunrise := time.Unix(r.Sys.Sunrise, 0).In(zone)
	sunset := time.Unix(r.Sys.Sunset, 0).In(zone)

	return &Snapshot{
		Location: Location{
			Name:    r.Name,
			Country: r.Sys.Country,
			Lat:     r.Coord.Lat,
			Lon:     r.Coord.Lon,
		},
		Current: Reading{
			Temp:          Float(math.Round(r.Main.Temp)),
			FeelsLike:     Float(math.Round(r.Main.FeelsLike)),
			TempMin:       Float(math.Round(r.Main.TempMin)),
			TempMax:       Float(math.Round(r.Main.TempMax)),
			Humidity:      Float(r.Main.Humidity),
			Pressure:      Float(r.Main.Pressure),
			WindSpeed:     Float(math.Round(r.Wind.Speed * msToKmh)),
			WindDeg:       Float(r.Wind.Deg),
			WindDirection: WindDirection(r.Wind.Deg),
			Visibility:    Float(math.Round(visibility / 1000)),
			Clouds:        Float(r.Clouds.All),
			Precipitation: Float(precipitation),
			Condition:     cond.Main,
			Description:   cond.Description,
			Icon:          cond.Icon,
			Sunrise:       sunrise.Format("15:04"),
			Sunset:        sunset.Format("15:04"),
			DayLength:     DayLength(sunset.Sub(sunrise)),
			ObservedAt:    now,
		},
	}
}

func transformForecast(r *forecastResponse) *Forecast {
	zone := time.FixedZone("", r.City.Timezone)

	hourly := r.List
	if len(hourly) > hourlyEntries {
		hourly = hourly[:hourlyEntries]
	}

	f := &Forecast{
		Hourly: make([]HourlyEntry, 0, len(hourly)),
		Daily:  transformDaily(r.List, zone),
	}
	for _, item := range hourly {
		cond := firstCondition(item.Weather)
		f.Hourly = append(f.Hourly, HourlyEntry{
			Time:        time.Unix(item.Dt, 0).In(zone),
			Temp:        math.Round(item.Main.Temp),
			Icon:        cond.Icon,
			Condition:   cond.Main,
			Description: cond.Description,
		})
	}
	return f
}

type dayBucket struct {
	date       time.Time
	temps      []float64
	humidity   float64
	windSpeed  float64
	conditions []conditionPayload
}

// transformDaily groups 3-hour entries by local calendar date, keeping the
// first five days in the order they appear.
func transformDaily(items []forecastItem, zone *time.Location) []DailyEntry {
	var order []string
	buckets := make(map[string]*dayBucket)

	for _, item := range items {
		t := time.Unix(item.Dt, 0).In(zone)
		key := t.Format(time.DateOnly)

		b, ok := buckets[key]
		if !ok {
			b = &dayBucket{date: t}
			buckets[key] = b
			order = append(order, key)
		}
		b.temps = append(b.temps, item.Main.Temp)
		b.humidity += item.Main.Humidity
		b.windSpeed += item.Wind.Speed
		b.conditions = append(b.conditions, firstCondition(item.Weather))
	}

	if len(order) > dailyEntries {
		order = order[:dailyEntries]
	}

	daily := make([]DailyEntry, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		n := float64(len(b.temps))
		lo, hi := b.temps[0], b.temps[0]
		for _, t := range b.temps[1:] {
			lo = math.Min(lo, t)
			hi = math.Max(hi, t)
		}
		cond := mostCommonCondition(b.conditions)

		daily = append(daily, DailyEntry{
			Date:        key,
			Day:         b.date.Weekday().String(),
			TempMax:     math.Round(hi),
			TempMin:     math.Round(lo),
			Icon:        cond.Icon,
			Condition:   cond.Main,
			Description: cond.Description,
			Humidity:    math.Round(b.humidity / n),
			WindSpeed:   math.Round(b.windSpeed / n * msToKmh),
		})
	}
	return daily
}

// mostCommonCondition returns the first entry of the most frequent condition.
// Ties go to the condition seen first.
func mostCommonCondition(conditions []conditionPayload) conditionPayload {
	counts := make(map[string]int)
	best := conditionPayload{}
	bestCount := 0
	for _, c := range conditions {
		counts[c.Main]++
	}
	for _, c := range conditions {
		if counts[c.Main] > bestCount {
			best = c
			bestCount = counts[c.Main]
		}
	}
	return best
}

var compassPoints = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindDirection converts a bearing in degrees to a 16-point compass label.
func WindDirection(degrees float64) string {
	idx := int(math.Round(degrees/22.5)) % len(compassPoints)
	if idx < 0 {
		idx += len(compassPoints)
	}
	return compassPoints[idx]
}

// DayLength formats a duration as "<h>h <m>m".
func DayLength(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
