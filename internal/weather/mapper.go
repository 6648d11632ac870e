package weather

import (
	"time"

	"umbrella/internal/types"
)

// hourlyTimeLayout is the format Open-Meteo uses for hourly timestamps when
// a named timezone is requested.
const hourlyTimeLayout = "2006-01-02T15:04"

// MapToForecast converts a raw API response into a DailyForecast covering
// only the target calendar date in the reference timezone. Hours with an
// unparseable timestamp are dropped; a null probability maps to 0 so the
// threshold comparison has a defined input, while temperature and weather
// code stay absent.
func MapToForecast(resp *ForecastResponse, targetDate time.Time, tz *time.Location, fetchedAt time.Time) types.DailyForecast {
	targetKey := types.DateString(targetDate, tz)

	forecast := types.DailyForecast{
		Date:      time.Date(targetDate.In(tz).Year(), targetDate.In(tz).Month(), targetDate.In(tz).Day(), 0, 0, 0, 0, tz),
		FetchedAt: fetchedAt,
	}

	for i, raw := range resp.Hourly.Time {
		ts, err := time.ParseInLocation(hourlyTimeLayout, raw, tz)
		if err != nil {
			continue
		}
		if types.DateString(ts, tz) != targetKey {
			continue
		}

		hour := types.HourlyForecast{Time: ts}
		if i < len(resp.Hourly.PrecipitationProbability) {
			if p := resp.Hourly.PrecipitationProbability[i]; p != nil {
				hour.PoP = *p
			}
		}
		if i < len(resp.Hourly.Temperature2m) {
			hour.Temperature = resp.Hourly.Temperature2m[i]
		}
		if i < len(resp.Hourly.WeatherCode) {
			hour.WeatherCode = resp.Hourly.WeatherCode[i]
		}
		forecast.Hours = append(forecast.Hours, hour)
	}

	return forecast
}
