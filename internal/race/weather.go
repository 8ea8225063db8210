package race

import (
	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/raceresult"
	"github.com/psybedev/racetrack-sim/internal/tireset"
)

// advanceWeather rolls the per-step weather toggle once at least
// min_weather_duration_s has elapsed since the last change, per spec
// §4.6.
func (r *Race) advanceWeather(dt float64) {
	r.tSinceWeatherChange += dt
	if r.tSinceWeatherChange < r.constants.MinWeatherDurationS {
		return
	}
	if r.rainProbPerMin <= 0 {
		return
	}
	if r.rng.Float64() < r.rainProbPerMin*(dt/60) {
		r.toggleWeather()
	}
}

func (r *Race) toggleWeather() {
	r.tSinceWeatherChange = 0
	if r.weather == WeatherDry {
		r.weather = WeatherRain
		r.result.AddEvent(r.tRace, raceresult.EventWeatherRainStart, r.curLapLeader)
		for _, e := range r.entrants {
			if e.car.Status != car.StatusRunning {
				continue
			}
			if tireset.Compound(e.car.CurrentCompound()).IsSlick() {
				e.car.ScheduleWeatherStrategy(e.handler.GetComplLap()+1, string(tireset.Intermediate))
			}
		}
		return
	}

	r.weather = WeatherDry
	r.result.AddEvent(r.tRace, raceresult.EventWeatherDryStart, r.curLapLeader)
	for _, e := range r.entrants {
		if e.car.Status != car.StatusRunning {
			continue
		}
		nextLap := e.handler.GetComplLap() + 1
		switch tireset.Compound(e.car.CurrentCompound()) {
		case tireset.Intermediate:
			e.car.ScheduleWeatherStrategy(nextLap, fallbackSlick(e.car.LastSlickCompound))
		case tireset.Wet:
			e.car.ScheduleWeatherStrategy(nextLap+1, fallbackSlick(e.car.LastSlickCompound))
		}
	}
}

// fallbackSlick returns the car's last-mounted slick compound, defaulting
// to MEDIUM when the car has never run one (e.g. it started on WET).
func fallbackSlick(lastSlick string) string {
	if lastSlick == "" {
		return string(tireset.Medium)
	}
	return lastSlick
}
