package profile

import (
	"math"
	"time"
)

const (
	degToRad = math.Pi / 180
	// solarConstant is the extraterrestrial irradiance [kW/m²].
	solarConstant = 1.353
	// diffuseShare is diffuse irradiance as a fraction of direct.
	diffuseShare = 0.1
)

// Site locates a fixed, equator-facing array for the clear-sky model.
type Site struct {
	Latitude  float64 `json:"Latitude" mapstructure:"latitude"`   // degrees north
	Elevation float64 `json:"Elevation" mapstructure:"elevation"` // km above sea level
	Tilt      float64 `json:"Tilt" mapstructure:"tilt"`           // degrees from horizontal
}

// ClearSky returns hours of clear-sky irradiance on the array plane
// [kW/m²], evaluated at the middle of each hour from start. Clock time is
// taken as solar time.
func ClearSky(s Site, start time.Time, hours int) []float64 {
	out := make([]float64, hours)
	for i := range out {
		out[i] = Irradiance(s, start.Add(time.Duration(i)*time.Hour+30*time.Minute))
	}
	return out
}

// Irradiance is the clear-sky irradiance on the array plane at t [kW/m²].
func Irradiance(s Site, t time.Time) float64 {
	lat := s.Latitude * degToRad
	decl := declination(t)
	h := hourAngle(t)

	elev := math.Asin(math.Sin(decl)*math.Sin(lat) + math.Cos(decl)*math.Cos(lat)*math.Cos(h))
	if elev <= 0 {
		return 0
	}

	// Meinel air mass model with the elevation correction
	airMass := 1 / math.Sin(elev)
	a := 0.14 * s.Elevation
	direct := solarConstant * ((1-a)*math.Pow(0.7, math.Pow(airMass, 0.678)) + a)
	diffuse := direct * diffuseShare

	tilted := lat - s.Tilt*degToRad
	cosIncidence := math.Cos(h)*math.Cos(decl)*math.Cos(tilted) + math.Sin(decl)*math.Sin(tilted)
	if cosIncidence <= 0 {
		return diffuse
	}
	return direct*cosIncidence + diffuse
}

func hourAngle(t time.Time) float64 {
	hourOfDay := float64(t.Hour()*3600+t.Minute()*60+t.Second()) / 3600
	return (hourOfDay - 12) * 15 * degToRad
}

func declination(t time.Time) float64 {
	x := math.Sin((float64(t.YearDay()) - 81) * 2 * math.Pi / 365.25)
	return math.Asin(x * math.Sin(23.45*degToRad))
}
