package solar

import (
	"math"
	"time"
)

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }

func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }

// wrap360 normalizes an angle to [0, 360).
func wrap360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// Position is the apparent sun position for one instant. Angles are degrees;
// azimuth is clockwise from north.
type Position struct {
	ZenithDeg    float64
	ElevationDeg float64
	AzimuthDeg   float64
}

// CosZenith returns cos of the zenith angle.
func (p Position) CosZenith() float64 {
	return math.Cos(degToRad(p.ZenithDeg))
}

// julianDay converts a time to Julian Day.
func julianDay(t time.Time) float64 {
	return 2440587.5 + float64(t.UnixNano())/86400e9
}

// SunPosition computes the sun position with the NOAA solar calculator equations.
// Atmospheric refraction is ignored.
func SunPosition(t time.Time, latDeg, lonDeg float64) Position {
	T := (julianDay(t) - 2451545.0) / 36525.0

	l0 := wrap360(280.46646 + T*(36000.76983+T*0.0003032))
	m := 357.52911 + T*(35999.05029-0.0001537*T)
	e := 0.016708634 - T*(0.000042037+0.0000001267*T)
	mRad := degToRad(m)

	center := math.Sin(mRad)*(1.914602-T*(0.004817+0.000014*T)) +
		math.Sin(2*mRad)*(0.019993-0.000101*T) +
		math.Sin(3*mRad)*0.000289
	trueLong := l0 + center
	omega := degToRad(125.04 - 1934.136*T)
	appLong := trueLong - 0.00569 - 0.00478*math.Sin(omega)

	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := degToRad(eps0 + 0.00256*math.Cos(omega))
	decl := math.Asin(math.Sin(eps) * math.Sin(degToRad(appLong)))

	y := math.Pow(math.Tan(eps/2), 2)
	l0Rad := degToRad(l0)
	eqTimeMin := 4 * radToDeg(y*math.Sin(2*l0Rad)-
		2*e*math.Sin(mRad)+
		4*e*y*math.Sin(mRad)*math.Cos(2*l0Rad)-
		0.5*y*y*math.Sin(4*l0Rad)-
		1.25*e*e*math.Sin(2*mRad))

	utc := t.UTC()
	minutes := float64(utc.Hour()*60+utc.Minute()) + float64(utc.Second())/60 + float64(utc.Nanosecond())/6e10
	trueSolarMin := math.Mod(minutes+eqTimeMin+4*lonDeg, 1440)
	if trueSolarMin < 0 {
		trueSolarMin += 1440
	}
	hourAngle := degToRad(trueSolarMin/4 - 180)

	lat := degToRad(latDeg)
	cosZen := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(hourAngle)
	cosZen = math.Max(-1, math.Min(1, cosZen))
	zenith := radToDeg(math.Acos(cosZen))

	az := radToDeg(math.Atan2(math.Sin(hourAngle),
		math.Cos(hourAngle)*math.Sin(lat)-math.Tan(decl)*math.Cos(lat))) + 180

	return Position{
		ZenithDeg:    zenith,
		ElevationDeg: 90 - zenith,
		AzimuthDeg:   wrap360(az),
	}
}

// SunPositions computes positions for every timestamp.
func SunPositions(times []time.Time, latDeg, lonDeg float64) []Position {
	out := make([]Position, len(times))
	for i, t := range times {
		out[i] = SunPosition(t, latDeg, lonDeg)
	}
	return out
}
