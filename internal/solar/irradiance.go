package solar

import "math"

// Params are the fixed coefficients of the irradiance and DC chain.
type Params struct {
	Albedo           float64 // ground reflectance for the isotropic ground term
	IAMCoefficient   float64 // ASHRAE b
	U0               float64 // Faiman constant heat loss, W/(m²·K)
	U1               float64 // Faiman wind heat loss, W·s/(m³·K)
	GammaPdc         float64 // DC temperature coefficient, 1/K
	DefaultWind      float64 // m/s, used when the series has no wind column
	DefaultTempAir   float64 // °C, used when the series has no temperature column
	MinCosZenith     float64 // direct irradiance is dropped below this sun height
	LowIrradianceWm2 float64 // threshold for low-light loss accounting
}

// DefaultParams mirror pvlib defaults for a crystalline module on an open rack.
var DefaultParams = Params{
	Albedo:           0.25,
	IAMCoefficient:   0.035,
	U0:               20,
	U1:               0,
	GammaPdc:         -0.003,
	DefaultWind:      1.0,
	DefaultTempAir:   20,
	MinCosZenith:     0.01,
	LowIrradianceWm2: 200,
}

// CosAOI returns the cosine of the angle between the sun and the surface normal.
// The result is negative when the sun is behind the plane.
func CosAOI(tiltDeg, surfAzDeg float64, sun Position) float64 {
	tilt := degToRad(tiltDeg)
	zen := degToRad(sun.ZenithDeg)
	return math.Cos(zen)*math.Cos(tilt) +
		math.Sin(zen)*math.Sin(tilt)*math.Cos(degToRad(sun.AzimuthDeg-surfAzDeg))
}

// POA holds plane-of-array irradiance components in W/m².
type POA struct {
	Direct        float64
	SkyDiffuse    float64
	GroundDiffuse float64
}

// Global is the total plane-of-array irradiance.
func (p POA) Global() float64 { return p.Direct + p.SkyDiffuse + p.GroundDiffuse }

// Isotropic transposes horizontal irradiance onto a tilted plane with an isotropic sky.
func Isotropic(tiltDeg, cosAOI, dni, ghi, dhi, albedo float64) POA {
	cosTilt := math.Cos(degToRad(tiltDeg))
	return POA{
		Direct:        math.Max(dni*cosAOI, 0),
		SkyDiffuse:    dhi * (1 + cosTilt) / 2,
		GroundDiffuse: ghi * albedo * (1 - cosTilt) / 2,
	}
}

// IAMASHRAE is the ASHRAE incidence angle modifier. It is zero for incidence at or beyond 90°.
func IAMASHRAE(cosAOI, b float64) float64 {
	if cosAOI <= 0 {
		return 0
	}
	iam := 1 - b*(1/cosAOI-1)
	return math.Max(iam, 0)
}

// FaimanCellTemp estimates cell temperature from POA irradiance, air temperature and wind.
func FaimanCellTemp(poaGlobal, tempAir, wind, u0, u1 float64) float64 {
	return tempAir + poaGlobal/(u0+u1*wind)
}

// PVWattsDC is the PVWatts DC model with reference temperature 25 °C.
func PVWattsDC(gEff, tempCell, pdc0, gamma float64) float64 {
	return gEff / 1000 * pdc0 * (1 + gamma*(tempCell-25))
}

// FrontHemisphere reports whether the sun azimuth is within ±90° of the surface azimuth.
func FrontHemisphere(sunAzDeg, surfAzDeg float64) bool {
	diff := math.Abs(wrap360(sunAzDeg-surfAzDeg+180) - 180)
	return diff < 90
}
