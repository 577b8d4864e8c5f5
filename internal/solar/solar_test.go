package solar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/weather"
)

const berlinLat, berlinLon = 52.52, 13.405

func TestSunPosition_BerlinSolsticeNoon(t *testing.T) {
	// Solar noon in Berlin is about 11:07 UTC around the June solstice.
	p := SunPosition(time.Date(2021, 6, 21, 11, 7, 0, 0, time.UTC), berlinLat, berlinLon)
	assert.InDelta(t, 90-berlinLat+23.44, p.ElevationDeg, 0.3)
	assert.InDelta(t, 180, p.AzimuthDeg, 3)
}

func TestSunPosition_EquatorEquinox(t *testing.T) {
	p := SunPosition(time.Date(2021, 3, 20, 12, 0, 0, 0, time.UTC), 0, 0)
	assert.Less(t, p.ZenithDeg, 3.0)
}

func TestSunPosition_MorningEastEveningWest(t *testing.T) {
	morning := SunPosition(time.Date(2021, 6, 21, 5, 0, 0, 0, time.UTC), berlinLat, berlinLon)
	evening := SunPosition(time.Date(2021, 6, 21, 17, 0, 0, 0, time.UTC), berlinLat, berlinLon)
	night := SunPosition(time.Date(2021, 6, 21, 23, 0, 0, 0, time.UTC), berlinLat, berlinLon)

	assert.Greater(t, morning.ElevationDeg, 0.0)
	assert.Less(t, morning.AzimuthDeg, 180.0)
	assert.Greater(t, evening.AzimuthDeg, 180.0)
	assert.Less(t, night.ElevationDeg, 0.0)
}

func TestIAMASHRAE(t *testing.T) {
	tests := []struct {
		cos, want float64
	}{
		{1, 1},
		{0.5, 0.965},
		{0, 0},
		{-0.3, 0},
		{0.02, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, IAMASHRAE(tt.cos, 0.035), 1e-9, "cos=%g", tt.cos)
	}
}

func TestIsotropic(t *testing.T) {
	flat := Isotropic(0, 0.8, 500, 700, 300, 0.25)
	assert.InDelta(t, 400, flat.Direct, 1e-9)
	assert.InDelta(t, 300, flat.SkyDiffuse, 1e-9)
	assert.InDelta(t, 0, flat.GroundDiffuse, 1e-9)

	wall := Isotropic(90, -0.2, 500, 800, 200, 0.25)
	assert.InDelta(t, 0, wall.Direct, 1e-9)
	assert.InDelta(t, 100, wall.SkyDiffuse, 1e-9)
	assert.InDelta(t, 100, wall.GroundDiffuse, 1e-9)
	assert.InDelta(t, 200, wall.Global(), 1e-9)
}

func TestFaimanAndPVWatts(t *testing.T) {
	assert.InDelta(t, 70, FaimanCellTemp(1000, 20, 1, 20, 0), 1e-9)
	assert.InDelta(t, 800, PVWattsDC(1000, 25, 800, -0.003), 1e-9)
	assert.InDelta(t, 800*0.94, PVWattsDC(1000, 45, 800, -0.003), 1e-9)
	assert.InDelta(t, 400, PVWattsDC(500, 60, 800, 0), 1e-9)
}

func TestFrontHemisphere(t *testing.T) {
	assert.True(t, FrontHemisphere(170, 180))
	assert.True(t, FrontHemisphere(100, 180))
	assert.False(t, FrontHemisphere(80, 180))
	assert.True(t, FrontHemisphere(350, 10))
	assert.False(t, FrontHemisphere(180, 0))
}

func daySeries(ghi, dni, dhi float64) *weather.Series {
	start := time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC)
	s := &weather.Series{Step: time.Hour, TempAir: make([]float64, 24)}
	for h := range 24 {
		s.Times = append(s.Times, start.Add(time.Duration(h)*time.Hour))
		s.GHI = append(s.GHI, ghi)
		s.DNI = append(s.DNI, dni)
		s.DHI = append(s.DHI, dhi)
		s.TempAir[h] = 20
	}
	return s
}

func flatArray() model.SubArray {
	return model.SubArray{MPPTInput: 1, Modules: 2, ModuleWp: 400, TiltDeg: 0, AzimuthDeg: 180}
}

func TestCompute_DiffuseOnlyFlatArray(t *testing.T) {
	s := daySeries(1000, 0, 1000)
	m := NewModel(berlinLat, berlinLon, time.UTC)

	dc, err := m.Compute(s, []model.SubArray{flatArray()})
	require.NoError(t, err)

	pos := SunPositions(s.Times, berlinLat, berlinLon)
	for i := range s.Times {
		iam := IAMASHRAE(CosAOI(0, 180, pos[i]), 0.035)
		assert.InDelta(t, 800*iam, dc.At25[i], 1e-6)
		assert.InDelta(t, dc.At25[i], dc.STC[i], 1e-6)
		// cell temperature 20 + 1000/20 = 70 °C
		assert.InDelta(t, 800*iam*(1-0.003*45), dc.Real[i], 1e-6)
		assert.InDelta(t, dc.Real[i], dc.Unshaded[i], 1e-6)
		assert.InDelta(t, 800, dc.Ideal[i], 1e-6)
		assert.GreaterOrEqual(t, dc.Real[i], 0.0)
	}
	require.Len(t, dc.SubArrays, 1)
	assert.InDelta(t, 1000, dc.SubArrays[0].MeanPOA, 1e-6)
	assert.Greater(t, dc.SubArrays[0].IAMLossPct, 0.0)
}

func TestCompute_SumsSubArrays(t *testing.T) {
	s := daySeries(600, 500, 150)
	m := NewModel(berlinLat, berlinLon, time.UTC)

	south := model.SubArray{MPPTInput: 1, Modules: 1, ModuleWp: 400, TiltDeg: 30, AzimuthDeg: 180}
	west := model.SubArray{MPPTInput: 2, Modules: 1, ModuleWp: 300, TiltDeg: 60, AzimuthDeg: 270}

	both, err := m.Compute(s, []model.SubArray{south, west})
	require.NoError(t, err)
	a, err := m.Compute(s, []model.SubArray{south})
	require.NoError(t, err)
	b, err := m.Compute(s, []model.SubArray{west})
	require.NoError(t, err)

	for i := range s.Times {
		assert.InDelta(t, a.Real[i]+b.Real[i], both.Real[i], 1e-6)
		assert.InDelta(t, a.Real[i], both.SubArrays[0].Real[i], 1e-6)
	}
}

func TestCompute_SimpleShadingReducesRealOnly(t *testing.T) {
	s := daySeries(400, 600, 100)
	m := NewModel(berlinLat, berlinLon, time.UTC)

	sa := model.SubArray{MPPTInput: 1, Modules: 2, ModuleWp: 400, TiltDeg: 60, AzimuthDeg: 90,
		Shading: model.Shading{Mode: model.ShadingSimple, Level: model.ShadingHeavy}}
	dc, err := m.Compute(s, []model.SubArray{sa})
	require.NoError(t, err)

	var realSum, refSum float64
	for i := range s.Times {
		realSum += dc.Real[i]
		refSum += dc.Unshaded[i]
		assert.LessOrEqual(t, dc.Real[i], dc.Unshaded[i]+1e-9)
	}
	assert.Less(t, realSum, refSum)
}

func TestCompute_MonthlyShading(t *testing.T) {
	s := daySeries(800, 700, 0)
	m := NewModel(berlinLat, berlinLon, time.UTC)

	sa := model.SubArray{MPPTInput: 1, Modules: 1, ModuleWp: 400, TiltDeg: 0, AzimuthDeg: 180,
		Shading: model.Shading{Mode: model.ShadingMonthly, MonthlyPct: map[int]float64{6: 100}}}
	dc, err := m.Compute(s, []model.SubArray{sa})
	require.NoError(t, err)

	var unshaded float64
	for i := range s.Times {
		assert.InDelta(t, 0, dc.Real[i], 1e-9)
		unshaded += dc.Unshaded[i]
	}
	assert.Greater(t, unshaded, 0.0)
}

func TestCompute_UnknownShadingMode(t *testing.T) {
	sa := flatArray()
	sa.Shading.Mode = "random"
	_, err := NewModel(0, 0, nil).Compute(daySeries(1, 1, 1), []model.SubArray{sa})
	var cerr *model.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestPrepareHorizontal_POAFallback(t *testing.T) {
	h := daySeries(0, 0, 0)
	pos := SunPositions(h.Times, berlinLat, berlinLon)

	s := &weather.Series{Times: h.Times, Step: time.Hour, TiltDeg: 30, AzimuthDeg: 180}
	for i := range h.Times {
		cosAOI := CosAOI(30, 180, pos[i])
		poa := Isotropic(30, cosAOI, 500, 600, 150, 0.25)
		s.POADirect = append(s.POADirect, poa.Direct)
		s.POASkyDiffuse = append(s.POASkyDiffuse, poa.SkyDiffuse)
		s.POAGroundDiffuse = append(s.POAGroundDiffuse, poa.GroundDiffuse)
	}

	hz, err := PrepareHorizontal(s, pos, DefaultParams)
	require.NoError(t, err)

	noon := 11
	assert.InDelta(t, 500, hz.DNI[noon], 1e-6)
	assert.InDelta(t, s.POASkyDiffuse[noon]+s.POAGroundDiffuse[noon], hz.DHI[noon], 1e-9)
	assert.InDelta(t, 500*pos[noon].CosZenith()+hz.DHI[noon], hz.GHI[noon], 1e-6)
	assert.InDelta(t, 0, hz.DNI[0], 1e-9)
}

func TestPrepareHorizontal_MasksLowSunAndNegative(t *testing.T) {
	s := daySeries(100, -5, 100)
	pos := SunPositions(s.Times, berlinLat, berlinLon)
	hz, err := PrepareHorizontal(s, pos, DefaultParams)
	require.NoError(t, err)
	for i := range hz.DNI {
		assert.InDelta(t, 0, hz.DNI[i], 1e-12)
	}

	s = daySeries(100, 300, 100)
	hz, err = PrepareHorizontal(s, pos, DefaultParams)
	require.NoError(t, err)
	assert.InDelta(t, 0, hz.DNI[0], 1e-12)
	assert.InDelta(t, 300, hz.DNI[11], 1e-12)
}

func TestPrepareHorizontal_MissingData(t *testing.T) {
	s := &weather.Series{Times: []time.Time{time.Now()}, Step: time.Hour, TempAir: []float64{1}}
	_, err := PrepareHorizontal(s, SunPositions(s.Times, 0, 0), DefaultParams)
	var de *model.DataError
	assert.True(t, errors.As(err, &de))
}

func TestCombine_MatchesJointCompute(t *testing.T) {
	s := daySeries(600, 500, 150)
	m := NewModel(berlinLat, berlinLon, time.UTC)

	south := model.SubArray{MPPTInput: 1, Modules: 1, ModuleWp: 400, TiltDeg: 30, AzimuthDeg: 180}
	east := model.SubArray{MPPTInput: 2, Modules: 2, ModuleWp: 300, TiltDeg: 20, AzimuthDeg: 90}

	joint, err := m.Compute(s, []model.SubArray{south, east})
	require.NoError(t, err)
	a, err := m.Compute(s, []model.SubArray{south})
	require.NoError(t, err)
	b, err := m.Compute(s, []model.SubArray{east})
	require.NoError(t, err)

	got, err := Combine([]*DC{a, b})
	require.NoError(t, err)
	for i := range s.Times {
		assert.InDelta(t, joint.Real[i], got.Real[i], 1e-9)
		assert.InDelta(t, joint.Unshaded[i], got.Unshaded[i], 1e-9)
		assert.InDelta(t, joint.MeanEffIrradiance[i], got.MeanEffIrradiance[i], 1e-9)
	}
	assert.InDelta(t, joint.POAGlobalSum, got.POAGlobalSum, 1e-6)
	require.Len(t, got.SubArrays, 2)
	assert.Equal(t, 1, got.SubArrays[1].Index)

	_, err = Combine([]*DC{a, {Real: []float64{1}}})
	var de *model.DataError
	assert.True(t, errors.As(err, &de))
}
