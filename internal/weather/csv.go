package weather

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// CSV column names. "time" is required; each other column is optional.
const (
	ColTime             = "time"
	ColGHI              = "ghi"
	ColDNI              = "dni"
	ColDHI              = "dhi"
	ColPOADirect        = "poa_direct"
	ColPOASkyDiffuse    = "poa_sky_diffuse"
	ColPOAGroundDiffuse = "poa_ground_diffuse"
	ColTempAir          = "temp_air"
	ColWindSpeed        = "wind_speed"
)

var csvColumns = []string{
	ColGHI, ColDNI, ColDHI,
	ColPOADirect, ColPOASkyDiffuse, ColPOAGroundDiffuse,
	ColTempAir, ColWindSpeed,
}

// column returns the slice pointer that stores a named CSV column.
func (s *Series) column(name string) *[]float64 {
	switch name {
	case ColGHI:
		return &s.GHI
	case ColDNI:
		return &s.DNI
	case ColDHI:
		return &s.DHI
	case ColPOADirect:
		return &s.POADirect
	case ColPOASkyDiffuse:
		return &s.POASkyDiffuse
	case ColPOAGroundDiffuse:
		return &s.POAGroundDiffuse
	case ColTempAir:
		return &s.TempAir
	case ColWindSpeed:
		return &s.WindSpeed
	}
	return nil
}

// ReadCSV parses a weather table with an RFC 3339 "time" column.
// The step is taken from the first two samples.
func ReadCSV(r io.Reader) (*Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	timeIdx := -1
	s := &Series{}
	cols := make([]*[]float64, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == ColTime {
			timeIdx = i
			continue
		}
		if col := s.column(name); col != nil {
			*col = []float64{}
			cols[i] = col
		}
	}
	if timeIdx < 0 {
		return nil, errors.New("missing time column")
	}

	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		t, err := time.Parse(time.RFC3339, rec[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing time: %w", line, err)
		}
		s.Times = append(s.Times, t.UTC())

		for i, col := range cols {
			if col == nil {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, header[i], err)
			}
			*col = append(*col, v)
		}
	}

	if len(s.Times) > 1 {
		s.Step = s.Times[1].Sub(s.Times[0])
	} else {
		s.Step = time.Hour
	}
	return s, nil
}

// WriteCSV writes every present column of s.
func WriteCSV(w io.Writer, s *Series) error {
	cw := csv.NewWriter(w)

	header := []string{ColTime}
	var cols [][]float64
	for _, name := range csvColumns {
		if col := *s.column(name); col != nil {
			header = append(header, name)
			cols = append(cols, col)
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i, t := range s.Times {
		row[0] = t.UTC().Format(time.RFC3339)
		for c, col := range cols {
			row[c+1] = strconv.FormatFloat(col[i], 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVSource serves series from files in Dir named by FileName.
type CSVSource struct {
	Dir string
}

func (c *CSVSource) Name() string { return "csv" }

// FileName is the file a request is stored under.
func FileName(req Request) string {
	return fmt.Sprintf("weather_%.4f_%.4f_%d_%d_%.1f_%.1f.csv",
		req.Latitude, req.Longitude, req.YearStart, req.YearEnd, req.TiltDeg, req.AzimuthDeg)
}

func (c *CSVSource) Fetch(ctx context.Context, req Request) (*Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(c.Dir, FileName(req))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	s.TiltDeg = req.TiltDeg
	s.AzimuthDeg = req.AzimuthDeg
	return s, nil
}
