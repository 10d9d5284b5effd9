// Package registers lists the known Kamstrup 403 registers.
package registers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/kmp"
)

type Register struct {
	ID               kmp.RegisterID `json:"id"`
	Key              string         `json:"key"`
	Name             string         `json:"name"`
	EnabledByDefault bool           `json:"enabled_by_default"`
	// Value is a yymmdd date rather than a quantity.
	IsDate bool `json:"is_date"`
}

const (
	HeatEnergy kmp.RegisterID = 60
	Volume     kmp.RegisterID = 68
)

var catalog = []Register{
	{ID: HeatEnergy, Key: "heat_energy", Name: "Heat Energy (E1)", EnabledByDefault: true},
	{ID: 63, Key: "cooling_energy", Name: "Cooling Energy (E3)"},
	{ID: 80, Key: "power", Name: "Power"},
	{ID: 86, Key: "temp1", Name: "Temp1"},
	{ID: 87, Key: "temp2", Name: "Temp2"},
	{ID: 89, Key: "tempdiff", Name: "Tempdiff"},
	{ID: 74, Key: "flow", Name: "Flow"},
	{ID: Volume, Key: "volume", Name: "Volume", EnabledByDefault: true},

	// Monthly min/max
	{ID: 141, Key: "minflow_m", Name: "MinFlow_M"},
	{ID: 139, Key: "maxflow_m", Name: "MaxFlow_M"},
	{ID: 145, Key: "minpower_m", Name: "MinPower_M"},
	{ID: 143, Key: "maxpower_m", Name: "MaxPower_M"},
	{ID: 149, Key: "avgtemp1_m", Name: "AvgTemp1_M"},
	{ID: 150, Key: "avgtemp2_m", Name: "AvgTemp2_M"},

	// Yearly min/max
	{ID: 126, Key: "minflow_y", Name: "MinFlow_Y"},
	{ID: 124, Key: "maxflow_y", Name: "MaxFlow_Y"},
	{ID: 130, Key: "minpower_y", Name: "MinPower_Y"},
	{ID: 128, Key: "maxpower_y", Name: "MaxPower_Y"},
	{ID: 146, Key: "avgtemp1_y", Name: "AvgTemp1_Y"},
	{ID: 147, Key: "avgtemp2_y", Name: "AvgTemp2_Y"},

	{ID: 97, Key: "temp1xm3", Name: "Temp1xm3"},
	{ID: 110, Key: "temp2xm3", Name: "Temp2xm3"},
	{ID: 99, Key: "infoevent", Name: "Infoevent", EnabledByDefault: true},
	{ID: 113, Key: "infoevent_counter", Name: "Infoevent counter", EnabledByDefault: true},
	{ID: 1001, Key: "serial_number", Name: "Serial number", EnabledByDefault: true},
	{ID: 1004, Key: "hour_counter", Name: "HourCounter", EnabledByDefault: true},

	// Dates
	{ID: 140, Key: "minflowdate_m", Name: "MinFlowDate_M", IsDate: true},
	{ID: 138, Key: "maxflowdate_m", Name: "MaxFlowDate_M", IsDate: true},
	{ID: 144, Key: "minpowerdate_m", Name: "MinPowerDate_M", IsDate: true},
	{ID: 142, Key: "maxpowerdate_m", Name: "MaxPowerDate_M", IsDate: true},
	{ID: 125, Key: "minflowdate_y", Name: "MinFlowDate_Y", IsDate: true},
	{ID: 123, Key: "maxflowdate_y", Name: "MaxFlowDate_Y", IsDate: true},
	{ID: 129, Key: "minpowerdate_y", Name: "MinPowerDate_Y", IsDate: true},
	{ID: 127, Key: "maxpowerdate_y", Name: "MaxPowerDate_Y", IsDate: true},
}

var byID = func() map[kmp.RegisterID]Register {
	m := make(map[kmp.RegisterID]Register, len(catalog))
	for _, r := range catalog {
		m[r.ID] = r
	}
	return m
}()

func All() []Register {
	return append([]Register(nil), catalog...)
}

func Lookup(id kmp.RegisterID) (Register, bool) {
	r, ok := byID[id]
	return r, ok
}

// Defaults returns the ids polled when nothing is configured.
func Defaults() []kmp.RegisterID {
	var ids []kmp.RegisterID
	for _, r := range catalog {
		if r.EnabledByDefault {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// ParseID accepts a decimal register id.
func ParseID(raw string) (kmp.RegisterID, error) {
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid register id %q: %w", raw, err)
	}
	return kmp.RegisterID(v), nil
}

// DateFromValue converts a yymmdd register value such as 240131.
func DateFromValue(value float64, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("060102", fmt.Sprintf("%06d", int64(value)), loc)
}
