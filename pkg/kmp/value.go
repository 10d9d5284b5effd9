package kmp

import "math"

// KMP unit codes. Codes missing from the table decode to an absent unit.
var units = map[byte]string{
	1:  "Wh",
	2:  "kWh",
	3:  "MWh",
	4:  "GWh",
	5:  "J",
	6:  "kJ",
	7:  "MJ",
	8:  "GJ",
	9:  "cal",
	10: "kcal",
	11: "Mcal",
	12: "Gcal",
	13: "varh",
	14: "kvarh",
	15: "Mvarh",
	16: "Gvarh",
	17: "VAh",
	18: "kVAh",
	19: "MVAh",
	20: "GVAh",
	21: "kW",
	22: "kW",
	23: "MW",
	24: "GW",
	25: "kvar",
	26: "kvar",
	27: "Mvar",
	28: "Gvar",
	29: "VA",
	30: "kVA",
	31: "MVA",
	32: "GVA",
	33: "V",
	34: "A",
	35: "kV",
	36: "kA",
	37: "°C",
	38: "K",
	39: "L",
	40: "m³",
	41: "L/h",
	42: "m³/h",
	43: "m³×°C",
	44: "t",
	45: "t/h",
	46: "h",
	47: "hh:mm:ss",
	48: "yy:mm:dd",
	49: "yyyy:mm:dd",
	50: "mm:dd",
	52: "bar",
	53: "RTC",
	54: "ASCII",
	55: "m³×10",
	56: "t×10",
	57: "GJ×10",
	58: "min",
	59: "bitfield",
	60: "s",
	61: "ms",
	62: "d",
	63: "RTC-Q",
	64: "datetime",
}

// UnitName returns the symbol for a KMP unit code.
func UnitName(code byte) (string, bool) {
	name, ok := units[code]
	return name, ok
}

// DecodeValue decodes [unit][length][exponent][mantissa...].
//
// Exponent byte: bits 0-5 magnitude, bit 6 negates the exponent, bit 7
// negates the resulting scale factor.
func DecodeValue(record []byte) (RegisterValue, error) {
	if len(record) < 3 {
		return RegisterValue{}, ErrShortRecord
	}
	unitCode, length, exponent := record[0], int(record[1]), record[2]
	if len(record) < 3+length {
		return RegisterValue{}, ErrShortRecord
	}

	mantissa := 0.0
	for _, b := range record[3 : 3+length] {
		mantissa = mantissa*256 + float64(b)
	}

	exp := int(exponent & 0x3F)
	if exponent&0x40 != 0 {
		exp = -exp
	}
	scale := math.Pow10(exp)
	if exponent&0x80 != 0 {
		scale = -scale
	}

	unit, _ := UnitName(unitCode)
	return RegisterValue{
		Value: mantissa * scale,
		Unit:  unit,
		Valid: true,
	}, nil
}
