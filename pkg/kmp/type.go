package kmp

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	requestStart  byte = 0x80
	responseStart byte = 0x40
	frameEnd      byte = 0x0D
	escapeByte    byte = 0x1B

	commandReadRegisters byte = 0x3F
	subCommandRegisters  byte = 0x10

	// Protocol limit on registers per exchange.
	MaxRegistersPerRequest = 8
)

var (
	ErrTooManyRegisters = errors.New("kmp: too many registers in one request")
	ErrShortRecord      = errors.New("kmp: register record truncated")
)

// RegisterID is the address of one meter quantity.
type RegisterID uint16

// RegisterValue is one decoded register. Valid is false when the meter did
// not return the register, which is different from a zero reading.
type RegisterValue struct {
	Value float64
	Unit  string
	Valid bool
}

// Result maps each requested register to its value for one exchange.
type Result map[RegisterID]RegisterValue

// Link is the byte-level transport a Client talks through.
type Link interface {
	// DiscardInput drops any received bytes that have not been read yet.
	DiscardInput() error
	Write(data []byte) error
	ReadByteTimeout(timeout time.Duration) (b byte, ok bool, err error)
}

type registerValueJson struct {
	Value *float64 `json:"value"`
	Unit  *string  `json:"unit"`
}

func (v RegisterValue) MarshalJSON() ([]byte, error) {
	var out registerValueJson
	if v.Valid {
		value := v.Value
		out.Value = &value
	}
	if v.Unit != "" {
		unit := v.Unit
		out.Unit = &unit
	}
	return json.Marshal(out)
}

func (v *RegisterValue) UnmarshalJSON(data []byte) error {
	var in registerValueJson
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*v = RegisterValue{}
	if in.Value != nil {
		v.Value = *in.Value
		v.Valid = true
	}
	if in.Unit != nil {
		v.Unit = *in.Unit
	}
	return nil
}
