package kmp

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Client performs register reads over a single serial link.
// It is not safe for concurrent use; one exchange runs at a time.
type Client struct {
	link    Link
	timeout time.Duration
}

func NewClient(link Link, timeout time.Duration) *Client {
	return &Client{
		link:    link,
		timeout: timeout,
	}
}

// BuildReadRequest builds the "read registers" payload for ids.
func BuildReadRequest(ids []RegisterID) []byte {
	req := make([]byte, 0, 3+2*len(ids))
	req = append(req, commandReadRegisters, subCommandRegisters, byte(len(ids)))
	for _, id := range ids {
		req = append(req, byte(id>>8), byte(id))
	}
	return req
}

// ReadRegisters reads up to MaxRegistersPerRequest registers in one exchange.
//
// A silent meter, a damaged frame or an unexpected echo all give an empty
// Result and a nil error. Only transport failures are returned as errors.
func (c *Client) ReadRegisters(ids []RegisterID) (Result, error) {
	if len(ids) > MaxRegistersPerRequest {
		return nil, ErrTooManyRegisters
	}
	if len(ids) == 0 {
		return Result{}, nil
	}

	if err := c.link.DiscardInput(); err != nil {
		return nil, err
	}
	if err := c.link.Write(EncodeRequest(BuildReadRequest(ids))); err != nil {
		return nil, err
	}

	payload, ok, err := ReceiveFrame(c.link, c.timeout)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug().Interface("registers", ids).Msg("No response from meter")
		return Result{}, nil
	}
	return ParseReadResponse(ids, payload), nil
}

// ParseReadResponse walks the records of a read response in request order.
// Every requested id gets an entry when the header echo is valid.
func ParseReadResponse(ids []RegisterID, payload []byte) Result {
	if len(payload) < 2 || payload[0] != commandReadRegisters || payload[1] != subCommandRegisters {
		log.Debug().Hex("payload", payload).Msg("Unexpected response header")
		return Result{}
	}

	result := make(Result, len(ids))
	remaining := payload[2:]
	for _, id := range ids {
		if len(remaining) < 5 {
			break
		}
		if remaining[0] != byte(id>>8) || remaining[1] != byte(id) {
			result[id] = RegisterValue{}
			continue
		}

		length := int(remaining[3])
		if length == 0 {
			result[id] = RegisterValue{}
			remaining = remaining[5:]
			continue
		}
		value, err := DecodeValue(remaining[2:])
		if err != nil {
			log.Debug().Uint16("register", uint16(id)).Err(err).Msg("Truncated register record")
			break
		}
		result[id] = value
		remaining = remaining[5+length:]
	}

	for _, id := range ids {
		if _, ok := result[id]; !ok {
			result[id] = RegisterValue{}
		}
	}
	return result
}
