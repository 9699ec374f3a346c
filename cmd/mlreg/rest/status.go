package rest

import (
	"fmt"
	"net/http"
)

// StatusCodeRange is a class of HTTP status codes, like "4xx".
type StatusCodeRange int

const (
	StatusUnknown StatusCodeRange = iota
	Status1xx
	Status2xx
	Status3xx
	Status4xx
	Status5xx
)

func (sc StatusCodeRange) String() string {
	switch sc {
	case Status1xx:
		return "informational response"
	case Status2xx:
		return "success"
	case Status3xx:
		return "redirect"
	case Status4xx:
		return "client error"
	case Status5xx:
		return "server error"
	default:
		return fmt.Sprintf("unknown (%d)", int(sc))
	}
}

func StatusCodeRangeOf(resp *http.Response) StatusCodeRange {
	switch sc := resp.StatusCode; {
	case sc < 100 || 600 <= sc:
		return StatusUnknown
	default:
		// Status1xx == 1, ..., Status5xx == 5
		return StatusCodeRange(sc / 100)
	}
}
