package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	cerr "github.com/opst/mlreg/cmd/mlreg/errors"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
)

// MessageFor is a summary of errors for each status code range.
type MessageFor map[StatusCodeRange]string

// unmarshalJsonResponse decodes a successful response into v.
//
// For 4xx or 5xx, it returns a CUIError summarized with messageFor.
// If the body is an error payload of the server, the error wraps apierr.ErrorMessage.
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	if err := errorResponse(resp, messageFor); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil && err != io.EOF {
		return cerr.NewCuiError(
			fmt.Sprintf("unexpected response: %s (status code = %d)", err, resp.StatusCode),
			cerr.WithCause(err),
		)
	}
	return nil
}

// errorResponse returns nil for 1xx and 2xx responses. Otherwise, it reads the body and returns an error.
func errorResponse(resp *http.Response, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	if scr == Status1xx || scr == Status2xx {
		return nil
	}

	message, ok := messageFor[scr]
	if !ok {
		message = fmt.Sprintf("%s (status code = %d)", scr, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.NewCuiError(
			fmt.Sprintf("%s\ncannot read server message: %s", message, err),
			cerr.WithCause(err),
		)
	}

	em := apierr.ErrorMessage{}
	if err := json.Unmarshal(body, &em); err == nil {
		return cerr.NewCuiError(message, cerr.WithDetail(em.Error()), cerr.WithCause(em))
	}

	return cerr.NewCuiError(
		message,
		cerr.WithDetail(string(body)),
		cerr.WithCause(fmt.Errorf("status code = %d", resp.StatusCode)),
	)
}
