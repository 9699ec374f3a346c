package errors_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	apierr "github.com/opst/mlreg/pkg/api/types/errors"
)

func TestErrorMessage(t *testing.T) {
	t.Run("it is unmarshalled from the server error payload", func(t *testing.T) {
		em := apierr.ErrorMessage{}
		payload := `{"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "Registered Model with name=foo not found"}`
		if err := json.Unmarshal([]byte(payload), &em); err != nil {
			t.Fatal(err)
		}
		if em.ErrorCode != apierr.ResourceDoesNotExist {
			t.Errorf("code: %s", em.ErrorCode)
		}
		if em.Message != "Registered Model with name=foo not found" {
			t.Errorf("message: %s", em.Message)
		}
	})

	t.Run("payload without error_code is rejected", func(t *testing.T) {
		em := apierr.ErrorMessage{}
		if err := json.Unmarshal([]byte(`{"message": "oops"}`), &em); err == nil {
			t.Error("no error")
		}
	})

	t.Run("it matches sentinels by code, even when wrapped", func(t *testing.T) {
		var err error = apierr.ErrorMessage{ErrorCode: apierr.ResourceAlreadyExists, Message: "exists"}
		err = fmt.Errorf("create: %w", err)

		if !errors.Is(err, apierr.ErrResourceAlreadyExists) {
			t.Error("not matched with the sentinel")
		}
		if errors.Is(err, apierr.ErrResourceDoesNotExist) {
			t.Error("matched with another sentinel")
		}
	})

	t.Run("it is marshalled as the plain payload", func(t *testing.T) {
		b, err := json.Marshal(apierr.ErrorMessage{ErrorCode: apierr.InvalidState, Message: "m"})
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != `{"error_code":"INVALID_STATE","message":"m"}` {
			t.Errorf("unexpected: %s", b)
		}
	})
}

func TestStatusCode(t *testing.T) {
	for code, expected := range map[apierr.ErrorCode]int{
		apierr.ResourceDoesNotExist:  http.StatusNotFound,
		apierr.ResourceAlreadyExists: http.StatusBadRequest,
		apierr.InvalidParameterValue: http.StatusBadRequest,
		apierr.InvalidState:          http.StatusBadRequest,
		apierr.InternalError:         http.StatusInternalServerError,
	} {
		t.Run(string(code), func(t *testing.T) {
			if got := code.StatusCode(); got != expected {
				t.Errorf("got %d", got)
			}
			if got := apierr.NewErrorMessage(code, "x").Code; got != expected {
				t.Errorf("HTTPError code: %d", got)
			}
		})
	}
}
