package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSON_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()

	Created(rr, "Note created successfully", map[string]string{"id": "n1"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body struct {
		Status  int               `json:"status"`
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Status != http.StatusCreated || body.Message != "Note created successfully" || body.Data["id"] != "n1" {
		t.Errorf("unexpected envelope: %+v", body)
	}
}

func TestError_OmitsData(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
	}{
		{"not found", func(w http.ResponseWriter) { NotFound(w, "Note not found") }, http.StatusNotFound},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "Session expired.") }, http.StatusUnauthorized},
		{"rate limited", func(w http.ResponseWriter) { TooManyRequests(w, "slow down") }, http.StatusTooManyRequests},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "Error updating note") }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.write(rr)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}

			var raw map[string]interface{}
			if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := raw["data"]; ok {
				t.Error("error envelope must not carry data")
			}
			if int(raw["status"].(float64)) != tt.status {
				t.Errorf("envelope status = %v", raw["status"])
			}
		})
	}
}

func TestValidationFailed_CarriesFields(t *testing.T) {
	rr := httptest.NewRecorder()
	ValidationFailed(rr, []FieldError{{Field: "title", Message: "Title is required"}})

	var body struct {
		Message string       `json:"message"`
		Data    []FieldError `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusBadRequest || body.Message != "Validation errors" {
		t.Fatalf("unexpected response %d %q", rr.Code, body.Message)
	}
	if len(body.Data) != 1 || body.Data[0].Field != "title" {
		t.Errorf("fields = %+v", body.Data)
	}
}
