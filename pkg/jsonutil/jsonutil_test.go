package jsonutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONWritesHeaderStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	type payload struct {
		Msg string `json:"msg"`
	}
	JSON(rec, http.StatusTeapot, payload{Msg: "hello"})
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("ct=%s", ct)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("code=%d", rec.Code)
	}
	var got payload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Msg != "hello" {
		t.Fatalf("msg=%s", got.Msg)
	}
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "invalid_address", "address is not valid base58")
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["error"] != "invalid_address" || got["message"] == "" {
		t.Fatalf("envelope = %v", got)
	}
}
