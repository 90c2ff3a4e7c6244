package util

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bwise1/sosedi/util/tracing"
	"github.com/bwise1/sosedi/util/values"
	"github.com/google/uuid"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{values.Success, http.StatusOK},
		{values.Created, http.StatusCreated},
		{values.BadRequestBody, http.StatusBadRequest},
		{values.NotAMember, http.StatusForbidden},
		{values.Conflict, http.StatusConflict},
		{values.NotFound, http.StatusNotFound},
		{values.TokenExpired, http.StatusUnauthorized},
		{values.Error, http.StatusInternalServerError},
		{"anything", http.StatusOK},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.status); got != tt.want {
			t.Errorf("StatusCode(%q) = %d; want %d", tt.status, got, tt.want)
		}
	}
}

func TestDecodeJSONBody(t *testing.T) {
	tc := &tracing.Context{RequestID: "req-1"}
	var dst struct {
		Text string `json:"text"`
	}
	if err := DecodeJSONBody(tc, io.NopCloser(strings.NewReader(`{"text":"hi"}`)), &dst); err != nil {
		t.Fatal(err)
	}
	if dst.Text != "hi" {
		t.Fatalf("decoded %q", dst.Text)
	}
	if err := DecodeJSONBody(tc, io.NopCloser(strings.NewReader(`{"text":`)), &dst); err == nil {
		t.Fatal("truncated body accepted")
	}
	if err := DecodeJSONBody(tc, nil, &dst); err == nil {
		t.Fatal("nil body accepted")
	}
}

func TestUserIDContext(t *testing.T) {
	if _, err := GetUserIDFromContext(context.Background()); err == nil {
		t.Fatal("empty context yielded an id")
	}
	id := uuid.New()
	got, err := GetUserIDFromContext(WithUserID(context.Background(), id))
	if err != nil || got != id {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestOptionalParams(t *testing.T) {
	f, err := OptionalFloat(" 12.5 ")
	if err != nil || f == nil || *f != 12.5 {
		t.Fatalf("OptionalFloat = %v, %v", f, err)
	}
	if f, err := OptionalFloat(""); err != nil || f != nil {
		t.Fatalf("blank = %v, %v", f, err)
	}
	if _, err := OptionalFloat("abc"); err == nil {
		t.Fatal("garbage accepted")
	}
	if n, err := OptionalInt("7"); err != nil || n != 7 {
		t.Fatalf("OptionalInt = %d, %v", n, err)
	}
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Text string   `json:"text" validate:"required,notblank"`
		Lat  *float64 `json:"latitude" validate:"required,latitude"`
		Lng  *float64 `json:"longitude" validate:"omitempty,longitude"`
	}
	lat, badLat, badLng := 10.0, 91.0, -181.0

	tests := []struct {
		name      string
		in        input
		wantField string
		wantTag   string
	}{
		{"valid", input{Text: "hi", Lat: &lat}, "", ""},
		{"blank text", input{Text: "   ", Lat: &lat}, "text", "notblank"},
		{"missing latitude", input{Text: "hi"}, "latitude", "required"},
		{"latitude out of range", input{Text: "hi", Lat: &badLat}, "latitude", "latitude"},
		{"longitude out of range", input{Text: "hi", Lat: &lat, Lng: &badLng}, "longitude", "longitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			field, tag, ok := FirstFailure(err)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !ok || field != tt.wantField || tag != tt.wantTag {
				t.Errorf("got (%q, %q, %v), want (%q, %q)", field, tag, ok, tt.wantField, tt.wantTag)
			}
		})
	}
}
