package library

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestBuildDelta(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		build   func(Payload) (Delta, error)
		want    Delta
		wantErr error
	}{
		{
			name:  "book title only",
			body:  `{"title":" New "}`,
			build: Books.BuildDelta,
			want:  Delta{"title": "New"},
		},
		{
			name:  "book false availability counts",
			body:  `{"available":false,"author":""}`,
			build: Books.BuildDelta,
			want:  Delta{"available": false},
		},
		{
			name:    "book primary key ignored",
			body:    `{"bookId":9}`,
			build:   Books.BuildDelta,
			wantErr: ErrNoChanges,
		},
		{
			name:    "unknown fields ignored",
			body:    `{"isbn":"978-3","color":"red"}`,
			build:   Books.BuildDelta,
			wantErr: ErrNoChanges,
		},
		{
			name:    "empty strings skipped",
			body:    `{"firstName":"","lastName":"  ","address":null}`,
			build:   Members.BuildDelta,
			wantErr: ErrNoChanges,
		},
		{
			name:  "member address",
			body:  `{"address":"Grünwinkel","memberId":1}`,
			build: Members.BuildDelta,
			want:  Delta{"address": "Grünwinkel"},
		},
		{
			name:  "loan references and status",
			body:  `{"bookId":"4","memberId":5,"status":"RETURNED"}`,
			build: Loans.BuildDelta,
			want:  Delta{"bookId": 4, "memberId": 5, "status": StatusReturned},
		},
		{
			name:  "loan return date",
			body:  `{"returnDate":"2026-03-02"}`,
			build: Loans.BuildDelta,
			want:  Delta{"returnDate": time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:    "badly typed value",
			body:    `{"available":"perhaps"}`,
			build:   Books.BuildDelta,
			wantErr: ErrInvalid,
		},
		{
			name:    "bad loan reference",
			body:    `{"bookId":-2}`,
			build:   Loans.BuildDelta,
			wantErr: ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build(payload(t, tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("BuildDelta() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildDelta() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildDelta() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMutableFields(t *testing.T) {
	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{name: "book", got: Books.MutableFields(), want: []string{"author", "available", "title"}},
		{name: "member", got: Members.MutableFields(), want: []string{"address", "firstName", "lastName"}},
		{name: "loan", got: Loans.MutableFields(), want: []string{"bookId", "memberId", "returnDate", "status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("MutableFields() = %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestDelta_Fields(t *testing.T) {
	d := Delta{"title": "x", "available": true}
	if got := d.Fields(); !reflect.DeepEqual(got, []string{"available", "title"}) {
		t.Errorf("Fields() = %v", got)
	}
}
