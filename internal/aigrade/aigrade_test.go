package aigrade

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGrade(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/grade", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Result{Score: 7.5, Feedback: "two of three tenets named", StudentAnswer: "cells come from cells"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	res, err := c.Grade(context.Background(), Request{
		Question:       "State the cell theory.",
		ExpectedAnswer: "cell theory",
		MaxPoints:      10,
		OCRText:        "cells come from cells",
	})
	require.NoError(t, err)
	assert.Equal(t, 7.5, res.Score)
	assert.Equal(t, "two of three tenets named", res.Feedback)
	assert.Equal(t, 10.0, got.MaxPoints)
}

func TestClientGradeClampsScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  float64
	}{
		{"above budget", 15, 10},
		{"negative", -3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(Result{Score: tt.score})
			}))
			defer srv.Close()

			c := NewClient(ClientConfig{BaseURL: srv.URL})
			res, err := c.Grade(context.Background(), Request{MaxPoints: 10})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Score)
		})
	}
}

func TestClientGradeBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Grade(context.Background(), Request{MaxPoints: 10})
	assert.Error(t, err)
}
