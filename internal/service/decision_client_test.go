package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conceptforge/internal/logger"
	"conceptforge/internal/model"
	"conceptforge/internal/resolver"
)

func TestDecisionClientPendingAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/concepts/c-1/pending/2", r.URL.Path)
		json.NewEncoder(w).Encode(resolver.PendingItem{
			Index:    2,
			Total:    5,
			Fragment: &model.EvidenceFragment{ID: "f3", Content: "evidence"},
			Interpretations: []model.Interpretation{
				{ID: "i1", Title: "Narrow reading"},
			},
		})
	}))
	defer srv.Close()

	c := NewDecisionClient(srv.URL, logger.NewNop())
	item, err := c.PendingAt(context.Background(), "c-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Total)
	require.NotNil(t, item.Fragment)
	assert.Equal(t, "f3", item.Fragment.ID)
	require.Len(t, item.Interpretations, 1)
}

func TestDecisionClientSubmitDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/concepts/c-1/decisions", r.URL.Path)

		var d model.Decision
		require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
		assert.Equal(t, "f1", d.FragmentID)
		assert.Equal(t, []string{"ch1", "ch2"}, d.AcceptedChangeIDs)

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewDecisionClient(srv.URL, logger.NewNop())
	err := c.SubmitDecision(context.Background(), "c-1", model.Decision{
		FragmentID:        "f1",
		InterpretationID:  "i1",
		AcceptedChangeIDs: []string{"ch1", "ch2"},
		RejectedChangeIDs: []string{},
	})
	require.NoError(t, err)
}

func TestDecisionClientConflictMapsToConflictError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewDecisionClient(srv.URL, logger.NewNop())
	err := c.SubmitDecision(context.Background(), "c-1", model.Decision{FragmentID: "f1", InterpretationID: "i1"})

	var conflict *resolver.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "f1", conflict.FragmentID)

	err = c.SkipFragment(context.Background(), "c-1", "f2")
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "f2", conflict.FragmentID)
}

func TestDecisionClientSkip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/concepts/c-1/fragments/f1/skip", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewDecisionClient(srv.URL, logger.NewNop())
	require.NoError(t, c.SkipFragment(context.Background(), "c-1", "f1"))
}

func TestDecisionClientPlainErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewDecisionClient(srv.URL, logger.NewNop())
	_, err := c.PendingAt(context.Background(), "c-1", 0)
	require.Error(t, err)

	var conflict *resolver.ConflictError
	assert.False(t, errors.As(err, &conflict), "only 409 maps to a conflict")
}
