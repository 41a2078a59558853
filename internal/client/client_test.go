package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/echolab/voicearena/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComparisonSendsAPIKey(t *testing.T) {
	id := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/comparisons", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.CreateComparisonRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "elevenlabs", req.ProviderA.Provider)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.CreateComparisonResponse{
			ComparisonID: id,
			Status:       models.ComparisonStatusPending,
		})
	}))
	defer server.Close()

	c := New(server.URL, "secret")
	resp, err := c.CreateComparison(context.Background(), models.CreateComparisonRequest{
		ProviderA: models.ProviderSelection{Provider: "elevenlabs"},
	})
	require.NoError(t, err)
	assert.Equal(t, id, resp.ComparisonID)
	assert.Equal(t, models.ComparisonStatusPending, resp.Status)
}

func TestErrorResponsesBecomeRequestErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "Comparison is already generating"})
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.GenerateComparison(context.Background(), uuid.New())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "generateComparison", reqErr.Op)
	assert.Equal(t, http.StatusConflict, reqErr.StatusCode)
	assert.Equal(t, "Comparison is already generating", reqErr.Message)
}

func TestTransportFailureHasNoStatusCode(t *testing.T) {
	c := New("http://127.0.0.1:1", "")
	_, err := c.GetComparison(context.Background(), uuid.New())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Zero(t, reqErr.StatusCode)
	assert.NotNil(t, reqErr.Unwrap())
}

func TestGetComparisonDecodesSnapshot(t *testing.T) {
	id := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/comparisons/"+id.String(), r.URL.Path)
		json.NewEncoder(w).Encode(models.Comparison{
			ID:     id,
			Status: models.ComparisonStatusCompleted,
			Samples: []models.Sample{
				{Provider: models.ProviderA, Status: models.SampleStatusCompleted},
			},
		})
	}))
	defer server.Close()

	c := New(server.URL, "")
	comparison, err := c.GetComparison(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ComparisonStatusCompleted, comparison.Status)
	require.Len(t, comparison.Samples, 1)
}

func TestSubmitBlindTestBody(t *testing.T) {
	id := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/comparisons/"+id.String()+"/blind-test", r.URL.Path)
		var req models.SubmitBlindTestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Results, 1)
		assert.Equal(t, models.ProviderB, req.Results[0].Preferred)
		json.NewEncoder(w).Encode(models.BlindTestSummary{BWins: 1, BPct: 100})
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.SubmitBlindTest(context.Background(), id, []models.BlindTestResult{
		{SampleIndex: 0, Preferred: models.ProviderB, VoiceIDA: "v1", VoiceIDB: "v2"},
	})
	require.NoError(t, err)
}

func TestDeleteComparisonsSequentialWithFailureAttribution(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	failing := ids[1]

	var order []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		order = append(order, r.URL.Path)
		if r.URL.Path == "/v1/comparisons/"+failing.String() {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "Comparison not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, "")
	deleted, failures := c.DeleteComparisons(context.Background(), ids)

	assert.Equal(t, 2, deleted)
	require.Len(t, failures, 1)
	assert.Equal(t, failing, failures[0].ID)

	var reqErr *RequestError
	require.ErrorAs(t, failures[0].Err, &reqErr)
	assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)

	// Strictly sequential: requests arrive in the order the ids were given
	expected := make([]string, len(ids))
	for i, id := range ids {
		expected[i] = fmt.Sprintf("/v1/comparisons/%s", id)
	}
	assert.Equal(t, expected, order)
}

func TestGetAnalytics(t *testing.T) {
	mos := 4.4
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/analytics", r.URL.Path)
		json.NewEncoder(w).Encode([]models.AnalyticsRow{
			{Provider: "cartesia", Model: "sonic-2", VoiceID: "v2", VoiceName: "Astra", SampleCount: 6, AvgMOS: &mos},
			{Provider: "elevenlabs", Model: "eleven_turbo_v2", VoiceID: "v1", VoiceName: "Rachel", SampleCount: 2},
		})
	}))
	defer server.Close()

	c := New(server.URL, "")
	rows, err := c.GetAnalytics(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].AvgMOS)
	assert.InDelta(t, 4.4, *rows[0].AvgMOS, 1e-9)
	assert.Nil(t, rows[1].AvgMOS)
}

func TestGenerateSampleTexts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.GenerateSampleTextsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "customer support", req.Topic)
		json.NewEncoder(w).Encode(models.GenerateSampleTextsResponse{
			Samples: []string{"How can I help you today?", "Your order has shipped."},
		})
	}))
	defer server.Close()

	c := New(server.URL, "")
	texts, err := c.GenerateSampleTexts(context.Background(), models.GenerateSampleTextsRequest{
		Topic: "customer support",
		Count: 2,
	})
	require.NoError(t, err)
	assert.Len(t, texts, 2)
}
