package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
)

type fakeAnalyzer struct {
	name  string
	res   *Result
	err   error
	calls int
}

func (f *fakeAnalyzer) Name() string { return f.name }

func (f *fakeAnalyzer) Analyze(context.Context, []byte) (*Result, error) {
	f.calls++
	return f.res, f.err
}

func TestNewAnalyzer(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.OCRConfig
		want    any
		wantErr error
	}{
		{"local", config.OCRConfig{Provider: "local"}, &Local{}, nil},
		{"default", config.OCRConfig{}, &Local{}, nil},
		{"azure", config.OCRConfig{Provider: "azure", Azure: config.AzureConfig{Endpoint: "https://x", Key: "k"}}, &Azure{}, nil},
		{"azure with fallback", config.OCRConfig{Provider: "azure", LocalFallback: true, Azure: config.AzureConfig{Endpoint: "https://x", Key: "k"}}, &Fallback{}, nil},
		{"azure missing key", config.OCRConfig{Provider: "azure", LocalFallback: true, Azure: config.AzureConfig{Endpoint: "https://x"}}, nil, ErrNotConfigured},
		{"mistral", config.OCRConfig{Provider: "mistral", Mistral: config.MistralConfig{APIKey: "k"}}, &Mistral{}, nil},
		{"mistral missing key", config.OCRConfig{Provider: "mistral"}, nil, ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(tt.cfg)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, a)
		})
	}
}

func TestNewAnalyzer_UnknownProvider(t *testing.T) {
	_, err := NewAnalyzer(config.OCRConfig{Provider: "tesseract"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

func TestFallback(t *testing.T) {
	primary := &fakeAnalyzer{name: "azure", err: assert.AnError}
	backup := &fakeAnalyzer{name: "local", res: &Result{Provider: "local", Text: "ok"}}

	f := NewFallback(primary, backup)
	assert.Equal(t, "azure", f.Name())

	res, err := f.Analyze(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "local", res.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestFallback_FirstSuccessWins(t *testing.T) {
	primary := &fakeAnalyzer{name: "azure", res: &Result{Provider: "azure"}}
	backup := &fakeAnalyzer{name: "local"}

	res, err := NewFallback(primary, backup).Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "azure", res.Provider)
	assert.Zero(t, backup.calls)
}

func TestFallback_AllFail(t *testing.T) {
	_, err := NewFallback(
		&fakeAnalyzer{name: "a", err: assert.AnError},
		&fakeAnalyzer{name: "b", err: assert.AnError},
	).Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLocal_NotAPDF(t *testing.T) {
	_, err := NewLocal().Analyze(context.Background(), []byte("plain text"))
	assert.Error(t, err)
}

func TestLocal_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal().Analyze(ctx, []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResult_Source(t *testing.T) {
	r := &Result{
		Text:  "Effective Date: 01/15/2024",
		Pages: []string{"Effective Date: 01/15/2024"},
		KV:    []audit.KVPair{{Key: "Effective Date", Value: "01/15/2024", Page: 1}},
	}
	src := r.Source()
	assert.Equal(t, r.Pages, src.Pages)
	require.Len(t, src.KV, 1)
	assert.Equal(t, "01/15/2024", src.KV[0].Value)
}

const azureResult = `{
  "status": "succeeded",
  "analyzeResult": {
    "content": "Appraisal Report\nEffective Date 01/15/2024\nRéconciliation",
    "pages": [
      {"pageNumber": 1, "spans": [{"offset": 0, "length": 16}]},
      {"pageNumber": 2, "spans": [{"offset": 17, "length": 25}, {"offset": 43, "length": 14}]}
    ],
    "keyValuePairs": [
      {"key": {"content": "Effective Date"}, "value": {"content": "01/15/2024", "boundingRegions": [{"pageNumber": 2}]}},
      {"key": {"content": ""}, "value": {"content": ""}},
      {"key": {"content": "Borrower"}}
    ],
    "tables": [
      {"boundingRegions": [{"pageNumber": 3}], "cells": [
        {"rowIndex": 0, "columnIndex": 1, "content": "Comp 1"},
        {"rowIndex": 1, "columnIndex": 1, "content": "0.5 miles"}
      ]},
      {"cells": [{"rowIndex": 0, "columnIndex": 0, "content": "x"}]}
    ]
  }
}`

func TestAzure_Analyze(t *testing.T) {
	var polls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get(azureKeyHeader))

		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/formrecognizer/documentModels/prebuilt-document:analyze", r.URL.Path)
			assert.Equal(t, "2023-07-31", r.URL.Query().Get("api-version"))
			assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "%PDF-1.4 test", string(body))

			w.Header().Set("Operation-Location", srv.URL+"/operations/42")
			w.WriteHeader(http.StatusAccepted)
		case http.MethodGet:
			assert.Equal(t, "/operations/42", r.URL.Path)
			if polls.Add(1) == 1 {
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "running"})
				return
			}
			_, _ = w.Write([]byte(azureResult))
		}
	}))
	defer srv.Close()

	a := NewAzure(config.AzureConfig{
		Endpoint:       srv.URL + "/",
		Key:            "test-key",
		Model:          "prebuilt-document",
		APIVersion:     "2023-07-31",
		PollIntervalMS: 1,
	}, srv.Client())

	res, err := a.Analyze(context.Background(), []byte("%PDF-1.4 test"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), polls.Load())

	assert.Equal(t, "azure", res.Provider)
	assert.Equal(t, []string{"Appraisal Report", "Effective Date 01/15/2024\nRéconciliation"}, res.Pages)
	assert.Equal(t, []audit.KVPair{
		{Key: "Effective Date", Value: "01/15/2024", Page: 2},
		{Key: "Borrower", Value: "", Page: 1},
	}, res.KV)
	require.Len(t, res.Tables, 2)
	assert.Equal(t, 3, res.Tables[0].Page)
	assert.Equal(t, audit.TableCell{Row: 1, Column: 1, Content: "0.5 miles"}, res.Tables[0].Cells[1])
	assert.Equal(t, 1, res.Tables[1].Page)
}

func TestAzure_AnalysisFailed(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", srv.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_, _ = w.Write([]byte(`{"status":"failed","error":{"code":"InvalidContent","message":"corrupt"}}`))
	}))
	defer srv.Close()

	a := NewAzure(config.AzureConfig{Endpoint: srv.URL, Key: "k", Model: "prebuilt-document", PollIntervalMS: 1}, srv.Client())
	_, err := a.Analyze(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidContent")
}

func TestAzure_SubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"401"}}`))
	}))
	defer srv.Close()

	a := NewAzure(config.AzureConfig{Endpoint: srv.URL, Key: "bad", Model: "prebuilt-document"}, srv.Client())
	_, err := a.Analyze(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAzure_MissingOperationLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a := NewAzure(config.AzureConfig{Endpoint: srv.URL, Key: "k", Model: "m"}, srv.Client())
	_, err := a.Analyze(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Operation-Location")
}

func TestMistral_Defaults(t *testing.T) {
	m := NewMistral(config.MistralConfig{APIKey: "key"}, nil)
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
	assert.NotNil(t, m.client)
}

func TestMistral_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		_ = json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{
			{Index: 1, Markdown: "Page two"},
			{Index: 0, Markdown: "Page one"},
		}})
	}))
	defer srv.Close()

	m := NewMistral(config.MistralConfig{APIKey: "test-key", Model: "test-model", Endpoint: srv.URL}, srv.Client())
	res, err := m.Analyze(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Page one", "Page two"}, res.Pages)
	assert.Equal(t, "Page one\n\nPage two", res.Text)
	assert.Empty(t, res.KV)
}

func TestMistral_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := NewMistral(config.MistralConfig{APIKey: "k", Endpoint: srv.URL}, srv.Client())
	_, err := m.Analyze(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
