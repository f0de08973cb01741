package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboehler/nexotax/lib/common/compare"
	"github.com/sboehler/nexotax/lib/common/dict"
)

const export = "Transaction,Type,Input Currency,Input Amount,Output Currency,Output Amount,USD Equivalent,Fee,Fee Currency,Details,Date / Time (UTC)\n" +
	"P1,Nexo Card Purchase,xUSD,-125,EUR,100,$125.00,-,-,approved / Shop,2025-01-10 10:00:00\n" +
	"CB1,Cashback,NEXO,2,NEXO,2,$2.50,-,-,approved / Shop,2025-01-10 10:00:01\n"

func TestRun(t *testing.T) {
	var r Runner

	res, err := r.Run(&Request{CSV: []string{export, export}, Years: []int{2025}, Audit: true})

	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Contains(t, res.Console, "Finnish crypto tax summary 2025")
	assert.Contains(t, res.Log, "dropped duplicate transactions")
	want := []string{
		"acquisitions_2025.csv",
		"card_analysis_2025.csv",
		"disposals_2025.csv",
		"interest_2025.csv",
		"remaining_lots_2025.csv",
	}
	if diff := cmp.Diff(want, dict.SortedKeys(res.AuditFiles, compare.Ordered[string])); diff != "" {
		t.Fatalf("audit files unexpected diff (-want, +got):\n%s", diff)
	}
	assert.Contains(t, res.AuditFiles["acquisitions_2025.csv"], "CB1,2025-01-10 10:00:01,cashback,NEXO,2.00000000,2.50,2.00,Shop")
}

func TestRunReportsFatalErrors(t *testing.T) {
	var r Runner
	noCard := "Transaction,Type,Input Currency,Input Amount,Output Currency,Output Amount,USD Equivalent,Details,Date / Time (UTC)\n" +
		"CB1,Cashback,NEXO,2,NEXO,2,$2.50,approved / Shop,2025-01-10 10:00:01\n"

	res, err := r.Run(&Request{CSV: []string{noCard}, Years: []int{2025}})

	require.NoError(t, err)
	assert.Contains(t, res.Error, "no USD/EUR rate available")
	assert.NotContains(t, res.Console, "Finnish crypto tax summary 2025")
}

func TestRunRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		desc string
		req  Request
		want string
	}{
		{"no csv", Request{Years: []int{2025}}, "no CSV content"},
		{"no years", Request{CSV: []string{export}}, "no years requested"},
		{"invalid year", Request{CSV: []string{export}, Years: []int{-1}}, "invalid year -1"},
		{"empty csv", Request{CSV: []string{""}, Years: []int{2025}}, "empty or has no header row"},
		{"missing columns", Request{CSV: []string{"SomeOtherColumn,AnotherColumn\n"}, Years: []int{2025}}, "missing required columns"},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			var r Runner

			_, err := r.Run(&test.req)

			require.Error(t, err)
			assert.Contains(t, err.Error(), test.want)
		})
	}
}

func TestHandler(t *testing.T) {
	h := New(nil, nil)

	t.Run("run", func(t *testing.T) {
		body, err := json.Marshal(Request{CSV: []string{export}, Years: []int{2025}})
		require.NoError(t, err)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var res Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.Contains(t, res.Console, "Card cashback profitability 2025")
		assert.Empty(t, res.AuditFiles)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("unknown path", func(t *testing.T) {
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/other", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"csv": 1}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("schema error", func(t *testing.T) {
		body := `{"csv": ["Transaction\n"], "years": [2025]}`
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing required columns")
	})
}
