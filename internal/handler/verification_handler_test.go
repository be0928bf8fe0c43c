package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigce-api/internal/dto"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

type verificationStub struct {
	results map[string]*dto.VerificationResult
}

func (s *verificationStub) Resolve(ctx context.Context, query string) (*dto.VerificationResult, error) {
	if query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "verification query is required")
	}
	if result, ok := s.results[query]; ok {
		return result, nil
	}
	return &dto.VerificationResult{Query: query, Outcome: dto.VerificationNotFound, CheckedAt: time.Now()}, nil
}

func TestVerificationHandlerVerify(t *testing.T) {
	stub := &verificationStub{results: map[string]*dto.VerificationResult{
		"sigce-2026-CAP-0001": {Query: "sigce-2026-CAP-0001", Found: true, Outcome: dto.VerificationValid, MatchedBy: dto.MatchedByFolio},
	}}
	h := NewVerificationHandler(stub)

	cases := []struct {
		name    string
		query   string
		status  int
		outcome dto.VerificationOutcome
	}{
		{name: "found", query: "sigce-2026-CAP-0001", status: http.StatusOK, outcome: dto.VerificationValid},
		{name: "unknown folio", query: "sigce-2026-CAP-9999", status: http.StatusOK, outcome: dto.VerificationNotFound},
		{name: "empty", query: "", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newTestContext(http.MethodGet, "/verify/"+tc.query, nil)
			c.Params = gin.Params{{Key: "query", Value: tc.query}}

			h.Verify(c)

			require.Equal(t, tc.status, w.Code)
			if tc.status != http.StatusOK {
				return
			}
			env := decodeEnvelope(t, w)
			var result dto.VerificationResult
			require.NoError(t, json.Unmarshal(env.Data, &result))
			assert.Equal(t, tc.outcome, result.Outcome)
		})
	}
}
