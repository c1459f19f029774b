package clients

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		detail string
		want   ErrorKind
	}{
		{http.StatusPaymentRequired, "", KindInsufficientCredit},
		{http.StatusBadRequest, "Insufficient credits", KindInsufficientCredit},
		{http.StatusForbidden, "额度不足，请充值", KindInsufficientCredit},
		{http.StatusBadRequest, "余额不足", KindInsufficientCredit},
		{http.StatusNotFound, "job not found", KindNotFound},
		{http.StatusNotFound, "credit record missing", KindNotFound},
		{http.StatusForbidden, "Account disabled", KindAccountDisabled},
		{http.StatusUnauthorized, "Not authenticated", KindUnauthorized},
		{http.StatusForbidden, "Admin only", KindForbidden},
		{http.StatusUnprocessableEntity, "invalid address", KindValidation},
		{http.StatusConflict, "duplicate tx", KindValidation},
		{http.StatusBadGateway, "upstream", KindServer},
		{http.StatusTeapot, "", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d %s", tt.status, tt.detail), func(t *testing.T) {
			require.Equal(t, tt.want, classify(tt.status, tt.detail))
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("submit detection: %w", &Error{Kind: KindNotFound, StatusCode: 404, Detail: "gone"})

	require.Equal(t, KindNotFound, KindOf(err))
	require.True(t, IsNotFound(err))
	require.False(t, IsInsufficientCredit(err))
	require.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain")))
	require.Contains(t, err.Error(), "gone")
}

func TestParseDetail(t *testing.T) {
	require.Equal(t, "bad chain", parseDetail([]byte(`{"detail":"bad chain"}`)))
	require.Equal(t, `[{"loc":["body"],"msg":"field required"}]`, parseDetail([]byte(`{"detail":[{"loc":["body"],"msg":"field required"}]}`)))
	require.Equal(t, `{"message":"x"}`, parseDetail([]byte(`{"message":"x"}`)))
	require.Equal(t, "Internal Server Error", parseDetail([]byte("  Internal Server Error\n")))
}
