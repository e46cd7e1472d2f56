package console

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	agencysdk "spyagency/sdk/go"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"transport", errors.New("dial tcp: connection refused"), TransientNetworkFailure},
		{"server error", &agencysdk.APIError{StatusCode: 500}, TransientNetworkFailure},
		{"bad request", badRequest("name is required"), ValidationRejected},
		{"not found", &agencysdk.APIError{StatusCode: 404, Code: "Not Found"}, ValidationRejected},
		{"conflict", conflict("assigned"), ConflictRejected},
		{"wrapped conflict", fmt.Errorf("delete: %w", conflict("assigned")), ConflictRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDisplayMessage(t *testing.T) {
	assert.Equal(t, "exact reason", DisplayMessage(badRequest("exact reason"), "fallback"))
	assert.Equal(t, "Not Found", DisplayMessage(&agencysdk.APIError{StatusCode: 404, Code: "Not Found"}, "fallback"))
	assert.Equal(t, "fallback", DisplayMessage(&agencysdk.APIError{StatusCode: 502, Code: "Bad Gateway"}, "fallback"))
	assert.Equal(t, "fallback", DisplayMessage(errors.New("boom"), "fallback"))
}

func TestRequestTable(t *testing.T) {
	var tbl RequestTable
	assert.Equal(t, RequestIdle, tbl.State(1))
	assert.True(t, tbl.Begin(1))
	assert.False(t, tbl.Begin(1))
	assert.True(t, tbl.Begin(2))
	tbl.Fail(1)
	assert.Equal(t, RequestFailed, tbl.State(1))
	assert.True(t, tbl.Begin(1))
	tbl.Succeed(1)
	assert.Equal(t, RequestIdle, tbl.State(1))
	assert.Equal(t, map[int64]RequestState{2: RequestPending}, tbl.Snapshot())
	tbl.Reset()
	assert.Empty(t, tbl.Snapshot())
}
