package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, float64(1), backoffDelay(1).Seconds())
	assert.Equal(t, float64(2), backoffDelay(2).Seconds())
}

func TestClassifyTransportError(t *testing.T) {
	cases := []struct {
		err  error
		want failureClass
	}{
		{nil, failureNone},
		{context.DeadlineExceeded, failureTimeout},
		{assertErr("POST /v1/messages: 429 Too Many Requests"), failureRateLimit},
		{assertErr("huggingface inference: status code: 503: loading"), failureServer},
		{assertErr("huggingface inference: status code: 400: bad input"), failureClient},
		{assertErr("failed after 5 retries while waiting 4 seconds"), failureServer},
		{&StatusError{Op: "huggingface inference", Code: 503}, failureServer},
		{&StatusError{Op: "huggingface inference", Code: 429}, failureRateLimit},
		{&StatusError{Op: "huggingface inference", Code: 408}, failureTimeout},
		{fmt.Errorf("wrapped: %w", &StatusError{Op: "huggingface hub probe", Code: 401}), failureClient},
		{&anthropic.Error{StatusCode: 529}, failureServer},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyTransportError(tc.err), "%v", tc.err)
	}
}

func TestWithRetryRetriesServerErrors(t *testing.T) {
	noSleep(t)
	calls := 0
	out, err := withRetry(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", assertErr("status code: 503")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnClientError(t *testing.T) {
	noSleep(t)
	calls := 0
	_, err := withRetry(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", assertErr("status code: 401 unauthorized")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryStopsWhenContextDone(t *testing.T) {
	noSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", context.Canceled
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestStatusErrorMessage(t *testing.T) {
	assert.Equal(t, "huggingface hub probe: status code: 404", (&StatusError{Op: "huggingface hub probe", Code: 404}).Error())
	assert.Equal(t, "huggingface inference: status code: 400: bad input",
		(&StatusError{Op: "huggingface inference", Code: 400, Body: "bad input"}).Error())
}
