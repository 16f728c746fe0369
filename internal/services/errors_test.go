package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainErrors(t *testing.T) {
	cause := errors.New("boom")

	cases := []struct {
		err    error
		target error
		msg    string
	}{
		{invalid(cause), ErrInvalidRequest, "invalid request: boom"},
		{unauthorized(cause), ErrUnauthorized, "unauthorized"},
		{&PriceSourceError{Cause: cause}, ErrPriceUnavailable, "price source: boom"},
		{&SubmissionError{Signature: "sig", Cause: cause}, ErrSubmission, "submission: boom"},
	}
	for _, tc := range cases {
		require.ErrorIs(t, tc.err, tc.target)
		require.ErrorIs(t, tc.err, cause)
		require.Equal(t, tc.msg, tc.err.Error())
	}
}

func TestClassify(t *testing.T) {
	require.Nil(t, Classify(nil))
	require.Error(t, Classify(unauthorized(errors.New("bad signature"))))
	require.NotContains(t, Classify(unauthorized(errors.New("bad signature"))).Error(), "bad signature")
}
