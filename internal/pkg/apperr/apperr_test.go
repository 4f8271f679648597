package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("community not found"), http.StatusNotFound},
		{Conflict("user already has a membership in this community"), http.StatusConflict},
		{Forbidden("cannot remove community owner"), http.StatusForbidden},
		{Invalid("invalid role"), http.StatusBadRequest},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Status(c.err), c.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("approve member: %w", NotFound("pending membership application not found"))
	require.True(t, IsKind(err, KindNotFound))
	require.Equal(t, http.StatusNotFound, Status(err))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindInternal, "store unavailable", cause)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "store unavailable", err.Error())
}
