package helpers

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestMaskFields_RedactsSecrets(t *testing.T) {
	in := logrus.Fields{
		"email":    "ann@x.com",
		"password": "a-very-long-secret-password",
	}
	out := MaskFields(in, "password")

	require.Equal(t, RedactedPlaceholder, out["password"])
	require.Equal(t, "ann@x.com", out["email"])
	// input is never mutated
	require.Equal(t, "a-very-long-secret-password", in["password"])
}

func TestMaskFields_FixedLengthRegardlessOfSecret(t *testing.T) {
	short := MaskFields(logrus.Fields{"password": "ab"}, "password")
	long := MaskFields(logrus.Fields{"password": "abcdefghijklmnopqrstuvwxyz"}, "password")
	require.Equal(t, short["password"], long["password"])
}

func TestMaskFields_KeepsFieldShape(t *testing.T) {
	// absent keys stay absent, empty values stay empty, non-strings are
	// still masked
	out := MaskFields(logrus.Fields{"token": 12345, "password": ""}, "password", "token", "missing")
	require.Equal(t, RedactedPlaceholder, out["token"])
	require.Equal(t, "", out["password"])
	require.NotContains(t, out, "missing")
}
