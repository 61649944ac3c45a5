package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := New([]byte("test-signing-key"), "wrap-registry", time.Hour)

	token, err := svc.Generate("ops-pipeline")
	require.NoError(t, err)

	subject, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-pipeline", subject)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := New([]byte("key-one"), "wrap-registry", time.Hour)
	verifier := New([]byte("key-two"), "wrap-registry", time.Hour)

	token, err := issuer.Generate("ops-pipeline")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	issuer := New([]byte("test-signing-key"), "someone-else", time.Hour)
	verifier := New([]byte("test-signing-key"), "wrap-registry", time.Hour)

	token, err := issuer.Generate("ops-pipeline")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := New([]byte("test-signing-key"), "wrap-registry", -time.Minute)

	token, err := svc.Generate("ops-pipeline")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := New([]byte("test-signing-key"), "wrap-registry", time.Hour)

	_, err := svc.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
