package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCode(t *testing.T) {
	base := InvalidInput("missing column home_score")
	wrapped := Wrap(base, "failed to read games")

	assert.Equal(t, CodeInvalidInput, GetCode(wrapped))
	assert.Equal(t, "failed to read games: missing column home_score", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrapThroughFmtKeepsCode(t *testing.T) {
	base := ModelSingular("collinear columns")
	wrapped := Wrap(fmt.Errorf("fit logistic: %w", base), "selection failed")

	assert.Equal(t, CodeModelSingular, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, CodeModelSingular))
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	wrapped := Wrapf(stderrors.New("boom"), "step %d", 3)
	require.Error(t, wrapped)
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Equal(t, "step 3: boom", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, Wrapf(nil, "nothing %d", 1))
	assert.Nil(t, WithCode(CodeNotFound, nil))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeNotFound, stderrors.New("run abc"))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.True(t, IsAppError(err))
	assert.False(t, IsAppError(stderrors.New("plain")))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestHasCodeSearchesChain(t *testing.T) {
	inner := InsufficientData("only 4 games")
	outer := Wrap(inner, "split failed")
	outer = WithCode(CodeValidationError, outer)

	assert.Equal(t, CodeValidationError, GetCode(outer))
	assert.True(t, HasCode(outer, CodeInsufficientData))
	assert.False(t, HasCode(outer, CodeNotFound))
}

func TestExternalServiceError(t *testing.T) {
	cause := stderrors.New("GET http://feed returned status 503")
	err := Wrap(ExternalServiceError("feed", cause), "failed to load games")
	assert.Equal(t, CodeExternalService, GetCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load games: feed service error: GET http://feed returned status 503", err.Error())
}
