package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimothyStephens/magi/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal", errors.ErrCodeInternal, "unexpected failure"},
		{"invalid inchikey", errors.ErrCodeInvalidInChIKey, "not a valid InChIKey"},
		{"external tool", errors.ErrCodeExternalTool, "blastp reported errors"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeMissingColumn, "missing required column")
	assert.Equal(t, "[TABLE_001] missing required column", ae.Error())

	withDetail := ae.WithDetail("refseq_id")
	assert.Equal(t, "[TABLE_001] missing required column: refseq_id", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")

	withCause := withDetail.WithCause(fmt.Errorf("eof"))
	assert.Equal(t, "[TABLE_001] missing required column: refseq_id: eof", withCause.Error())
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, errors.Wrap(nil, errors.ErrCodeIO, "read"))
	})

	t.Run("cause is reachable", func(t *testing.T) {
		sentinel := stderrors.New("disk full")
		err := errors.Wrap(sentinel, errors.ErrCodeIO, "write results")
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, sentinel))
		assert.Equal(t, errors.ErrCodeIO, errors.GetCode(err))
	})

	t.Run("unknown code preserves inner code", func(t *testing.T) {
		inner := errors.New(errors.ErrCodeShapeMismatch, "weights do not match")
		err := errors.Wrap(inner, errors.CodeUnknown, "score")
		assert.Equal(t, errors.ErrCodeShapeMismatch, errors.GetCode(err))
	})
}

func TestIsCode_WalksChain(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeExternalTool, "blastp failed")
	outer := fmt.Errorf("chunk 2: %w", inner)
	assert.True(t, errors.IsCode(outer, errors.ErrCodeExternalTool))
	assert.False(t, errors.IsCode(outer, errors.ErrCodeIO))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeIO))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeGroupNotFound, "no group")))
	assert.True(t, errors.IsNotFound(fmt.Errorf("x: %w", errors.Wrap(errors.New(errors.ErrCodeNotFound, "gone"), errors.ErrCodeIO, "read"))))
	assert.False(t, errors.IsNotFound(errors.InvalidParam("bad")))
	assert.True(t, errors.IsCode(errors.InvalidParam("bad"), errors.ErrCodeValidation))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeInternal, errors.GetCode(errors.New(errors.ErrCodeInternal, "boom")))
}

func TestModuleForCodeAndFatality(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CHEM", errors.ModuleForCode(errors.ErrCodeInvalidInChIKey))
	assert.Equal(t, "SCORE", errors.ModuleForCode(errors.ErrCodeNumericPrecondition))
	assert.Equal(t, "OK", errors.ModuleForCode(errors.CodeOK))

	assert.False(t, errors.IsFatal(errors.ErrCodeCompoundNotFound))
	assert.True(t, errors.IsFatal(errors.ErrCodeExternalTool))
	assert.True(t, errors.IsFatal(errors.ErrCodeShapeMismatch))
}
