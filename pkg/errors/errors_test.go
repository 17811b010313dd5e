package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"profile not found", errors.CodeProfileNotFound, "profile u-1 not found"},
		{"invalid param", errors.CodeInvalidParam, "user id must not be empty"},
		{"library invalid", errors.CodePatternLibraryInvalid, "rule weight out of range"},
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
		})
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	ae := errors.Newf(errors.CodeUnknownContext, "unknown context %q", "pharmacy")
	assert.Equal(t, `unknown context "pharmacy"`, ae.Message)
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "should not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("dial tcp: connection refused")
	wrapped := errors.Wrap(root, errors.CodeStoreError, "failed to load profile")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.CodeStoreError, wrapped.Code)
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
	assert.True(t, stderrors.Is(wrapped, root))
}

func TestWrap_PreservesOriginalCodeWhenCodeUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeProfileNotFound, "not found")
	outer := errors.Wrap(inner, errors.CodeUnknown, "adding context")

	assert.Equal(t, errors.CodeProfileNotFound, outer.Code)
}

func TestWrapf_FormatsAndWraps(t *testing.T) {
	t.Parallel()

	root := stderrors.New("relation does not exist")
	wrapped := errors.Wrapf(root, errors.CodeMigrationFailed, "failed at version %d", 3)
	require.NotNil(t, wrapped)
	assert.Equal(t, "failed at version 3", wrapped.Message)
	assert.True(t, stderrors.Is(wrapped, root))
	assert.Nil(t, errors.Wrapf(nil, errors.CodeInternal, "x %d", 1))
}

func TestWrap_OverridesCodeWhenExplicit(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeProfileNotFound, "not found")
	outer := errors.Wrap(inner, errors.CodeInternal, "unexpected state")

	assert.Equal(t, errors.CodeInternal, outer.Code)
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeDocumentUnparseable, "document too short")
	assert.Equal(t, "[CRP_002] document too short", ae.Error())

	detailed := ae.WithDetail("id=trial-7")
	assert.Equal(t, "[CRP_002] document too short: id=trial-7", detailed.Error())

	wrapped := errors.Wrap(fmt.Errorf("eof"), errors.CodeStoreError, "read failed")
	assert.Equal(t, "[STO_001] read failed: eof", wrapped.Error())
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	original := errors.NotFound("resource missing")
	detailed := original.WithDetail("id=42")

	assert.Empty(t, original.Detail)
	assert.Equal(t, "id=42", detailed.Detail)
	assert.Equal(t, original.Code, detailed.Code)

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithDetail("x"))
	assert.Nil(t, nilErr.WithCause(stderrors.New("x")))
}

func TestIsCode_TraversesFmtWrapping(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeAnalysisInProgress, "locked")
	outer := fmt.Errorf("run analysis: %w", inner)

	assert.True(t, errors.IsCode(outer, errors.CodeAnalysisInProgress))
	assert.False(t, errors.IsCode(outer, errors.CodeInternal))
	assert.False(t, errors.IsCode(nil, errors.CodeInternal))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.CodeProfileNotFound, "x")))
	assert.True(t, errors.IsNotFound(fmt.Errorf("wrap: %w", errors.New(errors.CodeDocumentNotFound, "x"))))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
	assert.False(t, errors.IsNotFound(stderrors.New("plain")))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.CodeInvalidAction, errors.GetCode(errors.New(errors.CodeInvalidAction, "bad")))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "PRF", errors.ModuleForCode(errors.CodeInvalidAction))
	assert.Equal(t, "COMMON", errors.ModuleForCode(errors.CodeInternal))
	assert.Equal(t, "OK", errors.ModuleForCode(errors.CodeOK))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, errors.IsClientError(errors.CodeInvalidAction))
	assert.True(t, errors.IsClientError(errors.CodeInvalidParam))
	assert.False(t, errors.IsClientError(errors.CodeStoreError))
}
