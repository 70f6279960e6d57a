package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidOrder, "quantity must be positive")

	suite.Equal(ErrCodeInvalidOrder, err.Code)
	suite.Equal("[101] quantity must be positive", err.Error())
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestNewfFormats() {
	err := Newf(ErrCodeDataNotFound, "no bars for %s:%s", "NASDAQ", "AAPL")

	suite.Equal("[200] no bars for NASDAQ:AAPL", err.Error())
}

func (suite *ErrorTestSuite) TestWrapPreservesCause() {
	cause := io.ErrUnexpectedEOF
	err := Wrap(ErrCodeQueryFailed, "failed to read bars", cause)

	suite.Equal("[202] failed to read bars: unexpected EOF", err.Error())
	suite.True(Is(err, io.ErrUnexpectedEOF))

	var structured *Error
	suite.True(As(err, &structured))
	suite.Equal(ErrCodeQueryFailed, structured.Code)
}

func (suite *ErrorTestSuite) TestWrapfFormats() {
	cause := fmt.Errorf("disk full")
	err := Wrapf(ErrCodeStoreWriteFailed, cause, "failed to save result %s", "run-1")

	suite.Equal("[602] failed to save result run-1: disk full", err.Error())
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	suite.Equal(ErrCodeRiskBlocked, GetCode(New(ErrCodeRiskBlocked, "blocked")))
	suite.Equal(ErrCodeUnknown, GetCode(io.EOF))
	suite.Equal(ErrCodeUnknown, GetCode(nil))

	// The code survives wrapping in a plain error.
	wrapped := fmt.Errorf("outer: %w", New(ErrCodeDataGap, "gap"))
	suite.Equal(ErrCodeDataGap, GetCode(wrapped))
	suite.True(HasCode(wrapped, ErrCodeDataGap))
}

func (suite *ErrorTestSuite) TestCategoryChecks() {
	suite.True(IsValidation(New(ErrCodeInvalidConfiguration, "bad config")))
	suite.True(IsValidation(New(ErrCodeInvalidTimeWindow, "inverted window")))
	suite.False(IsValidation(New(ErrCodeDataNotFound, "no bars")))

	suite.True(IsExecutionFault(New(ErrCodeLedgerInconsistent, "bad trade")))
	suite.False(IsExecutionFault(New(ErrCodeRiskBlocked, "blocked")))

	suite.True(IsUpstreamDisconnected(New(ErrCodeUpstreamDisconnected, "stream ended")))
	suite.False(IsUpstreamDisconnected(New(ErrCodeSessionNotFound, "missing")))
}
