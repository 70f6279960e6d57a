package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestWithAttachesFieldsToEveryEntry() {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &Logger{Logger: zap.New(core)}

	scoped := log.With(zap.String("session_id", "01HZX"))
	scoped.Info("tick processed", zap.Int("count", 1))
	scoped.Info("session stopped")

	entries := logs.All()
	suite.Require().Len(entries, 2)

	suite.Equal("tick processed", entries[0].Message)
	suite.Equal("01HZX", entries[0].ContextMap()["session_id"])
	suite.Equal(int64(1), entries[0].ContextMap()["count"])
	suite.Equal("01HZX", entries[1].ContextMap()["session_id"])
}

func (suite *LoggerTestSuite) TestWithLeavesParentUntagged() {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &Logger{Logger: zap.New(core)}

	_ = log.With(zap.String("run_id", "01HZY"))
	log.Info("engine ready")

	entries := logs.All()
	suite.Require().Len(entries, 1)
	suite.NotContains(entries[0].ContextMap(), "run_id")
}

func (suite *LoggerTestSuite) TestNewLoggerBuilds() {
	log, err := NewLogger()
	suite.Require().NoError(err)
	suite.NotNil(log)
}
