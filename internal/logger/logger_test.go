/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
	saved Level
}

func (s *LoggerTestSuite) SetupTest() {
	s.saved = GetLevel()
}

func (s *LoggerTestSuite) TearDownTest() {
	SetLevel(s.saved)
}

func (s *LoggerTestSuite) TestLogColor() {
	SetLevel(LevelTrace)
	var out bytes.Buffer
	l := New("test", &out)

	l.Tracef("this is tracef %s", "hello world")
	l.Debugf("this is debugf %s", "hello world")
	l.Infof("this is infof %s", "hello world")
	l.Warnf("this is warnf %s", "hello world")
	l.Errorf("this is errorf %s", "hello world")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	s.Require().Len(lines, 5)
	for i, name := range levelName {
		s.Contains(lines[i], colors[i])
		s.Contains(lines[i], name)
		s.Contains(lines[i], "logger_test.go")
		s.Contains(lines[i], "test this is")
	}
}

func (s *LoggerTestSuite) TestLevelFilter() {
	SetLevel(LevelWarn)
	var out bytes.Buffer
	l := New("", &out)

	l.Infof("dropped")
	l.Debugf("dropped")
	s.Empty(out.String())

	l.Warnf("kept")
	s.Contains(out.String(), "kept")
}

func (s *LoggerTestSuite) TestSetLevelIgnoresOutOfRange() {
	SetLevel(LevelError)
	SetLevel(Level(42))
	s.Equal(LevelError, GetLevel())
	SetLevel(Level(-1))
	s.Equal(LevelError, GetLevel())
}

func (s *LoggerTestSuite) TestNoPrint() {
	SetLevel(LevelNoPrint)
	var out bytes.Buffer
	New("quiet", &out).Errorf("nothing")
	s.Empty(out.String())
}

func TestLoggerTestSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
