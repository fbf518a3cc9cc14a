package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type fakeTarget struct {
	valid      error
	saturation float64
}

func (f *fakeTarget) Valid() error        { return f.valid }
func (f *fakeTarget) Saturation() float64 { return f.saturation }

type MonitorTestSuite struct {
	suite.Suite
	m *Monitor
}

func (s *MonitorTestSuite) SetupTest() {
	s.m = NewMonitor(0.5)
}

func (s *MonitorTestSuite) TestUnknown() {
	s.ErrorIs(s.m.Check("nope"), ErrUnknownTarget)
	s.ErrorIs(s.m.Live("nope"), ErrUnknownTarget)
}

func (s *MonitorTestSuite) TestThreshold() {
	t := &fakeTarget{saturation: 0.5}
	s.m.Add("pool", t)
	s.NoError(s.m.Check("pool"))

	t.saturation = 0.51
	s.ErrorIs(s.m.Check("pool"), ErrSaturated)
	s.NoError(s.m.Live("pool"))
}

func (s *MonitorTestSuite) TestInvalidRegion() {
	broken := errors.New("tag gone")
	s.m.Add("queue", &fakeTarget{valid: broken})
	s.ErrorIs(s.m.Live("queue"), broken)
	s.ErrorIs(s.m.Check("queue"), broken)
}

func (s *MonitorTestSuite) TestNamesAndCheckAll() {
	s.m.Add("b", &fakeTarget{})
	s.m.Add("a", &fakeTarget{saturation: 1})
	s.m.Add("c", &fakeTarget{})
	s.Equal([]string{"a", "b", "c"}, s.m.Names())

	err := s.m.CheckAll()
	s.ErrorIs(err, ErrSaturated)
	s.Contains(err.Error(), "a at 1.00")

	s.m.Remove("a")
	s.NoError(s.m.CheckAll())
	s.Equal([]string{"b", "c"}, s.m.Names())
}

func (s *MonitorTestSuite) TestDefaultThreshold() {
	for _, th := range []float64{0, -1, 2} {
		s.Equal(DefaultThreshold, NewMonitor(th).threshold)
	}
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}
