package shm

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
)

var regionSeq atomic.Int32

func testRegionName() string {
	return fmt.Sprintf("shmslab-test-%d-%d", os.Getpid(), regionSeq.Add(1))
}

type RegionTestSuite struct {
	suite.Suite
	ctx  context.Context
	name string
}

func (s *RegionTestSuite) SetupTest() {
	if runtime.GOOS == "windows" {
		s.T().Skip("named regions are not supported on windows")
	}
	s.ctx = context.Background()
	s.name = testRegionName()
}

func (s *RegionTestSuite) TearDownTest() {
	if s.name != "" {
		_ = RemoveRegion(s.ctx, s.name)
	}
}

func (s *RegionTestSuite) create(size int) *Region {
	r, err := CreateRegion(s.ctx, s.name, size)
	if err != nil {
		s.T().Skipf("shared memory unavailable: %v", err)
	}
	return r
}

func (s *RegionTestSuite) TestCreateAndReopen() {
	r := s.create(4096)
	s.Equal(s.name, r.Name())
	s.Equal(4096, r.Size())
	s.Len(r.Bytes(), 4096)

	other, err := OpenRegion(s.ctx, s.name)
	s.Require().NoError(err)
	s.Equal(4096, other.Size())

	r.Bytes()[100] = 42
	s.Equal(byte(42), other.Bytes()[100])

	s.NoError(other.Close())
	s.NoError(r.Close())
}

func (s *RegionTestSuite) TestPoolAcrossHandles() {
	size, err := PoolSize(64, 16, 64)
	s.Require().NoError(err)
	r := s.create(size)
	defer r.Close()

	creator, err := CreatePool(r.Bytes(), 64, 16, 64)
	s.Require().NoError(err)

	other, err := OpenRegion(s.ctx, s.name)
	s.Require().NoError(err)
	defer other.Close()
	opener, err := OpenPool(other.Bytes())
	s.Require().NoError(err)

	slot := creator.Allocate()
	s.Require().NotNil(slot)
	copy(slot, "hello")
	got := opener.Pointer(creator.Offset(slot))
	s.Require().NotNil(got)
	s.Equal("hello", string(got[:5]))
	s.Equal(1, opener.UseCount())
}

func (s *RegionTestSuite) TestDoubleClose() {
	r := s.create(128)
	s.NoError(r.Close())
	s.ErrorIs(r.Close(), ErrRegionClosed)
}

func (s *RegionTestSuite) TestCreateTwiceInProcess() {
	r := s.create(128)
	defer r.Close()
	_, err := CreateRegion(s.ctx, s.name, 128)
	s.Error(err)
}

func (s *RegionTestSuite) TestOpenMissing() {
	_, err := OpenRegion(s.ctx, testRegionName())
	s.Error(err)
}

func (s *RegionTestSuite) TestInvalidName() {
	_, err := CreateRegion(s.ctx, "a/b", 128)
	s.Error(err)
	_, err = CreateRegion(s.ctx, "", 128)
	s.Error(err)
}

func TestRegionTestSuite(t *testing.T) {
	suite.Run(t, new(RegionTestSuite))
}
