//go:build unix

package shm

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
)

var testSeq atomic.Int32

type RegistryTestSuite struct {
	suite.Suite
	ctx  context.Context
	reg  *Registry
	name string
}

func (s *RegistryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.reg = NewRegistry()
	s.name = fmt.Sprintf("shmslab-internal-%d-%d", os.Getpid(), testSeq.Add(1))
}

func (s *RegistryTestSuite) TearDownTest() {
	_ = RemoveRegion(s.ctx, s.name)
}

func (s *RegistryTestSuite) create(size int) *MappedRegion {
	m, err := s.reg.Create(s.ctx, MapOptions{Name: s.name, Size: size})
	if err != nil {
		s.T().Skipf("shared memory unavailable: %v", err)
	}
	return m
}

func (s *RegistryTestSuite) TestRefCounting() {
	created := s.create(256)
	s.Equal(1, s.reg.Refs(s.name))

	acquired, err := s.reg.Acquire(s.ctx, s.name)
	s.Require().NoError(err)
	s.Same(created, acquired)
	s.Equal(2, s.reg.Refs(s.name))

	s.NoError(s.reg.Release(s.ctx, s.name))
	s.Equal(1, s.reg.Refs(s.name))
	s.NotNil(created.Addr)

	s.NoError(s.reg.Release(s.ctx, s.name))
	s.Zero(s.reg.Refs(s.name))
	s.Nil(created.Addr)

	s.NoError(s.reg.Release(s.ctx, s.name))
}

func (s *RegistryTestSuite) TestCreateBusy() {
	s.create(256)
	defer s.reg.Release(s.ctx, s.name)
	_, err := s.reg.Create(s.ctx, MapOptions{Name: s.name, Size: 256})
	s.ErrorIs(err, ErrRegionBusy)
	s.Equal(1, s.reg.Refs(s.name))
}

func (s *RegistryTestSuite) TestAcquireMissingLeavesNoEntry() {
	_, err := s.reg.Acquire(s.ctx, s.name)
	s.Error(err)
	s.Zero(s.reg.Refs(s.name))
	s.False(s.reg.entries.Has(s.name))
}

func (s *RegistryTestSuite) TestSeparateMappingsShareMemory() {
	a, err := MapRegion(s.ctx, MapOptions{Name: s.name, Size: 4096, Create: true})
	if err != nil {
		s.T().Skipf("shared memory unavailable: %v", err)
	}
	defer UnmapRegion(s.ctx, a)
	b, err := MapRegion(s.ctx, MapOptions{Name: s.name})
	s.Require().NoError(err)
	defer UnmapRegion(s.ctx, b)

	s.Equal(4096, b.Size)
	copy(a.Addr[1000:], "shared")
	s.Equal("shared", string(b.Addr[1000:1006]))
}

func (s *RegistryTestSuite) TestInvalidOptions() {
	_, err := MapRegion(s.ctx, MapOptions{Name: "x/y", Size: 1, Create: true})
	s.ErrorIs(err, ErrInvalidName)
	_, err = MapRegion(s.ctx, MapOptions{Name: s.name, Create: true})
	s.ErrorIs(err, ErrInvalidSize)
}

func (s *RegistryTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := MapRegion(ctx, MapOptions{Name: s.name, Size: 64, Create: true})
	s.ErrorIs(err, context.Canceled)
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
