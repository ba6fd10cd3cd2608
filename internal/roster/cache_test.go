package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/docstore"
	"rollcall/internal/docstore/mocks"
	dErrors "rollcall/pkg/domain-errors"
)

type CacheSuite struct {
	suite.Suite
	store *docstore.InMemoryStore
	cache *Cache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.store = docstore.NewInMemory()

	var err error
	s.cache, err = NewCache(s.store)
	s.Require().NoError(err)
}

func (s *CacheSuite) seed(id string, fields docstore.Document) {
	s.Require().NoError(s.store.Set(context.Background(), docstore.CollectionUsers, id, fields))
}

func (s *CacheSuite) TestNewCache() {
	s.Run("nil store returns error", func() {
		_, err := NewCache(nil)
		s.Error(err)
	})

	s.Run("fresh cache has an empty snapshot", func() {
		s.Empty(s.cache.Snapshot())
	})
}

func (s *CacheSuite) TestRefresh() {
	ctx := context.Background()

	s.Run("loads people sorted by name", func() {
		s.seed("u2", docstore.Document{"name": "Benny Ann", "email": "b@x.com"})
		s.seed("u1", docstore.Document{"name": "Ann Lee", "email": "ann@x.com"})

		s.Require().NoError(s.cache.Refresh(ctx))

		people := s.cache.Snapshot()
		s.Require().Len(people, 2)
		s.Equal("Ann Lee", people[0].Name)
		s.Equal("Benny Ann", people[1].Name)
	})

	s.Run("malformed document degrades to defaulted person", func() {
		s.seed("broken", docstore.Document{"name": 42, "email": []string{"not", "a", "string"}})

		s.Require().NoError(s.cache.Refresh(ctx))

		p, ok := s.cache.Find("broken")
		s.True(ok)
		s.Equal("", p.Name)
		s.Equal("", p.Email)
	})

	s.Run("notifies subscribers with the new snapshot", func() {
		var got []Person
		s.cache.OnRefresh(func(people []Person) { got = people })

		s.Require().NoError(s.cache.Refresh(ctx))
		s.Equal(s.cache.Snapshot(), got)
	})
}

func (s *CacheSuite) TestRefreshFailureKeepsStaleSnapshot() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().GetAll(gomock.Any(), docstore.CollectionUsers).Return(map[string]docstore.Document{
		"u1": {"name": "Ann Lee"},
	}, nil)
	store.EXPECT().GetAll(gomock.Any(), docstore.CollectionUsers).Return(nil, errors.New("network down"))

	cache, err := NewCache(store)
	s.Require().NoError(err)
	s.Require().NoError(cache.Refresh(ctx))

	err = cache.Refresh(ctx)
	s.Error(err)
	s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))

	people := cache.Snapshot()
	s.Require().Len(people, 1)
	s.Equal("Ann Lee", people[0].Name)
}

func (s *CacheSuite) TestAdd() {
	ctx := context.Background()

	s.Run("assigns an id and is visible after refresh", func() {
		p, err := s.cache.Add(ctx, Person{Name: "Cara", Email: "cara@x.com"})
		s.Require().NoError(err)
		s.NotEmpty(p.ID)

		found, ok := s.cache.Find(p.ID)
		s.True(ok)
		s.Equal("Cara", found.Name)
	})

	s.Run("keeps a caller-provided id", func() {
		p, err := s.cache.Add(ctx, Person{ID: "badge-7", Name: "Dev"})
		s.Require().NoError(err)
		s.Equal("badge-7", p.ID)
	})
}

func (s *CacheSuite) TestUpdate() {
	ctx := context.Background()

	p, err := s.cache.Add(ctx, Person{Name: "Cara"})
	s.Require().NoError(err)

	p.Name = "Cara Voss"
	s.Require().NoError(s.cache.Update(ctx, p))

	found, ok := s.cache.Find(p.ID)
	s.True(ok)
	s.Equal("Cara Voss", found.Name)

	s.Run("empty id is rejected", func() {
		err := s.cache.Update(ctx, Person{Name: "nobody"})
		s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
	})
}

func (s *CacheSuite) TestDelete() {
	ctx := context.Background()

	p, err := s.cache.Add(ctx, Person{Name: "Cara"})
	s.Require().NoError(err)

	s.Require().NoError(s.cache.Delete(ctx, p.ID))

	_, ok := s.cache.Find(p.ID)
	s.False(ok)

	s.Run("empty id is rejected", func() {
		err := s.cache.Delete(ctx, "")
		s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
	})
}

func TestUnknown(t *testing.T) {
	p := Unknown("ghost@x.com")

	if p.Name != "Unknown" || p.Subteam != "Unknown" || p.Grade != "Unknown" || p.StudentID != "Unknown" {
		t.Fatalf("descriptive fields not defaulted: %+v", p)
	}
	if p.Email != "ghost@x.com" || p.ID != "ghost@x.com" {
		t.Fatalf("identifier not preserved: %+v", p)
	}
}
