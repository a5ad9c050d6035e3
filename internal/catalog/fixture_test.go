package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/pagination"
	"github.com/MarcoPoloResearchLab/reel/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDs) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("id-%03d", p.next), nil
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(millis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.UnixMilli(millis).UTC()
}

func (c *manualClock) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	clock   *manualClock
	service *Service
}

func openCatalogDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(append(Models(), &users.User{})...))
	return db
}

func newFixture(t *testing.T, options ...func(*ServiceConfig)) *fixture {
	t.Helper()
	db := openCatalogDatabase(t)
	clock := &manualClock{}
	clock.Set(1_700_000_000_000)
	cfg := ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &sequenceIDs{},
	}
	for _, option := range options {
		option(&cfg)
	}
	service, err := NewService(cfg)
	require.NoError(t, err)
	return &fixture{t: t, ctx: context.Background(), db: db, clock: clock, service: service}
}

func (f *fixture) addUser(id, name string) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&users.User{
		ID:              id,
		Name:            name,
		ImageURL:        "https://cdn.example.com/" + id + ".png",
		CreatedAtMillis: 1,
		UpdatedAtMillis: 1,
	}).Error)
}

func (f *fixture) addVideo(ownerID, title string, visibility Visibility) Video {
	f.t.Helper()
	f.clock.Tick()
	created, err := f.service.CreateVideo(f.ctx, ownerID, VideoDraft{Title: title, Visibility: visibility})
	require.NoError(f.t, err)
	return created.Video
}

func (f *fixture) addCategory(name string) Category {
	f.t.Helper()
	category := Category{Name: name}
	require.NoError(f.t, f.db.Create(&category).Error)
	return category
}

func firstPage(t *testing.T, limit int) pagination.Request {
	t.Helper()
	request, err := pagination.NewRequest(nil, limit)
	require.NoError(t, err)
	return request
}

func nextPage(t *testing.T, cursor *pagination.Cursor, limit int) pagination.Request {
	t.Helper()
	require.NotNil(t, cursor)
	request, err := pagination.NewRequest(cursor, limit)
	require.NoError(t, err)
	return request
}

func requireFault(t *testing.T, err error, kind error, reason string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, reason, serviceErr.Reason(), "code %s", serviceErr.Code())
}

func videoIDs(cards []VideoCard) []string {
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
	}
	return ids
}
