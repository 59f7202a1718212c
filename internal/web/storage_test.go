package web

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
)

func newTestRedisStorage(t *testing.T, prefix string) (*miniredis.Miniredis, *RedisStorage) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStorage(rdb, prefix)
}

func TestRedisStorageGetSetDelete(t *testing.T) {
	t.Parallel()
	mr, s := newTestRedisStorage(t, "")

	val, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, s.Set("sid", []byte("payload"), 0))
	val, err = s.Get("sid")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), val)
	assert.True(t, mr.Exists("web:sid"))
	assert.Zero(t, mr.TTL("web:sid"))

	require.NoError(t, s.Delete("sid"))
	val, err = s.Get("sid")
	require.NoError(t, err)
	assert.Nil(t, val)

	// empty keys and values are ignored
	require.NoError(t, s.Set("", []byte("x"), 0))
	require.NoError(t, s.Set("empty", nil, 0))
	assert.False(t, mr.Exists("web:empty"))
	val, err = s.Get("")
	require.NoError(t, err)
	assert.Nil(t, val)
	require.NoError(t, s.Delete(""))
}

func TestRedisStorageExpiry(t *testing.T) {
	t.Parallel()
	mr, s := newTestRedisStorage(t, "sess:")

	require.NoError(t, s.Set("sid", []byte("payload"), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("sess:sid"))

	mr.FastForward(61 * time.Second)
	val, err := s.Get("sid")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedisStorageResetKeepsOtherKeys(t *testing.T) {
	t.Parallel()
	mr, s := newTestRedisStorage(t, "")

	for i := 0; i < 250; i++ {
		require.NoError(t, s.Set("k"+itoa(int64(i)), []byte("v"), 0))
	}
	require.NoError(t, mr.Set("conv:state:1", "awaiting_location"))

	require.NoError(t, s.Reset())
	for _, key := range mr.Keys() {
		assert.False(t, strings.HasPrefix(key, redisKeyPrefix), key)
	}
	assert.True(t, mr.Exists("conv:state:1"))
	assert.NoError(t, s.Close())
}

func TestLoginFlowWithRedisSessions(t *testing.T) {
	t.Parallel()
	secret, err := auth.NewTOTPSecret("admin")
	require.NoError(t, err)
	mr, storage := newTestRedisStorage(t, "")
	f := newFixtureWithStorage(t, secret, storage)
	c := f.client(t)

	assertRedirect(t, c.login(testPassword), pathVerify)
	assert.NotEmpty(t, mr.Keys(), "session stored in redis")

	code, err := auth.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assertRedirect(t, c.post(pathVerify, url.Values{"code": {code}}), pathDashboard)

	doc := c.page(pathDashboard)
	assert.Equal(t, "2FA verified. Welcome, admin!", flashText(doc))
	assert.Equal(t, "@admin", doc.Find("#current-user").Text())

	// a second app over the same server accepts the cookie
	other := newFixtureWithStorage(t, secret, storage)
	c2 := other.client(t)
	c2.cookies = c.cookies
	assertRedirect(t, c2.get(pathIndex), pathDashboard)
	assert.Equal(t, "@admin", c2.page(pathDashboard).Find("#current-user").Text())

	assertRedirect(t, c.get(pathLogout), pathLogin)
	assertRedirect(t, c.get(pathDashboard), pathLogin)
}
