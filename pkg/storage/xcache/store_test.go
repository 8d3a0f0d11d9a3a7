package xcache

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 构造
// =============================================================================

func TestNew_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		mb   float64
		ttl  time.Duration
		opts []Option
	}{
		{"zero memory", 0, time.Hour, nil},
		{"negative memory", -1, time.Hour, nil},
		{"nan memory", math.NaN(), time.Hour, nil},
		{"inf memory", math.Inf(1), time.Hour, nil},
		{"negative ttl", 1, -time.Second, nil},
		{"shard count not power of two", 1, 0, []Option{WithShardCount(3)}},
		{"shard count zero", 1, 0, []Option{WithShardCount(0)}},
		{"shard count too large", 1, 0, []Option{WithShardCount(1 << 17)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.mb, tt.ttl, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestNew_InvalidShardCountSentinel(t *testing.T) {
	_, err := New(1, 0, WithShardCount(6))
	assert.ErrorIs(t, err, ErrInvalidShardCount)
	assert.Contains(t, err.Error(), "got 6")
}

func TestNew_NilOptionIgnored(t *testing.T) {
	s := newTestStore(t, 1, 0, nil, WithLogger(nil), WithMeterProvider(nil), WithPatternCacheSize(-1))
	require.NoError(t, s.Set("ns", "k", []byte("v"), NoExpiration))
}

func TestNew_StoreID(t *testing.T) {
	a := newTestStore(t, 1, 0)
	b := newTestStore(t, 1, 0)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID(), a.Stats().StoreID)
}

// =============================================================================
// Set / Get
// =============================================================================

func TestSetGet(t *testing.T) {
	s := newTestStore(t, 1, time.Hour)

	require.NoError(t, s.Set("ns", "k1", []byte("v1"), DefaultExpiration))

	v, ok := s.Get("ns", "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	_, ok = s.Get("ns", "missing")
	assert.False(t, ok)

	_, ok = s.Get("other", "k1")
	assert.False(t, ok)
}

func TestSetGet_ValuesAreCopied(t *testing.T) {
	s := newTestStore(t, 1, 0)

	in := []byte("abc")
	require.NoError(t, s.Set("ns", "k", in, NoExpiration))
	in[0] = 'x'

	out, ok := s.Get("ns", "k")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), out)

	out[0] = 'y'
	again, _ := s.Get("ns", "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestSet_EmptyValue(t *testing.T) {
	s := newTestStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "empty", []byte{}, NoExpiration))
	v, ok := s.Get("ns", "empty")
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestSet_NoExpirationLivesForever(t *testing.T) {
	s, clock := newClockedStore(t, 1, time.Second)

	require.NoError(t, s.Set("ns", "k", []byte("v"), NoExpiration))
	clock.Advance(100 * 365 * 24 * time.Hour)
	require.Equal(t, 0, s.Sweep())

	v, ok := s.Get("ns", "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestSet_DefaultExpirationUsesStoreTTL(t *testing.T) {
	s, clock := newClockedStore(t, 1, 10*time.Second)

	require.NoError(t, s.Set("ns", "k", []byte("v"), DefaultExpiration))
	sec, ok := s.TTL("ns", "k")
	require.True(t, ok)
	assert.Equal(t, int64(10), sec)

	clock.Advance(10 * time.Second)
	_, ok = s.Get("ns", "k")
	assert.False(t, ok)
}

func TestSet_DefaultExpirationWithZeroDefault(t *testing.T) {
	s := newTestStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), DefaultExpiration))
	sec, ok := s.TTL("ns", "k")
	require.True(t, ok)
	assert.Equal(t, int64(-1), sec)
}

func TestSet_NegativeTTLRejected(t *testing.T) {
	s := newTestStore(t, 1, 0)

	err := s.Set("ns", "k", []byte("v"), -2*time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, s.Has("ns", "k"))

	_, ok := s.InstanceStats("ns")
	assert.False(t, ok, "rejected write must not create the namespace")
}

func TestSet_OverwriteReplacesValueAndTTL(t *testing.T) {
	s, clock := newClockedStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("short"), 5*time.Second))
	before := s.Stats().UsedBytes

	clock.Advance(4 * time.Second)
	require.NoError(t, s.Set("ns", "k", []byte("much longer value"), 5*time.Second))

	clock.Advance(4 * time.Second)
	v, ok := s.Get("ns", "k")
	require.True(t, ok, "ttl must be reset by the overwrite")
	assert.Equal(t, []byte("much longer value"), v)

	st := s.Stats()
	assert.Equal(t, 1, st.TotalKeys)
	assert.Equal(t, before+int64(len("much longer value")-len("short")), st.UsedBytes)
}

func TestGet_ExpiredEntryIsPurgedAndCountedAsMiss(t *testing.T) {
	s, clock := newClockedStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), 100*time.Millisecond))
	v, ok := s.Get("ns", "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	clock.Advance(150 * time.Millisecond)
	_, ok = s.Get("ns", "k")
	assert.False(t, ok)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(1), st.Expirations)
	assert.Zero(t, st.UsedBytes)

	is, ok := s.InstanceStats("ns")
	require.True(t, ok)
	assert.Zero(t, is.KeyCount)
	assert.Zero(t, is.UsedBytes)
}

func TestGet_ExpiresWithRealClock(t *testing.T) {
	s := newTestStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), 100*time.Millisecond))
	time.Sleep(150 * time.Millisecond)

	_, ok := s.Get("ns", "k")
	assert.False(t, ok)
}

// =============================================================================
// Delete / Has / Exists
// =============================================================================

func TestDelete_Idempotent(t *testing.T) {
	s := newTestStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), NoExpiration))
	assert.True(t, s.Delete("ns", "k"))
	assert.False(t, s.Delete("ns", "k"))
	assert.False(t, s.Delete("missing-ns", "k"))

	_, ok := s.Get("ns", "k")
	assert.False(t, ok)
	assert.Zero(t, s.Stats().UsedBytes)
}

func TestDelete_ExpiredEntryReportsAbsent(t *testing.T) {
	s, clock := newClockedStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), time.Second))
	clock.Advance(2 * time.Second)

	assert.False(t, s.Delete("ns", "k"))
	assert.Zero(t, s.Stats().UsedBytes)
}

func TestHasExists_DoNotTouchStats(t *testing.T) {
	s, clock := newClockedStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), time.Second))
	assert.True(t, s.Has("ns", "k"))
	assert.True(t, s.Exists("ns", "k"))
	assert.False(t, s.Has("ns", "nope"))
	assert.False(t, s.Exists("nope", "k"))

	clock.Advance(time.Second)
	assert.False(t, s.Has("ns", "k"))

	st := s.Stats()
	assert.Zero(t, st.Hits)
	assert.Zero(t, st.Misses)
	assert.Equal(t, uint64(1), st.Expirations)
}

// =============================================================================
// TTL / Expire / Persist
// =============================================================================

func TestTTL(t *testing.T) {
	s, clock := newClockedStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "finite", []byte("v"), 10*time.Second))
	require.NoError(t, s.Set("ns", "forever", []byte("v"), NoExpiration))

	sec, ok := s.TTL("ns", "finite")
	require.True(t, ok)
	assert.Equal(t, int64(10), sec)

	clock.Advance(2500 * time.Millisecond)
	sec, ok = s.TTL("ns", "finite")
	require.True(t, ok)
	assert.Equal(t, int64(8), sec, "remaining seconds round up")

	sec, ok = s.TTL("ns", "forever")
	require.True(t, ok)
	assert.Equal(t, int64(-1), sec)

	_, ok = s.TTL("ns", "missing")
	assert.False(t, ok)
	_, ok = s.TTL("missing", "finite")
	assert.False(t, ok)

	clock.Advance(10 * time.Second)
	_, ok = s.TTL("ns", "finite")
	assert.False(t, ok)
	assert.False(t, s.Has("ns", "finite"))
}

func TestTTL_WithinBoundsAfterSet(t *testing.T) {
	s := newTestStore(t, 1, 0)

	const ttl = 3 * time.Second
	require.NoError(t, s.Set("ns", "k", []byte("v"), ttl))

	sec, ok := s.TTL("ns", "k")
	require.True(t, ok)
	assert.Greater(t, sec, int64(0))
	assert.LessOrEqual(t, sec, int64(ttl/time.Second))
}

func TestSet_HugeTTLSaturates(t *testing.T) {
	const year = 365 * 24 * time.Hour
	for _, ttl := range []time.Duration{250 * year, time.Duration(math.MaxInt64)} {
		t.Run(ttl.String(), func(t *testing.T) {
			s, clock := newClockedStore(t, 1, 0)
			require.NoError(t, s.Set("ns", "k", []byte("v"), ttl))

			v, ok := s.Get("ns", "k")
			require.True(t, ok)
			assert.Equal(t, []byte("v"), v)

			// 过期时间截断为 int64 纳秒上限
			remaining := math.MaxInt64 - clock.Now().UnixNano()
			want := remaining / int64(time.Second)
			if remaining%int64(time.Second) != 0 {
				want++
			}
			sec, ok := s.TTL("ns", "k")
			require.True(t, ok)
			assert.Equal(t, want, sec)

			clock.Advance(100 * year)
			assert.True(t, s.Has("ns", "k"))
		})
	}
}

func TestSet_LongTTLWithinRangeIsExact(t *testing.T) {
	s, _ := newClockedStore(t, 1, 0)
	const ttl = 100 * 365 * 24 * time.Hour

	require.NoError(t, s.Set("ns", "k", []byte("v"), ttl))
	sec, ok := s.TTL("ns", "k")
	require.True(t, ok)
	assert.Equal(t, int64(ttl/time.Second), sec)
}

func TestExpire_HugeTTLSaturates(t *testing.T) {
	s, _ := newClockedStore(t, 1, 0)
	require.NoError(t, s.Set("ns", "k", []byte("v"), time.Second))

	ok, err := s.Expire("ns", "k", time.Duration(math.MaxInt64))
	require.NoError(t, err)
	require.True(t, ok)

	_, found := s.Get("ns", "k")
	assert.True(t, found)
	sec, ok := s.TTL("ns", "k")
	require.True(t, ok)
	assert.Positive(t, sec)
}

func TestNew_HugeDefaultTTL(t *testing.T) {
	s, _ := newClockedStore(t, 1, time.Duration(math.MaxInt64))
	require.NoError(t, s.Set("ns", "k", []byte("v"), DefaultExpiration))

	_, found := s.Get("ns", "k")
	assert.True(t, found)
}

func TestExpiryAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.Equal(t, int64(0), expiryAt(now, NoExpiration))
	assert.Equal(t, now.Add(time.Minute).UnixNano(), expiryAt(now, time.Minute))
	assert.Equal(t, int64(math.MaxInt64), expiryAt(now, time.Duration(math.MaxInt64)))

	e := &entry{expiresAt: math.MaxInt64}
	assert.Positive(t, e.remainingSeconds(now.UnixNano()))
	assert.Equal(t, int64(math.MaxInt64/int64(time.Second))+1, e.remainingSeconds(0))
}

func TestExpire(t *testing.T) {
	s, clock := newClockedStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), NoExpiration))

	ok, err := s.Expire("ns", "k", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	sec, _ := s.TTL("ns", "k")
	assert.Equal(t, int64(5), sec)

	ok, err = s.Expire("ns", "k", 0)
	require.NoError(t, err)
	require.True(t, ok)
	sec, _ = s.TTL("ns", "k")
	assert.Equal(t, int64(-1), sec)

	ok, err = s.Expire("ns", "missing", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Expire("ns", "k", -time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, ok)

	ok, err = s.Expire("ns", "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	clock.Advance(time.Second)
	_, found := s.Get("ns", "k")
	assert.False(t, found)
}

func TestPersist(t *testing.T) {
	s, clock := newClockedStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), time.Second))
	assert.True(t, s.Persist("ns", "k"))

	clock.Advance(time.Hour)
	v, ok := s.Get("ns", "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	assert.False(t, s.Persist("ns", "missing"))
	assert.False(t, s.Persist("missing", "k"))

	require.NoError(t, s.Set("ns", "gone", []byte("v"), time.Second))
	clock.Advance(time.Second)
	assert.False(t, s.Persist("ns", "gone"), "expired key cannot be persisted")
}

// =============================================================================
// Keys
// =============================================================================

func TestKeys_QuestionMark(t *testing.T) {
	s := newTestStore(t, 1, 0)

	for _, k := range []string{"key1", "key2", "key10"} {
		require.NoError(t, s.Set("ns", k, []byte("v"), NoExpiration))
	}

	keys, err := s.Keys("ns", "key?")
	require.NoError(t, err)
	assert.Equal(t, []string{"key1", "key2"}, keys)
}

func TestKeys_AllAndPrefix(t *testing.T) {
	s := newTestStore(t, 1, 0)

	for _, k := range []string{"user:2", "user:1", "session:9", "user:1:profile"} {
		require.NoError(t, s.Set("ns", k, []byte("v"), NoExpiration))
	}

	all := []string{"session:9", "user:1", "user:1:profile", "user:2"}
	for _, p := range []string{"", "*"} {
		keys, err := s.Keys("ns", p)
		require.NoError(t, err)
		assert.Equal(t, all, keys, "pattern %q", p)
	}

	keys, err := s.Keys("ns", "user:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1", "user:1:profile", "user:2"}, keys)

	keys, err = s.Keys("ns", "USER:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeys_EscapedWildcard(t *testing.T) {
	s := newTestStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "a*b", []byte("v"), NoExpiration))
	require.NoError(t, s.Set("ns", "axb", []byte("v"), NoExpiration))

	keys, err := s.Keys("ns", `a\*b`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a*b"}, keys)
}

func TestKeys_SkipsExpired(t *testing.T) {
	s, clock := newClockedStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "live", []byte("v"), NoExpiration))
	require.NoError(t, s.Set("ns", "dying", []byte("v"), time.Second))
	clock.Advance(time.Second)

	keys, err := s.Keys("ns", "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, keys)
}

func TestKeys_MissingNamespace(t *testing.T) {
	s := newTestStore(t, 1, 0)

	keys, err := s.Keys("missing", "*")
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestKeys_InvalidUTF8ComparedByBytes(t *testing.T) {
	s := newTestStore(t, 1, 0)
	require.NoError(t, s.Set("ns", "a\xff", []byte("1"), NoExpiration))
	require.NoError(t, s.Set("ns", "a\xfe", []byte("2"), NoExpiration))

	keys, err := s.Keys("ns", "a\xff")
	require.NoError(t, err)
	assert.Equal(t, []string{"a\xff"}, keys)

	keys, err = s.Keys("ns", "a\xff*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a\xff"}, keys)

	keys, err = s.Keys("ns", "a?")
	require.NoError(t, err)
	assert.Equal(t, []string{"a\xfe", "a\xff"}, keys)
}

func TestKeys_MalformedPattern(t *testing.T) {
	s := newTestStore(t, 1, 0)

	_, err := s.Keys("ns", `abc\`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.True(t, errors.Is(err, ErrInvalidPattern))
}

// =============================================================================
// 命名空间管理
// =============================================================================

func TestClearNamespace_OnlyAffectsTarget(t *testing.T) {
	s := newTestStore(t, 1, 0)

	require.NoError(t, s.Set("a", "k", []byte("v"), NoExpiration))
	require.NoError(t, s.Set("b", "k", []byte("v"), NoExpiration))
	_, _ = s.Get("a", "k")

	assert.True(t, s.ClearNamespace("a"))
	assert.False(t, s.ClearNamespace("a"))

	_, ok := s.InstanceStats("a")
	assert.False(t, ok)
	assert.False(t, s.Has("a", "k"))

	v, ok := s.Get("b", "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	st := s.Stats()
	assert.Equal(t, 1, st.Namespaces)
	assert.Equal(t, estimateSize("b", "k", []byte("v")), st.UsedBytes)
}

func TestClearNamespace_RecreatedOnWrite(t *testing.T) {
	s := newTestStore(t, 1, 0)

	require.NoError(t, s.Set("a", "k", []byte("v"), NoExpiration))
	_, _ = s.Get("a", "k")
	require.True(t, s.ClearNamespace("a"))

	require.NoError(t, s.Set("a", "k2", []byte("v"), NoExpiration))
	is, ok := s.InstanceStats("a")
	require.True(t, ok)
	assert.Equal(t, 1, is.KeyCount)
	assert.Zero(t, is.Hits, "counters start fresh")
}

func TestClear_ResetsEverything(t *testing.T) {
	for _, tc := range []struct {
		name  string
		clear func(*Store)
	}{
		{"Clear", (*Store).Clear},
		{"ClearAll", (*Store).ClearAll},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t, 1, 0)
			require.NoError(t, s.Set("a", "k", []byte("v"), NoExpiration))
			require.NoError(t, s.Set("b", "k", []byte("v"), NoExpiration))
			_, _ = s.Get("a", "k")
			_, _ = s.Get("a", "missing")

			tc.clear(s)

			st := s.Stats()
			assert.Zero(t, st.TotalKeys)
			assert.Zero(t, st.Namespaces)
			assert.Zero(t, st.Hits)
			assert.Zero(t, st.Misses)
			assert.Zero(t, st.UsedBytes)
			assert.Zero(t, st.HitRate)
		})
	}
}

// =============================================================================
// 统计
// =============================================================================

func TestStats_HitRate(t *testing.T) {
	s := newTestStore(t, 2, 0)

	st := s.Stats()
	assert.Zero(t, st.HitRate)
	assert.Equal(t, 2.0, st.TotalMemoryMB)
	assert.Equal(t, int64(2*bytesPerMB), st.MaxBytes)

	require.NoError(t, s.Set("ns", "k", []byte("v"), NoExpiration))
	for range 3 {
		_, _ = s.Get("ns", "k")
	}
	_, _ = s.Get("ns", "missing")

	st = s.Stats()
	assert.Equal(t, uint64(3), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.InDelta(t, 0.75, st.HitRate, 1e-9)
	assert.Equal(t, 1, st.TotalKeys)
	assert.Equal(t, st.Namespaces, st.TotalInstances)
	assert.InDelta(t, float64(st.UsedBytes)/bytesPerMB, st.UsedMemoryMB, 1e-12)
}

func TestStats_EmptyNamespacesCounted(t *testing.T) {
	s := newTestStore(t, 1, 0)

	require.NoError(t, s.Set("ns", "k", []byte("v"), NoExpiration))
	require.True(t, s.Delete("ns", "k"))

	st := s.Stats()
	assert.Equal(t, 1, st.Namespaces)
	assert.Zero(t, st.TotalKeys)
	assert.ElementsMatch(t, []string{"ns"}, s.NamespaceNames())
}

func TestInstanceStats(t *testing.T) {
	s := newTestStore(t, 1, 0)

	_, ok := s.InstanceStats("ns")
	assert.False(t, ok)

	require.NoError(t, s.Set("ns", "k", []byte("value"), NoExpiration))
	_, _ = s.Get("ns", "k")
	_, _ = s.Get("ns", "x")
	_, _ = s.Get("other", "x")

	is, ok := s.InstanceStats("ns")
	require.True(t, ok)
	assert.Equal(t, InstanceStats{
		KeyCount:   1,
		Hits:       1,
		Misses:     1,
		InstanceID: "ns",
		UsedBytes:  estimateSize("ns", "k", []byte("value")),
	}, is)

	assert.Equal(t, uint64(2), s.Stats().Misses, "missing namespace counts globally")
}
