package alarm_test

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"udptime/internal/alarm"
	"udptime/pkg/xmsg"

	"github.com/stretchr/testify/require"
)

var owner = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

func TestRegistrySetCancel(t *testing.T) {
	reg := alarm.NewRegistry()
	at := xmsg.TimeOfDay{Hour: 7, Minute: 30}

	require.NoError(t, reg.Set("a1", at, owner))
	require.ErrorIs(t, reg.Set("a1", xmsg.TimeOfDay{Hour: 8}, owner), alarm.ErrDuplicateID)
	require.ErrorIs(t, reg.Set("", at, owner), alarm.ErrEmptyID)
	require.ErrorIs(t, reg.Set("a2", xmsg.TimeOfDay{Hour: 24}, owner), alarm.ErrInvalidTime)

	// 重复id不覆盖原闹钟
	snap := reg.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, at, snap[0].At)

	require.True(t, reg.Cancel("a1"))
	require.False(t, reg.Cancel("a1"))
	require.False(t, reg.Cancel("missing"))
	require.Zero(t, reg.Len())
}

func TestRegistryCancelAll(t *testing.T) {
	reg := alarm.NewRegistry()
	require.Zero(t, reg.CancelAll())

	for i := 0; i < 5; i++ {
		require.NoError(t, reg.Set(fmt.Sprintf("a%d", i), xmsg.TimeOfDay{Hour: i}, owner))
	}
	require.Equal(t, 5, reg.CancelAll())
	require.Zero(t, reg.Len())
	require.NoError(t, reg.Set("a0", xmsg.TimeOfDay{}, owner))
}

func TestRegistryTakeDue(t *testing.T) {
	reg := alarm.NewRegistry()
	at := xmsg.TimeOfDay{Hour: 0, Minute: 0}
	require.NoError(t, reg.Set("b", at, owner))
	require.NoError(t, reg.Set("a", at, owner))
	require.NoError(t, reg.Set("c", xmsg.TimeOfDay{Hour: 23, Minute: 59}, owner))

	due := reg.TakeDue(at)
	require.Len(t, due, 2)
	require.Equal(t, "a", due[0].ID)
	require.Equal(t, "b", due[1].ID)
	require.Empty(t, reg.TakeDue(at))
	require.Equal(t, 1, reg.Len())
}

func TestRegistryConcurrent(t *testing.T) {
	reg := alarm.NewRegistry()
	const workers = 100
	const perWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("%d-%d", w, i)
				if err := reg.Set(id, xmsg.TimeOfDay{Hour: i % 24, Minute: i % 60}, owner); err != nil {
					t.Error(err)
					return
				}
				// 偶数id立即取消
				if i%2 == 0 && !reg.Cancel(id) {
					t.Errorf("cancel %s failed", id)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, workers*perWorker/2, reg.Len())
	for _, a := range reg.Snapshot() {
		var w, i int
		_, err := fmt.Sscanf(a.ID, "%d-%d", &w, &i)
		require.NoError(t, err)
		require.Equal(t, 1, i%2, a.ID)
	}
}

func TestRegistryConcurrentSameID(t *testing.T) {
	reg := alarm.NewRegistry()
	const workers = 64

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, workers)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			errs <- reg.Set("shared", xmsg.TimeOfDay{Hour: w % 24}, owner)
		}(w)
	}
	close(start)
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		require.ErrorIs(t, err, alarm.ErrDuplicateID)
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, reg.Len())
}

func TestRegistryConcurrentSharedIDs(t *testing.T) {
	reg := alarm.NewRegistry()
	const (
		workers   = 100
		perWorker = 100
		ids       = 16
	)
	at := xmsg.TimeOfDay{Hour: 9, Minute: 15}

	// 每个id的成功set/cancel次数
	var sets, cancels [ids]atomic.Int32
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				k := (w + i) % ids
				id := fmt.Sprintf("id-%d", k)
				if (w+i)%3 == 0 {
					if reg.Cancel(id) {
						cancels[k].Add(1)
					}
					continue
				}
				switch err := reg.Set(id, at, owner); {
				case err == nil:
					sets[k].Add(1)
				case !errors.Is(err, alarm.ErrDuplicateID):
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	snap := reg.Snapshot()
	present := make(map[string]int)
	for _, a := range snap {
		present[a.ID]++
	}
	for k := 0; k < ids; k++ {
		id := fmt.Sprintf("id-%d", k)
		// set与cancel交替成功, 差值只能是0或1
		diff := int(sets[k].Load() - cancels[k].Load())
		require.Contains(t, []int{0, 1}, diff, id)
		require.Equal(t, diff, present[id], id)
	}
	require.Len(t, present, len(snap))
	require.Equal(t, len(snap), reg.Len())
}

func TestRegistryConcurrentTakeDueFiresOnce(t *testing.T) {
	reg := alarm.NewRegistry()
	at := xmsg.TimeOfDay{Hour: 12, Minute: 0}
	for i := 0; i < 1000; i++ {
		require.NoError(t, reg.Set(fmt.Sprintf("a%d", i), at, owner))
	}

	var (
		mu    sync.Mutex
		fired = make(map[string]int)
		wg    sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, a := range reg.TakeDue(at) {
				mu.Lock()
				fired[a.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, fired, 1000)
	for id, n := range fired {
		require.Equal(t, 1, n, id)
	}
}
