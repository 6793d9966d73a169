// Package disk implements the process-wide disk registry: a mapping from
// small integer ids to the Disk instances the AHCI HBA driver (or, in
// principle, any other block-device driver) discovered at boot. Grounded
// on original_source's kernel/src/service.rs pattern of a lazily-built,
// lock-protected global registry. Implements spec §4.9.
package disk

import (
	"gopheros/kernel/async"
	"gopheros/kernel/driver/ahci"
	ksync "gopheros/kernel/sync"
)

// registryState is the value an AsyncMutex guards: the disk table and the
// next id to assign. Bundling both behind one lock keeps "assign an id and
// insert" atomic without a second lock.
type registryState struct {
	disks  map[int]ahci.Disk
	nextID int
}

// registry is the single process-wide instance, constructed when the
// package is initialised.
var registry = ksync.NewAsyncMutex(registryState{disks: make(map[int]ahci.Disk)})

// Register adds d to the registry, assigning it the next available id.
// Called from kernel/hal once per disk discovered during DriverInit, before
// the executor's run loop has started, so it takes the lock with TryLock
// through mustLockNow instead of the suspending Lock future that Lookup
// and All use.
func Register(d ahci.Disk) {
	guard := mustLockNow()
	defer guard.Unlock()

	state := guard.Value()
	id := state.nextID
	state.nextID++
	state.disks[id] = d
}

// mustLockNow acquires the registry lock without suspending, which is
// always possible at boot time since nothing else is running yet. It
// panics if the lock is somehow already held, since that would mean two
// boot-time callers raced registration, a bug rather than ordinary
// contention.
func mustLockNow() *ksync.AsyncMutexGuard[registryState] {
	guard, ok := registry.TryLock()
	if !ok {
		panic("disk: registry locked during boot-time registration")
	}
	return guard
}

// Lookup returns a future that resolves to the disk registered under id,
// suspending the caller if the registry is currently locked by another
// task rather than spinning, per §4.9 and §5's cooperative-lock policy.
func Lookup(id int) async.Future[LookupResult] {
	return &lookupFuture{id: id, lock: registry.Lock()}
}

// LookupResult is what a Lookup future resolves to: the disk, if id was
// registered, or ok=false.
type LookupResult struct {
	Disk ahci.Disk
	OK   bool
}

type lookupFuture struct {
	id   int
	lock async.Future[*ksync.AsyncMutexGuard[registryState]]
}

func (f *lookupFuture) Poll(cx *async.Context) (LookupResult, async.PollState) {
	guard, state := f.lock.Poll(cx)
	if state == async.Pending {
		return LookupResult{}, async.Pending
	}
	defer guard.Unlock()

	d, ok := guard.Value().disks[f.id]
	return LookupResult{Disk: d, OK: ok}, async.Ready
}

// All returns a future that resolves to a snapshot of every disk currently
// registered, ordered by id. Used by callers (the shell, diagnostics) that
// need to iterate the full set rather than look up one id.
func All() async.Future[[]ahci.Disk] {
	return &allFuture{lock: registry.Lock()}
}

type allFuture struct {
	lock async.Future[*ksync.AsyncMutexGuard[registryState]]
}

func (f *allFuture) Poll(cx *async.Context) ([]ahci.Disk, async.PollState) {
	guard, state := f.lock.Poll(cx)
	if state == async.Pending {
		return nil, async.Pending
	}
	defer guard.Unlock()

	st := guard.Value()
	out := make([]ahci.Disk, 0, len(st.disks))
	for id := 0; id < st.nextID; id++ {
		if d, ok := st.disks[id]; ok {
			out = append(out, d)
		}
	}
	return out, async.Ready
}
