package service

import (
	"context"
	"database/sql"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/pkg/database"
	"github.com/noah-isme/community-events-api/pkg/jobs"
)

// memDB is an in-memory stand-in for the relational store.
type memDB struct {
	mu            sync.Mutex
	events        map[string]models.Event
	registrations []models.Registration
	waitlist      []models.WaitlistEntry
	prereqs       []models.Prerequisite
	sessions      []models.Session
	seq           int64
	fail          map[string]error
	rowLocks      map[string]*sync.Mutex
	peak          map[string]int
}

func newMemDB() *memDB {
	return &memDB{events: map[string]models.Event{}, fail: map[string]error{}}
}

func (db *memDB) failing(op string) error {
	return db.fail[op]
}

type memSnapshot struct {
	events        map[string]models.Event
	registrations []models.Registration
	waitlist      []models.WaitlistEntry
	prereqs       []models.Prerequisite
	sessions      []models.Session
	seq           int64
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	events := make(map[string]models.Event, len(db.events))
	for k, v := range db.events {
		events[k] = v
	}
	return memSnapshot{
		events:        events,
		registrations: append([]models.Registration(nil), db.registrations...),
		waitlist:      append([]models.WaitlistEntry(nil), db.waitlist...),
		prereqs:       append([]models.Prerequisite(nil), db.prereqs...),
		sessions:      append([]models.Session(nil), db.sessions...),
		seq:           db.seq,
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.events, db.registrations, db.waitlist, db.prereqs, db.sessions, db.seq =
		s.events, s.registrations, s.waitlist, s.prereqs, s.sessions, s.seq
}

func (db *memDB) addEvent(e models.Event) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.events[e.ID] = e
}

func (db *memDB) activeRegistrations(eventID string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	var users []string
	for _, r := range db.registrations {
		if r.EventID == eventID && r.Status == models.RegistrationRegistered {
			users = append(users, r.UserID)
		}
	}
	return users
}

func (db *memDB) waitlistUsers(eventID string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	var users []string
	for _, w := range sortedWaitlist(db.waitlist, eventID) {
		users = append(users, w.UserID)
	}
	return users
}

func sortedWaitlist(all []models.WaitlistEntry, eventID string) []models.WaitlistEntry {
	var out []models.WaitlistEntry
	for _, w := range all {
		if w.EventID == eventID {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// rowLock returns the mutex standing in for the event row's FOR UPDATE lock.
func (db *memDB) rowLock(eventID string) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.rowLocks == nil {
		db.rowLocks = map[string]*sync.Mutex{}
	}
	m, ok := db.rowLocks[eventID]
	if !ok {
		m = &sync.Mutex{}
		db.rowLocks[eventID] = m
	}
	return m
}

// eventRows copies every row owned by eventID.
func (db *memDB) eventRows(eventID string) memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := memSnapshot{events: map[string]models.Event{}}
	if e, ok := db.events[eventID]; ok {
		snap.events[eventID] = e
	}
	for _, r := range db.registrations {
		if r.EventID == eventID {
			snap.registrations = append(snap.registrations, r)
		}
	}
	for _, w := range db.waitlist {
		if w.EventID == eventID {
			snap.waitlist = append(snap.waitlist, w)
		}
	}
	for _, p := range db.prereqs {
		if p.EventID == eventID || p.PrerequisiteEventID == eventID {
			snap.prereqs = append(snap.prereqs, p)
		}
	}
	for _, s := range db.sessions {
		if s.EventID == eventID {
			snap.sessions = append(snap.sessions, s)
		}
	}
	return snap
}

// restoreEvents puts back the pre-images of the locked events and leaves
// rows of every other event untouched.
func (db *memDB) restoreEvents(saved map[string]memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	owned := func(id string) bool { _, ok := saved[id]; return ok }

	var regs []models.Registration
	for _, r := range db.registrations {
		if !owned(r.EventID) {
			regs = append(regs, r)
		}
	}
	var wl []models.WaitlistEntry
	for _, w := range db.waitlist {
		if !owned(w.EventID) {
			wl = append(wl, w)
		}
	}
	var prs []models.Prerequisite
	for _, p := range db.prereqs {
		if !owned(p.EventID) && !owned(p.PrerequisiteEventID) {
			prs = append(prs, p)
		}
	}
	var ses []models.Session
	for _, s := range db.sessions {
		if !owned(s.EventID) {
			ses = append(ses, s)
		}
	}

	seenPrereq := map[string]bool{}
	for id, snap := range saved {
		delete(db.events, id)
		if e, ok := snap.events[id]; ok {
			db.events[id] = e
		}
		regs = append(regs, snap.registrations...)
		wl = append(wl, snap.waitlist...)
		ses = append(ses, snap.sessions...)
		for _, p := range snap.prereqs {
			if !seenPrereq[p.ID] {
				seenPrereq[p.ID] = true
				prs = append(prs, p)
			}
		}
	}
	db.registrations, db.waitlist, db.prereqs, db.sessions = regs, wl, prs, ses
}

type txKey struct{}

// memTx is one unit of work: the event rows it has locked and their
// contents at lock time.
type memTx struct {
	locks map[string]*sync.Mutex
	saved map[string]memSnapshot
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	return tx
}

// lockingUOW runs units of work concurrently. Event-scoped units serialise
// only through LockByID, the way SELECT ... FOR UPDATE does, and a failed
// unit rolls back the rows of the events it locked.
type lockingUOW struct {
	db *memDB
}

func (u *lockingUOW) Do(ctx context.Context, fn database.TxFunc) (err error) {
	tx := &memTx{locks: map[string]*sync.Mutex{}, saved: map[string]memSnapshot{}}
	// Units that never lock an event are not run concurrently by the tests.
	global := u.db.snapshot()
	defer func() {
		p := recover()
		if p != nil || err != nil {
			if len(tx.saved) > 0 {
				u.db.restoreEvents(tx.saved)
			} else {
				u.db.restore(global)
			}
		}
		for _, m := range tx.locks {
			m.Unlock()
		}
		if p != nil {
			panic(p)
		}
	}()
	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(context.WithValue(ctx, txKey{}, tx), nil)
}

type memEvents struct{ db *memDB }

func (r memEvents) Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	if err := r.db.failing("events.Create"); err != nil {
		return err
	}
	r.db.addEvent(*event)
	return nil
}

func (r memEvents) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error) {
	if err := r.db.failing("events.FindByID"); err != nil {
		return nil, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

// LockByID holds the event's row lock until the enclosing unit of work ends.
func (r memEvents) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error) {
	if tx := txFrom(ctx); tx != nil {
		if _, held := tx.locks[id]; !held {
			m := r.db.rowLock(id)
			m.Lock()
			tx.locks[id] = m
			tx.saved[id] = r.db.eventRows(id)
		}
	}
	return r.FindByID(ctx, exec, id)
}

func (r memEvents) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Event
	for _, e := range r.db.events {
		if !e.IsDeleted {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	return out, len(out), nil
}

func (r memEvents) ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Event
	for _, e := range r.db.events {
		if !e.IsDeleted && !e.EventDate.Before(from) && e.EventDate.Before(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memEvents) Update(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	r.db.addEvent(*event)
	return nil
}

func (r memEvents) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e := r.db.events[id]
	e.IsDeleted = true
	e.UpdatedAt = at
	r.db.events[id] = e
	return nil
}

func (r memEvents) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error) {
	if err := r.db.failing("events.Delete"); err != nil {
		return 0, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.events[id]; !ok {
		return 0, nil
	}
	delete(r.db.events, id)
	return 1, nil
}

type memRegistrations struct{ db *memDB }

func (r memRegistrations) FindActive(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (*models.Registration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, reg := range r.db.registrations {
		if reg.EventID == eventID && reg.UserID == userID && reg.Status == models.RegistrationRegistered {
			out := reg
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memRegistrations) CountActive(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error) {
	n := len(r.db.activeRegistrations(eventID))
	// Yield between the count and the caller's decision so an unlocked
	// check-then-insert interleaves under concurrency.
	runtime.Gosched()
	return n, nil
}

func (r memRegistrations) Create(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error {
	if err := r.db.failing("registrations.Create"); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.registrations = append(r.db.registrations, *reg)
	active := 0
	for _, existing := range r.db.registrations {
		if existing.EventID == reg.EventID && existing.Status == models.RegistrationRegistered {
			active++
		}
	}
	if r.db.peak == nil {
		r.db.peak = map[string]int{}
	}
	if active > r.db.peak[reg.EventID] {
		r.db.peak[reg.EventID] = active
	}
	return nil
}

// peakActive is the largest number of simultaneous active registrations
// the event has ever held.
func (db *memDB) peakActive(eventID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.peak[eventID]
}

func (r memRegistrations) DeleteActive(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, reg := range r.db.registrations {
		if reg.EventID == eventID && reg.UserID == userID && reg.Status == models.RegistrationRegistered {
			r.db.registrations = append(r.db.registrations[:i:i], r.db.registrations[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r memRegistrations) Complete(ctx context.Context, exec sqlx.ExtContext, eventID, userID string, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, reg := range r.db.registrations {
		if reg.EventID == eventID && reg.UserID == userID && reg.Status == models.RegistrationRegistered {
			r.db.registrations[i].Status = models.RegistrationCompleted
			r.db.registrations[i].CompletedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r memRegistrations) ListActive(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.Registration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Registration
	for _, reg := range r.db.registrations {
		if reg.EventID == eventID && reg.Status == models.RegistrationRegistered {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (r memRegistrations) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	if err := r.db.failing("registrations.DeleteByEvent"); err != nil {
		return 0, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var kept []models.Registration
	var n int64
	for _, reg := range r.db.registrations {
		if reg.EventID == eventID {
			n++
			continue
		}
		kept = append(kept, reg)
	}
	r.db.registrations = kept
	return n, nil
}

func (r memRegistrations) ListQualifying(ctx context.Context, userID string, eventIDs []string) ([]models.QualifyingRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range eventIDs {
		wanted[id] = true
	}
	var out []models.QualifyingRecord
	for _, reg := range r.db.registrations {
		if reg.UserID != userID || !wanted[reg.EventID] || reg.Status != models.RegistrationCompleted {
			continue
		}
		for _, s := range r.db.sessions {
			if s.EventID == reg.EventID {
				out = append(out, models.QualifyingRecord{EventID: reg.EventID, Status: reg.Status, Attendance: s.Attendance, SessionDate: s.SessionDate})
			}
		}
	}
	return out, nil
}

type memWaitlist struct{ db *memDB }

func (r memWaitlist) Find(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (*models.WaitlistEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, w := range r.db.waitlist {
		if w.EventID == eventID && w.UserID == userID {
			out := w
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memWaitlist) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.WaitlistEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.seq++
	entry.Seq = r.db.seq
	entry.CreatedAt = time.Now().UTC()
	r.db.waitlist = append(r.db.waitlist, *entry)
	return nil
}

func (r memWaitlist) Position(ctx context.Context, exec sqlx.ExtContext, entry *models.WaitlistEntry) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, w := range sortedWaitlist(r.db.waitlist, entry.EventID) {
		if w.ID == entry.ID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (r memWaitlist) Count(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error) {
	return len(r.db.waitlistUsers(eventID)), nil
}

func (r memWaitlist) OldestForUpdate(ctx context.Context, exec sqlx.ExtContext, eventID string, status models.WaitlistStatus) (*models.WaitlistEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, w := range sortedWaitlist(r.db.waitlist, eventID) {
		if status == "" || w.Status == status {
			out := w
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memWaitlist) update(id string, fn func(*models.WaitlistEntry)) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.waitlist {
		if r.db.waitlist[i].ID == id {
			fn(&r.db.waitlist[i])
		}
	}
}

func (r memWaitlist) MarkNotified(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	r.update(id, func(w *models.WaitlistEntry) {
		w.Status = models.WaitlistNotified
		w.NotifiedAt = &at
	})
	return nil
}

func (r memWaitlist) Requeue(ctx context.Context, exec sqlx.ExtContext, id string) error {
	r.db.mu.Lock()
	r.db.seq++
	seq := r.db.seq
	r.db.mu.Unlock()
	r.update(id, func(w *models.WaitlistEntry) {
		w.Status = models.WaitlistWaiting
		w.NotifiedAt = nil
		w.CreatedAt = time.Now().UTC()
		w.Seq = seq
	})
	return nil
}

func (r memWaitlist) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, w := range r.db.waitlist {
		if w.ID == id {
			r.db.waitlist = append(r.db.waitlist[:i:i], r.db.waitlist[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r memWaitlist) DeleteByUser(ctx context.Context, exec sqlx.ExtContext, eventID, userID string) (bool, error) {
	entry, err := r.Find(ctx, exec, eventID, userID)
	if err != nil {
		return false, nil
	}
	return true, r.Delete(ctx, exec, entry.ID)
}

func (r memWaitlist) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var kept []models.WaitlistEntry
	var n int64
	for _, w := range r.db.waitlist {
		if w.EventID == eventID {
			n++
			continue
		}
		kept = append(kept, w)
	}
	r.db.waitlist = kept
	return n, nil
}

func (r memWaitlist) List(ctx context.Context, exec sqlx.ExtContext, eventID string) ([]models.WaitlistEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return sortedWaitlist(r.db.waitlist, eventID), nil
}

func (r memWaitlist) ListExpiredOffers(ctx context.Context, exec sqlx.ExtContext, eventID string, cutoff time.Time) ([]models.WaitlistEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.WaitlistEntry
	for _, w := range sortedWaitlist(r.db.waitlist, eventID) {
		if w.Status == models.WaitlistNotified && w.NotifiedAt != nil && w.NotifiedAt.Before(cutoff) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r memWaitlist) EventsWithExpiredOffers(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, w := range r.db.waitlist {
		if w.Status == models.WaitlistNotified && w.NotifiedAt != nil && w.NotifiedAt.Before(cutoff) && !seen[w.EventID] {
			seen[w.EventID] = true
			ids = append(ids, w.EventID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memPrereqs struct{ db *memDB }

func (r memPrereqs) Create(ctx context.Context, exec sqlx.ExtContext, prereq *models.Prerequisite) error {
	if err := r.db.failing("prereqs.Create"); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.prereqs = append(r.db.prereqs, *prereq)
	return nil
}

func (r memPrereqs) Exists(ctx context.Context, exec sqlx.ExtContext, eventID, prerequisiteEventID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.prereqs {
		if p.EventID == eventID && p.PrerequisiteEventID == prerequisiteEventID {
			return true, nil
		}
	}
	return false, nil
}

func (r memPrereqs) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, p := range r.db.prereqs {
		if p.ID == id {
			r.db.prereqs = append(r.db.prereqs[:i:i], r.db.prereqs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r memPrereqs) edges(match func(models.Prerequisite) bool, related func(models.Prerequisite) string) []models.PrerequisiteEdge {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.PrerequisiteEdge
	for _, p := range r.db.prereqs {
		if !match(p) {
			continue
		}
		e := r.db.events[related(p)]
		out = append(out, models.PrerequisiteEdge{Prerequisite: p, RelatedEventName: e.ActivityGroupName, RelatedEventDate: e.EventDate})
	}
	return out
}

func (r memPrereqs) ListRequirements(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error) {
	return r.edges(
		func(p models.Prerequisite) bool { return p.EventID == eventID },
		func(p models.Prerequisite) string { return p.PrerequisiteEventID },
	), nil
}

func (r memPrereqs) ListDependents(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error) {
	return r.edges(
		func(p models.Prerequisite) bool { return p.PrerequisiteEventID == eventID },
		func(p models.Prerequisite) string { return p.EventID },
	), nil
}

func (r memPrereqs) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var kept []models.Prerequisite
	var n int64
	for _, p := range r.db.prereqs {
		if p.EventID == eventID || p.PrerequisiteEventID == eventID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.db.prereqs = kept
	return n, nil
}

type memSessions struct{ db *memDB }

func (r memSessions) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.sessions = append(r.db.sessions, *session)
	return nil
}

func (r memSessions) ListByEvent(ctx context.Context, eventID string) ([]models.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Session
	for _, s := range r.db.sessions {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r memSessions) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	if err := r.db.failing("sessions.DeleteByEvent"); err != nil {
		return 0, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var kept []models.Session
	var n int64
	for _, s := range r.db.sessions {
		if s.EventID == eventID {
			n++
			continue
		}
		kept = append(kept, s)
	}
	r.db.sessions = kept
	return n, nil
}

// recordingDispatcher captures dispatched notifications.
type recordingDispatcher struct {
	mu         sync.Mutex
	offers     []string
	promotions []string
}

func (d *recordingDispatcher) DispatchOffer(ctx context.Context, offer dto.WaitlistOffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offers = append(d.offers, offer.UserID)
	return nil
}

func (d *recordingDispatcher) DispatchPromotion(ctx context.Context, eventID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.promotions = append(d.promotions, userID)
	return nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// engine wires every core service over one memDB.
type engine struct {
	db            *memDB
	uow           *lockingUOW
	capacity      *CapacityService
	registrations *RegistrationService
	events        *EventService
	prereqs       *PrerequisiteService
	sessions      *SessionService
	dispatcher    *recordingDispatcher
	clock         *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Event IDs for paths that validate UUIDs.
const (
	introID    = "0b1e6a52-6d1f-4c36-9f0e-5a8c2d7b4e01"
	advancedID = "0b1e6a52-6d1f-4c36-9f0e-5a8c2d7b4e02"
	missingID  = "0b1e6a52-6d1f-4c36-9f0e-5a8c2d7b4eff"
)

var (
	organizer = models.Actor{UserID: "org-1", Role: models.RoleOrganizer}
	member    = models.Actor{UserID: "member-1", Role: models.RoleMember}
)

func newEngine() *engine {
	db := newMemDB()
	uow := &lockingUOW{db: db}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	events, regs, wl, prs, ses := memEvents{db}, memRegistrations{db}, memWaitlist{db}, memPrereqs{db}, memSessions{db}

	capacity := NewCapacityService(uow, events, regs, wl, nil, time.Minute, nil)
	capacity.now = clock.Now
	dispatcher := &recordingDispatcher{}
	registrations := NewRegistrationService(uow, events, regs, wl, capacity, dispatcher, nil, nil, 48*time.Hour)
	registrations.now = clock.Now
	eventSvc := NewEventService(uow, events, regs, wl, prs, ses, capacity, registrations, nil, nil)
	eventSvc.now = clock.Now
	prereqSvc := NewPrerequisiteService(uow, prs, events, regs, nil, nil)
	prereqSvc.now = clock.Now
	sessionSvc := NewSessionService(ses, events, nil, nil)
	sessionSvc.now = clock.Now

	return &engine{
		db:            db,
		uow:           uow,
		capacity:      capacity,
		registrations: registrations,
		events:        eventSvc,
		prereqs:       prereqSvc,
		sessions:      sessionSvc,
		dispatcher:    dispatcher,
		clock:         clock,
	}
}

func (e *engine) seedEvent(id string, max *int) models.Event {
	event := models.Event{
		ID:                id,
		ActivityGroupName: "Group " + id,
		EventDate:         e.clock.Now().Add(7 * 24 * time.Hour),
		MaxParticipants:   max,
		CreatedAt:         e.clock.Now(),
		UpdatedAt:         e.clock.Now(),
	}
	e.db.addEvent(event)
	return event
}

func intPtr(v int) *int { return &v }
