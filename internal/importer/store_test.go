package importer

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/semenkulikov/Online-school/internal/db"
	"github.com/semenkulikov/Online-school/internal/model"
)

type pairKey struct{ a, b int64 }

type tripleKey struct{ a, b, c int64 }

type courseKey struct {
	title   string
	session int64
}

type memData struct {
	nextID       int64
	sessions     map[int]model.Session
	courses      map[courseKey]model.Course
	types        map[string]model.AssessmentType
	students     map[int64]model.Student
	enrollments  map[pairKey]model.Enrollment
	attendances  map[pairKey]model.Attendance
	assessments  map[tripleKey]model.Assessment
	certificates map[pairKey]model.Certificate
	statistics   map[int64]model.Statistic
}

func newMemData() memData {
	return memData{
		sessions:     map[int]model.Session{},
		courses:      map[courseKey]model.Course{},
		types:        map[string]model.AssessmentType{},
		students:     map[int64]model.Student{},
		enrollments:  map[pairKey]model.Enrollment{},
		attendances:  map[pairKey]model.Attendance{},
		assessments:  map[tripleKey]model.Assessment{},
		certificates: map[pairKey]model.Certificate{},
		statistics:   map[int64]model.Statistic{},
	}
}

func (d memData) clone() memData {
	return memData{
		nextID:       d.nextID,
		sessions:     maps.Clone(d.sessions),
		courses:      maps.Clone(d.courses),
		types:        maps.Clone(d.types),
		students:     maps.Clone(d.students),
		enrollments:  maps.Clone(d.enrollments),
		attendances:  maps.Clone(d.attendances),
		assessments:  maps.Clone(d.assessments),
		certificates: maps.Clone(d.certificates),
		statistics:   maps.Clone(d.statistics),
	}
}

// memStore is a transactional in-memory Store with the same upsert
// semantics as the MySQL writer.
type memStore struct {
	mu   sync.Mutex
	data memData
	runs map[string]model.ImportRun

	// failAt makes the n-th write of a transaction fail when > 0.
	failAt int
}

var errInjected = errors.New("injected store failure")

func newMemStore() *memStore {
	return &memStore{data: newMemData(), runs: map[string]model.ImportRun{}}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, w db.LedgerWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.data.clone()
	if err := fn(ctx, &memWriter{d: &tx, failAt: s.failAt}); err != nil {
		return err
	}
	s.data = tx
	return nil
}

func (s *memStore) StartRun(ctx context.Context, id, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = model.ImportRun{ID: id, Source: source, Status: model.RunStatusRunning}
	return nil
}

func (s *memStore) FinishRun(ctx context.Context, id string, status model.RunStatus, report *model.RunReport, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[id]
	run.Status = status
	run.Report = report
	run.ErrorMessage = errorMessage
	s.runs[id] = run
	return nil
}

func (s *memStore) snapshot() memData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.clone()
}

func (s *memStore) student(name string) (model.Student, bool) {
	for _, st := range s.snapshot().students {
		if st.FullName == name {
			return st, true
		}
	}
	return model.Student{}, false
}

type memWriter struct {
	d      *memData
	writes int
	failAt int
}

func (w *memWriter) id() int64 {
	w.d.nextID++
	return w.d.nextID
}

func (w *memWriter) tick() error {
	w.writes++
	if w.failAt > 0 && w.writes >= w.failAt {
		return errInjected
	}
	return nil
}

func outcome(created, changed bool) db.Outcome {
	switch {
	case created:
		return db.Created
	case changed:
		return db.Updated
	}
	return db.Unchanged
}

func (w *memWriter) UpsertSession(ctx context.Context, number int) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}
	if s, ok := w.d.sessions[number]; ok {
		return db.Upserted{ID: s.ID}, nil
	}
	s := model.Session{ID: w.id(), SessionNumber: number}
	w.d.sessions[number] = s
	return db.Upserted{ID: s.ID, Outcome: db.Created}, nil
}

func (w *memWriter) UpsertCourse(ctx context.Context, sessionID int64, title string) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}
	key := courseKey{title: title, session: sessionID}
	if c, ok := w.d.courses[key]; ok {
		return db.Upserted{ID: c.ID}, nil
	}
	c := model.Course{ID: w.id(), Title: title, SessionID: sessionID}
	w.d.courses[key] = c
	return db.Upserted{ID: c.ID, Outcome: db.Created}, nil
}

func (w *memWriter) UpsertAssessmentType(ctx context.Context, name string, weight *float64) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}
	t, ok := w.d.types[name]
	if !ok {
		t = model.AssessmentType{ID: w.id(), Name: name, Weight: weight}
		w.d.types[name] = t
		return db.Upserted{ID: t.ID, Outcome: db.Created}, nil
	}
	changed := weight != nil && (t.Weight == nil || *t.Weight != *weight)
	if changed {
		t.Weight = weight
		w.d.types[name] = t
	}
	return db.Upserted{ID: t.ID, Outcome: outcome(false, changed)}, nil
}

func (w *memWriter) UpsertStudent(ctx context.Context, s model.Student) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}

	var found *model.Student
	for id := range w.d.students {
		st := w.d.students[id]
		switch {
		case s.Email != nil && st.Email != nil && *st.Email == *s.Email:
			found = &st
		case s.Email != nil && st.Email == nil && st.FullName == s.FullName && found == nil:
			found = &st
		case s.Email == nil && st.FullName == s.FullName && found == nil:
			found = &st
		}
	}

	if found == nil {
		s.ID = w.id()
		w.d.students[s.ID] = s
		return db.Upserted{ID: s.ID, Outcome: db.Created}, nil
	}

	st := *found
	changed := st.FullName != s.FullName || st.Status != s.Status || (s.Email != nil && st.Email == nil)
	st.FullName = s.FullName
	st.Status = s.Status
	if s.Email != nil {
		st.Email = s.Email
	}
	w.d.students[st.ID] = st
	return db.Upserted{ID: st.ID, Outcome: outcome(false, changed)}, nil
}

func (w *memWriter) UpsertEnrollment(ctx context.Context, e model.Enrollment) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}
	key := pairKey{e.StudentID, e.SessionID}
	if existing, ok := w.d.enrollments[key]; ok {
		return db.Upserted{ID: existing.ID}, nil
	}
	e.ID = w.id()
	w.d.enrollments[key] = e
	return db.Upserted{ID: e.ID, Outcome: db.Created}, nil
}

func (w *memWriter) UpsertAttendance(ctx context.Context, a model.Attendance) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}
	key := pairKey{a.EnrollmentID, a.SessionID}
	existing, ok := w.d.attendances[key]
	if !ok {
		a.ID = w.id()
		w.d.attendances[key] = a
		return db.Upserted{ID: a.ID, Outcome: db.Created}, nil
	}
	changed := existing.Present != a.Present
	existing.Present = a.Present
	w.d.attendances[key] = existing
	return db.Upserted{ID: existing.ID, Outcome: outcome(false, changed)}, nil
}

func (w *memWriter) UpsertAssessment(ctx context.Context, a model.Assessment) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}
	key := tripleKey{a.EnrollmentID, a.CourseID, a.TypeID}
	existing, ok := w.d.assessments[key]
	if !ok {
		a.ID = w.id()
		w.d.assessments[key] = a
		return db.Upserted{ID: a.ID, Outcome: db.Created}, nil
	}
	changed := existing.Score != a.Score || existing.CertificateIssued != a.CertificateIssued ||
		existing.IsFinalGrade != a.IsFinalGrade
	existing.Score = a.Score
	existing.CertificateIssued = a.CertificateIssued
	existing.IsFinalGrade = a.IsFinalGrade
	w.d.assessments[key] = existing
	return db.Upserted{ID: existing.ID, Outcome: outcome(false, changed)}, nil
}

func (w *memWriter) UpsertCertificate(ctx context.Context, c model.Certificate) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}
	key := pairKey{c.StudentID, c.CourseID}
	existing, ok := w.d.certificates[key]
	if !ok {
		c.ID = w.id()
		w.d.certificates[key] = c
		return db.Upserted{ID: c.ID, Outcome: db.Created}, nil
	}
	changed := existing.Status != c.Status
	existing.Status = c.Status
	if c.AssessmentID != nil {
		changed = changed || existing.AssessmentID == nil || *existing.AssessmentID != *c.AssessmentID
		existing.AssessmentID = c.AssessmentID
	}
	w.d.certificates[key] = existing
	return db.Upserted{ID: existing.ID, Outcome: outcome(false, changed)}, nil
}

func (w *memWriter) UpsertStatistic(ctx context.Context, s model.Statistic) (db.Upserted, error) {
	if err := w.tick(); err != nil {
		return db.Upserted{}, err
	}
	existing, ok := w.d.statistics[s.StudentID]
	if !ok {
		s.ID = w.id()
		w.d.statistics[s.StudentID] = s
		return db.Upserted{ID: s.ID, Outcome: db.Created}, nil
	}
	s.ID = existing.ID
	changed := existing != s
	w.d.statistics[s.StudentID] = s
	return db.Upserted{ID: s.ID, Outcome: outcome(false, changed)}, nil
}
