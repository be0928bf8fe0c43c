package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sigce-api/internal/models"
	"github.com/noah-isme/sigce-api/internal/repository"
)

type memCertificateRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.Certificate
	createErr error
	creates   int
}

func newMemCertificateRepo() *memCertificateRepo {
	return &memCertificateRepo{byID: map[string]*models.Certificate{}}
}

func (m *memCertificateRepo) Create(ctx context.Context, cert *models.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.byID {
		if existing.Folio == cert.Folio {
			return repository.ErrDuplicate
		}
	}
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	cert.CreatedAt = time.Now().UTC()
	cert.UpdatedAt = cert.CreatedAt
	clone := *cert
	m.byID[cert.ID] = &clone
	return nil
}

func (m *memCertificateRepo) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cert, ok := m.byID[id]; ok {
		clone := *cert
		return &clone, nil
	}
	return nil, nil
}

func (m *memCertificateRepo) FindByFolio(ctx context.Context, folio string) (*models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cert := range m.byID {
		if cert.Folio == folio {
			clone := *cert
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memCertificateRepo) FindByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Certificate, 0)
	for _, cert := range m.byID {
		if cert.StudentID == studentID {
			out = append(out, *cert)
		}
	}
	return out, nil
}

func (m *memCertificateRepo) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Certificate, 0)
	for _, cert := range m.byID {
		if filter.Type != "" && cert.Type != filter.Type {
			continue
		}
		out = append(out, *cert)
	}
	return out, len(out), nil
}

func (m *memCertificateRepo) UpdateStatus(ctx context.Context, id string, from, to models.CertificateStatus, event models.CertificateEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cert, ok := m.byID[id]
	if !ok || cert.Status != from {
		return false, nil
	}
	cert.Status = to
	cert.History = append(cert.History, event)
	return true, nil
}

func (m *memCertificateRepo) SetDocumentPath(ctx context.Context, id, path string, event models.CertificateEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cert, ok := m.byID[id]; ok {
		cert.DocumentPath = &path
		cert.History = append(cert.History, event)
	}
	return nil
}

func (m *memCertificateRepo) CountForSequence(ctx context.Context, key models.SequenceKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := fmt.Sprintf("%s-%d-%s-", key.Prefix, key.Year, key.Type)
	count := 0
	for _, cert := range m.byID {
		if strings.HasPrefix(cert.Folio, prefix) {
			count++
		}
	}
	return count, nil
}

func (m *memCertificateRepo) put(cert models.Certificate) *models.Certificate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	m.byID[cert.ID] = &cert
	return &cert
}

// memSequences is a mutex-guarded counter table.
type memSequences struct {
	mu       sync.Mutex
	counters map[string]int
	errs     []error
	calls    int
}

func newMemSequences() *memSequences {
	return &memSequences{counters: map[string]int{}}
}

func (m *memSequences) ReserveNext(ctx context.Context, key models.SequenceKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	m.counters[key.String()]++
	return m.counters[key.String()], nil
}

type memStudentRepo struct {
	mu       sync.Mutex
	students map[string]models.Student
	patches  []models.StudentPatch
}

func newMemStudentRepo() *memStudentRepo {
	return &memStudentRepo{students: map[string]models.Student{}}
}

func (m *memStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memStudentRepo) CreateIfAbsent(ctx context.Context, student *models.Student) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[student.ID]; ok {
		return false, nil
	}
	m.students[student.ID] = *student
	return true, nil
}

func (m *memStudentRepo) PatchMissing(ctx context.Context, id string, patch models.StudentPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patches = append(m.patches, patch)
	s := m.students[id]
	if s.NationalID == "" {
		s.NationalID = patch.NationalID
	}
	if s.Email == "" {
		s.Email = patch.Email
	}
	if s.Program == "" {
		s.Program = patch.Program
	}
	m.students[id] = s
	return nil
}

type memProgramStats struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (m *memProgramStats) RecordIssued(ctx context.Context, cert *models.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[models.ProgramKey(cert.AcademicProgram)]++
	return nil
}

func (m *memProgramStats) List(ctx context.Context, limit int) ([]models.ProgramStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ProgramStat, 0, len(m.counts))
	for key, count := range m.counts {
		out = append(out, models.ProgramStat{Key: key, CertificateCount: count})
	}
	return out, nil
}

type memTemplates struct {
	templates map[string]*models.Template
}

func (m *memTemplates) FindByID(ctx context.Context, id string) (*models.Template, error) {
	if tpl, ok := m.templates[id]; ok {
		return tpl, nil
	}
	return nil, nil
}

type recordingArchiver struct {
	mu     sync.Mutex
	queued []string
}

func (r *recordingArchiver) EnqueueArchive(cert *models.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, cert.ID)
	return nil
}
