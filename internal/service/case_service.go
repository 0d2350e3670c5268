package service

import (
	"context"
	"strings"

	"github.com/xxxsen/lexdesk/internal/model"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
	"github.com/xxxsen/lexdesk/internal/pkg/timeutil"
	"github.com/xxxsen/lexdesk/internal/repo"
)

type CaseService struct {
	cases *repo.CaseRepo
}

func NewCaseService(cases *repo.CaseRepo) *CaseService {
	return &CaseService{cases: cases}
}

// CaseUpdate carries the fields to change; nil fields are left as they are.
type CaseUpdate struct {
	Title *string   `json:"title"`
	Tags  *[]string `json:"tags"`
}

func (s *CaseService) List(ctx context.Context, userID string) ([]model.Case, error) {
	return s.cases.ListByUser(ctx, userID)
}

func (s *CaseService) Create(ctx context.Context, userID, title string, tags []string) (*model.Case, error) {
	title = strings.TrimSpace(title)
	if title == "" || userID == "" {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	c := &model.Case{
		ID:     newID(),
		UserID: userID,
		Title:  title,
		Tags:   normalizeTags(tags),
		Ctime:  now,
		Mtime:  now,
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CaseService) Get(ctx context.Context, caseID string) (*model.Case, error) {
	return s.cases.GetByID(ctx, caseID)
}

// Update applies the non-nil fields. Without any field the current case is
// returned unchanged.
func (s *CaseService) Update(ctx context.Context, caseID string, in CaseUpdate) (*model.Case, error) {
	current, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if in.Title == nil && in.Tags == nil {
		return current, nil
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, appErr.ErrInvalid
		}
		current.Title = title
	}
	if in.Tags != nil {
		current.Tags = normalizeTags(*in.Tags)
	}
	current.Mtime = timeutil.NowUnix()
	if err := s.cases.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *CaseService) Delete(ctx context.Context, caseID string) error {
	return s.cases.Delete(ctx, caseID)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
