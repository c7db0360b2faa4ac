package comment

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/darasa/core"
)

var ErrNotFound = errors.New("comment not found")

// commonCommentsLimit bounds the most-common-comments aggregate.
const commonCommentsLimit = 5

type (
	Repository interface {
		// GetOrCreateCommentText reuses an existing text row when one matches
		// exactly.
		GetOrCreateCommentText(ctx context.Context, text, linterKey string) (CommentText, error)
		CreateComment(ctx context.Context, c Comment) (Comment, error)
		QueryComments(ctx context.Context, solutionID string) ([]Comment, error)
		DeleteComment(ctx context.Context, id string) error
		// CommonCommentTexts returns the most reused texts, optionally scoped
		// to one exercise, most used first.
		CommonCommentTexts(ctx context.Context, exerciseID string, limit int) ([]CommentText, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, commenterID string, nc NewComment) (Comment, error) {
	nc.Text = core.CleanString(nc.Text)
	if err := core.Validate.Struct(nc); err != nil {
		return Comment{}, err
	}
	text, err := svc.repo.GetOrCreateCommentText(ctx, nc.Text, "")
	if err != nil {
		return Comment{}, err
	}
	c := Comment{
		CommenterID: commenterID,
		CreatedAt:   time.Now().UTC(),
		LineNumber:  nc.LineNumber,
		TextID:      text.ID,
		Text:        text.Text,
		SolutionID:  nc.SolutionID,
		IsAuto:      nc.IsAuto,
	}
	return svc.repo.CreateComment(ctx, c)
}

// CreateLinterComment records an automated annotation on the solution. The
// text row keeps the linter's finding key so repeated findings share one row.
func (svc *Service) CreateLinterComment(ctx context.Context, commenterID, solutionID string, lineNumber int, text, linterKey string) (Comment, error) {
	text = core.CleanString(text)
	if text == "" || lineNumber < 1 {
		return Comment{}, core.NewValidationError(
			errors.New("invalid linter comment"),
			core.FieldError{Field: "line_number", Error: "a positive line number and a non-empty text are required"},
		)
	}
	ct, err := svc.repo.GetOrCreateCommentText(ctx, text, linterKey)
	if err != nil {
		return Comment{}, err
	}
	c := Comment{
		CommenterID: commenterID,
		CreatedAt:   time.Now().UTC(),
		LineNumber:  lineNumber,
		TextID:      ct.ID,
		Text:        ct.Text,
		SolutionID:  solutionID,
		IsAuto:      true,
	}
	return svc.repo.CreateComment(ctx, c)
}

func (svc *Service) BySolution(ctx context.Context, solutionID string) ([]Comment, error) {
	return svc.repo.QueryComments(ctx, solutionID)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteComment(ctx, id)
}

// Common returns the most common comment texts, filtered by exercise when an
// ID is given.
func (svc *Service) Common(ctx context.Context, exerciseID string) ([]CommentText, error) {
	return svc.repo.CommonCommentTexts(ctx, exerciseID, commonCommentsLimit)
}
