package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/comment"
)

type commentRepository struct {
	db core.DB
}

var _ comment.Repository = (*commentRepository)(nil) // interface compliance check

func NewCommentRepository(db core.DB) comment.Repository {
	return &commentRepository{db: db}
}

type commentRow struct {
	ID          string      `db:"id"`
	CommenterID null.String `db:"commenter_id"`
	AuthorName  string      `db:"author_name"`
	CreatedAt   time.Time   `db:"created_at"`
	LineNumber  int         `db:"line_number"`
	TextID      string      `db:"text_id"`
	Text        string      `db:"text"`
	SolutionID  string      `db:"solution_id"`
	IsAuto      bool        `db:"is_auto"`
}

func (repo commentRepository) unrow(row commentRow) comment.Comment {
	return comment.Comment{
		ID:          row.ID,
		CommenterID: row.CommenterID.String,
		AuthorName:  row.AuthorName,
		CreatedAt:   row.CreatedAt,
		LineNumber:  row.LineNumber,
		TextID:      row.TextID,
		Text:        row.Text,
		SolutionID:  row.SolutionID,
		IsAuto:      row.IsAuto,
	}
}

// GetOrCreateCommentText deduplicates the shared comment body, inserting it
// only when no identical text exists yet.
func (repo commentRepository) GetOrCreateCommentText(ctx context.Context, text string, linterKey string) (comment.CommentText, error) {
	query, args, err := psql.Select("id", "text", "linter_key").
		From("comment_text").
		Where(sq.Eq{"text": text}).
		ToSql()
	if err != nil {
		return comment.CommentText{}, errors.Wrap(err, "building comment text query")
	}
	var row struct {
		ID        string      `db:"id"`
		Text      string      `db:"text"`
		LinterKey null.String `db:"linter_key"`
	}
	err = repo.db.GetContext(ctx, &row, query, args...)
	if err == nil {
		return comment.CommentText{ID: row.ID, Text: row.Text, LinterKey: row.LinterKey}, nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return comment.CommentText{}, errors.Wrap(err, "finding comment text")
	}

	ct := comment.CommentText{
		ID:        uuid.New().String(),
		Text:      text,
		LinterKey: null.NewString(linterKey, linterKey != ""),
	}
	query, args, err = psql.Insert("comment_text").
		Columns("id", "text", "linter_key").
		Values(ct.ID, ct.Text, ct.LinterKey).
		ToSql()
	if err != nil {
		return comment.CommentText{}, errors.Wrap(err, "building comment text insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return comment.CommentText{}, errors.Wrap(err, "inserting comment text")
	}
	return ct, nil
}

func (repo commentRepository) CreateComment(ctx context.Context, cmt comment.Comment) (comment.Comment, error) {
	cmt.ID = uuid.New().String()
	query, args, err := psql.Insert("comment").
		Columns("id", "commenter_id", "created_at", "line_number", "text_id", "solution_id", "is_auto").
		Values(
			cmt.ID,
			null.NewString(cmt.CommenterID, cmt.CommenterID != ""),
			cmt.CreatedAt.UTC(), cmt.LineNumber, cmt.TextID, cmt.SolutionID, cmt.IsAuto,
		).ToSql()
	if err != nil {
		return comment.Comment{}, errors.Wrap(err, "building comment insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return comment.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return cmt, nil
}

func (repo commentRepository) QueryComments(ctx context.Context, solutionID string) ([]comment.Comment, error) {
	query, args, err := psql.Select(
		"c.id", "c.commenter_id", "c.created_at", "c.line_number",
		"c.text_id", "t.text", "c.solution_id", "c.is_auto",
	).
		Column(`COALESCE(u.name, '') AS author_name`).
		From("comment c").
		Join("comment_text t ON t.id = c.text_id").
		LeftJoin(`"user" u ON u.id = c.commenter_id`).
		Where(sq.Eq{"c.solution_id": solutionID}).
		OrderBy("c.line_number ASC", "c.created_at ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building comments query")
	}
	var rows []commentRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]comment.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, repo.unrow(row))
	}
	return comments, nil
}

func (repo commentRepository) DeleteComment(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return comment.ErrNotFound
	}
	query, args, err := psql.Delete("comment").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building comment delete")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	changed, err := oneRowChanged(res)
	if err != nil {
		return err
	}
	if !changed {
		return comment.ErrNotFound
	}
	return nil
}

// CommonCommentTexts returns the comment bodies used most often on solutions
// of the exercise, for the reviewer quick-pick list.
func (repo commentRepository) CommonCommentTexts(ctx context.Context, exerciseID string, limit int) ([]comment.CommentText, error) {
	builder := psql.Select("t.id", "t.text", "t.linter_key").
		Column("COUNT(c.id) AS uses").
		From("comment_text t").
		Join("comment c ON c.text_id = t.id").
		Where(sq.Eq{"c.is_auto": false}).
		GroupBy("t.id", "t.text", "t.linter_key").
		OrderBy("uses DESC", "t.text ASC").
		Limit(uint64(limit))
	if exerciseID != "" {
		builder = builder.
			Join("solution s ON s.id = c.solution_id").
			Where(sq.Eq{"s.exercise_id": exerciseID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building common comments query")
	}

	var rows []struct {
		ID        string      `db:"id"`
		Text      string      `db:"text"`
		LinterKey null.String `db:"linter_key"`
		Uses      int         `db:"uses"`
	}
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying common comments")
	}
	texts := make([]comment.CommentText, 0, len(rows))
	for _, row := range rows {
		texts = append(texts, comment.CommentText{ID: row.ID, Text: row.Text, LinterKey: row.LinterKey})
	}
	return texts, nil
}
